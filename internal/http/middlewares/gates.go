package middlewares

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/session"
)

// BindingChecker es lo que los gates necesitan de identity.Service.
type BindingChecker interface {
	IsExempt(ctx context.Context, user *repository.User) (bool, error)
	IsBound(ctx context.Context, userID string) (bool, error)
}

// SettingsLoader retorna los ajustes vigentes.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Values, error)
}

// GateConfig configura RequireBinding y ProviderLoginOnly.
type GateConfig struct {
	Settings SettingsLoader
	Identity BindingChecker
}

// bindingExempt son las rutas que un usuario sin vínculo necesita para
// completar el binding o salir.
var bindingExempt = []string{
	"/auth/provider",
	"/api/provider/bind",
	"/api/provider/bind-status",
	"/api/provider/h5-login",
	"/api/provider/config",
	"/api/session/logout",
	"/logout",
	"/login",
	"/register",
}

// providerLoginAllowed nunca se bloquean con only_dingtalk_login.
var providerLoginAllowed = []string{
	"/auth/provider",
	"/api/provider/h5-login",
	"/api/provider/bind",
	"/api/session/logout",
	"/logout",
}

// nativeLoginPaths son los endpoints de login propios del foro.
var nativeLoginPaths = []string{
	"/login",
	"/api/token",
	"/api/forgot",
	"/register",
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// RequireBinding bloquea las llamadas API de usuarios sin vínculo cuando
// force_bind está activo. Las páginas pasan: el frontend muestra el modal.
func RequireBinding(cfg GateConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil || !isAPI(r) || hasAnyPrefix(r.URL.Path, bindingExempt) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := logger.From(ctx).With(logger.Component("gate"), logger.Op("RequireBinding"))

			vals, err := cfg.Settings.Load(ctx)
			if err != nil {
				log.Warn("settings unavailable, gate skipped", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !vals.ForceBind() {
				next.ServeHTTP(w, r)
				return
			}

			if exempt, err := cfg.Identity.IsExempt(ctx, user); err == nil && exempt {
				next.ServeHTTP(w, r)
				return
			}
			bound, err := cfg.Identity.IsBound(ctx, user.ID)
			if err != nil {
				errors.WriteError(w, r, err)
				return
			}
			if bound {
				next.ServeHTTP(w, r)
				return
			}

			log.Debug("unbound user blocked", logger.UserID(user.ID))
			errors.WriteError(w, r, errors.ErrBindingRequired)
		})
	}
}

// ProviderLoginOnly bloquea el login nativo del foro cuando
// only_dingtalk_login está activo. Los usuarios exentos (por sesión o por la
// identificación enviada en el body) conservan el login nativo.
func ProviderLoginOnly(cfg GateConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if hasAnyPrefix(path, providerLoginAllowed) || !hasAnyPrefix(path, nativeLoginPaths) || !isAPI(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			vals, err := cfg.Settings.Load(ctx)
			if err != nil {
				logger.From(ctx).Warn("settings unavailable, gate skipped",
					logger.Component("gate"), logger.Op("ProviderLoginOnly"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !vals.OnlyProviderLogin() {
				next.ServeHTTP(w, r)
				return
			}

			if user := GetUser(ctx); user != nil {
				if exempt, err := cfg.Identity.IsExempt(ctx, user); err == nil && exempt {
					next.ServeHTTP(w, r)
					return
				}
			} else if a := session.ActorFrom(ctx); a != nil && a.IsAdmin {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodPost {
				if id := identification(r); id != "" && containsFold(vals.ExemptUsers(), id) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errors.WriteError(w, r, errors.ErrProviderLoginOnly)
		})
	}
}

// identification lee identification/username/email del body JSON sin
// consumirlo.
func identification(r *http.Request) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, r.Body, 4096)
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf.Bytes()), rest), rest}

	var body map[string]any
	if err := json.Unmarshal(buf.Bytes(), &body); err != nil {
		return ""
	}
	for _, k := range []string{"identification", "username", "email"} {
		if s, ok := body[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
