package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/jwt"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/session"
)

// UserLoader resuelve el usuario de una sesión.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
}

// SessionLoader es el subconjunto de session.Manager que usa WithActor.
type SessionLoader interface {
	ID(r *http.Request) string
	Load(ctx context.Context, sid string) (*session.Data, error)
}

// AuthConfig configura la resolución del actor.
type AuthConfig struct {
	Sessions SessionLoader
	Users    UserLoader
	Tokens   *jwt.Issuer // opcional: bearer de admin
}

// WithActor resuelve quién hace el request: bearer de admin o cookie de
// sesión. Un request sin credenciales sigue como anónimo; un bearer inválido
// se rechaza con 401.
func WithActor(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.From(ctx)

			if raw := bearerToken(r); raw != "" {
				if cfg.Tokens == nil || !cfg.Tokens.Enabled() {
					httperrors.WriteError(w, r, httperrors.ErrUnauthorized.WithDetail("bearer tokens disabled"))
					return
				}
				claims, err := cfg.Tokens.ParseAdmin(raw)
				if err != nil {
					httperrors.WriteError(w, r, httperrors.ErrUnauthorized.WithCause(err))
					return
				}
				actor := &session.Actor{
					UserID:   claims.Subject,
					Username: claims.Username,
					IsAdmin:  true,
					ViaToken: true,
				}
				ctx = session.WithActor(ctx, actor)
				ctx = logger.ToContext(ctx, log.With(logger.UserID(actor.UserID)))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if cfg.Sessions != nil && cfg.Users != nil {
				if user := loadSessionUser(ctx, cfg, r); user != nil {
					ctx = session.WithActor(ctx, &session.Actor{
						UserID:   user.ID,
						Username: user.Username,
						IsAdmin:  user.IsAdmin,
					})
					ctx = WithUser(ctx, user)
					ctx = logger.ToContext(ctx, log.With(logger.UserID(user.ID)))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loadSessionUser(ctx context.Context, cfg AuthConfig, r *http.Request) *repository.User {
	sid := cfg.Sessions.ID(r)
	if sid == "" {
		return nil
	}
	data, err := cfg.Sessions.Load(ctx, sid)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			logger.From(ctx).Warn("session load failed", logger.Component("auth"), logger.Err(err))
		}
		return nil
	}
	user, err := cfg.Users.GetByID(ctx, data.UserID)
	if err != nil {
		// Sesión de un usuario borrado: se trata como anónima.
		if !repository.IsNotFound(err) {
			logger.From(ctx).Warn("session user lookup failed", logger.Component("auth"), logger.Err(err))
		}
		return nil
	}
	return user
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// RequireUser exige un usuario con sesión de navegador.
func RequireUser() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUser(r.Context()) == nil {
				httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin exige un actor administrador (sesión o bearer).
func RequireAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := session.ActorFrom(r.Context())
			if actor == nil {
				httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
				return
			}
			if !actor.IsAdmin {
				httperrors.WriteError(w, r, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
