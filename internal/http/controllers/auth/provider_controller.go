package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/authflow"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// CallbackPath es la ruta de retorno del proveedor.
const CallbackPath = "/auth/provider/callback"

// SessionStore es lo que los controllers de login usan de session.Manager.
type SessionStore interface {
	ID(r *http.Request) string
	Ensure(w http.ResponseWriter, r *http.Request) (string, error)
	Login(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) (string, error)
}

// Config del controller.
type Config struct {
	// BaseURL público; arma la URL de callback cuando el ajuste es "auto".
	BaseURL string
}

// ProviderController maneja el inicio y el retorno del login con popup.
type ProviderController struct {
	flow     authflow.Service
	sessions SessionStore
	settings identity.SettingsLoader
	cfg      Config
}

// NewProviderController crea el controller.
func NewProviderController(flow authflow.Service, sessions SessionStore, settings identity.SettingsLoader, cfg Config) *ProviderController {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ProviderController{flow: flow, sessions: sessions, settings: settings, cfg: cfg}
}

// Start maneja GET /auth/provider[?bind=1]
func (c *ProviderController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ProviderController.Start"))

	sid, err := c.sessions.Ensure(w, r)
	if err != nil {
		log.Error("session unavailable", logger.Err(err))
		renderPage(w, r, http.StatusServiceUnavailable, pageData{Message: httperrors.ErrServiceUnavailable.Message})
		return
	}

	redirectURI, err := c.callbackURL(ctx, r)
	if err != nil {
		renderFailure(w, r, err)
		return
	}

	authURL, err := c.flow.Start(ctx, authflow.StartRequest{
		SessionID:   sid,
		BindMode:    r.URL.Query().Get("bind") == "1",
		Referer:     c.sameOrigin(r, r.Referer()),
		RedirectURI: redirectURI,
	})
	if err != nil {
		log.Warn("authorization start failed", logger.Err(err))
		renderFailure(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback maneja GET /auth/provider/callback
func (c *ProviderController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	code := strings.TrimSpace(q.Get("authCode"))
	if code == "" {
		code = strings.TrimSpace(q.Get("code"))
	}

	res, err := c.flow.Callback(ctx, authflow.CallbackRequest{
		SessionID: c.sessions.ID(r),
		Code:      code,
		State:     strings.TrimSpace(q.Get("state")),
		Error:     q.Get("error"),
		Actor:     middlewares.GetUser(ctx),
		Client:    clientInfo(r),
		Establish: func(ctx context.Context, u *repository.User) error {
			_, err := c.sessions.Login(ctx, w, r, u.ID)
			return err
		},
	})
	if err != nil {
		renderFailure(w, r, err)
		return
	}

	msg := "登录成功，窗口即将关闭..."
	if res.BindMode {
		msg = "绑定成功，窗口即将关闭..."
	}
	renderPage(w, r, http.StatusOK, pageData{Success: true, Message: msg, Redirect: res.Referer})
}

func (c *ProviderController) callbackURL(ctx context.Context, r *http.Request) (string, error) {
	vals, err := c.settings.Load(ctx)
	if err != nil {
		return "", err
	}
	if u := vals.CallbackURL(); u != "" {
		return u, nil
	}
	base := c.cfg.BaseURL
	if base == "" {
		base = helpers.BaseURL(r)
	}
	return base + CallbackPath, nil
}

// sameOrigin descarta referers de otros hosts para no convertir el callback
// en un open redirect.
func (c *ProviderController) sameOrigin(r *http.Request, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	host := r.Host
	if c.cfg.BaseURL != "" {
		if b, err := url.Parse(c.cfg.BaseURL); err == nil {
			host = b.Host
		}
	}
	if !strings.EqualFold(u.Host, host) {
		return ""
	}
	return u.String()
}

func renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	appErr := httperrors.FromError(err)
	if appErr.HTTPStatus >= 500 {
		logger.From(r.Context()).Error("provider login failed", logger.String("code", appErr.Code), logger.Err(err))
	}
	renderPage(w, r, appErr.HTTPStatus, pageData{Message: appErr.Message})
}

func clientInfo(r *http.Request) authflow.ClientInfo {
	return authflow.ClientInfo{IP: helpers.ClientIP(r), UserAgent: r.UserAgent()}
}
