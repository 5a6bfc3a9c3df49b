// Package session contiene el controller de cierre de sesión.
package session

import (
	"context"
	"net/http"

	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// Logouter es lo que el controller usa de session.Manager.
type Logouter interface {
	Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// LogoutController maneja POST /api/session/logout.
type LogoutController struct {
	sessions Logouter
}

func NewLogoutController(sessions Logouter) *LogoutController {
	return &LogoutController{sessions: sessions}
}

// Logout borra la sesión del cache y emite la cookie de borrado.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := c.sessions.Logout(ctx, w, r); err != nil {
		logger.From(ctx).Warn("logout failed", logger.Layer("controller"), logger.Op("LogoutController.Logout"), logger.Err(err))
		httperrors.WriteError(w, r, httperrors.ErrServiceUnavailable.WithCause(err))
		return
	}
	helpers.WriteSuccess(w, "已退出登录", nil)
}
