// Package controllers es el composition root de los controllers HTTP.
//
//	svcs := services.New(deps)
//	ctrls := controllers.New(svcs, controllers.Deps{...})
//	handler := router.New(router.Deps{Controllers: ctrls, ...})
package controllers

import (
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/account"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/admin"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/auth"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/health"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/session"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
)

// SessionStore cubre lo que los controllers usan de session.Manager.
type SessionStore interface {
	auth.SessionStore
	session.Logouter
}

// Deps son las dependencias que no son services.
type Deps struct {
	Sessions SessionStore
	Settings identity.SettingsLoader
	Auth     auth.Config
}

// Controllers agrupa los controllers por dominio.
type Controllers struct {
	Auth    *auth.Controllers
	Account *account.Controllers
	Admin   *admin.Controllers
	Session *session.LogoutController
	Health  *health.HealthController
}

// New crea todos los controllers inyectando services.
func New(s *services.Services, d Deps) *Controllers {
	return &Controllers{
		Auth:    auth.NewControllers(s.AuthFlow, d.Sessions, d.Settings, d.Auth),
		Account: account.NewControllers(s.AuthFlow, s.Identity),
		Admin:   admin.NewControllers(s.LoginLog, s.Identity, d.Settings),
		Session: session.NewLogoutController(d.Sessions),
		Health:  health.NewHealthController(s.Health),
	}
}
