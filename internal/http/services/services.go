// Package services es el composition root de los services HTTP.
//
//	deps := services.Deps{DAL: dal, Provider: client, ...}
//	svcs := services.New(deps)
//	// svcs.AuthFlow.Callback, svcs.Identity.Bind, svcs.LoginLog.List, etc.
package services

import (
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/events"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/authflow"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/health"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/loginlog"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/security/secretbox"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
)

// Deps contiene las dependencias base para crear los services.
type Deps struct {
	// ─── Infraestructura ───
	DAL      store.DataAccessLayer
	Provider authflow.Provider
	Settings identity.SettingsLoader
	Pending  authflow.PendingStore
	Box      *secretbox.Box
	Events   events.Publisher

	// ─── Configuración ───
	Location *time.Location // zona de los filtros de fecha del log

	// ─── Health Check ───
	HealthDeps health.Deps
}

// Services agrupa todos los services.
type Services struct {
	Identity identity.Service
	LoginLog loginlog.Service
	AuthFlow authflow.Service
	Health   health.HealthService
}

// New crea el agregador. Es el único lugar donde se instancian los services.
func New(d Deps) *Services {
	ident := identity.NewService(identity.Deps{
		Users:    d.DAL.Users(),
		Links:    d.DAL.Links(),
		Settings: d.Settings,
		Box:      d.Box,
		Events:   d.Events,
	})
	logs := loginlog.NewService(loginlog.Deps{
		Attempts: d.DAL.Attempts(),
		Location: d.Location,
	})

	return &Services{
		Identity: ident,
		LoginLog: logs,
		AuthFlow: authflow.NewService(authflow.Deps{
			Provider: d.Provider,
			Identity: ident,
			Logs:     logs,
			Pending:  d.Pending,
			Settings: d.Settings,
			Events:   d.Events,
		}),
		Health: health.NewHealthService(d.HealthDeps),
	}
}
