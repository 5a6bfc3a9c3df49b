package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/admin"
	mw "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
)

// AdminRouterDeps contiene las dependencias para el router de admin.
type AdminRouterDeps struct {
	Controllers *ctrl.Controllers
}

// RegisterAdminRoutes registra la API de administración (sesión admin o bearer).
func RegisterAdminRoutes(r chi.Router, deps AdminRouterDeps) {
	c := deps.Controllers

	r.Group(func(r chi.Router) {
		r.Use(apiChain(mw.RequireAdmin())...)

		r.Get("/api/provider/login-logs", c.Logs.List)
		r.Get("/api/provider/logs-export", c.Logs.Export)
		r.Get("/api/provider/users", c.Links.List)
		r.Get("/api/provider/stats", c.Links.Stats)
		r.Delete("/api/provider/users/{id}/unbind", c.Links.Unbind)
	})
}
