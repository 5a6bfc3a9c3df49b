package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/account"
	sessionctrl "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/session"
	mw "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
)

// AccountRouterDeps contiene las dependencias para las rutas del usuario logueado.
type AccountRouterDeps struct {
	Controllers *ctrl.Controllers
	Logout      *sessionctrl.LogoutController
}

// RegisterAccountRoutes registra bind, unbind, bind-status y logout.
func RegisterAccountRoutes(r chi.Router, deps AccountRouterDeps) {
	b := deps.Controllers.Binding

	r.Group(func(r chi.Router) {
		r.Use(apiChain(mw.RequireUser())...)

		// POST /api/provider/bind
		r.Post("/api/provider/bind", b.Bind)
		// DELETE /api/provider/unbind
		r.Delete("/api/provider/unbind", b.Unbind)
		// GET /api/provider/bind-status
		r.Get("/api/provider/bind-status", b.Status)
		// POST /api/session/logout
		r.Post("/api/session/logout", deps.Logout.Logout)
	})
}
