// Package router arma el árbol de rutas chi con sus cadenas de middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	mw "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/rate"
)

// Deps contiene todo lo necesario para registrar las rutas.
type Deps struct {
	Controllers *controllers.Controllers

	Auth  mw.AuthConfig
	Gates mw.GateConfig

	RateLimiter rate.Limiter // opcional: limita los endpoints públicos de login
	Metrics     http.Handler // opcional: /metrics

	// Upstream recibe las rutas desconocidas (la app host), ya detrás de los
	// gates. Nil = 404 JSON.
	Upstream http.Handler
}

// New crea el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// ===========================================================================
	// Middlewares globales (orden: el primero es el más externo)
	// ===========================================================================
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithActor(d.Auth),
		mw.ProviderLoginOnly(d.Gates),
		mw.RequireBinding(d.Gates),
	)

	RegisterHealthRoutes(r, HealthRouterDeps{
		Controller: d.Controllers.Health,
		Metrics:    d.Metrics,
	})
	RegisterAuthRoutes(r, AuthRouterDeps{
		Controllers: d.Controllers.Auth,
		RateLimiter: d.RateLimiter,
	})
	RegisterAccountRoutes(r, AccountRouterDeps{
		Controllers: d.Controllers.Account,
		Logout:      d.Controllers.Session,
	})
	RegisterAdminRoutes(r, AdminRouterDeps{
		Controllers: d.Controllers.Admin,
	})

	if d.Upstream != nil {
		r.NotFound(d.Upstream.ServeHTTP)
		r.MethodNotAllowed(d.Upstream.ServeHTTP)
	} else {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			errors.WriteError(w, r, errors.ErrNotFound)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			errors.WriteError(w, r, errors.ErrMethodNotAllowed)
		})
	}
	return r
}

// apiChain son los middlewares de las rutas JSON.
func apiChain(extra ...mw.Middleware) []func(http.Handler) http.Handler {
	return mw.Funcs(append([]mw.Middleware{mw.WithSecurityHeaders(), mw.WithNoStore()}, extra...)...)
}
