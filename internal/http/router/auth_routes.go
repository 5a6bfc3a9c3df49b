package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/auth"
	mw "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/rate"
)

// AuthRouterDeps contiene las dependencias para el router de login.
type AuthRouterDeps struct {
	Controllers *ctrl.Controllers
	RateLimiter rate.Limiter // opcional
}

// RegisterAuthRoutes registra el login con popup, el login H5 y la config pública.
func RegisterAuthRoutes(r chi.Router, deps AuthRouterDeps) {
	c := deps.Controllers
	limit := mw.WithRateLimit(mw.RateLimitConfig{
		Limiter: deps.RateLimiter,
		KeyFunc: mw.IPPathRateKey,
	})

	// Páginas del popup
	r.Group(func(r chi.Router) {
		r.Use(mw.WithPageSecurityHeaders(), mw.WithNoStore(), limit)

		// GET /auth/provider[?bind=1]
		r.Get("/auth/provider", c.Provider.Start)
		// GET /auth/provider/callback
		r.Get(ctrl.CallbackPath, c.Provider.Callback)
	})

	r.Group(func(r chi.Router) {
		r.Use(apiChain()...)

		// POST /api/provider/h5-login
		r.With(limit).Post("/api/provider/h5-login", c.H5.Login)
		// GET /api/provider/config
		r.Get("/api/provider/config", c.Config.Get)
	})
}
