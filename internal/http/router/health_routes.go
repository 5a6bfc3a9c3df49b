package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/health"
)

// HealthRouterDeps contiene las dependencias para el router de health.
type HealthRouterDeps struct {
	Controller *ctrl.HealthController
	Metrics    http.Handler
}

// RegisterHealthRoutes registra /healthz, /readyz y /metrics.
func RegisterHealthRoutes(r chi.Router, deps HealthRouterDeps) {
	r.Get("/healthz", deps.Controller.Livez)
	r.Get("/readyz", deps.Controller.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
}
