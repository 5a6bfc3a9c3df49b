// Package health contiene el controller de readiness.
package health

import (
	"net/http"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	svc "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/health"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// HealthController maneja las rutas de health check.
type HealthController struct {
	service svc.HealthService
}

// NewHealthController crea el controller de health check.
func NewHealthController(service svc.HealthService) *HealthController {
	return &HealthController{service: service}
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := c.service.Check(ctx)

	if resp.Version != "" {
		w.Header().Set("X-Service-Version", resp.Version)
	}

	status := http.StatusOK
	if resp.Status == svc.StatusUnavailable {
		status = http.StatusServiceUnavailable
	}

	logger.From(ctx).Debug("health check completed",
		logger.Layer("controller"),
		logger.String("status", resp.Status),
		logger.Int("components_count", len(resp.Components)),
	)
	helpers.WriteJSON(w, status, resp)
}

// Livez maneja GET /healthz: el proceso responde.
func (c *HealthController) Livez(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
