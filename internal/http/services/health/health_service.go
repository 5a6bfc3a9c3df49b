// Package health contiene el service de readiness.
package health

import (
	"context"
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// Status de un componente o del servicio completo.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusDisabled    = "disabled"
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// ComponentStatus es el estado de una dependencia.
type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response es el cuerpo de /readyz.
type Response struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Warnings   []string                   `json:"warnings,omitempty"`
	Version    string                     `json:"version,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) Response
}

// Deps contiene los probes. Un probe nil se reporta como "disabled".
type Deps struct {
	DBCheck    func(ctx context.Context) error // crítico
	CacheCheck func(ctx context.Context) error

	// ProviderConfigured reporta si hay app_key/app_secret cargados.
	ProviderConfigured func(ctx context.Context) bool

	// DefaultKey reporta si los campos sensibles se cifran con la clave por defecto.
	DefaultKey func() bool

	Version string
}

type healthService struct {
	deps Deps
	now  func() time.Time
}

// NewHealthService crea el service de readiness.
func NewHealthService(d Deps) HealthService {
	return &healthService{deps: d, now: time.Now}
}

func (s *healthService) Check(ctx context.Context) Response {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health"),
		logger.Op("Check"),
	)

	resp := Response{
		Components: make(map[string]ComponentStatus),
		Version:    s.deps.Version,
		Timestamp:  s.now().UTC(),
	}

	critical, degraded := false, false

	// 1) Base de datos (crítico)
	if s.deps.DBCheck != nil {
		if err := probe(ctx, s.deps.DBCheck); err != nil {
			resp.Components["db"] = ComponentStatus{Status: StatusError, Message: "unavailable"}
			critical = true
			log.Error("db unavailable", logger.Err(err))
		} else {
			resp.Components["db"] = ComponentStatus{Status: StatusOK}
		}
	} else {
		resp.Components["db"] = ComponentStatus{Status: StatusError, Message: "not initialized"}
		critical = true
	}

	// 2) Cache de sesiones (sin cache no hay login)
	if s.deps.CacheCheck != nil {
		if err := probe(ctx, s.deps.CacheCheck); err != nil {
			resp.Components["cache"] = ComponentStatus{Status: StatusError, Message: "unavailable"}
			critical = true
			log.Error("cache unavailable", logger.Err(err))
		} else {
			resp.Components["cache"] = ComponentStatus{Status: StatusOK}
		}
	} else {
		resp.Components["cache"] = ComponentStatus{Status: StatusDisabled}
	}

	// 3) Proveedor (informativo: la app arranca sin credenciales)
	if s.deps.ProviderConfigured != nil {
		if s.deps.ProviderConfigured(ctx) {
			resp.Components["provider"] = ComponentStatus{Status: StatusOK}
		} else {
			resp.Components["provider"] = ComponentStatus{Status: StatusDisabled, Message: "app_key/app_secret not set"}
			degraded = true
		}
	}

	if s.deps.DefaultKey != nil && s.deps.DefaultKey() {
		resp.Warnings = append(resp.Warnings, "sensitive fields are encrypted with the built-in default key")
		degraded = true
	}

	switch {
	case critical:
		resp.Status = StatusUnavailable
	case degraded:
		resp.Status = StatusDegraded
	default:
		resp.Status = StatusReady
	}
	return resp
}

func probe(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return fn(ctx)
}
