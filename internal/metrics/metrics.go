// Package metrics define las métricas Prometheus del servicio. Están en un
// paquete propio para que cliente del proveedor, services y middlewares HTTP
// las usen sin ciclos de import.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dingtalk_login_attempts_total",
		Help: "Intentos de login por método, resultado y motivo",
	}, []string{"method", "outcome", "reason"})

	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dingtalk_provider_requests_total",
		Help: "Llamadas a la API del proveedor por endpoint y resultado",
	}, []string{"endpoint", "result"}) // result: ok|error|rejected

	ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dingtalk_provider_request_duration_seconds",
		Help:    "Latencia de las llamadas al proveedor",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dingtalk_app_token_refreshes_total",
		Help: "Refrescos del access token de aplicación",
	}, []string{"result"})

	LinkChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dingtalk_identity_link_changes_total",
		Help: "Altas y bajas de vínculos de identidad",
	}, []string{"action"}) // bind|register|unbind

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

var (
	registerOnce sync.Once
	registerErr  error
)

// Register registra todas las métricas (idempotente) y devuelve el handler de /metrics.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{
			LoginAttempts, ProviderRequests, ProviderLatency, TokenRefreshes,
			LinkChanges, HTTPRequests, HTTPDuration,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					registerErr = err
					return
				}
			}
		}
	})
	if registerErr != nil {
		return nil, registerErr
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// ObserveProvider registra resultado y latencia de una llamada al proveedor.
func ObserveProvider(endpoint, result string, started time.Time) {
	ProviderRequests.WithLabelValues(endpoint, result).Inc()
	ProviderLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
