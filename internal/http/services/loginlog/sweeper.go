package loginlog

import (
	"context"
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// RetentionSource retorna los días de retención vigentes (se relee en cada pasada).
type RetentionSource func(ctx context.Context) (int, error)

// Sweeper purga periódicamente los registros vencidos. Es el equivalente
// en proceso de `cleanup-logs`; ambos son idempotentes y pueden convivir.
type Sweeper struct {
	svc       Service
	retention RetentionSource
	interval  time.Duration
}

// NewSweeper crea el sweeper. interval <= 0 lo deshabilita.
func NewSweeper(svc Service, retention RetentionSource, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, retention: retention, interval: interval}
}

// Run bloquea hasta que ctx se cancele.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce ejecuta una pasada con timeout propio.
func (s *Sweeper) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	log := logger.From(ctx).With(logger.Component("loginlog.sweeper"))
	days, err := s.retention(ctx)
	if err != nil {
		log.Warn("retention unavailable", logger.Err(err))
		return
	}
	if _, err := s.svc.Cleanup(ctx, days); err != nil {
		log.Error("sweep failed", logger.Err(err))
	}
}
