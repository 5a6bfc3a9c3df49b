package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/config"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// Serve atiende HTTP hasta que ctx se cancela y luego hace shutdown con el
// timeout configurado.
func Serve(ctx context.Context, cfg *config.Config, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadTimeout:       config.Dur(cfg.Server.ReadTimeout),
		ReadHeaderTimeout: config.Dur(cfg.Server.ReadTimeout),
		WriteTimeout:      config.Dur(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
