package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// WithRecover convierte un panic del handler en un 500 genérico. El stack
// queda en el log; http.ErrAbortHandler se deja seguir para que net/http
// corte la conexión.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.From(r.Context()).Error("handler panic",
					logger.Component("recover"),
					logger.Path(r.URL.Path),
					logger.Any("panic", rec),
					zap.Stack("stack"),
				)
				errors.WriteError(w, r, errors.ErrInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
