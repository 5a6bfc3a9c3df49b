package middlewares

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
)

const requestIDHeader = "X-Request-ID"

// WithRequestID propaga el X-Request-ID del cliente o asigna uno nuevo.
// Un id inválido (largo o con caracteres fuera de [A-Za-z0-9._-]) se reemplaza.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if !validRequestID(rid) {
				rid = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, rid)
			next.ServeHTTP(w, r.WithContext(helpers.WithRequestID(r.Context(), rid)))
		})
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
