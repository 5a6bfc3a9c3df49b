package helpers

import "context"

type requestIDKey struct{}

// WithRequestID guarda el id del request para logs y respuestas.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID retorna el id guardado por WithRequestID, o "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
