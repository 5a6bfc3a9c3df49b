package middlewares

import (
	"context"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

// ctxUserKey guarda el usuario de la sesión
const ctxUserKey ctxKey = "user"

// WithUser inyecta el usuario autenticado en el contexto
func WithUser(ctx context.Context, u *repository.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

// GetUser retorna el usuario de la sesión, o nil. Un actor autenticado por
// bearer de admin no tiene usuario asociado.
func GetUser(ctx context.Context) *repository.User {
	u, _ := ctx.Value(ctxUserKey).(*repository.User)
	return u
}
