package session

import "context"

// Actor es el usuario que ejecuta el request (sesión o bearer de admin).
type Actor struct {
	UserID   string
	Username string
	IsAdmin  bool

	// ViaToken indica autenticación por bearer token en lugar de cookie.
	ViaToken bool
}

type actorKey struct{}

// WithActor adjunta el actor al contexto.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom retorna el actor del contexto, o nil si el request es anónimo.
func ActorFrom(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey{}).(*Actor)
	return a
}
