// Package events publica los hechos del dominio (login exitoso, vínculo creado
// o eliminado) hacia suscriptores desacoplados. La publicación es
// fire-and-forget: un suscriptor lento o caído no afecta al login.
package events

import (
	"context"
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
)

const (
	TopicLoginSucceeded   = "login.succeeded"
	TopicIdentityLinked   = "identity.linked"
	TopicIdentityUnlinked = "identity.unlinked"
)

// LoginSucceeded se emite tras establecer la sesión.
type LoginSucceeded struct {
	UserID         string
	Username       string
	ProviderUserID string
	Method         types.LoginMethod
	SourceIP       string
	At             time.Time
}

// IdentityLinked se emite al crear un vínculo (binding o auto-registro).
type IdentityLinked struct {
	UserID         string
	Username       string
	Email          string
	ProviderUserID string
	DisplayName    string
	Registered     bool // true si la cuenta local se creó en este login
	At             time.Time
}

// IdentityUnlinked se emite antes de borrar el vínculo.
type IdentityUnlinked struct {
	UserID         string
	Username       string
	ProviderUserID string
	ByAdmin        bool
	At             time.Time
}

// Publisher es lo que necesitan los services para emitir eventos.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// Nop descarta todo.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) {}
