// Package identity resuelve, crea y vincula cuentas locales a partir del
// perfil del proveedor.
package identity

import (
	"context"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/events"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/security/secretbox"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
)

// Service orquesta find-or-create, binding, unbinding y exenciones.
type Service interface {
	// ResolveOrCreate retorna la cuenta vinculada al perfil o, si el
	// auto-registro está activo, crea una nueva y la vincula.
	ResolveOrCreate(ctx context.Context, p *types.ProviderProfile) (*Resolution, error)

	// Bind vincula una cuenta existente. Nunca crea usuarios.
	Bind(ctx context.Context, user *repository.User, p *types.ProviderProfile) (*repository.IdentityLink, error)

	// Unbind elimina el vínculo del usuario; ErrNotLinked si no hay.
	Unbind(ctx context.Context, user *repository.User) error

	// UnbindLink es la baja administrativa por id de vínculo.
	UnbindLink(ctx context.Context, linkID string) error

	IsExempt(ctx context.Context, user *repository.User) (bool, error)
	IsBound(ctx context.Context, userID string) (bool, error)

	// LinkFor retorna el vínculo del usuario o ErrNotLinked.
	LinkFor(ctx context.Context, userID string) (*repository.IdentityLink, error)

	// RevealContact descifra móvil y email del vínculo.
	RevealContact(link *repository.IdentityLink) (Contact, error)

	ListLinks(ctx context.Context, f repository.LinkFilter) ([]repository.LinkWithUser, int64, error)
	Stats(ctx context.Context) (Stats, error)
}

// Resolution es el resultado de ResolveOrCreate.
type Resolution struct {
	User       *repository.User
	Link       *repository.IdentityLink
	Registered bool // la cuenta se creó en esta llamada
}

// Contact son los campos sensibles en claro.
type Contact struct {
	Mobile string
	Email  string
}

// Stats resume el estado de vinculación.
type Stats struct {
	TotalUsers int64 `json:"totalUsers"`
	BoundUsers int64 `json:"boundUsers"`
}

// SettingsLoader es el subconjunto de settings.Service que se usa aquí.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Values, error)
}

// Deps contiene las dependencias del service.
type Deps struct {
	Users    repository.UserRepository
	Links    repository.LinkRepository
	Settings SettingsLoader
	Box      *secretbox.Box
	Events   events.Publisher // opcional
}
