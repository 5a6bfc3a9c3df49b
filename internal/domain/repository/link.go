package repository

import (
	"context"
	"time"
)

// IdentityLink vincula un usuario local con una identidad del proveedor.
// Tanto UserID como ProviderUserID son únicos.
type IdentityLink struct {
	ID              string
	UserID          string
	ProviderUserID  string
	ProviderOpenID  string
	DisplayName     string
	AvatarURL       string
	MobileEncrypted string
	EmailEncrypted  string
	OrganizationID  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LinkWithUser es una fila del listado de administración.
type LinkWithUser struct {
	IdentityLink
	Username  string
	UserEmail string
}

// LinkFilter filtra el listado de vínculos.
type LinkFilter struct {
	Search string // LIKE sobre display_name, provider_user_id y username
	Limit  int
	Offset int
}

// LinkRepository es el IdentityLinkStore.
type LinkRepository interface {
	GetByID(ctx context.Context, id string) (*IdentityLink, error)
	GetByProviderUserID(ctx context.Context, providerUserID string) (*IdentityLink, error)
	GetByUserID(ctx context.Context, userID string) (*IdentityLink, error)

	ExistsForUser(ctx context.Context, userID string) (bool, error)
	ExistsForProviderUser(ctx context.Context, providerUserID string) (bool, error)

	// Create inserta el vínculo. La unicidad la garantizan constraints de la
	// base: ante una violación retorna ErrAlreadyLinked.
	Create(ctx context.Context, l *IdentityLink) error

	// Update reescribe los campos de perfil y updated_at.
	Update(ctx context.Context, l *IdentityLink) error

	// Delete retorna ErrNotFound si el vínculo no existe.
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, f LinkFilter) ([]LinkWithUser, int64, error)
	Count(ctx context.Context) (int64, error)
}
