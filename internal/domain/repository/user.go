package repository

import (
	"context"
	"time"
)

// User es la cuenta local. El login nativo (password) es del host; aquí sólo
// se crean cuentas desde el proveedor y se leen para binding/exenciones.
type User struct {
	ID             string
	Username       string
	Email          string
	DisplayName    string
	AvatarURL      string
	EmailConfirmed bool
	IsAdmin        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserRepository accede a las cuentas locales.
type UserRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UsernameExists / EmailExists son chequeos baratos previos a Create.
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// Create inserta el usuario; completa ID/CreatedAt si vienen vacíos.
	// Retorna ErrUsernameTaken o ErrEmailTaken ante duplicados.
	Create(ctx context.Context, u *User) error

	// Update persiste display_name, avatar_url, email, email_confirmed.
	Update(ctx context.Context, u *User) error

	// Delete elimina el usuario; el vínculo se borra en cascada y los
	// intentos de login quedan con user_id NULL.
	Delete(ctx context.Context, id string) error

	// Count retorna el total de usuarios.
	Count(ctx context.Context) (int64, error)
}
