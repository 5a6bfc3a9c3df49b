package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica una violación de unicidad.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica datos de entrada inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyLinked: el usuario local o la identidad del proveedor ya tienen vínculo.
	ErrAlreadyLinked = fmt.Errorf("%w: identity already linked", ErrConflict)

	// ErrUsernameTaken / ErrEmailTaken distinguen qué constraint de app_user falló.
	ErrUsernameTaken = fmt.Errorf("%w: username taken", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("%w: email taken", ErrConflict)
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict (o uno de sus derivados).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
