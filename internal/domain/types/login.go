// Package types contiene tipos de valor compartidos entre capas.
package types

// LoginMethod es el canal por el que se intentó el login.
type LoginMethod string

const (
	LoginMethodScan     LoginMethod = "scan"
	LoginMethodH5       LoginMethod = "h5"
	LoginMethodRedirect LoginMethod = "redirect"
)

// Valid reporta si m es uno de los métodos conocidos.
func (m LoginMethod) Valid() bool {
	switch m {
	case LoginMethodScan, LoginMethodH5, LoginMethodRedirect:
		return true
	}
	return false
}

// LoginOutcome es el resultado de un intento de login.
type LoginOutcome string

const (
	OutcomeSuccess LoginOutcome = "success"
	OutcomeFailed  LoginOutcome = "failed"
)

// Valid reporta si o es un resultado conocido.
func (o LoginOutcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailed
}
