// Package autherr define la taxonomía de fallos del flujo de login/binding.
//
// Los errores se envuelven con fmt.Errorf("%w: detalle", ErrX); el detalle va
// al registro de auditoría y nunca al usuario final. Classify devuelve un
// código estable para métricas, logs y el mapeo HTTP.
package autherr

import (
	"errors"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
)

var (
	ErrProviderNotConfigured    = errors.New("provider not configured")
	ErrProviderUnavailable      = errors.New("provider unavailable")
	ErrInvalidAuthorizationCode = errors.New("invalid authorization code")
	ErrAuthorizationCancelled   = errors.New("authorization cancelled")
	ErrInvalidMiniAppCode       = errors.New("invalid mini-app code")
	ErrProfileUnavailable       = errors.New("profile unavailable")
	ErrMissingProviderIdentity  = errors.New("missing provider identity")
	ErrEnterpriseRestricted     = errors.New("enterprise restriction: user not in allowed enterprise")
	ErrRegistrationDisabled     = errors.New("registration disabled")
	ErrNotLinked                = errors.New("identity not linked")
	ErrCsrfStateMismatch        = errors.New("invalid state parameter (CSRF protection)")
	ErrUnauthenticated          = errors.New("authentication required")
	ErrForbidden                = errors.New("forbidden")
	ErrFeatureDisabled          = errors.New("feature disabled")

	// ErrAlreadyLinked es el mismo sentinel que usa el store ante una
	// violación de unicidad del vínculo.
	ErrAlreadyLinked = repository.ErrAlreadyLinked

	// Variantes específicas; ambas matchean ErrAlreadyLinked con errors.Is.
	ErrUserAlreadyLinked             error = &linkConflict{msg: "local user already linked"}
	ErrProviderIdentityAlreadyLinked error = &linkConflict{msg: "provider identity already linked to another user"}
)

type linkConflict struct{ msg string }

func (e *linkConflict) Error() string { return e.msg }

func (e *linkConflict) Is(target error) bool {
	return target == ErrAlreadyLinked || target == repository.ErrConflict
}

// Códigos estables devueltos por Classify.
const (
	CodeProviderNotConfigured    = "provider_not_configured"
	CodeProviderUnavailable      = "provider_unavailable"
	CodeInvalidAuthorizationCode = "invalid_authorization_code"
	CodeAuthorizationCancelled   = "authorization_cancelled"
	CodeInvalidMiniAppCode       = "invalid_mini_app_code"
	CodeProfileUnavailable       = "profile_unavailable"
	CodeMissingProviderIdentity  = "missing_provider_identity"
	CodeEnterpriseRestricted     = "enterprise_restricted"
	CodeRegistrationDisabled     = "registration_disabled"
	CodeUserAlreadyLinked        = "user_already_linked"
	CodeProviderAlreadyLinked    = "provider_identity_already_linked"
	CodeAlreadyLinked            = "already_linked"
	CodeNotLinked                = "not_linked"
	CodeCsrfStateMismatch        = "csrf_state_mismatch"
	CodeUnauthenticated          = "unauthenticated"
	CodeForbidden                = "forbidden"
	CodeFeatureDisabled          = "feature_disabled"
	CodeInternal                 = "internal"
)

// El orden importa: las variantes específicas antes que ErrAlreadyLinked.
var classes = []struct {
	err  error
	code string
}{
	{ErrProviderNotConfigured, CodeProviderNotConfigured},
	{ErrProviderUnavailable, CodeProviderUnavailable},
	{ErrInvalidAuthorizationCode, CodeInvalidAuthorizationCode},
	{ErrAuthorizationCancelled, CodeAuthorizationCancelled},
	{ErrInvalidMiniAppCode, CodeInvalidMiniAppCode},
	{ErrProfileUnavailable, CodeProfileUnavailable},
	{ErrMissingProviderIdentity, CodeMissingProviderIdentity},
	{ErrEnterpriseRestricted, CodeEnterpriseRestricted},
	{ErrRegistrationDisabled, CodeRegistrationDisabled},
	{ErrUserAlreadyLinked, CodeUserAlreadyLinked},
	{ErrProviderIdentityAlreadyLinked, CodeProviderAlreadyLinked},
	{ErrAlreadyLinked, CodeAlreadyLinked},
	{ErrNotLinked, CodeNotLinked},
	{ErrCsrfStateMismatch, CodeCsrfStateMismatch},
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrForbidden, CodeForbidden},
	{ErrFeatureDisabled, CodeFeatureDisabled},
}

// Classify retorna el código estable del error, o CodeInternal.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
