package errors

import (
	"fmt"
	"net/http"
)

// AppError es el error estándar de la capa HTTP.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa, sólo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// FromError convierte cualquier error en AppError: los del dominio pasan por
// FromAuth, el resto es un 500 genérico que conserva la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return FromAuth(err)
}

// WithDetail devuelve una COPIA con el detalle agregado.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithMessage devuelve una COPIA con otro mensaje para el usuario.
func (e *AppError) WithMessage(msg string) *AppError {
	newErr := *e
	newErr.Message = msg
	return &newErr
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "bad_request",
		Message:    "请求参数无效",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "invalid_json",
		Message:    "请求体不是有效的 JSON",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingCode = &AppError{
		Code:       "missing_code",
		Message:    "授权码缺失",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrAuthFailed = &AppError{
		Code:       "auth_failed",
		Message:    "登录失败，请重试",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrCsrf = &AppError{
		Code:       "csrf_state_mismatch",
		Message:    "安全验证失败，请重试",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrCancelled = &AppError{
		Code:       "authorization_cancelled",
		Message:    "授权已取消",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrRegistrationDisabled = &AppError{
		Code:       "registration_disabled",
		Message:    "该钉钉账号尚未绑定论坛账号，且未开启自动注册",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUserAlreadyLinked = &AppError{
		Code:       "user_already_linked",
		Message:    "您的账号已绑定钉钉",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrProviderAlreadyLinked = &AppError{
		Code:       "provider_identity_already_linked",
		Message:    "该钉钉账号已被其他用户绑定",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrNotLinked = &AppError{
		Code:       "not_linked",
		Message:    "尚未绑定钉钉账号",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 401 / 403
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{
		Code:       "unauthenticated",
		Message:    "请先登录",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "forbidden",
		Message:    "权限不足",
		HTTPStatus: http.StatusForbidden,
	}

	ErrEnterpriseRestricted = &AppError{
		Code:       "enterprise_restricted",
		Message:    "您不属于允许登录的企业",
		HTTPStatus: http.StatusForbidden,
	}

	ErrFeatureDisabled = &AppError{
		Code:       "feature_disabled",
		Message:    "该功能已禁用",
		HTTPStatus: http.StatusForbidden,
	}

	ErrBindingRequired = &AppError{
		Code:       "binding_required",
		Message:    "请先绑定钉钉账号",
		HTTPStatus: http.StatusForbidden,
	}

	ErrProviderLoginOnly = &AppError{
		Code:       "provider_login_only",
		Message:    "仅允许使用钉钉登录",
		HTTPStatus: http.StatusForbidden,
	}
)

// ---------------------------------------------------------------------------------
// 404 / 405 / 429
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = &AppError{
		Code:       "not_found",
		Message:    "资源不存在",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "method_not_allowed",
		Message:    "不支持的请求方法",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrRateLimited = &AppError{
		Code:       "rate_limited",
		Message:    "请求过于频繁，请稍后再试",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// ---------------------------------------------------------------------------------
// 5xx
// ---------------------------------------------------------------------------------

var (
	ErrInternalServerError = &AppError{
		Code:       "internal",
		Message:    "服务器内部错误",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrProviderNotConfigured = &AppError{
		Code:       "provider_not_configured",
		Message:    "钉钉登录尚未配置",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrProviderUnavailable = &AppError{
		Code:       "provider_unavailable",
		Message:    "钉钉服务暂时不可用，请稍后重试",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "service_unavailable",
		Message:    "服务暂时不可用",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
