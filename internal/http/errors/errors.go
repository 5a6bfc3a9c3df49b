// Package errors traduce los errores del dominio a respuestas HTTP con
// mensajes genéricos. El detalle interno nunca llega al cliente.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// errorResponse es el cuerpo JSON de un error.
type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// byCode mapea autherr.Classify a la respuesta pública.
var byCode = map[string]*AppError{
	autherr.CodeProviderNotConfigured:    ErrProviderNotConfigured,
	autherr.CodeProviderUnavailable:      ErrProviderUnavailable,
	autherr.CodeInvalidAuthorizationCode: ErrAuthFailed.WithMessage("授权码无效或已过期，请重试"),
	autherr.CodeAuthorizationCancelled:   ErrCancelled,
	autherr.CodeInvalidMiniAppCode:       ErrAuthFailed.WithMessage("免登授权码无效，请重试"),
	autherr.CodeProfileUnavailable:       ErrProviderUnavailable.WithMessage("获取钉钉用户信息失败"),
	autherr.CodeMissingProviderIdentity:  ErrAuthFailed,
	autherr.CodeEnterpriseRestricted:     ErrEnterpriseRestricted,
	autherr.CodeRegistrationDisabled:     ErrRegistrationDisabled,
	autherr.CodeUserAlreadyLinked:        ErrUserAlreadyLinked,
	autherr.CodeProviderAlreadyLinked:    ErrProviderAlreadyLinked,
	autherr.CodeAlreadyLinked:            ErrProviderAlreadyLinked.WithMessage("绑定冲突，请重试"),
	autherr.CodeNotLinked:                ErrNotLinked,
	autherr.CodeCsrfStateMismatch:        ErrCsrf,
	autherr.CodeUnauthenticated:          ErrUnauthorized,
	autherr.CodeForbidden:                ErrForbidden,
	autherr.CodeFeatureDisabled:          ErrFeatureDisabled,
}

// FromAuth convierte un error del dominio en su AppError público.
func FromAuth(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := byCode[autherr.Classify(err)]; ok {
		return appErr.WithCause(err)
	}
	switch {
	case stderrors.Is(err, repository.ErrInvalidInput):
		return ErrBadRequest.WithCause(err)
	case repository.IsNotFound(err):
		return ErrNotFound.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// Message retorna el mensaje genérico para err (páginas HTML).
func Message(err error) string {
	return FromError(err).Message
}

// WriteError escribe la respuesta JSON de err. Los 5xx se loguean con la causa.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)

	if appErr.HTTPStatus >= 500 && r != nil {
		logger.From(r.Context()).Error("request failed",
			logger.String("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
