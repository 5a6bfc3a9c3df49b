// Package account contiene los controllers de vinculación del usuario logueado.
package account

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	dto "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/dto/provider"
	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/authflow"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// BindingController maneja bind, unbind y estado del vínculo.
type BindingController struct {
	flow     authflow.Service
	identity identity.Service
}

// NewBindingController crea el controller.
func NewBindingController(flow authflow.Service, ident identity.Service) *BindingController {
	return &BindingController{flow: flow, identity: ident}
}

// Bind maneja POST /api/provider/bind
func (c *BindingController) Bind(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	if user == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}

	// Body inválido, type desconocido o code vacío también pasan por el
	// flow para que quede el registro del intento fallido.
	var req dto.BindRequest
	decodeErr := helpers.DecodeJSON(w, r, &req)
	code, bindType := "", authflow.BindScan
	if decodeErr == nil {
		code = strings.TrimSpace(req.Code)
		if t := strings.ToLower(strings.TrimSpace(req.Type)); t != "" {
			bindType = authflow.BindType(t)
		}
	}

	link, err := c.flow.Bind(r.Context(), authflow.BindRequest{
		User:   user,
		Code:   code,
		Type:   bindType,
		Client: authflow.ClientInfo{IP: helpers.ClientIP(r), UserAgent: r.UserAgent()},
	})
	if err != nil {
		switch {
		case decodeErr != nil:
			httperrors.WriteError(w, r, decodeErr)
		case code == "" && errors.Is(err, autherr.ErrInvalidAuthorizationCode):
			httperrors.WriteError(w, r, httperrors.ErrMissingCode.WithCause(err))
		case bindType != authflow.BindScan && bindType != authflow.BindH5 && errors.Is(err, repository.ErrInvalidInput):
			httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("type must be scan or h5").WithCause(err))
		default:
			httperrors.WriteError(w, r, err)
		}
		return
	}

	helpers.WriteSuccess(w, "绑定成功", dto.BindData{
		DisplayName: link.DisplayName,
		AvatarURL:   link.AvatarURL,
	})
}

// Unbind maneja DELETE /api/provider/unbind
func (c *BindingController) Unbind(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	if user == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}
	if err := c.identity.Unbind(r.Context(), user); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteSuccess(w, "解绑成功", nil)
}

// Status maneja GET /api/provider/bind-status
func (c *BindingController) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middlewares.GetUser(ctx)
	if user == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}

	link, err := c.identity.LinkFor(ctx, user.ID)
	if err != nil {
		if errors.Is(err, autherr.ErrNotLinked) {
			helpers.WriteJSON(w, http.StatusOK, dto.BindStatus{Bound: false})
			return
		}
		httperrors.WriteError(w, r, err)
		return
	}

	st := dto.BindStatus{
		Bound:          true,
		DisplayName:    link.DisplayName,
		AvatarURL:      link.AvatarURL,
		ProviderUserID: link.ProviderUserID,
		BoundAt:        &link.CreatedAt,
	}
	if contact, err := c.identity.RevealContact(link); err == nil {
		st.Mobile, st.Email = contact.Mobile, contact.Email
	} else {
		logger.From(ctx).Warn("contact not decrypted",
			logger.Layer("controller"), logger.Op("BindingController.Status"), logger.LinkID(link.ID), logger.Err(err))
	}
	helpers.WriteJSON(w, http.StatusOK, st)
}
