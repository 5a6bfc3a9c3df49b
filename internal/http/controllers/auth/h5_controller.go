package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	dto "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/dto/provider"
	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/authflow"
)

// H5Controller maneja el login silencioso dentro de la app del proveedor.
type H5Controller struct {
	flow     authflow.Service
	sessions SessionStore
}

func NewH5Controller(flow authflow.Service, sessions SessionStore) *H5Controller {
	return &H5Controller{flow: flow, sessions: sessions}
}

// Login maneja POST /api/provider/h5-login
//
// Body inválido o code vacío también pasan por el flow para que quede el
// registro del intento fallido.
func (c *H5Controller) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.H5LoginRequest
	decodeErr := helpers.DecodeJSON(w, r, &req)
	code := ""
	if decodeErr == nil {
		code = strings.TrimSpace(req.Code)
	}

	res, err := c.flow.H5Login(r.Context(), authflow.H5Request{
		Code:   code,
		Client: clientInfo(r),
		Establish: func(ctx context.Context, u *repository.User) error {
			_, err := c.sessions.Login(ctx, w, r, u.ID)
			return err
		},
	})
	if err != nil {
		switch {
		case code != "" || !errors.Is(err, autherr.ErrInvalidMiniAppCode):
			httperrors.WriteError(w, r, err)
		case decodeErr != nil:
			httperrors.WriteError(w, r, decodeErr)
		default:
			httperrors.WriteError(w, r, httperrors.ErrMissingCode.WithCause(err))
		}
		return
	}

	helpers.WriteSuccess(w, "登录成功", dto.LoginData{
		UserID:      res.User.ID,
		Username:    res.User.Username,
		DisplayName: res.User.DisplayName,
		AvatarURL:   res.User.AvatarURL,
		Registered:  res.Registered,
	})
}
