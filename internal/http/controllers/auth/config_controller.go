package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/dto/provider"
	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
)

// ConfigController expone los flags públicos para el frontend.
type ConfigController struct {
	settings identity.SettingsLoader
}

func NewConfigController(settings identity.SettingsLoader) *ConfigController {
	return &ConfigController{settings: settings}
}

// Get maneja GET /api/provider/config
func (c *ConfigController) Get(w http.ResponseWriter, r *http.Request) {
	vals, err := c.settings.Load(r.Context())
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	p := vals.Provider()
	helpers.WriteSuccess(w, "", dto.PublicConfig{
		Enabled:         p.IsConfigured(),
		ShowLoginButton: vals.ShowLoginButton(),
		ShowOnIndex:     vals.ShowOnIndex(),
		OnlyLogin:       vals.OnlyProviderLogin(),
		ForceBind:       vals.ForceBind(),
		H5Enabled:       vals.EnableH5Login(),
		AgentID:         p.AgentID,
		CorpID:          p.CorpID,
	})
}
