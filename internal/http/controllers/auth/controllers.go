// Package auth contiene los controllers de login con el proveedor.
package auth

import (
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/authflow"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
)

// Controllers agrupa los controllers del dominio auth.
type Controllers struct {
	Provider *ProviderController
	H5       *H5Controller
	Config   *ConfigController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(flow authflow.Service, sessions SessionStore, settings identity.SettingsLoader, cfg Config) *Controllers {
	return &Controllers{
		Provider: NewProviderController(flow, sessions, settings, cfg),
		H5:       NewH5Controller(flow, sessions),
		Config:   NewConfigController(settings),
	}
}
