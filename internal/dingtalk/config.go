package dingtalk

import (
	"context"
	"strings"
)

// Config son las credenciales y restricciones leídas de los ajustes.
type Config struct {
	AppKey         string
	AppSecret      string
	AgentID        string
	CorpID         string
	EnterpriseOnly bool
	AllowedCorpIDs []string
}

// ConfigSource resuelve la config vigente en cada llamada, así los cambios de
// ajustes aplican sin reiniciar.
type ConfigSource interface {
	ProviderConfig(ctx context.Context) (Config, error)
}

// StaticConfig es un ConfigSource fijo.
type StaticConfig Config

func (s StaticConfig) ProviderConfig(context.Context) (Config, error) { return Config(s), nil }

// IsConfigured reporta si hay app key y secret.
func (c Config) IsConfigured() bool {
	return strings.TrimSpace(c.AppKey) != "" && strings.TrimSpace(c.AppSecret) != ""
}

// EnterpriseAllowed aplica la restricción por empresa. Sin restricción activa
// (o con lista vacía) todo corpId pasa; con restricción, un corpId vacío no pasa.
func (c Config) EnterpriseAllowed(orgID string) bool {
	if !c.EnterpriseOnly || len(c.AllowedCorpIDs) == 0 {
		return true
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return false
	}
	for _, id := range c.AllowedCorpIDs {
		if strings.TrimSpace(id) == orgID {
			return true
		}
	}
	return false
}
