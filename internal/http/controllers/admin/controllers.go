package admin

import (
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/loginlog"
)

// Controllers agrupa los controllers del dominio admin.
type Controllers struct {
	Logs  *LogsController
	Links *LinksController
}

// NewControllers crea el agregador de controllers admin.
func NewControllers(logs loginlog.Service, ident identity.Service, settings identity.SettingsLoader) *Controllers {
	return &Controllers{
		Logs:  NewLogsController(logs, settings),
		Links: NewLinksController(ident),
	}
}
