package account

import (
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/authflow"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
)

// Controllers agrupa los controllers del dominio account.
type Controllers struct {
	Binding *BindingController
}

// NewControllers crea el agregador de controllers account.
func NewControllers(flow authflow.Service, ident identity.Service) *Controllers {
	return &Controllers{Binding: NewBindingController(flow, ident)}
}
