// Package authflow implementa los tres protocolos de entrada (popup con
// redirect, H5 silencioso y binding por API) sobre el núcleo de resolución
// de identidad. Es agnóstico de HTTP: los controllers traducen request y
// respuesta, y proveen cómo establecer la sesión.
package authflow

import (
	"context"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/dingtalk"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/events"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/loginlog"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/session"
)

// Service es el AuthFlowController sin la capa HTTP.
type Service interface {
	// Start guarda la autorización pendiente y retorna la URL del proveedor.
	// Falla con ErrProviderNotConfigured antes de tocar la sesión.
	Start(ctx context.Context, req StartRequest) (string, error)

	// Callback procesa el retorno del proveedor. Escribe exactamente un
	// registro de auditoría, sea cual sea el resultado.
	Callback(ctx context.Context, req CallbackRequest) (*Result, error)

	// H5Login es el login silencioso dentro de la app del proveedor.
	H5Login(ctx context.Context, req H5Request) (*Result, error)

	// Bind vincula la cuenta del actor con un código scan o h5.
	Bind(ctx context.Context, req BindRequest) (*repository.IdentityLink, error)
}

// Provider es el subconjunto de dingtalk.Client que usa el flujo.
type Provider interface {
	Config(ctx context.Context) (dingtalk.Config, error)
	AuthorizationURL(cfg dingtalk.Config, redirectURI, state string) string
	ExchangeCode(ctx context.Context, code string) (*dingtalk.UserToken, error)
	FetchUserProfile(ctx context.Context, tok *dingtalk.UserToken) (*types.ProviderProfile, error)
	FetchProfileByMiniAppCode(ctx context.Context, code string) (*types.ProviderProfile, error)
}

// PendingStore guarda la autorización pendiente por sesión.
type PendingStore interface {
	PutPending(ctx context.Context, sid string, p session.Pending) error
	TakePending(ctx context.Context, sid string) (*session.Pending, error)
}

// Establisher inicia la sesión del usuario autenticado (cookie, rotación).
type Establisher func(ctx context.Context, user *repository.User) error

// ClientInfo es el origen del request, para auditoría.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type StartRequest struct {
	SessionID   string
	BindMode    bool
	Referer     string
	RedirectURI string
}

type CallbackRequest struct {
	SessionID string
	Code      string
	State     string
	Error     string // parámetro error del proveedor (usuario canceló)

	// Actor es el usuario logueado; sólo se usa en modo binding.
	Actor     *repository.User
	Client    ClientInfo
	Establish Establisher
}

type H5Request struct {
	Code      string
	Client    ClientInfo
	Establish Establisher
}

// BindType es el tipo de código que trae POST /bind.
type BindType string

const (
	BindScan BindType = "scan"
	BindH5   BindType = "h5"
)

type BindRequest struct {
	User   *repository.User
	Code   string
	Type   BindType
	Client ClientInfo
}

// Result describe un callback o login H5 exitoso.
type Result struct {
	User       *repository.User
	Link       *repository.IdentityLink
	Registered bool
	BindMode   bool
	Referer    string
}

// Deps contiene las dependencias del service.
type Deps struct {
	Provider Provider
	Identity identity.Service
	Logs     loginlog.Service
	Pending  PendingStore
	Settings identity.SettingsLoader
	Events   events.Publisher // opcional
}
