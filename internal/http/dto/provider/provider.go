// Package provider contiene los DTOs de la API de login y vinculación.
package provider

import "time"

// ─── Requests ───

// H5LoginRequest es el body de POST /api/provider/h5-login.
type H5LoginRequest struct {
	Code string `json:"code"`
}

// BindRequest es el body de POST /api/provider/bind.
type BindRequest struct {
	Code string `json:"code"`
	Type string `json:"type,omitempty"` // scan (default) | h5
}

// ─── Responses ───

// LoginData es el data de un login H5 exitoso.
type LoginData struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Registered  bool   `json:"registered"`
}

// BindData es el data de un binding exitoso.
type BindData struct {
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// BindStatus es la respuesta de GET /api/provider/bind-status.
type BindStatus struct {
	Bound          bool       `json:"bound"`
	DisplayName    string     `json:"displayName,omitempty"`
	AvatarURL      string     `json:"avatarUrl,omitempty"`
	ProviderUserID string     `json:"providerUserId,omitempty"`
	Mobile         string     `json:"mobile,omitempty"`
	Email          string     `json:"email,omitempty"`
	BoundAt        *time.Time `json:"boundAt,omitempty"`
}

// PublicConfig son los flags que consume el frontend del foro.
type PublicConfig struct {
	Enabled         bool   `json:"enabled"`
	ShowLoginButton bool   `json:"showLoginButton"`
	ShowOnIndex     bool   `json:"showOnIndex"`
	OnlyLogin       bool   `json:"onlyLogin"`
	ForceBind       bool   `json:"forceBind"`
	H5Enabled       bool   `json:"h5Enabled"`
	AgentID         string `json:"agentId,omitempty"`
	CorpID          string `json:"corpId,omitempty"`
}

// LinkItem es una fila del listado admin de vínculos.
type LinkItem struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username,omitempty"`
	ProviderUserID string    `json:"providerUserId"`
	DisplayName    string    `json:"displayName,omitempty"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PageMeta describe la paginación de un listado.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// LinksPage es la respuesta de GET /api/provider/users.
type LinksPage struct {
	Success bool       `json:"success"`
	Data    []LinkItem `json:"data"`
	Meta    PageMeta   `json:"meta"`
}

// Stats es el data de GET /api/provider/stats.
type Stats struct {
	TotalUsers int64   `json:"totalUsers"`
	BoundUsers int64   `json:"boundUsers"`
	Percentage float64 `json:"percentage"`
}
