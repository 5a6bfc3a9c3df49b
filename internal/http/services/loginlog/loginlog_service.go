// Package loginlog registra, lista, exporta y purga los intentos de login.
package loginlog

import (
	"context"
	"io"
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
)

const (
	DefaultPerPage = 20
	MinPerPage     = 10
	MaxPerPage     = 100

	// MaxUserAgentRunes coincide con el VARCHAR(500) de la tabla.
	MaxUserAgentRunes = 500

	// TimeLayout es el formato de fecha de la exportación.
	TimeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// Service es el registro de auditoría de logins.
type Service interface {
	// Record agrega un intento. cause es el error del intento fallido (nil
	// si fue exitoso); su texto va a failure_detail si éste viene vacío.
	// Nunca falla el flujo de login: el caller sólo loguea el error.
	Record(ctx context.Context, a *repository.LoginAttempt, cause error) error

	List(ctx context.Context, q Query) (*Page, error)

	// Export escribe el CSV (con BOM UTF-8) de todos los registros que
	// cumplen q, ignorando la paginación. Retorna las filas escritas.
	Export(ctx context.Context, w io.Writer, q Query) (int, error)

	// Cleanup elimina los registros más viejos que days días. days <= 0 no
	// borra nada.
	Cleanup(ctx context.Context, days int) (int64, error)
}

// Query son los filtros del listado, tal como llegan por query string.
type Query struct {
	Page      int
	PerPage   int
	Status    string // success | failed | "" (todos)
	StartDate string // YYYY-MM-DD, inclusivo desde 00:00:00
	EndDate   string // YYYY-MM-DD, inclusivo hasta 23:59:59
	Search    string
}

// Item es una fila del listado.
type Item struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"userId,omitempty"`
	Username       string    `json:"username,omitempty"`
	ProviderUserID string    `json:"providerUserId,omitempty"`
	LoginIP        string    `json:"loginIp,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	LoginType      string    `json:"loginType"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Meta describe la paginación.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// Page es el resultado de List.
type Page struct {
	Items []Item `json:"data"`
	Meta  Meta   `json:"meta"`
}

// Deps contiene las dependencias del service.
type Deps struct {
	Attempts repository.LoginAttemptRepository
	Location *time.Location // zona para interpretar fechas; default UTC
}

func itemFrom(v repository.LoginAttemptView) Item {
	return Item{
		ID:             v.ID,
		UserID:         v.UserID,
		Username:       v.Username,
		ProviderUserID: v.ProviderUserID,
		LoginIP:        v.SourceIP,
		UserAgent:      v.UserAgent,
		LoginType:      string(v.Method),
		Status:         string(v.Outcome),
		ErrorMessage:   v.FailureDetail,
		OrganizationID: v.OrganizationID,
		CreatedAt:      v.OccurredAt,
	}
}

// methodLabel es la etiqueta de la columna "登录类型" del CSV.
func methodLabel(m types.LoginMethod) string {
	switch m {
	case types.LoginMethodScan:
		return "扫码登录"
	case types.LoginMethodH5:
		return "H5免登"
	case types.LoginMethodRedirect:
		return "跳转登录"
	}
	return string(m)
}

func outcomeLabel(o types.LoginOutcome) string {
	if o == types.OutcomeSuccess {
		return "成功"
	}
	return "失败"
}
