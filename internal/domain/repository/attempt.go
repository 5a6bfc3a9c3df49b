package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
)

// LoginAttempt es un registro de auditoría append-only.
type LoginAttempt struct {
	ID             int64
	UserID         string // vacío = NULL
	ProviderUserID string
	SourceIP       string
	UserAgent      string
	Method         types.LoginMethod
	Outcome        types.LoginOutcome
	FailureDetail  string
	OrganizationID string
	OccurredAt     time.Time
}

// LoginAttemptView agrega el username (si el usuario sigue existiendo).
type LoginAttemptView struct {
	LoginAttempt
	Username string
}

// AttemptFilter filtra listados y exportaciones. Start/End son inclusivos.
type AttemptFilter struct {
	Outcome types.LoginOutcome
	Start   *time.Time
	End     *time.Time
	Search  string // LIKE sobre source_ip, provider_user_id y username
	Limit   int    // 0 = sin límite (export)
	Offset  int
}

// LoginAttemptRepository persiste los intentos de login.
type LoginAttemptRepository interface {
	Append(ctx context.Context, a *LoginAttempt) error
	List(ctx context.Context, f AttemptFilter) ([]LoginAttemptView, int64, error)

	// DeleteBefore elimina los registros con occurred_at estrictamente menor a cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
