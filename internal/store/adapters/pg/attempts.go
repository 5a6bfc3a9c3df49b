package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
)

// ─── LoginAttemptRepository ───

type attemptRepo struct{ pool *pgxpool.Pool }

func (r *attemptRepo) Append(ctx context.Context, a *repository.LoginAttempt) error {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO provider_login_attempt
			(user_id, provider_user_id, source_ip, user_agent, method, outcome, failure_detail, organization_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query, nullIfEmpty(a.UserID), a.ProviderUserID, a.SourceIP, a.UserAgent,
		string(a.Method), string(a.Outcome), a.FailureDetail, a.OrganizationID, a.OccurredAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("pg: append login attempt: %w", err)
	}
	return nil
}

// attemptWhere arma el WHERE compartido por el conteo y el listado.
func attemptWhere(f repository.AttemptFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Outcome != "" {
		add(`a.outcome = $%d`, string(f.Outcome))
	}
	if f.Start != nil {
		add(`a.occurred_at >= $%d`, f.Start.UTC())
	}
	if f.End != nil {
		add(`a.occurred_at <= $%d`, f.End.UTC())
	}
	if f.Search != "" {
		args = append(args, likePattern(f.Search))
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(a.source_ip ILIKE $%d OR a.provider_user_id ILIKE $%d OR u.username ILIKE $%d)`, n, n, n))
	}
	if len(conds) == 0 {
		return `TRUE`, args
	}
	return strings.Join(conds, ` AND `), args
}

func (r *attemptRepo) List(ctx context.Context, f repository.AttemptFilter) ([]repository.LoginAttemptView, int64, error) {
	where, args := attemptWhere(f)
	const from = ` FROM provider_login_attempt a LEFT JOIN app_user u ON u.id = a.user_id WHERE `

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg: count login attempts: %w", err)
	}

	query := `SELECT a.id, COALESCE(a.user_id::text, ''), a.provider_user_id, a.source_ip, a.user_agent, a.method,
		a.outcome, a.failure_detail, a.organization_id, a.occurred_at, COALESCE(u.username, '')` +
		from + where + ` ORDER BY a.occurred_at DESC, a.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg: list login attempts: %w", err)
	}
	defer rows.Close()

	var out []repository.LoginAttemptView
	for rows.Next() {
		var v repository.LoginAttemptView
		var method, outcome string
		if err := rows.Scan(&v.ID, &v.UserID, &v.ProviderUserID, &v.SourceIP, &v.UserAgent, &method,
			&outcome, &v.FailureDetail, &v.OrganizationID, &v.OccurredAt, &v.Username); err != nil {
			return nil, 0, fmt.Errorf("pg: scan login attempt: %w", err)
		}
		v.Method, v.Outcome = types.LoginMethod(method), types.LoginOutcome(outcome)
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *attemptRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM provider_login_attempt WHERE occurred_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pg: delete login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ─── SettingRepository ───

type settingRepo struct{ pool *pgxpool.Pool }

func (r *settingRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.pool.QueryRow(ctx, `SELECT value FROM provider_setting WHERE key = $1`, key).Scan(&v)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pg: get setting: %w", err)
	}
	return v, true, nil
}

func (r *settingRepo) SetSetting(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO provider_setting (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("pg: set setting: %w", err)
	}
	return nil
}

func (r *settingRepo) DeleteSetting(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM provider_setting WHERE key = $1`, key); err != nil {
		return fmt.Errorf("pg: delete setting: %w", err)
	}
	return nil
}

func (r *settingRepo) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM provider_setting`)
	if err != nil {
		return nil, fmt.Errorf("pg: list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("pg: scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
