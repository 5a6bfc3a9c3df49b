package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
)

// ─── LinkRepository ───

type linkRepo struct{ pool *pgxpool.Pool }

const linkColumns = `l.id::text, l.user_id::text, l.provider_user_id, l.provider_open_id, l.display_name, l.avatar_url,
	l.mobile_enc, l.email_enc, l.organization_id, l.created_at, l.updated_at`

func scanLinkInto(l *repository.IdentityLink, extra ...any) []any {
	return append([]any{&l.ID, &l.UserID, &l.ProviderUserID, &l.ProviderOpenID, &l.DisplayName, &l.AvatarURL,
		&l.MobileEncrypted, &l.EmailEncrypted, &l.OrganizationID, &l.CreatedAt, &l.UpdatedAt}, extra...)
}

func (r *linkRepo) getOne(ctx context.Context, where string, arg any) (*repository.IdentityLink, error) {
	var l repository.IdentityLink
	err := r.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM provider_identity_link l WHERE `+where, arg).Scan(scanLinkInto(&l)...)
	if err == pgx.ErrNoRows || isInvalidID(err) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get link: %w", err)
	}
	return &l, nil
}

func (r *linkRepo) GetByID(ctx context.Context, id string) (*repository.IdentityLink, error) {
	return r.getOne(ctx, `l.id = $1`, id)
}

func (r *linkRepo) GetByProviderUserID(ctx context.Context, providerUserID string) (*repository.IdentityLink, error) {
	return r.getOne(ctx, `l.provider_user_id = $1`, providerUserID)
}

func (r *linkRepo) GetByUserID(ctx context.Context, userID string) (*repository.IdentityLink, error) {
	return r.getOne(ctx, `l.user_id = $1`, userID)
}

func (r *linkRepo) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM provider_identity_link WHERE user_id = $1)`, userID).Scan(&exists)
	if isInvalidID(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pg: link exists for user: %w", err)
	}
	return exists, nil
}

func (r *linkRepo) ExistsForProviderUser(ctx context.Context, providerUserID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM provider_identity_link WHERE provider_user_id = $1)`, providerUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg: link exists for provider user: %w", err)
	}
	return exists, nil
}

func (r *linkRepo) Create(ctx context.Context, l *repository.IdentityLink) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	const query = `
		INSERT INTO provider_identity_link
			(id, user_id, provider_user_id, provider_open_id, display_name, avatar_url,
			 mobile_enc, email_enc, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query, l.ID, l.UserID, l.ProviderUserID, l.ProviderOpenID, l.DisplayName, l.AvatarURL,
		l.MobileEncrypted, l.EmailEncrypted, l.OrganizationID, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if code, _ := pgCode(err); code == codeUniqueViolation {
			return repository.ErrAlreadyLinked
		}
		return fmt.Errorf("pg: create link: %w", err)
	}
	return nil
}

func (r *linkRepo) Update(ctx context.Context, l *repository.IdentityLink) error {
	l.UpdatedAt = time.Now().UTC()
	const query = `
		UPDATE provider_identity_link
		SET provider_open_id = $2, display_name = $3, avatar_url = $4, mobile_enc = $5,
		    email_enc = $6, organization_id = $7, updated_at = $8
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, l.ID, l.ProviderOpenID, l.DisplayName, l.AvatarURL,
		l.MobileEncrypted, l.EmailEncrypted, l.OrganizationID, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pg: update link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *linkRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM provider_identity_link WHERE id = $1`, id)
	if isInvalidID(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("pg: delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *linkRepo) List(ctx context.Context, f repository.LinkFilter) ([]repository.LinkWithUser, int64, error) {
	where := `TRUE`
	args := []any{}
	if f.Search != "" {
		args = append(args, likePattern(f.Search))
		where = `(l.display_name ILIKE $1 OR l.provider_user_id ILIKE $1 OR u.username ILIKE $1)`
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM provider_identity_link l LEFT JOIN app_user u ON u.id = l.user_id WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg: count links: %w", err)
	}

	query := `SELECT ` + linkColumns + `, COALESCE(u.username, ''), COALESCE(u.email, '')
		FROM provider_identity_link l
		LEFT JOIN app_user u ON u.id = l.user_id
		WHERE ` + where + ` ORDER BY l.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg: list links: %w", err)
	}
	defer rows.Close()

	var out []repository.LinkWithUser
	for rows.Next() {
		var lw repository.LinkWithUser
		if err := rows.Scan(scanLinkInto(&lw.IdentityLink, &lw.Username, &lw.UserEmail)...); err != nil {
			return nil, 0, fmt.Errorf("pg: scan link: %w", err)
		}
		out = append(out, lw)
	}
	return out, total, rows.Err()
}

func (r *linkRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM provider_identity_link`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pg: count links: %w", err)
	}
	return n, nil
}
