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

// ─── UserRepository ───

type userRepo struct{ pool *pgxpool.Pool }

const userColumns = `id::text, username, email, display_name, avatar_url, email_confirmed, is_admin, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.AvatarURL,
		&u.EmailConfirmed, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*repository.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE `+where, arg))
	if err == pgx.ErrNoRows || isInvalidID(err) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM app_user WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg: username exists: %w", err)
	}
	return exists, nil
}

func (r *userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM app_user WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg: email exists: %w", err)
	}
	return exists, nil
}

func (r *userRepo) Create(ctx context.Context, u *repository.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	const query = `
		INSERT INTO app_user (id, username, email, display_name, avatar_url, email_confirmed, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query, u.ID, u.Username, u.Email, u.DisplayName, u.AvatarURL,
		u.EmailConfirmed, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if code, constraint := pgCode(err); code == codeUniqueViolation {
			if constraint == "app_user_email_key" {
				return repository.ErrEmailTaken
			}
			return repository.ErrUsernameTaken
		}
		return fmt.Errorf("pg: create user: %w", err)
	}
	return nil
}

func (r *userRepo) Update(ctx context.Context, u *repository.User) error {
	u.UpdatedAt = time.Now().UTC()
	const query = `
		UPDATE app_user
		SET display_name = $2, avatar_url = $3, email = $4, email_confirmed = $5, updated_at = $6
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, u.ID, u.DisplayName, u.AvatarURL, u.Email, u.EmailConfirmed, u.UpdatedAt)
	if err != nil {
		if code, _ := pgCode(err); code == codeUniqueViolation {
			return repository.ErrEmailTaken
		}
		return fmt.Errorf("pg: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete confía en los FKs: el vínculo cae en cascada y los intentos quedan
// con user_id NULL.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if isInvalidID(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("pg: delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM app_user`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pg: count users: %w", err)
	}
	return n, nil
}
