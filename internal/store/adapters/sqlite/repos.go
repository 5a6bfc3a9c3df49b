package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
)

// ─── UserRepository ───

type userRepo struct{ db *gorm.DB }

func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*repository.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).Where(where, arg).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get user: %w", err)
	}
	return m.toDomain(), nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return r.getOne(ctx, "lower(email) = lower(?)", email)
}

func (r *userRepo) exists(ctx context.Context, where string, arg any) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Where(where, arg).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("sqlite: user exists: %w", err)
	}
	return n > 0, nil
}

func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "lower(email) = lower(?)", email)
}

func (r *userRepo) Create(ctx context.Context, u *repository.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.UpdatedAt = u.CreatedAt

	m := userModel{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		AvatarURL:      u.AvatarURL,
		EmailConfirmed: u.EmailConfirmed,
		IsAdmin:        u.IsAdmin,
		CreatedAt:      u.CreatedAt.UTC(),
		UpdatedAt:      u.UpdatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if col, ok := uniqueViolation(err); ok {
			if strings.HasSuffix(col, ".email") {
				return repository.ErrEmailTaken
			}
			return repository.ErrUsernameTaken
		}
		return fmt.Errorf("sqlite: create user: %w", err)
	}
	return nil
}

func (r *userRepo) Update(ctx context.Context, u *repository.User) error {
	u.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"display_name":    u.DisplayName,
		"avatar_url":      u.AvatarURL,
		"email":           u.Email,
		"email_confirmed": u.EmailConfirmed,
		"updated_at":      u.UpdatedAt,
	})
	if res.Error != nil {
		if _, ok := uniqueViolation(res.Error); ok {
			return repository.ErrEmailTaken
		}
		return fmt.Errorf("sqlite: update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete aplica la cascada explícitamente: no depende de que la conexión
// tenga foreign_keys activado.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&attemptModel{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("sqlite: detach attempts: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&linkModel{}).Error; err != nil {
			return fmt.Errorf("sqlite: delete link: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&userModel{})
		if res.Error != nil {
			return fmt.Errorf("sqlite: delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("sqlite: count users: %w", err)
	}
	return n, nil
}

// ─── LinkRepository ───

type linkRepo struct{ db *gorm.DB }

func (r *linkRepo) getOne(ctx context.Context, where string, arg any) (*repository.IdentityLink, error) {
	var m linkModel
	err := r.db.WithContext(ctx).Where(where, arg).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get link: %w", err)
	}
	l := m.toDomain()
	return &l, nil
}

func (r *linkRepo) GetByID(ctx context.Context, id string) (*repository.IdentityLink, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *linkRepo) GetByProviderUserID(ctx context.Context, providerUserID string) (*repository.IdentityLink, error) {
	return r.getOne(ctx, "provider_user_id = ?", providerUserID)
}

func (r *linkRepo) GetByUserID(ctx context.Context, userID string) (*repository.IdentityLink, error) {
	return r.getOne(ctx, "user_id = ?", userID)
}

func (r *linkRepo) exists(ctx context.Context, where string, arg any) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&linkModel{}).Where(where, arg).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("sqlite: link exists: %w", err)
	}
	return n > 0, nil
}

func (r *linkRepo) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, "user_id = ?", userID)
}

func (r *linkRepo) ExistsForProviderUser(ctx context.Context, providerUserID string) (bool, error) {
	return r.exists(ctx, "provider_user_id = ?", providerUserID)
}

func (r *linkRepo) Create(ctx context.Context, l *repository.IdentityLink) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	if err := r.db.WithContext(ctx).Create(linkFromDomain(l)).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			return repository.ErrAlreadyLinked
		}
		return fmt.Errorf("sqlite: create link: %w", err)
	}
	return nil
}

func (r *linkRepo) Update(ctx context.Context, l *repository.IdentityLink) error {
	l.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&linkModel{}).Where("id = ?", l.ID).Updates(map[string]any{
		"provider_open_id": l.ProviderOpenID,
		"display_name":     l.DisplayName,
		"avatar_url":       l.AvatarURL,
		"mobile_enc":       l.MobileEncrypted,
		"email_enc":        l.EmailEncrypted,
		"organization_id":  l.OrganizationID,
		"updated_at":       l.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("sqlite: update link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *linkRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&linkModel{})
	if res.Error != nil {
		return fmt.Errorf("sqlite: delete link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *linkRepo) filtered(ctx context.Context, f repository.LinkFilter) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("provider_identity_link AS l").
		Joins("LEFT JOIN app_user AS u ON u.id = l.user_id")
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(`(l.display_name LIKE ? ESCAPE '\' OR l.provider_user_id LIKE ? ESCAPE '\' OR u.username LIKE ? ESCAPE '\')`, p, p, p)
	}
	return q
}

func (r *linkRepo) List(ctx context.Context, f repository.LinkFilter) ([]repository.LinkWithUser, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("sqlite: count links: %w", err)
	}

	q := r.filtered(ctx, f).
		Select("l.*, COALESCE(u.username, '') AS username, COALESCE(u.email, '') AS user_email").
		Order("l.created_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var rows []linkRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("sqlite: list links: %w", err)
	}

	out := make([]repository.LinkWithUser, 0, len(rows))
	for i := range rows {
		out = append(out, repository.LinkWithUser{
			IdentityLink: rows[i].toDomain(),
			Username:     rows[i].Username,
			UserEmail:    rows[i].UserEmail,
		})
	}
	return out, total, nil
}

func (r *linkRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&linkModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("sqlite: count links: %w", err)
	}
	return n, nil
}

// ─── LoginAttemptRepository ───

type attemptRepo struct{ db *gorm.DB }

func (r *attemptRepo) Append(ctx context.Context, a *repository.LoginAttempt) error {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}
	m := attemptModel{
		ProviderUserID: a.ProviderUserID,
		SourceIP:       a.SourceIP,
		UserAgent:      a.UserAgent,
		Method:         string(a.Method),
		Outcome:        string(a.Outcome),
		FailureDetail:  a.FailureDetail,
		OrganizationID: a.OrganizationID,
		OccurredAt:     a.OccurredAt.UTC(),
	}
	if a.UserID != "" {
		uid := a.UserID
		m.UserID = &uid
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("sqlite: append login attempt: %w", err)
	}
	a.ID = m.ID
	return nil
}

func (r *attemptRepo) filtered(ctx context.Context, f repository.AttemptFilter) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("provider_login_attempt AS a").
		Joins("LEFT JOIN app_user AS u ON u.id = a.user_id")
	if f.Outcome != "" {
		q = q.Where("a.outcome = ?", string(f.Outcome))
	}
	if f.Start != nil {
		q = q.Where("a.occurred_at >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("a.occurred_at <= ?", f.End.UTC())
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(`(a.source_ip LIKE ? ESCAPE '\' OR a.provider_user_id LIKE ? ESCAPE '\' OR u.username LIKE ? ESCAPE '\')`, p, p, p)
	}
	return q
}

func (r *attemptRepo) List(ctx context.Context, f repository.AttemptFilter) ([]repository.LoginAttemptView, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("sqlite: count login attempts: %w", err)
	}

	q := r.filtered(ctx, f).
		Select("a.*, COALESCE(u.username, '') AS username").
		Order("a.occurred_at DESC, a.id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var rows []attemptRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("sqlite: list login attempts: %w", err)
	}

	out := make([]repository.LoginAttemptView, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, total, nil
}

func (r *attemptRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("occurred_at < ?", cutoff.UTC()).Delete(&attemptModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("sqlite: delete login attempts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ─── SettingRepository ───

type settingRepo struct{ db *gorm.DB }

func (r *settingRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var m settingModel
	err := r.db.WithContext(ctx).Where(`"key" = ?`, key).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get setting: %w", err)
	}
	return m.Value, true, nil
}

func (r *settingRepo) SetSetting(ctx context.Context, key, value string) error {
	m := settingModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("sqlite: set setting: %w", err)
	}
	return nil
}

func (r *settingRepo) DeleteSetting(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where(`"key" = ?`, key).Delete(&settingModel{}).Error; err != nil {
		return fmt.Errorf("sqlite: delete setting: %w", err)
	}
	return nil
}

func (r *settingRepo) AllSettings(ctx context.Context) (map[string]string, error) {
	var ms []settingModel
	if err := r.db.WithContext(ctx).Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("sqlite: list settings: %w", err)
	}
	out := make(map[string]string, len(ms))
	for _, m := range ms {
		out[m.Key] = m.Value
	}
	return out, nil
}
