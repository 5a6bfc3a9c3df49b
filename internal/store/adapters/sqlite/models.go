package sqlite

import (
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
)

type userModel struct {
	ID             string    `gorm:"primaryKey;column:id"`
	Username       string    `gorm:"column:username"`
	Email          string    `gorm:"column:email"`
	DisplayName    string    `gorm:"column:display_name"`
	AvatarURL      string    `gorm:"column:avatar_url"`
	EmailConfirmed bool      `gorm:"column:email_confirmed"`
	IsAdmin        bool      `gorm:"column:is_admin"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "app_user" }

func (m *userModel) toDomain() *repository.User {
	return &repository.User{
		ID:             m.ID,
		Username:       m.Username,
		Email:          m.Email,
		DisplayName:    m.DisplayName,
		AvatarURL:      m.AvatarURL,
		EmailConfirmed: m.EmailConfirmed,
		IsAdmin:        m.IsAdmin,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type linkModel struct {
	ID              string    `gorm:"primaryKey;column:id"`
	UserID          string    `gorm:"column:user_id"`
	ProviderUserID  string    `gorm:"column:provider_user_id"`
	ProviderOpenID  string    `gorm:"column:provider_open_id"`
	DisplayName     string    `gorm:"column:display_name"`
	AvatarURL       string    `gorm:"column:avatar_url"`
	MobileEncrypted string    `gorm:"column:mobile_enc"`
	EmailEncrypted  string    `gorm:"column:email_enc"`
	OrganizationID  string    `gorm:"column:organization_id"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (linkModel) TableName() string { return "provider_identity_link" }

func linkFromDomain(l *repository.IdentityLink) *linkModel {
	return &linkModel{
		ID:              l.ID,
		UserID:          l.UserID,
		ProviderUserID:  l.ProviderUserID,
		ProviderOpenID:  l.ProviderOpenID,
		DisplayName:     l.DisplayName,
		AvatarURL:       l.AvatarURL,
		MobileEncrypted: l.MobileEncrypted,
		EmailEncrypted:  l.EmailEncrypted,
		OrganizationID:  l.OrganizationID,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func (m *linkModel) toDomain() repository.IdentityLink {
	return repository.IdentityLink{
		ID:              m.ID,
		UserID:          m.UserID,
		ProviderUserID:  m.ProviderUserID,
		ProviderOpenID:  m.ProviderOpenID,
		DisplayName:     m.DisplayName,
		AvatarURL:       m.AvatarURL,
		MobileEncrypted: m.MobileEncrypted,
		EmailEncrypted:  m.EmailEncrypted,
		OrganizationID:  m.OrganizationID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// linkRow es una fila del listado con el usuario unido.
type linkRow struct {
	linkModel
	Username  string `gorm:"column:username"`
	UserEmail string `gorm:"column:user_email"`
}

type attemptModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id"`
	UserID         *string   `gorm:"column:user_id"`
	ProviderUserID string    `gorm:"column:provider_user_id"`
	SourceIP       string    `gorm:"column:source_ip"`
	UserAgent      string    `gorm:"column:user_agent"`
	Method         string    `gorm:"column:method"`
	Outcome        string    `gorm:"column:outcome"`
	FailureDetail  string    `gorm:"column:failure_detail"`
	OrganizationID string    `gorm:"column:organization_id"`
	OccurredAt     time.Time `gorm:"column:occurred_at"`
}

func (attemptModel) TableName() string { return "provider_login_attempt" }

// attemptRow es una fila del listado con el username unido.
type attemptRow struct {
	attemptModel
	Username string `gorm:"column:username"`
}

func (r *attemptRow) toDomain() repository.LoginAttemptView {
	v := repository.LoginAttemptView{
		LoginAttempt: repository.LoginAttempt{
			ID:             r.ID,
			ProviderUserID: r.ProviderUserID,
			SourceIP:       r.SourceIP,
			UserAgent:      r.UserAgent,
			Method:         types.LoginMethod(r.Method),
			Outcome:        types.LoginOutcome(r.Outcome),
			FailureDetail:  r.FailureDetail,
			OrganizationID: r.OrganizationID,
			OccurredAt:     r.OccurredAt,
		},
		Username: r.Username,
	}
	if r.UserID != nil {
		v.UserID = *r.UserID
	}
	return v
}

type settingModel struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (settingModel) TableName() string { return "provider_setting" }
