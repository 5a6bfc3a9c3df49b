package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/events"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/metrics"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
)

// createAttempts acota los reintentos ante colisiones de username/email.
const createAttempts = 5

type identityService struct {
	deps Deps
	now  func() time.Time
}

// NewService crea el IdentityService.
func NewService(d Deps) Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return &identityService{deps: d, now: time.Now}
}

func (s *identityService) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("identity"),
		logger.Op(op),
	)
}

// ─── Resolución ───

func (s *identityService) ResolveOrCreate(ctx context.Context, p *types.ProviderProfile) (*Resolution, error) {
	if p == nil || !p.HasIdentity() {
		return nil, autherr.ErrMissingProviderIdentity
	}
	log := s.log(ctx, "ResolveOrCreate").With(logger.ProviderUserID(p.ProviderUserID))

	vals, err := s.deps.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	link, err := s.deps.Links.GetByProviderUserID(ctx, p.ProviderUserID)
	switch {
	case err == nil:
		user, err := s.deps.Users.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, fmt.Errorf("load linked user: %w", err)
		}
		if err := s.refresh(ctx, vals, link, user, p); err != nil {
			return nil, err
		}
		log.Debug("identity resolved", logger.UserID(user.ID))
		return &Resolution{User: user, Link: link}, nil
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("lookup link: %w", err)
	}

	if !vals.AutoRegister() {
		return nil, fmt.Errorf("%w: no local account for provider user %s", autherr.ErrRegistrationDisabled, p.ProviderUserID)
	}

	user, err := s.createUser(ctx, vals, p)
	if err != nil {
		return nil, err
	}

	link, err = s.newLink(user.ID, p)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Links.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrAlreadyLinked) {
			// Otro request vinculó la identidad entre el lookup y el insert:
			// la cuenta recién creada no debe quedar huérfana.
			if derr := s.deps.Users.Delete(ctx, user.ID); derr != nil {
				log.Error("compensating delete failed", logger.UserID(user.ID), logger.Err(derr))
			}
			return nil, fmt.Errorf("%w: provider user %s bound concurrently", autherr.ErrAlreadyLinked, p.ProviderUserID)
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	metrics.LinkChanges.WithLabelValues("register").Inc()
	s.deps.Events.Publish(ctx, events.TopicIdentityLinked, events.IdentityLinked{
		UserID:         user.ID,
		Username:       user.Username,
		Email:          user.Email,
		ProviderUserID: p.ProviderUserID,
		DisplayName:    link.DisplayName,
		Registered:     true,
		At:             s.now().UTC(),
	})
	log.Info("user registered from provider", logger.UserID(user.ID), logger.String("username", user.Username))
	return &Resolution{User: user, Link: link, Registered: true}, nil
}

// refresh actualiza el vínculo con los campos presentes en p. Los vacíos no
// pisan lo guardado.
func (s *identityService) refresh(ctx context.Context, vals settings.Values, link *repository.IdentityLink, user *repository.User, p *types.ProviderProfile) error {
	if p.DisplayName != "" {
		link.DisplayName = p.DisplayName
	}
	if p.AvatarURL != "" {
		link.AvatarURL = p.AvatarURL
	}
	if p.ProviderOpenID != "" {
		link.ProviderOpenID = p.ProviderOpenID
	}
	if p.OrganizationID != "" {
		link.OrganizationID = p.OrganizationID
	}
	if p.Mobile != "" {
		enc, err := s.deps.Box.Encrypt(p.Mobile)
		if err != nil {
			return fmt.Errorf("encrypt mobile: %w", err)
		}
		link.MobileEncrypted = enc
	}
	if p.Email != "" {
		enc, err := s.deps.Box.Encrypt(p.Email)
		if err != nil {
			return fmt.Errorf("encrypt email: %w", err)
		}
		link.EmailEncrypted = enc
	}
	if err := s.deps.Links.Update(ctx, link); err != nil {
		return fmt.Errorf("refresh link: %w", err)
	}
	return s.syncUser(ctx, vals, user, p)
}

// syncUser copia avatar y nickname a la cuenta local según los flags.
func (s *identityService) syncUser(ctx context.Context, vals settings.Values, user *repository.User, p *types.ProviderProfile) error {
	changed := false
	if vals.SyncAvatar() && p.AvatarURL != "" && user.AvatarURL != p.AvatarURL {
		user.AvatarURL = p.AvatarURL
		changed = true
	}
	if vals.SyncNickname() && p.DisplayName != "" && user.DisplayName != p.DisplayName {
		user.DisplayName = p.DisplayName
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.deps.Users.Update(ctx, user); err != nil {
		return fmt.Errorf("sync user profile: %w", err)
	}
	return nil
}

func (s *identityService) createUser(ctx context.Context, vals settings.Values, p *types.ProviderProfile) (*repository.User, error) {
	nickname := strings.TrimSpace(p.DisplayName)
	if nickname == "" {
		nickname = defaultNickname
	}

	email, err := s.chooseEmail(ctx, vals, p)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < createAttempts; i++ {
		username, err := allocateUsername(ctx, s.deps.Users, vals.UsernameRule(), nickname)
		if err != nil {
			return nil, fmt.Errorf("allocate username: %w", err)
		}
		u := &repository.User{
			Username:       username,
			Email:          email,
			DisplayName:    nickname,
			EmailConfirmed: true,
		}
		if vals.SyncAvatar() {
			u.AvatarURL = p.AvatarURL
		}

		err = s.deps.Users.Create(ctx, u)
		switch {
		case err == nil:
			return u, nil
		case errors.Is(err, repository.ErrUsernameTaken):
			lastErr = err
		case errors.Is(err, repository.ErrEmailTaken):
			email = placeholderEmailWithSuffix(p.ProviderUserID)
			lastErr = err
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, fmt.Errorf("create user after %d attempts: %w", createAttempts, lastErr)
}

// chooseEmail usa el email real sólo con sync_email y si nadie lo usa.
func (s *identityService) chooseEmail(ctx context.Context, vals settings.Values, p *types.ProviderProfile) (string, error) {
	if vals.SyncEmail() && p.Email != "" {
		taken, err := s.deps.Users.EmailExists(ctx, p.Email)
		if err != nil {
			return "", fmt.Errorf("check email: %w", err)
		}
		if !taken {
			return p.Email, nil
		}
	}
	email := placeholderEmail(p.ProviderUserID)
	taken, err := s.deps.Users.EmailExists(ctx, email)
	if err != nil {
		return "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		email = placeholderEmailWithSuffix(p.ProviderUserID)
	}
	return email, nil
}

func placeholderEmailWithSuffix(providerUserID string) string {
	base := strings.TrimSuffix(placeholderEmail(providerUserID), placeholderDomain)
	return base + "_" + strings.ToLower(randomString(4)) + placeholderDomain
}

func (s *identityService) newLink(userID string, p *types.ProviderProfile) (*repository.IdentityLink, error) {
	mobile, err := s.deps.Box.Encrypt(p.Mobile)
	if err != nil {
		return nil, fmt.Errorf("encrypt mobile: %w", err)
	}
	email, err := s.deps.Box.Encrypt(p.Email)
	if err != nil {
		return nil, fmt.Errorf("encrypt email: %w", err)
	}
	return &repository.IdentityLink{
		UserID:          userID,
		ProviderUserID:  p.ProviderUserID,
		ProviderOpenID:  p.ProviderOpenID,
		DisplayName:     p.DisplayName,
		AvatarURL:       p.AvatarURL,
		MobileEncrypted: mobile,
		EmailEncrypted:  email,
		OrganizationID:  p.OrganizationID,
	}, nil
}

// ─── Binding ───

func (s *identityService) Bind(ctx context.Context, user *repository.User, p *types.ProviderProfile) (*repository.IdentityLink, error) {
	if user == nil {
		return nil, autherr.ErrUnauthenticated
	}
	if p == nil || !p.HasIdentity() {
		return nil, autherr.ErrMissingProviderIdentity
	}
	log := s.log(ctx, "Bind").With(logger.UserID(user.ID), logger.ProviderUserID(p.ProviderUserID))

	if bound, err := s.deps.Links.ExistsForUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("check user link: %w", err)
	} else if bound {
		return nil, autherr.ErrUserAlreadyLinked
	}
	if claimed, err := s.deps.Links.ExistsForProviderUser(ctx, p.ProviderUserID); err != nil {
		return nil, fmt.Errorf("check provider link: %w", err)
	} else if claimed {
		return nil, autherr.ErrProviderIdentityAlreadyLinked
	}

	link, err := s.newLink(user.ID, p)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Links.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrAlreadyLinked) {
			return nil, s.whichConflict(ctx, user.ID)
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	vals, err := s.deps.Settings.Load(ctx)
	if err != nil {
		log.Warn("settings unavailable, skipping profile sync", logger.Err(err))
	} else if err := s.syncUser(ctx, vals, user, p); err != nil {
		log.Warn("profile sync failed", logger.Err(err))
	}

	metrics.LinkChanges.WithLabelValues("bind").Inc()
	s.deps.Events.Publish(ctx, events.TopicIdentityLinked, events.IdentityLinked{
		UserID:         user.ID,
		Username:       user.Username,
		Email:          user.Email,
		ProviderUserID: p.ProviderUserID,
		DisplayName:    link.DisplayName,
		At:             s.now().UTC(),
	})
	log.Info("identity bound", logger.LinkID(link.ID))
	return link, nil
}

// whichConflict distingue qué lado del vínculo ganó la carrera.
func (s *identityService) whichConflict(ctx context.Context, userID string) error {
	if bound, err := s.deps.Links.ExistsForUser(ctx, userID); err == nil && bound {
		return autherr.ErrUserAlreadyLinked
	}
	return autherr.ErrProviderIdentityAlreadyLinked
}

func (s *identityService) Unbind(ctx context.Context, user *repository.User) error {
	if user == nil {
		return autherr.ErrUnauthenticated
	}
	link, err := s.LinkFor(ctx, user.ID)
	if err != nil {
		return err
	}
	return s.remove(ctx, link, user, false)
}

func (s *identityService) UnbindLink(ctx context.Context, linkID string) error {
	link, err := s.deps.Links.GetByID(ctx, linkID)
	if repository.IsNotFound(err) {
		return autherr.ErrNotLinked
	}
	if err != nil {
		return fmt.Errorf("load link: %w", err)
	}

	user, err := s.deps.Users.GetByID(ctx, link.UserID)
	if err != nil && !repository.IsNotFound(err) {
		return fmt.Errorf("load user: %w", err)
	}
	return s.remove(ctx, link, user, true)
}

// remove publica identity.unlinked y borra el vínculo. user puede ser nil
// para vínculos huérfanos.
func (s *identityService) remove(ctx context.Context, link *repository.IdentityLink, user *repository.User, byAdmin bool) error {
	ev := events.IdentityUnlinked{
		UserID:         link.UserID,
		ProviderUserID: link.ProviderUserID,
		ByAdmin:        byAdmin,
		At:             s.now().UTC(),
	}
	if user != nil {
		ev.Username = user.Username
	}
	s.deps.Events.Publish(ctx, events.TopicIdentityUnlinked, ev)

	if err := s.deps.Links.Delete(ctx, link.ID); err != nil {
		if repository.IsNotFound(err) {
			return autherr.ErrNotLinked
		}
		return fmt.Errorf("delete link: %w", err)
	}
	metrics.LinkChanges.WithLabelValues("unbind").Inc()
	s.log(ctx, "Unbind").Info("identity unbound",
		logger.LinkID(link.ID), logger.UserID(link.UserID), logger.Bool("by_admin", byAdmin))
	return nil
}

// ─── Consultas ───

func (s *identityService) IsExempt(ctx context.Context, user *repository.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsAdmin {
		return true, nil
	}
	vals, err := s.deps.Settings.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range vals.ExemptUsers() {
		if strings.EqualFold(name, user.Username) {
			return true, nil
		}
	}
	return false, nil
}

func (s *identityService) IsBound(ctx context.Context, userID string) (bool, error) {
	return s.deps.Links.ExistsForUser(ctx, userID)
}

func (s *identityService) LinkFor(ctx context.Context, userID string) (*repository.IdentityLink, error) {
	link, err := s.deps.Links.GetByUserID(ctx, userID)
	if repository.IsNotFound(err) {
		return nil, autherr.ErrNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	return link, nil
}

func (s *identityService) RevealContact(link *repository.IdentityLink) (Contact, error) {
	if link == nil {
		return Contact{}, autherr.ErrNotLinked
	}
	mobile, err := s.deps.Box.Decrypt(link.MobileEncrypted)
	if err != nil {
		return Contact{}, fmt.Errorf("decrypt mobile: %w", err)
	}
	email, err := s.deps.Box.Decrypt(link.EmailEncrypted)
	if err != nil {
		return Contact{}, fmt.Errorf("decrypt email: %w", err)
	}
	return Contact{Mobile: mobile, Email: email}, nil
}

func (s *identityService) ListLinks(ctx context.Context, f repository.LinkFilter) ([]repository.LinkWithUser, int64, error) {
	return s.deps.Links.List(ctx, f)
}

func (s *identityService) Stats(ctx context.Context) (Stats, error) {
	total, err := s.deps.Users.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	bound, err := s.deps.Links.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalUsers: total, BoundUsers: bound}, nil
}
