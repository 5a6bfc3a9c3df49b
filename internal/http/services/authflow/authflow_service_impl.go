package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/dingtalk"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/events"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/session"
)

type authFlowService struct {
	deps Deps
	now  func() time.Time
}

// NewService crea el servicio de flujo de autenticación.
func NewService(d Deps) Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return &authFlowService{deps: d, now: time.Now}
}

func (s *authFlowService) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("authflow"),
		logger.Op(op),
	)
}

// attempt acumula lo que va al registro de auditoría.
type attempt struct {
	method         types.LoginMethod
	client         ClientInfo
	userID         string
	providerUserID string
	orgID          string
}

func (a *attempt) observe(p *types.ProviderProfile) {
	if p == nil {
		return
	}
	a.providerUserID = p.ProviderUserID
	if p.OrganizationID != "" {
		a.orgID = p.OrganizationID
	}
}

// finish escribe el único registro de auditoría del intento. Un fallo al
// escribirlo no cambia el resultado del login.
func (s *authFlowService) finish(ctx context.Context, a *attempt, cause error) {
	rec := &repository.LoginAttempt{
		UserID:         a.userID,
		ProviderUserID: a.providerUserID,
		SourceIP:       a.client.IP,
		UserAgent:      a.client.UserAgent,
		Method:         a.method,
		OrganizationID: a.orgID,
	}
	if err := s.deps.Logs.Record(ctx, rec, cause); err != nil {
		s.log(ctx, "Record").Warn("login attempt not recorded", logger.Err(err))
	}

	log := s.log(ctx, "Finish").With(
		logger.LoginMethod(string(a.method)),
		logger.ProviderUserID(a.providerUserID),
	)
	if cause != nil {
		log.Info("login attempt failed",
			logger.Outcome(string(types.OutcomeFailed)),
			logger.Reason(autherr.Classify(cause)),
			logger.Err(cause))
		return
	}
	log.Info("login attempt succeeded",
		logger.Outcome(string(types.OutcomeSuccess)), logger.UserID(a.userID))
}

// configured falla con ErrProviderNotConfigured si faltan credenciales.
func (s *authFlowService) configured(ctx context.Context) (dingtalk.Config, error) {
	cfg, err := s.deps.Provider.Config(ctx)
	if err != nil {
		return dingtalk.Config{}, fmt.Errorf("%w: %v", autherr.ErrProviderNotConfigured, err)
	}
	if !cfg.IsConfigured() {
		return dingtalk.Config{}, autherr.ErrProviderNotConfigured
	}
	return cfg, nil
}

// ─── Redirect / scan ───

func (s *authFlowService) Start(ctx context.Context, req StartRequest) (string, error) {
	cfg, err := s.configured(ctx)
	if err != nil {
		return "", err
	}
	if req.SessionID == "" {
		return "", errors.New("authflow: start requires a session")
	}

	state, err := session.NewState()
	if err != nil {
		return "", err
	}
	if err := s.deps.Pending.PutPending(ctx, req.SessionID, session.Pending{
		State:    state,
		BindMode: req.BindMode,
		Referer:  req.Referer,
	}); err != nil {
		return "", err
	}

	s.log(ctx, "Start").Debug("authorization started", logger.Bool("bind_mode", req.BindMode))
	return s.deps.Provider.AuthorizationURL(cfg, req.RedirectURI, state), nil
}

func (s *authFlowService) Callback(ctx context.Context, req CallbackRequest) (*Result, error) {
	a := &attempt{method: types.LoginMethodScan, client: req.Client}
	res, err := s.callback(ctx, req, a)
	s.finish(ctx, a, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *authFlowService) callback(ctx context.Context, req CallbackRequest, a *attempt) (*Result, error) {
	cfg, err := s.configured(ctx)
	if err != nil {
		return nil, err
	}

	// La pendiente se consume antes de cualquier otra validación: un state
	// nunca sirve dos veces, gane o pierda.
	pending, err := s.deps.Pending.TakePending(ctx, req.SessionID)
	if err != nil && !errors.Is(err, session.ErrNoPending) {
		return nil, err
	}

	if e := strings.TrimSpace(req.Error); e != "" {
		return nil, fmt.Errorf("%w: %s", autherr.ErrAuthorizationCancelled, e)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: missing authorization code", autherr.ErrInvalidAuthorizationCode)
	}
	if pending == nil || req.State == "" ||
		subtle.ConstantTimeCompare([]byte(pending.State), []byte(req.State)) != 1 {
		return nil, autherr.ErrCsrfStateMismatch
	}

	tok, err := s.deps.Provider.ExchangeCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if tok.OrganizationID != "" {
		a.orgID = tok.OrganizationID
	}
	profile, err := s.deps.Provider.FetchUserProfile(ctx, tok)
	if err != nil {
		return nil, err
	}
	if profile.OrganizationID == "" {
		profile.OrganizationID = tok.OrganizationID
	}
	a.observe(profile)

	if err := checkEnterprise(cfg, profile); err != nil {
		return nil, err
	}

	res := &Result{BindMode: pending.BindMode, Referer: pending.Referer}
	if pending.BindMode {
		if req.Actor == nil {
			return nil, fmt.Errorf("%w: bind requires a logged-in user", autherr.ErrUnauthenticated)
		}
		a.userID = req.Actor.ID
		link, err := s.deps.Identity.Bind(ctx, req.Actor, profile)
		if err != nil {
			return nil, err
		}
		res.User, res.Link = req.Actor, link
		return res, nil
	}

	resolution, err := s.login(ctx, profile, a, req.Establish)
	if err != nil {
		return nil, err
	}
	res.User, res.Link, res.Registered = resolution.User, resolution.Link, resolution.Registered
	return res, nil
}

// login resuelve la cuenta, establece la sesión y emite login.succeeded.
func (s *authFlowService) login(ctx context.Context, p *types.ProviderProfile, a *attempt, establish Establisher) (*identity.Resolution, error) {
	r, err := s.deps.Identity.ResolveOrCreate(ctx, p)
	if err != nil {
		return nil, err
	}
	a.userID = r.User.ID

	if establish != nil {
		if err := establish(ctx, r.User); err != nil {
			return nil, fmt.Errorf("establish session: %w", err)
		}
	}

	s.deps.Events.Publish(ctx, events.TopicLoginSucceeded, events.LoginSucceeded{
		UserID:         r.User.ID,
		Username:       r.User.Username,
		ProviderUserID: p.ProviderUserID,
		Method:         a.method,
		SourceIP:       a.client.IP,
		At:             s.now().UTC(),
	})
	return r, nil
}

// ─── H5 ───

func (s *authFlowService) H5Login(ctx context.Context, req H5Request) (*Result, error) {
	a := &attempt{method: types.LoginMethodH5, client: req.Client}
	res, err := s.h5(ctx, req, a)
	s.finish(ctx, a, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *authFlowService) h5(ctx context.Context, req H5Request, a *attempt) (*Result, error) {
	vals, err := s.deps.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !vals.EnableH5Login() {
		return nil, fmt.Errorf("%w: h5 login", autherr.ErrFeatureDisabled)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: missing h5 authorization code", autherr.ErrInvalidMiniAppCode)
	}
	cfg, err := s.configured(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.deps.Provider.FetchProfileByMiniAppCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if profile.OrganizationID == "" {
		profile.OrganizationID = cfg.CorpID
	}
	a.observe(profile)

	if err := checkEnterprise(cfg, profile); err != nil {
		return nil, err
	}

	r, err := s.login(ctx, profile, a, req.Establish)
	if err != nil {
		return nil, err
	}
	return &Result{User: r.User, Link: r.Link, Registered: r.Registered}, nil
}

// ─── Binding por API ───

func (s *authFlowService) Bind(ctx context.Context, req BindRequest) (*repository.IdentityLink, error) {
	method := types.LoginMethodScan
	if req.Type == BindH5 {
		method = types.LoginMethodH5
	}
	a := &attempt{method: method, client: req.Client}
	if req.User != nil {
		a.userID = req.User.ID
	}
	link, err := s.bind(ctx, req, a)
	s.finish(ctx, a, err)
	return link, err
}

func (s *authFlowService) bind(ctx context.Context, req BindRequest, a *attempt) (*repository.IdentityLink, error) {
	if req.User == nil {
		return nil, autherr.ErrUnauthenticated
	}
	if req.Type != "" && req.Type != BindScan && req.Type != BindH5 {
		return nil, fmt.Errorf("%w: bind type must be scan or h5", repository.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: missing authorization code", autherr.ErrInvalidAuthorizationCode)
	}
	cfg, err := s.configured(ctx)
	if err != nil {
		return nil, err
	}

	var profile *types.ProviderProfile
	if req.Type == BindH5 {
		profile, err = s.deps.Provider.FetchProfileByMiniAppCode(ctx, req.Code)
	} else {
		var tok *dingtalk.UserToken
		tok, err = s.deps.Provider.ExchangeCode(ctx, req.Code)
		if err == nil {
			profile, err = s.deps.Provider.FetchUserProfile(ctx, tok)
			if err == nil && profile.OrganizationID == "" {
				profile.OrganizationID = tok.OrganizationID
			}
		}
	}
	if err != nil {
		return nil, err
	}
	a.observe(profile)

	if err := checkEnterprise(cfg, profile); err != nil {
		return nil, err
	}
	return s.deps.Identity.Bind(ctx, req.User, profile)
}

func checkEnterprise(cfg dingtalk.Config, p *types.ProviderProfile) error {
	if !cfg.EnterpriseAllowed(p.OrganizationID) {
		return fmt.Errorf("%w: corp %q", autherr.ErrEnterpriseRestricted, p.OrganizationID)
	}
	return nil
}
