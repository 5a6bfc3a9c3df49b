// Package dingtalk es el cliente HTTP del proveedor: intercambio de códigos,
// perfil de usuario (con fallback al endpoint legado), login H5 de mini-app y
// el token de aplicación cacheado.
package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/metrics"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

const (
	DefaultAPIBaseURL   = "https://api.dingtalk.com"
	DefaultOAPIBaseURL  = "https://oapi.dingtalk.com"
	DefaultLoginBaseURL = "https://login.dingtalk.com"
	DefaultHTTPTimeout  = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// errcodes de oapi que indican token de aplicación inválido o vencido.
var invalidTokenCodes = map[string]bool{"40001": true, "40014": true, "42001": true}

// Options permite apuntar el cliente a otro host (tests) y ajustar timeouts.
type Options struct {
	APIBaseURL   string
	OAPIBaseURL  string
	LoginBaseURL string
	HTTPTimeout  time.Duration
	SafetyMargin time.Duration
	HTTPClient   *http.Client
}

// UserToken es el resultado del intercambio de código.
type UserToken struct {
	AccessToken    string
	RefreshToken   string
	ExpiresIn      int64
	OrganizationID string
	// Code es el código de autorización original; lo usa el endpoint legado.
	Code string
	Raw  map[string]any
}

// Client habla con api.dingtalk.com / oapi.dingtalk.com.
type Client struct {
	src    ConfigSource
	http   *http.Client
	api    string
	oapi   string
	login  string
	tokens *TokenCache
	now    func() time.Time

	ownerMu    sync.Mutex
	tokenOwner string // app key del token cacheado
}

// NewClient crea el cliente. La config se lee de src en cada llamada.
func NewClient(src ConfigSource, opts Options) *Client {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.HTTPTimeout}
	}
	c := &Client{
		src:   src,
		http:  hc,
		api:   strings.TrimRight(orDefault(opts.APIBaseURL, DefaultAPIBaseURL), "/"),
		oapi:  strings.TrimRight(orDefault(opts.OAPIBaseURL, DefaultOAPIBaseURL), "/"),
		login: strings.TrimRight(orDefault(opts.LoginBaseURL, DefaultLoginBaseURL), "/"),
		now:   time.Now,
	}
	c.tokens = NewTokenCache(c.fetchAppToken, opts.SafetyMargin)
	return c
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Config retorna la config vigente.
func (c *Client) Config(ctx context.Context) (Config, error) {
	return c.src.ProviderConfig(ctx)
}

func (c *Client) configured(ctx context.Context) (Config, error) {
	cfg, err := c.src.ProviderConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	if !cfg.IsConfigured() {
		return Config{}, autherr.ErrProviderNotConfigured
	}
	return cfg, nil
}

// AuthorizationURL arma la URL de autorización. No hace I/O.
func (c *Client) AuthorizationURL(cfg Config, redirectURI, state string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("client_id", cfg.AppKey)
	q.Set("scope", "openid corpid")
	q.Set("state", state)
	q.Set("prompt", "consent")
	return c.login + "/oauth2/auth?" + q.Encode()
}

// =================================================================================
// OAUTH2 (scan / redirect)
// =================================================================================

// ExchangeCode cambia el código de autorización por un token de usuario.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*UserToken, error) {
	cfg, err := c.configured(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: empty code", autherr.ErrInvalidAuthorizationCode)
	}

	const endpoint = "user_access_token"
	started := time.Now()
	status, raw, err := c.doJSON(ctx, http.MethodPost, c.api+"/v1.0/oauth2/userAccessToken", nil, map[string]string{
		"clientId":     cfg.AppKey,
		"clientSecret": cfg.AppSecret,
		"code":         code,
		"grantType":    "authorization_code",
	})
	if err != nil || status >= http.StatusInternalServerError {
		metrics.ObserveProvider(endpoint, "error", started)
		return nil, fmt.Errorf("%w: %s", autherr.ErrProviderUnavailable, describe(status, raw, err))
	}
	tok := pick(raw, "accessToken")
	if tok == "" {
		metrics.ObserveProvider(endpoint, "rejected", started)
		return nil, fmt.Errorf("%w: %s", autherr.ErrInvalidAuthorizationCode, describe(status, raw, nil))
	}
	metrics.ObserveProvider(endpoint, "ok", started)

	expires, _ := strconv.ParseInt(pick(raw, "expireIn"), 10, 64)
	return &UserToken{
		AccessToken:    tok,
		RefreshToken:   pick(raw, "refreshToken"),
		ExpiresIn:      expires,
		OrganizationID: pick(raw, "corpId"),
		Code:           code,
		Raw:            raw,
	}, nil
}

// FetchUserProfile obtiene el perfil con el token de usuario. Si el endpoint
// principal falla prueba el legado firmado (requiere tok.Code).
func (c *Client) FetchUserProfile(ctx context.Context, tok *UserToken) (*types.ProviderProfile, error) {
	log := logger.From(ctx).With(logger.Component("dingtalk.client"), logger.Op("FetchUserProfile"))
	cfg, err := c.configured(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing user token", autherr.ErrProfileUnavailable)
	}

	const endpoint = "contact_users_me"
	started := time.Now()
	status, raw, err := c.doJSON(ctx, http.MethodGet, c.api+"/v1.0/contact/users/me",
		map[string]string{"x-acs-dingtalk-access-token": tok.AccessToken}, nil)
	if err == nil && status == http.StatusOK && pick(raw, profileKeys.unionID...) != "" {
		metrics.ObserveProvider(endpoint, "ok", started)
		p := normalizeProfile(raw)
		if p.OrganizationID == "" {
			p.OrganizationID = tok.OrganizationID
		}
		return &p, nil
	}
	metrics.ObserveProvider(endpoint, "error", started)
	primary := describe(status, raw, err)
	log.Debug("primary profile endpoint failed, trying legacy", logger.String("detail", primary))

	if tok.Code == "" {
		return nil, fmt.Errorf("%w: %s", autherr.ErrProfileUnavailable, primary)
	}
	p, legacyErr := c.legacyProfile(ctx, cfg, tok.Code)
	if legacyErr != nil {
		return nil, fmt.Errorf("%w: primary: %s; legacy: %v", autherr.ErrProfileUnavailable, primary, legacyErr)
	}
	if p.OrganizationID == "" {
		p.OrganizationID = tok.OrganizationID
	}
	return p, nil
}

func (c *Client) legacyProfile(ctx context.Context, cfg Config, code string) (*types.ProviderProfile, error) {
	const endpoint = "sns_getuserinfo_bycode"
	started := time.Now()

	ts := c.now().UnixMilli()
	u := c.oapi + "/sns/getuserinfo_bycode?accessKey=" + url.QueryEscape(cfg.AppKey) +
		"&timestamp=" + strconv.FormatInt(ts, 10) +
		"&signature=" + Signature(ts, cfg.AppSecret)

	status, raw, err := c.doJSON(ctx, http.MethodPost, u, nil, map[string]string{"tmp_auth_code": code})
	if err != nil || pick(raw, "errcode") != "0" {
		metrics.ObserveProvider(endpoint, "error", started)
		return nil, errors.New(describe(status, raw, err))
	}
	info, _ := raw["user_info"].(map[string]any)
	p := normalizeProfile(info)
	if !p.HasIdentity() {
		metrics.ObserveProvider(endpoint, "rejected", started)
		return nil, errors.New("legacy response without unionid")
	}
	metrics.ObserveProvider(endpoint, "ok", started)
	return &p, nil
}

// =================================================================================
// H5 / MINI-APP
// =================================================================================

// FetchProfileByMiniAppCode resuelve un código de login sin contraseña de la
// app interna: código → userid → detalle del usuario.
func (c *Client) FetchProfileByMiniAppCode(ctx context.Context, code string) (*types.ProviderProfile, error) {
	cfg, err := c.configured(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: empty code", autherr.ErrInvalidMiniAppCode)
	}
	appToken, err := c.appToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 1) code -> userid
	started := time.Now()
	status, raw, err := c.doJSON(ctx, http.MethodPost,
		c.oapi+"/topapi/v2/user/getuserinfo?access_token="+url.QueryEscape(appToken), nil,
		map[string]string{"code": code})
	if err != nil || status >= http.StatusInternalServerError {
		metrics.ObserveProvider("topapi_getuserinfo", "error", started)
		return nil, fmt.Errorf("%w: %s", autherr.ErrProviderUnavailable, describe(status, raw, err))
	}
	if ec := pick(raw, "errcode"); ec != "0" {
		c.invalidateOn(ec)
		metrics.ObserveProvider("topapi_getuserinfo", "rejected", started)
		return nil, fmt.Errorf("%w: %s", autherr.ErrInvalidMiniAppCode, describe(status, raw, nil))
	}
	result, _ := raw["result"].(map[string]any)
	userID := pick(result, "userid")
	if userID == "" {
		metrics.ObserveProvider("topapi_getuserinfo", "rejected", started)
		return nil, fmt.Errorf("%w: response without userid", autherr.ErrInvalidMiniAppCode)
	}
	metrics.ObserveProvider("topapi_getuserinfo", "ok", started)

	// 2) userid -> detalle
	started = time.Now()
	status, detail, err := c.doJSON(ctx, http.MethodPost,
		c.oapi+"/topapi/v2/user/get?access_token="+url.QueryEscape(appToken), nil,
		map[string]string{"userid": userID, "language": "zh_CN"})
	if err != nil || pick(detail, "errcode") != "0" {
		c.invalidateOn(pick(detail, "errcode"))
		metrics.ObserveProvider("topapi_user_get", "error", started)
		return nil, fmt.Errorf("%w: %s", autherr.ErrProfileUnavailable, describe(status, detail, err))
	}
	metrics.ObserveProvider("topapi_user_get", "ok", started)

	info, _ := detail["result"].(map[string]any)
	p := normalizeProfile(info)
	if p.ProviderUserID == "" {
		p.ProviderUserID = pick(result, profileKeys.unionID...)
	}
	if p.DisplayName == "" {
		p.DisplayName = pick(result, "name")
	}
	if p.OrganizationID == "" {
		// las apps internas pertenecen a la empresa configurada
		p.OrganizationID = cfg.CorpID
	}
	return &p, nil
}

// =================================================================================
// APP TOKEN
// =================================================================================

func (c *Client) appToken(ctx context.Context, cfg Config) (string, error) {
	c.ownerMu.Lock()
	if c.tokenOwner != cfg.AppKey {
		c.tokens.Invalidate()
		c.tokenOwner = cfg.AppKey
	}
	c.ownerMu.Unlock()
	return c.tokens.Token(ctx)
}

func (c *Client) invalidateOn(errcode string) {
	if invalidTokenCodes[errcode] {
		c.tokens.Invalidate()
	}
}

func (c *Client) fetchAppToken(ctx context.Context) (string, time.Duration, error) {
	cfg, err := c.configured(ctx)
	if err != nil {
		return "", 0, err
	}
	started := time.Now()
	q := url.Values{}
	q.Set("appkey", cfg.AppKey)
	q.Set("appsecret", cfg.AppSecret)
	status, raw, err := c.doJSON(ctx, http.MethodGet, c.oapi+"/gettoken?"+q.Encode(), nil, nil)
	if err != nil || pick(raw, "errcode") != "0" {
		metrics.ObserveProvider("gettoken", "error", started)
		return "", 0, errors.New(describe(status, raw, err))
	}
	metrics.ObserveProvider("gettoken", "ok", started)
	secs, _ := strconv.ParseInt(pick(raw, "expires_in"), 10, 64)
	return pick(raw, "access_token"), time.Duration(secs) * time.Second, nil
}

// =================================================================================
// HTTP
// =================================================================================

func (c *Client) doJSON(ctx context.Context, method, u string, headers map[string]string, body any) (int, map[string]any, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw := map[string]any{}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, raw, nil
}

// describe arma un detalle corto para auditoría sin volcar el payload.
func describe(status int, raw map[string]any, err error) string {
	if err != nil {
		return err.Error()
	}
	parts := []string{"status " + strconv.Itoa(status)}
	for _, k := range []string{"code", "errcode", "message", "errmsg"} {
		if v := pick(raw, k); v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, " ")
}
