package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/cache"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/dingtalk"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/auth"
	mw "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/health"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/jwt"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/security/secretbox"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/session"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store/storetest"
)

type stubProvider struct {
	settings *settings.Service
	profiles map[string]types.ProviderProfile
}

func (p *stubProvider) Config(ctx context.Context) (dingtalk.Config, error) {
	return p.settings.ProviderConfig(ctx)
}

func (p *stubProvider) AuthorizationURL(_ dingtalk.Config, redirectURI, state string) string {
	return "https://login.example/oauth2/auth?" + url.Values{"redirect_uri": {redirectURI}, "state": {state}}.Encode()
}

func (p *stubProvider) ExchangeCode(_ context.Context, code string) (*dingtalk.UserToken, error) {
	if _, ok := p.profiles[code]; !ok {
		return nil, fmt.Errorf("%w: unknown code", autherr.ErrInvalidAuthorizationCode)
	}
	return &dingtalk.UserToken{AccessToken: "tok", Code: code}, nil
}

func (p *stubProvider) FetchUserProfile(_ context.Context, tok *dingtalk.UserToken) (*types.ProviderProfile, error) {
	prof := p.profiles[tok.Code]
	return &prof, nil
}

func (p *stubProvider) FetchProfileByMiniAppCode(_ context.Context, code string) (*types.ProviderProfile, error) {
	prof, ok := p.profiles[code]
	if !ok {
		return nil, fmt.Errorf("%w: unknown code", autherr.ErrInvalidMiniAppCode)
	}
	return &prof, nil
}

type testApp struct {
	handler  http.Handler
	dal      store.DataAccessLayer
	settings *settings.Service
	tokens   *jwt.Issuer
}

func newTestApp(t *testing.T, seeds map[string]string) *testApp {
	t.Helper()
	base := map[string]string{
		settings.KeyAppKey:    "key",
		settings.KeyAppSecret: "secret",
		settings.KeyAgentID:   "agent-1",
	}
	for k, v := range seeds {
		base[k] = v
	}

	dal := storetest.Open(t)
	st := settings.New(dal.Settings(), base, 0)
	sessions := session.NewManager(cache.NewMemory("", time.Hour), session.Config{TTL: time.Hour, PendingTTL: 10 * time.Minute})
	provider := &stubProvider{settings: st, profiles: map[string]types.ProviderProfile{
		"code-u1": {ProviderUserID: "u1", DisplayName: "Alice", Mobile: "13800000000"},
		"h5-u2":   {ProviderUserID: "u2", DisplayName: "Bob"},
	}}

	svcs := services.New(services.Deps{
		DAL:      dal,
		Provider: provider,
		Settings: st,
		Pending:  sessions,
		Box:      secretbox.New("test-key"),
		HealthDeps: health.Deps{
			DBCheck: dal.Ping,
		},
	})
	ctrls := controllers.New(svcs, controllers.Deps{
		Sessions: sessions,
		Settings: st,
		Auth:     auth.Config{BaseURL: "https://forum.example"},
	})
	tokens := jwt.NewIssuer("test", "admin-secret", time.Hour)

	h := New(Deps{
		Controllers: ctrls,
		Auth:        mw.AuthConfig{Sessions: sessions, Users: dal.Users(), Tokens: tokens},
		Gates:       mw.GateConfig{Settings: st, Identity: svcs.Identity},
	})
	return &testApp{handler: h, dal: dal, settings: st, tokens: tokens}
}

func (a *testApp) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, r)
	return rec
}

func (a *testApp) adminRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	tok, _, err := a.tokens.IssueAdmin("ops", "ops")
	require.NoError(t, err)
	r := httptest.NewRequest(method, path, nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	return r
}

func (a *testApp) failedAttempts(t *testing.T) []repository.LoginAttemptView {
	t.Helper()
	rows, _, err := a.dal.Attempts().List(context.Background(), repository.AttemptFilter{Outcome: types.OutcomeFailed})
	require.NoError(t, err)
	return rows
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.MaxAge >= 0 {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestPublicConfig(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/api/provider/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["enabled"])
	assert.Equal(t, "agent-1", data["agentId"])
	assert.Equal(t, false, data["forceBind"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPopupLoginFlow(t *testing.T) {
	app := newTestApp(t, nil)

	// 1. Start: redirige al proveedor con state y deja la cookie anónima.
	start := httptest.NewRequest(http.MethodGet, "/auth/provider", nil)
	start.Header.Set("Referer", "https://forum.example/d/42")
	rec := app.do(t, start)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "https://forum.example/auth/provider/callback", loc.Query().Get("redirect_uri"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	anon := cookieNamed(rec, "sid")
	require.NotNil(t, anon)

	// 2. Callback: crea la cuenta, rota la sesión y vuelve al referer.
	cb := httptest.NewRequest(http.MethodGet, "/auth/provider/callback?authCode=code-u1&state="+state, nil)
	cb.AddCookie(anon)
	rec = app.do(t, cb)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "登录成功")
	assert.Contains(t, rec.Body.String(), "forum.example")
	logged := cookieNamed(rec, "sid")
	require.NotNil(t, logged)
	assert.NotEqual(t, anon.Value, logged.Value)

	// 3. bind-status con la sesión nueva.
	st := httptest.NewRequest(http.MethodGet, "/api/provider/bind-status", nil)
	st.AddCookie(logged)
	rec = app.do(t, st)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["bound"])
	assert.Equal(t, "u1", data["providerUserId"])
	assert.Equal(t, "13800000000", data["mobile"])

	// 4. Reusar el state falla: la pendiente ya se consumió.
	replay := httptest.NewRequest(http.MethodGet, "/auth/provider/callback?authCode=code-u1&state="+state, nil)
	replay.AddCookie(anon)
	rec = app.do(t, replay)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "安全验证失败")

	// 5. Dos intentos en el log de auditoría.
	rec = app.do(t, app.adminRequest(t, http.MethodGet, "/api/provider/login-logs"))
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode(t, rec)["meta"].(map[string]any)
	assert.EqualValues(t, 2, meta["total"])
}

func TestCallbackForeignRefererIgnored(t *testing.T) {
	app := newTestApp(t, nil)

	start := httptest.NewRequest(http.MethodGet, "/auth/provider", nil)
	start.Header.Set("Referer", "https://evil.example/phish")
	rec := app.do(t, start)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, _ := url.Parse(rec.Header().Get("Location"))

	cb := httptest.NewRequest(http.MethodGet, "/auth/provider/callback?code=code-u1&state="+loc.Query().Get("state"), nil)
	cb.AddCookie(cookieNamed(rec, "sid"))
	rec = app.do(t, cb)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "evil.example")
}

func TestStartWithoutCredentials(t *testing.T) {
	app := newTestApp(t, map[string]string{settings.KeyAppKey: ""})
	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/auth/provider", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "钉钉登录尚未配置")
}

func TestH5Login(t *testing.T) {
	app := newTestApp(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/provider/h5-login", strings.NewReader(`{"code":"h5-u2"}`))
	r.Header.Set("Content-Type", "application/json")
	rec := app.do(t, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["data"].(map[string]any)["registered"])
	assert.NotNil(t, cookieNamed(rec, "sid"))

	require.Empty(t, app.failedAttempts(t))

	r = httptest.NewRequest(http.MethodPost, "/api/provider/h5-login", strings.NewReader(`{"code":""}`))
	r.Header.Set("Content-Type", "application/json")
	rec = app.do(t, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_code", decode(t, rec)["code"])

	failed := app.failedAttempts(t)
	require.Len(t, failed, 1)
	assert.Equal(t, types.LoginMethodH5, failed[0].Method)
	assert.Contains(t, failed[0].FailureDetail, "missing h5 authorization code")
}

func TestH5LoginMalformedBodyIsRecorded(t *testing.T) {
	app := newTestApp(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/provider/h5-login", strings.NewReader(`{"code":`))
	r.Header.Set("Content-Type", "application/json")
	rec := app.do(t, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode(t, rec)["code"])

	r = httptest.NewRequest(http.MethodPost, "/api/provider/h5-login", strings.NewReader(`code=h5-u2`))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = app.do(t, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode(t, rec)["code"])

	assert.Len(t, app.failedAttempts(t), 2)
}

func TestBindFailuresAreRecorded(t *testing.T) {
	app := newTestApp(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/provider/h5-login", strings.NewReader(`{"code":"h5-u2"}`))
	r.Header.Set("Content-Type", "application/json")
	rec := app.do(t, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := cookieNamed(rec, "sid")
	require.NotNil(t, sid)

	bind := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/provider/bind", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		r.AddCookie(sid)
		return app.do(t, r)
	}

	rec = bind(`{"code":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_code", decode(t, rec)["code"])

	rec = bind(`{"code":"code-u1","type":"fax"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode(t, rec)["code"])

	rec = bind(`{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode(t, rec)["code"])

	failed := app.failedAttempts(t)
	require.Len(t, failed, 3)
	for _, row := range failed {
		assert.NotEmpty(t, row.UserID)
	}
}

func TestH5LoginDisabled(t *testing.T) {
	app := newTestApp(t, map[string]string{settings.KeyEnableH5Login: "0"})

	r := httptest.NewRequest(http.MethodPost, "/api/provider/h5-login", strings.NewReader(`{"code":"h5-u2"}`))
	r.Header.Set("Content-Type", "application/json")
	rec := app.do(t, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "feature_disabled", decode(t, rec)["code"])
}

func TestAccountRoutesRequireSession(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/api/provider/bind-status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/api/provider/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, app.adminRequest(t, http.MethodGet, "/api/provider/stats"))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 0, data["boundUsers"])

	rec = app.do(t, app.adminRequest(t, http.MethodGet, "/api/provider/logs-export"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dingtalk_login_logs_")
}

func TestAdminExportDisabled(t *testing.T) {
	app := newTestApp(t, map[string]string{settings.KeyAllowLogExport: "0"})

	rec := app.do(t, app.adminRequest(t, http.MethodGet, "/api/provider/logs-export"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "日志导出功能已禁用", decode(t, rec)["message"])
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["code"])
}

func TestHealthRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	assert.Equal(t, http.StatusOK, app.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, app.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}
