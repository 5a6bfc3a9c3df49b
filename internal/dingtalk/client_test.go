package dingtalk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
)

var testCfg = Config{AppKey: "ding-key", AppSecret: "ding-secret", CorpID: "corp-1"}

type fakeProvider struct {
	t             *testing.T
	meStatus      int
	meBody        map[string]any
	legacyBody    map[string]any
	legacyQuery   url.Values
	tokenCalls    int32
	miniUser      map[string]any
	miniDetail    map[string]any
	exchangeBody  map[string]any
	exchangeInput map[string]any
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/v1.0/oauth2/userAccessToken", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.exchangeInput)
		if f.exchangeBody == nil {
			write(w, http.StatusBadRequest, map[string]any{"code": "invalidCode", "message": "code expired"})
			return
		}
		write(w, http.StatusOK, f.exchangeBody)
	})
	mux.HandleFunc("/v1.0/contact/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "user-at", r.Header.Get("x-acs-dingtalk-access-token"))
		write(w, f.meStatus, f.meBody)
	})
	mux.HandleFunc("/sns/getuserinfo_bycode", func(w http.ResponseWriter, r *http.Request) {
		f.legacyQuery = r.URL.Query()
		write(w, http.StatusOK, f.legacyBody)
	})
	mux.HandleFunc("/gettoken", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		write(w, http.StatusOK, map[string]any{"errcode": 0, "access_token": "app-at", "expires_in": 7200})
	})
	mux.HandleFunc("/topapi/v2/user/getuserinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "app-at", r.URL.Query().Get("access_token"))
		write(w, http.StatusOK, f.miniUser)
	})
	mux.HandleFunc("/topapi/v2/user/get", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, f.miniDetail)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeProvider, cfg Config) *Client {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(StaticConfig(cfg), Options{
		APIBaseURL:  srv.URL,
		OAPIBaseURL: srv.URL,
		HTTPTimeout: 2 * time.Second,
	})
}

func TestExchangeCode(t *testing.T) {
	f := &fakeProvider{exchangeBody: map[string]any{"accessToken": "user-at", "refreshToken": "rt", "expireIn": 7200, "corpId": "corp-9"}}
	c := newTestClient(t, f, testCfg)

	tok, err := c.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "user-at", tok.AccessToken)
	assert.Equal(t, "corp-9", tok.OrganizationID)
	assert.EqualValues(t, 7200, tok.ExpiresIn)
	assert.Equal(t, "auth-code", tok.Code)
	assert.Equal(t, "authorization_code", f.exchangeInput["grantType"])
	assert.Equal(t, "ding-key", f.exchangeInput["clientId"])
}

func TestExchangeCode_Rejected(t *testing.T) {
	c := newTestClient(t, &fakeProvider{}, testCfg)
	_, err := c.ExchangeCode(context.Background(), "expired")
	assert.ErrorIs(t, err, autherr.ErrInvalidAuthorizationCode)
}

func TestExchangeCode_NotConfigured(t *testing.T) {
	c := newTestClient(t, &fakeProvider{}, Config{AppKey: "only-key"})
	_, err := c.ExchangeCode(context.Background(), "x")
	assert.ErrorIs(t, err, autherr.ErrProviderNotConfigured)
}

func TestExchangeCode_Unreachable(t *testing.T) {
	c := NewClient(StaticConfig(testCfg), Options{APIBaseURL: "http://127.0.0.1:1", HTTPTimeout: time.Second})
	_, err := c.ExchangeCode(context.Background(), "x")
	assert.ErrorIs(t, err, autherr.ErrProviderUnavailable)
}

func TestFetchUserProfile_Primary(t *testing.T) {
	f := &fakeProvider{meStatus: http.StatusOK, meBody: map[string]any{
		"unionId": "u-1", "openId": "o-1", "nick": "张三", "avatarUrl": "https://a/1.png",
		"mobile": "13800138000", "email": "zs@example.com", "stateCode": "86",
	}}
	c := newTestClient(t, f, testCfg)

	p, err := c.FetchUserProfile(context.Background(), &UserToken{AccessToken: "user-at", OrganizationID: "corp-1", Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.ProviderUserID)
	assert.Equal(t, "o-1", p.ProviderOpenID)
	assert.Equal(t, "张三", p.DisplayName)
	assert.Equal(t, "https://a/1.png", p.AvatarURL)
	assert.Equal(t, "13800138000", p.Mobile)
	assert.Equal(t, "corp-1", p.OrganizationID)
	assert.Nil(t, f.legacyQuery, "legacy endpoint must not be called")
}

func TestFetchUserProfile_FallbackToLegacy(t *testing.T) {
	f := &fakeProvider{
		meStatus:   http.StatusForbidden,
		meBody:     map[string]any{"code": "Forbidden.AccessDenied"},
		legacyBody: map[string]any{"errcode": 0, "user_info": map[string]any{"unionid": "u-2", "openid": "o-2", "nick": "李四"}},
	}
	c := newTestClient(t, f, testCfg)
	fixed := time.UnixMilli(1700000000123)
	c.now = func() time.Time { return fixed }

	p, err := c.FetchUserProfile(context.Background(), &UserToken{AccessToken: "user-at", Code: "tmp-code"})
	require.NoError(t, err)
	assert.Equal(t, "u-2", p.ProviderUserID)
	assert.Equal(t, "李四", p.DisplayName)

	require.NotNil(t, f.legacyQuery)
	assert.Equal(t, "ding-key", f.legacyQuery.Get("accessKey"))
	assert.Equal(t, "1700000000123", f.legacyQuery.Get("timestamp"))
	sig, err := url.QueryUnescape(Signature(1700000000123, "ding-secret"))
	require.NoError(t, err)
	assert.Equal(t, sig, f.legacyQuery.Get("signature"))
}

func TestFetchUserProfile_BothFail(t *testing.T) {
	f := &fakeProvider{
		meStatus:   http.StatusOK,
		meBody:     map[string]any{"nick": "sin union"},
		legacyBody: map[string]any{"errcode": 40078, "errmsg": "tmp code invalid"},
	}
	c := newTestClient(t, f, testCfg)
	_, err := c.FetchUserProfile(context.Background(), &UserToken{AccessToken: "user-at", Code: "c"})
	assert.ErrorIs(t, err, autherr.ErrProfileUnavailable)
	assert.Contains(t, err.Error(), "errcode=40078")
}

func TestFetchProfileByMiniAppCode(t *testing.T) {
	f := &fakeProvider{
		miniUser:   map[string]any{"errcode": 0, "result": map[string]any{"userid": "staff-1", "unionid": "u-3", "name": "王五"}},
		miniDetail: map[string]any{"errcode": 0, "result": map[string]any{"userid": "staff-1", "unionid": "u-3", "name": "王五", "avatar": "https://a/3.png", "mobile": "139"}},
	}
	c := newTestClient(t, f, testCfg)

	for i := 0; i < 3; i++ {
		p, err := c.FetchProfileByMiniAppCode(context.Background(), "h5-code")
		require.NoError(t, err)
		assert.Equal(t, "u-3", p.ProviderUserID)
		assert.Equal(t, "王五", p.DisplayName)
		assert.Equal(t, "https://a/3.png", p.AvatarURL)
		assert.Equal(t, "corp-1", p.OrganizationID)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.tokenCalls), "app token must be cached")
}

func TestFetchProfileByMiniAppCode_Invalid(t *testing.T) {
	f := &fakeProvider{miniUser: map[string]any{"errcode": 40078, "errmsg": "不存在的临时授权码"}}
	c := newTestClient(t, f, testCfg)
	_, err := c.FetchProfileByMiniAppCode(context.Background(), "bad")
	assert.ErrorIs(t, err, autherr.ErrInvalidMiniAppCode)

	_, err = c.FetchProfileByMiniAppCode(context.Background(), "")
	assert.ErrorIs(t, err, autherr.ErrInvalidMiniAppCode)
}

func TestAuthorizationURL(t *testing.T) {
	c := NewClient(StaticConfig(testCfg), Options{})
	raw := c.AuthorizationURL(testCfg, "https://forum.example.com/auth/provider/callback", "state123")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "https://login.dingtalk.com/oauth2/auth?"))
	q := u.Query()
	assert.Equal(t, "https://forum.example.com/auth/provider/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "ding-key", q.Get("client_id"))
	assert.Equal(t, "openid corpid", q.Get("scope"))
	assert.Equal(t, "state123", q.Get("state"))
	assert.Equal(t, "consent", q.Get("prompt"))
}

func TestEnterpriseAllowed(t *testing.T) {
	open := Config{EnterpriseOnly: false, AllowedCorpIDs: []string{"a"}}
	assert.True(t, open.EnterpriseAllowed("zzz"))

	emptyList := Config{EnterpriseOnly: true}
	assert.True(t, emptyList.EnterpriseAllowed("zzz"))

	restricted := Config{EnterpriseOnly: true, AllowedCorpIDs: []string{" corp-a", "corp-b "}}
	assert.True(t, restricted.EnterpriseAllowed("corp-a"))
	assert.True(t, restricted.EnterpriseAllowed("corp-b"))
	assert.False(t, restricted.EnterpriseAllowed("corp-c"))
	assert.False(t, restricted.EnterpriseAllowed(""))
}

func TestSignature_Deterministic(t *testing.T) {
	a := Signature(1700000000000, "secret")
	b := Signature(1700000000000, "secret")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Signature(1700000000001, "secret"))
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}

func TestNormalizeProfile_KeyVariants(t *testing.T) {
	p := normalizeProfile(map[string]any{"unionid": "u", "openid": "o", "name": "n", "avatar": "a", "org_email": "e@x", "corp_id": "c"})
	assert.Equal(t, "u", p.ProviderUserID)
	assert.Equal(t, "o", p.ProviderOpenID)
	assert.Equal(t, "n", p.DisplayName)
	assert.Equal(t, "a", p.AvatarURL)
	assert.Equal(t, "e@x", p.Email)
	assert.Equal(t, "c", p.OrganizationID)
}
