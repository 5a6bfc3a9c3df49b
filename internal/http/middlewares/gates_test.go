package middlewares

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/session"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
)

type fakeSettings struct {
	vals settings.Values
	err  error
}

func (f fakeSettings) Load(context.Context) (settings.Values, error) { return f.vals, f.err }

type fakeBinding struct {
	exempt map[string]bool
	bound  map[string]bool
}

func (f fakeBinding) IsExempt(_ context.Context, u *repository.User) (bool, error) {
	return f.exempt[u.ID], nil
}

func (f fakeBinding) IsBound(_ context.Context, id string) (bool, error) {
	return f.bound[id], nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func withUser(r *http.Request, u *repository.User) *http.Request {
	return r.WithContext(WithUser(r.Context(), u))
}

func TestRequireBinding(t *testing.T) {
	gate := RequireBinding(GateConfig{
		Settings: fakeSettings{vals: settings.NewValues(map[string]string{settings.KeyForceBind: "1"})},
		Identity: fakeBinding{
			exempt: map[string]bool{"admin": true},
			bound:  map[string]bool{"bound": true},
		},
	})(okHandler)

	tests := []struct {
		name   string
		path   string
		user   *repository.User
		status int
	}{
		{"anonymous passes", "/api/posts", nil, http.StatusTeapot},
		{"unbound api blocked", "/api/posts", &repository.User{ID: "u1"}, http.StatusForbidden},
		{"bound user passes", "/api/posts", &repository.User{ID: "bound"}, http.StatusTeapot},
		{"exempt user passes", "/api/posts", &repository.User{ID: "admin"}, http.StatusTeapot},
		{"bind endpoint exempt", "/api/provider/bind", &repository.User{ID: "u1"}, http.StatusTeapot},
		{"bind-status exempt", "/api/provider/bind-status", &repository.User{ID: "u1"}, http.StatusTeapot},
		{"logout exempt", "/api/session/logout", &repository.User{ID: "u1"}, http.StatusTeapot},
		{"pages pass", "/t/general", &repository.User{ID: "u1"}, http.StatusTeapot},
		{"prefix lookalike blocked", "/api/provider/binder", &repository.User{ID: "u1"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.user != nil {
				r = withUser(r, tt.user)
			}
			rec := serve(gate, r)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "binding_required")
			}
		})
	}
}

func TestRequireBinding_Disabled(t *testing.T) {
	gate := RequireBinding(GateConfig{
		Settings: fakeSettings{vals: settings.NewValues(nil)},
		Identity: fakeBinding{},
	})(okHandler)

	r := withUser(httptest.NewRequest(http.MethodGet, "/api/posts", nil), &repository.User{ID: "u1"})
	assert.Equal(t, http.StatusTeapot, serve(gate, r).Code)
}

func TestRequireBinding_SettingsErrorSkipsGate(t *testing.T) {
	gate := RequireBinding(GateConfig{
		Settings: fakeSettings{err: errors.New("db down")},
		Identity: fakeBinding{},
	})(okHandler)

	r := withUser(httptest.NewRequest(http.MethodGet, "/api/posts", nil), &repository.User{ID: "u1"})
	assert.Equal(t, http.StatusTeapot, serve(gate, r).Code)
}

func TestProviderLoginOnly(t *testing.T) {
	cfg := GateConfig{
		Settings: fakeSettings{vals: settings.NewValues(map[string]string{
			settings.KeyOnlyProviderLogin: "1",
			settings.KeyExemptUsers:       "root, Ops@example.com",
		})},
		Identity: fakeBinding{exempt: map[string]bool{"root-id": true}},
	}
	gate := ProviderLoginOnly(cfg)(okHandler)

	post := func(path, body string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		return r
	}

	t.Run("native login blocked", func(t *testing.T) {
		rec := serve(gate, post("/api/token", `{"identification":"alice","password":"x"}`))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "provider_login_only")
	})

	t.Run("exempt identification passes with body intact", func(t *testing.T) {
		var got string
		h := ProviderLoginOnly(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			got = string(b)
			w.WriteHeader(http.StatusTeapot)
		}))
		body := `{"identification":"ops@EXAMPLE.com","password":"x"}`
		rec := serve(h, post("/api/token", body))
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, body, got)
	})

	t.Run("exempt session user passes", func(t *testing.T) {
		r := withUser(post("/api/forgot", `{"email":"a@b.c"}`), &repository.User{ID: "root-id"})
		assert.Equal(t, http.StatusTeapot, serve(gate, r).Code)
	})

	t.Run("admin bearer passes", func(t *testing.T) {
		r := post("/api/token", `{}`)
		r = r.WithContext(session.WithActor(r.Context(), &session.Actor{UserID: "a", IsAdmin: true, ViaToken: true}))
		assert.Equal(t, http.StatusTeapot, serve(gate, r).Code)
	})

	t.Run("provider endpoints never blocked", func(t *testing.T) {
		assert.Equal(t, http.StatusTeapot, serve(gate, post("/api/provider/h5-login", `{"code":"x"}`)).Code)
	})

	t.Run("unrelated api passes", func(t *testing.T) {
		assert.Equal(t, http.StatusTeapot, serve(gate, httptest.NewRequest(http.MethodGet, "/api/posts", nil)).Code)
	})
}

func TestProviderLoginOnly_Disabled(t *testing.T) {
	gate := ProviderLoginOnly(GateConfig{
		Settings: fakeSettings{vals: settings.NewValues(nil)},
		Identity: fakeBinding{},
	})(okHandler)

	r := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusTeapot, serve(gate, r).Code)
}
