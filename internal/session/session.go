// Package session maneja la sesión de navegador (cookie opaca + payload en
// cache) y las autorizaciones pendientes del flujo de redirect.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/cache"
)

var (
	// ErrNoSession indica que no hay sesión autenticada para el request.
	ErrNoSession = errors.New("session: not found")

	// ErrNoPending indica que no hay autorización pendiente (nunca existió o ya se consumió).
	ErrNoPending = errors.New("session: no pending authorization")
)

// Data es el payload de una sesión autenticada.
type Data struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Pending es la autorización pendiente de un redirect al proveedor.
type Pending struct {
	State     string    `json:"state"`
	BindMode  bool      `json:"bind_mode"`
	Referer   string    `json:"referer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Config de cookies y TTLs.
type Config struct {
	CookieName string
	Domain     string
	SameSite   string
	Secure     bool
	TTL        time.Duration

	// PendingTTL acota la vida de una autorización pendiente; por defecto la de la sesión.
	PendingTTL time.Duration
}

// Manager es el session store sobre cache.Client.
type Manager struct {
	cache cache.Client
	cfg   Config
	now   func() time.Time
}

// NewManager crea un Manager con defaults razonables.
func NewManager(c cache.Client, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "sid"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = cfg.TTL
	}
	return &Manager{cache: c, cfg: cfg, now: time.Now}
}

// CookieName retorna el nombre de la cookie de sesión.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// ID retorna el id de sesión del request, o "".
func (m *Manager) ID(r *http.Request) string {
	ck, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}

// Ensure retorna el id de sesión existente o emite uno nuevo (anónimo) con su cookie.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if sid := m.ID(r); sid != "" {
		return sid, nil
	}
	sid, err := newID()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, m.cookie(sid))
	return sid, nil
}

// Load obtiene la sesión autenticada de sid.
func (m *Manager) Load(ctx context.Context, sid string) (*Data, error) {
	if sid == "" {
		return nil, ErrNoSession
	}
	raw, err := m.cache.Get(ctx, sessionKey(sid))
	if cache.IsNotFound(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	if d.UserID == "" {
		return nil, ErrNoSession
	}
	return &d, nil
}

// Login establece una sesión para userID. Rota el id (nunca reutiliza el
// anterior) y elimina el payload viejo.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) (string, error) {
	if old := m.ID(r); old != "" {
		_ = m.cache.Delete(ctx, sessionKey(old))
	}

	sid, err := newID()
	if err != nil {
		return "", err
	}
	now := m.now().UTC()
	payload, _ := json.Marshal(Data{UserID: userID, CreatedAt: now, ExpiresAt: now.Add(m.cfg.TTL)})
	if err := m.cache.Set(ctx, sessionKey(sid), string(payload), m.cfg.TTL); err != nil {
		return "", fmt.Errorf("session: store: %w", err)
	}
	http.SetCookie(w, m.cookie(sid))
	return sid, nil
}

// Logout elimina la sesión y la cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if sid := m.ID(r); sid != "" {
		if err := m.cache.Delete(ctx, sessionKey(sid)); err != nil {
			return fmt.Errorf("session: delete: %w", err)
		}
	}
	http.SetCookie(w, m.deletionCookie())
	return nil
}

// ─── Autorización pendiente ───

// PutPending guarda p para sid, reemplazando cualquier pendiente previa.
func (m *Manager) PutPending(ctx context.Context, sid string, p Pending) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now().UTC()
	}
	raw, _ := json.Marshal(p)
	if err := m.cache.Set(ctx, pendingKey(sid), string(raw), m.cfg.PendingTTL); err != nil {
		return fmt.Errorf("session: store pending: %w", err)
	}
	return nil
}

// TakePending consume la autorización pendiente de sid. Es atómico: dos
// callbacks concurrentes nunca obtienen la misma.
func (m *Manager) TakePending(ctx context.Context, sid string) (*Pending, error) {
	if sid == "" {
		return nil, ErrNoPending
	}
	raw, err := m.cache.Take(ctx, pendingKey(sid))
	if cache.IsNotFound(err) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("session: take pending: %w", err)
	}
	var p Pending
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("session: decode pending: %w", err)
	}
	return &p, nil
}

// NewState genera un state CSRF de 32 caracteres hex.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ─── helpers ───

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Las keys usan el hash del id: un dump del cache no expone cookies válidas.
func hashID(sid string) string {
	sum := sha256.Sum256([]byte(sid))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func sessionKey(sid string) string { return "sid:" + hashID(sid) }
func pendingKey(sid string) string { return "pending:" + hashID(sid) }

func parseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (m *Manager) cookie(sid string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    sid,
		Path:     "/",
		Domain:   strings.TrimSpace(m.cfg.Domain),
		MaxAge:   int(m.cfg.TTL.Seconds()),
		Expires:  m.now().Add(m.cfg.TTL).UTC(),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: parseSameSite(m.cfg.SameSite),
	}
}

func (m *Manager) deletionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   strings.TrimSpace(m.cfg.Domain),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: parseSameSite(m.cfg.SameSite),
	}
}
