// Package settings expone los ajustes administrables con tipos y defaults.
//
// Precedencia: valor en la base > semilla de config (YAML/env) > default incorporado.
// Las lecturas se cachean unos segundos con go-cache; Set invalida la cache local.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/dingtalk"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
)

const snapshotKey = "snapshot"

// Service lee y escribe ajustes.
type Service struct {
	repo  repository.SettingRepository
	seeds map[string]string
	cache *gocache.Cache
}

// New crea el servicio. seeds viene de la config y pisa los defaults incorporados.
// ttl 0 desactiva la cache de lectura.
func New(repo repository.SettingRepository, seeds map[string]string, ttl time.Duration) *Service {
	s := &Service{repo: repo, seeds: map[string]string{}}
	for k, v := range seeds {
		s.seeds[k] = v
	}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

// Load devuelve una foto tipada de todos los ajustes.
func (s *Service) Load(ctx context.Context) (Values, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(snapshotKey); ok {
			return v.(Values), nil
		}
	}
	stored, err := s.repo.AllSettings(ctx)
	if err != nil {
		return Values{}, fmt.Errorf("settings: load: %w", err)
	}
	raw := make(map[string]string, len(builtinDefaults)+len(stored))
	for k, v := range builtinDefaults {
		raw[k] = v
	}
	for k, v := range s.seeds {
		raw[k] = v
	}
	for k, v := range stored {
		raw[k] = v
	}
	vals := Values{raw: raw}
	if s.cache != nil {
		s.cache.SetDefault(snapshotKey, vals)
	}
	return vals, nil
}

// Set persiste una clave conocida.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if !Known(key) {
		return fmt.Errorf("%w: unknown setting %q", repository.ErrInvalidInput, key)
	}
	if err := s.repo.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Unset borra el valor persistido; vuelve a regir la semilla o el default.
func (s *Service) Unset(ctx context.Context, key string) error {
	if err := s.repo.DeleteSetting(ctx, key); err != nil && !repository.IsNotFound(err) {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate descarta la foto cacheada.
func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Delete(snapshotKey)
	}
}

// ProviderConfig implementa dingtalk.ConfigSource.
func (s *Service) ProviderConfig(ctx context.Context) (dingtalk.Config, error) {
	v, err := s.Load(ctx)
	if err != nil {
		return dingtalk.Config{}, err
	}
	return v.Provider(), nil
}

// =================================================================================
// VALUES
// =================================================================================

// Values es una foto inmutable de los ajustes.
type Values struct {
	raw map[string]string
}

// NewValues arma una foto a partir de un mapa (defaults incluidos). Útil en tests.
func NewValues(m map[string]string) Values {
	raw := make(map[string]string, len(builtinDefaults)+len(m))
	for k, v := range builtinDefaults {
		raw[k] = v
	}
	for k, v := range m {
		raw[k] = v
	}
	return Values{raw: raw}
}

// String retorna el valor crudo (trim).
func (v Values) String(key string) string {
	return strings.TrimSpace(v.raw[key])
}

// Bool interpreta "1", "true", "yes", "on" como verdadero.
func (v Values) Bool(key string) bool {
	switch strings.ToLower(v.String(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Int retorna def si el valor no es un entero.
func (v Values) Int(key string, def int) int {
	n, err := strconv.Atoi(v.String(key))
	if err != nil {
		return def
	}
	return n
}

// List separa por comas, descartando vacíos.
func (v Values) List(key string) []string {
	parts := strings.Split(v.String(key), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Map retorna una copia; los secretos se enmascaran si mask es true.
func (v Values) Map(mask bool) map[string]string {
	out := make(map[string]string, len(v.raw))
	for k, val := range v.raw {
		if mask && Secret(k) && val != "" {
			val = "********"
		}
		out[k] = val
	}
	return out
}

// SortedKeys retorna las claves presentes ordenadas.
func (v Values) SortedKeys() []string {
	keys := make([]string, 0, len(v.raw))
	for k := range v.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Values) AutoRegister() bool      { return v.Bool(KeyAutoRegister) }
func (v Values) ForceBind() bool         { return v.Bool(KeyForceBind) }
func (v Values) OnlyProviderLogin() bool { return v.Bool(KeyOnlyProviderLogin) }
func (v Values) SyncNickname() bool      { return v.Bool(KeySyncNickname) }
func (v Values) SyncAvatar() bool        { return v.Bool(KeySyncAvatar) }
func (v Values) SyncMobile() bool        { return v.Bool(KeySyncMobile) }
func (v Values) SyncEmail() bool         { return v.Bool(KeySyncEmail) }
func (v Values) AllowLogExport() bool    { return v.Bool(KeyAllowLogExport) }
func (v Values) EnableH5Login() bool     { return v.Bool(KeyEnableH5Login) }
func (v Values) ShowOnIndex() bool       { return v.Bool(KeyShowOnIndex) }
func (v Values) ShowLoginButton() bool   { return v.Bool(KeyShowLoginButton) }
func (v Values) ExemptUsers() []string   { return v.List(KeyExemptUsers) }

// UsernameRule: "nickname" (default) o "random".
func (v Values) UsernameRule() string {
	if r := strings.ToLower(v.String(KeyUsernameRule)); r == "random" {
		return r
	}
	return "nickname"
}

// LogRetentionDays: 30 si no es un número.
func (v Values) LogRetentionDays() int { return v.Int(KeyLogRetentionDays, 30) }

// CallbackURL retorna "" cuando debe autogenerarse (vacío o "auto").
func (v Values) CallbackURL() string {
	u := v.String(KeyCallbackURL)
	if strings.EqualFold(u, "auto") {
		return ""
	}
	return u
}

// Provider arma la config del cliente del proveedor.
func (v Values) Provider() dingtalk.Config {
	return dingtalk.Config{
		AppKey:         v.String(KeyAppKey),
		AppSecret:      v.String(KeyAppSecret),
		AgentID:        v.String(KeyAgentID),
		CorpID:         v.String(KeyCorpID),
		EnterpriseOnly: v.Bool(KeyEnterpriseOnly),
		AllowedCorpIDs: v.List(KeyAllowedCorpIDs),
	}
}
