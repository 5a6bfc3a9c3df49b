package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		SiteName string `yaml:"site_name"`
		// Timezone interpreta los filtros de fecha del log ("Local", "Asia/Shanghai").
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// BaseURL público; se usa para autogenerar la URL de callback.
		BaseURL string `yaml:"base_url"`
		// UpstreamURL: si se setea, las rutas desconocidas se proxean al host
		// detrás de los gates de binding.
		UpstreamURL     string `yaml:"upstream_url"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver       string `yaml:"driver"` // postgres | sqlite
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		Secure     bool   `yaml:"secure"`
		SameSite   string `yaml:"same_site"` // lax | strict | none
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	Provider struct {
		APIBaseURL   string `yaml:"api_base_url"`
		OAPIBaseURL  string `yaml:"oapi_base_url"`
		LoginBaseURL string `yaml:"login_base_url"`
		HTTPTimeout  string `yaml:"http_timeout"`
		SafetyMargin string `yaml:"token_safety_margin"`
	} `yaml:"provider"`

	Security struct {
		// EncryptionKey cifra móvil/email del vínculo. Vacío = app_secret.
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"security"`

	Admin struct {
		TokenSecret string `yaml:"token_secret"`
		TokenTTL    string `yaml:"token_ttl"`
	} `yaml:"admin"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		From               string `yaml:"from"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		TLSMode            string `yaml:"tls_mode"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Events struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"events"`

	Jobs struct {
		// LogCleanupInterval: cada cuánto corre la limpieza del log de logins. "0" la desactiva.
		LogCleanupInterval string `yaml:"log_cleanup_interval"`
	} `yaml:"jobs"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Settings siembra los ajustes administrables (app_key, force_bind...).
	// Un valor guardado en la base tiene prioridad.
	Settings map[string]string `yaml:"settings"`
}

// Load lee path (opcional: "" = sólo defaults + env), aplica env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.SiteName == "" {
		c.App.SiteName = "Forum"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "60s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "file:data/dingtalk.db?_foreign_keys=on"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "dingtalk"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sid"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "720h"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 30
	}
	if c.Provider.HTTPTimeout == "" {
		c.Provider.HTTPTimeout = "30s"
	}
	if c.Provider.SafetyMargin == "" {
		c.Provider.SafetyMargin = "300s"
	}
	if c.Admin.TokenTTL == "" {
		c.Admin.TokenTTL = "1h"
	}
	if c.Events.Workers == 0 {
		c.Events.Workers = 4
	}
	if c.Events.QueueSize == 0 {
		c.Events.QueueSize = 256
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "Local"
	}
	if c.Jobs.LogCleanupInterval == "" {
		c.Jobs.LogCleanupInterval = "24h"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvStr("SERVER_UPSTREAM_URL"); ok {
		c.Server.UpstreamURL = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_MAX_OPEN_CONNS"); ok {
		c.Storage.MaxOpenConns = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvBool("SESSION_COOKIE_SECURE"); ok {
		c.Session.Secure = v
	}
	if v, ok := getEnvStr("SESSION_COOKIE_DOMAIN"); ok {
		c.Session.Domain = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	if v, ok := getEnvStr("ENCRYPTION_KEY"); ok {
		c.Security.EncryptionKey = v
	}
	if v, ok := getEnvStr("ADMIN_TOKEN_SECRET"); ok {
		c.Admin.TokenSecret = v
	}

	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASS"); ok {
		c.SMTP.Password = v
	}

	if v, ok := getEnvStr("APP_TIMEZONE"); ok {
		c.App.Timezone = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// Credenciales del proveedor como semillas de ajustes
	for env, key := range map[string]string{
		"DINGTALK_APP_KEY":    "app_key",
		"DINGTALK_APP_SECRET": "app_secret",
		"DINGTALK_CORP_ID":    "corp_id",
		"DINGTALK_AGENT_ID":   "agent_id",
	} {
		if v, ok := getEnvStr(env); ok {
			c.Settings[key] = v
		}
	}
}

// Validate revisa valores críticos.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver))
	}
	if c.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn: required"))
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unsupported %q", c.Cache.Kind))
	}
	switch strings.ToLower(c.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("session.same_site: unsupported %q", c.Session.SameSite))
	}
	for name, v := range map[string]string{
		"server.read_timeout":          c.Server.ReadTimeout,
		"server.write_timeout":         c.Server.WriteTimeout,
		"server.shutdown_timeout":      c.Server.ShutdownTimeout,
		"cache.memory.default_ttl":     c.Cache.Memory.DefaultTTL,
		"session.ttl":                  c.Session.TTL,
		"rate.window":                  c.Rate.Window,
		"provider.http_timeout":        c.Provider.HTTPTimeout,
		"provider.token_safety_margin": c.Provider.SafetyMargin,
		"admin.token_ttl":              c.Admin.TokenTTL,
		"jobs.log_cleanup_interval":    c.Jobs.LogCleanupInterval,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone: %w", err))
	}
	if c.App.Env == "prod" && len(c.Admin.TokenSecret) > 0 && len(c.Admin.TokenSecret) < 32 {
		errs = append(errs, errors.New("admin.token_secret: must be at least 32 bytes in prod"))
	}
	return errors.Join(errs...)
}

// Location retorna la zona de App.Timezone ya validada.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Dur parsea una duración ya validada.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
