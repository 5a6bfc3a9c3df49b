// Package server arma la aplicación completa a partir de la config: store,
// cache, cliente del proveedor, services, controllers y router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/cache"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/config"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/dingtalk"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/email"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/events"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/controllers/auth"
	mw "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/middlewares"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/router"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/health"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/loginlog"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/jwt"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/metrics"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/rate"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/security/secretbox"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/session"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
)

// settingsCacheTTL acota cuánto tarda un cambio de ajustes hecho por otra
// réplica en verse.
const settingsCacheTTL = 30 * time.Second

// App es la aplicación armada.
type App struct {
	Handler  http.Handler
	DAL      store.DataAccessLayer
	Settings *settings.Service
	Services *services.Services
	Bus      *events.Bus
	Sweeper  *loginlog.Sweeper

	closers []func() error
}

// Close libera store, cache y bus en orden inverso de creación.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStore abre y migra la base según la config. Lo usan serve y los
// comandos de mantenimiento.
func OpenStore(ctx context.Context, cfg *config.Config) (store.DataAccessLayer, error) {
	dal, err := store.Open(ctx, store.AdapterConfig{
		Name:         cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
		MaxIdleConns: cfg.Storage.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	res, err := dal.Migrate(ctx)
	if err != nil {
		_ = dal.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if len(res.Applied) > 0 {
		logger.From(ctx).Info("migrations applied", logger.Int("count", len(res.Applied)))
	}
	return dal, nil
}

// Build arma la App. El llamador debe Close().
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.From(ctx).With(logger.Component("wiring"))
	app := &App{}

	// 1. Store
	dal, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DAL = dal
	app.closers = append(app.closers, dal.Close)

	// 2. Cache (sesiones, pendientes, rate limit)
	cc, err := cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}
	app.closers = append(app.closers, cc.Close)

	// 3. Ajustes administrables
	app.Settings = settings.New(dal.Settings(), cfg.Settings, settingsCacheTTL)
	vals, err := app.Settings.Load(ctx)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("settings: %w", err)
	}

	// 4. Cifrado de campos sensibles
	box := secretbox.New(cfg.Security.EncryptionKey, vals.String(settings.KeyAppSecret))
	if box.UsingDefaultKey() {
		log.Warn("sensitive fields use the built-in default key; set security.encryption_key")
	}

	// 5. Cliente del proveedor
	client := dingtalk.NewClient(app.Settings, dingtalk.Options{
		APIBaseURL:   cfg.Provider.APIBaseURL,
		OAPIBaseURL:  cfg.Provider.OAPIBaseURL,
		LoginBaseURL: cfg.Provider.LoginBaseURL,
		HTTPTimeout:  config.Dur(cfg.Provider.HTTPTimeout),
		SafetyMargin: config.Dur(cfg.Provider.SafetyMargin),
	})

	// 6. Eventos
	app.Bus = events.NewBus(cfg.Events.Workers, cfg.Events.QueueSize)
	if err := events.RegisterLogListeners(app.Bus); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("events: %w", err)
	}
	mailCfg := email.Config{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		From:               cfg.SMTP.From,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		TLSMode:            cfg.SMTP.TLSMode,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	}
	if mailCfg.Enabled() {
		sender, err := email.NewSMTPSender(mailCfg)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("smtp: %w", err)
		}
		if err := events.RegisterMailListener(app.Bus, sender, cfg.App.SiteName); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("events: %w", err)
		}
	}
	app.Bus.Start()
	app.closers = append(app.closers, func() error { app.Bus.Stop(); return nil })

	// 7. Sesiones
	sessions := session.NewManager(cc, session.Config{
		CookieName: cfg.Session.CookieName,
		Domain:     cfg.Session.Domain,
		SameSite:   cfg.Session.SameSite,
		Secure:     cfg.Session.Secure,
		TTL:        config.Dur(cfg.Session.TTL),
		PendingTTL: 10 * time.Minute,
	})

	// 8. Services
	app.Services = services.New(services.Deps{
		DAL:      dal,
		Provider: client,
		Settings: app.Settings,
		Pending:  sessions,
		Box:      box,
		Events:   app.Bus,
		Location: cfg.Location(),
		HealthDeps: health.Deps{
			DBCheck:    dal.Ping,
			CacheCheck: cc.Ping,
			ProviderConfigured: func(ctx context.Context) bool {
				pc, err := app.Settings.ProviderConfig(ctx)
				return err == nil && pc.IsConfigured()
			},
			DefaultKey: box.UsingDefaultKey,
		},
	})

	app.Sweeper = loginlog.NewSweeper(app.Services.LoginLog, func(ctx context.Context) (int, error) {
		v, err := app.Settings.Load(ctx)
		if err != nil {
			return 0, err
		}
		return v.LogRetentionDays(), nil
	}, config.Dur(cfg.Jobs.LogCleanupInterval))

	// 9. Controllers + router
	ctrls := controllers.New(app.Services, controllers.Deps{
		Sessions: sessions,
		Settings: app.Settings,
		Auth:     auth.Config{BaseURL: cfg.Server.BaseURL},
	})

	metricsHandler, err := metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		limiter = newLimiter(cc, cfg)
	}

	var upstream http.Handler
	if u := strings.TrimSpace(cfg.Server.UpstreamURL); u != "" {
		upstream, err = newUpstream(u)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	app.Handler = router.New(router.Deps{
		Controllers: ctrls,
		Auth: mw.AuthConfig{
			Sessions: sessions,
			Users:    dal.Users(),
			Tokens:   jwt.NewIssuer(AdminTokenIssuer, cfg.Admin.TokenSecret, config.Dur(cfg.Admin.TokenTTL)),
		},
		Gates: mw.GateConfig{
			Settings: app.Settings,
			Identity: app.Services.Identity,
		},
		RateLimiter: limiter,
		Metrics:     metricsHandler,
		Upstream:    upstream,
	})

	log.Info("application wired",
		logger.String("storage", dal.Driver()),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("provider_configured", vals.Provider().IsConfigured()),
		logger.Bool("upstream", upstream != nil),
	)
	return app, nil
}

// AdminTokenIssuer es el iss de los tokens de admin.
const AdminTokenIssuer = "dingtalk-login"

// newLimiter usa Redis si el cache es Redis (límite compartido entre
// réplicas) y memoria en otro caso.
func newLimiter(cc cache.Client, cfg *config.Config) rate.Limiter {
	window := config.Dur(cfg.Rate.Window)
	if r, ok := cc.(*cache.Redis); ok {
		return rate.NewRedisLimiter(r.Raw(), cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.MaxRequests, window)
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, window)
}

// newUpstream crea el reverse proxy hacia la app host.
func newUpstream(raw string) (http.Handler, error) {
	target, err := url.Parse(raw)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("server.upstream_url: invalid %q", raw)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.From(r.Context()).Warn("upstream unavailable", logger.Component("proxy"), logger.Err(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}
