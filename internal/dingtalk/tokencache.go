package dingtalk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/metrics"
)

const (
	// DefaultSafetyMargin se descuenta del TTL informado por el proveedor.
	DefaultSafetyMargin = 300 * time.Second
	// DefaultTokenTTL se usa cuando la respuesta no trae expires_in.
	DefaultTokenTTL = 7200 * time.Second
)

// TokenFetcher obtiene un token nuevo y su TTL.
type TokenFetcher func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenCache guarda el access token de aplicación en memoria.
// Un solo refresco en vuelo a la vez; los demás esperan su resultado.
type TokenCache struct {
	fetch  TokenFetcher
	margin time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewTokenCache crea la cache. margin <= 0 usa DefaultSafetyMargin.
func NewTokenCache(fetch TokenFetcher, margin time.Duration) *TokenCache {
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	return &TokenCache{fetch: fetch, margin: margin, now: time.Now}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

// Token retorna el token vigente o refresca. Un fallo del fetcher o un token
// vacío se reportan como ErrProviderUnavailable.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do("app_token", func() (any, error) {
		// otro caller pudo haber refrescado mientras esperábamos
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		tok, ttl, err := c.fetch(ctx)
		if err != nil {
			metrics.TokenRefreshes.WithLabelValues("error").Inc()
			return "", fmt.Errorf("%w: app token: %v", autherr.ErrProviderUnavailable, err)
		}
		if tok == "" {
			metrics.TokenRefreshes.WithLabelValues("error").Inc()
			return "", fmt.Errorf("%w: app token: empty token", autherr.ErrProviderUnavailable)
		}
		if ttl <= 0 {
			ttl = DefaultTokenTTL
		}
		life := ttl - c.margin
		if life <= 0 {
			life = ttl / 2
		}

		c.mu.Lock()
		c.token = tok
		c.expiresAt = c.now().Add(life)
		c.mu.Unlock()
		metrics.TokenRefreshes.WithLabelValues("ok").Inc()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate descarta el token; el próximo Token() refresca.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// ExpiresAt expone el vencimiento efectivo (ttl - margen).
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}
