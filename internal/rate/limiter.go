// Package rate implementa un rate limiter de ventana fija para los endpoints
// públicos de login.
package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

// Result es la respuesta del limiter para una key.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter decide si una key puede seguir haciendo requests.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func windowKey(prefix, key string, now time.Time, window time.Duration) (string, time.Duration) {
	start := now.Truncate(window)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix()),
		start.Add(window).Sub(now)
}

func result(hits, max int64, ttl time.Duration) Result {
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

// =================================================================================
// REDIS
// =================================================================================

// RedisLimiter: fixed window (INCR + EXPIRE) compartido entre réplicas.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey, left := windowKey(l.Prefix, key, l.now().UTC(), l.Window)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	// expiry en el primer hit
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
	}
	return result(incr.Val(), l.Max, left), nil
}

// =================================================================================
// MEMORY
// =================================================================================

// MemoryLimiter es la variante in-process (un solo nodo).
type MemoryLimiter struct {
	c      *gocache.Cache
	mu     sync.Mutex
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		Max:    int64(max),
		Window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	k, left := windowKey("", key, l.now().UTC(), l.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.c.Add(k, int64(0), left) // falla si la ventana ya existe
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return result(hits, l.Max, left), nil
}
