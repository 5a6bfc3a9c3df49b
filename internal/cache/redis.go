package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implementa Client sobre go-redis.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis conecta y verifica con PING.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return &Redis{client: rdb, prefix: cfg.Prefix}, nil
}

// NewRedisFromClient envuelve un cliente existente (lo comparte el rate limiter).
func NewRedisFromClient(c *redis.Client, prefix string) *Redis {
	return &Redis{client: c, prefix: prefix}
}

// Raw expone el cliente subyacente.
func (r *Redis) Raw() *redis.Client { return r.client }

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, prefixed(r.prefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, prefixed(r.prefix, key), value, ttl).Err()
}

func (r *Redis) Take(ctx context.Context, key string) (string, error) {
	val, err := r.client.GetDel(ctx, prefixed(r.prefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, prefixed(r.prefix, key)).Err()
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, prefixed(r.prefix, key)).Result()
	return n > 0, err
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
