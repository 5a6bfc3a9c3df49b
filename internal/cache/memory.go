package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory implementa Client sobre go-cache.
type Memory struct {
	prefix string
	c      *gocache.Cache
	// take serializa Get+Delete para que Take sea atómico.
	take sync.Mutex
}

// NewMemory crea un cliente en memoria. defaultTTL sólo aplica a Set con ttl<0.
func NewMemory(prefix string, defaultTTL time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &Memory{prefix: prefix, c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	switch {
	case ttl == 0:
		ttl = gocache.NoExpiration
	case ttl < 0:
		ttl = gocache.DefaultExpiration
	}
	m.take.Lock()
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	m.take.Unlock()
	return nil
}

func (m *Memory) Take(_ context.Context, key string) (string, error) {
	k := prefixed(m.prefix, key)
	m.take.Lock()
	defer m.take.Unlock()
	v, ok := m.c.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	m.c.Delete(k)
	s, _ := v.(string)
	return s, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.take.Lock()
	m.c.Delete(prefixed(m.prefix, key))
	m.take.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.c.Get(prefixed(m.prefix, key))
	return ok, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}
