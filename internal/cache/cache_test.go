package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clients(t *testing.T) map[string]Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedis(context.Background(), Config{Addr: mr.Addr(), Prefix: "t"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return map[string]Client{
		"memory": NewMemory("t", 0),
		"redis":  rc,
	}
}

func TestClient_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Get(ctx, "missing")
			assert.True(t, IsNotFound(err))

			require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
			v, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", v)

			ok, err := c.Exists(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, c.Delete(ctx, "k"))
			_, err = c.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestClient_TakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, "state", "abc", time.Minute))

			var got int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if v, err := c.Take(ctx, "state"); err == nil && v == "abc" {
						atomic.AddInt32(&got, 1)
					}
				}()
			}
			wg.Wait()
			assert.EqualValues(t, 1, got)

			_, err := c.Take(ctx, "state")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "memcached"})
	assert.Error(t, err)
}
