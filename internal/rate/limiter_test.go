package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiters_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fixed := time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)
	redisL := NewRedisLimiter(client, "", 3, time.Minute)
	redisL.now = func() time.Time { return fixed }
	memL := NewMemoryLimiter(3, time.Minute)
	memL.now = func() time.Time { return fixed }

	for name, l := range map[string]Limiter{"redis": redisL, "memory": memL} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				res, err := l.Allow(ctx, "1.2.3.4")
				require.NoError(t, err)
				assert.True(t, res.Allowed)
				assert.EqualValues(t, 2-i, res.Remaining)
			}
			res, err := l.Allow(ctx, "1.2.3.4")
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, 55*time.Second, res.RetryAfter)

			other, err := l.Allow(ctx, "5.6.7.8")
			require.NoError(t, err)
			assert.True(t, other.Allowed)
		})
	}
}
