package dingtalk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTokenCache_ReusesUntilMargin(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var calls int32
	tc := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		n := atomic.AddInt32(&calls, 1)
		return "tok-" + string(rune('0'+n)), 7200 * time.Second, nil
	}, 0)
	tc.now = clock.Now

	tok, err := tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, clock.Now().Add(6900*time.Second), tc.ExpiresAt())

	clock.Advance(6899 * time.Second)
	tok, err = tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	clock.Advance(time.Second)
	tok, err = tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTokenCache_SingleFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	tc := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", time.Hour, nil
	}, time.Minute)

	const n = 20
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := tc.Token(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestTokenCache_FailuresAreProviderUnavailable(t *testing.T) {
	tc := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		return "", 0, errors.New("dial tcp: timeout")
	}, 0)
	_, err := tc.Token(context.Background())
	assert.ErrorIs(t, err, autherr.ErrProviderUnavailable)

	empty := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		return "", time.Hour, nil
	}, 0)
	_, err = empty.Token(context.Background())
	assert.ErrorIs(t, err, autherr.ErrProviderUnavailable)
}

func TestTokenCache_InvalidateAndDefaultTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var calls int32
	tc := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		atomic.AddInt32(&calls, 1)
		return "tok", 0, nil
	}, 0)
	tc.now = clock.Now

	_, err := tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultTokenTTL-DefaultSafetyMargin), tc.ExpiresAt())

	tc.Invalidate()
	_, err = tc.Token(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
