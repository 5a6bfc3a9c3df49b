package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestCheckReady(t *testing.T) {
	svc := NewHealthService(Deps{
		DBCheck:            ok,
		CacheCheck:         ok,
		ProviderConfigured: func(context.Context) bool { return true },
		DefaultKey:         func() bool { return false },
	})

	resp := svc.Check(context.Background())
	assert.Equal(t, StatusReady, resp.Status)
	assert.Equal(t, StatusOK, resp.Components["db"].Status)
	assert.Empty(t, resp.Warnings)
}

func TestCheckDegradedOnDefaultKey(t *testing.T) {
	svc := NewHealthService(Deps{
		DBCheck:            ok,
		ProviderConfigured: func(context.Context) bool { return false },
		DefaultKey:         func() bool { return true },
	})

	resp := svc.Check(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, StatusDisabled, resp.Components["provider"].Status)
	assert.Equal(t, StatusDisabled, resp.Components["cache"].Status)
}

func TestCheckUnavailableOnDB(t *testing.T) {
	svc := NewHealthService(Deps{
		DBCheck:    func(context.Context) error { return errors.New("dial tcp: refused") },
		CacheCheck: ok,
	})

	resp := svc.Check(context.Background())
	assert.Equal(t, StatusUnavailable, resp.Status)
	assert.Equal(t, "unavailable", resp.Components["db"].Message, "el detalle interno no se expone")
}
