package settings_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store/storetest"
)

func TestPrecedence(t *testing.T) {
	ctx := context.Background()
	dal := storetest.Open(t)
	s := settings.New(dal.Settings(), map[string]string{
		settings.KeyAppKey:    "seed-key",
		settings.KeyForceBind: "1",
	}, time.Minute)

	v, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "seed-key", v.String(settings.KeyAppKey))
	assert.True(t, v.ForceBind())
	assert.Equal(t, 30, v.LogRetentionDays())
	assert.Equal(t, "", v.CallbackURL())

	require.NoError(t, s.Set(ctx, settings.KeyForceBind, "0"))
	v, err = s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, v.ForceBind(), "stored value wins over seed")

	require.NoError(t, s.Unset(ctx, settings.KeyForceBind))
	v, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, v.ForceBind(), "seed applies again after unset")
}

func TestSetUnknownKey(t *testing.T) {
	s := settings.New(storetest.Open(t).Settings(), nil, 0)
	err := s.Set(context.Background(), "nope", "1")
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestUnsetMissingKey(t *testing.T) {
	s := settings.New(storetest.Open(t).Settings(), nil, 0)
	assert.NoError(t, s.Unset(context.Background(), settings.KeyCorpID))
}

func TestValues(t *testing.T) {
	v := settings.NewValues(map[string]string{
		settings.KeyAppSecret:        "shh",
		settings.KeyAllowedCorpIDs:   " corpA, ,corpB ",
		settings.KeyLogRetentionDays: "abc",
		settings.KeyUsernameRule:     "RANDOM",
		settings.KeyCallbackURL:      "https://forum.example/cb",
	})

	assert.Equal(t, []string{"corpA", "corpB"}, v.Provider().AllowedCorpIDs)
	assert.Equal(t, 30, v.LogRetentionDays())
	assert.Equal(t, "random", v.UsernameRule())
	assert.Equal(t, "https://forum.example/cb", v.CallbackURL())
	assert.Equal(t, "********", v.Map(true)[settings.KeyAppSecret])
	assert.Equal(t, "shh", v.Map(false)[settings.KeyAppSecret])
}

func TestKnown(t *testing.T) {
	for _, k := range settings.Keys() {
		assert.True(t, settings.Known(k), k)
	}
	assert.False(t, settings.Known("app_token"))
	assert.True(t, settings.Secret(settings.KeyAppSecret))
	assert.False(t, settings.Secret(settings.KeyAppKey))
}
