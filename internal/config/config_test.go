package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "sqlite", c.Storage.Driver)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, "sid", c.Session.CookieName)
	assert.Equal(t, 30*time.Second, Dur(c.Provider.HTTPTimeout))
	assert.Equal(t, 300*time.Second, Dur(c.Provider.SafetyMargin))
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  base_url: "https://forum.example.com"
storage:
  driver: postgres
  dsn: postgres://u:p@localhost/db
settings:
  force_bind: "1"
  app_key: from-yaml
`), 0o600))

	t.Setenv("DINGTALK_APP_KEY", "from-env")
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6380")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, "127.0.0.1:6380", c.Cache.Redis.Addr)
	assert.Equal(t, "from-env", c.Settings["app_key"])
	assert.Equal(t, "1", c.Settings["force_bind"])
}

func TestValidate_Rejects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: mongo
  dsn: x
session:
  ttl: forever
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "session.ttl")
}
