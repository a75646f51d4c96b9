package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", s.Addr)
	assert.Equal(t, "modules.toml", s.ModulesFile)
	assert.Equal(t, "info", s.LogLevel)
	assert.False(t, s.LogDev)
	assert.Empty(t, s.CacheDir)
	assert.False(t, s.NoCache)
	assert.Equal(t, 30*time.Second, s.ExecTimeout)
	assert.False(t, s.EnableCORS)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WAGI_ADDR", "127.0.0.1:8080")
	t.Setenv("WAGI_MODULES_FILE", "/etc/wagi/modules.toml")
	t.Setenv("WAGI_LOG_LEVEL", "debug")
	t.Setenv("WAGI_LOG_DEV", "true")
	t.Setenv("WAGI_CACHE_DIR", "/var/cache/wagi")
	t.Setenv("WAGI_EXEC_TIMEOUT", "5s")
	t.Setenv("WAGI_CORS", "true")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", s.Addr)
	assert.Equal(t, "/etc/wagi/modules.toml", s.ModulesFile)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.LogDev)
	assert.Equal(t, "/var/cache/wagi", s.CacheDir)
	assert.Equal(t, 5*time.Second, s.ExecTimeout)
	assert.True(t, s.EnableCORS)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("WAGI_EXEC_TIMEOUT", "fast")
	_, err := Load()
	require.Error(t, err)
}
