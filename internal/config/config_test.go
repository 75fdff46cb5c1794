package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmped/nmschooldata/tests/testutil"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "https://webnew.ped.state.nm.us", cfg.Source.BaseURL)
	assert.Equal(t, 3, cfg.Source.MaxRetries)
	assert.Equal(t, int64(64<<20), cfg.Source.MaxBodyBytes)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Rate.Enabled)
	assert.False(t, cfg.Refresh.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	testutil.SetEnv(t, "APP_ENV", "production")
	testutil.SetEnv(t, "SERVER_PORT", "9090")
	testutil.SetEnv(t, "SOURCE_BASE_URL", "https://example.ped.test")
	testutil.SetEnv(t, "SOURCE_MAX_RETRIES", "5")
	testutil.SetEnv(t, "CACHE_TTL", "1h")
	testutil.SetEnv(t, "REFRESH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://example.ped.test", cfg.Source.BaseURL)
	assert.Equal(t, 5, cfg.Source.MaxRetries)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Refresh.Enabled)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad server port", "SERVER_PORT", "not-a-port"},
		{"bad db port", "DB_PORT", "5432x"},
		{"bad source timeout", "SOURCE_TIMEOUT", "sixty"},
		{"bad cache ttl", "CACHE_TTL", "1day"},
		{"bad refresh interval", "REFRESH_INTERVAL", "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.SetEnv(t, tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseAndRedisToggles(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.DatabaseEnabled())
	assert.False(t, cfg.RedisEnabled())

	testutil.SetEnv(t, "DB_HOST", "localhost")
	testutil.SetEnv(t, "REDIS_HOST", "localhost")

	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.DatabaseEnabled())
	assert.True(t, cfg.RedisEnabled())
}
