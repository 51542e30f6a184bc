package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, time.Minute, cfg.MetricsInterval)
	assert.Equal(t, time.Minute, cfg.WarningCooldown)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.MaxCaches)
	assert.Zero(t, cfg.MaxEntriesPerCache)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("CACHE_CLEANUP_INTERVAL", "30s")
	t.Setenv("CACHE_METRICS_INTERVAL", "5s")
	t.Setenv("CACHE_WARNING_COOLDOWN", "10s")
	t.Setenv("CACHE_SHUTDOWN_TIMEOUT", "1s")
	t.Setenv("CACHE_MAX_CACHES", "3")
	t.Setenv("CACHE_MAX_ENTRIES_PER_CACHE", "42")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 5*time.Second, cfg.MetricsInterval)
	assert.Equal(t, 10*time.Second, cfg.WarningCooldown)
	assert.Equal(t, time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 3, cfg.MaxCaches)
	assert.Equal(t, 42, cfg.MaxEntriesPerCache)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CACHE_CLEANUP_INTERVAL", "not-a-duration")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	filled := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig(), filled)

	custom := Config{CleanupInterval: time.Second}.withDefaults()
	assert.Equal(t, time.Second, custom.CleanupInterval)
	assert.Equal(t, time.Minute, custom.MetricsInterval)
}
