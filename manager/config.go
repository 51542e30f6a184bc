package manager

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the manager's scheduling knobs. All fields have working
// defaults; zero values are replaced in New().
type Config struct {
	// CleanupInterval is the period of the global cleanup loop.
	CleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL" envDefault:"5m"`

	// MetricsInterval is the period of the metrics/threshold loop.
	MetricsInterval time.Duration `env:"CACHE_METRICS_INTERVAL" envDefault:"1m"`

	// WarningCooldown suppresses repeated warning-level alerts within
	// the window. Critical alerts are never rate-limited.
	WarningCooldown time.Duration `env:"CACHE_WARNING_COOLDOWN" envDefault:"1m"`

	// ShutdownTimeout bounds the wait for background loops on Shutdown.
	ShutdownTimeout time.Duration `env:"CACHE_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// MaxCaches and MaxEntriesPerCache override the hardware-derived
	// limits when positive; zero keeps the adaptive values.
	MaxCaches          int `env:"CACHE_MAX_CACHES" envDefault:"0"`
	MaxEntriesPerCache int `env:"CACHE_MAX_ENTRIES_PER_CACHE" envDefault:"0"`
}

// LoadConfig reads Config from environment variables, loading a .env file
// first if one exists.
func LoadConfig() (Config, error) {
	// The .env file is optional; a missing file is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("manager: parse config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the documented defaults without touching the
// environment.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 5 * time.Minute,
		MetricsInterval: time.Minute,
		WarningCooldown: time.Minute,
		ShutdownTimeout: 5 * time.Second,
	}
}

// withDefaults fills unset durations so a zero Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = d.MetricsInterval
	}
	if c.WarningCooldown <= 0 {
		c.WarningCooldown = d.WarningCooldown
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
