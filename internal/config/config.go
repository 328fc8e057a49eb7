// Package config loads runtime configuration from the environment
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime settings. Every field is read from the
// environment with the HAVEN_ prefix, e.g. HAVEN_DB_PATH.
type Config struct {
	// DBPath is the SQLite database file
	DBPath string `envconfig:"DB_PATH" default:"data/haven.db"`

	// IdentityCachePath is the bbolt file backing the identity cache
	IdentityCachePath string `envconfig:"IDENTITY_CACHE_PATH" default:"data/identity-cache.db"`

	// IdentityCacheTTL is how long cached identity snapshots stay fresh
	IdentityCacheTTL time.Duration `envconfig:"IDENTITY_CACHE_TTL" default:"15m"`

	// RefdataPath points at the reference data JSON; empty uses built-in defaults
	RefdataPath string `envconfig:"REFDATA_PATH" default:""`

	// SweepInterval is the cadence of the warning/restriction expiry sweeper
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"24h"`

	// BatchWindow is the reaction notification batching window
	BatchWindow time.Duration `envconfig:"BATCH_WINDOW" default:"15m"`

	// CleanupInterval is the cadence of expired-notification retention cleanup
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`

	// MetricsAddr is the listen address for the Prometheus metrics endpoint
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("haven", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
