// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment sources on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of score-applying workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultMaxEntries bounds each partition unless a season config
	// overrides it.
	DefaultMaxEntries int `koanf:"default_max_entries"`

	// DefaultUpdateCooldown throttles per-entity resubmission. Zero
	// disables the cooldown.
	DefaultUpdateCooldown time.Duration `koanf:"default_update_cooldown"`

	// InactivityThreshold is how long an entity may go without a score
	// update before cleanup may deactivate it.
	InactivityThreshold time.Duration `koanf:"inactivity_threshold"`

	// AdminToken guards the admin endpoints. Empty disables them.
	AdminToken string `koanf:"admin_token"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		EventQueueSize:        100_000,
		WorkerCount:           runtime.NumCPU() * 4,
		DedupeSize:            500_000,
		MaxLeaderboardLimit:   100,
		DefaultMaxEntries:     1000,
		DefaultUpdateCooldown: 0,
		InactivityThreshold:   30 * 24 * time.Hour,
	}
}
