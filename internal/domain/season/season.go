// Package season holds per-partition leaderboard settings.
//
// Configs are created lazily with defaults at first use and survive
// partition resets; only an explicit Set replaces one. A partition
// accepts score writes while its config is active and, when a season
// window is set, while the clock is inside that window. Reads are never
// gated here.
package season

import (
	"fmt"
	"time"

	"github.com/okian/podium/internal/domain/types"
)

// Default partition settings.
const (
	defaultMaxEntries = 1000
)

// Config carries the settings for one (category, timeframe) partition.
type Config struct {
	IsActive       bool          `json:"is_active"`
	MaxEntries     int           `json:"max_entries"`
	UpdateCooldown time.Duration `json:"update_cooldown"`
	SeasonStart    time.Time     `json:"season_start"`
	SeasonDuration time.Duration `json:"season_duration"`
}

// Validate rejects configs that cannot bound a partition.
func (c Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("%w: max_entries must be positive", ErrInvalidConfig)
	}
	if c.UpdateCooldown < 0 {
		return fmt.Errorf("%w: update_cooldown must not be negative", ErrInvalidConfig)
	}
	if c.SeasonDuration < 0 {
		return fmt.Errorf("%w: season_duration must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Registry maps partition keys to their configs.
// It is not safe for concurrent use; the engine serializes access.
type Registry struct {
	configs  map[types.Key]Config
	defaults Config
	now      func() time.Time
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithDefaults replaces the config handed to partitions at first use.
func WithDefaults(c Config) Option {
	return func(r *Registry) {
		if c.Validate() == nil {
			r.defaults = c
		}
	}
}

// WithNowFunc overrides the clock. Used by tests.
func WithNowFunc(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a registry with configuration options.
func New(opts ...Option) *Registry {
	r := &Registry{
		configs: make(map[types.Key]Config),
		defaults: Config{
			IsActive:   true,
			MaxEntries: defaultMaxEntries,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the partition's config, falling back to defaults for keys
// never written.
func (r *Registry) Get(key types.Key) Config {
	if c, ok := r.configs[key]; ok {
		return c
	}
	return r.defaults
}

// Set wholesale-replaces the partition's config.
func (r *Registry) Set(key types.Key, c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.configs[key] = c
	return nil
}

// Accepting reports whether the partition currently accepts score
// writes: the config must be active and, when a season window is set,
// the clock must be inside it.
func (r *Registry) Accepting(key types.Key) bool {
	c := r.Get(key)
	if !c.IsActive {
		return false
	}
	if c.SeasonDuration > 0 {
		now := r.now()
		if now.Before(c.SeasonStart) || !now.Before(c.SeasonStart.Add(c.SeasonDuration)) {
			return false
		}
	}
	return true
}

// StartNewSeason reconfigures the category's daily partition with a new
// window starting now and marks it active. Existing entries are left in
// place; clearing them is a separate explicit reset.
func (r *Registry) StartNewSeason(c types.Category, duration time.Duration) (Config, error) {
	if duration <= 0 {
		return Config{}, fmt.Errorf("%w: season duration must be positive", ErrInvalidConfig)
	}
	key := types.Key{Category: c, Timeframe: types.TimeframeDaily}
	cfg := r.Get(key)
	cfg.IsActive = true
	cfg.SeasonStart = r.now()
	cfg.SeasonDuration = duration
	r.configs[key] = cfg
	return cfg, nil
}
