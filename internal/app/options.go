package app

import (
	"time"

	"github.com/okian/podium/internal/domain/activity"
	"github.com/okian/podium/internal/domain/events"
	"github.com/okian/podium/internal/domain/season"
	"github.com/okian/podium/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSink installs the event sink. Nil sinks are ignored.
func WithSink(s events.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithAuthorizer installs the injected access-control check for the
// administrative entry points.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) {
		if a != nil {
			e.authz = a
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSeasonDefaults sets the config handed to partitions at first use.
func WithSeasonDefaults(c season.Config) Option {
	return func(e *Engine) {
		e.seasons = season.New(season.WithDefaults(c), season.WithNowFunc(e.now))
	}
}

// WithInactivityThreshold bounds how stale an entity may get before
// CleanupInactive deactivates it.
func WithInactivityThreshold(d time.Duration) Option {
	return func(e *Engine) {
		e.activity = activity.New(activity.WithInactivityThreshold(d), activity.WithNowFunc(e.now))
	}
}

// WithNowFunc overrides the clock. Used by tests; apply it before any
// option that builds a clock-dependent collaborator.
func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
