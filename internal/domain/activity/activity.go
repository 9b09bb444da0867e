// Package activity tracks which entities are active in which categories.
//
// Each entity carries one bitmask with one bit per category. A single
// global counter holds the number of entities with a nonzero mask; it
// moves exactly once per 0<->nonzero transition, never on bit changes
// inside a nonzero mask.
package activity

import (
	"time"

	"github.com/okian/podium/internal/domain/types"
)

// defaultInactivityThreshold bounds how stale an entity may be before
// Cleanup forces its mask to zero.
const defaultInactivityThreshold = 30 * 24 * time.Hour

type record struct {
	mask       uint64
	lastActive time.Time
}

// Tracker is the per-entity activity registry. It is not safe for
// concurrent use; the engine serializes access.
type Tracker struct {
	records   map[string]*record
	active    int // count of entities with a nonzero mask
	threshold time.Duration
	now       func() time.Time
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithInactivityThreshold sets how stale an entity may get before
// Cleanup deactivates it.
func WithInactivityThreshold(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.threshold = d
		}
	}
}

// WithNowFunc overrides the clock. Used by tests.
func WithNowFunc(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New constructs an empty tracker with configuration options.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		records:   make(map[string]*record),
		threshold: defaultInactivityThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetActive sets or clears the entity's bit for the category and reports
// whether the global active count changed. The count moves only when the
// mask crosses the zero boundary: clearing one of two set bits leaves it
// alone, setting an already-set bit leaves it alone.
func (t *Tracker) SetActive(entity string, c types.Category, active bool) (crossed bool) {
	rec, ok := t.records[entity]
	if !ok {
		if !active {
			return false // clearing a bit for a never-seen entity
		}
		rec = &record{}
		t.records[entity] = rec
	}

	before := rec.mask
	if active {
		rec.mask |= c.Bit()
		rec.lastActive = t.now()
	} else {
		rec.mask &^= c.Bit()
	}

	switch {
	case before == 0 && rec.mask != 0:
		t.active++
		return true
	case before != 0 && rec.mask == 0:
		t.active--
		return true
	}
	return false
}

// Cleanup forces the mask of every listed entity whose last activity is
// older than the threshold to zero, decrementing the counter only for
// entities that were counted as active. Idempotent: already-inactive and
// never-seen entities are pure no-ops. It reports how many entities were
// deactivated.
func (t *Tracker) Cleanup(entities []string) int {
	cutoff := t.now().Add(-t.threshold)
	deactivated := 0
	for _, entity := range entities {
		rec, ok := t.records[entity]
		if !ok || rec.mask == 0 {
			continue
		}
		if rec.lastActive.After(cutoff) {
			continue
		}
		rec.mask = 0
		t.active--
		deactivated++
	}
	return deactivated
}

// IsActive reports whether the entity has any category bit set.
func (t *Tracker) IsActive(entity string) bool {
	rec, ok := t.records[entity]
	return ok && rec.mask != 0
}

// Mask returns the entity's category bitmask; zero for unknown entities.
func (t *Tracker) Mask(entity string) uint64 {
	if rec, ok := t.records[entity]; ok {
		return rec.mask
	}
	return 0
}

// TotalActive returns the number of entities with a nonzero mask.
func (t *Tracker) TotalActive() int {
	return t.active
}

// LastActive returns the entity's last activation time. ok is false for
// entities that were never activated.
func (t *Tracker) LastActive(entity string) (time.Time, bool) {
	rec, ok := t.records[entity]
	if !ok {
		return time.Time{}, false
	}
	return rec.lastActive, true
}
