// Package record implements the monotonic best-value-ever tracker.
//
// A Tracker never lets its best value decrease, and only a strictly
// greater candidate dispossesses the incumbent holder: the first entity
// to reach a value keeps the record at that value. How a candidate is
// derived from an observation is pluggable through the Aggregator
// strategy, so the same tracker serves both caller-computed totals and
// running sums of named components.
package record

import (
	"math"

	"github.com/okian/podium/internal/domain/types"
)

// Aggregator folds one observed component value into the candidate total
// for an entity.
type Aggregator interface {
	// Aggregate records value for (entity, component) and returns the
	// entity's candidate total.
	Aggregate(entity, component string, value uint64) uint64
}

// PerEvent compares the caller-supplied value directly. Used when an
// upstream collaborator already computes the relevant aggregate.
type PerEvent struct{}

// Aggregate returns value unchanged.
func (PerEvent) Aggregate(_, _ string, value uint64) uint64 { return value }

// SumOfComponents maintains a running per-entity total across named
// components; each observation replaces one component's value and the
// candidate is the recomputed sum.
type SumOfComponents struct {
	components map[string]map[string]uint64 // entity -> component -> value
	totals     map[string]uint64
}

// NewSumOfComponents constructs an empty summing strategy.
func NewSumOfComponents() *SumOfComponents {
	return &SumOfComponents{
		components: make(map[string]map[string]uint64),
		totals:     make(map[string]uint64),
	}
}

// Aggregate implements Aggregator. Totals saturate instead of wrapping.
func (s *SumOfComponents) Aggregate(entity, component string, value uint64) uint64 {
	parts, ok := s.components[entity]
	if !ok {
		parts = make(map[string]uint64)
		s.components[entity] = parts
	}
	parts[component] = value

	var total uint64
	for _, v := range parts {
		total = satAdd(total, v)
	}
	s.totals[entity] = total
	return total
}

// Total returns the entity's current running total.
func (s *SumOfComponents) Total(entity string) uint64 {
	return s.totals[entity]
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// Tracker holds a single (bestValue, holder) pair.
type Tracker struct {
	agg    Aggregator
	best   uint64
	holder string
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithAggregator selects the aggregation strategy. Default is PerEvent.
func WithAggregator(agg Aggregator) Option {
	return func(t *Tracker) {
		if agg != nil {
			t.agg = agg
		}
	}
}

// New constructs a tracker with configuration options.
func New(opts ...Option) *Tracker {
	t := &Tracker{agg: PerEvent{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe feeds one observation through the aggregation strategy and
// reports whether the record fell. Ties keep the incumbent.
func (t *Tracker) Observe(entity, component string, value uint64) bool {
	candidate := t.agg.Aggregate(entity, component, value)
	if candidate <= t.best {
		return false
	}
	t.best = candidate
	t.holder = entity
	return true
}

// Best returns the current record value and its holder. The holder is
// empty while no observation has beaten zero.
func (t *Tracker) Best() (uint64, string) {
	return t.best, t.holder
}

// CategoryTracker pairs one cross-category aggregate record with an
// independent (bestValue, holder) pair per category. The aggregate runs
// a SumOfComponents strategy keyed by category name; each per-category
// record compares observations directly.
type CategoryTracker struct {
	overall *Tracker
	perCat  map[types.Category]*Tracker
}

// NewCategoryTracker constructs an empty per-category record set.
func NewCategoryTracker() *CategoryTracker {
	return &CategoryTracker{
		overall: New(WithAggregator(NewSumOfComponents())),
		perCat:  make(map[types.Category]*Tracker),
	}
}

// Observe records value for (entity, category) against both the
// category record and the cross-category aggregate. It reports which of
// the two records fell.
func (ct *CategoryTracker) Observe(entity string, c types.Category, value uint64) (overall, category bool) {
	tr, ok := ct.perCat[c]
	if !ok {
		tr = New()
		ct.perCat[c] = tr
	}
	category = tr.Observe(entity, "", value)
	overall = ct.overall.Observe(entity, c.String(), value)
	return overall, category
}

// Best returns the cross-category aggregate record.
func (ct *CategoryTracker) Best() (uint64, string) {
	return ct.overall.Best()
}

// BestInCategory returns the record for one category.
func (ct *CategoryTracker) BestInCategory(c types.Category) (uint64, string) {
	tr, ok := ct.perCat[c]
	if !ok {
		return 0, ""
	}
	return tr.Best()
}
