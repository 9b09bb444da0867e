// Package app provides the ranking engine: the atomic entry points that
// tie partitions, activity tracking, global records, and season configs
// together.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/podium/internal/domain/activity"
	"github.com/okian/podium/internal/domain/events"
	"github.com/okian/podium/internal/domain/partition"
	"github.com/okian/podium/internal/domain/record"
	"github.com/okian/podium/internal/domain/season"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Ack reports the outcome of an accepted score mutation.
type Ack struct {
	Entity     string          `json:"entity"`
	Category   types.Category  `json:"category"`
	Timeframe  types.Timeframe `json:"timeframe"`
	Score      uint64          `json:"score"`
	Rank       int             `json:"rank"`
	Admitted   bool            `json:"admitted"`
	Removed    bool            `json:"removed"`
	RecordFell bool            `json:"record_fell"`
}

// Engine owns all ranking state. Every exported call is atomic: one
// mutex serializes access, a call either commits fully or returns an
// error having changed nothing, and event sinks run only after the
// engine's own bookkeeping is committed. Partitions keyed by different
// (category, timeframe) pairs never read or write each other's state.
type Engine struct {
	mu sync.Mutex

	partitions map[types.Key]*partition.Partition
	activity   *activity.Tracker
	records    map[types.Key]*record.Tracker
	catRecord  *record.CategoryTracker
	seasons    *season.Registry

	// rawTotals accumulates accepted score gains per (category, entity),
	// independent of any partition's lifecycle.
	rawTotals map[types.Category]map[string]uint64

	// lastUpdate backs the per-partition update cooldown.
	lastUpdate map[types.Key]map[string]time.Time

	sink   events.Sink
	authz  Authorizer
	logger logger.Logger
	now    func() time.Time
}

// New constructs an engine with default collaborators: a discard sink,
// an allow-all authorizer, and wall-clock time.
func New(opts ...Option) *Engine {
	e := &Engine{
		partitions: make(map[types.Key]*partition.Partition),
		records:    make(map[types.Key]*record.Tracker),
		catRecord:  record.NewCategoryTracker(),
		rawTotals:  make(map[types.Category]map[string]uint64),
		lastUpdate: make(map[types.Key]map[string]time.Time),
		sink:       events.Discard{},
		authz:      AllowAll{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.activity == nil {
		e.activity = activity.New(activity.WithNowFunc(e.now))
	}
	if e.seasons == nil {
		e.seasons = season.New(season.WithNowFunc(e.now))
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}
	return e
}

// UpdateScore records an absolute score for the entity in one partition.
// The season config is consulted first, then the partition is updated,
// then the activity bit and global records, all inside one atomic call.
func (e *Engine) UpdateScore(ctx context.Context, entity string, c types.Category, tf types.Timeframe, score uint64) (Ack, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if err := validateTarget(key, entity); err != nil {
		return Ack{}, err
	}

	start := time.Now()
	e.mu.Lock()
	ack, pending, err := e.applyScore(key, entity, score)
	e.mu.Unlock()
	metrics.RecordUpdateLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordScoreRejection(rejectionReason(err))
		return Ack{}, err
	}
	metrics.RecordScoreUpdate()
	e.emit(ctx, pending)
	return ack, nil
}

// IncrementScore is a convenience wrapper equal to UpdateScore with the
// current partition score plus delta. The addition saturates instead of
// wrapping.
func (e *Engine) IncrementScore(ctx context.Context, entity string, c types.Category, tf types.Timeframe, delta uint64) (Ack, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if err := validateTarget(key, entity); err != nil {
		return Ack{}, err
	}

	start := time.Now()
	e.mu.Lock()
	var prev uint64
	if part, ok := e.partitions[key]; ok {
		prev, _ = part.Score(entity)
	}
	ack, pending, err := e.applyScore(key, entity, satAdd(prev, delta))
	e.mu.Unlock()
	metrics.RecordUpdateLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordScoreRejection(rejectionReason(err))
		return Ack{}, err
	}
	metrics.RecordScoreUpdate()
	e.emit(ctx, pending)
	return ack, nil
}

// UpdateScores applies one absolute score per entity, in submission
// order, inside a single atomic call. The slices run in parallel and
// the whole batch is validated before any write: empty batches,
// mismatched lengths, and malformed targets fail the call with nothing
// changed. A per-entry admission, cooldown, or season rejection does
// not abort the batch; the entry's Ack reports Admitted == false and
// the remaining entries still apply.
func (e *Engine) UpdateScores(ctx context.Context, entities []string, c types.Category, tf types.Timeframe, scores []uint64) ([]Ack, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: entities", types.ErrEmptyInput)
	}
	if len(entities) != len(scores) {
		return nil, fmt.Errorf("%w: %d entities, %d scores", types.ErrLengthMismatch, len(entities), len(scores))
	}
	for _, entity := range entities {
		if err := validateTarget(key, entity); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	e.mu.Lock()
	acks := make([]Ack, 0, len(entities))
	var pending []events.Event
	for i, entity := range entities {
		ack, evs, err := e.applyScore(key, entity, scores[i])
		if err != nil {
			metrics.RecordScoreRejection(rejectionReason(err))
			acks = append(acks, Ack{Entity: entity, Category: c, Timeframe: tf, Score: scores[i]})
			continue
		}
		metrics.RecordScoreUpdate()
		acks = append(acks, ack)
		pending = append(pending, evs...)
	}
	e.mu.Unlock()
	metrics.RecordUpdateLatency(float64(time.Since(start).Milliseconds()))

	e.emit(ctx, pending)
	return acks, nil
}

// applyScore holds every mutation of one score submission. It must be
// called with the lock held. All checks precede all writes, so a failed
// call leaves no partial effect.
func (e *Engine) applyScore(key types.Key, entity string, score uint64) (Ack, []events.Event, error) {
	if !e.seasons.Accepting(key) {
		return Ack{}, nil, fmt.Errorf("%w: %s", ErrSeasonInactive, key)
	}
	cfg := e.seasons.Get(key)
	now := e.now()
	if cfg.UpdateCooldown > 0 {
		if last, ok := e.lastUpdate[key][entity]; ok && now.Sub(last) < cfg.UpdateCooldown {
			return Ack{}, nil, fmt.Errorf("%w: %s in %s", ErrCooldownActive, entity, key)
		}
	}

	part := e.partition(key, cfg)
	ack := Ack{Entity: entity, Category: key.Category, Timeframe: key.Timeframe, Score: score, Admitted: true}
	var pending []events.Event

	// A score dropping to zero destroys the entry and clears the
	// entity's activity bit for the category.
	if score == 0 {
		ack.Removed = part.Remove(entity)
		if e.activity.SetActive(entity, key.Category, false) {
			pending = append(pending, events.New(events.KindActiveCountChanged, events.ActiveCountChanged{Total: e.activity.TotalActive()}))
			metrics.UpdateActiveEntities(e.activity.TotalActive())
		}
		e.touch(key, entity, now)
		metrics.UpdatePartitionSize(key.Category.String(), key.Timeframe.String(), part.Len())
		return ack, pending, nil
	}

	var prevLeader string
	if top := part.Top(1); len(top) > 0 {
		prevLeader = top[0].Entity
	}
	prev, _ := part.Score(entity)

	rank, err := part.Upsert(entity, score)
	if err != nil {
		// Not admitted: nothing has been mutated.
		return Ack{}, nil, err
	}
	ack.Rank = rank
	e.touch(key, entity, now)
	if score > prev {
		e.addRawTotal(key.Category, entity, score-prev)
	}

	if e.activity.SetActive(entity, key.Category, true) {
		pending = append(pending, events.New(events.KindActiveCountChanged, events.ActiveCountChanged{Total: e.activity.TotalActive()}))
		metrics.UpdateActiveEntities(e.activity.TotalActive())
	}

	fell := e.record(key).Observe(entity, "", score)
	if key.Timeframe == types.TimeframeAllTime {
		overall, cat := e.catRecord.Observe(entity, key.Category, score)
		fell = fell || overall || cat
	}
	ack.RecordFell = fell
	if fell {
		metrics.RecordLeaderChange()
	}

	pending = append(pending,
		events.New(events.KindScoreUpdated, events.ScoreUpdated{
			Entity: entity, Category: key.Category, Timeframe: key.Timeframe, Score: score, Rank: rank,
		}),
		events.New(events.KindLeaderboardUpdated, events.LeaderboardUpdated{
			Entity: entity, Rank: rank, Score: score,
		}),
	)
	if fell || (rank == 1 && prevLeader != entity) {
		pending = append(pending, events.New(events.KindNewLeader, events.NewLeader{
			Entity: entity, Category: key.Category, Timeframe: key.Timeframe, Value: score,
		}))
	}

	metrics.UpdatePartitionSize(key.Category.String(), key.Timeframe.String(), part.Len())
	return ack, pending, nil
}

// GetScore returns the entity's current score in a partition; zero when
// the entity holds no entry there.
func (e *Engine) GetScore(ctx context.Context, entity string, c types.Category, tf types.Timeframe) (uint64, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if err := validateTarget(key, entity); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	part, ok := e.partitions[key]
	if !ok {
		return 0, nil
	}
	score, err := part.Score(entity)
	if err != nil {
		return 0, nil // held no entry; zero is the true score
	}
	return score, nil
}

// GetRank returns the entity's 1-indexed rank, or types.ErrNotFound.
func (e *Engine) GetRank(ctx context.Context, entity string, c types.Category, tf types.Timeframe) (int, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if err := validateTarget(key, entity); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	part, ok := e.partitions[key]
	if !ok {
		return 0, types.ErrNotFound
	}
	return part.Rank(entity)
}

// GetLeaderboard returns up to limit ranked entries for one partition.
func (e *Engine) GetLeaderboard(ctx context.Context, c types.Category, tf types.Timeframe, limit int) ([]types.Entry, error) {
	return e.GetLeaderboardPage(ctx, c, tf, 0, limit)
}

// GetLeaderboardPage returns up to count entries starting at offset.
// Out-of-range pages are empty, never an error.
func (e *Engine) GetLeaderboardPage(ctx context.Context, c types.Category, tf types.Timeframe, offset, count int) ([]types.Entry, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	part, ok := e.partitions[key]
	if !ok {
		return []types.Entry{}, nil
	}
	return part.Page(offset, count), nil
}

// GetTopEntities returns parallel entity and score slices for the top
// of one partition.
func (e *Engine) GetTopEntities(ctx context.Context, c types.Category, tf types.Timeframe, limit int) ([]string, []uint64, error) {
	entries, err := e.GetLeaderboard(ctx, c, tf, limit)
	if err != nil {
		return nil, nil, err
	}
	entities := make([]string, len(entries))
	scores := make([]uint64, len(entries))
	for i, en := range entries {
		entities[i] = en.Entity
		scores[i] = en.Score
	}
	return entities, scores, nil
}

// RawTotal returns the entity's lifetime accumulated gain in a category.
// It survives partition resets.
func (e *Engine) RawTotal(ctx context.Context, entity string, c types.Category) (uint64, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", types.ErrInvalidCategory, int(c))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rawTotals[c][entity], nil
}

// IsActive reports whether the entity has any active category bit.
func (e *Engine) IsActive(ctx context.Context, entity string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activity.IsActive(entity)
}

// ActiveCategories returns the entity's category bitmask.
func (e *Engine) ActiveCategories(ctx context.Context, entity string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activity.Mask(entity)
}

// TotalActive returns the global active-entity count.
func (e *Engine) TotalActive(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activity.TotalActive()
}

// BestRecord returns the best score ever observed in one partition and
// its holder.
func (e *Engine) BestRecord(ctx context.Context, c types.Category, tf types.Timeframe) (uint64, string, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if err := key.Validate(); err != nil {
		return 0, "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tr, ok := e.records[key]
	if !ok {
		return 0, "", nil
	}
	best, holder := tr.Best()
	return best, holder, nil
}

// OverallBest returns the cross-category aggregate record built from
// all-time scores.
func (e *Engine) OverallBest(ctx context.Context) (uint64, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catRecord.Best()
}

// BestInCategory returns the all-time record for one category.
func (e *Engine) BestInCategory(ctx context.Context, c types.Category) (uint64, string, error) {
	if !c.Valid() {
		return 0, "", fmt.Errorf("%w: %d", types.ErrInvalidCategory, int(c))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	best, holder := e.catRecord.BestInCategory(c)
	return best, holder, nil
}

// ResetLeaderboard empties one partition. Season config, activity
// records, global records, and raw lifetime totals are untouched.
func (e *Engine) ResetLeaderboard(ctx context.Context, c types.Category, tf types.Timeframe) error {
	if err := e.authz.Authorize(ctx, CapabilityReset); err != nil {
		return err
	}
	key := types.Key{Category: c, Timeframe: tf}
	if err := key.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	if part, ok := e.partitions[key]; ok {
		part.Reset()
	}
	delete(e.lastUpdate, key)
	e.mu.Unlock()

	metrics.RecordReset()
	metrics.UpdatePartitionSize(key.Category.String(), key.Timeframe.String(), 0)
	e.logger.Info(ctx, "leaderboard reset",
		logger.String("category", c.String()),
		logger.String("timeframe", tf.String()),
	)
	e.emit(ctx, []events.Event{events.New(events.KindLeaderboardReset, events.LeaderboardReset{Category: c, Timeframe: tf})})
	return nil
}

// SetSeasonConfig wholesale-replaces one partition's settings and
// applies a changed capacity to the live partition.
func (e *Engine) SetSeasonConfig(ctx context.Context, c types.Category, tf types.Timeframe, cfg season.Config) error {
	if err := e.authz.Authorize(ctx, CapabilityConfig); err != nil {
		return err
	}
	key := types.Key{Category: c, Timeframe: tf}
	if err := key.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.seasons.Set(key, cfg); err != nil {
		return err
	}
	if part, ok := e.partitions[key]; ok {
		part.SetCapacity(cfg.MaxEntries)
	}
	return nil
}

// GetSeasonConfig returns the partition's current settings.
func (e *Engine) GetSeasonConfig(ctx context.Context, c types.Category, tf types.Timeframe) (season.Config, error) {
	key := types.Key{Category: c, Timeframe: tf}
	if err := key.Validate(); err != nil {
		return season.Config{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seasons.Get(key), nil
}

// StartNewSeason opens a fresh window on the category's daily partition.
// Entries are not cleared; that is an explicit separate reset.
func (e *Engine) StartNewSeason(ctx context.Context, c types.Category, duration time.Duration) (season.Config, error) {
	if err := e.authz.Authorize(ctx, CapabilitySeason); err != nil {
		return season.Config{}, err
	}
	if !c.Valid() {
		return season.Config{}, fmt.Errorf("%w: %d", types.ErrInvalidCategory, int(c))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seasons.StartNewSeason(c, duration)
}

// CleanupInactive deactivates the listed entities whose last activity is
// older than the tracker's threshold. Returns how many were deactivated.
func (e *Engine) CleanupInactive(ctx context.Context, entities []string) (int, error) {
	if err := e.authz.Authorize(ctx, CapabilityCleanup); err != nil {
		return 0, err
	}
	if len(entities) == 0 {
		return 0, fmt.Errorf("%w: entities", types.ErrEmptyInput)
	}
	e.mu.Lock()
	n := e.activity.Cleanup(entities)
	total := e.activity.TotalActive()
	e.mu.Unlock()

	if n > 0 {
		metrics.UpdateActiveEntities(total)
		e.emit(ctx, []events.Event{events.New(events.KindActiveCountChanged, events.ActiveCountChanged{Total: total})})
	}
	return n, nil
}

// GetStats returns engine statistics for monitoring.
func (e *Engine) GetStats() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	sizes := make(map[string]int, len(e.partitions))
	for key, part := range e.partitions {
		sizes[key.String()] = part.Len()
	}
	best, holder := e.catRecord.Best()
	return map[string]interface{}{
		"partitions":    sizes,
		"total_active":  e.activity.TotalActive(),
		"overall_best":  best,
		"record_holder": holder,
	}
}

// partition returns the live partition for key, creating it with the
// configured capacity at first use.
func (e *Engine) partition(key types.Key, cfg season.Config) *partition.Partition {
	if part, ok := e.partitions[key]; ok {
		return part
	}
	part := partition.New(key, partition.WithCapacity(cfg.MaxEntries))
	e.partitions[key] = part
	return part
}

// record returns the per-partition best tracker, creating it lazily.
func (e *Engine) record(key types.Key) *record.Tracker {
	if tr, ok := e.records[key]; ok {
		return tr
	}
	tr := record.New()
	e.records[key] = tr
	return tr
}

func (e *Engine) touch(key types.Key, entity string, now time.Time) {
	m, ok := e.lastUpdate[key]
	if !ok {
		m = make(map[string]time.Time)
		e.lastUpdate[key] = m
	}
	m[entity] = now
}

func (e *Engine) addRawTotal(c types.Category, entity string, delta uint64) {
	m, ok := e.rawTotals[c]
	if !ok {
		m = make(map[string]uint64)
		e.rawTotals[c] = m
	}
	m[entity] = satAdd(m[entity], delta)
}

// emit delivers pending events after the engine's bookkeeping is
// committed. Sinks must not call back into the engine.
func (e *Engine) emit(ctx context.Context, pending []events.Event) {
	if len(pending) == 0 {
		return
	}
	for _, ev := range pending {
		e.sink.Emit(ctx, ev)
	}
}

func validateTarget(key types.Key, entity string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if entity == "" {
		return fmt.Errorf("%w: entity", types.ErrEmptyInput)
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, types.ErrNotAdmitted):
		return "not_admitted"
	case errors.Is(err, ErrSeasonInactive):
		return "season_inactive"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown"
	default:
		return "invalid"
	}
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
