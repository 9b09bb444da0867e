// Package partition implements the bounded, rank-ordered score registry
// backing one (category, timeframe) leaderboard.
//
// Ordering: score DESC, stable on ties. Entries with equal scores keep
// their prior relative order: an entry climbs only past neighbors with a
// strictly lower score and sinks only past neighbors with a strictly
// higher score. The registry is a flat sorted vector with binary search
// for the target position and a bounded shift, so every mutation is
// O(capacity) worst case and O(log n) when nothing moves.
package partition

import (
	"sort"

	"github.com/okian/podium/internal/domain/types"
)

// defaultCapacity bounds a partition that was never configured.
const defaultCapacity = 1000

// entry is a single score record. It is owned by the partition and is
// destroyed on removal, eviction, or reset.
type entry struct {
	entity string
	score  uint64
}

// Partition is the sorted bounded collection for one leaderboard key.
// It is not safe for concurrent use; the engine serializes access.
type Partition struct {
	key      types.Key
	capacity int
	entries  []entry
	index    map[string]int // entity -> position in entries
}

// Option applies a configuration option to the Partition.
type Option func(*Partition)

// WithCapacity bounds the number of entries the partition may hold.
func WithCapacity(n int) Option {
	return func(p *Partition) {
		if n > 0 {
			p.capacity = n
		}
	}
}

// New constructs an empty partition for the given key.
func New(key types.Key, opts ...Option) *Partition {
	p := &Partition{
		key:      key,
		capacity: defaultCapacity,
		index:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the partition's leaderboard key.
func (p *Partition) Key() types.Key { return p.key }

// Len returns the number of held entries.
func (p *Partition) Len() int { return len(p.entries) }

// Capacity returns the maximum number of entries.
func (p *Partition) Capacity() int { return p.capacity }

// Upsert records a new score for entity and returns its 1-indexed rank.
//
// A present entity is repositioned according to the stable-tie rule. An
// absent entity is inserted after any equal scores when there is room;
// when the partition is full it is admitted only with a score strictly
// greater than the current lowest, evicting that lowest entry. A
// rejected entrant yields types.ErrNotAdmitted and no state change.
//
// score must be nonzero; a score dropping to zero is a removal and goes
// through Remove.
func (p *Partition) Upsert(entity string, score uint64) (int, error) {
	if pos, ok := p.index[entity]; ok {
		return p.reposition(pos, score), nil
	}
	if len(p.entries) >= p.capacity {
		if score <= p.entries[len(p.entries)-1].score {
			return 0, types.ErrNotAdmitted
		}
		evicted := p.entries[len(p.entries)-1]
		delete(p.index, evicted.entity)
		p.entries = p.entries[:len(p.entries)-1]
	}
	return p.insertAt(p.admitPos(score), entity, score), nil
}

// Remove deletes the entity's entry, closing the gap. It reports whether
// an entry was removed; removing an absent entity is a no-op.
func (p *Partition) Remove(entity string) bool {
	pos, ok := p.index[entity]
	if !ok {
		return false
	}
	delete(p.index, entity)
	copy(p.entries[pos:], p.entries[pos+1:])
	p.entries = p.entries[:len(p.entries)-1]
	p.reindex(pos, len(p.entries))
	return true
}

// Rank returns the entity's 1-indexed position, or types.ErrNotFound.
func (p *Partition) Rank(entity string) (int, error) {
	pos, ok := p.index[entity]
	if !ok {
		return 0, types.ErrNotFound
	}
	return pos + 1, nil
}

// Score returns the entity's current score, or types.ErrNotFound.
func (p *Partition) Score(entity string) (uint64, error) {
	pos, ok := p.index[entity]
	if !ok {
		return 0, types.ErrNotFound
	}
	return p.entries[pos].score, nil
}

// Page returns up to count entries starting at offset, fewer if the
// partition is sparse. Out-of-range offsets return an empty slice,
// never an error.
func (p *Partition) Page(offset, count int) []types.Entry {
	if offset < 0 || count <= 0 || offset >= len(p.entries) {
		return []types.Entry{}
	}
	end := offset + count
	if end > len(p.entries) {
		end = len(p.entries)
	}
	out := make([]types.Entry, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, types.Entry{Rank: i + 1, Entity: p.entries[i].entity, Score: p.entries[i].score})
	}
	return out
}

// Top returns the first n ranked entries.
func (p *Partition) Top(n int) []types.Entry {
	return p.Page(0, n)
}

// Lowest returns the currently lowest held score. ok is false when the
// partition is empty.
func (p *Partition) Lowest() (score uint64, ok bool) {
	if len(p.entries) == 0 {
		return 0, false
	}
	return p.entries[len(p.entries)-1].score, true
}

// Reset empties the partition. Capacity and key are untouched.
func (p *Partition) Reset() {
	p.entries = nil
	p.index = make(map[string]int)
}

// SetCapacity applies a new bound. Shrinking below the current length
// evicts the lowest-ranked entries.
func (p *Partition) SetCapacity(n int) {
	if n <= 0 {
		return
	}
	p.capacity = n
	for len(p.entries) > n {
		last := p.entries[len(p.entries)-1]
		delete(p.index, last.entity)
		p.entries = p.entries[:len(p.entries)-1]
	}
}

// admitPos locates the insertion point for a new entrant: after every
// entry with an equal or greater score.
func (p *Partition) admitPos(score uint64) int {
	return sort.Search(len(p.entries), func(i int) bool {
		return p.entries[i].score < score
	})
}

// insertAt places a fresh entry at pos, shifting lower entries down.
func (p *Partition) insertAt(pos int, entity string, score uint64) int {
	p.entries = append(p.entries, entry{})
	copy(p.entries[pos+1:], p.entries[pos:])
	p.entries[pos] = entry{entity: entity, score: score}
	p.reindex(pos, len(p.entries))
	return pos + 1
}

// reposition updates the score of the entry at old and moves it by the
// stable-tie rule, returning the new 1-indexed rank.
func (p *Partition) reposition(old int, score uint64) int {
	e := p.entries[old]
	e.score = score

	// Climb: pass neighbors above only while strictly greater than them.
	up := sort.Search(old, func(k int) bool {
		return p.entries[k].score < score
	})
	if up < old {
		copy(p.entries[up+1:old+1], p.entries[up:old])
		p.entries[up] = e
		p.reindex(up, old+1)
		return up + 1
	}

	// Sink: pass neighbors below only while strictly less than them.
	below := len(p.entries) - old - 1
	m := sort.Search(below, func(k int) bool {
		return p.entries[old+1+k].score <= score
	})
	pos := old + m
	if m > 0 {
		copy(p.entries[old:pos], p.entries[old+1:pos+1])
	}
	p.entries[pos] = e
	p.reindex(old, pos+1)
	return pos + 1
}

// reindex rewrites index positions for entries in [lo, hi).
func (p *Partition) reindex(lo, hi int) {
	for i := lo; i < hi; i++ {
		p.index[p.entries[i].entity] = i
	}
}
