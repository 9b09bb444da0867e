// Package events defines the signals the ranking engine emits and the
// contract for delivering them.
//
// The engine emits only after its own bookkeeping is committed, so a
// sink can never observe a half-updated leaderboard. Sinks must not call
// back into the engine from Emit.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/types"
)

// Kind discriminates event payloads.
type Kind string

// Event kinds emitted by the engine.
const (
	KindScoreUpdated       Kind = "score_updated"
	KindNewLeader          Kind = "new_leader"
	KindLeaderboardUpdated Kind = "leaderboard_updated"
	KindLeaderboardReset   Kind = "leaderboard_reset"
	KindActiveCountChanged Kind = "active_count_changed"
)

// Event is the envelope shared by all signals.
type Event struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	TS      time.Time `json:"ts"`
	Payload any       `json:"payload"`
}

// New wraps a payload in a fresh envelope.
func New(kind Kind, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

// ScoreUpdated signals one accepted score submission.
type ScoreUpdated struct {
	Entity    string          `json:"entity"`
	Category  types.Category  `json:"category"`
	Timeframe types.Timeframe `json:"timeframe"`
	Score     uint64          `json:"score"`
	Rank      int             `json:"rank"`
}

// NewLeader signals a global record replacement or a first entrant
// reaching rank 1.
type NewLeader struct {
	Entity    string          `json:"entity"`
	Category  types.Category  `json:"category"`
	Timeframe types.Timeframe `json:"timeframe"`
	Value     uint64          `json:"value"`
}

// LeaderboardUpdated signals a rank change visible to subscribers.
type LeaderboardUpdated struct {
	Entity string `json:"entity"`
	Rank   int    `json:"rank"`
	Score  uint64 `json:"score"`
}

// LeaderboardReset signals that a partition was emptied.
type LeaderboardReset struct {
	Category  types.Category  `json:"category"`
	Timeframe types.Timeframe `json:"timeframe"`
}

// ActiveCountChanged signals a move of the global active-entity counter.
type ActiveCountChanged struct {
	Total int `json:"total"`
}

// Sink receives engine events. Implementations must be non-blocking or
// cheap; the engine calls Emit synchronously after committing state.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Discard is a Sink that drops every event.
type Discard struct{}

// Emit implements Sink.
func (Discard) Emit(context.Context, Event) {}
