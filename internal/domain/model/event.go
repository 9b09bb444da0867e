// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/podium/internal/domain/types"
)

// ScoreEvent represents one score submission flowing through the
// ingestion pipeline. Fields mirror the JSON schema for POST /events.
type ScoreEvent struct {
	EventID   string          // unique id for idempotency
	Entity    string          // subject identifier
	Category  types.Category  // scoring dimension
	Timeframe types.Timeframe // partition timeframe
	Score     uint64          // new absolute score
	TS        time.Time       // event timestamp
}
