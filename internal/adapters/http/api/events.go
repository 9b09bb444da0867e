// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/metrics"
)

// Enqueuer pushes an event for async processing. Returns false on
// backpressure.
type Enqueuer interface {
	Enqueue(ctx context.Context, e model.ScoreEvent) bool
}

// EventsHandler handles event ingestion requests.
type EventsHandler struct {
	deduper dedupe.Deduper
	queue   Enqueuer
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deduper dedupe.Deduper, queue Enqueuer) *EventsHandler {
	return &EventsHandler{deduper: deduper, queue: queue}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := types.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	tf, err := types.ParseTimeframe(req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	if h.deduper.SeenAndRecord(r.Context(), req.EventID) {
		metrics.RecordEventDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	ts, _ := time.Parse(time.RFC3339, req.TS)
	event := model.ScoreEvent{
		EventID:   req.EventID,
		Entity:    req.Entity,
		Category:  c,
		Timeframe: tf,
		Score:     req.Score,
		TS:        ts,
	}

	if ok := h.queue.Enqueue(r.Context(), event); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deduper.Unrecord(r.Context(), req.EventID)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
