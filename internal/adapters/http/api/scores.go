// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/types"
)

// ScoreWriter applies synchronous score mutations.
type ScoreWriter interface {
	UpdateScore(ctx context.Context, entity string, c types.Category, tf types.Timeframe, score uint64) (app.Ack, error)
	IncrementScore(ctx context.Context, entity string, c types.Category, tf types.Timeframe, delta uint64) (app.Ack, error)
	UpdateScores(ctx context.Context, entities []string, c types.Category, tf types.Timeframe, scores []uint64) ([]app.Ack, error)
}

// ScoresHandler handles synchronous score submissions.
type ScoresHandler struct {
	writer ScoreWriter
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(writer ScoreWriter) *ScoresHandler {
	return &ScoresHandler{writer: writer}
}

func (h *ScoresHandler) decode(w http.ResponseWriter, r *http.Request, op string) (scoreRequest, types.Category, types.Timeframe, bool) {
	var req scoreRequest
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return req, 0, 0, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return req, 0, 0, false
	}
	if strings.TrimSpace(req.Entity) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return req, 0, 0, false
	}
	c, err := types.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return req, 0, 0, false
	}
	tf, err := types.ParseTimeframe(req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return req, 0, 0, false
	}
	return req, c, tf, true
}

// HandleSetScore handles POST /scores requests.
func (h *ScoresHandler) HandleSetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_score"
	req, c, tf, ok := h.decode(w, r, op)
	if !ok {
		return
	}
	ack, err := h.writer.UpdateScore(r.Context(), req.Entity, c, tf, req.Score)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// HandleSetScores handles POST /scores/batch requests. Entities and
// scores run as parallel slices; the engine validates the whole batch
// before applying anything.
func (h *ScoresHandler) HandleSetScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_scores"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req batchScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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
	acks, err := h.writer.UpdateScores(r.Context(), req.Entities, c, tf, req.Scores)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, acks)
}

// HandleIncrementScore handles POST /scores/increment requests.
func (h *ScoresHandler) HandleIncrementScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.increment_score"
	req, c, tf, ok := h.decode(w, r, op)
	if !ok {
		return
	}
	ack, err := h.writer.IncrementScore(r.Context(), req.Entity, c, tf, req.Score)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
