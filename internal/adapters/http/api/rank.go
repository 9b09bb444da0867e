// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/podium/internal/domain/types"
)

// RankReader exposes a single entity's standing in a partition.
type RankReader interface {
	GetRank(ctx context.Context, entity string, c types.Category, tf types.Timeframe) (int, error)
	GetScore(ctx context.Context, entity string, c types.Category, tf types.Timeframe) (uint64, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	reader RankReader
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(reader RankReader) *RankHandler {
	return &RankHandler{reader: reader}
}

// HandleGetRank handles GET /rank/{entity}?category=&timeframe= requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	entity := strings.TrimPrefix(r.URL.Path, "/rank/")
	if entity == "" || strings.Contains(entity, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	c, tf, err := parseTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rank, err := h.reader.GetRank(r.Context(), entity, c, tf)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	score, err := h.reader.GetScore(r.Context(), entity, c, tf)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, Entry{Rank: rank, Entity: entity, Score: score})
}
