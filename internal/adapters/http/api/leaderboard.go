// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/podium/internal/domain/types"
)

// LeaderboardReader exposes ranked pages of a partition.
type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context, c types.Category, tf types.Timeframe, limit int) ([]types.Entry, error)
	GetLeaderboardPage(ctx context.Context, c types.Category, tf types.Timeframe, offset, count int) ([]types.Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	reader   LeaderboardReader
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(reader LeaderboardReader, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		reader:   reader,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles
// GET /leaderboard?category=&timeframe=&limit=N[&offset=M] requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c, tf, err := parseTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	var entries []types.Entry
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		entries, err = h.reader.GetLeaderboardPage(r.Context(), c, tf, offset, n)
		if err != nil {
			writeEngineError(w, op, err)
			return
		}
	} else {
		entries, err = h.reader.GetLeaderboard(r.Context(), c, tf, n)
		if err != nil {
			writeEngineError(w, op, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, entries)
}
