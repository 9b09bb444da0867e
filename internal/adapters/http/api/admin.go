// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/season"
	"github.com/okian/podium/internal/domain/types"
)

// AdminOps exposes the engine's administrative entry points.
type AdminOps interface {
	ResetLeaderboard(ctx context.Context, c types.Category, tf types.Timeframe) error
	SetSeasonConfig(ctx context.Context, c types.Category, tf types.Timeframe, cfg season.Config) error
	GetSeasonConfig(ctx context.Context, c types.Category, tf types.Timeframe) (season.Config, error)
	StartNewSeason(ctx context.Context, c types.Category, duration time.Duration) (season.Config, error)
	CleanupInactive(ctx context.Context, entities []string) (int, error)
}

// AdminHandler handles administrative requests. Callers present their
// credential in the X-Admin-Token header; authorization itself happens
// inside the engine.
type AdminHandler struct {
	ops AdminOps
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(ops AdminOps) *AdminHandler {
	return &AdminHandler{ops: ops}
}

// adminCtx attaches the presented admin token to the request context.
func adminCtx(r *http.Request) context.Context {
	return app.WithToken(r.Context(), r.Header.Get("X-Admin-Token"))
}

// HandleReset handles POST /admin/reset?category=&timeframe= requests.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_reset"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	c, tf, err := parseTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.ops.ResetLeaderboard(adminCtx(r), c, tf); err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "reset"})
}

type seasonConfigRequest struct {
	Category  string        `json:"category"`
	Timeframe string        `json:"timeframe"`
	Config    season.Config `json:"config"`
}

// HandleConfig handles GET and POST /admin/config requests.
func (h *AdminHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_config"
	switch r.Method {
	case http.MethodGet:
		c, tf, err := parseTarget(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		cfg, err := h.ops.GetSeasonConfig(adminCtx(r), c, tf)
		if err != nil {
			writeEngineError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPost:
		var req seasonConfigRequest
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
		if err := h.ops.SetSeasonConfig(adminCtx(r), c, tf, req.Config); err != nil {
			writeEngineError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "configured"})
	default:
		http.NotFound(w, r)
	}
}

type seasonStartRequest struct {
	Category string `json:"category"`
	Duration string `json:"duration"`
}

// HandleSeason handles POST /admin/season requests.
func (h *AdminHandler) HandleSeason(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_season"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req seasonStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := types.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	cfg, err := h.ops.StartNewSeason(adminCtx(r), c, duration)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type cleanupRequest struct {
	Entities []string `json:"entities"`
}

type cleanupResponse struct {
	Deactivated int `json:"deactivated"`
}

// HandleCleanup handles POST /admin/cleanup requests.
func (h *AdminHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_cleanup"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	n, err := h.ops.CleanupInactive(adminCtx(r), req.Entities)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{Deactivated: n})
}
