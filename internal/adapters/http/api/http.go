// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/types"
)

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	activityHandler    *ActivityHandler
	recordsHandler     *RecordsHandler
	adminHandler       *AdminHandler
}

// ServerDeps bundles the collaborators handlers need. The engine
// satisfies everything except ingestion, which goes through the
// deduper and queue.
type ServerDeps struct {
	Engine   ScoreWriter
	Reader   LeaderboardReader
	Ranker   RankReader
	Activity ActivityReader
	Records  RecordReader
	Admin    AdminOps
	Stats    StatsProvider
	Ingest   *EventsHandler
	MaxLimit int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps.Stats),
		eventsHandler:      deps.Ingest,
		scoresHandler:      NewScoresHandler(deps.Engine),
		leaderboardHandler: NewLeaderboardHandler(deps.Reader, deps.MaxLimit),
		rankHandler:        NewRankHandler(deps.Ranker),
		activityHandler:    NewActivityHandler(deps.Activity),
		recordsHandler:     NewRecordsHandler(deps.Records),
		adminHandler:       NewAdminHandler(deps.Admin),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandleSetScore, "scores"))
	mux.HandleFunc("/scores/increment", MetricsMiddleware(s.scoresHandler.HandleIncrementScore, "scores_increment"))
	mux.HandleFunc("/scores/batch", MetricsMiddleware(s.scoresHandler.HandleSetScores, "scores_batch"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/active", MetricsMiddleware(s.activityHandler.HandleGetActive, "active"))
	mux.HandleFunc("/active/", MetricsMiddleware(s.activityHandler.HandleGetEntityActivity, "active_entity"))
	mux.HandleFunc("/records", MetricsMiddleware(s.recordsHandler.HandleGetRecords, "records"))
	mux.HandleFunc("/admin/reset", MetricsMiddleware(s.adminHandler.HandleReset, "admin_reset"))
	mux.HandleFunc("/admin/config", MetricsMiddleware(s.adminHandler.HandleConfig, "admin_config"))
	mux.HandleFunc("/admin/season", MetricsMiddleware(s.adminHandler.HandleSeason, "admin_season"))
	mux.HandleFunc("/admin/cleanup", MetricsMiddleware(s.adminHandler.HandleCleanup, "admin_cleanup"))
}

// eventRequest mirrors the JSON schema for POST /events.
type eventRequest struct {
	EventID   string `json:"event_id"`
	Entity    string `json:"entity"`
	Category  string `json:"category"`
	Timeframe string `json:"timeframe"`
	Score     uint64 `json:"score"`
	TS        string `json:"ts"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(e.Entity) == "":
		return errors.New("missing entity")
	case strings.TrimSpace(e.Category) == "":
		return errors.New("missing category")
	case strings.TrimSpace(e.Timeframe) == "":
		return errors.New("missing timeframe")
	case strings.TrimSpace(e.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, e.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return nil
}

// scoreRequest mirrors the JSON schema for POST /scores and
// POST /scores/increment.
type scoreRequest struct {
	Entity    string `json:"entity"`
	Category  string `json:"category"`
	Timeframe string `json:"timeframe"`
	Score     uint64 `json:"score"`
}

// batchScoreRequest mirrors the JSON schema for POST /scores/batch.
// Entities and scores are parallel slices.
type batchScoreRequest struct {
	Category  string   `json:"category"`
	Timeframe string   `json:"timeframe"`
	Entities  []string `json:"entities"`
	Scores    []uint64 `json:"scores"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// parseTarget resolves category and timeframe query params, defaulting
// the timeframe to all_time.
func parseTarget(r *http.Request) (types.Category, types.Timeframe, error) {
	c, err := types.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		return 0, 0, err
	}
	tfParam := r.URL.Query().Get("timeframe")
	if tfParam == "" {
		return c, types.TimeframeAllTime, nil
	}
	tf, err := types.ParseTimeframe(tfParam)
	if err != nil {
		return 0, 0, err
	}
	return c, tf, nil
}

// writeEngineError translates engine errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, types.ErrInvalidCategory),
		errors.Is(err, types.ErrInvalidTimeframe),
		errors.Is(err, types.ErrEmptyInput),
		errors.Is(err, types.ErrLengthMismatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, types.ErrNotAdmitted):
		writeError(w, http.StatusConflict, "not_admitted", err)
	case errors.Is(err, app.ErrSeasonInactive):
		writeError(w, http.StatusConflict, "season_inactive", err)
	case errors.Is(err, app.ErrCooldownActive):
		writeError(w, http.StatusTooManyRequests, "cooldown", err)
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
