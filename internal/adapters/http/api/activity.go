// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/podium/internal/domain/types"
)

// ActivityReader exposes the activity roster.
type ActivityReader interface {
	TotalActive(ctx context.Context) int
	IsActive(ctx context.Context, entity string) bool
	ActiveCategories(ctx context.Context, entity string) uint64
}

// ActivityHandler handles activity roster requests.
type ActivityHandler struct {
	reader ActivityReader
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(reader ActivityReader) *ActivityHandler {
	return &ActivityHandler{reader: reader}
}

type activeCountResponse struct {
	TotalActive int `json:"total_active"`
}

type entityActivityResponse struct {
	Entity     string   `json:"entity"`
	Active     bool     `json:"active"`
	Categories []string `json:"categories"`
}

// HandleGetActive handles GET /active requests.
func (h *ActivityHandler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, activeCountResponse{TotalActive: h.reader.TotalActive(r.Context())})
}

// HandleGetEntityActivity handles GET /active/{entity} requests.
func (h *ActivityHandler) HandleGetEntityActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_entity_activity"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	entity := strings.TrimPrefix(r.URL.Path, "/active/")
	if entity == "" || strings.Contains(entity, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	mask := h.reader.ActiveCategories(r.Context(), entity)
	categories := make([]string, 0)
	for _, c := range types.Categories() {
		if mask&c.Bit() != 0 {
			categories = append(categories, c.String())
		}
	}
	writeJSON(w, http.StatusOK, entityActivityResponse{
		Entity:     entity,
		Active:     h.reader.IsActive(r.Context(), entity),
		Categories: categories,
	})
}
