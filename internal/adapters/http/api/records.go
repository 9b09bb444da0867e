// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/podium/internal/domain/types"
)

// RecordReader exposes global best records.
type RecordReader interface {
	BestRecord(ctx context.Context, c types.Category, tf types.Timeframe) (uint64, string, error)
	OverallBest(ctx context.Context) (uint64, string)
	BestInCategory(ctx context.Context, c types.Category) (uint64, string, error)
}

// RecordsHandler handles record queries.
type RecordsHandler struct {
	reader RecordReader
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(reader RecordReader) *RecordsHandler {
	return &RecordsHandler{reader: reader}
}

type recordResponse struct {
	Holder string `json:"holder"`
	Best   uint64 `json:"best"`
}

type recordsResponse struct {
	Overall    recordResponse            `json:"overall"`
	Categories map[string]recordResponse `json:"categories"`
}

// HandleGetRecords handles GET /records requests.
//
// With a category query param it returns that partition's record;
// without one it returns the overall best plus every per-category best.
func (h *RecordsHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_records"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	if r.URL.Query().Get("category") != "" {
		c, tf, err := parseTarget(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		best, holder, err := h.reader.BestRecord(r.Context(), c, tf)
		if err != nil {
			writeEngineError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, recordResponse{Holder: holder, Best: best})
		return
	}

	best, holder := h.reader.OverallBest(r.Context())
	resp := recordsResponse{
		Overall:    recordResponse{Holder: holder, Best: best},
		Categories: make(map[string]recordResponse, len(types.Categories())),
	}
	for _, c := range types.Categories() {
		catBest, catHolder, err := h.reader.BestInCategory(r.Context(), c)
		if err != nil {
			writeEngineError(w, op, err)
			return
		}
		if catHolder == "" {
			continue
		}
		resp.Categories[c.String()] = recordResponse{Holder: catHolder, Best: catBest}
	}
	writeJSON(w, http.StatusOK, resp)
}
