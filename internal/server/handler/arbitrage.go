package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polymarketbot/internal/domain"
)

// OpportunityService defines the store methods the opportunity handler
// requires, narrowed from domain.OpportunityStore.
type OpportunityService interface {
	GetByID(ctx context.Context, id string) (domain.OpportunityRecord, error)
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.OpportunityRecord, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// OpportunityHandler serves arbitrage opportunity history endpoints.
type OpportunityHandler struct {
	store  OpportunityService
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler with the given store
// and logger.
func NewOpportunityHandler(store OpportunityService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, logger: logger.With(slog.String("handler", "opportunities"))}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.OpportunityRecord `json:"opportunities"`
}

// ListRecent returns the most recently identified opportunities, newest
// first, honoring limit/offset/since/until query parameters.
//
// GET /api/opportunities?limit=50&offset=0&since=2025-01-01T00:00:00Z
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	recs, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if recs == nil {
		recs = []domain.OpportunityRecord{}
	}

	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: recs})
}

// GetByID returns a single opportunity record by id.
//
// GET /api/opportunities/{id}
func (h *OpportunityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing opportunity id")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get opportunity failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get opportunity")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// CountByStatus returns the count of opportunities currently at the given
// status.
//
// GET /api/opportunities/count?status=validated
func (h *OpportunityHandler) CountByStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeError(w, http.StatusBadRequest, "missing status query parameter")
		return
	}

	count, err := h.store.CountByStatus(r.Context(), status)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "count opportunities failed", slog.String("status", status), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to count opportunities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": status, "count": count})
}
