// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/typetrack/typetrack/internal/domain/types"
)

// AnalyticsDependencies defines the interface for analytics queries.
type AnalyticsDependencies interface {
	Analytics(ctx context.Context, userID string, limit int, difficulty string) (types.AnalyticsSummary, error)
}

// AnalyticsHandler handles per-user analytics requests.
type AnalyticsHandler struct {
	deps         AnalyticsDependencies
	defaultLimit int
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps, defaultLimit: defaultAnalyticsLimit}
}

// HandleGetAnalytics handles GET /api/analytics?limit=N&difficulty=D requests.
func (h *AnalyticsHandler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		limit = n
	}
	difficulty := r.URL.Query().Get("difficulty")

	summary, err := h.deps.Analytics(r.Context(), user.ID, limit, difficulty)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
