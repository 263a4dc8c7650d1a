// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/typetrack/typetrack/internal/domain/prompt"
)

// PromptDependencies defines the interface for prompt operations.
type PromptDependencies interface {
	Prompt(ctx context.Context, difficulty, category string) (prompt.Text, error)
}

// PromptHandler handles practice text requests.
type PromptHandler struct {
	deps PromptDependencies
}

// NewPromptHandler creates a new prompt handler.
func NewPromptHandler(deps PromptDependencies) *PromptHandler {
	return &PromptHandler{deps: deps}
}

// HandleGetPrompt handles GET /api/prompt?difficulty=&category= requests.
// Unknown difficulties fall back to medium rather than failing.
func (h *PromptHandler) HandleGetPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	difficulty := r.URL.Query().Get("difficulty")
	category := r.URL.Query().Get("category")

	text, err := h.deps.Prompt(r.Context(), difficulty, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, text)
}
