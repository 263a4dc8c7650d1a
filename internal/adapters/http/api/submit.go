// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	service "github.com/typetrack/typetrack/internal/app"
	"github.com/typetrack/typetrack/internal/domain/model"
)

// SubmitDependencies defines the interface for session recording.
type SubmitDependencies interface {
	RecordSession(ctx context.Context, user model.User, in service.SessionInput) (model.Aggregate, error)
}

// SubmitHandler handles completed session submissions.
type SubmitHandler struct {
	deps SubmitDependencies
}

// NewSubmitHandler creates a new submit handler.
func NewSubmitHandler(deps SubmitDependencies) *SubmitHandler {
	return &SubmitHandler{deps: deps}
}

// submitRequest is the POST /api/submit body. WPM and accuracy use
// json.Number so both numeric and quoted-numeric payloads coerce; anything
// else is a validation failure.
type submitRequest struct {
	WPM             json.Number `json:"wpm"`
	Accuracy        json.Number `json:"accuracy"`
	Difficulty      string      `json:"difficulty"`
	Errors          int         `json:"errors"`
	CharactersTyped int         `json:"characters_typed"`
	TimeTaken       float64     `json:"time_taken"`
}

func (req submitRequest) sessionInput() (service.SessionInput, error) {
	if req.WPM == "" {
		return service.SessionInput{}, fmt.Errorf("missing wpm: %w", ErrBadRequest)
	}
	if req.Accuracy == "" {
		return service.SessionInput{}, fmt.Errorf("missing accuracy: %w", ErrBadRequest)
	}

	wpm, err := req.WPM.Float64()
	if err != nil {
		return service.SessionInput{}, fmt.Errorf("wpm is not a number: %w", ErrBadRequest)
	}
	accuracy, err := req.Accuracy.Float64()
	if err != nil {
		return service.SessionInput{}, fmt.Errorf("accuracy is not a number: %w", ErrBadRequest)
	}

	return service.SessionInput{
		WPM:             wpm,
		Accuracy:        accuracy,
		Difficulty:      req.Difficulty,
		Errors:          req.Errors,
		CharactersTyped: req.CharactersTyped,
		TimeTaken:       req.TimeTaken,
	}, nil
}

// aggregateView is the serialized aggregate returned after a submit.
type aggregateView struct {
	BestWPM      float64   `json:"best_wpm"`
	BestAccuracy float64   `json:"best_accuracy"`
	TotalTests   int       `json:"total_tests"`
	TotalTime    float64   `json:"total_time"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HandleSubmit handles POST /api/submit requests.
func (h *SubmitHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	in, err := req.sessionInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	agg, err := h.deps.RecordSession(r.Context(), user, in)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation_failed", verr)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "recorded",
		"aggregate": aggregateView{
			BestWPM:      agg.BestWPM,
			BestAccuracy: agg.BestAccuracy,
			TotalTests:   agg.TotalTests,
			TotalTime:    agg.TotalTime,
			UpdatedAt:    agg.UpdatedAt,
		},
	})
}
