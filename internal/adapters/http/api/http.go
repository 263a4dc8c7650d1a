// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/typetrack/typetrack/internal/app"
	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/internal/domain/prompt"
	"github.com/typetrack/typetrack/internal/domain/types"
	"github.com/typetrack/typetrack/internal/identity"
	"github.com/typetrack/typetrack/pkg/metrics"
)

// Default and maximum query limits.
const (
	defaultLeaderboardLimit = 10
	defaultMaxLimit         = 100
	defaultAnalyticsLimit   = 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecordSession(ctx context.Context, user model.User, in service.SessionInput) (model.Aggregate, error)
	Analytics(ctx context.Context, userID string, limit int, difficulty string) (types.AnalyticsSummary, error)
	Leaderboard(ctx context.Context, n int) ([]types.LeaderboardEntry, error)
	Prompt(ctx context.Context, difficulty, category string) (prompt.Text, error)
	GetStats() map[string]interface{}
}

// LiveHandler upgrades and serves a websocket connection.
type LiveHandler interface {
	HandleWS(w http.ResponseWriter, r *http.Request)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	promptHandler      *PromptHandler
	submitHandler      *SubmitHandler
	analyticsHandler   *AnalyticsHandler
	leaderboardHandler *LeaderboardHandler

	resolver identity.Resolver
	live     LiveHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps GET /api/leaderboard?limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.leaderboardHandler.maxLimit = n
		}
	}
}

// WithAnalyticsDefaultLimit applies when GET /api/analytics omits limit.
func WithAnalyticsDefaultLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.analyticsHandler.defaultLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, resolver identity.Resolver, live LiveHandler, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		promptHandler:      NewPromptHandler(deps),
		submitHandler:      NewSubmitHandler(deps),
		analyticsHandler:   NewAnalyticsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		resolver:           resolver,
		live:               live,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/api/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("/api/prompt", MetricsMiddleware(s.promptHandler.HandleGetPrompt, "prompt"))
	mux.HandleFunc("/api/submit", MetricsMiddleware(s.requireAuth(s.submitHandler.HandleSubmit), "submit"))
	mux.HandleFunc("/api/analytics", MetricsMiddleware(s.requireAuth(s.analyticsHandler.HandleGetAnalytics), "analytics"))
	mux.HandleFunc("/api/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/api/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/ws", s.live.HandleWS)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
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
