// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/typetrack/typetrack/internal/adapters/cache"
	eventqueue "github.com/typetrack/typetrack/internal/adapters/mq/queue"
	workerpool "github.com/typetrack/typetrack/internal/adapters/mq/worker"
	"github.com/typetrack/typetrack/internal/adapters/repository"
	"github.com/typetrack/typetrack/internal/adapters/ws"
	"github.com/typetrack/typetrack/internal/domain/analytics"
	"github.com/typetrack/typetrack/internal/domain/leaderboard"
	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/internal/domain/prompt"
	"github.com/typetrack/typetrack/internal/domain/types"
	"github.com/typetrack/typetrack/internal/domain/typing"
	"github.com/typetrack/typetrack/pkg/logger"
	"github.com/typetrack/typetrack/pkg/metrics"
)

// promptTTL bounds how long a served prompt is pinned per difficulty and
// category. Short on purpose so practice text rotates.
const promptTTL = 30 * time.Second

// SessionInput is a validated-on-entry submit payload.
type SessionInput struct {
	WPM             float64
	Accuracy        float64
	Difficulty      string
	Errors          int
	CharactersTyped int
	TimeTaken       float64
}

// Service owns the lifecycle of the store, cache, event queue, worker pool
// and live hub, and implements the operations the API exposes.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	backend    cache.Cache
	board      *leaderboard.Cache
	prompts    *prompt.Provider
	hub        *ws.Hub
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	dbPath        string
	workerCount   int
	queueSize     int
	cacheTTL      time.Duration
	storeTimeout  time.Duration
	hubSendBuffer int
	strict        bool

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database location.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithWorkerCount sets the number of broadcast worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCacheTTL bounds the lifetime of cached leaderboard views.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithStoreTimeout bounds every persistence call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithHubSendBuffer sizes each live connection's outbound buffer.
func WithHubSendBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.hubSendBuffer = n
		}
	}
}

// WithStrictValidation rejects out-of-range session values instead of
// accepting them as submitted.
func WithStrictValidation(strict bool) Option {
	return func(s *Service) {
		s.strict = strict
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:        "typetrack.db",
		workerCount:   4,
		queueSize:     10_000,
		cacheTTL:      leaderboard.DefaultTTL,
		storeTimeout:  5 * time.Second,
		hubSendBuffer: 64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting typetrack service...")

	store, err := repository.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	s.backend = cache.NewMemory()
	s.board = leaderboard.New(store, s.backend, leaderboard.WithTTL(s.cacheTTL))
	s.prompts = prompt.New()
	s.hub = ws.NewHub(ws.WithSendBuffer(s.hubSendBuffer))

	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.hub, s.board)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "typetrack service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("dbPath", s.dbPath),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping typetrack service...")

	// Closing the queue lets in-flight events drain before workers exit.
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "typetrack service stopped")
}

// Hub exposes the live connection hub for the websocket route.
func (s *Service) Hub() *ws.Hub {
	return s.hub
}

// Store exposes the persistence layer for collaborators such as the
// identity resolver.
func (s *Service) Store() repository.Store {
	return s.store
}

// RecordSession validates in, persists the session together with its
// aggregate fold, and publishes the session_recorded event. Broadcast and
// cache invalidation happen asynchronously off the queue.
func (s *Service) RecordSession(ctx context.Context, user model.User, in SessionInput) (model.Aggregate, error) {
	if err := s.validate(in); err != nil {
		metrics.RecordValidationError()
		return model.Aggregate{}, err
	}

	difficulty := in.Difficulty
	if !model.ValidDifficulty(difficulty) {
		difficulty = model.DifficultyMedium
	}

	now := time.Now().UTC()
	sess := model.Session{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		WPM:             typing.Round2(in.WPM),
		Accuracy:        typing.Round2(in.Accuracy),
		Difficulty:      difficulty,
		Errors:          in.Errors,
		CharactersTyped: in.CharactersTyped,
		TimeTaken:       in.TimeTaken,
		CompletedAt:     now,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	agg, err := s.store.RecordSession(storeCtx, sess)
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("record session: %w", err)
	}
	metrics.RecordSessionRecorded()

	event := model.SessionRecorded{
		EventID:   uuid.NewString(),
		Username:  user.Username,
		WPM:       sess.WPM,
		Accuracy:  sess.Accuracy,
		Timestamp: now,
	}
	if !s.eventQueue.Enqueue(ctx, event) {
		// The session is committed; a full queue only delays the live
		// board, it must not fail the submit.
		s.board.Invalidate()
		s.logger.Warn(ctx, "event queue full, invalidated inline",
			logger.String("sessionID", sess.ID))
	}

	s.logger.Debug(ctx, "session recorded",
		logger.String("sessionID", sess.ID),
		logger.String("userID", user.ID),
		logger.Float64("wpm", sess.WPM),
		logger.Float64("accuracy", sess.Accuracy),
	)
	return agg, nil
}

// validate applies the permissive default checks plus the strict-mode range
// checks.
func (s *Service) validate(in SessionInput) error {
	if !s.strict {
		return nil
	}
	switch {
	case in.WPM < 0:
		return &ValidationError{Field: "wpm", Reason: "must not be negative"}
	case in.Accuracy < 0 || in.Accuracy > 100:
		return &ValidationError{Field: "accuracy", Reason: "must be within [0,100]"}
	case in.Errors < 0:
		return &ValidationError{Field: "errors", Reason: "must not be negative"}
	case in.CharactersTyped < 0:
		return &ValidationError{Field: "characters_typed", Reason: "must not be negative"}
	case in.TimeTaken < 0:
		return &ValidationError{Field: "time_taken", Reason: "must not be negative"}
	}
	return nil
}

// Analytics summarizes the user's most recent sessions.
func (s *Service) Analytics(ctx context.Context, userID string, limit int, difficulty string) (types.AnalyticsSummary, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	sessions, err := s.store.Sessions(storeCtx, userID, repository.SessionFilter{
		Limit:      limit,
		Difficulty: difficulty,
	})
	if err != nil {
		return types.AnalyticsSummary{}, fmt.Errorf("load sessions: %w", err)
	}
	return analytics.Summarize(sessions), nil
}

// Leaderboard returns the ranked top-n entries.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.LeaderboardEntry, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.board.Top(storeCtx, n)
}

// Prompt serves a practice text for the requested difficulty and category,
// pinned through the shared cache for promptTTL.
func (s *Service) Prompt(ctx context.Context, difficulty, category string) (prompt.Text, error) {
	key := fmt.Sprintf("prompt:%s:%s", difficulty, category)

	if raw, ok := s.backend.Get(ctx, key); ok {
		var cached prompt.Text
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.RecordCacheHit()
			return cached, nil
		}
	}
	metrics.RecordCacheMiss()

	text := s.prompts.Pick(difficulty, category)
	if raw, err := json.Marshal(text); err == nil {
		s.backend.Set(ctx, key, raw, promptTTL)
	}
	return text, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.eventQueue.Len(ctx)
		totalUsers := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalUsers"] = totalUsers
		stats["liveConnections"] = s.hub.ConnectionCount()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalUsers(totalUsers)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}
