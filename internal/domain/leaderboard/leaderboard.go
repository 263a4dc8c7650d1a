// Package leaderboard materializes ranked top-N views over user aggregates.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/typetrack/typetrack/internal/adapters/cache"
	"github.com/typetrack/typetrack/internal/adapters/repository"
	"github.com/typetrack/typetrack/internal/domain/typing"
	"github.com/typetrack/typetrack/internal/domain/types"
	"github.com/typetrack/typetrack/pkg/metrics"
)

// DefaultTTL bounds a cached view's lifetime independently of invalidation.
const DefaultTTL = 300 * time.Second

// Source provides the ranked aggregates a view is computed from.
type Source interface {
	TopAggregates(ctx context.Context, n int) ([]repository.RankedAggregate, error)
}

// Cache serves ranked top-N views, caching each requested size separately.
//
// Invalidation bumps a generation counter baked into every cache key, so all
// cached views of any size go stale at once without enumerating backend keys.
// The backend is best-effort: when it is down every read degrades to a fresh
// ranking query.
type Cache struct {
	source  Source
	backend cache.Cache
	ttl     time.Duration
	gen     atomic.Uint64
}

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithTTL overrides the per-view time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New creates a leaderboard cache over source and backend.
func New(source Source, backend cache.Cache, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		backend: backend,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Top returns the ranked top-n entries. An empty board is an empty slice,
// never an error.
func (c *Cache) Top(ctx context.Context, n int) ([]types.LeaderboardEntry, error) {
	key := fmt.Sprintf("leaderboard:%d:g%d", n, c.gen.Load())

	if raw, ok := c.backend.Get(ctx, key); ok {
		var entries []types.LeaderboardEntry
		if err := json.Unmarshal(raw, &entries); err == nil {
			metrics.RecordCacheHit()
			return entries, nil
		}
		// Corrupt payload falls through to recomputation.
	}
	metrics.RecordCacheMiss()

	aggregates, err := c.source.TopAggregates(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("rank aggregates: %w", err)
	}

	entries := make([]types.LeaderboardEntry, len(aggregates))
	for i, a := range aggregates {
		entries[i] = types.LeaderboardEntry{
			Rank:         i + 1,
			Username:     a.Username,
			BestWPM:      typing.Round2(a.BestWPM),
			BestAccuracy: typing.Round2(a.BestAccuracy),
			TotalTests:   a.TotalTests,
			UpdatedAt:    a.UpdatedAt,
		}
	}

	if raw, err := json.Marshal(entries); err == nil {
		c.backend.Set(ctx, key, raw, c.ttl)
	}
	return entries, nil
}

// Invalidate marks every cached view stale. The next Top of any size
// recomputes from the source.
func (c *Cache) Invalidate() {
	c.gen.Add(1)
	metrics.RecordCacheInvalidation()
}
