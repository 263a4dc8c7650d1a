// Package cache provides a best-effort key-value cache with TTL semantics.
//
// The backend mirrors the contract of an external cache such as Redis: get,
// set-with-expiry, nothing else. Failures and misses are indistinguishable to
// callers; a broken cache degrades to recomputation, never to an error.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL applies when Set is called with a non-positive TTL.
const DefaultTTL = 300 * time.Second

// Cache is the best-effort backend contract.
type Cache interface {
	// Get returns the cached value for key, or ok=false on miss, expiry, or
	// backend failure.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key for ttl. Errors are swallowed; callers must
	// treat caching as optional.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory implements Cache with an in-process map and lazy expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Option applies a configuration option to the Memory cache.
type Option func(*Memory)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an in-process cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the value for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another Set may have refreshed it.
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key until ttl elapses.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}
