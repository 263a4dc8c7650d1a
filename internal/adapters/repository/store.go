// Package repository defines the persistence contract for users, sessions
// and per-user aggregates.
package repository

import (
	"context"

	"github.com/typetrack/typetrack/internal/domain/model"
)

// RankedAggregate is an aggregate joined with its owner's username, as read
// by leaderboard queries.
type RankedAggregate struct {
	model.Aggregate
	Username string
}

// SessionFilter narrows session history queries.
type SessionFilter struct {
	// Limit caps the number of rows, newest first. Non-positive means the
	// store default.
	Limit int
	// Difficulty filters by bucket when non-empty.
	Difficulty string
}

// Store provides durable access to users, sessions and aggregates.
type Store interface {
	// CreateUser inserts a user. Returns ErrDuplicate on username collision.
	CreateUser(ctx context.Context, u model.User) error

	// UserByID returns the user or ErrNotFound.
	UserByID(ctx context.Context, id string) (model.User, error)

	// SetUserActive flips the active flag; deactivated users drop off the
	// leaderboard but keep their history.
	SetUserActive(ctx context.Context, id string, active bool) error

	// RecordSession persists s and folds it into the owner's aggregate inside
	// a single transaction. Either both land or neither does.
	RecordSession(ctx context.Context, s model.Session) (model.Aggregate, error)

	// Fold merges one session into the owner's aggregate, creating it on
	// first fold. Folds for the same user are serialized; each call stands
	// for exactly one real session.
	Fold(ctx context.Context, userID string, s model.Session) (model.Aggregate, error)

	// Aggregate returns the user's aggregate or ErrNotFound.
	Aggregate(ctx context.Context, userID string) (model.Aggregate, error)

	// Sessions returns the user's history, newest first, per filter.
	Sessions(ctx context.Context, userID string, f SessionFilter) ([]model.Session, error)

	// TopAggregates returns up to n aggregates of active users ordered by
	// best_wpm descending, ties broken by updated_at ascending.
	TopAggregates(ctx context.Context, n int) ([]RankedAggregate, error)

	// Count returns the number of users with an aggregate.
	Count(ctx context.Context) int

	// Close releases the underlying database.
	Close() error
}
