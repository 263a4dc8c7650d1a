package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/pkg/metrics"

	_ "modernc.org/sqlite" // SQLite driver.
)

// defaultSessionLimit caps history queries that do not set a limit.
const defaultSessionLimit = 20

// timeLayout is fixed-width so stored timestamps sort lexicographically.
// RFC3339Nano trims trailing zeros and would break ORDER BY on text columns.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	// foldLocks serializes folds per user so the max-merge and counter
	// increments stay monotone under concurrent submissions. Folds for
	// different users never contend on the same mutex.
	foldMu    sync.Mutex
	foldLocks map[string]*sync.Mutex
}

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the time source used for updated_at, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the database at path and applies migrations.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes per connection; a single connection
	// avoids SQLITE_BUSY without a busy-timeout dance.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:        db,
		now:       time.Now,
		foldLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			wpm REAL NOT NULL,
			accuracy REAL NOT NULL,
			difficulty TEXT NOT NULL,
			errors INTEGER NOT NULL,
			characters_typed INTEGER NOT NULL,
			time_taken REAL NOT NULL,
			completed_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS aggregates (
			user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			best_wpm REAL NOT NULL,
			best_accuracy REAL NOT NULL,
			total_tests INTEGER NOT NULL,
			total_time REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, completed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_difficulty ON sessions(difficulty);`,
		`CREATE INDEX IF NOT EXISTS idx_aggregates_best_wpm ON aggregates(best_wpm);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// userLock returns the fold mutex for userID, creating it on first use.
func (s *SQLiteStore) userLock(userID string) *sync.Mutex {
	s.foldMu.Lock()
	defer s.foldMu.Unlock()
	mu, ok := s.foldLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.foldLocks[userID] = mu
	}
	return mu
}

// CreateUser inserts a user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) error {
	active := 0
	if u.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, active, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, active, s.now().UTC().Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByID returns the user record or ErrNotFound.
func (s *SQLiteStore) UserByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, active FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	u.Active = active == 1
	return u, nil
}

// SetUserActive flips the user's active flag.
func (s *SQLiteStore) SetUserActive(ctx context.Context, id string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = ? WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return nil
}

// RecordSession persists s and folds it into the owner's aggregate in one
// transaction. The per-user fold lock covers the whole transaction so a
// concurrent fold for the same user cannot interleave between read and write.
func (s *SQLiteStore) RecordSession(ctx context.Context, sess model.Session) (model.Aggregate, error) {
	mu := s.userLock(sess.UserID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("record_session", float64(time.Since(start).Milliseconds()))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, wpm, accuracy, difficulty, errors, characters_typed, time_taken, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.WPM, sess.Accuracy, sess.Difficulty,
		sess.Errors, sess.CharactersTyped, sess.TimeTaken,
		sess.CompletedAt.UTC().Format(timeLayout))
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("insert session: %w", err)
	}

	agg, err := s.foldTx(ctx, tx, sess.UserID, sess)
	if err != nil {
		return model.Aggregate{}, err
	}

	if err = tx.Commit(); err != nil {
		return model.Aggregate{}, fmt.Errorf("commit: %w", err)
	}
	metrics.RecordFold()
	return agg, nil
}

// Fold merges one session into the owner's aggregate outside of a session
// insert. RecordSession is the usual path; this exists for callers that own
// session persistence elsewhere.
func (s *SQLiteStore) Fold(ctx context.Context, userID string, sess model.Session) (model.Aggregate, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	agg, err := s.foldTx(ctx, tx, userID, sess)
	if err != nil {
		return model.Aggregate{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Aggregate{}, fmt.Errorf("commit: %w", err)
	}
	metrics.RecordFold()
	return agg, nil
}

// foldTx applies the monotone merge inside tx. Caller holds the user lock.
func (s *SQLiteStore) foldTx(ctx context.Context, tx *sql.Tx, userID string, sess model.Session) (model.Aggregate, error) {
	now := s.now().UTC()

	var agg model.Aggregate
	var updatedAt string
	err := tx.QueryRowContext(ctx,
		`SELECT user_id, best_wpm, best_accuracy, total_tests, total_time, updated_at
		 FROM aggregates WHERE user_id = ?`, userID).
		Scan(&agg.UserID, &agg.BestWPM, &agg.BestAccuracy, &agg.TotalTests, &agg.TotalTime, &updatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First session seeds the aggregate.
		agg = model.Aggregate{
			UserID:       userID,
			BestWPM:      sess.WPM,
			BestAccuracy: sess.Accuracy,
			TotalTests:   1,
			TotalTime:    sess.TimeTaken,
			UpdatedAt:    now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO aggregates (user_id, best_wpm, best_accuracy, total_tests, total_time, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			agg.UserID, agg.BestWPM, agg.BestAccuracy, agg.TotalTests, agg.TotalTime,
			now.Format(timeLayout))
		if err != nil {
			return model.Aggregate{}, fmt.Errorf("seed aggregate: %w", err)
		}
		return agg, nil

	case err != nil:
		return model.Aggregate{}, fmt.Errorf("query aggregate: %w", err)
	}

	if sess.WPM > agg.BestWPM {
		agg.BestWPM = sess.WPM
	}
	if sess.Accuracy > agg.BestAccuracy {
		agg.BestAccuracy = sess.Accuracy
	}
	agg.TotalTests++
	agg.TotalTime += sess.TimeTaken
	agg.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`UPDATE aggregates SET best_wpm = ?, best_accuracy = ?, total_tests = ?, total_time = ?, updated_at = ?
		 WHERE user_id = ?`,
		agg.BestWPM, agg.BestAccuracy, agg.TotalTests, agg.TotalTime,
		now.Format(timeLayout), userID)
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("update aggregate: %w", err)
	}
	return agg, nil
}

// Aggregate returns the user's aggregate or ErrNotFound.
func (s *SQLiteStore) Aggregate(ctx context.Context, userID string) (model.Aggregate, error) {
	var agg model.Aggregate
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, best_wpm, best_accuracy, total_tests, total_time, updated_at
		 FROM aggregates WHERE user_id = ?`, userID).
		Scan(&agg.UserID, &agg.BestWPM, &agg.BestAccuracy, &agg.TotalTests, &agg.TotalTime, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Aggregate{}, fmt.Errorf("aggregate for %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("query aggregate: %w", err)
	}
	agg.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return agg, nil
}

// Sessions returns the user's history, newest first.
func (s *SQLiteStore) Sessions(ctx context.Context, userID string, f SessionFilter) ([]model.Session, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSessionLimit
	}

	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if f.Difficulty != "" {
		clauses = append(clauses, "difficulty = ?")
		args = append(args, f.Difficulty)
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, user_id, wpm, accuracy, difficulty, errors, characters_typed, time_taken, completed_at
		 FROM sessions WHERE %s ORDER BY completed_at DESC LIMIT ?`,
		strings.Join(clauses, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var completedAt string
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.WPM, &sess.Accuracy, &sess.Difficulty,
			&sess.Errors, &sess.CharactersTyped, &sess.TimeTaken, &completedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CompletedAt, err = time.Parse(timeLayout, completedAt)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// TopAggregates returns the ranked aggregates of active users. The ORDER BY
// makes the tie-break deterministic: equal best_wpm ranks the earlier
// achiever first.
func (s *SQLiteStore) TopAggregates(ctx context.Context, n int) ([]RankedAggregate, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("top_aggregates", float64(time.Since(start).Milliseconds()))
	}()

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.user_id, u.username, a.best_wpm, a.best_accuracy, a.total_tests, a.total_time, a.updated_at
		 FROM aggregates a
		 JOIN users u ON u.id = a.user_id
		 WHERE u.active = 1
		 ORDER BY a.best_wpm DESC, a.updated_at ASC
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query top aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RankedAggregate
	for rows.Next() {
		var ra RankedAggregate
		var updatedAt string
		if err := rows.Scan(&ra.UserID, &ra.Username, &ra.BestWPM, &ra.BestAccuracy,
			&ra.TotalTests, &ra.TotalTime, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		ra.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		out = append(out, ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return out, nil
}

// Count returns the number of users with an aggregate.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aggregates`).Scan(&n); err != nil {
		return 0
	}
	return n
}
