// Package model contains domain models passed between layers.
package model

import "time"

// Difficulty buckets for prompts and sessions.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ValidDifficulty reports whether d names a known difficulty bucket.
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// User is the authenticated identity attached to sessions and aggregates.
// Credential material never appears here; resolving a token to a User is the
// job of the identity collaborator.
type User struct {
	ID       string
	Username string
	Active   bool
}

// Session is one completed typing test. Immutable once recorded.
type Session struct {
	ID              string
	UserID          string
	WPM             float64
	Accuracy        float64
	Difficulty      string
	Errors          int
	CharactersTyped int
	TimeTaken       float64 // seconds
	CompletedAt     time.Time
}

// Aggregate is the per-user running statistics record, folded from each
// completed session. best_wpm/best_accuracy only ever increase; total_tests
// and total_time only ever grow.
type Aggregate struct {
	UserID       string
	BestWPM      float64
	BestAccuracy float64
	TotalTests   int
	TotalTime    float64
	UpdatedAt    time.Time
}

// SessionRecorded is published on the internal queue after a session and its
// aggregate fold have been committed. Workers turn it into the global
// leaderboard_update broadcast.
type SessionRecorded struct {
	EventID   string
	Username  string
	WPM       float64
	Accuracy  float64
	Timestamp time.Time
}
