// Package types contains common read shapes used across the application
package types

import "time"

// LeaderboardEntry represents one ranked leaderboard row.
type LeaderboardEntry struct {
	Rank         int       `json:"rank"`
	Username     string    `json:"username"`
	BestWPM      float64   `json:"best_wpm"`
	BestAccuracy float64   `json:"best_accuracy"`
	TotalTests   int       `json:"total_tests"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionView is the serialized form of a recorded session in analytics history.
type SessionView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	WPM             float64   `json:"wpm"`
	Accuracy        float64   `json:"accuracy"`
	Difficulty      string    `json:"difficulty"`
	Errors          int       `json:"errors"`
	CharactersTyped int       `json:"characters_typed"`
	TimeTaken       float64   `json:"time_taken"`
	Timestamp       time.Time `json:"timestamp"`
}

// AnalyticsSummary aggregates a user's recent session history.
type AnalyticsSummary struct {
	TotalSessions   int           `json:"total_sessions"`
	AverageWPM      float64       `json:"average_wpm"`
	AverageAccuracy float64       `json:"average_accuracy"`
	BestWPM         float64       `json:"best_wpm"`
	BestAccuracy    float64       `json:"best_accuracy"`
	ImprovementRate float64       `json:"improvement_rate"`
	History         []SessionView `json:"history"`
}
