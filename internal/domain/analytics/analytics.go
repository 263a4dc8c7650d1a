// Package analytics derives historical statistics from session history.
package analytics

import (
	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/internal/domain/typing"
	"github.com/typetrack/typetrack/internal/domain/types"
)

// Sessions needed before an improvement trend is reported. Below this the
// rate is 0, not undefined.
const improvementWindow = 10

// trendSpan is how many sessions from each end of the window feed the trend.
const trendSpan = 5

// Summarize computes the analytics summary over sessions, which must be
// ordered newest first (completed_at descending). An empty slice yields a
// zero-valued summary with an empty history, never an error.
func Summarize(sessions []model.Session) types.AnalyticsSummary {
	if len(sessions) == 0 {
		return types.AnalyticsSummary{History: []types.SessionView{}}
	}

	total := len(sessions)
	var sumWPM, sumAcc, bestWPM, bestAcc float64
	for _, s := range sessions {
		sumWPM += s.WPM
		sumAcc += s.Accuracy
		if s.WPM > bestWPM {
			bestWPM = s.WPM
		}
		if s.Accuracy > bestAcc {
			bestAcc = s.Accuracy
		}
	}

	return types.AnalyticsSummary{
		TotalSessions:   total,
		AverageWPM:      typing.Round2(sumWPM / float64(total)),
		AverageAccuracy: typing.Round2(sumAcc / float64(total)),
		BestWPM:         typing.Round2(bestWPM),
		BestAccuracy:    typing.Round2(bestAcc),
		ImprovementRate: typing.Round2(improvementRate(sessions)),
		History:         historyViews(sessions),
	}
}

// improvementRate compares the mean WPM of the 5 most recent sessions against
// the 5 oldest within the fetched window. sessions are newest first, so the
// oldest block sits at the tail.
func improvementRate(sessions []model.Session) float64 {
	if len(sessions) < improvementWindow {
		return 0
	}

	var recent, oldest float64
	for _, s := range sessions[:trendSpan] {
		recent += s.WPM
	}
	for _, s := range sessions[len(sessions)-trendSpan:] {
		oldest += s.WPM
	}
	recent /= trendSpan
	oldest /= trendSpan

	if oldest == 0 {
		return 0
	}
	return (recent - oldest) / oldest * 100
}

func historyViews(sessions []model.Session) []types.SessionView {
	views := make([]types.SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = types.SessionView{
			ID:              s.ID,
			UserID:          s.UserID,
			WPM:             s.WPM,
			Accuracy:        s.Accuracy,
			Difficulty:      s.Difficulty,
			Errors:          s.Errors,
			CharactersTyped: s.CharactersTyped,
			TimeTaken:       s.TimeTaken,
			Timestamp:       s.CompletedAt,
		}
	}
	return views
}
