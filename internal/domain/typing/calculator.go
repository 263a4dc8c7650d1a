// Package typing computes live typing metrics from raw progress input.
package typing

import (
	"math"
	"strings"
)

// Input carries one progress observation: the reference prompt, everything
// typed so far, and the elapsed time since the session started.
type Input struct {
	Prompt  string
	Typed   string
	Elapsed float64 // seconds
}

// Update is the computed metrics snapshot broadcast back to the typist.
// Progress is intentionally not capped at 100: input longer than the prompt
// reports overrun.
type Update struct {
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	Progress float64 `json:"progress"`
	Errors   int     `json:"errors"`
	Elapsed  int     `json:"elapsed_time"`
}

// Compute derives WPM, accuracy, progress and error count from in.
// A zero or negative elapsed time or an empty prompt yields no update
// (ok=false); that is a policy decision, not an error, and callers must not
// broadcast anything for it.
//
// The position-anchored comparison runs over characters, not bytes: a
// multibyte rune occupies one slot, so one wrong character is one error.
func Compute(in Input) (Update, bool) {
	if in.Elapsed <= 0 || in.Prompt == "" {
		return Update{}, false
	}

	words := len(strings.Fields(in.Typed))
	wpm := float64(words) / in.Elapsed * 60

	prompt := []rune(in.Prompt)
	typed := []rune(in.Typed)

	correct := 0
	for i := 0; i < len(typed) && i < len(prompt); i++ {
		if typed[i] == prompt[i] {
			correct++
		}
	}

	accuracy := float64(correct) / float64(len(prompt)) * 100
	progress := float64(len(typed)) / float64(len(prompt)) * 100

	return Update{
		WPM:      Round2(wpm),
		Accuracy: Round2(accuracy),
		Progress: Round2(progress),
		Errors:   len(typed) - correct,
		Elapsed:  int(math.Round(in.Elapsed)),
	}, true
}

// Round2 rounds v to two decimal places, the precision used by every
// percentage and rate the service reports.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
