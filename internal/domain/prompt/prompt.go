// Package prompt provides the practice text corpus.
package prompt

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/typetrack/typetrack/internal/domain/model"
)

// Text is one prompt served to a client, with precomputed length metadata.
type Text struct {
	Prompt     string `json:"prompt"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
	Length     int    `json:"length"`
	WordCount  int    `json:"word_count"`
}

// DefaultCategory is used when a request does not name a category.
const DefaultCategory = "general"

var corpus = map[string][]string{
	model.DifficultyEasy: {
		"The quick brown fox jumps over the lazy dog.",
		"Python is a powerful programming language.",
		"Web development is fun and exciting.",
		"Coffee helps programmers stay awake.",
		"Simple sentences are easy to type.",
	},
	model.DifficultyMedium: {
		"Machine learning algorithms enable computers to learn patterns from data.",
		"Full-stack development requires knowledge of both frontend and backend technologies.",
		"Database optimization techniques improve application performance significantly.",
		"Version control systems like Git help developers collaborate effectively.",
		"Responsive design ensures websites work well on all device sizes.",
	},
	model.DifficultyHard: {
		"Asynchronous programming paradigms facilitate concurrent execution without blocking the main thread.",
		"Microservices architecture enables scalable distributed system design.",
		"Advanced algorithms optimize computational complexity through dynamic programming.",
		"Cloud-native applications leverage containerization and autoscaling.",
		"Real-time data processing pipelines enable low-latency analytics.",
	},
}

// Provider picks prompts from the built-in corpus.
type Provider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Option applies a configuration option to the Provider.
type Option func(*Provider)

// WithSeed fixes the random source, for deterministic tests.
func WithSeed(seed int64) Option {
	return func(p *Provider) {
		p.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // prompts need no cryptographic randomness
	}
}

// New creates a prompt provider.
func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pick returns a random prompt for the requested difficulty. Unknown
// difficulties fall back to medium rather than failing.
func (p *Provider) Pick(difficulty, category string) Text {
	if !model.ValidDifficulty(difficulty) {
		difficulty = model.DifficultyMedium
	}
	if category == "" {
		category = DefaultCategory
	}

	texts := corpus[difficulty]

	p.mu.Lock()
	var idx int
	if p.rng != nil {
		idx = p.rng.Intn(len(texts))
	} else {
		idx = rand.Intn(len(texts)) //nolint:gosec // see WithSeed
	}
	p.mu.Unlock()

	text := texts[idx]
	return Text{
		Prompt:     text,
		Difficulty: difficulty,
		Category:   category,
		Length:     len(text),
		WordCount:  len(strings.Fields(text)),
	}
}
