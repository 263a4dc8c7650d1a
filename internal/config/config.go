// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() defaults and Load(ctx) layering file and env on top.
// - All future functions must accept context.Context as the first parameter.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath locates the SQLite database file.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the in-memory session event queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of broadcast workers draining the queue.
	WorkerCount int `koanf:"worker_count"`

	// CacheTTLSeconds bounds the lifetime of cached leaderboard views.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AnalyticsDefaultLimit applies when GET /api/analytics omits limit.
	AnalyticsDefaultLimit int `koanf:"analytics_default_limit"`

	// HubSendBuffer sizes each live connection's outbound message buffer.
	HubSendBuffer int `koanf:"hub_send_buffer"`

	// StoreTimeoutMS bounds every persistence call so a stuck database
	// cannot hang request handling or the hub.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// StrictValidation rejects out-of-range session values (negative WPM,
	// accuracy above 100) instead of accepting them.
	StrictValidation bool `koanf:"strict_validation"`
}

// New returns the configuration defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":8080",
		DBPath:                "typetrack.db",
		QueueSize:             10_000,
		WorkerCount:           4,
		CacheTTLSeconds:       300,
		MaxLeaderboardLimit:   100,
		AnalyticsDefaultLimit: 20,
		HubSendBuffer:         64,
		StoreTimeoutMS:        5_000,
		StrictValidation:      false,
	}
}
