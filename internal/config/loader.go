package config

import (
	"context"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TYPETRACK_CONFIG is set
//  3. env (prefix TYPETRACK_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TYPETRACK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: TYPETRACK_ADDR, TYPETRACK_QUEUE_SIZE, ...
	// Map env keys like TYPETRACK_QUEUE_SIZE -> queue_size (flat keys);
	// underscores are preserved to match koanf tags on the struct.
	envProvider := env.Provider("TYPETRACK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "typetrack_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, ErrEmptyAddr
	}
	if cfg.DBPath == "" {
		return nil, ErrEmptyDBPath
	}
	return &cfg, nil
}
