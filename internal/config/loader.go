package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix     = "PBSPREAD_"
	EnvConfigFile = "PBSPREAD_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PBSPREAD_CONFIG is set
//  3. env (prefix PBSPREAD_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PBSPREAD_SHEET_URL -> sheet_url; underscores are kept to match the
	// flat koanf tags on the struct.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.HasSource() && c.RefreshIntervalMS <= 0:
		return fmt.Errorf("%w: refresh_interval_ms must be positive when a sheet is configured", ErrInvalidConfig)
	case c.FetchTimeoutMS <= 0:
		return fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	}
	return nil
}
