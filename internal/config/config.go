// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and PBSPREAD_ env vars.
// - Errors are wrapped with this package's sentinel kinds.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// SheetURL is the published-CSV URL of the squad spreadsheet.
	SheetURL string `koanf:"sheet_url"`

	// SheetFile is a local CSV used instead of SheetURL when set.
	SheetFile string `koanf:"sheet_file"`

	// RefreshIntervalMS is the poll period for the configured sheet.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// FetchTimeoutMS bounds a single sheet download.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// QueueSize bounds pending recompute jobs.
	QueueSize int `koanf:"queue_size"`

	// MaxLeaderboardLimit caps GET /leaderboard/{event}?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9090",
		RefreshIntervalMS:   300_000,
		FetchTimeoutMS:      15_000,
		QueueSize:           16,
		MaxLeaderboardLimit: 100,
	}
}

// RefreshInterval returns RefreshIntervalMS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// HasSource reports whether a sheet source is configured.
func (c *Config) HasSource() bool {
	return c.SheetURL != "" || c.SheetFile != ""
}
