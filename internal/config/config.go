// Package config provides the collector's configuration: one explicit struct
// constructed at startup and passed into each component. No component reads
// process environment on its own.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	apperrors "github.com/johnayoung/go-tick-collector/internal/errors"
)

const (
	// DefaultAppID is the public Deriv application ID used when none is configured.
	DefaultAppID = 1089

	// DefaultPageSize is the maximum tick count requested per history page.
	DefaultPageSize = 5000

	// DefaultPageDelay is the minimum spacing between history requests.
	DefaultPageDelay = 300 * time.Millisecond

	// DefaultInstrumentDelay is the pause between successive instruments.
	DefaultInstrumentDelay = 500 * time.Millisecond
)

// Config holds every run parameter. A run resolves its window from either
// the StartDate/EndDate pair or WeeksAgo; the pair takes precedence when
// both are set.
type Config struct {
	// Credential and endpoint
	APIToken string `env:"DERIV_API_TOKEN"`
	AppID    int    `env:"DERIV_APP_ID"`

	// Window selection
	StartDate string `env:"START_DATE"` // YYYY-MM-DD, inclusive
	EndDate   string `env:"END_DATE"`   // YYYY-MM-DD, exclusive
	WeeksAgo  int    `env:"WEEKS_AGO"`

	// Store location: <DataDir>/<DBPrefix>_<label>.sqlite
	DataDir  string `env:"DATA_DIR"`
	DBPrefix string `env:"DB_PREFIX"`

	// Pacing
	PageSize        int           `env:"PAGE_SIZE"`
	PageDelay       time.Duration `env:"PAGE_DELAY"`
	InstrumentDelay time.Duration `env:"INSTRUMENT_DELAY"`

	// Logging
	Logging LoggingConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL"`       // debug, info, warn, error
	Format     string `env:"LOG_FORMAT"`      // json, text
	Output     string `env:"LOG_OUTPUT"`      // stdout, stderr, file
	FilePath   string `env:"LOG_FILE_PATH"`   // required when Output is "file"
	MaxSizeMB  int    `env:"LOG_MAX_SIZE"`    // rotating file size limit
	MaxBackups int    `env:"LOG_MAX_BACKUPS"` // rotated files to keep
	MaxAgeDays int    `env:"LOG_MAX_AGE"`     // rotated file retention
}

// Default returns a configuration with the reference pacing and a one-week
// relative window.
func Default() *Config {
	return &Config{
		AppID:           DefaultAppID,
		WeeksAgo:        1,
		DataDir:         ".",
		DBPrefix:        "deriv_ticks",
		PageSize:        DefaultPageSize,
		PageDelay:       DefaultPageDelay,
		InstrumentDelay: DefaultInstrumentDelay,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load builds the configuration from defaults overridden by environment
// variables, then validates it.
func Load() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, apperrors.New(apperrors.KindConfiguration, "load", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UseDateRange reports whether the run resolves its window from the explicit
// date pair rather than the weeks-ago offset.
func (c *Config) UseDateRange() bool {
	return c.StartDate != "" && c.EndDate != ""
}

// Validate checks the configuration before any network or store activity.
func (c *Config) Validate() error {
	var problems []string

	if c.APIToken == "" {
		problems = append(problems, "DERIV_API_TOKEN is required")
	}
	if c.AppID <= 0 {
		problems = append(problems, "DERIV_APP_ID must be positive")
	}
	if (c.StartDate == "") != (c.EndDate == "") {
		problems = append(problems, "START_DATE and END_DATE must be set together")
	}
	if !c.UseDateRange() && c.WeeksAgo < 1 {
		problems = append(problems, "WEEKS_AGO must be a positive integer")
	}
	if c.PageSize < 1 || c.PageSize > DefaultPageSize {
		problems = append(problems, fmt.Sprintf("PAGE_SIZE must be between 1 and %d", DefaultPageSize))
	}
	if c.PageDelay < 0 {
		problems = append(problems, "PAGE_DELAY cannot be negative")
	}
	if c.InstrumentDelay < 0 {
		problems = append(problems, "INSTRUMENT_DELAY cannot be negative")
	}
	if c.DBPrefix == "" {
		problems = append(problems, "DB_PREFIX cannot be empty")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		problems = append(problems, "LOG_FORMAT must be one of: json, text")
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		problems = append(problems, "LOG_FILE_PATH is required when LOG_OUTPUT is file")
	}

	if len(problems) > 0 {
		return apperrors.Newf(apperrors.KindConfiguration, "validate",
			"invalid configuration:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Endpoint returns the WebSocket URL for the configured application ID.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("wss://ws.derivws.com/websockets/v3?app_id=%d", c.AppID)
}
