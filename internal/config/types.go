// Package config loads das configuration from defaults, das.yaml, DAS_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config holds all configuration options.
type Config struct {
	Engine        string       `koanf:"engine"`
	Schemas       string       `koanf:"schemas"`
	LogLevel      string       `koanf:"log_level"`
	Output        string       `koanf:"output"`
	AllowWidening bool         `koanf:"allow_widening"`
	Concurrency   int          `koanf:"concurrency"`
	ReportDB      string       `koanf:"report_db"`
	DuckDB        DuckDBConfig `koanf:"duckdb"`

	// FileUsed is the config file that was loaded, empty if none.
	FileUsed string `koanf:"-"`
}

// DuckDBConfig configures the relational engine's database.
type DuckDBConfig struct {
	Path string `koanf:"path"`
	// Params holds adapter-specific settings (extensions, settings, secrets),
	// decoded by the DuckDB adapter.
	Params map[string]any `koanf:"params"`
}

// Engines and output modes.
const (
	EngineLazy       = "lazy"
	EngineRelational = "relational"
)

var outputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks option values.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineLazy, EngineRelational:
	default:
		return fmt.Errorf("invalid engine %q\nHint: use %q or %q", c.Engine, EngineLazy, EngineRelational)
	}
	valid := false
	for _, m := range outputModes {
		if c.Output == m {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid output %q (want one of %s)", c.Output, strings.Join(outputModes, ", "))
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
