// Package logging builds the hclog loggers used by the mpqpack commands.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	EnvLogLevel = "MPQPACK_LOG_LEVEL"
	EnvJSONLog  = "MPQPACK_JSON_LOG"
	EnvLogPath  = "MPQPACK_LOG_PATH"

	// LinePrefix marks every text log line.
	LinePrefix = "📦 "
)

// Config is a resolved logger configuration.
type Config struct {
	Level  string
	Source string // where Level came from
	JSON   bool
}

// ResolveConfig picks the log level from the CLI flag, then the
// environment, then "warn". A level of the form "json" or "json:debug"
// switches to JSON output.
func ResolveConfig(cliLevel string) Config {
	cfg := Config{Level: "warn", Source: "default"}
	switch {
	case cliLevel != "":
		cfg.Level, cfg.Source = cliLevel, "CLI --log-level"
	case os.Getenv(EnvLogLevel) != "":
		cfg.Level, cfg.Source = os.Getenv(EnvLogLevel), EnvLogLevel
	}

	if strings.HasPrefix(cfg.Level, "json") {
		cfg.JSON = true
		if _, level, ok := strings.Cut(cfg.Level, ":"); ok && level != "" {
			cfg.Level = level
		} else {
			cfg.Level = "info"
		}
	}
	if os.Getenv(EnvJSONLog) == "1" {
		cfg.JSON = true
	}
	return cfg
}

// NewLogger creates a new hclog logger with standard settings
func NewLogger(name string, cfg Config, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	// Add prefix for non-JSON output
	if !cfg.JSON {
		output = NewPrefixWriter(LinePrefix, output)
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(cfg.Level),
		JSONFormat: cfg.JSON,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts)
}

// OpenOutput returns the log destination: the file named by MPQPACK_LOG_PATH
// when it can be opened, else stderr. The returned close function is never nil.
func OpenOutput() (io.Writer, func() error) {
	if logPath := os.Getenv(EnvLogPath); logPath != "" {
		if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			return file, file.Close
		}
	}
	return os.Stderr, func() error { return nil }
}
