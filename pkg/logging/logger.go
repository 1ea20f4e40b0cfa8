// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// RedactURL reduces a SOCS endpoint to scheme and host. Endpoints carry the
// school's API key in their query string and must never be logged whole.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Every sub-range request (range, status, bytes, duration)
//   - Range fetcher decisions (complete vs. truncated, depth)
//   - Result store hits and misses
//
// Info: Normal operation events
//   - Top-level fetch completion (range, events, requests, splits)
//   - Scheduled refresh runs
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Single-day range accepted at the truncation cap
//   - Retry attempts
//   - Result store errors (fallback to live fetch)
//
// Error: Error conditions requiring attention
//   - Transport failures (after retries)
//   - Responses that do not match the SOCS schema
//   - Configuration errors
//
// Context Fields:
//   - component: socs-client, range-fetcher, result-store, socs-proxy
//   - endpoint: redacted SOCS endpoint (scheme + host only)
//   - range: inclusive date range, e.g. 2025-01-01..2025-01-31
//   - status: HTTP status code
//   - error_class: client, server, network
//   - depth: recursion depth of a sub-range fetch
//   - events: number of events returned or merged
