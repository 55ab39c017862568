// Package logging configures structured logging for reportsql using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/reportsql/pkg/sqltext"
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

// MaxStatementLength caps the statement text attached to log lines.
const MaxStatementLength = 200

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
	switch strings.ToLower(strings.TrimSpace(string(level))) {
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

// Statement returns sql normalized to one line and shortened for logging.
func Statement(sql string) string {
	s := sqltext.Normalize(sql)
	if r := []rune(s); len(r) > MaxStatementLength {
		return string(r[:MaxStatementLength]) + "..."
	}
	return s
}

// Log Level Guidelines:
//
// Debug: page and parser detail
//   - Parse strategy per page (strict, forgiving, heuristic, streaming)
//   - Catalog cache hit/miss
//   - Cursor exhaustion
//
// Info: normal operation
//   - Completed page fetches (offset, rows, full)
//   - Server startup/shutdown
//
// Warn: recovered conditions
//   - Retry attempts with delay
//   - Transport failures before retry
//   - Ingestion fallbacks, dropped unterminated rows
//   - Cache errors (fallback to the service)
//   - Invalid configuration values
//
// Error: conditions requiring attention
//   - Retries exhausted
//   - Service unavailable at startup
//
// Context Fields:
//   - component: package emitting the line
//   - request_id: correlation id of one runReport call
//   - operation: retried operation name
//   - status_code: HTTP status code
//   - kind: failure kind (transport, service, domain, malformed)
//   - offset, rows, full: page position and size
//   - strategy: ingestion strategy that succeeded
//   - statement: SQL text as produced by Statement
//
// Credentials are never logged.
