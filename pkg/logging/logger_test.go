package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want %s", cfg.Level, LevelInfo)
	}
	if cfg.Pretty {
		t.Error("Pretty = true, want false")
	}
	if cfg.Output == nil {
		t.Error("Output = nil, want stderr")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(zerolog.Logger, string)
	}{
		{"debug_level", LevelDebug, func(l zerolog.Logger, m string) { l.Debug().Msg(m) }},
		{"info_level", LevelInfo, func(l zerolog.Logger, m string) { l.Info().Msg(m) }},
		{"warn_level", LevelWarn, func(l zerolog.Logger, m string) { l.Warn().Msg(m) }},
		{"error_level", LevelError, func(l zerolog.Logger, m string) { l.Error().Msg(m) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			msg := "message at " + string(tt.level)
			tt.emit(logger, msg)

			if !strings.Contains(buf.String(), msg) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), msg)
			}
		})
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Msg("pretty message")

	out := buf.String()
	if !strings.Contains(out, "pretty message") {
		t.Errorf("output = %q, want it to contain the message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("output = %q, want console format, not JSON", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{" Debug ", zerolog.DebugLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("pagination")
	logger.Info().Msg("page fetched")

	output := buf.String()
	if !strings.Contains(output, `"component":"pagination"`) {
		t.Errorf("output = %q, want component field", output)
	}
	if !strings.Contains(output, "page fetched") {
		t.Errorf("output = %q, want message", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()
	for _, filtered := range []string{"debug message", "info message"} {
		if strings.Contains(output, filtered) {
			t.Errorf("output contains %q at warn level", filtered)
		}
	}
	for _, kept := range []string{"warn message", "error message"} {
		if !strings.Contains(output, kept) {
			t.Errorf("output is missing %q at warn level", kept)
		}
	}
}

func TestStatement(t *testing.T) {
	if got := Statement("SELECT *\n  FROM   t\n"); got != "SELECT * FROM t" {
		t.Errorf("Statement() = %q, want %q", got, "SELECT * FROM t")
	}

	long := "SELECT " + strings.Repeat("x, ", 200) + "y FROM t"
	got := Statement(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != MaxStatementLength+3 {
		t.Errorf("Statement(long) length = %d, want %d with ellipsis", len([]rune(got)), MaxStatementLength+3)
	}
}
