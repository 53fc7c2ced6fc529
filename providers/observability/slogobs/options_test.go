package slogobs

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"compact": FormatCompact,
		" JSON ":  FormatJSON,
		"Pretty":  FormatPretty,
		"":        FormatCompact,
		"xml":     FormatCompact,
	}
	for input, want := range tests {
		if got := ParseFormat(input); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLogLevel(input); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestEnvPrecedence(t *testing.T) {
	t.Setenv("CHATRELAY_LOG_FORMAT", "json")
	t.Setenv("LOG_FORMAT", "pretty")
	t.Setenv("CHATRELAY_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "debug")

	if got := GetFormatFromEnv(); got != FormatJSON {
		t.Errorf("format = %q, want json", got)
	}
	if got := GetLogLevelFromEnv(); got != slog.LevelDebug {
		t.Errorf("level = %v, want DEBUG", got)
	}
}

func TestApplyOptions(t *testing.T) {
	t.Setenv("CHATRELAY_LOG_FORMAT", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("CHATRELAY_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "")

	defaults := applyOptions()
	if defaults.format != FormatCompact || defaults.level != slog.LevelInfo {
		t.Errorf("unexpected defaults: %+v", defaults)
	}

	var buf bytes.Buffer
	cfg := applyOptions(WithFormat(FormatPretty), WithLevel(slog.LevelError), WithOutput(&buf), WithColors(true))
	if cfg.format != FormatPretty || cfg.level != slog.LevelError || cfg.output != &buf || !cfg.colors {
		t.Errorf("options not applied: %+v", cfg)
	}
}
