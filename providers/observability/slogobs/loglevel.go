package slogobs

import (
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug and carries per-request wire details.
const LevelTrace = slog.LevelDebug - 4

// ParseLogLevel maps a level name (case-insensitive) to a slog.Level.
// Unknown names yield slog.LevelInfo.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogLevelFromEnv reads CHATRELAY_LOG_LEVEL, then LOG_LEVEL.
func GetLogLevelFromEnv() slog.Level {
	for _, key := range []string{"CHATRELAY_LOG_LEVEL", "LOG_LEVEL"} {
		if value := os.Getenv(key); value != "" {
			return ParseLogLevel(value)
		}
	}
	return slog.LevelInfo
}

// levelString names a level, folding everything below DEBUG into TRACE.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
