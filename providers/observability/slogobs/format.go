package slogobs

import (
	"os"
	"strings"
)

// Format is the rendering used by Handler.
type Format string

const (
	// FormatCompact renders one line per record with JSON-encoded attributes.
	//   2026-10-17 10:40:35 DEBUG chat turn started -> {"chat.call_id":"..."}
	FormatCompact Format = "compact"

	// FormatPretty renders the message on one line and each attribute below it.
	FormatPretty Format = "pretty"

	// FormatJSON renders each record as a single JSON object.
	FormatJSON Format = "json"
)

// ParseFormat maps a format name to a Format. Unknown names yield FormatCompact.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPretty:
		return FormatPretty
	case FormatJSON:
		return FormatJSON
	default:
		return FormatCompact
	}
}

// GetFormatFromEnv reads CHATRELAY_LOG_FORMAT, then LOG_FORMAT.
func GetFormatFromEnv() Format {
	for _, key := range []string{"CHATRELAY_LOG_FORMAT", "LOG_FORMAT"} {
		if value := os.Getenv(key); value != "" {
			return ParseFormat(value)
		}
	}
	return FormatCompact
}

func (f Format) String() string {
	return string(f)
}
