package utils

import (
	"fmt"
	"unicode/utf8"
)

// DefaultMaxStringLength bounds strings quoted in logs and error messages.
const DefaultMaxStringLength = 500

// TruncateString shortens s to at most maxLen bytes without splitting a rune
// and records the original length in a suffix. A non-positive maxLen means
// [DefaultMaxStringLength].
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}
	if len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s... (truncated, total: %d bytes)", s[:cut], len(s))
}
