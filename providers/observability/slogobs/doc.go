// Package slogobs implements observability.Provider on top of log/slog.
//
// Spans are rendered as debug log lines (start, events, end with duration)
// and log calls map onto slog levels, with an extra TRACE level below DEBUG.
// Output is compact single-line text, pretty multi-line text, or JSON. The
// defaults come from CHATRELAY_LOG_FORMAT and CHATRELAY_LOG_LEVEL.
package slogobs
