package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks a provider failure that happened before any
	// content was produced: missing credentials, connection errors, non-2xx
	// status, first-byte timeout, or a stream that failed before its first
	// content event. Callers may safely retry against another provider.
	ErrProviderUnavailable = errors.New("chatrelay: provider unavailable")

	// ErrProviderInterrupted marks a provider failure after at least one
	// content delta was produced. Retrying would duplicate text the user has
	// already seen.
	ErrProviderInterrupted = errors.New("chatrelay: provider interrupted")

	// ErrMissingAPIKey is returned when a provider is invoked without credentials.
	ErrMissingAPIKey = errors.New("API key is not set")
)

// ProviderError is an explicit error event reported by a provider inside an
// otherwise healthy stream (e.g. Anthropic "overloaded_error").
type ProviderError struct {
	Provider ProviderKind
	Type     string // Provider error type, when reported
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s stream error (%s): %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s stream error: %s", e.Provider, e.Message)
}

// Unavailable wraps err so that errors.Is(err, ErrProviderUnavailable) holds.
// Errors that are already classified are returned unchanged.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderInterrupted) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}

// Interrupted wraps err so that errors.Is(err, ErrProviderInterrupted) holds.
// Errors that are already classified are returned unchanged.
func Interrupted(err error) error {
	if err == nil || errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderInterrupted) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProviderInterrupted, err)
}
