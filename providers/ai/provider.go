package ai

import (
	"context"
	"net/http"
	"time"
)

// StreamProvider is implemented by providers that support streaming (SSE)
// responses. Callers detect streaming support via type assertion:
// provider.(StreamProvider). If the provider does not implement this interface,
// callers wrap the synchronous SendMessage result with [NewSingleEventStream].
type StreamProvider interface {
	Provider
	// StreamMessage sends a chat request and returns a ChatStream that yields
	// incremental deltas as they arrive from the API. Pre-stream errors
	// (credentials, non-2xx status, network) are returned as a normal error.
	// Mid-stream errors are yielded through the iterator.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}

// Provider is the core interface that every upstream chat provider satisfies.
type Provider interface {
	// Kind reports the wire protocol family this provider speaks.
	Kind() ProviderKind

	// SendMessage sends a chat request and returns the complete response.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests. The
	// client is shared process-wide and must be safe for concurrent use.
	WithHttpClient(httpClient *http.Client) Provider

	// WithFirstByteTimeout bounds the wait for the first byte of a response.
	// Zero disables the bound.
	WithFirstByteTimeout(timeout time.Duration) Provider
}
