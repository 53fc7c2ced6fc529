package orchestrator

import (
	"context"

	"github.com/leofalp/chatrelay/providers/ai"
)

// StreamFunc opens a provider stream for an assembled request. It is the base
// unit threaded through the middleware chain.
type StreamFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error)

// StreamMiddleware intercepts stream requests and may wrap the returned
// ChatStream to observe the event sequence. Middlewares are applied
// outermost-first: the first middleware in the slice is the outermost wrapper.
//
// Middlewares must not retry a stream: the one-shot fallback is owned by the
// orchestrator and depends on seeing the first failure.
type StreamMiddleware func(next StreamFunc) StreamFunc

// buildStreamChain constructs the stream chain for one attempt. The base
// function uses the provider's native stream when the catalog entry allows it
// and the provider supports it; otherwise the one-shot reply is wrapped as a
// single final delta.
func buildStreamChain(provider ai.Provider, streaming bool, middlewares []StreamMiddleware) StreamFunc {
	var chain StreamFunc = func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		if streamProvider, ok := provider.(ai.StreamProvider); ok && streaming {
			return streamProvider.StreamMessage(ctx, request)
		}

		response, err := provider.SendMessage(ctx, request)
		if err != nil {
			return nil, err
		}

		return ai.NewSingleEventStream(response), nil
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			chain = middlewares[i](chain)
		}
	}

	return chain
}

// Attempt describes the provider call a middleware is wrapping.
type Attempt struct {
	CallID   string
	ModelID  string // Public catalog id
	Provider ai.ProviderKind
	Fallback bool // Set on the single fallback attempt
}

type attemptKey struct{}

// ContextWithAttempt returns a context carrying the attempt description.
func ContextWithAttempt(ctx context.Context, attempt Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// AttemptFromContext returns the attempt description stored by the orchestrator.
func AttemptFromContext(ctx context.Context) (Attempt, bool) {
	if ctx == nil {
		return Attempt{}, false
	}
	attempt, ok := ctx.Value(attemptKey{}).(Attempt)
	return attempt, ok
}
