package middleware

import (
	"context"
	"time"

	"github.com/leofalp/chatrelay/core/orchestrator"
	"github.com/leofalp/chatrelay/providers/ai"
)

// NewTimeoutMiddleware creates a stream middleware that bounds the complete
// lifetime of one provider stream.
//
// The cancel function is not deferred when the stream opens. It runs once the
// stream is fully consumed, fails, or is abandoned, so the deadline covers
// every read and not just the time to the first byte. A deadline hit before
// any text is relayed surfaces as an unavailable provider and is eligible for
// fallback; after text it surfaces as an interruption.
//
// A non-positive timeout disables the middleware.
func NewTimeoutMiddleware(timeout time.Duration) orchestrator.StreamMiddleware {
	return func(next orchestrator.StreamFunc) orchestrator.StreamFunc {
		if timeout <= 0 {
			return next
		}

		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)

			stream, err := next(ctx, request)
			if err != nil {
				cancel()
				return nil, err
			}

			return wrapStreamWithCancel(stream, cancel), nil
		}
	}
}

// wrapStreamWithCancel returns a ChatStream whose iterator calls cancel once
// the stream finishes, errors, or the caller breaks out of the loop.
func wrapStreamWithCancel(stream *ai.ChatStream, cancel context.CancelFunc) *ai.ChatStream {
	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer cancel()

		for event, err := range stream.Iter() {
			if !yield(event, err) {
				return
			}

			if err != nil {
				return
			}
		}
	}

	return ai.NewChatStream(iteratorFunc)
}
