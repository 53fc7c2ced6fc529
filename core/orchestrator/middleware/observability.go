package middleware

import (
	"context"
	"time"

	"github.com/leofalp/chatrelay/core/orchestrator"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

// NewObservabilityMiddleware creates a stream middleware that records an
// "llm.request" span for every provider attempt.
//
// The span and the observer are injected into the context before calling
// next, so provider implementations can annotate them via
// [observability.SpanFromContext] and [observability.ObserverFromContext].
// The span ends when the stream finishes, fails or is abandoned.
//
// Place it first so it observes the outcome after the timeout middleware.
func NewObservabilityMiddleware(observer observability.Provider) orchestrator.StreamMiddleware {
	return func(next orchestrator.StreamFunc) orchestrator.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			attrs := []observability.Attribute{
				observability.String(observability.AttrLLMModel, request.Model),
				observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			}
			if attempt, ok := orchestrator.AttemptFromContext(ctx); ok {
				attrs = append(attrs,
					observability.String(observability.AttrChatCallID, attempt.CallID),
					observability.String(observability.AttrLLMProvider, string(attempt.Provider)),
				)
			}

			ctx, span := observer.StartSpan(ctx, observability.SpanLLMRequest, attrs...)
			ctx = observability.ContextWithSpan(ctx, span)
			ctx = observability.ContextWithObserver(ctx, observer)

			span.AddEvent(observability.EventLLMRequestStart)
			start := time.Now()

			stream, err := next(ctx, request)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, "llm stream failed")
				span.End()

				observer.Error(ctx, "llm stream failed",
					observability.Error(err),
					observability.Duration(observability.AttrDuration, time.Since(start)),
					observability.String(observability.AttrLLMModel, request.Model),
				)
				return nil, err
			}

			return wrapStreamWithObservability(ctx, stream, span, observer, request.Model, start), nil
		}
	}
}

// wrapStreamWithObservability returns a ChatStream that emits all events
// unchanged and closes the span when the stream ends.
func wrapStreamWithObservability(
	ctx context.Context,
	stream *ai.ChatStream,
	span observability.Span,
	observer observability.Provider,
	model string,
	start time.Time,
) *ai.ChatStream {
	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		var usage *ai.Usage
		var finishReason string
		deltas := 0

		defer span.End()

		for event, err := range stream.Iter() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, "llm stream failed")

				observer.Error(ctx, "llm stream failed",
					observability.Error(err),
					observability.Duration(observability.AttrDuration, time.Since(start)),
					observability.String(observability.AttrLLMModel, model),
					observability.Int(observability.AttrChatDeltas, deltas),
				)

				yield(event, err)
				return
			}

			switch event.Type {
			case ai.StreamEventContent:
				if event.Content != "" {
					if deltas == 0 {
						span.AddEvent(observability.EventFirstDelta,
							observability.Duration(observability.AttrDuration, time.Since(start)),
						)
					}
					deltas++
				}
			case ai.StreamEventUsage:
				if event.Usage != nil {
					usage = event.Usage
				}
			case ai.StreamEventDone:
				finishReason = event.FinishReason
			}

			if !yield(event, nil) {
				span.SetStatus(observability.StatusOK, "llm stream abandoned")
				observer.Debug(ctx, "llm stream abandoned",
					observability.String(observability.AttrLLMModel, model),
					observability.Duration(observability.AttrDuration, time.Since(start)),
				)
				return
			}
		}

		attrs := []observability.Attribute{
			observability.String(observability.AttrLLMModel, model),
			observability.String(observability.AttrLLMFinishReason, finishReason),
			observability.Duration(observability.AttrDuration, time.Since(start)),
			observability.Int(observability.AttrChatDeltas, deltas),
		}
		if usage != nil {
			attrs = append(attrs,
				observability.Int(observability.AttrLLMTokensPrompt, usage.PromptTokens),
				observability.Int(observability.AttrLLMTokensCompletion, usage.CompletionTokens),
				observability.Int(observability.AttrLLMTokensTotal, usage.TotalTokens),
			)
		}

		span.SetAttributes(attrs...)
		span.AddEvent(observability.EventLLMRequestEnd)
		span.SetStatus(observability.StatusOK, "success")
		observer.Debug(ctx, "llm stream completed", attrs...)
	}

	return ai.NewChatStream(iteratorFunc)
}
