package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

// StreamMessage opens a streaming completion. Failures before the response
// body starts are returned directly, classified as unavailable; later
// failures are yielded by the stream.
func (p *OpenAIProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	p.annotate(ctx, request, true)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey,
		requestFromGeneric(request, true), p.firstByteTimeout)
	if err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Trace(ctx, "openai: stream request failed", observability.Error(err))
		}
		return nil, ai.Unavailable(err)
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := scanner.Next()
			if errors.Is(sseErr, utils.ErrStreamDone) {
				return
			}
			if sseErr == io.EOF {
				yield(ai.StreamEvent{}, fmt.Errorf("openai: stream ended before [DONE]: %w", io.ErrUnexpectedEOF))
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("openai: SSE read error: %w", sseErr))
				return
			}

			chunk, parseErr := unmarshalChunk(payload)
			if parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("openai: malformed stream chunk: %w", parseErr))
				return
			}
			if chunkErr := chunkError(chunk); chunkErr != nil {
				yield(ai.StreamEvent{}, chunkErr)
				return
			}

			for _, event := range chunkToStreamEvents(chunk) {
				if !yield(event, nil) {
					return
				}
			}
		}
	}

	return ai.NewChatStream(iteratorFunc), nil
}

// chunkToStreamEvents maps one chunk to zero or more events. Usage is emitted
// before choice data because the usage chunk has no choices.
func chunkToStreamEvents(chunk *chatCompletionChunk) []ai.StreamEvent {
	var events []ai.StreamEvent

	if chunk.Usage != nil {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usageToGeneric(chunk.Usage)})
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventContent, Content: *choice.Delta.Content})
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: *choice.FinishReason})
		}
	}

	return events
}
