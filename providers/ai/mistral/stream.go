package mistral

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"io"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

// StreamMessage opens a streaming completion.
func (p *MistralProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	p.annotate(ctx, request, true)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey,
		requestFromGeneric(request, true), p.firstByteTimeout)
	if err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Trace(ctx, "mistral: stream request failed", observability.Error(err))
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
				yield(ai.StreamEvent{}, fmt.Errorf("mistral: stream ended before [DONE]: %w", io.ErrUnexpectedEOF))
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("mistral: SSE read error: %w", sseErr))
				return
			}

			var chunk chatChunk
			if parseErr := json.Unmarshal([]byte(payload), &chunk); parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("mistral: malformed stream chunk: %w", parseErr))
				return
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: choice.Delta.Content}, nil) {
						return
					}
				}
				if choice.FinishReason != nil && *choice.FinishReason == finishReasonError {
					yield(ai.StreamEvent{}, &ai.ProviderError{Provider: ai.ProviderMistral, Message: "generation failed mid-stream"})
					return
				}
			}

			// The final chunk carries both usage and finish_reason.
			if chunk.Usage != nil {
				if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usageToGeneric(chunk.Usage)}, nil) {
					return
				}
			}
			for _, choice := range chunk.Choices {
				if choice.FinishReason != nil && *choice.FinishReason != "" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: mapFinishReason(*choice.FinishReason)}, nil) {
						return
					}
				}
			}
		}
	}

	return ai.NewChatStream(iteratorFunc), nil
}
