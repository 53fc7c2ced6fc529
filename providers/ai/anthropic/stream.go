package anthropic

import (
	"context"
	"fmt"
	"io"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

// StreamMessage opens a streaming Messages call.
//
//	message_start -> content_block_start -> content_block_delta* ->
//	content_block_stop -> message_delta -> message_stop
func (p *AnthropicProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	p.annotate(ctx, request, true)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+messagesEndpoint, "",
		requestToAnthropic(request, true), p.firstByteTimeout, p.buildHeaders()...)
	if err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Trace(ctx, "anthropic: stream request failed", observability.Error(err))
		}
		return nil, ai.Unavailable(err)
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		// Input tokens arrive on message_start, output tokens on message_delta.
		var tokens usage
		finishReason := ""

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				yield(ai.StreamEvent{}, fmt.Errorf("anthropic: stream ended before message_stop: %w", io.ErrUnexpectedEOF))
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("anthropic: SSE read error: %w", sseErr))
				return
			}

			event, parseErr := unmarshalStreamEvent(payload)
			if parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("anthropic: malformed stream event: %w", parseErr))
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					tokens = event.Message.Usage
				}

			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: event.Delta.Text}, nil) {
						return
					}
				}

			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					finishReason = mapStopReason(event.Delta.StopReason)
				}
				if event.Usage != nil {
					tokens.OutputTokens = event.Usage.OutputTokens
				}

			case "message_stop":
				if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usageToGeneric(tokens)}, nil) {
					return
				}
				yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
				return

			case "error":
				providerErr := &ai.ProviderError{Provider: ai.ProviderAnthropic, Message: "unknown stream error"}
				if event.Error != nil {
					providerErr.Type = event.Error.Type
					providerErr.Message = event.Error.Message
				}
				yield(ai.StreamEvent{}, providerErr)
				return

			default:
				// ping, content_block_start, content_block_stop
			}
		}
	}

	return ai.NewChatStream(iteratorFunc), nil
}
