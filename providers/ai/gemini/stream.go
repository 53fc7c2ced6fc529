package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

// StreamMessage opens a streamGenerateContent?alt=sse call.
func (p *GeminiProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	p.annotate(ctx, request, true)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	streamURL := p.endpoint(request.Model, "streamGenerateContent") + "?alt=sse"
	httpResponse, err := utils.DoPostStream(ctx, p.client, streamURL, "", requestToGemini(request), p.firstByteTimeout, p.authHeader())
	if err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Trace(ctx, "gemini: stream request failed", observability.Error(err))
		}
		return nil, ai.Unavailable(err)
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		var lastUsage *ai.Usage
		finishReason := ""

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				break
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("gemini: SSE read error: %w", sseErr))
				return
			}

			var chunk generateContentResponse
			if parseErr := json.Unmarshal([]byte(payload), &chunk); parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("gemini: malformed stream chunk: %w", parseErr))
				return
			}
			if blockErr := blockedError(&chunk); blockErr != nil {
				yield(ai.StreamEvent{}, blockErr)
				return
			}

			if chunk.UsageMetadata != nil {
				lastUsage = usageToGeneric(chunk.UsageMetadata)
			}
			if len(chunk.Candidates) == 0 {
				continue
			}

			candidate := chunk.Candidates[0]
			// Each chunk carries only the text generated since the previous one.
			if delta := candidateText(candidate); delta != "" {
				if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: delta}, nil) {
					return
				}
			}
			if candidate.FinishReason != "" {
				finishReason = mapFinishReason(candidate.FinishReason)
			}
		}

		if finishReason == "" {
			yield(ai.StreamEvent{}, fmt.Errorf("gemini: stream ended without a finishReason: %w", io.ErrUnexpectedEOF))
			return
		}

		// Usage metadata is repeated on every chunk, so only the last one counts.
		if lastUsage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: lastUsage}, nil) {
				return
			}
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
	}

	return ai.NewChatStream(iteratorFunc), nil
}
