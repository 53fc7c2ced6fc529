package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/leofalp/chatrelay/core/orchestrator"
	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
)

// LogLevel controls how much detail the logging middleware emits per attempt.
type LogLevel int

const (
	// LogLevelMinimal logs only the model, duration and token counts.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the message count, finish reason and delta count.
	// This is the recommended default.
	LogLevelStandard

	// LogLevelVerbose adds the newest user turn and the reply text, each
	// truncated to 500 characters.
	//
	// WARNING: DO NOT use LogLevelVerbose in production. It logs raw prompt
	// and reply text, which may contain PII.
	LogLevelVerbose
)

// truncateLen is the maximum content length included in verbose log output.
const truncateLen = 500

// ParseLogLevel maps "minimal", "standard" and "verbose" to a LogLevel.
// Anything else yields LogLevelStandard.
func ParseLogLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "minimal":
		return LogLevelMinimal
	case "verbose":
		return LogLevelVerbose
	}
	return LogLevelStandard
}

// NewLoggingMiddleware creates a stream middleware that logs when a provider
// stream opens and when it ends (done, error or abandoned). Entries carry the
// call id and attempt details placed in the context by the orchestrator.
//
// The logger must not be nil. Use slog.Default() if you have not configured a
// custom logger.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) orchestrator.StreamMiddleware {
	return func(next orchestrator.StreamFunc) orchestrator.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			base := attemptAttrs(ctx, request)

			logger.InfoContext(ctx, "llm stream", append(base, buildRequestAttrs(request, level)...)...)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed",
					append(base,
						slog.Duration("duration", time.Since(start)),
						slog.String("error", err.Error()),
					)...,
				)
				return nil, err
			}

			return wrapStreamWithLogging(ctx, stream, logger, base, level, start), nil
		}
	}
}

// wrapStreamWithLogging returns a ChatStream that logs a completion entry when
// the stream ends normally, or an error entry on failure.
func wrapStreamWithLogging(
	ctx context.Context,
	stream *ai.ChatStream,
	logger *slog.Logger,
	base []any,
	level LogLevel,
	start time.Time,
) *ai.ChatStream {
	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		var finishReason string
		var usage *ai.Usage
		var reply strings.Builder
		deltas := 0

		for event, err := range stream.Iter() {
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed",
					append(base,
						slog.Duration("duration", time.Since(start)),
						slog.Int("deltas", deltas),
						slog.String("error", err.Error()),
					)...,
				)
				yield(event, err)
				return
			}

			switch event.Type {
			case ai.StreamEventContent:
				if event.Content != "" {
					deltas++
					if level >= LogLevelVerbose && reply.Len() < truncateLen {
						reply.WriteString(event.Content)
					}
				}
			case ai.StreamEventUsage:
				if event.Usage != nil {
					usage = event.Usage
				}
			case ai.StreamEventDone:
				finishReason = event.FinishReason
			}

			if !yield(event, nil) {
				logger.InfoContext(ctx, "llm stream abandoned",
					append(base,
						slog.Duration("duration", time.Since(start)),
						slog.Int("deltas", deltas),
					)...,
				)
				return
			}
		}

		attrs := append(base, slog.Duration("duration", time.Since(start)))

		if level >= LogLevelStandard {
			attrs = append(attrs, slog.Int("deltas", deltas))
			if finishReason != "" {
				attrs = append(attrs, slog.String("finish_reason", finishReason))
			}
		}

		if usage != nil {
			attrs = append(attrs,
				slog.Int("prompt_tokens", usage.PromptTokens),
				slog.Int("completion_tokens", usage.CompletionTokens),
				slog.Int("total_tokens", usage.TotalTokens),
			)
		}

		if level >= LogLevelVerbose && reply.Len() > 0 {
			attrs = append(attrs, slog.String("response_content", utils.TruncateString(reply.String(), truncateLen)))
		}

		logger.InfoContext(ctx, "llm stream completed", attrs...)
	}

	return ai.NewChatStream(iteratorFunc)
}

// attemptAttrs returns the attributes shared by every entry of one attempt.
// The returned slice has no spare capacity, so appends never alias.
func attemptAttrs(ctx context.Context, request ai.ChatRequest) []any {
	attrs := []any{slog.String("model", request.Model)}

	if attempt, ok := orchestrator.AttemptFromContext(ctx); ok {
		attrs = append(attrs,
			slog.String("call_id", attempt.CallID),
			slog.String("model_id", attempt.ModelID),
			slog.String("provider", string(attempt.Provider)),
		)
		if attempt.Fallback {
			attrs = append(attrs, slog.Bool("fallback", true))
		}
	}

	return attrs[:len(attrs):len(attrs)]
}

// buildRequestAttrs returns attributes for an outgoing request, expanding
// detail according to the requested verbosity level.
func buildRequestAttrs(request ai.ChatRequest, level LogLevel) []any {
	var attrs []any

	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("message_count", len(request.Messages)))
	}

	if level >= LogLevelVerbose && len(request.Messages) > 0 {
		last := request.Messages[len(request.Messages)-1]
		attrs = append(attrs,
			slog.String("last_message_role", string(last.Role)),
			slog.String("last_message_content", utils.TruncateString(last.Content, truncateLen)),
		)
	}

	return attrs
}
