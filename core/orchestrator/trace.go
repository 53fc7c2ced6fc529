package orchestrator

import (
	"context"

	"github.com/leofalp/chatrelay/providers/observability"
)

// turnTrace records the turn span and log lines. The zero value (no observer)
// drops everything.
type turnTrace struct {
	observer observability.Provider
	span     observability.Span
}

func startTurnTrace(ctx context.Context, observer observability.Provider, attrs ...observability.Attribute) (context.Context, turnTrace) {
	if observer == nil {
		return ctx, turnTrace{}
	}

	ctx, span := observer.StartSpan(ctx, observability.SpanChatTurn, attrs...)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, observer)
	return ctx, turnTrace{observer: observer, span: span}
}

func (t turnTrace) event(name string, attrs ...observability.Attribute) {
	if t.span != nil {
		t.span.AddEvent(name, attrs...)
	}
}

func (t turnTrace) debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if t.observer != nil {
		t.observer.Debug(ctx, msg, attrs...)
	}
}

func (t turnTrace) warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if t.observer != nil {
		t.observer.Warn(ctx, msg, attrs...)
	}
}

// end closes the span with the turn outcome and writes the summary log line.
func (t turnTrace) end(ctx context.Context, outcome Outcome, reply *AssembledReply, err error) {
	if t.observer == nil {
		return
	}

	attrs := []observability.Attribute{
		observability.String(observability.AttrChatOutcome, string(outcome)),
	}
	if reply != nil {
		attrs = append(attrs,
			observability.String(observability.AttrChatModelUsed, reply.ModelUsed),
			observability.Int(observability.AttrChatReplyLength, len(reply.FullText)),
		)
		if reply.FinishReason != "" {
			attrs = append(attrs, observability.String(observability.AttrLLMFinishReason, reply.FinishReason))
		}
		if reply.Usage != nil {
			attrs = append(attrs, observability.Int(observability.AttrLLMTokensTotal, reply.Usage.TotalTokens))
		}
		if reply.Cost != nil {
			attrs = append(attrs, observability.Float64(observability.AttrChatCostUSD, reply.Cost.Total))
		}
		if reply.Cause != nil {
			attrs = append(attrs, observability.Error(reply.Cause))
		}
	}
	if err != nil {
		attrs = append(attrs, observability.Error(err))
	}

	t.span.SetAttributes(attrs...)

	switch outcome {
	case OutcomeCompleted, OutcomeFallback:
		t.span.SetStatus(observability.StatusOK, string(outcome))
		t.observer.Info(ctx, "chat turn completed", attrs...)
	case OutcomeCancelled:
		t.span.SetStatus(observability.StatusUnset, string(outcome))
		t.observer.Info(ctx, "chat turn cancelled", attrs...)
	default:
		t.span.SetStatus(observability.StatusError, string(outcome))
		t.observer.Warn(ctx, "chat turn ended early", attrs...)
	}

	t.span.End()
}
