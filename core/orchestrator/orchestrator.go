package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/chatrelay/core/catalog"
	"github.com/leofalp/chatrelay/core/cost"
	"github.com/leofalp/chatrelay/core/prompt"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

// Orchestrator turns a conversation plus a new user message into a streamed
// reply. It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	catalog       *catalog.Catalog
	providers     map[ai.ProviderKind]ai.Provider
	assembler     *prompt.Assembler
	fallbackModel string
	budget        int
	middlewares   []StreamMiddleware
	observer      observability.Provider
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAssembler replaces the default character-budget assembler.
func WithAssembler(assembler *prompt.Assembler) Option {
	return func(o *Orchestrator) {
		if assembler != nil {
			o.assembler = assembler
		}
	}
}

// WithFallbackModel sets the catalog id tried once when the requested model is
// unavailable. An empty id disables the fallback attempt.
func WithFallbackModel(modelID string) Option {
	return func(o *Orchestrator) {
		o.fallbackModel = modelID
	}
}

// WithBudget fixes the prompt budget in the assembler's unit. Zero derives
// the budget from each model's context window.
func WithBudget(budget int) Option {
	return func(o *Orchestrator) {
		o.budget = budget
	}
}

// WithMiddleware appends stream middlewares. The first one is the outermost.
func WithMiddleware(middlewares ...StreamMiddleware) Option {
	return func(o *Orchestrator) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithObserver enables the turn span and turn log lines. The observer is also
// placed in the context handed to providers.
func WithObserver(observer observability.Provider) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// New builds an orchestrator over a catalog and one client per provider kind.
// Kinds without a client are treated as unavailable at call time. The
// fallback defaults to [catalog.DefaultFallbackModel] when the catalog offers it.
func New(models *catalog.Catalog, providers map[ai.ProviderKind]ai.Provider, opts ...Option) (*Orchestrator, error) {
	if models == nil {
		return nil, errors.New("orchestrator: catalog is required")
	}

	o := &Orchestrator{
		catalog:   models,
		providers: maps.Clone(providers),
		assembler: prompt.NewAssembler(nil),
	}
	if models.Has(catalog.DefaultFallbackModel) {
		o.fallbackModel = catalog.DefaultFallbackModel
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.fallbackModel != "" && !models.Has(o.fallbackModel) {
		return nil, fmt.Errorf("orchestrator: fallback model: %w: %q", ErrUnknownModel, o.fallbackModel)
	}
	if o.budget < 0 {
		return nil, fmt.Errorf("orchestrator: negative budget %d", o.budget)
	}

	return o, nil
}

// Catalog returns the catalog the orchestrator resolves against.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// FallbackModel returns the configured fallback id, empty when disabled.
func (o *Orchestrator) FallbackModel() string {
	return o.fallbackModel
}

// Respond validates the model and assembles the prompt. Nothing is sent until
// the returned stream is consumed. An unknown model fails with
// [ErrUnknownModel] and an empty conversation with [prompt.ErrEmptyPrompt].
//
// Cancelling ctx while the stream is consumed aborts the upstream call and
// ends the turn with [ErrClientCancelled].
func (o *Orchestrator) Respond(ctx context.Context, conversation []ai.Message, newUserText string, modelID string) (*ReplyStream, error) {
	entry, err := o.catalog.Resolve(modelID)
	if err != nil {
		return nil, err
	}

	conversation = slices.Clone(conversation)

	request, report, err := o.assemble(conversation, newUserText, entry)
	if err != nil {
		return nil, err
	}

	return &ReplyStream{
		orch:         o,
		ctx:          ctx,
		callID:       uuid.NewString(),
		conversation: conversation,
		newUserText:  newUserText,
		entry:        entry,
		request:      request,
		report:       report,
	}, nil
}

func (o *Orchestrator) assemble(conversation []ai.Message, newUserText string, entry catalog.Entry) (ai.ChatRequest, prompt.Report, error) {
	budget := o.budget
	if budget == 0 {
		budget = prompt.BudgetForWindow(entry.ContextWindow, o.assembler.Unit())
	}
	return o.assembler.Assemble(conversation, newUserText, entry.NativeName, budget)
}

type streamState int

const (
	stateIdle streamState = iota
	stateRunning
	stateFinished
)

// ReplyStream is one pending turn. Deltas can be iterated once; Result
// reports the outcome after iteration ends.
type ReplyStream struct {
	orch         *Orchestrator
	ctx          context.Context
	callID       string
	conversation []ai.Message
	newUserText  string
	entry        catalog.Entry
	request      ai.ChatRequest
	report       prompt.Report

	mu    sync.Mutex
	state streamState
	reply *AssembledReply
	err   error
}

// CallID identifies the turn in logs and in the assembled reply.
func (s *ReplyStream) CallID() string {
	return s.callID
}

// Request returns the assembled prompt for the requested model.
func (s *ReplyStream) Request() ai.ChatRequest {
	return s.request
}

// Report describes how the context budget shaped the prompt.
func (s *ReplyStream) Report() prompt.Report {
	return s.report
}

// Deltas runs the turn, yielding deltas in provider order. Every turn that
// is not cancelled ends with exactly one delta marked Final. Breaking out of
// the loop cancels the turn. Iterating a second time yields nothing.
func (s *ReplyStream) Deltas() iter.Seq[TextDelta] {
	return func(yield func(TextDelta) bool) {
		s.mu.Lock()
		if s.state != stateIdle {
			s.mu.Unlock()
			return
		}
		s.state = stateRunning
		s.mu.Unlock()

		reply, err := s.run(yield)

		s.mu.Lock()
		s.reply, s.err, s.state = reply, err, stateFinished
		s.mu.Unlock()
	}
}

// Result returns the assembled reply. When Deltas was never iterated the turn
// is run to completion first, discarding the deltas. A cancelled turn returns
// [ErrClientCancelled] and no reply.
func (s *ReplyStream) Result() (*AssembledReply, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case stateIdle:
		for range s.Deltas() {
		}
	case stateRunning:
		return nil, ErrReplyPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply, s.err
}

func (s *ReplyStream) run(yield func(TextDelta) bool) (*AssembledReply, error) {
	o := s.orch
	start := time.Now()

	ctx, trace := startTurnTrace(s.ctx, o.observer,
		observability.String(observability.AttrChatCallID, s.callID),
		observability.String(observability.AttrChatModelRequested, s.entry.ID),
		observability.Int(observability.AttrRequestMessagesCount, len(s.request.Messages)),
		observability.Int(observability.AttrPromptDroppedTurns, s.report.DroppedTurns),
	)

	reply, err := s.attempt(ctx, trace, s.entry, s.request, false, start, yield)
	if err == nil {
		return s.finish(ctx, trace, reply)
	}
	if errors.Is(err, ErrClientCancelled) {
		return s.cancel(ctx, trace, err)
	}

	cause := err
	if fallback, ok := s.fallbackEntry(); ok {
		request, _, assembleErr := o.assemble(s.conversation, s.newUserText, fallback)
		if assembleErr == nil {
			recordFallback()
			trace.event(observability.EventFallback,
				observability.String(observability.AttrChatModelUsed, fallback.ID),
				observability.Error(err),
			)
			trace.warn(ctx, "requested model unavailable, trying fallback",
				observability.String(observability.AttrChatCallID, s.callID),
				observability.String(observability.AttrChatModelRequested, s.entry.ID),
				observability.String(observability.AttrChatModelUsed, fallback.ID),
				observability.Error(err),
			)

			reply, err = s.attempt(ctx, trace, fallback, request, true, start, yield)
			if err == nil {
				return s.finish(ctx, trace, reply)
			}
			if errors.Is(err, ErrClientCancelled) {
				return s.cancel(ctx, trace, err)
			}
			cause = errors.Join(cause, err)
		} else {
			cause = errors.Join(cause, assembleErr)
		}
	}

	if !yield(TextDelta{Content: CannedReply, Final: true}) {
		return s.cancel(ctx, trace, ErrClientCancelled)
	}

	return s.finish(ctx, trace, &AssembledReply{
		CallID:         s.callID,
		FullText:       CannedReply,
		RequestedModel: s.entry.ID,
		Degraded:       true,
		Cause:          cause,
	})
}

// fallbackEntry returns the fallback model unless it is disabled or is the
// model that just failed.
func (s *ReplyStream) fallbackEntry() (catalog.Entry, bool) {
	id := s.orch.fallbackModel
	if id == "" || id == s.entry.ID {
		return catalog.Entry{}, false
	}
	entry, err := s.orch.catalog.Resolve(id)
	if err != nil {
		return catalog.Entry{}, false
	}
	return entry, true
}

// attempt streams one provider call. It returns a reply on success or on a
// mid-stream interruption, and an error when the provider produced nothing or
// the client went away.
func (s *ReplyStream) attempt(
	ctx context.Context,
	trace turnTrace,
	entry catalog.Entry,
	request ai.ChatRequest,
	fallback bool,
	start time.Time,
	yield func(TextDelta) bool,
) (*AssembledReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	provider, ok := s.orch.providers[entry.Provider]
	if !ok || provider == nil {
		recordProviderFailure(entry.Provider, "unavailable")
		return nil, ai.Unavailable(fmt.Errorf("no client configured for provider %s", entry.Provider))
	}

	ctx = ContextWithAttempt(ctx, Attempt{
		CallID:   s.callID,
		ModelID:  entry.ID,
		Provider: entry.Provider,
		Fallback: fallback,
	})

	trace.debug(ctx, "opening provider stream",
		observability.String(observability.AttrChatCallID, s.callID),
		observability.String(observability.AttrLLMProvider, string(entry.Provider)),
		observability.String(observability.AttrLLMModel, entry.NativeName),
		observability.Bool(observability.AttrLLMStreaming, entry.Streaming),
	)

	chain := buildStreamChain(provider, entry.Streaming, s.orch.middlewares)
	stream, err := chain(ctx, request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}
		recordProviderFailure(entry.Provider, "unavailable")
		return nil, ai.Unavailable(err)
	}

	reply := &AssembledReply{
		CallID:         s.callID,
		ModelUsed:      entry.ID,
		RequestedModel: s.entry.ID,
	}

	var text strings.Builder
	relayed := false
	final := false

	for event, err := range stream.Iter() {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, cancelled(ctxErr)
			}
			if relayed || errors.Is(err, ai.ErrProviderInterrupted) {
				recordProviderFailure(entry.Provider, "interrupted")
				reply.FullText = text.String()
				reply.Incomplete = true
				reply.Cause = err
				reply.Cost = price(entry, reply.Usage)
				if !final && !yield(TextDelta{Final: true}) {
					return nil, ErrClientCancelled
				}
				return reply, nil
			}
			recordProviderFailure(entry.Provider, "unavailable")
			return nil, err
		}

		switch event.Type {
		case ai.StreamEventContent:
			if final || (event.Content == "" && !event.Final) {
				continue
			}
			if !relayed && event.Content != "" {
				recordFirstDelta(entry.Provider, time.Since(start))
				trace.event(observability.EventFirstDelta,
					observability.Duration(observability.AttrDuration, time.Since(start)),
				)
				relayed = true
			}
			text.WriteString(event.Content)
			final = event.Final
			if !yield(TextDelta{Content: event.Content, Final: event.Final}) {
				return nil, ErrClientCancelled
			}
		case ai.StreamEventUsage:
			if event.Usage != nil {
				reply.Usage = event.Usage
			}
		case ai.StreamEventDone:
			reply.FinishReason = event.FinishReason
		}
	}

	if !final {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		if !yield(TextDelta{Final: true}) {
			return nil, ErrClientCancelled
		}
	}

	reply.FullText = text.String()
	reply.Cost = price(entry, reply.Usage)
	return reply, nil
}

func (s *ReplyStream) finish(ctx context.Context, trace turnTrace, reply *AssembledReply) (*AssembledReply, error) {
	outcome := reply.Outcome()
	recordTurn(outcome)
	recordUsage(reply)
	trace.end(ctx, outcome, reply, nil)
	return reply, nil
}

func (s *ReplyStream) cancel(ctx context.Context, trace turnTrace, err error) (*AssembledReply, error) {
	recordTurn(OutcomeCancelled)
	trace.end(ctx, OutcomeCancelled, nil, err)
	return nil, err
}

func cancelled(err error) error {
	if errors.Is(err, ErrClientCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrClientCancelled, err)
}

// price estimates the turn cost; nil when usage or pricing is unknown.
func price(entry catalog.Entry, usage *ai.Usage) *cost.Breakdown {
	if usage == nil || entry.Pricing.IsZero() {
		return nil
	}
	breakdown := entry.Pricing.Estimate(usage)
	return &breakdown
}
