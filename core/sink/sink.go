package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/chatrelay/core/orchestrator"
	"github.com/leofalp/chatrelay/providers/ai"
)

// PushChannel is the receiving side of a turn.
type PushChannel interface {
	// Push forwards one delta. An error means the receiver is gone.
	Push(ctx context.Context, delta orchestrator.TextDelta) error
	// End sends the end-of-stream marker. It is called at most once.
	End(ctx context.Context, end EndOfStream) error
	// Done is closed when the receiver disconnects. A nil channel never fires.
	Done() <-chan struct{}
}

// EndOfStream is the terminal marker of a turn.
type EndOfStream struct {
	Reply *orchestrator.AssembledReply `json:"reply"`
}

// Responder starts a turn. It is satisfied by *orchestrator.Orchestrator.
type Responder interface {
	Respond(ctx context.Context, conversation []ai.Message, newUserText string, modelID string) (*orchestrator.ReplyStream, error)
}

// Request is one turn to deliver.
type Request struct {
	Conversation []ai.Message `json:"conversation"`
	Message      string       `json:"message"`
	Model        string       `json:"model"`
}

// ErrDisconnected is wrapped in the error returned when the channel reports
// a disconnect or a failed push.
var ErrDisconnected = errors.New("sink: receiver disconnected")

// Sink delivers turns to push channels. It is safe for concurrent use.
type Sink struct {
	responder Responder
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger used for disconnect and delivery entries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Sink over a responder.
func New(responder Responder, opts ...Option) *Sink {
	s := &Sink{responder: responder, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver runs one turn, forwarding every delta to channel in order and
// finishing with one EndOfStream. Errors from Respond (unknown model, empty
// prompt) are returned before anything is pushed. A disconnect returns an
// error wrapping both [orchestrator.ErrClientCancelled] and [ErrDisconnected].
func (s *Sink) Deliver(ctx context.Context, channel PushChannel, request Request) (*orchestrator.AssembledReply, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	stream, err := s.responder.Respond(groupCtx, request.Conversation, request.Message, request.Model)
	if err != nil {
		return nil, err
	}

	relayDone := make(chan struct{})
	var reply *orchestrator.AssembledReply

	group.Go(func() error {
		select {
		case <-channel.Done():
			select {
			case <-relayDone:
				return nil
			default:
				return disconnected(nil)
			}
		case <-relayDone:
			return nil
		}
	})

	group.Go(func() error {
		defer close(relayDone)

		for delta := range stream.Deltas() {
			if err := channel.Push(groupCtx, delta); err != nil {
				return disconnected(err)
			}
		}

		result, err := stream.Result()
		if err != nil {
			return err
		}

		if err := channel.End(groupCtx, EndOfStream{Reply: result}); err != nil {
			return disconnected(err)
		}

		reply = result
		return nil
	})

	err = group.Wait()
	if reply != nil {
		s.logger.DebugContext(ctx, "turn delivered",
			slog.String("call_id", reply.CallID),
			slog.String("outcome", string(reply.Outcome())),
		)
		return reply, nil
	}

	if errors.Is(err, orchestrator.ErrClientCancelled) {
		s.logger.InfoContext(ctx, "turn cancelled by receiver",
			slog.String("call_id", stream.CallID()),
			slog.String("model", request.Model),
			slog.String("error", err.Error()),
		)
	}
	return nil, err
}

func disconnected(cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %w", orchestrator.ErrClientCancelled, ErrDisconnected)
	}
	return fmt.Errorf("%w: %w: %w", orchestrator.ErrClientCancelled, ErrDisconnected, cause)
}
