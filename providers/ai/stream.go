package ai

import (
	"iter"
	"strings"
)

// StreamEventType identifies the kind of payload carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventContent indicates a text content delta.
	StreamEventContent StreamEventType = "content"
	// StreamEventUsage carries token usage metadata (typically near the end).
	StreamEventUsage StreamEventType = "usage"
	// StreamEventDone signals that the stream has finished normally.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent represents a single item yielded during response streaming.
// Each event carries exactly one type of payload, identified by Type.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Content      string          `json:"content,omitempty"`       // Text delta (Type == StreamEventContent)
	Final        bool            `json:"final,omitempty"`         // Set when the content event is the last one of the reply
	Usage        *Usage          `json:"usage,omitempty"`         // Token usage (Type == StreamEventUsage)
	FinishReason string          `json:"finish_reason,omitempty"` // Present on StreamEventDone
}

// ChatStream wraps a streaming iterator. It is finite and not restartable:
// iterate it once, either with Iter() or by calling Collect().
//
// Errors yielded by the underlying iterator are classified: before the first
// content event they wrap [ErrProviderUnavailable], afterwards they wrap
// [ErrProviderInterrupted]. Once an error has been yielded the stream ends;
// no further events are produced even if the provider iterator would continue.
//
// Callers must consume the stream (breaking out of the loop early counts).
// The provider may hold an open HTTP response body that is only released when
// the iterator completes or is abandoned.
type ChatStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewChatStream creates a ChatStream from a raw provider iterator. The iterator
// yields StreamEvent values with a nil error for normal deltas, and a non-nil
// error to signal a mid-stream failure.
func NewChatStream(iterator iter.Seq2[StreamEvent, error]) *ChatStream {
	classified := func(yield func(StreamEvent, error) bool) {
		produced := false
		for event, err := range iterator {
			if err != nil {
				if produced {
					yield(StreamEvent{}, Interrupted(err))
				} else {
					yield(StreamEvent{}, Unavailable(err))
				}
				return
			}
			if event.Type == StreamEventContent && event.Content != "" {
				produced = true
			}
			if !yield(event, nil) {
				return
			}
		}
	}
	return &ChatStream{iterator: classified}
}

// NewSingleEventStream wraps a one-shot ChatResponse as a stream. The whole
// reply is delivered as exactly one content event marked Final, followed by
// usage (when known) and a done event.
func NewSingleEventStream(response *ChatResponse) *ChatStream {
	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		if !yield(StreamEvent{Type: StreamEventContent, Content: response.Content, Final: true}, nil) {
			return
		}

		if response.Usage != nil {
			if !yield(StreamEvent{Type: StreamEventUsage, Usage: response.Usage}, nil) {
				return
			}
		}

		yield(StreamEvent{Type: StreamEventDone, FinishReason: response.FinishReason}, nil)
	}

	return NewChatStream(iteratorFunc)
}

// Iter returns the classified iterator for use with range-over-func loops.
//
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(event.Content)
//	}
func (stream *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated ChatResponse.
// A mid-stream error stops collection; the partial response is returned along
// with the classified error.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	accumulated := &ChatResponse{}
	var content strings.Builder

	for event, err := range stream.iterator {
		if err != nil {
			accumulated.Content = content.String()
			return accumulated, err
		}

		switch event.Type {
		case StreamEventContent:
			content.WriteString(event.Content)
		case StreamEventUsage:
			if event.Usage != nil {
				accumulated.Usage = event.Usage
			}
		case StreamEventDone:
			accumulated.FinishReason = event.FinishReason
		}
	}

	accumulated.Content = content.String()
	return accumulated, nil
}
