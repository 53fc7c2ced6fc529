package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/leofalp/chatrelay/core/orchestrator"
)

// SSE event names written by SSEChannel.
const (
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

// SSEChannel pushes deltas as server-sent events. Headers are written on the
// first event, so the handler can still answer with a plain HTTP error when
// the turn fails before streaming starts.
type SSEChannel struct {
	writer     http.ResponseWriter
	controller *http.ResponseController
	done       <-chan struct{}

	mu      sync.Mutex
	started bool
}

// NewSSEChannel wraps a response. The request context signals disconnects.
func NewSSEChannel(w http.ResponseWriter, r *http.Request) *SSEChannel {
	return &SSEChannel{
		writer:     w,
		controller: http.NewResponseController(w),
		done:       r.Context().Done(),
	}
}

// Push writes a "delta" event carrying the TextDelta as JSON.
func (c *SSEChannel) Push(_ context.Context, delta orchestrator.TextDelta) error {
	return c.WriteEvent(EventDelta, delta)
}

// End writes the "done" event carrying the assembled reply.
func (c *SSEChannel) End(_ context.Context, end EndOfStream) error {
	return c.WriteEvent(EventDone, end)
}

func (c *SSEChannel) Done() <-chan struct{} {
	return c.done
}

// Started reports whether any event was written.
func (c *SSEChannel) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// WriteEvent writes one named event with a JSON payload and flushes it.
func (c *SSEChannel) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: encode %s event: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		header := c.writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		c.writer.WriteHeader(http.StatusOK)
		c.started = true
	}

	if _, err := fmt.Fprintf(c.writer, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("sse: write %s event: %w", event, err)
	}
	if err := c.controller.Flush(); err != nil {
		return fmt.Errorf("sse: flush: %w", err)
	}
	return nil
}
