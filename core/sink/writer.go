package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/leofalp/chatrelay/core/orchestrator"
)

// WriterChannel prints delta text to a writer, for terminals and logs. The
// end marker is a newline, followed by a notice for incomplete or degraded
// replies.
type WriterChannel struct {
	writer io.Writer
	done   <-chan struct{}
}

// NewWriterChannel wraps w. done may be nil when the receiver cannot go away.
func NewWriterChannel(w io.Writer, done <-chan struct{}) *WriterChannel {
	return &WriterChannel{writer: w, done: done}
}

func (c *WriterChannel) Push(_ context.Context, delta orchestrator.TextDelta) error {
	if delta.Content == "" {
		return nil
	}
	_, err := io.WriteString(c.writer, delta.Content)
	return err
}

func (c *WriterChannel) End(_ context.Context, end EndOfStream) error {
	if _, err := io.WriteString(c.writer, "\n"); err != nil {
		return err
	}
	if end.Reply == nil {
		return nil
	}

	switch {
	case end.Reply.Degraded:
		_, err := fmt.Fprintf(c.writer, "[degraded: %v]\n", end.Reply.Cause)
		return err
	case end.Reply.Incomplete:
		_, err := fmt.Fprintf(c.writer, "[incomplete reply from %s: %v]\n", end.Reply.ModelUsed, end.Reply.Cause)
		return err
	}
	return nil
}

func (c *WriterChannel) Done() <-chan struct{} {
	return c.done
}
