package memory

import (
	"context"
	"errors"

	"github.com/leofalp/chatrelay/providers/ai"
)

// ErrChatNotFound is returned when a chat id has no stored history.
var ErrChatNotFound = errors.New("memory: chat not found")

// Store keeps conversation history keyed by chat id. Implementations must be
// safe for concurrent use and must return copies, never internal slices.
type Store interface {
	// Conversation returns the ordered turns of a chat. An unknown chat yields
	// an empty, non-nil slice.
	Conversation(ctx context.Context, chatID string) ([]ai.Message, error)

	// Append adds turns to the end of a chat, creating it when needed.
	Append(ctx context.Context, chatID string, messages ...ai.Message) error

	// Clear removes a chat. Clearing an unknown chat returns ErrChatNotFound.
	Clear(ctx context.Context, chatID string) error
}
