package inmemory

import (
	"context"
	"sync"

	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/memory"
	"github.com/leofalp/chatrelay/providers/observability"
)

// Store is a simple in-memory chat history store. It uses an RWMutex and is
// efficient for read-heavy workloads.
type Store struct {
	mu    sync.RWMutex
	chats map[string][]ai.Message
}

// New returns an empty Store ready for immediate use.
func New() *Store {
	return &Store{chats: make(map[string][]ai.Message)}
}

var _ memory.Store = (*Store)(nil)

// Conversation returns a copy of the chat history.
func (s *Store) Conversation(_ context.Context, chatID string) ([]ai.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.chats[chatID]
	out := make([]ai.Message, len(messages))
	copy(out, messages)
	return out, nil
}

// Append stores copies of messages at the end of the chat.
// When an observability span is present in ctx, one event per message is
// recorded and the running total is set as a span attribute.
func (s *Store) Append(ctx context.Context, chatID string, messages ...ai.Message) error {
	if len(messages) == 0 {
		return nil
	}

	span := observability.SpanFromContext(ctx)
	if span != nil {
		for _, message := range messages {
			span.AddEvent(observability.EventMemoryAppend,
				observability.String(observability.AttrMemoryChatID, chatID),
				observability.String(observability.AttrMemoryMessageRole, string(message.Role)),
				observability.Int(observability.AttrMemoryMessageLength, len(message.Content)),
			)
		}
	}

	s.mu.Lock()
	s.chats[chatID] = append(s.chats[chatID], messages...)
	total := len(s.chats[chatID])
	s.mu.Unlock()

	if span != nil {
		span.SetAttributes(observability.Int(observability.AttrMemoryTotalMessages, total))
	}
	return nil
}

// Clear removes the chat.
func (s *Store) Clear(ctx context.Context, chatID string) error {
	s.mu.Lock()
	_, ok := s.chats[chatID]
	delete(s.chats, chatID)
	s.mu.Unlock()

	if !ok {
		return memory.ErrChatNotFound
	}
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventMemoryClear, observability.String(observability.AttrMemoryChatID, chatID))
	}
	return nil
}
