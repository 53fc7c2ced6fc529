package anthropic

import (
	"encoding/json"
	"errors"
)

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// streamEvent is the envelope shared by every SSE payload; Type selects which
// of the optional fields is populated.
type streamEvent struct {
	Type         string            `json:"type"`
	Message      *messagesResponse `json:"message,omitempty"`       // message_start
	Index        int               `json:"index,omitempty"`         // content_block_*
	ContentBlock *contentBlock     `json:"content_block,omitempty"` // content_block_start
	Delta        *streamDelta      `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *usage            `json:"usage,omitempty"`         // message_delta
	Error        *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"` // error
}

type streamDelta struct {
	Type       string `json:"type,omitempty"` // text_delta on content blocks
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"` // message_delta
}

func unmarshalStreamEvent(data string) (*streamEvent, error) {
	var event streamEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		return nil, errors.New("missing type field in stream event")
	}
	return &event, nil
}
