package ai

import "fmt"

/*
	##### PROVIDER INPUT #####
*/

// ChatRequest is the normalized prompt handed to a provider. Messages are in
// chronological order. When the conversation carries a system turn it is
// always Messages[0]; providers that want the system prompt out-of-band use
// [ChatRequest.SplitSystem].
type ChatRequest struct {
	Model            string            `json:"model"`                       // Provider-native model name
	Messages         []Message         `json:"messages"`                    // Ordered turns, oldest first
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"` // Fixed generation parameters
}

// SplitSystem returns the leading system prompt (if any) and the remaining
// turns. Only a system turn at index 0 is treated as the system prompt; any
// later system turns are left in place for the provider to handle.
func (request ChatRequest) SplitSystem() (string, []Message) {
	if len(request.Messages) > 0 && request.Messages[0].Role == RoleSystem {
		return request.Messages[0].Content, request.Messages[1:]
	}
	return "", request.Messages
}

// Message represents a single conversation turn. Messages are treated as
// immutable values once created.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// GenerationConfig carries sampling parameters. The orchestration layer fills
// these with fixed defaults; callers do not tune them per request.
type GenerationConfig struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`  // Upper bound on generated tokens
	Temperature float32 `json:"temperature,omitempty"` // Sampling temperature [0..2]
}

/*
	##### PROVIDER OUTPUT #####
*/

// Usage reports token accounting returned by the provider, when available.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
	CachedTokens     int `json:"cached_tokens,omitempty"`
}

// ChatResponse is the result of a one-shot (non-streaming) completion.
type ChatResponse struct {
	Id           string `json:"id,omitempty"`
	Model        string `json:"model,omitempty"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

/*
	##### ENUMS #####
*/

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model reply
)

// Valid reports whether the role is one of the supported conversation roles.
func (role MessageRole) Valid() bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ProviderKind identifies the wire protocol family of an upstream provider.
// The set is closed: supporting a new family means adding a new provider
// package, never changing an existing one.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"    // OpenAI-compatible chat completions
	ProviderAnthropic ProviderKind = "anthropic" // Anthropic Messages API
	ProviderGoogle    ProviderKind = "google"    // Google Gemini generateContent
	ProviderMistral   ProviderKind = "mistral"   // Mistral chat completions
)

// ProviderKinds lists every supported provider kind in a stable order.
func ProviderKinds() []ProviderKind {
	return []ProviderKind{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderMistral}
}

// ParseProviderKind converts a string into a ProviderKind, rejecting unknown values.
func ParseProviderKind(value string) (ProviderKind, error) {
	for _, kind := range ProviderKinds() {
		if string(kind) == value {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown provider kind %q", value)
}
