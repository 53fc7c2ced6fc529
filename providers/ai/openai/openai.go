package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

const (
	// DefaultBaseURL is the public OpenAI endpoint.
	DefaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
)

// OpenAIProvider speaks the OpenAI chat completions protocol.
type OpenAIProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	firstByteTimeout time.Duration
}

var _ ai.StreamProvider = (*OpenAIProvider)(nil)

// New creates a provider pointing at DefaultBaseURL. Credentials and the HTTP
// client are supplied explicitly with the With* methods.
func New() *OpenAIProvider {
	return &OpenAIProvider{
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
	}
}

func (p *OpenAIProvider) Kind() ai.ProviderKind {
	return ai.ProviderOpenAI
}

// WithAPIKey sets the bearer token.
func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API root; empty keeps the current value.
func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient sets the HTTP client; nil keeps the current one.
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	if httpClient != nil {
		p.client = httpClient
	}
	return p
}

// WithFirstByteTimeout bounds the wait for the first response byte.
func (p *OpenAIProvider) WithFirstByteTimeout(timeout time.Duration) ai.Provider {
	p.firstByteTimeout = timeout
	return p
}

// SendMessage performs a non-streaming completion.
func (p *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.annotate(ctx, request, false)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	_, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, requestFromGeneric(request, false))
	if err != nil {
		return nil, ai.Unavailable(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ai.Unavailable(errors.New("openai: response has no choices"))
	}

	return responseToGeneric(resp), nil
}

func (p *OpenAIProvider) annotate(ctx context.Context, request ai.ChatRequest, streaming bool) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, string(ai.ProviderOpenAI)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Trace(ctx, "openai: preparing request",
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
}

func requestFromGeneric(request ai.ChatRequest, stream bool) chatCompletionRequest {
	out := chatCompletionRequest{
		Model:    request.Model,
		Messages: make([]chatMessage, 0, len(request.Messages)),
		Stream:   stream,
	}
	for _, message := range request.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: string(message.Role), Content: message.Content})
	}
	if cfg := request.GenerationConfig; cfg != nil {
		out.MaxTokens = cfg.MaxTokens
		if cfg.Temperature != 0 {
			temperature := cfg.Temperature
			out.Temperature = &temperature
		}
	}
	if stream {
		out.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return out
}

func responseToGeneric(resp *chatCompletionResponse) *ai.ChatResponse {
	choice := resp.Choices[0]
	return &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        usageToGeneric(resp.Usage),
	}
}

func usageToGeneric(usage *chatUsage) *ai.Usage {
	if usage == nil {
		return nil
	}
	out := &ai.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
	if usage.PromptTokensDetails != nil {
		out.CachedTokens = usage.PromptTokensDetails.CachedTokens
	}
	return out
}

func chunkError(chunk *chatCompletionChunk) error {
	if chunk.Error == nil {
		return nil
	}
	return &ai.ProviderError{Provider: ai.ProviderOpenAI, Type: chunk.Error.Type, Message: chunk.Error.Message}
}
