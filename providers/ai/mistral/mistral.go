package mistral

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

const (
	// DefaultBaseURL is the public Mistral endpoint.
	DefaultBaseURL          = "https://api.mistral.ai/v1"
	chatCompletionsEndpoint = "/chat/completions"

	finishReasonError = "error"
)

// MistralProvider speaks the Mistral chat completions protocol.
type MistralProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	firstByteTimeout time.Duration
}

var _ ai.StreamProvider = (*MistralProvider)(nil)

// New creates a provider pointing at DefaultBaseURL.
func New() *MistralProvider {
	return &MistralProvider{
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
	}
}

func (p *MistralProvider) Kind() ai.ProviderKind {
	return ai.ProviderMistral
}

func (p *MistralProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

func (p *MistralProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	return p
}

func (p *MistralProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	if httpClient != nil {
		p.client = httpClient
	}
	return p
}

func (p *MistralProvider) WithFirstByteTimeout(timeout time.Duration) ai.Provider {
	p.firstByteTimeout = timeout
	return p
}

// SendMessage performs a non-streaming completion.
func (p *MistralProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.annotate(ctx, request, false)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	_, resp, err := utils.DoPostSync[chatResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, requestFromGeneric(request, false))
	if err != nil {
		return nil, ai.Unavailable(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ai.Unavailable(errors.New("mistral: response has no choices"))
	}

	choice := resp.Choices[0]
	if choice.FinishReason == finishReasonError {
		return nil, ai.Unavailable(&ai.ProviderError{Provider: ai.ProviderMistral, Message: "generation failed"})
	}
	return &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage:        usageToGeneric(resp.Usage),
	}, nil
}

func (p *MistralProvider) annotate(ctx context.Context, request ai.ChatRequest, streaming bool) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, string(ai.ProviderMistral)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Trace(ctx, "mistral: preparing request",
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
}

func requestFromGeneric(request ai.ChatRequest, stream bool) chatRequest {
	out := chatRequest{
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
	return out
}

func usageToGeneric(usage *chatUsage) *ai.Usage {
	if usage == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
}

func mapFinishReason(reason string) string {
	if reason == "model_length" {
		return "length"
	}
	return reason
}
