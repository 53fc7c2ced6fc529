package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

const (
	// DefaultBaseURL is the public Anthropic endpoint.
	DefaultBaseURL   = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"
	apiVersion       = "2023-06-01"

	// DefaultSystemPrompt is sent when the request carries no system turn.
	DefaultSystemPrompt = "You are a helpful assistant that answers queries professionally."

	// defaultMaxTokens is used when the request leaves max_tokens unset, which
	// the Messages API rejects.
	defaultMaxTokens = 4000
)

// AnthropicProvider speaks the Anthropic Messages protocol.
type AnthropicProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	firstByteTimeout time.Duration
}

var _ ai.StreamProvider = (*AnthropicProvider)(nil)

// New creates a provider pointing at DefaultBaseURL.
func New() *AnthropicProvider {
	return &AnthropicProvider{
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
	}
}

func (p *AnthropicProvider) Kind() ai.ProviderKind {
	return ai.ProviderAnthropic
}

func (p *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	return p
}

func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	if httpClient != nil {
		p.client = httpClient
	}
	return p
}

func (p *AnthropicProvider) WithFirstByteTimeout(timeout time.Duration) ai.Provider {
	p.firstByteTimeout = timeout
	return p
}

// SendMessage performs a non-streaming Messages call.
func (p *AnthropicProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.annotate(ctx, request, false)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	// The API key travels in x-api-key, so no bearer token is passed.
	_, resp, err := utils.DoPostSync[messagesResponse](ctx, p.client, p.baseURL+messagesEndpoint, "",
		requestToAnthropic(request, false), p.buildHeaders()...)
	if err != nil {
		return nil, ai.Unavailable(err)
	}

	return responseToGeneric(resp), nil
}

func (p *AnthropicProvider) buildHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: p.apiKey},
		{Key: "anthropic-version", Value: apiVersion},
	}
}

func (p *AnthropicProvider) annotate(ctx context.Context, request ai.ChatRequest, streaming bool) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, string(ai.ProviderAnthropic)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Trace(ctx, "anthropic: preparing request",
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
}

func requestToAnthropic(request ai.ChatRequest, stream bool) messagesRequest {
	system, turns := request.SplitSystem()
	if system == "" {
		system = DefaultSystemPrompt
	}

	out := messagesRequest{
		Model:     request.Model,
		System:    system,
		Messages:  make([]message, 0, len(turns)),
		MaxTokens: defaultMaxTokens,
		Stream:    stream,
	}
	for _, turn := range turns {
		role := turn.Role
		// The Messages API only accepts user and assistant turns.
		if role == ai.RoleSystem {
			role = ai.RoleUser
		}
		out.Messages = append(out.Messages, message{Role: string(role), Content: turn.Content})
	}
	if cfg := request.GenerationConfig; cfg != nil {
		if cfg.MaxTokens > 0 {
			out.MaxTokens = cfg.MaxTokens
		}
		if cfg.Temperature != 0 {
			temperature := cfg.Temperature
			out.Temperature = &temperature
		}
	}
	return out
}

func responseToGeneric(resp *messagesResponse) *ai.ChatResponse {
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Content:      text.String(),
		FinishReason: mapStopReason(resp.StopReason),
		Usage:        usageToGeneric(resp.Usage),
	}
}

func usageToGeneric(u usage) *ai.Usage {
	prompt := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
	return &ai.Usage{
		PromptTokens:     prompt,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      prompt + u.OutputTokens,
		CachedTokens:     u.CacheReadInputTokens,
	}
}

// mapStopReason normalizes Anthropic stop reasons to the OpenAI vocabulary.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "refusal":
		return "content_filter"
	default:
		return reason
	}
}
