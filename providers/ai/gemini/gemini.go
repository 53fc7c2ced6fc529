package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/observability"
)

const (
	// DefaultBaseURL is the public Generative Language endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	roleModel = "model"
	roleUser  = "user"
)

// GeminiProvider speaks the Gemini generateContent protocol.
type GeminiProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	firstByteTimeout time.Duration
}

var _ ai.StreamProvider = (*GeminiProvider)(nil)

// New creates a provider pointing at DefaultBaseURL.
func New() *GeminiProvider {
	return &GeminiProvider{
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
	}
}

func (p *GeminiProvider) Kind() ai.ProviderKind {
	return ai.ProviderGoogle
}

func (p *GeminiProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

func (p *GeminiProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	return p
}

func (p *GeminiProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	if httpClient != nil {
		p.client = httpClient
	}
	return p
}

func (p *GeminiProvider) WithFirstByteTimeout(timeout time.Duration) ai.Provider {
	p.firstByteTimeout = timeout
	return p
}

// SendMessage performs a non-streaming generateContent call.
func (p *GeminiProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.annotate(ctx, request, false)

	if p.apiKey == "" {
		return nil, ai.Unavailable(ai.ErrMissingAPIKey)
	}

	_, resp, err := utils.DoPostSync[generateContentResponse](ctx, p.client, p.endpoint(request.Model, "generateContent"), "",
		requestToGemini(request), p.authHeader())
	if err != nil {
		return nil, ai.Unavailable(err)
	}
	if err := blockedError(resp); err != nil {
		return nil, ai.Unavailable(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, ai.Unavailable(errors.New("gemini: response has no candidates"))
	}

	out := &ai.ChatResponse{
		Id:           resp.ResponseID,
		Model:        resp.ModelVersion,
		Content:      candidateText(resp.Candidates[0]),
		FinishReason: mapFinishReason(resp.Candidates[0].FinishReason),
		Usage:        usageToGeneric(resp.UsageMetadata),
	}
	return out, nil
}

// endpoint builds models/{model}:{method}; the model name is path-escaped.
func (p *GeminiProvider) endpoint(model, method string) string {
	return p.baseURL + "/models/" + url.PathEscape(model) + ":" + method
}

func (p *GeminiProvider) authHeader() utils.HeaderOption {
	return utils.HeaderOption{Key: "x-goog-api-key", Value: p.apiKey}
}

func (p *GeminiProvider) annotate(ctx context.Context, request ai.ChatRequest, streaming bool) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, string(ai.ProviderGoogle)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Trace(ctx, "gemini: preparing request",
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
}

func requestToGemini(request ai.ChatRequest) generateContentRequest {
	system, turns := request.SplitSystem()

	out := generateContentRequest{Contents: make([]content, 0, len(turns))}
	if system != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	for _, turn := range turns {
		role := roleUser
		if turn.Role == ai.RoleAssistant {
			role = roleModel
		}
		out.Contents = append(out.Contents, content{Role: role, Parts: []part{{Text: turn.Content}}})
	}
	if cfg := request.GenerationConfig; cfg != nil {
		generation := &generationConfig{MaxOutputTokens: cfg.MaxTokens}
		if cfg.Temperature != 0 {
			temperature := cfg.Temperature
			generation.Temperature = &temperature
		}
		out.GenerationConfig = generation
	}
	return out
}

// candidateText concatenates the visible text parts; thought parts are skipped.
func candidateText(c candidate) string {
	if c.Content == nil {
		return ""
	}
	var text strings.Builder
	for _, p := range c.Content.Parts {
		if !p.Thought {
			text.WriteString(p.Text)
		}
	}
	return text.String()
}

func blockedError(resp *generateContentResponse) error {
	if resp.PromptFeedback == nil || resp.PromptFeedback.BlockReason == "" {
		return nil
	}
	return &ai.ProviderError{
		Provider: ai.ProviderGoogle,
		Type:     resp.PromptFeedback.BlockReason,
		Message:  "prompt was blocked",
	}
}

func usageToGeneric(usage *usageMetadata) *ai.Usage {
	if usage == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     usage.PromptTokenCount,
		CompletionTokens: usage.CandidatesTokenCount + usage.ThoughtsTokenCount,
		TotalTokens:      usage.TotalTokenCount,
		CachedTokens:     usage.CachedContentTokenCount,
	}
}

// mapFinishReason normalizes Gemini finish reasons to the OpenAI vocabulary.
func mapFinishReason(reason string) string {
	switch reason {
	case "":
		return ""
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return "content_filter"
	default:
		return "stop"
	}
}
