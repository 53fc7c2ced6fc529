package catalog

import (
	"github.com/leofalp/chatrelay/core/cost"
	"github.com/leofalp/chatrelay/providers/ai"
)

var (
	priceGPT4o        = cost.ModelCost{InputPerMillion: 2.50, OutputPerMillion: 10.00, CachedInputPerMillion: 1.25}
	priceGPT4oMini    = cost.ModelCost{InputPerMillion: 0.15, OutputPerMillion: 0.60, CachedInputPerMillion: 0.075}
	priceClaudeSonnet = cost.ModelCost{InputPerMillion: 3.00, OutputPerMillion: 15.00, CachedInputPerMillion: 0.30}
	priceClaudeHaiku  = cost.ModelCost{InputPerMillion: 0.80, OutputPerMillion: 4.00, CachedInputPerMillion: 0.08}
	priceGeminiPro    = cost.ModelCost{InputPerMillion: 1.25, OutputPerMillion: 5.00}
	priceGeminiFlash  = cost.ModelCost{InputPerMillion: 0.075, OutputPerMillion: 0.30}
	priceMistralLarge = cost.ModelCost{InputPerMillion: 2.00, OutputPerMillion: 6.00}
	priceMistralSmall = cost.ModelCost{InputPerMillion: 0.20, OutputPerMillion: 0.60}
	priceCodestral    = cost.ModelCost{InputPerMillion: 0.30, OutputPerMillion: 0.90}
)

// Several public ids are aliases: newer model names are served by the closest
// generally available native model until the provider exposes them.
var defaultEntries = []Entry{
	// OpenAI
	{ID: "gpt-5", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o", DisplayName: "GPT-5", Streaming: true, ContextWindow: 128_000, Pricing: priceGPT4o},
	{ID: "gpt-4.1", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o", DisplayName: "GPT-4.1", Streaming: true, ContextWindow: 128_000, Pricing: priceGPT4o},
	{ID: "o3", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o", DisplayName: "o3", Streaming: true, ContextWindow: 128_000, Pricing: priceGPT4o},
	{ID: "o3-mini", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o-mini", DisplayName: "o3-mini", Streaming: true, ContextWindow: 128_000, Pricing: priceGPT4oMini},
	{ID: "gpt-4o", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o", DisplayName: "GPT-4o", Streaming: true, ContextWindow: 128_000, Pricing: priceGPT4o},
	{ID: "gpt-4o-mini", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o-mini", DisplayName: "GPT-4o mini", Streaming: true, ContextWindow: 128_000, Pricing: priceGPT4oMini},
	{ID: "gpt-realtime", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o", DisplayName: "GPT Realtime", Streaming: true, ContextWindow: 128_000, Pricing: priceGPT4o},

	// Anthropic
	{ID: "claude-opus-4.1", Provider: ai.ProviderAnthropic, NativeName: "claude-3-5-sonnet-20241022", DisplayName: "Claude Opus 4.1", Streaming: true, ContextWindow: 200_000, Pricing: priceClaudeSonnet},
	{ID: "claude-sonnet-4", Provider: ai.ProviderAnthropic, NativeName: "claude-3-5-sonnet-20241022", DisplayName: "Claude Sonnet 4", Streaming: true, ContextWindow: 200_000, Pricing: priceClaudeSonnet},
	{ID: "claude-3.7-sonnet", Provider: ai.ProviderAnthropic, NativeName: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.7 Sonnet", Streaming: true, ContextWindow: 200_000, Pricing: priceClaudeSonnet},
	{ID: "claude-3-5-sonnet-20241022", Provider: ai.ProviderAnthropic, NativeName: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet", Streaming: true, ContextWindow: 200_000, Pricing: priceClaudeSonnet},
	{ID: "claude-3-5-haiku-20241022", Provider: ai.ProviderAnthropic, NativeName: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku", Streaming: true, ContextWindow: 200_000, Pricing: priceClaudeHaiku},

	// Google
	{ID: "gemini-2.5-pro", Provider: ai.ProviderGoogle, NativeName: "gemini-1.5-pro", DisplayName: "Gemini 2.5 Pro", Streaming: true, ContextWindow: 2_000_000, Pricing: priceGeminiPro},
	{ID: "gemini-2.5-flash", Provider: ai.ProviderGoogle, NativeName: "gemini-1.5-flash", DisplayName: "Gemini 2.5 Flash", Streaming: true, ContextWindow: 1_000_000, Pricing: priceGeminiFlash},
	{ID: "gemini-2.0-flash", Provider: ai.ProviderGoogle, NativeName: "gemini-1.5-flash", DisplayName: "Gemini 2.0 Flash", Streaming: true, ContextWindow: 1_000_000, Pricing: priceGeminiFlash},
	{ID: "gemini-1.5-pro", Provider: ai.ProviderGoogle, NativeName: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Streaming: true, ContextWindow: 2_000_000, Pricing: priceGeminiPro},
	{ID: "gemini-1.5-flash", Provider: ai.ProviderGoogle, NativeName: "gemini-1.5-flash", DisplayName: "Gemini 1.5 Flash", Streaming: true, ContextWindow: 1_000_000, Pricing: priceGeminiFlash},

	// Mistral
	{ID: "mistral-large-24.11", Provider: ai.ProviderMistral, NativeName: "mistral-large-latest", DisplayName: "Mistral Large 24.11", Streaming: true, ContextWindow: 128_000, Pricing: priceMistralLarge},
	{ID: "pixtral-large-2411", Provider: ai.ProviderMistral, NativeName: "mistral-large-latest", DisplayName: "Pixtral Large", Streaming: true, ContextWindow: 128_000, Pricing: priceMistralLarge},
	{ID: "codestral-25.01", Provider: ai.ProviderMistral, NativeName: "codestral-latest", DisplayName: "Codestral 25.01", Streaming: true, ContextWindow: 256_000, Pricing: priceCodestral},
	{ID: "mistral-small-3.1", Provider: ai.ProviderMistral, NativeName: "mistral-small-latest", DisplayName: "Mistral Small 3.1", Streaming: true, ContextWindow: 128_000, Pricing: priceMistralSmall},
}

// DefaultFallbackModel is the secondary model used when a requested provider
// is unavailable before producing output.
const DefaultFallbackModel = "gpt-4o"

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultEntries...)
	if err != nil {
		// The table above is static; a failure here is a programming error.
		panic(err)
	}
	return c
}
