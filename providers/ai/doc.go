// Package ai defines the shared, provider-agnostic types and interfaces used
// by every upstream chat provider (OpenAI, Anthropic, Gemini, Mistral). Each
// provider's conversion layer maps these types to its own wire format, keeping
// the orchestration layer decoupled from provider-specific details.
//
// A conversation turn is a [Message]; a fully assembled prompt is a
// [ChatRequest]. Providers implement [Provider] for one-shot completions and
// [StreamProvider] for SSE streaming. Streaming output is delivered through a
// [ChatStream], which also classifies failures as [ErrProviderUnavailable]
// (nothing was produced yet) or [ErrProviderInterrupted] (content was already
// produced).
package ai
