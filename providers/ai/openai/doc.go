// Package openai implements ai.StreamProvider for OpenAI-compatible chat
// completion APIs (/v1/chat/completions).
//
// The system turn is sent inline as the first message. Streaming requests set
// stream_options.include_usage so the final chunk reports token usage.
package openai
