// Package anthropic implements ai.StreamProvider for the Anthropic Messages
// API (POST /v1/messages).
//
// The system turn travels out-of-band in the "system" field, authentication
// uses the x-api-key header, and streaming follows the message_start ...
// message_stop event lifecycle. An in-stream "error" event ends the stream
// with an *ai.ProviderError.
package anthropic
