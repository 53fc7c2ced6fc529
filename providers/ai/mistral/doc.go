// Package mistral implements ai.StreamProvider for the Mistral chat
// completions API. The wire format is close to OpenAI's, but usage is always
// reported on the last chunk and finish_reason may be "model_length" or
// "error".
package mistral
