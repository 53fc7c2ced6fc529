// Package server exposes a chat turn over HTTP: the model list, an SSE chat
// endpoint, Prometheus metrics and a health probe. On /v1/chat the client
// supplies the history in the request body. When a memory.Store is attached
// with WithHistory, /v1/chats/{chatID} reads history from the store and
// appends each finished turn to it.
package server
