// Package memory defines the Store interface for per-chat conversation
// history. The orchestrator never persists anything itself: a Store is the
// persistence collaborator the HTTP surface reads a Conversation from before
// a turn and appends the finished turn to afterwards.
//
// The bundled reference implementation lives in the sibling package
// [github.com/leofalp/chatrelay/providers/memory/inmemory].
package memory
