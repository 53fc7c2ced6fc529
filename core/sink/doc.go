// Package sink relays the delta sequence of one chat turn to a push channel
// (an SSE response, a terminal) and closes it with a single end-of-stream
// marker. It does not persist anything: Deliver returns the assembled reply
// and the caller stores it.
//
// A disconnect reported by the channel cancels the upstream provider call;
// the turn then ends with [orchestrator.ErrClientCancelled] and no end marker.
package sink
