package orchestrator

import (
	"errors"

	"github.com/leofalp/chatrelay/core/catalog"
	"github.com/leofalp/chatrelay/core/cost"
	"github.com/leofalp/chatrelay/providers/ai"
)

// CannedReply is the reply delivered when neither the requested model nor the
// fallback model could produce any output.
const CannedReply = "I apologize, but the AI service is currently unavailable. Please check your API keys and try again later."

var (
	// ErrUnknownModel is returned by Respond for a model id the catalog does
	// not offer. No provider is contacted.
	ErrUnknownModel = catalog.ErrUnknownModel

	// ErrClientCancelled reports that the receiving side went away mid-turn.
	// The upstream call is cancelled and no reply is assembled.
	ErrClientCancelled = errors.New("chatrelay: client cancelled")

	// ErrReplyPending is returned by Result while the delta sequence is still
	// being consumed.
	ErrReplyPending = errors.New("chatrelay: reply stream not finished")
)

// TextDelta is one fragment of the reply, relayed in provider order. The last
// delta of a turn has Final set; its Content may be empty.
type TextDelta struct {
	Content string `json:"content"`
	Final   bool   `json:"final,omitempty"`
}

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"  // Requested model answered
	OutcomeFallback   Outcome = "fallback"   // Fallback model answered
	OutcomeIncomplete Outcome = "incomplete" // Provider failed after relaying text
	OutcomeDegraded   Outcome = "degraded"   // Canned reply
	OutcomeCancelled  Outcome = "cancelled"  // Receiving side disconnected
)

// AssembledReply is the final result of a turn, ready to be stored as an
// assistant turn by the caller.
type AssembledReply struct {
	CallID         string `json:"call_id"`
	FullText       string `json:"full_text"`
	ModelUsed      string `json:"model_used"`      // Empty for the canned reply
	RequestedModel string `json:"requested_model"` // Model id passed to Respond

	Incomplete bool `json:"incomplete,omitempty"` // Provider failed after relaying text
	Degraded   bool `json:"degraded,omitempty"`   // FullText is the canned reply

	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        *ai.Usage       `json:"usage,omitempty"`
	Cost         *cost.Breakdown `json:"cost,omitempty"`

	// Cause is the provider failure behind an incomplete or degraded reply.
	Cause error `json:"-"`
}

// Outcome reports how the turn ended.
func (reply *AssembledReply) Outcome() Outcome {
	switch {
	case reply.Degraded:
		return OutcomeDegraded
	case reply.Incomplete:
		return OutcomeIncomplete
	case reply.ModelUsed != reply.RequestedModel:
		return OutcomeFallback
	}
	return OutcomeCompleted
}
