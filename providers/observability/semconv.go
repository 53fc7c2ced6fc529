package observability

// Semantic conventions for observability attributes.

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the provider kind (e.g., "openai", "anthropic")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the provider-native model name
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API base URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMStreaming reports whether the call used native streaming
	AttrLLMStreaming = "llm.streaming"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101
)

// --- Chat Turn Attributes ---

const (
	// AttrChatCallID correlates every log line of one orchestration call
	AttrChatCallID = "chat.call_id"

	// AttrChatModelRequested is the public model id the caller asked for
	AttrChatModelRequested = "chat.model.requested"

	// AttrChatModelUsed is the public model id that produced the reply
	AttrChatModelUsed = "chat.model.used"

	// AttrChatOutcome is the terminal outcome of a turn
	AttrChatOutcome = "chat.outcome"

	// AttrChatDeltas is the number of text deltas relayed
	AttrChatDeltas = "chat.deltas"

	// AttrChatReplyLength is the length of the assembled reply in bytes
	AttrChatReplyLength = "chat.reply.length"

	// AttrRequestMessagesCount is the number of turns in the prompt
	AttrRequestMessagesCount = "request.messages_count"

	// AttrChatCostUSD is the estimated cost of the turn in US dollars
	AttrChatCostUSD = "chat.cost_usd"

	// AttrPromptDroppedTurns is the number of turns dropped by the context budget
	AttrPromptDroppedTurns = "prompt.dropped_turns"
)

// --- Memory Attributes ---

const (
	AttrMemoryChatID        = "memory.chat_id"
	AttrMemoryMessageRole   = "memory.message.role"
	AttrMemoryMessageLength = "memory.message.length"
	AttrMemoryTotalMessages = "memory.total_messages"
)

// --- HTTP Attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- General Attributes ---

const (
	AttrError             = "error"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	// SpanChatTurn covers one orchestration call
	SpanChatTurn = "chat.turn"

	// SpanLLMRequest covers one provider attempt
	SpanLLMRequest = "llm.request"
)

// --- Event Names ---

const (
	EventLLMRequestStart = "llm.request.start"
	EventLLMRequestEnd   = "llm.request.end"
	EventFirstDelta      = "chat.first_delta"
	EventFallback        = "chat.fallback"
	EventMemoryAppend    = "memory.append"
	EventMemoryClear     = "memory.clear"
)
