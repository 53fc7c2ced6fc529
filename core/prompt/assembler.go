package prompt

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/chatrelay/providers/ai"
)

const (
	// DefaultSystemPrompt is used when the conversation has no leading system turn.
	DefaultSystemPrompt = `You are a helpful assistant that answers queries professionally. When providing code examples:
1. Always start with triple backticks and the language name on its own line
2. Put the code on the next line after the language specification
3. Put the closing triple backticks on a new line
4. Format your response like this:

Here's how you can do it:

` + "```python\ndef example():\n    pass\n```" + `

Never put code on the same line as the backticks or language specification.`

	// TruncationMarker is appended to a turn cut to fit the budget.
	TruncationMarker = "\n\n[message truncated to fit the context window]"

	// DefaultMaxTokens and DefaultTemperature are the fixed generation
	// parameters of every request.
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.7
)

// ErrEmptyPrompt is returned when there is no user or assistant turn to send.
var ErrEmptyPrompt = errors.New("prompt: nothing to send")

// Report describes what the budget did to the conversation.
type Report struct {
	Size         int  // measured size of the final prompt
	Budget       int  // budget applied; zero means unlimited
	Unit         Unit // unit of Size and Budget
	DroppedTurns int  // oldest turns removed
	Truncated    bool // a single turn was cut with TruncationMarker
}

// Assembler builds provider requests. It is immutable and safe for
// concurrent use.
type Assembler struct {
	counter       Counter
	systemPrompt  string
	normalizeHTML bool
	turnOverhead  int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(systemPrompt string) Option {
	return func(a *Assembler) { a.systemPrompt = systemPrompt }
}

// WithHTMLNormalization converts turns stored as rendered HTML to Markdown
// before they are measured and sent.
func WithHTMLNormalization(enabled bool) Option {
	return func(a *Assembler) { a.normalizeHTML = enabled }
}

// WithTurnOverhead charges a fixed cost per turn for role and framing.
func WithTurnOverhead(overhead int) Option {
	return func(a *Assembler) { a.turnOverhead = max(overhead, 0) }
}

// NewAssembler creates an Assembler. A nil counter measures characters.
func NewAssembler(counter Counter, opts ...Option) *Assembler {
	if counter == nil {
		counter = CharCounter{}
	}
	a := &Assembler{counter: counter, systemPrompt: DefaultSystemPrompt}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Unit reports the unit budgets are measured in.
func (a *Assembler) Unit() Unit {
	return a.counter.Unit()
}

// Assemble appends newUserText to conversation and fits the result into
// budget (zero or negative means unlimited). The conversation is not modified.
func (a *Assembler) Assemble(conversation []ai.Message, newUserText string, nativeModel string, budget int) (ai.ChatRequest, Report, error) {
	system, history := a.split(conversation)
	if newUserText != "" {
		history = append(history, ai.Message{Role: ai.RoleUser, Content: newUserText})
	}
	if len(history) == 0 {
		return ai.ChatRequest{}, Report{}, ErrEmptyPrompt
	}

	report := Report{Budget: max(budget, 0), Unit: a.counter.Unit()}
	if budget > 0 {
		system, history = a.fit(system, history, budget, &report)
	}

	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, system)
	messages = append(messages, history...)
	report.Size = a.size(messages...)

	request := ai.ChatRequest{
		Model:    nativeModel,
		Messages: messages,
		GenerationConfig: &ai.GenerationConfig{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
	}
	return request, report, nil
}

// split returns the system turn (the leading one, or the default) and a copy
// of the remaining turns, normalized.
func (a *Assembler) split(conversation []ai.Message) (ai.Message, []ai.Message) {
	system := ai.Message{Role: ai.RoleSystem, Content: a.systemPrompt}
	rest := conversation
	if len(conversation) > 0 && conversation[0].Role == ai.RoleSystem {
		system.Content = a.normalize(conversation[0].Content)
		rest = conversation[1:]
	}

	history := make([]ai.Message, 0, len(rest)+1)
	for _, turn := range rest {
		history = append(history, ai.Message{Role: turn.Role, Content: a.normalize(turn.Content)})
	}
	return system, history
}

func (a *Assembler) fit(system ai.Message, history []ai.Message, budget int, report *Report) (ai.Message, []ai.Message) {
	// An oversized system turn may use at most half of the budget.
	if a.size(system) > budget {
		system.Content = a.truncate(system.Content, budget/2-a.turnOverhead)
		report.Truncated = true
	}

	total := a.size(system) + a.size(history...)
	for total > budget && len(history) > 1 {
		total -= a.size(history[0])
		history = history[1:]
		report.DroppedTurns++
	}

	if total > budget {
		// Only the newest turn is left and it alone does not fit.
		newest := history[0]
		newest.Content = a.truncate(newest.Content, budget-a.size(system)-a.turnOverhead)
		history = []ai.Message{newest}
		report.Truncated = true
	}
	return system, slices.Clip(history)
}

// truncate returns the longest rune prefix of text that, with the marker
// appended, measures at most limit. The marker is kept even if nothing else
// fits, so the turn is never empty.
func (a *Assembler) truncate(text string, limit int) string {
	runes := []rune(text)
	if a.counter.Count(text) <= limit {
		return text
	}

	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if a.counter.Count(string(runes[:mid])+TruncationMarker) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.TrimRightFunc(string(runes[:lo]), isSpace) + TruncationMarker
}

func (a *Assembler) size(turns ...ai.Message) int {
	total := 0
	for _, turn := range turns {
		total += a.counter.Count(turn.Content) + a.turnOverhead
	}
	return total
}

var htmlTag = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)

func (a *Assembler) normalize(content string) string {
	if !a.normalizeHTML || !htmlTag.MatchString(content) {
		return content
	}
	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil || strings.TrimSpace(markdown) == "" {
		return content
	}
	return strings.TrimSpace(markdown)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// BudgetForWindow derives a prompt budget from a model context window in
// tokens, reserving room for the reply. Character budgets assume four
// characters per token. A non-positive window yields zero (unlimited).
func BudgetForWindow(contextWindow int, unit Unit) int {
	if contextWindow <= 0 {
		return 0
	}
	tokens := contextWindow - DefaultMaxTokens
	if tokens <= 0 {
		tokens = contextWindow / 2
	}
	if unit == UnitChars {
		return tokens * 4
	}
	return tokens
}
