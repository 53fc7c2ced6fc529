package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/chatrelay/providers/ai"
)

// wordCounter is a deterministic token backend: one token per word.
func wordCounter() *TokenCounter {
	return &TokenCounter{encode: func(text string) int { return len(strings.Fields(text)) }}
}

func backends() map[string]struct {
	counter Counter
	turn    func(i int) string // content measuring exactly 10 units
} {
	return map[string]struct {
		counter Counter
		turn    func(i int) string
	}{
		"chars": {
			counter: CharCounter{},
			turn:    func(i int) string { return fmt.Sprintf("turn-%05d", i) },
		},
		"tokens": {
			counter: wordCounter(),
			turn:    func(i int) string { return fmt.Sprintf("t%d a b c d e f g h i", i) },
		},
	}
}

func TestAssemble_AppendsNewUserTurnAndDefaults(t *testing.T) {
	assembler := NewAssembler(nil)
	conversation := []ai.Message{
		{Role: ai.RoleUser, Content: "Hi"},
		{Role: ai.RoleAssistant, Content: "Hello!"},
	}

	request, report, err := assembler.Assemble(conversation, "How are you?", "gpt-4o", 0)
	require.NoError(t, err)

	require.Len(t, request.Messages, 4)
	assert.Equal(t, ai.Message{Role: ai.RoleSystem, Content: DefaultSystemPrompt}, request.Messages[0])
	assert.Equal(t, conversation, request.Messages[1:3])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "How are you?"}, request.Messages[3])
	assert.Equal(t, "gpt-4o", request.Model)
	assert.Equal(t, &ai.GenerationConfig{MaxTokens: 4000, Temperature: 0.7}, request.GenerationConfig)
	assert.Zero(t, report.DroppedTurns)
	assert.Len(t, conversation, 2, "conversation must not be modified")
}

func TestAssemble_KeepsLeadingSystemTurn(t *testing.T) {
	conversation := []ai.Message{{Role: ai.RoleSystem, Content: "Speak like a pirate."}}

	request, _, err := NewAssembler(nil).Assemble(conversation, "Hello", "m", 0)
	require.NoError(t, err)

	assert.Equal(t, "Speak like a pirate.", request.Messages[0].Content)
	assert.Len(t, request.Messages, 2)
}

func TestAssemble_EmptyPrompt(t *testing.T) {
	_, _, err := NewAssembler(nil).Assemble(nil, "", "m", 0)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

// Dropping k turns' worth of excess removes exactly the k oldest non-system
// turns and always keeps the newest one, for both budget backends.
func TestAssemble_DropsOldestFirst(t *testing.T) {
	for name, backend := range backends() {
		t.Run(name, func(t *testing.T) {
			assembler := NewAssembler(backend.counter, WithSystemPrompt(backend.turn(-1)))

			for n := 1; n <= 8; n++ {
				conversation := make([]ai.Message, n)
				for i := range conversation {
					role := ai.RoleUser
					if i%2 == 1 {
						role = ai.RoleAssistant
					}
					conversation[i] = ai.Message{Role: role, Content: backend.turn(i)}
				}
				newest := backend.turn(n)
				total := n + 1 // history plus the new user turn

				for k := 0; k < total; k++ {
					budget := 10 + 10*(total-k)

					request, report, err := assembler.Assemble(conversation, newest, "m", budget)
					require.NoError(t, err)

					assert.Equal(t, k, report.DroppedTurns, "n=%d k=%d", n, k)
					assert.False(t, report.Truncated)
					assert.LessOrEqual(t, report.Size, budget)
					assert.Equal(t, ai.RoleSystem, request.Messages[0].Role)
					assert.Equal(t, backend.turn(-1), request.Messages[0].Content)
					assert.Equal(t, newest, request.Messages[len(request.Messages)-1].Content)

					kept := request.Messages[1 : len(request.Messages)-1]
					assert.Equal(t, conversation[k:], kept, "n=%d k=%d", n, k)
				}
			}
		})
	}
}

func TestAssemble_NeverEmptyUnderAggressiveBudget(t *testing.T) {
	for name, backend := range backends() {
		t.Run(name, func(t *testing.T) {
			assembler := NewAssembler(backend.counter, WithSystemPrompt("sys"))
			conversation := []ai.Message{
				{Role: ai.RoleUser, Content: backend.turn(1)},
				{Role: ai.RoleAssistant, Content: backend.turn(2)},
			}

			for budget := 1; budget <= 40; budget++ {
				request, _, err := assembler.Assemble(conversation, strings.Repeat(backend.turn(3)+" ", 5), "m", budget)
				require.NoError(t, err)
				require.GreaterOrEqual(t, len(request.Messages), 2, "budget=%d", budget)
				last := request.Messages[len(request.Messages)-1]
				assert.Equal(t, ai.RoleUser, last.Role)
				assert.NotEmpty(t, last.Content)
			}
		})
	}
}

func TestAssemble_TruncatesSingleOversizedTurn(t *testing.T) {
	assembler := NewAssembler(CharCounter{}, WithSystemPrompt("sys"))
	huge := strings.Repeat("x", 500)

	request, report, err := assembler.Assemble([]ai.Message{{Role: ai.RoleUser, Content: "old"}}, huge, "m", 200)
	require.NoError(t, err)

	require.Len(t, request.Messages, 2)
	last := request.Messages[1].Content
	assert.True(t, strings.HasSuffix(last, TruncationMarker))
	assert.True(t, strings.HasPrefix(last, "xxx"))
	assert.Equal(t, 1, report.DroppedTurns)
	assert.True(t, report.Truncated)
	assert.LessOrEqual(t, report.Size, 200)
}

func TestAssemble_OversizedSystemTurnCappedAtHalfBudget(t *testing.T) {
	assembler := NewAssembler(CharCounter{}, WithSystemPrompt(strings.Repeat("s", 1000)))

	request, report, err := assembler.Assemble(nil, "hello", "m", 300)
	require.NoError(t, err)

	assert.LessOrEqual(t, CharCounter{}.Count(request.Messages[0].Content), 150)
	assert.Equal(t, "hello", request.Messages[1].Content)
	assert.True(t, report.Truncated)
}

func TestAssemble_TurnOverhead(t *testing.T) {
	assembler := NewAssembler(CharCounter{}, WithSystemPrompt("0123456789"), WithTurnOverhead(5))
	conversation := []ai.Message{{Role: ai.RoleUser, Content: "0123456789"}}

	// Three turns of 15 units each; a budget of 40 must drop one.
	_, report, err := assembler.Assemble(conversation, "0123456789", "m", 40)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DroppedTurns)
	assert.Equal(t, 30, report.Size)
}

func TestAssemble_HTMLNormalization(t *testing.T) {
	conversation := []ai.Message{
		{Role: ai.RoleUser, Content: "Show me bold"},
		{Role: ai.RoleAssistant, Content: "<p>This is <strong>bold</strong> text</p>"},
	}

	plain, _, err := NewAssembler(nil).Assemble(conversation, "thanks", "m", 0)
	require.NoError(t, err)
	assert.Equal(t, conversation[1].Content, plain.Messages[2].Content)

	normalized, _, err := NewAssembler(nil, WithHTMLNormalization(true)).Assemble(conversation, "a < b and c > d", "m", 0)
	require.NoError(t, err)
	assert.Equal(t, "This is **bold** text", normalized.Messages[2].Content)
	assert.Equal(t, "Show me bold", normalized.Messages[1].Content)
	assert.Equal(t, "a < b and c > d", normalized.Messages[3].Content, "text without tags is untouched")
}

func TestBudgetForWindow(t *testing.T) {
	assert.Equal(t, 124_000, BudgetForWindow(128_000, UnitTokens))
	assert.Equal(t, 496_000, BudgetForWindow(128_000, UnitChars))
	assert.Equal(t, 1_000, BudgetForWindow(2_000, UnitTokens))
	assert.Zero(t, BudgetForWindow(0, UnitTokens))
}
