package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/ai/openai"
)

// openAIServer answers every stream request with the given SSE payloads and
// then closes the body.
func openAIServer(t *testing.T, payloads ...string) ai.Provider {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)
		for _, payload := range payloads {
			fmt.Fprintf(writer, "data: %s\n\n", payload)
		}
	}))
	t.Cleanup(server.Close)
	return openai.New().WithAPIKey("test-key").WithBaseURL(server.URL)
}

func TestRespond_EmptyStreamFallsBack(t *testing.T) {
	fallback := &fakeProvider{kind: ai.ProviderAnthropic, deltas: []string{"Fallback"}}
	orch, err := New(testCatalog(t), map[ai.ProviderKind]ai.Provider{
		ai.ProviderOpenAI:    openAIServer(t),
		ai.ProviderAnthropic: fallback,
	}, WithFallbackModel("claude-sonnet"))
	require.NoError(t, err)

	stream, err := orch.Respond(context.Background(), nil, "Hello", "gpt-4o")
	require.NoError(t, err)
	collect(stream)

	reply, err := stream.Result()
	require.NoError(t, err)
	assert.Equal(t, "Fallback", reply.FullText)
	assert.Equal(t, "claude-sonnet", reply.ModelUsed)
	assert.False(t, reply.Incomplete)
	assert.Equal(t, 1, fallback.calls())
}

func TestRespond_StreamCutBeforeTerminatorIsIncomplete(t *testing.T) {
	fallback := &fakeProvider{kind: ai.ProviderAnthropic, deltas: []string{"Fallback"}}
	orch, err := New(testCatalog(t), map[ai.ProviderKind]ai.Provider{
		ai.ProviderOpenAI: openAIServer(t,
			`{"id":"c1","choices":[{"index":0,"delta":{"content":"Partial"},"finish_reason":null}]}`),
		ai.ProviderAnthropic: fallback,
	}, WithFallbackModel("claude-sonnet"))
	require.NoError(t, err)

	stream, err := orch.Respond(context.Background(), nil, "Hello", "gpt-4o")
	require.NoError(t, err)
	deltas := collect(stream)
	assert.Equal(t, []TextDelta{{Content: "Partial"}, {Final: true}}, deltas)

	reply, err := stream.Result()
	require.NoError(t, err)
	assert.Equal(t, "Partial", reply.FullText)
	assert.Equal(t, "gpt-4o", reply.ModelUsed)
	assert.True(t, reply.Incomplete)
	assert.ErrorIs(t, reply.Cause, io.ErrUnexpectedEOF)
	assert.Equal(t, OutcomeIncomplete, reply.Outcome())
	assert.Zero(t, fallback.calls())
}
