package orchestrator

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leofalp/chatrelay/core/catalog"
	"github.com/leofalp/chatrelay/core/cost"
	"github.com/leofalp/chatrelay/providers/ai"
)

// fakeProvider streams a scripted reply and records how it was used.
type fakeProvider struct {
	kind   ai.ProviderKind
	deltas []string
	usage  *ai.Usage

	failBefore error // returned before any event
	failAfter  error // yielded after the deltas
	block      bool  // wait for cancellation after the deltas

	mu          sync.Mutex
	streamCalls int
	sendCalls   int
	requests    []ai.ChatRequest
	stopped     bool
}

func (f *fakeProvider) Kind() ai.ProviderKind { return f.kind }

func (f *fakeProvider) WithAPIKey(string) ai.Provider                  { return f }
func (f *fakeProvider) WithBaseURL(string) ai.Provider                 { return f }
func (f *fakeProvider) WithHttpClient(*http.Client) ai.Provider        { return f }
func (f *fakeProvider) WithFirstByteTimeout(time.Duration) ai.Provider { return f }

func (f *fakeProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	f.mu.Lock()
	f.sendCalls++
	f.requests = append(f.requests, request)
	f.mu.Unlock()

	if f.failBefore != nil {
		return nil, f.failBefore
	}
	return &ai.ChatResponse{
		Content:      strings.Join(f.deltas, ""),
		FinishReason: "stop",
		Usage:        f.usage,
	}, nil
}

func (f *fakeProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	f.mu.Lock()
	f.streamCalls++
	f.requests = append(f.requests, request)
	f.mu.Unlock()

	if f.failBefore != nil {
		return nil, f.failBefore
	}

	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for _, delta := range f.deltas {
			if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: delta}, nil) {
				f.markStopped()
				return
			}
		}

		if f.block {
			<-ctx.Done()
			f.markStopped()
			yield(ai.StreamEvent{}, ctx.Err())
			return
		}

		if f.failAfter != nil {
			yield(ai.StreamEvent{}, f.failAfter)
			return
		}

		if f.usage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: f.usage}, nil) {
				return
			}
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: "stop"}, nil)
	}), nil
}

func (f *fakeProvider) markStopped() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls + f.sendCalls
}

func (f *fakeProvider) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeProvider) lastRequest(t *testing.T) ai.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	models, err := catalog.New(
		catalog.Entry{ID: "gpt-4o", Provider: ai.ProviderOpenAI, NativeName: "gpt-4o-2024-08-06", Streaming: true,
			Pricing: cost.ModelCost{InputPerMillion: 2.5, OutputPerMillion: 10}},
		catalog.Entry{ID: "claude-sonnet", Provider: ai.ProviderAnthropic, NativeName: "claude-3-5-sonnet-20241022", Streaming: true},
		catalog.Entry{ID: "gemini-flash", Provider: ai.ProviderGoogle, NativeName: "gemini-2.0-flash", Streaming: true},
		catalog.Entry{ID: "mistral-large", Provider: ai.ProviderMistral, NativeName: "mistral-large-latest", Streaming: false},
	)
	require.NoError(t, err)
	return models
}

// collect drains the delta sequence.
func collect(stream *ReplyStream) []TextDelta {
	var deltas []TextDelta
	for delta := range stream.Deltas() {
		deltas = append(deltas, delta)
	}
	return deltas
}
