package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leofalp/chatrelay/internal/utils"
	"github.com/leofalp/chatrelay/providers/ai"
)

func writeSSE(writer http.ResponseWriter, data string) {
	fmt.Fprintf(writer, "data: %s\n\n", data)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func chunk(content string) string {
	return fmt.Sprintf(`{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content)
}

func TestStreamMessage_DeltasInOrder(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_ = json.NewDecoder(request.Body).Decode(&captured)
		if got := request.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("unexpected Accept header %q", got)
		}
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":""},"finish_reason":null}]}`)
		writeSSE(writer, chunk("Hello"))
		writeSSE(writer, chunk(" world"))
		writeSSE(writer, `{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)
		writeSSE(writer, `{"id":"c1","model":"gpt-4o","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`)
		writeSSE(writer, "[DONE]")
	}))
	defer server.Close()

	stream, err := newTestProvider(server.URL).StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "gpt-4o",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	var contents []string
	var finish string
	var usage *ai.Usage
	for event, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		switch event.Type {
		case ai.StreamEventContent:
			contents = append(contents, event.Content)
		case ai.StreamEventDone:
			finish = event.FinishReason
		case ai.StreamEventUsage:
			usage = event.Usage
		}
	}

	if !captured.Stream || captured.StreamOptions == nil || !captured.StreamOptions.IncludeUsage {
		t.Errorf("stream flags not set: %+v", captured)
	}
	if len(contents) != 2 || contents[0] != "Hello" || contents[1] != " world" {
		t.Errorf("unexpected deltas %q", contents)
	}
	if finish != "stop" {
		t.Errorf("unexpected finish reason %q", finish)
	}
	if usage == nil || usage.TotalTokens != 11 {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestStreamMessage_StatusErrorBeforeStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusTooManyRequests)
		_, _ = writer.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).StreamMessage(context.Background(), ai.ChatRequest{Model: "gpt-4o"})
	if !errors.Is(err, ai.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	var httpErr *utils.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected *HTTPError 429, got %v", err)
	}
}

func TestStreamMessage_MalformedChunkAfterContentIsInterrupted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writeSSE(writer, chunk("partial"))
		writeSSE(writer, `{"choices":[{"delta":`)
		writeSSE(writer, chunk("never seen"))
	}))
	defer server.Close()

	stream, err := newTestProvider(server.URL).StreamMessage(context.Background(), ai.ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if !errors.Is(err, ai.ErrProviderInterrupted) {
		t.Fatalf("expected ErrProviderInterrupted, got %v", err)
	}
	if response.Content != "partial" {
		t.Errorf("no delta may follow a failure, got %q", response.Content)
	}
}

func TestStreamMessage_InBandErrorBeforeContentIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writeSSE(writer, `{"error":{"message":"model overloaded","type":"server_error"}}`)
	}))
	defer server.Close()

	stream, err := newTestProvider(server.URL).StreamMessage(context.Background(), ai.ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	_, err = stream.Collect()
	if !errors.Is(err, ai.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	var providerErr *ai.ProviderError
	if !errors.As(err, &providerErr) || providerErr.Message != "model overloaded" {
		t.Errorf("expected *ProviderError, got %v", err)
	}
}

func TestStreamMessage_FirstByteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
		select {
		case <-release:
		case <-request.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	provider := newTestProvider(server.URL)
	provider.WithFirstByteTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := provider.StreamMessage(context.Background(), ai.ChatRequest{Model: "gpt-4o"})
	if !errors.Is(err, utils.ErrFirstByteTimeout) || !errors.Is(err, ai.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable first-byte timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %s", elapsed)
	}
}

func TestStreamMessage_EmptyBodyIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stream, err := newTestProvider(server.URL).StreamMessage(context.Background(), ai.ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	_, err = stream.Collect()
	if !errors.Is(err, ai.ErrProviderUnavailable) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unavailable unexpected EOF, got %v", err)
	}
}

func TestStreamMessage_CloseWithoutDoneIsInterrupted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writeSSE(writer, chunk("Partial"))
	}))
	defer server.Close()

	stream, err := newTestProvider(server.URL).StreamMessage(context.Background(), ai.ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if !errors.Is(err, ai.ErrProviderInterrupted) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected interrupted unexpected EOF, got %v", err)
	}
	if response.Content != "Partial" {
		t.Errorf("expected partial content, got %q", response.Content)
	}
}
