package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// ---- SSEScanner tests -------------------------------------------------------

// scanAll drains the scanner and returns the payloads seen before the
// stream ended, plus whether it ended on the [DONE] sentinel.
func scanAll(t *testing.T, input string) ([]string, bool) {
	t.Helper()
	scanner := NewSSEScanner(strings.NewReader(input))

	var payloads []string
	for {
		payload, err := scanner.Next()
		if err == io.EOF {
			return payloads, false
		}
		if errors.Is(err, ErrStreamDone) {
			return payloads, true
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		payloads = append(payloads, payload)
	}
}

func TestSSEScanner(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     []string
		wantDone bool
	}{
		{name: "single event", input: "data: hello\n\n", want: []string{"hello"}},
		{name: "events in order", input: "data: first\n\ndata: second\n\ndata: third\n\n", want: []string{"first", "second", "third"}},
		{name: "multi-line data joined", input: "data: line1\ndata: line2\n\n", want: []string{"line1\nline2"}},
		{name: "comments skipped", input: ": keep-alive\ndata: real payload\n\n", want: []string{"real payload"}},
		{name: "done sentinel ends stream", input: "data: before\n\ndata: [DONE]\n\ndata: after\n\n", want: []string{"before"}, wantDone: true},
		{name: "empty stream", input: "", want: nil},
		{name: "trailing data without blank line", input: "data: no-trailing-blank", want: []string{"no-trailing-blank"}},
		{name: "payload trimmed", input: "data:   padded value   \n\n", want: []string{"padded value"}},
		{name: "other fields ignored", input: "event: content_block_delta\nid: 42\nretry: 3000\ndata: payload\n\n", want: []string{"payload"}},
		{name: "blank lines collapse", input: "data: a\n\n\n\ndata: b\n\n", want: []string{"a", "b"}},
		{name: "crlf line endings", input: "data: windows\r\n\r\n", want: []string{"windows"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, done := scanAll(t, tt.input)
			if fmt.Sprintf("%q", got) != fmt.Sprintf("%q", tt.want) {
				t.Errorf("payloads = %q, want %q", got, tt.want)
			}
			if done != tt.wantDone {
				t.Errorf("ended on [DONE] = %v, want %v", done, tt.wantDone)
			}
		})
	}
}

// ---- DoPostStream tests -----------------------------------------------------

// TestDoPostStream_SuccessResponse_ReturnsOpenBody verifies that a 200 response
// leaves the body open for the caller to read from (SSE consumption pattern).
func TestDoPostStream_SuccessResponse_ReturnsOpenBody(t *testing.T) {
	ssePayload := "data: chunk1\n\ndata: [DONE]\n\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ssePayload)
	}))
	defer server.Close()

	response, err := DoPostStream(context.Background(), server.Client(), server.URL, "test-key", map[string]string{"q": "test"}, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer CloseWithLog(response.Body)

	// Body must still be readable; consume via SSEScanner
	scanner := NewSSEScanner(response.Body)
	payload, scanErr := scanner.Next()
	if scanErr != nil {
		t.Fatalf("expected nil error reading SSE, got %v", scanErr)
	}
	if payload != "chunk1" {
		t.Errorf("expected %q, got %q", "chunk1", payload)
	}
}

// TestDoPostStream_NonTwoxxResponse_ReturnsError verifies that a non-2xx
// HTTP status causes DoPostStream to return an error with the status code.
func TestDoPostStream_NonTwoxxResponse_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := DoPostStream(context.Background(), server.Client(), server.URL, "test-key", map[string]string{}, 0)
	if err == nil {
		t.Fatal("expected error for non-2xx response, got nil")
	}

	// Error should mention the status code
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected error to contain status code 429, got: %v", err)
	}
}

// TestDoPostStream_ServerError_ReturnsError verifies that a 500 response is
// treated as an error and the body contents are included in the error message.
func TestDoPostStream_ServerError_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := DoPostStream(context.Background(), server.Client(), server.URL, "", map[string]string{}, 0)
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("expected error to contain status 500, got: %v", err)
	}
}

// TestDoPostStream_ContextCancellation_ReturnsError verifies that a
// pre-cancelled context causes DoPostStream to return an error immediately.
func TestDoPostStream_ContextCancellation_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// This handler will never be reached if context is already cancelled.
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately before the request

	_, err := DoPostStream(cancelledCtx, server.Client(), server.URL, "", map[string]string{}, 0)
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

// TestDoPostStream_NetworkError_ReturnsError verifies that an unreachable
// server causes DoPostStream to return a wrapped error.
func TestDoPostStream_NetworkError_ReturnsError(t *testing.T) {
	// Point to a port that is guaranteed not to be listening.
	_, err := DoPostStream(context.Background(), nil, "http://127.0.0.1:1", "", map[string]string{}, 0)
	if err == nil {
		t.Fatal("expected network error, got nil")
	}
}

// TestDoPostStream_SetsAuthHeader_WithAPIKey verifies that when an API key is
// provided the Authorization header is sent as a Bearer token.
func TestDoPostStream_SetsAuthHeader_WithAPIKey(t *testing.T) {
	const expectedKey = "supersecret"
	var capturedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	response, err := DoPostStream(context.Background(), server.Client(), server.URL, expectedKey, map[string]string{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	CloseWithLog(response.Body)

	expected := "Bearer " + expectedKey
	if capturedAuth != expected {
		t.Errorf("expected Authorization header %q, got %q", expected, capturedAuth)
	}
}

// TestDoPostStream_CustomHeader_OverridesDefault verifies that a HeaderOption
// is applied to the outgoing request, overriding any default header value.
func TestDoPostStream_CustomHeader_OverridesDefault(t *testing.T) {
	const customHeaderKey = "x-custom-provider-key"
	const customHeaderValue = "provider-token-123"
	var capturedHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedHeader = r.Header.Get(customHeaderKey)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	response, err := DoPostStream(
		context.Background(),
		server.Client(),
		server.URL,
		"",
		map[string]string{},
		0,
		HeaderOption{Key: customHeaderKey, Value: customHeaderValue},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	CloseWithLog(response.Body)

	if capturedHeader != customHeaderValue {
		t.Errorf("expected custom header %q, got %q", customHeaderValue, capturedHeader)
	}
}

// ---- First-byte timeout tests -----------------------------------------------

// TestDoPostStream_FirstByteTimeout_BeforeHeaders verifies that a server that
// never answers trips the first-byte guard and reports ErrFirstByteTimeout.
func TestDoPostStream_FirstByteTimeout_BeforeHeaders(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := DoPostStream(context.Background(), server.Client(), server.URL, "", map[string]string{}, 50*time.Millisecond)
	if !errors.Is(err, ErrFirstByteTimeout) {
		t.Fatalf("expected ErrFirstByteTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected the guard to fire promptly, took %s", elapsed)
	}
}

// TestDoPostStream_FirstByteTimeout_AfterHeaders verifies that headers alone do
// not satisfy the guard: a silent body still produces ErrFirstByteTimeout on read.
func TestDoPostStream_FirstByteTimeout_AfterHeaders(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	response, err := DoPostStream(context.Background(), server.Client(), server.URL, "", map[string]string{}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("expected headers to arrive, got %v", err)
	}
	defer CloseWithLog(response.Body)

	_, err = NewSSEScanner(response.Body).Next()
	if !errors.Is(err, ErrFirstByteTimeout) {
		t.Fatalf("expected ErrFirstByteTimeout from the body, got %v", err)
	}
}

// TestDoPostStream_FirstByteTimeout_DisarmedByData verifies that once data has
// arrived the guard no longer interrupts a slow stream.
func TestDoPostStream_FirstByteTimeout_DisarmedByData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: first\n\n")
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		fmt.Fprint(w, "data: second\n\n")
	}))
	defer server.Close()

	response, err := DoPostStream(context.Background(), server.Client(), server.URL, "", map[string]string{}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer CloseWithLog(response.Body)

	scanner := NewSSEScanner(response.Body)
	for _, expected := range []string{"first", "second"} {
		payload, scanErr := scanner.Next()
		if scanErr != nil {
			t.Fatalf("unexpected error reading %q: %v", expected, scanErr)
		}
		if payload != expected {
			t.Errorf("expected %q, got %q", expected, payload)
		}
	}
}

// TestDoPostStream_StructuredErrorBody verifies that the provider error message
// is extracted from the JSON envelope.
func TestDoPostStream_StructuredErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	_, err := DoPostStream(context.Background(), server.Client(), server.URL, "bad", map[string]string{}, 0)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T (%v)", err, err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", httpErr.StatusCode)
	}
	if httpErr.Message != "Incorrect API key provided" || httpErr.Type != "invalid_request_error" {
		t.Errorf("unexpected error details: %+v", httpErr)
	}
}
