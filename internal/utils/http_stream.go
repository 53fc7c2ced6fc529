package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leofalp/chatrelay/providers/observability"
)

// ErrFirstByteTimeout is returned when the provider does not deliver the first
// byte of its response body within the configured first-byte timeout.
var ErrFirstByteTimeout = errors.New("first-byte timeout exceeded")

// ErrStreamDone is returned by SSEScanner.Next when the [DONE] sentinel is
// read. A body that closes without it yields io.EOF instead.
var ErrStreamDone = errors.New("SSE stream done")

// maxSSELineSize is the maximum size of a single SSE line (1 MB).
// The default bufio.Scanner limit is 64 KiB, which is too small for long
// completions carried in a single event.
const maxSSELineSize = 1 * 1024 * 1024

// maxResponseBodySize caps error and one-shot body reads (10 MB).
const maxResponseBodySize int64 = 10 * 1024 * 1024

// DoPostStream performs an HTTP POST request and returns the raw response with
// the body left open for SSE reading. The caller must close the body when done;
// closing it also releases the request context. On error paths the body is
// read and closed before returning.
//
// When firstByteTimeout is positive, the request is cancelled if the first byte
// of the response body has not arrived within that duration (connection setup
// and response headers included). The failure surfaces as ErrFirstByteTimeout,
// either from DoPostStream itself or from the first Read on the body.
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, firstByteTimeout time.Duration, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	streamCtx, cancel := context.WithCancel(ctx)
	guard := newFirstByteGuard(firstByteTimeout, cancel)

	req, bodySize, err := newJSONRequest(streamCtx, url, apiKey, body, "text/event-stream", headers)
	if err != nil {
		guard.stop()
		cancel()
		return nil, err
	}

	if span != nil {
		span.AddEvent("http.stream_request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, bodySize),
		)
	}

	requestStart := time.Now()
	response, err := httpClientOrDefault(client).Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		guard.stop()
		cancel()
		if guard.expired() {
			err = fmt.Errorf("%w after %s", ErrFirstByteTimeout, firstByteTimeout)
		}
		if span != nil {
			span.AddEvent("http.stream_request.error",
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return response, fmt.Errorf("error sending stream request: %w", err)
	}

	// For non-2xx responses, read the body and close it before returning the error
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		guard.stop()
		defer cancel()
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			return response, fmt.Errorf("non-2xx status %d (failed to read body: %v)", response.StatusCode, readErr)
		}
		return response, NewHTTPError(response.StatusCode, errorBody)
	}

	if span != nil {
		span.AddEvent("http.stream_response.started",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	response.Body = &guardedBody{
		ReadCloser: response.Body,
		guard:      guard,
		cancel:     cancel,
		timeout:    firstByteTimeout,
	}
	return response, nil
}

// firstByteGuard cancels the request context if it is not stopped in time.
type firstByteGuard struct {
	timer   *time.Timer
	fired   atomic.Bool
	stopped sync.Once
}

func newFirstByteGuard(timeout time.Duration, cancel context.CancelFunc) *firstByteGuard {
	guard := &firstByteGuard{}
	if timeout > 0 {
		guard.timer = time.AfterFunc(timeout, func() {
			guard.fired.Store(true)
			cancel()
		})
	}
	return guard
}

func (guard *firstByteGuard) stop() {
	guard.stopped.Do(func() {
		if guard.timer != nil {
			guard.timer.Stop()
		}
	})
}

func (guard *firstByteGuard) expired() bool {
	return guard.fired.Load()
}

// guardedBody disarms the first-byte guard on the first successful read and
// releases the request context on Close.
type guardedBody struct {
	io.ReadCloser
	guard    *firstByteGuard
	cancel   context.CancelFunc
	timeout  time.Duration
	received bool
}

func (body *guardedBody) Read(p []byte) (int, error) {
	n, err := body.ReadCloser.Read(p)
	if n > 0 && !body.received {
		body.received = true
		body.guard.stop()
	}
	if err != nil && err != io.EOF && !body.received && body.guard.expired() {
		err = fmt.Errorf("%w after %s", ErrFirstByteTimeout, body.timeout)
	}
	return n, err
}

func (body *guardedBody) Close() error {
	body.guard.stop()
	err := body.ReadCloser.Close()
	body.cancel()
	return err
}

// SSEScanner reads Server-Sent Events (SSE) from an io.Reader.
// It handles multi-line data fields, skips comments and empty lines,
// and detects the [DONE] sentinel used by OpenAI-compatible APIs.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates an SSEScanner that reads SSE events from the given reader.
// Lines longer than maxSSELineSize make Next return an error wrapping
// bufio.ErrTooLong.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{
		scanner: scanner,
	}
}

// Next returns the next SSE data payload as a string.
// It skips empty lines and comment lines (starting with ':').
// Returns ErrStreamDone on the [DONE] sentinel and io.EOF when the body ends
// without it.
//
// Multi-line data fields (multiple consecutive "data:" lines) are joined
// with newlines into a single payload string.
func (sseScanner *SSEScanner) Next() (string, error) {
	var dataLines []string

	for sseScanner.scanner.Scan() {
		line := sseScanner.scanner.Text()

		// Empty line signals end of an event; flush accumulated data lines
		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			if data == "[DONE]" {
				return "", ErrStreamDone
			}

			dataLines = append(dataLines, data)
			continue
		}

		// Other SSE fields (event:, id:, retry:) are ignored; every supported
		// provider repeats the event type inside the JSON payload.
	}

	if err := sseScanner.scanner.Err(); err != nil {
		return "", fmt.Errorf("SSE scanner error: %w", err)
	}

	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), nil
	}

	return "", io.EOF
}
