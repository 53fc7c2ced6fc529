package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/leofalp/chatrelay/providers/observability"
)

// HeaderOption is an extra request header applied after the defaults, so it
// can override Content-Type or Authorization when a provider needs to.
type HeaderOption struct {
	Key   string
	Value string
}

// HTTPError is returned for non-2xx responses. Message is extracted from the
// provider's JSON error envelope when one can be recovered, otherwise it is
// the (truncated) raw body.
type HTTPError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("non-2xx status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, e.Message)
}

// CloseWithLog closes closer and logs a warning if that fails. Use it in
// defers where a close error must not override the function's primary error.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// DoPostSync performs a synchronous HTTP POST request with a JSON body and
// decodes the JSON response into OutputStruct.
//
// Error Handling Strategy:
//   - Context errors (timeout, cancellation) are propagated immediately
//   - Non-2xx statuses return an *HTTPError
//   - Response body close errors are logged but don't override primary errors
//   - JSON parsing errors include a response preview for debugging
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	span := observability.SpanFromContext(ctx)

	req, bodySize, err := newJSONRequest(ctx, url, apiKey, body, "application/json", headers)
	if err != nil {
		return nil, nil, err
	}

	if span != nil {
		span.AddEvent("http.request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, bodySize),
		)
	}

	requestStart := time.Now()
	res, err := httpClientOrDefault(client).Do(req)
	requestDuration := time.Since(requestStart)
	if err != nil {
		if span != nil {
			span.AddEvent("http.request.error",
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return res, nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if span != nil {
		span.AddEvent("http.response.received",
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, nil, NewHTTPError(res.StatusCode, respBody)
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return res, nil, fmt.Errorf("error unmarshaling response body (status %d): %w\nResponse preview: %s", res.StatusCode, err, TruncateString(string(respBody), 500))
	}

	return res, &resStruct, nil
}

// NewHTTPError builds an HTTPError from a status code and a raw error body.
// Error bodies are frequently cut short (by the read cap or by a proxy), so the
// JSON is repaired before the message is extracted.
func NewHTTPError(statusCode int, body []byte) *HTTPError {
	httpErr := &HTTPError{StatusCode: statusCode}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		httpErr.Message = http.StatusText(statusCode)
		return httpErr
	}

	errType, message := extractErrorMessage(raw)
	if message == "" {
		httpErr.Message = TruncateString(raw, DefaultMaxStringLength)
		return httpErr
	}

	httpErr.Type = errType
	httpErr.Message = message
	return httpErr
}

// errorEnvelope covers the error shapes returned by the supported providers:
//
//	OpenAI / Mistral: {"error": {"message": "...", "type": "..."}}
//	Anthropic:        {"type": "error", "error": {"type": "...", "message": "..."}}
//	Gemini:           {"error": {"code": 400, "message": "...", "status": "..."}}
//	Mistral (alt):    {"object": "error", "message": "...", "type": "..."}
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Status  string `json:"status"`
	} `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Detail  string `json:"detail"`
}

func extractErrorMessage(raw string) (string, string) {
	var envelope errorEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return "", ""
		}
		if err := json.Unmarshal([]byte(repaired), &envelope); err != nil {
			return "", ""
		}
	}

	if envelope.Error != nil && envelope.Error.Message != "" {
		errType := envelope.Error.Type
		if errType == "" {
			errType = envelope.Error.Status
		}
		return errType, envelope.Error.Message
	}
	if envelope.Message != "" {
		return envelope.Type, envelope.Message
	}
	if envelope.Detail != "" {
		return envelope.Type, envelope.Detail
	}
	return "", ""
}

func newJSONRequest(ctx context.Context, url string, apiKey string, body any, accept string, headers []HeaderOption) (*http.Request, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	return req, len(jsonBody), nil
}

func httpClientOrDefault(client *http.Client) *http.Client {
	if client == nil {
		return http.DefaultClient
	}
	return client
}
