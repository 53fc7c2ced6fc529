package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestHandler_Compact(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatCompact, Level: slog.LevelDebug, Output: &buf}))

	logger.Debug("turn started", "chat.call_id", "abc", "chat.deltas", 3)

	out := buf.String()
	if !strings.Contains(out, "DEBUG turn started -> ") {
		t.Fatalf("unexpected compact line: %q", out)
	}
	if !strings.Contains(out, `"chat.call_id":"abc"`) || !strings.Contains(out, `"chat.deltas":3`) {
		t.Errorf("attributes missing from %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected a single line, got %q", out)
	}
}

func TestHandler_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatPretty, Output: &buf}))

	logger.Info("fallback", "from", "claude-3-5-sonnet", "to", "gpt-4o")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected message plus two attribute lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "INFO  fallback") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "|- from: claude-3-5-sonnet") || !strings.Contains(lines[2], "`- to: gpt-4o") {
		t.Errorf("unexpected attribute lines %q", lines[1:])
	}
}

func TestHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatJSON, Output: &buf}))

	logger.With("service", "chatrelay").WithGroup("llm").Warn("slow provider", "model", "gpt-4o")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["level"] != "WARN" || record["msg"] != "slow provider" {
		t.Errorf("unexpected standard fields: %v", record)
	}
	if record["service"] != "chatrelay" {
		t.Errorf("handler attribute lost: %v", record)
	}
	if record["llm.model"] != "gpt-4o" {
		t.Errorf("group prefix not applied: %v", record)
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(&HandlerOptions{Level: slog.LevelWarn, Output: &buf})
	logger := slog.New(handler)

	logger.Info("hidden")
	logger.Error("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level filtering failed: %q", buf.String())
	}
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("DEBUG should be disabled at WARN")
	}
}

func TestHandler_TraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Level: LevelTrace, Output: &buf}))

	logger.Log(context.Background(), LevelTrace, "wire detail")

	if !strings.Contains(buf.String(), "TRACE wire detail") {
		t.Errorf("expected TRACE line, got %q", buf.String())
	}
}
