package ai

import (
	"errors"
	"testing"
)

func TestSplitSystem(t *testing.T) {
	request := ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}}

	system, rest := request.SplitSystem()
	if system != "be brief" {
		t.Errorf("expected system prompt %q, got %q", "be brief", system)
	}
	if len(rest) != 1 || rest[0].Role != RoleUser {
		t.Errorf("unexpected remaining turns: %+v", rest)
	}
}

func TestSplitSystem_NoLeadingSystem(t *testing.T) {
	request := ChatRequest{Messages: []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "late"},
	}}

	system, rest := request.SplitSystem()
	if system != "" {
		t.Errorf("expected no system prompt, got %q", system)
	}
	if len(rest) != 2 {
		t.Errorf("expected all turns to be kept, got %d", len(rest))
	}
}

func TestParseProviderKind(t *testing.T) {
	for _, kind := range ProviderKinds() {
		parsed, err := ParseProviderKind(string(kind))
		if err != nil || parsed != kind {
			t.Errorf("round trip failed for %q: %v", kind, err)
		}
	}

	if _, err := ParseProviderKind("cohere"); err == nil {
		t.Error("expected an error for an unknown provider kind")
	}
}

func TestMessageRoleValid(t *testing.T) {
	if !RoleAssistant.Valid() {
		t.Error("assistant should be valid")
	}
	if MessageRole("tool").Valid() {
		t.Error("tool should not be a valid conversation role")
	}
}

func TestClassificationIsSticky(t *testing.T) {
	base := errors.New("dial tcp: refused")

	unavailable := Unavailable(base)
	if !errors.Is(unavailable, ErrProviderUnavailable) || !errors.Is(unavailable, base) {
		t.Fatalf("unexpected classification: %v", unavailable)
	}

	// Re-classifying keeps the first verdict.
	if again := Interrupted(unavailable); errors.Is(again, ErrProviderInterrupted) {
		t.Errorf("expected classification to stay unavailable, got %v", again)
	}
	if Unavailable(nil) != nil {
		t.Error("expected nil to stay nil")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	plain := &ProviderError{Provider: ProviderMistral, Message: "upstream closed"}
	if plain.Error() != "mistral stream error: upstream closed" {
		t.Errorf("unexpected message: %s", plain.Error())
	}

	streamErr := &ProviderError{Provider: ProviderAnthropic, Type: "overloaded_error", Message: "Overloaded"}
	if streamErr.Error() != "anthropic stream error (overloaded_error): Overloaded" {
		t.Errorf("unexpected message: %s", streamErr.Error())
	}
}
