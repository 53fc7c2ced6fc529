package observability

import (
	"errors"
	"testing"
	"time"
)

func TestAttributeConstructors(t *testing.T) {
	tests := []struct {
		name      string
		attr      Attribute
		wantKey   string
		wantValue any
	}{
		{"string", String(AttrLLMModel, "gpt-4o"), AttrLLMModel, "gpt-4o"},
		{"int", Int(AttrChatDeltas, 12), AttrChatDeltas, 12},
		{"float64", Float64(AttrChatCostUSD, 0.0125), AttrChatCostUSD, 0.0125},
		{"bool", Bool(AttrLLMStreaming, true), AttrLLMStreaming, true},
		{"duration", Duration(AttrDuration, 3*time.Second), AttrDuration, 3 * time.Second},
		{"error", Error(errors.New("boom")), AttrError, "boom"},
		{"nil error", Error(nil), AttrError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value != tt.wantValue {
				t.Errorf("value = %v, want %v", tt.attr.Value, tt.wantValue)
			}
		})
	}
}

func TestStatusCode_Values(t *testing.T) {
	if StatusUnset != 0 || StatusOK != 1 || StatusError != 2 {
		t.Errorf("unexpected status codes: %d %d %d", StatusUnset, StatusOK, StatusError)
	}
}
