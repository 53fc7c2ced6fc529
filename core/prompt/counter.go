package prompt

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Unit is the unit a context budget is measured in.
type Unit string

const (
	UnitChars  Unit = "chars"
	UnitTokens Unit = "tokens"
)

// ParseUnit accepts "chars"/"characters" and "tokens".
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chars", "characters", "":
		return UnitChars, nil
	case "tokens":
		return UnitTokens, nil
	default:
		return "", fmt.Errorf("unknown budget unit %q", s)
	}
}

// Counter measures text in a budget unit.
type Counter interface {
	Count(text string) int
	Unit() Unit
}

// NewCounter returns the counter for unit.
func NewCounter(unit Unit) (Counter, error) {
	switch unit {
	case UnitChars:
		return CharCounter{}, nil
	case UnitTokens:
		return NewTokenCounter(), nil
	default:
		return nil, fmt.Errorf("unknown budget unit %q", unit)
	}
}

// CharCounter counts Unicode code points.
type CharCounter struct{}

func (CharCounter) Count(text string) int { return utf8.RuneCountInString(text) }

func (CharCounter) Unit() Unit { return UnitChars }

// TokenCounter counts cl100k_base tokens. The encoding is loaded lazily; if
// it cannot be loaded every count falls back to a len/4 estimate.
type TokenCounter struct {
	encode func(string) int
}

var (
	sharedEncoder    *tiktoken.Tiktoken
	sharedEncoderErr error
	encoderOnce      sync.Once
)

func loadEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		sharedEncoder, sharedEncoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return sharedEncoder, sharedEncoderErr
}

// NewTokenCounter returns a counter backed by the shared cl100k_base encoder.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{encode: func(text string) int {
		encoder, err := loadEncoder()
		if err != nil {
			return estimateTokens(text)
		}
		return len(encoder.Encode(text, nil, nil))
	}}
}

func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return c.encode(text)
}

func (c *TokenCounter) Unit() Unit { return UnitTokens }

// estimateTokens approximates one token per four bytes, rounding up.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
