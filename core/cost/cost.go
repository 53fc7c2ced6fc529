package cost

import (
	"fmt"

	"github.com/leofalp/chatrelay/providers/ai"
)

// ModelCost is the price list of one model in USD per million tokens.
//
//	cost.ModelCost{InputPerMillion: 2.50, OutputPerMillion: 10.00, CachedInputPerMillion: 1.25}
type ModelCost struct {
	InputPerMillion  float64 `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`

	// CachedInputPerMillion prices prompt tokens served from the provider's
	// prompt cache. Zero bills them at the regular input rate.
	CachedInputPerMillion float64 `json:"cached_input_per_million,omitempty" yaml:"cached_input_per_million,omitempty"`
}

// IsZero reports whether no price is known.
func (mc ModelCost) IsZero() bool {
	return mc.InputPerMillion == 0 && mc.OutputPerMillion == 0 && mc.CachedInputPerMillion == 0
}

func (mc ModelCost) String() string {
	return fmt.Sprintf("Input: $%.2f/M, Output: $%.2f/M", mc.InputPerMillion, mc.OutputPerMillion)
}

// Breakdown is the priced usage of one turn.
type Breakdown struct {
	InputCost  float64 `json:"input_cost"`
	CachedCost float64 `json:"cached_cost,omitempty"`
	OutputCost float64 `json:"output_cost"`
	Total      float64 `json:"total"`
	Currency   string  `json:"currency"`
}

// Estimate prices usage. Cached tokens are a subset of prompt tokens.
// A nil usage yields a zero breakdown.
func (mc ModelCost) Estimate(usage *ai.Usage) Breakdown {
	breakdown := Breakdown{Currency: "USD"}
	if usage == nil {
		return breakdown
	}

	cached := min(max(usage.CachedTokens, 0), usage.PromptTokens)
	uncached := usage.PromptTokens - cached

	cachedRate := mc.CachedInputPerMillion
	if cachedRate == 0 {
		cachedRate = mc.InputPerMillion
	}

	breakdown.InputCost = perMillion(uncached, mc.InputPerMillion)
	breakdown.CachedCost = perMillion(cached, cachedRate)
	breakdown.OutputCost = perMillion(usage.CompletionTokens, mc.OutputPerMillion)
	breakdown.Total = breakdown.InputCost + breakdown.CachedCost + breakdown.OutputCost
	return breakdown
}

func perMillion(tokens int, rate float64) float64 {
	return float64(tokens) / 1_000_000.0 * rate
}
