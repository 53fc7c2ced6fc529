// Package cost prices a chat turn from provider-reported token usage.
//
// Prices are expressed in USD per million tokens, the unit every supported
// provider publishes. A zero ModelCost means the price is unknown and
// produces a zero estimate.
package cost
