package pricing

import "math"

// Engine maps a raw marketplace ask price to a storefront sale price via
// tiered markup and a rounding rule.
type Engine struct {
	endingOffset float64
}

// NewEngine creates a markup engine. endingOffset is subtracted after
// rounding to the nearest multiple of 5 so prices land on an ending like
// .90 or .99.
func NewEngine(endingOffset float64) Engine {
	return Engine{endingOffset: endingOffset}
}

// Markup computes the sale price for a base ask price. Deterministic,
// total over non-negative input.
func (e Engine) Markup(base float64) float64 {
	var uplift float64
	switch {
	case base <= 100:
		uplift = 40
	case base <= 200:
		uplift = 55
	case base <= 400:
		uplift = 75
	default:
		uplift = 110
	}
	rounded := math.Round((base+uplift)/5) * 5
	// Keep two decimals; the offset would otherwise accumulate float dust.
	return math.Round((rounded-e.endingOffset)*100) / 100
}
