// Package economy provides the token valuation and trade rate rules.
package economy

import (
	"math"

	"github.com/talgya/tokensim/internal/social"
)

// Valuation derives the token exchange value from aggregate supply:
// max(floor, totalNominal / max(1, totalTokens)). A population holding no
// tokens at all (or a net debt) is degenerate and values tokens at the floor.
// The result is always finite and at least floor.
func Valuation(totalNominal, totalTokens, floor float64) float64 {
	if totalTokens <= 0 || math.IsNaN(totalTokens) || math.IsInf(totalTokens, 0) {
		return floor
	}
	v := totalNominal / math.Max(1, totalTokens)
	if math.IsNaN(v) || v < floor {
		return floor
	}
	return v
}

// Rates holds the trade multipliers applied per alliance standing.
type Rates struct {
	Favorable   float64 // Both agents share an alliance
	Unfavorable float64 // Exactly one agent is allied
}

// For returns the multiplier for a standing. Neutral pairs trade at 1.0.
func (r Rates) For(s social.Standing) float64 {
	switch s {
	case social.StandingAllied:
		return r.Favorable
	case social.StandingOutsider:
		return r.Unfavorable
	default:
		return 1.0
	}
}
