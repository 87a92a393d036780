// Explorer turns: movement, foraging and selling to the nearest consumer.
package engine

import (
	"math"

	"github.com/talgya/tokensim/internal/agents"
	"github.com/talgya/tokensim/internal/world"
)

// moveExplorers steps every explorer, lets it forage, and sells its haul once
// it reaches the sell cutoff.
func (e *Economy) moveExplorers(t *turnLog) {
	for _, ex := range e.state.Agents.ByRole(agents.RoleExplorer) {
		ex.Position = world.Step(ex.Position, e.bounds, e.edge, e.rng)

		if h, ok := e.forage(ex); ok {
			t.foraged += h.Amount
			if h.Depleted {
				t.emit(CategoryResource, "%s exhausted the deposit at (%d,%d)", ex.ID, h.Position.X, h.Position.Y)
			}
		}

		if ex.Resources < e.cfg.Explorers.SellCutoff {
			continue
		}
		// No consumer means the explorer keeps its haul this turn.
		if c := e.nearestConsumer(ex.Position); c != nil {
			amount := e.sell(ex, c)
			t.sales++
			t.emit(CategoryTrade, "%s sold %.0f resources to %s", ex.ID, amount, c.ID)
		}
	}
}

// forage gathers from the resource field into the agent's balance.
func (e *Economy) forage(a *agents.Agent) (world.Harvest, bool) {
	q := e.cfg.Explorers.ForageQuantity
	h, ok := e.state.Field.Forage(a.Position, e.cfg.Explorers.ForageRadius, q.Min, q.Max, e.rng)
	if ok {
		a.Resources += h.Amount
	}
	return h, ok
}

// nearestConsumer returns the Euclidean-nearest consumer; the first one in
// registry order wins ties. It returns nil when there are no consumers.
func (e *Economy) nearestConsumer(pos world.Point) *agents.Agent {
	var best *agents.Agent
	bestDist := math.Inf(1)
	for _, c := range e.state.Agents.ByRole(agents.RoleConsumer) {
		if d := world.Distance(pos, c.Position); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// sell moves the explorer's entire resource balance to the consumer at the
// current valuation and returns the amount sold.
func (e *Economy) sell(ex, c *agents.Agent) float64 {
	amount := ex.Resources
	price := amount * e.state.TokenValue

	c.Resources += amount
	c.Tokens -= price
	ex.Tokens += price
	ex.Resources = 0
	return amount
}
