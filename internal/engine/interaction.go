// Pairwise interactions: gas, rate selection and the role-pair rules.
package engine

import (
	"github.com/talgya/tokensim/internal/agents"
	"github.com/talgya/tokensim/internal/config"
	"github.com/talgya/tokensim/internal/social"
)

// interact executes one interaction initiated by a1 against a2.
// Balances may go negative; only consumer debt is clamped, at turn end.
func (e *Economy) interact(a1, a2 *agents.Agent, t *turnLog) {
	st := e.state
	t.interactions++

	// Gas: both sides pay regardless of outcome.
	cost := e.cfg.Interaction.Cost
	a1.Tokens -= cost
	a2.Tokens -= cost

	rate := e.rates.For(st.Alliances.Standing(a1, a2))
	afterGas := a2.Tokens

	// Rules are checked in priority order and only the first match runs.
	switch {
	case a1.Role == agents.RoleTrader || a2.Role == agents.RoleTrader:
		e.trade(a1, a2, rate)

	case isPair(a1, a2, agents.RoleProducer, agents.RoleConsumer):
		producer, consumer := order(a1, a2, agents.RoleProducer)
		e.supply(producer, consumer, rate)

	case isPair(a1, a2, agents.RoleGovernor, agents.RoleExplorer):
		governor, explorer := order(a1, a2, agents.RoleGovernor)
		e.extract(governor, explorer)
	}

	// A counterparty the exchange itself pushed into debt has defaulted.
	// Debt from gas alone is not a default; the turn-end clamp clears it
	// for consumers.
	if a2.Tokens < 0 && a2.Tokens < afterGas {
		agents.Record(a1, st.Tick, a2.ID, agents.OutcomeCheat, e.cfg.History.Cap)
	}

	switch change := st.Alliances.Evaluate(a1, a2); change {
	case social.ChangeFormed:
		t.formed++
		t.emit(CategoryAlliance, "%s and %s formed an alliance", a1.ID, a2.ID)
	case social.ChangeJoined:
		t.emit(CategoryAlliance, "%s and %s now share an alliance", a1.ID, a2.ID)
	case social.ChangeLeft:
		t.emit(CategoryAlliance, "%s and %s left their alliance after a default", a1.ID, a2.ID)
	case social.ChangeDissolved:
		t.dissolved++
		t.emit(CategoryAlliance, "alliance of %s and %s dissolved after a default", a1.ID, a2.ID)
	}
}

// trade is the trader rule: half the time the initiator pays tokens and logs
// the trade, otherwise it hands over resources without a record.
func (e *Economy) trade(a1, a2 *agents.Agent, rate float64) {
	qty := float64(e.draw(e.cfg.Interaction.TradeQuantity)) * rate

	if e.rng.Intn(2) == 0 {
		a1.Tokens -= qty
		a2.Tokens += qty
		agents.Record(a1, e.state.Tick, a2.ID, agents.OutcomeTrade, e.cfg.History.Cap)
		return
	}
	a1.Resources -= qty
	a2.Resources += qty
}

// supply is the producer-consumer rule: resources flow to the consumer,
// tokens at the current valuation flow back.
func (e *Economy) supply(producer, consumer *agents.Agent, rate float64) {
	qty := float64(e.draw(e.cfg.Interaction.ProductionQuantity))
	amount := qty * rate
	price := qty * e.state.TokenValue * rate

	producer.Resources -= amount
	consumer.Resources += amount
	consumer.Tokens -= price
	producer.Tokens += price

	agents.Record(producer, e.state.Tick, consumer.ID, agents.OutcomeTrade, e.cfg.History.Cap)
}

// extract is the governor rule: the governor takes every resource the
// explorer holds and the explorer is paid in newly issued tokens.
func (e *Economy) extract(governor, explorer *agents.Agent) {
	absorbed := explorer.Resources
	governor.Resources += absorbed
	explorer.Tokens += absorbed * e.cfg.Interaction.GovernorCompensation
	explorer.Resources = 0
}

// draw returns a uniform integer in r.
func (e *Economy) draw(r config.IntRange) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + e.rng.Intn(r.Max-r.Min+1)
}

// isPair reports whether {a1, a2} is exactly one x and one y.
func isPair(a1, a2 *agents.Agent, x, y agents.Role) bool {
	return (a1.Role == x && a2.Role == y) || (a1.Role == y && a2.Role == x)
}

// order returns the agent with role first, then the other one.
func order(a1, a2 *agents.Agent, first agents.Role) (*agents.Agent, *agents.Agent) {
	if a1.Role == first {
		return a1, a2
	}
	return a2, a1
}
