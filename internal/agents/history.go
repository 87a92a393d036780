// Interaction history, what an agent remembers about its counterparties.
package agents

import "fmt"

// Outcome tags a recorded interaction.
type Outcome uint8

const (
	OutcomeTrade Outcome = iota // A completed token trade
	OutcomeCheat                // The counterparty defaulted on its balance
)

func (o Outcome) String() string {
	if o == OutcomeCheat {
		return "cheat"
	}
	return "trade"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "trade":
		*o = OutcomeTrade
	case "cheat":
		*o = OutcomeCheat
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Interaction is one entry of an agent's history.
type Interaction struct {
	Tick         uint64  `json:"tick"`
	Counterparty AgentID `json:"counterparty"`
	Outcome      Outcome `json:"outcome"`
}

// DefaultHistoryCap bounds History when no cap is configured.
const DefaultHistoryCap = 64

// Record appends an interaction. Once History holds limit entries the oldest
// one is evicted; Recorded keeps counting regardless.
func Record(a *Agent, tick uint64, counterparty AgentID, outcome Outcome, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryCap
	}
	entry := Interaction{Tick: tick, Counterparty: counterparty, Outcome: outcome}
	a.Recorded++

	if len(a.History) < limit {
		a.History = append(a.History, entry)
		return
	}
	n := copy(a.History, a.History[len(a.History)-limit+1:])
	a.History = append(a.History[:n], entry)
}

// LastOutcomeWith returns the most recent outcome recorded about counterparty.
func LastOutcomeWith(a *Agent, counterparty AgentID) (Outcome, bool) {
	for i := len(a.History) - 1; i >= 0; i-- {
		if a.History[i].Counterparty == counterparty {
			return a.History[i].Outcome, true
		}
	}
	return 0, false
}
