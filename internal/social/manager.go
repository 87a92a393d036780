// Alliance lifecycle: formation from trade history, breakup on defection.
package social

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/tokensim/internal/agents"
)

// AgentResolver looks agents up by id.
type AgentResolver interface {
	Get(id agents.AgentID) (*agents.Agent, bool)
}

// Manager owns every alliance and is the only writer of Agent.AllianceID.
type Manager struct {
	agents    AgentResolver
	threshold uint64

	alliances map[AllianceID]*Alliance
	order     []AllianceID // Formation order, for stable listings
	newID     func() AllianceID
}

// NewManager creates an empty alliance registry. threshold is the number of
// recorded interactions both agents must exceed before trade can bind them.
func NewManager(resolver AgentResolver, threshold int) *Manager {
	if threshold < 0 {
		threshold = 0
	}
	return &Manager{
		agents:    resolver,
		threshold: uint64(threshold),
		alliances: make(map[AllianceID]*Alliance),
		newID:     uuid.New,
	}
}

// Evaluate runs the per-interaction alliance checks. The most recent record
// a1 holds about a2 decides: a trade may form or extend an alliance once
// both agents are past the threshold, a cheat breaks a shared alliance.
func (m *Manager) Evaluate(a1, a2 *agents.Agent) Change {
	last, ok := agents.LastOutcomeWith(a1, a2.ID)
	if !ok {
		return ChangeNone
	}

	change := ChangeNone
	if last == agents.OutcomeTrade && a1.Recorded > m.threshold && a2.Recorded > m.threshold {
		change = m.Form(a1, a2)
	}
	if last == agents.OutcomeCheat {
		change = m.Dissolve(a1, a2)
	}
	return change
}

// Form binds two agents. Neither allied: a new alliance is created. One
// allied: the other joins it. Same alliance, or two different alliances:
// nothing happens (alliances are never merged).
func (m *Manager) Form(a1, a2 *agents.Agent) Change {
	if a1.ID == a2.ID {
		return ChangeNone
	}
	switch {
	case a1.AllianceID == nil && a2.AllianceID == nil:
		al := &Alliance{ID: m.newID(), Members: []agents.AgentID{a1.ID, a2.ID}}
		m.alliances[al.ID] = al
		m.order = append(m.order, al.ID)
		m.assign(a1, al.ID)
		m.assign(a2, al.ID)
		return ChangeFormed

	case a1.AllianceID != nil && a2.AllianceID == nil:
		return m.join(a2, *a1.AllianceID)

	case a1.AllianceID == nil && a2.AllianceID != nil:
		return m.join(a1, *a2.AllianceID)
	}
	return ChangeNone
}

func (m *Manager) join(a *agents.Agent, id AllianceID) Change {
	al, ok := m.alliances[id]
	if !ok {
		return ChangeNone
	}
	al.Members = append(al.Members, a.ID)
	m.assign(a, id)
	return ChangeJoined
}

// Dissolve removes both agents from their shared alliance. If fewer than two
// members remain the alliance is deleted and the last member released too.
// Agents in different alliances, or unaffiliated, are left alone.
func (m *Manager) Dissolve(a1, a2 *agents.Agent) Change {
	if !agents.SameAlliance(a1, a2) {
		return ChangeNone
	}
	id := *a1.AllianceID
	al, ok := m.alliances[id]
	if !ok {
		return ChangeNone
	}

	al.remove(a1.ID)
	al.remove(a2.ID)
	a1.AllianceID = nil
	a2.AllianceID = nil

	if len(al.Members) < 2 {
		m.delete(id)
		return ChangeDissolved
	}
	return ChangeLeft
}

// Disband deletes an alliance outright, releasing every member.
func (m *Manager) Disband(id AllianceID) bool {
	if _, ok := m.alliances[id]; !ok {
		return false
	}
	m.delete(id)
	return true
}

func (m *Manager) delete(id AllianceID) {
	al := m.alliances[id]
	for _, member := range al.Members {
		if a, ok := m.agents.Get(member); ok && a.AllianceID != nil && *a.AllianceID == id {
			a.AllianceID = nil
		}
	}
	delete(m.alliances, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Manager) assign(a *agents.Agent, id AllianceID) {
	aid := id
	a.AllianceID = &aid
}

// Standing classifies the pair for rate selection. It never mutates state.
func (m *Manager) Standing(a1, a2 *agents.Agent) Standing {
	switch {
	case agents.SameAlliance(a1, a2):
		return StandingAllied
	case a1.Allied() != a2.Allied():
		return StandingOutsider
	default:
		return StandingNeutral
	}
}

// Get returns an alliance by id.
func (m *Manager) Get(id AllianceID) (*Alliance, bool) {
	al, ok := m.alliances[id]
	return al, ok
}

// All returns the alliances in formation order.
func (m *Manager) All() []*Alliance {
	out := make([]*Alliance, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.alliances[id])
	}
	return out
}

// IDs returns the alliance ids in formation order.
func (m *Manager) IDs() []AllianceID {
	return append([]AllianceID(nil), m.order...)
}

// Len returns the number of live alliances.
func (m *Manager) Len() int {
	return len(m.alliances)
}

// Verify checks the membership invariants: every alliance has at least two
// members, every member points back at it, and every agent reference
// resolves to an alliance that lists the agent.
func (m *Manager) Verify(population []*agents.Agent) error {
	for _, id := range m.order {
		al, ok := m.alliances[id]
		if !ok {
			return fmt.Errorf("alliance %s listed but missing", id)
		}
		if len(al.Members) < 2 {
			return fmt.Errorf("alliance %s has %d members", id, len(al.Members))
		}
		for _, member := range al.Members {
			a, ok := m.agents.Get(member)
			if !ok {
				return fmt.Errorf("alliance %s lists unknown agent %s", id, member)
			}
			if a.AllianceID == nil || *a.AllianceID != id {
				return fmt.Errorf("agent %s listed in %s but does not reference it", member, id)
			}
		}
	}
	if len(m.order) != len(m.alliances) {
		return fmt.Errorf("alliance order has %d entries, registry %d", len(m.order), len(m.alliances))
	}
	for _, a := range population {
		if a.AllianceID == nil {
			continue
		}
		al, ok := m.alliances[*a.AllianceID]
		if !ok {
			return fmt.Errorf("agent %s references dissolved alliance %s", a.ID, *a.AllianceID)
		}
		if !al.Has(a.ID) {
			return fmt.Errorf("agent %s references %s but is not a member", a.ID, al.ID)
		}
	}
	return nil
}
