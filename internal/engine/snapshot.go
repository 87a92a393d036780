// Read-only views of the economy for external consumers.
package engine

import (
	"github.com/talgya/tokensim/internal/agents"
	"github.com/talgya/tokensim/internal/world"
)

// AgentView is the serialisable state of one agent.
type AgentView struct {
	ID           agents.AgentID `json:"id"`
	Type         string         `json:"type"`
	Tokens       float64        `json:"swt"`
	Resources    float64        `json:"resources"`
	Position     world.Point    `json:"position"`
	AllianceID   string         `json:"alliance_id,omitempty"`
	Interactions uint64         `json:"interactions"`
}

// AgentDetail adds the bounded interaction history to an AgentView.
type AgentDetail struct {
	AgentView
	History []agents.Interaction `json:"history"`
}

// AllianceView lists an alliance's members.
type AllianceView struct {
	ID      string           `json:"id"`
	Members []agents.AgentID `json:"members"`
}

// Snapshot is an immutable copy of the whole economy at the end of a turn.
type Snapshot struct {
	Tick           uint64                 `json:"tick"`
	Agents         map[string][]AgentView `json:"agents"`
	Alliances      []AllianceView         `json:"alliances"`
	Resources      []world.Deposit        `json:"resources"`
	TokenValue     float64                `json:"swt_value"`
	TotalResources float64                `json:"total_resources"`
}

// Status is a compact summary of the economy.
type Status struct {
	Tick        uint64         `json:"tick"`
	TokenValue  float64        `json:"swt_value"`
	TotalTokens float64        `json:"total_tokens"`
	Population  map[string]int `json:"population"`
	Alliances   int            `json:"alliances"`
	Deposits    int            `json:"deposits"`
}

// Snapshot copies the current state. It never observes a turn in progress,
// and two calls without a turn in between return equal data.
func (e *Economy) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := e.state
	snap := Snapshot{
		Tick:           st.Tick,
		Agents:         make(map[string][]AgentView, agents.NumRoles),
		Alliances:      make([]AllianceView, 0, st.Alliances.Len()),
		Resources:      st.Field.Deposits(),
		TokenValue:     st.TokenValue,
		TotalResources: st.TotalResources,
	}
	for _, role := range agents.Roles {
		group := st.Agents.ByRole(role)
		views := make([]AgentView, 0, len(group))
		for _, a := range group {
			views = append(views, viewOf(a))
		}
		snap.Agents[role.Group()] = views
	}
	for _, al := range st.Alliances.All() {
		snap.Alliances = append(snap.Alliances, AllianceView{
			ID:      al.ID.String(),
			Members: append([]agents.AgentID(nil), al.Members...),
		})
	}
	return snap
}

// Agent returns one agent with its history.
func (e *Economy) Agent(id agents.AgentID) (AgentDetail, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.state.Agents.Get(id)
	if !ok {
		return AgentDetail{}, false
	}
	return AgentDetail{
		AgentView: viewOf(a),
		History:   append([]agents.Interaction{}, a.History...),
	}, true
}

// Status returns aggregate counters.
func (e *Economy) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := e.state
	pop := make(map[string]int, agents.NumRoles)
	for _, role := range agents.Roles {
		pop[role.Group()] = len(st.Agents.ByRole(role))
	}
	return Status{
		Tick:        st.Tick,
		TokenValue:  st.TokenValue,
		TotalTokens: st.Agents.TotalTokens(),
		Population:  pop,
		Alliances:   st.Alliances.Len(),
		Deposits:    st.Field.Len(),
	}
}

func viewOf(a *agents.Agent) AgentView {
	v := AgentView{
		ID:           a.ID,
		Type:         a.Role.Group(),
		Tokens:       a.Tokens,
		Resources:    a.Resources,
		Position:     a.Position,
		Interactions: a.Recorded,
	}
	if a.AllianceID != nil {
		v.AllianceID = a.AllianceID.String()
	}
	return v
}
