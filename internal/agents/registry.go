package agents

// Registry owns the agent population, grouped by role.
// Agents are never removed; iteration order is insertion order.
type Registry struct {
	all    []*Agent
	byRole [NumRoles][]*Agent
	index  map[AgentID]*Agent
}

// NewRegistry creates a registry holding the given agents.
func NewRegistry(ag []*Agent) *Registry {
	r := &Registry{index: make(map[AgentID]*Agent, len(ag))}
	for _, a := range ag {
		r.Add(a)
	}
	return r
}

// Add inserts an agent. An agent whose ID is already present replaces nothing
// and is ignored.
func (r *Registry) Add(a *Agent) bool {
	if _, exists := r.index[a.ID]; exists {
		return false
	}
	r.all = append(r.all, a)
	if int(a.Role) < NumRoles {
		r.byRole[a.Role] = append(r.byRole[a.Role], a)
	}
	r.index[a.ID] = a
	return true
}

// Get looks up an agent by ID.
func (r *Registry) Get(id AgentID) (*Agent, bool) {
	a, ok := r.index[id]
	return a, ok
}

// All returns every agent in insertion order. Callers must not modify the slice.
func (r *Registry) All() []*Agent {
	return r.all
}

// ByRole returns the agents of one role. Callers must not modify the slice.
func (r *Registry) ByRole(role Role) []*Agent {
	if int(role) >= NumRoles {
		return nil
	}
	return r.byRole[role]
}

// Len returns the population size.
func (r *Registry) Len() int {
	return len(r.all)
}

// TotalTokens sums token balances across the population.
func (r *Registry) TotalTokens() float64 {
	total := 0.0
	for _, a := range r.all {
		total += a.Tokens
	}
	return total
}

// TotalResources sums resource balances across the population.
func (r *Registry) TotalResources() float64 {
	total := 0.0
	for _, a := range r.all {
		total += a.Resources
	}
	return total
}
