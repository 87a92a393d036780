// Agent spawning: creates the initial population with starting balances and positions.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/tokensim/internal/config"
	"github.com/talgya/tokensim/internal/world"
)

// Spawner creates agents for the economy.
type Spawner struct {
	rng    *rand.Rand
	bounds world.Bounds
	next   [NumRoles]int
}

// NewSpawner creates a spawner placing agents inside bounds.
func NewSpawner(rng *rand.Rand, bounds world.Bounds) *Spawner {
	return &Spawner{rng: rng, bounds: bounds}
}

// SpawnPopulation creates every role group in registry order.
func (s *Spawner) SpawnPopulation(cfg config.AgentsConfig) []*Agent {
	groups := [NumRoles]config.RoleConfig{cfg.Traders, cfg.Consumers, cfg.Producers, cfg.Explorers, cfg.Governors}

	var out []*Agent
	for _, role := range Roles {
		rc := groups[role]
		for i := 0; i < rc.Count; i++ {
			out = append(out, s.SpawnOne(role, rc))
		}
	}
	return out
}

// SpawnOne creates a single agent of the given role.
func (s *Spawner) SpawnOne(role Role, rc config.RoleConfig) *Agent {
	id := AgentID(fmt.Sprintf("%s_%d", role.Group(), s.next[role]))
	s.next[role]++

	return &Agent{
		ID:        id,
		Role:      role,
		Tokens:    float64(s.draw(rc.Tokens)),
		Resources: float64(s.draw(rc.Resources)),
		Position:  world.RandomPoint(s.bounds, s.rng),
	}
}

func (s *Spawner) draw(r config.IntRange) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + s.rng.Intn(r.Max-r.Min+1)
}
