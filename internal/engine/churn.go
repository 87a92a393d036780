// Population-level alliance churn, layered on top of per-interaction evaluation.
package engine

import (
	"github.com/talgya/tokensim/internal/agents"
	"github.com/talgya/tokensim/internal/social"
)

// churnAlliances proposes alliances between random representatives of every
// pair of role groups and breaks existing alliances at random.
func (e *Economy) churnAlliances(t *turnLog) {
	st := e.state
	formP := e.cfg.Alliances.FormProbability
	breakP := e.cfg.Alliances.BreakProbability

	for i := 0; i < agents.NumRoles; i++ {
		for j := i + 1; j < agents.NumRoles; j++ {
			if e.rng.Float64() >= formP {
				continue
			}
			g1 := st.Agents.ByRole(agents.Roles[i])
			g2 := st.Agents.ByRole(agents.Roles[j])
			if len(g1) == 0 || len(g2) == 0 {
				continue
			}
			a := g1[e.rng.Intn(len(g1))]
			b := g2[e.rng.Intn(len(g2))]
			switch st.Alliances.Form(a, b) {
			case social.ChangeFormed:
				t.formed++
				t.emit(CategoryAlliance, "%s and %s allied across %s and %s", a.ID, b.ID, agents.Roles[i], agents.Roles[j])
			case social.ChangeJoined:
				t.emit(CategoryAlliance, "%s and %s now share an alliance", a.ID, b.ID)
			}
		}
	}

	for _, id := range st.Alliances.IDs() {
		if e.rng.Float64() >= breakP {
			continue
		}
		if st.Alliances.Disband(id) {
			t.dissolved++
			t.emit(CategoryAlliance, "alliance %s broke apart", id)
		}
	}
}
