package engine

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/talgya/tokensim/internal/agents"
	"github.com/talgya/tokensim/internal/config"
	"github.com/talgya/tokensim/internal/social"
	"github.com/talgya/tokensim/internal/world"
)

// quietConfig is a config with no gas and no churn so balances are exact.
func quietConfig() config.Config {
	cfg := config.Default()
	cfg.Grid = config.GridConfig{Width: 1, Height: 1, Edge: "wrap"}
	cfg.Interaction.Cost = 0
	cfg.Alliances.Churn = false
	return cfg
}

func testEconomy(t *testing.T, cfg config.Config, pop []*agents.Agent, deposits []world.Deposit) *Economy {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	reg := agents.NewRegistry(pop)
	st := &State{
		TotalResources: cfg.Resources.TotalNominal,
		TokenValue:     cfg.Valuation.Initial,
		Agents:         reg,
		Alliances:      social.NewManager(reg, cfg.Alliances.FormationThreshold),
		Field:          world.NewField(deposits),
	}
	return newEconomy(cfg, st, rand.New(rand.NewSource(1)))
}

func agent(id string, role agents.Role, tokens, resources float64) *agents.Agent {
	return &agents.Agent{ID: agents.AgentID(id), Role: role, Tokens: tokens, Resources: resources}
}

func TestExplorerSellsToNearestConsumer(t *testing.T) {
	ex := agent("explorers_0", agents.RoleExplorer, 10, 20)
	c := agent("consumers_0", agents.RoleConsumer, 100, 5)
	e := testEconomy(t, quietConfig(), []*agents.Agent{c, ex}, nil)

	e.AdvanceTurn()

	if ex.Resources != 0 {
		t.Fatalf("explorer resources = %v, want 0", ex.Resources)
	}
	if c.Resources != 25 {
		t.Fatalf("consumer resources = %v, want 25", c.Resources)
	}
	if c.Tokens != 80 {
		t.Fatalf("consumer tokens = %v, want 80", c.Tokens)
	}
	if ex.Tokens != 30 {
		t.Fatalf("explorer tokens = %v, want 30", ex.Tokens)
	}
}

func TestExplorerBelowCutoffKeepsHaul(t *testing.T) {
	ex := agent("explorers_0", agents.RoleExplorer, 10, 19)
	c := agent("consumers_0", agents.RoleConsumer, 100, 0)
	e := testEconomy(t, quietConfig(), []*agents.Agent{c, ex}, nil)

	e.AdvanceTurn()

	if ex.Resources != 19 || c.Resources != 0 {
		t.Fatalf("unexpected sale: explorer=%v consumer=%v", ex.Resources, c.Resources)
	}
}

func TestExplorerForagesOnItsCell(t *testing.T) {
	cfg := quietConfig()
	cfg.Explorers.ForageQuantity = config.IntRange{Min: 4, Max: 4}
	ex := agent("explorers_0", agents.RoleExplorer, 10, 0)
	e := testEconomy(t, cfg, []*agents.Agent{ex}, []world.Deposit{{Size: 6}})

	s := e.AdvanceTurn()
	if ex.Resources != 4 || s.Foraged != 4 {
		t.Fatalf("first forage: resources=%v foraged=%v", ex.Resources, s.Foraged)
	}
	e.AdvanceTurn()
	if ex.Resources != 6 {
		t.Fatalf("second forage: resources=%v, want 6", ex.Resources)
	}
	if n := e.Snapshot().Resources; len(n) != 0 {
		t.Fatalf("depleted deposit still listed: %v", n)
	}
}

func TestValuationFloorWhenNoTokens(t *testing.T) {
	cfg := quietConfig()
	g1 := agent("governors_0", agents.RoleGovernor, 0, 0)
	g2 := agent("governors_1", agents.RoleGovernor, 0, 0)
	e := testEconomy(t, cfg, []*agents.Agent{g1, g2}, nil)

	s := e.AdvanceTurn()
	if s.TokenValue != cfg.Valuation.Floor {
		t.Fatalf("valuation = %v, want floor %v", s.TokenValue, cfg.Valuation.Floor)
	}
	if math.IsNaN(e.TokenValue()) || math.IsInf(e.TokenValue(), 0) {
		t.Fatalf("valuation not finite: %v", e.TokenValue())
	}
}

func TestGovernorAbsorbsExplorerResources(t *testing.T) {
	for _, initiatorIsGovernor := range []bool{true, false} {
		t.Run(fmt.Sprintf("governor_first=%v", initiatorIsGovernor), func(t *testing.T) {
			g := agent("governors_0", agents.RoleGovernor, 500, 3)
			ex := agent("explorers_0", agents.RoleExplorer, 10, 10)
			e := testEconomy(t, quietConfig(), []*agents.Agent{g, ex}, nil)

			tl := &turnLog{}
			if initiatorIsGovernor {
				e.interact(g, ex, tl)
			} else {
				e.interact(ex, g, tl)
			}

			if ex.Resources != 0 {
				t.Fatalf("explorer resources = %v, want 0", ex.Resources)
			}
			if ex.Tokens != 30 {
				t.Fatalf("explorer tokens = %v, want 30", ex.Tokens)
			}
			if g.Resources != 13 {
				t.Fatalf("governor resources = %v, want 13", g.Resources)
			}
		})
	}
}

func TestGasChargedToBothSides(t *testing.T) {
	cfg := quietConfig()
	cfg.Interaction.Cost = 0.5
	g1 := agent("governors_0", agents.RoleGovernor, 10, 0)
	g2 := agent("governors_1", agents.RoleGovernor, 10, 0)
	e := testEconomy(t, cfg, []*agents.Agent{g1, g2}, nil)

	e.interact(g1, g2, &turnLog{})
	if g1.Tokens != 9.5 || g2.Tokens != 9.5 {
		t.Fatalf("tokens after gas: %v, %v", g1.Tokens, g2.Tokens)
	}
}

func TestSupplyRateByStanding(t *testing.T) {
	tests := []struct {
		name     string
		producer func(m *social.Manager, p, p2 *agents.Agent)
		consumer func(m *social.Manager, c, c2 *agents.Agent)
		want     float64
	}{
		{
			name: "neutral",
			want: 3,
		},
		{
			name:     "outsider",
			consumer: func(m *social.Manager, c, c2 *agents.Agent) { m.Form(c, c2) },
			want:     3.6,
		},
		{
			name:     "different alliances",
			producer: func(m *social.Manager, p, p2 *agents.Agent) { m.Form(p, p2) },
			consumer: func(m *social.Manager, c, c2 *agents.Agent) { m.Form(c, c2) },
			want:     3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := quietConfig()
			cfg.Interaction.ProductionQuantity = config.IntRange{Min: 3, Max: 3}
			cfg.Alliances.FormationThreshold = 1000

			p := agent("producers_0", agents.RoleProducer, 100, 50)
			p2 := agent("producers_1", agents.RoleProducer, 100, 50)
			c := agent("consumers_0", agents.RoleConsumer, 100, 0)
			c2 := agent("consumers_1", agents.RoleConsumer, 100, 0)
			e := testEconomy(t, cfg, []*agents.Agent{p, p2, c, c2}, nil)

			m := e.state.Alliances
			if tt.producer != nil {
				tt.producer(m, p, p2)
			}
			if tt.consumer != nil {
				tt.consumer(m, c, c2)
			}

			e.interact(c, p, &turnLog{})

			if math.Abs(c.Resources-tt.want) > 1e-9 {
				t.Fatalf("consumer received %v, want %v", c.Resources, tt.want)
			}
			if math.Abs((100-c.Tokens)-tt.want) > 1e-9 {
				t.Fatalf("consumer paid %v, want %v", 100-c.Tokens, tt.want)
			}
		})
	}
}

func TestAllianceFormsAfterRepeatedTrade(t *testing.T) {
	cfg := quietConfig()
	a1 := agent("traders_0", agents.RoleTrader, 100, 100)
	a2 := agent("traders_1", agents.RoleTrader, 100, 100)
	e := testEconomy(t, cfg, []*agents.Agent{a1, a2}, nil)

	for i := 0; i < 4; i++ {
		agents.Record(a1, 0, a2.ID, agents.OutcomeTrade, cfg.History.Cap)
		agents.Record(a2, 0, a1.ID, agents.OutcomeTrade, cfg.History.Cap)
	}

	tl := &turnLog{}
	e.interact(a1, a2, tl)

	if !agents.SameAlliance(a1, a2) {
		t.Fatalf("expected a shared alliance, got %v and %v", a1.AllianceID, a2.AllianceID)
	}
	if tl.formed != 1 {
		t.Fatalf("formed = %d, want 1", tl.formed)
	}
	if err := e.state.Alliances.Verify(e.state.Agents.All()); err != nil {
		t.Fatal(err)
	}
}

func TestDebtorIsRecordedAsCheat(t *testing.T) {
	p := agent("producers_0", agents.RoleProducer, 10, 50)
	c := agent("consumers_0", agents.RoleConsumer, 0.5, 0)
	e := testEconomy(t, quietConfig(), []*agents.Agent{p, c}, nil)
	e.state.Alliances.Form(p, c)

	tl := &turnLog{}
	e.interact(p, c, tl)

	if c.Tokens >= 0 {
		t.Fatalf("consumer tokens = %v, want debt", c.Tokens)
	}
	if out, ok := agents.LastOutcomeWith(p, c.ID); !ok || out != agents.OutcomeCheat {
		t.Fatalf("last outcome = %v, %v", out, ok)
	}
	if p.Allied() || c.Allied() || e.state.Alliances.Len() != 0 {
		t.Fatal("alliance should have dissolved")
	}
	if tl.dissolved != 1 {
		t.Fatalf("dissolved = %d, want 1", tl.dissolved)
	}
}

func TestGasDebtIsNotACheat(t *testing.T) {
	cfg := quietConfig()
	cfg.Interaction.Cost = 1
	g1 := agent("governors_0", agents.RoleGovernor, 10, 0)
	g2 := agent("governors_1", agents.RoleGovernor, 0.5, 0)
	e := testEconomy(t, cfg, []*agents.Agent{g1, g2}, nil)
	e.state.Alliances.Form(g1, g2)

	tl := &turnLog{}
	e.interact(g1, g2, tl)

	if g2.Tokens != -0.5 {
		t.Fatalf("tokens = %v, want -0.5", g2.Tokens)
	}
	if _, ok := agents.LastOutcomeWith(g1, g2.ID); ok {
		t.Fatal("gas debt recorded as an outcome")
	}
	if !agents.SameAlliance(g1, g2) || tl.dissolved != 0 {
		t.Fatal("alliance should survive gas debt")
	}
}

func TestConsumerDebtClampedAtTurnEnd(t *testing.T) {
	cfg := quietConfig()
	cfg.Interaction.Cost = 5
	c := agent("consumers_0", agents.RoleConsumer, 1, 0)
	g := agent("governors_0", agents.RoleGovernor, 1, 0)
	e := testEconomy(t, cfg, []*agents.Agent{c, g}, nil)

	e.AdvanceTurn()
	if c.Tokens != 0 {
		t.Fatalf("consumer tokens = %v, want 0", c.Tokens)
	}
	if g.Tokens >= 0 {
		t.Fatalf("governor debt should persist, got %v", g.Tokens)
	}
}

func TestNoSelfInteraction(t *testing.T) {
	cfg := quietConfig()
	cfg.Alliances.FormationThreshold = 1 << 20
	pop := make([]*agents.Agent, 0, 3)
	for i := 0; i < 3; i++ {
		pop = append(pop, agent(fmt.Sprintf("traders_%d", i), agents.RoleTrader, 1000, 1000))
	}
	e := testEconomy(t, cfg, pop, nil)

	for i := 0; i < 50; i++ {
		s := e.AdvanceTurn()
		if s.Interactions != len(pop) {
			t.Fatalf("turn %d: %d interactions, want %d", s.Tick, s.Interactions, len(pop))
		}
	}
	for _, a := range pop {
		for _, rec := range a.History {
			if rec.Counterparty == a.ID {
				t.Fatalf("%s recorded an interaction with itself", a.ID)
			}
		}
	}
}

func TestInvariantsHoldOverManyTurns(t *testing.T) {
	cfg := config.Default()
	cfg.Alliances.FormProbability = 0.5
	cfg.Alliances.BreakProbability = 0.1
	e, err := NewEconomy(cfg, 7)
	if err != nil {
		t.Fatal(err)
	}
	want := e.Status().Population
	roles := make(map[agents.AgentID]agents.Role)
	for _, a := range e.state.Agents.All() {
		roles[a.ID] = a.Role
	}

	for i := 0; i < 200; i++ {
		s := e.AdvanceTurn()
		if s.TokenValue < cfg.Valuation.Floor || math.IsNaN(s.TokenValue) {
			t.Fatalf("turn %d: valuation %v", s.Tick, s.TokenValue)
		}
		if err := e.state.Alliances.Verify(e.state.Agents.All()); err != nil {
			t.Fatalf("turn %d: %v", s.Tick, err)
		}
		for _, c := range e.state.Agents.ByRole(agents.RoleConsumer) {
			if c.Tokens < 0 {
				t.Fatalf("turn %d: consumer %s in debt", s.Tick, c.ID)
			}
		}
		for _, d := range e.state.Field.Deposits() {
			if d.Size <= 0 {
				t.Fatalf("turn %d: empty deposit left in field", s.Tick)
			}
		}
		for _, a := range e.state.Agents.All() {
			if len(a.History) > cfg.History.Cap {
				t.Fatalf("turn %d: %s history %d over cap", s.Tick, a.ID, len(a.History))
			}
		}
	}
	if got := e.Status().Population; !reflect.DeepEqual(got, want) {
		t.Fatalf("population changed: %v -> %v", want, got)
	}
	for _, a := range e.state.Agents.All() {
		if a.Role != roles[a.ID] {
			t.Fatalf("%s changed role: %v -> %v", a.ID, roles[a.ID], a.Role)
		}
	}
	if len(roles) != e.state.Agents.Len() {
		t.Fatalf("agents = %d, want %d", e.state.Agents.Len(), len(roles))
	}
	if e.Tick() != 200 {
		t.Fatalf("tick = %d, want 200", e.Tick())
	}
}

func TestSnapshotsConsistentWhileTurnsRun(t *testing.T) {
	cfg := config.Default()
	cfg.Alliances.FormProbability = 0.5
	cfg.Alliances.BreakProbability = 0.1
	e, err := NewEconomy(cfg, 21)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 250; i++ {
			e.AdvanceTurn()
		}
	}()

	check := func(snap Snapshot) error {
		allied := make(map[agents.AgentID]string)
		for _, group := range snap.Agents {
			for _, a := range group {
				if a.AllianceID != "" {
					allied[a.ID] = a.AllianceID
				}
			}
		}
		members := 0
		for _, al := range snap.Alliances {
			if len(al.Members) < 2 {
				return fmt.Errorf("tick %d: alliance %s has %d members", snap.Tick, al.ID, len(al.Members))
			}
			for _, m := range al.Members {
				if allied[m] != al.ID {
					return fmt.Errorf("tick %d: %s lists alliance %q, member of %s", snap.Tick, m, allied[m], al.ID)
				}
			}
			members += len(al.Members)
		}
		if members != len(allied) {
			return fmt.Errorf("tick %d: %d allied agents, %d alliance members", snap.Tick, len(allied), members)
		}
		return nil
	}

	reads := 0
	for running := true; running; reads++ {
		select {
		case <-done:
			running = false
		default:
		}
		if err := check(e.Snapshot()); err != nil {
			t.Fatal(err)
		}
		if st := e.Status(); st.TokenValue < cfg.Valuation.Floor {
			t.Fatalf("tick %d: valuation %v below floor", st.Tick, st.TokenValue)
		}
		e.RecentEvents(20, "")
	}
	if e.Tick() != 250 {
		t.Fatalf("tick = %d, want 250", e.Tick())
	}
	t.Logf("%d concurrent reads", reads)
}

func TestSameSeedSameRun(t *testing.T) {
	run := func() Snapshot {
		e, err := NewEconomy(config.Default(), 99)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			e.AdvanceTurn()
		}
		return e.Snapshot()
	}
	a, b := run(), run()
	// Alliance ids are random uuids; compare everything else.
	a.Alliances, b.Alliances = nil, nil
	for _, group := range []Snapshot{a, b} {
		for _, views := range group.Agents {
			for i := range views {
				views[i].AllianceID = ""
			}
		}
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different economies")
	}
}

func TestSnapshotIsStableBetweenTurns(t *testing.T) {
	e, err := NewEconomy(config.Default(), 3)
	if err != nil {
		t.Fatal(err)
	}
	e.AdvanceTurn()

	s1 := e.Snapshot()
	s2 := e.Snapshot()
	if !reflect.DeepEqual(s1, s2) {
		t.Fatal("snapshots differ without an intervening turn")
	}

	// Mutating a snapshot must not leak into the economy.
	s1.Agents["traders"][0].Tokens = -1
	if e.Snapshot().Agents["traders"][0].Tokens == -1 {
		t.Fatal("snapshot shares memory with state")
	}
}

func TestSnapshotListsEveryGroup(t *testing.T) {
	e := testEconomy(t, quietConfig(), []*agents.Agent{agent("traders_0", agents.RoleTrader, 1, 1)}, nil)
	snap := e.Snapshot()
	for _, role := range agents.Roles {
		views, ok := snap.Agents[role.Group()]
		if !ok || views == nil {
			t.Fatalf("group %s missing from snapshot", role.Group())
		}
	}
	if snap.Alliances == nil || snap.Resources == nil {
		t.Fatal("empty lists must encode as [] not null")
	}
}

func TestAgentDetail(t *testing.T) {
	a1 := agent("traders_0", agents.RoleTrader, 1, 1)
	e := testEconomy(t, quietConfig(), []*agents.Agent{a1}, nil)
	agents.Record(a1, 1, "traders_9", agents.OutcomeTrade, 8)

	d, ok := e.Agent("traders_0")
	if !ok {
		t.Fatal("agent not found")
	}
	if d.Type != "traders" || d.Interactions != 1 || len(d.History) != 1 {
		t.Fatalf("detail = %+v", d)
	}
	d.History[0].Counterparty = "x"
	if a1.History[0].Counterparty != "traders_9" {
		t.Fatal("detail history shares memory with state")
	}
	if _, ok := e.Agent("nobody"); ok {
		t.Fatal("unknown agent found")
	}
}

func TestTurnEventsReachSubscribers(t *testing.T) {
	e := testEconomy(t, quietConfig(), []*agents.Agent{agent("governors_0", agents.RoleGovernor, 1, 0)}, nil)
	id, ch := e.Subscribe()

	var got TurnSummary
	e.AfterTurn = func(s TurnSummary, _ []Event) { got = s }
	e.AdvanceTurn()

	ev := <-ch
	if ev.Category != CategoryTurn || ev.Summary == nil || ev.Summary.Tick != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if got.Tick != 1 {
		t.Fatalf("AfterTurn saw tick %d", got.Tick)
	}
	if recent := e.RecentEvents(10, CategoryTurn); len(recent) != 1 {
		t.Fatalf("recent turn events = %d, want 1", len(recent))
	}

	e.Unsubscribe(id)
	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}
}
