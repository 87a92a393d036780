// Economy ties together the agent registry, alliances and resource field and
// advances them one turn at a time.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tokensim/internal/agents"
	"github.com/talgya/tokensim/internal/config"
	"github.com/talgya/tokensim/internal/economy"
	"github.com/talgya/tokensim/internal/social"
	"github.com/talgya/tokensim/internal/world"
)

// State is the complete mutable economy. It is only touched while holding
// the Economy lock; the turn scheduler is its single writer.
type State struct {
	Tick           uint64
	TotalResources float64 // Nominal resource pool, fixed at startup
	TokenValue     float64

	Agents    *agents.Registry
	Alliances *social.Manager
	Field     *world.Field
}

// TurnSummary reports aggregate figures after one turn.
type TurnSummary struct {
	Tick           uint64  `json:"tick"`
	TokenValue     float64 `json:"swt_value"`
	TotalTokens    float64 `json:"total_tokens"`
	HeldResources  float64 `json:"held_resources"`
	FieldResources float64 `json:"field_resources"`
	Deposits       int     `json:"deposits"`
	Alliances      int     `json:"alliances"`
	Interactions   int     `json:"interactions"`
	Foraged        float64 `json:"foraged"`
	Sales          int     `json:"sales"`
	Formed         int     `json:"formed"`
	Dissolved      int     `json:"dissolved"`
}

// Economy owns the State and serialises access to it. Turns take the write
// lock; snapshots take the read lock and copy.
type Economy struct {
	turnMu sync.Mutex // Held for a whole turn, including publishing
	mu     sync.RWMutex
	state  *State

	cfg    config.Config
	rng    *rand.Rand
	bounds world.Bounds
	edge   world.EdgePolicy
	rates  economy.Rates

	// AfterTurn is called after every turn with the turn's events, outside
	// the state lock. Populated during setup.
	AfterTurn func(TurnSummary, []Event)

	events *eventLog
}

// NewEconomy builds a fresh economy from cfg. Invalid configuration is the
// only error; it is fatal for the caller.
func NewEconomy(cfg config.Config, seed int64) (*Economy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))
	bounds := world.Bounds{Width: cfg.Grid.Width, Height: cfg.Grid.Height}

	field := world.GenerateField(world.GenConfig{
		Bounds:     bounds,
		Count:      cfg.Resources.Deposits,
		MinSize:    cfg.Resources.Size.Min,
		MaxSize:    cfg.Resources.Size.Max,
		NoiseScale: cfg.Resources.NoiseScale,
		Seed:       seed,
	}, rng)

	pop := agents.NewSpawner(rng, bounds).SpawnPopulation(cfg.Agents)
	reg := agents.NewRegistry(pop)

	st := &State{
		TotalResources: cfg.Resources.TotalNominal,
		TokenValue:     cfg.Valuation.Initial,
		Agents:         reg,
		Alliances:      social.NewManager(reg, cfg.Alliances.FormationThreshold),
		Field:          field,
	}

	e := newEconomy(cfg, st, rng)

	slog.Info("economy initialized",
		"agents", reg.Len(),
		"deposits", field.Len(),
		"grid", fmt.Sprintf("%dx%d", bounds.Width, bounds.Height),
		"edge", e.edge,
		"swt_value", st.TokenValue,
	)
	return e, nil
}

func newEconomy(cfg config.Config, st *State, rng *rand.Rand) *Economy {
	edge, _ := world.ParseEdgePolicy(cfg.Grid.Edge)
	return &Economy{
		state:  st,
		cfg:    cfg,
		rng:    rng,
		bounds: world.Bounds{Width: cfg.Grid.Width, Height: cfg.Grid.Height},
		edge:   edge,
		rates: economy.Rates{
			Favorable:   cfg.Interaction.FavorableRate,
			Unfavorable: cfg.Interaction.UnfavorableRate,
		},
		events: newEventLog(maxRecentEvents),
	}
}

// AdvanceTurn runs one full turn and returns its summary. Calls are
// serialised; a turn requested from outside the loop simply queues behind
// the running one.
func (e *Economy) AdvanceTurn() TurnSummary {
	e.turnMu.Lock()
	defer e.turnMu.Unlock()

	e.mu.Lock()
	summary, events := e.turn()
	e.mu.Unlock()

	for _, ev := range events {
		e.events.publish(ev)
	}
	s := summary
	e.events.publish(Event{
		Tick:        summary.Tick,
		Category:    CategoryTurn,
		Description: fmt.Sprintf("turn %d closed at %.4f", summary.Tick, summary.TokenValue),
		Summary:     &s,
	})

	if summary.Tick%uint64(e.cfg.Log.ReportEvery) == 0 {
		e.report(summary)
	}
	if e.AfterTurn != nil {
		e.AfterTurn(summary, events)
	}
	return summary
}

// turn advances the state. Caller holds the write lock.
func (e *Economy) turn() (TurnSummary, []Event) {
	st := e.state
	st.Tick++
	t := &turnLog{tick: st.Tick}

	// 1. Explorers roam, forage and sell.
	e.moveExplorers(t)

	// 2. Every other agent trades with one random counterpart.
	e.dispatchInteractions(t)

	// 3. Consumers cannot stay in debt across turns.
	e.clampConsumers()

	// 4. Token valuation from aggregate supply.
	totalTokens := st.Agents.TotalTokens()
	st.TokenValue = economy.Valuation(st.TotalResources, totalTokens, e.cfg.Valuation.Floor)

	// 5. Population-level alliance churn.
	if e.cfg.Alliances.Churn {
		e.churnAlliances(t)
	}

	summary := TurnSummary{
		Tick:           st.Tick,
		TokenValue:     st.TokenValue,
		TotalTokens:    totalTokens,
		HeldResources:  st.Agents.TotalResources(),
		FieldResources: st.Field.Total(),
		Deposits:       st.Field.Len(),
		Alliances:      st.Alliances.Len(),
		Interactions:   t.interactions,
		Foraged:        t.foraged,
		Sales:          t.sales,
		Formed:         t.formed,
		Dissolved:      t.dissolved,
	}
	slog.Debug("turn complete",
		"tick", summary.Tick,
		"swt_value", summary.TokenValue,
		"interactions", summary.Interactions,
		"alliances", summary.Alliances,
	)
	return summary, t.events
}

// dispatchInteractions pairs every non-explorer agent with a uniformly chosen
// counterpart other than itself.
func (e *Economy) dispatchInteractions(t *turnLog) {
	all := e.state.Agents.All()
	if len(all) < 2 {
		return
	}
	for i, a := range all {
		if a.Role == agents.RoleExplorer {
			continue
		}
		j := e.rng.Intn(len(all) - 1)
		if j >= i {
			j++
		}
		e.interact(a, all[j], t)
	}
}

// clampConsumers lifts negative consumer balances back to zero.
func (e *Economy) clampConsumers() {
	for _, a := range e.state.Agents.ByRole(agents.RoleConsumer) {
		if a.Tokens < 0 {
			a.Tokens = 0
		}
	}
}

func (e *Economy) report(s TurnSummary) {
	slog.Info("economy report",
		"tick", s.Tick,
		"swt_value", fmt.Sprintf("%.4f", s.TokenValue),
		"total_tokens", humanize.Commaf(math.Round(s.TotalTokens)),
		"held_resources", humanize.Commaf(math.Round(s.HeldResources)),
		"field_resources", humanize.Commaf(math.Round(s.FieldResources)),
		"deposits", s.Deposits,
		"alliances", s.Alliances,
	)
}

// Tick returns the number of the last completed turn.
func (e *Economy) Tick() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Tick
}

// TokenValue returns the current token valuation.
func (e *Economy) TokenValue() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.TokenValue
}

// turnLog accumulates per-turn counters and events.
type turnLog struct {
	tick         uint64
	interactions int
	foraged      float64
	sales        int
	formed       int
	dissolved    int
	events       []Event
}

func (t *turnLog) emit(category, format string, args ...any) {
	t.events = append(t.events, Event{
		Tick:        t.tick,
		Category:    category,
		Description: fmt.Sprintf(format, args...),
	})
}
