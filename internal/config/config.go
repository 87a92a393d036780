// Package config loads the economy configuration from YAML.
// Values are read once at startup; there is no hot reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// IntRange is an inclusive integer range [Min, Max].
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// RoleConfig controls the initial population of one role group.
type RoleConfig struct {
	Count     int      `yaml:"count"`
	Tokens    IntRange `yaml:"tokens"`
	Resources IntRange `yaml:"resources"`
}

// Config is the full configuration surface of the economy.
type Config struct {
	Seed         int64         `yaml:"seed"` // 0 = draw from crypto/rand
	TurnInterval time.Duration `yaml:"turn_interval"`

	Grid        GridConfig        `yaml:"grid"`
	Agents      AgentsConfig      `yaml:"agents"`
	Resources   ResourcesConfig   `yaml:"resources"`
	Interaction InteractionConfig `yaml:"interaction"`
	Alliances   AlliancesConfig   `yaml:"alliances"`
	Explorers   ExplorersConfig   `yaml:"explorers"`
	Valuation   ValuationConfig   `yaml:"valuation"`
	History     HistoryConfig     `yaml:"history"`

	API    APIConfig    `yaml:"api"`
	Ledger LedgerConfig `yaml:"ledger"`
	Log    LogConfig    `yaml:"log"`
}

type GridConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Edge   string `yaml:"edge"` // "wrap" or "clamp"
}

type AgentsConfig struct {
	Traders   RoleConfig `yaml:"traders"`
	Consumers RoleConfig `yaml:"consumers"`
	Producers RoleConfig `yaml:"producers"`
	Explorers RoleConfig `yaml:"explorers"`
	Governors RoleConfig `yaml:"governors"`
}

type ResourcesConfig struct {
	TotalNominal float64  `yaml:"total_nominal"`
	Deposits     int      `yaml:"deposits"`
	Size         IntRange `yaml:"size"`
	NoiseScale   float64  `yaml:"noise_scale"` // 0 disables the richness field
}

type InteractionConfig struct {
	Cost                 float64  `yaml:"cost"`
	FavorableRate        float64  `yaml:"favorable_rate"`
	UnfavorableRate      float64  `yaml:"unfavorable_rate"`
	TradeQuantity        IntRange `yaml:"trade_quantity"`
	ProductionQuantity   IntRange `yaml:"production_quantity"`
	GovernorCompensation float64  `yaml:"governor_compensation"`
}

type AlliancesConfig struct {
	FormationThreshold int     `yaml:"formation_threshold"`
	Churn              bool    `yaml:"churn"`
	FormProbability    float64 `yaml:"form_probability"`
	BreakProbability   float64 `yaml:"break_probability"`
}

type ExplorersConfig struct {
	ForageRadius   float64  `yaml:"forage_radius"`
	ForageQuantity IntRange `yaml:"forage_quantity"`
	SellCutoff     float64  `yaml:"sell_cutoff"`
}

type ValuationConfig struct {
	Initial float64 `yaml:"initial"`
	Floor   float64 `yaml:"floor"`
}

type HistoryConfig struct {
	Cap int `yaml:"cap"`
}

type APIConfig struct {
	Port          int `yaml:"port"`
	TurnRateLimit int `yaml:"turn_rate_limit"` // manual turns per client per minute
	MaxStreams    int `yaml:"max_streams"`
}

type LedgerConfig struct {
	Path       string `yaml:"path"`        // sqlite file; empty disables the ledger
	JournalDir string `yaml:"journal_dir"` // zstd JSONL journal; empty disables it
	EveryTurns int    `yaml:"every_turns"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	ReportEvery int    `yaml:"report_every"`
}

// Default returns the configuration of the reference economy.
func Default() Config {
	return Config{
		TurnInterval: time.Second,
		Grid:         GridConfig{Width: 10, Height: 10, Edge: "wrap"},
		Agents: AgentsConfig{
			Traders:   RoleConfig{Count: 43, Tokens: IntRange{10, 100}, Resources: IntRange{0, 50}},
			Consumers: RoleConfig{Count: 32, Tokens: IntRange{10, 100}, Resources: IntRange{0, 50}},
			Producers: RoleConfig{Count: 24, Tokens: IntRange{10, 100}, Resources: IntRange{0, 50}},
			Explorers: RoleConfig{Count: 6, Tokens: IntRange{10, 100}, Resources: IntRange{0, 0}},
			Governors: RoleConfig{Count: 12, Tokens: IntRange{500, 1000}, Resources: IntRange{0, 50}},
		},
		Resources: ResourcesConfig{
			TotalNominal: 1000,
			Deposits:     30,
			Size:         IntRange{10, 50},
			NoiseScale:   0.35,
		},
		Interaction: InteractionConfig{
			Cost:                 0.1,
			FavorableRate:        0.8,
			UnfavorableRate:      1.2,
			TradeQuantity:        IntRange{1, 10},
			ProductionQuantity:   IntRange{1, 5},
			GovernorCompensation: 2,
		},
		Alliances: AlliancesConfig{
			FormationThreshold: 3,
			Churn:              true,
			FormProbability:    0.05,
			BreakProbability:   0.01,
		},
		Explorers: ExplorersConfig{
			ForageRadius:   0,
			ForageQuantity: IntRange{1, 10},
			SellCutoff:     20,
		},
		Valuation: ValuationConfig{Initial: 1.0, Floor: 0.01},
		History:   HistoryConfig{Cap: 64},
		API:       APIConfig{Port: 5000, TurnRateLimit: 30, MaxStreams: 4},
		Ledger:    LedgerConfig{EveryTurns: 1},
		Log:       LogConfig{Level: "info", ReportEvery: 60},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides selected settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("TOKENSIM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TOKENSIM_PORT: %w", err)
		}
		c.API.Port = port
	}
	if v := getenv("TOKENSIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TOKENSIM_SEED: %w", err)
		}
		c.Seed = seed
	}
	if v := getenv("TOKENSIM_LEDGER"); v != "" {
		c.Ledger.Path = v
	}
	return nil
}

// Validate reports every invalid setting. Any error here is fatal at startup.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	checkRange := func(name string, r IntRange) {
		check(r.Min >= 0, "%s: min %d is negative", name, r.Min)
		check(r.Max >= r.Min, "%s: max %d below min %d", name, r.Max, r.Min)
	}

	check(c.TurnInterval > 0, "turn_interval must be positive")
	check(c.Grid.Width > 0 && c.Grid.Height > 0, "grid: dimensions must be positive (got %dx%d)", c.Grid.Width, c.Grid.Height)
	check(c.Grid.Edge == "wrap" || c.Grid.Edge == "clamp", "grid.edge: unknown policy %q", c.Grid.Edge)

	for name, rc := range c.Agents.ByGroup() {
		check(rc.Count >= 0, "agents.%s.count: %d is negative", name, rc.Count)
		checkRange("agents."+name+".tokens", rc.Tokens)
		checkRange("agents."+name+".resources", rc.Resources)
	}

	check(c.Resources.TotalNominal >= 0, "resources.total_nominal must not be negative")
	check(c.Resources.Deposits >= 0, "resources.deposits: %d is negative", c.Resources.Deposits)
	checkRange("resources.size", c.Resources.Size)
	check(c.Resources.NoiseScale >= 0, "resources.noise_scale must not be negative")

	check(c.Interaction.Cost >= 0, "interaction.cost must not be negative")
	check(c.Interaction.FavorableRate > 0, "interaction.favorable_rate must be positive")
	check(c.Interaction.UnfavorableRate > 0, "interaction.unfavorable_rate must be positive")
	checkRange("interaction.trade_quantity", c.Interaction.TradeQuantity)
	checkRange("interaction.production_quantity", c.Interaction.ProductionQuantity)
	check(c.Interaction.GovernorCompensation >= 0, "interaction.governor_compensation must not be negative")

	check(c.Alliances.FormationThreshold >= 0, "alliances.formation_threshold must not be negative")
	check(validProbability(c.Alliances.FormProbability), "alliances.form_probability must be within [0,1]")
	check(validProbability(c.Alliances.BreakProbability), "alliances.break_probability must be within [0,1]")

	check(c.Explorers.ForageRadius >= 0, "explorers.forage_radius must not be negative")
	checkRange("explorers.forage_quantity", c.Explorers.ForageQuantity)
	check(c.Explorers.SellCutoff >= 0, "explorers.sell_cutoff must not be negative")

	check(c.Valuation.Floor > 0, "valuation.floor must be positive")
	check(c.Valuation.Initial >= c.Valuation.Floor, "valuation.initial must be at least the floor")
	check(c.History.Cap > 0, "history.cap must be positive")

	check(c.API.Port >= 0 && c.API.Port <= 65535, "api.port %d out of range", c.API.Port)
	check(c.API.TurnRateLimit > 0, "api.turn_rate_limit must be positive")
	check(c.API.MaxStreams >= 0, "api.max_streams must not be negative")
	check(c.Ledger.EveryTurns > 0, "ledger.every_turns must be positive")
	check(c.Log.ReportEvery > 0, "log.report_every must be positive")

	return errors.Join(errs...)
}

// ByGroup returns the role configs keyed by their group name.
func (a AgentsConfig) ByGroup() map[string]RoleConfig {
	return map[string]RoleConfig{
		"traders":   a.Traders,
		"consumers": a.Consumers,
		"producers": a.Producers,
		"explorers": a.Explorers,
		"governors": a.Governors,
	}
}

func validProbability(p float64) bool {
	return p >= 0 && p <= 1
}
