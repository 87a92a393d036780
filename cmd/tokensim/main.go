// Command tokensim runs the token economy and serves it over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/tokensim/internal/api"
	"github.com/talgya/tokensim/internal/config"
	"github.com/talgya/tokensim/internal/engine"
	"github.com/talgya/tokensim/internal/entropy"
	"github.com/talgya/tokensim/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults apply when empty)")
	flag.Parse()

	// ── Configuration ────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal("failed to load config", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fatal("bad environment override", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	seed := entropy.Resolve(cfg.Seed)
	slog.Info("tokensim starting", "config", *configPath, "seed", seed)

	// ── Economy ──────────────────────────────────────────────────────
	econ, err := engine.NewEconomy(cfg, seed)
	if err != nil {
		fatal("failed to build economy", err)
	}

	// ── Ledger + Journal ─────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Ledger.Path != "" {
		if dir := filepath.Dir(cfg.Ledger.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fatal("failed to create ledger directory", err)
			}
		}
		db, err = persistence.Open(cfg.Ledger.Path)
		if err != nil {
			fatal("failed to open ledger", err)
		}
		defer db.Close()
		if err := db.SaveMeta("seed", fmt.Sprintf("%d", seed)); err != nil {
			slog.Warn("failed to record seed", "error", err)
		}
	}

	var journal *persistence.Journal
	if cfg.Ledger.JournalDir != "" {
		journal = persistence.NewJournal(cfg.Ledger.JournalDir)
		defer journal.Close()
		slog.Info("journal enabled", "dir", cfg.Ledger.JournalDir)
	}

	every := uint64(cfg.Ledger.EveryTurns)
	econ.AfterTurn = func(s engine.TurnSummary, events []engine.Event) {
		if db != nil {
			if s.Tick%every == 0 {
				if err := db.RecordTurn(s); err != nil {
					slog.Error("ledger turn write failed", "tick", s.Tick, "error", err)
				}
			}
			if err := db.RecordEvents(events); err != nil {
				slog.Error("ledger event write failed", "tick", s.Tick, "error", err)
			}
		}
		if journal != nil {
			if err := journal.WriteTurn(s, events); err != nil {
				slog.Error("journal write failed", "tick", s.Tick, "error", err)
			}
		}
	}

	// ── Turn Loop ────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.TurnInterval)
	eng.OnTurn = func() { econ.AdvanceTurn() }

	// ── HTTP API ─────────────────────────────────────────────────────
	apiServer := api.NewServer(econ, eng, cfg.API)
	if db != nil {
		apiServer.History = db
	}
	srv := apiServer.Start()

	// ── Start ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Run(ctx)

	slog.Info("shutting down", "tick", econ.Tick())
	api.Shutdown(srv)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
