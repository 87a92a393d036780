// Package persistence provides the SQLite turn ledger and the compressed
// turn journal. Both are append-only history; nothing is ever read back into
// a running economy.
package persistence

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tokensim/internal/engine"
)

// DB wraps a SQLite connection for the turn ledger.
type DB struct {
	conn  *sqlx.DB
	RunID string // Distinguishes economies sharing one ledger file
}

// TurnRow is one recorded turn summary.
type TurnRow struct {
	RunID          string  `db:"run_id" json:"run_id"`
	Tick           uint64  `db:"tick" json:"tick"`
	TokenValue     float64 `db:"swt_value" json:"swt_value"`
	TotalTokens    float64 `db:"total_tokens" json:"total_tokens"`
	HeldResources  float64 `db:"held_resources" json:"held_resources"`
	FieldResources float64 `db:"field_resources" json:"field_resources"`
	Deposits       int     `db:"deposits" json:"deposits"`
	Alliances      int     `db:"alliances" json:"alliances"`
	Interactions   int     `db:"interactions" json:"interactions"`
	Sales          int     `db:"sales" json:"sales"`
}

// Open opens or creates a SQLite database at the given path and starts a
// new run in it.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, RunID: uuid.NewString()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := db.SaveMeta("last_run", db.RunID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("save meta: %w", err)
	}

	slog.Info("ledger opened", "path", path, "run", db.RunID)
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		swt_value REAL NOT NULL,
		total_tokens REAL NOT NULL,
		held_resources REAL NOT NULL,
		field_resources REAL NOT NULL,
		deposits INTEGER NOT NULL,
		alliances INTEGER NOT NULL,
		interactions INTEGER NOT NULL,
		sales INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecordTurn appends one turn summary.
func (db *DB) RecordTurn(s engine.TurnSummary) error {
	_, err := db.conn.NamedExec(`INSERT OR REPLACE INTO turns
		(run_id, tick, swt_value, total_tokens, held_resources, field_resources,
		 deposits, alliances, interactions, sales)
		VALUES (:run_id, :tick, :swt_value, :total_tokens, :held_resources, :field_resources,
		 :deposits, :alliances, :interactions, :sales)`,
		TurnRow{
			RunID:          db.RunID,
			Tick:           s.Tick,
			TokenValue:     s.TokenValue,
			TotalTokens:    s.TotalTokens,
			HeldResources:  s.HeldResources,
			FieldResources: s.FieldResources,
			Deposits:       s.Deposits,
			Alliances:      s.Alliances,
			Interactions:   s.Interactions,
			Sales:          s.Sales,
		})
	if err != nil {
		return fmt.Errorf("insert turn %d: %w", s.Tick, err)
	}
	return nil
}

// RecordEvents appends events to the database.
func (db *DB) RecordEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			db.RunID, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// TurnHistory returns turns of the current run with from <= tick <= to, oldest
// first. A zero to means no upper bound.
func (db *DB) TurnHistory(from, to uint64, limit int) ([]TurnRow, error) {
	if to == 0 {
		to = 1<<63 - 1
	}
	rows := []TurnRow{}
	err := db.conn.Select(&rows,
		`SELECT run_id, tick, swt_value, total_tokens, held_resources, field_resources,
			deposits, alliances, interactions, sales
		 FROM turns WHERE run_id = ? AND tick >= ? AND tick <= ?
		 ORDER BY tick ASC LIMIT ?`,
		db.RunID, from, to, limit,
	)
	return rows, err
}

// RecentEvents returns the most recent N events of the current run, newest
// first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		db.RunID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in ledger metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO ledger_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// getMeta retrieves a metadata value.
func (db *DB) getMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM ledger_meta WHERE key = ?", key)
	return value, err
}
