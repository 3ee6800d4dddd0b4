/*
Package sqlite provides the SQLite-backed implementation of the herd storage
interfaces.

PURPOSE:
  Implements herd.Store / herd.Tx and both ledger.HistoryStore instances on a
  single database/sql connection. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

TRANSACTIONS:
  Every domain operation arrives through RunInTx. The store serializes write
  transactions with a mutex (SQLite has a single writer anyway), which also
  makes the count-then-insert AI code generation a safe linearization point;
  the unique index on ai_records.code is the backstop.

INVARIANT BACKSTOPS:
  Partial unique indexes enforce the one-open-interval rule at the schema
  level: at most one history row per cow with a null close timestamp, and at
  most one per transponder. The feedlot ledger is deliberately NOT unique per
  feedlot - a pen holds many cows.

WAL MODE:
  The database is opened with WAL and foreign keys on. Use ":memory:" for
  tests.

SEE ALSO:
  - herd/store.go: interface definitions
  - tx.go, history.go, reads.go: the method sets
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/manfad/cowcard/herd"
)

// Store implements herd.Store plus the plain read/CRUD surface the HTTP
// layer uses directly.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at the given path and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls and
	// sidesteps SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTx implements herd.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(tx herd.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) migrate() error {
	schema := `
	-- Lookup-ish entities
	CREATE TABLE IF NOT EXISTS colors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS inseminators (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		remark TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS feedlots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		remark TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS transponders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		current_cow_id INTEGER,
		assigned_date TEXT,
		remark TEXT NOT NULL DEFAULT ''
	);

	-- Semen inventory
	CREATE TABLE IF NOT EXISTS semens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		sire TEXT NOT NULL DEFAULT '',
		date TEXT,
		straw INTEGER,
		bull INTEGER NOT NULL DEFAULT 0,
		remark TEXT NOT NULL DEFAULT ''
	);

	-- Animals
	CREATE TABLE IF NOT EXISTS cows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag TEXT NOT NULL UNIQUE,
		gender INTEGER NOT NULL,
		role INTEGER NOT NULL,
		status INTEGER NOT NULL,
		color_id INTEGER REFERENCES colors(id),
		dob TEXT,
		weight TEXT,
		dam_id INTEGER REFERENCES cows(id),
		semen_id INTEGER REFERENCES semens(id),
		current_feedlot_id INTEGER REFERENCES feedlots(id),
		current_transponder_id INTEGER REFERENCES transponders(id),
		active INTEGER NOT NULL DEFAULT 1,
		remark TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cows_dam ON cows(dam_id);

	-- Breeding chain
	CREATE TABLE IF NOT EXISTS ai_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		dam_id INTEGER NOT NULL REFERENCES cows(id),
		semen_id INTEGER NOT NULL REFERENCES semens(id),
		feedlot TEXT NOT NULL DEFAULT '',
		ai_by INTEGER REFERENCES inseminators(id),
		prepared_by INTEGER REFERENCES inseminators(id),
		status INTEGER NOT NULL,
		ai_date TEXT NOT NULL,
		ai_time TEXT NOT NULL DEFAULT '',
		remark TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ai_records_dam ON ai_records(dam_id);

	CREATE TABLE IF NOT EXISTS pregnancy_diagnoses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ai_record_id INTEGER NOT NULL UNIQUE REFERENCES ai_records(id),
		ai_date TEXT NOT NULL,
		diagnosis_by INTEGER REFERENCES inseminators(id),
		status INTEGER NOT NULL,
		pregnant_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pd_status ON pregnancy_diagnoses(status);

	CREATE TABLE IF NOT EXISTS calf_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cow_id INTEGER NOT NULL REFERENCES cows(id),
		ai_record_id INTEGER NOT NULL UNIQUE REFERENCES ai_records(id),
		pregnancy_diagnosis_id INTEGER NOT NULL REFERENCES pregnancy_diagnoses(id),
		still_birth INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Assignment history ledgers. Append-only: rows are inserted open and
	-- the close timestamp is the only column ever updated.
	CREATE TABLE IF NOT EXISTS cow_feedlot_histories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cow_id INTEGER NOT NULL REFERENCES cows(id),
		feedlot_id INTEGER NOT NULL REFERENCES feedlots(id),
		moved_in_at TEXT NOT NULL,
		moved_out_at TEXT
	);

	-- One open stay per cow. No per-feedlot uniqueness: pens hold many cows.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_feedlot_open_per_cow
		ON cow_feedlot_histories(cow_id) WHERE moved_out_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_feedlot_history_feedlot
		ON cow_feedlot_histories(feedlot_id);

	CREATE TABLE IF NOT EXISTS cow_transponder_histories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cow_id INTEGER NOT NULL REFERENCES cows(id),
		transponder_id INTEGER NOT NULL REFERENCES transponders(id),
		assigned_at TEXT NOT NULL,
		unassigned_at TEXT
	);

	-- Exclusive on both sides.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transponder_open_per_cow
		ON cow_transponder_histories(cow_id) WHERE unassigned_at IS NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transponder_open_per_tag
		ON cow_transponder_histories(transponder_id) WHERE unassigned_at IS NULL;

	-- Configuration & scheduler audit
	CREATE TABLE IF NOT EXISTS system_settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		value TEXT,
		remark TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS aging_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL,
		moved_to_pending INTEGER NOT NULL DEFAULT 0,
		moved_to_late_gestation INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCAN / FORMAT HELPERS
// =============================================================================

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatDate(t time.Time) string { return t.Format(herd.DateLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(herd.DateLayout, s)
	return t
}

func nullTimeString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullDateString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanNullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func scanNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTime(v.String)
	return &t
}

func scanNullDate(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseDate(v.String)
	return &t
}

func parseDecimal(s string) (*decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse decimal %q: %w", s, err)
	}
	return &d, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// querier is satisfied by both *sql.DB and *sql.Tx so row scanning helpers
// can serve the transactional and the read-only paths alike.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
