/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the recargos engine using
  SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.TxRecordStore:  Append-only day records (records.go)
  generic.ShiftRegistry:  Shift codes of the malla (catalog.go)
  generic.HolidayCalendar: Company holidays (catalog.go)
  malla.EmployeeSource:   Salary and surcharge flag per employee (catalog.go)
  malla.GridStore:        Monthly shift grids (grids.go)
  payroll.ConfigProvider: Versioned payroll parameters (config.go)

APPEND-ONLY ENFORCEMENT:
  The day_records table is append-only:
  - No UPDATE of record contents; only the status column may flip to
    "closed"
  - No DELETE statements on day_records
  - Recalculation inserts a new version for the same (employee, date)

KEY TABLES:
  day_records:     Versioned computed jornadas
  employees:       Salary (decimal text), company, surcharge flag
  shifts:          Turnos with entry/exit clock times
  malla_days:      One shift code per (employee, date)
  holidays:        Company or global holidays, optionally recurring
  config_versions: Every saved parametros document, newest wins

INDEXES:
  - idx_day_records_slot: History and current-version lookups (hot path)
  - idx_day_records_company_date: Payroll summaries
  - idx_malla_days_month: Grid loads

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/recargos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store, sqlite.NewRecordID)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/ledger.go: Higher-level ledger using RecordStore
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/recargos-engine/factory"
	"github.com/warp/recargos-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	configs *factory.ConfigFactory
}

// querier is satisfied by *sql.DB and *sql.Tx so reads and writes can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, configs: factory.NewConfigFactory()}
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

// NewRecordID generates a day-record id.
func NewRecordID() generic.RecordID {
	return generic.RecordID(uuid.NewString())
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Day records (append-only, versioned per employee and date)
	CREATE TABLE IF NOT EXISTS day_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		company_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		version INTEGER NOT NULL,
		shift_id TEXT NOT NULL,
		entry_minute INTEGER NOT NULL,
		exit_minute INTEGER NOT NULL,
		crosses_midnight BOOLEAN NOT NULL DEFAULT FALSE,
		holiday BOOLEAN NOT NULL DEFAULT FALSE,
		monthly_salary TEXT NOT NULL,
		pay_period_hours TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		applied_config TEXT NOT NULL,
		hours TEXT NOT NULL,
		value_buckets TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		total_value TEXT NOT NULL,
		warnings TEXT,
		status TEXT NOT NULL DEFAULT 'calculated',
		idempotency_key TEXT UNIQUE,
		source TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, date, version)
	);

	CREATE INDEX IF NOT EXISTS idx_day_records_slot
		ON day_records(employee_id, date, version);

	CREATE INDEX IF NOT EXISTS idx_day_records_company_date
		ON day_records(company_id, date);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT,
		company_id TEXT NOT NULL DEFAULT '',
		monthly_salary TEXT NOT NULL,
		surcharges_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Shifts (turnos)
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		name TEXT,
		entry_time TEXT NOT NULL,
		exit_time TEXT NOT NULL,
		description TEXT,
		location TEXT,
		created_at TEXT NOT NULL
	);

	-- Malla: one shift code per employee and date
	CREATE TABLE IF NOT EXISTS malla_days (
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		shift_id TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_malla_days_month
		ON malla_days(date, employee_id);

	-- Holidays (company-specific or global when company_id is '')
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		UNIQUE(company_id, date, name)
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_company_date ON holidays(company_id, date);

	-- Payroll parameters, one row per saved version
	CREATE TABLE IF NOT EXISTS config_versions (
		version INTEGER PRIMARY KEY,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

const dateLayout = "2006-01-02"
