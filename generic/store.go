/*
store.go - Persistence interfaces for shifts and work-day records

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  ShiftRegistry: Resolves a malla shift code to entry/exit times
  RecordStore:   Append-only persistence of computed day records
  TxRecordStore: Atomic multi-record writes

APPEND-ONLY CONTRACT:
  RecordStore has no Update or Delete for record contents. Recalculating a
  day appends a new version; the latest version is "current". The only
  mutable bit is closing a day for payroll, after which no new version may
  be appended for that slot. Removing a day from the malla appends an
  "unscheduled" version, which hides the slot from Current.

IDEMPOTENCY:
  Every write includes an idempotency key. If the key already exists,
  the write is rejected. A batch retry therefore never duplicates records.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using RecordStore
*/
package generic

import "context"

// =============================================================================
// SHIFT REGISTRY
// =============================================================================

// ShiftRegistry resolves shift codes. Unknown codes return a
// *ShiftNotFoundError; storage failures return any other error.
type ShiftRegistry interface {
	ResolveShift(ctx context.Context, id ShiftID) (ShiftSpec, error)
}

// =============================================================================
// RECORD STORE - Append-only day records
// =============================================================================

type RecordStore interface {
	// Append persists a record. Returns ErrDuplicateIdempotencyKey if the key
	// exists and a *RecordClosedError if the slot is closed.
	Append(ctx context.Context, rec DayRecord) error

	// AppendBatch persists multiple records atomically.
	AppendBatch(ctx context.Context, recs []DayRecord) error

	// Current returns the latest version of each (employee, day) in range,
	// ordered by date. Slots whose latest version is RecordUnscheduled are
	// omitted.
	Current(ctx context.Context, employeeID EmployeeID, period Period) ([]DayRecord, error)

	// CurrentForCompany is Current across all employees of a company.
	// An empty companyID means every company.
	CurrentForCompany(ctx context.Context, companyID CompanyID, period Period) ([]DayRecord, error)

	// History returns every version for one (employee, day), oldest first.
	History(ctx context.Context, employeeID EmployeeID, date TimePoint) ([]DayRecord, error)

	// Get loads one record by id.
	Get(ctx context.Context, id RecordID) (DayRecord, error)

	// CloseRecord marks the current version of a day as closed.
	CloseRecord(ctx context.Context, id RecordID) error

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxRecordStore wraps RecordStore with transaction support.
type TxRecordStore interface {
	RecordStore

	// WithTx executes fn within a transaction. If fn returns error, the
	// transaction is rolled back.
	WithTx(ctx context.Context, fn func(RecordStore) error) error
}
