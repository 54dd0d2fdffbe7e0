/*
ledger.go - Append-only history of computed work days

PURPOSE:
  The RecordLedger is the source of truth for every computed jornada. Each
  (employee, day) slot has a chain of versions; the newest one is what
  payroll reads. Nothing is ever edited in place.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Recalculation appends a new version, it never edits.
  2. AUDITABLE: Old versions keep the salary, rates and rules they used,
     so a disputed day can be recomputed exactly.
  3. IDEMPOTENT: Same idempotency key = same record (no duplicates).
  4. CLOSED DAYS ARE FINAL: Once a day is closed for payroll, no new
     version may be appended.
  5. SERIALIZED SLOTS: Version numbering reads the history and appends in
     one transaction when the store supports it, so two concurrent
     recalculations of a day both land (v2 and v3) instead of colliding
     on the same idempotency key.

EXAMPLE FLOW:
  1. Malla assigns N8 on 2025-03-09 -> v1 computed, 8h nocturnal
  2. Admin edits the grid to M8      -> v2 computed, v1 kept
  3. Payroll closes the fortnight    -> v2 closed
  4. Another edit                    -> rejected with ErrRecordClosed

  A day removed from the malla gets an "unscheduled" version with no hours;
  it drops out of Current but stays in History.

SEE ALSO:
  - store.go: Low-level persistence interface
  - malla/recalc.go: Batch writer
*/
package generic

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// LEDGER
// =============================================================================

type RecordLedger interface {
	// Record appends a new version for the record's slot. Version and
	// IdempotencyKey are assigned when empty.
	Record(ctx context.Context, rec DayRecord) (DayRecord, error)

	// Current returns the latest version per day in the period.
	Current(ctx context.Context, employeeID EmployeeID, period Period) ([]DayRecord, error)

	// CurrentForCompany returns the latest version per (employee, day).
	CurrentForCompany(ctx context.Context, companyID CompanyID, period Period) ([]DayRecord, error)

	// History returns all versions for a slot, oldest first.
	History(ctx context.Context, employeeID EmployeeID, date TimePoint) ([]DayRecord, error)

	// CloseDay closes the current version of a slot.
	CloseDay(ctx context.Context, employeeID EmployeeID, date TimePoint) (DayRecord, error)

	// Unschedule supersedes the current version of a slot with an empty
	// RecordUnscheduled version. It reports false when there was nothing
	// to supersede.
	Unschedule(ctx context.Context, employeeID EmployeeID, date TimePoint, source string) (DayRecord, bool, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using RecordStore
// =============================================================================

type DefaultLedger struct {
	Store RecordStore
	// NewID generates record ids. Injected so tests stay deterministic.
	NewID func() RecordID
	// Clock stamps CreatedAt. Defaults to time.Now.
	Clock func() time.Time
}

func NewLedger(store RecordStore, newID func() RecordID) *DefaultLedger {
	return &DefaultLedger{Store: store, NewID: newID, Clock: time.Now}
}

// withTx runs fn in a transaction when the store supports one.
func (l *DefaultLedger) withTx(ctx context.Context, fn func(RecordStore) error) error {
	if tx, ok := l.Store.(TxRecordStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(l.Store)
}

func (l *DefaultLedger) Record(ctx context.Context, rec DayRecord) (DayRecord, error) {
	var out DayRecord
	err := l.withTx(ctx, func(s RecordStore) error {
		var err error
		out, err = l.record(ctx, s, rec)
		return err
	})
	if err != nil {
		return DayRecord{}, err
	}
	return out, nil
}

func (l *DefaultLedger) record(ctx context.Context, s RecordStore, rec DayRecord) (DayRecord, error) {
	history, err := s.History(ctx, rec.EmployeeID, rec.Date)
	if err != nil {
		return DayRecord{}, err
	}
	if n := len(history); n > 0 {
		latest := history[n-1]
		if latest.Status == RecordClosed {
			return DayRecord{}, &RecordClosedError{Key: latest.Key(), RecordID: latest.ID}
		}
		rec.Version = latest.Version + 1
	} else {
		rec.Version = 1
	}

	if rec.ID == "" && l.NewID != nil {
		rec.ID = l.NewID()
	}
	if rec.IdempotencyKey == "" {
		rec.IdempotencyKey = fmt.Sprintf("%s:%s:v%d", rec.EmployeeID, rec.Date, rec.Version)
	}
	if rec.Status == "" {
		rec.Status = RecordCalculated
	}
	if rec.CreatedAt.IsZero() {
		clock := l.Clock
		if clock == nil {
			clock = time.Now
		}
		rec.CreatedAt = clock().UTC()
	}

	exists, err := s.Exists(ctx, rec.IdempotencyKey)
	if err != nil {
		return DayRecord{}, err
	}
	if exists {
		return DayRecord{}, ErrDuplicateIdempotencyKey
	}
	if err := s.Append(ctx, rec); err != nil {
		return DayRecord{}, err
	}
	return rec, nil
}

func (l *DefaultLedger) Current(ctx context.Context, employeeID EmployeeID, period Period) ([]DayRecord, error) {
	return l.Store.Current(ctx, employeeID, period)
}

func (l *DefaultLedger) CurrentForCompany(ctx context.Context, companyID CompanyID, period Period) ([]DayRecord, error) {
	return l.Store.CurrentForCompany(ctx, companyID, period)
}

func (l *DefaultLedger) History(ctx context.Context, employeeID EmployeeID, date TimePoint) ([]DayRecord, error) {
	return l.Store.History(ctx, employeeID, date)
}

func (l *DefaultLedger) CloseDay(ctx context.Context, employeeID EmployeeID, date TimePoint) (DayRecord, error) {
	var out DayRecord
	err := l.withTx(ctx, func(s RecordStore) error {
		history, err := s.History(ctx, employeeID, date)
		if err != nil {
			return err
		}
		n := len(history)
		if n == 0 || history[n-1].Status == RecordUnscheduled {
			return ErrRecordNotFound
		}
		latest := history[n-1]
		if latest.Status != RecordClosed {
			if err := s.CloseRecord(ctx, latest.ID); err != nil {
				return err
			}
			latest.Status = RecordClosed
		}
		out = latest
		return nil
	})
	if err != nil {
		return DayRecord{}, err
	}
	return out, nil
}

func (l *DefaultLedger) Unschedule(ctx context.Context, employeeID EmployeeID, date TimePoint, source string) (DayRecord, bool, error) {
	var (
		out     DayRecord
		changed bool
	)
	err := l.withTx(ctx, func(s RecordStore) error {
		history, err := s.History(ctx, employeeID, date)
		if err != nil {
			return err
		}
		n := len(history)
		if n == 0 || history[n-1].Status == RecordUnscheduled {
			return nil
		}
		latest := history[n-1]
		out, err = l.record(ctx, s, DayRecord{
			EmployeeID: employeeID,
			CompanyID:  latest.CompanyID,
			Date:       date,
			Status:     RecordUnscheduled,
			Source:     source,
		})
		changed = err == nil
		return err
	})
	if err != nil {
		return DayRecord{}, false, err
	}
	return out, changed, nil
}
