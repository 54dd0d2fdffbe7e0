/*
errors.go - Centralized error types for the recargos engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Invalid input - Bad salary, malformed times, impossible shift durations.
     Fail fast, never retried.
  2. Not found - Unknown shift code or employee. The caller decides the
     fallback; the engine never guesses.
  3. External lookup - Holiday oracle / registry timeout or failure. Must be
     kept distinct from "not a holiday"; orchestrators retry with backoff.
  4. Record errors - Append-only record history violations.

  Computation degeneracies (would-be negative values from bad rate data)
  are NOT errors: they are clamped and reported as warnings on the result
  so one bad record never blocks a batch.

USAGE:
  if errors.Is(err, generic.ErrShiftNotFound) {
      // caller decides: treat as rest day, skip, report...
  }

SEE ALSO:
  - payroll/day.go: Raises invalid input and not-found errors
  - holidays/oracle.go: Raises lookup errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed or out-of-range input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrShiftNotFound is returned when a shift code is not in the registry.
	ErrShiftNotFound = errors.New("shift not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrExternalLookup is returned when a collaborator lookup (holiday
	// oracle, registry) fails or times out.
	ErrExternalLookup = errors.New("external lookup failed")

	// ErrDuplicateIdempotencyKey is returned when a record with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrRecordNotFound is returned when a record id is unknown.
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordClosed is returned when superseding a day that has been closed
	// for payroll.
	ErrRecordClosed = errors.New("record closed")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError describes which field was rejected and why.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// ShiftNotFoundError names the unknown shift code.
type ShiftNotFoundError struct {
	ShiftID ShiftID
}

func (e *ShiftNotFoundError) Error() string {
	return fmt.Sprintf("shift not found: %s", e.ShiftID)
}

func (e *ShiftNotFoundError) Unwrap() error { return ErrShiftNotFound }

// LookupError wraps a failed collaborator lookup. It matches both
// ErrExternalLookup and the underlying cause.
type LookupError struct {
	Source string // e.g. "holiday-oracle", "company-calendar"
	Date   TimePoint
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s lookup for %s failed: %v", e.Source, e.Date, e.Err)
}

func (e *LookupError) Unwrap() []error { return []error{ErrExternalLookup, e.Err} }

// RecordClosedError identifies the closed slot that a recalculation tried to
// supersede.
type RecordClosedError struct {
	Key      DayKey
	RecordID RecordID
}

func (e *RecordClosedError) Error() string {
	return fmt.Sprintf("day %s for %s is closed (record %s)", e.Key.Date, e.Key.EmployeeID, e.RecordID)
}

func (e *RecordClosedError) Unwrap() error { return ErrRecordClosed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalLookup)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrRecordClosed)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShiftNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
