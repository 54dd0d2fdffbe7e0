/*
Package generic provides the domain-agnostic building blocks of the recargos engine.

PURPOSE:
  This package contains the value types shared by the payroll engine, the
  malla (monthly shift grid) workflows, storage and the HTTP API. None of it
  knows Colombian labor rules; those live in the payroll package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 7.5 hours, 92500 COP)
  - ShiftSpec: A shift definition (turno) with entry/exit clock times
  - DayRecord: An immutable, computed work-day record (jornada)
  - Employee/Shift/Record IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Day records are never modified, only superseded
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing employee/shift IDs
  4. Auditability: Every record carries the configuration it was computed with

USAGE:
  hours := generic.NewAmount(7.5, generic.UnitHours)
  shift := generic.ShiftSpec{
      ID:    "N8",
      Entry: generic.MustParseClock("22:00"),
      Exit:  generic.MustParseClock("06:00"),
  }

SEE ALSO:
  - time.go: Civil dates and clock times
  - errors.go: Error taxonomy
  - ledger.go: Append-only record history
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours    Unit = "hours"
	UnitMinutes  Unit = "minutes"
	UnitCurrency Unit = "COP"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// MinutesToHours converts a minute count into decimal hours.
func MinutesToHours(minutes int) Amount {
	return Amount{Value: decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)), Unit: UnitHours}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) String() string               { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ShiftID string
type RecordID string
type CompanyID string

// RestDayShiftID is the malla code for a rest day ("descanso"). It never
// resolves through a registry and always yields a zero-value record.
const RestDayShiftID ShiftID = "D"

// IsRestDay reports whether the shift code is the rest-day sentinel.
func (id ShiftID) IsRestDay() bool { return id == RestDayShiftID }

// =============================================================================
// SHIFT SPEC - Turno definition
// =============================================================================

// ShiftSpec is a named shift with civil entry and exit times. Exit at or
// before entry means the shift crosses midnight.
type ShiftSpec struct {
	ID          ShiftID
	Name        string
	Entry       ClockTime
	Exit        ClockTime
	Description string
	Location    string
}

// CrossesMidnight reports whether the exit falls on the following day.
func (s ShiftSpec) CrossesMidnight() bool { return s.Exit <= s.Entry }

// Duration is exit - entry, plus 24h when the shift crosses midnight.
func (s ShiftSpec) Duration() time.Duration {
	minutes := int(s.Exit) - int(s.Entry)
	if minutes <= 0 {
		minutes += MinutesPerDay
	}
	return time.Duration(minutes) * time.Minute
}

// =============================================================================
// EMPLOYEE - Payroll-relevant employee data
// =============================================================================

type Employee struct {
	ID                EmployeeID
	Name              string
	Document          string
	CompanyID         CompanyID
	MonthlySalary     decimal.Decimal
	SurchargesEnabled bool
	CreatedAt         time.Time
}

// =============================================================================
// DAY RECORD - Computed jornada
// =============================================================================

type RecordStatus string

const (
	RecordCalculated RecordStatus = "calculated"
	RecordPending    RecordStatus = "pending"
	RecordClosed     RecordStatus = "closed"

	// RecordUnscheduled supersedes a day that was removed from the malla.
	// It carries no hours or value and is never returned as current.
	RecordUnscheduled RecordStatus = "unscheduled"
)

// DayRecord is one computed work day for one employee. Records are
// append-only: a recalculation writes a new Version that supersedes the
// previous one for the same (EmployeeID, Date).
type DayRecord struct {
	ID              RecordID
	EmployeeID      EmployeeID
	CompanyID       CompanyID
	Date            TimePoint
	ShiftID         ShiftID
	Entry           ClockTime
	Exit            ClockTime
	CrossesMidnight bool
	Holiday         bool

	// Applied parameters, kept verbatim so the day can be recomputed.
	MonthlySalary  decimal.Decimal
	PayPeriodHours decimal.Decimal
	HourlyRate     decimal.Decimal
	AppliedConfig  map[string]string

	Hours      map[string]decimal.Decimal
	Values     map[string]decimal.Decimal
	TotalHours decimal.Decimal
	TotalValue decimal.Decimal
	Warnings   []string

	Status         RecordStatus
	Version        int
	IdempotencyKey string
	Source         string // "malla", "manual", "clock"
	CreatedAt      time.Time
}

// Key identifies the (employee, day) slot a record belongs to.
func (r DayRecord) Key() DayKey {
	return DayKey{EmployeeID: r.EmployeeID, Date: r.Date.String()}
}

// DayKey is the slot identity of a record.
type DayKey struct {
	EmployeeID EmployeeID
	Date       string
}
