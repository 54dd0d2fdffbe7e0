/*
calculator.go - Day calculation facade with collaborators

PURPOSE:
  Calculator resolves what CalculateDay needs from the outside world and then
  runs the pure calculation:

    Shift Registry  ->  entry / exit
    Holiday Oracle  ->  Sunday or holiday?
    ConfigProvider  ->  RuleSet + SurchargeTable snapshot

FAILURE POLICY:
  - Unknown shift      -> *generic.ShiftNotFoundError (caller picks fallback)
  - Registry failure   -> *generic.LookupError{Source: "shift-registry"}
  - Oracle failure     -> *generic.LookupError{Source: "holiday-oracle"}
  No oracle           -> ErrNoHolidayOracle (misconfiguration, not retried)
  A failed holiday lookup is never treated as "not a holiday".

  Rest days skip both lookups.

CLOCK OVERRIDE:
  ActualEntry / ActualExit replace the scheduled times when the employee's
  real clock-in/out is known. The shift code is still resolved so an unknown
  code is reported either way.
*/
package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/recargos-engine/generic"
)

// ErrNoHolidayOracle is returned when a working day is calculated without a
// holiday oracle. Pricing by Sunday alone would miss public holidays.
var ErrNoHolidayOracle = errors.New("holiday oracle not configured")

// HolidayOracle answers "is this date a Sunday or a public holiday?".
type HolidayOracle interface {
	IsSundayOrHoliday(ctx context.Context, companyID generic.CompanyID, date generic.TimePoint) (bool, error)
}

// DayRequest is a calculation request before collaborator lookups.
type DayRequest struct {
	EmployeeID        generic.EmployeeID
	CompanyID         generic.CompanyID
	Date              generic.TimePoint
	ShiftID           generic.ShiftID
	MonthlySalary     decimal.Decimal
	SurchargesEnabled bool

	// Optional real clock-in/out.
	ActualEntry *generic.ClockTime
	ActualExit  *generic.ClockTime

	// Config overrides the provider for this call.
	Config *Config
}

// Calculator is safe for concurrent use as long as its collaborators are.
type Calculator struct {
	Shifts   generic.ShiftRegistry
	Holidays HolidayOracle
	Config   ConfigProvider
}

func NewCalculator(shifts generic.ShiftRegistry, holidays HolidayOracle, cfg ConfigProvider) *Calculator {
	return &Calculator{Shifts: shifts, Holidays: holidays, Config: cfg}
}

// Snapshot loads the configuration once so a batch can share it.
func (c *Calculator) Snapshot(ctx context.Context) (Config, error) {
	return LoadConfig(ctx, c.Config)
}

// Calculate resolves the request and runs CalculateDay.
func (c *Calculator) Calculate(ctx context.Context, req DayRequest) (DayResult, error) {
	var cfg Config
	if req.Config != nil {
		cfg = *req.Config
	} else {
		loaded, err := c.Snapshot(ctx)
		if err != nil {
			return DayResult{}, err
		}
		cfg = loaded
	}
	return c.CalculateWith(ctx, req, cfg)
}

// CalculateWith runs the request against an explicit configuration snapshot.
func (c *Calculator) CalculateWith(ctx context.Context, req DayRequest, cfg Config) (DayResult, error) {
	in := DayInput{
		EmployeeID:        req.EmployeeID,
		Date:              req.Date,
		ShiftID:           req.ShiftID,
		MonthlySalary:     req.MonthlySalary,
		SurchargesEnabled: req.SurchargesEnabled,
	}

	if !req.ShiftID.IsRestDay() {
		if err := ctx.Err(); err != nil {
			return DayResult{}, err
		}

		spec, err := c.resolveShift(ctx, req)
		if err != nil {
			return DayResult{}, err
		}
		in.Entry, in.Exit = spec.Entry, spec.Exit
		if req.ActualEntry != nil {
			in.Entry = *req.ActualEntry
		}
		if req.ActualExit != nil {
			in.Exit = *req.ActualExit
		}

		holiday, err := c.isHoliday(ctx, req)
		if err != nil {
			return DayResult{}, err
		}
		in.SundayOrHoliday = holiday
	}

	res, err := CalculateDay(in, cfg.Rules, cfg.Surcharges)
	if err != nil {
		return DayResult{}, err
	}
	res.ConfigVersion = cfg.Version
	return res, nil
}

func (c *Calculator) resolveShift(ctx context.Context, req DayRequest) (generic.ShiftSpec, error) {
	if c.Shifts == nil {
		return generic.ShiftSpec{}, &generic.ShiftNotFoundError{ShiftID: req.ShiftID}
	}
	spec, err := c.Shifts.ResolveShift(ctx, req.ShiftID)
	switch {
	case err == nil:
		return spec, nil
	case errors.Is(err, generic.ErrShiftNotFound):
		return generic.ShiftSpec{}, err
	default:
		return generic.ShiftSpec{}, &generic.LookupError{
			Source: "shift-registry",
			Date:   req.Date,
			Err:    fmt.Errorf("resolve %s: %w", req.ShiftID, err),
		}
	}
}

func (c *Calculator) isHoliday(ctx context.Context, req DayRequest) (bool, error) {
	if c.Holidays == nil {
		return false, fmt.Errorf("calculate %s on %s: %w", req.ShiftID, req.Date, ErrNoHolidayOracle)
	}
	holiday, err := c.Holidays.IsSundayOrHoliday(ctx, req.CompanyID, req.Date)
	if err == nil {
		return holiday, nil
	}
	var lookupErr *generic.LookupError
	if errors.As(err, &lookupErr) {
		return false, err
	}
	return false, &generic.LookupError{Source: "holiday-oracle", Date: req.Date, Err: err}
}
