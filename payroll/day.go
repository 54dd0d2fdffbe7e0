package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/recargos-engine/generic"
)

// =============================================================================
// DAY CALCULATION - Pure entry point
// =============================================================================

// DayInput is everything one day calculation needs, already resolved.
type DayInput struct {
	EmployeeID        generic.EmployeeID
	Date              generic.TimePoint
	ShiftID           generic.ShiftID
	Entry             generic.ClockTime
	Exit              generic.ClockTime
	MonthlySalary     decimal.Decimal
	SundayOrHoliday   bool
	SurchargesEnabled bool
}

// DayResult is the immutable outcome of a day calculation.
type DayResult struct {
	EmployeeID      generic.EmployeeID
	Date            generic.TimePoint
	ShiftID         generic.ShiftID
	Entry           generic.ClockTime
	Exit            generic.ClockTime
	CrossesMidnight bool
	RestDay         bool
	Holiday         bool
	// SurchargesEnabled is false for employees paid straight time only.
	SurchargesEnabled bool

	Hours      map[Category]decimal.Decimal
	Values     map[Category]decimal.Decimal
	TotalHours decimal.Decimal
	TotalValue decimal.Decimal

	// HourlyRate is reported in cents; values were computed at full precision.
	HourlyRate    decimal.Decimal
	MonthlySalary decimal.Decimal
	Warnings      []Warning

	// Applied configuration snapshot.
	Rules         RuleSet
	Surcharges    SurchargeTable
	ConfigVersion int
}

// CalculateDay decomposes and values one work day. It is a pure function:
// identical inputs give identical results, and it is safe for concurrent use.
//
// Rest days (ShiftID "D") short-circuit to an all-zero result.
//
// Errors:
//   - *generic.InvalidInputError: negative salary, malformed or zero-length
//     shift, invalid night window
func CalculateDay(in DayInput, rules RuleSet, table SurchargeTable) (DayResult, error) {
	if in.MonthlySalary.IsNegative() {
		return DayResult{}, &generic.InvalidInputError{
			Field:  "monthly_salary",
			Value:  in.MonthlySalary.String(),
			Reason: "must not be negative",
		}
	}

	res := DayResult{
		EmployeeID:    in.EmployeeID,
		Date:          in.Date,
		ShiftID:       in.ShiftID,
		MonthlySalary: in.MonthlySalary,
		Holiday:       in.SundayOrHoliday,
		Rules:         rules,
		Surcharges:    table,

		SurchargesEnabled: in.SurchargesEnabled,
	}

	if in.ShiftID.IsRestDay() {
		res.RestDay = true
		res.Hours = EmptyBuckets().HoursMap()
		res.Values = zeroValues()
		res.TotalHours = decimal.Zero
		res.TotalValue = decimal.Zero
		if rules.PayPeriodHours.IsPositive() {
			res.HourlyRate = in.MonthlySalary.Div(rules.PayPeriodHours).Round(centsDP)
		}
		return res, nil
	}

	window := ShiftWindow{Entry: in.Entry, Exit: in.Exit}
	buckets, err := Classify(window, rules, in.SundayOrHoliday)
	if err != nil {
		return DayResult{}, err
	}
	val := Valuate(buckets, in.MonthlySalary, rules.PayPeriodHours, table, in.SurchargesEnabled)

	res.Entry = in.Entry
	res.Exit = in.Exit
	res.CrossesMidnight = window.CrossesMidnight()
	res.Hours = buckets.HoursMap()
	res.TotalHours = generic.MinutesToHours(buckets.TotalMinutes()).Value
	res.Values = val.Values
	res.TotalValue = val.Total
	res.HourlyRate = val.RoundedRate()
	res.Warnings = val.Warnings
	return res, nil
}

func zeroValues() map[Category]decimal.Decimal {
	out := make(map[Category]decimal.Decimal, len(Categories))
	for _, c := range Categories {
		out[c] = decimal.Zero
	}
	return out
}
