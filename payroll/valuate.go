/*
valuate.go - Monetary valuation of hour buckets

PURPOSE:
  Turns classified minutes into COP using the hourly base rate and the
  surcharge table.

RULES:
  hourlyRate = monthlySalary / payPeriodHours

  ordinary (value)      every within-base hour x rate      (base pay)
  night / holiday       hours x rate x factor              (added on top)
  overtime variants     hours x rate x factor              (replaces base)

  The ordinary value is the base pay of ALL within-base hours, including the
  ones reported under night or holiday buckets; those buckets only carry the
  premium. A Sunday 08:00-17:00 at 10,000/h therefore values as
  80,000 (ordinary) + 64,000 (holiday_diurnal) + 20,500 (overtime) = 164,500.

  With surcharges disabled every worked hour is paid at straight time in the
  ordinary value and every other value is zero.

DEGENERACIES:
  Bad rate data never produces an error, a NaN or a negative amount. The
  affected amount is clamped to zero and a Warning is attached so the caller
  can audit it without the batch stopping.

PRECISION:
  The rate is kept at full decimal precision internally. Each value is
  computed from minutes (rate x minutes x factor / 60) and rounded to cents;
  the total is the sum of the rounded values.
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Warning codes.
const (
	WarnInvalidPayPeriodHours = "invalid_pay_period_hours"
	WarnNegativeSalary        = "negative_salary"
	WarnNegativeFactor        = "negative_factor"
	WarnNegativeValue         = "negative_value"
)

// Warning flags a value that was clamped to zero.
type Warning struct {
	Code     string
	Category Category // empty when the warning applies to the whole day
	Message  string
}

func (w Warning) String() string {
	if w.Category == "" {
		return w.Code + ": " + w.Message
	}
	return fmt.Sprintf("%s[%s]: %s", w.Code, w.Category, w.Message)
}

// Valuation is the monetary breakdown of one day.
type Valuation struct {
	HourlyRate decimal.Decimal
	Values     map[Category]decimal.Decimal
	Total      decimal.Decimal
	Warnings   []Warning
}

var (
	sixty   = decimal.NewFromInt(60)
	centsDP = int32(2)
)

// Valuate prices the buckets. It never fails; see Warnings.
func Valuate(b HourBuckets, salary, payPeriodHours decimal.Decimal, table SurchargeTable, surchargesEnabled bool) Valuation {
	v := Valuation{Values: make(map[Category]decimal.Decimal, len(Categories))}
	for _, c := range Categories {
		v.Values[c] = decimal.Zero
	}

	v.HourlyRate = v.rate(salary, payPeriodHours)

	if !surchargesEnabled {
		v.Values[Ordinary] = priced(v.HourlyRate, b.TotalMinutes(), decimal.NewFromInt(1))
		v.clampAndTotal()
		return v
	}

	v.Values[Ordinary] = priced(v.HourlyRate, b.BaseMinutes(), decimal.NewFromInt(1))
	for _, c := range Categories {
		if c == Ordinary {
			continue
		}
		minutes := b.Minutes(c)
		if minutes == 0 {
			continue
		}
		factor, _ := table.Factor(c)
		if factor.IsNegative() {
			v.Warnings = append(v.Warnings, Warning{
				Code:     WarnNegativeFactor,
				Category: c,
				Message:  fmt.Sprintf("multiplier %s is negative; value set to 0", factor),
			})
			continue
		}
		v.Values[c] = priced(v.HourlyRate, minutes, factor)
	}
	v.clampAndTotal()
	return v
}

// rate derives the hourly base rate, degrading to zero on bad data.
func (v *Valuation) rate(salary, payPeriodHours decimal.Decimal) decimal.Decimal {
	if !payPeriodHours.IsPositive() {
		v.Warnings = append(v.Warnings, Warning{
			Code:    WarnInvalidPayPeriodHours,
			Message: fmt.Sprintf("pay period hours %s is not positive; rate set to 0", payPeriodHours),
		})
		return decimal.Zero
	}
	if salary.IsNegative() {
		v.Warnings = append(v.Warnings, Warning{
			Code:    WarnNegativeSalary,
			Message: fmt.Sprintf("monthly salary %s is negative; rate set to 0", salary),
		})
		return decimal.Zero
	}
	return salary.Div(payPeriodHours)
}

func (v *Valuation) clampAndTotal() {
	v.Total = decimal.Zero
	for _, c := range Categories {
		val := v.Values[c]
		if val.IsNegative() {
			v.Warnings = append(v.Warnings, Warning{
				Code:     WarnNegativeValue,
				Category: c,
				Message:  fmt.Sprintf("computed value %s clamped to 0", val),
			})
			val = decimal.Zero
			v.Values[c] = val
		}
		v.Total = v.Total.Add(val)
	}
}

func priced(rate decimal.Decimal, minutes int, factor decimal.Decimal) decimal.Decimal {
	if minutes == 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(minutes))).Mul(factor).Div(sixty).Round(centsDP)
}

// RoundedRate is the hourly rate as reported (cents).
func (v Valuation) RoundedRate() decimal.Decimal { return v.HourlyRate.Round(centsDP) }
