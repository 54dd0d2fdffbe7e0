package payroll

import (
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/warp/recargos-engine/generic"
)

// ToRecord converts a result into an unsaved DayRecord. The ledger assigns
// version, status and timestamps.
func ToRecord(res DayResult, companyID generic.CompanyID, source string) generic.DayRecord {
	rec := generic.DayRecord{
		EmployeeID:      res.EmployeeID,
		CompanyID:       companyID,
		Date:            res.Date,
		ShiftID:         res.ShiftID,
		Entry:           res.Entry,
		Exit:            res.Exit,
		CrossesMidnight: res.CrossesMidnight,
		Holiday:         res.Holiday,
		MonthlySalary:   res.MonthlySalary,
		PayPeriodHours:  res.Rules.PayPeriodHours,
		HourlyRate:      res.HourlyRate,
		AppliedConfig:   AppliedConfig(res.Rules, res.Surcharges, res.ConfigVersion),
		Hours:           make(map[string]decimal.Decimal, len(Categories)),
		Values:          make(map[string]decimal.Decimal, len(Categories)),
		TotalHours:      res.TotalHours,
		TotalValue:      res.TotalValue,
		Source:          source,
	}
	for _, c := range Categories {
		rec.Hours[string(c)] = res.Hours[c]
		rec.Values[string(c)] = res.Values[c]
	}
	rec.AppliedConfig["surcharges_enabled"] = strconv.FormatBool(res.SurchargesEnabled)
	for _, w := range res.Warnings {
		rec.Warnings = append(rec.Warnings, w.String())
	}
	return rec
}

// AppliedConfig flattens a configuration snapshot for storage on a record.
func AppliedConfig(rules RuleSet, table SurchargeTable, version int) map[string]string {
	out := map[string]string{
		"config_version":   strconv.Itoa(version),
		"pay_period_hours": rules.PayPeriodHours.String(),
		"night_start":      rules.NightStart.String(),
		"night_end":        rules.NightEnd.String(),
		"base_daily_hours": rules.BaseDailyHours.String(),
		"round_to_minutes": strconv.Itoa(rules.RoundToMinutes),
	}
	for _, c := range Categories {
		if f, ok := table.Factor(c); ok {
			out["factor."+string(c)] = f.String()
		}
	}
	return out
}

// ConfigFromApplied rebuilds the snapshot a record was computed with, so a
// disputed day can be recomputed exactly.
func ConfigFromApplied(applied map[string]string) (Config, error) {
	cfg := DefaultConfig()
	parseDec := func(key string, dst *decimal.Decimal) error {
		s, ok := applied[key]
		if !ok {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return &generic.InvalidInputError{Field: key, Value: s, Reason: "not a decimal"}
		}
		*dst = d
		return nil
	}
	parseClock := func(key string, dst *generic.ClockTime) error {
		s, ok := applied[key]
		if !ok {
			return nil
		}
		c, err := generic.ParseClock(s)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	}

	if err := parseDec("pay_period_hours", &cfg.Rules.PayPeriodHours); err != nil {
		return Config{}, err
	}
	if err := parseDec("base_daily_hours", &cfg.Rules.BaseDailyHours); err != nil {
		return Config{}, err
	}
	if err := parseClock("night_start", &cfg.Rules.NightStart); err != nil {
		return Config{}, err
	}
	if err := parseClock("night_end", &cfg.Rules.NightEnd); err != nil {
		return Config{}, err
	}
	if s, ok := applied["round_to_minutes"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Config{}, &generic.InvalidInputError{Field: "round_to_minutes", Value: s, Reason: "not an integer"}
		}
		cfg.Rules.RoundToMinutes = n
	}
	if s, ok := applied["config_version"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Config{}, &generic.InvalidInputError{Field: "config_version", Value: s, Reason: "not an integer"}
		}
		cfg.Version = n
	}

	factors := map[Category]*decimal.Decimal{
		NightOrdinary:            &cfg.Surcharges.NightOrdinary,
		HolidayDiurnal:           &cfg.Surcharges.HolidayDiurnal,
		HolidayNocturnal:         &cfg.Surcharges.HolidayNocturnal,
		OvertimeDiurnal:          &cfg.Surcharges.OvertimeDiurnal,
		OvertimeNocturnal:        &cfg.Surcharges.OvertimeNocturnal,
		OvertimeDiurnalHoliday:   &cfg.Surcharges.OvertimeDiurnalHoliday,
		OvertimeNocturnalHoliday: &cfg.Surcharges.OvertimeNocturnalHoliday,
	}
	for c, dst := range factors {
		if err := parseDec("factor."+string(c), dst); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Recompute re-runs a stored record with the configuration it was computed
// with. The result must match the stored totals.
func Recompute(rec generic.DayRecord) (DayResult, error) {
	cfg, err := ConfigFromApplied(rec.AppliedConfig)
	if err != nil {
		return DayResult{}, err
	}
	surchargesEnabled := true
	if s, ok := rec.AppliedConfig["surcharges_enabled"]; ok {
		surchargesEnabled, err = strconv.ParseBool(s)
		if err != nil {
			return DayResult{}, &generic.InvalidInputError{Field: "surcharges_enabled", Value: s, Reason: "not a boolean"}
		}
	}
	res, err := CalculateDay(DayInput{
		EmployeeID:        rec.EmployeeID,
		Date:              rec.Date,
		ShiftID:           rec.ShiftID,
		Entry:             rec.Entry,
		Exit:              rec.Exit,
		MonthlySalary:     rec.MonthlySalary,
		SundayOrHoliday:   rec.Holiday,
		SurchargesEnabled: surchargesEnabled,
	}, cfg.Rules, cfg.Surcharges)
	if err != nil {
		return DayResult{}, err
	}
	res.ConfigVersion = cfg.Version
	return res, nil
}

// Audit is a stored record next to its recomputation.
type Audit struct {
	Record     generic.DayRecord
	Result     DayResult
	Mismatches []string // e.g. "total_value: stored 92500, recomputed 92400"
}

// Matches reports whether the recomputation reproduced the stored record.
func (a Audit) Matches() bool { return len(a.Mismatches) == 0 }

// AuditRecord recomputes rec and lists every stored figure that differs.
func AuditRecord(rec generic.DayRecord) (Audit, error) {
	res, err := Recompute(rec)
	if err != nil {
		return Audit{}, err
	}
	a := Audit{Record: rec, Result: res}
	check := func(name string, stored, recomputed decimal.Decimal) {
		if !stored.Equal(recomputed) {
			a.Mismatches = append(a.Mismatches, name+": stored "+stored.String()+", recomputed "+recomputed.String())
		}
	}
	check("hourly_rate", rec.HourlyRate, res.HourlyRate)
	for _, c := range Categories {
		check("hours."+string(c), rec.Hours[string(c)], res.Hours[c])
		check("values."+string(c), rec.Values[string(c)], res.Values[c])
	}
	check("total_hours", rec.TotalHours, res.TotalHours)
	check("total_value", rec.TotalValue, res.TotalValue)
	return a, nil
}
