package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/recargos-engine/generic"
)

// EmployeeSummary aggregates the current records of one employee over a
// payroll period.
type EmployeeSummary struct {
	EmployeeID  generic.EmployeeID
	WorkedDays  int
	RestDays    int
	HolidayDays int
	Hours       map[Category]decimal.Decimal
	Values      map[Category]decimal.Decimal
	TotalHours  decimal.Decimal
	TotalValue  decimal.Decimal
	Warnings    int
}

// Summarize sums records per employee, sorted by employee id. Callers pass
// only current versions (see RecordLedger.Current).
func Summarize(records []generic.DayRecord) []EmployeeSummary {
	byEmployee := make(map[generic.EmployeeID]*EmployeeSummary)
	for _, rec := range records {
		s, ok := byEmployee[rec.EmployeeID]
		if !ok {
			s = &EmployeeSummary{
				EmployeeID: rec.EmployeeID,
				Hours:      zeroValues(),
				Values:     zeroValues(),
				TotalHours: decimal.Zero,
				TotalValue: decimal.Zero,
			}
			byEmployee[rec.EmployeeID] = s
		}

		if rec.ShiftID.IsRestDay() {
			s.RestDays++
			continue
		}
		s.WorkedDays++
		if rec.Holiday {
			s.HolidayDays++
		}
		for _, c := range Categories {
			s.Hours[c] = s.Hours[c].Add(rec.Hours[string(c)])
			s.Values[c] = s.Values[c].Add(rec.Values[string(c)])
		}
		s.TotalHours = s.TotalHours.Add(rec.TotalHours)
		s.TotalValue = s.TotalValue.Add(rec.TotalValue)
		s.Warnings += len(rec.Warnings)
	}

	out := make([]EmployeeSummary, 0, len(byEmployee))
	for _, s := range byEmployee {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}
