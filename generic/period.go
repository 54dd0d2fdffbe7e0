package generic

import "time"

// =============================================================================
// PERIOD - Date ranges for malla and payroll runs
// =============================================================================

// Period is an inclusive range of calendar dates [Start, End].
//
// Examples:
//   - Month: 2025-03-01 .. 2025-03-31 (malla grid, recalculation batch)
//   - Quincena: 2025-03-16 .. 2025-03-31 (payroll summary)
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates and builds a period.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns every date in the period.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthPeriod returns the full calendar month.
func MonthPeriod(year int, month time.Month) Period {
	start := NewTimePoint(year, month, 1)
	return Period{Start: start, End: start.AddMonths(1).AddDays(-1)}
}

// FortnightPeriod returns the quincena containing date: days 1-15 or
// 16 through the end of the month.
func FortnightPeriod(date TimePoint) Period {
	if date.Day() <= 15 {
		return Period{
			Start: NewTimePoint(date.Year(), date.Month(), 1),
			End:   NewTimePoint(date.Year(), date.Month(), 15),
		}
	}
	month := MonthPeriod(date.Year(), date.Month())
	return Period{Start: NewTimePoint(date.Year(), date.Month(), 16), End: month.End}
}

// DaysInMonth returns the number of days in the month.
func DaysInMonth(year int, month time.Month) int {
	return MonthPeriod(year, month).End.Day()
}
