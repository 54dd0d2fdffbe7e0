package generic

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Civil calendar date
// =============================================================================

// TimePoint is a calendar date in a fixed civil calendar. It is always
// normalized to midnight UTC; nothing in the engine derives it from now().
type TimePoint struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, &InvalidInputError{Field: "date", Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day()), nil
}

// MustParseDate is ParseDate for tests and fixtures.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsSunday() bool        { return tp.Weekday() == time.Sunday }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }
func (tp TimePoint) String() string        { return tp.Time.Format(dateLayout) }

// =============================================================================
// CLOCK TIME - Minute of a civil day
// =============================================================================

// ClockTime is a local civil time of day as minutes since midnight (0..1439).
type ClockTime int

const MinutesPerDay = 24 * 60

// NewClockTime builds a clock time from hour and minute.
func NewClockTime(hour, minute int) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, &InvalidInputError{
			Field:  "time",
			Value:  fmt.Sprintf("%02d:%02d", hour, minute),
			Reason: "hour must be 00-23 and minute 00-59",
		}
	}
	return ClockTime(hour*60 + minute), nil
}

// ParseClock parses a strict "HH:MM" 24-hour time.
func ParseClock(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' || !isDigit(s[0]) || !isDigit(s[1]) || !isDigit(s[3]) || !isDigit(s[4]) {
		return 0, &InvalidInputError{Field: "time", Value: s, Reason: "expected HH:MM"}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	return NewClockTime(hour, minute)
}

// MustParseClock is ParseClock for tests and fixtures.
func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (c ClockTime) Hour() int      { return int(c) / 60 }
func (c ClockTime) Minute() int    { return int(c) % 60 }
func (c ClockTime) Minutes() int   { return int(c) }
func (c ClockTime) Valid() bool    { return c >= 0 && int(c) < MinutesPerDay }
func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// =============================================================================
// HOLIDAY CALENDAR - Company-specific holidays
// =============================================================================

// Holiday is a public or company holiday ("festivo").
type Holiday struct {
	ID        string
	CompanyID CompanyID // Empty = global
	Date      TimePoint
	Name      string
	Recurring bool // true = same month/day every year
}

// HolidayCalendar answers holiday lookups. Lookups may hit storage or a
// remote service, so they take a context and can fail; a failure is never
// the same thing as "not a holiday".
type HolidayCalendar interface {
	IsHoliday(ctx context.Context, companyID CompanyID, date TimePoint) (bool, error)
	HolidaysIn(ctx context.Context, companyID CompanyID, year int) ([]Holiday, error)
}
