package holidays

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/warp/recargos-engine/generic"
)

// DefaultLookupTimeout bounds one company-calendar lookup.
const DefaultLookupTimeout = 2 * time.Second

// Oracle decides whether a date is paid as a Sunday/holiday: every Sunday,
// every statutory holiday, and any holiday in the company calendar.
//
// Company-calendar failures and timeouts surface as *generic.LookupError;
// they are never read as "not a holiday".
type Oracle struct {
	Statutory *Colombia
	Company   generic.HolidayCalendar // optional
	Timeout   time.Duration
}

func NewOracle(company generic.HolidayCalendar, timeout time.Duration) *Oracle {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Oracle{Statutory: NewColombia(), Company: company, Timeout: timeout}
}

// IsSundayOrHoliday implements payroll.HolidayOracle.
func (o *Oracle) IsSundayOrHoliday(ctx context.Context, companyID generic.CompanyID, date generic.TimePoint) (bool, error) {
	if date.IsSunday() {
		return true, nil
	}
	return o.IsHoliday(ctx, companyID, date)
}

// IsHoliday implements generic.HolidayCalendar (Sundays excluded).
func (o *Oracle) IsHoliday(ctx context.Context, companyID generic.CompanyID, date generic.TimePoint) (bool, error) {
	if o.Statutory != nil {
		ok, _ := o.Statutory.IsHoliday(ctx, companyID, date)
		if ok {
			return true, nil
		}
	}
	if o.Company == nil {
		return false, nil
	}

	lookupCtx, cancel := o.withTimeout(ctx)
	defer cancel()
	ok, err := o.Company.IsHoliday(lookupCtx, companyID, date)
	if err == nil && lookupCtx.Err() != nil {
		err = lookupCtx.Err()
	}
	if err != nil {
		return false, o.lookupError(date, err)
	}
	return ok, nil
}

// HolidaysIn merges the statutory and company holidays of a year, sorted by
// date.
func (o *Oracle) HolidaysIn(ctx context.Context, companyID generic.CompanyID, year int) ([]generic.Holiday, error) {
	var out []generic.Holiday
	if o.Statutory != nil {
		out = append(out, o.Statutory.Holidays(year)...)
	}
	if o.Company != nil {
		lookupCtx, cancel := o.withTimeout(ctx)
		defer cancel()
		company, err := o.Company.HolidaysIn(lookupCtx, companyID, year)
		if err != nil {
			return nil, o.lookupError(generic.NewTimePoint(year, time.January, 1), err)
		}
		out = append(out, company...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (o *Oracle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

func (o *Oracle) lookupError(date generic.TimePoint, err error) error {
	var lookup *generic.LookupError
	if errors.As(err, &lookup) {
		return err
	}
	return &generic.LookupError{Source: "company-calendar", Date: date, Err: err}
}
