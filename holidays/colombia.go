/*
Package holidays answers "is this date a Sunday or a public holiday?" for the
payroll engine.

COLOMBIAN STATUTORY CALENDAR (Ley 51 de 1983):

	fixed            Jan 1, May 1, Jul 20, Aug 7, Dec 8, Dec 25
	moved to Monday  Jan 6, Mar 19, Jun 29, Aug 15, Oct 12, Nov 1, Nov 11
	Easter-relative  Holy Thursday (E-3), Good Friday (E-2)
	                 Ascension (E+43), Corpus Christi (E+64),
	                 Sacred Heart (E+71)   <- already the Monday offsets

	"Moved to Monday" means: if the date is not a Monday it is observed on the
	following Monday.

SEE ALSO:
  - oracle.go: Composes Sundays, this calendar and company holidays
*/
package holidays

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/recargos-engine/generic"
)

// =============================================================================
// STATUTORY CALENDAR
// =============================================================================

// Colombia is the statutory holiday calendar. It is computed, never stored,
// and is safe for concurrent use. The zero value is ready.
type Colombia struct {
	mu    sync.Mutex
	years map[int][]generic.Holiday
}

func NewColombia() *Colombia {
	return &Colombia{}
}

type fixedDate struct {
	month time.Month
	day   int
	name  string
}

var fixedHolidays = []fixedDate{
	{time.January, 1, "Año Nuevo"},
	{time.May, 1, "Día del Trabajo"},
	{time.July, 20, "Día de la Independencia"},
	{time.August, 7, "Batalla de Boyacá"},
	{time.December, 8, "Inmaculada Concepción"},
	{time.December, 25, "Navidad"},
}

var mondayHolidays = []fixedDate{
	{time.January, 6, "Reyes Magos"},
	{time.March, 19, "San José"},
	{time.June, 29, "San Pedro y San Pablo"},
	{time.August, 15, "Asunción de la Virgen"},
	{time.October, 12, "Día de la Raza"},
	{time.November, 1, "Todos los Santos"},
	{time.November, 11, "Independencia de Cartagena"},
}

var easterOffsets = []struct {
	days int
	name string
}{
	{-3, "Jueves Santo"},
	{-2, "Viernes Santo"},
	{43, "Ascensión del Señor"},
	{64, "Corpus Christi"},
	{71, "Sagrado Corazón"},
}

// Holidays returns the statutory holidays of a year, sorted by date.
func (c *Colombia) Holidays(year int) []generic.Holiday {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.years == nil {
		c.years = make(map[int][]generic.Holiday)
	}
	if cached, ok := c.years[year]; ok {
		return append([]generic.Holiday(nil), cached...)
	}

	var out []generic.Holiday
	add := func(date generic.TimePoint, name string) {
		out = append(out, generic.Holiday{
			ID:   fmt.Sprintf("co-%s", date),
			Date: date,
			Name: name,
		})
	}

	for _, f := range fixedHolidays {
		add(generic.NewTimePoint(year, f.month, f.day), f.name)
	}
	for _, f := range mondayHolidays {
		add(NextMonday(generic.NewTimePoint(year, f.month, f.day)), f.name)
	}
	easter := Easter(year)
	for _, e := range easterOffsets {
		add(easter.AddDays(e.days), e.name)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	c.years[year] = out
	return append([]generic.Holiday(nil), out...)
}

// IsHoliday implements generic.HolidayCalendar. Statutory holidays apply to
// every company.
func (c *Colombia) IsHoliday(_ context.Context, _ generic.CompanyID, date generic.TimePoint) (bool, error) {
	for _, h := range c.Holidays(date.Year()) {
		if h.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Colombia) HolidaysIn(_ context.Context, _ generic.CompanyID, year int) ([]generic.Holiday, error) {
	return c.Holidays(year), nil
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// NextMonday returns date if it is a Monday, else the following Monday.
func NextMonday(date generic.TimePoint) generic.TimePoint {
	shift := (int(time.Monday) - int(date.Weekday()) + 7) % 7
	return date.AddDays(shift)
}

// Easter returns Western Easter Sunday (anonymous Gregorian algorithm).
func Easter(year int) generic.TimePoint {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return generic.NewTimePoint(year, time.Month(month), day)
}
