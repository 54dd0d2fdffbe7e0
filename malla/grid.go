// Package malla manages the monthly shift grid of each employee and the
// batch recalculation of its work-day records.
package malla

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/warp/recargos-engine/generic"
)

// MonthGrid assigns one shift code per calendar day of a month. Days with
// no code are unscheduled and produce no record.
type MonthGrid struct {
	EmployeeID generic.EmployeeID
	Year       int
	Month      time.Month
	Days       map[int]generic.ShiftID
}

func NewMonthGrid(employeeID generic.EmployeeID, year int, month time.Month) MonthGrid {
	return MonthGrid{EmployeeID: employeeID, Year: year, Month: month, Days: make(map[int]generic.ShiftID)}
}

// Entry is one scheduled day.
type Entry struct {
	Date    generic.TimePoint
	ShiftID generic.ShiftID
}

// Set assigns a shift code to a day of the month.
func (g *MonthGrid) Set(day int, shift generic.ShiftID) {
	if g.Days == nil {
		g.Days = make(map[int]generic.ShiftID)
	}
	g.Days[day] = shift
}

// Period is the full calendar month.
func (g MonthGrid) Period() generic.Period { return generic.MonthPeriod(g.Year, g.Month) }

// Validate checks the month, the day numbers and the codes.
func (g MonthGrid) Validate() error {
	if g.EmployeeID == "" {
		return &generic.InvalidInputError{Field: "employee_id", Reason: "required"}
	}
	if g.Month < time.January || g.Month > time.December {
		return &generic.InvalidInputError{Field: "month", Value: fmt.Sprint(int(g.Month)), Reason: "must be 1-12"}
	}
	if g.Year < 1900 || g.Year > 9999 {
		return &generic.InvalidInputError{Field: "year", Value: fmt.Sprint(g.Year), Reason: "out of range"}
	}
	last := generic.DaysInMonth(g.Year, g.Month)
	for day, shift := range g.Days {
		if day < 1 || day > last {
			return &generic.InvalidInputError{
				Field:  "day",
				Value:  fmt.Sprint(day),
				Reason: fmt.Sprintf("%d-%02d has %d days", g.Year, g.Month, last),
			}
		}
		if shift == "" {
			return &generic.InvalidInputError{Field: "shift_id", Value: fmt.Sprint(day), Reason: "empty shift code"}
		}
	}
	return nil
}

// Entries returns the scheduled days in date order.
func (g MonthGrid) Entries() []Entry {
	days := make([]int, 0, len(g.Days))
	for day := range g.Days {
		days = append(days, day)
	}
	sort.Ints(days)

	out := make([]Entry, 0, len(days))
	for _, day := range days {
		out = append(out, Entry{Date: generic.NewTimePoint(g.Year, g.Month, day), ShiftID: g.Days[day]})
	}
	return out
}

// Changed returns the entries of g that differ from prev (new or changed
// codes). Days removed from g are reported by Removed.
func (g MonthGrid) Changed(prev MonthGrid) []Entry {
	var out []Entry
	for _, e := range g.Entries() {
		if old, ok := prev.Days[e.Date.Day()]; ok && old == e.ShiftID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Removed returns the entries of prev that are no longer scheduled in g,
// with their old codes.
func (g MonthGrid) Removed(prev MonthGrid) []Entry {
	var out []Entry
	for _, e := range prev.Entries() {
		if _, ok := g.Days[e.Date.Day()]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// EmployeeSource loads payroll data for an employee.
type EmployeeSource interface {
	Employee(ctx context.Context, id generic.EmployeeID) (generic.Employee, error)
}

// GridStore persists month grids.
type GridStore interface {
	LoadGrid(ctx context.Context, employeeID generic.EmployeeID, year int, month time.Month) (MonthGrid, error)
	SaveGrid(ctx context.Context, grid MonthGrid) error
	// GridsForMonth returns every grid of a company for the month. An empty
	// companyID means every company.
	GridsForMonth(ctx context.Context, companyID generic.CompanyID, year int, month time.Month) ([]MonthGrid, error)
}
