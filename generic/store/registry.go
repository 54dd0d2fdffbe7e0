package store

import (
	"context"
	"sync"

	"github.com/warp/recargos-engine/generic"
)

// =============================================================================
// MEMORY SHIFT REGISTRY
// =============================================================================

type Shifts struct {
	mu     sync.RWMutex
	shifts map[generic.ShiftID]generic.ShiftSpec
}

func NewShifts(specs ...generic.ShiftSpec) *Shifts {
	s := &Shifts{shifts: make(map[generic.ShiftID]generic.ShiftSpec)}
	for _, spec := range specs {
		s.shifts[spec.ID] = spec
	}
	return s
}

func (s *Shifts) Put(spec generic.ShiftSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[spec.ID] = spec
}

func (s *Shifts) ResolveShift(_ context.Context, id generic.ShiftID) (generic.ShiftSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.shifts[id]
	if !ok {
		return generic.ShiftSpec{}, &generic.ShiftNotFoundError{ShiftID: id}
	}
	return spec, nil
}

// =============================================================================
// MEMORY HOLIDAY CALENDAR
// =============================================================================

type Holidays struct {
	mu       sync.RWMutex
	holidays []generic.Holiday
}

func NewHolidays(holidays ...generic.Holiday) *Holidays {
	return &Holidays{holidays: holidays}
}

func (h *Holidays) Add(holiday generic.Holiday) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.holidays = append(h.holidays, holiday)
}

func (h *Holidays) IsHoliday(_ context.Context, companyID generic.CompanyID, date generic.TimePoint) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hol := range h.holidays {
		if hol.CompanyID != "" && hol.CompanyID != companyID {
			continue
		}
		if hol.Date.Equal(date) {
			return true, nil
		}
		if hol.Recurring && hol.Date.Month() == date.Month() && hol.Date.Day() == date.Day() {
			return true, nil
		}
	}
	return false, nil
}

func (h *Holidays) HolidaysIn(_ context.Context, companyID generic.CompanyID, year int) ([]generic.Holiday, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var result []generic.Holiday
	for _, hol := range h.holidays {
		if hol.CompanyID != "" && hol.CompanyID != companyID {
			continue
		}
		switch {
		case hol.Recurring:
			hol.Date = generic.NewTimePoint(year, hol.Date.Month(), hol.Date.Day())
			result = append(result, hol)
		case hol.Date.Year() == year:
			result = append(result, hol)
		}
	}
	return result, nil
}
