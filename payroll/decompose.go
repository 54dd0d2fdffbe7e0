/*
decompose.go - Time-window decomposition of a shift

PURPOSE:
  Splits one shift into minute-accurate hour buckets along two independent
  axes and crosses them:

    clock axis     diurnal | nocturnal      (night window, by civil time)
    elapsed axis   within-base | overtime   (first N hours worked, by duration)

  A day-level holiday flag re-tags all four raw buckets as holiday variants.

TIMELINE:
  The shift is linearized onto a minute axis measured from the civil midnight
  of the entry day. When exit <= entry the shift crosses midnight and exit is
  moved forward by 1440. The result therefore lives in [0, 2880).

    entry 22:00, exit 06:00  ->  [1320, 1800)
    night 21:00 - 06:00      ->  [0, 360) u [1260, 1800) u [2700, 2880)

  The night window is half-open [nightStart, nightEnd): 06:00 is diurnal,
  21:00 is nocturnal. Intersections are computed in closed form over at
  most four intervals; there is no per-minute loop.

ROUNDING:
  RoundToMinutes > 1 rounds each reported bucket half-up to that granularity.
  Sums over rounded buckets can drift from the shift duration by at most half
  a granule per bucket.

SEE ALSO:
  - categories.go: Bucket names
  - valuate.go: Turns buckets into money
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/recargos-engine/generic"
)

// ShiftWindow is the civil entry and exit of one worked shift.
type ShiftWindow struct {
	Entry generic.ClockTime
	Exit  generic.ClockTime
}

// CrossesMidnight reports whether exit falls on the next civil day.
func (w ShiftWindow) CrossesMidnight() bool { return w.Exit <= w.Entry }

// span returns the linearized [start, end) of the shift.
func (w ShiftWindow) span() (int, int) {
	start, end := w.Entry.Minutes(), w.Exit.Minutes()
	if end <= start {
		end += generic.MinutesPerDay
	}
	return start, end
}

// =============================================================================
// HOUR BUCKETS
// =============================================================================

// HourBuckets holds the worked minutes per category for one day.
type HourBuckets struct {
	minutes      map[Category]int
	shiftMinutes int
	holiday      bool
}

// Minutes returns the (possibly rounded) minutes in a category.
func (b HourBuckets) Minutes(c Category) int { return b.minutes[c] }

// Hours returns the minutes in a category as decimal hours.
func (b HourBuckets) Hours(c Category) decimal.Decimal {
	return generic.MinutesToHours(b.minutes[c]).Value
}

// BaseMinutes sums the within-base categories.
func (b HourBuckets) BaseMinutes() int {
	total := 0
	for _, c := range Categories {
		if !c.IsOvertime() {
			total += b.minutes[c]
		}
	}
	return total
}

// OvertimeMinutes sums the overtime categories.
func (b HourBuckets) OvertimeMinutes() int {
	total := 0
	for _, c := range Categories {
		if c.IsOvertime() {
			total += b.minutes[c]
		}
	}
	return total
}

// TotalMinutes sums every reported bucket.
func (b HourBuckets) TotalMinutes() int { return b.BaseMinutes() + b.OvertimeMinutes() }

// ShiftMinutes is the unrounded length of the shift.
func (b HourBuckets) ShiftMinutes() int { return b.shiftMinutes }

// Holiday reports whether the buckets were classified as a Sunday/holiday.
func (b HourBuckets) Holiday() bool { return b.holiday }

// HoursMap returns decimal hours for every category, zeros included.
func (b HourBuckets) HoursMap() map[Category]decimal.Decimal {
	out := make(map[Category]decimal.Decimal, len(Categories))
	for _, c := range Categories {
		out[c] = b.Hours(c)
	}
	return out
}

// EmptyBuckets is the all-zero breakdown used for rest days.
func EmptyBuckets() HourBuckets {
	return HourBuckets{minutes: make(map[Category]int)}
}

// =============================================================================
// CLASSIFY
// =============================================================================

// Classify decomposes a shift into hour buckets.
//
// Errors:
//   - *generic.InvalidInputError: malformed clock times, zero-length shift or
//     an invalid night window / base hours
func Classify(w ShiftWindow, rules RuleSet, holiday bool) (HourBuckets, error) {
	if !w.Entry.Valid() {
		return HourBuckets{}, &generic.InvalidInputError{Field: "entry", Value: fmt.Sprint(int(w.Entry)), Reason: "out of range"}
	}
	if !w.Exit.Valid() {
		return HourBuckets{}, &generic.InvalidInputError{Field: "exit", Value: fmt.Sprint(int(w.Exit)), Reason: "out of range"}
	}
	if w.Entry == w.Exit {
		return HourBuckets{}, &generic.InvalidInputError{
			Field:  "shift",
			Value:  w.Entry.String() + "-" + w.Exit.String(),
			Reason: "zero-length shift",
		}
	}
	if err := rules.validateWindow(); err != nil {
		return HourBuckets{}, err
	}

	start, end := w.span()
	total := end - start
	if total > generic.MinutesPerDay {
		return HourBuckets{}, &generic.InvalidInputError{
			Field:  "shift",
			Value:  w.Entry.String() + "-" + w.Exit.String(),
			Reason: "shift longer than 24h",
		}
	}

	split := start + min(rules.BaseMinutes(), total)

	baseNight := nightOverlap(start, split, rules.NightStart, rules.NightEnd)
	otNight := nightOverlap(split, end, rules.NightStart, rules.NightEnd)
	baseDay := (split - start) - baseNight
	otDay := (end - split) - otNight

	b := HourBuckets{
		minutes:      make(map[Category]int, 4),
		shiftMinutes: total,
		holiday:      holiday,
	}
	b.minutes[classify(false, false, holiday)] = roundMinutes(baseDay, rules.RoundToMinutes)
	b.minutes[classify(true, false, holiday)] = roundMinutes(baseNight, rules.RoundToMinutes)
	b.minutes[classify(false, true, holiday)] = roundMinutes(otDay, rules.RoundToMinutes)
	b.minutes[classify(true, true, holiday)] = roundMinutes(otNight, rules.RoundToMinutes)
	return b, nil
}

// nightOverlap returns how many minutes of [from, to) fall inside the night
// window on the linearized two-day timeline.
func nightOverlap(from, to int, nightStart, nightEnd generic.ClockTime) int {
	if to <= from {
		return 0
	}
	ns, ne := nightStart.Minutes(), nightEnd.Minutes()
	overlap := 0
	for day := 0; day < 2; day++ {
		offset := day * generic.MinutesPerDay
		switch {
		case ns == ne:
			// Empty window.
		case ns < ne:
			overlap += intersect(from, to, offset+ns, offset+ne)
		default:
			// Wraps midnight: early-morning tail and late-evening head.
			overlap += intersect(from, to, offset, offset+ne)
			overlap += intersect(from, to, offset+ns, offset+generic.MinutesPerDay)
		}
	}
	return overlap
}

// intersect returns the length of [a1, a2) ∩ [b1, b2).
func intersect(a1, a2, b1, b2 int) int {
	lo, hi := max(a1, b1), min(a2, b2)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// roundMinutes rounds half-up to the granularity; step <= 1 is a no-op.
func roundMinutes(minutes, step int) int {
	if step <= 1 {
		return minutes
	}
	return ((minutes + step/2) / step) * step
}
