// Package payroll implements the Colombian work-day surcharge engine:
// decomposition of a shift into hour categories, monetary valuation of each
// category, and the day calculation facade that ties them to the shift
// registry and the holiday oracle.
package payroll

// Category names one hour/value bucket of a work day.
type Category string

const (
	// Within the base daily hours.
	Ordinary         Category = "ordinary"
	NightOrdinary    Category = "night_ordinary"
	HolidayDiurnal   Category = "holiday_diurnal"
	HolidayNocturnal Category = "holiday_nocturnal"

	// Beyond the base daily hours.
	OvertimeDiurnal          Category = "overtime_diurnal"
	OvertimeNocturnal        Category = "overtime_nocturnal"
	OvertimeDiurnalHoliday   Category = "overtime_diurnal_holiday"
	OvertimeNocturnalHoliday Category = "overtime_nocturnal_holiday"
)

// Categories lists every category in reporting order.
var Categories = []Category{
	Ordinary,
	NightOrdinary,
	HolidayDiurnal,
	HolidayNocturnal,
	OvertimeDiurnal,
	OvertimeNocturnal,
	OvertimeDiurnalHoliday,
	OvertimeNocturnalHoliday,
}

// IsOvertime reports whether the category holds hours beyond the base.
func (c Category) IsOvertime() bool {
	switch c {
	case OvertimeDiurnal, OvertimeNocturnal, OvertimeDiurnalHoliday, OvertimeNocturnalHoliday:
		return true
	}
	return false
}

// IsSurcharge reports whether the category is a premium layered on top of
// base pay (recargo) rather than a replacement rate.
func (c Category) IsSurcharge() bool {
	switch c {
	case NightOrdinary, HolidayDiurnal, HolidayNocturnal:
		return true
	}
	return false
}

// IsNocturnal reports whether the category counts night-window hours.
func (c Category) IsNocturnal() bool {
	switch c {
	case NightOrdinary, HolidayNocturnal, OvertimeNocturnal, OvertimeNocturnalHoliday:
		return true
	}
	return false
}

// IsHoliday reports whether the category belongs to a Sunday or holiday.
func (c Category) IsHoliday() bool {
	switch c {
	case HolidayDiurnal, HolidayNocturnal, OvertimeDiurnalHoliday, OvertimeNocturnalHoliday:
		return true
	}
	return false
}

// Label is the payroll-sheet name of the category.
func (c Category) Label() string {
	switch c {
	case Ordinary:
		return "Horas Ordinarias"
	case NightOrdinary:
		return "Recargo Nocturno Ordinario"
	case HolidayDiurnal:
		return "Recargo Festivo Diurno"
	case HolidayNocturnal:
		return "Recargo Festivo Nocturno"
	case OvertimeDiurnal:
		return "Extras Diurnas"
	case OvertimeNocturnal:
		return "Extras Nocturnas"
	case OvertimeDiurnalHoliday:
		return "Extras Diurnas Dominical"
	case OvertimeNocturnalHoliday:
		return "Extras Nocturnas Dominical"
	}
	return string(c)
}

// ParseCategory maps a stored category name back to a Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// classify maps a raw (nocturnal, overtime) bucket to its reported category
// for a regular day or a Sunday/holiday.
func classify(nocturnal, overtime, holiday bool) Category {
	switch {
	case !overtime && !nocturnal && !holiday:
		return Ordinary
	case !overtime && nocturnal && !holiday:
		return NightOrdinary
	case !overtime && !nocturnal && holiday:
		return HolidayDiurnal
	case !overtime && nocturnal && holiday:
		return HolidayNocturnal
	case overtime && !nocturnal && !holiday:
		return OvertimeDiurnal
	case overtime && nocturnal && !holiday:
		return OvertimeNocturnal
	case overtime && !nocturnal && holiday:
		return OvertimeDiurnalHoliday
	default:
		return OvertimeNocturnalHoliday
	}
}
