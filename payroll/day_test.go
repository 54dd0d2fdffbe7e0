package payroll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/generic/store"
	"github.com/warp/recargos-engine/payroll"
)

func dayInput(shift generic.ShiftID, entry, exit string, holiday bool) payroll.DayInput {
	return payroll.DayInput{
		EmployeeID:        "emp-1",
		Date:              generic.NewTimePoint(2025, time.March, 10),
		ShiftID:           shift,
		Entry:             clock(entry),
		Exit:              clock(exit),
		MonthlySalary:     dec("2200000"),
		SundayOrHoliday:   holiday,
		SurchargesEnabled: true,
	}
}

func calculate(t *testing.T, in payroll.DayInput) payroll.DayResult {
	t.Helper()
	res, err := payroll.CalculateDay(in, payroll.DefaultRuleSet(), payroll.DefaultSurchargeTable())
	require.NoError(t, err)
	return res
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCalculateDay_RegularDayWithOvertime(t *testing.T) {
	// GIVEN: salary 2,200,000 / 220h = 10,000/h; 08:00-17:00 on a weekday
	res := calculate(t, dayInput("M9", "08:00", "17:00", false))

	// THEN: 8h ordinary (80,000) + 1h diurnal overtime (12,500)
	assertDecimal(t, "10000", res.HourlyRate)
	assertDecimal(t, "8", res.Hours[payroll.Ordinary])
	assertDecimal(t, "1", res.Hours[payroll.OvertimeDiurnal])
	assertDecimal(t, "80000", res.Values[payroll.Ordinary])
	assertDecimal(t, "12500", res.Values[payroll.OvertimeDiurnal])
	assertDecimal(t, "92500", res.TotalValue)
	assertDecimal(t, "9", res.TotalHours)
	assert.Empty(t, res.Warnings)
}

func TestCalculateDay_SundaySameShift(t *testing.T) {
	// GIVEN: the same employee and shift on a Sunday
	in := dayInput("M9", "08:00", "17:00", true)
	in.Date = generic.NewTimePoint(2025, time.March, 9)
	res := calculate(t, in)

	// THEN: base hours become holiday_diurnal; base pay 80,000 + premium
	// 64,000 + holiday diurnal overtime 20,500
	assertDecimal(t, "0", res.Hours[payroll.Ordinary])
	assertDecimal(t, "8", res.Hours[payroll.HolidayDiurnal])
	assertDecimal(t, "1", res.Hours[payroll.OvertimeDiurnalHoliday])
	assertDecimal(t, "80000", res.Values[payroll.Ordinary])
	assertDecimal(t, "64000", res.Values[payroll.HolidayDiurnal])
	assertDecimal(t, "20500", res.Values[payroll.OvertimeDiurnalHoliday])
	assertDecimal(t, "164500", res.TotalValue)
}

func TestCalculateDay_NightShift(t *testing.T) {
	// GIVEN: 21:00-06:00 at 10,000/h
	res := calculate(t, dayInput("N9", "21:00", "06:00", false))

	// THEN: base 80,000 + night premium 8 x 3,500 + nocturnal overtime 17,500
	assert.True(t, res.CrossesMidnight)
	assertDecimal(t, "80000", res.Values[payroll.Ordinary])
	assertDecimal(t, "28000", res.Values[payroll.NightOrdinary])
	assertDecimal(t, "17500", res.Values[payroll.OvertimeNocturnal])
	assertDecimal(t, "125500", res.TotalValue)
}

func TestCalculateDay_RestDay(t *testing.T) {
	// GIVEN: rest-day code, with garbage times that must be ignored
	res := calculate(t, dayInput(generic.RestDayShiftID, "08:00", "08:00", true))

	// THEN: all zero, no error
	assert.True(t, res.RestDay)
	assert.True(t, res.TotalValue.IsZero())
	assert.True(t, res.TotalHours.IsZero())
	for _, c := range payroll.Categories {
		assert.True(t, res.Hours[c].IsZero(), c)
		assert.True(t, res.Values[c].IsZero(), c)
	}
}

func TestCalculateDay_SurchargesDisabledIsStraightTime(t *testing.T) {
	// GIVEN: an employee exempt from premium pay
	tests := []struct {
		name         string
		entry, exit  string
		holiday      bool
		wantTotal    string
		wantOrdinary string
	}{
		{"regular day", "08:00", "17:00", false, "90000", "90000"},
		{"night", "21:00", "06:00", false, "90000", "90000"},
		{"holiday night", "18:00", "08:00", true, "140000", "140000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := dayInput("X", tt.entry, tt.exit, tt.holiday)
			in.SurchargesEnabled = false
			res := calculate(t, in)

			// THEN: every hour at 10,000, nothing else
			assertDecimal(t, tt.wantTotal, res.TotalValue)
			assertDecimal(t, tt.wantOrdinary, res.Values[payroll.Ordinary])
			for _, c := range payroll.Categories {
				if c != payroll.Ordinary {
					assert.True(t, res.Values[c].IsZero(), c)
				}
			}
			// Hours are still classified.
			assert.True(t, res.TotalHours.IsPositive())
		})
	}
}

func TestCalculateDay_ValuesSumToTotal(t *testing.T) {
	shifts := [][2]string{{"06:00", "14:00"}, {"14:00", "22:00"}, {"22:00", "06:00"}, {"19:00", "07:00"}, {"07:30", "19:45"}}
	for _, s := range shifts {
		for _, holiday := range []bool{false, true} {
			in := dayInput("S", s[0], s[1], holiday)
			in.MonthlySalary = dec("1423500")
			res := calculate(t, in)

			sum := dec("0")
			for _, c := range payroll.Categories {
				sum = sum.Add(res.Values[c])
				assert.False(t, res.Values[c].IsNegative())
			}
			assert.True(t, sum.Equal(res.TotalValue), "%v holiday=%v", s, holiday)
		}
	}
}

func TestCalculateDay_RateRoundedValuesAtFullPrecision(t *testing.T) {
	// GIVEN: 1,423,500 / 220 = 6470.4545...
	in := dayInput("M8", "08:00", "16:00", false)
	in.MonthlySalary = dec("1423500")
	res := calculate(t, in)

	// THEN: the reported rate is in cents, the value uses the exact rate
	assertDecimal(t, "6470.45", res.HourlyRate)
	assertDecimal(t, "51763.64", res.Values[payroll.Ordinary])
}

func TestCalculateDay_Idempotent(t *testing.T) {
	in := dayInput("N9", "19:00", "07:00", true)
	first := calculate(t, in)
	second := calculate(t, in)
	assert.Equal(t, first, second)
}

// =============================================================================
// ERRORS & DEGENERACIES
// =============================================================================

func TestCalculateDay_NegativeSalaryFailsFast(t *testing.T) {
	in := dayInput("M8", "08:00", "16:00", false)
	in.MonthlySalary = dec("-1")

	_, err := payroll.CalculateDay(in, payroll.DefaultRuleSet(), payroll.DefaultSurchargeTable())

	var invalid *generic.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "monthly_salary", invalid.Field)
	assert.True(t, generic.IsClientError(err))
}

func TestCalculateDay_ZeroLengthShiftFails(t *testing.T) {
	_, err := payroll.CalculateDay(dayInput("M8", "08:00", "08:00", false), payroll.DefaultRuleSet(), payroll.DefaultSurchargeTable())
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestCalculateDay_ZeroPayPeriodHoursWarns(t *testing.T) {
	// GIVEN: broken rate data
	rules := payroll.DefaultRuleSet()
	rules.PayPeriodHours = dec("0")

	// WHEN: Calculating
	res, err := payroll.CalculateDay(dayInput("M8", "08:00", "17:00", false), rules, payroll.DefaultSurchargeTable())

	// THEN: no error, zero values, a visible warning; hours still classified
	require.NoError(t, err)
	assert.True(t, res.TotalValue.IsZero())
	assertDecimal(t, "9", res.TotalHours)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, payroll.WarnInvalidPayPeriodHours, res.Warnings[0].Code)
}

func TestValuate_NegativeFactorIsClamped(t *testing.T) {
	table := payroll.DefaultSurchargeTable()
	table.NightOrdinary = dec("-0.35")
	b, err := payroll.Classify(window("21:00", "05:00"), payroll.DefaultRuleSet(), false)
	require.NoError(t, err)

	v := payroll.Valuate(b, dec("2200000"), dec("220"), table, true)

	assert.True(t, v.Values[payroll.NightOrdinary].IsZero())
	assertDecimal(t, "80000", v.Total)
	require.Len(t, v.Warnings, 1)
	assert.Equal(t, payroll.WarnNegativeFactor, v.Warnings[0].Code)
	assert.Equal(t, payroll.NightOrdinary, v.Warnings[0].Category)
}

func TestValuate_NegativeSalaryIsClamped(t *testing.T) {
	b, err := payroll.Classify(window("08:00", "16:00"), payroll.DefaultRuleSet(), false)
	require.NoError(t, err)

	v := payroll.Valuate(b, dec("-100"), dec("220"), payroll.DefaultSurchargeTable(), true)

	assert.True(t, v.Total.IsZero())
	require.NotEmpty(t, v.Warnings)
	assert.Equal(t, payroll.WarnNegativeSalary, v.Warnings[0].Code)
}

// =============================================================================
// CALCULATOR FACADE
// =============================================================================

type fakeOracle struct {
	holidays map[string]bool
	err      error
	calls    int
}

func (f *fakeOracle) IsSundayOrHoliday(_ context.Context, _ generic.CompanyID, date generic.TimePoint) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return date.IsSunday() || f.holidays[date.String()], nil
}

func newCalculator(oracle payroll.HolidayOracle) *payroll.Calculator {
	shifts := store.NewShifts(
		generic.ShiftSpec{ID: "M9", Entry: clock("08:00"), Exit: clock("17:00")},
		generic.ShiftSpec{ID: "N8", Entry: clock("22:00"), Exit: clock("06:00")},
	)
	return payroll.NewCalculator(shifts, oracle, payroll.StaticConfig{Config: payroll.DefaultConfig()})
}

func request(shift generic.ShiftID, date string) payroll.DayRequest {
	return payroll.DayRequest{
		EmployeeID:        "emp-1",
		CompanyID:         "acme",
		Date:              generic.MustParseDate(date),
		ShiftID:           shift,
		MonthlySalary:     dec("2200000"),
		SurchargesEnabled: true,
	}
}

func TestCalculator_ResolvesShiftAndHoliday(t *testing.T) {
	// GIVEN: 2025-03-24 is a (Monday) holiday
	oracle := &fakeOracle{holidays: map[string]bool{"2025-03-24": true}}
	calc := newCalculator(oracle)

	// WHEN: Calculating M9 on the holiday
	res, err := calc.Calculate(context.Background(), request("M9", "2025-03-24"))

	// THEN: holiday buckets are used
	require.NoError(t, err)
	assert.True(t, res.Holiday)
	assertDecimal(t, "164500", res.TotalValue)
	assert.Equal(t, clock("08:00"), res.Entry)
}

func TestCalculator_UnknownShift(t *testing.T) {
	calc := newCalculator(&fakeOracle{})

	_, err := calc.Calculate(context.Background(), request("ZZ", "2025-03-10"))

	var notFound *generic.ShiftNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, generic.ShiftID("ZZ"), notFound.ShiftID)
	assert.True(t, generic.IsNotFound(err))
}

func TestCalculator_OracleFailureIsNotANonHoliday(t *testing.T) {
	// GIVEN: the oracle times out
	cause := context.DeadlineExceeded
	calc := newCalculator(&fakeOracle{err: cause})

	// WHEN: Calculating
	_, err := calc.Calculate(context.Background(), request("M9", "2025-03-10"))

	// THEN: a distinct, retryable lookup error carrying the cause
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrExternalLookup)
	assert.ErrorIs(t, err, cause)
	assert.True(t, generic.IsRetryable(err))
	var lookup *generic.LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "holiday-oracle", lookup.Source)
}

func TestCalculator_MissingOracleIsAnError(t *testing.T) {
	// GIVEN: 2025-03-24 is a Monday holiday but no oracle is wired
	calc := newCalculator(nil)

	// WHEN: Calculating a working day
	_, err := calc.Calculate(context.Background(), request("M9", "2025-03-24"))

	// THEN: the day is not priced as an ordinary Monday
	require.ErrorIs(t, err, payroll.ErrNoHolidayOracle)
	assert.False(t, generic.IsRetryable(err))
}

func TestCalculator_RestDaySkipsLookups(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("down")}
	calc := payroll.NewCalculator(nil, oracle, nil)

	res, err := calc.Calculate(context.Background(), request(generic.RestDayShiftID, "2025-03-09"))

	require.NoError(t, err)
	assert.True(t, res.RestDay)
	assert.Zero(t, oracle.calls)
}

func TestCalculator_ActualClockOverride(t *testing.T) {
	// GIVEN: N8 scheduled 22:00-06:00 but the employee clocked 21:00-06:00
	calc := newCalculator(&fakeOracle{})
	req := request("N8", "2025-03-11")
	entry := clock("21:00")
	req.ActualEntry = &entry

	res, err := calc.Calculate(context.Background(), req)

	require.NoError(t, err)
	assertDecimal(t, "8", res.Hours[payroll.NightOrdinary])
	assertDecimal(t, "1", res.Hours[payroll.OvertimeNocturnal])
	assert.Equal(t, entry, res.Entry)
}

func TestCalculator_ConfigOverridePerCall(t *testing.T) {
	calc := newCalculator(&fakeOracle{})
	cfg := payroll.DefaultConfig()
	cfg.Rules.PayPeriodHours = dec("240")
	cfg.Version = 7
	req := request("M9", "2025-03-10")
	req.Config = &cfg

	res, err := calc.Calculate(context.Background(), req)

	require.NoError(t, err)
	assertDecimal(t, "9166.67", res.HourlyRate)
	assert.Equal(t, 7, res.ConfigVersion)
}

// =============================================================================
// CONFIG LOADING
// =============================================================================

type emptyProvider struct{}

func (emptyProvider) RuleSet(context.Context) (payroll.RuleSet, error) {
	return payroll.RuleSet{}, payroll.ErrNoConfig
}
func (emptyProvider) SurchargeTable(context.Context) (payroll.SurchargeTable, error) {
	return payroll.SurchargeTable{}, payroll.ErrNoConfig
}
func (emptyProvider) PayPeriodHours(context.Context) (decimal.Decimal, error) {
	return dec("230"), nil
}

func TestLoadConfig_FallsBackToDefaults(t *testing.T) {
	cfg, err := payroll.LoadConfig(context.Background(), emptyProvider{})

	require.NoError(t, err)
	assert.Equal(t, payroll.DefaultSurchargeTable(), cfg.Surcharges)
	assertDecimal(t, "230", cfg.Rules.PayPeriodHours)
	assertDecimal(t, "8", cfg.Rules.BaseDailyHours)
}

func TestNewRuleSet_Validates(t *testing.T) {
	_, err := payroll.NewRuleSet(dec("0"), clock("21:00"), clock("06:00"), dec("8"), 0)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = payroll.NewRuleSet(dec("220"), clock("21:00"), clock("06:00"), dec("25"), 0)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	r, err := payroll.NewRuleSet(dec("220"), clock("21:00"), clock("06:00"), dec("7.5"), 5)
	require.NoError(t, err)
	assert.Equal(t, 450, r.BaseMinutes())
}

func TestNewSurchargeTable_RejectsNegative(t *testing.T) {
	table := payroll.DefaultSurchargeTable()
	table.OvertimeDiurnal = dec("-1")
	_, err := payroll.NewSurchargeTable(table)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
