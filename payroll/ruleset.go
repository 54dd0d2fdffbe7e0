/*
ruleset.go - Jurisdiction rules and surcharge multipliers

PURPOSE:
  Holds the three configuration objects a day calculation needs: the
  pay-period hour base, the night window / base daily hours, and the
  surcharge multiplier table. All are immutable values validated at
  construction; call sites never see a partially populated config.

DEFAULTS (Colombia):
  payPeriodHours  220
  night window    21:00 - 06:00
  baseDailyHours  8
  multipliers     night 0.35, holiday diurnal 0.80, holiday nocturnal 1.15,
                  overtime diurnal 1.25, overtime nocturnal 1.75,
                  overtime diurnal holiday 2.05, overtime nocturnal holiday 2.55

SNAPSHOTS:
  A Config is loaded once per calculation (or per batch) from a
  ConfigProvider. When the provider has nothing stored it returns
  ErrNoConfig and the defaults apply. Any other provider error propagates.

SEE ALSO:
  - factory/config.go: JSON <-> Config
  - store/sqlite/config.go: Versioned storage
*/
package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/recargos-engine/generic"
)

// ErrNoConfig is returned by a ConfigProvider that has no stored
// configuration. Callers fall back to the defaults.
var ErrNoConfig = errors.New("no payroll configuration stored")

// =============================================================================
// RULE SET
// =============================================================================

type RuleSet struct {
	PayPeriodHours decimal.Decimal
	NightStart     generic.ClockTime
	NightEnd       generic.ClockTime
	BaseDailyHours decimal.Decimal
	// RoundToMinutes rounds each reported bucket; 0 or 1 disables rounding.
	RoundToMinutes int
}

// NewRuleSet validates and builds a RuleSet.
func NewRuleSet(payPeriodHours decimal.Decimal, nightStart, nightEnd generic.ClockTime, baseDailyHours decimal.Decimal, roundToMinutes int) (RuleSet, error) {
	r := RuleSet{
		PayPeriodHours: payPeriodHours,
		NightStart:     nightStart,
		NightEnd:       nightEnd,
		BaseDailyHours: baseDailyHours,
		RoundToMinutes: roundToMinutes,
	}
	if err := r.Validate(); err != nil {
		return RuleSet{}, err
	}
	return r, nil
}

func DefaultRuleSet() RuleSet {
	return RuleSet{
		PayPeriodHours: decimal.NewFromInt(220),
		NightStart:     generic.ClockTime(21 * 60),
		NightEnd:       generic.ClockTime(6 * 60),
		BaseDailyHours: decimal.NewFromInt(8),
	}
}

// Validate checks every field.
func (r RuleSet) Validate() error {
	if !r.PayPeriodHours.IsPositive() {
		return &generic.InvalidInputError{Field: "pay_period_hours", Value: r.PayPeriodHours.String(), Reason: "must be positive"}
	}
	return r.validateWindow()
}

// validateWindow checks the fields the decomposition depends on. Pay period
// hours are left to the valuation, which degrades instead of failing.
func (r RuleSet) validateWindow() error {
	if !r.NightStart.Valid() {
		return &generic.InvalidInputError{Field: "night_start", Value: fmt.Sprint(int(r.NightStart)), Reason: "out of range"}
	}
	if !r.NightEnd.Valid() {
		return &generic.InvalidInputError{Field: "night_end", Value: fmt.Sprint(int(r.NightEnd)), Reason: "out of range"}
	}
	if !r.BaseDailyHours.IsPositive() || r.BaseDailyHours.GreaterThan(decimal.NewFromInt(24)) {
		return &generic.InvalidInputError{Field: "base_daily_hours", Value: r.BaseDailyHours.String(), Reason: "must be in (0, 24]"}
	}
	if r.RoundToMinutes < 0 || r.RoundToMinutes > 60 {
		return &generic.InvalidInputError{Field: "round_to_minutes", Value: fmt.Sprint(r.RoundToMinutes), Reason: "must be in [0, 60]"}
	}
	return nil
}

// BaseMinutes is the base daily hours expressed in whole minutes.
func (r RuleSet) BaseMinutes() int {
	return int(r.BaseDailyHours.Mul(decimal.NewFromInt(60)).Round(0).IntPart())
}

// =============================================================================
// SURCHARGE TABLE
// =============================================================================

// SurchargeTable holds the multiplier applied to the hourly rate for each
// premium category. Surcharge factors (night, holiday) are paid on top of
// base pay; overtime factors replace it.
type SurchargeTable struct {
	NightOrdinary            decimal.Decimal
	HolidayDiurnal           decimal.Decimal
	HolidayNocturnal         decimal.Decimal
	OvertimeDiurnal          decimal.Decimal
	OvertimeNocturnal        decimal.Decimal
	OvertimeDiurnalHoliday   decimal.Decimal
	OvertimeNocturnalHoliday decimal.Decimal
}

func DefaultSurchargeTable() SurchargeTable {
	return SurchargeTable{
		NightOrdinary:            decimal.RequireFromString("0.35"),
		HolidayDiurnal:           decimal.RequireFromString("0.80"),
		HolidayNocturnal:         decimal.RequireFromString("1.15"),
		OvertimeDiurnal:          decimal.RequireFromString("1.25"),
		OvertimeNocturnal:        decimal.RequireFromString("1.75"),
		OvertimeDiurnalHoliday:   decimal.RequireFromString("2.05"),
		OvertimeNocturnalHoliday: decimal.RequireFromString("2.55"),
	}
}

// NewSurchargeTable validates and returns the table.
func NewSurchargeTable(t SurchargeTable) (SurchargeTable, error) {
	if err := t.Validate(); err != nil {
		return SurchargeTable{}, err
	}
	return t, nil
}

// Validate rejects negative factors.
func (t SurchargeTable) Validate() error {
	for _, c := range Categories {
		f, ok := t.Factor(c)
		if ok && f.IsNegative() {
			return &generic.InvalidInputError{Field: string(c), Value: f.String(), Reason: "multiplier must not be negative"}
		}
	}
	return nil
}

// Factor returns the multiplier for a category. Ordinary hours have none.
func (t SurchargeTable) Factor(c Category) (decimal.Decimal, bool) {
	switch c {
	case NightOrdinary:
		return t.NightOrdinary, true
	case HolidayDiurnal:
		return t.HolidayDiurnal, true
	case HolidayNocturnal:
		return t.HolidayNocturnal, true
	case OvertimeDiurnal:
		return t.OvertimeDiurnal, true
	case OvertimeNocturnal:
		return t.OvertimeNocturnal, true
	case OvertimeDiurnalHoliday:
		return t.OvertimeDiurnalHoliday, true
	case OvertimeNocturnalHoliday:
		return t.OvertimeNocturnalHoliday, true
	}
	return decimal.Zero, false
}

// =============================================================================
// CONFIG SNAPSHOT & PROVIDER
// =============================================================================

// Config is one consistent, immutable configuration snapshot.
type Config struct {
	Rules      RuleSet
	Surcharges SurchargeTable
	Version    int
}

func DefaultConfig() Config {
	return Config{Rules: DefaultRuleSet(), Surcharges: DefaultSurchargeTable()}
}

// ConfigProvider supplies configuration. Implementations return ErrNoConfig
// when nothing is stored.
type ConfigProvider interface {
	RuleSet(ctx context.Context) (RuleSet, error)
	SurchargeTable(ctx context.Context) (SurchargeTable, error)
	PayPeriodHours(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotProvider is implemented by providers that can read all three
// objects in one consistent read (e.g. one versioned row).
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Config, error)
}

// LoadConfig reads a snapshot from the provider, falling back to defaults
// for anything the provider does not have.
func LoadConfig(ctx context.Context, p ConfigProvider) (Config, error) {
	cfg := DefaultConfig()
	if p == nil {
		return cfg, nil
	}

	if sp, ok := p.(SnapshotProvider); ok {
		snap, err := sp.Snapshot(ctx)
		switch {
		case err == nil:
			return snap, nil
		case errors.Is(err, ErrNoConfig):
			return cfg, nil
		default:
			return Config{}, fmt.Errorf("load config snapshot: %w", err)
		}
	}

	rules, err := p.RuleSet(ctx)
	switch {
	case err == nil:
		cfg.Rules = rules
	case !errors.Is(err, ErrNoConfig):
		return Config{}, fmt.Errorf("load rule set: %w", err)
	}

	table, err := p.SurchargeTable(ctx)
	switch {
	case err == nil:
		cfg.Surcharges = table
	case !errors.Is(err, ErrNoConfig):
		return Config{}, fmt.Errorf("load surcharge table: %w", err)
	}

	hours, err := p.PayPeriodHours(ctx)
	switch {
	case err == nil:
		cfg.Rules.PayPeriodHours = hours
	case !errors.Is(err, ErrNoConfig):
		return Config{}, fmt.Errorf("load pay period hours: %w", err)
	}
	return cfg, nil
}

// StaticConfig serves a fixed snapshot.
type StaticConfig struct {
	Config Config
}

func (s StaticConfig) RuleSet(context.Context) (RuleSet, error) { return s.Config.Rules, nil }
func (s StaticConfig) SurchargeTable(context.Context) (SurchargeTable, error) {
	return s.Config.Surcharges, nil
}
func (s StaticConfig) PayPeriodHours(context.Context) (decimal.Decimal, error) {
	return s.Config.Rules.PayPeriodHours, nil
}
func (s StaticConfig) Snapshot(context.Context) (Config, error) { return s.Config, nil }
