/*
Package factory provides JSON to Go payroll configuration conversion.

PURPOSE:
  Converts the stored/admin JSON "parametros" document into a validated
  payroll.Config snapshot, and back. Payroll staff edit multipliers and the
  night window without code changes; every edit becomes a new stored
  version.

JSON SCHEMA:
  {
    "version": 3,
    "nomina":  {"horasLaboralesMes": 220},
    "rules":   {
      "nightStartsAt": "21:00",
      "nightEndsAt": "06:00",
      "baseDailyHours": 8,
      "roundToMinutes": 0
    },
    "recargos": {
      "recargo_nocturno_ordinario": 0.35,
      "recargo_festivo_diurno": 0.80,
      "recargo_festivo_nocturno": 1.15,
      "extra_diurna": 1.25,
      "extra_nocturna": 1.75,
      "extra_diurna_dominical": 2.05,
      "extra_nocturna_dominical": 2.55
    }
  }

  Numbers may be JSON numbers or decimal strings. Any missing field keeps
  its default, so "{}" is the default configuration.

USAGE:
  f := factory.NewConfigFactory()
  cfg, err := f.ParseConfig(jsonString)
  calc := payroll.NewCalculator(shifts, oracle, payroll.StaticConfig{Config: cfg})

SEE ALSO:
  - payroll/ruleset.go: Config, RuleSet, SurchargeTable
  - store/sqlite/config.go: Versioned storage of this document
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of a payroll configuration.
type ConfigJSON struct {
	Version  int           `json:"version,omitempty"`
	Nomina   *NominaJSON   `json:"nomina,omitempty"`
	Rules    *RulesJSON    `json:"rules,omitempty"`
	Recargos *RecargosJSON `json:"recargos,omitempty"`
}

// NominaJSON holds the pay-period base.
type NominaJSON struct {
	HorasLaboralesMes *decimal.Decimal `json:"horasLaboralesMes,omitempty"`
}

// RulesJSON holds the night window and base daily hours.
type RulesJSON struct {
	NightStartsAt  string           `json:"nightStartsAt,omitempty"`
	NightEndsAt    string           `json:"nightEndsAt,omitempty"`
	BaseDailyHours *decimal.Decimal `json:"baseDailyHours,omitempty"`
	RoundToMinutes *int             `json:"roundToMinutes,omitempty"`
}

// RecargosJSON holds the surcharge multipliers.
type RecargosJSON struct {
	NocturnoOrdinario      *decimal.Decimal `json:"recargo_nocturno_ordinario,omitempty"`
	FestivoDiurno          *decimal.Decimal `json:"recargo_festivo_diurno,omitempty"`
	FestivoNocturno        *decimal.Decimal `json:"recargo_festivo_nocturno,omitempty"`
	ExtraDiurna            *decimal.Decimal `json:"extra_diurna,omitempty"`
	ExtraNocturna          *decimal.Decimal `json:"extra_nocturna,omitempty"`
	ExtraDiurnaDominical   *decimal.Decimal `json:"extra_diurna_dominical,omitempty"`
	ExtraNocturnaDominical *decimal.Decimal `json:"extra_nocturna_dominical,omitempty"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts JSON configuration documents to payroll.Config.
type ConfigFactory struct{}

func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseConfig parses a JSON string into a validated Config.
func (f *ConfigFactory) ParseConfig(jsonStr string) (payroll.Config, error) {
	var cj ConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return payroll.Config{}, &generic.InvalidInputError{Field: "config", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigJSON to a validated Config. Missing fields keep
// their defaults.
func (f *ConfigFactory) FromJSON(cj ConfigJSON) (payroll.Config, error) {
	cfg := payroll.DefaultConfig()
	cfg.Version = cj.Version

	if cj.Nomina != nil && cj.Nomina.HorasLaboralesMes != nil {
		cfg.Rules.PayPeriodHours = *cj.Nomina.HorasLaboralesMes
	}

	if r := cj.Rules; r != nil {
		if r.NightStartsAt != "" {
			c, err := generic.ParseClock(r.NightStartsAt)
			if err != nil {
				return payroll.Config{}, fieldError("rules.nightStartsAt", r.NightStartsAt, err)
			}
			cfg.Rules.NightStart = c
		}
		if r.NightEndsAt != "" {
			c, err := generic.ParseClock(r.NightEndsAt)
			if err != nil {
				return payroll.Config{}, fieldError("rules.nightEndsAt", r.NightEndsAt, err)
			}
			cfg.Rules.NightEnd = c
		}
		if r.BaseDailyHours != nil {
			cfg.Rules.BaseDailyHours = *r.BaseDailyHours
		}
		if r.RoundToMinutes != nil {
			cfg.Rules.RoundToMinutes = *r.RoundToMinutes
		}
	}

	if rc := cj.Recargos; rc != nil {
		set := func(dst *decimal.Decimal, src *decimal.Decimal) {
			if src != nil {
				*dst = *src
			}
		}
		set(&cfg.Surcharges.NightOrdinary, rc.NocturnoOrdinario)
		set(&cfg.Surcharges.HolidayDiurnal, rc.FestivoDiurno)
		set(&cfg.Surcharges.HolidayNocturnal, rc.FestivoNocturno)
		set(&cfg.Surcharges.OvertimeDiurnal, rc.ExtraDiurna)
		set(&cfg.Surcharges.OvertimeNocturnal, rc.ExtraNocturna)
		set(&cfg.Surcharges.OvertimeDiurnalHoliday, rc.ExtraDiurnaDominical)
		set(&cfg.Surcharges.OvertimeNocturnalHoliday, rc.ExtraNocturnaDominical)
	}

	if err := cfg.Rules.Validate(); err != nil {
		return payroll.Config{}, err
	}
	if err := cfg.Surcharges.Validate(); err != nil {
		return payroll.Config{}, err
	}
	return cfg, nil
}

// ToJSON converts a Config to its full JSON representation.
func (f *ConfigFactory) ToJSON(cfg payroll.Config) ConfigJSON {
	ptr := func(d decimal.Decimal) *decimal.Decimal { return &d }
	round := cfg.Rules.RoundToMinutes
	return ConfigJSON{
		Version: cfg.Version,
		Nomina:  &NominaJSON{HorasLaboralesMes: ptr(cfg.Rules.PayPeriodHours)},
		Rules: &RulesJSON{
			NightStartsAt:  cfg.Rules.NightStart.String(),
			NightEndsAt:    cfg.Rules.NightEnd.String(),
			BaseDailyHours: ptr(cfg.Rules.BaseDailyHours),
			RoundToMinutes: &round,
		},
		Recargos: &RecargosJSON{
			NocturnoOrdinario:      ptr(cfg.Surcharges.NightOrdinary),
			FestivoDiurno:          ptr(cfg.Surcharges.HolidayDiurnal),
			FestivoNocturno:        ptr(cfg.Surcharges.HolidayNocturnal),
			ExtraDiurna:            ptr(cfg.Surcharges.OvertimeDiurnal),
			ExtraNocturna:          ptr(cfg.Surcharges.OvertimeNocturnal),
			ExtraDiurnaDominical:   ptr(cfg.Surcharges.OvertimeDiurnalHoliday),
			ExtraNocturnaDominical: ptr(cfg.Surcharges.OvertimeNocturnalHoliday),
		},
	}
}

// Marshal serializes a Config for storage.
func (f *ConfigFactory) Marshal(cfg payroll.Config) (string, error) {
	b, err := json.Marshal(f.ToJSON(cfg))
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(b), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func fieldError(field, value string, err error) error {
	return &generic.InvalidInputError{Field: field, Value: value, Reason: err.Error()}
}
