package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/recargos-engine/factory"
	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/payroll"
)

func TestParseConfig_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := factory.NewConfigFactory().ParseConfig(`{}`)

	require.NoError(t, err)
	assert.Equal(t, payroll.DefaultConfig(), cfg)
}

func TestParseConfig_PartialOverride(t *testing.T) {
	// GIVEN: a company with a 240h month, 22:00 night start and a higher
	// night premium given as a string
	doc := `{
		"version": 4,
		"nomina": {"horasLaboralesMes": 240},
		"rules": {"nightStartsAt": "22:00", "roundToMinutes": 15},
		"recargos": {"recargo_nocturno_ordinario": "0.40"}
	}`

	// WHEN: Parsing
	cfg, err := factory.NewConfigFactory().ParseConfig(doc)

	// THEN: overridden fields change, the rest keep defaults
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Version)
	assert.True(t, cfg.Rules.PayPeriodHours.Equal(decimal.NewFromInt(240)))
	assert.Equal(t, "22:00", cfg.Rules.NightStart.String())
	assert.Equal(t, "06:00", cfg.Rules.NightEnd.String())
	assert.Equal(t, 15, cfg.Rules.RoundToMinutes)
	assert.True(t, cfg.Surcharges.NightOrdinary.Equal(decimal.RequireFromString("0.4")))
	assert.True(t, cfg.Surcharges.OvertimeDiurnal.Equal(decimal.RequireFromString("1.25")))
}

func TestParseConfig_Rejects(t *testing.T) {
	tests := map[string]string{
		"malformed":           `{"nomina":`,
		"bad clock":           `{"rules": {"nightStartsAt": "9pm"}}`,
		"zero pay period":     `{"nomina": {"horasLaboralesMes": 0}}`,
		"negative multiplier": `{"recargos": {"extra_diurna": -1.25}}`,
		"base above 24":       `{"rules": {"baseDailyHours": 25}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := factory.NewConfigFactory().ParseConfig(doc)
			assert.ErrorIs(t, err, generic.ErrInvalidInput)
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	f := factory.NewConfigFactory()
	cfg := payroll.DefaultConfig()
	cfg.Version = 2
	cfg.Rules.BaseDailyHours = decimal.RequireFromString("7.5")

	doc, err := f.Marshal(cfg)
	require.NoError(t, err)
	back, err := f.ParseConfig(doc)
	require.NoError(t, err)

	assert.Equal(t, 2, back.Version)
	assert.True(t, back.Rules.BaseDailyHours.Equal(cfg.Rules.BaseDailyHours))
	assert.True(t, back.Surcharges.OvertimeNocturnalHoliday.Equal(cfg.Surcharges.OvertimeNocturnalHoliday))
}
