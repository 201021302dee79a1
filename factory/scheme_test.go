package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/motivation-engine/factory"
	"github.com/warp/motivation-engine/formula"
	"github.com/warp/motivation-engine/motivation"
	"github.com/warp/motivation-engine/sales"
)

func TestParseScheme_TwoParameterPreset(t *testing.T) {
	f := factory.NewSchemeFactory(nil)

	scheme, err := f.ParseScheme(sales.TwoParameterSchemeJSON("sm", "Sales manager", 3_000_000, 5))
	require.NoError(t, err)

	assert.Equal(t, motivation.SchemeID("sm"), scheme.ID)
	assert.Equal(t, motivation.KindTwoParameter, scheme.Kind)
	assert.Equal(t, motivation.CurrencyUZS, scheme.Currency)
	assert.Equal(t, motivation.PeriodMonthly, scheme.BonusPeriod)
	assert.True(t, scheme.Active)
	require.Len(t, scheme.Components, 2)

	ctx := motivation.NewContext().SetFloat(motivation.KeyRevenue, 40_000_000)
	res, err := motivation.NewAggregator(nil).Aggregate(scheme, ctx)
	require.NoError(t, err)
	assert.True(t, res.NetTotal.Value.Equal(decimal.NewFromInt(5_000_000)), res.NetTotal.String())
}

func TestParseScheme_Defaults(t *testing.T) {
	f := factory.NewSchemeFactory(nil)
	jsonStr := `{
		"name": "Minimal",
		"components": [
			{"component_type": "fixed_salary", "calculation_type": "fixed", "base_amount": 100},
			{"component_type": "bonus", "calculation_type": "fixed", "base_amount": 50}
		]
	}`

	scheme, err := f.ParseScheme(jsonStr)
	require.NoError(t, err)

	assert.Equal(t, motivation.ComponentID("c1"), scheme.Components[0].ID)
	assert.Equal(t, 1, scheme.Components[0].Order)
	assert.Equal(t, 2, scheme.Components[1].Order)
	assert.Nil(t, scheme.ValidFrom)
}

func TestParseScheme_ScaleTableWithOpenTopTier(t *testing.T) {
	f := factory.NewSchemeFactory(nil)

	scheme, err := f.ParseScheme(sales.TieredBonusSchemeJSON("tiered", "Tiered", 2_000_000, 1_000_000))
	require.NoError(t, err)

	bonus := scheme.ComponentsOfType(motivation.ComponentBonus)[0]
	require.Len(t, bonus.ScaleTable, 3)
	assert.Nil(t, bonus.ScaleTable[2].Max)
	require.NotNil(t, bonus.ScaleTable[0].Max)
	assert.True(t, bonus.ScaleTable[0].Max.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, "sales_plan", bonus.KpiMetric)
}

func TestParseScheme_GeneratedScale(t *testing.T) {
	f := factory.NewSchemeFactory(nil)

	scheme, err := f.ParseScheme(sales.ThreeParameterSchemeJSON("head", "Head", 2_000_000, 1_000_000, 500_000,
		map[string]float64{"reports": 60, "crm": 40}))
	require.NoError(t, err)

	bonus := scheme.ComponentsOfType(motivation.ComponentBonus)[0]
	assert.Len(t, bonus.ScaleTable, 5)

	soft := scheme.ComponentsOfType(motivation.ComponentSoftSalary)[0]
	require.Len(t, soft.FunctionRequirements, 2)
	assert.Equal(t, "crm", soft.FunctionRequirements[0].ID)
}

func TestParseScheme_RejectsInvalid(t *testing.T) {
	f := factory.NewSchemeFactory(nil)

	_, err := f.ParseScheme(`{not json`)
	assert.Error(t, err)

	_, err = f.ParseScheme(`{"name": "", "components": []}`)
	assert.ErrorIs(t, err, motivation.ErrInvalidScheme)

	_, err = f.ParseScheme(`{"name": "bad date", "valid_from": "01/02/2025", "components": []}`)
	assert.ErrorIs(t, err, motivation.ErrInvalidScheme)

	overlapping := `{"name": "overlap", "components": [{
		"component_type": "bonus", "calculation_type": "scale", "base_amount": 1,
		"scale_table": [{"min": 0, "max": 100, "coefficient": 1}, {"min": 50, "max": null, "coefficient": 2}]
	}]}`
	_, err = f.ParseScheme(overlapping)
	assert.ErrorIs(t, err, motivation.ErrInvalidScheme)
}

func TestParseScheme_FormulaCompiledWhenCheckerSet(t *testing.T) {
	f := factory.NewSchemeFactory(formula.NewEvaluator())
	bad := `{"name": "formula", "components": [
		{"id": "f", "component_type": "bonus", "calculation_type": "formula", "formula": "revenue * (0.05"}
	]}`

	_, err := f.ParseScheme(bad)
	var schemeErr *motivation.SchemeError
	require.ErrorAs(t, err, &schemeErr)
	assert.Equal(t, motivation.ComponentID("f"), schemeErr.ComponentID)

	good := `{"name": "formula", "components": [
		{"id": "f", "component_type": "bonus", "calculation_type": "formula", "formula": "revenue * 0.05"}
	]}`
	_, err = f.ParseScheme(good)
	assert.NoError(t, err)
}

func TestToJSON_RoundTripKeepsSemantics(t *testing.T) {
	// GIVEN: A preset with a conditional penalty
	// WHEN: It is serialized and parsed again
	// THEN: Both evaluate to the same net total
	f := factory.NewSchemeFactory(nil)
	original, err := f.ParseScheme(sales.PlanPenaltySchemeJSON("pp", "Plan penalty", 3_000_000, 5, 500_000, 70))
	require.NoError(t, err)

	encoded, err := f.Marshal(original)
	require.NoError(t, err)
	reparsed, err := f.ParseScheme(encoded)
	require.NoError(t, err)

	ctx := motivation.NewContext().
		SetFloat(motivation.KeyRevenue, 10_000_000).
		SetFloat(motivation.KeyPlanCompletion, 50)
	agg := motivation.NewAggregator(nil)
	a, err := agg.Aggregate(original, ctx)
	require.NoError(t, err)
	b, err := agg.Aggregate(reparsed, ctx)
	require.NoError(t, err)

	assert.True(t, a.NetTotal.Value.Equal(b.NetTotal.Value))
	assert.True(t, a.NetTotal.Value.Equal(decimal.NewFromInt(3_000_000)), a.NetTotal.String())
}
