package motivation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/motivation-engine/motivation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func tier(min float64, max *decimal.Decimal, coefficient float64, name string) motivation.Tier {
	return motivation.Tier{
		Min:         decimal.NewFromFloat(min),
		Max:         max,
		Coefficient: decimal.NewFromFloat(coefficient),
		Name:        name,
	}
}

// tieredTable is the 80-99 / 100-119 / 120+ table.
func tieredTable() []motivation.Tier {
	return []motivation.Tier{
		tier(80, motivation.DecimalPtr(99), 1.0, "80-99%"),
		tier(100, motivation.DecimalPtr(119), 1.2, "100-119%"),
		tier(120, nil, 1.5, "120%+"),
	}
}

func twoParameterScheme() *motivation.Scheme {
	return &motivation.Scheme{
		ID:       "two-param",
		Name:     "Sales manager",
		Kind:     motivation.KindTwoParameter,
		Currency: motivation.CurrencyUZS,
		Active:   true,
		Components: []motivation.Component{
			{
				ID:              "fixed",
				ComponentType:   motivation.ComponentFixedSalary,
				CalculationType: motivation.CalcFixed,
				BaseAmount:      dec("3000000"),
				Order:           1,
			},
			{
				ID:              "revenue-bonus",
				ComponentType:   motivation.ComponentBonus,
				CalculationType: motivation.CalcPercentage,
				PercentageOf:    motivation.KeyRevenue,
				PercentageValue: dec("5"),
				Order:           2,
			},
		},
	}
}

func hasWarning(res []motivation.Warning, code motivation.WarningCode) bool {
	for _, w := range res {
		if w.Code == code {
			return true
		}
	}
	return false
}

// =============================================================================
// SCALE RESOLVER
// =============================================================================

func TestResolveScale_TierBoundaries(t *testing.T) {
	table := tieredTable()

	cases := []struct {
		name  string
		score string
		want  string
	}{
		{"below first tier pays nothing", "79.99", "0"},
		{"first tier min is inclusive", "80", "1"},
		{"gap between tiers keeps reached tier", "99.5", "1"},
		{"second tier", "110", "1.2"},
		{"open top tier", "120", "1.5"},
		{"far above top tier", "500", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertDecimal(t, tc.want, motivation.ResolveScale(table, dec(tc.score)))
		})
	}
}

func TestResolveScale_TotalOverScoreRange(t *testing.T) {
	// GIVEN: An open-top table starting at 0
	table := []motivation.Tier{
		tier(0, motivation.DecimalPtr(80), 1.0, "base"),
		tier(80, motivation.DecimalPtr(100), 1.2, "plan"),
		tier(100, nil, 1.5, "over plan"),
	}
	allowed := []string{"1", "1.2", "1.5"}

	// WHEN: Every score from 0 to 1000 in steps of 0.25 is resolved
	// THEN: Each resolves to a tier coefficient and never decreases
	prev := decimal.Zero
	for score := dec("0"); score.LessThanOrEqual(dec("1000")); score = score.Add(dec("0.25")) {
		got := motivation.ResolveScale(table, score)

		require.False(t, got.IsNegative(), "score %s", score)
		require.True(t, got.GreaterThanOrEqual(prev), "score %s: %s after %s", score, got, prev)
		matched := false
		for _, a := range allowed {
			matched = matched || got.Equal(dec(a))
		}
		require.True(t, matched, "score %s resolved to %s", score, got)
		prev = got
	}

	assertDecimal(t, "1", motivation.ResolveScale(table, dec("0")))
	assertDecimal(t, "1.2", motivation.ResolveScale(table, dec("80")))
	assertDecimal(t, "1.5", motivation.ResolveScale(table, dec("150")))
	assertDecimal(t, "1.5", motivation.ResolveScale(table, dec("1000")))
}

func TestResolveScale_EmptyTable_IsIdentity(t *testing.T) {
	assertDecimal(t, "1", motivation.ResolveScale(nil, dec("42")))
	assertDecimal(t, "1", motivation.ResolveScale([]motivation.Tier{}, dec("-5")))
}

func TestResolveScale_ClosedTopTier_PaysTopCoefficientAboveMax(t *testing.T) {
	// GIVEN: A table whose last tier is closed at 150
	// WHEN: The score exceeds every threshold
	// THEN: The top multiplier still applies
	table := []motivation.Tier{
		tier(0, motivation.DecimalPtr(100), 0.5, "low"),
		tier(100, motivation.DecimalPtr(150), 1.3, "high"),
	}
	assertDecimal(t, "1.3", motivation.ResolveScale(table, dec("180")))
}

func TestResolveScale_NegativeCoefficient_ClampedToZero(t *testing.T) {
	table := []motivation.Tier{tier(0, nil, -2, "broken")}
	assertDecimal(t, "0", motivation.ResolveScale(table, dec("50")))
}

func TestResolveTier_ReportsMatchedTier(t *testing.T) {
	got, ok := motivation.ResolveTier(tieredTable(), dec("110"))
	require.True(t, ok)
	assert.Equal(t, "100-119%", got.Name)

	_, ok = motivation.ResolveTier(tieredTable(), dec("10"))
	assert.False(t, ok)
}

func TestValidateScaleTable(t *testing.T) {
	assert.NoError(t, motivation.ValidateScaleTable(tieredTable()))

	overlapping := []motivation.Tier{
		tier(0, motivation.DecimalPtr(100), 1, "a"),
		tier(90, nil, 1.2, "b"),
	}
	err := motivation.ValidateScaleTable(overlapping)
	require.Error(t, err)
	assert.ErrorIs(t, err, motivation.ErrInvalidScheme)

	descending := []motivation.Tier{
		tier(100, motivation.DecimalPtr(120), 1.2, "a"),
		tier(80, motivation.DecimalPtr(99), 1, "b"),
	}
	assert.Error(t, motivation.ValidateScaleTable(descending))

	openInMiddle := []motivation.Tier{
		tier(0, nil, 1, "a"),
		tier(100, nil, 1.2, "b"),
	}
	assert.Error(t, motivation.ValidateScaleTable(openInMiddle))

	emptyRange := []motivation.Tier{tier(50, motivation.DecimalPtr(50), 1, "a")}
	assert.Error(t, motivation.ValidateScaleTable(emptyRange))
}

func TestGenerateScaleTable_Progressive(t *testing.T) {
	table := motivation.GenerateScaleTable(80, 120, 10, true)

	require.Len(t, table, 5)
	assertDecimal(t, "80", table[0].Min)
	assertDecimal(t, "90", *table[0].Max)
	assertDecimal(t, "0.5", table[0].Coefficient)
	assertDecimal(t, "0.7", table[1].Coefficient)
	assertDecimal(t, "1.3", table[4].Coefficient)
	assert.Equal(t, "80-90%", table[0].Name)
	assert.NoError(t, motivation.ValidateScaleTable(table))
}

func TestGenerateScaleTable_RegressiveBottomsOut(t *testing.T) {
	table := motivation.GenerateScaleTable(0, 100, 10, false)

	require.Len(t, table, 11)
	assertDecimal(t, "1.5", table[0].Coefficient)
	assertDecimal(t, "0.5", table[len(table)-1].Coefficient)
}

func TestGenerateScaleTable_InvalidStep(t *testing.T) {
	assert.Nil(t, motivation.GenerateScaleTable(0, 100, 0, true))
	assert.Nil(t, motivation.GenerateScaleTable(100, 50, 10, true))
}

// =============================================================================
// COMPONENT CALCULATOR
// =============================================================================

func TestCalculator_Fixed(t *testing.T) {
	calc := &motivation.Calculator{}
	comp := motivation.Component{CalculationType: motivation.CalcFixed, BaseAmount: dec("3000000")}

	assertDecimal(t, "3000000", calc.Calculate(comp, motivation.NewContext()))
}

func TestCalculator_Percentage(t *testing.T) {
	calc := &motivation.Calculator{}
	comp := motivation.Component{
		CalculationType: motivation.CalcPercentage,
		PercentageOf:    motivation.KeyRevenue,
		PercentageValue: dec("5"),
	}
	ctx := motivation.NewContext().SetFloat(motivation.KeyRevenue, 40_000_000)

	assertDecimal(t, "2000000", calc.Calculate(comp, ctx))
}

func TestCalculator_PercentageOfMissingKey_ReadsZeroWithWarning(t *testing.T) {
	// GIVEN: A percentage component pointing at a key the context lacks
	// WHEN: Evaluating it
	// THEN: The amount is 0 and a warning names the key
	calc := &motivation.Calculator{}
	comp := motivation.Component{
		ID:              "profit-share",
		CalculationType: motivation.CalcPercentage,
		PercentageOf:    motivation.KeyProfit,
		PercentageValue: dec("10"),
	}

	out := calc.Evaluate(comp, motivation.NewContext())

	assertDecimal(t, "0", out.Amount)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, motivation.WarnMissingContextKey, out.Warnings[0].Code)
	assert.Equal(t, motivation.ComponentID("profit-share"), out.Warnings[0].ComponentID)
}

func TestCalculator_Scale_TieredBonus(t *testing.T) {
	// GIVEN: base 1,000,000 on the 80/100/120 table
	// WHEN: kpi_score is 1.1 (110%)
	// THEN: The 100-119 tier applies and pays 1,200,000
	calc := &motivation.Calculator{}
	comp := motivation.Component{
		CalculationType: motivation.CalcScale,
		BaseAmount:      dec("1000000"),
		ScaleTable:      tieredTable(),
	}
	ctx := motivation.NewContext().SetFloat(motivation.KeyKpiScore, 1.1)

	out := calc.Evaluate(comp, ctx)

	assertDecimal(t, "1200000", out.Amount)
	require.NotNil(t, out.Tier)
	assert.Equal(t, "100-119%", out.Tier.Name)
	require.NotNil(t, out.KpiScore)
	assertDecimal(t, "1.1", *out.KpiScore)
}

func TestCalculator_Scale_EmptyTablePaysBase(t *testing.T) {
	calc := &motivation.Calculator{}
	comp := motivation.Component{CalculationType: motivation.CalcScale, BaseAmount: dec("500000")}

	out := calc.Evaluate(comp, motivation.NewContext())

	assertDecimal(t, "500000", out.Amount)
	assert.Nil(t, out.Tier)
	assert.Empty(t, out.Warnings)
}

func TestCalculator_Scale_BelowTableWarns(t *testing.T) {
	calc := &motivation.Calculator{}
	comp := motivation.Component{CalculationType: motivation.CalcScale, BaseAmount: dec("500000"), ScaleTable: tieredTable()}
	ctx := motivation.NewContext().SetFloat(motivation.KeyKpiScore, 0.5)

	out := calc.Evaluate(comp, ctx)

	assertDecimal(t, "0", out.Amount)
	assert.True(t, hasWarning(out.Warnings, motivation.WarnScoreBelowScale))
}

func TestCalculator_UnknownCalculationType_PaysBaseWithWarning(t *testing.T) {
	calc := &motivation.Calculator{}
	comp := motivation.Component{CalculationType: "lottery", BaseAmount: dec("100")}

	out := calc.Evaluate(comp, motivation.NewContext())

	assertDecimal(t, "100", out.Amount)
	assert.True(t, hasWarning(out.Warnings, motivation.WarnUnknownCalculationType))
}

func TestCalculator_FormulaWithoutEvaluator_PaysBase(t *testing.T) {
	calc := &motivation.Calculator{}
	comp := motivation.Component{CalculationType: motivation.CalcFormula, BaseAmount: dec("250"), Formula: "revenue * 0.1"}

	out := calc.Evaluate(comp, motivation.NewContext().SetFloat(motivation.KeyRevenue, 1000))

	assertDecimal(t, "250", out.Amount)
	assert.Empty(t, out.Warnings)
}

type stubFormulas struct {
	result decimal.Decimal
	err    error
	vars   map[string]decimal.Decimal
}

func (s *stubFormulas) Evaluate(_ string, vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	s.vars = vars
	return s.result, s.err
}

func TestCalculator_FormulaUsesEvaluator(t *testing.T) {
	stub := &stubFormulas{result: dec("777")}
	calc := &motivation.Calculator{Formulas: stub}
	comp := motivation.Component{CalculationType: motivation.CalcFormula, BaseAmount: dec("250"), Formula: "base_amount + revenue"}

	out := calc.Evaluate(comp, motivation.NewContext().SetFloat(motivation.KeyRevenue, 1000))

	assertDecimal(t, "777", out.Amount)
	assertDecimal(t, "250", stub.vars["base_amount"])
	assertDecimal(t, "1000", stub.vars[motivation.KeyRevenue])
}

func TestCalculator_FormulaError_FallsBackToBase(t *testing.T) {
	stub := &stubFormulas{err: assert.AnError}
	calc := &motivation.Calculator{Formulas: stub}
	comp := motivation.Component{CalculationType: motivation.CalcFormula, BaseAmount: dec("250"), Formula: "1 +"}

	out := calc.Evaluate(comp, motivation.NewContext())

	assertDecimal(t, "250", out.Amount)
	assert.True(t, hasWarning(out.Warnings, motivation.WarnFormulaFailed))
}

func TestCalculator_KpiMetricLinkage(t *testing.T) {
	// GIVEN: A scale bonus linked to the "leads" metric, and a shared kpi_score of 0
	// WHEN: plan 100, base 0, fact 110 for leads
	// THEN: The component scores itself at 1.1 and lands in the 100-119 tier
	calc := &motivation.Calculator{}
	comp := motivation.Component{
		CalculationType: motivation.CalcScale,
		BaseAmount:      dec("1000"),
		ScaleTable:      tieredTable(),
		KpiMetric:       "leads",
	}
	ctx := motivation.NewContext().
		SetFloat(motivation.KeyKpiScore, 0).
		SetFloat("plan_leads", 100).
		SetFloat("base_leads", 0).
		SetFloat("fact_leads", 110)

	out := calc.Evaluate(comp, ctx)

	assertDecimal(t, "1200", out.Amount)
	assertDecimal(t, "0", ctx.KpiScore(), "shared context must be untouched")
}

func TestCalculator_NilContext_TreatedAsEmpty(t *testing.T) {
	calc := &motivation.Calculator{}
	comp := motivation.Component{CalculationType: motivation.CalcPercentage, PercentageOf: "revenue", PercentageValue: dec("5")}

	assert.NotPanics(t, func() {
		assertDecimal(t, "0", calc.Calculate(comp, nil))
	})
}

// =============================================================================
// SOFT SALARY EVALUATOR
// =============================================================================

func softSalary(base string, reqs ...motivation.Requirement) motivation.Component {
	return motivation.Component{
		ID:                   "soft",
		ComponentType:        motivation.ComponentSoftSalary,
		CalculationType:      motivation.CalcFixed,
		BaseAmount:           dec(base),
		FunctionRequirements: reqs,
	}
}

func req(id string, weight string) motivation.Requirement {
	return motivation.Requirement{ID: id, Weight: dec(weight)}
}

func TestEvaluateSoftSalary_WeightedCompletion(t *testing.T) {
	comp := softSalary("1000000", req("reports", "50"), req("crm", "30"), req("training", "20"))

	out := motivation.EvaluateSoftSalary(comp, motivation.NewRequirementSet("reports", "training"))

	assertDecimal(t, "700000", out.EarnedAmount)
	assertDecimal(t, "70", out.Percent)
	assertDecimal(t, "100", out.TotalWeight)
	assertDecimal(t, "70", out.EarnedWeight)
}

func TestEvaluateSoftSalary_NoRequirements_FullCredit(t *testing.T) {
	out := motivation.EvaluateSoftSalary(softSalary("400000"), nil)

	assertDecimal(t, "400000", out.EarnedAmount)
	assertDecimal(t, "100", out.Percent)
}

func TestEvaluateSoftSalary_ZeroTotalWeight_EarnsNothing(t *testing.T) {
	comp := softSalary("400000", req("a", "0"), req("b", "0"))

	out := motivation.EvaluateSoftSalary(comp, motivation.NewRequirementSet("a", "b"))

	assertDecimal(t, "0", out.EarnedAmount)
	assertDecimal(t, "0", out.Percent)
}

func TestEvaluateSoftSalary_MatchesByNameWithoutID(t *testing.T) {
	comp := softSalary("100", motivation.Requirement{Name: "Weekly report", Weight: dec("1")})

	out := motivation.EvaluateSoftSalary(comp, motivation.NewRequirementSet("Weekly report"))

	assertDecimal(t, "100", out.EarnedAmount)
}

func TestEvaluateSoftSalary_NotSoftSalary_FullCredit(t *testing.T) {
	comp := softSalary("100", req("a", "1"))
	comp.ComponentType = motivation.ComponentBonus

	out := motivation.EvaluateSoftSalary(comp, nil)

	assertDecimal(t, "100", out.EarnedAmount)
	assertDecimal(t, "100", out.Percent)
}

// =============================================================================
// SCHEME AGGREGATOR
// =============================================================================

func TestAggregate_TwoParameterScheme(t *testing.T) {
	// GIVEN: fixed 3,000,000 + 5% of revenue
	// WHEN: revenue is 40,000,000
	// THEN: fixed 3,000,000, bonus 2,000,000, net 5,000,000
	agg := motivation.NewAggregator(nil)
	ctx := motivation.NewContext().SetFloat(motivation.KeyRevenue, 40_000_000)

	res, err := agg.Aggregate(twoParameterScheme(), ctx)
	require.NoError(t, err)

	assertDecimal(t, "3000000", res.FixedTotal.Value)
	assertDecimal(t, "2000000", res.BonusTotal.Value)
	assertDecimal(t, "0", res.PenaltyTotal.Value)
	assertDecimal(t, "5000000", res.NetTotal.Value)
	assert.Equal(t, motivation.CurrencyUZS, res.NetTotal.Currency)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, motivation.ComponentID("fixed"), res.Lines[0].ComponentID)
	assert.Empty(t, res.Warnings)
}

func TestAggregate_ThreeParameterScheme(t *testing.T) {
	scheme := &motivation.Scheme{
		Name:     "Department head",
		Kind:     motivation.KindThreeParameter,
		Currency: motivation.CurrencyUZS,
		Components: []motivation.Component{
			{ID: "bonus", ComponentType: motivation.ComponentBonus, CalculationType: motivation.CalcScale,
				BaseAmount: dec("1000000"), ScaleTable: tieredTable(), Order: 3},
			{ID: "fixed", ComponentType: motivation.ComponentFixedSalary, CalculationType: motivation.CalcFixed,
				BaseAmount: dec("2000000"), Order: 1},
			softSalary("1000000", req("reports", "60"), req("crm", "40")),
		},
	}
	scheme.Components[2].Order = 2
	ctx := motivation.NewContext().SetFloat(motivation.KeyKpiScore, 1.25).Complete("reports")

	res, err := motivation.NewAggregator(nil).Aggregate(scheme, ctx)
	require.NoError(t, err)

	assertDecimal(t, "2000000", res.FixedTotal.Value)
	assertDecimal(t, "600000", res.SoftSalaryTotal.Value)
	assertDecimal(t, "60", res.SoftSalaryPercent)
	assertDecimal(t, "1500000", res.BonusTotal.Value)
	assertDecimal(t, "4100000", res.NetTotal.Value)
	assertDecimal(t, "1.25", res.KpiScore)

	// Lines follow Order, not declaration order.
	require.Len(t, res.Lines, 3)
	assert.Equal(t, motivation.ComponentID("fixed"), res.Lines[0].ComponentID)
	assert.Equal(t, motivation.ComponentID("soft"), res.Lines[1].ComponentID)
	assert.Equal(t, motivation.ComponentID("bonus"), res.Lines[2].ComponentID)
	require.NotNil(t, res.Lines[2].Tier)
	assert.Equal(t, "120%+", res.Lines[2].Tier.Name)
}

func TestAggregate_EmptyScheme_ZeroTotals(t *testing.T) {
	res, err := motivation.NewAggregator(nil).Aggregate(&motivation.Scheme{Name: "empty"}, motivation.NewContext())
	require.NoError(t, err)

	assert.True(t, res.NetTotal.IsZero())
	assert.True(t, res.FixedTotal.IsZero())
	assert.Empty(t, res.Lines)
}

func TestAggregate_NilInputs_FailFast(t *testing.T) {
	agg := motivation.NewAggregator(nil)

	_, err := agg.Aggregate(nil, motivation.NewContext())
	assert.ErrorIs(t, err, motivation.ErrNilScheme)

	_, err = agg.Aggregate(twoParameterScheme(), nil)
	assert.ErrorIs(t, err, motivation.ErrNilContext)
}

func TestAggregate_NegativePenalty_IsDeducted(t *testing.T) {
	// GIVEN: A penalty configured with a negative base amount
	// WHEN: Aggregating
	// THEN: Its magnitude is deducted, never added, and a warning is raised
	scheme := &motivation.Scheme{
		Name: "with penalty",
		Components: []motivation.Component{
			{ID: "fixed", ComponentType: motivation.ComponentFixedSalary, CalculationType: motivation.CalcFixed, BaseAmount: dec("1000")},
			{ID: "late", ComponentType: motivation.ComponentPenalty, CalculationType: motivation.CalcFixed, BaseAmount: dec("-200"), Order: 1},
		},
	}

	res, err := motivation.NewAggregator(nil).Aggregate(scheme, motivation.NewContext())
	require.NoError(t, err)

	assertDecimal(t, "200", res.PenaltyTotal.Value)
	assertDecimal(t, "800", res.NetTotal.Value)
	assert.True(t, hasWarning(res.Warnings, motivation.WarnNegativePenalty))
}

func TestAggregate_ConditionalPenalty(t *testing.T) {
	scheme := &motivation.Scheme{
		Name: "conditional",
		Components: []motivation.Component{
			{ID: "fixed", ComponentType: motivation.ComponentFixedSalary, CalculationType: motivation.CalcFixed, BaseAmount: dec("1000")},
			{
				ID: "low-plan", ComponentType: motivation.ComponentPenalty, CalculationType: motivation.CalcFixed,
				BaseAmount: dec("300"), Order: 1,
				Trigger: &motivation.PenaltyTrigger{Metric: motivation.KeyPlanCompletion, Threshold: dec("50")},
			},
		},
	}
	agg := motivation.NewAggregator(nil)

	t.Run("fires below threshold", func(t *testing.T) {
		res, err := agg.Aggregate(scheme, motivation.NewContext().SetFloat(motivation.KeyPlanCompletion, 40))
		require.NoError(t, err)
		assertDecimal(t, "300", res.PenaltyTotal.Value)
		assertDecimal(t, "700", res.NetTotal.Value)
	})

	t.Run("skipped at threshold", func(t *testing.T) {
		res, err := agg.Aggregate(scheme, motivation.NewContext().SetFloat(motivation.KeyPlanCompletion, 50))
		require.NoError(t, err)
		assertDecimal(t, "0", res.PenaltyTotal.Value)
		assert.True(t, res.Lines[1].Skipped)
	})
}

func TestAggregate_MaxAmountCapsBonus(t *testing.T) {
	scheme := twoParameterScheme()
	scheme.Components[1].MaxAmount = motivation.DecimalPtr(1_500_000)
	ctx := motivation.NewContext().SetFloat(motivation.KeyRevenue, 40_000_000)

	res, err := motivation.NewAggregator(nil).Aggregate(scheme, ctx)
	require.NoError(t, err)

	assertDecimal(t, "1500000", res.BonusTotal.Value)
	assertDecimal(t, "1500000", res.BonusMax.Value)
	assert.True(t, res.Lines[1].Capped)
	assert.True(t, hasWarning(res.Warnings, motivation.WarnAmountCapped))
}

func TestAggregate_UnknownComponentType_NotCounted(t *testing.T) {
	scheme := twoParameterScheme()
	scheme.Components = append(scheme.Components, motivation.Component{
		ID: "mystery", ComponentType: "stock_options", CalculationType: motivation.CalcFixed, BaseAmount: dec("999"), Order: 3,
	})

	res, err := motivation.NewAggregator(nil).Aggregate(scheme, motivation.NewContext().SetFloat(motivation.KeyRevenue, 0))
	require.NoError(t, err)

	assertDecimal(t, "3000000", res.NetTotal.Value)
	assert.True(t, hasWarning(res.Warnings, motivation.WarnUnknownComponentType))
}

func TestAggregate_IsDeterministic(t *testing.T) {
	agg := motivation.NewAggregator(nil)
	ctx := motivation.NewContext().SetFloat(motivation.KeyRevenue, 12_345_678.91)

	first, err := agg.Aggregate(twoParameterScheme(), ctx)
	require.NoError(t, err)
	second, err := agg.Aggregate(twoParameterScheme(), ctx)
	require.NoError(t, err)

	assert.True(t, first.NetTotal.Value.Equal(second.NetTotal.Value))
	assertDecimal(t, "3617283.95", first.NetTotal.Value)
}

// =============================================================================
// SCHEME
// =============================================================================

func TestScheme_Validate(t *testing.T) {
	assert.NoError(t, twoParameterScheme().Validate())

	noName := twoParameterScheme()
	noName.Name = ""
	assert.ErrorIs(t, noName.Validate(), motivation.ErrInvalidScheme)

	badPct := twoParameterScheme()
	badPct.Components[1].PercentageValue = dec("150")
	assert.ErrorIs(t, badPct.Validate(), motivation.ErrInvalidScheme)

	dup := twoParameterScheme()
	dup.Components[1].ID = "fixed"
	assert.ErrorIs(t, dup.Validate(), motivation.ErrInvalidScheme)

	badScale := twoParameterScheme()
	badScale.Components[1].CalculationType = motivation.CalcScale
	badScale.Components[1].ScaleTable = []motivation.Tier{tier(0, nil, 1, "a"), tier(10, nil, 1, "b")}
	err := badScale.Validate()
	var scaleErr *motivation.ScaleTableError
	require.ErrorAs(t, err, &scaleErr)
	assert.Equal(t, motivation.ComponentID("revenue-bonus"), scaleErr.ComponentID)
}

func TestScheme_CloneIsDeep(t *testing.T) {
	s := &motivation.Scheme{Name: "s", Components: []motivation.Component{{ScaleTable: tieredTable()}}}
	c := s.Clone()

	*c.Components[0].ScaleTable[0].Max = dec("1")
	c.Components[0].BaseAmount = dec("5")

	assertDecimal(t, "99", *s.Components[0].ScaleTable[0].Max)
	assertDecimal(t, "0", s.Components[0].BaseAmount)
}
