package motivation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPONENT CALCULATOR
// =============================================================================

// FormulaEvaluator computes a formula component from named variables. The
// variables are the context values plus "base_amount".
type FormulaEvaluator interface {
	Evaluate(expression string, vars map[string]decimal.Decimal) (decimal.Decimal, error)
}

// Calculator computes a single component's amount. It is stateless apart
// from the optional formula evaluator and safe for concurrent use.
type Calculator struct {
	Formulas FormulaEvaluator
}

// ComponentOutcome is the amount of one component plus what produced it.
type ComponentOutcome struct {
	Amount   decimal.Decimal
	Tier     *Tier
	KpiScore *decimal.Decimal
	Warnings []Warning
}

// Calculate returns the component amount for ctx, discarding audit details.
func (c *Calculator) Calculate(comp Component, ctx *Context) decimal.Decimal {
	return c.Evaluate(comp, ctx).Amount
}

// Evaluate computes the component amount:
//
//	fixed      -> BaseAmount
//	percentage -> ctx[PercentageOf] * PercentageValue / 100 (missing key reads 0)
//	scale      -> BaseAmount * ResolveScale(ScaleTable, kpi_score * 100)
//	formula    -> evaluated expression, or BaseAmount without an evaluator
//	unknown    -> BaseAmount, with a warning
//
// No cap is applied here; MaxAmount is the aggregator's concern.
func (c *Calculator) Evaluate(comp Component, ctx *Context) ComponentOutcome {
	if ctx == nil {
		ctx = &Context{}
	}
	ctx = componentContext(comp, ctx)
	var out ComponentOutcome

	switch comp.CalculationType {
	case CalcFixed:
		out.Amount = comp.BaseAmount

	case CalcPercentage:
		base, ok := ctx.Lookup(comp.PercentageOf)
		if !ok {
			out.Warnings = append(out.Warnings, Warning{
				ComponentID: comp.ID,
				Code:        WarnMissingContextKey,
				Message:     fmt.Sprintf("context has no %q, treated as 0", comp.PercentageOf),
			})
		}
		out.Amount = base.Mul(comp.PercentageValue).Div(hundred)

	case CalcScale:
		kpi := ctx.KpiScore()
		out.KpiScore = &kpi
		score := kpi.Mul(hundred)
		coefficient := ResolveScale(comp.ScaleTable, score)
		if tier, ok := ResolveTier(comp.ScaleTable, score); ok {
			out.Tier = &tier
		} else if len(comp.ScaleTable) > 0 {
			out.Warnings = append(out.Warnings, Warning{
				ComponentID: comp.ID,
				Code:        WarnScoreBelowScale,
				Message:     fmt.Sprintf("score %s%% is below the lowest tier", score.Round(2)),
			})
		}
		out.Amount = comp.BaseAmount.Mul(coefficient)

	case CalcFormula:
		out.Amount = comp.BaseAmount
		if c != nil && c.Formulas != nil && comp.Formula != "" {
			v, err := c.Formulas.Evaluate(comp.Formula, formulaVars(comp, ctx))
			if err != nil {
				out.Warnings = append(out.Warnings, Warning{
					ComponentID: comp.ID,
					Code:        WarnFormulaFailed,
					Message:     err.Error(),
				})
			} else {
				out.Amount = v
			}
		}

	default:
		out.Amount = comp.BaseAmount
		out.Warnings = append(out.Warnings, Warning{
			ComponentID: comp.ID,
			Code:        WarnUnknownCalculationType,
			Message:     fmt.Sprintf("unknown calculation type %q, base amount used", comp.CalculationType),
		})
	}
	return out
}

// componentContext applies a component's own KPI linkage. A linked
// component sees its metric's score as kpi_score and plan_completion; the
// shared context is left untouched.
func componentContext(comp Component, ctx *Context) *Context {
	if comp.KpiMetric == "" {
		return ctx
	}
	kpi := ctx.MetricKpiScore(comp.KpiMetric)
	linked := ctx.Clone()
	linked.Set(KeyKpiScore, kpi)
	linked.Set(KeyPlanCompletion, kpi.Mul(hundred))
	return linked
}

func formulaVars(comp Component, ctx *Context) map[string]decimal.Decimal {
	vars := make(map[string]decimal.Decimal, len(ctx.Values)+1)
	for k, v := range ctx.Values {
		vars[k] = v
	}
	vars["base_amount"] = comp.BaseAmount
	return vars
}
