/*
aggregate.go - SchemeAggregator

PURPOSE:
  Combines every component of a scheme into one structured result:
  fixed + soft salary + bonus - penalties. This is the main entry point of
  the engine.

EVALUATION:
  1. Components are visited in ascending Order (declaration order on ties)
  2. Each is dispatched by ComponentType:
       fixed_salary -> Calculator, into FixedTotal
       soft_salary  -> EvaluateSoftSalary, into SoftSalaryTotal
       bonus        -> Calculator, into BonusTotal
       penalty      -> Calculator, |amount| into PenaltyTotal
  3. MaxAmount caps a component's magnitude
  4. NetTotal = FixedTotal + SoftSalaryTotal + BonusTotal - PenaltyTotal

FAILURE SEMANTICS:
  A malformed component never aborts the aggregation. It degrades to the
  permissive default and adds a Warning. Only a nil scheme or nil context
  returns an error, since those are caller bugs.

PURITY:
  Aggregate reads nothing but its arguments and writes nothing but its
  result. Two calls with equal inputs return equal results, and any number
  of goroutines may share one Aggregator.
*/
package motivation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Line is one component's contribution, kept in evaluation order for audit
// display.
type Line struct {
	ComponentID     ComponentID
	Name            string
	ComponentType   ComponentType
	CalculationType CalculationType
	Order           int

	Amount Amount

	// Tier is the scale tier applied, for scale components.
	Tier *Tier

	// Percent is the completion of a soft salary checklist.
	Percent *decimal.Decimal

	// KpiScore is the score a scale or KPI-linked component was evaluated with.
	KpiScore *decimal.Decimal

	// Capped is set when MaxAmount reduced the amount.
	Capped bool

	// Skipped is set for a conditional penalty whose trigger did not fire.
	Skipped bool
}

// Result is the structured breakdown of one evaluation.
type Result struct {
	SchemeID SchemeID
	Currency Currency
	Lines    []Line

	FixedTotal        Amount
	SoftSalaryTotal   Amount
	SoftSalaryMax     Amount
	SoftSalaryPercent decimal.Decimal
	BonusTotal        Amount
	BonusMax          Amount
	PenaltyTotal      Amount
	NetTotal          Amount

	// KpiScore is the average score across bonus components.
	KpiScore decimal.Decimal

	Warnings []Warning
}

// Aggregator evaluates whole schemes.
type Aggregator struct {
	Calculator *Calculator
}

// NewAggregator returns an aggregator using calc, or a plain calculator when
// calc is nil.
func NewAggregator(calc *Calculator) *Aggregator {
	if calc == nil {
		calc = &Calculator{}
	}
	return &Aggregator{Calculator: calc}
}

// Aggregate evaluates scheme against ctx.
func (a *Aggregator) Aggregate(scheme *Scheme, ctx *Context) (*Result, error) {
	if scheme == nil {
		return nil, ErrNilScheme
	}
	if ctx == nil {
		return nil, ErrNilContext
	}
	calc := a.Calculator
	if calc == nil {
		calc = &Calculator{}
	}

	currency := scheme.Currency
	zero := Amount{Value: decimal.Zero, Currency: currency}
	res := &Result{
		SchemeID:          scheme.ID,
		Currency:          currency,
		Lines:             []Line{},
		FixedTotal:        zero,
		SoftSalaryTotal:   zero,
		SoftSalaryMax:     zero,
		SoftSalaryPercent: decimal.Zero,
		BonusTotal:        zero,
		BonusMax:          zero,
		PenaltyTotal:      zero,
		NetTotal:          zero,
		KpiScore:          decimal.Zero,
	}

	var (
		softPercents []decimal.Decimal
		kpiSum       = decimal.Zero
		kpiCount     int64
	)

	for _, comp := range scheme.OrderedComponents() {
		line := Line{
			ComponentID:     comp.ID,
			Name:            comp.Name,
			ComponentType:   comp.ComponentType,
			CalculationType: comp.CalculationType,
			Order:           comp.Order,
		}
		var amount decimal.Decimal

		switch comp.ComponentType {
		case ComponentFixedSalary:
			out := calc.Evaluate(comp, ctx)
			res.Warnings = append(res.Warnings, out.Warnings...)
			line.Tier, line.KpiScore = out.Tier, out.KpiScore
			amount = a.capped(comp, out.Amount, &line, res)
			res.FixedTotal.Value = res.FixedTotal.Value.Add(amount)

		case ComponentSoftSalary:
			out := EvaluateSoftSalary(comp, ctx.Completed)
			pct := out.Percent.Round(2)
			line.Percent = &pct
			softPercents = append(softPercents, out.Percent)
			amount = a.capped(comp, out.EarnedAmount, &line, res)
			res.SoftSalaryTotal.Value = res.SoftSalaryTotal.Value.Add(amount)
			res.SoftSalaryMax.Value = res.SoftSalaryMax.Value.Add(roundMoney(componentMax(comp)))

		case ComponentBonus:
			out := calc.Evaluate(comp, ctx)
			res.Warnings = append(res.Warnings, out.Warnings...)
			line.Tier = out.Tier
			kpi := ctx.KpiScore()
			if comp.KpiMetric != "" {
				kpi = ctx.MetricKpiScore(comp.KpiMetric)
			}
			if out.KpiScore != nil {
				kpi = *out.KpiScore
			}
			line.KpiScore = &kpi
			kpiSum = kpiSum.Add(kpi)
			kpiCount++
			amount = a.capped(comp, out.Amount, &line, res)
			res.BonusTotal.Value = res.BonusTotal.Value.Add(amount)
			res.BonusMax.Value = res.BonusMax.Value.Add(roundMoney(componentMax(comp)))

		case ComponentPenalty:
			if comp.Trigger != nil && !ctx.Get(comp.Trigger.Metric).LessThan(comp.Trigger.Threshold) {
				line.Skipped = true
				amount = decimal.Zero
				break
			}
			out := calc.Evaluate(comp, ctx)
			res.Warnings = append(res.Warnings, out.Warnings...)
			line.Tier, line.KpiScore = out.Tier, out.KpiScore
			raw := out.Amount
			if raw.IsNegative() {
				res.Warnings = append(res.Warnings, Warning{
					ComponentID: comp.ID,
					Code:        WarnNegativePenalty,
					Message:     fmt.Sprintf("penalty computed as %s, magnitude deducted", roundMoney(raw)),
				})
				raw = raw.Abs()
			}
			amount = a.capped(comp, raw, &line, res)
			res.PenaltyTotal.Value = res.PenaltyTotal.Value.Add(amount)

		default:
			res.Warnings = append(res.Warnings, Warning{
				ComponentID: comp.ID,
				Code:        WarnUnknownComponentType,
				Message:     fmt.Sprintf("unknown component type %q, not counted", comp.ComponentType),
			})
			amount = decimal.Zero
		}

		line.Amount = Amount{Value: amount, Currency: currency}
		res.Lines = append(res.Lines, line)
	}

	if res.SoftSalaryMax.IsPositive() {
		res.SoftSalaryPercent = res.SoftSalaryTotal.Value.Div(res.SoftSalaryMax.Value).Mul(hundred).Round(2)
	} else if len(softPercents) > 0 {
		res.SoftSalaryPercent = decimal.Avg(softPercents[0], softPercents[1:]...).Round(2)
	}
	if kpiCount > 0 {
		res.KpiScore = kpiSum.Div(decimal.NewFromInt(kpiCount)).Round(4)
	}

	res.NetTotal.Value = res.FixedTotal.Value.
		Add(res.SoftSalaryTotal.Value).
		Add(res.BonusTotal.Value).
		Sub(res.PenaltyTotal.Value)

	return res, nil
}

// capped rounds the amount to money precision and applies MaxAmount to its
// magnitude.
func (a *Aggregator) capped(comp Component, amount decimal.Decimal, line *Line, res *Result) decimal.Decimal {
	amount = roundMoney(amount)
	if comp.MaxAmount == nil {
		return amount
	}
	limit := roundMoney(nonNegative(*comp.MaxAmount))
	if amount.Abs().GreaterThan(limit) {
		line.Capped = true
		res.Warnings = append(res.Warnings, Warning{
			ComponentID: comp.ID,
			Code:        WarnAmountCapped,
			Message:     fmt.Sprintf("amount %s capped at %s", amount, limit),
		})
		if amount.IsNegative() {
			return limit.Neg()
		}
		return limit
	}
	return amount
}

// componentMax is the most a component can pay: its cap when set, else its
// base amount.
func componentMax(comp Component) decimal.Decimal {
	if comp.MaxAmount != nil {
		return *comp.MaxAmount
	}
	return comp.BaseAmount
}
