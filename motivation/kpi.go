package motivation

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KPI SCORE
// =============================================================================

// KpiScore normalizes a result against its plan:
//
//	KPI = (fact - base) / (plan - base)
//
// base is the zero point: hitting base scores 0, hitting plan scores 1.
// The score is not clamped; it goes negative below base and above 1 past
// plan. A zero denominator scores 0. Rounded to 4 places.
func KpiScore(plan, fact, base decimal.Decimal) decimal.Decimal {
	denominator := plan.Sub(base)
	if denominator.IsZero() {
		return decimal.Zero
	}
	return fact.Sub(base).Div(denominator).Round(4)
}

// =============================================================================
// LINKED TARGET - External plan record feeding a dependent scheme
// =============================================================================

// LinkedTarget is an external performance record, such as a sales plan,
// whose completion feeds another calculation.
type LinkedTarget struct {
	ID         TargetID
	BusinessID BusinessID
	UserID     UserID

	// Metric names the target in the context ("sales_plan", "leads").
	Metric string
	Period Period

	PlanValue decimal.Decimal
	BaseValue decimal.Decimal
	FactValue decimal.Decimal

	UpdatedAt time.Time
}

// KpiScore is (fact - base) / (plan - base) for this target.
func (t LinkedTarget) KpiScore() decimal.Decimal {
	return KpiScore(t.PlanValue, t.FactValue, t.BaseValue)
}

// SyncPlanCompletion returns the plan completion percentage of a linked
// target: fact / plan * 100, or 0 when there is no positive plan.
func SyncPlanCompletion(t LinkedTarget) decimal.Decimal {
	if !t.PlanValue.IsPositive() {
		return decimal.Zero
	}
	return t.FactValue.Div(t.PlanValue).Mul(hundred).Round(4)
}

// ApplyTo writes the target into ctx: its plan_/fact_/base_ metric values,
// and plan_completion plus kpi_score for downstream components.
func (t LinkedTarget) ApplyTo(ctx *Context) *Context {
	if t.Metric != "" {
		ctx.Set(prefixPlan+t.Metric, t.PlanValue)
		ctx.Set(prefixFact+t.Metric, t.FactValue)
		ctx.Set(prefixBase+t.Metric, t.BaseValue)
	}
	ctx.Set(KeyPlanCompletion, SyncPlanCompletion(t))
	ctx.Set(KeyKpiScore, t.KpiScore())
	return ctx
}

// KpiSnapshot is a stored KPI score for a user and period. When present it
// is authoritative over scores derived from targets.
type KpiSnapshot struct {
	UserID     UserID
	BusinessID BusinessID
	Period     Period
	KpiScore   decimal.Decimal
	TakenAt    time.Time
}

// =============================================================================
// SPLIT BONUS - Sales-linked share plus task share of one fund
// =============================================================================

// SplitWeights are percentages of the fund paid for each half of the split.
type SplitWeights struct {
	Sales decimal.Decimal
	Tasks decimal.Decimal
}

// DefaultSplitWeights is the 70/30 sales/tasks split.
func DefaultSplitWeights() SplitWeights {
	return SplitWeights{Sales: decimal.NewFromInt(70), Tasks: decimal.NewFromInt(30)}
}

type SplitBonus struct {
	FromSales decimal.Decimal
	FromTasks decimal.Decimal
	Total     decimal.Decimal
}

// CalculateSplitBonus pays
//
//	fund * sales% * plan_completion% + fund * tasks% * tasks_completion%
//
// The weights are used as given; they are not normalized to 100.
func CalculateSplitBonus(fund decimal.Decimal, w SplitWeights, salesCompletion, tasksCompletion decimal.Decimal) SplitBonus {
	fromSales := roundMoney(fund.Mul(w.Sales).Div(hundred).Mul(salesCompletion).Div(hundred))
	fromTasks := roundMoney(fund.Mul(w.Tasks).Div(hundred).Mul(tasksCompletion).Div(hundred))
	return SplitBonus{
		FromSales: fromSales,
		FromTasks: fromTasks,
		Total:     fromSales.Add(fromTasks),
	}
}
