/*
Package sales provides the sales domain on top of the motivation engine.

PURPOSE:
  Sales managers are paid on revenue plans. This package turns sales
  targets into engine inputs, runs the motivation of a whole sales team,
  and ships preset scheme definitions for the common sales schemes.

KEY CONCEPTS:
  - Target: A revenue plan with base, plan and fact for one period
  - TargetType: department targets group individual ones
  - Metric "sales_plan": the linked metric every sales scheme reads

CONTEXT KEYS WRITTEN:
  plan_sales_plan, fact_sales_plan, base_sales_plan
  revenue                      (fact revenue)
  plan_completion, kpi_score   (from the plan)
  receivables_collection_rate  (100 unless measured)

SEE ALSO:
  - team.go: Team motivation run
  - factory.go: Preset scheme JSON
*/
package sales

import (
	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/motivation"
)

// MetricSalesPlan is the linked metric name of a revenue plan.
const MetricSalesPlan = "sales_plan"

// KeyReceivablesRate is the share of receivables collected, in percent.
const KeyReceivablesRate = "receivables_collection_rate"

var defaultReceivablesRate = decimal.NewFromInt(100)

type TargetType string

const (
	TargetIndividual TargetType = "individual"
	TargetDepartment TargetType = "department"
)

// Target is a revenue plan for an employee or a department.
type Target struct {
	ID           motivation.TargetID
	BusinessID   motivation.BusinessID
	UserID       motivation.UserID
	DepartmentID string
	Type         TargetType
	Period       motivation.Period

	PlanRevenue decimal.Decimal
	BaseRevenue decimal.Decimal
	FactRevenue decimal.Decimal
}

// Linked converts the target into the engine's linked target form.
func (t Target) Linked() motivation.LinkedTarget {
	return motivation.LinkedTarget{
		ID:         t.ID,
		BusinessID: t.BusinessID,
		UserID:     t.UserID,
		Metric:     MetricSalesPlan,
		Period:     t.Period,
		PlanValue:  t.PlanRevenue,
		BaseValue:  t.BaseRevenue,
		FactValue:  t.FactRevenue,
	}
}

// Completion is fact / plan * 100.
func (t Target) Completion() decimal.Decimal {
	return motivation.SyncPlanCompletion(t.Linked())
}

// Inputs returns the context values a sales scheme reads. A nil
// receivables rate counts as fully collected.
func (t Target) Inputs(receivablesRate *decimal.Decimal) map[string]decimal.Decimal {
	ctx := t.Linked().ApplyTo(motivation.NewContext())
	ctx.Set(motivation.KeyRevenue, t.FactRevenue)
	rate := defaultReceivablesRate
	if receivablesRate != nil {
		rate = *receivablesRate
	}
	ctx.Set(KeyReceivablesRate, rate)
	return ctx.Values
}

// Members returns the individual targets of the department target's
// department and period.
func Members(department Target, all []Target) []Target {
	var out []Target
	for _, t := range all {
		if t.Type != TargetIndividual {
			continue
		}
		if t.BusinessID != department.BusinessID || t.DepartmentID != department.DepartmentID {
			continue
		}
		if !t.Period.Start.Equal(department.Period.Start) {
			continue
		}
		out = append(out, t)
	}
	return out
}
