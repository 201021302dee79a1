package motivation

import "github.com/shopspring/decimal"

// SoftSalaryOutcome is the weighted completion of a soft salary checklist.
type SoftSalaryOutcome struct {
	EarnedAmount decimal.Decimal
	Percent      decimal.Decimal
	TotalWeight  decimal.Decimal
	EarnedWeight decimal.Decimal
}

// EvaluateSoftSalary pays the component's base amount in proportion to the
// weight of satisfied requirements.
//
// A component that is not a soft salary, or has no requirements, earns full
// credit. A checklist whose weights sum to zero earns nothing.
func EvaluateSoftSalary(comp Component, completed RequirementSet) SoftSalaryOutcome {
	if comp.ComponentType != ComponentSoftSalary || len(comp.FunctionRequirements) == 0 {
		return SoftSalaryOutcome{
			EarnedAmount: comp.BaseAmount,
			Percent:      hundred,
			TotalWeight:  decimal.Zero,
			EarnedWeight: decimal.Zero,
		}
	}

	total, earned := decimal.Zero, decimal.Zero
	for _, r := range comp.FunctionRequirements {
		w := nonNegative(r.Weight)
		total = total.Add(w)
		if completed.Has(r.key()) {
			earned = earned.Add(w)
		}
	}

	out := SoftSalaryOutcome{
		EarnedAmount: decimal.Zero,
		Percent:      decimal.Zero,
		TotalWeight:  total,
		EarnedWeight: earned,
	}
	if total.IsPositive() {
		out.Percent = earned.Div(total).Mul(hundred)
		out.EarnedAmount = comp.BaseAmount.Mul(earned).Div(total)
	}
	return out
}
