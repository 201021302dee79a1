/*
Package marketing provides the marketing domain on top of the motivation engine.

PURPOSE:
  Marketers are paid on lead generation and ad efficiency rather than on a
  revenue plan. This package computes their monthly bonus from lead, CPL
  and ROAS results, and the sales-linked split bonus that ties part of a
  marketing fund to the sales plan.

KEY CONCEPTS:
  - Kpi: A marketer's measured results for one period
  - Targets: Optional goals per TargetKind; a missing target changes the rule
  - Bonus: The component breakdown and final payable amount

BONUS RULES:
  lead        converted * 5,000
              below the leads target: scaled by leads / target
              at or above it: + 2,500 per lead over the target
  cpl         10% of (target CPL - actual CPL) * leads, when actual < target
  roas        5% of (revenue - spend * target ROAS), when actual ROAS > target
  accelerator (lead + cpl + roas) * 0.5, when the average completion of the
              leads and revenue targets reaches 120%
  final       max(0, lead + cpl + roas + accelerator - applied penalties)

SEE ALSO:
  - split.go: Sales-linked 70/30 split bonus
*/
package marketing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/motivation"
)

var (
	leadBonusPerLead      = decimal.NewFromInt(5000)
	extraLeadShare        = decimal.RequireFromString("0.5")
	cplBonusShare         = decimal.RequireFromString("0.10")
	roasBonusShare        = decimal.RequireFromString("0.05")
	acceleratorThreshold  = decimal.RequireFromString("1.2")
	acceleratorMultiplier = decimal.RequireFromString("1.5")
)

type TargetKind string

const (
	TargetLeads   TargetKind = "leads"
	TargetCPL     TargetKind = "cpl"
	TargetROAS    TargetKind = "roas"
	TargetRevenue TargetKind = "revenue"
)

// Targets maps a kind to its goal value. Absent kinds have no target.
type Targets map[TargetKind]decimal.Decimal

func (t Targets) get(kind TargetKind) (decimal.Decimal, bool) {
	v, ok := t[kind]
	return v, ok
}

// Kpi holds a marketer's measured results for one period.
type Kpi struct {
	UserID motivation.UserID
	Period motivation.Period

	LeadsCount     int64
	QualifiedLeads int64
	ConvertedLeads int64

	CplActual    decimal.Decimal
	RoasActual   decimal.Decimal
	TotalSpend   decimal.Decimal
	TotalRevenue decimal.Decimal
}

type Bonus struct {
	UserID motivation.UserID
	Period motivation.Period

	LeadBonus        decimal.Decimal
	CplBonus         decimal.Decimal
	RoasBonus        decimal.Decimal
	AcceleratorBonus decimal.Decimal

	// BaseAmount is lead + cpl + roas, before the accelerator.
	BaseAmount decimal.Decimal
	Total      decimal.Decimal

	PenaltyDeduction decimal.Decimal
	FinalAmount      decimal.Decimal
}

// LeadBonus pays per converted lead, scaled against the leads target.
func LeadBonus(k Kpi, t Targets) decimal.Decimal {
	base := decimal.NewFromInt(k.ConvertedLeads).Mul(leadBonusPerLead)
	target, ok := t.get(TargetLeads)
	if !ok {
		return round(base)
	}
	actual := decimal.NewFromInt(k.LeadsCount)
	if actual.LessThan(target) {
		return round(base.Mul(actual).Div(target))
	}
	extra := actual.Sub(target)
	return round(base.Add(extra.Mul(leadBonusPerLead).Mul(extraLeadShare)))
}

// CplBonus shares the budget saved by beating the cost-per-lead target.
func CplBonus(k Kpi, t Targets) decimal.Decimal {
	target, ok := t.get(TargetCPL)
	if !ok || !k.CplActual.IsPositive() || k.CplActual.GreaterThanOrEqual(target) {
		return decimal.Zero
	}
	saved := target.Sub(k.CplActual).Mul(decimal.NewFromInt(k.LeadsCount))
	return round(saved.Mul(cplBonusShare))
}

// RoasBonus shares the revenue earned beyond the ROAS target.
func RoasBonus(k Kpi, t Targets) decimal.Decimal {
	target, ok := t.get(TargetROAS)
	if !ok || !k.TotalSpend.IsPositive() || k.RoasActual.LessThanOrEqual(target) {
		return decimal.Zero
	}
	extra := k.TotalRevenue.Sub(k.TotalSpend.Mul(target))
	if !extra.IsPositive() {
		return decimal.Zero
	}
	return round(extra.Mul(roasBonusShare))
}

// AverageCompletion is the mean completion ratio (1.0 = met) over the
// leads and revenue targets that are set and positive. ok is false when
// neither applies.
func AverageCompletion(k Kpi, t Targets) (avg decimal.Decimal, ok bool) {
	var rates []decimal.Decimal
	if target, has := t.get(TargetLeads); has && target.IsPositive() {
		rates = append(rates, decimal.NewFromInt(k.LeadsCount).Div(target))
	}
	if target, has := t.get(TargetRevenue); has && target.IsPositive() {
		rates = append(rates, k.TotalRevenue.Div(target))
	}
	if len(rates) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, r := range rates {
		sum = sum.Add(r)
	}
	return sum.Div(decimal.NewFromInt(int64(len(rates)))), true
}

// AcceleratorBonus adds half of the base bonus once average completion
// reaches 120%.
func AcceleratorBonus(k Kpi, t Targets, base decimal.Decimal) decimal.Decimal {
	avg, ok := AverageCompletion(k, t)
	if !ok || avg.LessThan(acceleratorThreshold) {
		return decimal.Zero
	}
	return round(base.Mul(acceleratorMultiplier.Sub(decimal.NewFromInt(1))))
}

// Calculate returns the full bonus for k. Only penalties applied within
// k.Period are deducted, and the final amount never goes below zero.
func Calculate(k Kpi, t Targets, penalties []motivation.Penalty) Bonus {
	b := Bonus{
		UserID:    k.UserID,
		Period:    k.Period,
		LeadBonus: LeadBonus(k, t),
		CplBonus:  CplBonus(k, t),
		RoasBonus: RoasBonus(k, t),
	}
	b.BaseAmount = b.LeadBonus.Add(b.CplBonus).Add(b.RoasBonus)
	b.AcceleratorBonus = AcceleratorBonus(k, t, b.BaseAmount)
	b.Total = b.BaseAmount.Add(b.AcceleratorBonus)
	b.PenaltyDeduction = motivation.SumApplied(penalties, k.Period)
	b.FinalAmount = decimal.Max(decimal.Zero, b.Total.Sub(b.PenaltyDeduction))
	return b
}

func round(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
