package motivation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCALE RESOLVER - Tiered coefficient lookup
// =============================================================================

// ResolveScale returns the payout coefficient for a score (in percent, so a
// KPI of 1.1 is 110) from an ascending table of tiers.
//
// Rules:
//   - First tier with Min <= score < Max wins. Max nil is open-ended.
//   - A score in a gap between tiers, or at/above the last tier's Max, pays
//     the highest tier whose Min it reached. Exceeding the top threshold
//     still pays the top multiplier.
//   - A score below the first tier pays 0.
//   - An empty table is the identity multiplier 1.0.
//
// ResolveScale is total: it never fails and never returns a negative value.
func ResolveScale(table []Tier, score decimal.Decimal) decimal.Decimal {
	if len(table) == 0 {
		return one
	}
	tier, ok := ResolveTier(table, score)
	if !ok {
		return decimal.Zero
	}
	return nonNegative(tier.Coefficient)
}

// ResolveTier returns the tier ResolveScale would pay, and false when the
// score is below every tier (or the table is empty).
func ResolveTier(table []Tier, score decimal.Decimal) (Tier, bool) {
	reached := -1
	for i, t := range table {
		if score.LessThan(t.Min) {
			continue
		}
		if t.Max == nil || score.LessThan(*t.Max) {
			return t, true
		}
		reached = i
	}
	if reached < 0 {
		return Tier{}, false
	}
	return table[reached], true
}

// ValidateScaleTable checks that tiers ascend on Min, each tier's range is
// non-empty, and no two tiers overlap. Only the last tier may be open-ended.
func ValidateScaleTable(table []Tier) error {
	for i, t := range table {
		if t.Max != nil && !t.Max.GreaterThan(t.Min) {
			return &ScaleTableError{Index: i, Reason: "max must be greater than min"}
		}
		if t.Coefficient.IsNegative() {
			return &ScaleTableError{Index: i, Reason: "coefficient must not be negative"}
		}
		if i == 0 {
			continue
		}
		prev := table[i-1]
		if !t.Min.GreaterThan(prev.Min) {
			return &ScaleTableError{Index: i, Reason: "tiers must ascend on min"}
		}
		if prev.Max == nil {
			return &ScaleTableError{Index: i - 1, Reason: "only the last tier may be open-ended"}
		}
		if prev.Max.GreaterThan(t.Min) {
			return &ScaleTableError{Index: i, Reason: "overlaps the previous tier"}
		}
	}
	return nil
}

// GenerateScaleTable builds a stepped table from basePercent to maxPercent.
// A progressive table starts at 0.5 and climbs by 0.2 per step up to 1.5; a
// regressive one starts at 1.5 and falls to 0.5.
func GenerateScaleTable(basePercent, maxPercent, step float64, progressive bool) []Tier {
	if step <= 0 || maxPercent < basePercent {
		return nil
	}
	var (
		low   = decimal.NewFromFloat(0.5)
		high  = decimal.NewFromFloat(1.5)
		delta = decimal.NewFromFloat(0.2)
		st    = decimal.NewFromFloat(step)
		limit = decimal.NewFromFloat(maxPercent)
	)
	coefficient := low
	if !progressive {
		coefficient = high
	}

	var table []Tier
	for pct := decimal.NewFromFloat(basePercent); pct.LessThanOrEqual(limit); pct = pct.Add(st) {
		upper := pct.Add(st)
		table = append(table, Tier{
			Min:         pct,
			Max:         &upper,
			Coefficient: coefficient,
			Name:        fmt.Sprintf("%s-%s%%", pct.String(), upper.String()),
		})
		if progressive {
			coefficient = decimal.Min(high, coefficient.Add(delta))
		} else {
			coefficient = decimal.Max(low, coefficient.Sub(delta))
		}
	}
	return table
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
