/*
scheme.go - Compensation schemes and their components

PURPOSE:
  A Scheme is the contract between the business and an employee about how
  their pay is computed. It owns an ordered list of Components; each
  component is one line item (fixed salary, soft salary, bonus, penalty)
  with its own calculation rule.

KEY CONCEPTS:
  - Scheme: Named, versioned set of components with a validity window
  - Component: One line item with a ComponentType and a CalculationType
  - Tier: One row of a scale table (score range -> coefficient)
  - Requirement: One weighted responsibility of a soft salary

LIFECYCLE:
  Schemes are created by an HR workflow and retired (tombstoned) rather than
  deleted, so past calculations stay explainable.

EXAMPLE (two-parameter: fix + 5% of revenue):
  scheme := Scheme{
      Kind: KindTwoParameter,
      Components: []Component{
          {ComponentType: ComponentFixedSalary, CalculationType: CalcFixed,
           BaseAmount: decimal.NewFromInt(3_000_000), Order: 1},
          {ComponentType: ComponentBonus, CalculationType: CalcPercentage,
           PercentageOf: KeyRevenue, PercentageValue: decimal.NewFromInt(5), Order: 2},
      },
  }
*/
package motivation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEME
// =============================================================================

type Scheme struct {
	ID          SchemeID
	BusinessID  BusinessID
	Name        string
	Kind        SchemeKind
	Currency    Currency
	BonusPeriod PeriodType

	ValidFrom *time.Time
	ValidTo   *time.Time
	Active    bool
	RetiredAt *time.Time

	Components []Component

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Scheme) IsRetired() bool { return s.RetiredAt != nil }

// CoversPeriod reports whether the scheme is usable on any day of period.
func (s *Scheme) CoversPeriod(p Period) bool {
	if !s.Active || s.IsRetired() {
		return false
	}
	if s.ValidFrom != nil && day(p.End).Before(day(*s.ValidFrom)) {
		return false
	}
	if s.ValidTo != nil && day(p.Start).After(day(*s.ValidTo)) {
		return false
	}
	return true
}

// OrderedComponents returns a copy of the components sorted by Order.
// Components sharing an Order keep their declaration order.
func (s *Scheme) OrderedComponents() []Component {
	out := make([]Component, len(s.Components))
	copy(out, s.Components)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// ComponentsOfType returns the ordered components of one type.
func (s *Scheme) ComponentsOfType(t ComponentType) []Component {
	var out []Component
	for _, c := range s.OrderedComponents() {
		if c.ComponentType == t {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy, safe to modify without touching s.
func (s *Scheme) Clone() *Scheme {
	c := *s
	c.Components = make([]Component, len(s.Components))
	for i, comp := range s.Components {
		c.Components[i] = comp.clone()
	}
	return &c
}

// Validate checks the structural invariants a scheme must satisfy before it
// is stored. The calculation engine itself never calls Validate: it stays
// permissive at evaluation time.
func (s *Scheme) Validate() error {
	if s.Name == "" {
		return &SchemeError{Reason: "name is required"}
	}
	if s.Kind != "" && !s.Kind.Valid() {
		return &SchemeError{Reason: "unknown scheme kind " + string(s.Kind)}
	}
	if s.ValidFrom != nil && s.ValidTo != nil && s.ValidTo.Before(*s.ValidFrom) {
		return &SchemeError{Reason: "valid_to is before valid_from"}
	}
	seen := make(map[ComponentID]bool)
	for _, c := range s.Components {
		if c.ID != "" {
			if seen[c.ID] {
				return &SchemeError{ComponentID: c.ID, Reason: "duplicate component id"}
			}
			seen[c.ID] = true
		}
		if c.CalculationType == CalcPercentage && c.PercentageOf == "" {
			return &SchemeError{ComponentID: c.ID, Reason: "percentage component needs percentage_of"}
		}
		if c.PercentageValue.IsNegative() || c.PercentageValue.GreaterThan(hundred) {
			return &SchemeError{ComponentID: c.ID, Reason: "percentage_value must be within 0-100"}
		}
		if c.CalculationType == CalcScale {
			if err := ValidateScaleTable(c.ScaleTable); err != nil {
				if se, ok := err.(*ScaleTableError); ok {
					se.ComponentID = c.ID
				}
				return err
			}
		}
		for _, r := range c.FunctionRequirements {
			if r.Weight.IsNegative() {
				return &SchemeError{ComponentID: c.ID, Reason: "requirement weight must not be negative"}
			}
		}
	}
	return nil
}

// =============================================================================
// COMPONENT
// =============================================================================

type Component struct {
	ID              ComponentID
	Name            string
	ComponentType   ComponentType
	CalculationType CalculationType

	BaseAmount decimal.Decimal

	// MaxAmount caps the computed amount. Nil means uncapped.
	MaxAmount *decimal.Decimal

	// Percentage calculation: ctx[PercentageOf] * PercentageValue / 100
	PercentageOf    string
	PercentageValue decimal.Decimal

	// Soft salary checklist
	FunctionRequirements []Requirement

	// Scale calculation: BaseAmount * coefficient(kpi_score * 100)
	ScaleTable []Tier

	// Formula calculation expression, evaluated when a FormulaEvaluator is
	// configured.
	Formula string

	// KpiMetric links the component to its own KPI: the score is computed
	// from plan_<metric>, fact_<metric> and base_<metric> in the context
	// instead of using the shared kpi_score.
	KpiMetric string

	// Trigger makes a penalty conditional.
	Trigger *PenaltyTrigger

	Weight decimal.Decimal
	Order  int
}

func (c Component) clone() Component {
	out := c
	if c.MaxAmount != nil {
		m := *c.MaxAmount
		out.MaxAmount = &m
	}
	out.FunctionRequirements = append([]Requirement(nil), c.FunctionRequirements...)
	out.ScaleTable = make([]Tier, len(c.ScaleTable))
	for i, t := range c.ScaleTable {
		out.ScaleTable[i] = t
		if t.Max != nil {
			m := *t.Max
			out.ScaleTable[i].Max = &m
		}
	}
	if c.ScaleTable == nil {
		out.ScaleTable = nil
	}
	if c.Trigger != nil {
		tr := *c.Trigger
		out.Trigger = &tr
	}
	return out
}

// Requirement is one weighted responsibility of a soft salary component.
type Requirement struct {
	ID     string
	Name   string
	Weight decimal.Decimal
}

// key is what completion sets are matched against: the ID, or the name for
// requirements defined without one.
func (r Requirement) key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// Tier is one row of a scale table. Max nil means open-ended.
type Tier struct {
	Min         decimal.Decimal
	Max         *decimal.Decimal
	Coefficient decimal.Decimal
	Name        string
}

// PenaltyTrigger applies a penalty only while ctx[Metric] < Threshold.
type PenaltyTrigger struct {
	Metric    string
	Threshold decimal.Decimal
}

// DecimalPtr is a small helper for optional decimal fields.
func DecimalPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
