/*
Package factory provides JSON to Go scheme conversion.

PURPOSE:
  Converts JSON scheme definitions into motivation.Scheme values and back.
  HR defines schemes in JSON (admin UI, database rows, preset files) and the
  factory produces validated Go structs the engine evaluates.

JSON SCHEMA:
  {
    "id": "sales-manager",
    "name": "Sales manager: fix + 5% of revenue",
    "kind": "two_parameter",
    "currency": "UZS",
    "bonus_period": "monthly",
    "valid_from": "2025-01-01",
    "components": [
      {"id": "fixed", "component_type": "fixed_salary",
       "calculation_type": "fixed", "base_amount": 3000000},
      {"id": "bonus", "component_type": "bonus",
       "calculation_type": "percentage",
       "percentage_of": "revenue", "percentage_value": 5}
    ]
  }

  A scale component may give "scale_table" explicitly or ask for a
  generated one:
    "generate_scale": {"base_percent": 80, "max_percent": 120,
                       "step": 10, "progressive": true}

DEFAULTS:
  - currency: UZS
  - bonus_period: monthly
  - active: true
  - component id: "c<position>"
  - component order: position in the list, starting at 1

USAGE:
  f := factory.NewSchemeFactory(formula.NewEvaluator())
  scheme, err := f.ParseScheme(sales.TwoParameterSchemeJSON("sm", "Sales", 3_000_000, 5))

SEE ALSO:
  - motivation/scheme.go: Scheme type definition
  - sales/presets.go: Preset JSON builders
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/motivation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemeJSON is the JSON representation of a scheme.
type SchemeJSON struct {
	ID          string          `json:"id"`
	BusinessID  string          `json:"business_id,omitempty"`
	Name        string          `json:"name"`
	Kind        string          `json:"kind,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	BonusPeriod string          `json:"bonus_period,omitempty"`
	ValidFrom   string          `json:"valid_from,omitempty"` // YYYY-MM-DD
	ValidTo     string          `json:"valid_to,omitempty"`
	Active      *bool           `json:"active,omitempty"`
	RetiredAt   *time.Time      `json:"retired_at,omitempty"`
	Version     int             `json:"version,omitempty"`
	Components  []ComponentJSON `json:"components"`
}

// ComponentJSON represents one line item.
type ComponentJSON struct {
	ID                   string             `json:"id,omitempty"`
	Name                 string             `json:"name,omitempty"`
	ComponentType        string             `json:"component_type"`
	CalculationType      string             `json:"calculation_type"`
	BaseAmount           float64            `json:"base_amount,omitempty"`
	MaxAmount            *float64           `json:"max_amount,omitempty"`
	PercentageOf         string             `json:"percentage_of,omitempty"`
	PercentageValue      float64            `json:"percentage_value,omitempty"`
	FunctionRequirements []RequirementJSON  `json:"function_requirements,omitempty"`
	ScaleTable           []TierJSON         `json:"scale_table,omitempty"`
	GenerateScale        *GenerateScaleJSON `json:"generate_scale,omitempty"`
	Formula              string             `json:"formula,omitempty"`
	KpiMetric            string             `json:"kpi_metric,omitempty"`
	Trigger              *TriggerJSON       `json:"trigger,omitempty"`
	Weight               float64            `json:"weight,omitempty"`
	Order                *int               `json:"order,omitempty"`
}

type RequirementJSON struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Weight float64 `json:"weight"`
}

// TierJSON is one scale row. A null max is open-ended.
type TierJSON struct {
	Min         float64  `json:"min"`
	Max         *float64 `json:"max"`
	Coefficient float64  `json:"coefficient"`
	Name        string   `json:"name,omitempty"`
}

type GenerateScaleJSON struct {
	BasePercent float64 `json:"base_percent"`
	MaxPercent  float64 `json:"max_percent"`
	Step        float64 `json:"step"`
	Progressive bool    `json:"progressive"`
}

// TriggerJSON makes a penalty conditional: it applies while metric < threshold.
type TriggerJSON struct {
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
}

// =============================================================================
// SCHEME FACTORY
// =============================================================================

// FormulaChecker compiles formula expressions at load time.
type FormulaChecker interface {
	Compile(expression string) error
}

// SchemeFactory converts JSON schemes to Go structs.
type SchemeFactory struct {
	// Formulas, when set, rejects schemes whose expressions do not compile.
	Formulas FormulaChecker
}

func NewSchemeFactory(formulas FormulaChecker) *SchemeFactory {
	return &SchemeFactory{Formulas: formulas}
}

// ParseScheme parses a JSON string into a validated Scheme.
func (f *SchemeFactory) ParseScheme(jsonStr string) (*motivation.Scheme, error) {
	var sj SchemeJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts SchemeJSON to a validated motivation.Scheme.
func (f *SchemeFactory) FromJSON(sj SchemeJSON) (*motivation.Scheme, error) {
	scheme := &motivation.Scheme{
		ID:          motivation.SchemeID(sj.ID),
		BusinessID:  motivation.BusinessID(sj.BusinessID),
		Name:        sj.Name,
		Kind:        motivation.SchemeKind(sj.Kind),
		Currency:    parseCurrency(sj.Currency),
		BonusPeriod: motivation.ParsePeriodType(sj.BonusPeriod),
		Active:      sj.Active == nil || *sj.Active,
		RetiredAt:   sj.RetiredAt,
		Version:     sj.Version,
	}

	var err error
	if scheme.ValidFrom, err = parseDate("valid_from", sj.ValidFrom); err != nil {
		return nil, err
	}
	if scheme.ValidTo, err = parseDate("valid_to", sj.ValidTo); err != nil {
		return nil, err
	}

	for i, cj := range sj.Components {
		scheme.Components = append(scheme.Components, parseComponent(i, cj))
	}

	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	if f.Formulas != nil {
		for _, c := range scheme.Components {
			if c.CalculationType != motivation.CalcFormula || c.Formula == "" {
				continue
			}
			if err := f.Formulas.Compile(c.Formula); err != nil {
				return nil, &motivation.SchemeError{ComponentID: c.ID, Reason: err.Error()}
			}
		}
	}
	return scheme, nil
}

func parseComponent(i int, cj ComponentJSON) motivation.Component {
	c := motivation.Component{
		ID:              motivation.ComponentID(cj.ID),
		Name:            cj.Name,
		ComponentType:   motivation.ComponentType(cj.ComponentType),
		CalculationType: motivation.CalculationType(cj.CalculationType),
		BaseAmount:      decimal.NewFromFloat(cj.BaseAmount),
		PercentageOf:    cj.PercentageOf,
		PercentageValue: decimal.NewFromFloat(cj.PercentageValue),
		Formula:         cj.Formula,
		KpiMetric:       cj.KpiMetric,
		Weight:          decimal.NewFromFloat(cj.Weight),
		Order:           i + 1,
	}
	if c.ID == "" {
		c.ID = motivation.ComponentID(fmt.Sprintf("c%d", i+1))
	}
	if cj.Order != nil {
		c.Order = *cj.Order
	}
	if cj.MaxAmount != nil {
		c.MaxAmount = motivation.DecimalPtr(*cj.MaxAmount)
	}
	for _, rj := range cj.FunctionRequirements {
		c.FunctionRequirements = append(c.FunctionRequirements, motivation.Requirement{
			ID:     rj.ID,
			Name:   rj.Name,
			Weight: decimal.NewFromFloat(rj.Weight),
		})
	}
	for _, tj := range cj.ScaleTable {
		t := motivation.Tier{
			Min:         decimal.NewFromFloat(tj.Min),
			Coefficient: decimal.NewFromFloat(tj.Coefficient),
			Name:        tj.Name,
		}
		if tj.Max != nil {
			t.Max = motivation.DecimalPtr(*tj.Max)
		}
		c.ScaleTable = append(c.ScaleTable, t)
	}
	if len(c.ScaleTable) == 0 && cj.GenerateScale != nil {
		g := cj.GenerateScale
		c.ScaleTable = motivation.GenerateScaleTable(g.BasePercent, g.MaxPercent, g.Step, g.Progressive)
	}
	if cj.Trigger != nil {
		c.Trigger = &motivation.PenaltyTrigger{
			Metric:    cj.Trigger.Metric,
			Threshold: decimal.NewFromFloat(cj.Trigger.Threshold),
		}
	}
	return c
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// ToJSON converts a Scheme back to its JSON form.
func (f *SchemeFactory) ToJSON(s *motivation.Scheme) SchemeJSON {
	active := s.Active
	sj := SchemeJSON{
		ID:          string(s.ID),
		BusinessID:  string(s.BusinessID),
		Name:        s.Name,
		Kind:        string(s.Kind),
		Currency:    string(s.Currency),
		BonusPeriod: string(s.BonusPeriod),
		Active:      &active,
		RetiredAt:   s.RetiredAt,
		Version:     s.Version,
		Components:  make([]ComponentJSON, 0, len(s.Components)),
	}
	if s.ValidFrom != nil {
		sj.ValidFrom = s.ValidFrom.Format(dateLayout)
	}
	if s.ValidTo != nil {
		sj.ValidTo = s.ValidTo.Format(dateLayout)
	}

	for _, c := range s.OrderedComponents() {
		order := c.Order
		cj := ComponentJSON{
			ID:              string(c.ID),
			Name:            c.Name,
			ComponentType:   string(c.ComponentType),
			CalculationType: string(c.CalculationType),
			BaseAmount:      c.BaseAmount.InexactFloat64(),
			PercentageOf:    c.PercentageOf,
			PercentageValue: c.PercentageValue.InexactFloat64(),
			Formula:         c.Formula,
			KpiMetric:       c.KpiMetric,
			Weight:          c.Weight.InexactFloat64(),
			Order:           &order,
		}
		if c.MaxAmount != nil {
			m := c.MaxAmount.InexactFloat64()
			cj.MaxAmount = &m
		}
		for _, r := range c.FunctionRequirements {
			cj.FunctionRequirements = append(cj.FunctionRequirements, RequirementJSON{
				ID: r.ID, Name: r.Name, Weight: r.Weight.InexactFloat64(),
			})
		}
		for _, t := range c.ScaleTable {
			tj := TierJSON{Min: t.Min.InexactFloat64(), Coefficient: t.Coefficient.InexactFloat64(), Name: t.Name}
			if t.Max != nil {
				m := t.Max.InexactFloat64()
				tj.Max = &m
			}
			cj.ScaleTable = append(cj.ScaleTable, tj)
		}
		if c.Trigger != nil {
			cj.Trigger = &TriggerJSON{Metric: c.Trigger.Metric, Threshold: c.Trigger.Threshold.InexactFloat64()}
		}
		sj.Components = append(sj.Components, cj)
	}
	return sj
}

// Marshal is ToJSON encoded as a string.
func (f *SchemeFactory) Marshal(s *motivation.Scheme) (string, error) {
	b, err := json.Marshal(f.ToJSON(s))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// =============================================================================
// HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, &motivation.SchemeError{Reason: fmt.Sprintf("%s: %v", field, err)}
	}
	return &t, nil
}

func parseCurrency(s string) motivation.Currency {
	if s == "" {
		return motivation.CurrencyUZS
	}
	return motivation.Currency(s)
}
