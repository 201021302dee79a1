/*
Package motivation provides the core compensation engine.

PURPOSE:
  This package turns raw performance inputs (sales results, KPI scores,
  completed responsibilities, key tasks) into monetary compensation
  according to a configurable scheme. Whether the employee is a sales
  manager on "fix + bonus", a department head on a three-parameter scheme,
  or a marketer on a key task map, the same engine evaluates it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary value with a currency
  - Identifiers: Type-safe IDs for schemes, components, users, calculations
  - Enumerations: Scheme kinds, component types, calculation types

DESIGN PRINCIPLES:
  1. Purity: Calculation functions take plain data and return plain data
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Resilience: Data anomalies degrade to safe defaults and are reported
     as warnings, never as panics or errors
  4. Auditability: Results carry per-component lines and applied tiers

USAGE:
  scheme := &motivation.Scheme{Components: []motivation.Component{...}}
  ctx := motivation.NewContext().SetFloat(motivation.KeyRevenue, 40_000_000)
  result, err := motivation.NewAggregator(nil).Aggregate(scheme, ctx)

SEE ALSO:
  - scheme.go: Scheme and component definitions
  - aggregate.go: SchemeAggregator
  - payroll.go: Batch evaluation for a payroll period
*/
package motivation

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money with currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyUZS Currency = "UZS"
	CurrencyUSD Currency = "USD"
)

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromDecimal(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) String() string               { return a.Value.StringFixed(2) + " " + string(a.Currency) }

// roundMoney rounds to two decimal places, the precision every persisted
// amount uses.
func roundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BusinessID string
type UserID string
type SchemeID string
type ComponentID string
type AssignmentID string
type CalculationID string
type TargetID string
type KeyTaskMapID string
type PenaltyID string
type RunID string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// SchemeKind names the motivation methodology a scheme follows.
type SchemeKind string

const (
	// KindTwoParameter: fixed salary + bonus.
	KindTwoParameter SchemeKind = "two_parameter"

	// KindThreeParameter: fixed salary + soft salary + bonus.
	KindThreeParameter SchemeKind = "three_parameter"

	// KindProjectBased: bonus paid per project milestone.
	KindProjectBased SchemeKind = "project_based"

	// KindKeyTasks: bonus driven by a weighted key task map.
	KindKeyTasks SchemeKind = "key_tasks"
)

func (k SchemeKind) Valid() bool {
	switch k {
	case KindTwoParameter, KindThreeParameter, KindProjectBased, KindKeyTasks:
		return true
	}
	return false
}

// ComponentType decides which total a component contributes to.
type ComponentType string

const (
	ComponentFixedSalary ComponentType = "fixed_salary"
	ComponentSoftSalary  ComponentType = "soft_salary"
	ComponentBonus       ComponentType = "bonus"
	ComponentPenalty     ComponentType = "penalty"
)

func (t ComponentType) Valid() bool {
	switch t {
	case ComponentFixedSalary, ComponentSoftSalary, ComponentBonus, ComponentPenalty:
		return true
	}
	return false
}

// CalculationType decides how a component's amount is computed.
type CalculationType string

const (
	CalcFixed      CalculationType = "fixed"
	CalcPercentage CalculationType = "percentage"
	CalcScale      CalculationType = "scale"
	CalcFormula    CalculationType = "formula"
)

func (t CalculationType) Valid() bool {
	switch t {
	case CalcFixed, CalcPercentage, CalcScale, CalcFormula:
		return true
	}
	return false
}

// =============================================================================
// WARNINGS - Side-channel for data anomalies
// =============================================================================

type WarningCode string

const (
	WarnUnknownCalculationType WarningCode = "unknown_calculation_type"
	WarnUnknownComponentType   WarningCode = "unknown_component_type"
	WarnMissingContextKey      WarningCode = "missing_context_key"
	WarnFormulaFailed          WarningCode = "formula_failed"
	WarnAmountCapped           WarningCode = "amount_capped"
	WarnNegativePenalty        WarningCode = "negative_penalty"
	WarnScoreBelowScale        WarningCode = "score_below_scale"
)

// Warning records a data anomaly the engine degraded around. The caller
// decides whether it needs human review.
type Warning struct {
	ComponentID ComponentID
	Code        WarningCode
	Message     string
}
