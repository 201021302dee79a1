package motivation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Well-known context keys.
const (
	KeyRevenue        = "revenue"
	KeyProfit         = "profit"
	KeyPlanCompletion = "plan_completion"
	KeyKpiScore       = "kpi_score"

	// KeyBonusEarned is supplied by callers for penalties expressed as a
	// share of the bonus.
	KeyBonusEarned = "bonus_earned"

	// KeyTasksCompletion and KeyKeyTaskBonus carry key task map results.
	KeyTasksCompletion = "tasks_completion"
	KeyKeyTaskBonus    = "key_task_bonus"

	// KeyAppliedPenalties is the sum of applied penalty records in the
	// period, so a penalty component can deduct them.
	KeyAppliedPenalties = "applied_penalties"
)

// Metric key prefixes used by per-component KPI linkage.
const (
	prefixPlan = "plan_"
	prefixFact = "fact_"
	prefixBase = "base_"
)

// RequirementSet is the set of soft-salary requirement IDs (or names) that
// were satisfied in the period.
type RequirementSet map[string]struct{}

func NewRequirementSet(ids ...string) RequirementSet {
	s := make(RequirementSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s RequirementSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s RequirementSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Sorted returns the IDs in lexical order.
func (s RequirementSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Context is the ephemeral set of measured inputs for one evaluation.
// Missing keys read as zero.
type Context struct {
	Values    map[string]decimal.Decimal
	Completed RequirementSet
}

func NewContext() *Context {
	return &Context{
		Values:    make(map[string]decimal.Decimal),
		Completed: make(RequirementSet),
	}
}

func (c *Context) Set(key string, v decimal.Decimal) *Context {
	if c.Values == nil {
		c.Values = make(map[string]decimal.Decimal)
	}
	c.Values[key] = v
	return c
}

func (c *Context) SetFloat(key string, v float64) *Context {
	return c.Set(key, decimal.NewFromFloat(v))
}

// Get returns the value for key, or zero when absent.
func (c *Context) Get(key string) decimal.Decimal {
	return c.Values[key]
}

func (c *Context) Lookup(key string) (decimal.Decimal, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// KpiScore is the shared KPI score as a fraction (1.0 = plan met).
func (c *Context) KpiScore() decimal.Decimal { return c.Get(KeyKpiScore) }

// Complete marks requirement IDs as satisfied.
func (c *Context) Complete(ids ...string) *Context {
	if c.Completed == nil {
		c.Completed = make(RequirementSet)
	}
	c.Completed.Add(ids...)
	return c
}

// Clone returns a copy that can be modified independently.
func (c *Context) Clone() *Context {
	out := NewContext()
	for k, v := range c.Values {
		out.Values[k] = v
	}
	for id := range c.Completed {
		out.Completed[id] = struct{}{}
	}
	return out
}

// MetricKpiScore computes the KPI for a linked metric from the
// plan_/fact_/base_ values in the context.
func (c *Context) MetricKpiScore(metric string) decimal.Decimal {
	return KpiScore(c.Get(prefixPlan+metric), c.Get(prefixFact+metric), c.Get(prefixBase+metric))
}
