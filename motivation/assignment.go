package motivation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the minimal view of a person the engine pays.
type Employee struct {
	ID           UserID
	BusinessID   BusinessID
	Name         string
	Email        string
	DepartmentID string
	Position     string
	HiredAt      time.Time
	CreatedAt    time.Time
}

// Assignment links an employee to the scheme they are paid by.
type Assignment struct {
	ID         AssignmentID
	BusinessID BusinessID
	UserID     UserID
	SchemeID   SchemeID

	// FixedSalaryOverride replaces the scheme's fixed salary for this
	// employee. Nil keeps the scheme's amount.
	FixedSalaryOverride *decimal.Decimal

	ValidFrom time.Time
	ValidTo   *time.Time
	Active    bool
	CreatedAt time.Time
}

// Covers reports whether the assignment is active on any day of period.
func (a Assignment) Covers(p Period) bool {
	if !a.Active {
		return false
	}
	if day(a.ValidFrom).After(p.End) {
		return false
	}
	if a.ValidTo != nil && day(*a.ValidTo).Before(p.Start) {
		return false
	}
	return true
}

// EffectiveScheme applies the assignment's fixed salary override to a copy of
// the scheme. The first fixed salary component takes the override; a scheme
// without one gains a leading fixed component.
func (a Assignment) EffectiveScheme(s *Scheme) *Scheme {
	if a.FixedSalaryOverride == nil {
		return s
	}
	out := s.Clone()
	first := -1
	minOrder := 0
	for i, c := range out.Components {
		if c.Order < minOrder {
			minOrder = c.Order
		}
		if c.ComponentType != ComponentFixedSalary {
			continue
		}
		if first < 0 || c.Order < out.Components[first].Order {
			first = i
		}
	}
	if first >= 0 {
		out.Components[first].BaseAmount = *a.FixedSalaryOverride
		out.Components[first].CalculationType = CalcFixed
		return out
	}

	out.Components = append([]Component{{
		ID:              ComponentID("fixed-override"),
		Name:            "Fixed salary",
		ComponentType:   ComponentFixedSalary,
		CalculationType: CalcFixed,
		BaseAmount:      *a.FixedSalaryOverride,
		Order:           minOrder - 1,
	}}, out.Components...)
	return out
}
