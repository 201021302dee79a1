package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/motivation"
)

// =============================================================================
// TEAM MOTIVATION - Evaluate every member of a sales department
// =============================================================================

// ErrNoAssignment is reported for a member without a scheme covering the
// period.
var ErrNoAssignment = errors.New("no active motivation assignment")

// MemberResult is one member's outcome. Err is set when the member could
// not be calculated; the rest of the team is unaffected.
type MemberResult struct {
	UserID     motivation.UserID
	Target     Target
	Completion decimal.Decimal
	Record     *motivation.CalculationRecord
	Err        error
}

type TeamResult struct {
	Department Target
	Members    []MemberResult
	NetTotal   decimal.Decimal
	BonusTotal decimal.Decimal
}

// TeamCalculator runs the motivation of a sales department: each member is
// evaluated on their own scheme with their target's revenue as context.
type TeamCalculator struct {
	Assignments motivation.AssignmentRepository
	Runner      *motivation.PayrollRunner
}

// Calculate evaluates the department's individual targets. receivables maps
// a user to their collection rate in percent. With save set each result is
// stored as a calculated record.
func (c *TeamCalculator) Calculate(ctx context.Context, department Target, targets []Target, receivables map[motivation.UserID]decimal.Decimal, save bool) (*TeamResult, error) {
	if department.Type != TargetDepartment {
		return nil, fmt.Errorf("target %s is not a department target", department.ID)
	}
	res := &TeamResult{Department: department, NetTotal: decimal.Zero, BonusTotal: decimal.Zero}

	for _, t := range Members(department, targets) {
		m := MemberResult{UserID: t.UserID, Target: t, Completion: t.Completion()}

		a, err := c.assignment(ctx, t.UserID, t.Period)
		if err != nil {
			m.Err = err
			res.Members = append(res.Members, m)
			continue
		}

		var rate *decimal.Decimal
		if r, ok := receivables[t.UserID]; ok {
			rate = &r
		}
		rec, err := c.Runner.Calculate(ctx, *a, t.Period, t.Inputs(rate), save)
		if err != nil {
			m.Err = err
		} else {
			m.Record = rec
			res.NetTotal = res.NetTotal.Add(rec.Result.NetTotal.Value)
			res.BonusTotal = res.BonusTotal.Add(rec.Result.BonusTotal.Value)
		}
		res.Members = append(res.Members, m)
	}
	return res, nil
}

func (c *TeamCalculator) assignment(ctx context.Context, user motivation.UserID, period motivation.Period) (*motivation.Assignment, error) {
	all, err := c.Assignments.AssignmentsForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.Covers(period) {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", user, ErrNoAssignment)
}
