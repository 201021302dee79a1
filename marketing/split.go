package marketing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/motivation"
)

// =============================================================================
// SALES-LINKED BONUS - One fund split between the sales plan and key tasks
// =============================================================================

// DefaultSalesMetric is the linked target a marketer's split follows.
const DefaultSalesMetric = "sales_plan"

// SplitRequest describes a split bonus. Completions left nil are loaded
// from the repositories: the linked target of SalesMetric and the user's
// key task map for the period.
type SplitRequest struct {
	UserID      motivation.UserID
	Period      motivation.Period
	Fund        decimal.Decimal
	Weights     motivation.SplitWeights
	SalesMetric string

	SalesCompletion *decimal.Decimal
	TasksCompletion *decimal.Decimal
}

type SplitResult struct {
	motivation.SplitBonus
	SalesCompletion decimal.Decimal
	TasksCompletion decimal.Decimal
}

// Service computes marketing bonuses against stored inputs.
type Service struct {
	Targets   motivation.TargetRepository
	Tasks     motivation.TaskRepository
	Penalties motivation.PenaltyRepository
}

// Split computes the sales-linked split bonus. A marketer without a target
// or a key task map completes that half at 0%.
func (s *Service) Split(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	if req.Weights.Sales.IsZero() && req.Weights.Tasks.IsZero() {
		req.Weights = motivation.DefaultSplitWeights()
	}
	if req.SalesMetric == "" {
		req.SalesMetric = DefaultSalesMetric
	}

	sales := decimal.Zero
	if req.SalesCompletion != nil {
		sales = *req.SalesCompletion
	} else if s.Targets != nil {
		targets, err := s.Targets.LinkedTargets(ctx, req.UserID, req.Period)
		if err != nil {
			return nil, fmt.Errorf("load targets: %w", err)
		}
		for _, t := range targets {
			if t.Metric == req.SalesMetric {
				sales = motivation.SyncPlanCompletion(t)
				break
			}
		}
	}

	tasks := decimal.Zero
	if req.TasksCompletion != nil {
		tasks = *req.TasksCompletion
	} else if s.Tasks != nil {
		m, err := s.Tasks.FindKeyTaskMap(ctx, req.UserID, req.Period)
		if err != nil {
			return nil, fmt.Errorf("load key task map: %w", err)
		}
		if m != nil {
			tasks = motivation.TaskCompletionPercent(m.Tasks)
		}
	}

	return &SplitResult{
		SplitBonus:      motivation.CalculateSplitBonus(req.Fund, req.Weights, sales, tasks),
		SalesCompletion: sales,
		TasksCompletion: tasks,
	}, nil
}

// MonthlyBonus calculates k against t, deducting the user's stored
// penalties for the period.
func (s *Service) MonthlyBonus(ctx context.Context, k Kpi, t Targets) (*Bonus, error) {
	var penalties []motivation.Penalty
	if s.Penalties != nil {
		var err error
		penalties, err = s.Penalties.PenaltiesForUser(ctx, k.UserID, k.Period)
		if err != nil {
			return nil, fmt.Errorf("load penalties: %w", err)
		}
	}
	b := Calculate(k, t, penalties)
	return &b, nil
}
