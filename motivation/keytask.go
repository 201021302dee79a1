package motivation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KEY TASK MAP - Weighted checklist bonus with a completion gate
// =============================================================================

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

type KeyTask struct {
	ID          string
	Title       string
	Weight      decimal.Decimal
	Status      TaskStatus
	CompletedAt *time.Time
}

type KeyTaskMap struct {
	ID         KeyTaskMapID
	BusinessID BusinessID
	UserID     UserID
	Period     Period

	TotalBonusFund       decimal.Decimal
	MinCompletionPercent decimal.Decimal

	// FullBonusPercent only labels the outcome "full"; it does not cap or
	// step the payout.
	FullBonusPercent decimal.Decimal

	Tasks []KeyTask

	Version   int
	UpdatedAt time.Time
}

// Validate checks a map before it is stored. Weights, the fund and the
// gate must not be negative, and task IDs must be unique.
func (m *KeyTaskMap) Validate() error {
	if m.UserID == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidKeyTaskMap)
	}
	if m.TotalBonusFund.IsNegative() {
		return fmt.Errorf("%w: bonus fund must not be negative", ErrInvalidKeyTaskMap)
	}
	if m.MinCompletionPercent.IsNegative() || m.MinCompletionPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: minimum completion must be between 0 and 100", ErrInvalidKeyTaskMap)
	}
	seen := make(map[string]bool, len(m.Tasks))
	for _, t := range m.Tasks {
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate task %q", ErrInvalidKeyTaskMap, t.ID)
		}
		seen[t.ID] = true
		if t.Weight.IsNegative() {
			return fmt.Errorf("%w: task %q has negative weight", ErrInvalidKeyTaskMap, t.ID)
		}
	}
	return nil
}

// CompleteTask marks a task completed at the given time.
func (m *KeyTaskMap) CompleteTask(taskID string, at time.Time) error {
	for i := range m.Tasks {
		if m.Tasks[i].ID == taskID {
			m.Tasks[i].Status = TaskCompleted
			t := at.UTC()
			m.Tasks[i].CompletedAt = &t
			return nil
		}
	}
	return ErrTaskNotFound
}

// ReopenTask returns a task to pending.
func (m *KeyTaskMap) ReopenTask(taskID string) error {
	for i := range m.Tasks {
		if m.Tasks[i].ID == taskID {
			m.Tasks[i].Status = TaskPending
			m.Tasks[i].CompletedAt = nil
			return nil
		}
	}
	return ErrTaskNotFound
}

type KeyTaskBonusStatus string

const (
	KeyTaskBelowThreshold KeyTaskBonusStatus = "below_threshold"
	KeyTaskPartial        KeyTaskBonusStatus = "partial"
	KeyTaskFull           KeyTaskBonusStatus = "full"
)

type KeyTaskBonus struct {
	Earned            decimal.Decimal
	Max               decimal.Decimal
	CompletionPercent decimal.Decimal
	Status            KeyTaskBonusStatus
}

// TaskCompletionPercent is the completed share of total task weight, in
// percent. Zero total weight completes 0%.
func TaskCompletionPercent(tasks []KeyTask) decimal.Decimal {
	total, done := taskWeights(tasks)
	if !total.IsPositive() {
		return decimal.Zero
	}
	return done.Div(total).Mul(hundred)
}

// CalculateKeyTaskBonus pays the fund in proportion to completion once the
// minimum completion gate is reached, and nothing below it.
func CalculateKeyTaskBonus(m KeyTaskMap) KeyTaskBonus {
	total, done := taskWeights(m.Tasks)
	completion := decimal.Zero
	if total.IsPositive() {
		completion = done.Div(total).Mul(hundred)
	}

	out := KeyTaskBonus{
		Earned:            decimal.Zero,
		Max:               m.TotalBonusFund,
		CompletionPercent: completion.Round(2),
		Status:            KeyTaskBelowThreshold,
	}
	if completion.LessThan(m.MinCompletionPercent) || !total.IsPositive() {
		return out
	}

	out.Earned = roundMoney(m.TotalBonusFund.Mul(done).Div(total))
	out.Status = KeyTaskPartial
	if completion.GreaterThanOrEqual(m.FullBonusPercent) {
		out.Status = KeyTaskFull
	}
	return out
}

// ApplyTo writes the map's completion and earned bonus into ctx so a bonus
// component can consume them.
func (m KeyTaskMap) ApplyTo(ctx *Context) *Context {
	b := CalculateKeyTaskBonus(m)
	ctx.Set(KeyTasksCompletion, b.CompletionPercent)
	ctx.Set(KeyKeyTaskBonus, b.Earned)
	return ctx
}

func taskWeights(tasks []KeyTask) (total, done decimal.Decimal) {
	total, done = decimal.Zero, decimal.Zero
	for _, t := range tasks {
		w := nonNegative(t.Weight)
		total = total.Add(w)
		if t.Status == TaskCompleted {
			done = done.Add(w)
		}
	}
	return total, done
}
