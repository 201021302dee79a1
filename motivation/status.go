package motivation

import (
	"fmt"
	"time"
)

// =============================================================================
// CALCULATION STATUS - Workflow of a stored calculation
// =============================================================================

// CalculationStatus is the status of a stored calculation, not of the
// engine. Transitions are caller driven.
//
//	draft -> calculated -> approved -> paid
//	  \          \            \
//	   +----------+------------+--> cancelled
//	draft/calculated -> failed -> calculated (retry)
type CalculationStatus string

const (
	StatusDraft      CalculationStatus = "draft"
	StatusCalculated CalculationStatus = "calculated"
	StatusApproved   CalculationStatus = "approved"
	StatusPaid       CalculationStatus = "paid"
	StatusCancelled  CalculationStatus = "cancelled"
	StatusFailed     CalculationStatus = "failed"
)

var calculationTransitions = map[CalculationStatus][]CalculationStatus{
	StatusDraft:      {StatusCalculated, StatusCancelled, StatusFailed},
	StatusCalculated: {StatusCalculated, StatusApproved, StatusCancelled, StatusFailed},
	StatusApproved:   {StatusPaid, StatusCancelled},
	StatusFailed:     {StatusCalculated, StatusCancelled},
}

func (s CalculationStatus) CanTransitionTo(next CalculationStatus) bool {
	for _, allowed := range calculationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s CalculationStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// IsLocked reports whether the stored result may no longer be recalculated.
func (s CalculationStatus) IsLocked() bool {
	return s == StatusApproved || s == StatusPaid || s == StatusCancelled
}

// =============================================================================
// PENALTY STATUS
// =============================================================================

// PenaltyStatus tracks a recorded penalty.
//
//	pending -> applied
//	pending/applied -> disputed -> applied | waived
//	pending/disputed -> cancelled
type PenaltyStatus string

const (
	PenaltyPending   PenaltyStatus = "pending"
	PenaltyApplied   PenaltyStatus = "applied"
	PenaltyDisputed  PenaltyStatus = "disputed"
	PenaltyWaived    PenaltyStatus = "waived"
	PenaltyCancelled PenaltyStatus = "cancelled"
)

var penaltyTransitions = map[PenaltyStatus][]PenaltyStatus{
	PenaltyPending:  {PenaltyApplied, PenaltyDisputed, PenaltyWaived, PenaltyCancelled},
	PenaltyApplied:  {PenaltyDisputed, PenaltyWaived},
	PenaltyDisputed: {PenaltyApplied, PenaltyWaived, PenaltyCancelled},
}

func (s PenaltyStatus) CanTransitionTo(next PenaltyStatus) bool {
	for _, allowed := range penaltyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PenaltyStatus) IsTerminal() bool {
	return s == PenaltyWaived || s == PenaltyCancelled
}

func (s PenaltyStatus) IsValid() bool {
	switch s {
	case PenaltyPending, PenaltyApplied, PenaltyDisputed, PenaltyWaived, PenaltyCancelled:
		return true
	}
	return false
}

// IsInitial reports whether a penalty may be recorded in status s. Later
// statuses are reached only through Transition.
func (s PenaltyStatus) IsInitial() bool {
	return s == PenaltyPending || s == PenaltyApplied
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Approve moves a calculated record to approved.
func (r *CalculationRecord) Approve(by string, at time.Time) error {
	if err := r.transition(StatusApproved); err != nil {
		return err
	}
	t := at.UTC()
	r.ApprovedBy = by
	r.ApprovedAt = &t
	return nil
}

// MarkPaid moves an approved record to paid.
func (r *CalculationRecord) MarkPaid(notes string, at time.Time) error {
	if err := r.transition(StatusPaid); err != nil {
		return err
	}
	t := at.UTC()
	r.PaidAt = &t
	if notes != "" {
		r.Notes = notes
	}
	return nil
}

// Cancel moves any non-terminal record to cancelled.
func (r *CalculationRecord) Cancel(reason string) error {
	if err := r.transition(StatusCancelled); err != nil {
		return err
	}
	if reason != "" {
		r.Notes = reason
	}
	return nil
}

// MarkFailed records why a batch could not calculate this record.
func (r *CalculationRecord) MarkFailed(reason string) error {
	if err := r.transition(StatusFailed); err != nil {
		return err
	}
	r.Error = reason
	return nil
}

func (r *CalculationRecord) transition(to CalculationStatus) error {
	if !r.Status.CanTransitionTo(to) {
		return &TransitionError{From: string(r.Status), To: string(to)}
	}
	r.Status = to
	return nil
}

// ValidateNew checks a penalty before it is first recorded.
func (p *Penalty) ValidateNew() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidPenalty)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPenalty, p.Status)
	}
	if !p.Status.IsInitial() {
		return fmt.Errorf("%w: cannot be recorded as %s", ErrInvalidPenalty, p.Status)
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidPenalty)
	}
	return nil
}

// Transition moves a penalty to the next status.
func (p *Penalty) Transition(to PenaltyStatus) error {
	if !p.Status.CanTransitionTo(to) {
		return &TransitionError{From: string(p.Status), To: string(to)}
	}
	p.Status = to
	return nil
}

// Transition validates a calculation status change without a record, for
// callers that hold only the stored status.
func Transition(from, to CalculationStatus) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: string(from), To: string(to)}
	}
	return nil
}
