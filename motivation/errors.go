/*
errors.go - Centralized error types for the motivation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Note what is NOT here: data-quality anomalies (unknown calculation type,
  missing context key, empty scale table, division by zero) are not errors.
  The engine degrades around them and reports a Warning instead, so one
  malformed employee record never aborts a payroll run.

ERROR CATEGORIES:
  1. Caller bugs - nil scheme or context passed to the engine
  2. Lookup errors - referenced records that don't exist
  3. Workflow errors - illegal status transitions, locked records
  4. Store errors - optimistic concurrency conflicts

SEE ALSO:
  - types.go: Warning side-channel
  - status.go: Transition rules
*/
package motivation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNilScheme is returned when the engine is called without a scheme.
	ErrNilScheme = errors.New("scheme is required")

	// ErrNilContext is returned when the engine is called without a context.
	ErrNilContext = errors.New("calculation context is required")

	ErrSchemeNotFound      = errors.New("scheme not found")
	ErrCalculationNotFound = errors.New("calculation not found")
	ErrTargetNotFound      = errors.New("linked target not found")
	ErrKeyTaskMapNotFound  = errors.New("key task map not found")
	ErrTaskNotFound        = errors.New("key task not found")
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrPenaltyNotFound     = errors.New("penalty not found")
	ErrEmployeeNotFound    = errors.New("employee not found")

	// ErrSchemeRetired is returned when evaluating a tombstoned scheme.
	ErrSchemeRetired = errors.New("scheme is retired")

	// ErrInvalidTransition is returned for a status change the workflow forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCalculationLocked is returned when recalculating an approved or paid record.
	ErrCalculationLocked = errors.New("calculation is locked")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidScheme is returned when a scheme definition is malformed.
	ErrInvalidScheme = errors.New("invalid scheme")

	// ErrInvalidPenalty is returned for a penalty that cannot be recorded as given.
	ErrInvalidPenalty = errors.New("invalid penalty")

	// ErrPenaltyExists is returned when recording a penalty over an existing ID.
	ErrPenaltyExists = errors.New("penalty already exists")

	// ErrInvalidKeyTaskMap is returned when a key task map is malformed.
	ErrInvalidKeyTaskMap = errors.New("invalid key task map")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError describes a rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ScaleTableError points at the tier that breaks the ordering invariant.
type ScaleTableError struct {
	ComponentID ComponentID
	Index       int
	Reason      string
}

func (e *ScaleTableError) Error() string {
	if e.ComponentID != "" {
		return fmt.Sprintf("component %s: scale tier %d: %s", e.ComponentID, e.Index, e.Reason)
	}
	return fmt.Sprintf("scale tier %d: %s", e.Index, e.Reason)
}

func (e *ScaleTableError) Unwrap() error { return ErrInvalidScheme }

// SchemeError describes a malformed scheme definition.
type SchemeError struct {
	ComponentID ComponentID
	Reason      string
}

func (e *SchemeError) Error() string {
	if e.ComponentID != "" {
		return fmt.Sprintf("invalid scheme: component %s: %s", e.ComponentID, e.Reason)
	}
	return "invalid scheme: " + e.Reason
}

func (e *SchemeError) Unwrap() error { return ErrInvalidScheme }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidScheme) ||
		errors.Is(err, ErrInvalidPenalty) ||
		errors.Is(err, ErrInvalidKeyTaskMap) ||
		errors.Is(err, ErrSchemeRetired) ||
		errors.Is(err, ErrCalculationLocked) ||
		errors.Is(err, ErrNilScheme) ||
		errors.Is(err, ErrNilContext)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSchemeNotFound) ||
		errors.Is(err, ErrCalculationNotFound) ||
		errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrKeyTaskMapNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrPenaltyNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}
