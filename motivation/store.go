/*
store.go - Persistence interfaces for schemes, inputs and results

PURPOSE:
  Defines the boundary between the engine and storage. The engine itself
  never touches a repository: Aggregate is pure. Repositories feed the
  context builder on the way in and store calculation records on the way
  out.

KEY INTERFACES:
  SchemeRepository:      Scheme definitions, retired instead of deleted
  AssignmentRepository:  Employee -> scheme mapping
  TargetRepository:      Linked targets and KPI snapshots
  TaskRepository:        Completed requirements and key task maps
  CalculationStore:      Versioned calculation records
  PenaltyRepository:     Recorded penalties
  RunStore:              Payroll batch history

OPTIMISTIC LOCKING:
  SaveCalculation and SaveKeyTaskMap compare the stored Version with the
  caller's. A mismatch returns ErrConcurrentModification and the caller
  reloads and retries. A successful save increments Version.

IMPLEMENTATIONS:
  - motivation/store/memory.go: In-memory for tests and the demo server
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx
*/
package motivation

import "context"

type SchemeRepository interface {
	GetScheme(ctx context.Context, id SchemeID) (*Scheme, error)

	// SaveScheme inserts or replaces a scheme, incrementing its Version.
	SaveScheme(ctx context.Context, s *Scheme) error

	ListSchemes(ctx context.Context, business BusinessID) ([]*Scheme, error)

	// RetireScheme tombstones a scheme. It stays readable so stored
	// calculations remain explainable.
	RetireScheme(ctx context.Context, id SchemeID) error
}

type AssignmentRepository interface {
	SaveAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id AssignmentID) (*Assignment, error)

	// ActiveAssignments returns every active assignment covering period.
	ActiveAssignments(ctx context.Context, period Period) ([]Assignment, error)

	AssignmentsForUser(ctx context.Context, user UserID) ([]Assignment, error)
}

type EmployeeRepository interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id UserID) (*Employee, error)
	ListEmployees(ctx context.Context, business BusinessID) ([]Employee, error)
}

type TargetRepository interface {
	SaveLinkedTarget(ctx context.Context, t LinkedTarget) error
	GetLinkedTarget(ctx context.Context, id TargetID) (*LinkedTarget, error)

	// LinkedTargets returns the user's targets overlapping period.
	LinkedTargets(ctx context.Context, user UserID, period Period) ([]LinkedTarget, error)

	SaveKpiSnapshot(ctx context.Context, s KpiSnapshot) error

	// GetKpiSnapshot returns (nil, nil) when none is stored.
	GetKpiSnapshot(ctx context.Context, user UserID, period Period) (*KpiSnapshot, error)
}

type TaskRepository interface {
	MarkRequirementCompleted(ctx context.Context, user UserID, component ComponentID, requirement string, period Period) error

	// GetCompletedRequirementIDs returns the requirement keys satisfied by user
	// for a soft salary component in period.
	GetCompletedRequirementIDs(ctx context.Context, user UserID, component ComponentID, period Period) (RequirementSet, error)

	SaveKeyTaskMap(ctx context.Context, m *KeyTaskMap) error
	GetKeyTaskMap(ctx context.Context, id KeyTaskMapID) (*KeyTaskMap, error)

	// FindKeyTaskMap returns (nil, nil) when the user has no map for period.
	FindKeyTaskMap(ctx context.Context, user UserID, period Period) (*KeyTaskMap, error)
}

type CalculationStore interface {
	// SaveCalculation inserts a new record (Version 0) or updates an
	// existing one whose stored Version equals r.Version.
	SaveCalculation(ctx context.Context, r *CalculationRecord) error

	GetCalculation(ctx context.Context, id CalculationID) (*CalculationRecord, error)

	// FindCalculation returns (nil, nil) when there is no record for the
	// user, scheme and period.
	FindCalculation(ctx context.Context, user UserID, scheme SchemeID, period Period) (*CalculationRecord, error)

	ListCalculations(ctx context.Context, period Period) ([]CalculationRecord, error)
}

type PenaltyRepository interface {
	// CreatePenalty records a new penalty and returns ErrPenaltyExists
	// when the ID is taken.
	CreatePenalty(ctx context.Context, p Penalty) error
	SavePenalty(ctx context.Context, p Penalty) error
	GetPenalty(ctx context.Context, id PenaltyID) (*Penalty, error)
	PenaltiesForUser(ctx context.Context, user UserID, period Period) ([]Penalty, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, run PayrollRun) error
	ListRuns(ctx context.Context, limit int) ([]PayrollRun, error)
}

// Repository is everything the service layer needs.
type Repository interface {
	SchemeRepository
	AssignmentRepository
	EmployeeRepository
	TargetRepository
	TaskRepository
	CalculationStore
	PenaltyRepository
	RunStore
}
