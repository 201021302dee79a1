/*
Package sqlite provides a SQLite-backed implementation of motivation.Repository.

PURPOSE:
  Persists schemes, assignments, targets, key task maps, calculation records,
  penalties and payroll runs in one SQLite file. The same schema runs on
  PostgreSQL (see store/postgres) with only dialect differences.

OPTIMISTIC LOCKING:
  calculations and key_task_maps carry a version column. An update only
  succeeds when the stored version equals the caller's; otherwise the save
  fails with motivation.ErrConcurrentModification and the caller re-reads.

KEY TABLES:
  schemes:                 Scheme header + components_json (versioned, tombstoned)
  assignments:             Employee-to-scheme links with validity window
  employees:               Employee records
  linked_targets:          Plan/base/fact per metric and period
  kpi_snapshots:           Authoritative KPI score per user and period
  requirement_completions: Soft salary checklist marks
  key_task_maps:           Key task map header + tasks_json (versioned)
  calculations:            One record per (user, scheme, period) (versioned)
  penalties:               Recorded deductions with workflow status
  payroll_runs:            Batch run log + items_json

ENCODING:
  Money and scores are stored as decimal strings, never floats. Period
  bounds are stored as YYYY-MM-DD so range filters compare lexically.
  Timestamps are RFC3339 in UTC.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, the version
  columns and the unique index do this job instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block
  and a single writer proceeds at a time.

USAGE:
  store, err := sqlite.New("./data/motivation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  runner := motivation.NewPayrollRunner(store, motivation.NewAggregator(nil), nil, logger)

SEE ALSO:
  - motivation/store.go: Interface definitions
  - motivation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/motivation"
)

// Store implements motivation.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ motivation.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each new connection to ":memory:" would be a separate empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schemes (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		bonus_period TEXT NOT NULL DEFAULT 'monthly',
		valid_from TEXT,
		valid_to TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		retired_at TEXT,
		components_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schemes_business
		ON schemes(business_id);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		scheme_id TEXT NOT NULL,
		fixed_salary_override TEXT,
		valid_from TEXT NOT NULL,
		valid_to TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_user
		ON assignments(user_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_active
		ON assignments(active, valid_from, valid_to);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		email TEXT,
		department_id TEXT,
		position TEXT,
		hired_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS linked_targets (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		plan_value TEXT NOT NULL,
		base_value TEXT NOT NULL,
		fact_value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: context building for one user and period
	CREATE INDEX IF NOT EXISTS idx_targets_user_period
		ON linked_targets(user_id, period_start, period_end);

	CREATE TABLE IF NOT EXISTS kpi_snapshots (
		user_id TEXT NOT NULL,
		business_id TEXT NOT NULL DEFAULT '',
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		kpi_score TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		PRIMARY KEY (user_id, period_start, period_end)
	);

	CREATE TABLE IF NOT EXISTS requirement_completions (
		user_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		requirement TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		PRIMARY KEY (user_id, component_id, requirement, period_start, period_end)
	);

	CREATE TABLE IF NOT EXISTS key_task_maps (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		total_bonus_fund TEXT NOT NULL,
		min_completion_percent TEXT NOT NULL,
		full_bonus_percent TEXT NOT NULL,
		tasks_json TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_key_task_maps_user_period
		ON key_task_maps(user_id, period_start, period_end);

	CREATE TABLE IF NOT EXISTS calculations (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		scheme_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		result_json TEXT NOT NULL,
		inputs_json TEXT,
		approved_by TEXT,
		approved_at TEXT,
		paid_at TEXT,
		notes TEXT,
		error TEXT,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one record per employee, scheme and period
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_calculation
		ON calculations(user_id, scheme_id, period_start, period_end);
	CREATE INDEX IF NOT EXISTS idx_calculations_period
		ON calculations(period_start, period_end);

	CREATE TABLE IF NOT EXISTS penalties (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		type TEXT,
		reason TEXT,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_penalties_user_date
		ON penalties(user_id, date);

	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		items_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payroll_runs_started
		ON payroll_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset drops all data (for demo purposes).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"schemes", "assignments", "employees", "linked_targets", "kpi_snapshots",
		"requirement_completions", "key_task_maps", "calculations", "penalties", "payroll_runs",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// SCHEMES
// =============================================================================

const schemeColumns = `id, business_id, name, kind, currency, bonus_period, valid_from, valid_to,
	active, retired_at, components_json, version, created_at, updated_at`

// SaveScheme inserts or replaces a scheme. The stored version is bumped and
// the original creation time is kept.
func (s *Store) SaveScheme(ctx context.Context, scheme *motivation.Scheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	components, err := json.Marshal(scheme.Components)
	if err != nil {
		return fmt.Errorf("failed to encode components: %w", err)
	}

	now := time.Now().UTC()
	var (
		version   int
		createdAt string
	)
	err = s.db.QueryRowContext(ctx, "SELECT version, created_at FROM schemes WHERE id = ?", scheme.ID).Scan(&version, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		scheme.Version = 1
		if scheme.CreatedAt.IsZero() {
			scheme.CreatedAt = now
		}
	case err != nil:
		return fmt.Errorf("failed to read scheme version: %w", err)
	default:
		scheme.Version = version + 1
		scheme.CreatedAt = parseTime(createdAt)
	}
	scheme.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO schemes (`+schemeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		scheme.ID, scheme.BusinessID, scheme.Name, scheme.Kind, scheme.Currency, scheme.BonusPeriod,
		formatDatePtr(scheme.ValidFrom), formatDatePtr(scheme.ValidTo),
		scheme.Active, formatTimePtr(scheme.RetiredAt), string(components), scheme.Version,
		formatTime(scheme.CreatedAt), formatTime(scheme.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save scheme: %w", err)
	}
	return nil
}

func (s *Store) GetScheme(ctx context.Context, id motivation.SchemeID) (*motivation.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+schemeColumns+" FROM schemes WHERE id = ?", id)
	scheme, err := scanScheme(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, motivation.ErrSchemeNotFound
	}
	return scheme, err
}

// ListSchemes returns the schemes of a business, or all of them when
// business is empty.
func (s *Store) ListSchemes(ctx context.Context, business motivation.BusinessID) ([]*motivation.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+schemeColumns+" FROM schemes WHERE ? = '' OR business_id = ? ORDER BY id",
		business, business)
	if err != nil {
		return nil, fmt.Errorf("failed to query schemes: %w", err)
	}
	defer rows.Close()

	var out []*motivation.Scheme
	for rows.Next() {
		scheme, err := scanScheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, scheme)
	}
	return out, rows.Err()
}

// RetireScheme tombstones a scheme. Retiring twice is a no-op.
func (s *Store) RetireScheme(ctx context.Context, id motivation.SchemeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE schemes SET retired_at = ?, active = FALSE, version = version + 1, updated_at = ?
		WHERE id = ? AND retired_at IS NULL
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to retire scheme: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schemes WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return motivation.ErrSchemeNotFound
	}
	return nil
}

func scanScheme(row scanner) (*motivation.Scheme, error) {
	var (
		scheme                      motivation.Scheme
		validFrom, validTo, retired sql.NullString
		components                  string
		createdAt, updatedAt        string
	)
	err := row.Scan(
		&scheme.ID, &scheme.BusinessID, &scheme.Name, &scheme.Kind, &scheme.Currency, &scheme.BonusPeriod,
		&validFrom, &validTo, &scheme.Active, &retired, &components, &scheme.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(components), &scheme.Components); err != nil {
		return nil, fmt.Errorf("failed to decode components of %s: %w", scheme.ID, err)
	}
	scheme.ValidFrom = parseDatePtr(validFrom)
	scheme.ValidTo = parseDatePtr(validTo)
	scheme.RetiredAt = parseTimePtr(retired)
	scheme.CreatedAt = parseTime(createdAt)
	scheme.UpdatedAt = parseTime(updatedAt)
	return &scheme, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

const assignmentColumns = `id, business_id, user_id, scheme_id, fixed_salary_override, valid_from, valid_to, active, created_at`

func (s *Store) SaveAssignment(ctx context.Context, a motivation.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var override sql.NullString
	if a.FixedSalaryOverride != nil {
		override = sql.NullString{String: a.FixedSalaryOverride.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.BusinessID, a.UserID, a.SchemeID, override,
		formatDate(a.ValidFrom), formatDatePtr(a.ValidTo), a.Active, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id motivation.AssignmentID) (*motivation.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, motivation.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ActiveAssignments narrows by the validity window in SQL and applies
// Assignment.Covers for the exact rule.
func (s *Store) ActiveAssignments(ctx context.Context, period motivation.Period) ([]motivation.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE active = TRUE AND valid_from <= ? AND (valid_to IS NULL OR valid_to >= ?)
		ORDER BY user_id, id
	`, formatDate(period.End), formatDate(period.Start))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.Covers(period) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) AssignmentsForUser(ctx context.Context, user motivation.UserID) ([]motivation.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAssignments(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE user_id = ? ORDER BY user_id, id", user)
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]motivation.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []motivation.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row scanner) (motivation.Assignment, error) {
	var (
		a                  motivation.Assignment
		override, validTo  sql.NullString
		validFrom, created string
	)
	err := row.Scan(&a.ID, &a.BusinessID, &a.UserID, &a.SchemeID, &override, &validFrom, &validTo, &a.Active, &created)
	if err != nil {
		return a, err
	}
	if override.Valid {
		d := motivation.MustParseDecimal(override.String)
		a.FixedSalaryOverride = &d
	}
	a.ValidFrom = parseDate(validFrom)
	a.ValidTo = parseDatePtr(validTo)
	a.CreatedAt = parseTime(created)
	return a, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, business_id, name, email, department_id, position, hired_at, created_at`

func (s *Store) SaveEmployee(ctx context.Context, e motivation.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var hired sql.NullString
	if !e.HiredAt.IsZero() {
		hired = sql.NullString{String: formatDate(e.HiredAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.BusinessID, e.Name, nullString(e.Email), nullString(e.DepartmentID), nullString(e.Position),
		hired, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id motivation.UserID) (*motivation.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := scanEmployee(s.db.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, motivation.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context, business motivation.BusinessID) ([]motivation.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE ? = '' OR business_id = ? ORDER BY id",
		business, business)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []motivation.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row scanner) (motivation.Employee, error) {
	var (
		e                       motivation.Employee
		email, dept, pos, hired sql.NullString
		created                 string
	)
	if err := row.Scan(&e.ID, &e.BusinessID, &e.Name, &email, &dept, &pos, &hired, &created); err != nil {
		return e, err
	}
	e.Email = email.String
	e.DepartmentID = dept.String
	e.Position = pos.String
	if hired.Valid {
		e.HiredAt = parseDate(hired.String)
	}
	e.CreatedAt = parseTime(created)
	return e, nil
}

// =============================================================================
// TARGETS AND KPI SNAPSHOTS
// =============================================================================

const targetColumns = `id, business_id, user_id, metric, period_start, period_end, plan_value, base_value, fact_value, updated_at`

func (s *Store) SaveLinkedTarget(ctx context.Context, t motivation.LinkedTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO linked_targets (`+targetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.BusinessID, t.UserID, t.Metric, formatDate(t.Period.Start), formatDate(t.Period.End),
		t.PlanValue.String(), t.BaseValue.String(), t.FactValue.String(), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

func (s *Store) GetLinkedTarget(ctx context.Context, id motivation.TargetID) (*motivation.LinkedTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTarget(s.db.QueryRowContext(ctx, "SELECT "+targetColumns+" FROM linked_targets WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, motivation.ErrTargetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LinkedTargets returns the user's targets overlapping period, ordered by
// metric.
func (s *Store) LinkedTargets(ctx context.Context, user motivation.UserID, period motivation.Period) ([]motivation.LinkedTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+targetColumns+` FROM linked_targets
		WHERE user_id = ? AND period_start <= ? AND period_end >= ?
		ORDER BY metric, id
	`, user, formatDate(period.End), formatDate(period.Start))
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var out []motivation.LinkedTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTarget(row scanner) (motivation.LinkedTarget, error) {
	var (
		t                     motivation.LinkedTarget
		start, end            string
		plan, base, fact, upd string
	)
	if err := row.Scan(&t.ID, &t.BusinessID, &t.UserID, &t.Metric, &start, &end, &plan, &base, &fact, &upd); err != nil {
		return t, err
	}
	t.Period = motivation.Period{Start: parseDate(start), End: parseDate(end)}
	t.PlanValue = motivation.MustParseDecimal(plan)
	t.BaseValue = motivation.MustParseDecimal(base)
	t.FactValue = motivation.MustParseDecimal(fact)
	t.UpdatedAt = parseTime(upd)
	return t, nil
}

func (s *Store) SaveKpiSnapshot(ctx context.Context, snap motivation.KpiSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO kpi_snapshots (user_id, business_id, period_start, period_end, kpi_score, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.UserID, snap.BusinessID, formatDate(snap.Period.Start), formatDate(snap.Period.End),
		snap.KpiScore.String(), formatTime(snap.TakenAt))
	if err != nil {
		return fmt.Errorf("failed to save kpi snapshot: %w", err)
	}
	return nil
}

// GetKpiSnapshot returns (nil, nil) when no snapshot is stored.
func (s *Store) GetKpiSnapshot(ctx context.Context, user motivation.UserID, period motivation.Period) (*motivation.KpiSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := motivation.KpiSnapshot{UserID: user, Period: period}
	var score, taken string
	err := s.db.QueryRowContext(ctx, `
		SELECT business_id, kpi_score, taken_at FROM kpi_snapshots
		WHERE user_id = ? AND period_start = ? AND period_end = ?
	`, user, formatDate(period.Start), formatDate(period.End)).Scan(&snap.BusinessID, &score, &taken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kpi snapshot: %w", err)
	}
	snap.KpiScore = motivation.MustParseDecimal(score)
	snap.TakenAt = parseTime(taken)
	return &snap, nil
}

// =============================================================================
// REQUIREMENTS AND KEY TASK MAPS
// =============================================================================

func (s *Store) MarkRequirementCompleted(ctx context.Context, user motivation.UserID, component motivation.ComponentID, requirement string, period motivation.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO requirement_completions (user_id, component_id, requirement, period_start, period_end)
		VALUES (?, ?, ?, ?, ?)
	`, user, component, requirement, formatDate(period.Start), formatDate(period.End))
	if err != nil {
		return fmt.Errorf("failed to mark requirement: %w", err)
	}
	return nil
}

func (s *Store) GetCompletedRequirementIDs(ctx context.Context, user motivation.UserID, component motivation.ComponentID, period motivation.Period) (motivation.RequirementSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT requirement FROM requirement_completions
		WHERE user_id = ? AND component_id = ? AND period_start = ? AND period_end = ?
	`, user, component, formatDate(period.Start), formatDate(period.End))
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}
	defer rows.Close()

	out := motivation.NewRequirementSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out.Add(id)
	}
	return out, rows.Err()
}

const keyTaskMapColumns = `id, business_id, user_id, period_start, period_end, total_bonus_fund,
	min_completion_percent, full_bonus_percent, tasks_json, version, updated_at`

// SaveKeyTaskMap inserts a new map or updates one whose stored version
// matches m.Version. On success m.Version is incremented.
func (s *Store) SaveKeyTaskMap(ctx context.Context, m *motivation.KeyTaskMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := json.Marshal(m.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	updated := time.Now().UTC()
	if !m.UpdatedAt.IsZero() {
		updated = m.UpdatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored int
	err = tx.QueryRowContext(ctx, "SELECT version FROM key_task_maps WHERE id = ?", m.ID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO key_task_maps (`+keyTaskMapColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.BusinessID, m.UserID, formatDate(m.Period.Start), formatDate(m.Period.End),
			m.TotalBonusFund.String(), m.MinCompletionPercent.String(), m.FullBonusPercent.String(),
			string(tasks), m.Version+1, formatTime(updated))
	case err != nil:
		return fmt.Errorf("failed to read key task map version: %w", err)
	case stored != m.Version:
		return motivation.ErrConcurrentModification
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE key_task_maps SET business_id = ?, user_id = ?, period_start = ?, period_end = ?,
				total_bonus_fund = ?, min_completion_percent = ?, full_bonus_percent = ?,
				tasks_json = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`, m.BusinessID, m.UserID, formatDate(m.Period.Start), formatDate(m.Period.End),
			m.TotalBonusFund.String(), m.MinCompletionPercent.String(), m.FullBonusPercent.String(),
			string(tasks), m.Version+1, formatTime(updated), m.ID, m.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to save key task map: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Version++
	return nil
}

func (s *Store) GetKeyTaskMap(ctx context.Context, id motivation.KeyTaskMapID) (*motivation.KeyTaskMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanKeyTaskMap(s.db.QueryRowContext(ctx, "SELECT "+keyTaskMapColumns+" FROM key_task_maps WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, motivation.ErrKeyTaskMapNotFound
	}
	return m, err
}

// FindKeyTaskMap returns (nil, nil) when the user has no map for period.
func (s *Store) FindKeyTaskMap(ctx context.Context, user motivation.UserID, period motivation.Period) (*motivation.KeyTaskMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanKeyTaskMap(s.db.QueryRowContext(ctx, `
		SELECT `+keyTaskMapColumns+` FROM key_task_maps
		WHERE user_id = ? AND period_start = ? AND period_end = ?
		ORDER BY id LIMIT 1
	`, user, formatDate(period.Start), formatDate(period.End)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func scanKeyTaskMap(row scanner) (*motivation.KeyTaskMap, error) {
	var (
		m                     motivation.KeyTaskMap
		start, end            string
		fund, minPct, fullPct string
		tasks, updated        string
	)
	err := row.Scan(&m.ID, &m.BusinessID, &m.UserID, &start, &end, &fund, &minPct, &fullPct, &tasks, &m.Version, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tasks), &m.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks of %s: %w", m.ID, err)
	}
	m.Period = motivation.Period{Start: parseDate(start), End: parseDate(end)}
	m.TotalBonusFund = motivation.MustParseDecimal(fund)
	m.MinCompletionPercent = motivation.MustParseDecimal(minPct)
	m.FullBonusPercent = motivation.MustParseDecimal(fullPct)
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}

// =============================================================================
// CALCULATIONS
// =============================================================================

const calculationColumns = `id, business_id, user_id, scheme_id, period_start, period_end, status,
	result_json, inputs_json, approved_by, approved_at, paid_at, notes, error, version, created_at, updated_at`

// SaveCalculation inserts a new record (Version 0) or updates an existing
// one whose stored version equals r.Version. On success r.Version is
// incremented. A second record for the same user, scheme and period is
// rejected by the unique index and reported as a conflict.
func (s *Store) SaveCalculation(ctx context.Context, r *motivation.CalculationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	inputs, err := json.Marshal(r.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode inputs: %w", err)
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored int
	err = tx.QueryRowContext(ctx, "SELECT version FROM calculations WHERE id = ?", r.ID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if r.Version != 0 {
			return motivation.ErrConcurrentModification
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO calculations (`+calculationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.BusinessID, r.UserID, r.SchemeID, formatDate(r.Period.Start), formatDate(r.Period.End),
			r.Status, string(result), string(inputs), nullString(r.ApprovedBy), formatTimePtr(r.ApprovedAt),
			formatTimePtr(r.PaidAt), nullString(r.Notes), nullString(r.Error), 1,
			formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
		if isUniqueConstraintError(err) {
			return motivation.ErrConcurrentModification
		}
	case err != nil:
		return fmt.Errorf("failed to read calculation version: %w", err)
	case stored != r.Version:
		return motivation.ErrConcurrentModification
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE calculations SET status = ?, result_json = ?, inputs_json = ?, approved_by = ?,
				approved_at = ?, paid_at = ?, notes = ?, error = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`, r.Status, string(result), string(inputs), nullString(r.ApprovedBy), formatTimePtr(r.ApprovedAt),
			formatTimePtr(r.PaidAt), nullString(r.Notes), nullString(r.Error), r.Version+1,
			formatTime(r.UpdatedAt), r.ID, r.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to save calculation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.Version++
	return nil
}

func (s *Store) GetCalculation(ctx context.Context, id motivation.CalculationID) (*motivation.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanCalculation(s.db.QueryRowContext(ctx, "SELECT "+calculationColumns+" FROM calculations WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, motivation.ErrCalculationNotFound
	}
	return r, err
}

// FindCalculation returns (nil, nil) when there is no record.
func (s *Store) FindCalculation(ctx context.Context, user motivation.UserID, scheme motivation.SchemeID, period motivation.Period) (*motivation.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanCalculation(s.db.QueryRowContext(ctx, `
		SELECT `+calculationColumns+` FROM calculations
		WHERE user_id = ? AND scheme_id = ? AND period_start = ? AND period_end = ?
	`, user, scheme, formatDate(period.Start), formatDate(period.End)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListCalculations returns the records of period, or every record for a
// zero period.
func (s *Store) ListCalculations(ctx context.Context, period motivation.Period) ([]motivation.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + calculationColumns + " FROM calculations"
	var args []any
	if !period.IsZero() {
		query += " WHERE period_start = ? AND period_end = ?"
		args = append(args, formatDate(period.Start), formatDate(period.End))
	}
	query += " ORDER BY user_id, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	defer rows.Close()

	var out []motivation.CalculationRecord
	for rows.Next() {
		r, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanCalculation(row scanner) (*motivation.CalculationRecord, error) {
	var (
		r                  motivation.CalculationRecord
		start, end, result string
		inputs, approvedBy sql.NullString
		approvedAt, paidAt sql.NullString
		notes, errMsg      sql.NullString
		created, updated   string
	)
	err := row.Scan(&r.ID, &r.BusinessID, &r.UserID, &r.SchemeID, &start, &end, &r.Status,
		&result, &inputs, &approvedBy, &approvedAt, &paidAt, &notes, &errMsg, &r.Version, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(result), &r.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result of %s: %w", r.ID, err)
	}
	if inputs.Valid && inputs.String != "" && inputs.String != "null" {
		r.Inputs = make(map[string]decimal.Decimal)
		if err := json.Unmarshal([]byte(inputs.String), &r.Inputs); err != nil {
			return nil, fmt.Errorf("failed to decode inputs of %s: %w", r.ID, err)
		}
	}
	r.Period = motivation.Period{Start: parseDate(start), End: parseDate(end)}
	r.ApprovedBy = approvedBy.String
	r.ApprovedAt = parseTimePtr(approvedAt)
	r.PaidAt = parseTimePtr(paidAt)
	r.Notes = notes.String
	r.Error = errMsg.String
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

// =============================================================================
// PENALTIES
// =============================================================================

const penaltyColumns = `id, business_id, user_id, type, reason, amount, date, status, created_at`

// CreatePenalty inserts a new penalty. The primary key rejects a reused ID.
func (s *Store) CreatePenalty(ctx context.Context, p motivation.Penalty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO penalties (`+penaltyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.BusinessID, p.UserID, nullString(p.Type), nullString(p.Reason), p.Amount.String(),
		formatTime(p.Date), p.Status, formatTime(p.CreatedAt))
	if isConstraintViolation(err) {
		return fmt.Errorf("penalty %s: %w", p.ID, motivation.ErrPenaltyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create penalty: %w", err)
	}
	return nil
}

func (s *Store) SavePenalty(ctx context.Context, p motivation.Penalty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO penalties (`+penaltyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.BusinessID, p.UserID, nullString(p.Type), nullString(p.Reason), p.Amount.String(),
		formatTime(p.Date), p.Status, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save penalty: %w", err)
	}
	return nil
}

func (s *Store) GetPenalty(ctx context.Context, id motivation.PenaltyID) (*motivation.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanPenalty(s.db.QueryRowContext(ctx, "SELECT "+penaltyColumns+" FROM penalties WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, motivation.ErrPenaltyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PenaltiesForUser returns penalties dated on a day within period.
func (s *Store) PenaltiesForUser(ctx context.Context, user motivation.UserID, period motivation.Period) ([]motivation.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+penaltyColumns+` FROM penalties
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date, id
	`, user, formatTime(period.Start), formatTime(period.End.AddDate(0, 0, 1)))
	if err != nil {
		return nil, fmt.Errorf("failed to query penalties: %w", err)
	}
	defer rows.Close()

	var out []motivation.Penalty
	for rows.Next() {
		p, err := scanPenalty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPenalty(row scanner) (motivation.Penalty, error) {
	var (
		p                     motivation.Penalty
		typ, reason           sql.NullString
		amount, date, created string
	)
	if err := row.Scan(&p.ID, &p.BusinessID, &p.UserID, &typ, &reason, &amount, &date, &p.Status, &created); err != nil {
		return p, err
	}
	p.Type = typ.String
	p.Reason = reason.String
	p.Amount = motivation.MustParseDecimal(amount)
	p.Date = parseTime(date)
	p.CreatedAt = parseTime(created)
	return p, nil
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run motivation.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := json.Marshal(run.Items)
	if err != nil {
		return fmt.Errorf("failed to encode run items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO payroll_runs
		(id, period_start, period_end, status, processed, skipped, failed, items_json, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, formatDate(run.Period.Start), formatDate(run.Period.End), run.Status,
		run.Processed, run.Skipped, run.Failed, string(items),
		formatTime(run.StartedAt), formatTimePtr(run.CompletedAt), nullString(run.Error))
	if err != nil {
		return fmt.Errorf("failed to save payroll run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]motivation.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period_start, period_end, status, processed, skipped, failed, items_json,
		       started_at, completed_at, error
		FROM payroll_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payroll runs: %w", err)
	}
	defer rows.Close()

	var out []motivation.PayrollRun
	for rows.Next() {
		var (
			run               motivation.PayrollRun
			start, end, items string
			started           string
			completed, errMsg sql.NullString
		)
		if err := rows.Scan(&run.ID, &start, &end, &run.Status, &run.Processed, &run.Skipped, &run.Failed,
			&items, &started, &completed, &errMsg); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &run.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of run %s: %w", run.ID, err)
		}
		run.Period = motivation.Period{Start: parseDate(start), End: parseDate(end)}
		run.StartedAt = parseTime(started)
		run.CompletedAt = parseTimePtr(completed)
		run.Error = errMsg.String
		out = append(out, run)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func formatDatePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func parseDatePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseDate(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
