// Package store provides an in-memory motivation.Repository.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/motivation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every record in maps guarded by one RWMutex. Values are
// copied on the way in and out so callers never share state with the store.
type Memory struct {
	mu sync.RWMutex

	schemes      map[motivation.SchemeID]*motivation.Scheme
	assignments  map[motivation.AssignmentID]motivation.Assignment
	employees    map[motivation.UserID]motivation.Employee
	targets      map[motivation.TargetID]motivation.LinkedTarget
	snapshots    map[snapshotKey]motivation.KpiSnapshot
	requirements map[requirementKey]motivation.RequirementSet
	keyTaskMaps  map[motivation.KeyTaskMapID]*motivation.KeyTaskMap
	calculations map[motivation.CalculationID]*motivation.CalculationRecord
	penalties    map[motivation.PenaltyID]motivation.Penalty
	runs         []motivation.PayrollRun
}

type snapshotKey struct {
	UserID motivation.UserID
	Period string
}

type requirementKey struct {
	UserID      motivation.UserID
	ComponentID motivation.ComponentID
	Period      string
}

var _ motivation.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		schemes:      make(map[motivation.SchemeID]*motivation.Scheme),
		assignments:  make(map[motivation.AssignmentID]motivation.Assignment),
		employees:    make(map[motivation.UserID]motivation.Employee),
		targets:      make(map[motivation.TargetID]motivation.LinkedTarget),
		snapshots:    make(map[snapshotKey]motivation.KpiSnapshot),
		requirements: make(map[requirementKey]motivation.RequirementSet),
		keyTaskMaps:  make(map[motivation.KeyTaskMapID]*motivation.KeyTaskMap),
		calculations: make(map[motivation.CalculationID]*motivation.CalculationRecord),
		penalties:    make(map[motivation.PenaltyID]motivation.Penalty),
	}
}

// Reset drops all data.
func (m *Memory) Reset(context.Context) error {
	fresh := NewMemory()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes = fresh.schemes
	m.assignments = fresh.assignments
	m.employees = fresh.employees
	m.targets = fresh.targets
	m.snapshots = fresh.snapshots
	m.requirements = fresh.requirements
	m.keyTaskMaps = fresh.keyTaskMaps
	m.calculations = fresh.calculations
	m.penalties = fresh.penalties
	m.runs = nil
	return nil
}

// =============================================================================
// SCHEMES
// =============================================================================

func (m *Memory) GetScheme(_ context.Context, id motivation.SchemeID) (*motivation.Scheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemes[id]
	if !ok {
		return nil, motivation.ErrSchemeNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) SaveScheme(_ context.Context, s *motivation.Scheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.schemes[s.ID]; ok {
		s.Version = prev.Version + 1
		s.CreatedAt = prev.CreatedAt
	} else {
		s.Version = 1
	}
	m.schemes[s.ID] = s.Clone()
	return nil
}

func (m *Memory) ListSchemes(_ context.Context, business motivation.BusinessID) ([]*motivation.Scheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*motivation.Scheme, 0, len(m.schemes))
	for _, s := range m.schemes {
		if business != "" && s.BusinessID != business {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) RetireScheme(_ context.Context, id motivation.SchemeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schemes[id]
	if !ok {
		return motivation.ErrSchemeNotFound
	}
	if s.RetiredAt != nil {
		return nil
	}
	now := motivation.SystemClock{}.Now()
	s.RetiredAt = &now
	s.Active = false
	s.Version++
	return nil
}

// =============================================================================
// ASSIGNMENTS AND EMPLOYEES
// =============================================================================

func (m *Memory) SaveAssignment(_ context.Context, a motivation.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, id motivation.AssignmentID) (*motivation.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, motivation.ErrAssignmentNotFound
	}
	return &a, nil
}

func (m *Memory) ActiveAssignments(_ context.Context, period motivation.Period) ([]motivation.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []motivation.Assignment
	for _, a := range m.assignments {
		if a.Covers(period) {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func (m *Memory) AssignmentsForUser(_ context.Context, user motivation.UserID) ([]motivation.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []motivation.Assignment
	for _, a := range m.assignments {
		if a.UserID == user {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func sortAssignments(as []motivation.Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].UserID != as[j].UserID {
			return as[i].UserID < as[j].UserID
		}
		return as[i].ID < as[j].ID
	})
}

func (m *Memory) SaveEmployee(_ context.Context, e motivation.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id motivation.UserID) (*motivation.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, motivation.ErrEmployeeNotFound
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context, business motivation.BusinessID) ([]motivation.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []motivation.Employee
	for _, e := range m.employees {
		if business == "" || e.BusinessID == business {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// TARGETS AND KPI SNAPSHOTS
// =============================================================================

func (m *Memory) SaveLinkedTarget(_ context.Context, t motivation.LinkedTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.ID] = t
	return nil
}

func (m *Memory) GetLinkedTarget(_ context.Context, id motivation.TargetID) (*motivation.LinkedTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, motivation.ErrTargetNotFound
	}
	return &t, nil
}

func (m *Memory) LinkedTargets(_ context.Context, user motivation.UserID, period motivation.Period) ([]motivation.LinkedTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []motivation.LinkedTarget
	for _, t := range m.targets {
		if t.UserID == user && t.Period.Overlaps(period) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveKpiSnapshot(_ context.Context, s motivation.KpiSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshotKey{UserID: s.UserID, Period: s.Period.Key()}] = s
	return nil
}

func (m *Memory) GetKpiSnapshot(_ context.Context, user motivation.UserID, period motivation.Period) (*motivation.KpiSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[snapshotKey{UserID: user, Period: period.Key()}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// =============================================================================
// REQUIREMENTS AND KEY TASK MAPS
// =============================================================================

func (m *Memory) MarkRequirementCompleted(_ context.Context, user motivation.UserID, component motivation.ComponentID, requirement string, period motivation.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := requirementKey{UserID: user, ComponentID: component, Period: period.Key()}
	set, ok := m.requirements[k]
	if !ok {
		set = motivation.NewRequirementSet()
		m.requirements[k] = set
	}
	set.Add(requirement)
	return nil
}

func (m *Memory) GetCompletedRequirementIDs(_ context.Context, user motivation.UserID, component motivation.ComponentID, period motivation.Period) (motivation.RequirementSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := motivation.NewRequirementSet()
	for id := range m.requirements[requirementKey{UserID: user, ComponentID: component, Period: period.Key()}] {
		out.Add(id)
	}
	return out, nil
}

func (m *Memory) SaveKeyTaskMap(_ context.Context, km *motivation.KeyTaskMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.keyTaskMaps[km.ID]; ok && prev.Version != km.Version {
		return motivation.ErrConcurrentModification
	}
	km.Version++
	m.keyTaskMaps[km.ID] = cloneKeyTaskMap(km)
	return nil
}

func (m *Memory) GetKeyTaskMap(_ context.Context, id motivation.KeyTaskMapID) (*motivation.KeyTaskMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	km, ok := m.keyTaskMaps[id]
	if !ok {
		return nil, motivation.ErrKeyTaskMapNotFound
	}
	return cloneKeyTaskMap(km), nil
}

func (m *Memory) FindKeyTaskMap(_ context.Context, user motivation.UserID, period motivation.Period) (*motivation.KeyTaskMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, km := range m.keyTaskMaps {
		if km.UserID == user && km.Period.Key() == period.Key() {
			return cloneKeyTaskMap(km), nil
		}
	}
	return nil, nil
}

func cloneKeyTaskMap(km *motivation.KeyTaskMap) *motivation.KeyTaskMap {
	c := *km
	c.Tasks = make([]motivation.KeyTask, len(km.Tasks))
	copy(c.Tasks, km.Tasks)
	return &c
}

// =============================================================================
// CALCULATIONS
// =============================================================================

func (m *Memory) SaveCalculation(_ context.Context, r *motivation.CalculationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.calculations[r.ID]; ok {
		if prev.Version != r.Version {
			return motivation.ErrConcurrentModification
		}
	} else {
		if r.Version != 0 {
			return motivation.ErrConcurrentModification
		}
		// One record per (user, scheme, period).
		for _, other := range m.calculations {
			if other.UserID == r.UserID && other.SchemeID == r.SchemeID && other.Period.Key() == r.Period.Key() {
				return motivation.ErrConcurrentModification
			}
		}
	}
	r.Version++
	m.calculations[r.ID] = cloneRecord(r)
	return nil
}

func (m *Memory) GetCalculation(_ context.Context, id motivation.CalculationID) (*motivation.CalculationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.calculations[id]
	if !ok {
		return nil, motivation.ErrCalculationNotFound
	}
	return cloneRecord(r), nil
}

func (m *Memory) FindCalculation(_ context.Context, user motivation.UserID, scheme motivation.SchemeID, period motivation.Period) (*motivation.CalculationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.calculations {
		if r.UserID == user && r.SchemeID == scheme && r.Period.Key() == period.Key() {
			return cloneRecord(r), nil
		}
	}
	return nil, nil
}

func (m *Memory) ListCalculations(_ context.Context, period motivation.Period) ([]motivation.CalculationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []motivation.CalculationRecord
	for _, r := range m.calculations {
		if period.IsZero() || r.Period.Key() == period.Key() {
			out = append(out, *cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cloneRecord(r *motivation.CalculationRecord) *motivation.CalculationRecord {
	c := *r
	c.Result.Lines = append([]motivation.Line(nil), r.Result.Lines...)
	c.Result.Warnings = append([]motivation.Warning(nil), r.Result.Warnings...)
	if r.Inputs != nil {
		c.Inputs = make(map[string]decimal.Decimal, len(r.Inputs))
		for k, v := range r.Inputs {
			c.Inputs[k] = v
		}
	}
	return &c
}

// =============================================================================
// PENALTIES AND RUNS
// =============================================================================

func (m *Memory) CreatePenalty(_ context.Context, p motivation.Penalty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.penalties[p.ID]; ok {
		return fmt.Errorf("penalty %s: %w", p.ID, motivation.ErrPenaltyExists)
	}
	m.penalties[p.ID] = p
	return nil
}

func (m *Memory) SavePenalty(_ context.Context, p motivation.Penalty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.penalties[p.ID] = p
	return nil
}

func (m *Memory) GetPenalty(_ context.Context, id motivation.PenaltyID) (*motivation.Penalty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.penalties[id]
	if !ok {
		return nil, motivation.ErrPenaltyNotFound
	}
	return &p, nil
}

func (m *Memory) PenaltiesForUser(_ context.Context, user motivation.UserID, period motivation.Period) ([]motivation.Penalty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []motivation.Penalty
	for _, p := range m.penalties {
		if p.UserID == user && period.Contains(p.Date) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) SaveRun(_ context.Context, run motivation.PayrollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Items = append([]motivation.RunItem(nil), run.Items...)
	m.runs = append(m.runs, run)
	return nil
}

// ListRuns returns the most recent runs first.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]motivation.PayrollRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]motivation.PayrollRun, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
