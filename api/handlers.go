/*
handlers.go - HTTP API handlers for the motivation engine

PURPOSE:
  Exposes scheme management, evaluation, the calculation workflow and the
  payroll batch via REST. Handles HTTP request/response and JSON, and
  delegates everything else to the motivation, sales and marketing packages.

ENDPOINTS:
  Schemes:
    GET    /api/schemes                     List schemes
    POST   /api/schemes                     Create scheme from JSON
    GET    /api/schemes/{id}                Get scheme
    DELETE /api/schemes/{id}                Retire scheme

  Evaluation:
    POST   /api/calculations/evaluate       Evaluate (persist with "save")
    GET    /api/calculations?period=        List records of a period
    GET    /api/calculations/summary?period=  Totals and status counts
    POST   /api/calculations/{id}/approve|pay|cancel

  Inputs:
    POST   /api/targets, /api/key-task-maps, /api/penalties, /api/requirements
    GET    /api/penalties/summary?user_id=&period=  Penalty totals by status and type

  Batch:
    POST   /api/payroll/run                 Run a period now
    GET    /api/payroll/runs                Batch history

ARCHITECTURE:
  Handler holds all dependencies:
  - Repo: any motivation.Repository (memory, sqlite, postgres)
  - Schemes: JSON <-> Scheme conversion with formula checking
  - Runner: context building, aggregation and persistence
  - Team / Marketing: domain services layered on the runner and repo

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid schemes, forbidden transitions
  - 404: Resource not found
  - 409: Optimistic locking conflict
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/factory"
	"github.com/warp/motivation-engine/formula"
	"github.com/warp/motivation-engine/marketing"
	"github.com/warp/motivation-engine/motivation"
	"github.com/warp/motivation-engine/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can drop all data.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo      motivation.Repository
	Schemes   *factory.SchemeFactory
	Runner    *motivation.PayrollRunner
	Team      *sales.TeamCalculator
	Marketing *marketing.Service
	Clock     motivation.Clock
	Logger    *slog.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the engine around repo. Formula components are
// compiled on load and evaluated with the govaluate-backed evaluator.
func NewHandler(repo motivation.Repository, clock motivation.Clock, logger *slog.Logger) *Handler {
	if clock == nil {
		clock = motivation.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	formulas := formula.NewEvaluator()
	agg := motivation.NewAggregator(&motivation.Calculator{Formulas: formulas})
	runner := motivation.NewPayrollRunner(repo, agg, clock, logger)

	return &Handler{
		Repo:      repo,
		Schemes:   factory.NewSchemeFactory(formulas),
		Runner:    runner,
		Team:      &sales.TeamCalculator{Assignments: repo, Runner: runner},
		Marketing: &marketing.Service{Targets: repo, Tasks: repo, Penalties: repo},
		Clock:     clock,
		Logger:    logger,
	}
}

// =============================================================================
// SCHEME HANDLERS
// =============================================================================

func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	schemes, err := h.Repo.ListSchemes(r.Context(), motivation.BusinessID(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schemes", err)
		return
	}
	dtos := make([]SchemeDTO, 0, len(schemes))
	for _, s := range schemes {
		dtos = append(dtos, h.toSchemeDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScheme parses and validates a JSON scheme, then stores it.
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var sj factory.SchemeJSON
	if err := json.NewDecoder(r.Body).Decode(&sj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if sj.ID == "" {
		sj.ID = uuid.New().String()
	}

	scheme, err := h.Schemes.FromJSON(sj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheme", err)
		return
	}
	if err := h.Repo.SaveScheme(r.Context(), scheme); err != nil {
		writeDomainError(w, "Failed to save scheme", err)
		return
	}
	h.Logger.Info("scheme saved", "scheme_id", scheme.ID, "version", scheme.Version)
	writeJSON(w, http.StatusCreated, h.toSchemeDTO(scheme))
}

func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	scheme, err := h.Repo.GetScheme(r.Context(), motivation.SchemeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get scheme", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toSchemeDTO(scheme))
}

// RetireScheme tombstones a scheme. Stored calculations keep pointing at it.
func (h *Handler) RetireScheme(w http.ResponseWriter, r *http.Request) {
	id := motivation.SchemeID(chi.URLParam(r, "id"))
	if err := h.Repo.RetireScheme(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to retire scheme", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toSchemeDTO(s *motivation.Scheme) SchemeDTO {
	return SchemeDTO{
		ID:         string(s.ID),
		BusinessID: string(s.BusinessID),
		Name:       s.Name,
		Kind:       string(s.Kind),
		Version:    s.Version,
		Retired:    s.IsRetired(),
		Config:     h.Schemes.ToJSON(s),
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// EMPLOYEE AND ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Repo.ListEmployees(r.Context(), motivation.BusinessID(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dto := EmployeeDTO{
			ID:           string(e.ID),
			Name:         e.Name,
			Email:        e.Email,
			DepartmentID: e.DepartmentID,
			Position:     e.Position,
		}
		if !e.HiredAt.IsZero() {
			dto.HiredAt = e.HiredAt.Format(dateLayout)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	e := motivation.Employee{
		ID:           motivation.UserID(req.ID),
		Name:         req.Name,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		Position:     req.Position,
	}
	if req.HiredAt != "" {
		hired, err := time.Parse(dateLayout, req.HiredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hired_at format (use YYYY-MM-DD)", err)
			return
		}
		e.HiredAt = hired
	}
	if err := h.Repo.SaveEmployee(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	all, err := h.Repo.AssignmentsForUser(r.Context(), motivation.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(all))
	for _, a := range all {
		dtos = append(dtos, toAssignmentDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAssignment assigns a scheme to an employee from valid_from on.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.SchemeID == "" {
		writeError(w, http.StatusBadRequest, "user_id and scheme_id are required", nil)
		return
	}
	if _, err := h.Repo.GetScheme(r.Context(), motivation.SchemeID(req.SchemeID)); err != nil {
		writeDomainError(w, "Unknown scheme", err)
		return
	}

	from, err := time.Parse(dateLayout, req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_from format (use YYYY-MM-DD)", err)
		return
	}
	a := motivation.Assignment{
		ID:                  motivation.AssignmentID(req.ID),
		BusinessID:          motivation.BusinessID(req.BusinessID),
		UserID:              motivation.UserID(req.UserID),
		SchemeID:            motivation.SchemeID(req.SchemeID),
		FixedSalaryOverride: req.FixedSalaryOverride,
		ValidFrom:           from,
		Active:              true,
		CreatedAt:           h.Clock.Now(),
	}
	if a.ID == "" {
		a.ID = motivation.AssignmentID(uuid.New().String())
	}
	if req.ValidTo != "" {
		to, err := time.Parse(dateLayout, req.ValidTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid valid_to format (use YYYY-MM-DD)", err)
			return
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "valid_to is before valid_from", nil)
			return
		}
		a.ValidTo = &to
	}

	if err := h.Repo.SaveAssignment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

// =============================================================================
// EVALUATION HANDLERS
// =============================================================================

// Evaluate computes a scheme for one employee and period. Stored inputs
// are gathered first and the request's context overrides them. Without
// "save" nothing is written.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SchemeID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "scheme_id and user_id are required", nil)
		return
	}
	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	ctx := r.Context()
	a, err := h.assignmentFor(ctx, motivation.UserID(req.UserID), motivation.SchemeID(req.SchemeID), period)
	if err != nil {
		writeDomainError(w, "Failed to load assignment", err)
		return
	}

	in := motivation.Evaluation{Overrides: req.Context, Completed: req.Completed}
	rec, err := h.Runner.Evaluate(ctx, a, period, in, req.Save)
	if err != nil {
		writeDomainError(w, "Evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*rec))
}

// assignmentFor returns the employee's assignment to scheme covering
// period, or an ad hoc assignment when the scheme is evaluated directly.
func (h *Handler) assignmentFor(ctx context.Context, user motivation.UserID, scheme motivation.SchemeID, period motivation.Period) (motivation.Assignment, error) {
	all, err := h.Repo.AssignmentsForUser(ctx, user)
	if err != nil {
		return motivation.Assignment{}, err
	}
	for _, a := range all {
		if a.SchemeID == scheme && a.Covers(period) {
			return a, nil
		}
	}
	return motivation.Assignment{
		UserID:    user,
		SchemeID:  scheme,
		ValidFrom: period.Start,
		Active:    true,
	}, nil
}

// =============================================================================
// CALCULATION WORKFLOW
// =============================================================================

func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	period, err := h.optionalPeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	records, err := h.Repo.ListCalculations(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calculations", err)
		return
	}

	status := motivation.CalculationStatus(r.URL.Query().Get("status"))
	dtos := make([]CalculationDTO, 0, len(records))
	for _, rec := range records {
		if status != "" && rec.Status != status {
			continue
		}
		dtos = append(dtos, toCalculationDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Repo.GetCalculation(r.Context(), motivation.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get calculation", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*rec))
}

// Summary totals the stored calculations of a period.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	records, err := h.Repo.ListCalculations(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calculations", err)
		return
	}

	s := motivation.Summarize(period, records)
	dto := SummaryDTO{
		PeriodStart:  period.Start.Format(dateLayout),
		PeriodEnd:    period.End.Format(dateLayout),
		Count:        s.Count,
		NetTotal:     s.NetTotal,
		BonusTotal:   s.BonusTotal,
		PenaltyTotal: s.PenaltyTotal,
		ByStatus:     make(map[string]int, len(s.ByStatus)),
	}
	for st, n := range s.ByStatus {
		dto.ByStatus[string(st)] = n
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ApproveCalculation(w http.ResponseWriter, r *http.Request) {
	h.transitionCalculation(w, r, func(rec *motivation.CalculationRecord, req TransitionRequest) error {
		return rec.Approve(req.By, h.Clock.Now())
	})
}

func (h *Handler) PayCalculation(w http.ResponseWriter, r *http.Request) {
	h.transitionCalculation(w, r, func(rec *motivation.CalculationRecord, req TransitionRequest) error {
		return rec.MarkPaid(req.Notes, h.Clock.Now())
	})
}

func (h *Handler) CancelCalculation(w http.ResponseWriter, r *http.Request) {
	h.transitionCalculation(w, r, func(rec *motivation.CalculationRecord, req TransitionRequest) error {
		return rec.Cancel(req.Reason)
	})
}

// transitionCalculation loads, transitions and saves a record. The save is
// version-checked, so a concurrent change surfaces as 409.
func (h *Handler) transitionCalculation(w http.ResponseWriter, r *http.Request, apply func(*motivation.CalculationRecord, TransitionRequest) error) {
	var req TransitionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	ctx := r.Context()
	rec, err := h.Repo.GetCalculation(ctx, motivation.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get calculation", err)
		return
	}
	if err := apply(rec, req); err != nil {
		writeDomainError(w, "Transition rejected", err)
		return
	}
	rec.UpdatedAt = h.Clock.Now()
	if err := h.Repo.SaveCalculation(ctx, rec); err != nil {
		writeDomainError(w, "Failed to save calculation", err)
		return
	}
	h.Logger.Info("calculation status changed", "calculation_id", rec.ID, "status", rec.Status)
	writeJSON(w, http.StatusOK, toCalculationDTO(*rec))
}

// =============================================================================
// TARGETS, KEY TASKS, REQUIREMENTS, PENALTIES
// =============================================================================

// UpsertTarget stores a linked target's plan, base and fact values.
func (h *Handler) UpsertTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.Metric == "" {
		writeError(w, http.StatusBadRequest, "user_id and metric are required", nil)
		return
	}
	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	t := motivation.LinkedTarget{
		ID:         motivation.TargetID(req.ID),
		BusinessID: motivation.BusinessID(req.BusinessID),
		UserID:     motivation.UserID(req.UserID),
		Metric:     req.Metric,
		Period:     period,
		PlanValue:  req.Plan,
		BaseValue:  req.Base,
		FactValue:  req.Fact,
		UpdatedAt:  h.Clock.Now(),
	}
	if t.ID == "" {
		t.ID = motivation.TargetID(uuid.New().String())
	}
	if err := h.Repo.SaveLinkedTarget(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save target", err)
		return
	}
	writeJSON(w, http.StatusOK, toTargetCompletionDTO(t))
}

func (h *Handler) TargetCompletion(w http.ResponseWriter, r *http.Request) {
	t, err := h.Repo.GetLinkedTarget(r.Context(), motivation.TargetID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get target", err)
		return
	}
	writeJSON(w, http.StatusOK, toTargetCompletionDTO(*t))
}

func toTargetCompletionDTO(t motivation.LinkedTarget) TargetCompletionDTO {
	return TargetCompletionDTO{
		ID:         string(t.ID),
		UserID:     string(t.UserID),
		Metric:     t.Metric,
		Completion: motivation.SyncPlanCompletion(t),
		KpiScore:   t.KpiScore(),
	}
}

func (h *Handler) CreateKeyTaskMap(w http.ResponseWriter, r *http.Request) {
	var req KeyTaskMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || len(req.Tasks) == 0 {
		writeError(w, http.StatusBadRequest, "user_id and tasks are required", nil)
		return
	}
	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	m := &motivation.KeyTaskMap{
		ID:                   motivation.KeyTaskMapID(req.ID),
		BusinessID:           motivation.BusinessID(req.BusinessID),
		UserID:               motivation.UserID(req.UserID),
		Period:               period,
		TotalBonusFund:       req.TotalBonusFund,
		MinCompletionPercent: req.MinCompletionPercent,
		FullBonusPercent:     req.FullBonusPercent,
		UpdatedAt:            h.Clock.Now(),
	}
	if m.ID == "" {
		m.ID = motivation.KeyTaskMapID(uuid.New().String())
	}
	if m.FullBonusPercent.IsZero() {
		m.FullBonusPercent = decimal.NewFromInt(100)
	}
	for i, t := range req.Tasks {
		task := motivation.KeyTask{ID: t.ID, Title: t.Title, Weight: t.Weight, Status: motivation.TaskPending}
		if task.ID == "" {
			task.ID = strconv.Itoa(i + 1)
		}
		if t.Status == string(motivation.TaskCompleted) {
			task.Status = motivation.TaskCompleted
		}
		m.Tasks = append(m.Tasks, task)
	}
	if err := m.Validate(); err != nil {
		writeDomainError(w, "Invalid key task map", err)
		return
	}

	if err := h.Repo.SaveKeyTaskMap(r.Context(), m); err != nil {
		writeDomainError(w, "Failed to save key task map", err)
		return
	}
	writeJSON(w, http.StatusCreated, toKeyTaskMapDTO(*m))
}

func (h *Handler) KeyTaskBonus(w http.ResponseWriter, r *http.Request) {
	m, err := h.Repo.GetKeyTaskMap(r.Context(), motivation.KeyTaskMapID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get key task map", err)
		return
	}
	writeJSON(w, http.StatusOK, toKeyTaskBonusDTO(motivation.CalculateKeyTaskBonus(*m)))
}

// CompleteKeyTask marks one task done. A version conflict is retried
// against a fresh copy of the map.
func (h *Handler) CompleteKeyTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := motivation.KeyTaskMapID(chi.URLParam(r, "id"))
	taskID := chi.URLParam(r, "taskID")

	var (
		m   *motivation.KeyTaskMap
		err error
	)
	for attempt := 0; attempt < 3; attempt++ {
		m, err = h.Repo.GetKeyTaskMap(ctx, id)
		if err != nil {
			break
		}
		if err = m.CompleteTask(taskID, h.Clock.Now()); err != nil {
			break
		}
		m.UpdatedAt = h.Clock.Now()
		if err = h.Repo.SaveKeyTaskMap(ctx, m); !motivation.IsRetryable(err) {
			break
		}
	}
	if err != nil {
		writeDomainError(w, "Failed to complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, toKeyTaskMapDTO(*m))
}

func (h *Handler) CompleteRequirement(w http.ResponseWriter, r *http.Request) {
	var req RequirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.ComponentID == "" || req.Requirement == "" {
		writeError(w, http.StatusBadRequest, "user_id, component_id and requirement are required", nil)
		return
	}
	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	err = h.Repo.MarkRequirementCompleted(r.Context(), motivation.UserID(req.UserID),
		motivation.ComponentID(req.ComponentID), req.Requirement, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record requirement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePenalty records a new pending or applied penalty. Later statuses
// are reached through TransitionPenalty, and an existing ID is a conflict.
func (h *Handler) CreatePenalty(w http.ResponseWriter, r *http.Request) {
	var req PenaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	p := motivation.Penalty{
		ID:         motivation.PenaltyID(req.ID),
		BusinessID: motivation.BusinessID(req.BusinessID),
		UserID:     motivation.UserID(req.UserID),
		Type:       req.Type,
		Reason:     req.Reason,
		Amount:     req.Amount.Abs(),
		Date:       date,
		Status:     motivation.PenaltyPending,
		CreatedAt:  h.Clock.Now(),
	}
	if req.Status != "" {
		p.Status = motivation.PenaltyStatus(req.Status)
	}
	if err := p.ValidateNew(); err != nil {
		writeDomainError(w, "Invalid penalty", err)
		return
	}
	if p.ID == "" {
		p.ID = motivation.PenaltyID(uuid.New().String())
	}
	if err := h.Repo.CreatePenalty(r.Context(), p); err != nil {
		writeDomainError(w, "Failed to save penalty", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPenaltyDTO(p))
}

// PenaltySummary totals an employee's penalties for a period by status
// and type.
func (h *Handler) PenaltySummary(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user_id")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	period, err := h.parsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	penalties, err := h.Repo.PenaltiesForUser(r.Context(), motivation.UserID(user), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list penalties", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltySummaryDTO(user, motivation.SummarizePenalties(period, penalties)))
}

// TransitionPenalty applies, disputes, waives or cancels a penalty.
func (h *Handler) TransitionPenalty(w http.ResponseWriter, r *http.Request) {
	var req PenaltyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()
	p, err := h.Repo.GetPenalty(ctx, motivation.PenaltyID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get penalty", err)
		return
	}
	if err := p.Transition(motivation.PenaltyStatus(req.Status)); err != nil {
		writeDomainError(w, "Transition rejected", err)
		return
	}
	if err := h.Repo.SavePenalty(ctx, *p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save penalty", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyDTO(*p))
}

// =============================================================================
// MARKETING AND SALES
// =============================================================================

func (h *Handler) MarketingSplit(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	split := marketing.SplitRequest{
		UserID:          motivation.UserID(req.UserID),
		Period:          period,
		Fund:            req.Fund,
		SalesMetric:     req.SalesMetric,
		SalesCompletion: req.SalesCompletion,
		TasksCompletion: req.TasksCompletion,
	}
	if req.SalesWeight != nil || req.TasksWeight != nil {
		split.Weights = motivation.DefaultSplitWeights()
		if req.SalesWeight != nil {
			split.Weights.Sales = *req.SalesWeight
		}
		if req.TasksWeight != nil {
			split.Weights.Tasks = *req.TasksWeight
		}
	}

	res, err := h.Marketing.Split(r.Context(), split)
	if err != nil {
		writeDomainError(w, "Split failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SplitDTO{
		SalesCompletion: res.SalesCompletion,
		TasksCompletion: res.TasksCompletion,
		FromSales:       res.FromSales,
		FromTasks:       res.FromTasks,
		Total:           res.Total,
	})
}

func (h *Handler) MarketingBonus(w http.ResponseWriter, r *http.Request) {
	var req MarketingBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	k := marketing.Kpi{
		UserID:         motivation.UserID(req.UserID),
		Period:         period,
		LeadsCount:     req.LeadsCount,
		QualifiedLeads: req.QualifiedLeads,
		ConvertedLeads: req.ConvertedLeads,
		CplActual:      req.CplActual,
		RoasActual:     req.RoasActual,
		TotalSpend:     req.TotalSpend,
		TotalRevenue:   req.TotalRevenue,
	}
	targets := make(marketing.Targets, len(req.Targets))
	for kind, v := range req.Targets {
		targets[marketing.TargetKind(kind)] = v
	}

	b, err := h.Marketing.MonthlyBonus(r.Context(), k, targets)
	if err != nil {
		writeDomainError(w, "Bonus calculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, MarketingBonusDTO{
		UserID:           string(b.UserID),
		LeadBonus:        b.LeadBonus,
		CplBonus:         b.CplBonus,
		RoasBonus:        b.RoasBonus,
		AcceleratorBonus: b.AcceleratorBonus,
		BaseAmount:       b.BaseAmount,
		Total:            b.Total,
		PenaltyDeduction: b.PenaltyDeduction,
		FinalAmount:      b.FinalAmount,
	})
}

// SalesTeam evaluates every individual target of a department.
func (h *Handler) SalesTeam(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	department, err := h.toSalesTarget(req.Department)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid department target", err)
		return
	}
	targets := make([]sales.Target, 0, len(req.Targets))
	for _, dto := range req.Targets {
		t, err := h.toSalesTarget(dto)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target "+dto.ID, err)
			return
		}
		targets = append(targets, t)
	}
	receivables := make(map[motivation.UserID]decimal.Decimal, len(req.Receivables))
	for user, rate := range req.Receivables {
		receivables[motivation.UserID(user)] = rate
	}

	res, err := h.Team.Calculate(r.Context(), department, targets, receivables, req.Save)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Team calculation failed", err)
		return
	}

	dto := TeamDTO{
		DepartmentID: res.Department.DepartmentID,
		Members:      make([]TeamMemberDTO, 0, len(res.Members)),
		NetTotal:     res.NetTotal,
		BonusTotal:   res.BonusTotal,
	}
	for _, m := range res.Members {
		member := TeamMemberDTO{UserID: string(m.UserID), Completion: m.Completion}
		if m.Err != nil {
			member.Error = m.Err.Error()
		}
		if m.Record != nil {
			calc := toCalculationDTO(*m.Record)
			member.Calculation = &calc
		}
		dto.Members = append(dto.Members, member)
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) toSalesTarget(dto SalesTargetDTO) (sales.Target, error) {
	period, err := h.parsePeriod(dto.Period)
	if err != nil {
		return sales.Target{}, err
	}
	return sales.Target{
		ID:           motivation.TargetID(dto.ID),
		BusinessID:   motivation.BusinessID(dto.BusinessID),
		UserID:       motivation.UserID(dto.UserID),
		DepartmentID: dto.DepartmentID,
		Type:         sales.TargetType(dto.Type),
		Period:       period,
		PlanRevenue:  dto.PlanRevenue,
		BaseRevenue:  dto.BaseRevenue,
		FactRevenue:  dto.FactRevenue,
	}, nil
}

// =============================================================================
// PAYROLL
// =============================================================================

// TriggerPayroll runs the batch for a period synchronously.
func (h *Handler) TriggerPayroll(w http.ResponseWriter, r *http.Request) {
	var req PayrollRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	run, err := h.Runner.Run(r.Context(), period)
	if err != nil {
		if run != nil {
			writeJSON(w, http.StatusInternalServerError, toPayrollRunDTO(*run))
			return
		}
		writeError(w, http.StatusInternalServerError, "Payroll run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollRunDTO(*run))
}

func (h *Handler) ListPayrollRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	runs, err := h.Repo.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payroll runs", err)
		return
	}
	dtos := make([]PayrollRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toPayrollRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// parsePeriod accepts "2025-03" or "2025-01-01/2025-03-31". An empty
// value is the current month.
func (h *Handler) parsePeriod(s string) (motivation.Period, error) {
	if s == "" {
		return motivation.PeriodMonthly.PeriodFor(h.Clock.Now()), nil
	}
	if start, end, ok := strings.Cut(s, "/"); ok {
		from, err := time.Parse(dateLayout, start)
		if err != nil {
			return motivation.Period{}, fmt.Errorf("invalid period start %q: %w", start, err)
		}
		to, err := time.Parse(dateLayout, end)
		if err != nil {
			return motivation.Period{}, fmt.Errorf("invalid period end %q: %w", end, err)
		}
		return motivation.NewPeriod(from, to)
	}
	return motivation.ParseMonth(s)
}

// optionalPeriod parses s, returning the zero period for an empty value.
func (h *Handler) optionalPeriod(s string) (motivation.Period, error) {
	if s == "" {
		return motivation.Period{}, nil
	}
	return h.parsePeriod(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case motivation.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, motivation.ErrConcurrentModification),
		errors.Is(err, motivation.ErrPenaltyExists):
		writeError(w, http.StatusConflict, message, err)
	case motivation.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
