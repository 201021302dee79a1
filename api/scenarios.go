/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Each scenario creates schemes, employees, assignments
	and the inputs (targets, key tasks, penalties) that show one kind of
	motivation scheme at work in the current month.

AVAILABLE SCENARIOS:

	two-parameter:    Fixed salary + percent of revenue
	tiered-team:      Sales team on a KPI scale table
	three-parameter:  Fixed + soft salary checklist + generated KPI scale
	plan-penalty:     Revenue bonus with a penalty below plan
	key-tasks:        Bonus fund paid by weighted key task completion
	marketing:        70/30 sales-linked split with a recorded penalty

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create schemes via the sales presets and the scheme factory
 3. Create employees and assign schemes from the first of the month
 4. Add the period's inputs

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "tiered-team"}

	POST /api/payroll/run
	{"period": "2025-03"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/marketing"
	"github.com/warp/motivation-engine/motivation"
	"github.com/warp/motivation-engine/sales"
)

// errNoReset is returned when the configured store cannot be reset.
var errNoReset = errors.New("store does not support reset")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "two-parameter",
		Name:        "Fix + Revenue Percent",
		Description: "3,000,000 fixed salary plus 5% of personal revenue",
		Category:    "sales",
	},
	{
		ID:          "tiered-team",
		Name:        "Tiered Sales Team",
		Description: "Three reps on one scale table: below plan, on plan, and over plan",
		Category:    "sales",
	},
	{
		ID:          "three-parameter",
		Name:        "Three-Parameter Scheme",
		Description: "Fixed salary, soft salary over a responsibility checklist, and a progressive KPI bonus",
		Category:    "sales",
	},
	{
		ID:          "plan-penalty",
		Name:        "Plan Penalty",
		Description: "Revenue bonus with a fixed penalty while plan completion is under 80%",
		Category:    "sales",
	},
	{
		ID:          "key-tasks",
		Name:        "Key Tasks",
		Description: "A 1,000,000 fund paid by weighted task completion once 50% is reached",
		Category:    "projects",
	},
	{
		ID:          "marketing",
		Name:        "Marketing Split",
		Description: "Sales-linked 70/30 split bonus for a marketer, with an applied penalty",
		Category:    "marketing",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loaders := map[string]func(context.Context, motivation.Period) error{
		"two-parameter":   h.loadTwoParameterScenario,
		"tiered-team":     h.loadTieredTeamScenario,
		"three-parameter": h.loadThreeParameterScenario,
		"plan-penalty":    h.loadPlanPenaltyScenario,
		"key-tasks":       h.loadKeyTasksScenario,
		"marketing":       h.loadMarketingScenario,
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	period := motivation.PeriodMonthly.PeriodFor(h.Clock.Now())
	if err := load(ctx, period); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID, "period", period.Key())

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"period":   period.Start.Format("2006-01"),
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Repo.(Resetter)
	if !ok {
		return errNoReset
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadTwoParameterScenario(ctx context.Context, period motivation.Period) error {
	if err := h.seedScheme(ctx, sales.TwoParameterSchemeJSON("sm-two", "Sales manager", 3_000_000, 5)); err != nil {
		return err
	}
	if err := h.seedEmployee(ctx, "emp-alice", "Alice Karimova", "retail", "sales manager", "sm-two", period); err != nil {
		return err
	}
	// 40,000,000 revenue: 3,000,000 + 2,000,000
	return h.seedTarget(ctx, "t-alice", "emp-alice", motivation.KeyRevenue, period, 50_000_000, 40_000_000)
}

func (h *Handler) loadTieredTeamScenario(ctx context.Context, period motivation.Period) error {
	if err := h.seedScheme(ctx, sales.TieredBonusSchemeJSON("sm-tiered", "Tiered sales", 2_000_000, 1_000_000)); err != nil {
		return err
	}
	reps := []struct {
		id, name string
		fact     int64
	}{
		{"emp-bobur", "Bobur Aliev", 70_000_000},
		{"emp-dilnoza", "Dilnoza Rashidova", 105_000_000},
		{"emp-jasur", "Jasur Tursunov", 125_000_000},
	}
	for _, rep := range reps {
		if err := h.seedEmployee(ctx, rep.id, rep.name, "retail", "sales rep", "sm-tiered", period); err != nil {
			return err
		}
		if err := h.seedTarget(ctx, "t-"+rep.id, rep.id, sales.MetricSalesPlan, period, 100_000_000, rep.fact); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadThreeParameterScenario(ctx context.Context, period motivation.Period) error {
	schemeJSON := sales.ThreeParameterSchemeJSON("sm-three", "Senior sales", 2_500_000, 1_000_000, 1_500_000,
		map[string]float64{"crm": 50, "reports": 30, "meetings": 20})
	if err := h.seedScheme(ctx, schemeJSON); err != nil {
		return err
	}
	if err := h.seedEmployee(ctx, "emp-malika", "Malika Yusupova", "b2b", "senior sales", "sm-three", period); err != nil {
		return err
	}
	if err := h.seedTarget(ctx, "t-malika", "emp-malika", sales.MetricSalesPlan, period, 80_000_000, 88_000_000); err != nil {
		return err
	}
	for _, req := range []string{"crm", "reports"} {
		if err := h.Repo.MarkRequirementCompleted(ctx, "emp-malika", "soft", req, period); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadPlanPenaltyScenario(ctx context.Context, period motivation.Period) error {
	if err := h.seedScheme(ctx, sales.PlanPenaltySchemeJSON("sm-penalty", "Sales with plan penalty", 3_000_000, 5, 500_000, 80)); err != nil {
		return err
	}
	if err := h.seedEmployee(ctx, "emp-otabek", "Otabek Saidov", "retail", "sales rep", "sm-penalty", period); err != nil {
		return err
	}
	if err := h.seedEmployee(ctx, "emp-nodira", "Nodira Ismoilova", "retail", "sales rep", "sm-penalty", period); err != nil {
		return err
	}
	if err := h.seedTarget(ctx, "t-otabek", "emp-otabek", motivation.KeyRevenue, period, 60_000_000, 36_000_000); err != nil {
		return err
	}
	return h.seedTarget(ctx, "t-nodira", "emp-nodira", motivation.KeyRevenue, period, 60_000_000, 54_000_000)
}

func (h *Handler) loadKeyTasksScenario(ctx context.Context, period motivation.Period) error {
	if err := h.seedScheme(ctx, sales.KeyTasksSchemeJSON("pm-tasks", "Project manager", 4_000_000)); err != nil {
		return err
	}
	if err := h.seedEmployee(ctx, "emp-sardor", "Sardor Nazarov", "projects", "project manager", "pm-tasks", period); err != nil {
		return err
	}
	now := h.Clock.Now()
	m := &motivation.KeyTaskMap{
		ID:                   "ktm-sardor",
		UserID:               "emp-sardor",
		Period:               period,
		TotalBonusFund:       decimal.NewFromInt(1_000_000),
		MinCompletionPercent: decimal.NewFromInt(50),
		FullBonusPercent:     decimal.NewFromInt(100),
		Tasks: []motivation.KeyTask{
			{ID: "launch", Title: "Launch the partner portal", Weight: decimal.NewFromInt(50), Status: motivation.TaskCompleted, CompletedAt: &now},
			{ID: "migrate", Title: "Migrate billing", Weight: decimal.NewFromInt(30), Status: motivation.TaskCompleted, CompletedAt: &now},
			{ID: "docs", Title: "Publish the API docs", Weight: decimal.NewFromInt(20), Status: motivation.TaskPending},
		},
		UpdatedAt: now,
	}
	return h.Repo.SaveKeyTaskMap(ctx, m)
}

func (h *Handler) loadMarketingScenario(ctx context.Context, period motivation.Period) error {
	e := motivation.Employee{ID: "emp-kamola", Name: "Kamola Ergasheva", DepartmentID: "marketing", Position: "marketer"}
	if err := h.Repo.SaveEmployee(ctx, e); err != nil {
		return err
	}
	if err := h.seedTarget(ctx, "t-kamola", "emp-kamola", marketing.DefaultSalesMetric, period, 100_000_000, 90_000_000); err != nil {
		return err
	}
	m := &motivation.KeyTaskMap{
		ID:             "ktm-kamola",
		UserID:         "emp-kamola",
		Period:         period,
		TotalBonusFund: decimal.NewFromInt(300_000),
		Tasks: []motivation.KeyTask{
			{ID: "campaign", Title: "Spring campaign", Weight: decimal.NewFromInt(60), Status: motivation.TaskCompleted},
			{ID: "landing", Title: "New landing page", Weight: decimal.NewFromInt(40), Status: motivation.TaskPending},
		},
		UpdatedAt: h.Clock.Now(),
	}
	if err := h.Repo.SaveKeyTaskMap(ctx, m); err != nil {
		return err
	}
	return h.Repo.CreatePenalty(ctx, motivation.Penalty{
		ID:        "pen-kamola",
		UserID:    "emp-kamola",
		Type:      "late_report",
		Reason:    "Weekly report submitted late",
		Amount:    decimal.NewFromInt(20_000),
		Date:      period.Start.AddDate(0, 0, 9),
		Status:    motivation.PenaltyApplied,
		CreatedAt: h.Clock.Now(),
	})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedScheme(ctx context.Context, jsonStr string) error {
	scheme, err := h.Schemes.ParseScheme(jsonStr)
	if err != nil {
		return err
	}
	return h.Repo.SaveScheme(ctx, scheme)
}

// seedEmployee creates the employee and assigns scheme from the start of
// period.
func (h *Handler) seedEmployee(ctx context.Context, id, name, department, position, scheme string, period motivation.Period) error {
	e := motivation.Employee{
		ID:           motivation.UserID(id),
		Name:         name,
		DepartmentID: department,
		Position:     position,
		HiredAt:      period.Start.AddDate(-1, 0, 0),
	}
	if err := h.Repo.SaveEmployee(ctx, e); err != nil {
		return err
	}
	return h.Repo.SaveAssignment(ctx, motivation.Assignment{
		ID:        motivation.AssignmentID("asg-" + id),
		UserID:    e.ID,
		SchemeID:  motivation.SchemeID(scheme),
		ValidFrom: period.Start,
		Active:    true,
		CreatedAt: h.Clock.Now(),
	})
}

func (h *Handler) seedTarget(ctx context.Context, id, user, metric string, period motivation.Period, plan, fact int64) error {
	return h.Repo.SaveLinkedTarget(ctx, motivation.LinkedTarget{
		ID:        motivation.TargetID(id),
		UserID:    motivation.UserID(user),
		Metric:    metric,
		Period:    period,
		PlanValue: decimal.NewFromInt(plan),
		FactValue: decimal.NewFromInt(fact),
		UpdatedAt: h.Clock.Now(),
	})
}
