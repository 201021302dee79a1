/*
scenarios_test.go - End-to-end tests for the demo scenarios

Each scenario is loaded through the API, the payroll batch is run for the
scenario month, and the stored calculations are checked against the
amounts the scenario description promises.
*/
package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/motivation-engine/motivation"
)

// scenarioMonth is the month testNow falls in.
const scenarioMonth = "2025-04"

func (s *testServer) loadScenario(t *testing.T, id string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[map[string]string](t, rec)
	require.Equal(t, scenarioMonth, body["period"])
}

// runPayroll runs the scenario month and returns net totals by user.
func (s *testServer) runPayroll(t *testing.T) (PayrollRunDTO, map[string]CalculationDTO) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/payroll/run", PayrollRunRequest{Period: scenarioMonth})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decodeBody[PayrollRunDTO](t, rec)

	rec = s.do(t, http.MethodGet, "/api/calculations?period="+scenarioMonth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byUser := make(map[string]CalculationDTO)
	for _, c := range decodeBody[[]CalculationDTO](t, rec) {
		byUser[c.UserID] = c
	}
	return run, byUser
}

func TestListScenarios(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarios))
	for _, sc := range list {
		assert.NotEmpty(t, sc.ID)
		assert.NotEmpty(t, sc.Description)
	}
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrentScenario_TracksLoadAndReset(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: Nothing loaded yet
	rec := s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	// WHEN: A scenario is loaded
	s.loadScenario(t, "two-parameter")

	// THEN: It is reported as current
	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "two-parameter", decodeBody[ScenarioDTO](t, rec).ID)

	// WHEN: The store is reset
	rec = s.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Data and the current scenario are gone
	rec = s.do(t, http.MethodGet, "/api/schemes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]SchemeDTO](t, rec))
	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestLoadScenario_ReplacesPreviousData(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "tiered-team")

	s.loadScenario(t, "two-parameter")

	rec := s.do(t, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	employees := decodeBody[[]EmployeeDTO](t, rec)
	require.Len(t, employees, 1)
	assert.Equal(t, "emp-alice", employees[0].ID)
}

func TestScenario_TwoParameter(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "two-parameter")

	run, byUser := s.runPayroll(t)

	// 3,000,000 + 5% of 40,000,000
	assert.Equal(t, 1, run.Processed)
	assertMoney(t, 5_000_000, byUser["emp-alice"].Result.NetTotal)
}

func TestScenario_TieredTeam(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "tiered-team")

	run, byUser := s.runPayroll(t)

	assert.Equal(t, 3, run.Processed)
	tests := []struct {
		user string
		net  int64
		tier string
	}{
		{"emp-bobur", 2_000_000, ""},
		{"emp-dilnoza", 3_200_000, "100-119%"},
		{"emp-jasur", 3_500_000, "120%+"},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			calc, ok := byUser[tt.user]
			require.True(t, ok)
			assertMoney(t, tt.net, calc.Result.NetTotal)
			require.Len(t, calc.Result.Lines, 2)
			assert.Equal(t, tt.tier, calc.Result.Lines[1].Tier)
		})
	}
}

func TestScenario_ThreeParameter(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "three-parameter")

	run, byUser := s.runPayroll(t)

	// THEN: crm and reports earn 80% of the soft salary; 110% of plan pays a bonus
	assert.Equal(t, 1, run.Processed)
	calc := byUser["emp-malika"]
	assertMoney(t, 800_000, calc.Result.SoftSalaryTotal)
	assert.True(t, calc.Result.BonusTotal.IsPositive(), calc.Result.BonusTotal.String())
	assert.True(t, calc.Result.KpiScore.Equal(decimal.RequireFromString("1.1")), calc.Result.KpiScore.String())
}

func TestScenario_PlanPenalty(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "plan-penalty")

	_, byUser := s.runPayroll(t)

	// 60% of plan: 3,000,000 + 1,800,000 - 500,000
	otabek := byUser["emp-otabek"]
	assertMoney(t, 4_300_000, otabek.Result.NetTotal)
	assertMoney(t, 500_000, otabek.Result.PenaltyTotal)

	// 90% of plan: no penalty
	nodira := byUser["emp-nodira"]
	assertMoney(t, 5_700_000, nodira.Result.NetTotal)
	assertMoney(t, 0, nodira.Result.PenaltyTotal)
}

func TestScenario_KeyTasks(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "key-tasks")

	_, byUser := s.runPayroll(t)

	// 80% of the task weight is done: 4,000,000 + 800,000
	assertMoney(t, 4_800_000, byUser["emp-sardor"].Result.NetTotal)

	// WHEN: The last task is completed and the month recalculated
	rec := s.do(t, http.MethodPost, "/api/key-task-maps/ktm-sardor/tasks/docs/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(motivation.KeyTaskFull), decodeBody[KeyTaskMapDTO](t, rec).Bonus.Status)

	_, byUser = s.runPayroll(t)
	assertMoney(t, 5_000_000, byUser["emp-sardor"].Result.NetTotal)
}

func TestScenario_Marketing(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "marketing")

	// WHEN: The split is computed from stored completions
	rec := s.do(t, http.MethodPost, "/api/marketing/split", SplitRequest{
		UserID: "emp-kamola",
		Period: scenarioMonth,
		Fund:   decimal.NewFromInt(1_000_000),
	})

	// THEN: 70% * 90% + 30% * 60%
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertMoney(t, 810_000, decodeBody[SplitDTO](t, rec).Total)

	// AND: The monthly bonus deducts the applied penalty
	rec = s.do(t, http.MethodPost, "/api/marketing/bonus", MarketingBonusRequest{
		UserID: "emp-kamola", Period: scenarioMonth, ConvertedLeads: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertMoney(t, 20_000, decodeBody[MarketingBonusDTO](t, rec).PenaltyDeduction)
}

func TestScenario_PayrollSkipsApprovedRecords(t *testing.T) {
	// GIVEN: A tiered team whose first payroll was partly approved
	s := newTestServer(t)
	s.loadScenario(t, "tiered-team")
	_, byUser := s.runPayroll(t)
	rec := s.do(t, http.MethodPost, "/api/calculations/"+byUser["emp-jasur"].ID+"/approve", TransitionRequest{By: "head"})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: The batch runs again
	run, byUser := s.runPayroll(t)

	// THEN: The approved record is left alone
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, string(motivation.StatusApproved), byUser["emp-jasur"].Status)
}
