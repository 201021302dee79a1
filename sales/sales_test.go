package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/motivation-engine/factory"
	"github.com/warp/motivation-engine/motivation"
	"github.com/warp/motivation-engine/motivation/store"
	"github.com/warp/motivation-engine/sales"
)

func march2025() motivation.Period {
	return motivation.PeriodMonthly.PeriodFor(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
}

func individual(id, user string, plan, fact int64) sales.Target {
	return sales.Target{
		ID:           motivation.TargetID(id),
		BusinessID:   "acme",
		UserID:       motivation.UserID(user),
		DepartmentID: "retail",
		Type:         sales.TargetIndividual,
		Period:       march2025(),
		PlanRevenue:  decimal.NewFromInt(plan),
		FactRevenue:  decimal.NewFromInt(fact),
	}
}

func department() sales.Target {
	return sales.Target{
		ID:           "dept",
		BusinessID:   "acme",
		DepartmentID: "retail",
		Type:         sales.TargetDepartment,
		Period:       march2025(),
		PlanRevenue:  decimal.NewFromInt(300_000_000),
	}
}

// =============================================================================
// TARGETS
// =============================================================================

func TestTarget_Inputs(t *testing.T) {
	target := individual("t1", "alice", 100_000_000, 110_000_000)

	in := target.Inputs(nil)

	assert.True(t, in[motivation.KeyRevenue].Equal(decimal.NewFromInt(110_000_000)))
	assert.True(t, in[motivation.KeyPlanCompletion].Equal(decimal.NewFromInt(110)))
	assert.True(t, in[motivation.KeyKpiScore].Equal(decimal.RequireFromString("1.1")))
	assert.True(t, in["plan_sales_plan"].Equal(decimal.NewFromInt(100_000_000)))
	assert.True(t, in[sales.KeyReceivablesRate].Equal(decimal.NewFromInt(100)), "unmeasured receivables count as collected")

	rate := decimal.NewFromInt(85)
	assert.True(t, target.Inputs(&rate)[sales.KeyReceivablesRate].Equal(rate))
}

func TestTarget_CompletionWithoutPlan(t *testing.T) {
	target := individual("t1", "alice", 0, 5_000_000)
	assert.True(t, target.Completion().IsZero())
}

func TestMembers_FiltersByDepartmentAndPeriod(t *testing.T) {
	other := individual("t3", "carol", 1, 1)
	other.DepartmentID = "wholesale"
	april := individual("t4", "dave", 1, 1)
	april.Period = motivation.PeriodMonthly.Next(march2025())

	all := []sales.Target{
		individual("t1", "alice", 1, 1),
		department(),
		individual("t2", "bob", 1, 1),
		other,
		april,
	}

	got := sales.Members(department(), all)
	require.Len(t, got, 2)
	assert.Equal(t, motivation.UserID("alice"), got[0].UserID)
	assert.Equal(t, motivation.UserID("bob"), got[1].UserID)
}

// =============================================================================
// PRESETS
// =============================================================================

func TestTieredPreset_PaysTierCoefficient(t *testing.T) {
	scheme, err := factory.NewSchemeFactory(nil).ParseScheme(sales.TieredBonusSchemeJSON("tiered", "Tiered", 2_000_000, 1_000_000))
	require.NoError(t, err)

	tests := []struct {
		name string
		fact int64
		net  int64
	}{
		{"below the first tier", 70_000_000, 2_000_000},
		{"first tier", 90_000_000, 3_000_000},
		{"second tier", 110_000_000, 3_200_000},
		{"open top tier", 150_000_000, 3_500_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := individual("t1", "alice", 100_000_000, tt.fact)
			ctx := motivation.NewContext()
			for k, v := range target.Inputs(nil) {
				ctx.Set(k, v)
			}

			res, err := motivation.NewAggregator(nil).Aggregate(scheme, ctx)
			require.NoError(t, err)
			assert.True(t, res.NetTotal.Value.Equal(decimal.NewFromInt(tt.net)), res.NetTotal.String())
		})
	}
}

func TestKeyTasksPreset_ReadsKeyTaskBonus(t *testing.T) {
	scheme, err := factory.NewSchemeFactory(nil).ParseScheme(sales.KeyTasksSchemeJSON("kt", "Key tasks", 1_000_000))
	require.NoError(t, err)

	ctx := motivation.NewContext().SetFloat(motivation.KeyKeyTaskBonus, 400_000)
	res, err := motivation.NewAggregator(nil).Aggregate(scheme, ctx)
	require.NoError(t, err)
	assert.True(t, res.NetTotal.Value.Equal(decimal.NewFromInt(1_400_000)), res.NetTotal.String())
}

// =============================================================================
// TEAM
// =============================================================================

func TestTeamCalculator_EvaluatesEachMember(t *testing.T) {
	// GIVEN: Alice and Bob on the tiered scheme, Carol without an assignment
	ctx := context.Background()
	repo := store.NewMemory()
	scheme, err := factory.NewSchemeFactory(nil).ParseScheme(sales.TieredBonusSchemeJSON("tiered", "Tiered", 2_000_000, 1_000_000))
	require.NoError(t, err)
	require.NoError(t, repo.SaveScheme(ctx, scheme))
	for _, user := range []string{"alice", "bob"} {
		require.NoError(t, repo.SaveAssignment(ctx, motivation.Assignment{
			ID:        motivation.AssignmentID("as-" + user),
			UserID:    motivation.UserID(user),
			SchemeID:  scheme.ID,
			ValidFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Active:    true,
		}))
	}

	runner := motivation.NewPayrollRunner(repo, motivation.NewAggregator(nil),
		motivation.NewFixedClock(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)), nil)
	team := &sales.TeamCalculator{Assignments: repo, Runner: runner}

	targets := []sales.Target{
		individual("t1", "alice", 100_000_000, 110_000_000),
		individual("t2", "bob", 100_000_000, 90_000_000),
		individual("t3", "carol", 100_000_000, 100_000_000),
	}

	// WHEN: The team is calculated and saved
	res, err := team.Calculate(ctx, department(), targets, nil, true)
	require.NoError(t, err)

	// THEN: Each member is evaluated on their own target
	require.Len(t, res.Members, 3)
	assert.True(t, res.Members[0].Record.Result.NetTotal.Value.Equal(decimal.NewFromInt(3_200_000)))
	assert.True(t, res.Members[1].Record.Result.NetTotal.Value.Equal(decimal.NewFromInt(3_000_000)))
	assert.ErrorIs(t, res.Members[2].Err, sales.ErrNoAssignment)
	assert.True(t, res.NetTotal.Equal(decimal.NewFromInt(6_200_000)))
	assert.True(t, res.BonusTotal.Equal(decimal.NewFromInt(2_200_000)))

	// AND: Saved records are calculated
	stored, err := repo.FindCalculation(ctx, "alice", scheme.ID, march2025())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, motivation.StatusCalculated, stored.Status)
}

func TestTeamCalculator_RejectsIndividualTarget(t *testing.T) {
	team := &sales.TeamCalculator{Assignments: store.NewMemory()}

	_, err := team.Calculate(context.Background(), individual("t1", "alice", 1, 1), nil, nil, false)
	assert.Error(t, err)
}
