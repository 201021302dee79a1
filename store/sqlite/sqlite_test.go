package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/motivation-engine/motivation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func march2025() motivation.Period {
	return motivation.PeriodMonthly.PeriodFor(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleScheme() *motivation.Scheme {
	return &motivation.Scheme{
		ID:          "sm",
		BusinessID:  "acme",
		Name:        "Sales manager",
		Kind:        motivation.KindTwoParameter,
		Currency:    motivation.CurrencyUZS,
		BonusPeriod: motivation.PeriodMonthly,
		Active:      true,
		Components: []motivation.Component{
			{ID: "fixed", ComponentType: motivation.ComponentFixedSalary, CalculationType: motivation.CalcFixed, BaseAmount: dec("3000000"), Order: 1},
			{ID: "bonus", ComponentType: motivation.ComponentBonus, CalculationType: motivation.CalcPercentage,
				PercentageOf: motivation.KeyRevenue, PercentageValue: dec("5"), MaxAmount: motivation.DecimalPtr(4_000_000), Order: 2},
		},
	}
}

// =============================================================================
// SCHEMES
// =============================================================================

func TestStore_SchemeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	scheme := sampleScheme()
	scheme.ValidFrom = &from

	require.NoError(t, store.SaveScheme(ctx, scheme))
	assert.Equal(t, 1, scheme.Version)

	got, err := store.GetScheme(ctx, "sm")
	require.NoError(t, err)
	assert.Equal(t, "Sales manager", got.Name)
	assert.Equal(t, motivation.KindTwoParameter, got.Kind)
	assert.True(t, got.Active)
	require.NotNil(t, got.ValidFrom)
	assert.True(t, got.ValidFrom.Equal(from))
	require.Len(t, got.Components, 2)
	assert.True(t, got.Components[1].PercentageValue.Equal(dec("5")))
	require.NotNil(t, got.Components[1].MaxAmount)
	assert.True(t, got.Components[1].MaxAmount.Equal(dec("4000000")))

	require.NoError(t, store.SaveScheme(ctx, scheme))
	assert.Equal(t, 2, scheme.Version)

	_, err = store.GetScheme(ctx, "missing")
	assert.ErrorIs(t, err, motivation.ErrSchemeNotFound)
}

func TestStore_RetireScheme(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveScheme(ctx, sampleScheme()))

	require.NoError(t, store.RetireScheme(ctx, "sm"))
	require.NoError(t, store.RetireScheme(ctx, "sm"), "retiring twice is a no-op")

	got, err := store.GetScheme(ctx, "sm")
	require.NoError(t, err)
	assert.True(t, got.IsRetired())
	assert.False(t, got.Active)
	assert.Equal(t, 2, got.Version)

	assert.ErrorIs(t, store.RetireScheme(ctx, "missing"), motivation.ErrSchemeNotFound)
}

func TestStore_ListSchemesByBusiness(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := sampleScheme()
	b := sampleScheme()
	b.ID, b.BusinessID = "other", "globex"
	require.NoError(t, store.SaveScheme(ctx, a))
	require.NoError(t, store.SaveScheme(ctx, b))

	all, err := store.ListSchemes(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	acme, err := store.ListSchemes(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, acme, 1)
	assert.Equal(t, motivation.SchemeID("sm"), acme[0].ID)
}

// =============================================================================
// ASSIGNMENTS, TARGETS, REQUIREMENTS
// =============================================================================

func TestStore_ActiveAssignments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	override := dec("4500000")
	ended := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveAssignment(ctx, motivation.Assignment{
		ID: "a1", UserID: "bob", SchemeID: "sm", Active: true,
		ValidFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), FixedSalaryOverride: &override,
	}))
	require.NoError(t, store.SaveAssignment(ctx, motivation.Assignment{
		ID: "a2", UserID: "alice", SchemeID: "sm", Active: true,
		ValidFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ValidTo: &ended,
	}))
	require.NoError(t, store.SaveAssignment(ctx, motivation.Assignment{
		ID: "a3", UserID: "carol", SchemeID: "sm", Active: false,
		ValidFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	got, err := store.ActiveAssignments(ctx, march2025())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, motivation.UserID("bob"), got[0].UserID)
	require.NotNil(t, got[0].FixedSalaryOverride)
	assert.True(t, got[0].FixedSalaryOverride.Equal(override))

	forAlice, err := store.AssignmentsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	require.NotNil(t, forAlice[0].ValidTo)
}

func TestStore_LinkedTargetsOverlapPeriod(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	march := march2025()
	q1 := motivation.PeriodQuarterly.PeriodFor(march.Start)
	april := motivation.PeriodMonthly.Next(march)

	for _, target := range []motivation.LinkedTarget{
		{ID: "t1", UserID: "u1", Metric: "sales_plan", Period: march, PlanValue: dec("100"), FactValue: dec("90.5")},
		{ID: "t2", UserID: "u1", Metric: "leads", Period: q1, PlanValue: dec("300"), FactValue: dec("310")},
		{ID: "t3", UserID: "u1", Metric: "sales_plan", Period: april, PlanValue: dec("100")},
		{ID: "t4", UserID: "u2", Metric: "sales_plan", Period: march, PlanValue: dec("100")},
	} {
		require.NoError(t, store.SaveLinkedTarget(ctx, target))
	}

	got, err := store.LinkedTargets(ctx, "u1", march)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "leads", got[0].Metric)
	assert.Equal(t, "sales_plan", got[1].Metric)
	assert.True(t, got[1].FactValue.Equal(dec("90.5")))
	assert.Equal(t, march.Key(), got[1].Period.Key())

	one, err := store.GetLinkedTarget(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, q1.Key(), one.Period.Key())

	_, err = store.GetLinkedTarget(ctx, "missing")
	assert.ErrorIs(t, err, motivation.ErrTargetNotFound)
}

func TestStore_KpiSnapshotAndRequirements(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	period := march2025()

	snap, err := store.GetKpiSnapshot(ctx, "u1", period)
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, store.SaveKpiSnapshot(ctx, motivation.KpiSnapshot{UserID: "u1", Period: period, KpiScore: dec("1.05")}))
	snap, err = store.GetKpiSnapshot(ctx, "u1", period)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.KpiScore.Equal(dec("1.05")))

	require.NoError(t, store.MarkRequirementCompleted(ctx, "u1", "soft", "reports", period))
	require.NoError(t, store.MarkRequirementCompleted(ctx, "u1", "soft", "reports", period))
	require.NoError(t, store.MarkRequirementCompleted(ctx, "u1", "soft", "crm", period))

	done, err := store.GetCompletedRequirementIDs(ctx, "u1", "soft", period)
	require.NoError(t, err)
	assert.Equal(t, []string{"crm", "reports"}, done.Sorted())

	other, err := store.GetCompletedRequirementIDs(ctx, "u1", "soft", motivation.PeriodMonthly.Next(period))
	require.NoError(t, err)
	assert.Empty(t, other)
}

// =============================================================================
// OPTIMISTIC LOCKING
// =============================================================================

func TestStore_KeyTaskMapVersioning(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := &motivation.KeyTaskMap{
		ID: "map1", UserID: "u1", Period: march2025(),
		TotalBonusFund: dec("2000000"), MinCompletionPercent: dec("70"), FullBonusPercent: dec("100"),
		Tasks: []motivation.KeyTask{
			{ID: "a", Title: "Launch", Weight: dec("60"), Status: motivation.TaskPending},
			{ID: "b", Title: "Report", Weight: dec("40"), Status: motivation.TaskPending},
		},
	}
	require.NoError(t, store.SaveKeyTaskMap(ctx, m))
	assert.Equal(t, 1, m.Version)

	// Two readers load the same version
	first, err := store.GetKeyTaskMap(ctx, "map1")
	require.NoError(t, err)
	second, err := store.FindKeyTaskMap(ctx, "u1", march2025())
	require.NoError(t, err)
	require.NotNil(t, second)

	require.NoError(t, first.CompleteTask("a", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, store.SaveKeyTaskMap(ctx, first))

	require.NoError(t, second.CompleteTask("b", time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, store.SaveKeyTaskMap(ctx, second), motivation.ErrConcurrentModification)

	got, err := store.GetKeyTaskMap(ctx, "map1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, motivation.TaskCompleted, got.Tasks[0].Status)
	require.NotNil(t, got.Tasks[0].CompletedAt)
	assert.Equal(t, motivation.TaskPending, got.Tasks[1].Status)

	none, err := store.FindKeyTaskMap(ctx, "nobody", march2025())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_CalculationVersioning(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := &motivation.CalculationRecord{
		ID: "c1", UserID: "u1", SchemeID: "sm", Period: march2025(),
		Status: motivation.StatusCalculated,
		Result: motivation.Result{
			SchemeID: "sm",
			NetTotal: motivation.NewAmountFromDecimal(dec("5000000"), motivation.CurrencyUZS),
			Lines:    []motivation.Line{{ComponentID: "fixed", Amount: motivation.NewAmountFromDecimal(dec("3000000"), motivation.CurrencyUZS)}},
		},
		Inputs: map[string]decimal.Decimal{"revenue": dec("40000000")},
	}

	// GIVEN: A stored record
	require.NoError(t, store.SaveCalculation(ctx, rec))
	assert.Equal(t, 1, rec.Version)

	// WHEN: It is approved from the current version
	require.NoError(t, rec.Approve("manager", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, store.SaveCalculation(ctx, rec))

	// THEN: The stored record carries the approval and the next version
	got, err := store.GetCalculation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, motivation.StatusApproved, got.Status)
	assert.Equal(t, "manager", got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)
	assert.Equal(t, 2, got.Version)
	assert.True(t, got.Result.NetTotal.Value.Equal(dec("5000000")))
	require.Len(t, got.Result.Lines, 1)
	assert.True(t, got.Inputs["revenue"].Equal(dec("40000000")))

	// AND: A stale writer is rejected
	stale := *got
	stale.Version = 1
	assert.ErrorIs(t, store.SaveCalculation(ctx, &stale), motivation.ErrConcurrentModification)

	// AND: A second record for the same user, scheme and period is rejected
	dup := &motivation.CalculationRecord{ID: "c2", UserID: "u1", SchemeID: "sm", Period: march2025(), Status: motivation.StatusDraft}
	assert.ErrorIs(t, store.SaveCalculation(ctx, dup), motivation.ErrConcurrentModification)

	found, err := store.FindCalculation(ctx, "u1", "sm", march2025())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, motivation.CalculationID("c1"), found.ID)

	missing, err := store.FindCalculation(ctx, "u2", "sm", march2025())
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = store.GetCalculation(ctx, "nope")
	assert.ErrorIs(t, err, motivation.ErrCalculationNotFound)
}

func TestStore_ListCalculationsByPeriod(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	march := march2025()
	april := motivation.PeriodMonthly.Next(march)

	for _, r := range []*motivation.CalculationRecord{
		{ID: "c2", UserID: "bob", SchemeID: "sm", Period: march, Status: motivation.StatusCalculated},
		{ID: "c1", UserID: "alice", SchemeID: "sm", Period: march, Status: motivation.StatusCalculated},
		{ID: "c3", UserID: "alice", SchemeID: "sm", Period: april, Status: motivation.StatusDraft},
	} {
		require.NoError(t, store.SaveCalculation(ctx, r))
	}

	got, err := store.ListCalculations(ctx, march)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, motivation.UserID("alice"), got[0].UserID)

	all, err := store.ListCalculations(ctx, motivation.Period{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// PENALTIES AND RUNS
// =============================================================================

func TestStore_PenaltiesForUserWithinPeriod(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, p := range []motivation.Penalty{
		{ID: "p1", UserID: "u1", Amount: dec("10000"), Status: motivation.PenaltyApplied, Date: time.Date(2025, 3, 31, 18, 30, 0, 0, time.UTC)},
		{ID: "p2", UserID: "u1", Amount: dec("20000"), Status: motivation.PenaltyPending, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "p3", UserID: "u1", Amount: dec("30000"), Status: motivation.PenaltyApplied, Date: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "p4", UserID: "u2", Amount: dec("40000"), Status: motivation.PenaltyApplied, Date: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)},
	} {
		require.NoError(t, store.SavePenalty(ctx, p))
	}

	got, err := store.PenaltiesForUser(ctx, "u1", march2025())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, motivation.PenaltyID("p2"), got[0].ID)
	assert.True(t, motivation.SumApplied(got, march2025()).Equal(dec("10000")))

	p, err := store.GetPenalty(ctx, "p3")
	require.NoError(t, err)
	require.NoError(t, p.Transition(motivation.PenaltyWaived))
	require.NoError(t, store.SavePenalty(ctx, *p))
	p, err = store.GetPenalty(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, motivation.PenaltyWaived, p.Status)
}

func TestStore_CreatePenaltyRejectsExistingID(t *testing.T) {
	// GIVEN: A waived penalty
	ctx := context.Background()
	store := newTestStore(t)
	p := motivation.Penalty{
		ID: "p1", UserID: "u1", Amount: dec("10000"), Status: motivation.PenaltyPending,
		Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreatePenalty(ctx, p))
	stored, err := store.GetPenalty(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, stored.Transition(motivation.PenaltyWaived))
	require.NoError(t, store.SavePenalty(ctx, *stored))

	// WHEN: The ID is created again as applied
	p.Status = motivation.PenaltyApplied
	err = store.CreatePenalty(ctx, p)

	// THEN: The insert is refused and the stored penalty is unchanged
	assert.ErrorIs(t, err, motivation.ErrPenaltyExists)
	stored, err = store.GetPenalty(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, motivation.PenaltyWaived, stored.Status)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []motivation.RunID{"r1", "r2", "r3"} {
		require.NoError(t, store.SaveRun(ctx, motivation.PayrollRun{
			ID: id, Period: march2025(), Status: motivation.RunCompleted, Processed: i,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Items:     []motivation.RunItem{{UserID: "u1", Outcome: motivation.ItemCalculated, NetTotal: dec("100")}},
		}))
	}

	got, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, motivation.RunID("r3"), got[0].ID)
	assert.Equal(t, motivation.RunID("r2"), got[1].ID)
	require.Len(t, got[0].Items, 1)
	assert.True(t, got[0].Items[0].NetTotal.Equal(dec("100")))

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveScheme(ctx, sampleScheme()))

	require.NoError(t, store.Reset(ctx))

	all, err := store.ListSchemes(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

// =============================================================================
// END TO END
// =============================================================================

func TestStore_PayrollRunPersists(t *testing.T) {
	// GIVEN: A two-parameter scheme, an assignment and a revenue target
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveScheme(ctx, sampleScheme()))
	require.NoError(t, store.SaveAssignment(ctx, motivation.Assignment{
		ID: "a1", UserID: "alice", SchemeID: "sm", Active: true,
		ValidFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveLinkedTarget(ctx, motivation.LinkedTarget{
		ID: "t1", UserID: "alice", Metric: motivation.KeyRevenue, Period: march2025(),
		PlanValue: dec("50000000"), FactValue: dec("40000000"),
	}))
	clock := motivation.NewFixedClock(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	runner := motivation.NewPayrollRunner(store, motivation.NewAggregator(nil), clock, nil)

	// WHEN: The payroll runs twice
	run, err := runner.Run(ctx, march2025())
	require.NoError(t, err)
	_, err = runner.Run(ctx, march2025())
	require.NoError(t, err)

	// THEN: One record exists, updated in place
	assert.Equal(t, motivation.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Processed)
	rec, err := store.FindCalculation(ctx, "alice", "sm", march2025())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.Version)
	assert.True(t, rec.Result.NetTotal.Value.Equal(dec("5000000")), rec.Result.NetTotal.String())

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
