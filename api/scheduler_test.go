package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/motivation-engine/motivation"
	"github.com/warp/motivation-engine/sales"
)

func newTestScheduler(t *testing.T) (*PayrollScheduler, *testServer) {
	t.Helper()
	s := newTestServer(t)
	s.createScheme(t, sales.TwoParameterSchemeJSON("sm-two", "Sales manager", 3_000_000, 5))
	s.assign(t, "alice", "sm-two")
	s.target(t, "t-alice", "alice", motivation.KeyRevenue, 50_000_000, 40_000_000)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPayrollScheduler(s.h.Runner, s.repo, s.h.Clock, logger), s
}

func TestPayrollScheduler_DuePeriodIsLastClosedMonth(t *testing.T) {
	ps, _ := newTestScheduler(t)

	p := ps.DuePeriod()

	assert.Equal(t, "2025-03-01", p.Start.Format(dateLayout))
	assert.Equal(t, "2025-03-31", p.End.Format(dateLayout))
}

func TestPayrollScheduler_RunNowProcessesOnce(t *testing.T) {
	// GIVEN: A scheduler on April 2nd with alice assigned since January
	ps, s := newTestScheduler(t)
	ctx := context.Background()

	// WHEN: The scheduler checks
	run := ps.RunNow(ctx)

	// THEN: March is calculated
	require.NotNil(t, run)
	assert.Equal(t, motivation.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Processed)

	rec, err := s.repo.FindCalculation(ctx, "alice", "sm-two", ps.DuePeriod())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assertMoney(t, 5_000_000, rec.Result.NetTotal.Value)

	// WHEN: It checks again the same day
	again := ps.RunNow(ctx)

	// THEN: The completed period is not run twice
	assert.Nil(t, again)
	runs, err := s.repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestPayrollScheduler_StartStop(t *testing.T) {
	ps, s := newTestScheduler(t)
	ps.CheckInterval = time.Hour

	ps.Start()
	ps.Start() // second start is a no-op

	require.Eventually(t, func() bool {
		runs, err := s.repo.ListRuns(context.Background(), 0)
		return err == nil && len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ps.Stop()
	ps.Stop()
}

func TestPayrollScheduler_DisabledDoesNotStart(t *testing.T) {
	ps, s := newTestScheduler(t)
	ps.Enabled = false

	ps.Start()
	ps.Stop()

	runs, err := s.repo.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPayrollScheduler_NextRunTime(t *testing.T) {
	ps, _ := newTestScheduler(t)
	ps.CheckInterval = 6 * time.Hour

	assert.Equal(t, testNow.Add(6*time.Hour), ps.GetNextRunTime())
}
