/*
scheduler.go - Automated payroll scheduler

PURPOSE:
  Periodically runs the payroll batch for the last closed period, so
  calculated records exist for approval without anyone pressing a button.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Targets the previous bonus period (the month that just ended)
  - Skips a period that already has a completed run
  - Each run is recorded by the PayrollRunner for audit and UI display
  - Re-running is safe: records are upserted per (user, scheme, period)
    and approved or paid ones are never touched

CONFIGURATION:
  - CheckInterval: How often to check (PAYROLL_INTERVAL, default 24h)
  - Enabled: Whether scheduler is active (interval 0 disables it)

USAGE:
  scheduler := NewPayrollScheduler(handler.Runner, store, clock, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerPayroll endpoint (manual run)
  - motivation/payroll.go: PayrollRunner
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/motivation-engine/motivation"
)

// PayrollScheduler runs the payroll batch for closed periods.
type PayrollScheduler struct {
	Runner        *motivation.PayrollRunner
	Runs          motivation.RunStore
	Clock         motivation.Clock
	Logger        *slog.Logger
	PeriodType    motivation.PeriodType
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a daily scheduler for monthly periods.
func NewPayrollScheduler(runner *motivation.PayrollRunner, runs motivation.RunStore, clock motivation.Clock, logger *slog.Logger) *PayrollScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollScheduler{
		Runner:        runner,
		Runs:          runs,
		Clock:         clock,
		Logger:        logger.With("component", "payroll_scheduler"),
		PeriodType:    motivation.PeriodMonthly,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled || ps.CheckInterval <= 0 {
		ps.Logger.Info("scheduler disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps.cancel = cancel
	ps.stop = make(chan struct{})
	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run(ctx)

	ps.Logger.Info("scheduler started", "interval", ps.CheckInterval.String())
}

// Stop stops the scheduler and cancels a batch in flight.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker == nil {
		return
	}
	ps.ticker.Stop()
	ps.cancel()
	close(ps.stop)
	ps.wg.Wait()
	ps.ticker = nil
	ps.Logger.Info("scheduler stopped")
}

func (ps *PayrollScheduler) run(ctx context.Context) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess(ctx)

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndProcess(ctx)
		case <-ps.stop:
			return
		}
	}
}

// checkAndProcess runs the previous period unless it already completed.
func (ps *PayrollScheduler) checkAndProcess(ctx context.Context) *motivation.PayrollRun {
	period := ps.DuePeriod()

	done, err := ps.alreadyRun(ctx, period)
	if err != nil {
		ps.Logger.Error("failed to list payroll runs", "error", err)
		return nil
	}
	if done {
		ps.Logger.Debug("period already processed", "period", period.Key())
		return nil
	}

	run, err := ps.Runner.Run(ctx, period)
	if err != nil {
		ps.Logger.Error("payroll run failed", "period", period.Key(), "error", err)
		return run
	}
	ps.Logger.Info("payroll run completed",
		"run_id", run.ID,
		"period", period.Key(),
		"processed", run.Processed,
		"skipped", run.Skipped,
		"failed", run.Failed,
	)
	return run
}

// RunNow triggers an immediate check (for testing/admin).
func (ps *PayrollScheduler) RunNow(ctx context.Context) *motivation.PayrollRun {
	return ps.checkAndProcess(ctx)
}

// DuePeriod is the most recent period that has fully ended.
func (ps *PayrollScheduler) DuePeriod() motivation.Period {
	current := ps.PeriodType.PeriodFor(ps.now())
	return ps.PeriodType.Previous(current)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ps *PayrollScheduler) GetNextRunTime() time.Time {
	return ps.now().Add(ps.CheckInterval)
}

func (ps *PayrollScheduler) alreadyRun(ctx context.Context, period motivation.Period) (bool, error) {
	if ps.Runs == nil {
		return false, nil
	}
	runs, err := ps.Runs.ListRuns(ctx, 0)
	if err != nil {
		return false, err
	}
	for _, run := range runs {
		if run.Period.Key() == period.Key() && run.Status == motivation.RunCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (ps *PayrollScheduler) now() time.Time {
	if ps.Clock == nil {
		return time.Now().UTC()
	}
	return ps.Clock.Now()
}
