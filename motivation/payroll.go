/*
payroll.go - Context building and batch evaluation for a payroll period

PURPOSE:
  Bridges the pure engine and storage. ContextBuilder gathers the inputs of
  one employee from the repositories; PayrollRunner evaluates every active
  assignment of a period and stores the results.

FLOW (per assignment):
  1. Load the scheme, skip it when retired or not valid in the period
  2. Apply the assignment's fixed salary override
  3. Build the context (targets, KPI snapshot, requirements, key tasks,
     applied penalties, caller overrides)
  4. Aggregate
  5. Upsert the CalculationRecord with an optimistic version check

CONCURRENCY:
  Assignments fan out over errgroup with SetLimit(Concurrency). A failing
  item is recorded in the run and never aborts the batch. Only context
  cancellation stops the run; the caller bounds it with a deadline.

LOCKED RECORDS:
  Approved, paid and cancelled records are never recalculated. The batch
  reports them as skipped.
*/
package motivation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// CONTEXT BUILDER
// =============================================================================

// ContextBuilder assembles the evaluation context of one employee.
type ContextBuilder struct {
	Targets   TargetRepository
	Tasks     TaskRepository
	Penalties PenaltyRepository
}

// Build gathers every input the scheme may read. Overrides are applied last
// and win over stored values.
//
// Every linked target contributes its plan_/fact_/base_ metric values and
// exposes its fact under the bare metric name. The first target (ordered by
// metric) drives plan_completion and kpi_score; a stored KPI snapshot
// replaces that kpi_score.
func (b *ContextBuilder) Build(ctx context.Context, user UserID, scheme *Scheme, period Period, overrides map[string]decimal.Decimal) (*Context, error) {
	c := NewContext()

	if b.Targets != nil {
		targets, err := b.Targets.LinkedTargets(ctx, user, period)
		if err != nil {
			return nil, fmt.Errorf("load targets: %w", err)
		}
		for i := len(targets) - 1; i >= 0; i-- {
			t := targets[i]
			t.ApplyTo(c)
			if t.Metric != "" {
				if _, ok := c.Lookup(t.Metric); !ok {
					c.Set(t.Metric, t.FactValue)
				}
			}
		}

		snap, err := b.Targets.GetKpiSnapshot(ctx, user, period)
		if err != nil {
			return nil, fmt.Errorf("load kpi snapshot: %w", err)
		}
		if snap != nil {
			c.Set(KeyKpiScore, snap.KpiScore)
		}
	}

	if b.Tasks != nil && scheme != nil {
		for _, comp := range scheme.ComponentsOfType(ComponentSoftSalary) {
			done, err := b.Tasks.GetCompletedRequirementIDs(ctx, user, comp.ID, period)
			if err != nil {
				return nil, fmt.Errorf("load requirements of %s: %w", comp.ID, err)
			}
			for id := range done {
				c.Complete(id)
			}
		}

		m, err := b.Tasks.FindKeyTaskMap(ctx, user, period)
		if err != nil {
			return nil, fmt.Errorf("load key task map: %w", err)
		}
		if m != nil {
			m.ApplyTo(c)
		}
	}

	if b.Penalties != nil {
		penalties, err := b.Penalties.PenaltiesForUser(ctx, user, period)
		if err != nil {
			return nil, fmt.Errorf("load penalties: %w", err)
		}
		c.Set(KeyAppliedPenalties, SumApplied(penalties, period))
	}

	for k, v := range overrides {
		c.Set(k, v)
	}
	return c, nil
}

// =============================================================================
// PAYROLL RUN
// =============================================================================

type RunStatus string

const (
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunFailed              RunStatus = "failed"
)

type ItemOutcome string

const (
	ItemCalculated ItemOutcome = "calculated"
	ItemSkipped    ItemOutcome = "skipped"
	ItemFailed     ItemOutcome = "failed"
)

// RunItem is the outcome of one assignment in a batch.
type RunItem struct {
	UserID        UserID
	SchemeID      SchemeID
	CalculationID CalculationID
	Outcome       ItemOutcome
	Reason        string
	NetTotal      decimal.Decimal
}

// PayrollRun records one batch execution.
type PayrollRun struct {
	ID          RunID
	Period      Period
	Status      RunStatus
	Processed   int
	Skipped     int
	Failed      int
	Items       []RunItem
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// =============================================================================
// PAYROLL RUNNER
// =============================================================================

// DefaultConcurrency bounds the batch when Concurrency is unset.
const DefaultConcurrency = 8

// saveAttempts bounds retries after a version conflict.
const saveAttempts = 3

type PayrollRunner struct {
	Repo        Repository
	Aggregator  *Aggregator
	Clock       Clock
	Concurrency int
	Logger      *slog.Logger
}

func NewPayrollRunner(repo Repository, agg *Aggregator, clock Clock, logger *slog.Logger) *PayrollRunner {
	return &PayrollRunner{
		Repo:        repo,
		Aggregator:  agg,
		Clock:       clock,
		Concurrency: DefaultConcurrency,
		Logger:      logger,
	}
}

// Run evaluates every active assignment covering period and persists the
// results. The returned run is also stored through the RunStore.
func (r *PayrollRunner) Run(ctx context.Context, period Period) (*PayrollRun, error) {
	log := r.logger().With("period", period.Key())
	run := &PayrollRun{
		ID:        RunID(uuid.New().String()),
		Period:    period,
		Status:    RunRunning,
		StartedAt: r.now(),
	}

	assignments, err := r.Repo.ActiveAssignments(ctx, period)
	if err != nil {
		return r.finish(ctx, run, fmt.Errorf("load assignments: %w", err))
	}
	log.Info("payroll run started", "run_id", run.ID, "assignments", len(assignments))

	items := make([]RunItem, len(assignments))
	g, gctx := errgroup.WithContext(ctx)
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	for i, a := range assignments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = r.runOne(gctx, a, period)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r.finish(ctx, run, err)
	}

	run.Items = items
	for _, it := range items {
		switch it.Outcome {
		case ItemCalculated:
			run.Processed++
		case ItemSkipped:
			run.Skipped++
		case ItemFailed:
			run.Failed++
			log.Warn("payroll item failed", "user_id", it.UserID, "scheme_id", it.SchemeID, "reason", it.Reason)
		}
	}
	return r.finish(ctx, run, nil)
}

func (r *PayrollRunner) runOne(ctx context.Context, a Assignment, period Period) RunItem {
	item := RunItem{UserID: a.UserID, SchemeID: a.SchemeID}
	rec, err := r.Calculate(ctx, a, period, nil, true)
	switch {
	case err == nil:
		item.Outcome = ItemCalculated
		item.CalculationID = rec.ID
		item.NetTotal = rec.Result.NetTotal.Value
	case errors.Is(err, ErrCalculationLocked), errors.Is(err, ErrSchemeRetired):
		item.Outcome = ItemSkipped
		item.Reason = err.Error()
	default:
		item.Outcome = ItemFailed
		item.Reason = err.Error()
		if id, ok := r.recordFailure(ctx, a, period, err); ok {
			item.CalculationID = id
		}
	}
	return item
}

// recordFailure leaves a failed record behind so the failure is visible next
// to the period's calculations. Locked records are left alone.
func (r *PayrollRunner) recordFailure(ctx context.Context, a Assignment, period Period, cause error) (CalculationID, bool) {
	rec, err := r.Repo.FindCalculation(ctx, a.UserID, a.SchemeID, period)
	if err != nil {
		return "", false
	}
	now := r.now()
	if rec == nil {
		rec = &CalculationRecord{
			ID:         CalculationID(uuid.New().String()),
			BusinessID: a.BusinessID,
			UserID:     a.UserID,
			SchemeID:   a.SchemeID,
			Period:     period,
			Status:     StatusDraft,
			CreatedAt:  now,
		}
	}
	if err := rec.MarkFailed(cause.Error()); err != nil {
		return "", false
	}
	rec.UpdatedAt = now
	if err := r.Repo.SaveCalculation(ctx, rec); err != nil {
		r.logger().Error("failed to record calculation failure", "user_id", a.UserID, "error", err)
		return "", false
	}
	return rec.ID, true
}

// Calculate evaluates one assignment for period. With save set the result
// is upserted as a calculated record; otherwise the returned record is a
// preview that was not stored.
func (r *PayrollRunner) Calculate(ctx context.Context, a Assignment, period Period, overrides map[string]decimal.Decimal, save bool) (*CalculationRecord, error) {
	return r.Evaluate(ctx, a, period, Evaluation{Overrides: overrides}, save)
}

// Evaluation carries the caller's inputs on top of the stored ones.
type Evaluation struct {
	Overrides map[string]decimal.Decimal
	// Completed requirement IDs count toward every soft salary component.
	// They are stored only once the record has been saved.
	Completed []string
}

// Evaluate is Calculate with requirement completions. A rejected save
// leaves the stored completions untouched.
func (r *PayrollRunner) Evaluate(ctx context.Context, a Assignment, period Period, in Evaluation, save bool) (*CalculationRecord, error) {
	stored, err := r.Repo.GetScheme(ctx, a.SchemeID)
	if err != nil {
		return nil, fmt.Errorf("load scheme %s: %w", a.SchemeID, err)
	}
	if !stored.CoversPeriod(period) {
		return nil, fmt.Errorf("scheme %s in %s: %w", stored.ID, period.Key(), ErrSchemeRetired)
	}
	scheme := a.EffectiveScheme(stored)

	builder := ContextBuilder{Targets: r.Repo, Tasks: r.Repo, Penalties: r.Repo}
	input, err := builder.Build(ctx, a.UserID, scheme, period, in.Overrides)
	if err != nil {
		return nil, err
	}
	input.Complete(in.Completed...)

	agg := r.Aggregator
	if agg == nil {
		agg = NewAggregator(nil)
	}
	result, err := agg.Aggregate(scheme, input)
	if err != nil {
		return nil, err
	}

	if !save {
		now := r.now()
		return &CalculationRecord{
			BusinessID: scheme.BusinessID,
			UserID:     a.UserID,
			SchemeID:   scheme.ID,
			Period:     period,
			Status:     StatusDraft,
			Result:     *result,
			Inputs:     input.Values,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil
	}

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		rec, err := r.store(ctx, a, scheme, period, result, input)
		if err == nil {
			if err := r.markCompleted(ctx, a.UserID, stored, period, in.Completed); err != nil {
				return nil, err
			}
			return rec, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// markCompleted stores each requirement against every soft salary
// component of scheme.
func (r *PayrollRunner) markCompleted(ctx context.Context, user UserID, scheme *Scheme, period Period, completed []string) error {
	for _, comp := range scheme.ComponentsOfType(ComponentSoftSalary) {
		for _, req := range completed {
			if err := r.Repo.MarkRequirementCompleted(ctx, user, comp.ID, req, period); err != nil {
				return fmt.Errorf("record requirement %s: %w", req, err)
			}
		}
	}
	return nil
}

// store upserts the calculated record for (user, scheme, period).
func (r *PayrollRunner) store(ctx context.Context, a Assignment, scheme *Scheme, period Period, result *Result, input *Context) (*CalculationRecord, error) {
	rec, err := r.Repo.FindCalculation(ctx, a.UserID, scheme.ID, period)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if rec == nil {
		rec = &CalculationRecord{
			ID:         CalculationID(uuid.New().String()),
			BusinessID: scheme.BusinessID,
			UserID:     a.UserID,
			SchemeID:   scheme.ID,
			Period:     period,
			Status:     StatusDraft,
			CreatedAt:  now,
		}
	}
	if rec.Status.IsLocked() {
		return nil, fmt.Errorf("calculation %s is %s: %w", rec.ID, rec.Status, ErrCalculationLocked)
	}
	if err := rec.transition(StatusCalculated); err != nil {
		return nil, err
	}
	rec.Result = *result
	rec.Inputs = input.Values
	rec.Error = ""
	rec.UpdatedAt = now

	if err := r.Repo.SaveCalculation(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PayrollRunner) finish(ctx context.Context, run *PayrollRun, runErr error) (*PayrollRun, error) {
	done := r.now()
	run.CompletedAt = &done
	switch {
	case runErr != nil:
		run.Status = RunFailed
		run.Error = runErr.Error()
	case run.Failed > 0:
		run.Status = RunCompletedWithErrors
	default:
		run.Status = RunCompleted
	}

	// The run is recorded even when ctx was cancelled.
	if err := r.Repo.SaveRun(context.WithoutCancel(ctx), *run); err != nil {
		r.logger().Error("failed to save payroll run", "run_id", run.ID, "error", err)
	}
	r.logger().Info("payroll run finished",
		"run_id", run.ID,
		"status", run.Status,
		"processed", run.Processed,
		"skipped", run.Skipped,
		"failed", run.Failed,
	)
	return run, runErr
}

func (r *PayrollRunner) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now()
}

func (r *PayrollRunner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
