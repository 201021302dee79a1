package motivation

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The boundary a calculation is made for
// =============================================================================

// Period is a closed date range [Start, End] at day granularity.
//
// Examples:
//   - March 2025 payroll: Mar 1 - Mar 31
//   - Q2 2025 bonus: Apr 1 - Jun 30
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod normalizes both bounds to UTC midnight.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: day(start), End: day(end)}
	if p.End.Before(p.Start) {
		return Period{}, ErrInvalidPeriod
	}
	return p, nil
}

// Contains returns true if t falls on a day within the period.
func (p Period) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Overlaps returns true if the two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !p.End.Before(o.Start) && !o.End.Before(p.Start)
}

func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Key is a stable identifier used for idempotent batch runs.
func (p Period) Key() string {
	return p.Start.Format("2006-01-02") + "/" + p.End.Format("2006-01-02")
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// PeriodType defines the cadence a scheme pays its bonus on.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
)

// PeriodFor returns the period of the given type that contains date.
func (pt PeriodType) PeriodFor(date time.Time) Period {
	d := day(date)
	switch pt {
	case PeriodQuarterly:
		firstMonth := time.Month((int(d.Month())-1)/3*3 + 1)
		start := time.Date(d.Year(), firstMonth, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 3, -1)}
	case PeriodYearly:
		start := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(1, 0, -1)}
	default:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, -1)}
	}
}

// Next returns the period of the same type following p.
func (pt PeriodType) Next(p Period) Period { return pt.PeriodFor(p.End.AddDate(0, 0, 1)) }

// Previous returns the period of the same type preceding p.
func (pt PeriodType) Previous(p Period) Period { return pt.PeriodFor(p.Start.AddDate(0, 0, -1)) }

// ParsePeriodType falls back to monthly for anything unrecognized.
func ParsePeriodType(s string) PeriodType {
	switch PeriodType(s) {
	case PeriodQuarterly:
		return PeriodQuarterly
	case PeriodYearly:
		return PeriodYearly
	default:
		return PeriodMonthly
	}
}

// ParseMonth parses "2025-03" into the monthly period it names.
func ParseMonth(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q (use YYYY-MM): %w", s, err)
	}
	return PeriodMonthly.PeriodFor(t), nil
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
