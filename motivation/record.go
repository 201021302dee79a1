package motivation

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATION RECORD - A persisted result
// =============================================================================

// CalculationRecord is a Result stored for one employee, scheme and period.
// The engine never writes it; the caller persists it through a
// CalculationStore.
type CalculationRecord struct {
	ID         CalculationID
	BusinessID BusinessID
	UserID     UserID
	SchemeID   SchemeID
	Period     Period

	Status CalculationStatus
	Result Result

	// Inputs is the context the result was computed from, kept for audit.
	Inputs map[string]decimal.Decimal

	ApprovedBy string
	ApprovedAt *time.Time
	PaidAt     *time.Time
	Notes      string
	Error      string

	// Version is checked on every save; a stale version is rejected with
	// ErrConcurrentModification.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PENALTY - A recorded deduction
// =============================================================================

type Penalty struct {
	ID         PenaltyID
	BusinessID BusinessID
	UserID     UserID
	Type       string
	Reason     string
	Amount     decimal.Decimal
	Date       time.Time
	Status     PenaltyStatus
	CreatedAt  time.Time
}

// SumApplied totals the applied penalties dated within period.
func SumApplied(penalties []Penalty, period Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range penalties {
		if p.Status == PenaltyApplied && period.Contains(p.Date) {
			total = total.Add(p.Amount.Abs())
		}
	}
	return total
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary aggregates the stored calculations of a period.
type Summary struct {
	Period       Period
	NetTotal     decimal.Decimal
	BonusTotal   decimal.Decimal
	PenaltyTotal decimal.Decimal
	ByStatus     map[CalculationStatus]int
	Count        int
}

// Summarize totals records, ignoring cancelled ones.
func Summarize(period Period, records []CalculationRecord) Summary {
	s := Summary{
		Period:       period,
		NetTotal:     decimal.Zero,
		BonusTotal:   decimal.Zero,
		PenaltyTotal: decimal.Zero,
		ByStatus:     make(map[CalculationStatus]int),
	}
	for _, r := range records {
		s.ByStatus[r.Status]++
		s.Count++
		if r.Status == StatusCancelled || r.Status == StatusFailed {
			continue
		}
		s.NetTotal = s.NetTotal.Add(r.Result.NetTotal.Value)
		s.BonusTotal = s.BonusTotal.Add(r.Result.BonusTotal.Value)
		s.PenaltyTotal = s.PenaltyTotal.Add(r.Result.PenaltyTotal.Value)
	}
	return s
}

// PenaltySummary totals one employee's penalties in a period.
type PenaltySummary struct {
	Period   Period
	Count    int
	Total    decimal.Decimal
	ByStatus map[PenaltyStatus]decimal.Decimal
	ByType   map[string]PenaltyTypeTotal
}

type PenaltyTypeTotal struct {
	Count int
	Total decimal.Decimal
}

// untypedPenalty groups penalties recorded without a type.
const untypedPenalty = "other"

// SummarizePenalties totals the penalties dated within period by status
// and by type. Total covers every status; only applied amounts are
// deducted from pay.
func SummarizePenalties(period Period, penalties []Penalty) PenaltySummary {
	s := PenaltySummary{
		Period: period,
		Total:  decimal.Zero,
		ByStatus: map[PenaltyStatus]decimal.Decimal{
			PenaltyPending:  decimal.Zero,
			PenaltyApplied:  decimal.Zero,
			PenaltyDisputed: decimal.Zero,
			PenaltyWaived:   decimal.Zero,
		},
		ByType: make(map[string]PenaltyTypeTotal),
	}
	for _, p := range penalties {
		if !period.Contains(p.Date) {
			continue
		}
		amount := p.Amount.Abs()
		s.Count++
		s.Total = s.Total.Add(amount)

		s.ByStatus[p.Status] = s.ByStatus[p.Status].Add(amount)

		typ := p.Type
		if typ == "" {
			typ = untypedPenalty
		}
		t := s.ByType[typ]
		t.Count++
		t.Total = t.Total.Add(amount)
		s.ByType[typ] = t
	}
	return s
}
