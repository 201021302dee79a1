/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal.Decimal. They are written as JSON strings ("1500000.5")
  and accepted as either strings or numbers.

PERIODS:
  A period is given as a month ("2025-03"), or as period_start/period_end
  dates (YYYY-MM-DD) where a request needs a non-monthly window.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/motivation-engine/factory"
	"github.com/warp/motivation-engine/motivation"
)

const dateLayout = "2006-01-02"

// =============================================================================
// SCHEMES AND ASSIGNMENTS
// =============================================================================

// SchemeDTO represents a scheme in API responses.
type SchemeDTO struct {
	ID         string             `json:"id"`
	BusinessID string             `json:"business_id,omitempty"`
	Name       string             `json:"name"`
	Kind       string             `json:"kind,omitempty"`
	Version    int                `json:"version"`
	Retired    bool               `json:"retired"`
	Config     factory.SchemeJSON `json:"config"`
	CreatedAt  string             `json:"created_at,omitempty"`
}

type AssignmentRequest struct {
	ID                  string           `json:"id"`
	BusinessID          string           `json:"business_id"`
	UserID              string           `json:"user_id"`
	SchemeID            string           `json:"scheme_id"`
	FixedSalaryOverride *decimal.Decimal `json:"fixed_salary_override,omitempty"`
	ValidFrom           string           `json:"valid_from"`
	ValidTo             string           `json:"valid_to,omitempty"`
}

type AssignmentDTO struct {
	ID                  string           `json:"id"`
	UserID              string           `json:"user_id"`
	SchemeID            string           `json:"scheme_id"`
	FixedSalaryOverride *decimal.Decimal `json:"fixed_salary_override,omitempty"`
	ValidFrom           string           `json:"valid_from"`
	ValidTo             string           `json:"valid_to,omitempty"`
	Active              bool             `json:"active"`
}

type EmployeeDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	Position     string `json:"position,omitempty"`
	HiredAt      string `json:"hired_at,omitempty"`
}

// =============================================================================
// EVALUATION AND CALCULATIONS
// =============================================================================

// EvaluateRequest evaluates a scheme for one employee and period. Context
// values win over stored inputs; Completed lists soft-salary requirements
// done in the period.
type EvaluateRequest struct {
	SchemeID  string                     `json:"scheme_id"`
	UserID    string                     `json:"user_id"`
	Period    string                     `json:"period"`
	Context   map[string]decimal.Decimal `json:"context,omitempty"`
	Completed []string                   `json:"completed,omitempty"`
	Save      bool                       `json:"save,omitempty"`
}

type LineDTO struct {
	ComponentID     string           `json:"component_id"`
	Name            string           `json:"name,omitempty"`
	ComponentType   string           `json:"component_type"`
	CalculationType string           `json:"calculation_type"`
	Amount          decimal.Decimal  `json:"amount"`
	Tier            string           `json:"tier,omitempty"`
	Coefficient     *decimal.Decimal `json:"coefficient,omitempty"`
	Percent         *decimal.Decimal `json:"percent,omitempty"`
	KpiScore        *decimal.Decimal `json:"kpi_score,omitempty"`
	Capped          bool             `json:"capped,omitempty"`
	Skipped         bool             `json:"skipped,omitempty"`
}

type WarningDTO struct {
	ComponentID string `json:"component_id,omitempty"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// ResultDTO is the breakdown of one evaluation.
type ResultDTO struct {
	SchemeID          string          `json:"scheme_id"`
	Currency          string          `json:"currency"`
	Lines             []LineDTO       `json:"lines"`
	FixedTotal        decimal.Decimal `json:"fixed_total"`
	SoftSalaryTotal   decimal.Decimal `json:"soft_salary_total"`
	SoftSalaryMax     decimal.Decimal `json:"soft_salary_max"`
	SoftSalaryPercent decimal.Decimal `json:"soft_salary_percent"`
	BonusTotal        decimal.Decimal `json:"bonus_total"`
	BonusMax          decimal.Decimal `json:"bonus_max"`
	PenaltyTotal      decimal.Decimal `json:"penalty_total"`
	NetTotal          decimal.Decimal `json:"net_total"`
	KpiScore          decimal.Decimal `json:"kpi_score"`
	Warnings          []WarningDTO    `json:"warnings"`
}

type CalculationDTO struct {
	ID          string                     `json:"id,omitempty"`
	UserID      string                     `json:"user_id"`
	SchemeID    string                     `json:"scheme_id"`
	PeriodStart string                     `json:"period_start"`
	PeriodEnd   string                     `json:"period_end"`
	Status      string                     `json:"status"`
	Result      ResultDTO                  `json:"result"`
	Inputs      map[string]decimal.Decimal `json:"inputs,omitempty"`
	ApprovedBy  string                     `json:"approved_by,omitempty"`
	ApprovedAt  string                     `json:"approved_at,omitempty"`
	PaidAt      string                     `json:"paid_at,omitempty"`
	Notes       string                     `json:"notes,omitempty"`
	Error       string                     `json:"error,omitempty"`
	Version     int                        `json:"version"`
}

// TransitionRequest carries the optional actor and note of a status change.
type TransitionRequest struct {
	By     string `json:"by,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type SummaryDTO struct {
	PeriodStart  string          `json:"period_start"`
	PeriodEnd    string          `json:"period_end"`
	Count        int             `json:"count"`
	NetTotal     decimal.Decimal `json:"net_total"`
	BonusTotal   decimal.Decimal `json:"bonus_total"`
	PenaltyTotal decimal.Decimal `json:"penalty_total"`
	ByStatus     map[string]int  `json:"by_status"`
}

// =============================================================================
// TARGETS, TASKS, PENALTIES
// =============================================================================

type TargetRequest struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"business_id"`
	UserID     string          `json:"user_id"`
	Metric     string          `json:"metric"`
	Period     string          `json:"period"`
	Plan       decimal.Decimal `json:"plan"`
	Base       decimal.Decimal `json:"base"`
	Fact       decimal.Decimal `json:"fact"`
}

type TargetCompletionDTO struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Metric     string          `json:"metric"`
	Completion decimal.Decimal `json:"completion"`
	KpiScore   decimal.Decimal `json:"kpi_score"`
}

type KeyTaskDTO struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Weight      decimal.Decimal `json:"weight"`
	Status      string          `json:"status,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

type KeyTaskMapRequest struct {
	ID                   string          `json:"id"`
	BusinessID           string          `json:"business_id"`
	UserID               string          `json:"user_id"`
	Period               string          `json:"period"`
	TotalBonusFund       decimal.Decimal `json:"total_bonus_fund"`
	MinCompletionPercent decimal.Decimal `json:"min_completion_percent"`
	FullBonusPercent     decimal.Decimal `json:"full_bonus_percent"`
	Tasks                []KeyTaskDTO    `json:"tasks"`
}

type KeyTaskMapDTO struct {
	ID      string          `json:"id"`
	UserID  string          `json:"user_id"`
	Period  string          `json:"period"`
	Tasks   []KeyTaskDTO    `json:"tasks"`
	Bonus   KeyTaskBonusDTO `json:"bonus"`
	Version int             `json:"version"`
}

type KeyTaskBonusDTO struct {
	Earned            decimal.Decimal `json:"earned"`
	Max               decimal.Decimal `json:"max"`
	CompletionPercent decimal.Decimal `json:"completion_percent"`
	Status            string          `json:"status"`
}

type RequirementRequest struct {
	UserID      string `json:"user_id"`
	ComponentID string `json:"component_id"`
	Requirement string `json:"requirement"`
	Period      string `json:"period"`
}

type PenaltyRequest struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"business_id"`
	UserID     string          `json:"user_id"`
	Type       string          `json:"type"`
	Reason     string          `json:"reason"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Status     string          `json:"status,omitempty"`
}

type PenaltyDTO struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Type   string          `json:"type,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Status string          `json:"status"`
}

type PenaltySummaryDTO struct {
	UserID      string                     `json:"user_id"`
	PeriodStart string                     `json:"period_start"`
	PeriodEnd   string                     `json:"period_end"`
	Count       int                        `json:"count"`
	Total       decimal.Decimal            `json:"total"`
	ByStatus    map[string]decimal.Decimal `json:"by_status"`
	ByType      map[string]PenaltyTypeDTO  `json:"by_type"`
}

type PenaltyTypeDTO struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type PenaltyStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// MARKETING AND SALES
// =============================================================================

// SplitRequest computes a sales-linked split bonus. Weights default to
// 70/30; completions left out are read from the stored target and key
// task map.
type SplitRequest struct {
	UserID          string           `json:"user_id"`
	Period          string           `json:"period"`
	Fund            decimal.Decimal  `json:"fund"`
	SalesWeight     *decimal.Decimal `json:"sales_weight,omitempty"`
	TasksWeight     *decimal.Decimal `json:"tasks_weight,omitempty"`
	SalesMetric     string           `json:"sales_metric,omitempty"`
	SalesCompletion *decimal.Decimal `json:"sales_completion,omitempty"`
	TasksCompletion *decimal.Decimal `json:"tasks_completion,omitempty"`
}

type SplitDTO struct {
	SalesCompletion decimal.Decimal `json:"sales_completion"`
	TasksCompletion decimal.Decimal `json:"tasks_completion"`
	FromSales       decimal.Decimal `json:"from_sales"`
	FromTasks       decimal.Decimal `json:"from_tasks"`
	Total           decimal.Decimal `json:"total"`
}

type MarketingBonusRequest struct {
	UserID         string                     `json:"user_id"`
	Period         string                     `json:"period"`
	LeadsCount     int64                      `json:"leads_count"`
	QualifiedLeads int64                      `json:"qualified_leads"`
	ConvertedLeads int64                      `json:"converted_leads"`
	CplActual      decimal.Decimal            `json:"cpl_actual"`
	RoasActual     decimal.Decimal            `json:"roas_actual"`
	TotalSpend     decimal.Decimal            `json:"total_spend"`
	TotalRevenue   decimal.Decimal            `json:"total_revenue"`
	Targets        map[string]decimal.Decimal `json:"targets,omitempty"`
}

type MarketingBonusDTO struct {
	UserID           string          `json:"user_id"`
	LeadBonus        decimal.Decimal `json:"lead_bonus"`
	CplBonus         decimal.Decimal `json:"cpl_bonus"`
	RoasBonus        decimal.Decimal `json:"roas_bonus"`
	AcceleratorBonus decimal.Decimal `json:"accelerator_bonus"`
	BaseAmount       decimal.Decimal `json:"base_amount"`
	Total            decimal.Decimal `json:"total"`
	PenaltyDeduction decimal.Decimal `json:"penalty_deduction"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
}

type SalesTargetDTO struct {
	ID           string          `json:"id"`
	BusinessID   string          `json:"business_id"`
	UserID       string          `json:"user_id,omitempty"`
	DepartmentID string          `json:"department_id"`
	Type         string          `json:"type"`
	Period       string          `json:"period"`
	PlanRevenue  decimal.Decimal `json:"plan_revenue"`
	BaseRevenue  decimal.Decimal `json:"base_revenue"`
	FactRevenue  decimal.Decimal `json:"fact_revenue"`
}

type TeamRequest struct {
	Department  SalesTargetDTO             `json:"department"`
	Targets     []SalesTargetDTO           `json:"targets"`
	Receivables map[string]decimal.Decimal `json:"receivables,omitempty"`
	Save        bool                       `json:"save,omitempty"`
}

type TeamMemberDTO struct {
	UserID      string          `json:"user_id"`
	Completion  decimal.Decimal `json:"completion"`
	Calculation *CalculationDTO `json:"calculation,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type TeamDTO struct {
	DepartmentID string          `json:"department_id"`
	Members      []TeamMemberDTO `json:"members"`
	NetTotal     decimal.Decimal `json:"net_total"`
	BonusTotal   decimal.Decimal `json:"bonus_total"`
}

// =============================================================================
// PAYROLL AND SCENARIOS
// =============================================================================

type PayrollRunRequest struct {
	Period string `json:"period"`
}

type RunItemDTO struct {
	UserID        string          `json:"user_id"`
	SchemeID      string          `json:"scheme_id"`
	CalculationID string          `json:"calculation_id,omitempty"`
	Outcome       string          `json:"outcome"`
	Reason        string          `json:"reason,omitempty"`
	NetTotal      decimal.Decimal `json:"net_total"`
}

type PayrollRunDTO struct {
	ID          string       `json:"id"`
	PeriodStart string       `json:"period_start"`
	PeriodEnd   string       `json:"period_end"`
	Status      string       `json:"status"`
	Processed   int          `json:"processed"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Items       []RunItemDTO `json:"items"`
	StartedAt   string       `json:"started_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toResultDTO(r motivation.Result) ResultDTO {
	out := ResultDTO{
		SchemeID:          string(r.SchemeID),
		Currency:          string(r.Currency),
		Lines:             make([]LineDTO, 0, len(r.Lines)),
		FixedTotal:        r.FixedTotal.Value,
		SoftSalaryTotal:   r.SoftSalaryTotal.Value,
		SoftSalaryMax:     r.SoftSalaryMax.Value,
		SoftSalaryPercent: r.SoftSalaryPercent,
		BonusTotal:        r.BonusTotal.Value,
		BonusMax:          r.BonusMax.Value,
		PenaltyTotal:      r.PenaltyTotal.Value,
		NetTotal:          r.NetTotal.Value,
		KpiScore:          r.KpiScore,
		Warnings:          make([]WarningDTO, 0, len(r.Warnings)),
	}
	for _, l := range r.Lines {
		line := LineDTO{
			ComponentID:     string(l.ComponentID),
			Name:            l.Name,
			ComponentType:   string(l.ComponentType),
			CalculationType: string(l.CalculationType),
			Amount:          l.Amount.Value,
			Percent:         l.Percent,
			KpiScore:        l.KpiScore,
			Capped:          l.Capped,
			Skipped:         l.Skipped,
		}
		if l.Tier != nil {
			line.Tier = l.Tier.Name
			c := l.Tier.Coefficient
			line.Coefficient = &c
		}
		out.Lines = append(out.Lines, line)
	}
	for _, w := range r.Warnings {
		out.Warnings = append(out.Warnings, WarningDTO{
			ComponentID: string(w.ComponentID),
			Code:        string(w.Code),
			Message:     w.Message,
		})
	}
	return out
}

func toCalculationDTO(r motivation.CalculationRecord) CalculationDTO {
	return CalculationDTO{
		ID:          string(r.ID),
		UserID:      string(r.UserID),
		SchemeID:    string(r.SchemeID),
		PeriodStart: r.Period.Start.Format(dateLayout),
		PeriodEnd:   r.Period.End.Format(dateLayout),
		Status:      string(r.Status),
		Result:      toResultDTO(r.Result),
		Inputs:      r.Inputs,
		ApprovedBy:  r.ApprovedBy,
		ApprovedAt:  formatTimePtr(r.ApprovedAt),
		PaidAt:      formatTimePtr(r.PaidAt),
		Notes:       r.Notes,
		Error:       r.Error,
		Version:     r.Version,
	}
}

func toAssignmentDTO(a motivation.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:                  string(a.ID),
		UserID:              string(a.UserID),
		SchemeID:            string(a.SchemeID),
		FixedSalaryOverride: a.FixedSalaryOverride,
		ValidFrom:           a.ValidFrom.Format(dateLayout),
		Active:              a.Active,
	}
	if a.ValidTo != nil {
		dto.ValidTo = a.ValidTo.Format(dateLayout)
	}
	return dto
}

func toKeyTaskMapDTO(m motivation.KeyTaskMap) KeyTaskMapDTO {
	dto := KeyTaskMapDTO{
		ID:      string(m.ID),
		UserID:  string(m.UserID),
		Period:  m.Period.Key(),
		Tasks:   make([]KeyTaskDTO, 0, len(m.Tasks)),
		Bonus:   toKeyTaskBonusDTO(motivation.CalculateKeyTaskBonus(m)),
		Version: m.Version,
	}
	for _, t := range m.Tasks {
		dto.Tasks = append(dto.Tasks, KeyTaskDTO{
			ID:          t.ID,
			Title:       t.Title,
			Weight:      t.Weight,
			Status:      string(t.Status),
			CompletedAt: formatTimePtr(t.CompletedAt),
		})
	}
	return dto
}

func toKeyTaskBonusDTO(b motivation.KeyTaskBonus) KeyTaskBonusDTO {
	return KeyTaskBonusDTO{
		Earned:            b.Earned,
		Max:               b.Max,
		CompletionPercent: b.CompletionPercent,
		Status:            string(b.Status),
	}
}

func toPenaltyDTO(p motivation.Penalty) PenaltyDTO {
	return PenaltyDTO{
		ID:     string(p.ID),
		UserID: string(p.UserID),
		Type:   p.Type,
		Reason: p.Reason,
		Amount: p.Amount,
		Date:   p.Date.Format(dateLayout),
		Status: string(p.Status),
	}
}

func toPenaltySummaryDTO(user string, s motivation.PenaltySummary) PenaltySummaryDTO {
	dto := PenaltySummaryDTO{
		UserID:      user,
		PeriodStart: s.Period.Start.Format(dateLayout),
		PeriodEnd:   s.Period.End.Format(dateLayout),
		Count:       s.Count,
		Total:       s.Total,
		ByStatus:    make(map[string]decimal.Decimal, len(s.ByStatus)),
		ByType:      make(map[string]PenaltyTypeDTO, len(s.ByType)),
	}
	for st, total := range s.ByStatus {
		dto.ByStatus[string(st)] = total
	}
	for typ, t := range s.ByType {
		dto.ByType[typ] = PenaltyTypeDTO{Count: t.Count, Total: t.Total}
	}
	return dto
}

func toPayrollRunDTO(run motivation.PayrollRun) PayrollRunDTO {
	dto := PayrollRunDTO{
		ID:          string(run.ID),
		PeriodStart: run.Period.Start.Format(dateLayout),
		PeriodEnd:   run.Period.End.Format(dateLayout),
		Status:      string(run.Status),
		Processed:   run.Processed,
		Skipped:     run.Skipped,
		Failed:      run.Failed,
		Items:       make([]RunItemDTO, 0, len(run.Items)),
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		CompletedAt: formatTimePtr(run.CompletedAt),
		Error:       run.Error,
	}
	for _, it := range run.Items {
		dto.Items = append(dto.Items, RunItemDTO{
			UserID:        string(it.UserID),
			SchemeID:      string(it.SchemeID),
			CalculationID: string(it.CalculationID),
			Outcome:       string(it.Outcome),
			Reason:        it.Reason,
			NetTotal:      it.NetTotal,
		})
	}
	return dto
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
