/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's value types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts travel as decimal strings ("333.34") in both directions and are
  never parsed into floats.

VALIDATION:
  Request types carry validator struct tags; handlers run them through
  decodeRequest before touching the service. Plan creation reuses
  factory.PlanJSON and its tags.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/installment-engine/installment"
	"github.com/warp/installment-engine/store/sqlite"
)

// =============================================================================
// SCHEDULES
// =============================================================================

// ScheduleDTO represents a schedule in API responses.
type ScheduleDTO struct {
	ID          string           `json:"id"`
	Reference   string           `json:"reference,omitempty"`
	Kind        string           `json:"kind"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Frequency   string           `json:"frequency"`
	StartDate   installment.Date `json:"start_date"`
	Items       []ItemDTO        `json:"items"`
	Summary     *SummaryDTO      `json:"summary,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ItemDTO represents one installment.
type ItemDTO struct {
	ID                string           `json:"id"`
	InstallmentNumber int              `json:"installment_number"`
	OriginalDueDate   installment.Date `json:"original_due_date"`
	CurrentDueDate    installment.Date `json:"current_due_date"`
	OriginalDueAmount decimal.Decimal  `json:"original_due_amount"`
	CurrentDueAmount  decimal.Decimal  `json:"current_due_amount"`
	PaidAmount        decimal.Decimal  `json:"paid_amount"`
	CarriedOverAmount decimal.Decimal  `json:"carried_over_amount"`
	CarriedForwardTo  int              `json:"carried_forward_to,omitempty"`
	Balance           decimal.Decimal  `json:"balance"`
	Status            string           `json:"status"`
	Locked            bool             `json:"locked"`
	Editable          bool             `json:"editable"`
}

// SummaryDTO is the schedule header shown next to the item table.
type SummaryDTO struct {
	ScheduledAmount   decimal.Decimal `json:"scheduled_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
	CarriedOver       int             `json:"carried_over"`
	Counts            map[string]int  `json:"counts"`
	NextDue           *ItemDTO        `json:"next_due,omitempty"`
	Balanced          bool            `json:"balanced"`
}

// MutationResponse wraps every schedule edit. Ignored is true when the
// engine refused the edit and the schedule came back unchanged.
type MutationResponse struct {
	Schedule ScheduleDTO `json:"schedule"`
	Ignored  bool        `json:"ignored"`
	Reason   string      `json:"reason,omitempty"`
}

// =============================================================================
// EDIT REQUESTS
// =============================================================================

// EditAmountRequest changes one installment amount.
type EditAmountRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=global forward"`
}

// EditDateRequest moves one installment.
type EditDateRequest struct {
	DueDate string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// AddItemRequest appends an installment to a CUSTOM schedule.
type AddItemRequest struct {
	DueDate string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Amount  string `json:"amount" validate:"required,numeric"`
}

// LockRequest pins or releases an installment amount.
type LockRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentRequest applies a cascade payment. InstallmentNumber defaults to 1.
type PaymentRequest struct {
	Amount            string `json:"amount" validate:"required,numeric"`
	InstallmentNumber int    `json:"installment_number,omitempty" validate:"omitempty,min=1"`
}

// CascadeEntryDTO is one line of a payment breakdown.
type CascadeEntryDTO struct {
	ItemID            string          `json:"item_id"`
	InstallmentNumber int             `json:"installment_number"`
	AmountApplied     decimal.Decimal `json:"amount_applied"`
	PreviousBalance   decimal.Decimal `json:"previous_balance"`
	NewBalance        decimal.Decimal `json:"new_balance"`
	NewStatus         string          `json:"new_status"`
}

// PaymentResponse reports how a payment was spread.
type PaymentResponse struct {
	Schedule        ScheduleDTO       `json:"schedule"`
	Entries         []CascadeEntryDTO `json:"entries"`
	TotalProcessed  decimal.Decimal   `json:"total_processed"`
	RemainingAmount decimal.Decimal   `json:"remaining_amount"`
	Overpayment     bool              `json:"overpayment"`
	Notice          string            `json:"notice,omitempty"`
}

// =============================================================================
// REFRESH / VALIDATION
// =============================================================================

// RefreshRequest runs status refresh and carry-over. AsOf defaults to today.
type RefreshRequest struct {
	AsOf string `json:"as_of,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RefreshResponse reports one schedule's refresh.
type RefreshResponse struct {
	Schedule ScheduleDTO      `json:"schedule"`
	AsOf     installment.Date `json:"as_of"`
	Carried  int              `json:"carried"`
}

// IssueDTO is one validator finding.
type IssueDTO struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	InstallmentNumber int    `json:"installment_number,omitempty"`
}

// ValidationResponse is the validator report for a schedule.
type ValidationResponse struct {
	Valid  bool       `json:"valid"`
	Issues []IssueDTO `json:"issues"`
}

// RefreshReportDTO summarizes a run across all schedules.
type RefreshReportDTO struct {
	RunID     string           `json:"run_id"`
	AsOf      installment.Date `json:"as_of"`
	Schedules int              `json:"schedules"`
	Carried   int              `json:"carried"`
	Failed    int              `json:"failed"`
	Skipped   bool             `json:"skipped,omitempty"`
}

// RefreshRunDTO represents a recorded refresh run.
type RefreshRunDTO struct {
	ID          string     `json:"id"`
	AsOf        string     `json:"as_of"`
	Status      string     `json:"status"`
	Schedules   int        `json:"schedules"`
	Carried     int        `json:"carried"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FieldErrorDTO names one failed request field.
type FieldErrorDTO struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toScheduleDTO(s installment.Schedule) ScheduleDTO {
	items := make([]ItemDTO, len(s.Items))
	for i, it := range s.Items {
		items[i] = toItemDTO(it)
	}
	return ScheduleDTO{
		ID:          string(s.ID),
		Reference:   s.Reference,
		Kind:        string(s.Kind),
		TotalAmount: s.TotalAmount,
		Frequency:   string(s.Frequency),
		StartDate:   s.StartDate,
		Items:       items,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toItemDTO(it installment.ScheduleItem) ItemDTO {
	return ItemDTO{
		ID:                string(it.ID),
		InstallmentNumber: it.InstallmentNumber,
		OriginalDueDate:   it.OriginalDueDate,
		CurrentDueDate:    it.CurrentDueDate,
		OriginalDueAmount: it.OriginalDueAmount,
		CurrentDueAmount:  it.CurrentDueAmount,
		PaidAmount:        it.PaidAmount,
		CarriedOverAmount: it.CarriedOverAmount,
		CarriedForwardTo:  it.CarriedForwardTo,
		Balance:           it.Balance(),
		Status:            string(it.Status),
		Locked:            it.Locked,
		Editable:          it.IsEditable(),
	}
}

func toSummaryDTO(s installment.Summary) *SummaryDTO {
	counts := make(map[string]int, len(s.Counts))
	for status, n := range s.Counts {
		counts[string(status)] = n
	}
	dto := &SummaryDTO{
		ScheduledAmount:   s.ScheduledAmount,
		PaidAmount:        s.PaidAmount,
		OutstandingAmount: s.OutstandingAmount,
		OverdueAmount:     s.OverdueAmount,
		CarriedOver:       s.CarriedOver,
		Counts:            counts,
		Balanced:          s.Balanced,
	}
	if s.NextDue != nil {
		next := toItemDTO(*s.NextDue)
		dto.NextDue = &next
	}
	return dto
}

func toCascadeEntryDTOs(entries []installment.CascadeEntry) []CascadeEntryDTO {
	out := make([]CascadeEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = CascadeEntryDTO{
			ItemID:            string(e.ItemID),
			InstallmentNumber: e.InstallmentNumber,
			AmountApplied:     e.AmountApplied,
			PreviousBalance:   e.PreviousBalance,
			NewBalance:        e.NewBalance,
			NewStatus:         string(e.NewStatus),
		}
	}
	return out
}

func toIssueDTOs(issues []installment.ValidationIssue) []IssueDTO {
	out := make([]IssueDTO, len(issues))
	for i, is := range issues {
		out[i] = IssueDTO{Code: string(is.Code), Message: is.Message, InstallmentNumber: is.InstallmentNumber}
	}
	return out
}

func toRefreshRunDTO(r sqlite.RefreshRun) RefreshRunDTO {
	return RefreshRunDTO{
		ID:          r.ID,
		AsOf:        r.AsOf,
		Status:      r.Status,
		Schedules:   r.Schedules,
		Carried:     r.Carried,
		Failed:      r.Failed,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}
