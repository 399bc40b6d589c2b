/*
Package installment provides the installment schedule and cascade-payment engine.

PURPOSE:
  Distributes a total payable amount across a sequence of due dates, keeps
  the schedule balanced while installments are edited, rolls unpaid overdue
  balances onto the next pending installment, and applies incoming payments
  across installments in order. Receivables, loans, cash advances and budget
  releases all share the same engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduleItem: One installment (due date, due amount, paid amount, status)
  - PaymentStatus / Frequency / ScheduleKind: Closed enumerations
  - CascadeResult: Per-item breakdown of one payment attempt
  - Schedule: The persisted aggregate owned by the service layer

DESIGN PRINCIPLES:
  1. Pure transforms: every engine function returns a new slice and never
     mutates its input. The caller owns state and persistence.
  2. Precision: money is decimal.Decimal; distribution runs in integer cents.
  3. Explicit time: "today" is always a parameter, never read from the clock.
  4. Soft refusals: edits on locked items return the unmodified schedule
     with a NotEditableError instead of failing the caller's flow.

USAGE:
  schedule, err := installment.NewSchedule(installment.Plan{
      TotalAmount: decimal.RequireFromString("1000"),
      Frequency:   installment.FrequencyMonthly,
      StartDate:   installment.MustParseDate("2025-01-31"),
      Count:       3,
  })
  result, items, err := installment.ApplyCascadePayment(
      decimal.RequireFromString("150"), schedule.Items, 0)

SEE ALSO:
  - generator.go: Due date generation
  - distributor.go: Amount distribution and redistribution
  - status.go / carryover.go: Status lifecycle and overdue carry-over
  - cascade.go: Cascade payment application
  - validator.go: Schedule invariants
  - service.go: Stateful service over a Store
*/
package installment

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// BalanceTolerance is the currency tolerance used when comparing totals.
var BalanceTolerance = decimal.New(1, -2)

// ToCents converts a decimal amount to integer cents, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// FromCents converts integer cents back to a two-place decimal.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// ENUMERATIONS
// =============================================================================

// PaymentStatus is the lifecycle status of a schedule item.
type PaymentStatus string

const (
	StatusPending       PaymentStatus = "PENDING"
	StatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	StatusPaid          PaymentStatus = "PAID"
	StatusOverdue       PaymentStatus = "OVERDUE"
	StatusCancelled     PaymentStatus = "CANCELLED"
	StatusWrittenOff    PaymentStatus = "WRITTEN_OFF"
)

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusCancelled, StatusWrittenOff:
		return true
	}
	return false
}

// IsTerminal reports whether s is a manual override that status
// recalculation must never overwrite.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusWrittenOff
}

// IsPayable reports whether a cascade payment may apply funds to an item in s.
func (s PaymentStatus) IsPayable() bool {
	return s != StatusPaid && !s.IsTerminal()
}

// ParsePaymentStatus parses a status name.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if !st.Valid() {
		return "", invalidArg("status", "unknown payment status %q", s)
	}
	return st, nil
}

// Frequency is the cadence of generated due dates.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyAnnual  Frequency = "ANNUAL"
	FrequencyCustom  Frequency = "CUSTOM"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyAnnual, FrequencyCustom:
		return true
	}
	return false
}

// ParseFrequency parses a frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.Valid() {
		return "", invalidArg("frequency", "unknown frequency %q", s)
	}
	return f, nil
}

// ScheduleKind identifies the business context that owns a schedule.
type ScheduleKind string

const (
	KindReceivable  ScheduleKind = "RECEIVABLE"
	KindLoan        ScheduleKind = "LOAN"
	KindCashAdvance ScheduleKind = "CASH_ADVANCE"
	KindBudget      ScheduleKind = "BUDGET"
)

func (k ScheduleKind) Valid() bool {
	switch k {
	case KindReceivable, KindLoan, KindCashAdvance, KindBudget:
		return true
	}
	return false
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ScheduleID string
type ItemID string

// =============================================================================
// SCHEDULE ITEM - One installment
// =============================================================================

// ScheduleItem is one installment in a payment plan.
//
// CarriedOverAmount has two readings. On a receiving item it is the part of
// CurrentDueAmount that came from an earlier overdue item. On an overdue
// source item it marks that the item's shortfall was relocated, and
// CarriedForwardTo names the receiving installment.
type ScheduleItem struct {
	ID                ItemID
	InstallmentNumber int

	OriginalDueDate Date
	CurrentDueDate  Date

	OriginalDueAmount decimal.Decimal
	CurrentDueAmount  decimal.Decimal
	PaidAmount        decimal.Decimal

	CarriedOverAmount decimal.Decimal
	CarriedForwardTo  int

	Status PaymentStatus
	Locked bool
}

// Balance is the unpaid part of the current due amount.
func (it ScheduleItem) Balance() decimal.Decimal {
	return it.CurrentDueAmount.Sub(it.PaidAmount)
}

// IsRelocated reports whether carry-over moved this item's shortfall forward.
func (it ScheduleItem) IsRelocated() bool {
	return it.CarriedForwardTo != 0
}

// IsPastDue is true when the due date is before today and a balance remains.
func (it ScheduleItem) IsPastDue(today Date) bool {
	return it.CurrentDueDate.Before(today) && it.Balance().IsPositive()
}

// IsEditable is true only while the item is PENDING, has no payment and is
// not explicitly locked.
func (it ScheduleItem) IsEditable() bool {
	return it.Status == StatusPending && !it.PaidAmount.IsPositive() && !it.Locked
}

// CloneItems returns a shallow copy of items; ScheduleItem holds only values.
func CloneItems(items []ScheduleItem) []ScheduleItem {
	if items == nil {
		return nil
	}
	out := make([]ScheduleItem, len(items))
	copy(out, items)
	return out
}

// TotalDue sums CurrentDueAmount across items.
func TotalDue(items []ScheduleItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.CurrentDueAmount)
	}
	return total
}

// =============================================================================
// CASCADE RESULT - Breakdown of one payment attempt
// =============================================================================

// CascadeEntry records the funds one item received from a payment.
type CascadeEntry struct {
	ItemID            ItemID
	InstallmentNumber int
	AmountApplied     decimal.Decimal
	PreviousBalance   decimal.Decimal
	NewBalance        decimal.Decimal
	NewStatus         PaymentStatus
}

// CascadeResult is produced per payment attempt and never persisted.
// RemainingAmount > 0 signals an overpayment beyond every payable balance.
type CascadeResult struct {
	Entries         []CascadeEntry
	RemainingAmount decimal.Decimal
	TotalProcessed  decimal.Decimal
}

// IsOverpayment reports whether part of the payment could not be applied.
func (r CascadeResult) IsOverpayment() bool {
	return r.RemainingAmount.IsPositive()
}

// =============================================================================
// SCHEDULE - Persisted aggregate
// =============================================================================

// Schedule is a payment plan and its installments.
type Schedule struct {
	ID          ScheduleID
	Reference   string
	Kind        ScheduleKind
	TotalAmount decimal.Decimal
	Frequency   Frequency
	StartDate   Date
	Items       []ScheduleItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy whose Items slice is independent of s.
func (s Schedule) Clone() Schedule {
	out := s
	out.Items = CloneItems(s.Items)
	return out
}
