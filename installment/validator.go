package installment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULE VALIDATOR
// =============================================================================

// IssueCode identifies a violated schedule rule.
type IssueCode string

const (
	IssueEmptySchedule     IssueCode = "EMPTY_SCHEDULE"
	IssueTotalMismatch     IssueCode = "TOTAL_MISMATCH"
	IssueDateOrder         IssueCode = "DATE_ORDER"
	IssueNonPositiveAmount IssueCode = "NON_POSITIVE_AMOUNT"
	IssueSequence          IssueCode = "INSTALLMENT_SEQUENCE"
	IssueOverpaidItem      IssueCode = "OVERPAID_ITEM"
)

// ValidationIssue is one violated rule. InstallmentNumber is 0 for
// schedule-wide issues.
type ValidationIssue struct {
	Code              IssueCode
	Message           string
	InstallmentNumber int
}

func (v ValidationIssue) Error() string { return v.Message }

// Validate checks schedule invariants and returns every violation, not just
// the first. An imbalanced total is reported here and never raised as an
// error; callers decide whether to block a save or show a warning.
//
// Rules:
//   - the schedule is non-empty
//   - |scheduled total - total| <= 0.01, where the scheduled total excludes
//     shortfalls that carry-over relocated (they are counted on the receiver)
//   - CurrentDueDate strictly increases in array order
//   - every CurrentDueAmount is positive
//   - installment numbers run 1..n without gaps
//   - no item is paid beyond its due amount
func Validate(items []ScheduleItem, total decimal.Decimal) (bool, []ValidationIssue) {
	var issues []ValidationIssue
	if len(items) == 0 {
		issues = append(issues, ValidationIssue{
			Code:    IssueEmptySchedule,
			Message: "schedule has no installments",
		})
		return false, issues
	}

	scheduled := ScheduledTotal(items)
	if scheduled.Sub(total).Abs().GreaterThan(BalanceTolerance) {
		issues = append(issues, ValidationIssue{
			Code: IssueTotalMismatch,
			Message: fmt.Sprintf("installments total %s but the payable amount is %s (difference %s)",
				scheduled.StringFixed(2), total.StringFixed(2), scheduled.Sub(total).StringFixed(2)),
		})
	}

	for i, it := range items {
		if i > 0 && !items[i-1].CurrentDueDate.Before(it.CurrentDueDate) {
			issues = append(issues, ValidationIssue{
				Code: IssueDateOrder,
				Message: fmt.Sprintf("installment %d is due %s, not after installment %d (%s)",
					it.InstallmentNumber, it.CurrentDueDate, items[i-1].InstallmentNumber, items[i-1].CurrentDueDate),
				InstallmentNumber: it.InstallmentNumber,
			})
		}
		if !it.CurrentDueAmount.IsPositive() {
			issues = append(issues, ValidationIssue{
				Code:              IssueNonPositiveAmount,
				Message:           fmt.Sprintf("installment %d has amount %s", it.InstallmentNumber, it.CurrentDueAmount.StringFixed(2)),
				InstallmentNumber: it.InstallmentNumber,
			})
		}
		if it.InstallmentNumber != i+1 {
			issues = append(issues, ValidationIssue{
				Code:              IssueSequence,
				Message:           fmt.Sprintf("position %d holds installment %d", i+1, it.InstallmentNumber),
				InstallmentNumber: it.InstallmentNumber,
			})
		}
		if it.Balance().IsNegative() {
			issues = append(issues, ValidationIssue{
				Code: IssueOverpaidItem,
				Message: fmt.Sprintf("installment %d is paid %s against %s due",
					it.InstallmentNumber, it.PaidAmount.StringFixed(2), it.CurrentDueAmount.StringFixed(2)),
				InstallmentNumber: it.InstallmentNumber,
			})
		}
	}
	return len(issues) == 0, issues
}

// ScheduledTotal sums CurrentDueAmount, excluding relocated carry-over shortfalls.
func ScheduledTotal(items []ScheduleItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.CurrentDueAmount)
		if it.IsRelocated() {
			total = total.Sub(it.CarriedOverAmount)
		}
	}
	return total
}

// HasIssue reports whether issues contains code.
func HasIssue(issues []ValidationIssue, code IssueCode) bool {
	for _, is := range issues {
		if is.Code == code {
			return true
		}
	}
	return false
}
