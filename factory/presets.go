package factory

import (
	"encoding/json"
)

// =============================================================================
// PRESET PLANS
// =============================================================================
//
// JSON builders for the plans the demo scenarios and tests use most. They
// produce the same JSON an admin UI would post, so they go through the full
// ParsePlan path.

// LoanPlanJSON returns JSON for a monthly loan repayment plan.
func LoanPlanJSON(reference, total, startDate string, months int) string {
	return mustJSON(PlanJSON{
		Reference:   reference,
		Kind:        "LOAN",
		TotalAmount: total,
		Frequency:   "MONTHLY",
		StartDate:   startDate,
		Count:       months,
	})
}

// ReceivablePlanJSON returns JSON for a customer receivable paid weekly.
func ReceivablePlanJSON(reference, total, startDate string, weeks int) string {
	return mustJSON(PlanJSON{
		Reference:   reference,
		Kind:        "RECEIVABLE",
		TotalAmount: total,
		Frequency:   "WEEKLY",
		StartDate:   startDate,
		Count:       weeks,
	})
}

// CashAdvancePlanJSON returns JSON for an employee cash advance recovered
// from payroll every month.
func CashAdvancePlanJSON(reference, total, startDate string, months int) string {
	return mustJSON(PlanJSON{
		Reference:   reference,
		Kind:        "CASH_ADVANCE",
		TotalAmount: total,
		Frequency:   "MONTHLY",
		StartDate:   startDate,
		Count:       months,
	})
}

// BudgetPlanJSON returns JSON for a hand-built budget release plan.
func BudgetPlanJSON(reference, total string, installments ...InstallmentJSON) string {
	return mustJSON(PlanJSON{
		Reference:    reference,
		Kind:         "BUDGET",
		TotalAmount:  total,
		Frequency:    "CUSTOM",
		Installments: installments,
	})
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}
