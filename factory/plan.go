/*
Package factory provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON plan definitions into installment.Plan values. Finance staff
  and the admin UI describe a schedule in JSON; the factory validates it and
  produces the Plan the engine builds a schedule from.

JSON SCHEMA:
  {
    "reference": "LN-2025-0042",
    "kind": "LOAN",
    "total_amount": "12000.00",
    "frequency": "MONTHLY",
    "start_date": "2025-01-31",
    "count": 12
  }

  CUSTOM plans list their installments instead of a start date and count:

  {
    "total_amount": "500.00",
    "frequency": "CUSTOM",
    "installments": [
      {"due_date": "2025-03-01", "amount": "200.00"},
      {"due_date": "2025-05-20", "amount": "300.00"}
    ]
  }

KEY FEATURES:
  - Structural checks through validator struct tags
  - Amounts as decimal strings (never floats)
  - Frequency and kind accepted in any letter case
  - Engine-level checks (positive total, count) still run in Plan.Validate

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParsePlan(jsonString)
  sched, err := svc.Create(ctx, plan)

SEE ALSO:
  - installment/builder.go: Plan and NewSchedule
  - factory/presets.go: Ready-made plans for demos and tests
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/installment-engine/installment"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a plan.
type PlanJSON struct {
	Reference    string            `json:"reference,omitempty" validate:"max=64"`
	Kind         string            `json:"kind,omitempty" validate:"omitempty,oneof=RECEIVABLE LOAN CASH_ADVANCE BUDGET"`
	TotalAmount  string            `json:"total_amount" validate:"required,numeric"`
	Frequency    string            `json:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY ANNUAL CUSTOM"`
	StartDate    string            `json:"start_date,omitempty" validate:"required_unless=Frequency CUSTOM,omitempty,datetime=2006-01-02"`
	Count        int               `json:"count,omitempty" validate:"required_unless=Frequency CUSTOM,omitempty,min=1,max=1200"`
	Installments []InstallmentJSON `json:"installments,omitempty" validate:"omitempty,dive"`
}

// InstallmentJSON is one installment of a CUSTOM plan.
type InstallmentJSON struct {
	DueDate string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Amount  string `json:"amount" validate:"required,numeric"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to installment.Plan.
type PlanFactory struct {
	validate *validator.Validate
}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// ParsePlan parses a JSON string into a Plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (installment.Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return installment.Plan{}, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON validates pj and converts it to a Plan.
func (f *PlanFactory) FromJSON(pj PlanJSON) (installment.Plan, error) {
	pj.Kind = strings.ToUpper(strings.TrimSpace(pj.Kind))
	pj.Frequency = strings.ToUpper(strings.TrimSpace(pj.Frequency))

	if err := f.validate.Struct(pj); err != nil {
		return installment.Plan{}, fieldError(err)
	}

	total, err := decimal.NewFromString(pj.TotalAmount)
	if err != nil {
		return installment.Plan{}, &installment.InvalidArgumentError{Field: "total_amount", Reason: err.Error()}
	}

	plan := installment.Plan{
		Reference:   pj.Reference,
		Kind:        installment.ScheduleKind(pj.Kind),
		TotalAmount: total,
		Frequency:   installment.Frequency(pj.Frequency),
		Count:       pj.Count,
	}
	if pj.StartDate != "" {
		if plan.StartDate, err = installment.ParseDate(pj.StartDate); err != nil {
			return installment.Plan{}, err
		}
	}

	if plan.Frequency == installment.FrequencyCustom {
		for _, ij := range pj.Installments {
			due, err := installment.ParseDate(ij.DueDate)
			if err != nil {
				return installment.Plan{}, err
			}
			amount, err := decimal.NewFromString(ij.Amount)
			if err != nil {
				return installment.Plan{}, &installment.InvalidArgumentError{Field: "installments", Reason: err.Error()}
			}
			plan.Installments = append(plan.Installments, installment.PlannedInstallment{DueDate: due, Amount: amount})
		}
	}

	if err := plan.Validate(); err != nil {
		return installment.Plan{}, err
	}
	return plan, nil
}

// ToJSON converts a stored schedule back to the plan that describes it.
// CUSTOM schedules list their current installments.
func (f *PlanFactory) ToJSON(s installment.Schedule) PlanJSON {
	pj := PlanJSON{
		Reference:   s.Reference,
		Kind:        string(s.Kind),
		TotalAmount: s.TotalAmount.StringFixed(2),
		Frequency:   string(s.Frequency),
	}
	if s.Frequency == installment.FrequencyCustom {
		for _, it := range s.Items {
			pj.Installments = append(pj.Installments, InstallmentJSON{
				DueDate: it.CurrentDueDate.String(),
				Amount:  it.CurrentDueAmount.StringFixed(2),
			})
		}
		return pj
	}
	pj.StartDate = s.StartDate.String()
	pj.Count = len(s.Items)
	return pj
}

// =============================================================================
// HELPERS
// =============================================================================

// fieldError turns the first validator failure into an InvalidArgumentError
// named after the JSON field.
func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &installment.InvalidArgumentError{Field: "plan", Reason: err.Error()}
	}
	fe := verrs[0]
	return &installment.InvalidArgumentError{
		Field:  jsonName(fe.StructField()),
		Reason: fmt.Sprintf("failed %q validation", fe.Tag()),
	}
}

func jsonName(field string) string {
	switch field {
	case "TotalAmount":
		return "total_amount"
	case "StartDate":
		return "start_date"
	case "DueDate":
		return "due_date"
	default:
		return strings.ToLower(field)
	}
}
