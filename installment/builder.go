package installment

import "github.com/shopspring/decimal"

// =============================================================================
// PLAN - What the caller asks for when a payable is first scheduled
// =============================================================================

// Plan describes a new installment schedule.
type Plan struct {
	Reference   string
	Kind        ScheduleKind
	TotalAmount decimal.Decimal
	Frequency   Frequency
	StartDate   Date
	Count       int

	// Installments seeds a CUSTOM plan; other frequencies ignore it.
	Installments []PlannedInstallment
}

// PlannedInstallment is one caller-chosen due date and amount.
type PlannedInstallment struct {
	DueDate Date
	Amount  decimal.Decimal
}

// Validate checks the plan before any dates or amounts are produced.
// CUSTOM plans need neither a start date nor a count.
func (p Plan) Validate() error {
	if p.Kind != "" && !p.Kind.Valid() {
		return invalidArg("kind", "unknown schedule kind %q", string(p.Kind))
	}
	if !p.TotalAmount.IsPositive() {
		return invalidArg("total_amount", "must be positive, got %s", p.TotalAmount)
	}
	if !p.Frequency.Valid() {
		return invalidArg("frequency", "unknown frequency %q", string(p.Frequency))
	}
	if p.Frequency == FrequencyCustom {
		for i, pi := range p.Installments {
			if pi.DueDate.IsZero() {
				return invalidArg("installments", "installment %d has no due date", i+1)
			}
			if pi.Amount.IsNegative() {
				return invalidArg("installments", "installment %d has negative amount %s", i+1, pi.Amount)
			}
		}
		return nil
	}
	if p.Count <= 0 {
		return invalidArg("count", "must be positive, got %d", p.Count)
	}
	if p.StartDate.IsZero() {
		return invalidArg("start_date", "missing start date")
	}
	return nil
}

// NewSchedule generates the due dates for p and distributes the total evenly.
// CUSTOM plans take their installments verbatim instead. Every item starts
// PENDING with original = current values. Item IDs are left empty; the
// service assigns them on save.
func NewSchedule(p Plan) (Schedule, error) {
	if err := p.Validate(); err != nil {
		return Schedule{}, err
	}
	kind := p.Kind
	if kind == "" {
		kind = KindReceivable
	}

	var items []ScheduleItem
	if p.Frequency == FrequencyCustom {
		items = []ScheduleItem{}
		for _, pi := range p.Installments {
			var err error
			if items, err = AddCustomItem(items, pi.DueDate, pi.Amount); err != nil {
				return Schedule{}, err
			}
		}
	} else {
		dates, err := GenerateDates(p.Frequency, p.StartDate, p.Count)
		if err != nil {
			return Schedule{}, err
		}
		items = make([]ScheduleItem, len(dates))
		for i, d := range dates {
			items[i] = newItem(i+1, d, decimal.Zero)
		}
		if items, err = DistributeEven(p.TotalAmount, items); err != nil {
			return Schedule{}, err
		}
	}

	start := p.StartDate
	if start.IsZero() && len(items) > 0 {
		start = items[0].CurrentDueDate
	}
	return Schedule{
		Reference:   p.Reference,
		Kind:        kind,
		TotalAmount: p.TotalAmount,
		Frequency:   p.Frequency,
		StartDate:   start,
		Items:       items,
	}, nil
}

func newItem(number int, due Date, amount decimal.Decimal) ScheduleItem {
	return ScheduleItem{
		InstallmentNumber: number,
		OriginalDueDate:   due,
		CurrentDueDate:    due,
		OriginalDueAmount: amount,
		CurrentDueAmount:  amount,
		PaidAmount:        decimal.Zero,
		CarriedOverAmount: decimal.Zero,
		Status:            StatusPending,
	}
}
