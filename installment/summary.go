package installment

import "github.com/shopspring/decimal"

// =============================================================================
// SUMMARY - Read model for schedule headers and dashboards
// =============================================================================

// Summary aggregates a schedule for display.
type Summary struct {
	TotalAmount       decimal.Decimal
	ScheduledAmount   decimal.Decimal
	PaidAmount        decimal.Decimal
	OutstandingAmount decimal.Decimal
	OverdueAmount     decimal.Decimal
	CarriedOver       int
	Counts            map[PaymentStatus]int
	NextDue           *ScheduleItem
	Balanced          bool
}

// Summarize computes totals as of today. Statuses are taken as stored; run
// RefreshStatuses first for an up-to-date overdue picture.
func Summarize(items []ScheduleItem, total decimal.Decimal, today Date) Summary {
	s := Summary{
		TotalAmount:       total,
		ScheduledAmount:   ScheduledTotal(items),
		PaidAmount:        decimal.Zero,
		OutstandingAmount: decimal.Zero,
		OverdueAmount:     decimal.Zero,
		Counts:            make(map[PaymentStatus]int),
	}

	for i, it := range items {
		s.Counts[it.Status]++
		s.PaidAmount = s.PaidAmount.Add(it.PaidAmount)
		if it.IsRelocated() {
			s.CarriedOver++
			continue
		}
		if !it.Status.IsPayable() {
			continue
		}
		balance := it.Balance()
		if !balance.IsPositive() {
			continue
		}
		s.OutstandingAmount = s.OutstandingAmount.Add(balance)
		if it.IsPastDue(today) {
			s.OverdueAmount = s.OverdueAmount.Add(balance)
		}
		if s.NextDue == nil {
			next := items[i]
			s.NextDue = &next
		}
	}

	s.Balanced = s.ScheduledAmount.Sub(total).Abs().LessThanOrEqual(BalanceTolerance)
	return s
}
