package installment

import "github.com/shopspring/decimal"

// =============================================================================
// CASCADE PAYMENT PROCESSOR
// =============================================================================

// ApplyCascadePayment applies amount to items starting at startIndex, in
// array order, until the amount is exhausted or no payable item remains.
//
// Items that are PAID, CANCELLED or WRITTEN_OFF are skipped, as are overdue
// items whose shortfall carry-over already relocated (that balance is now
// owed on the receiving installment). Each payable item receives
// min(remaining, balance); overflow moves to the next payable item.
//
// Whatever cannot be applied is returned as RemainingAmount and must be
// surfaced to the payer. TotalProcessed + RemainingAmount == amount exactly.
func ApplyCascadePayment(amount decimal.Decimal, items []ScheduleItem, startIndex int) (CascadeResult, []ScheduleItem, error) {
	if !amount.IsPositive() {
		return CascadeResult{}, nil, invalidArg("amount", "must be positive, got %s", amount)
	}
	if startIndex < 0 || startIndex >= len(items) {
		return CascadeResult{}, nil, invalidArg("start_index", "%d out of range [0, %d)", startIndex, len(items))
	}
	if err := checkAmounts(items); err != nil {
		return CascadeResult{}, nil, err
	}

	out := CloneItems(items)
	remaining := amount
	result := CascadeResult{Entries: []CascadeEntry{}}

	for i := startIndex; i < len(out) && remaining.IsPositive(); i++ {
		it := &out[i]
		if !it.Status.IsPayable() || it.IsRelocated() {
			continue
		}
		balance := it.Balance()
		if !balance.IsPositive() {
			continue
		}

		applied := decimal.Min(remaining, balance)
		it.PaidAmount = it.PaidAmount.Add(applied)
		newBalance := it.Balance()

		switch {
		case newBalance.IsZero():
			it.Status = StatusPaid
		case it.PaidAmount.IsPositive():
			it.Status = StatusPartiallyPaid
		}

		result.Entries = append(result.Entries, CascadeEntry{
			ItemID:            it.ID,
			InstallmentNumber: it.InstallmentNumber,
			AmountApplied:     applied,
			PreviousBalance:   balance,
			NewBalance:        newBalance,
			NewStatus:         it.Status,
		})
		remaining = remaining.Sub(applied)
	}

	result.RemainingAmount = remaining
	result.TotalProcessed = amount.Sub(remaining)
	return result, out, nil
}

// PayableBalance is the amount a cascade starting at startIndex could absorb.
func PayableBalance(items []ScheduleItem, startIndex int) decimal.Decimal {
	total := decimal.Zero
	for i := startIndex; i >= 0 && i < len(items); i++ {
		it := items[i]
		if !it.Status.IsPayable() || it.IsRelocated() {
			continue
		}
		if b := it.Balance(); b.IsPositive() {
			total = total.Add(b)
		}
	}
	return total
}
