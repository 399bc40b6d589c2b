/*
distributor.go - Amount distribution across installments

PURPOSE:
  Splits a schedule's total payable amount across its editable installments
  and rebalances the schedule when one installment amount is edited.

ALGORITHM:
  All arithmetic runs in integer cents. The distributable pool is
  total - (amounts that must not move), divided by the number of
  participating items with integer division. Every participant receives the
  quotient; the LAST participant absorbs the remainder, so the participating
  amounts always add back to the pool exactly:

    1000.00 over 3 items -> 333.33, 333.33, 333.34

ENTRY POINTS:
  DistributeEven:    even split of total - locked over every editable item
  DistributeOnEdit:  apply one edit, split the rest over the OTHER editable items
  SmartDistribute:   apply one edit, split forward only (later PENDING items)

LOCKED ITEMS:
  Items that are not editable (any payment, any status but PENDING, or an
  explicit lock) keep their amount and still count against the total. A
  carry-over source counts only what stayed on it; the moved shortfall is
  owed on the receiver, same as ScheduledTotal.

EDITABLE AMOUNTS:
  While an item is editable its OriginalDueAmount follows CurrentDueAmount.
  Once a payment exists the original is frozen for audit display.

SEE ALSO:
  - validator.go: Flags schedules left out of balance
  - errors.go: NotEditableError soft refusal
*/
package installment

import "github.com/shopspring/decimal"

// =============================================================================
// EVEN DISTRIBUTION
// =============================================================================

// DistributeEven splits total minus locked amounts evenly across editable items.
// With no editable items the schedule is returned unchanged.
func DistributeEven(total decimal.Decimal, items []ScheduleItem) ([]ScheduleItem, error) {
	if total.IsNegative() {
		return nil, invalidArg("total_amount", "must not be negative, got %s", total)
	}
	if err := checkAmounts(items); err != nil {
		return nil, err
	}

	out := CloneItems(items)
	var targets []int
	var locked int64
	for i, it := range out {
		if it.IsEditable() {
			targets = append(targets, i)
			continue
		}
		locked += scheduledCents(it)
	}
	if len(targets) == 0 {
		return out, nil
	}

	pool := ToCents(total) - locked
	if pool < 0 {
		return nil, invalidArg("total_amount", "locked installments (%s) exceed total %s", FromCents(locked), total)
	}
	assign(out, targets, pool)
	return out, nil
}

// =============================================================================
// EDIT WITH GLOBAL REDISTRIBUTION
// =============================================================================

// DistributeOnEdit sets items[editedIndex] to newAmount and splits
// total - locked - newAmount evenly across every other editable item.
//
// Editing a non-editable item is refused softly: the unmodified schedule is
// returned together with a *NotEditableError.
func DistributeOnEdit(total decimal.Decimal, items []ScheduleItem, editedIndex int, newAmount decimal.Decimal) ([]ScheduleItem, error) {
	if err := checkEdit(total, items, editedIndex, newAmount); err != nil {
		return nil, err
	}
	out := CloneItems(items)
	if !out[editedIndex].IsEditable() {
		return out, notEditable(out[editedIndex])
	}

	setAmount(&out[editedIndex], ToCents(newAmount))

	var targets []int
	var fixed int64
	for i, it := range out {
		switch {
		case i == editedIndex:
			fixed += ToCents(it.CurrentDueAmount)
		case it.IsEditable():
			targets = append(targets, i)
		default:
			fixed += scheduledCents(it)
		}
	}
	if len(targets) == 0 {
		return out, nil
	}

	pool := ToCents(total) - fixed
	if pool < 0 {
		return nil, invalidArg("new_amount", "%s leaves %s to distribute", newAmount, FromCents(pool))
	}
	assign(out, targets, pool)
	return out, nil
}

// =============================================================================
// EDIT WITH FORWARD-ONLY REDISTRIBUTION
// =============================================================================

// SmartDistribute sets items[editedIndex] to newAmount and rebalances only
// the installments after it: "I'm changing this and future installments,
// past ones are done". Items at or before editedIndex keep their amounts.
// Later PENDING editable items absorb total - sum(items[0..editedIndex]) -
// sum(later non-editable items).
//
// When no later item qualifies the edit is still applied and the schedule
// may no longer add up to total; Validate reports it as TOTAL_MISMATCH.
func SmartDistribute(total decimal.Decimal, items []ScheduleItem, editedIndex int, newAmount decimal.Decimal) ([]ScheduleItem, error) {
	if err := checkEdit(total, items, editedIndex, newAmount); err != nil {
		return nil, err
	}
	out := CloneItems(items)
	if !out[editedIndex].IsEditable() {
		return out, notEditable(out[editedIndex])
	}

	setAmount(&out[editedIndex], ToCents(newAmount))

	var fixed int64
	for i := 0; i <= editedIndex; i++ {
		fixed += scheduledCents(out[i])
	}
	var targets []int
	for i := editedIndex + 1; i < len(out); i++ {
		it := out[i]
		if it.Status == StatusPending && it.IsEditable() {
			targets = append(targets, i)
			continue
		}
		fixed += scheduledCents(it)
	}
	if len(targets) == 0 {
		return out, nil
	}

	pool := ToCents(total) - fixed
	if pool < 0 {
		return nil, invalidArg("new_amount", "%s leaves %s for later installments", newAmount, FromCents(pool))
	}
	assign(out, targets, pool)
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// assign spreads pool cents over items[targets]; the last target takes the remainder.
func assign(items []ScheduleItem, targets []int, pool int64) {
	n := int64(len(targets))
	base := pool / n
	for k, idx := range targets {
		share := base
		if k == len(targets)-1 {
			share = pool - base*(n-1)
		}
		setAmount(&items[idx], share)
	}
}

// scheduledCents is what an item contributes to ScheduledTotal.
func scheduledCents(it ScheduleItem) int64 {
	cents := ToCents(it.CurrentDueAmount)
	if it.IsRelocated() {
		cents -= ToCents(it.CarriedOverAmount)
	}
	return cents
}

func setAmount(it *ScheduleItem, cents int64) {
	amount := FromCents(cents)
	it.CurrentDueAmount = amount
	it.OriginalDueAmount = amount
}

func checkEdit(total decimal.Decimal, items []ScheduleItem, editedIndex int, newAmount decimal.Decimal) error {
	if total.IsNegative() {
		return invalidArg("total_amount", "must not be negative, got %s", total)
	}
	if newAmount.IsNegative() {
		return invalidArg("new_amount", "must not be negative, got %s", newAmount)
	}
	if editedIndex < 0 || editedIndex >= len(items) {
		return invalidArg("index", "%d out of range [0, %d)", editedIndex, len(items))
	}
	return checkAmounts(items)
}

func checkAmounts(items []ScheduleItem) error {
	for _, it := range items {
		if it.CurrentDueAmount.IsNegative() || it.PaidAmount.IsNegative() {
			return invalidArg("items", "installment %d has a negative amount", it.InstallmentNumber)
		}
	}
	return nil
}
