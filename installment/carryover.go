/*
carryover.go - Overdue carry-over processing

PURPOSE:
  Rolls a missed installment's unpaid balance into the next upcoming
  installment instead of tracking a separate arrears bucket.

ALGORITHM:
  1. Recompute every status for today.
  2. Scan in array order. For each OVERDUE item with a positive balance and
     CarriedOverAmount == 0, find the nearest FOLLOWING item whose status is
     PENDING. Intervening PAID, PARTIALLY_PAID or OVERDUE items are skipped.
  3. Move the balance: the receiver's CurrentDueAmount and CarriedOverAmount
     grow by it; the source's CarriedOverAmount is set to it and
     CarriedForwardTo names the receiver. The source's own due and paid
     amounts do not change.
  4. With no PENDING successor the overdue item stays uncarried and remains
     directly collectable.

IDEMPOTENCE:
  The CarriedOverAmount == 0 guard means a second run with the same input and
  today finds nothing new to move.

DOUBLE-OVERDUE CHAINS:
  When two consecutive items are overdue, the second is not PENDING and so
  never receives the first's shortfall; both roll to the next PENDING item.

SEE ALSO:
  - status.go: Status recomputation
  - cascade.go: Relocated sources are not charged again
*/
package installment

// ProcessCarryOver recomputes statuses and relocates overdue shortfalls.
// It returns the updated copy and the number of items carried over.
func ProcessCarryOver(items []ScheduleItem, today Date) ([]ScheduleItem, int) {
	out := RefreshStatuses(items, today)
	carried := 0

	for i := range out {
		src := out[i]
		if src.Status != StatusOverdue || !src.CarriedOverAmount.IsZero() {
			continue
		}
		balance := src.Balance()
		if !balance.IsPositive() {
			continue
		}

		target := nextPending(out, i)
		if target < 0 {
			continue
		}

		out[target].CurrentDueAmount = out[target].CurrentDueAmount.Add(balance)
		out[target].CarriedOverAmount = out[target].CarriedOverAmount.Add(balance)
		out[i].CarriedOverAmount = balance
		out[i].CarriedForwardTo = out[target].InstallmentNumber
		carried++
	}
	return out, carried
}

func nextPending(items []ScheduleItem, after int) int {
	for j := after + 1; j < len(items); j++ {
		if items[j].Status == StatusPending {
			return j
		}
	}
	return -1
}
