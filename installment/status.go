package installment

// =============================================================================
// STATUS CALCULATOR
// =============================================================================

// ComputeStatus derives an item's status from its amounts and due date.
//
//	CANCELLED / WRITTEN_OFF   sticky, returned unchanged
//	paid >= due               PAID
//	due date before today     OVERDUE
//	0 < paid < due            PARTIALLY_PAID
//	otherwise                 PENDING
//
// Pure: callers re-run it after any change to PaidAmount or CurrentDueDate
// and whenever the calendar day rolls over.
func ComputeStatus(it ScheduleItem, today Date) PaymentStatus {
	if it.Status.IsTerminal() {
		return it.Status
	}
	switch {
	case it.PaidAmount.GreaterThanOrEqual(it.CurrentDueAmount):
		return StatusPaid
	case it.CurrentDueDate.Before(today):
		return StatusOverdue
	case it.PaidAmount.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusPending
	}
}

// RefreshStatuses returns a copy of items with every status recomputed.
func RefreshStatuses(items []ScheduleItem, today Date) []ScheduleItem {
	out := CloneItems(items)
	for i := range out {
		out[i].Status = ComputeStatus(out[i], today)
	}
	return out
}
