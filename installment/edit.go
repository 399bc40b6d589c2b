package installment

import "github.com/shopspring/decimal"

// =============================================================================
// ITEM EDITS - Pre-payment only
// =============================================================================

// UpdateDueDate moves items[index] to date. Only editable items may move;
// others are refused softly. Chronology is not enforced here: Validate
// reports a DATE_ORDER issue if the move breaks it.
func UpdateDueDate(items []ScheduleItem, index int, date Date) ([]ScheduleItem, error) {
	if index < 0 || index >= len(items) {
		return nil, invalidArg("index", "%d out of range [0, %d)", index, len(items))
	}
	if date.IsZero() {
		return nil, invalidArg("date", "missing due date")
	}
	out := CloneItems(items)
	if !out[index].IsEditable() {
		return out, notEditable(out[index])
	}
	out[index].CurrentDueDate = date
	return out, nil
}

// AddCustomItem appends the next installment of a user-built (CUSTOM) schedule.
func AddCustomItem(items []ScheduleItem, date Date, amount decimal.Decimal) ([]ScheduleItem, error) {
	if date.IsZero() {
		return nil, invalidArg("date", "missing due date")
	}
	if amount.IsNegative() {
		return nil, invalidArg("amount", "must not be negative, got %s", amount)
	}
	out := make([]ScheduleItem, len(items), len(items)+1)
	copy(out, items)
	return append(out, newItem(len(items)+1, date, FromCents(ToCents(amount)))), nil
}

// RemoveLastItem drops the most recently added installment. It is refused
// softly once any installment in the schedule has received a payment or when
// the last installment is not editable.
func RemoveLastItem(items []ScheduleItem) ([]ScheduleItem, error) {
	if len(items) == 0 {
		return nil, invalidArg("items", "schedule is empty")
	}
	out := CloneItems(items)
	last := out[len(out)-1]
	for _, it := range out {
		if it.PaidAmount.IsPositive() {
			return out, notEditable(it)
		}
	}
	if !last.IsEditable() {
		return out, notEditable(last)
	}
	return out[:len(out)-1], nil
}

// SetLocked locks or unlocks items[index]. A locked item keeps its amount
// through every redistribution.
func SetLocked(items []ScheduleItem, index int, locked bool) ([]ScheduleItem, error) {
	if index < 0 || index >= len(items) {
		return nil, invalidArg("index", "%d out of range [0, %d)", index, len(items))
	}
	out := CloneItems(items)
	out[index].Locked = locked
	return out, nil
}

// IndexOf returns the array position of an installment number, or -1.
func IndexOf(items []ScheduleItem, installmentNumber int) int {
	for i, it := range items {
		if it.InstallmentNumber == installmentNumber {
			return i
		}
	}
	return -1
}
