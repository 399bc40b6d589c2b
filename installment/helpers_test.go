package installment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/installment-engine/installment"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(s string) installment.Date {
	return installment.MustParseDate(s)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// item builds a schedule item; status defaults to PENDING.
func item(n int, due string, amount, paid string, status installment.PaymentStatus) installment.ScheduleItem {
	if status == "" {
		status = installment.StatusPending
	}
	return installment.ScheduleItem{
		ID:                installment.ItemID("item-" + due),
		InstallmentNumber: n,
		OriginalDueDate:   day(due),
		CurrentDueDate:    day(due),
		OriginalDueAmount: money(amount),
		CurrentDueAmount:  money(amount),
		PaidAmount:        money(paid),
		CarriedOverAmount: decimal.Zero,
		Status:            status,
	}
}

// pendingItems builds n empty PENDING items due monthly from 2025-01-15.
func pendingItems(n int) []installment.ScheduleItem {
	dates, err := installment.GenerateDates(installment.FrequencyMonthly, day("2025-01-15"), n)
	if err != nil {
		panic(err)
	}
	items := make([]installment.ScheduleItem, n)
	for i, d := range dates {
		items[i] = item(i+1, d.String(), "0", "0", installment.StatusPending)
	}
	return items
}

func amounts(items []installment.ScheduleItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.CurrentDueAmount.StringFixed(2)
	}
	return out
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, money(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}
