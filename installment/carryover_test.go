package installment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/installment-engine/installment"
)

// =============================================================================
// STATUS CALCULATOR
// =============================================================================

func TestComputeStatus(t *testing.T) {
	today := day("2025-03-10")

	tests := []struct {
		name string
		item installment.ScheduleItem
		want installment.PaymentStatus
	}{
		{"future unpaid", item(1, "2025-04-01", "100", "0", ""), installment.StatusPending},
		{"due today unpaid", item(1, "2025-03-10", "100", "0", ""), installment.StatusPending},
		{"future partial", item(1, "2025-04-01", "100", "30", ""), installment.StatusPartiallyPaid},
		{"past partial", item(1, "2025-03-09", "100", "30", ""), installment.StatusOverdue},
		{"past unpaid", item(1, "2025-01-01", "100", "0", ""), installment.StatusOverdue},
		{"fully paid late", item(1, "2025-01-01", "100", "100", ""), installment.StatusPaid},
		{"paid ahead", item(1, "2025-06-01", "100", "100", ""), installment.StatusPaid},
		{"cancelled sticky", item(1, "2025-01-01", "100", "0", installment.StatusCancelled), installment.StatusCancelled},
		{"written off sticky", item(1, "2025-01-01", "100", "100", installment.StatusWrittenOff), installment.StatusWrittenOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, installment.ComputeStatus(tt.item, today))
		})
	}
}

func TestComputeStatus_NoPaymentNeverRegressesPaid(t *testing.T) {
	// GIVEN: An item paid in full
	// WHEN: Recomputing on every day of the following year
	// THEN: It stays PAID

	it := item(1, "2025-01-15", "250", "250", installment.StatusPaid)
	d := day("2025-01-01")
	for i := 0; i < 365; i++ {
		require.Equal(t, installment.StatusPaid, installment.ComputeStatus(it, d), d.String())
		d = d.AddDays(1)
	}
}

func TestRefreshStatuses_DoesNotMutateInput(t *testing.T) {
	items := []installment.ScheduleItem{item(1, "2025-01-01", "100", "0", "")}
	out := installment.RefreshStatuses(items, day("2025-02-01"))

	assert.Equal(t, installment.StatusOverdue, out[0].Status)
	assert.Equal(t, installment.StatusPending, items[0].Status)
}

// =============================================================================
// CARRY-OVER
// =============================================================================

func TestProcessCarryOver_MovesShortfallToNextPending(t *testing.T) {
	// GIVEN: Item 1 due 100 paid 40 in the past, item 2 PENDING in the future
	// WHEN: Processing carry-over
	// THEN: Item 2 grows by 60, both items record 60 carried over, item 1's own amounts stay

	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "40", installment.StatusPartiallyPaid),
		item(2, "2025-04-15", "100", "0", ""),
	}

	out, carried := installment.ProcessCarryOver(items, day("2025-02-01"))

	assert.Equal(t, 1, carried)
	assert.Equal(t, installment.StatusOverdue, out[0].Status)
	assertMoney(t, "100", out[0].CurrentDueAmount)
	assertMoney(t, "40", out[0].PaidAmount)
	assertMoney(t, "60", out[0].CarriedOverAmount)
	assert.Equal(t, 2, out[0].CarriedForwardTo)

	assertMoney(t, "160", out[1].CurrentDueAmount)
	assertMoney(t, "60", out[1].CarriedOverAmount)
	assert.Equal(t, installment.StatusPending, out[1].Status)
}

func TestProcessCarryOver_Idempotent(t *testing.T) {
	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "40", ""),
		item(2, "2025-04-15", "100", "0", ""),
	}
	today := day("2025-02-01")

	once, n1 := installment.ProcessCarryOver(items, today)
	twice, n2 := installment.ProcessCarryOver(once, today)

	assert.Equal(t, 1, n1)
	assert.Equal(t, 0, n2)
	assert.Equal(t, once, twice)
}

func TestProcessCarryOver_SkipsNonPendingReceivers(t *testing.T) {
	// GIVEN: Overdue #1, paid #2, pending #3
	// THEN: #1's shortfall lands on #3

	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "0", ""),
		item(2, "2025-02-15", "100", "100", installment.StatusPaid),
		item(3, "2025-05-15", "100", "0", ""),
	}

	out, carried := installment.ProcessCarryOver(items, day("2025-03-01"))

	assert.Equal(t, 1, carried)
	assert.Equal(t, 3, out[0].CarriedForwardTo)
	assertMoney(t, "100", out[1].CurrentDueAmount)
	assertMoney(t, "200", out[2].CurrentDueAmount)
}

func TestProcessCarryOver_ConsecutiveOverdueBothRollToNextPending(t *testing.T) {
	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "0", ""),
		item(2, "2025-02-15", "100", "50", ""),
		item(3, "2025-05-15", "100", "0", ""),
	}

	out, carried := installment.ProcessCarryOver(items, day("2025-03-01"))

	assert.Equal(t, 2, carried)
	assertMoney(t, "100", out[1].CurrentDueAmount, "overdue #2 never receives #1's shortfall")
	assertMoney(t, "250", out[2].CurrentDueAmount)
	assertMoney(t, "150", out[2].CarriedOverAmount)
}

func TestProcessCarryOver_NoPendingSuccessor(t *testing.T) {
	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "0", ""),
		item(2, "2025-02-15", "100", "0", ""),
	}

	out, carried := installment.ProcessCarryOver(items, day("2025-03-01"))

	// Both are overdue and nothing PENDING follows: balances stay collectable in place
	assert.Equal(t, 0, carried)
	for _, it := range out {
		assert.Equal(t, installment.StatusOverdue, it.Status)
		assert.True(t, it.CarriedOverAmount.IsZero())
		assert.False(t, it.IsRelocated())
	}
}

func TestProcessCarryOver_KeepsScheduledTotal(t *testing.T) {
	items, err := installment.DistributeEven(money("900"), pendingItems(3))
	require.NoError(t, err)
	items[0].PaidAmount = money("120")

	out, _ := installment.ProcessCarryOver(items, day("2025-02-01"))

	assertMoney(t, "900", installment.ScheduledTotal(out))
	ok, issues := installment.Validate(out, money("900"))
	assert.True(t, ok, "%v", issues)
}
