package installment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/installment-engine/installment"
)

func TestApplyCascadePayment_SpillsIntoNextItem(t *testing.T) {
	// GIVEN: #1 due 100, #2 due 200, nothing paid
	// WHEN: Paying 150 from #1
	// THEN: #1 is PAID with 100; #2 gets 50 and is PARTIALLY_PAID

	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "0", ""),
		item(2, "2025-02-15", "200", "0", ""),
	}

	result, out, err := installment.ApplyCascadePayment(money("150"), items, 0)
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	first := result.Entries[0]
	assert.Equal(t, 1, first.InstallmentNumber)
	assertMoney(t, "100", first.AmountApplied)
	assertMoney(t, "100", first.PreviousBalance)
	assertMoney(t, "0", first.NewBalance)
	assert.Equal(t, installment.StatusPaid, first.NewStatus)

	second := result.Entries[1]
	assertMoney(t, "50", second.AmountApplied)
	assertMoney(t, "150", second.NewBalance)
	assert.Equal(t, installment.StatusPartiallyPaid, second.NewStatus)

	assertMoney(t, "0", result.RemainingAmount)
	assertMoney(t, "150", result.TotalProcessed)
	assert.False(t, result.IsOverpayment())

	assert.Equal(t, installment.StatusPaid, out[0].Status)
	assertMoney(t, "50", out[1].PaidAmount)
}

func TestApplyCascadePayment_OverpaymentIsReported(t *testing.T) {
	// GIVEN: A single payable item with balance 300
	// WHEN: Paying 500
	// THEN: 300 is applied and 200 comes back as remaining

	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "300", "300", installment.StatusPaid),
		item(2, "2025-02-15", "300", "0", ""),
	}

	result, out, err := installment.ApplyCascadePayment(money("500"), items, 0)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	assert.Equal(t, 2, result.Entries[0].InstallmentNumber)
	assertMoney(t, "300", result.Entries[0].AmountApplied)
	assert.Equal(t, installment.StatusPaid, result.Entries[0].NewStatus)
	assertMoney(t, "200", result.RemainingAmount)
	assertMoney(t, "300", result.TotalProcessed)
	assert.True(t, result.IsOverpayment())
	assert.Equal(t, installment.StatusPaid, out[1].Status)
}

func TestApplyCascadePayment_SkipsTerminalAndRelocated(t *testing.T) {
	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "0", installment.StatusCancelled),
		item(2, "2025-02-15", "100", "0", installment.StatusWrittenOff),
		item(3, "2025-03-15", "100", "20", installment.StatusOverdue),
		item(4, "2025-04-15", "180", "0", ""),
	}
	items[2].CarriedOverAmount = money("80")
	items[2].CarriedForwardTo = 4

	result, out, err := installment.ApplyCascadePayment(money("50"), items, 0)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	assert.Equal(t, 4, result.Entries[0].InstallmentNumber)
	assertMoney(t, "0", out[0].PaidAmount)
	assertMoney(t, "0", out[1].PaidAmount)
	assertMoney(t, "20", out[2].PaidAmount)
	assert.Equal(t, installment.StatusCancelled, out[0].Status)
	assert.Equal(t, installment.StatusWrittenOff, out[1].Status)
}

func TestApplyCascadePayment_StartsAtIndexAndNeverGoesBack(t *testing.T) {
	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "0", ""),
		item(2, "2025-02-15", "100", "0", ""),
		item(3, "2025-03-15", "100", "0", ""),
	}

	result, out, err := installment.ApplyCascadePayment(money("250"), items, 1)
	require.NoError(t, err)

	assertMoney(t, "0", out[0].PaidAmount)
	assertMoney(t, "100", out[1].PaidAmount)
	assertMoney(t, "100", out[2].PaidAmount)
	assertMoney(t, "50", result.RemainingAmount)
}

func TestApplyCascadePayment_ConservesAmount(t *testing.T) {
	items, err := installment.DistributeEven(money("1000"), pendingItems(6))
	require.NoError(t, err)

	for _, amount := range []string{"0.01", "1", "166.66", "166.67", "333.34", "999.99", "1000", "1500.55"} {
		result, out, err := installment.ApplyCascadePayment(money(amount), items, 0)
		require.NoError(t, err)

		assertMoney(t, amount, result.TotalProcessed.Add(result.RemainingAmount), amount)

		applied := money("0")
		for _, e := range result.Entries {
			applied = applied.Add(e.AmountApplied)
		}
		assertMoney(t, result.TotalProcessed.String(), applied, amount)

		paid := money("0")
		for _, it := range out {
			paid = paid.Add(it.PaidAmount)
			assert.False(t, it.Balance().IsNegative(), "no item overpaid")
		}
		assertMoney(t, result.TotalProcessed.String(), paid, amount)
	}
}

func TestApplyCascadePayment_PaidAmountsOnlyGrow(t *testing.T) {
	items, err := installment.DistributeEven(money("300"), pendingItems(3))
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		_, next, err := installment.ApplyCascadePayment(money("45.5"), items, 0)
		require.NoError(t, err)
		for k := range items {
			assert.True(t, next[k].PaidAmount.GreaterThanOrEqual(items[k].PaidAmount))
		}
		items = next
	}
}

func TestApplyCascadePayment_Rejections(t *testing.T) {
	items := pendingItems(2)

	_, _, err := installment.ApplyCascadePayment(money("0"), items, 0)
	assert.ErrorIs(t, err, installment.ErrInvalidArgument)

	_, _, err = installment.ApplyCascadePayment(money("-5"), items, 0)
	assert.ErrorIs(t, err, installment.ErrInvalidArgument)

	_, _, err = installment.ApplyCascadePayment(money("5"), items, 2)
	assert.ErrorIs(t, err, installment.ErrInvalidArgument)

	_, _, err = installment.ApplyCascadePayment(money("5"), nil, 0)
	assert.ErrorIs(t, err, installment.ErrInvalidArgument)
}

func TestApplyCascadePayment_DoesNotMutateInput(t *testing.T) {
	items := []installment.ScheduleItem{item(1, "2025-01-15", "100", "0", "")}
	_, _, err := installment.ApplyCascadePayment(money("60"), items, 0)
	require.NoError(t, err)
	assertMoney(t, "0", items[0].PaidAmount)
	assert.Equal(t, installment.StatusPending, items[0].Status)
}

func TestPayableBalance(t *testing.T) {
	items := []installment.ScheduleItem{
		item(1, "2025-01-15", "100", "100", installment.StatusPaid),
		item(2, "2025-02-15", "100", "30", installment.StatusPartiallyPaid),
		item(3, "2025-03-15", "100", "0", installment.StatusCancelled),
		item(4, "2025-04-15", "100", "0", ""),
	}
	assertMoney(t, "170", installment.PayableBalance(items, 0))
	assertMoney(t, "100", installment.PayableBalance(items, 2))
}
