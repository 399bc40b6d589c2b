package installment

import (
	"context"

	"github.com/looplab/fsm"
)

// =============================================================================
// MANUAL LIFECYCLE - Cancellation and write-off overrides
// =============================================================================

// Manual lifecycle events.
const (
	EventCancel   = "cancel"
	EventWriteOff = "write_off"
)

// itemFSM wraps an item's status with the allowed manual transitions.
// Computed transitions (PENDING -> PAID etc.) belong to ComputeStatus; this
// machine only governs the sticky overrides.
func itemFSM(status PaymentStatus) *fsm.FSM {
	open := []string{string(StatusPending), string(StatusPartiallyPaid), string(StatusOverdue)}
	return fsm.NewFSM(
		string(status),
		fsm.Events{
			// pending/partial/overdue -> cancelled
			{Name: EventCancel, Src: open, Dst: string(StatusCancelled)},

			// pending/partial/overdue -> written off
			{Name: EventWriteOff, Src: open, Dst: string(StatusWrittenOff)},
		},
		fsm.Callbacks{},
	)
}

// CanTransition reports whether event is allowed from status.
func CanTransition(status PaymentStatus, event string) bool {
	return itemFSM(status).Can(event)
}

// Cancel marks items[index] CANCELLED. Paid and already-terminal items refuse.
func Cancel(ctx context.Context, items []ScheduleItem, index int) ([]ScheduleItem, error) {
	return transition(ctx, items, index, EventCancel)
}

// WriteOff marks items[index] WRITTEN_OFF. Paid and already-terminal items refuse.
func WriteOff(ctx context.Context, items []ScheduleItem, index int) ([]ScheduleItem, error) {
	return transition(ctx, items, index, EventWriteOff)
}

func transition(ctx context.Context, items []ScheduleItem, index int, event string) ([]ScheduleItem, error) {
	if index < 0 || index >= len(items) {
		return nil, invalidArg("index", "%d out of range [0, %d)", index, len(items))
	}
	it := items[index]
	machine := itemFSM(it.Status)
	if !machine.Can(event) {
		return nil, &TransitionError{InstallmentNumber: it.InstallmentNumber, Event: event, From: it.Status}
	}
	if err := machine.Event(ctx, event); err != nil {
		return nil, &TransitionError{InstallmentNumber: it.InstallmentNumber, Event: event, From: it.Status}
	}

	out := CloneItems(items)
	out[index].Status = PaymentStatus(machine.Current())
	return out, nil
}
