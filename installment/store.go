/*
store.go - Persistence interface for schedules

PURPOSE:
  Defines the boundary between the service layer and the database. The
  engine never touches a Store; only Service loads and saves schedules.

CONTRACT:
  - SaveSchedule writes the schedule header and its full item list in one
    atomic step (items are replaced, not merged). Callers persist the
    engine's returned item list verbatim.
  - GetSchedule returns ErrScheduleNotFound for unknown ids.
  - ListSchedules returns schedules ordered by creation time.

IMPLEMENTATIONS:
  - installment/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite for the server

SEE ALSO:
  - service.go: The only caller
*/
package installment

import "context"

// =============================================================================
// STORE - Interface for schedule persistence
// =============================================================================

// Store persists schedules.
type Store interface {
	// SaveSchedule inserts or replaces the schedule and all of its items atomically.
	SaveSchedule(ctx context.Context, s Schedule) error

	// GetSchedule loads one schedule with its items in installment order.
	GetSchedule(ctx context.Context, id ScheduleID) (Schedule, error)

	// ListSchedules loads every schedule.
	ListSchedules(ctx context.Context) ([]Schedule, error)

	// DeleteSchedule removes a schedule and its items.
	DeleteSchedule(ctx context.Context, id ScheduleID) error
}
