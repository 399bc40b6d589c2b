/*
service.go - Stateful service over the pure engine

PURPOSE:
  The engine functions are pure transforms. Service is the caller the engine
  expects: it loads a schedule, runs one transform, assigns ids to new items,
  and persists the returned items verbatim.

SERIALIZATION:
  A schedule's mutations (amount edit -> redistribute -> carry-over ->
  cascade payment) must apply as one serialized sequence per schedule.
  Service holds a mutex per schedule id for the whole load-transform-save
  cycle. Different schedules share no state and proceed in parallel.

SOFT REFUSALS:
  When the engine refuses an edit (ErrNotEditable) nothing is saved and the
  unchanged schedule is returned together with the refusal error.

CLOCK:
  Only Service reads the wall clock, through Now, converted to a calendar day
  in Location. Tests replace both.

SEE ALSO:
  - store.go: Persistence interface
  - api/handlers.go: HTTP caller
  - api/scheduler.go: Nightly Refresh caller
*/
package installment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// EditMode selects how an amount edit rebalances the schedule.
type EditMode string

const (
	// EditGlobal spreads the difference over every other editable item.
	EditGlobal EditMode = "global"
	// EditForward spreads the difference over later pending items only.
	EditForward EditMode = "forward"
)

// Service coordinates engine transforms with persistence.
type Service struct {
	Store    Store
	Log      logrus.FieldLogger
	Now      func() time.Time
	Location *time.Location

	mu    sync.Mutex
	locks map[ScheduleID]*sync.Mutex
}

// NewService creates a service over store. A nil logger discards output.
func NewService(store Store, log logrus.FieldLogger) *Service {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Service{
		Store:    store,
		Log:      log,
		Now:      time.Now,
		Location: time.UTC,
		locks:    make(map[ScheduleID]*sync.Mutex),
	}
}

// Today is the service's current calendar day.
func (s *Service) Today() Date {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(s.Now().In(loc))
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id ScheduleID) (Schedule, error) {
	return s.Store.GetSchedule(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Schedule, error) {
	return s.Store.ListSchedules(ctx)
}

// Summary summarizes a schedule as of today without persisting anything.
func (s *Service) Summary(ctx context.Context, id ScheduleID) (Summary, error) {
	sched, err := s.Store.GetSchedule(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	today := s.Today()
	return Summarize(RefreshStatuses(sched.Items, today), sched.TotalAmount, today), nil
}

// Validate runs the validator over the stored schedule.
func (s *Service) Validate(ctx context.Context, id ScheduleID) (bool, []ValidationIssue, error) {
	sched, err := s.Store.GetSchedule(ctx, id)
	if err != nil {
		return false, nil, err
	}
	ok, issues := Validate(sched.Items, sched.TotalAmount)
	return ok, issues, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// Create builds a schedule from plan and persists it.
func (s *Service) Create(ctx context.Context, plan Plan) (Schedule, error) {
	sched, err := NewSchedule(plan)
	if err != nil {
		return Schedule{}, err
	}
	now := s.Now().UTC()
	sched.ID = ScheduleID(uuid.NewString())
	sched.CreatedAt = now
	sched.UpdatedAt = now
	assignIDs(sched.Items)

	if err := s.Store.SaveSchedule(ctx, sched); err != nil {
		return Schedule{}, fmt.Errorf("failed to save schedule: %w", err)
	}
	s.Log.WithFields(logrus.Fields{
		"schedule_id":  sched.ID,
		"reference":    sched.Reference,
		"frequency":    sched.Frequency,
		"installments": len(sched.Items),
		"total":        sched.TotalAmount.StringFixed(2),
	}).Info("schedule created")
	return sched, nil
}

// Delete removes a schedule.
func (s *Service) Delete(ctx context.Context, id ScheduleID) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.Store.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// Redistribute splits the schedule total evenly over its editable items.
func (s *Service) Redistribute(ctx context.Context, id ScheduleID) (Schedule, error) {
	return s.mutate(ctx, id, func(sched *Schedule) error {
		items, err := DistributeEven(sched.TotalAmount, RefreshStatuses(sched.Items, s.Today()))
		if err != nil {
			return err
		}
		sched.Items = items
		return nil
	})
}

// EditAmount changes one installment amount and rebalances per mode.
func (s *Service) EditAmount(ctx context.Context, id ScheduleID, installmentNumber int, amount decimal.Decimal, mode EditMode) (Schedule, error) {
	return s.mutate(ctx, id, func(sched *Schedule) error {
		idx, err := indexFor(sched.Items, installmentNumber)
		if err != nil {
			return err
		}
		current := RefreshStatuses(sched.Items, s.Today())
		var items []ScheduleItem
		switch mode {
		case EditForward:
			items, err = SmartDistribute(sched.TotalAmount, current, idx, amount)
		case EditGlobal, "":
			items, err = DistributeOnEdit(sched.TotalAmount, current, idx, amount)
		default:
			return invalidArg("mode", "unknown edit mode %q", string(mode))
		}
		if err != nil {
			return err
		}
		sched.Items = items
		return nil
	})
}

// EditDate moves one installment's due date.
func (s *Service) EditDate(ctx context.Context, id ScheduleID, installmentNumber int, date Date) (Schedule, error) {
	return s.mutate(ctx, id, func(sched *Schedule) error {
		idx, err := indexFor(sched.Items, installmentNumber)
		if err != nil {
			return err
		}
		items, err := UpdateDueDate(RefreshStatuses(sched.Items, s.Today()), idx, date)
		if err != nil {
			return err
		}
		sched.Items = items
		return nil
	})
}

// AddItem appends an installment to a CUSTOM schedule.
func (s *Service) AddItem(ctx context.Context, id ScheduleID, date Date, amount decimal.Decimal) (Schedule, error) {
	return s.mutate(ctx, id, func(sched *Schedule) error {
		if sched.Frequency != FrequencyCustom {
			return invalidArg("frequency", "installments can only be added to CUSTOM schedules")
		}
		items, err := AddCustomItem(sched.Items, date, amount)
		if err != nil {
			return err
		}
		sched.Items = items
		return nil
	})
}

// RemoveLastItem drops the newest installment of a CUSTOM schedule.
func (s *Service) RemoveLastItem(ctx context.Context, id ScheduleID) (Schedule, error) {
	return s.mutate(ctx, id, func(sched *Schedule) error {
		if sched.Frequency != FrequencyCustom {
			return invalidArg("frequency", "installments can only be removed from CUSTOM schedules")
		}
		items, err := RemoveLastItem(sched.Items)
		if err != nil {
			return err
		}
		sched.Items = items
		return nil
	})
}

// SetLocked pins or releases one installment's amount.
func (s *Service) SetLocked(ctx context.Context, id ScheduleID, installmentNumber int, locked bool) (Schedule, error) {
	return s.mutate(ctx, id, func(sched *Schedule) error {
		idx, err := indexFor(sched.Items, installmentNumber)
		if err != nil {
			return err
		}
		items, err := SetLocked(RefreshStatuses(sched.Items, s.Today()), idx, locked)
		if err != nil {
			return err
		}
		sched.Items = items
		return nil
	})
}

// Cancel marks one installment CANCELLED.
func (s *Service) Cancel(ctx context.Context, id ScheduleID, installmentNumber int) (Schedule, error) {
	return s.override(ctx, id, installmentNumber, Cancel)
}

// WriteOff marks one installment WRITTEN_OFF.
func (s *Service) WriteOff(ctx context.Context, id ScheduleID, installmentNumber int) (Schedule, error) {
	return s.override(ctx, id, installmentNumber, WriteOff)
}

func (s *Service) override(ctx context.Context, id ScheduleID, installmentNumber int,
	fn func(context.Context, []ScheduleItem, int) ([]ScheduleItem, error)) (Schedule, error) {
	return s.mutate(ctx, id, func(sched *Schedule) error {
		idx, err := indexFor(sched.Items, installmentNumber)
		if err != nil {
			return err
		}
		items, err := fn(ctx, sched.Items, idx)
		if err != nil {
			return err
		}
		sched.Items = items
		return nil
	})
}

// ApplyPayment cascades amount over the schedule from installmentNumber on.
// Statuses are brought up to date before the payment is applied.
func (s *Service) ApplyPayment(ctx context.Context, id ScheduleID, installmentNumber int, amount decimal.Decimal) (CascadeResult, Schedule, error) {
	var result CascadeResult
	today := s.Today()
	sched, err := s.mutate(ctx, id, func(sched *Schedule) error {
		idx, err := indexFor(sched.Items, installmentNumber)
		if err != nil {
			return err
		}
		res, items, err := ApplyCascadePayment(amount, RefreshStatuses(sched.Items, today), idx)
		if err != nil {
			return err
		}
		result = res
		sched.Items = items
		return nil
	})
	if err != nil {
		return CascadeResult{}, sched, err
	}

	entry := s.Log.WithFields(logrus.Fields{
		"schedule_id": id,
		"amount":      amount.StringFixed(2),
		"processed":   result.TotalProcessed.StringFixed(2),
		"remaining":   result.RemainingAmount.StringFixed(2),
		"items":       len(result.Entries),
	})
	if result.IsOverpayment() {
		entry.Warn("payment exceeds outstanding balance")
	} else {
		entry.Info("payment applied")
	}
	return result, sched, nil
}

// Refresh recomputes statuses and carries overdue balances for today.
// It returns the number of installments carried over.
func (s *Service) Refresh(ctx context.Context, id ScheduleID, today Date) (Schedule, int, error) {
	carried := 0
	sched, err := s.mutate(ctx, id, func(sched *Schedule) error {
		sched.Items, carried = ProcessCarryOver(sched.Items, today)
		return nil
	})
	if err != nil {
		return sched, 0, err
	}
	if carried > 0 {
		s.Log.WithFields(logrus.Fields{
			"schedule_id": id,
			"carried":     carried,
			"as_of":       today.String(),
		}).Info("overdue balances carried over")
	}
	return sched, carried, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// mutate runs fn on the stored schedule under the schedule's lock and saves
// the result. A soft refusal returns the stored schedule unchanged.
func (s *Service) mutate(ctx context.Context, id ScheduleID, fn func(*Schedule) error) (Schedule, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.Store.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	next := stored.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, ErrNotEditable) {
			s.Log.WithFields(logrus.Fields{"schedule_id": id}).WithError(err).Debug("edit ignored")
			return stored, err
		}
		return Schedule{}, err
	}

	assignIDs(next.Items)
	next.UpdatedAt = s.Now().UTC()
	if err := s.Store.SaveSchedule(ctx, next); err != nil {
		return Schedule{}, fmt.Errorf("failed to save schedule %s: %w", id, err)
	}
	return next, nil
}

func (s *Service) lockFor(id ScheduleID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func assignIDs(items []ScheduleItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = ItemID(uuid.NewString())
		}
	}
}

func indexFor(items []ScheduleItem, installmentNumber int) (int, error) {
	idx := IndexOf(items, installmentNumber)
	if idx < 0 {
		return -1, fmt.Errorf("installment %d: %w", installmentNumber, ErrItemNotFound)
	}
	return idx, nil
}
