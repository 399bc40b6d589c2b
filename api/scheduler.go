/*
scheduler.go - Automated nightly status refresh

PURPOSE:
  Periodically recomputes installment statuses and carries overdue balances
  forward for every schedule, so OVERDUE appears without anyone touching the
  schedule.

DESIGN:
  - cron expression from config (default @daily) in the configured timezone
  - one run per calendar day; a run already completed for today is skipped
    unless forced
  - schedules are refreshed concurrently up to Concurrency at a time; each
    schedule is still serialized by the service's per-schedule lock
  - a failing schedule is logged and counted, it never aborts the run
  - every run is recorded for audit and UI display

USAGE:
  scheduler := NewRefreshScheduler(svc, store, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRefresh endpoint (manual run)
  - installment/carryover.go: ProcessCarryOver
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/installment-engine/installment"
	"github.com/warp/installment-engine/store/sqlite"
	"golang.org/x/sync/errgroup"
)

// Refresh run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RefreshScheduler runs the status refresh over all schedules on a cron.
type RefreshScheduler struct {
	Service     *installment.Service
	Runs        RunStore
	Log         logrus.FieldLogger
	Spec        string
	Concurrency int
	Location    *time.Location

	cron *cron.Cron
	mu   sync.Mutex
	busy sync.Mutex
	wg   sync.WaitGroup
}

// NewRefreshScheduler creates a scheduler that fires @daily. runs may be nil.
func NewRefreshScheduler(svc *installment.Service, runs RunStore, log logrus.FieldLogger) *RefreshScheduler {
	if log == nil {
		log = svc.Log
	}
	return &RefreshScheduler{
		Service:     svc,
		Runs:        runs,
		Log:         log.WithField("component", "refresh"),
		Spec:        "@daily",
		Concurrency: 4,
		Location:    svc.Location,
	}
}

// Start registers the cron job, catches up on today's run if it has not
// happened yet, and starts the cron loop.
func (rs *RefreshScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron != nil {
		return nil
	}
	loc := rs.Location
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(rs.Spec, func() {
		if _, err := rs.run(context.Background(), false); err != nil {
			rs.Log.WithError(err).Error("scheduled refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", rs.Spec, err)
	}

	// Catch up immediately; skipped when today's run already completed.
	rs.wg.Add(1)
	go func() {
		defer rs.wg.Done()
		if _, err := rs.run(context.Background(), false); err != nil {
			rs.Log.WithError(err).Error("startup refresh failed")
		}
	}()

	c.Start()
	rs.cron = c
	rs.Log.WithField("spec", rs.Spec).Info("refresh scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running job, including the
// startup catch-up, to finish.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron == nil {
		return
	}
	<-rs.cron.Stop().Done()
	rs.wg.Wait()
	rs.cron = nil
	rs.Log.Info("refresh scheduler stopped")
}

// RunNow refreshes every schedule immediately, even if today's run already
// completed.
func (rs *RefreshScheduler) RunNow(ctx context.Context) (RefreshReportDTO, error) {
	return rs.run(ctx, true)
}

// NextRun returns when the cron loop fires next. Zero when not started.
func (rs *RefreshScheduler) NextRun() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron == nil {
		return time.Time{}
	}
	entries := rs.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (rs *RefreshScheduler) run(ctx context.Context, force bool) (RefreshReportDTO, error) {
	// Overlapping runs would only contend on schedule locks.
	rs.busy.Lock()
	defer rs.busy.Unlock()

	today := rs.Service.Today()
	report := RefreshReportDTO{AsOf: today}

	if !force && rs.Runs != nil {
		done, err := rs.Runs.IsRefreshComplete(ctx, today.String())
		if err != nil {
			return report, fmt.Errorf("failed to check refresh status: %w", err)
		}
		if done {
			report.Skipped = true
			rs.Log.WithField("as_of", today.String()).Debug("refresh already completed today")
			return report, nil
		}
	}

	startTime := time.Now()
	run := sqlite.RefreshRun{
		ID:        "run-" + uuid.NewString(),
		AsOf:      today.String(),
		Status:    RunRunning,
		StartedAt: &startTime,
		CreatedAt: startTime,
	}
	report.RunID = run.ID
	rs.record(ctx, run)

	schedules, err := rs.Service.List(ctx)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		rs.record(ctx, run)
		return report, fmt.Errorf("failed to list schedules: %w", err)
	}

	var carried, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	limit := rs.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, sched := range schedules {
		id := sched.ID
		g.Go(func() error {
			_, n, err := rs.Service.Refresh(gctx, id, today)
			if err != nil {
				failed.Add(1)
				rs.Log.WithField("schedule_id", id).WithError(err).Warn("schedule refresh failed")
				return nil
			}
			carried.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	report.Schedules = len(schedules)
	report.Carried = int(carried.Load())
	report.Failed = int(failed.Load())

	completedTime := time.Now()
	run.Status = RunCompleted
	run.Schedules = report.Schedules
	run.Carried = report.Carried
	run.Failed = report.Failed
	run.CompletedAt = &completedTime
	rs.record(ctx, run)

	rs.Log.WithFields(logrus.Fields{
		"as_of":     today.String(),
		"schedules": report.Schedules,
		"carried":   report.Carried,
		"failed":    report.Failed,
	}).Info("refresh completed")
	return report, nil
}

func (rs *RefreshScheduler) record(ctx context.Context, run sqlite.RefreshRun) {
	if rs.Runs == nil {
		return
	}
	if err := rs.Runs.SaveRefreshRun(ctx, run); err != nil {
		rs.Log.WithField("run_id", run.ID).WithError(err).Error("failed to record refresh run")
	}
}
