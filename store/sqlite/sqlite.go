/*
Package sqlite provides a SQLite-backed implementation of installment.Store.

PURPOSE:
  Persists schedules and their items between engine calls. The engine never
  touches storage: the service loads a schedule, runs one pure transform and
  saves the returned items verbatim through this store.

INTERFACES IMPLEMENTED:
  installment.Store: Schedule persistence
  api.RunStore:      Nightly refresh audit trail

KEY TABLES:
  schedules:      One row per payment plan (total, frequency, start date)
  schedule_items: Installments, kept in array order by position
  refresh_runs:   One row per carry-over refresh run

MONEY:
  Amounts are stored as TEXT decimal strings and read back with
  decimal.NewFromString, so no value ever passes through float64.

SAVE SEMANTICS:
  SaveSchedule upserts the schedule row and replaces every item row inside
  one SQL transaction. A reader never sees half an engine result.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Per-schedule ordering of mutations is
  the service's job; the mutex only protects the connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/installments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := installment.NewService(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - installment/store.go: Interface definition
  - installment/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/installment-engine/installment"
)

// Store implements installment.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection (health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		frequency TEXT NOT NULL,
		start_date TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_created
		ON schedules(created_at, id);
	CREATE INDEX IF NOT EXISTS idx_schedules_reference
		ON schedules(reference) WHERE reference <> '';

	CREATE TABLE IF NOT EXISTS schedule_items (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		installment_number INTEGER NOT NULL,
		original_due_date TEXT NOT NULL,
		current_due_date TEXT NOT NULL,
		original_due_amount TEXT NOT NULL,
		current_due_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		carried_over_amount TEXT NOT NULL,
		carried_forward_to INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		locked INTEGER NOT NULL DEFAULT 0,
		UNIQUE(schedule_id, position)
	);

	-- Status scans for the overdue dashboard
	CREATE INDEX IF NOT EXISTS idx_items_status_due
		ON schedule_items(status, current_due_date);

	CREATE TABLE IF NOT EXISTS refresh_runs (
		id TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		status TEXT NOT NULL,
		schedules INTEGER NOT NULL DEFAULT 0,
		carried INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_runs_as_of
		ON refresh_runs(as_of, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEDULES (installment.Store interface)
// =============================================================================

// SaveSchedule upserts the schedule and replaces its items atomically.
func (s *Store) SaveSchedule(ctx context.Context, sched installment.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO schedules (id, reference, kind, total_amount, frequency, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reference = excluded.reference,
			kind = excluded.kind,
			total_amount = excluded.total_amount,
			frequency = excluded.frequency,
			start_date = excluded.start_date,
			updated_at = excluded.updated_at
	`,
		sched.ID, sched.Reference, sched.Kind, sched.TotalAmount.String(),
		sched.Frequency, sched.StartDate.String(),
		formatTime(sched.CreatedAt), formatTime(sched.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM schedule_items WHERE schedule_id = ?", sched.ID); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}

	stmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO schedule_items
		(id, schedule_id, position, installment_number, original_due_date, current_due_date,
		 original_due_amount, current_due_amount, paid_amount, carried_over_amount,
		 carried_forward_to, status, locked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for pos, it := range sched.Items {
		_, err := stmt.ExecContext(ctx,
			it.ID, sched.ID, pos, it.InstallmentNumber,
			it.OriginalDueDate.String(), it.CurrentDueDate.String(),
			it.OriginalDueAmount.String(), it.CurrentDueAmount.String(),
			it.PaidAmount.String(), it.CarriedOverAmount.String(),
			it.CarriedForwardTo, it.Status, boolToInt(it.Locked),
		)
		if err != nil {
			return fmt.Errorf("failed to save installment %d: %w", it.InstallmentNumber, err)
		}
	}

	return sqlTx.Commit()
}

// GetSchedule loads a schedule with its items in array order.
func (s *Store) GetSchedule(ctx context.Context, id installment.ScheduleID) (installment.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, reference, kind, total_amount, frequency, start_date, created_at, updated_at
		FROM schedules WHERE id = ?
	`, id)
	sched, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return installment.Schedule{}, installment.ErrScheduleNotFound
	}
	if err != nil {
		return installment.Schedule{}, err
	}

	if sched.Items, err = s.loadItems(ctx, sched.ID); err != nil {
		return installment.Schedule{}, err
	}
	return sched, nil
}

// ListSchedules returns every schedule, oldest first.
func (s *Store) ListSchedules(ctx context.Context) ([]installment.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, kind, total_amount, frequency, start_date, created_at, updated_at
		FROM schedules
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	schedules := []installment.Schedule{}
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range schedules {
		if schedules[i].Items, err = s.loadItems(ctx, schedules[i].ID); err != nil {
			return nil, err
		}
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule; its items go with it.
func (s *Store) DeleteSchedule(ctx context.Context, id installment.ScheduleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return installment.ErrScheduleNotFound
	}
	return nil
}

func (s *Store) loadItems(ctx context.Context, id installment.ScheduleID) ([]installment.ScheduleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, installment_number, original_due_date, current_due_date,
		       original_due_amount, current_due_amount, paid_amount, carried_over_amount,
		       carried_forward_to, status, locked
		FROM schedule_items
		WHERE schedule_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []installment.ScheduleItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (installment.Schedule, error) {
	var (
		sched     installment.Schedule
		total     string
		startDate string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&sched.ID, &sched.Reference, &sched.Kind, &total,
		&sched.Frequency, &startDate, &createdAt, &updatedAt)
	if err != nil {
		return sched, err
	}

	if sched.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return sched, fmt.Errorf("schedule %s: bad total %q: %w", sched.ID, total, err)
	}
	if err := sched.StartDate.UnmarshalText([]byte(startDate)); err != nil {
		return sched, fmt.Errorf("schedule %s: %w", sched.ID, err)
	}
	sched.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sched.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return sched, nil
}

func scanItem(rows *sql.Rows) (installment.ScheduleItem, error) {
	var (
		it                         installment.ScheduleItem
		originalDate, currentDate  string
		originalAmount, currentDue string
		paid, carried              string
		locked                     int
	)
	err := rows.Scan(&it.ID, &it.InstallmentNumber, &originalDate, &currentDate,
		&originalAmount, &currentDue, &paid, &carried,
		&it.CarriedForwardTo, &it.Status, &locked)
	if err != nil {
		return it, fmt.Errorf("failed to scan item: %w", err)
	}

	if err := it.OriginalDueDate.UnmarshalText([]byte(originalDate)); err != nil {
		return it, err
	}
	if err := it.CurrentDueDate.UnmarshalText([]byte(currentDate)); err != nil {
		return it, err
	}
	amounts := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&it.OriginalDueAmount, originalAmount},
		{&it.CurrentDueAmount, currentDue},
		{&it.PaidAmount, paid},
		{&it.CarriedOverAmount, carried},
	}
	for _, a := range amounts {
		if *a.dst, err = decimal.NewFromString(a.src); err != nil {
			return it, fmt.Errorf("installment %d: bad amount %q: %w", it.InstallmentNumber, a.src, err)
		}
	}
	it.Locked = locked != 0
	return it, nil
}

// =============================================================================
// REFRESH RUNS
// =============================================================================

// RefreshRun records one carry-over refresh across all schedules.
type RefreshRun struct {
	ID          string
	AsOf        string // calendar day the run refreshed for
	Status      string // running, completed, failed
	Schedules   int
	Carried     int
	Failed      int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// SaveRefreshRun inserts or updates a refresh run.
func (s *Store) SaveRefreshRun(ctx context.Context, r RefreshRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO refresh_runs (id, as_of, status, schedules, carried, failed,
			error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			schedules = excluded.schedules,
			carried = excluded.carried,
			failed = excluded.failed,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.AsOf, r.Status, r.Schedules, r.Carried, r.Failed,
		nullString(r.Error), formatTimePtr(r.StartedAt), formatTimePtr(r.CompletedAt),
		formatTime(r.CreatedAt),
	)
	return err
}

// GetRefreshRuns returns the most recent runs first, optionally by status.
func (s *Store) GetRefreshRuns(ctx context.Context, status string, limit int) ([]RefreshRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, as_of, status, schedules, carried, failed, error,
			started_at, completed_at, created_at
		FROM refresh_runs`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer rows.Close()

	runs := []RefreshRun{}
	for rows.Next() {
		var (
			r                      RefreshRun
			errText                sql.NullString
			startedAt, completedAt sql.NullString
			createdAt              string
		)
		if err := rows.Scan(&r.ID, &r.AsOf, &r.Status, &r.Schedules, &r.Carried, &r.Failed,
			&errText, &startedAt, &completedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan refresh run: %w", err)
		}
		r.Error = errText.String
		r.StartedAt = parseTimePtr(startedAt)
		r.CompletedAt = parseTimePtr(completedAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IsRefreshComplete reports whether a completed run exists for asOf.
func (s *Store) IsRefreshComplete(ctx context.Context, asOf string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM refresh_runs WHERE as_of = ? AND status = 'completed'",
		asOf,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"schedule_items", "schedules", "refresh_runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ installment.Store = (*Store)(nil)
