package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/installment-engine/factory"
)

func seedOverdueSchedules(t *testing.T, env *testEnv, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		plan, err := env.h.Plans.ParsePlan(factory.LoanPlanJSON("LOAN-R", "300", "2025-01-15", 3))
		require.NoError(t, err)
		_, err = env.h.Service.Create(ctx, plan)
		require.NoError(t, err)
	}
}

func TestRefreshScheduler_RunsOncePerDay(t *testing.T) {
	// GIVEN: Two schedules with #1 and #2 overdue on Mar 1
	// WHEN: Running the refresh twice without force
	// THEN: The first run carries 4 balances, the second is skipped

	ctx := context.Background()
	env := setupTestHandler(t, "2025-03-01")
	seedOverdueSchedules(t, env, 2)

	rs := NewRefreshScheduler(env.h.Service, env.store, nil)
	rs.Concurrency = 2

	report, err := rs.run(ctx, false)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.Schedules)
	assert.Equal(t, 4, report.Carried)
	assert.Zero(t, report.Failed)
	assert.Equal(t, "2025-03-01", report.AsOf.String())

	again, err := rs.run(ctx, false)
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	forced, err := rs.RunNow(ctx)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
	assert.Zero(t, forced.Carried, "already carried balances are not moved twice")

	runs, err := env.store.GetRefreshRuns(ctx, RunCompleted, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRefreshScheduler_WithoutRunStore(t *testing.T) {
	env := setupTestHandler(t, "2025-03-01")
	seedOverdueSchedules(t, env, 1)

	rs := NewRefreshScheduler(env.h.Service, nil, nil)
	report, err := rs.run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Carried)
	assert.NotEmpty(t, report.RunID)
}

func TestRefreshScheduler_StopWaitsForStartupRun(t *testing.T) {
	// GIVEN: A started scheduler whose startup catch-up has work to do
	// WHEN: Stopping it right away
	// THEN: Stop returns only after the catch-up run is recorded as completed

	ctx := context.Background()
	env := setupTestHandler(t, "2025-03-01")
	seedOverdueSchedules(t, env, 2)

	rs := NewRefreshScheduler(env.h.Service, env.store, nil)
	require.NoError(t, rs.Start())
	assert.False(t, rs.NextRun().IsZero())
	rs.Stop()

	runs, err := env.store.GetRefreshRuns(ctx, RunCompleted, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].Carried)
	assert.True(t, rs.NextRun().IsZero())
}

func TestRefreshScheduler_InvalidCronExpression(t *testing.T) {
	env := setupTestHandler(t, "2025-03-01")
	rs := NewRefreshScheduler(env.h.Service, env.store, nil)
	rs.Spec = "every night"

	assert.Error(t, rs.Start())
	assert.True(t, rs.NextRun().IsZero())
	rs.Stop()
}

func TestTriggerRefreshAndListRuns(t *testing.T) {
	env := setupTestHandler(t, "2025-03-01")
	seedOverdueSchedules(t, env, 2)

	rec := env.do(t, http.MethodPost, "/api/admin/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[RefreshReportDTO](t, rec)
	assert.Equal(t, 4, report.Carried)
	assert.NotEmpty(t, report.RunID)

	rec = env.do(t, http.MethodGet, "/api/admin/refresh-runs?status=completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RefreshRunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Schedules)
	assert.Equal(t, "2025-03-01", runs[0].AsOf)

	rec = env.do(t, http.MethodGet, "/api/admin/refresh-runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
