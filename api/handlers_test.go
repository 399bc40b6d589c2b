/*
handlers_test.go - HTTP tests for schedule, edit, and payment handlers

Tests for:
- Schedule creation, lookup, deletion, plan export
- Amount/date/lock edits and soft refusals
- Cascade payments and overpayment notices
- Refresh with an explicit as_of day
- Error status mapping (400/404/409)
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/installment-engine/factory"
	"github.com/warp/installment-engine/installment"
	"github.com/warp/installment-engine/store/sqlite"
)

var _ RunStore = (*sqlite.Store)(nil)

type testEnv struct {
	h      *Handler
	store  *sqlite.Store
	router http.Handler
}

func setupTestHandler(t *testing.T, today string) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := installment.NewService(store, nil)
	clock := installment.MustParseDate(today).Time.Add(9 * time.Hour)
	svc.Now = func() time.Time { return clock }

	h := NewHandler(svc, store, nil)
	return &testEnv{h: h, store: store, router: NewRouter(h, RouterConfig{})}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createMonthly(t *testing.T, total, start string, count int) ScheduleDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/schedules", factory.LoanPlanJSON("LOAN-1", total, start, count))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ScheduleDTO](t, rec)
}

func dueAmounts(s ScheduleDTO) []string {
	out := make([]string, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.CurrentDueAmount.StringFixed(2)
	}
	return out
}

// =============================================================================
// SCHEDULES
// =============================================================================

func TestCreateSchedule_Monthly(t *testing.T) {
	// GIVEN: A 1000.00 plan over 3 months starting Jan 31
	// WHEN: Posting it
	// THEN: Month-end dates clamp and the last installment absorbs the cent

	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "1000", "2025-01-31", 3)

	assert.NotEmpty(t, sched.ID)
	assert.Equal(t, "LOAN", sched.Kind)
	assert.Equal(t, []string{"333.33", "333.33", "333.34"}, dueAmounts(sched))
	assert.Equal(t, "2025-02-28", sched.Items[1].CurrentDueDate.String())
	assert.Equal(t, "2025-03-31", sched.Items[2].CurrentDueDate.String())
	for _, it := range sched.Items {
		assert.Equal(t, "PENDING", it.Status)
		assert.True(t, it.Editable)
	}
	require.NotNil(t, sched.Summary)
	assert.True(t, sched.Summary.Balanced)
	assert.Equal(t, "1000.00", sched.Summary.OutstandingAmount.StringFixed(2))
}

func TestCreateSchedule_Rejections(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing total", `{"frequency":"MONTHLY","start_date":"2025-01-01","count":3}`, "total_amount"},
		{"bad frequency", `{"total_amount":"100","frequency":"HOURLY","start_date":"2025-01-01","count":3}`, "frequency"},
		{"zero count", `{"total_amount":"100","frequency":"MONTHLY","start_date":"2025-01-01","count":0}`, "count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/schedules", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decode[struct {
				Code    string        `json:"code"`
				Details FieldErrorDTO `json:"details"`
			}](t, rec)
			assert.Equal(t, "INVALID_ARGUMENT", resp.Code)
			assert.Equal(t, tt.field, resp.Details.Field)
		})
	}

	rec := env.do(t, http.MethodPost, "/api/schedules", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchedule_NotFoundAndDelete(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)

	rec := env.do(t, http.MethodGet, "/api/schedules/"+sched.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ScheduleDTO](t, rec).Items, 3)

	rec = env.do(t, http.MethodGet, "/api/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScheduleDTO](t, rec), 1)

	rec = env.do(t, http.MethodDelete, "/api/schedules/"+sched.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/schedules/"+sched.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).Code)
}

func TestGetPlan_RoundTrips(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)

	rec := env.do(t, http.MethodGet, "/api/schedules/"+sched.ID+"/plan", "")
	require.Equal(t, http.StatusOK, rec.Code)

	plan := decode[factory.PlanJSON](t, rec)
	assert.Equal(t, "MONTHLY", plan.Frequency)
	assert.Equal(t, "2025-01-15", plan.StartDate)
	assert.Equal(t, 3, plan.Count)

	rebuilt := env.do(t, http.MethodPost, "/api/schedules", rec.Body.String())
	require.Equal(t, http.StatusCreated, rebuilt.Code, rebuilt.Body.String())
	assert.Equal(t, dueAmounts(sched), dueAmounts(decode[ScheduleDTO](t, rebuilt)))
}

// =============================================================================
// EDITS
// =============================================================================

func TestEditAmount_GlobalAndForward(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "1000", "2025-01-15", 4)
	base := "/api/schedules/" + sched.ID + "/items/"

	rec := env.do(t, http.MethodPut, base+"2/amount", `{"amount":"100","mode":"forward"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[MutationResponse](t, rec)
	assert.False(t, resp.Ignored)
	assert.Equal(t, []string{"250.00", "100.00", "325.00", "325.00"}, dueAmounts(resp.Schedule))

	rec = env.do(t, http.MethodPut, base+"1/amount", `{"amount":"400"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"400.00", "200.00", "200.00", "200.00"}, dueAmounts(decode[MutationResponse](t, rec).Schedule))

	rec = env.do(t, http.MethodPut, base+"1/amount", `{"amount":"400","mode":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, base+"9/amount", `{"amount":"400"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, base+"abc/amount", `{"amount":"400"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditAmount_SoftRefusalAfterPayment(t *testing.T) {
	// GIVEN: Installment #1 fully paid
	// WHEN: Editing its amount
	// THEN: 200 with ignored=true and the schedule unchanged

	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)

	rec := env.do(t, http.MethodPost, "/api/schedules/"+sched.ID+"/payments", `{"amount":"150"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/schedules/"+sched.ID+"/items/1/amount", `{"amount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MutationResponse](t, rec)
	assert.True(t, resp.Ignored)
	assert.Contains(t, resp.Reason, "installment 1")
	assert.Equal(t, []string{"100.00", "100.00", "100.00"}, dueAmounts(resp.Schedule))
	assert.Equal(t, "PAID", resp.Schedule.Items[0].Status)
	assert.False(t, resp.Schedule.Items[0].Editable)
}

func TestEditDate(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)

	rec := env.do(t, http.MethodPut, "/api/schedules/"+sched.ID+"/items/2/date", `{"due_date":"2025-02-20"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode[MutationResponse](t, rec).Schedule.Items[1]
	assert.Equal(t, "2025-02-20", item.CurrentDueDate.String())
	assert.Equal(t, "2025-02-15", item.OriginalDueDate.String())

	rec = env.do(t, http.MethodPut, "/api/schedules/"+sched.ID+"/items/2/date", `{"due_date":"20/02/2025"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetLocked_SurvivesRedistribution(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "900", "2025-01-15", 3)
	base := "/api/schedules/" + sched.ID

	rec := env.do(t, http.MethodPut, base+"/items/1/amount", `{"amount":"100"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, base+"/items/1/lock", `{"locked":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[MutationResponse](t, rec).Schedule.Items[0].Locked)

	rec = env.do(t, http.MethodPost, base+"/distribute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"100.00", "400.00", "400.00"}, dueAmounts(decode[MutationResponse](t, rec).Schedule))

	rec = env.do(t, http.MethodPut, base+"/items/1/amount", `{"amount":"300"}`)
	assert.True(t, decode[MutationResponse](t, rec).Ignored)

	rec = env.do(t, http.MethodPut, base+"/items/1/lock", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[struct {
		Details []FieldErrorDTO `json:"details"`
	}](t, rec)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, FieldErrorDTO{Field: "locked", Rule: "required"}, resp.Details[0])
}

func TestCustomItems(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")

	rec := env.do(t, http.MethodPost, "/api/schedules", `{"total_amount":"150","frequency":"CUSTOM"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sched := decode[ScheduleDTO](t, rec)
	assert.Empty(t, sched.Items)
	base := "/api/schedules/" + sched.ID

	rec = env.do(t, http.MethodGet, base+"/validation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[ValidationResponse](t, rec)
	assert.False(t, report.Valid)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "EMPTY_SCHEDULE", report.Issues[0].Code)

	rec = env.do(t, http.MethodPost, base+"/items", `{"due_date":"2025-02-01","amount":"100"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, base+"/items", `{"due_date":"2025-03-01","amount":"50"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[MutationResponse](t, rec).Schedule.Items, 2)

	rec = env.do(t, http.MethodGet, base+"/validation", "")
	assert.True(t, decode[ValidationResponse](t, rec).Valid)

	rec = env.do(t, http.MethodDelete, base+"/items/last", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[MutationResponse](t, rec).Schedule.Items, 1)

	monthly := env.createMonthly(t, "100", "2025-01-15", 2)
	rec = env.do(t, http.MethodPost, "/api/schedules/"+monthly.ID+"/items", `{"due_date":"2025-09-01","amount":"10"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAndWriteOff(t *testing.T) {
	env := setupTestHandler(t, "2025-02-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)
	base := "/api/schedules/" + sched.ID + "/items/"

	rec := env.do(t, http.MethodPost, base+"3/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[MutationResponse](t, rec)
	assert.Equal(t, "CANCELLED", resp.Schedule.Items[2].Status)
	assert.Equal(t, "100.00", resp.Schedule.Summary.OverdueAmount.StringFixed(2))

	rec = env.do(t, http.MethodPost, base+"3/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, base+"1/write-off", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "WRITTEN_OFF", decode[MutationResponse](t, rec).Schedule.Items[0].Status)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestApplyPayment_CascadeAndOverpayment(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)
	path := "/api/schedules/" + sched.ID + "/payments"

	rec := env.do(t, http.MethodPost, path, `{"amount":"150"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PaymentResponse](t, rec)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "PAID", resp.Entries[0].NewStatus)
	assert.Equal(t, "PARTIALLY_PAID", resp.Entries[1].NewStatus)
	assert.Equal(t, "50.00", resp.Entries[1].NewBalance.StringFixed(2))
	assert.False(t, resp.Overpayment)
	assert.Empty(t, resp.Notice)

	rec = env.do(t, http.MethodPost, path, `{"amount":"350","installment_number":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[PaymentResponse](t, rec)
	assert.Equal(t, "150.00", resp.TotalProcessed.StringFixed(2))
	assert.Equal(t, "200.00", resp.RemainingAmount.StringFixed(2))
	assert.True(t, resp.Overpayment)
	assert.Contains(t, resp.Notice, "200.00")
	for _, it := range resp.Schedule.Items {
		assert.Equal(t, "PAID", it.Status)
	}
}

func TestApplyPayment_Rejections(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)
	path := "/api/schedules/" + sched.ID + "/payments"

	rec := env.do(t, http.MethodPost, path, `{"amount":"abc"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[struct {
		Details []FieldErrorDTO `json:"details"`
	}](t, rec)
	require.NotEmpty(t, resp.Details)
	assert.Equal(t, "amount", resp.Details[0].Field)

	rec = env.do(t, http.MethodPost, path, `{"amount":"-5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path, `{"amount":"5","installment_number":7}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/schedules/missing/payments", `{"amount":"5"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefresh_CarriesOverdueBalance(t *testing.T) {
	// GIVEN: #1 paid 40 of 100, refreshed five days after its due date
	// THEN: The 60 shortfall rolls into #2

	env := setupTestHandler(t, "2025-01-01")
	sched := env.createMonthly(t, "300", "2025-01-15", 3)
	base := "/api/schedules/" + sched.ID

	rec := env.do(t, http.MethodPost, base+"/payments", `{"amount":"40"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/refresh", `{"as_of":"2025-01-20"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RefreshResponse](t, rec)
	assert.Equal(t, 1, resp.Carried)
	assert.Equal(t, "2025-01-20", resp.AsOf.String())
	assert.Equal(t, "160.00", resp.Schedule.Items[1].CurrentDueAmount.StringFixed(2))
	assert.Equal(t, 2, resp.Schedule.Items[0].CarriedForwardTo)

	rec = env.do(t, http.MethodPost, base+"/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2025-01-01", decode[RefreshResponse](t, rec).AsOf.String())

	rec = env.do(t, http.MethodPost, base+"/refresh", `{"as_of":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ROUTER
// =============================================================================

func TestHealthAndSecurityHeaders(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRateLimit(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	router := NewRouter(env.h, RouterConfig{RateLimit: 2})

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/api/scenarios", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestJSONField(t *testing.T) {
	assert.Equal(t, "due_date", jsonField("DueDate"))
	assert.Equal(t, "installment_number", jsonField("InstallmentNumber"))
	assert.Equal(t, "amount", jsonField("Amount"))
}

func TestListSchedules_StoreFailureIs500(t *testing.T) {
	env := setupTestHandler(t, "2025-01-01")
	require.NoError(t, env.store.Close())

	rec := env.do(t, http.MethodGet, "/api/schedules", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
