/*
handlers.go - HTTP API handlers for the installment engine

PURPOSE:
  Exposes the installment service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to installment.Service.

ENDPOINTS:
  Schedules:
    GET    /api/schedules                          List all schedules
    POST   /api/schedules                          Create schedule from plan JSON
    GET    /api/schedules/{id}                     Get schedule with summary
    DELETE /api/schedules/{id}                     Delete schedule
    GET    /api/schedules/{id}/plan                Plan JSON the schedule was built from
    GET    /api/schedules/{id}/validation          Validator report

  Edits:
    POST   /api/schedules/{id}/distribute          Even redistribution
    PUT    /api/schedules/{id}/items/{n}/amount    Edit amount (global | forward)
    PUT    /api/schedules/{id}/items/{n}/date      Edit due date
    PUT    /api/schedules/{id}/items/{n}/lock      Lock or unlock amount
    POST   /api/schedules/{id}/items               Append CUSTOM installment
    DELETE /api/schedules/{id}/items/last          Drop last CUSTOM installment
    POST   /api/schedules/{id}/items/{n}/cancel    Manual cancel
    POST   /api/schedules/{id}/items/{n}/write-off Manual write-off

  Payments:
    POST   /api/schedules/{id}/payments            Cascade payment
    POST   /api/schedules/{id}/refresh             Status refresh + carry-over

  Admin:
    POST   /api/admin/refresh                      Run the nightly refresh now
    GET    /api/admin/refresh-runs                 Recorded refresh runs

  Scenarios:
    GET    /api/scenarios                          List demo scenarios
    GET    /api/scenarios/current                  Currently loaded scenario
    POST   /api/scenarios/load                     Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator struct tags)
  3. Call installment.Service
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Schedule or installment not found
  - 409: Manual transition not allowed from current status
  - 500: Internal errors
  Refused edits are not errors here: they answer 200 with "ignored": true
  and the unchanged schedule, so a UI can treat them as an ignored click.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/installment-engine/factory"
	"github.com/warp/installment-engine/installment"
	"github.com/warp/installment-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RunStore records nightly refresh runs. *sqlite.Store implements it.
type RunStore interface {
	SaveRefreshRun(ctx context.Context, run sqlite.RefreshRun) error
	GetRefreshRuns(ctx context.Context, status string, limit int) ([]sqlite.RefreshRun, error)
	IsRefreshComplete(ctx context.Context, asOf string) (bool, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service   *installment.Service
	Runs      RunStore
	Plans     *factory.PlanFactory
	Scheduler *RefreshScheduler
	Log       logrus.FieldLogger

	validate *validator.Validate

	// scenarioMu serializes scenario loads and guards currentScenario.
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. runs may be nil when refresh runs are not
// recorded.
func NewHandler(svc *installment.Service, runs RunStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = svc.Log
	}
	return &Handler{
		Service:  svc,
		Runs:     runs,
		Plans:    factory.NewPlanFactory(),
		Log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// SCHEDULE ENDPOINTS
// =============================================================================

// ListSchedules returns all schedules without summaries.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Service.List(r.Context())
	if err != nil {
		h.handleError(w, r, "failed to list schedules", err)
		return
	}
	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = toScheduleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSchedule builds and stores a schedule from a plan.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	plan, err := h.Plans.FromJSON(req)
	if err != nil {
		h.handleError(w, r, "invalid plan", err)
		return
	}
	sched, err := h.Service.Create(r.Context(), plan)
	if err != nil {
		h.handleError(w, r, "failed to create schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.withSummary(sched))
}

// GetSchedule returns one schedule and its summary as of today.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Service.Get(r.Context(), scheduleID(r))
	if err != nil {
		h.handleError(w, r, "failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.withSummary(sched))
}

// DeleteSchedule removes a schedule.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), scheduleID(r)); err != nil {
		h.handleError(w, r, "failed to delete schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPlan returns the plan JSON a schedule can be rebuilt from.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Service.Get(r.Context(), scheduleID(r))
	if err != nil {
		h.handleError(w, r, "failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Plans.ToJSON(sched))
}

// GetValidation runs the validator over a stored schedule.
func (h *Handler) GetValidation(w http.ResponseWriter, r *http.Request) {
	ok, issues, err := h.Service.Validate(r.Context(), scheduleID(r))
	if err != nil {
		h.handleError(w, r, "failed to validate schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationResponse{Valid: ok, Issues: toIssueDTOs(issues)})
}

// =============================================================================
// EDIT ENDPOINTS
// =============================================================================

// Distribute spreads the total evenly over editable installments.
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Service.Redistribute(r.Context(), scheduleID(r))
	h.writeMutation(w, r, sched, err)
}

// EditAmount changes one installment amount.
func (h *Handler) EditAmount(w http.ResponseWriter, r *http.Request) {
	n, ok := installmentNumber(w, r)
	if !ok {
		return
	}
	var req EditAmountRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	sched, err := h.Service.EditAmount(r.Context(), scheduleID(r), n, amount, installment.EditMode(req.Mode))
	h.writeMutation(w, r, sched, err)
}

// EditDate moves one installment.
func (h *Handler) EditDate(w http.ResponseWriter, r *http.Request) {
	n, ok := installmentNumber(w, r)
	if !ok {
		return
	}
	var req EditDateRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	date, err := installment.ParseDate(req.DueDate)
	if err != nil {
		h.handleError(w, r, "invalid due date", err)
		return
	}
	sched, err := h.Service.EditDate(r.Context(), scheduleID(r), n, date)
	h.writeMutation(w, r, sched, err)
}

// SetLocked pins or releases one installment amount.
func (h *Handler) SetLocked(w http.ResponseWriter, r *http.Request) {
	n, ok := installmentNumber(w, r)
	if !ok {
		return
	}
	var req LockRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	sched, err := h.Service.SetLocked(r.Context(), scheduleID(r), n, *req.Locked)
	h.writeMutation(w, r, sched, err)
}

// AddItem appends an installment to a CUSTOM schedule.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	date, err := installment.ParseDate(req.DueDate)
	if err != nil {
		h.handleError(w, r, "invalid due date", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	sched, err := h.Service.AddItem(r.Context(), scheduleID(r), date, amount)
	h.writeMutation(w, r, sched, err)
}

// RemoveLastItem drops the newest installment of a CUSTOM schedule.
func (h *Handler) RemoveLastItem(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Service.RemoveLastItem(r.Context(), scheduleID(r))
	h.writeMutation(w, r, sched, err)
}

// CancelItem marks one installment CANCELLED.
func (h *Handler) CancelItem(w http.ResponseWriter, r *http.Request) {
	n, ok := installmentNumber(w, r)
	if !ok {
		return
	}
	sched, err := h.Service.Cancel(r.Context(), scheduleID(r), n)
	h.writeMutation(w, r, sched, err)
}

// WriteOffItem marks one installment WRITTEN_OFF.
func (h *Handler) WriteOffItem(w http.ResponseWriter, r *http.Request) {
	n, ok := installmentNumber(w, r)
	if !ok {
		return
	}
	sched, err := h.Service.WriteOff(r.Context(), scheduleID(r), n)
	h.writeMutation(w, r, sched, err)
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

// ApplyPayment cascades a payment over the schedule.
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	start := req.InstallmentNumber
	if start == 0 {
		start = 1
	}

	result, sched, err := h.Service.ApplyPayment(r.Context(), scheduleID(r), start, amount)
	if err != nil {
		h.handleError(w, r, "failed to apply payment", err)
		return
	}

	resp := PaymentResponse{
		Schedule:        h.withSummary(sched),
		Entries:         toCascadeEntryDTOs(result.Entries),
		TotalProcessed:  result.TotalProcessed,
		RemainingAmount: result.RemainingAmount,
		Overpayment:     result.IsOverpayment(),
	}
	if resp.Overpayment {
		resp.Notice = fmt.Sprintf("payment exceeds outstanding balance by %s", result.RemainingAmount.StringFixed(2))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh recomputes statuses and carries overdue balances forward.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of", err)
		return
	}
	asOf := h.Service.Today()
	if req.AsOf != "" {
		d, err := installment.ParseDate(req.AsOf)
		if err != nil {
			h.handleError(w, r, "invalid as_of", err)
			return
		}
		asOf = d
	}

	sched, carried, err := h.Service.Refresh(r.Context(), scheduleID(r), asOf)
	if err != nil {
		h.handleError(w, r, "failed to refresh schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Schedule: h.withSummary(sched), AsOf: asOf, Carried: carried})
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// TriggerRefresh runs the nightly refresh over every schedule immediately.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	sched := h.Scheduler
	if sched == nil {
		sched = NewRefreshScheduler(h.Service, h.Runs, h.Log)
	}
	report, err := sched.RunNow(r.Context())
	if err != nil {
		h.handleError(w, r, "refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRefreshRuns returns recorded refresh runs, newest first.
func (h *Handler) ListRefreshRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeJSON(w, http.StatusOK, []RefreshRunDTO{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Runs.GetRefreshRuns(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.handleError(w, r, "failed to list refresh runs", err)
		return
	}
	dtos := make([]RefreshRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRefreshRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports whether the server is up and its database reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Runs.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) withSummary(sched installment.Schedule) ScheduleDTO {
	dto := toScheduleDTO(sched)
	today := h.Service.Today()
	dto.Summary = toSummaryDTO(installment.Summarize(
		installment.RefreshStatuses(sched.Items, today), sched.TotalAmount, today))
	return dto
}

// writeMutation answers an edit. A refused edit is a 200 with the schedule
// unchanged.
func (h *Handler) writeMutation(w http.ResponseWriter, r *http.Request, sched installment.Schedule, err error) {
	if err != nil && !installment.IsSoftRefusal(err) {
		h.handleError(w, r, "failed to update schedule", err)
		return
	}
	resp := MutationResponse{Schedule: h.withSummary(sched)}
	if err != nil {
		resp.Ignored = true
		resp.Reason = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeRequest decodes the body into dst and runs its validate tags. It
// writes the 400 itself and returns false on failure.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldErrorDTO, len(verrs))
			for i, fe := range verrs {
				fields[i] = FieldErrorDTO{Field: jsonField(fe.Field()), Rule: fe.Tag()}
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation failed",
				Code:    "INVALID_ARGUMENT",
				Details: fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

// handleError maps engine errors to HTTP statuses.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var status int
	var code string
	switch {
	case installment.IsNotFound(err):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, installment.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case installment.IsClientError(err):
		status, code = http.StatusBadRequest, "INVALID_ARGUMENT"
	default:
		status = http.StatusInternalServerError
		h.Log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error(message)
	}

	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	var argErr *installment.InvalidArgumentError
	if errors.As(err, &argErr) {
		resp.Details = FieldErrorDTO{Field: argErr.Field, Rule: argErr.Reason}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func scheduleID(r *http.Request) installment.ScheduleID {
	return installment.ScheduleID(chi.URLParam(r, "id"))
}

func installmentNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "installment number must be a positive integer", err)
		return 0, false
	}
	return n, true
}

// jsonField converts a Go field name to the snake_case key clients send.
func jsonField(name string) string {
	var b strings.Builder
	for i, c := range name {
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(c + ('a' - 'A'))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
