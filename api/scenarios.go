/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	schedules for testing and demos. Each scenario creates schedules through
	the plan factory and the service, then replays payments and edits that
	demonstrate specific features.

AVAILABLE SCENARIOS:

	new-loan:        Monthly loan, nothing paid yet
	missed-payments: Weekly receivable with partial and missed installments,
	                 refreshed so overdue balances carry forward
	paid-off:        Cash advance settled with a single overpayment
	custom-budget:   Hand-built budget release with a locked first tranche
	                 and a forward-only amount edit
	written-off:     Loan whose late installment was written off

HOW SCENARIOS WORK:
 1. Delete every schedule
 2. Build plans from factory presets (dates relative to today)
 3. Create schedules through the service
 4. Apply payments, edits, and refreshes

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "missed-payments"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to scenarioLoaders

NOTE:

	Scenarios delete all schedules. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Schedule endpoints
  - factory/presets.go: Plan JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/installment-engine/factory"
	"github.com/warp/installment-engine/installment"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-loan",
		Name:        "New Loan",
		Description: "A 12,000 loan repaid over 12 months, starting next month",
		Kind:        string(installment.KindLoan),
	},
	{
		ID:          "missed-payments",
		Name:        "Missed Payments",
		Description: "Weekly receivable with a partial payment and missed weeks; overdue balances carried forward",
		Kind:        string(installment.KindReceivable),
	},
	{
		ID:          "paid-off",
		Name:        "Paid Off Early",
		Description: "Cash advance settled at once; the excess is reported as an overpayment",
		Kind:        string(installment.KindCashAdvance),
	},
	{
		ID:          "custom-budget",
		Name:        "Custom Budget",
		Description: "Three hand-placed budget releases, first one locked, second edited forward-only",
		Kind:        string(installment.KindBudget),
	},
	{
		ID:          "written-off",
		Name:        "Written Off",
		Description: "Loan with one installment written off after it went overdue",
		Kind:        string(installment.KindLoan),
	},
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"new-loan":        h.loadNewLoanScenario,
		"missed-payments": h.loadMissedPaymentsScenario,
		"paid-off":        h.loadPaidOffScenario,
		"custom-budget":   h.loadCustomBudgetScenario,
		"written-off":     h.loadWrittenOffScenario,
	}
}

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.loadedScenario()
	for _, s := range scenarios {
		if current != "" && s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

func (h *Handler) loadedScenario() string {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	return h.currentScenario
}

// LoadScenario deletes all schedules and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	load, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	// A load replaces every schedule, so two loads must not interleave.
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	if err := h.clearSchedules(ctx); err != nil {
		h.handleError(w, r, "failed to clear schedules", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		h.handleError(w, r, "failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Log.WithField("scenario", req.ScenarioID).Info("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

func (h *Handler) clearSchedules(ctx context.Context) error {
	schedules, err := h.Service.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range schedules {
		if err := h.Service.Delete(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadNewLoanScenario(ctx context.Context) error {
	start := h.Service.Today().AddMonthsClamped(1)
	_, err := h.createFromJSON(ctx, factory.LoanPlanJSON("LOAN-1001", "12000.00", start.String(), 12))
	return err
}

func (h *Handler) loadMissedPaymentsScenario(ctx context.Context) error {
	today := h.Service.Today()
	start := today.AddDays(-21)
	sched, err := h.createFromJSON(ctx, factory.ReceivablePlanJSON("AR-2002", "6400.00", start.String(), 8))
	if err != nil {
		return err
	}

	// Week 1 gets a partial payment, weeks 2 and 3 are missed.
	if _, _, err := h.Service.ApplyPayment(ctx, sched.ID, 1, decimal.RequireFromString("300.00")); err != nil {
		return err
	}
	_, _, err = h.Service.Refresh(ctx, sched.ID, today)
	return err
}

func (h *Handler) loadPaidOffScenario(ctx context.Context) error {
	start := h.Service.Today().AddMonthsClamped(1)
	sched, err := h.createFromJSON(ctx, factory.CashAdvancePlanJSON("ADV-3003", "1500.00", start.String(), 3))
	if err != nil {
		return err
	}
	_, _, err = h.Service.ApplyPayment(ctx, sched.ID, 1, decimal.RequireFromString("1600.00"))
	return err
}

func (h *Handler) loadCustomBudgetScenario(ctx context.Context) error {
	today := h.Service.Today()
	sched, err := h.createFromJSON(ctx, factory.BudgetPlanJSON("BUD-4004", "10000.00",
		factory.InstallmentJSON{DueDate: today.AddDays(10).String(), Amount: "5000.00"},
		factory.InstallmentJSON{DueDate: today.AddDays(40).String(), Amount: "3000.00"},
		factory.InstallmentJSON{DueDate: today.AddDays(70).String(), Amount: "2000.00"},
	))
	if err != nil {
		return err
	}

	if _, err := h.Service.SetLocked(ctx, sched.ID, 1, true); err != nil {
		return err
	}
	_, err = h.Service.EditAmount(ctx, sched.ID, 2, decimal.RequireFromString("2500.00"), installment.EditForward)
	return err
}

func (h *Handler) loadWrittenOffScenario(ctx context.Context) error {
	today := h.Service.Today()
	start := today.AddMonthsClamped(-4)
	sched, err := h.createFromJSON(ctx, factory.LoanPlanJSON("LOAN-5005", "3000.00", start.String(), 6))
	if err != nil {
		return err
	}

	// #1 and #2 paid on time, #3 abandoned.
	if _, _, err := h.Service.ApplyPayment(ctx, sched.ID, 1, decimal.RequireFromString("1000.00")); err != nil {
		return err
	}
	if _, err := h.Service.WriteOff(ctx, sched.ID, 3); err != nil {
		return err
	}
	_, _, err = h.Service.Refresh(ctx, sched.ID, today)
	return err
}

func (h *Handler) createFromJSON(ctx context.Context, jsonStr string) (installment.Schedule, error) {
	plan, err := h.Plans.ParsePlan(jsonStr)
	if err != nil {
		return installment.Schedule{}, err
	}
	return h.Service.Create(ctx, plan)
}
