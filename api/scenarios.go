/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates projects, users,
	timesheets, approvals, and time entries that demonstrate specific
	billing behaviors.

AVAILABLE SCENARIOS:

	consulting-month:      Two projects, three consultants, one adjusted
	adjusted-week:         Single project week with a management reduction
	partial-verification:  Mixed verified/unverified timesheets

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Insert projects and users
 3. Insert timesheets and their verified approvals
 4. Insert per-task time entries
 5. Optionally commit a management adjustment

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "consulting-month"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
  - server.go: Route wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "consulting-month",
		Name:        "Consulting Month",
		Description: "Two projects, three consultants, one management adjustment",
		Category:    "billing",
	},
	{
		ID:          "adjusted-week",
		Name:        "Adjusted Week",
		Description: "Single project week: 40 worked, 35 approved, reduced to 38",
		Category:    "billing",
	},
	{
		ID:          "partial-verification",
		Name:        "Partial Verification",
		Description: "Verified and unverified timesheets on the same project",
		Category:    "billing",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "consulting-month":
		err = h.loadConsultingMonthScenario(ctx)
	case "adjusted-week":
		err = h.loadAdjustedWeekScenario(ctx)
	case "partial-verification":
		err = h.loadPartialVerificationScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedResource inserts a frozen, management-verified timesheet with its
// approval in one shot. Most scenarios only vary in these rows.
func (h *Handler) seedResource(ctx context.Context, timesheetID billing.TimesheetID, projectID billing.ProjectID, userID billing.UserID, period billing.Period, worked, managerAdj float64, entries int) error {
	if err := h.Store.InsertTimesheet(ctx, timesheetID, userID, billing.StatusFrozen); err != nil {
		return err
	}
	rec := billing.ApprovalRecord{
		ProjectID:         projectID,
		UserID:            userID,
		PeriodStart:       period.Start,
		PeriodEnd:         period.End,
		WorkedHours:       billing.NewHours(worked),
		BaseBillableHours: billing.NewHours(worked + managerAdj),
		ManagerAdjustment: billing.NewHours(managerAdj),
		VerifiedAt:        period.End.Time().Add(18 * time.Hour),
		EntriesCount:      entries,
	}
	return h.Store.InsertApproval(ctx, rec, timesheetID, true)
}

func (h *Handler) loadConsultingMonthScenario(ctx context.Context) error {
	period := billing.NewPeriod(billing.NewDate(2025, 7, 1), billing.NewDate(2025, 7, 31))

	projects := []billing.Project{
		{ID: "proj-atlas", ClientID: "client-acme", Name: "Atlas Platform"},
		{ID: "proj-orion", ClientID: "client-acme", Name: "Orion Migration"},
	}
	for _, p := range projects {
		if err := h.Store.InsertProject(ctx, p); err != nil {
			return err
		}
	}

	users := []billing.User{
		{ID: "user-mvela", FullName: "Maria Vela", Role: "Senior Engineer", HourlyRate: decimal.NewFromInt(145)},
		{ID: "user-jkow", FullName: "Jan Kowalski", Role: "Engineer", HourlyRate: decimal.NewFromInt(110)},
		{ID: "user-ttran", FullName: "Thu Tran", Role: "Data Analyst", HourlyRate: decimal.NewFromInt(95)},
	}
	for _, u := range users {
		if err := h.Store.InsertUser(ctx, u); err != nil {
			return err
		}
	}

	type seed struct {
		ts         billing.TimesheetID
		project    billing.ProjectID
		user       billing.UserID
		worked     float64
		managerAdj float64
	}
	seeds := []seed{
		{"ts-atlas-mvela", "proj-atlas", "user-mvela", 152, -8},
		{"ts-atlas-jkow", "proj-atlas", "user-jkow", 160, 0},
		{"ts-orion-ttran", "proj-orion", "user-ttran", 140, 4},
	}
	for _, s := range seeds {
		if err := h.seedResource(ctx, s.ts, s.project, s.user, period, s.worked, s.managerAdj, 20); err != nil {
			return err
		}
	}

	entries := []billing.TimeEntry{
		{TimesheetID: "ts-atlas-mvela", ProjectID: "proj-atlas", TaskID: "task-api", TaskName: "API Development", Date: billing.NewDate(2025, 7, 3), Hours: billing.NewHours(90), Billable: true, Category: billing.CategoryProject},
		{TimesheetID: "ts-atlas-mvela", ProjectID: "proj-atlas", TaskID: "task-review", TaskName: "Code Review", Date: billing.NewDate(2025, 7, 10), Hours: billing.NewHours(62), Billable: true, Category: billing.CategoryProject},
		{TimesheetID: "ts-atlas-jkow", ProjectID: "proj-atlas", TaskID: "task-api", TaskName: "API Development", Date: billing.NewDate(2025, 7, 7), Hours: billing.NewHours(120), Billable: true, Category: billing.CategoryProject},
		{TimesheetID: "ts-atlas-jkow", ProjectID: "proj-atlas", TaskID: "task-onboard", TaskName: "Team Onboarding", Date: billing.NewDate(2025, 7, 15), Hours: billing.NewHours(40), Billable: false, Category: billing.CategoryInternal},
		{TimesheetID: "ts-orion-ttran", ProjectID: "proj-orion", TaskID: "task-etl", TaskName: "ETL Pipeline", Date: billing.NewDate(2025, 7, 9), Hours: billing.NewHours(140), Billable: true, Category: billing.CategoryProject},
	}
	for _, e := range entries {
		if err := h.Store.InsertTimeEntry(ctx, e); err != nil {
			return err
		}
	}

	// One committed reduction on Atlas: Maria billed at 140 instead of 144.
	_, err := h.Committer.Apply(ctx, billing.AdjustmentRequest{
		ProjectID:     "proj-atlas",
		UserID:        "user-mvela",
		Period:        period,
		BillableHours: billing.NewHours(140),
		Reason:        "Client budget cap for July",
		ActorID:       "pm-dlopez",
	})
	return err
}

func (h *Handler) loadAdjustedWeekScenario(ctx context.Context) error {
	period := billing.NewPeriod(billing.NewDate(2025, 8, 4), billing.NewDate(2025, 8, 10))

	if err := h.Store.InsertProject(ctx, billing.Project{ID: "proj-nova", ClientID: "client-globex", Name: "Nova Rollout"}); err != nil {
		return err
	}
	if err := h.Store.InsertUser(ctx, billing.User{ID: "user-fbauer", FullName: "Franka Bauer", Role: "Consultant", HourlyRate: decimal.NewFromInt(130)}); err != nil {
		return err
	}

	// 40 worked, manager removed 5, management pushed final up to 38.
	if err := h.seedResource(ctx, "ts-nova-fbauer", "proj-nova", "user-fbauer", period, 40, -5, 5); err != nil {
		return err
	}

	for day := 0; day < 5; day++ {
		e := billing.TimeEntry{
			TimesheetID: "ts-nova-fbauer",
			ProjectID:   "proj-nova",
			TaskID:      "task-rollout",
			TaskName:    "Rollout Support",
			Date:        billing.NewDate(2025, 8, 4+day),
			Hours:       billing.NewHours(8),
			Billable:    true,
			Category:    billing.CategoryProject,
		}
		if err := h.Store.InsertTimeEntry(ctx, e); err != nil {
			return err
		}
	}

	_, err := h.Committer.Apply(ctx, billing.AdjustmentRequest{
		ProjectID:     "proj-nova",
		UserID:        "user-fbauer",
		Period:        period,
		BillableHours: billing.NewHours(38),
		Reason:        "Restored on-call hours after client sign-off",
		ActorID:       "pm-dlopez",
	})
	return err
}

func (h *Handler) loadPartialVerificationScenario(ctx context.Context) error {
	period := billing.NewPeriod(billing.NewDate(2025, 8, 1), billing.NewDate(2025, 8, 31))

	if err := h.Store.InsertProject(ctx, billing.Project{ID: "proj-helix", ClientID: "client-initech", Name: "Helix Audit"}); err != nil {
		return err
	}

	users := []billing.User{
		{ID: "user-achen", FullName: "Amy Chen", Role: "Auditor", HourlyRate: decimal.NewFromInt(120)},
		{ID: "user-rmeyer", FullName: "Rolf Meyer", Role: "Auditor", HourlyRate: decimal.NewFromInt(120)},
	}
	for _, u := range users {
		if err := h.Store.InsertUser(ctx, u); err != nil {
			return err
		}
	}

	// Amy's timesheet is frozen and verified; her hours appear in reports.
	if err := h.seedResource(ctx, "ts-helix-achen", "proj-helix", "user-achen", period, 120, 0, 15); err != nil {
		return err
	}
	if err := h.Store.InsertTimeEntry(ctx, billing.TimeEntry{
		TimesheetID: "ts-helix-achen",
		ProjectID:   "proj-helix",
		TaskID:      "task-audit",
		TaskName:    "Controls Audit",
		Date:        billing.NewDate(2025, 8, 12),
		Hours:       billing.NewHours(120),
		Billable:    true,
		Category:    billing.CategoryProject,
	}); err != nil {
		return err
	}

	// Rolf's timesheet is still submitted and not management-verified, so
	// none of his hours count, not even partially.
	if err := h.Store.InsertTimesheet(ctx, "ts-helix-rmeyer", "user-rmeyer", billing.StatusSubmitted); err != nil {
		return err
	}
	rec := billing.ApprovalRecord{
		ProjectID:         "proj-helix",
		UserID:            "user-rmeyer",
		PeriodStart:       period.Start,
		PeriodEnd:         period.End,
		WorkedHours:       billing.NewHours(96),
		BaseBillableHours: billing.NewHours(96),
		ManagerAdjustment: billing.ZeroHours(),
		VerifiedAt:        time.Time{},
		EntriesCount:      12,
	}
	return h.Store.InsertApproval(ctx, rec, "ts-helix-rmeyer", false)
}
