/*
handlers.go - HTTP API handlers for the billing aggregation engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Billing:
    GET    /api/billing/projects       Aggregated billing report
    POST   /api/billing/distribute     Preview proportional distribution

  Adjustments:
    GET    /api/billing/adjustments    List active adjustments
    POST   /api/billing/adjustments    Commit (upsert) an adjustment
    DELETE /api/billing/adjustments    Withdraw an adjustment

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/admin/reset            Clear all data

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator for JSON bodies)
  3. Call domain logic (report builder, committer, distribution)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid period
  - 404: No approved data, adjustment not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Builder   *billing.ReportBuilder
	Committer *billing.AdjustmentCommitter

	validate *validator.Validate
	log      zerolog.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Builder:   billing.NewReportBuilder(store, store, store, store, store, log),
		Committer: billing.NewAdjustmentCommitter(store, store, log),
		validate:  validator.New(),
		log:       log,
	}
}

// =============================================================================
// BILLING REPORT HANDLERS
// =============================================================================

// GetBillingReport returns aggregated billing data for matching projects.
//
// Query parameters:
//   - project_ids: comma-separated project IDs (optional)
//   - client_ids:  comma-separated client IDs (optional)
//   - period_start, period_end: YYYY-MM-DD (required)
func (h *Handler) GetBillingReport(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriodQuery(w, r)
	if !ok {
		return
	}

	projectIDs := splitIDParam[billing.ProjectID](r.URL.Query().Get("project_ids"))
	clientIDs := splitIDParam[billing.ClientID](r.URL.Query().Get("client_ids"))

	report, err := h.Builder.BuildProjectBillingData(r.Context(), projectIDs, clientIDs, period)
	if err != nil {
		if billing.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid billing query", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to build billing report", err)
		return
	}

	dtos := make([]ProjectBillingDTO, len(report))
	for i, p := range report {
		dtos[i] = toProjectBillingDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DistributePreview computes per-resource billable targets for a requested
// project total without persisting anything.
func (h *Handler) DistributePreview(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	projectID := billing.ProjectID(req.ProjectID)
	report, err := h.Builder.BuildProjectBillingData(r.Context(), []billing.ProjectID{projectID}, nil, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build billing report", err)
		return
	}
	if len(report) == 0 {
		writeError(w, http.StatusNotFound, "Project not found", nil)
		return
	}

	target := billing.NewHours(req.TargetTotalBillable)
	result := billing.CalculateProjectBillableTargets(report[0].Resources, target)
	writeJSON(w, http.StatusOK, toDistributionResultDTO(result))
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// CommitAdjustment upserts a management adjustment so the resource's final
// billable hours land on the requested value.
func (h *Handler) CommitAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CommitAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	adj, err := h.Committer.Apply(r.Context(), billing.AdjustmentRequest{
		ProjectID:     billing.ProjectID(req.ProjectID),
		UserID:        billing.UserID(req.UserID),
		Period:        period,
		BillableHours: billing.NewHours(req.BillableHours),
		Reason:        req.Reason,
		ActorID:       req.AdjustedBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoApprovedData):
			writeError(w, http.StatusNotFound, "No approved data for resource in period", err)
		case billing.IsClientError(err):
			writeError(w, http.StatusBadRequest, "Invalid adjustment", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to commit adjustment", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toAdjustmentDTO(*adj))
}

// DeleteAdjustment withdraws the active adjustment for the key, restoring
// manager-approved hours as the billable baseline.
//
// Query parameters: project_id, user_id, period_start, period_end, actor.
func (h *Handler) DeleteAdjustment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID := billing.ProjectID(q.Get("project_id"))
	userID := billing.UserID(q.Get("user_id"))
	if projectID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "project_id and user_id are required", nil)
		return
	}

	period, ok := parsePeriodQuery(w, r)
	if !ok {
		return
	}

	actor := q.Get("actor")
	if actor == "" {
		actor = "admin"
	}

	err := h.Committer.Remove(r.Context(), projectID, userID, period, actor)
	if err != nil {
		if errors.Is(err, billing.ErrAdjustmentNotFound) {
			writeError(w, http.StatusNotFound, "No active adjustment for key", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete adjustment", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListAdjustments returns active adjustments for a project and period.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	projectID := billing.ProjectID(r.URL.Query().Get("project_id"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required", nil)
		return
	}

	period, ok := parsePeriodQuery(w, r)
	if !ok {
		return
	}

	adjustments, err := h.Store.ListActive(r.Context(), projectID, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list adjustments", err)
		return
	}

	dtos := make([]AdjustmentDTO, len(adjustments))
	for i, a := range adjustments {
		dtos[i] = toAdjustmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

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

func parsePeriod(start, end string) (billing.Period, error) {
	s, err := billing.ParseDate(start)
	if err != nil {
		return billing.Period{}, err
	}
	e, err := billing.ParseDate(end)
	if err != nil {
		return billing.Period{}, err
	}
	p := billing.NewPeriod(s, e)
	return p, p.Validate()
}

// parsePeriodQuery reads period_start/period_end query parameters and writes
// a 400 response itself when they are missing or malformed.
func parsePeriodQuery(w http.ResponseWriter, r *http.Request) (billing.Period, bool) {
	q := r.URL.Query()
	start, end := q.Get("period_start"), q.Get("period_end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "period_start and period_end are required (YYYY-MM-DD)", nil)
		return billing.Period{}, false
	}
	period, err := parsePeriod(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return billing.Period{}, false
	}
	return period, true
}

func splitIDParam[T ~string](raw string) []T {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]T, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			ids = append(ids, T(p))
		}
	}
	return ids
}
