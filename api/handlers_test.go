/*
handlers_test.go - HTTP-level tests for the billing API

Tests run against a real router and an in-memory SQLite store, seeded
through the scenario loaders, so they cover the full request path:
routing, validation, domain logic, and persistence.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(store, zerolog.Nop())
	server := httptest.NewServer(NewRouter(handler, []string{"*"}))
	t.Cleanup(server.Close)
	return handler, server
}

func loadScenario(t *testing.T, server *httptest.Server, id string) {
	t.Helper()

	body := fmt.Sprintf(`{"scenario_id": %q}`, id)
	resp, err := http.Post(server.URL+"/api/scenarios/load", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	_, server := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, server.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestGetBillingReport_AdjustedWeek(t *testing.T) {
	_, server := newTestServer(t)
	loadScenario(t, server, "adjusted-week")

	var report []ProjectBillingDTO
	resp := getJSON(t, server.URL+"/api/billing/projects?period_start=2025-08-04&period_end=2025-08-10", &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, report, 1)

	project := report[0]
	assert.Equal(t, "proj-nova", project.ProjectID)
	require.Len(t, project.Resources, 1)

	// 40 worked, manager -5 -> base 35, management +3 -> final 38.
	res := project.Resources[0]
	assert.Equal(t, 40.0, res.WorkedHours)
	assert.Equal(t, -5.0, res.ManagerAdjustment)
	assert.Equal(t, 35.0, res.BaseBillableHours)
	assert.Equal(t, 3.0, res.ManagementAdjustment)
	assert.Equal(t, 38.0, res.FinalBillableHours)
	assert.Equal(t, 2.0, res.NonBillableHours)
	assert.Equal(t, 4940.0, res.TotalAmount)
	assert.NotNil(t, res.AdjustedAt)

	require.NotNil(t, project.Verification)
	assert.Equal(t, 1, project.Verification.ResourceCount)
}

func TestGetBillingReport_RequiresPeriod(t *testing.T) {
	_, server := newTestServer(t)

	resp := getJSON(t, server.URL+"/api/billing/projects", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, server.URL+"/api/billing/projects?period_start=2025-08-10&period_end=2025-08-04", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetBillingReport_PartialVerification(t *testing.T) {
	_, server := newTestServer(t)
	loadScenario(t, server, "partial-verification")

	var report []ProjectBillingDTO
	resp := getJSON(t, server.URL+"/api/billing/projects?period_start=2025-08-01&period_end=2025-08-31", &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, report, 1)

	// Only the verified resource appears; the unverified one contributes
	// nothing, not a partial amount.
	project := report[0]
	require.Len(t, project.Resources, 1)
	assert.Equal(t, "user-achen", project.Resources[0].UserID)
	assert.Equal(t, 120.0, project.BillableHours)
}

func TestCommitAndDeleteAdjustment(t *testing.T) {
	_, server := newTestServer(t)
	loadScenario(t, server, "partial-verification")

	payload := `{
		"project_id": "proj-helix",
		"user_id": "user-achen",
		"period_start": "2025-08-01",
		"period_end": "2025-08-31",
		"billable_hours": 110,
		"reason": "scope reduction",
		"adjusted_by": "pm-test"
	}`
	resp, err := http.Post(server.URL+"/api/billing/adjustments", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var adj AdjustmentDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&adj))
	assert.Equal(t, -10.0, adj.AdjustmentHours)
	assert.Equal(t, 120.0, adj.OriginalBillableHours)
	assert.Equal(t, 110.0, adj.AdjustedBillableHours)

	// The report now reflects the committed reduction.
	var report []ProjectBillingDTO
	getJSON(t, server.URL+"/api/billing/projects?period_start=2025-08-01&period_end=2025-08-31", &report)
	assert.Equal(t, 110.0, report[0].Resources[0].FinalBillableHours)
	assert.Equal(t, 10.0, report[0].Resources[0].NonBillableHours)

	// List shows exactly one active adjustment.
	var active []AdjustmentDTO
	getJSON(t, server.URL+"/api/billing/adjustments?project_id=proj-helix&period_start=2025-08-01&period_end=2025-08-31", &active)
	require.Len(t, active, 1)

	// Withdraw it and the base comes back.
	req, err := http.NewRequest(http.MethodDelete,
		server.URL+"/api/billing/adjustments?project_id=proj-helix&user_id=user-achen&period_start=2025-08-01&period_end=2025-08-31&actor=pm-test", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	getJSON(t, server.URL+"/api/billing/projects?period_start=2025-08-01&period_end=2025-08-31", &report)
	assert.Equal(t, 120.0, report[0].Resources[0].FinalBillableHours)
}

func TestCommitAdjustment_NoApprovedData(t *testing.T) {
	_, server := newTestServer(t)
	loadScenario(t, server, "partial-verification")

	// user-rmeyer exists but has no management-verified data.
	payload := `{
		"project_id": "proj-helix",
		"user_id": "user-rmeyer",
		"period_start": "2025-08-01",
		"period_end": "2025-08-31",
		"billable_hours": 50,
		"reason": "attempt",
		"adjusted_by": "pm-test"
	}`
	resp, err := http.Post(server.URL+"/api/billing/adjustments", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommitAdjustment_ValidationFailure(t *testing.T) {
	_, server := newTestServer(t)

	payload := `{"project_id": "", "user_id": "u", "period_start": "2025-08-01", "period_end": "2025-08-31", "billable_hours": 10, "reason": "r", "adjusted_by": "a"}`
	resp, err := http.Post(server.URL+"/api/billing/adjustments", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAdjustment_NotFound(t *testing.T) {
	_, server := newTestServer(t)
	loadScenario(t, server, "partial-verification")

	req, err := http.NewRequest(http.MethodDelete,
		server.URL+"/api/billing/adjustments?project_id=proj-helix&user_id=user-achen&period_start=2025-08-01&period_end=2025-08-31", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDistributePreview(t *testing.T) {
	_, server := newTestServer(t)
	loadScenario(t, server, "adjusted-week")

	payload := `{
		"project_id": "proj-nova",
		"period_start": "2025-08-04",
		"period_end": "2025-08-10",
		"target_total_billable": 40
	}`
	resp, err := http.Post(server.URL+"/api/billing/distribute", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result DistributionResultDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	// Single resource at final 38 worked 40: target climbs to the
	// requested 40 and stays within worked hours.
	assert.Equal(t, 38.0, result.CurrentTotal)
	assert.Equal(t, 40.0, result.RequestedTotal)
	assert.Equal(t, 40.0, result.AllocatedTotal)
	assert.Equal(t, 0.0, result.UnallocatedHours)
	require.Len(t, result.Targets, 1)
	assert.Equal(t, 40.0, result.Targets[0].TargetHours)
	assert.Equal(t, 2.0, result.Targets[0].Delta)
}

func TestScenarioEndpoints(t *testing.T) {
	_, server := newTestServer(t)

	var list []ScenarioDTO
	resp := getJSON(t, server.URL+"/api/scenarios/", &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, list)

	loadScenario(t, server, "consulting-month")

	var current ScenarioDTO
	getJSON(t, server.URL+"/api/scenarios/current", &current)
	assert.Equal(t, "consulting-month", current.ID)

	// Unknown scenario is rejected.
	resp, err := http.Post(server.URL+"/api/scenarios/load", "application/json", bytes.NewBufferString(`{"scenario_id": "nope"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConsultingMonthReport(t *testing.T) {
	_, server := newTestServer(t)
	loadScenario(t, server, "consulting-month")

	var report []ProjectBillingDTO
	resp := getJSON(t, server.URL+"/api/billing/projects?period_start=2025-07-01&period_end=2025-07-31&client_ids=client-acme", &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, report, 2)

	byID := map[string]ProjectBillingDTO{}
	for _, p := range report {
		byID[p.ProjectID] = p
	}

	atlas := byID["proj-atlas"]
	require.Len(t, atlas.Resources, 2)

	// Maria: worked 152, base 144, committed down to 140.
	var maria ResourceBillingDTO
	for _, r := range atlas.Resources {
		if r.UserID == "user-mvela" {
			maria = r
		}
	}
	assert.Equal(t, 144.0, maria.BaseBillableHours)
	assert.Equal(t, 140.0, maria.FinalBillableHours)
	assert.Equal(t, -4.0, maria.ManagementAdjustment)

	orion := byID["proj-orion"]
	require.Len(t, orion.Resources, 1)
	assert.Equal(t, 144.0, orion.Resources[0].FinalBillableHours)
}
