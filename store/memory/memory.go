// Package memory provides an in-memory implementation of the billing
// engine's data sources, used by tests and demo scenarios.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - Implements every source interface behind a single mutex
// =============================================================================

type Store struct {
	mu sync.RWMutex

	projects   map[billing.ProjectID]billing.Project
	users      map[billing.UserID]billing.User
	timesheets map[billing.TimesheetID]Timesheet
	approvals  []Approval
	entries    []billing.TimeEntry

	adjustments map[billing.AdjustmentKey]*billing.Adjustment

	now func() time.Time
}

// Timesheet is the minimal timesheet projection the store needs: ownership
// and lifecycle status for billing eligibility.
type Timesheet struct {
	ID     billing.TimesheetID
	UserID billing.UserID
	Status billing.TimesheetStatus
}

// Approval is a stored approval row. Eligibility columns live here; the
// billing.ApprovalRecord returned to the engine is the clean projection.
type Approval struct {
	billing.ApprovalRecord
	TimesheetID        billing.TimesheetID
	ManagementVerified bool
}

func New() *Store {
	return &Store{
		projects:    make(map[billing.ProjectID]billing.Project),
		users:       make(map[billing.UserID]billing.User),
		timesheets:  make(map[billing.TimesheetID]Timesheet),
		adjustments: make(map[billing.AdjustmentKey]*billing.Adjustment),
		now:         time.Now,
	}
}

// SetClock overrides the store's clock. Tests use this to make adjustment
// timestamps deterministic.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// =============================================================================
// SEEDING
// =============================================================================

func (s *Store) AddProject(p billing.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *Store) AddUser(u billing.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) AddTimesheet(ts Timesheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timesheets[ts.ID] = ts
}

func (s *Store) AddApproval(a Approval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals = append(s.approvals, a)
}

func (s *Store) AddTimeEntry(e billing.TimeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make(map[billing.ProjectID]billing.Project)
	s.users = make(map[billing.UserID]billing.User)
	s.timesheets = make(map[billing.TimesheetID]Timesheet)
	s.approvals = nil
	s.entries = nil
	s.adjustments = make(map[billing.AdjustmentKey]*billing.Adjustment)
}

// =============================================================================
// APPROVAL SOURCE
// =============================================================================

func (s *Store) FindApprovedApprovals(_ context.Context, projectIDs []billing.ProjectID, period billing.Period) ([]billing.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := projectSet(projectIDs)
	var out []billing.ApprovalRecord
	for _, a := range s.approvals {
		if !s.eligibleLocked(a) {
			continue
		}
		if _, ok := wanted[a.ProjectID]; !ok {
			continue
		}
		if !period.Covers(billing.Period{Start: a.PeriodStart, End: a.PeriodEnd}) {
			continue
		}
		out = append(out, a.ApprovalRecord)
	}
	return out, nil
}

func (s *Store) FindApprovalTimesheetIDs(_ context.Context, projectIDs []billing.ProjectID) (map[billing.ProjectID][]billing.TimesheetID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := projectSet(projectIDs)
	seen := make(map[billing.ProjectID]map[billing.TimesheetID]struct{})
	for _, a := range s.approvals {
		if !s.eligibleLocked(a) {
			continue
		}
		if _, ok := wanted[a.ProjectID]; !ok {
			continue
		}
		if seen[a.ProjectID] == nil {
			seen[a.ProjectID] = make(map[billing.TimesheetID]struct{})
		}
		seen[a.ProjectID][a.TimesheetID] = struct{}{}
	}

	out := make(map[billing.ProjectID][]billing.TimesheetID, len(seen))
	for pid, ids := range seen {
		for id := range ids {
			out[pid] = append(out[pid], id)
		}
		sort.Slice(out[pid], func(i, j int) bool { return out[pid][i] < out[pid][j] })
	}
	return out, nil
}

// eligibleLocked applies the billing-eligibility contract: management
// verification plus an eligible owning-timesheet status. No partial credit.
func (s *Store) eligibleLocked(a Approval) bool {
	if !a.ManagementVerified {
		return false
	}
	ts, ok := s.timesheets[a.TimesheetID]
	return ok && ts.Status.BillingEligible()
}

// =============================================================================
// TIME ENTRY SOURCE
// =============================================================================

func (s *Store) FindTimeEntries(_ context.Context, timesheetIDs []billing.TimesheetID, userID billing.UserID, projectIDs []billing.ProjectID) ([]billing.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sheets := make(map[billing.TimesheetID]struct{}, len(timesheetIDs))
	for _, id := range timesheetIDs {
		sheets[id] = struct{}{}
	}
	wanted := projectSet(projectIDs)

	var out []billing.TimeEntry
	for _, e := range s.entries {
		if _, ok := sheets[e.TimesheetID]; !ok {
			continue
		}
		ts, ok := s.timesheets[e.TimesheetID]
		if !ok || ts.UserID != userID {
			continue
		}
		if _, ok := wanted[e.ProjectID]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// USER DIRECTORY & PROJECT CATALOG
// =============================================================================

func (s *Store) FindUsers(_ context.Context, userIDs []billing.UserID) ([]billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []billing.User
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) FindProjects(_ context.Context, projectIDs []billing.ProjectID, clientIDs []billing.ClientID) ([]billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := projectSetOptional(projectIDs)
	clients := make(map[billing.ClientID]struct{}, len(clientIDs))
	for _, id := range clientIDs {
		clients[id] = struct{}{}
	}

	var out []billing.Project
	for _, p := range s.projects {
		if ids != nil {
			if _, ok := ids[p.ID]; !ok {
				continue
			}
		}
		if len(clients) > 0 {
			if _, ok := clients[p.ClientID]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ADJUSTMENT STORE - Keyed upsert, at most one active record per key
// =============================================================================

func (s *Store) FindActive(_ context.Context, key billing.AdjustmentKey) (*billing.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj, ok := s.adjustments[key]
	if !ok || adj.DeletedAt != nil {
		return nil, nil
	}
	cp := *adj
	return &cp, nil
}

func (s *Store) Upsert(_ context.Context, key billing.AdjustmentKey, fields billing.AdjustmentFields) (*billing.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adj, ok := s.adjustments[key]
	if !ok || adj.DeletedAt != nil {
		adj = &billing.Adjustment{
			ID:            billing.AdjustmentID(uuid.NewString()),
			AdjustmentKey: key,
		}
		s.adjustments[key] = adj
	}

	adj.AdjustmentHours = fields.AdjustmentHours
	adj.OriginalBillableHours = fields.OriginalBillableHours
	adj.AdjustedBillableHours = fields.AdjustedBillableHours
	adj.Reason = fields.Reason
	adj.AdjustedBy = fields.AdjustedBy
	adj.AdjustedAt = s.now()
	adj.DeletedAt = nil

	cp := *adj
	return &cp, nil
}

func (s *Store) Delete(_ context.Context, key billing.AdjustmentKey, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	adj, ok := s.adjustments[key]
	if !ok || adj.DeletedAt != nil {
		return billing.ErrAdjustmentNotFound
	}
	at := s.now()
	adj.DeletedAt = &at
	adj.AdjustedBy = actor
	return nil
}

func (s *Store) ListActive(_ context.Context, projectID billing.ProjectID, period billing.Period) ([]billing.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []billing.Adjustment
	for key, adj := range s.adjustments {
		if adj.DeletedAt != nil {
			continue
		}
		if key.ProjectID != projectID {
			continue
		}
		if !key.PeriodStart.Equal(period.Start) || !key.PeriodEnd.Equal(period.End) {
			continue
		}
		out = append(out, *adj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func projectSet(ids []billing.ProjectID) map[billing.ProjectID]struct{} {
	set := make(map[billing.ProjectID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// projectSetOptional returns nil for an empty filter, meaning "match all".
func projectSetOptional(ids []billing.ProjectID) map[billing.ProjectID]struct{} {
	if len(ids) == 0 {
		return nil
	}
	return projectSet(ids)
}
