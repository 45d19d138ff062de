/*
source.go - Collaborator interfaces for data access

PURPOSE:
  Defines the boundary between the billing engine and the surrounding
  business-operations backend. Everything the engine reads (approvals,
  time entries, user profiles, project catalog) comes in through these
  interfaces; the only thing it writes is the Adjustment record.

  The interfaces are injected into the engine's components as constructor
  parameters. There are no globals and no deferred lookups; a component's
  dependencies are visible in its signature.

IMPLEMENTATIONS:
  - store/sqlite: production store (WAL, atomic adjustment upsert)
  - store/memory: in-memory store for tests and demo scenarios

CONTRACTS:
  - FindApprovedApprovals returns ONLY management-verified approvals whose
    owning timesheet status is billing-eligible. Unverified or
    manager-only-approved rows are excluded entirely; there is no partial
    credit. An empty result is a normal outcome, not an error.
  - Upsert is atomic per key: two concurrent commits for the same
    (project, user, period) must not produce two active adjustments.
*/
package billing

import "context"

// ApprovalSource exposes the approval workflow's read-only projection.
type ApprovalSource interface {
	// FindApprovedApprovals returns eligible approval rows for the given
	// projects whose approval period is covered by the requested period.
	FindApprovedApprovals(ctx context.Context, projectIDs []ProjectID, period Period) ([]ApprovalRecord, error)

	// FindApprovalTimesheetIDs returns, per project, the timesheet IDs
	// behind eligible approvals. Used to scope the task breakdown.
	FindApprovalTimesheetIDs(ctx context.Context, projectIDs []ProjectID) (map[ProjectID][]TimesheetID, error)
}

// TimeEntrySource exposes raw time entries for the task breakdown.
type TimeEntrySource interface {
	// FindTimeEntries returns the entries on the given timesheets that
	// belong to the given user, restricted to the given projects.
	FindTimeEntries(ctx context.Context, timesheetIDs []TimesheetID, userID UserID, projectIDs []ProjectID) ([]TimeEntry, error)
}

// UserDirectory exposes user profiles (name, role, hourly rate).
type UserDirectory interface {
	FindUsers(ctx context.Context, userIDs []UserID) ([]User, error)
}

// ProjectCatalog resolves the effective project set for a report request.
// Both filters are optional; provided filters are combined (a project must
// match every non-empty filter).
type ProjectCatalog interface {
	FindProjects(ctx context.Context, projectIDs []ProjectID, clientIDs []ClientID) ([]Project, error)
}

// AdjustmentStore persists management adjustments. This is the engine's
// only write path.
type AdjustmentStore interface {
	// FindActive returns the single active adjustment for the key, or nil.
	FindActive(ctx context.Context, key AdjustmentKey) (*Adjustment, error)

	// Upsert creates or updates the active adjustment for the key in one
	// atomic conditional write. A second call for the same key updates the
	// existing record; it never creates a duplicate.
	Upsert(ctx context.Context, key AdjustmentKey, fields AdjustmentFields) (*Adjustment, error)

	// Delete soft-deletes the active adjustment for the key.
	// Returns ErrAdjustmentNotFound if no active adjustment exists.
	Delete(ctx context.Context, key AdjustmentKey, actor string) error

	// ListActive returns all active adjustments for a project and period.
	ListActive(ctx context.Context, projectID ProjectID, period Period) ([]Adjustment, error)
}
