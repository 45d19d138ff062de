/*
Package billing provides the project billing aggregation engine.

PURPOSE:
  This package turns raw, multi-tier approval and adjustment records into
  a verified, per-resource, per-task billing report for a project over a
  date range. It owns the numeric derivation chain:

    worked_hours + manager_adjustment      ≈ base_billable_hours
    base_billable_hours + management_adjustment ≈ final_billable_hours
    non_billable_hours = max(worked_hours - final_billable_hours, 0)

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: A decimal-backed quantity of hours (never float64 arithmetic)
  - ApprovalRecord: Immutable input row from the approval workflow
  - Adjustment: The one mutable record this engine owns (management delta)
  - ResourceBillingData / ProjectBillingData / TaskBillingData: derived,
    recomputed per request, never persisted

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. Type Safety: Strong typing for IDs prevents mixing project/user IDs
  3. Statelessness: Derived types are ephemeral; every report recomputes
     from source records
  4. Dependency injection: All data access goes through the interfaces in
     source.go; no component reaches for a global store

SEE ALSO:
  - source.go: Collaborator interfaces (approvals, entries, users, adjustments)
  - collector.go: Approval data collection and grouping
  - report.go: Report assembly
  - distribution.go: Proportional billable-hours redistribution
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Decimal-backed quantity (all derivation happens on this type)
// =============================================================================

type Hours struct {
	Value decimal.Decimal
}

func NewHours(v float64) Hours {
	return Hours{Value: decimal.NewFromFloat(v)}
}

func HoursFromDecimal(d decimal.Decimal) Hours {
	return Hours{Value: d}
}

func ZeroHours() Hours {
	return Hours{Value: decimal.Zero}
}

func (h Hours) Add(o Hours) Hours          { return Hours{Value: h.Value.Add(o.Value)} }
func (h Hours) Sub(o Hours) Hours          { return Hours{Value: h.Value.Sub(o.Value)} }
func (h Hours) Mul(s decimal.Decimal) Hours { return Hours{Value: h.Value.Mul(s)} }
func (h Hours) Div(s decimal.Decimal) Hours { return Hours{Value: h.Value.Div(s)} }
func (h Hours) Neg() Hours                 { return Hours{Value: h.Value.Neg()} }
func (h Hours) Abs() Hours                 { return Hours{Value: h.Value.Abs()} }
func (h Hours) IsZero() bool               { return h.Value.IsZero() }
func (h Hours) IsNegative() bool           { return h.Value.IsNegative() }
func (h Hours) IsPositive() bool           { return h.Value.IsPositive() }
func (h Hours) GreaterThan(o Hours) bool   { return h.Value.GreaterThan(o.Value) }
func (h Hours) LessThan(o Hours) bool      { return h.Value.LessThan(o.Value) }
func (h Hours) Equal(o Hours) bool         { return h.Value.Equal(o.Value) }

func (h Hours) Min(o Hours) Hours {
	if h.LessThan(o) {
		return h
	}
	return o
}

func (h Hours) Max(o Hours) Hours {
	if h.GreaterThan(o) {
		return h
	}
	return o
}

// WithinTolerance reports whether |h - o| <= tol.
func (h Hours) WithinTolerance(o Hours, tol decimal.Decimal) bool {
	return h.Value.Sub(o.Value).Abs().LessThanOrEqual(tol)
}

// Amount returns h x rate as a monetary decimal.
func (h Hours) Amount(rate decimal.Decimal) decimal.Decimal {
	return h.Value.Mul(rate)
}

func (h Hours) Float64() float64 {
	f, _ := h.Value.Float64()
	return f
}

func (h Hours) String() string { return h.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProjectID string
type ClientID string
type UserID string
type TaskID string
type TimesheetID string
type AdjustmentID string

// =============================================================================
// TIMESHEET STATUS - Billing eligibility
// =============================================================================

type TimesheetStatus string

const (
	StatusDraft     TimesheetStatus = "draft"
	StatusSubmitted TimesheetStatus = "submitted"
	StatusApproved  TimesheetStatus = "approved"
	StatusFrozen    TimesheetStatus = "frozen"
	StatusBilled    TimesheetStatus = "billed"
)

// BillingEligibleStatuses is the subset of timesheet lifecycle states whose
// approvals count toward billing. Earlier states can still be revised and
// would make reports unstable.
var BillingEligibleStatuses = []TimesheetStatus{StatusFrozen, StatusBilled}

func (s TimesheetStatus) BillingEligible() bool {
	for _, e := range BillingEligibleStatuses {
		if s == e {
			return true
		}
	}
	return false
}

// =============================================================================
// APPROVAL RECORD - Immutable input from the approval workflow
// =============================================================================

// ApprovalRecord is one management-verified statement of worked/billable
// hours for one user on one project for one approval period. The engine
// never mutates these; new approval cycles supersede old records upstream.
type ApprovalRecord struct {
	ProjectID   ProjectID
	UserID      UserID
	PeriodStart Date
	PeriodEnd   Date

	WorkedHours       Hours // >= 0
	BaseBillableHours Hours // >= 0, manager-tier approved billable hours
	ManagerAdjustment Hours // signed delta already folded into base

	VerifiedAt   time.Time // management sign-off timestamp
	EntriesCount int
}

// ApprovalSummary is the collector's per-(project, user) aggregate over all
// eligible approvals in the requested range.
type ApprovalSummary struct {
	ProjectID ProjectID
	UserID    UserID

	WorkedHours       Hours
	BaseBillableHours Hours
	ManagerAdjustment Hours

	LastVerifiedAt time.Time // max over constituent approvals
	EntriesCount   int
}

// =============================================================================
// TIME ENTRIES - Raw material for the per-task breakdown
// =============================================================================

type EntryCategory string

const (
	CategoryProject  EntryCategory = "project"
	CategoryTraining EntryCategory = "training"
	CategoryInternal EntryCategory = "internal"
)

// BillableCategory reports whether entries of this category participate in
// the task breakdown. Legacy entries carry no category and are included.
func (c EntryCategory) BillableCategory() bool {
	return c == CategoryProject || c == CategoryTraining || c == ""
}

// TimeEntry is a single raw time entry on an approved timesheet.
type TimeEntry struct {
	TimesheetID TimesheetID
	ProjectID   ProjectID
	TaskID      TaskID
	TaskName    string
	Date        Date
	Hours       Hours
	Billable    bool
	Category    EntryCategory

	// Custom tasks carry their own description instead of a linked task name.
	CustomTask        bool
	CustomDescription string
}

// DisplayName resolves the task label shown on reports.
func (e TimeEntry) DisplayName() string {
	if e.CustomTask && e.CustomDescription != "" {
		return e.CustomDescription
	}
	return e.TaskName
}

// =============================================================================
// USERS & PROJECTS - Read-only projections of external catalogs
// =============================================================================

type User struct {
	ID         UserID
	FullName   string
	Role       string
	HourlyRate decimal.Decimal
}

type Project struct {
	ID       ProjectID
	ClientID ClientID
	Name     string
}

// =============================================================================
// ADJUSTMENT - The single mutable record owned by this engine
// =============================================================================

type AdjustmentScope string

const ScopeProject AdjustmentScope = "project"

// AdjustmentKey identifies the one active adjustment for a scope.
// At most one non-deleted adjustment exists per key; the data-access layer
// enforces this with an atomic upsert.
type AdjustmentKey struct {
	ProjectID   ProjectID
	UserID      UserID
	PeriodStart Date
	PeriodEnd   Date
	Scope       AdjustmentScope
}

// Adjustment is a management-tier signed delta applied on top of the
// approved base billable hours.
type Adjustment struct {
	ID AdjustmentID
	AdjustmentKey

	AdjustmentHours       Hours // signed delta on top of base
	OriginalBillableHours Hours // snapshot of base at adjustment time
	AdjustedBillableHours Hours // target = original + delta

	Reason     string
	AdjustedBy string
	AdjustedAt time.Time
	DeletedAt  *time.Time // soft delete
}

func (a *Adjustment) Active() bool { return a != nil && a.DeletedAt == nil }

// AdjustmentFields carries the mutable portion of an upsert. The key and
// identity fields are supplied separately so implementations can match the
// existing active record.
type AdjustmentFields struct {
	AdjustmentHours       Hours
	OriginalBillableHours Hours
	AdjustedBillableHours Hours
	Reason                string
	AdjustedBy            string
}

// =============================================================================
// DERIVED REPORT TYPES - Ephemeral, recomputed per request
// =============================================================================

// TaskBillingData is the per-(user, project, task) breakdown line.
type TaskBillingData struct {
	TaskID   TaskID
	TaskName string

	TotalHours       Hours
	BillableHours    Hours
	NonBillableHours Hours
	Amount           decimal.Decimal // BillableHours x hourly rate
}

// ResourceBillingData is one user's derived billing row within a project.
type ResourceBillingData struct {
	UserID   UserID
	FullName string
	Role     string

	WorkedHours          Hours
	ManagerAdjustment    Hours
	BaseBillableHours    Hours
	ManagementAdjustment Hours
	FinalBillableHours   Hours
	NonBillableHours     Hours

	HourlyRate  decimal.Decimal
	TotalAmount decimal.Decimal

	AdjustedAt *time.Time // when the management adjustment was last set
	Tasks      []TaskBillingData
}

// VerificationInfo aggregates the constituent approvals behind a project
// report. Nil on ProjectBillingData means "no verified data", which is
// distinct from "verified, zero hours".
type VerificationInfo struct {
	TotalWorkedHours       Hours
	TotalBillableHours     Hours
	TotalManagerAdjustment Hours
	ResourceCount          int
	LastVerifiedAt         time.Time
}

// ProjectBillingData is the aggregate root for a billing report. It is
// constructed fresh per request and never persisted as-is.
type ProjectBillingData struct {
	ProjectID   ProjectID
	ProjectName string
	ClientID    ClientID
	Period      Period

	TotalHours       Hours
	BillableHours    Hours
	NonBillableHours Hours
	TotalAmount      decimal.Decimal

	Resources    []ResourceBillingData
	Verification *VerificationInfo
}
