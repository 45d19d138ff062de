/*
Package sqlite provides a SQLite-backed implementation of the billing
engine's data sources.

PURPOSE:
  Implements ApprovalSource, TimeEntrySource, UserDirectory,
  ProjectCatalog, and AdjustmentStore on SQLite. The same patterns apply
  to PostgreSQL in production; only minor SQL dialect differences.

KEY TABLES:
  projects:     read-only project catalog (id, client, name)
  users:        read-only user profiles (name, role, hourly rate)
  timesheets:   ownership + lifecycle status (billing eligibility)
  approvals:    immutable approval rows from the approval workflow
  time_entries: raw entries for the per-task breakdown
  adjustments:  the engine's one mutable table (soft-deletable)

ADJUSTMENT UNIQUENESS:
  At most one ACTIVE adjustment per (project, user, period, scope) is a
  hard invariant, enforced by a partial unique index over non-deleted
  rows. Upsert targets that index with a single
  INSERT ... ON CONFLICT ... DO UPDATE, so two concurrent commits for
  the same key serialize inside SQLite instead of racing read-then-write.

WAL MODE:
  Opened with WAL so report reads don't block the adjustment writer.

NUMERIC STORAGE:
  Hours and rates are stored as decimal TEXT, never as floating point.

SEE ALSO:
  - billing/source.go: Interface contracts
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
)

// Store implements all billing source interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Read-only catalogs (owned by external CRUD services; mirrored here)
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_client ON projects(client_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		hourly_rate TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS timesheets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timesheets_user ON timesheets(user_id);

	-- Immutable approval rows (superseded upstream, never mutated here)
	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		timesheet_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		worked_hours TEXT NOT NULL,
		base_billable_hours TEXT NOT NULL,
		manager_adjustment TEXT NOT NULL,
		management_verified BOOLEAN NOT NULL DEFAULT FALSE,
		verified_at TEXT,
		entries_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_project_period
		ON approvals(project_id, period_start, period_end);
	CREATE INDEX IF NOT EXISTS idx_approvals_timesheet
		ON approvals(timesheet_id);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		timesheet_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		task_id TEXT NOT NULL DEFAULT '',
		task_name TEXT NOT NULL DEFAULT '',
		entry_date TEXT NOT NULL,
		hours TEXT NOT NULL,
		billable BOOLEAN NOT NULL DEFAULT FALSE,
		category TEXT NOT NULL DEFAULT '',
		custom_task BOOLEAN NOT NULL DEFAULT FALSE,
		custom_description TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_time_entries_timesheet
		ON time_entries(timesheet_id);
	CREATE INDEX IF NOT EXISTS idx_time_entries_project
		ON time_entries(project_id);

	-- Management adjustments (the engine's only mutable table)
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		scope TEXT NOT NULL DEFAULT 'project',
		adjustment_hours TEXT NOT NULL,
		original_billable_hours TEXT NOT NULL,
		adjusted_billable_hours TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		adjusted_by TEXT NOT NULL DEFAULT '',
		adjusted_at TEXT NOT NULL,
		deleted_at TEXT
	);

	-- CRITICAL: at most one ACTIVE adjustment per scope key.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_adjustments_active_key
		ON adjustments(project_id, user_id, period_start, period_end, scope)
		WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_adjustments_project_period
		ON adjustments(project_id, period_start, period_end);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset drops all data. Only used by demo scenarios and tests.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"projects", "users", "timesheets", "approvals", "time_entries", "adjustments"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// SEEDING - Used by demo scenarios; catalogs are externally owned
// =============================================================================

func (s *Store) InsertProject(ctx context.Context, p billing.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO projects (id, client_id, name) VALUES (?, ?, ?)`,
		p.ID, p.ClientID, p.Name)
	return err
}

func (s *Store) InsertUser(ctx context.Context, u billing.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, full_name, role, hourly_rate) VALUES (?, ?, ?, ?)`,
		u.ID, u.FullName, u.Role, u.HourlyRate.String())
	return err
}

func (s *Store) InsertTimesheet(ctx context.Context, id billing.TimesheetID, userID billing.UserID, status billing.TimesheetStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO timesheets (id, user_id, status) VALUES (?, ?, ?)`,
		id, userID, status)
	return err
}

// InsertApproval stores one approval row. Rows with managementVerified set
// to false are kept but never surface through FindApprovedApprovals.
func (s *Store) InsertApproval(ctx context.Context, rec billing.ApprovalRecord, timesheetID billing.TimesheetID, managementVerified bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals
		(id, project_id, user_id, timesheet_id, period_start, period_end,
		 worked_hours, base_billable_hours, manager_adjustment,
		 management_verified, verified_at, entries_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		rec.ProjectID,
		rec.UserID,
		timesheetID,
		rec.PeriodStart.String(),
		rec.PeriodEnd.String(),
		rec.WorkedHours.Value.String(),
		rec.BaseBillableHours.Value.String(),
		rec.ManagerAdjustment.Value.String(),
		managementVerified,
		rec.VerifiedAt.UTC().Format(time.RFC3339),
		rec.EntriesCount,
	)
	return err
}

func (s *Store) InsertTimeEntry(ctx context.Context, e billing.TimeEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_entries
		(id, timesheet_id, project_id, task_id, task_name, entry_date,
		 hours, billable, category, custom_task, custom_description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		e.TimesheetID,
		e.ProjectID,
		e.TaskID,
		e.TaskName,
		e.Date.String(),
		e.Hours.Value.String(),
		e.Billable,
		e.Category,
		e.CustomTask,
		e.CustomDescription,
	)
	return err
}

// =============================================================================
// APPROVAL SOURCE
// =============================================================================

func (s *Store) FindApprovedApprovals(ctx context.Context, projectIDs []billing.ProjectID, period billing.Period) ([]billing.ApprovalRecord, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT a.project_id, a.user_id, a.period_start, a.period_end,
		       a.worked_hours, a.base_billable_hours, a.manager_adjustment,
		       a.verified_at, a.entries_count
		FROM approvals a
		JOIN timesheets t ON t.id = a.timesheet_id
		WHERE a.management_verified = TRUE
		  AND t.status IN (%s)
		  AND a.project_id IN (%s)
		  AND a.period_start >= ? AND a.period_end <= ?
		ORDER BY a.project_id, a.user_id, a.period_start`,
		placeholders(len(billing.BillingEligibleStatuses)),
		placeholders(len(projectIDs)))

	args := make([]any, 0, len(billing.BillingEligibleStatuses)+len(projectIDs)+2)
	for _, st := range billing.BillingEligibleStatuses {
		args = append(args, st)
	}
	for _, id := range projectIDs {
		args = append(args, id)
	}
	args = append(args, period.Start.String(), period.End.String())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	var out []billing.ApprovalRecord
	for rows.Next() {
		var rec billing.ApprovalRecord
		var start, end string
		var worked, base, managerAdj string
		var verifiedAt sql.NullString

		if err := rows.Scan(&rec.ProjectID, &rec.UserID, &start, &end,
			&worked, &base, &managerAdj, &verifiedAt, &rec.EntriesCount); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}

		if rec.PeriodStart, err = billing.ParseDate(start); err != nil {
			return nil, err
		}
		if rec.PeriodEnd, err = billing.ParseDate(end); err != nil {
			return nil, err
		}
		if rec.WorkedHours, err = parseHours(worked); err != nil {
			return nil, err
		}
		if rec.BaseBillableHours, err = parseHours(base); err != nil {
			return nil, err
		}
		if rec.ManagerAdjustment, err = parseHours(managerAdj); err != nil {
			return nil, err
		}
		if verifiedAt.Valid && verifiedAt.String != "" {
			if rec.VerifiedAt, err = time.Parse(time.RFC3339, verifiedAt.String); err != nil {
				return nil, fmt.Errorf("parse verified_at: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) FindApprovalTimesheetIDs(ctx context.Context, projectIDs []billing.ProjectID) (map[billing.ProjectID][]billing.TimesheetID, error) {
	if len(projectIDs) == 0 {
		return map[billing.ProjectID][]billing.TimesheetID{}, nil
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT a.project_id, a.timesheet_id
		FROM approvals a
		JOIN timesheets t ON t.id = a.timesheet_id
		WHERE a.management_verified = TRUE
		  AND t.status IN (%s)
		  AND a.project_id IN (%s)`,
		placeholders(len(billing.BillingEligibleStatuses)),
		placeholders(len(projectIDs)))

	args := make([]any, 0, len(billing.BillingEligibleStatuses)+len(projectIDs))
	for _, st := range billing.BillingEligibleStatuses {
		args = append(args, st)
	}
	for _, id := range projectIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query approval timesheets: %w", err)
	}
	defer rows.Close()

	out := make(map[billing.ProjectID][]billing.TimesheetID)
	for rows.Next() {
		var pid billing.ProjectID
		var tid billing.TimesheetID
		if err := rows.Scan(&pid, &tid); err != nil {
			return nil, fmt.Errorf("scan approval timesheet: %w", err)
		}
		out[pid] = append(out[pid], tid)
	}
	for _, ids := range out {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return out, rows.Err()
}

// =============================================================================
// TIME ENTRY SOURCE
// =============================================================================

func (s *Store) FindTimeEntries(ctx context.Context, timesheetIDs []billing.TimesheetID, userID billing.UserID, projectIDs []billing.ProjectID) ([]billing.TimeEntry, error) {
	if len(timesheetIDs) == 0 || len(projectIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT e.timesheet_id, e.project_id, e.task_id, e.task_name,
		       e.entry_date, e.hours, e.billable, e.category,
		       e.custom_task, e.custom_description
		FROM time_entries e
		JOIN timesheets t ON t.id = e.timesheet_id
		WHERE e.timesheet_id IN (%s)
		  AND t.user_id = ?
		  AND e.project_id IN (%s)
		ORDER BY e.entry_date, e.task_name`,
		placeholders(len(timesheetIDs)), placeholders(len(projectIDs)))

	args := make([]any, 0, len(timesheetIDs)+len(projectIDs)+1)
	for _, id := range timesheetIDs {
		args = append(args, id)
	}
	args = append(args, userID)
	for _, id := range projectIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query time entries: %w", err)
	}
	defer rows.Close()

	var out []billing.TimeEntry
	for rows.Next() {
		var e billing.TimeEntry
		var date, hours string
		if err := rows.Scan(&e.TimesheetID, &e.ProjectID, &e.TaskID, &e.TaskName,
			&date, &hours, &e.Billable, &e.Category, &e.CustomTask, &e.CustomDescription); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		if e.Date, err = billing.ParseDate(date); err != nil {
			return nil, err
		}
		if e.Hours, err = parseHours(hours); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// USER DIRECTORY & PROJECT CATALOG
// =============================================================================

func (s *Store) FindUsers(ctx context.Context, userIDs []billing.UserID) ([]billing.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT id, full_name, role, hourly_rate FROM users WHERE id IN (%s)`,
		placeholders(len(userIDs)))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []billing.User
	for rows.Next() {
		var u billing.User
		var rate string
		if err := rows.Scan(&u.ID, &u.FullName, &u.Role, &rate); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.HourlyRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("parse hourly rate for %s: %w", u.ID, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) FindProjects(ctx context.Context, projectIDs []billing.ProjectID, clientIDs []billing.ClientID) ([]billing.Project, error) {
	query := `SELECT id, client_id, name FROM projects`
	var clauses []string
	var args []any

	if len(projectIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("id IN (%s)", placeholders(len(projectIDs))))
		for _, id := range projectIDs {
			args = append(args, id)
		}
	}
	if len(clientIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("client_id IN (%s)", placeholders(len(clientIDs))))
		for _, id := range clientIDs {
			args = append(args, id)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []billing.Project
	for rows.Next() {
		var p billing.Project
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// ADJUSTMENT STORE
// =============================================================================

const adjustmentColumns = `id, project_id, user_id, period_start, period_end, scope,
	adjustment_hours, original_billable_hours, adjusted_billable_hours,
	reason, adjusted_by, adjusted_at, deleted_at`

func (s *Store) FindActive(ctx context.Context, key billing.AdjustmentKey) (*billing.Adjustment, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM adjustments
		WHERE project_id = ? AND user_id = ? AND period_start = ? AND period_end = ?
		  AND scope = ? AND deleted_at IS NULL`, adjustmentColumns),
		key.ProjectID, key.UserID, key.PeriodStart.String(), key.PeriodEnd.String(), key.Scope)

	adj, err := scanAdjustment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active adjustment: %w", err)
	}
	return adj, nil
}

// Upsert creates or updates the active adjustment for a key in a single
// statement. The conflict target is the partial unique index over active
// rows, so concurrent commits for the same key serialize in the database
// instead of racing a read-then-write.
func (s *Store) Upsert(ctx context.Context, key billing.AdjustmentKey, fields billing.AdjustmentFields) (*billing.Adjustment, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adjustments
		(id, project_id, user_id, period_start, period_end, scope,
		 adjustment_hours, original_billable_hours, adjusted_billable_hours,
		 reason, adjusted_by, adjusted_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (project_id, user_id, period_start, period_end, scope)
		WHERE deleted_at IS NULL
		DO UPDATE SET
			adjustment_hours = excluded.adjustment_hours,
			original_billable_hours = excluded.original_billable_hours,
			adjusted_billable_hours = excluded.adjusted_billable_hours,
			reason = excluded.reason,
			adjusted_by = excluded.adjusted_by,
			adjusted_at = excluded.adjusted_at`,
		uuid.NewString(),
		key.ProjectID, key.UserID, key.PeriodStart.String(), key.PeriodEnd.String(), key.Scope,
		fields.AdjustmentHours.Value.String(),
		fields.OriginalBillableHours.Value.String(),
		fields.AdjustedBillableHours.Value.String(),
		fields.Reason, fields.AdjustedBy, now)
	if err != nil {
		return nil, fmt.Errorf("upsert adjustment: %w", err)
	}

	return s.FindActive(ctx, key)
}

func (s *Store) Delete(ctx context.Context, key billing.AdjustmentKey, actor string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE adjustments
		SET deleted_at = ?, adjusted_by = ?
		WHERE project_id = ? AND user_id = ? AND period_start = ? AND period_end = ?
		  AND scope = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), actor,
		key.ProjectID, key.UserID, key.PeriodStart.String(), key.PeriodEnd.String(), key.Scope)
	if err != nil {
		return fmt.Errorf("delete adjustment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrAdjustmentNotFound
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context, projectID billing.ProjectID, period billing.Period) ([]billing.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM adjustments
		WHERE project_id = ? AND period_start = ? AND period_end = ?
		  AND deleted_at IS NULL
		ORDER BY user_id`, adjustmentColumns),
		projectID, period.Start.String(), period.End.String())
	if err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	defer rows.Close()

	var out []billing.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		out = append(out, *adj)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdjustment(row rowScanner) (*billing.Adjustment, error) {
	var adj billing.Adjustment
	var start, end, adjHours, origHours, adjustedHours, adjustedAt string
	var deletedAt sql.NullString

	err := row.Scan(&adj.ID, &adj.ProjectID, &adj.UserID, &start, &end, &adj.Scope,
		&adjHours, &origHours, &adjustedHours,
		&adj.Reason, &adj.AdjustedBy, &adjustedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if adj.PeriodStart, err = billing.ParseDate(start); err != nil {
		return nil, err
	}
	if adj.PeriodEnd, err = billing.ParseDate(end); err != nil {
		return nil, err
	}
	if adj.AdjustmentHours, err = parseHours(adjHours); err != nil {
		return nil, err
	}
	if adj.OriginalBillableHours, err = parseHours(origHours); err != nil {
		return nil, err
	}
	if adj.AdjustedBillableHours, err = parseHours(adjustedHours); err != nil {
		return nil, err
	}
	if adj.AdjustedAt, err = time.Parse(time.RFC3339, adjustedAt); err != nil {
		return nil, fmt.Errorf("parse adjusted_at: %w", err)
	}
	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339, deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse deleted_at: %w", err)
		}
		adj.DeletedAt = &t
	}
	return &adj, nil
}

func parseHours(s string) (billing.Hours, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return billing.Hours{}, fmt.Errorf("parse hours %q: %w", s, err)
	}
	return billing.HoursFromDecimal(d), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
