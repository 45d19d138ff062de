/*
report.go - Billing report assembly

PURPOSE:
  The top of the derivation pipeline. For each requested project, joins
  the collector's per-user approval summaries with user profiles and the
  resolver's management adjustment, attaches the task aggregator's
  breakdown, and produces a ProjectBillingData with per-resource rows,
  project totals, and a verification summary.

DATA FLOW:
  Collector -> Resolver -> Validator (side channel) -> Task Aggregator
  -> assembly. Per-user work (adjustment lookup + task breakdown) is
  independent, so it runs concurrently and joins before assembly.

GUARANTEES:
  - A project with zero eligible approvals yields a zero-valued row with
    no resources and a nil Verification, never an error.
  - Integrity violations are logged and counted but never block a row.
  - Each report request recomputes from source records; nothing is cached
    between invocations.
*/
package billing

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ReportBuilder assembles project billing reports. It is stateless between
// invocations; concurrent report requests are safe.
type ReportBuilder struct {
	collector *ApprovalCollector
	resolver  *AdjustmentResolver
	tasks     *TaskAggregator
	users     UserDirectory
	projects  ProjectCatalog
	log       zerolog.Logger
}

func NewReportBuilder(
	approvals ApprovalSource,
	entries TimeEntrySource,
	users UserDirectory,
	projects ProjectCatalog,
	adjustments AdjustmentStore,
	log zerolog.Logger,
) *ReportBuilder {
	return &ReportBuilder{
		collector: &ApprovalCollector{Source: approvals},
		resolver:  &AdjustmentResolver{Store: adjustments},
		tasks:     &TaskAggregator{Entries: entries},
		users:     users,
		projects:  projects,
		log:       log,
	}
}

// BuildProjectBillingData computes the billing report for the projects
// matching the given filters over the inclusive period. Rows come back in
// project-ID order.
func (b *ReportBuilder) BuildProjectBillingData(
	ctx context.Context,
	projectIDs []ProjectID,
	clientIDs []ClientID,
	period Period,
) ([]ProjectBillingData, error) {

	if err := period.Validate(); err != nil {
		return nil, err
	}

	projects, err := b.projects.FindProjects(ctx, projectIDs, clientIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve projects: %w", err)
	}
	if len(projects) == 0 {
		return []ProjectBillingData{}, nil
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })

	ids := make([]ProjectID, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}

	summariesByProject, err := b.collector.Collect(ctx, ids, period)
	if err != nil {
		return nil, err
	}

	timesheetsByProject, err := b.collector.Source.FindApprovalTimesheetIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find approval timesheets: %w", err)
	}

	usersByID, err := b.lookupUsers(ctx, summariesByProject)
	if err != nil {
		return nil, err
	}

	report := make([]ProjectBillingData, 0, len(projects))
	for _, project := range projects {
		row, err := b.buildProjectRow(ctx, project, period,
			summariesByProject[project.ID], timesheetsByProject[project.ID], usersByID)
		if err != nil {
			return nil, err
		}
		report = append(report, row)
		reportsBuilt.Inc()
	}
	return report, nil
}

func (b *ReportBuilder) lookupUsers(ctx context.Context, summaries map[ProjectID][]ApprovalSummary) (map[UserID]User, error) {
	seen := make(map[UserID]struct{})
	var ids []UserID
	for _, rows := range summaries {
		for _, sum := range rows {
			if _, ok := seen[sum.UserID]; !ok {
				seen[sum.UserID] = struct{}{}
				ids = append(ids, sum.UserID)
			}
		}
	}
	if len(ids) == 0 {
		return map[UserID]User{}, nil
	}

	users, err := b.users.FindUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	byID := make(map[UserID]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func (b *ReportBuilder) buildProjectRow(
	ctx context.Context,
	project Project,
	period Period,
	summaries []ApprovalSummary,
	timesheetIDs []TimesheetID,
	usersByID map[UserID]User,
) (ProjectBillingData, error) {

	row := ProjectBillingData{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		ClientID:    project.ClientID,
		Period:      period,
		Resources:   []ResourceBillingData{},
	}

	if len(summaries) == 0 {
		// No verified data for this project in range. Distinct from
		// "verified, zero hours": Verification stays nil.
		return row, nil
	}

	// Per-user assembly is independent (separate adjustment lookup and
	// task-breakdown query per user), so it runs concurrently and joins
	// here before totals.
	resources := make([]ResourceBillingData, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	for i, sum := range summaries {
		g.Go(func() error {
			res, err := b.buildResource(gctx, project.ID, period, sum, timesheetIDs, usersByID)
			if err != nil {
				return err
			}
			resources[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProjectBillingData{}, err
	}
	row.Resources = resources

	verification := &VerificationInfo{ResourceCount: len(summaries)}
	for _, sum := range summaries {
		verification.TotalWorkedHours = verification.TotalWorkedHours.Add(sum.WorkedHours)
		verification.TotalBillableHours = verification.TotalBillableHours.Add(sum.BaseBillableHours)
		verification.TotalManagerAdjustment = verification.TotalManagerAdjustment.Add(sum.ManagerAdjustment)
		if sum.LastVerifiedAt.After(verification.LastVerifiedAt) {
			verification.LastVerifiedAt = sum.LastVerifiedAt
		}
	}
	row.Verification = verification

	for _, res := range resources {
		row.TotalHours = row.TotalHours.Add(res.WorkedHours)
		row.BillableHours = row.BillableHours.Add(res.FinalBillableHours)
		row.TotalAmount = row.TotalAmount.Add(res.TotalAmount)
	}
	row.NonBillableHours = row.TotalHours.Sub(row.BillableHours).Max(ZeroHours())

	return row, nil
}

func (b *ReportBuilder) buildResource(
	ctx context.Context,
	projectID ProjectID,
	period Period,
	sum ApprovalSummary,
	timesheetIDs []TimesheetID,
	usersByID map[UserID]User,
) (ResourceBillingData, error) {

	user, ok := usersByID[sum.UserID]
	if !ok {
		// Approvals can outlive a deactivated profile; bill at zero rate
		// rather than dropping verified hours.
		b.log.Warn().
			Str("project_id", string(projectID)).
			Str("user_id", string(sum.UserID)).
			Msg("no user profile for approved billing data")
		user = User{ID: sum.UserID}
	}

	resolved, err := b.resolver.Resolve(ctx, projectID, sum.UserID, period)
	if err != nil {
		return ResourceBillingData{}, err
	}

	final := sum.BaseBillableHours.Add(resolved.Hours)
	nonBillable := sum.WorkedHours.Sub(final).Max(ZeroHours())

	res := ResourceBillingData{
		UserID:   sum.UserID,
		FullName: user.FullName,
		Role:     user.Role,

		WorkedHours:          sum.WorkedHours,
		ManagerAdjustment:    sum.ManagerAdjustment,
		BaseBillableHours:    sum.BaseBillableHours,
		ManagementAdjustment: resolved.Hours,
		FinalBillableHours:   final,
		NonBillableHours:     nonBillable,

		HourlyRate:  user.HourlyRate,
		TotalAmount: final.Amount(user.HourlyRate),
		AdjustedAt:  resolved.AdjustedAt,
	}

	b.reportViolations(ValidateResourceIntegrity(IntegrityInput{
		ProjectID:            projectID,
		UserID:               sum.UserID,
		WorkedHours:          sum.WorkedHours,
		ManagerAdjustment:    sum.ManagerAdjustment,
		BaseBillableHours:    sum.BaseBillableHours,
		ManagementAdjustment: resolved.Hours,
		FinalBillableHours:   final,
	}))

	breakdown, err := b.tasks.BreakdownForUser(ctx, timesheetIDs, sum.UserID, []ProjectID{projectID}, period, user.HourlyRate)
	if err != nil {
		return ResourceBillingData{}, err
	}
	res.Tasks = breakdown[projectID]
	if res.Tasks == nil {
		res.Tasks = []TaskBillingData{}
	}

	return res, nil
}

// reportViolations surfaces integrity diagnostics as observability events.
// Reports proceed regardless; inconsistent upstream data is an operator
// signal, not a user-facing failure.
func (b *ReportBuilder) reportViolations(violations []IntegrityViolation) {
	for _, v := range violations {
		integrityViolations.WithLabelValues(v.Check).Inc()
		b.log.Warn().
			Str("project_id", string(v.ProjectID)).
			Str("user_id", string(v.UserID)).
			Str("check", v.Check).
			Str("expected", v.Expected.String()).
			Str("actual", v.Actual.String()).
			Str("delta", v.Delta().String()).
			Msg("billing integrity violation")
	}
}
