/*
collector.go - Approval data collection and grouping

PURPOSE:
  Queries eligible approval records for a set of projects over a period
  and folds them into one ApprovalSummary per (project, user): summed
  worked hours, summed base billable hours, summed manager adjustment,
  the latest verification timestamp, and total entries count.

  Only management-verified approvals on billing-eligible timesheets reach
  this component (the ApprovalSource contract filters them). A project
  with no eligible approvals simply has no summaries; the report builder
  renders it as a zero-valued row, never as an error.
*/
package billing

import (
	"context"
	"fmt"
	"sort"
)

// ApprovalCollector groups eligible approvals per (project, user).
type ApprovalCollector struct {
	Source ApprovalSource
}

// Collect returns approval summaries grouped by project. Users within a
// project are ordered by UserID so downstream assembly is deterministic.
func (c *ApprovalCollector) Collect(ctx context.Context, projectIDs []ProjectID, period Period) (map[ProjectID][]ApprovalSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	records, err := c.Source.FindApprovedApprovals(ctx, projectIDs, period)
	if err != nil {
		return nil, fmt.Errorf("find approved approvals: %w", err)
	}

	type groupKey struct {
		Project ProjectID
		User    UserID
	}
	groups := make(map[groupKey]*ApprovalSummary)

	for _, rec := range records {
		k := groupKey{Project: rec.ProjectID, User: rec.UserID}
		sum, ok := groups[k]
		if !ok {
			sum = &ApprovalSummary{ProjectID: rec.ProjectID, UserID: rec.UserID}
			groups[k] = sum
		}
		sum.WorkedHours = sum.WorkedHours.Add(rec.WorkedHours)
		sum.BaseBillableHours = sum.BaseBillableHours.Add(rec.BaseBillableHours)
		sum.ManagerAdjustment = sum.ManagerAdjustment.Add(rec.ManagerAdjustment)
		sum.EntriesCount += rec.EntriesCount
		if rec.VerifiedAt.After(sum.LastVerifiedAt) {
			sum.LastVerifiedAt = rec.VerifiedAt
		}
	}

	byProject := make(map[ProjectID][]ApprovalSummary)
	for k, sum := range groups {
		byProject[k.Project] = append(byProject[k.Project], *sum)
	}
	for _, summaries := range byProject {
		sort.Slice(summaries, func(i, j int) bool {
			return summaries[i].UserID < summaries[j].UserID
		})
	}
	return byProject, nil
}

// CollectForUser returns the summary for a single (project, user) scope,
// or nil when the user has no eligible approvals in the period. Used by
// the adjustment commit path to re-fetch the current approved base.
func (c *ApprovalCollector) CollectForUser(ctx context.Context, projectID ProjectID, userID UserID, period Period) (*ApprovalSummary, error) {
	byProject, err := c.Collect(ctx, []ProjectID{projectID}, period)
	if err != nil {
		return nil, err
	}
	for _, sum := range byProject[projectID] {
		if sum.UserID == userID {
			s := sum
			return &s, nil
		}
	}
	return nil, nil
}
