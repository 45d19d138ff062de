/*
tasks.go - Per-task breakdown of a user's billed time

PURPOSE:
  Decomposes the period's raw time entries for one user into per-task
  totals: total hours, billable hours, non-billable hours, and the
  billable amount at the user's hourly rate.

  Entries participate when their category is project or training, or when
  they are legacy entries with no category at all. An entry's hours count
  toward billable iff its billable flag is set. Custom-task entries group
  under their custom description instead of a linked task name.

  The breakdown runs independently per user over that user's timesheets
  only, so one user's entries can never leak into another's breakdown.
*/
package billing

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// TaskAggregator builds per-task breakdowns from raw time entries.
type TaskAggregator struct {
	Entries TimeEntrySource
}

// BreakdownForUser partitions the user's entries on the given approved
// timesheets into per-(project, task) groups and returns them keyed by
// project. Tasks within a project are ordered by display name.
func (a *TaskAggregator) BreakdownForUser(
	ctx context.Context,
	timesheetIDs []TimesheetID,
	userID UserID,
	projectIDs []ProjectID,
	period Period,
	hourlyRate decimal.Decimal,
) (map[ProjectID][]TaskBillingData, error) {

	if len(timesheetIDs) == 0 {
		return map[ProjectID][]TaskBillingData{}, nil
	}

	entries, err := a.Entries.FindTimeEntries(ctx, timesheetIDs, userID, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("find time entries for user %s: %w", userID, err)
	}

	type groupKey struct {
		Project ProjectID
		Task    TaskID
		Name    string
	}
	groups := make(map[groupKey]*TaskBillingData)
	order := make([]groupKey, 0, len(entries))

	for _, e := range entries {
		if !e.Category.BillableCategory() {
			continue
		}
		if !e.Date.IsZero() && !period.Contains(e.Date) {
			continue
		}

		k := groupKey{Project: e.ProjectID, Task: e.TaskID, Name: e.DisplayName()}
		task, ok := groups[k]
		if !ok {
			task = &TaskBillingData{TaskID: e.TaskID, TaskName: k.Name}
			groups[k] = task
			order = append(order, k)
		}

		task.TotalHours = task.TotalHours.Add(e.Hours)
		if e.Billable {
			task.BillableHours = task.BillableHours.Add(e.Hours)
		} else {
			task.NonBillableHours = task.NonBillableHours.Add(e.Hours)
		}
	}

	byProject := make(map[ProjectID][]TaskBillingData)
	for _, k := range order {
		task := groups[k]
		task.Amount = task.BillableHours.Amount(hourlyRate)
		byProject[k.Project] = append(byProject[k.Project], *task)
	}
	for _, tasks := range byProject {
		sort.Slice(tasks, func(i, j int) bool {
			if tasks[i].TaskName != tasks[j].TaskName {
				return tasks[i].TaskName < tasks[j].TaskName
			}
			return tasks[i].TaskID < tasks[j].TaskID
		})
	}
	return byProject, nil
}
