/*
commit.go - Adjustment commit (the engine's only mutation)

PURPOSE:
  Turns a desired billable-hours target for one (user, project, period)
  into a persisted management Adjustment:

    1. Re-fetch the current approved base for the scope. No eligible
       approvals means there is nothing to adjust; the commit fails with
       ErrNoApprovedData.
    2. adjustment_hours = desired billable hours - base billable hours.
    3. Upsert the adjustment by its composite key. The store's upsert is
       a single atomic conditional write, so two concurrent commits for
       the same key cannot produce duplicate active records and cannot
       lose each other's update mid-flight.

  Committing is deliberately separate from the distribution preview:
  callers decide which previewed targets become adjustments.
*/
package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// AdjustmentRequest describes one commit.
type AdjustmentRequest struct {
	ProjectID     ProjectID
	UserID        UserID
	Period        Period
	BillableHours Hours // desired final billable hours (the target)
	Reason        string
	ActorID       string // who is making the adjustment
}

func (r AdjustmentRequest) validate() error {
	if r.ProjectID == "" || r.UserID == "" {
		return fmt.Errorf("project and user are required")
	}
	if strings.TrimSpace(r.ActorID) == "" {
		return fmt.Errorf("actor is required")
	}
	if r.BillableHours.IsNegative() {
		return fmt.Errorf("billable hours cannot be negative")
	}
	return r.Period.Validate()
}

// AdjustmentCommitter applies billing adjustments on behalf of management.
type AdjustmentCommitter struct {
	collector   *ApprovalCollector
	adjustments AdjustmentStore
	log         zerolog.Logger
}

func NewAdjustmentCommitter(approvals ApprovalSource, adjustments AdjustmentStore, log zerolog.Logger) *AdjustmentCommitter {
	return &AdjustmentCommitter{
		collector:   &ApprovalCollector{Source: approvals},
		adjustments: adjustments,
		log:         log,
	}
}

// Apply commits the adjustment and returns the stored record. Calling it
// twice with the same target updates the same record in place.
func (c *AdjustmentCommitter) Apply(ctx context.Context, req AdjustmentRequest) (*Adjustment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	sum, err := c.collector.CollectForUser(ctx, req.ProjectID, req.UserID, req.Period)
	if err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, &NoApprovedDataError{ProjectID: req.ProjectID, UserID: req.UserID, Period: req.Period}
	}

	delta := req.BillableHours.Sub(sum.BaseBillableHours)

	key := AdjustmentKey{
		ProjectID:   req.ProjectID,
		UserID:      req.UserID,
		PeriodStart: req.Period.Start,
		PeriodEnd:   req.Period.End,
		Scope:       ScopeProject,
	}
	fields := AdjustmentFields{
		AdjustmentHours:       delta,
		OriginalBillableHours: sum.BaseBillableHours,
		AdjustedBillableHours: req.BillableHours,
		Reason:                req.Reason,
		AdjustedBy:            req.ActorID,
	}

	adj, err := c.adjustments.Upsert(ctx, key, fields)
	if err != nil {
		return nil, fmt.Errorf("upsert adjustment: %w", err)
	}

	adjustmentsCommitted.Inc()
	c.log.Info().
		Str("project_id", string(req.ProjectID)).
		Str("user_id", string(req.UserID)).
		Str("period", req.Period.String()).
		Str("adjustment_hours", delta.String()).
		Str("adjusted_by", req.ActorID).
		Msg("billing adjustment committed")

	return adj, nil
}

// Remove soft-deletes the active adjustment for a scope.
func (c *AdjustmentCommitter) Remove(ctx context.Context, projectID ProjectID, userID UserID, period Period, actor string) error {
	if err := period.Validate(); err != nil {
		return err
	}
	key := AdjustmentKey{
		ProjectID:   projectID,
		UserID:      userID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Scope:       ScopeProject,
	}
	if err := c.adjustments.Delete(ctx, key, actor); err != nil {
		return err
	}
	c.log.Info().
		Str("project_id", string(projectID)).
		Str("user_id", string(userID)).
		Str("period", period.String()).
		Str("deleted_by", actor).
		Msg("billing adjustment removed")
	return nil
}
