/*
resolver.go - Management adjustment resolution

PURPOSE:
  Looks up the single active management-tier adjustment for a
  (project, user, period) scope. Resolving is a pure lookup: when no
  adjustment exists the delta is zero and NO default record is created.

  final_billable_hours = base_billable_hours + management_adjustment
*/
package billing

import (
	"context"
	"fmt"
	"time"
)

// ResolvedAdjustment is the resolver's answer for one scope.
type ResolvedAdjustment struct {
	Hours      Hours      // signed delta; zero when no adjustment exists
	AdjustedAt *time.Time // nil when no adjustment exists
}

// AdjustmentResolver reads the active management adjustment for a scope.
type AdjustmentResolver struct {
	Store AdjustmentStore
}

// Resolve returns the active adjustment delta for the scope, defaulting
// to zero hours when none is stored.
func (r *AdjustmentResolver) Resolve(ctx context.Context, projectID ProjectID, userID UserID, period Period) (ResolvedAdjustment, error) {
	key := AdjustmentKey{
		ProjectID:   projectID,
		UserID:      userID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Scope:       ScopeProject,
	}

	adj, err := r.Store.FindActive(ctx, key)
	if err != nil {
		return ResolvedAdjustment{}, fmt.Errorf("find active adjustment: %w", err)
	}
	if !adj.Active() {
		return ResolvedAdjustment{Hours: ZeroHours()}, nil
	}

	at := adj.AdjustedAt
	return ResolvedAdjustment{Hours: adj.AdjustmentHours, AdjustedAt: &at}, nil
}
