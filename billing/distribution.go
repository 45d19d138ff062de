/*
distribution.go - Proportional redistribution of a project's billable hours

PURPOSE:
  Lets management retarget a project's total billable hours without
  editing every resource's adjustment by hand. Given the current
  per-resource billing rows and a desired new total, computes a target
  allocation per resource:

    - Additions are distributed proportionally to each resource's share
      of the current total, capped at that resource's worked hours
      (nobody bills more than they worked). When the current total is
      zero the addition is split evenly instead.
    - Reductions shrink each resource proportionally, floored at zero.
    - A reduction against a zero current total is a no-op.

  The result is a PREVIEW. Translating a target into a persisted
  adjustment (adjustment_hours = target - base_billable_hours) is a
  separate, explicit step via the adjustment commit path; what-if
  exploration never writes anything.

SHORTFALL:
  When worked-hours capping leaves the requested total unreachable, the
  capped-away excess is NOT reallocated to uncapped resources. The
  result reports it as UnallocatedHours so callers can see exactly how
  far short the allocation landed rather than silently dropping it.
*/
package billing

import "github.com/shopspring/decimal"

// BillableTarget is one resource's computed target allocation.
type BillableTarget struct {
	UserID       UserID
	CurrentHours Hours // final billable hours entering the calculation
	WorkedHours  Hours
	TargetHours  Hours
	Capped       bool // true when the worked-hours cap truncated an addition
}

// Delta returns the change this target represents over the current hours.
func (t BillableTarget) Delta() Hours {
	return t.TargetHours.Sub(t.CurrentHours)
}

// DistributionResult carries the full allocation plus conservation data.
type DistributionResult struct {
	Targets []BillableTarget

	CurrentTotal   Hours
	RequestedTotal Hours
	AllocatedTotal Hours

	// UnallocatedHours = RequestedTotal - AllocatedTotal. Positive when
	// worked-hours capping (or a no-op zero-total reduction) left the
	// request unreached.
	UnallocatedHours Hours
}

// CalculateProjectBillableTargets redistributes the delta between the
// current total billable hours and targetTotal across the given resources.
// Pure function: it reads the resource rows and writes nothing.
func CalculateProjectBillableTargets(resources []ResourceBillingData, targetTotal Hours) DistributionResult {
	currentTotal := ZeroHours()
	for _, r := range resources {
		currentTotal = currentTotal.Add(r.FinalBillableHours)
	}

	difference := targetTotal.Sub(currentTotal)

	targets := make([]BillableTarget, len(resources))
	for i, r := range resources {
		targets[i] = BillableTarget{
			UserID:       r.UserID,
			CurrentHours: r.FinalBillableHours,
			WorkedHours:  r.WorkedHours,
			TargetHours:  r.FinalBillableHours,
		}
	}

	switch {
	case difference.IsPositive():
		distributeAdditionalHours(targets, currentTotal, difference)
	case difference.IsNegative() && !currentTotal.IsZero():
		reduceHoursProportionally(targets, currentTotal, difference)
	default:
		// difference == 0, or a reduction against a zero current total:
		// nothing to move.
	}

	allocated := ZeroHours()
	for _, t := range targets {
		allocated = allocated.Add(t.TargetHours)
	}

	return DistributionResult{
		Targets:          targets,
		CurrentTotal:     currentTotal,
		RequestedTotal:   targetTotal,
		AllocatedTotal:   allocated,
		UnallocatedHours: targetTotal.Sub(allocated),
	}
}

// distributeAdditionalHours spreads a positive delta proportionally to each
// resource's current share, capping each target at its worked hours. A zero
// current total means there is no share to be proportional to, so the
// addition splits evenly.
func distributeAdditionalHours(targets []BillableTarget, currentTotal, difference Hours) {
	if len(targets) == 0 {
		return
	}

	evenSplit := currentTotal.IsZero()
	perResource := difference.Div(decimal.NewFromInt(int64(len(targets))))

	for i := range targets {
		var share Hours
		if evenSplit {
			share = perResource
		} else {
			proportion := targets[i].CurrentHours.Value.Div(currentTotal.Value)
			share = difference.Mul(proportion)
		}

		target := targets[i].CurrentHours.Add(share)
		if target.GreaterThan(targets[i].WorkedHours) {
			target = targets[i].WorkedHours
			targets[i].Capped = true
		}
		targets[i].TargetHours = target
	}
}

// reduceHoursProportionally shrinks each resource by its share of a
// negative delta, flooring every target at zero.
func reduceHoursProportionally(targets []BillableTarget, currentTotal, difference Hours) {
	for i := range targets {
		proportion := targets[i].CurrentHours.Value.Div(currentTotal.Value)
		target := targets[i].CurrentHours.Add(difference.Mul(proportion))
		targets[i].TargetHours = target.Max(ZeroHours())
	}
}
