/*
validator.go - Arithmetic integrity checks for derived billing rows

PURPOSE:
  Verifies that each derived quantity is consistent with its inputs
  within a numeric tolerance:

    base_billable_hours  ≈ worked_hours + manager_adjustment
    final_billable_hours ≈ base_billable_hours + management_adjustment

  Violations are diagnostics, never failures. A billing report must stay
  available even when upstream data is inconsistent; an inconsistency is
  a signal to operators, not a denial of billing visibility to users.
  The report builder logs each violation with the offending resource's
  identity and increments a metric.
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntegrityTolerance is the maximum allowed drift between a derived
// quantity and the sum of its inputs (0.01 hour, i.e. 36 seconds).
var IntegrityTolerance = decimal.NewFromFloat(0.01)

const (
	CheckBaseBillable  = "base_billable_hours"
	CheckFinalBillable = "final_billable_hours"
)

// IntegrityViolation describes one failed consistency check.
type IntegrityViolation struct {
	ProjectID ProjectID
	UserID    UserID
	Check     string // CheckBaseBillable or CheckFinalBillable
	Expected  Hours
	Actual    Hours
}

func (v IntegrityViolation) Delta() Hours {
	return v.Actual.Sub(v.Expected)
}

func (v IntegrityViolation) String() string {
	return fmt.Sprintf("%s mismatch for user %s on project %s: expected %s, got %s",
		v.Check, v.UserID, v.ProjectID, v.Expected, v.Actual)
}

// IntegrityInput is the full derivation chain for one resource row.
type IntegrityInput struct {
	ProjectID ProjectID
	UserID    UserID

	WorkedHours          Hours
	ManagerAdjustment    Hours
	BaseBillableHours    Hours
	ManagementAdjustment Hours
	FinalBillableHours   Hours
}

// ValidateResourceIntegrity is a pure function, called once per resource
// before it is included in a report. It never blocks report construction.
func ValidateResourceIntegrity(in IntegrityInput) []IntegrityViolation {
	var violations []IntegrityViolation

	expectedBase := in.WorkedHours.Add(in.ManagerAdjustment)
	if !in.BaseBillableHours.WithinTolerance(expectedBase, IntegrityTolerance) {
		violations = append(violations, IntegrityViolation{
			ProjectID: in.ProjectID,
			UserID:    in.UserID,
			Check:     CheckBaseBillable,
			Expected:  expectedBase,
			Actual:    in.BaseBillableHours,
		})
	}

	expectedFinal := in.BaseBillableHours.Add(in.ManagementAdjustment)
	if !in.FinalBillableHours.WithinTolerance(expectedFinal, IntegrityTolerance) {
		violations = append(violations, IntegrityViolation{
			ProjectID: in.ProjectID,
			UserID:    in.UserID,
			Check:     CheckFinalBillable,
			Expected:  expectedFinal,
			Actual:    in.FinalBillableHours,
		})
	}

	return violations
}
