/*
errors.go - Centralized error types for the billing engine

ERROR TAXONOMY (matters for callers):
  1. no-data        - zero eligible approvals for a requested scope.
                      Report building renders this as a zero-valued row;
                      only Adjustment Commit treats it as a failure
                      (cannot adjust what was never approved).
  2. integrity       - arithmetic inconsistency between derived quantities.
                      NEVER returned as an error; surfaced as
                      IntegrityViolation diagnostics (see validator.go).
  3. persistence     - storage failures, wrapped and propagated as-is.

USAGE:
  if errors.Is(err, billing.ErrNoApprovedData) { ... }
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoApprovedData is returned when an operation requires approved
	// billing data for a scope and none exists.
	ErrNoApprovedData = errors.New("no approved billing data for scope")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrAdjustmentNotFound is returned when deleting a non-existent adjustment.
	ErrAdjustmentNotFound = errors.New("adjustment not found")

	// ErrNoProjects is returned when a report request resolves to zero projects.
	ErrNoProjects = errors.New("no projects match the requested scope")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NoApprovedDataError identifies the scope that had no eligible approvals.
type NoApprovedDataError struct {
	ProjectID ProjectID
	UserID    UserID
	Period    Period
}

func (e *NoApprovedDataError) Error() string {
	return fmt.Sprintf("no approved billing data for user %s on project %s in %s",
		e.UserID, e.ProjectID, e.Period)
}

func (e *NoApprovedDataError) Unwrap() error { return ErrNoApprovedData }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input
// rather than an engine or storage defect.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoApprovedData) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrNoProjects)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAdjustmentNotFound)
}
