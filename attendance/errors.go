/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All engine error kinds in one place. The HTTP layer maps kinds to status
  codes; nothing here is fatal to the process.

ERROR CATEGORIES:
  1. Precondition violations - transition not legal from current state
  2. Validation failures     - bad caller input (work log, admin notes)
  3. Policy failures         - blocked by Configured-mode rules
  4. Lookup failures         - unknown employee
  5. Storage failures        - the record store is unreachable

USAGE:
  if errors.Is(err, attendance.ErrAlreadyCheckedIn) { ... }

  var pv *attendance.PolicyViolationError
  if errors.As(err, &pv) {
      retryAt := pv.NextAllowedAt
  }

SEE ALSO:
  - machine.go: Returns precondition/validation errors
  - guard.go: Produces policy decisions wrapped into errors here
*/
package attendance

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Precondition violations.
	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrNotCheckedIn       = errors.New("not checked in")
	ErrAlreadyCheckedOut  = errors.New("already checked out")
	ErrBreakAlreadyActive = errors.New("a break is already active")
	ErrNoActiveBreak      = errors.New("no active break")
	ErrNoActiveBreaks     = errors.New("no active breaks to end")
	ErrNoAttendanceToday  = errors.New("no attendance record for today")

	// Validation failures.
	ErrWorkLogMissing  = errors.New("work log notes are required")
	ErrWorkLogTooShort = errors.New("work log notes must be at least 30 characters")
	ErrNotesRequired   = errors.New("administrative notes are required")

	// Policy failures.
	ErrPolicyViolation   = errors.New("blocked by attendance policy")
	ErrBreakLimitReached = errors.New("daily break limit reached")

	// Lookup failures.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrStorageUnavailable wraps record/settings store failures. The engine
	// never retries; retry policy belongs to the storage layer.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PolicyViolationError reports a hard block from the policy guard, with the
// next instant at which the action would be allowed when computable.
type PolicyViolationError struct {
	Action        Action
	Reason        string
	NextAllowedAt *time.Time
}

func (e *PolicyViolationError) Error() string {
	if e.NextAllowedAt != nil {
		return fmt.Sprintf("%s: %s (next allowed at %s)",
			e.Action, e.Reason, e.NextAllowedAt.Format("15:04"))
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// BreakLimitError reports that the day's accumulated break time has reached
// the configured limit.
type BreakLimitError struct {
	LimitMinutes int
	UsedMinutes  int64
}

func (e *BreakLimitError) Error() string {
	return fmt.Sprintf("daily break limit reached: %d of %d minutes used",
		e.UsedMinutes, e.LimitMinutes)
}

func (e *BreakLimitError) Unwrap() error { return ErrBreakLimitReached }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsPrecondition returns true when the transition is not legal from the
// record's current state. Reported to the caller, never retried.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrNotCheckedIn) ||
		errors.Is(err, ErrAlreadyCheckedOut) ||
		errors.Is(err, ErrBreakAlreadyActive) ||
		errors.Is(err, ErrNoActiveBreak) ||
		errors.Is(err, ErrNoActiveBreaks) ||
		errors.Is(err, ErrNoAttendanceToday)
}

// IsValidation returns true for bad caller input, surfaced verbatim.
func IsValidation(err error) bool {
	return errors.Is(err, ErrWorkLogMissing) ||
		errors.Is(err, ErrWorkLogTooShort) ||
		errors.Is(err, ErrNotesRequired)
}

// IsPolicy returns true when a Configured-mode rule blocked the action.
func IsPolicy(err error) bool {
	return errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrBreakLimitReached)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound)
}

// storageErr tags an underlying store failure with ErrStorageUnavailable.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
