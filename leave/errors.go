/*
errors.go - Error taxonomy surfaced to the chat layer

PURPOSE:
  Every failure the engine reports is one of a small set of kinds so the
  caller can render a precise message without parsing strings. Each kind is
  a struct carrying context that unwraps to a sentinel for errors.Is().

ERROR KINDS:
  InvalidInputError        malformed dates, past start, missing emergency reason
  RangeViolationError      Regular request outside [1, MaxRegularDays]
  IneligibleError          before the eligibility mark, no first working day
  InsufficientBalanceError days > remaining
  ConflictError            overlapping bookings (carries the list)
  InvalidTransitionError   decision against the wrong state, including stale CAS
  ForbiddenError           actor role does not match the transition
  NotFoundError            unknown request or employee
  RepositoryError          storage failure (wraps the cause)

PROPAGATION:
  Validation kinds are business-rule violations; retrying them is pointless.
  RepositoryError on a read is Retryable. RepositoryError on a state change is
  NOT: the caller must re-fetch and decide, since a blind retry could apply
  the side effect twice.

SEE ALSO:
  - generic/errors.go: Store sentinels wrapped by RepositoryError
  - api/handlers.go: HTTP status mapping
*/
package leave

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRangeViolation      = errors.New("day count out of range")
	ErrIneligible          = errors.New("not eligible for leave")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("conflicting leave")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrForbidden           = errors.New("actor not permitted")
	ErrNotFound            = errors.New("not found")
	ErrRepository          = errors.New("repository failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError reports a malformed request.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// RangeViolationError reports a Regular request longer or shorter than allowed.
type RangeViolationError struct {
	Days int
	Min  int
	Max  int
}

func (e *RangeViolationError) Error() string {
	return fmt.Sprintf("request spans %d days, allowed %d-%d", e.Days, e.Min, e.Max)
}

func (e *RangeViolationError) Unwrap() error { return ErrRangeViolation }

// IneligibleError reports that the employee cannot take leave yet.
// EligibleFrom is zero when no date would make them eligible.
type IneligibleError struct {
	EmployeeID   EmployeeID
	Reason       string
	EligibleFrom generic.TimePoint
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("employee %s not eligible: %s", e.EmployeeID, e.Reason)
}

func (e *IneligibleError) Unwrap() error { return ErrIneligible }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Requested  generic.Amount
	Remaining  generic.Amount
	WorkYear   generic.Period
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %v, remaining %v in work year %s",
		e.Requested.Value, e.Remaining.Value, e.WorkYear)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ConflictError lists every booking that overlaps the candidate range.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = string(c.RequestID)
	}
	return fmt.Sprintf("conflicts with %d request(s): %s", len(e.Conflicts), strings.Join(ids, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidTransitionError reports a decision against the wrong state.
// Stale is set when the state changed between read and compare-and-swap,
// i.e. someone else decided first.
type InvalidTransitionError struct {
	RequestID RequestID
	From      State
	Action    Action
	Stale     bool
}

func (e *InvalidTransitionError) Error() string {
	if e.Stale {
		return fmt.Sprintf("request %s already decided by someone else (now %s)", e.RequestID, e.From)
	}
	return fmt.Sprintf("cannot %s request %s in state %s", e.Action, e.RequestID, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ForbiddenError reports an actor acting outside their role.
type ForbiddenError struct {
	ActorID EmployeeID
	Action  Action
	Reason  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s cannot %s: %s", e.ActorID, e.Action, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// NotFoundError reports an unknown request or employee.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RepositoryError wraps a storage failure.
type RepositoryError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

// Is lets errors.Is match both ErrRepository and the wrapped cause.
func (e *RepositoryError) Is(target error) bool { return target == ErrRepository }

func (e *RepositoryError) Unwrap() error { return e.Err }

func readErr(op string, err error) error {
	return &RepositoryError{Op: op, Retryable: true, Err: err}
}

func writeErr(op string, err error) error {
	return &RepositoryError{Op: op, Retryable: false, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf returns a stable snake_case name for the error's kind, or "internal".
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRangeViolation):
		return "range_violation"
	case errors.Is(err, ErrIneligible):
		return "ineligible"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRepository):
		return "repository"
	}
	return "internal"
}

// IsClientError returns true if the error is due to the caller or a business rule.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case "repository", "internal":
		return false
	}
	return true
}

// IsRetryable returns true only for repository reads; writes must be re-checked.
func IsRetryable(err error) bool {
	var re *RepositoryError
	return errors.As(err, &re) && re.Retryable
}

// IsNotFound returns true if the error indicates a missing request or employee.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
