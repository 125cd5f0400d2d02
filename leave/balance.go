/*
balance.go - Entitlement window and remaining days

PURPOSE:
  Answers two questions for an employee at a date: may they take leave at
  all (eligibility), and how many days are left in the current work year.

WORK YEAR:
  A rolling 12-month window anchored to the anniversary of the first working
  day, not the calendar year. A Jan 10 hire has work years Jan 10 - Jan 9.

  ┌──────────── work year N ────────────┐┌──────── work year N+1 ───────
  │ Jan 10 2025               Jan 9 2026││ Jan 10 2026 ...
  └─────────────────────────────────────┘└──────────────────────────────

DERIVED, NEVER STORED:
  remaining = max(0, quota - Σ days of Approved requests whose StartDate
  falls inside the window). Balance is recomputed from history on every read,
  so there is no counter to drift or double-decrement. A request only
  counts once HR approves it.

ELIGIBILITY:
  Closed until firstWorkingDay + 3 months. Checked independently of the
  balance and before it.

SEE ALSO:
  - generic/period.go: Anniversary period calculation
  - coordinator.go: Validation pipeline that calls this
*/
package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// BalanceLedger computes balances from the request history. It never writes.
type BalanceLedger struct {
	Requests RequestRepository
	Policy   Policy
}

// NewBalanceLedger creates a ledger reading from repo.
func NewBalanceLedger(repo RequestRepository, policy Policy) *BalanceLedger {
	return &BalanceLedger{Requests: repo, Policy: policy.withDefaults()}
}

// QuotaFor returns the employee's annual entitlement.
func (l *BalanceLedger) QuotaFor(emp Employee) generic.Amount {
	if emp.AnnualQuota != nil && *emp.AnnualQuota >= 0 {
		return generic.Days(*emp.AnnualQuota)
	}
	return generic.Days(l.Policy.withDefaults().AnnualQuota)
}

// WorkYear returns the anniversary window containing asOf.
func (l *BalanceLedger) WorkYear(emp Employee, asOf generic.TimePoint) (generic.Period, error) {
	if emp.FirstWorkingDay == nil || emp.FirstWorkingDay.IsZero() {
		return generic.Period{}, &IneligibleError{
			EmployeeID: emp.ID,
			Reason:     "first working day is not recorded",
		}
	}
	return generic.Anniversary(*emp.FirstWorkingDay).PeriodFor(asOf), nil
}

// EligibleFrom is the first day the employee may take leave.
func (l *BalanceLedger) EligibleFrom(emp Employee) (generic.TimePoint, bool) {
	if emp.FirstWorkingDay == nil || emp.FirstWorkingDay.IsZero() {
		return generic.TimePoint{}, false
	}
	return emp.FirstWorkingDay.AddMonths(l.Policy.withDefaults().EligibilityMonths), true
}

// IsEligible reports whether emp may take leave at asOf, with a
// human-readable reason when not.
func (l *BalanceLedger) IsEligible(emp Employee, asOf generic.TimePoint) (bool, string) {
	if !emp.Active {
		return false, "employee is deactivated"
	}
	from, ok := l.EligibleFrom(emp)
	if !ok {
		return false, "first working day is not recorded"
	}
	if asOf.Before(from) {
		return false, fmt.Sprintf("leave becomes available %d months after the first working day, on %s",
			l.Policy.withDefaults().EligibilityMonths, from)
	}
	return true, ""
}

// CheckEligible is IsEligible as an error.
func (l *BalanceLedger) CheckEligible(emp Employee, asOf generic.TimePoint) error {
	ok, reason := l.IsEligible(emp, asOf)
	if ok {
		return nil
	}
	from, _ := l.EligibleFrom(emp)
	if !emp.Active {
		from = generic.TimePoint{}
	}
	return &IneligibleError{EmployeeID: emp.ID, Reason: reason, EligibleFrom: from}
}

// GetBalance computes the balance for the work year containing asOf.
// A fresh employee with no history gets the full quota.
func (l *BalanceLedger) GetBalance(ctx context.Context, emp Employee, asOf generic.TimePoint) (Balance, error) {
	window, err := l.WorkYear(emp, asOf)
	if err != nil {
		return Balance{}, err
	}

	history, err := l.Requests.ListByEmployeeInWindow(ctx, emp.ID, window.Start, window.End)
	if err != nil {
		return Balance{}, readErr("list employee requests", err)
	}

	quota := l.QuotaFor(emp)
	used := generic.Days(0)
	for _, r := range history {
		if r.State != StateApproved || !window.Contains(r.StartDate) {
			continue
		}
		used = used.Add(generic.Days(r.Days))
	}

	return Balance{
		EmployeeID:  emp.ID,
		AnnualQuota: quota,
		Used:        used,
		Remaining:   quota.Sub(used).ClampZero(),
		WorkYear:    window,
	}, nil
}

// CheckSufficient fails with InsufficientBalanceError when days exceed the
// remaining balance of the work year containing asOf.
func (l *BalanceLedger) CheckSufficient(ctx context.Context, emp Employee, asOf generic.TimePoint, days int) (Balance, error) {
	bal, err := l.GetBalance(ctx, emp, asOf)
	if err != nil {
		return Balance{}, err
	}
	requested := generic.Days(days)
	if requested.GreaterThan(bal.Remaining) {
		return bal, &InsufficientBalanceError{
			EmployeeID: emp.ID,
			Requested:  requested,
			Remaining:  bal.Remaining,
			WorkYear:   bal.WorkYear,
		}
	}
	return bal, nil
}
