// Package leave implements the vacation request lifecycle and balance engine.
//
// The package owns four pieces that work together for every chat event:
//
//   - BalanceLedger: entitlement window and remaining days, derived from history
//   - ConflictDetector: overlapping approved leave inside a team
//   - Machine: the approval state machine (employee -> PM -> HR, emergency bypass)
//   - Coordinator: the facade the chat layer calls; serializes, persists and
//     returns notification intents
//
// Storage and employee lookups are consumed through RequestRepository and
// EmployeeDirectory (store.go). Nothing here renders text or talks to a chat
// transport.
package leave

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// POLICY CONSTANTS
// =============================================================================

const (
	// DefaultAnnualQuota is the yearly entitlement unless an employee overrides it.
	DefaultAnnualQuota = 24

	// MaxRegularDays caps a single Regular request.
	MaxRegularDays = 7

	// EligibilityMonths is how long after the first working day leave opens up.
	EligibilityMonths = 3
)

// Policy carries the business numbers the engine enforces. Zero fields fall
// back to the package defaults.
type Policy struct {
	AnnualQuota       int
	MaxRegularDays    int
	EligibilityMonths int
}

// DefaultPolicy returns the standard company rules.
func DefaultPolicy() Policy {
	return Policy{
		AnnualQuota:       DefaultAnnualQuota,
		MaxRegularDays:    MaxRegularDays,
		EligibilityMonths: EligibilityMonths,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.AnnualQuota > 0 {
		d.AnnualQuota = p.AnnualQuota
	}
	if p.MaxRegularDays > 0 {
		d.MaxRegularDays = p.MaxRegularDays
	}
	if p.EligibilityMonths > 0 {
		d.EligibilityMonths = p.EligibilityMonths
	}
	return d
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type EmployeeID string

type Role string

const (
	RoleEmployee Role = "employee"
	RolePM       Role = "pm"
	RoleHR       Role = "hr"
	RoleCEO      Role = "ceo"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RolePM, RoleHR, RoleCEO:
		return true
	}
	return false
}

// Employee is the read-only identity and org placement the engine needs.
// Organizational fields change only through HR; employees are deactivated,
// never deleted.
type Employee struct {
	ID         EmployeeID
	Name       string
	Department string
	Team       string
	SubTeam    string

	// ManagerID is the project manager who approves Regular requests.
	// Empty means no PM is assigned and requests go straight to HR.
	ManagerID EmployeeID

	FirstWorkingDay *generic.TimePoint
	Role            Role
	Active          bool

	// AnnualQuota overrides the policy quota when set.
	AnnualQuota *int
}

// HasPM reports whether Regular requests need a PM decision first.
func (e Employee) HasPM() bool { return e.ManagerID != "" }

// =============================================================================
// VACATION REQUEST
// =============================================================================

type RequestID string

type Kind string

const (
	KindRegular   Kind = "regular"
	KindEmergency Kind = "emergency"
)

func (k Kind) Valid() bool { return k == KindRegular || k == KindEmergency }

type State string

const (
	StatePendingPM State = "pending_pm"
	StatePendingHR State = "pending_hr"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected || s == StateCancelled
}

// IsLive reports whether the request still books the employee's days.
func (s State) IsLive() bool {
	return s == StatePendingPM || s == StatePendingHR || s == StateApproved
}

// Stage identifies who recorded a Decision.
type Stage string

const (
	StagePM     Stage = "pm"
	StageHR     Stage = "hr"
	StageCancel Stage = "cancel"
)

// Decision records one actor's action on a request.
type Decision struct {
	Stage    Stage
	ActorID  EmployeeID
	Approved bool
	Comment  string
	At       time.Time
}

// VacationRequest is a leave booking. It only exists once validated and
// persisted; it is immutable once State is terminal.
type VacationRequest struct {
	ID         RequestID
	EmployeeID EmployeeID

	// Snapshot of the requester's placement at submission time.
	Department string
	Team       string
	PMID       EmployeeID

	StartDate generic.TimePoint
	EndDate   generic.TimePoint
	Days      int

	Kind   Kind
	State  State
	Reason string

	PMDecision   *Decision
	HRDecision   *Decision
	Cancellation *Decision

	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Period returns the booked days as a closed range.
func (r VacationRequest) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// Apply returns a copy of r with the decision recorded and the state moved.
func (r VacationRequest) Apply(next State, d Decision) VacationRequest {
	out := r
	dec := d
	switch d.Stage {
	case StagePM:
		out.PMDecision = &dec
	case StageHR:
		out.HRDecision = &dec
	case StageCancel:
		out.Cancellation = &dec
	}
	out.State = next
	out.UpdatedAt = d.At
	return out
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// Balance is computed on every read; it is never stored.
type Balance struct {
	EmployeeID  EmployeeID
	AnnualQuota generic.Amount
	Used        generic.Amount
	Remaining   generic.Amount
	WorkYear    generic.Period
}

// Conflict is another booking that overlaps a candidate range.
type Conflict struct {
	RequestID  RequestID
	EmployeeID EmployeeID
	StartDate  generic.TimePoint
	EndDate    generic.TimePoint
	State      State

	// Own marks the requester's own live booking rather than a teammate's.
	Own bool
}
