/*
coordinator.go - Facade the chat layer calls

PURPOSE:
  Runs the validation pipeline, drives the state machine, persists each
  transition with a single repository call and returns notification intents.
  The chat layer renders and delivers the intents; the coordinator never
  formats text or talks to a transport.

SUBMIT FLOW:
  ┌───────────┐   ┌───────────────┐   ┌───────────────────┐   ┌─────────┐
  │ idem. key │──▶│ lock employee │──▶│ validate (1..5)   │──▶│ Create  │
  │  lookup   │   │ + lock team   │   │ first failure wins│   │ (once)  │
  └───────────┘   └───────────────┘   └───────────────────┘   └─────────┘

  Validation order:
    1. dates well-formed, start not in the past, emergency reason present
    2. Regular day count within [1, MaxRegularDays]
    3. eligibility gate
    4. balance sufficiency (days <= remaining)
    5. conflicts

DECIDE FLOW:
  lock request -> load -> already applied? (no-op success) -> transition ->
  authorize -> compare-and-swap(id, expected state) -> intents

  A losing concurrent writer gets InvalidTransitionError{Stale: true}.
  Re-delivering a decision that is already recorded returns the request and
  no intents, so nothing is double-sent.

CONCURRENCY:
  Submit holds the employee lock and the department+team lock while it
  validates and creates, so two submissions for the same person or team
  cannot both pass against the same snapshot inside one Locker domain.
  Decisions are serialized per request.

SEE ALSO:
  - machine.go: Transition rules
  - balance.go, conflict.go: Validation steps 3-5
  - notify.go: Intent construction
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/lock"
)

// Recorder receives outcome counts. observability.Metrics implements it.
type Recorder interface {
	ObserveSubmit(kind Kind, outcome string, elapsed time.Duration)
	ObserveDecision(action Action, outcome string, elapsed time.Duration)
}

// =============================================================================
// INPUTS
// =============================================================================

// SubmitInput is what the chat layer collected from the employee.
type SubmitInput struct {
	EmployeeID EmployeeID
	StartDate  generic.TimePoint
	EndDate    generic.TimePoint
	Kind       Kind
	Reason     string

	// IdempotencyKey is derived by the caller from the transport delivery id.
	IdempotencyKey string
}

// DecideInput is a PM or HR decision.
type DecideInput struct {
	RequestID RequestID
	ActorID   EmployeeID
	Approve   bool
	Comment   string
}

// CancelInput is a requester withdrawing a pending request.
type CancelInput struct {
	RequestID RequestID
	ActorID   EmployeeID
	Reason    string
}

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	Requests  RequestRepository
	Employees EmployeeDirectory
	Ledger    *BalanceLedger
	Conflicts *ConflictDetector
	Machine   Machine
	Locker    Locker
	Audit     AuditLog // optional
	Recorder  Recorder // optional
	Logger    *zap.Logger

	// Now is the clock; "today" for past-date and eligibility checks.
	Now func() time.Time
}

// NewCoordinator wires the engine over a repository and directory.
// Locker defaults to an in-process keyed mutex.
func NewCoordinator(requests RequestRepository, employees EmployeeDirectory, policy Policy) *Coordinator {
	return &Coordinator{
		Requests:  requests,
		Employees: employees,
		Ledger:    NewBalanceLedger(requests, policy),
		Conflicts: NewConflictDetector(requests),
		Locker:    lock.NewLocal(),
		Logger:    zap.NewNop(),
		Now:       time.Now,
	}
}

func (c *Coordinator) today() generic.TimePoint {
	if c.Now == nil {
		return generic.Today()
	}
	return generic.DateOf(c.Now())
}

func (c *Coordinator) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

func (c *Coordinator) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Get returns a request by id.
func (c *Coordinator) Get(ctx context.Context, id RequestID) (VacationRequest, error) {
	req, ok, err := c.Requests.Get(ctx, id)
	if err != nil {
		return VacationRequest{}, readErr("get request", err)
	}
	if !ok {
		return VacationRequest{}, &NotFoundError{Resource: "request", ID: string(id)}
	}
	return req, nil
}

func (c *Coordinator) employee(ctx context.Context, id EmployeeID) (Employee, error) {
	emp, ok, err := c.Employees.Get(ctx, id)
	if err != nil {
		return Employee{}, readErr("get employee", err)
	}
	if !ok {
		return Employee{}, &NotFoundError{Resource: "employee", ID: string(id)}
	}
	return emp, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and creates a request. On a denial that business policy
// escalates (insufficient balance, or any eligibility/balance/conflict denial
// of an Emergency request) the returned intents carry an HR visibility
// notice alongside the error.
func (c *Coordinator) Submit(ctx context.Context, in SubmitInput) (VacationRequest, []NotificationIntent, error) {
	started := time.Now()
	req, intents, outcome, err := c.submit(ctx, in)
	if c.Recorder != nil {
		c.Recorder.ObserveSubmit(in.Kind, outcome, time.Since(started))
	}
	return req, intents, err
}

func (c *Coordinator) submit(ctx context.Context, in SubmitInput) (VacationRequest, []NotificationIntent, string, error) {
	if existing, ok, err := c.byKey(ctx, in.IdempotencyKey); err != nil || ok {
		return existing, nil, outcomeOf(err, "duplicate"), err
	}

	emp, err := c.employee(ctx, in.EmployeeID)
	if err != nil {
		return VacationRequest{}, nil, KindOf(err), err
	}

	var (
		created VacationRequest
		intents []NotificationIntent
		outcome = "ok"
	)
	err = c.Locker.WithLock(ctx, employeeLockKey(emp.ID), func(ctx context.Context) error {
		return c.Locker.WithLock(ctx, unitLockKey(emp.Department, emp.Team), func(ctx context.Context) error {
			// a retry may have raced us to the lock
			if existing, ok, err := c.byKey(ctx, in.IdempotencyKey); err != nil || ok {
				created, outcome = existing, outcomeOf(err, "duplicate")
				return err
			}

			draft, stage, err := c.validate(ctx, emp, in)
			if err != nil {
				outcome = KindOf(err)
				if escalates(in.Kind, stage, err) {
					intents = []NotificationIntent{deniedIntent(draft, err)}
					c.audit(ctx, AuditEntry{ActorID: emp.ID, Action: AuditRequestDenied, Payload: map[string]any{
						"kind": string(in.Kind), "error_kind": outcome,
						"start": draft.StartDate.String(), "end": draft.EndDate.String(),
					}})
				}
				return err
			}

			if err := c.Requests.Create(ctx, draft); err != nil {
				if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
					existing, _, gerr := c.byKey(ctx, in.IdempotencyKey)
					created, outcome = existing, outcomeOf(gerr, "duplicate")
					return gerr
				}
				outcome = "repository"
				return writeErr("create request", err)
			}

			created = draft
			intents = submittedIntents(draft)
			c.audit(ctx, AuditEntry{ActorID: emp.ID, Action: AuditRequestSubmitted, RequestID: draft.ID, Payload: map[string]any{
				"state": string(draft.State), "kind": string(draft.Kind), "days": draft.Days,
			}})
			return nil
		})
	})
	if err != nil {
		c.log().Info("leave request denied",
			zap.String("employee_id", string(emp.ID)),
			zap.String("kind", string(in.Kind)),
			zap.String("outcome", outcome),
			zap.Error(err))
		return VacationRequest{}, intents, outcome, err
	}

	if outcome == "ok" {
		c.log().Info("leave request submitted",
			zap.String("request_id", string(created.ID)),
			zap.String("employee_id", string(emp.ID)),
			zap.String("state", string(created.State)),
			zap.Int("days", created.Days))
	}
	return created, intents, outcome, nil
}

// validation stages, in pipeline order
const (
	stageInput = iota + 1
	stageRange
	stageEligibility
	stageBalance
	stageConflict
)

// validate runs the pipeline and returns the request to persist. On failure
// the draft is still returned so a visibility intent can describe it.
func (c *Coordinator) validate(ctx context.Context, emp Employee, in SubmitInput) (VacationRequest, int, error) {
	today := c.today()
	now := c.now()
	period := generic.Period{Start: in.StartDate, End: in.EndDate}

	draft := VacationRequest{
		ID:             RequestID("req-" + uuid.NewString()),
		EmployeeID:     emp.ID,
		Department:     emp.Department,
		Team:           emp.Team,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Kind:           in.Kind,
		Reason:         in.Reason,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if emp.HasPM() {
		draft.PMID = emp.ManagerID
	}

	// 1. input
	if !in.Kind.Valid() {
		return draft, stageInput, &InvalidInputError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", in.Kind)}
	}
	if in.Kind == KindEmergency && strings.TrimSpace(in.Reason) == "" {
		return draft, stageInput, &InvalidInputError{Field: "reason", Message: "emergency requests need a reason"}
	}
	if err := period.Validate(); err != nil {
		return draft, stageInput, &InvalidInputError{Field: "dates", Message: "start date must be on or before end date"}
	}
	if in.StartDate.Before(today) {
		return draft, stageInput, &InvalidInputError{Field: "start_date", Message: fmt.Sprintf("%s is in the past", in.StartDate)}
	}
	draft.Days = period.DayCount()

	// 2. range
	maxDays := c.Ledger.Policy.withDefaults().MaxRegularDays
	if in.Kind == KindRegular && (draft.Days < 1 || draft.Days > maxDays) {
		return draft, stageRange, &RangeViolationError{Days: draft.Days, Min: 1, Max: maxDays}
	}

	// 3. eligibility
	if err := c.Ledger.CheckEligible(emp, today); err != nil {
		return draft, stageEligibility, err
	}

	// 4. balance, in the work year the leave starts in
	if _, err := c.Ledger.CheckSufficient(ctx, emp, in.StartDate, draft.Days); err != nil {
		return draft, stageBalance, err
	}

	// 5. conflicts
	conflicts, err := c.Conflicts.FindConflicts(ctx, Candidate{
		EmployeeID: emp.ID,
		Department: emp.Department,
		Team:       emp.Team,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
	})
	if err != nil {
		return draft, stageConflict, err
	}
	if len(conflicts) > 0 {
		return draft, stageConflict, &ConflictError{Conflicts: conflicts}
	}

	draft.State = c.Machine.Initial(in.Kind, emp.HasPM())
	return draft, 0, nil
}

// escalates reports whether HR must see a denied submission.
func escalates(kind Kind, stage int, err error) bool {
	if errors.Is(err, ErrInsufficientBalance) {
		return true
	}
	if errors.Is(err, ErrRepository) {
		return false
	}
	return kind == KindEmergency && stage >= stageEligibility
}

func (c *Coordinator) byKey(ctx context.Context, key string) (VacationRequest, bool, error) {
	if key == "" {
		return VacationRequest{}, false, nil
	}
	req, ok, err := c.Requests.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return VacationRequest{}, false, readErr("get by idempotency key", err)
	}
	return req, ok, nil
}

// =============================================================================
// DECIDE / CANCEL
// =============================================================================

// Decide applies a PM or HR decision.
func (c *Coordinator) Decide(ctx context.Context, in DecideInput) (VacationRequest, []NotificationIntent, error) {
	action := ActionReject
	if in.Approve {
		action = ActionApprove
	}
	return c.apply(ctx, in.RequestID, in.ActorID, action, in.Comment)
}

// Cancel withdraws a pending request on behalf of its requester.
func (c *Coordinator) Cancel(ctx context.Context, in CancelInput) (VacationRequest, []NotificationIntent, error) {
	return c.apply(ctx, in.RequestID, in.ActorID, ActionCancel, in.Reason)
}

func (c *Coordinator) apply(ctx context.Context, id RequestID, actorID EmployeeID, action Action, comment string) (VacationRequest, []NotificationIntent, error) {
	started := time.Now()
	var (
		result  VacationRequest
		intents []NotificationIntent
		outcome = "ok"
	)
	err := c.Locker.WithLock(ctx, requestLockKey(id), func(ctx context.Context) error {
		req, err := c.Get(ctx, id)
		if err != nil {
			return err
		}
		actor, err := c.employee(ctx, actorID)
		if err != nil {
			return err
		}

		if c.Machine.AlreadyApplied(req, actor.ID, action) {
			result, outcome = req, "duplicate"
			return nil
		}

		next, decision, err := c.Machine.Decide(req, actor.ID, action, comment, c.now())
		if err != nil {
			return err
		}
		if err := c.Machine.Authorize(req, actor, action); err != nil {
			return err
		}

		if err := c.Requests.CompareAndSwapState(ctx, req.ID, req.State, next, decision); err != nil {
			return c.casFailure(ctx, req, action, err)
		}

		result = req.Apply(next, decision)
		intents = transitionIntents(req.State, result)
		c.audit(ctx, AuditEntry{ActorID: actor.ID, Action: auditActionFor(next), RequestID: req.ID, Payload: map[string]any{
			"from": string(req.State), "to": string(next), "comment": comment,
		}})
		return nil
	})
	if err != nil {
		outcome = KindOf(err)
	}
	if c.Recorder != nil {
		c.Recorder.ObserveDecision(action, outcome, time.Since(started))
	}
	if err != nil {
		c.log().Info("leave decision refused",
			zap.String("request_id", string(id)),
			zap.String("actor_id", string(actorID)),
			zap.String("action", string(action)),
			zap.String("outcome", outcome),
			zap.Error(err))
		return VacationRequest{}, nil, err
	}
	if outcome == "ok" {
		c.log().Info("leave request transitioned",
			zap.String("request_id", string(id)),
			zap.String("actor_id", string(actorID)),
			zap.String("action", string(action)),
			zap.String("state", string(result.State)))
	}
	return result, intents, nil
}

// casFailure turns a failed compare-and-swap into the caller-facing kind.
// It is never retried here.
func (c *Coordinator) casFailure(ctx context.Context, req VacationRequest, action Action, err error) error {
	switch {
	case errors.Is(err, generic.ErrConcurrentModification):
		current := req.State
		if fresh, ok, gerr := c.Requests.Get(ctx, req.ID); gerr == nil && ok {
			current = fresh.State
		}
		return &InvalidTransitionError{RequestID: req.ID, From: current, Action: action, Stale: true}
	case generic.IsNotFound(err):
		return &NotFoundError{Resource: "request", ID: string(req.ID)}
	}
	return writeErr("compare and swap state", err)
}

func auditActionFor(to State) AuditAction {
	switch to {
	case StatePendingHR:
		return AuditRequestForwarded
	case StateApproved:
		return AuditRequestApproved
	case StateRejected:
		return AuditRequestRejected
	}
	return AuditRequestCancelled
}

// =============================================================================
// QUERIES
// =============================================================================

// Balance returns the employee's balance for the work year containing asOf.
func (c *Coordinator) Balance(ctx context.Context, employeeID EmployeeID, asOf generic.TimePoint) (Balance, error) {
	emp, err := c.employee(ctx, employeeID)
	if err != nil {
		return Balance{}, err
	}
	if asOf.IsZero() {
		asOf = c.today()
	}
	return c.Ledger.GetBalance(ctx, emp, asOf)
}

// ConflictsFor re-evaluates conflicts for an existing request.
func (c *Coordinator) ConflictsFor(ctx context.Context, id RequestID) ([]Conflict, error) {
	req, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Conflicts.FindConflicts(ctx, Candidate{
		EmployeeID:       req.EmployeeID,
		Department:       req.Department,
		Team:             req.Team,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		ExcludeRequestID: req.ID,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// audit is best effort: the transition is already committed.
func (c *Coordinator) audit(ctx context.Context, entry AuditEntry) {
	if c.Audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = c.now()
	if err := c.Audit.AppendAudit(ctx, entry); err != nil {
		c.log().Warn("audit append failed",
			zap.String("request_id", string(entry.RequestID)),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func employeeLockKey(id EmployeeID) string { return "leave:employee:" + string(id) }
func requestLockKey(id RequestID) string   { return "leave:request:" + string(id) }
func unitLockKey(department, team string) string {
	return "leave:unit:" + department + "/" + team
}

func outcomeOf(err error, ok string) string {
	if err != nil {
		return KindOf(err)
	}
	return ok
}

