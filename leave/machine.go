/*
machine.go - Approval state machine

STATES:
  PendingPM, PendingHR, Approved, Rejected, Cancelled. There is no Draft: a
  request only exists once validated and persisted.

TRANSITIONS:
  ┌──────────────┐  Regular, PM assigned
  │    Submit    │─────────────────────────▶ PendingPM
  └──────────────┘                              │
         │  Regular without PM, or Emergency    │ PM approve
         ▼                                      ▼
     PendingHR ◀────────────────────────────────┘
         │
         ├── HR approve ──▶ Approved   (only path that affects balance)
         └── HR reject  ──▶ Rejected
  PendingPM ── PM reject ──▶ Rejected
  PendingPM | PendingHR ── requester cancel ──▶ Cancelled

  Approved, Rejected and Cancelled are terminal. PendingPM can never reach
  Approved without passing PendingHR.

AUTHORIZATION:
  One check for every decision: the actor's role must match the stage the
  request is waiting in. PM stage: the PM snapshotted on the request. HR
  stage: any HR. Cancel: the requester.

SEE ALSO:
  - coordinator.go: Persists transitions with compare-and-swap
*/
package leave

import "time"

// Action is what an actor asks the machine to do.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Machine is stateless; every method is a pure function of its inputs.
type Machine struct{}

// Initial returns the state a freshly submitted request starts in.
func (Machine) Initial(kind Kind, hasPM bool) State {
	if kind == KindEmergency || !hasPM {
		return StatePendingHR
	}
	return StatePendingPM
}

// StageFor returns which stage an action against state belongs to.
func (Machine) StageFor(state State, action Action) (Stage, bool) {
	if action == ActionCancel {
		return StageCancel, state == StatePendingPM || state == StatePendingHR
	}
	switch state {
	case StatePendingPM:
		return StagePM, true
	case StatePendingHR:
		return StageHR, true
	}
	return "", false
}

// Transition returns the next state for action against req, or
// InvalidTransitionError.
func (m Machine) Transition(req VacationRequest, action Action) (State, error) {
	stage, ok := m.StageFor(req.State, action)
	if !ok {
		return req.State, &InvalidTransitionError{RequestID: req.ID, From: req.State, Action: action}
	}
	switch stage {
	case StageCancel:
		return StateCancelled, nil
	case StagePM:
		if action == ActionApprove {
			return StatePendingHR, nil
		}
		return StateRejected, nil
	default:
		if action == ActionApprove {
			return StateApproved, nil
		}
		return StateRejected, nil
	}
}

// Authorize checks that actor may perform action on req in its current state.
// Call after Transition has accepted the action.
func (m Machine) Authorize(req VacationRequest, actor Employee, action Action) error {
	stage, ok := m.StageFor(req.State, action)
	if !ok {
		return &InvalidTransitionError{RequestID: req.ID, From: req.State, Action: action}
	}
	deny := func(reason string) error {
		return &ForbiddenError{ActorID: actor.ID, Action: action, Reason: reason}
	}
	// An approver at the other approver's stage is out of turn, not unauthorized.
	wrongStage := &InvalidTransitionError{RequestID: req.ID, From: req.State, Action: action}
	switch stage {
	case StageCancel:
		if actor.ID != req.EmployeeID {
			return deny("only the requester can cancel")
		}
	case StagePM:
		if actor.Role == RoleHR {
			return wrongStage
		}
		if actor.Role != RolePM {
			return deny("request is waiting for a project manager")
		}
		if req.PMID != "" && actor.ID != req.PMID {
			return deny("request is assigned to another project manager")
		}
	case StageHR:
		if actor.Role == RolePM {
			return wrongStage
		}
		if actor.Role != RoleHR {
			return deny("request is waiting for HR")
		}
		if actor.ID == req.EmployeeID {
			return deny("HR cannot decide on their own request")
		}
	}
	return nil
}

// AlreadyApplied reports whether the same actor already made the same
// decision on req, so a retried delivery can be answered without a write.
func (Machine) AlreadyApplied(req VacationRequest, actorID EmployeeID, action Action) bool {
	same := func(d *Decision, approved bool) bool {
		return d != nil && d.ActorID == actorID && d.Approved == approved
	}
	switch action {
	case ActionCancel:
		return req.State == StateCancelled && same(req.Cancellation, false)
	case ActionApprove:
		// PM approval moved the request on; HR approval finished it.
		if same(req.HRDecision, true) {
			return true
		}
		return same(req.PMDecision, true) && req.State != StatePendingPM
	case ActionReject:
		if req.State != StateRejected {
			return false
		}
		return same(req.HRDecision, false) || same(req.PMDecision, false)
	}
	return false
}

// Decide builds the decision record for a transition.
func (m Machine) Decide(req VacationRequest, actorID EmployeeID, action Action, comment string, at time.Time) (State, Decision, error) {
	next, err := m.Transition(req, action)
	if err != nil {
		return req.State, Decision{}, err
	}
	stage, _ := m.StageFor(req.State, action)
	return next, Decision{
		Stage:    stage,
		ActorID:  actorID,
		Approved: action == ActionApprove,
		Comment:  comment,
		At:       at,
	}, nil
}
