package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

var machine leave.Machine

func pending(state leave.State) leave.VacationRequest {
	return leave.VacationRequest{ID: "req-1", EmployeeID: "alice", PMID: "pat", State: state, Kind: leave.KindRegular}
}

// =============================================================================
// INITIAL STATE
// =============================================================================

func TestMachine_Initial(t *testing.T) {
	tests := []struct {
		name  string
		kind  leave.Kind
		hasPM bool
		want  leave.State
	}{
		{"regular with PM waits for PM", leave.KindRegular, true, leave.StatePendingPM},
		{"regular without PM skips to HR", leave.KindRegular, false, leave.StatePendingHR},
		{"emergency with PM bypasses PM", leave.KindEmergency, true, leave.StatePendingHR},
		{"emergency without PM goes to HR", leave.KindEmergency, false, leave.StatePendingHR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, machine.Initial(tt.kind, tt.hasPM))
		})
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestMachine_Transition_Table(t *testing.T) {
	tests := []struct {
		from   leave.State
		action leave.Action
		want   leave.State
		ok     bool
	}{
		{leave.StatePendingPM, leave.ActionApprove, leave.StatePendingHR, true},
		{leave.StatePendingPM, leave.ActionReject, leave.StateRejected, true},
		{leave.StatePendingPM, leave.ActionCancel, leave.StateCancelled, true},
		{leave.StatePendingHR, leave.ActionApprove, leave.StateApproved, true},
		{leave.StatePendingHR, leave.ActionReject, leave.StateRejected, true},
		{leave.StatePendingHR, leave.ActionCancel, leave.StateCancelled, true},
		{leave.StateApproved, leave.ActionApprove, "", false},
		{leave.StateApproved, leave.ActionReject, "", false},
		{leave.StateApproved, leave.ActionCancel, "", false},
		{leave.StateRejected, leave.ActionApprove, "", false},
		{leave.StateRejected, leave.ActionCancel, "", false},
		{leave.StateCancelled, leave.ActionApprove, "", false},
		{leave.StateCancelled, leave.ActionReject, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := machine.Transition(pending(tt.from), tt.action)
			if !tt.ok {
				var te *leave.InvalidTransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.from, te.From)
				assert.False(t, te.Stale)
				assert.Equal(t, tt.from, got, "state is unchanged on refusal")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMachine_PendingPMNeverReachesApprovedDirectly(t *testing.T) {
	// GIVEN: Every action available to anyone
	// WHEN: Applied once to a PendingPM request
	// THEN: None of them lands on Approved

	for _, a := range []leave.Action{leave.ActionApprove, leave.ActionReject, leave.ActionCancel} {
		next, err := machine.Transition(pending(leave.StatePendingPM), a)
		require.NoError(t, err)
		assert.NotEqual(t, leave.StateApproved, next, "action %s", a)
	}
}

func TestMachine_TerminalStatesAreTerminal(t *testing.T) {
	for _, s := range []leave.State{leave.StateApproved, leave.StateRejected, leave.StateCancelled} {
		assert.True(t, s.IsTerminal())
		for _, a := range []leave.Action{leave.ActionApprove, leave.ActionReject, leave.ActionCancel} {
			_, ok := machine.StageFor(s, a)
			assert.False(t, ok, "%s must not accept %s", s, a)
		}
	}
	assert.False(t, leave.StatePendingPM.IsTerminal())
	assert.False(t, leave.StatePendingHR.IsTerminal())
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestMachine_Authorize(t *testing.T) {
	pm := leave.Employee{ID: "pat", Role: leave.RolePM}
	otherPM := leave.Employee{ID: "quinn", Role: leave.RolePM}
	hr := leave.Employee{ID: "hana", Role: leave.RoleHR}
	requester := leave.Employee{ID: "alice", Role: leave.RoleEmployee}
	ceo := leave.Employee{ID: "cleo", Role: leave.RoleCEO}

	tests := []struct {
		name   string
		state  leave.State
		actor  leave.Employee
		action leave.Action
		want   error
	}{
		{"assigned PM approves", leave.StatePendingPM, pm, leave.ActionApprove, nil},
		{"another PM cannot", leave.StatePendingPM, otherPM, leave.ActionApprove, leave.ErrForbidden},
		{"HR is early at PM stage", leave.StatePendingPM, hr, leave.ActionApprove, leave.ErrInvalidTransition},
		{"requester cannot approve own", leave.StatePendingPM, requester, leave.ActionApprove, leave.ErrForbidden},
		{"HR approves at HR stage", leave.StatePendingHR, hr, leave.ActionReject, nil},
		{"PM is late at HR stage", leave.StatePendingHR, pm, leave.ActionApprove, leave.ErrInvalidTransition},
		{"CEO is not an approver", leave.StatePendingHR, ceo, leave.ActionApprove, leave.ErrForbidden},
		{"requester cancels", leave.StatePendingHR, requester, leave.ActionCancel, nil},
		{"PM cannot cancel for the requester", leave.StatePendingPM, pm, leave.ActionCancel, leave.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := machine.Authorize(pending(tt.state), tt.actor, tt.action)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMachine_Authorize_HRCannotDecideOwnRequest(t *testing.T) {
	req := pending(leave.StatePendingHR)
	req.EmployeeID = "hana"
	req.PMID = ""

	err := machine.Authorize(req, leave.Employee{ID: "hana", Role: leave.RoleHR}, leave.ActionApprove)
	assert.ErrorIs(t, err, leave.ErrForbidden)

	assert.NoError(t, machine.Authorize(req, leave.Employee{ID: "hugo", Role: leave.RoleHR}, leave.ActionApprove))
}

func TestMachine_Authorize_AnyPMWhenNoneSnapshotted(t *testing.T) {
	req := pending(leave.StatePendingPM)
	req.PMID = ""
	assert.NoError(t, machine.Authorize(req, leave.Employee{ID: "quinn", Role: leave.RolePM}, leave.ActionApprove))
}

// =============================================================================
// DECISIONS & REPLAYS
// =============================================================================

func TestMachine_Decide_RecordsStage(t *testing.T) {
	at := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

	next, d, err := machine.Decide(pending(leave.StatePendingPM), "pat", leave.ActionReject, "blocked sprint", at)
	require.NoError(t, err)
	assert.Equal(t, leave.StateRejected, next)
	assert.Equal(t, leave.StagePM, d.Stage)
	assert.Equal(t, leave.EmployeeID("pat"), d.ActorID)
	assert.False(t, d.Approved)
	assert.Equal(t, "blocked sprint", d.Comment)
	assert.Equal(t, at, d.At)

	applied := pending(leave.StatePendingPM).Apply(next, d)
	require.NotNil(t, applied.PMDecision)
	assert.Nil(t, applied.HRDecision)
	assert.Equal(t, at, applied.UpdatedAt)
}

func TestMachine_AlreadyApplied(t *testing.T) {
	at := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

	// PM approved: a redelivered PM approve is a replay; HR approve is not
	req := pending(leave.StatePendingPM)
	next, d, err := machine.Decide(req, "pat", leave.ActionApprove, "", at)
	require.NoError(t, err)
	req = req.Apply(next, d)

	assert.True(t, machine.AlreadyApplied(req, "pat", leave.ActionApprove))
	assert.False(t, machine.AlreadyApplied(req, "hana", leave.ActionApprove))
	assert.False(t, machine.AlreadyApplied(req, "pat", leave.ActionReject))

	// HR rejected
	next, d, err = machine.Decide(req, "hana", leave.ActionReject, "", at)
	require.NoError(t, err)
	req = req.Apply(next, d)

	assert.True(t, machine.AlreadyApplied(req, "hana", leave.ActionReject))
	assert.False(t, machine.AlreadyApplied(req, "hana", leave.ActionApprove))

	// cancelled by requester
	c := pending(leave.StatePendingHR)
	next, d, err = machine.Decide(c, "alice", leave.ActionCancel, "plans changed", at)
	require.NoError(t, err)
	c = c.Apply(next, d)
	assert.True(t, machine.AlreadyApplied(c, "alice", leave.ActionCancel))
	assert.False(t, machine.AlreadyApplied(c, "bob", leave.ActionCancel))
}
