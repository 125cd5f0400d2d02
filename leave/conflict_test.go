package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/memory"
)

func newDetector(t *testing.T, reqs ...leave.VacationRequest) *leave.ConflictDetector {
	t.Helper()
	store := memory.New()
	for _, r := range reqs {
		require.NoError(t, store.Create(context.Background(), r))
	}
	return leave.NewConflictDetector(store)
}

func booking(id string, emp leave.EmployeeID, team string, start, end generic.TimePoint, state leave.State) leave.VacationRequest {
	return leave.VacationRequest{
		ID: leave.RequestID(id), EmployeeID: emp, Department: "eng", Team: team,
		StartDate: start, EndDate: end, Days: generic.Period{Start: start, End: end}.DayCount(),
		Kind: leave.KindRegular, State: state,
	}
}

func candidate(emp leave.EmployeeID, start, end generic.TimePoint) leave.Candidate {
	return leave.Candidate{EmployeeID: emp, Department: "eng", Team: "core", StartDate: start, EndDate: end}
}

// =============================================================================
// OVERLAP BOUNDARIES
// =============================================================================

func TestFindConflicts_BoundaryDayCounts(t *testing.T) {
	// GIVEN: Teammate approved Jun 4 - Jun 10
	// WHEN: Candidate Jun 1 - Jun 4
	// THEN: Conflict, since Jun 4 is shared

	d := newDetector(t, booking("existing", "bob", "core", date(2025, time.June, 4), date(2025, time.June, 10), leave.StateApproved))

	got, err := d.FindConflicts(context.Background(), candidate("alice", date(2025, time.June, 1), date(2025, time.June, 4)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, leave.RequestID("existing"), got[0].RequestID)
	assert.False(t, got[0].Own)
}

func TestFindConflicts_Boundaries(t *testing.T) {
	existing := booking("x", "bob", "core", date(2025, time.June, 4), date(2025, time.June, 10), leave.StateApproved)
	d := newDetector(t, existing)

	tests := []struct {
		name       string
		start, end generic.TimePoint
		conflict   bool
	}{
		{"ends the day before", date(2025, time.June, 1), date(2025, time.June, 3), false},
		{"touches first day", date(2025, time.June, 1), date(2025, time.June, 4), true},
		{"touches last day", date(2025, time.June, 10), date(2025, time.June, 12), true},
		{"starts the day after", date(2025, time.June, 11), date(2025, time.June, 12), false},
		{"inside", date(2025, time.June, 6), date(2025, time.June, 6), true},
		{"covers", date(2025, time.June, 1), date(2025, time.June, 30), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.FindConflicts(context.Background(), candidate("alice", tt.start, tt.end))
			require.NoError(t, err)
			assert.Equal(t, tt.conflict, len(got) == 1)
		})
	}
}

// =============================================================================
// FILTERING
// =============================================================================

func TestFindConflicts_OnlyApprovedTeammatesInSameUnitBlock(t *testing.T) {
	d := newDetector(t,
		booking("pending", "bob", "core", date(2025, time.June, 2), date(2025, time.June, 3), leave.StatePendingHR),
		booking("rejected", "bob", "core", date(2025, time.June, 2), date(2025, time.June, 3), leave.StateRejected),
		booking("other-team", "dana", "platform", date(2025, time.June, 2), date(2025, time.June, 3), leave.StateApproved),
		booking("blocker", "erin", "core", date(2025, time.June, 3), date(2025, time.June, 5), leave.StateApproved),
	)

	got, err := d.FindConflicts(context.Background(), candidate("alice", date(2025, time.June, 2), date(2025, time.June, 6)))
	require.NoError(t, err)
	assert.Equal(t, []leave.RequestID{"blocker"}, conflictIDs(got))
}

func TestFindConflicts_ReturnsAllSortedByStart(t *testing.T) {
	d := newDetector(t,
		booking("c", "erin", "core", date(2025, time.June, 9), date(2025, time.June, 9), leave.StateApproved),
		booking("b", "frank", "core", date(2025, time.June, 3), date(2025, time.June, 4), leave.StateApproved),
		booking("a", "bob", "core", date(2025, time.June, 3), date(2025, time.June, 3), leave.StateApproved),
	)

	got, err := d.FindConflicts(context.Background(), candidate("alice", date(2025, time.June, 1), date(2025, time.June, 10)))
	require.NoError(t, err)
	assert.Equal(t, []leave.RequestID{"a", "b", "c"}, conflictIDs(got))
}

func TestFindConflicts_ExcludesRequestBeingChecked(t *testing.T) {
	d := newDetector(t, booking("self", "bob", "core", date(2025, time.June, 2), date(2025, time.June, 3), leave.StateApproved))

	c := candidate("", date(2025, time.June, 2), date(2025, time.June, 3))
	c.ExcludeRequestID = "self"
	got, err := d.FindConflicts(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindConflicts_OwnLiveBookingsBlock(t *testing.T) {
	// GIVEN: Alice has a pending request that started before the candidate
	// WHEN: She asks for days inside it
	// THEN: Her own booking is reported; her cancelled one is not

	d := newDetector(t,
		booking("mine", "alice", "core", date(2025, time.May, 30), date(2025, time.June, 3), leave.StatePendingPM),
		booking("gone", "alice", "core", date(2025, time.June, 2), date(2025, time.June, 2), leave.StateCancelled),
	)

	got, err := d.FindConflicts(context.Background(), candidate("alice", date(2025, time.June, 2), date(2025, time.June, 2)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, leave.RequestID("mine"), got[0].RequestID)
	assert.True(t, got[0].Own)
}

func TestFindConflicts_Symmetric(t *testing.T) {
	// GIVEN: Two approved, overlapping requests in one team
	// WHEN: Checking each against the other
	// THEN: Each reports the other

	a := booking("a", "alice", "core", date(2025, time.June, 2), date(2025, time.June, 5), leave.StateApproved)
	b := booking("b", "bob", "core", date(2025, time.June, 5), date(2025, time.June, 9), leave.StateApproved)
	d := newDetector(t, a, b)
	ctx := context.Background()

	fromA, err := d.FindConflicts(ctx, leave.Candidate{EmployeeID: a.EmployeeID, Department: "eng", Team: "core", StartDate: a.StartDate, EndDate: a.EndDate, ExcludeRequestID: a.ID})
	require.NoError(t, err)
	fromB, err := d.FindConflicts(ctx, leave.Candidate{EmployeeID: b.EmployeeID, Department: "eng", Team: "core", StartDate: b.StartDate, EndDate: b.EndDate, ExcludeRequestID: b.ID})
	require.NoError(t, err)

	assert.Equal(t, []leave.RequestID{"b"}, conflictIDs(fromA))
	assert.Equal(t, []leave.RequestID{"a"}, conflictIDs(fromB))
}

func TestFindConflicts_InvalidRange(t *testing.T) {
	d := newDetector(t)
	_, err := d.FindConflicts(context.Background(), candidate("alice", date(2025, time.June, 5), date(2025, time.June, 1)))
	assert.ErrorIs(t, err, leave.ErrInvalidInput)
}
