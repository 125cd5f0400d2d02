package leave_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// today is the coordinator clock for every test unless overridden.
var today = time.Date(2025, time.May, 20, 9, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func tp(t generic.TimePoint) *generic.TimePoint { return &t }

type fixture struct {
	store *memory.Store
	coord *leave.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	coord := leave.NewCoordinator(store, store.Employees(), leave.DefaultPolicy())
	coord.Audit = store
	coord.Now = func() time.Time { return today }

	f := &fixture{store: store, coord: coord}
	for _, emp := range []leave.Employee{
		{ID: "pat", Name: "Pat", Department: "eng", Team: "core", Role: leave.RolePM, FirstWorkingDay: tp(date(2020, time.March, 1)), Active: true},
		{ID: "quinn", Name: "Quinn", Department: "eng", Team: "core", Role: leave.RolePM, FirstWorkingDay: tp(date(2021, time.March, 1)), Active: true},
		{ID: "hana", Name: "Hana", Department: "people", Team: "hr", Role: leave.RoleHR, FirstWorkingDay: tp(date(2019, time.June, 1)), Active: true},
		{ID: "alice", Name: "Alice", Department: "eng", Team: "core", ManagerID: "pat", Role: leave.RoleEmployee, FirstWorkingDay: tp(date(2024, time.January, 10)), Active: true},
		{ID: "bob", Name: "Bob", Department: "eng", Team: "core", Role: leave.RoleEmployee, FirstWorkingDay: tp(date(2023, time.September, 1)), Active: true},
		{ID: "dana", Name: "Dana", Department: "eng", Team: "platform", ManagerID: "pat", Role: leave.RoleEmployee, FirstWorkingDay: tp(date(2022, time.February, 14)), Active: true},
	} {
		f.saveEmployee(t, emp)
	}
	return f
}

func (f *fixture) saveEmployee(t *testing.T, emp leave.Employee) {
	t.Helper()
	require.NoError(t, f.store.SaveEmployee(context.Background(), emp))
}

// seed stores a request directly, bypassing validation.
func (f *fixture) seed(t *testing.T, id string, emp leave.EmployeeID, start, end generic.TimePoint, state leave.State) leave.VacationRequest {
	t.Helper()
	ctx := context.Background()
	e, ok, err := f.store.Employees().Get(ctx, emp)
	require.NoError(t, err)
	require.True(t, ok, "unknown employee %s", emp)

	req := leave.VacationRequest{
		ID:         leave.RequestID(id),
		EmployeeID: emp,
		Department: e.Department,
		Team:       e.Team,
		PMID:       e.ManagerID,
		StartDate:  start,
		EndDate:    end,
		Days:       generic.Period{Start: start, End: end}.DayCount(),
		Kind:       leave.KindRegular,
		State:      state,
		CreatedAt:  today,
		UpdatedAt:  today,
	}
	require.NoError(t, f.store.Create(ctx, req))
	return req
}

func (f *fixture) submit(t *testing.T, emp leave.EmployeeID, start, end generic.TimePoint) (leave.VacationRequest, []leave.NotificationIntent) {
	t.Helper()
	req, intents, err := f.coord.Submit(context.Background(), leave.SubmitInput{
		EmployeeID: emp,
		StartDate:  start,
		EndDate:    end,
		Kind:       leave.KindRegular,
	})
	require.NoError(t, err)
	return req, intents
}

func (f *fixture) decide(t *testing.T, id leave.RequestID, actor leave.EmployeeID, approve bool) leave.VacationRequest {
	t.Helper()
	req, _, err := f.coord.Decide(context.Background(), leave.DecideInput{RequestID: id, ActorID: actor, Approve: approve})
	require.NoError(t, err)
	return req
}

func intentKinds(intents []leave.NotificationIntent) []string {
	out := make([]string, len(intents))
	for i, in := range intents {
		out[i] = fmt.Sprintf("%s:%s", in.Recipient, in.Kind)
	}
	return out
}

func conflictIDs(cs []leave.Conflict) []leave.RequestID {
	out := make([]leave.RequestID, len(cs))
	for i, c := range cs {
		out[i] = c.RequestID
	}
	return out
}
