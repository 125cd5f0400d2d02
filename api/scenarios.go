/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built org charts and leave history so the chat bridge or a
	developer can exercise the approval flow without registering people by
	hand. Dates are laid out relative to the coordinator's clock so a
	scenario behaves the same whenever it is loaded.

AVAILABLE SCENARIOS:

	small-team:   PM + HR + three engineers; one approved booking next week
	new-hire:     an employee still inside the three-month wait
	no-pm:        an engineer without a PM; Regular requests go straight to HR
	exhausted:    an employee who has used 22 of 24 days this work year

HOW SCENARIOS WORK:
 1. Reset requests and audit (employees are upserted, never deleted)
 2. Save employees
 3. Insert historical approved requests directly through the store

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-team"}

NOTE:

	Scenarios reset the database. Routes are only mounted with admin enabled.

SEE ALSO:
  - handlers.go: ResetDatabase
  - cmd/leaved/main.go: `leaved seed`
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, s *sqlite.Store, today generic.TimePoint) error
}

var scenarios = []scenario{
	{ScenarioDTO{"small-team", "Small Team", "PM, HR and three engineers in eng/core with one approved booking next week"}, loadSmallTeam},
	{ScenarioDTO{"new-hire", "New Hire", "Employee who started last month and cannot book leave yet"}, loadNewHire},
	{ScenarioDTO{"no-pm", "No PM", "Engineer without a project manager; requests go straight to HR"}, loadNoPM},
	{ScenarioDTO{"exhausted", "Exhausted Balance", "Employee with 2 of 24 days left in the current work year"}, loadExhausted},
}

// ScenarioIDs lists the loadable scenario IDs.
func ScenarioIDs() []string {
	ids := make([]string, len(scenarios))
	for i, sc := range scenarios {
		ids[i] = sc.ID
	}
	return ids
}

// LoadScenario resets the store and loads the named scenario.
func LoadScenario(ctx context.Context, s *sqlite.Store, id string, today generic.TimePoint) error {
	for _, sc := range scenarios {
		if sc.ID != id {
			continue
		}
		if err := s.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if err := saveEmployees(ctx, s, staff(today)...); err != nil {
			return err
		}
		return sc.load(ctx, s, today)
	}
	return fmt.Errorf("unknown scenario %q", id)
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, sc := range scenarios {
		out[i] = sc.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenarioHandler loads a scenario by ID.
func (h *Handler) LoadScenarioHandler(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	today := generic.DateOf(h.Coordinator.Now())
	if err := LoadScenario(r.Context(), h.Store, req.ScenarioID, today); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

func staff(today generic.TimePoint) []leave.Employee {
	veteran := today.AddYears(-3)
	return []leave.Employee{
		{ID: "pm-pat", Name: "Pat Morgan", Department: "eng", Team: "core", Role: leave.RolePM, Active: true, FirstWorkingDay: &veteran},
		{ID: "hr-hana", Name: "Hana Ruiz", Department: "people", Team: "hr", Role: leave.RoleHR, Active: true, FirstWorkingDay: &veteran},
	}
}

func loadSmallTeam(ctx context.Context, s *sqlite.Store, today generic.TimePoint) error {
	fwd := today.AddYears(-1)
	emps := []leave.Employee{
		engineer("eng-alice", "Alice Chen", "pm-pat", fwd),
		engineer("eng-bob", "Bob Okafor", "pm-pat", fwd),
		engineer("eng-carol", "Carol Diaz", "pm-pat", fwd),
	}
	if err := saveEmployees(ctx, s, emps...); err != nil {
		return err
	}
	start := today.AddDays(7)
	return s.Create(ctx, approved(emps[1], start, start.AddDays(2)))
}

func loadNewHire(ctx context.Context, s *sqlite.Store, today generic.TimePoint) error {
	return saveEmployees(ctx, s, engineer("eng-nina", "Nina Park", "pm-pat", today.AddMonths(-1)))
}

func loadNoPM(ctx context.Context, s *sqlite.Store, today generic.TimePoint) error {
	return saveEmployees(ctx, s, engineer("eng-omar", "Omar Haddad", "", today.AddYears(-2)))
}

func loadExhausted(ctx context.Context, s *sqlite.Store, today generic.TimePoint) error {
	// the anniversary falls on today, so every booking below is in this work year
	emp := engineer("eng-erin", "Erin Walsh", "pm-pat", today.AddYears(-2))
	if err := saveEmployees(ctx, s, emp); err != nil {
		return err
	}
	// 7 + 7 + 7 + 1 days
	for _, offset := range []int{30, 60, 90} {
		start := today.AddDays(offset)
		if err := s.Create(ctx, approved(emp, start, start.AddDays(6))); err != nil {
			return err
		}
	}
	day := today.AddDays(120)
	return s.Create(ctx, approved(emp, day, day))
}

func engineer(id, name, pm string, fwd generic.TimePoint) leave.Employee {
	return leave.Employee{
		ID: leave.EmployeeID(id), Name: name, Department: "eng", Team: "core",
		ManagerID: leave.EmployeeID(pm), Role: leave.RoleEmployee, Active: true, FirstWorkingDay: &fwd,
	}
}

func approved(emp leave.Employee, start, end generic.TimePoint) leave.VacationRequest {
	now := time.Now().UTC()
	req := leave.VacationRequest{
		ID:         leave.RequestID("req-" + uuid.NewString()),
		EmployeeID: emp.ID,
		Department: emp.Department,
		Team:       emp.Team,
		PMID:       emp.ManagerID,
		StartDate:  start,
		EndDate:    end,
		Days:       generic.Period{Start: start, End: end}.DayCount(),
		Kind:       leave.KindRegular,
		State:      leave.StateApproved,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	req.HRDecision = &leave.Decision{Stage: leave.StageHR, ActorID: "hr-hana", Approved: true, Comment: "seeded", At: now}
	return req
}

func saveEmployees(ctx context.Context, s *sqlite.Store, emps ...leave.Employee) error {
	for _, e := range emps {
		if err := s.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("save employee %s: %w", e.ID, err)
		}
	}
	return nil
}
