// Package memory provides an in-memory RequestRepository, EmployeeDirectory
// and AuditLog for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	requests    map[leave.RequestID]leave.VacationRequest
	byEmployee  map[leave.EmployeeID][]leave.RequestID // sorted by StartDate
	idempotency map[string]leave.RequestID
	employees   map[leave.EmployeeID]leave.Employee
	audit       []leave.AuditEntry
}

var (
	_ leave.RequestRepository = (*Store)(nil)
	_ leave.EmployeeDirectory = Directory{}
	_ leave.AuditLog          = (*Store)(nil)
)

func New() *Store {
	return &Store{
		requests:    make(map[leave.RequestID]leave.VacationRequest),
		byEmployee:  make(map[leave.EmployeeID][]leave.RequestID),
		idempotency: make(map[string]leave.RequestID),
		employees:   make(map[leave.EmployeeID]leave.Employee),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// Create stores a new request. The idempotency check and the insert happen
// under one lock.
func (s *Store) Create(_ context.Context, req leave.VacationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != "" {
		if _, taken := s.idempotency[req.IdempotencyKey]; taken {
			return generic.ErrDuplicateIdempotencyKey
		}
	}
	if _, exists := s.requests[req.ID]; exists {
		return generic.ErrConcurrentModification
	}

	s.requests[req.ID] = clone(req)
	if req.IdempotencyKey != "" {
		s.idempotency[req.IdempotencyKey] = req.ID
	}

	// Binary search for insertion point keeps the index ordered by start date
	ids := s.byEmployee[req.EmployeeID]
	i := sort.Search(len(ids), func(i int) bool {
		return s.requests[ids[i]].StartDate.After(req.StartDate)
	})
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = req.ID
	s.byEmployee[req.EmployeeID] = ids
	return nil
}

func (s *Store) Get(_ context.Context, id leave.RequestID) (leave.VacationRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return leave.VacationRequest{}, false, nil
	}
	return clone(req), true, nil
}

func (s *Store) GetByIdempotencyKey(_ context.Context, key string) (leave.VacationRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idempotency[key]
	if !ok {
		return leave.VacationRequest{}, false, nil
	}
	return clone(s.requests[id]), true, nil
}

// CompareAndSwapState moves id from expected to next in one step.
func (s *Store) CompareAndSwapState(_ context.Context, id leave.RequestID, expected, next leave.State, decision leave.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return generic.ErrEntityNotFound
	}
	if req.State != expected {
		return generic.ErrConcurrentModification
	}
	s.requests[id] = req.Apply(next, decision)
	return nil
}

func (s *Store) ListByEmployeeInWindow(_ context.Context, employeeID leave.EmployeeID, start, end generic.TimePoint) ([]leave.VacationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []leave.VacationRequest
	for _, id := range s.byEmployee[employeeID] {
		r := s.requests[id]
		if r.StartDate.After(end) {
			break
		}
		if start.BeforeOrEqual(r.StartDate) {
			result = append(result, clone(r))
		}
	}
	return result, nil
}

func (s *Store) ListApprovedByUnitInRange(_ context.Context, department, team string, start, end generic.TimePoint) ([]leave.VacationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := generic.Period{Start: start, End: end}
	var result []leave.VacationRequest
	for _, r := range s.requests {
		if r.State != leave.StateApproved || r.Department != department || r.Team != team {
			continue
		}
		if r.Period().Overlaps(want) {
			result = append(result, clone(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee inserts or replaces an employee record.
func (s *Store) SaveEmployee(_ context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[emp.ID] = emp
	return nil
}

// Directory is the EmployeeDirectory view of a Store. Get is already taken
// by the request side.
type Directory struct{ s *Store }

// Employees returns the directory view.
func (s *Store) Employees() Directory { return Directory{s: s} }

func (d Directory) Get(_ context.Context, id leave.EmployeeID) (leave.Employee, bool, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	emp, ok := d.s.employees[id]
	return emp, ok, nil
}

// ListEmployees returns every employee sorted by ID.
func (s *Store) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) AppendAudit(_ context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

// AuditEntries returns entries for requestID, or all entries when empty.
func (s *Store) AuditEntries(requestID leave.RequestID) []leave.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.AuditEntry
	for _, e := range s.audit {
		if requestID == "" || e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out
}

func clone(r leave.VacationRequest) leave.VacationRequest {
	out := r
	out.PMDecision = cloneDecision(r.PMDecision)
	out.HRDecision = cloneDecision(r.HRDecision)
	out.Cancellation = cloneDecision(r.Cancellation)
	return out
}

func cloneDecision(d *leave.Decision) *leave.Decision {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
