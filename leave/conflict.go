package leave

import (
	"context"
	"sort"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// CONFLICT DETECTOR - Overlapping absences inside a team
// =============================================================================

// Candidate is a date range being checked for conflicts.
type Candidate struct {
	EmployeeID EmployeeID
	Department string
	Team       string
	StartDate  generic.TimePoint
	EndDate    generic.TimePoint

	// ExcludeRequestID skips the request being amended or re-checked.
	ExcludeRequestID RequestID
}

func (c Candidate) period() generic.Period {
	return generic.Period{Start: c.StartDate, End: c.EndDate}
}

// ownLookback bounds how far back an own booking may start and still reach
// into the candidate range.
const ownLookback = 366

// ConflictDetector finds bookings that overlap a candidate range.
//
// Teammates block only with Approved requests; pending ones do not. The
// requester's own live bookings (pending or approved) always block, since
// nobody can be off twice on the same day.
//
// Overlap is closed-interval: a booking ending on the candidate's first day
// is a conflict. Results come back sorted by start date, then request ID.
type ConflictDetector struct {
	Requests RequestRepository
}

// NewConflictDetector creates a detector reading from repo.
func NewConflictDetector(repo RequestRepository) *ConflictDetector {
	return &ConflictDetector{Requests: repo}
}

// FindConflicts returns every overlapping booking, never just the first.
func (d *ConflictDetector) FindConflicts(ctx context.Context, c Candidate) ([]Conflict, error) {
	want := c.period()
	if err := want.Validate(); err != nil {
		return nil, &InvalidInputError{Field: "dates", Message: err.Error()}
	}

	team, err := d.Requests.ListApprovedByUnitInRange(ctx, c.Department, c.Team, c.StartDate, c.EndDate)
	if err != nil {
		return nil, readErr("list unit requests", err)
	}

	seen := make(map[RequestID]bool)
	var conflicts []Conflict
	for _, r := range team {
		if r.ID == c.ExcludeRequestID || r.State != StateApproved || seen[r.ID] {
			continue
		}
		if r.EmployeeID == c.EmployeeID && c.EmployeeID != "" {
			// reported below as an own booking
			continue
		}
		if !r.Period().Overlaps(want) {
			continue
		}
		seen[r.ID] = true
		conflicts = append(conflicts, toConflict(r, false))
	}

	if c.EmployeeID != "" {
		own, err := d.Requests.ListByEmployeeInWindow(ctx, c.EmployeeID, c.StartDate.AddDays(-ownLookback), c.EndDate)
		if err != nil {
			return nil, readErr("list employee requests", err)
		}
		for _, r := range own {
			if r.ID == c.ExcludeRequestID || !r.State.IsLive() || seen[r.ID] {
				continue
			}
			if !r.Period().Overlaps(want) {
				continue
			}
			seen[r.ID] = true
			conflicts = append(conflicts, toConflict(r, true))
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.RequestID < b.RequestID
	})
	return conflicts, nil
}

func toConflict(r VacationRequest, own bool) Conflict {
	return Conflict{
		RequestID:  r.ID,
		EmployeeID: r.EmployeeID,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		State:      r.State,
		Own:        own,
	}
}
