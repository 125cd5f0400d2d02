/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave domain model from the external API contract. Dates are
  YYYY-MM-DD strings; instants are RFC3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Employee:  EmployeeDTO, SaveEmployeeRequest
  Request:   SubmitRequest, DecideRequest, CancelRequest, RequestDTO,
             DecisionDTO, RequestResponse
  Intents:   IntentDTO
  Views:     BalanceDTO, ConflictDTO, AuditEntryDTO
  Errors:    ErrorResponse

VALIDATION:
  Validation is done in handlers and the coordinator, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Department      string `json:"department"`
	Team            string `json:"team"`
	SubTeam         string `json:"sub_team,omitempty"`
	ManagerID       string `json:"manager_id,omitempty"`
	FirstWorkingDay string `json:"first_working_day,omitempty"`
	Role            string `json:"role"`
	Active          bool   `json:"active"`
	AnnualQuota     *int   `json:"annual_quota,omitempty"`
}

// SaveEmployeeRequest creates or updates an employee. HR owns these fields.
type SaveEmployeeRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Department      string `json:"department"`
	Team            string `json:"team"`
	SubTeam         string `json:"sub_team"`
	ManagerID       string `json:"manager_id"`
	FirstWorkingDay string `json:"first_working_day"`
	Role            string `json:"role"`
	Active          *bool  `json:"active"`
	AnnualQuota     *int   `json:"annual_quota"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequest is the body of POST /api/requests.
type SubmitRequest struct {
	EmployeeID     string `json:"employee_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Kind           string `json:"kind"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// DecideRequest is a PM or HR decision.
type DecideRequest struct {
	ActorID string `json:"actor_id"`
	Approve bool   `json:"approve"`
	Comment string `json:"comment"`
}

// CancelRequest withdraws a pending request.
type CancelRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

// DecisionDTO is one recorded decision.
type DecisionDTO struct {
	ActorID  string `json:"actor_id"`
	Approved bool   `json:"approved"`
	Comment  string `json:"comment,omitempty"`
	At       string `json:"at"`
}

// RequestDTO represents a vacation request in API responses.
type RequestDTO struct {
	ID           string       `json:"id"`
	EmployeeID   string       `json:"employee_id"`
	Department   string       `json:"department"`
	Team         string       `json:"team"`
	PMID         string       `json:"pm_id,omitempty"`
	StartDate    string       `json:"start_date"`
	EndDate      string       `json:"end_date"`
	Days         int          `json:"days"`
	Kind         string       `json:"kind"`
	State        string       `json:"state"`
	Reason       string       `json:"reason,omitempty"`
	PMDecision   *DecisionDTO `json:"pm_decision,omitempty"`
	HRDecision   *DecisionDTO `json:"hr_decision,omitempty"`
	Cancellation *DecisionDTO `json:"cancellation,omitempty"`
	CreatedAt    string       `json:"created_at"`
	UpdatedAt    string       `json:"updated_at"`
}

// IntentDTO tells the caller who must be notified of what.
type IntentDTO struct {
	Recipient  string         `json:"recipient"`
	EmployeeID string         `json:"employee_id,omitempty"`
	Kind       string         `json:"kind"`
	RequestID  string         `json:"request_id,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// RequestResponse wraps every state-changing call.
type RequestResponse struct {
	Request RequestDTO  `json:"request"`
	Intents []IntentDTO `json:"intents"`
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// BalanceDTO is the derived balance for a work year.
type BalanceDTO struct {
	EmployeeID    string `json:"employee_id"`
	AnnualQuota   int    `json:"annual_quota"`
	Used          int    `json:"used"`
	Remaining     int    `json:"remaining"`
	WorkYearStart string `json:"work_year_start"`
	WorkYearEnd   string `json:"work_year_end"`
}

// ConflictDTO is an overlapping booking.
type ConflictDTO struct {
	RequestID  string `json:"request_id"`
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	State      string `json:"state"`
	Own        bool   `json:"own,omitempty"`
}

// AuditEntryDTO is one audit log line.
type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	RequestID string         `json:"request_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
// Intents is set when a denial must still be shown to HR.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Kind    string      `json:"kind,omitempty"`
	Details any         `json:"details,omitempty"`
	Intents []IntentDTO `json:"intents,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:          string(e.ID),
		Name:        e.Name,
		Department:  e.Department,
		Team:        e.Team,
		SubTeam:     e.SubTeam,
		ManagerID:   string(e.ManagerID),
		Role:        string(e.Role),
		Active:      e.Active,
		AnnualQuota: e.AnnualQuota,
	}
	if e.FirstWorkingDay != nil {
		dto.FirstWorkingDay = e.FirstWorkingDay.String()
	}
	return dto
}

func toDecisionDTO(d *leave.Decision) *DecisionDTO {
	if d == nil {
		return nil
	}
	return &DecisionDTO{
		ActorID:  string(d.ActorID),
		Approved: d.Approved,
		Comment:  d.Comment,
		At:       d.At.Format(time.RFC3339),
	}
}

func toRequestDTO(r leave.VacationRequest) RequestDTO {
	return RequestDTO{
		ID:           string(r.ID),
		EmployeeID:   string(r.EmployeeID),
		Department:   r.Department,
		Team:         r.Team,
		PMID:         string(r.PMID),
		StartDate:    r.StartDate.String(),
		EndDate:      r.EndDate.String(),
		Days:         r.Days,
		Kind:         string(r.Kind),
		State:        string(r.State),
		Reason:       r.Reason,
		PMDecision:   toDecisionDTO(r.PMDecision),
		HRDecision:   toDecisionDTO(r.HRDecision),
		Cancellation: toDecisionDTO(r.Cancellation),
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
}

func toRequestDTOs(reqs []leave.VacationRequest) []RequestDTO {
	out := make([]RequestDTO, len(reqs))
	for i, r := range reqs {
		out[i] = toRequestDTO(r)
	}
	return out
}

func toIntentDTOs(intents []leave.NotificationIntent) []IntentDTO {
	out := make([]IntentDTO, len(intents))
	for i, n := range intents {
		out[i] = IntentDTO{
			Recipient:  string(n.Recipient),
			EmployeeID: string(n.EmployeeID),
			Kind:       string(n.Kind),
			RequestID:  string(n.Request.ID),
			Extra:      n.Extra,
		}
	}
	return out
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:    string(b.EmployeeID),
		AnnualQuota:   b.AnnualQuota.IntPart(),
		Used:          b.Used.IntPart(),
		Remaining:     b.Remaining.IntPart(),
		WorkYearStart: b.WorkYear.Start.String(),
		WorkYearEnd:   b.WorkYear.End.String(),
	}
}

func toConflictDTOs(conflicts []leave.Conflict) []ConflictDTO {
	out := make([]ConflictDTO, len(conflicts))
	for i, c := range conflicts {
		out[i] = ConflictDTO{
			RequestID:  string(c.RequestID),
			EmployeeID: string(c.EmployeeID),
			StartDate:  c.StartDate.String(),
			EndDate:    c.EndDate.String(),
			State:      string(c.State),
			Own:        c.Own,
		}
	}
	return out
}

func toAuditDTOs(entries []leave.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryDTO{
			ID:        e.ID,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			ActorID:   string(e.ActorID),
			Action:    string(e.Action),
			RequestID: string(e.RequestID),
			Payload:   e.Payload,
		}
	}
	return out
}

// parseOptionalDate returns the zero TimePoint for an empty string.
func parseOptionalDate(s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(s)
}
