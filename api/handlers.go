/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave coordinator via REST API. Handles HTTP request/response
  and JSON serialization; every business rule lives in package leave.

ENDPOINTS:
  Employees:
    GET    /api/employees                  List all employees
    POST   /api/employees                  Create or update employee
    GET    /api/employees/{id}             Get employee details
    GET    /api/employees/{id}/balance     Derived balance (?as_of=YYYY-MM-DD)

  Requests:
    POST   /api/requests                   Submit (Idempotency-Key header or body)
    GET    /api/requests?state=&pm_id=     Inbox by state
    GET    /api/requests/{id}              Get request
    POST   /api/requests/{id}/decisions    PM or HR approve/reject
    POST   /api/requests/{id}/cancel       Requester cancels
    GET    /api/requests/{id}/conflicts    Current overlaps
    GET    /api/requests/{id}/audit        Audit trail

  Admin (mounted only with admin enabled):
    POST   /api/admin/reset                Drop requests and audit
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

RESPONSES:
  State-changing calls return {request, intents}. The caller delivers the
  intents; this layer never sends messages.

ERROR HANDLING:
  Errors are returned as {error, kind, details} with HTTP status by kind:
  - 400: invalid_input, range_violation
  - 403: forbidden, ineligible
  - 404: not_found
  - 409: conflict, invalid_transition
  - 422: insufficient_balance
  - 503: repository
  - 500: anything else

SECURITY NOTE:
  No authentication. actor_id is trusted as sent by the chat layer.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// IdempotencyHeader carries the transport delivery id of a submission.
const IdempotencyHeader = "Idempotency-Key"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Coordinator *leave.Coordinator
	Logger      *zap.Logger
}

// NewHandler creates a handler over the store and a coordinator built on it.
func NewHandler(store *sqlite.Store, coord *leave.Coordinator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Coordinator: coord, Logger: logger}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), leave.EmployeeID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// SaveEmployee creates or updates an employee. Deactivate with active=false;
// employees are never deleted.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	role := leave.Role(req.Role)
	if role == "" {
		role = leave.RoleEmployee
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown role %q", req.Role), nil)
		return
	}

	emp := leave.Employee{
		ID:          leave.EmployeeID(req.ID),
		Name:        req.Name,
		Department:  req.Department,
		Team:        req.Team,
		SubTeam:     req.SubTeam,
		ManagerID:   leave.EmployeeID(req.ManagerID),
		Role:        role,
		Active:      req.Active == nil || *req.Active,
		AnnualQuota: req.AnnualQuota,
	}
	if req.FirstWorkingDay != "" {
		fwd, err := generic.ParseDate(req.FirstWorkingDay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid first_working_day format (use YYYY-MM-DD)", err)
			return
		}
		emp.FirstWorkingDay = &fwd
	}
	if emp.AnnualQuota != nil && *emp.AnnualQuota < 0 {
		writeError(w, http.StatusBadRequest, "annual_quota must not be negative", nil)
		return
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalance returns the derived balance for the work year containing as_of
// (default today).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	asOf, err := parseOptionalDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	bal, err := h.Coordinator.Balance(r.Context(), leave.EmployeeID(id), asOf)
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest validates and creates a vacation request. A replay with the
// same idempotency key returns the first request with 200 and no intents.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := generic.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := generic.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	kind := leave.Kind(body.Kind)
	if kind == "" {
		kind = leave.KindRegular
	}
	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		key = body.IdempotencyKey
	}

	req, intents, err := h.Coordinator.Submit(r.Context(), leave.SubmitInput{
		EmployeeID:     leave.EmployeeID(body.EmployeeID),
		StartDate:      start,
		EndDate:        end,
		Kind:           kind,
		Reason:         body.Reason,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeDomainError(w, err, intents)
		return
	}

	status := http.StatusCreated
	if len(intents) == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, RequestResponse{Request: toRequestDTO(req), Intents: toIntentDTOs(intents)})
}

// ListRequests returns the inbox for a state, optionally narrowed to one PM.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	state := leave.State(r.URL.Query().Get("state"))
	switch state {
	case leave.StatePendingPM, leave.StatePendingHR, leave.StateApproved, leave.StateRejected, leave.StateCancelled:
	case "":
		state = leave.StatePendingHR
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown state %q", state), nil)
		return
	}

	reqs, err := h.Store.ListByState(r.Context(), state)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list requests", err)
		return
	}

	if pm := leave.EmployeeID(r.URL.Query().Get("pm_id")); pm != "" {
		filtered := reqs[:0]
		for _, req := range reqs {
			if req.PMID == pm {
				filtered = append(filtered, req)
			}
		}
		reqs = filtered
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Coordinator.Get(r.Context(), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DecideRequest records a PM or HR decision.
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	var body DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, intents, err := h.Coordinator.Decide(r.Context(), leave.DecideInput{
		RequestID: leave.RequestID(chi.URLParam(r, "id")),
		ActorID:   leave.EmployeeID(body.ActorID),
		Approve:   body.Approve,
		Comment:   body.Comment,
	})
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, RequestResponse{Request: toRequestDTO(req), Intents: toIntentDTOs(intents)})
}

// CancelRequest withdraws a pending request on behalf of its requester.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	var body CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, intents, err := h.Coordinator.Cancel(r.Context(), leave.CancelInput{
		RequestID: leave.RequestID(chi.URLParam(r, "id")),
		ActorID:   leave.EmployeeID(body.ActorID),
		Reason:    body.Reason,
	})
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, RequestResponse{Request: toRequestDTO(req), Intents: toIntentDTOs(intents)})
}

// GetConflicts re-evaluates overlaps for an existing request.
func (h *Handler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.Coordinator.ConflictsFor(r.Context(), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTOs(conflicts))
}

// GetAuditTrail returns who did what to a request, oldest first.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	if _, err := h.Coordinator.Get(r.Context(), id); err != nil {
		h.writeDomainError(w, err, nil)
		return
	}

	entries, err := h.Store.AuditTrail(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to read audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears requests and audit entries; employees stay.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Logger.Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch leave.KindOf(err) {
	case "invalid_input", "range_violation":
		return http.StatusBadRequest
	case "forbidden", "ineligible":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict", "invalid_transition":
		return http.StatusConflict
	case "insufficient_balance":
		return http.StatusUnprocessableEntity
	case "repository":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// detailsFor exposes the structured part of an error to the client.
func detailsFor(err error) any {
	var (
		input        *leave.InvalidInputError
		rangeErr     *leave.RangeViolationError
		ineligible   *leave.IneligibleError
		insufficient *leave.InsufficientBalanceError
		conflict     *leave.ConflictError
		transition   *leave.InvalidTransitionError
		repo         *leave.RepositoryError
	)
	switch {
	case errors.As(err, &input):
		return map[string]any{"field": input.Field}
	case errors.As(err, &rangeErr):
		return map[string]any{"days": rangeErr.Days, "min": rangeErr.Min, "max": rangeErr.Max}
	case errors.As(err, &ineligible):
		d := map[string]any{"reason": ineligible.Reason}
		if !ineligible.EligibleFrom.IsZero() {
			d["eligible_from"] = ineligible.EligibleFrom.String()
		}
		return d
	case errors.As(err, &insufficient):
		return map[string]any{
			"requested":       insufficient.Requested.IntPart(),
			"remaining":       insufficient.Remaining.IntPart(),
			"work_year_start": insufficient.WorkYear.Start.String(),
			"work_year_end":   insufficient.WorkYear.End.String(),
		}
	case errors.As(err, &conflict):
		return map[string]any{"conflicts": toConflictDTOs(conflict.Conflicts)}
	case errors.As(err, &transition):
		return map[string]any{"state": string(transition.From), "stale": transition.Stale}
	case errors.As(err, &repo):
		return map[string]any{"retryable": repo.Retryable}
	}
	return nil
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, intents []leave.NotificationIntent) {
	status := statusFor(err)
	if !leave.IsClientError(err) {
		h.Logger.Error("leave operation failed", zap.Int("status", status), zap.Error(err))
	}
	resp := ErrorResponse{
		Error:   err.Error(),
		Kind:    leave.KindOf(err),
		Details: detailsFor(err),
	}
	if len(intents) > 0 {
		resp.Intents = toIntentDTOs(intents)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
