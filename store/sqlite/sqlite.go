/*
Package sqlite provides a SQLite-backed implementation of the leave storage
interfaces.

PURPOSE:
  Implements leave.RequestRepository, leave.EmployeeDirectory (through
  Employees()) and leave.AuditLog on one SQLite database. Any durable row
  store with a conditional UPDATE can satisfy the same contract.

INTERFACES IMPLEMENTED:
  leave.RequestRepository: Leave requests with compare-and-swap state changes
  leave.EmployeeDirectory: Identity and org placement
  leave.AuditLog:          Append-only record of who did what

COMPARE-AND-SWAP:
  State changes are a single statement:

    UPDATE requests SET state = ?, <decision column> = ?, updated_at = ?
    WHERE id = ? AND state = ?

  Zero rows affected means either the request is gone or someone else moved
  it first; a follow-up existence check tells the two apart. No other UPDATE
  touches requests, and nothing is ever DELETEd outside Reset.

KEY TABLES:
  employees: Identity, placement, first working day, role, active flag
  requests:  One row per leave request; decisions stored as JSON columns
  audit_log: Append-only transition history

INDEXES:
  - idx_requests_idempotency: Unique, enforces one request per delivery
  - idx_requests_employee_start: Balance window and own-overlap scans
  - idx_requests_unit_state: Team conflict scans

DATES:
  Calendar days are stored as YYYY-MM-DD text so range predicates compare
  lexicographically. Instants are RFC3339 UTC.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases from splitting per connection.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  coord := leave.NewCoordinator(store, store.Employees(), leave.DefaultPolicy())
  coord.Audit = store

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// Store implements the leave storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ leave.RequestRepository = (*Store)(nil)
	_ leave.EmployeeDirectory = Directory{}
	_ leave.AuditLog          = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the database schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	-- Employees (never deleted, only deactivated)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		sub_team TEXT NOT NULL DEFAULT '',
		manager_id TEXT NOT NULL DEFAULT '',
		first_working_day TEXT,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		annual_quota INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		department TEXT NOT NULL,
		team TEXT NOT NULL,
		pm_id TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days INTEGER NOT NULL,
		kind TEXT NOT NULL,
		state TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		pm_decision_json TEXT,
		hr_decision_json TEXT,
		cancellation_json TEXT,
		idempotency_key TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one request per delivered chat event
	CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_idempotency
		ON requests(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Balance windows and own-overlap checks (hot path)
	CREATE INDEX IF NOT EXISTS idx_requests_employee_start
		ON requests(employee_id, start_date);

	-- Team conflict scans
	CREATE INDEX IF NOT EXISTS idx_requests_unit_state
		ON requests(department, team, state, start_date);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_request
		ON audit_log(request_id) WHERE request_id IS NOT NULL;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// REQUEST REPOSITORY (leave.RequestRepository interface)
// =============================================================================

const requestColumns = `id, employee_id, department, team, pm_id, start_date, end_date, days,
	kind, state, reason, pm_decision_json, hr_decision_json, cancellation_json,
	idempotency_key, created_at, updated_at`

// Create inserts a new request.
func (s *Store) Create(ctx context.Context, req leave.VacationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pm, err := decisionJSON(req.PMDecision)
	if err != nil {
		return err
	}
	hr, err := decisionJSON(req.HRDecision)
	if err != nil {
		return err
	}
	cancel, err := decisionJSON(req.Cancellation)
	if err != nil {
		return err
	}

	query := `INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		req.ID, req.EmployeeID, req.Department, req.Team, req.PMID,
		req.StartDate.String(), req.EndDate.String(), req.Days,
		req.Kind, req.State, req.Reason,
		pm, hr, cancel,
		nullString(req.IdempotencyKey),
		formatTime(req.CreatedAt), formatTime(req.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "idempotency_key") {
				return generic.ErrDuplicateIdempotencyKey
			}
			return generic.ErrConcurrentModification
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID.
func (s *Store) Get(ctx context.Context, id leave.RequestID) (leave.VacationRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOne(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
}

// GetByIdempotencyKey retrieves the request created with key.
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (leave.VacationRequest, bool, error) {
	if key == "" {
		return leave.VacationRequest{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOne(ctx, "SELECT "+requestColumns+" FROM requests WHERE idempotency_key = ?", key)
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (leave.VacationRequest, bool, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return leave.VacationRequest{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return leave.VacationRequest{}, false, rows.Err()
	}
	req, err := scanRequest(rows)
	if err != nil {
		return leave.VacationRequest{}, false, err
	}
	return req, true, nil
}

// CompareAndSwapState moves id from expected to next and records the
// decision in the same statement.
func (s *Store) CompareAndSwapState(ctx context.Context, id leave.RequestID, expected, next leave.State, decision leave.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	column, err := decisionColumn(decision.Stage)
	if err != nil {
		return err
	}
	payload, err := decisionJSON(&decision)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE requests SET state = ?, "+column+" = ?, updated_at = ? WHERE id = ? AND state = ?",
		next, payload, formatTime(decision.At), id, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update request state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM requests WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check request existence: %w", err)
	}
	if exists == 0 {
		return generic.ErrEntityNotFound
	}
	return generic.ErrConcurrentModification
}

// ListByEmployeeInWindow returns the employee's requests starting in [start, end].
func (s *Store) ListByEmployeeInWindow(ctx context.Context, employeeID leave.EmployeeID, start, end generic.TimePoint) ([]leave.VacationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + requestColumns + ` FROM requests
		WHERE employee_id = ? AND start_date >= ? AND start_date <= ?
		ORDER BY start_date, id`
	return s.queryRequests(ctx, query, employeeID, start.String(), end.String())
}

// ListApprovedByUnitInRange returns approved requests of the unit intersecting [start, end].
func (s *Store) ListApprovedByUnitInRange(ctx context.Context, department, team string, start, end generic.TimePoint) ([]leave.VacationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + requestColumns + ` FROM requests
		WHERE department = ? AND team = ? AND state = ?
		  AND NOT (end_date < ? OR start_date > ?)
		ORDER BY start_date, id`
	return s.queryRequests(ctx, query, department, team, leave.StateApproved, start.String(), end.String())
}

// ListByState returns every request in state, oldest first. Used by the
// HR and PM inboxes.
func (s *Store) ListByState(ctx context.Context, state leave.State) ([]leave.VacationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + requestColumns + " FROM requests WHERE state = ? ORDER BY created_at, id"
	return s.queryRequests(ctx, query, state)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.VacationRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []leave.VacationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func scanRequest(rows *sql.Rows) (leave.VacationRequest, error) {
	var (
		r                       leave.VacationRequest
		startDate, endDate      string
		pm, hr, cancel, idemKey sql.NullString
		createdAt, updatedAt    string
		id, employeeID, pmID    string
		kind, state             string
	)
	err := rows.Scan(
		&id, &employeeID, &r.Department, &r.Team, &pmID, &startDate, &endDate, &r.Days,
		&kind, &state, &r.Reason, &pm, &hr, &cancel,
		&idemKey, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, err
	}

	r.ID = leave.RequestID(id)
	r.EmployeeID = leave.EmployeeID(employeeID)
	r.PMID = leave.EmployeeID(pmID)
	r.Kind = leave.Kind(kind)
	r.State = leave.State(state)
	r.IdempotencyKey = idemKey.String

	if r.StartDate, err = generic.ParseDate(startDate); err != nil {
		return r, err
	}
	if r.EndDate, err = generic.ParseDate(endDate); err != nil {
		return r, err
	}
	if r.PMDecision, err = parseDecision(pm); err != nil {
		return r, err
	}
	if r.HRDecision, err = parseDecision(hr); err != nil {
		return r, err
	}
	if r.Cancellation, err = parseDecision(cancel); err != nil {
		return r, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, department, team, sub_team, manager_id,
			first_working_day, role, active, annual_quota, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			team = excluded.team,
			sub_team = excluded.sub_team,
			manager_id = excluded.manager_id,
			first_working_day = excluded.first_working_day,
			role = excluded.role,
			active = excluded.active,
			annual_quota = excluded.annual_quota,
			updated_at = excluded.updated_at
	`

	var fwd sql.NullString
	if emp.FirstWorkingDay != nil && !emp.FirstWorkingDay.IsZero() {
		fwd = sql.NullString{String: emp.FirstWorkingDay.String(), Valid: true}
	}
	var quota sql.NullInt64
	if emp.AnnualQuota != nil {
		quota = sql.NullInt64{Int64: int64(*emp.AnnualQuota), Valid: true}
	}
	now := formatTime(time.Now())

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Department, emp.Team, emp.SubTeam, emp.ManagerID,
		fwd, emp.Role, emp.Active, quota, now, now,
	)
	return err
}

// GetEmployee retrieves an employee by ID. Returns nil when not found.
func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	emp, err := scanEmployee(rows)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

const employeeColumns = `id, name, department, team, sub_team, manager_id, first_working_day, role, active, annual_quota`

func scanEmployee(rows *sql.Rows) (leave.Employee, error) {
	var (
		emp                 leave.Employee
		id, managerID, role string
		fwd                 sql.NullString
		quota               sql.NullInt64
	)
	if err := rows.Scan(&id, &emp.Name, &emp.Department, &emp.Team, &emp.SubTeam, &managerID,
		&fwd, &role, &emp.Active, &quota); err != nil {
		return emp, err
	}
	emp.ID = leave.EmployeeID(id)
	emp.ManagerID = leave.EmployeeID(managerID)
	emp.Role = leave.Role(role)
	if fwd.Valid {
		d, err := generic.ParseDate(fwd.String)
		if err != nil {
			return emp, err
		}
		emp.FirstWorkingDay = &d
	}
	if quota.Valid {
		q := int(quota.Int64)
		emp.AnnualQuota = &q
	}
	return emp, nil
}

// Directory is the EmployeeDirectory view of a Store. Get is already taken
// by the request side.
type Directory struct{ s *Store }

// Employees returns the directory view.
func (s *Store) Employees() Directory { return Directory{s: s} }

func (d Directory) Get(ctx context.Context, id leave.EmployeeID) (leave.Employee, bool, error) {
	emp, err := d.s.GetEmployee(ctx, id)
	if err != nil || emp == nil {
		return leave.Employee{}, false, err
	}
	return *emp, true, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit adds an entry. There is no update or delete.
func (s *Store) AppendAudit(ctx context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO audit_log (id, timestamp, actor_id, action, request_id, payload_json) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, formatTime(entry.Timestamp), entry.ActorID, entry.Action,
		nullString(string(entry.RequestID)), string(payload),
	)
	return err
}

// AuditTrail returns the entries for a request, oldest first.
func (s *Store) AuditTrail(ctx context.Context, requestID leave.RequestID) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, timestamp, actor_id, action, request_id, payload_json FROM audit_log WHERE request_id = ? ORDER BY timestamp, rowid",
		requestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []leave.AuditEntry
	for rows.Next() {
		var (
			e                 leave.AuditEntry
			ts, actor, action string
			reqID, payload    sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &actor, &action, &reqID, &payload); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		e.ActorID = leave.EmployeeID(actor)
		e.Action = leave.AuditAction(action)
		e.RequestID = leave.RequestID(reqID.String)
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all requests and audit entries. Employees are kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM audit_log; DELETE FROM requests;")
	return err
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func decisionColumn(stage leave.Stage) (string, error) {
	switch stage {
	case leave.StagePM:
		return "pm_decision_json", nil
	case leave.StageHR:
		return "hr_decision_json", nil
	case leave.StageCancel:
		return "cancellation_json", nil
	}
	return "", fmt.Errorf("unknown decision stage %q", stage)
}

// decisionRecord is the stored shape of a leave.Decision.
type decisionRecord struct {
	Stage    string `json:"stage"`
	ActorID  string `json:"actor_id"`
	Approved bool   `json:"approved"`
	Comment  string `json:"comment,omitempty"`
	At       string `json:"at"`
}

func decisionJSON(d *leave.Decision) (sql.NullString, error) {
	if d == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(decisionRecord{
		Stage:    string(d.Stage),
		ActorID:  string(d.ActorID),
		Approved: d.Approved,
		Comment:  d.Comment,
		At:       formatTime(d.At),
	})
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode decision: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func parseDecision(ns sql.NullString) (*leave.Decision, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var rec decisionRecord
	if err := json.Unmarshal([]byte(ns.String), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode decision: %w", err)
	}
	return &leave.Decision{
		Stage:    leave.Stage(rec.Stage),
		ActorID:  leave.EmployeeID(rec.ActorID),
		Approved: rec.Approved,
		Comment:  rec.Comment,
		At:       parseTime(rec.At),
	}, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
