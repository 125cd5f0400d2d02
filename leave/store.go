/*
store.go - Interfaces the engine consumes

PURPOSE:
  The engine never talks to storage, the org directory or a lock service
  directly. These interfaces are the whole contract; any durable key/row store
  satisfies RequestRepository.

KEY INTERFACES:
  RequestRepository: create/read/compare-and-swap leave requests
  EmployeeDirectory: read-only identity and org lookup
  AuditLog:          optional append-only record of transitions
  Locker:            per-key mutual exclusion for submissions and decisions

COMPARE-AND-SWAP CONTRACT:
  CompareAndSwapState moves a request from expected to next and records the
  decision in ONE write. If the stored state is not expected, nothing is
  written and generic.ErrConcurrentModification is returned. If the request
  does not exist, generic.ErrEntityNotFound is returned.

IDEMPOTENCY:
  Create rejects a second request carrying an idempotency key that is
  already stored with generic.ErrDuplicateIdempotencyKey.

IMPLEMENTATIONS:
  - leave/memory: in-memory, for tests and local runs
  - store/sqlite: SQLite

SEE ALSO:
  - coordinator.go: The only caller
  - lock/: Locker implementations
*/
package leave

import (
	"context"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// REQUEST REPOSITORY
// =============================================================================

type RequestRepository interface {
	// Create persists a new request. Fails with ErrDuplicateIdempotencyKey
	// when req.IdempotencyKey is already taken.
	Create(ctx context.Context, req VacationRequest) error

	// Get returns the request and whether it exists.
	Get(ctx context.Context, id RequestID) (VacationRequest, bool, error)

	// GetByIdempotencyKey returns the request created with key, if any.
	GetByIdempotencyKey(ctx context.Context, key string) (VacationRequest, bool, error)

	// CompareAndSwapState atomically moves id from expected to next and
	// stores the decision.
	CompareAndSwapState(ctx context.Context, id RequestID, expected, next State, decision Decision) error

	// ListByEmployeeInWindow returns the employee's requests (any state) whose
	// StartDate lies in [start, end].
	ListByEmployeeInWindow(ctx context.Context, employeeID EmployeeID, start, end generic.TimePoint) ([]VacationRequest, error)

	// ListApprovedByUnitInRange returns Approved requests of the department+team
	// whose date range intersects [start, end] (inclusive).
	ListApprovedByUnitInRange(ctx context.Context, department, team string, start, end generic.TimePoint) ([]VacationRequest, error)
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

type EmployeeDirectory interface {
	Get(ctx context.Context, id EmployeeID) (Employee, bool, error)
}

// =============================================================================
// AUDIT LOG - Separate from requests, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditRequestSubmitted AuditAction = "request_submitted"
	AuditRequestApproved  AuditAction = "request_approved"
	AuditRequestRejected  AuditAction = "request_rejected"
	AuditRequestForwarded AuditAction = "request_forwarded"
	AuditRequestCancelled AuditAction = "request_cancelled"
	AuditRequestDenied    AuditAction = "request_denied"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	ActorID   EmployeeID
	Action    AuditAction
	RequestID RequestID
	Payload   map[string]any
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// =============================================================================
// LOCKER
// =============================================================================

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}
