/*
errors.go - Store-level sentinel errors

PURPOSE:
  Errors that persistence implementations return so the domain layer can
  recognise them without knowing which backend produced them. The leave
  package wraps these into its own error kinds before they reach callers.

USAGE:
  if errors.Is(err, generic.ErrConcurrentModification) {
      // someone else moved the record first; refresh and report
  }

SEE ALSO:
  - leave/errors.go: Caller-facing error taxonomy
  - store/sqlite/sqlite.go: Produces these errors
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a record with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when a compare-and-swap finds the
	// record in a different state than the caller expected.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEntityNotFound is returned when a referenced record doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
