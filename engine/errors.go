/*
errors.go - Centralized error types for the resolution engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (surge, pricing, capacity) wrap these with context.

ERROR CATEGORIES:
  1. NotFound              - Unknown entity/sheet/config
  2. InvalidConfiguration  - Bad multiplier bounds, malformed windows
  3. ConflictingState      - Lifecycle violations, live-sheet conflicts
  4. PartialFailure        - Bulk writes where some entities failed
  5. Persistence           - Store unreachable or timed out

USAGE:
  if errors.Is(err, engine.ErrNotFound) { ... }

  var pf *engine.PartialFailureError
  if errors.As(err, &pf) {
      log.Printf("%d of %d writes failed", len(pf.Failed), pf.Attempted)
  }

SEE ALSO:
  - cascade.go: Produces PartialFailureError
  - resolve.go: Wraps store failures as ErrPersistence
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity, sheet or surge
	// config does not exist. Never retried automatically.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfiguration is returned for bad surge bounds, zero
	// historical pressure, or malformed time windows at save time.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrConflictingState is returned when an operation collides with a
	// sheet lifecycle state, e.g. materializing over a live surge sheet.
	ErrConflictingState = errors.New("conflicting state")

	// ErrPartialFailure is returned by bulk cascade writes where some
	// entities failed. The PartialFailureError carries the detail.
	ErrPartialFailure = errors.New("partial failure")

	// ErrPersistence is returned when the backing store is unreachable
	// or a write/read times out.
	ErrPersistence = errors.New("persistence error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies what was missing.
type NotFoundError struct {
	Kind string // "entity", "sheet", "surge config"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidWindowError describes a malformed time window. During resolution
// it only causes the owning sheet to be skipped, never a fatal error.
type InvalidWindowError struct {
	Window Window
	Detail string
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid %s window: %s", e.Window.Type, e.Detail)
}
func (e *InvalidWindowError) Unwrap() error { return ErrInvalidConfiguration }

// ConflictError describes a lifecycle conflict.
type ConflictError struct {
	SheetID SheetID
	Detail  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting state (sheet %s): %s", e.SheetID, e.Detail)
}
func (e *ConflictError) Unwrap() error { return ErrConflictingState }

// PartialFailureError reports a best-effort bulk write. Writes that
// succeeded are never rolled back; callers inspect Failed for retry or
// reporting. Attempted == len(Succeeded) + len(Failed).
type PartialFailureError struct {
	Attempted int
	Succeeded []EntityID
	Failed    []EntityID
	Causes    map[EntityID]error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("cascade partially failed: %d/%d writes failed", len(e.Failed), e.Attempted)
}
func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError reports whether the error is due to invalid caller input
// or state, as opposed to infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrConflictingState) ||
		errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrPersistence) }
