/*
store.go - Persistence interfaces for sheets, entities and rate history

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  SheetStore:   Override sheet persistence and status transitions
  TxSheetStore: Transactional sheet operations (supersede-and-approve)
  EntityStore:  Hierarchy reads and default-rate writes
  HistoryStore: Append-only rate-change audit

APPEND-ONLY HISTORY:
  HistoryStore has no Update or Delete. A rollback is a new forward write
  using a historical entry's OldRate.

ATOMIC SUPERSEDE:
  Approving a surge-materialized sheet must mark the previous surge sheet
  for the same config SUPERSEDED in the same transaction. This is the only
  cross-sheet side effect in the system; TxSheetStore.WithTx carries it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - resolve.go: Reads via SheetStore + EntityStore
  - cascade.go: Writes via EntityStore + HistoryStore
  - surge/materialize.go: Uses TxSheetStore.WithTx
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SHEET STORE
// =============================================================================

// SheetFilter narrows a sheet listing. EntityIDs is the target entity plus,
// for hierarchy resolution, its ancestors.
type SheetFilter struct {
	EntityIDs  []EntityID
	Kind       Attribute
	ActiveOnly bool   // approved + isActive only
	ConfigID   string // surge-originated sheets of one config
}

// SheetStore handles override sheet persistence.
type SheetStore interface {
	// ListSheets returns sheets matching the filter, in no guaranteed order.
	ListSheets(ctx context.Context, f SheetFilter) ([]*Sheet, error)

	// GetSheet returns one sheet or ErrNotFound.
	GetSheet(ctx context.Context, id SheetID) (*Sheet, error)

	// CreateSheet persists a new sheet.
	CreateSheet(ctx context.Context, s *Sheet) error

	// UpdateSheetStatus applies a status and/or activity change. Nil fields
	// are left untouched. Lifecycle legality is the caller's concern.
	UpdateSheetStatus(ctx context.Context, id SheetID, status *ApprovalStatus, isActive *bool) error

	// Supersede marks an approved sheet superseded and deactivates it.
	Supersede(ctx context.Context, id SheetID) error
}

// TxSheetStore wraps SheetStore with transaction support. Use for the
// supersede-and-approve pairing: both writes succeed or neither does.
type TxSheetStore interface {
	SheetStore

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(SheetStore) error) error
}

// =============================================================================
// ENTITY STORE
// =============================================================================

// EntityStore handles hierarchy reads and the only entity write the engine
// performs: default-rate updates.
type EntityStore interface {
	// GetEntity returns one entity or ErrNotFound.
	GetEntity(ctx context.Context, id EntityID) (*Entity, error)

	// Ancestors returns the parent chain, nearest first. An event's chain
	// is sub-location, location, customer.
	Ancestors(ctx context.Context, id EntityID) ([]*Entity, error)

	// Descendants returns all transitive descendants of an entity.
	Descendants(ctx context.Context, id EntityID) ([]*Entity, error)

	// UpdateDefaultRate overwrites an entity's own default rate.
	UpdateDefaultRate(ctx context.Context, id EntityID, rate decimal.Decimal) error

	// SaveEntity creates or replaces an entity record.
	SaveEntity(ctx context.Context, e *Entity) error

	// ListEntities returns all entities at a level; empty level means all.
	ListEntities(ctx context.Context, level Level) ([]*Entity, error)
}

// =============================================================================
// HISTORY STORE
// =============================================================================

// HistoryStore records default-rate changes. Append-only: no Update, no
// Delete. Ever.
type HistoryStore interface {
	// AppendRateHistory persists one immutable entry.
	AppendRateHistory(ctx context.Context, entry RateHistoryEntry) error

	// History returns an entity's entries, oldest first.
	History(ctx context.Context, id EntityID) ([]RateHistoryEntry, error)
}
