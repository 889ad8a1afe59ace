/*
Package engine provides the core rate and capacity resolution engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for resolving
  time-varying values over a hierarchy of bookable entities. Whether the
  value is a price-per-hour or a capacity bound, the same engine collects
  competing override sheets, matches time windows, and picks a winner.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entity: A node in the customer → location → sub-location → event chain
  - Sheet: A priority-ranked, time-scoped override record (rate or capacity)
  - Window: A sub-daily or booking-relative interval carrying one value
  - RateHistoryEntry: An immutable record of a default-rate change

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors on money
  2. Type Safety: Strong typing for IDs prevents mixing entity/sheet IDs
  3. Explicit absence: "no rate configured" is a nil pointer, never zero
  4. Auditability: Default-rate changes append history entries, never edits

USAGE:
  resolver := &engine.Resolver{Sheets: sheetStore, Entities: entityStore}
  res, err := resolver.Resolve(ctx, "subloc-1", engine.AttributeRate,
      start, end, engine.ResolveOptions{ResolveHierarchy: true})

SEE ALSO:
  - window.go: Time-window matching
  - resolve.go: Hour-slice resolution algorithm
  - cascade.go: Default-rate cascade across descendants
  - store.go: Persistence interfaces
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type SheetID string
type HistoryID string

// =============================================================================
// HIERARCHY LEVELS
// =============================================================================

// Level identifies where an entity sits in the booking hierarchy.
type Level string

const (
	LevelCustomer    Level = "customer"
	LevelLocation    Level = "location"
	LevelSubLocation Level = "sublocation"
	LevelEvent       Level = "event"
)

// Depth returns how deeply nested a level is. A larger depth means a more
// specific entity: a sheet attached to a more specific entity always beats
// an ancestor's sheet, regardless of priority numbers.
func (l Level) Depth() int {
	switch l {
	case LevelCustomer:
		return 0
	case LevelLocation:
		return 1
	case LevelSubLocation:
		return 2
	case LevelEvent:
		return 3
	default:
		return -1
	}
}

func (l Level) Valid() bool { return l.Depth() >= 0 }

// =============================================================================
// ATTRIBUTE - What is being resolved
// =============================================================================

// Attribute selects which kind of value the engine resolves. Rate sheets and
// capacity sheets share one shape; only the value semantics differ.
type Attribute string

const (
	AttributeRate     Attribute = "rate"
	AttributeCapacity Attribute = "capacity"
)

// =============================================================================
// ENTITY - A node in the bookable hierarchy
// =============================================================================

// CapacityConfig holds the capacity bounds an entity may carry.
type CapacityConfig struct {
	MinCapacity       decimal.Decimal
	MaxCapacity       decimal.Decimal
	DefaultCapacity   decimal.Decimal
	AllocatedCapacity decimal.Decimal
}

// Entity is one node of the hierarchy. DefaultRate is nil when the entity
// has no rate of its own and inherits from its ancestors. A zero rate is a
// legitimate (free) rate and is distinct from nil.
type Entity struct {
	ID       EntityID
	Level    Level
	ParentID *EntityID
	Name     string

	DefaultRate *decimal.Decimal
	Capacity    *CapacityConfig

	CreatedAt time.Time
}

// DefaultFor returns the entity's own default for an attribute, if any.
func (e *Entity) DefaultFor(attr Attribute) (decimal.Decimal, bool) {
	switch attr {
	case AttributeRate:
		if e.DefaultRate != nil {
			return *e.DefaultRate, true
		}
	case AttributeCapacity:
		if e.Capacity != nil && !e.Capacity.DefaultCapacity.IsZero() {
			return e.Capacity.DefaultCapacity, true
		}
	}
	return decimal.Zero, false
}

// =============================================================================
// APPROVAL LIFECYCLE
// =============================================================================

type ApprovalStatus string

const (
	StatusDraft           ApprovalStatus = "draft"
	StatusPendingApproval ApprovalStatus = "pending_approval"
	StatusApproved        ApprovalStatus = "approved"
	StatusRejected        ApprovalStatus = "rejected"
	StatusSuperseded      ApprovalStatus = "superseded"
	StatusArchived        ApprovalStatus = "archived"
)

// Terminal reports whether a sheet can never leave this status.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusRejected || s == StatusArchived
}

// Live reports whether a sheet still occupies its config/entity slot:
// drafts, pending sheets and approved sheets all block a new surge
// materialization for the same config.
func (s ApprovalStatus) Live() bool {
	return s == StatusDraft || s == StatusPendingApproval || s == StatusApproved
}

// CanTransition validates the sheet lifecycle:
// draft → pending_approval → approved | rejected, approved → archived,
// approved → superseded (surge replacement only).
func (s ApprovalStatus) CanTransition(to ApprovalStatus) bool {
	switch s {
	case StatusDraft:
		return to == StatusPendingApproval || to == StatusArchived
	case StatusPendingApproval:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusArchived || to == StatusSuperseded
	default:
		return false
	}
}

// =============================================================================
// SHEET - Priority-ranked, time-scoped override record
// =============================================================================

// SheetOrigin distinguishes operator-authored sheets from sheets
// materialized by the surge workflow.
type SheetOrigin string

const (
	OriginManual SheetOrigin = "manual"
	OriginSurge  SheetOrigin = "surge"
)

// Sheet overrides an entity's default value for the windows it covers.
// Higher priority wins among sheets attached to the same entity; priority
// numbers are NOT unique and exact ties fall back to the most recently
// created sheet.
type Sheet struct {
	ID       SheetID
	Kind     Attribute
	Level    Level
	EntityID EntityID

	// EventID is set for event-scoped sheets. When a resolution is flagged
	// as an event booking, event-scoped sheets outrank all others.
	EventID *EntityID

	Priority      int
	EffectiveFrom time.Time
	EffectiveTo   *time.Time // nil = open-ended
	Windows       []Window

	Status   ApprovalStatus
	IsActive bool // meaningful only when Status == approved

	Origin   SheetOrigin
	ConfigID string // surge config that materialized this sheet, if any

	Metadata  map[string]string
	CreatedAt time.Time
}

// Applicable reports whether the sheet participates in resolution at
// instant t: approved, active, and inside its effective date range.
func (s *Sheet) Applicable(t time.Time) bool {
	if s.Status != StatusApproved || !s.IsActive {
		return false
	}
	if t.Before(s.EffectiveFrom) {
		return false
	}
	if s.EffectiveTo != nil && !t.Before(*s.EffectiveTo) {
		return false
	}
	return true
}

// =============================================================================
// RATE HISTORY - Append-only audit of default-rate changes
// =============================================================================

// RateHistoryEntry records one default-rate write. Entries are immutable;
// a rollback is a new forward write using a historical OldRate.
type RateHistoryEntry struct {
	ID         HistoryID
	EntityType Level
	EntityID   EntityID
	OldRate    *decimal.Decimal
	NewRate    decimal.Decimal
	ChangedAt  time.Time
	Reason     string
}
