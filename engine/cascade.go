/*
cascade.go - Default-rate cascade across descendant entities

PURPOSE:
  When a default rate changes on an ancestor entity, decides whether the
  change can silently propagate to descendants or needs operator
  confirmation, then executes the chosen propagation.

DECISION RULE:
  - No descendant carries a custom (non-null) default rate of its own:
    auto-cascade, silently, best effort.
  - Any descendant has a custom rate: return a plan requiring confirmation
    with four mutually exclusive options (none / locations / sublocations /
    both).

EXECUTION SEMANTICS:
  Cascade writes are a best-effort sequence of independent per-entity
  updates. A failure on one descendant is logged and does not block the
  others or roll back prior writes; the caller receives a
  PartialFailureError with full per-entity detail. Cancelling the context
  stops issuing further writes but never undoes committed ones.

HISTORY:
  Every successful write appends one immutable RateHistoryEntry. A rollback
  is a new forward write using a historical entry's OldRate, never a
  deletion.

SEE ALSO:
  - errors.go: PartialFailureError
  - store.go: EntityStore, HistoryStore
*/
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CASCADE PLAN
// =============================================================================

// CascadeOption selects which descendants a confirmed cascade rewrites.
type CascadeOption string

const (
	CascadeNone         CascadeOption = "none"
	CascadeLocations    CascadeOption = "locations"     // immediate children, customer-level edits only
	CascadeSubLocations CascadeOption = "sublocations"  // all sub-locations transitively
	CascadeBoth         CascadeOption = "both"
)

// CascadePlan is the decision produced by a default-rate change. When
// AutoCascaded is true the propagation already happened and Result carries
// the outcomes; otherwise the caller must confirm with one of Options.
type CascadePlan struct {
	EntityID EntityID
	Level    Level
	NewRate  decimal.Decimal

	AutoCascaded bool
	Result       *CascadeResult

	// CustomRateChildren are the descendants whose own rates blocked the
	// silent cascade.
	CustomRateChildren []EntityID
	Options            []CascadeOption
}

// CascadeOutcome is one per-entity write result.
type CascadeOutcome struct {
	EntityID EntityID
	Level    Level
	OldRate  *decimal.Decimal
	Err      error
}

// CascadeResult summarizes a best-effort cascade execution.
type CascadeResult struct {
	Outcomes  []CascadeOutcome
	Succeeded int
	Failed    int
}

// =============================================================================
// CASCADER
// =============================================================================

// Cascader runs the decision rule and the propagation writes.
type Cascader struct {
	Entities EntityStore
	History  HistoryStore
	Logger   *log.Logger

	// Progress, when set, is called after each per-entity write completes,
	// success or failure. Consumers fold the stream into a summary.
	Progress func(CascadeOutcome)

	// Clock defaults to time.Now. Injectable for tests.
	Clock func() time.Time
}

func (c *Cascader) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// OnDefaultRateChange persists newRate on the edited entity, then decides
// and (for the silent case) executes the cascade.
func (c *Cascader) OnDefaultRateChange(ctx context.Context, entityID EntityID, level Level, newRate decimal.Decimal) (*CascadePlan, error) {
	ent, err := c.Entities.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if ent.Level != level {
		return nil, fmt.Errorf("%w: entity %s is a %s, not a %s", ErrInvalidConfiguration, entityID, ent.Level, level)
	}

	if err := c.write(ctx, ent, newRate, "direct rate change"); err != nil {
		return nil, err
	}

	targets, custom, err := c.scanDescendants(ctx, entityID, level)
	if err != nil {
		return nil, err
	}

	plan := &CascadePlan{EntityID: entityID, Level: level, NewRate: newRate}

	if len(custom) > 0 {
		plan.CustomRateChildren = custom
		plan.Options = []CascadeOption{CascadeNone, CascadeSubLocations, CascadeBoth}
		if level == LevelCustomer {
			plan.Options = []CascadeOption{CascadeNone, CascadeLocations, CascadeSubLocations, CascadeBoth}
		}
		return plan, nil
	}

	plan.AutoCascaded = true
	plan.Result = c.propagate(ctx, targets, newRate, "auto-cascade from "+string(entityID))
	if plan.Result.Failed > 0 {
		return plan, c.partialFailure(plan.Result)
	}
	return plan, nil
}

// Execute runs a confirmed cascade with the chosen option. Same best-effort
// semantics as the silent path.
func (c *Cascader) Execute(ctx context.Context, entityID EntityID, level Level, newRate decimal.Decimal, option CascadeOption) (*CascadeResult, error) {
	if option == CascadeNone {
		return &CascadeResult{}, nil
	}
	if option == CascadeLocations && level != LevelCustomer {
		return nil, fmt.Errorf("%w: option %q is only valid for customer-level edits", ErrInvalidConfiguration, option)
	}

	desc, err := c.Entities.Descendants(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading descendants of %s: %v", ErrPersistence, entityID, err)
	}

	var targets []*Entity
	for _, d := range desc {
		switch option {
		case CascadeLocations:
			if d.Level == LevelLocation {
				targets = append(targets, d)
			}
		case CascadeSubLocations:
			if d.Level == LevelSubLocation {
				targets = append(targets, d)
			}
		case CascadeBoth:
			if d.Level == LevelLocation || d.Level == LevelSubLocation {
				targets = append(targets, d)
			}
		}
	}

	result := c.propagate(ctx, targets, newRate, fmt.Sprintf("cascade(%s) from %s", option, entityID))
	if result.Failed > 0 {
		return result, c.partialFailure(result)
	}
	return result, nil
}

// Rollback re-applies a historical entry's OldRate as a new forward write.
// History only grows.
func (c *Cascader) Rollback(ctx context.Context, entityID EntityID, entry RateHistoryEntry) error {
	if entry.EntityID != entityID {
		return fmt.Errorf("%w: history entry belongs to %s", ErrInvalidConfiguration, entry.EntityID)
	}
	if entry.OldRate == nil {
		return fmt.Errorf("%w: history entry has no previous rate to roll back to", ErrInvalidConfiguration)
	}
	ent, err := c.Entities.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	return c.write(ctx, ent, *entry.OldRate, "rollback of "+string(entry.ID))
}

// =============================================================================
// INTERNALS
// =============================================================================

// scanDescendants returns the cascade targets and the subset carrying a
// custom rate. Locations count for customer-level edits; sub-locations for
// customer- and location-level edits.
func (c *Cascader) scanDescendants(ctx context.Context, entityID EntityID, level Level) (targets []*Entity, custom []EntityID, err error) {
	desc, err := c.Entities.Descendants(ctx, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: loading descendants of %s: %v", ErrPersistence, entityID, err)
	}
	for _, d := range desc {
		include := false
		switch d.Level {
		case LevelLocation:
			include = level == LevelCustomer
		case LevelSubLocation:
			include = level == LevelCustomer || level == LevelLocation
		}
		if !include {
			continue
		}
		targets = append(targets, d)
		if d.DefaultRate != nil {
			custom = append(custom, d.ID)
		}
	}
	return targets, custom, nil
}

// propagate performs the per-entity writes sequentially, best effort.
// Cancellation stops issuing further writes; committed writes stand.
func (c *Cascader) propagate(ctx context.Context, targets []*Entity, newRate decimal.Decimal, reason string) *CascadeResult {
	result := &CascadeResult{}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			c.warnf("cascade cancelled after %d/%d writes", len(result.Outcomes), len(targets))
			break
		}
		outcome := CascadeOutcome{EntityID: t.ID, Level: t.Level, OldRate: t.DefaultRate}
		if err := c.write(ctx, t, newRate, reason); err != nil {
			outcome.Err = err
			result.Failed++
			c.warnf("cascade write failed for %s: %v", t.ID, err)
		} else {
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
		if c.Progress != nil {
			c.Progress(outcome)
		}
	}
	return result
}

// write updates one entity's rate and appends the history entry.
func (c *Cascader) write(ctx context.Context, ent *Entity, newRate decimal.Decimal, reason string) error {
	if err := c.Entities.UpdateDefaultRate(ctx, ent.ID, newRate); err != nil {
		return fmt.Errorf("%w: updating rate of %s: %v", ErrPersistence, ent.ID, err)
	}
	entry := RateHistoryEntry{
		ID:         HistoryID(uuid.NewString()),
		EntityType: ent.Level,
		EntityID:   ent.ID,
		OldRate:    ent.DefaultRate,
		NewRate:    newRate,
		ChangedAt:  c.now(),
		Reason:     reason,
	}
	if err := c.History.AppendRateHistory(ctx, entry); err != nil {
		// The rate write stood; surface the audit failure.
		return fmt.Errorf("%w: appending rate history for %s: %v", ErrPersistence, ent.ID, err)
	}
	return nil
}

func (c *Cascader) partialFailure(result *CascadeResult) *PartialFailureError {
	pf := &PartialFailureError{
		Attempted: len(result.Outcomes),
		Causes:    make(map[EntityID]error),
	}
	for _, o := range result.Outcomes {
		if o.Err != nil {
			pf.Failed = append(pf.Failed, o.EntityID)
			pf.Causes[o.EntityID] = o.Err
		} else {
			pf.Succeeded = append(pf.Succeeded, o.EntityID)
		}
	}
	return pf
}

func (c *Cascader) warnf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf("[cascade] "+format, args...)
	}
}
