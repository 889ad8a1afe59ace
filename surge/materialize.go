/*
materialize.go - Snapshot a surge calculation into an approvable rate sheet

PURPOSE:
  Turns the live multiplier into a persisted draft rate sheet:

  Materialize:  requires no live (draft/pending/approved) surge sheet for
                the config; creates a new DRAFT sheet priced at
                base rate × multiplier, snapshotting demand and supply.
  Recalculate:  recomputes from current pressure and creates an additional
                DRAFT sheet without touching earlier ones (audit trail).
  Approve:      standard approval plus the one cross-sheet side effect in
                the system: prior surge sheets of the same config become
                SUPERSEDED atomically with the new sheet going APPROVED
                and active. Both writes succeed or neither does.

BASE RATE:
  Obtained by running the resolution engine for "now" with surge sheets
  excluded, so a materialized sheet never prices itself.

SEE ALSO:
  - surge.go: The multiplier formula
  - engine/store.go: TxSheetStore used for the atomic supersede-and-approve
*/
package surge

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
)

// DefaultSheetPriority is assigned to materialized sheets so they outrank
// ordinary operator sheets on the same entity unless deliberately overruled.
const DefaultSheetPriority = 100

// Sheet metadata keys written by materialization.
const (
	MetaDemandSnapshot = "demand_snapshot"
	MetaSupplySnapshot = "supply_snapshot"
	MetaMultiplier     = "multiplier"
	MetaBaseRate       = "base_rate"
)

// =============================================================================
// MATERIALIZER
// =============================================================================

// Materializer runs the config → sheet workflow.
type Materializer struct {
	Configs  ConfigStore
	Sheets   engine.TxSheetStore
	Resolver *engine.Resolver
	Logger   *log.Logger

	// SheetPriority for new surge sheets; zero means DefaultSheetPriority.
	SheetPriority int

	// Clock defaults to time.Now. Injectable for tests.
	Clock func() time.Time
}

func (m *Materializer) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// MaterializeResult reports a newly created draft sheet.
type MaterializeResult struct {
	ConfigID   ConfigID
	SheetID    engine.SheetID
	Multiplier float64
	BaseRate   decimal.Decimal
}

// RecalculateResult additionally carries the prior multiplier for diffing.
type RecalculateResult struct {
	MaterializeResult
	OldMultiplier float64
}

// Materialize creates the first draft sheet for a config. Fails with
// ErrConflictingState if a draft, pending or approved surge sheet already
// exists for the config; use Recalculate instead.
func (m *Materializer) Materialize(ctx context.Context, configID ConfigID) (*MaterializeResult, error) {
	cfg, err := m.Configs.GetConfig(ctx, configID)
	if err != nil {
		return nil, err
	}

	existing, err := m.liveSheets(ctx, configID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &engine.ConflictError{
			SheetID: existing[0].ID,
			Detail:  fmt.Sprintf("config %s already has a %s surge sheet; recalculate instead", configID, existing[0].Status),
		}
	}

	return m.createDraft(ctx, cfg)
}

// Recalculate recomputes the multiplier from current demand/supply and
// creates a new draft sheet. Earlier sheets are never mutated; the result
// carries both multipliers for diffing.
func (m *Materializer) Recalculate(ctx context.Context, configID ConfigID) (*RecalculateResult, error) {
	cfg, err := m.Configs.GetConfig(ctx, configID)
	if err != nil {
		return nil, err
	}

	oldMult := 0.0
	if prior, err := m.latestSheet(ctx, configID); err == nil && prior != nil {
		if v, err := strconv.ParseFloat(prior.Metadata[MetaMultiplier], 64); err == nil {
			oldMult = v
		}
	}

	res, err := m.createDraft(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RecalculateResult{MaterializeResult: *res, OldMultiplier: oldMult}, nil
}

// Approve transitions a surge draft (or pending) sheet to APPROVED+active
// and supersedes every other live sheet materialized from the same config,
// in one transaction.
func (m *Materializer) Approve(ctx context.Context, sheetID engine.SheetID) error {
	sheet, err := m.Sheets.GetSheet(ctx, sheetID)
	if err != nil {
		return err
	}
	if sheet.Origin != engine.OriginSurge {
		return &engine.ConflictError{SheetID: sheetID, Detail: "not a surge-materialized sheet"}
	}
	if sheet.Status != engine.StatusDraft && sheet.Status != engine.StatusPendingApproval {
		return &engine.ConflictError{SheetID: sheetID, Detail: fmt.Sprintf("cannot approve a %s sheet", sheet.Status)}
	}

	return m.Sheets.WithTx(ctx, func(tx engine.SheetStore) error {
		siblings, err := tx.ListSheets(ctx, engine.SheetFilter{ConfigID: string(sheet.ConfigID)})
		if err != nil {
			return fmt.Errorf("%w: listing surge sheets of config %s: %v", engine.ErrPersistence, sheet.ConfigID, err)
		}
		for _, sib := range siblings {
			if sib.ID == sheetID || sib.Status != engine.StatusApproved {
				continue
			}
			if err := tx.Supersede(ctx, sib.ID); err != nil {
				return fmt.Errorf("%w: superseding sheet %s: %v", engine.ErrPersistence, sib.ID, err)
			}
		}
		approved := engine.StatusApproved
		active := true
		if err := tx.UpdateSheetStatus(ctx, sheetID, &approved, &active); err != nil {
			return fmt.Errorf("%w: approving sheet %s: %v", engine.ErrPersistence, sheetID, err)
		}
		return nil
	})
}

// =============================================================================
// INTERNALS
// =============================================================================

func (m *Materializer) createDraft(ctx context.Context, cfg *Config) (*MaterializeResult, error) {
	mult, err := ComputeMultiplier(cfg)
	if err != nil {
		return nil, err
	}

	base, err := m.baseRate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	factor := decimal.NewFromFloat(mult)
	windows := cfg.Windows
	if len(windows) == 0 {
		windows = []engine.Window{engine.FullDayWindow(decimal.Zero)}
	}
	priced := make([]engine.Window, len(windows))
	for i, w := range windows {
		w.Value = base.Mul(factor)
		priced[i] = w
	}

	now := m.now()
	priority := m.SheetPriority
	if priority == 0 {
		priority = DefaultSheetPriority
	}
	sheet := &engine.Sheet{
		ID:            engine.SheetID(uuid.NewString()),
		Kind:          engine.AttributeRate,
		Level:         cfg.Level,
		EntityID:      cfg.EntityID,
		Priority:      priority,
		EffectiveFrom: now,
		Windows:       priced,
		Status:        engine.StatusDraft,
		Origin:        engine.OriginSurge,
		ConfigID:      string(cfg.ID),
		Metadata: map[string]string{
			MetaDemandSnapshot: strconv.FormatFloat(cfg.DemandSupply.CurrentDemand, 'f', -1, 64),
			MetaSupplySnapshot: strconv.FormatFloat(cfg.DemandSupply.CurrentSupply, 'f', -1, 64),
			MetaMultiplier:     strconv.FormatFloat(mult, 'f', -1, 64),
			MetaBaseRate:       base.String(),
		},
		CreatedAt: now,
	}
	if err := m.Sheets.CreateSheet(ctx, sheet); err != nil {
		return nil, fmt.Errorf("%w: creating surge sheet: %v", engine.ErrPersistence, err)
	}

	cfg.LastMaterialized = &now
	cfg.UpdatedAt = now
	if err := m.Configs.SaveConfig(ctx, cfg); err != nil {
		// The sheet exists; a stale LastMaterialized is tolerable.
		m.warnf("failed to stamp lastMaterialized on config %s: %v", cfg.ID, err)
	}

	return &MaterializeResult{
		ConfigID:   cfg.ID,
		SheetID:    sheet.ID,
		Multiplier: mult,
		BaseRate:   base,
	}, nil
}

// baseRate resolves the entity's current rate with surge sheets excluded.
func (m *Materializer) baseRate(ctx context.Context, cfg *Config) (decimal.Decimal, error) {
	now := m.now()
	res, err := m.Resolver.Resolve(ctx, cfg.EntityID, engine.AttributeRate, now, now.Add(time.Hour), engine.ResolveOptions{
		ResolveHierarchy: true,
		ExcludeSurge:     true,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if len(res.Slices) == 0 || res.Slices[0].Source == engine.SourceNone {
		return decimal.Zero, fmt.Errorf("%w: entity %s has no base rate to surge against",
			engine.ErrInvalidConfiguration, cfg.EntityID)
	}
	return res.Slices[0].Value, nil
}

// liveSheets returns the config's draft/pending/approved sheets.
func (m *Materializer) liveSheets(ctx context.Context, configID ConfigID) ([]*engine.Sheet, error) {
	all, err := m.Sheets.ListSheets(ctx, engine.SheetFilter{ConfigID: string(configID)})
	if err != nil {
		return nil, fmt.Errorf("%w: listing surge sheets of config %s: %v", engine.ErrPersistence, configID, err)
	}
	var live []*engine.Sheet
	for _, s := range all {
		if s.Status.Live() {
			live = append(live, s)
		}
	}
	return live, nil
}

// latestSheet returns the most recently created sheet for a config, or nil.
func (m *Materializer) latestSheet(ctx context.Context, configID ConfigID) (*engine.Sheet, error) {
	all, err := m.Sheets.ListSheets(ctx, engine.SheetFilter{ConfigID: string(configID)})
	if err != nil {
		return nil, err
	}
	var latest *engine.Sheet
	for _, s := range all {
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return latest, nil
}

func (m *Materializer) warnf(format string, args ...any) {
	if m.Logger != nil {
		m.Logger.Printf("[surge] "+format, args...)
	}
}
