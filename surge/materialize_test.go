package surge_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/engine/store"
	"github.com/warp/pricing-engine/surge"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	sheets  *store.TxMemory
	configs *surge.MemoryConfigStore
	mat     *surge.Materializer
	now     time.Time
}

// newFixture wires a materializer over in-memory stores with a venue whose
// location default rate is 20.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	sheets := store.NewTxMemory()
	configs := surge.NewMemoryConfigStore()

	rate := decimal.NewFromInt(20)
	entities := []*engine.Entity{
		{ID: "cust-1", Level: engine.LevelCustomer, Name: "Riverside"},
		{ID: "loc-1", Level: engine.LevelLocation, ParentID: ptr(engine.EntityID("cust-1")), Name: "Downtown", DefaultRate: &rate},
	}
	for _, e := range entities {
		if err := sheets.SaveEntity(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	now := time.Date(2026, time.June, 12, 19, 0, 0, 0, time.UTC)
	mat := &surge.Materializer{
		Configs:  configs,
		Sheets:   sheets,
		Resolver: &engine.Resolver{Sheets: sheets, Entities: sheets},
		Clock:    func() time.Time { return now },
	}
	return &fixture{sheets: sheets, configs: configs, mat: mat, now: now}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) saveConfig(t *testing.T, c *surge.Config) {
	t.Helper()
	if err := f.configs.SaveConfig(context.Background(), c); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

// =============================================================================
// MATERIALIZE
// =============================================================================

func TestMaterialize_CreatesPricedDraft(t *testing.T) {
	// GIVEN: base rate 20 and the worked-example config (multiplier ~1.2027)
	// WHEN: Materializing
	// THEN: A DRAFT surge sheet priced at 20 x multiplier with snapshots

	ctx := context.Background()
	f := newFixture(t)
	f.saveConfig(t, validConfig())

	res, err := f.mat.Materialize(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	wantMult := 1 + 0.5*math.Log(1.5)
	if !approxEqual(res.Multiplier, wantMult) {
		t.Errorf("expected multiplier %.6f, got %.6f", wantMult, res.Multiplier)
	}
	if !res.BaseRate.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected base rate 20, got %s", res.BaseRate)
	}

	sheet, err := f.sheets.GetSheet(ctx, res.SheetID)
	if err != nil {
		t.Fatalf("sheet not persisted: %v", err)
	}
	if sheet.Status != engine.StatusDraft || sheet.Origin != engine.OriginSurge {
		t.Errorf("expected a draft surge sheet, got %s/%s", sheet.Status, sheet.Origin)
	}
	if sheet.ConfigID != "cfg-1" || sheet.EntityID != "loc-1" {
		t.Errorf("sheet should be bound to the config's entity, got %+v", sheet)
	}
	if sheet.Metadata[surge.MetaDemandSnapshot] != "150" || sheet.Metadata[surge.MetaSupplySnapshot] != "50" {
		t.Errorf("demand/supply snapshots missing, got %v", sheet.Metadata)
	}

	wantPrice := decimal.NewFromInt(20).Mul(decimal.NewFromFloat(wantMult))
	if len(sheet.Windows) != 1 || !sheet.Windows[0].Value.Equal(wantPrice) {
		t.Errorf("expected one window at %s, got %+v", wantPrice, sheet.Windows)
	}

	// LastMaterialized stamped on the config.
	cfg, _ := f.configs.GetConfig(ctx, "cfg-1")
	if cfg.LastMaterialized == nil || !cfg.LastMaterialized.Equal(f.now) {
		t.Errorf("lastMaterialized should be stamped, got %v", cfg.LastMaterialized)
	}
}

func TestMaterialize_UsesConfigWindows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := validConfig()
	c.Windows = []engine.Window{
		{Type: engine.WindowAbsoluteTime, StartTime: "18:00", EndTime: "23:00"},
	}
	f.saveConfig(t, c)

	res, err := f.mat.Materialize(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	sheet, _ := f.sheets.GetSheet(ctx, res.SheetID)
	if len(sheet.Windows) != 1 || sheet.Windows[0].StartTime != "18:00" {
		t.Errorf("config windows should carry over, got %+v", sheet.Windows)
	}
	if sheet.Windows[0].Value.IsZero() {
		t.Error("carried windows must be priced")
	}
}

func TestMaterialize_ConflictsWithLiveSheet(t *testing.T) {
	// GIVEN: A config already materialized (draft exists)
	// WHEN: Materializing again
	// THEN: ConflictingState; recalculate is the correct verb

	ctx := context.Background()
	f := newFixture(t)
	f.saveConfig(t, validConfig())

	if _, err := f.mat.Materialize(ctx, "cfg-1"); err != nil {
		t.Fatalf("first materialize: %v", err)
	}
	_, err := f.mat.Materialize(ctx, "cfg-1")
	if !errors.Is(err, engine.ErrConflictingState) {
		t.Fatalf("expected ErrConflictingState, got %v", err)
	}
}

func TestMaterialize_NoBaseRate(t *testing.T) {
	// GIVEN: A config on an entity with no rate anywhere in its chain
	ctx := context.Background()
	f := newFixture(t)
	f.sheets.SaveEntity(ctx, &engine.Entity{ID: "loc-bare", Level: engine.LevelLocation, ParentID: ptr(engine.EntityID("cust-1")), Name: "Bare"})
	c := validConfig()
	c.EntityID = "loc-bare"
	f.saveConfig(t, c)

	_, err := f.mat.Materialize(ctx, "cfg-1")
	if !errors.Is(err, engine.ErrInvalidConfiguration) {
		t.Fatalf("no base rate should be ErrInvalidConfiguration, got %v", err)
	}
}

func TestMaterialize_BaseRateIgnoresOwnSurgeSheets(t *testing.T) {
	// GIVEN: An approved surge sheet at 48 already priced on the entity
	// WHEN: Recalculating
	// THEN: The base rate is still the 20 default, not the surge output

	ctx := context.Background()
	f := newFixture(t)
	f.saveConfig(t, validConfig())

	first, err := f.mat.Materialize(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if err := f.mat.Approve(ctx, first.SheetID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	rec, err := f.mat.Recalculate(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if !rec.BaseRate.Equal(decimal.NewFromInt(20)) {
		t.Errorf("a materialized sheet must never price itself, got base %s", rec.BaseRate)
	}
}

// =============================================================================
// RECALCULATE
// =============================================================================

func TestRecalculate_AddsDraftWithoutTouchingPrior(t *testing.T) {
	// GIVEN: An existing draft from the first materialization
	// WHEN: Demand doubles and we recalculate
	// THEN: A second draft appears; the first one is untouched; both
	//       multipliers are reported

	ctx := context.Background()
	f := newFixture(t)
	f.saveConfig(t, validConfig())

	first, err := f.mat.Materialize(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	cfg, _ := f.configs.GetConfig(ctx, "cfg-1")
	cfg.DemandSupply.CurrentDemand = 300
	f.saveConfig(t, cfg)

	rec, err := f.mat.Recalculate(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if !approxEqual(rec.OldMultiplier, first.Multiplier) {
		t.Errorf("expected old multiplier %.6f, got %.6f", first.Multiplier, rec.OldMultiplier)
	}
	wantNew := 1 + 0.5*math.Log(3.0)
	if !approxEqual(rec.Multiplier, wantNew) {
		t.Errorf("expected new multiplier %.6f, got %.6f", wantNew, rec.Multiplier)
	}

	// The first draft still exists untouched.
	prior, err := f.sheets.GetSheet(ctx, first.SheetID)
	if err != nil || prior.Status != engine.StatusDraft {
		t.Errorf("earlier sheets are never mutated, got %v / %v", prior, err)
	}

	all, _ := f.sheets.ListSheets(ctx, engine.SheetFilter{ConfigID: "cfg-1"})
	if len(all) != 2 {
		t.Errorf("expected 2 sheets for the config, got %d", len(all))
	}
}

// =============================================================================
// APPROVE
// =============================================================================

func TestApprove_SupersedesPriorAtomically(t *testing.T) {
	// GIVEN: An approved surge sheet and a newer draft for the same config
	// WHEN: Approving the draft
	// THEN: The old sheet becomes SUPERSEDED and the draft APPROVED+active,
	//       leaving exactly one live approved sheet

	ctx := context.Background()
	f := newFixture(t)
	f.saveConfig(t, validConfig())

	first, _ := f.mat.Materialize(ctx, "cfg-1")
	if err := f.mat.Approve(ctx, first.SheetID); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	second, _ := f.mat.Recalculate(ctx, "cfg-1")
	if err := f.mat.Approve(ctx, second.SheetID); err != nil {
		t.Fatalf("approve second: %v", err)
	}

	old, _ := f.sheets.GetSheet(ctx, first.SheetID)
	if old.Status != engine.StatusSuperseded || old.IsActive {
		t.Errorf("prior sheet should be superseded+inactive, got %s/%v", old.Status, old.IsActive)
	}
	cur, _ := f.sheets.GetSheet(ctx, second.SheetID)
	if cur.Status != engine.StatusApproved || !cur.IsActive {
		t.Errorf("new sheet should be approved+active, got %s/%v", cur.Status, cur.IsActive)
	}

	approved := 0
	all, _ := f.sheets.ListSheets(ctx, engine.SheetFilter{ConfigID: "cfg-1"})
	for _, s := range all {
		if s.Status == engine.StatusApproved {
			approved++
		}
	}
	if approved != 1 {
		t.Errorf("exactly one approved sheet per config, got %d", approved)
	}
}

func TestApprove_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.saveConfig(t, validConfig())

	// Manual sheets don't go through the surge approval path.
	manual := &engine.Sheet{
		ID:            "manual-1",
		Kind:          engine.AttributeRate,
		Level:         engine.LevelLocation,
		EntityID:      "loc-1",
		EffectiveFrom: f.now,
		Status:        engine.StatusDraft,
		Origin:        engine.OriginManual,
		CreatedAt:     f.now,
	}
	f.sheets.CreateSheet(ctx, manual)
	if err := f.mat.Approve(ctx, "manual-1"); !errors.Is(err, engine.ErrConflictingState) {
		t.Errorf("manual sheet should be rejected, got %v", err)
	}

	// Already-approved sheets can't be approved again.
	first, _ := f.mat.Materialize(ctx, "cfg-1")
	f.mat.Approve(ctx, first.SheetID)
	if err := f.mat.Approve(ctx, first.SheetID); !errors.Is(err, engine.ErrConflictingState) {
		t.Errorf("double approve should conflict, got %v", err)
	}

	// Unknown sheets.
	if err := f.mat.Approve(ctx, "ghost"); !engine.IsNotFound(err) {
		t.Errorf("unknown sheet should be ErrNotFound, got %v", err)
	}
}
