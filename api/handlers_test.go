/*
handlers_test.go - HTTP-level tests for the pricing API

Tests for:
- Entity creation and hierarchy validation
- Sheet lifecycle through the REST surface
- Price resolution end to end (sqlite-backed)
- Surge materialize / recalculate / approve workflow
- Default-rate cascade decision rule
- Scenario loading and allocation partition
*/
package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/warp/pricing-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, log.New(os.Stderr, "", 0))
	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}

// seedVenue creates cust-1 -> loc-1 (rate 20) -> court-1 via the API.
func seedVenue(t *testing.T, router http.Handler) {
	t.Helper()
	reqs := []map[string]any{
		{"id": "cust-1", "level": "customer", "name": "Riverside", "default_rate": "15"},
		{"id": "loc-1", "level": "location", "parent_id": "cust-1", "name": "Downtown", "default_rate": "20"},
		{"id": "court-1", "level": "sublocation", "parent_id": "loc-1", "name": "Court 1",
			"capacity": map[string]string{"min_capacity": "1", "max_capacity": "12", "default_capacity": "4"}},
	}
	for _, r := range reqs {
		rec := do(t, router, http.MethodPost, "/api/entities", r)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed entity %v: status %d body %s", r["id"], rec.Code, rec.Body.String())
		}
	}
}

// approveSheet walks a draft through submit+approve.
func approveSheet(t *testing.T, router http.Handler, sheetID string) {
	t.Helper()
	if rec := do(t, router, http.MethodPost, "/api/sheets/"+sheetID+"/submit", nil); rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodPost, "/api/sheets/"+sheetID+"/approve", nil); rec.Code != http.StatusOK {
		t.Fatalf("approve: status %d body %s", rec.Code, rec.Body.String())
	}
}

// =============================================================================
// ENTITIES
// =============================================================================

func TestCreateEntity_Hierarchy(t *testing.T) {
	_, router := newTestServer(t)
	seedVenue(t, router)

	// Parent must sit exactly one level up.
	rec := do(t, router, http.MethodPost, "/api/entities", map[string]any{
		"id": "bad-court", "level": "sublocation", "parent_id": "cust-1", "name": "Bad",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("skipping a level should fail, got %d", rec.Code)
	}

	// Non-customers need a parent.
	rec = do(t, router, http.MethodPost, "/api/entities", map[string]any{
		"id": "orphan", "level": "location", "name": "Orphan",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("orphan location should fail, got %d", rec.Code)
	}

	// Listing by level.
	rec = do(t, router, http.MethodGet, "/api/entities?level=location", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	locations := decode[[]EntityDTO](t, rec)
	if len(locations) != 1 || locations[0].ID != "loc-1" {
		t.Errorf("expected exactly loc-1, got %v", locations)
	}
}

// =============================================================================
// SHEETS AND PRICING
// =============================================================================

func TestSheetLifecycleAndPricing(t *testing.T) {
	// GIVEN: a venue and an approved evening rate sheet on the court
	_, router := newTestServer(t)
	seedVenue(t, router)

	rec := do(t, router, http.MethodPost, "/api/sheets", map[string]any{
		"kind": "rate", "level": "sublocation", "entity_id": "court-1",
		"priority": 10, "effective_from": "2026-01-01",
		"windows": []map[string]any{
			{"type": "absolute_time", "start_time": "17:00", "end_time": "22:00", "value": "45"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sheet: %d body %s", rec.Code, rec.Body.String())
	}
	sheet := decode[SheetDTO](t, rec)
	if sheet.Status != "draft" {
		t.Fatalf("new sheets are drafts, got %s", sheet.Status)
	}

	// Drafts do not participate in resolution.
	rec = do(t, router, http.MethodGet, "/api/entities/court-1/price?start=2026-06-10T18:00:00Z&end=2026-06-10T20:00:00Z", nil)
	quote := decode[QuoteDTO](t, rec)
	if quote.TotalPrice != 40 {
		t.Errorf("draft must not price; expected default 2x20=40, got %v", quote.TotalPrice)
	}

	// Approve and re-price.
	approveSheet(t, router, sheet.ID)
	rec = do(t, router, http.MethodGet, "/api/entities/court-1/price?start=2026-06-10T18:00:00Z&end=2026-06-10T20:00:00Z", nil)
	quote = decode[QuoteDTO](t, rec)
	if quote.TotalPrice != 90 {
		t.Errorf("expected 2x45=90 after approval, got %v", quote.TotalPrice)
	}
	if len(quote.HourlyBreakdown) != 2 || quote.HourlyBreakdown[0].Source != "sheet" {
		t.Errorf("breakdown should name the sheet source, got %+v", quote.HourlyBreakdown)
	}

	// Illegal transition: approving an approved sheet.
	rec = do(t, router, http.MethodPost, "/api/sheets/"+sheet.ID+"/approve", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double approve should 409, got %d", rec.Code)
	}

	// Deactivate pulls it out of resolution without archiving.
	rec = do(t, router, http.MethodPost, "/api/sheets/"+sheet.ID+"/deactivate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/api/entities/court-1/price?start=2026-06-10T18:00:00Z&end=2026-06-10T20:00:00Z", nil)
	quote = decode[QuoteDTO](t, rec)
	if quote.TotalPrice != 40 {
		t.Errorf("deactivated sheet must not price, got %v", quote.TotalPrice)
	}
}

func TestPrice_MissingEntityAnd404(t *testing.T) {
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodGet, "/api/entities/ghost/price?start=2026-06-10T18:00:00Z&end=2026-06-10T20:00:00Z", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown entity should 404, got %d", rec.Code)
	}
}

func TestCapacityEndpoint(t *testing.T) {
	_, router := newTestServer(t)
	seedVenue(t, router)

	rec := do(t, router, http.MethodGet, "/api/entities/court-1/capacity?start=2026-06-10T08:00:00Z&end=2026-06-10T18:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("capacity: %d body %s", rec.Code, rec.Body.String())
	}
	cap := decode[CapacityDTO](t, rec)
	if cap.TotalCapacity != 40 {
		t.Errorf("10h x 4 should be 40, got %v", cap.TotalCapacity)
	}
}

// =============================================================================
// SURGE WORKFLOW
// =============================================================================

func TestSurgeWorkflow(t *testing.T) {
	// GIVEN: a venue and a surge config on the location
	_, router := newTestServer(t)
	seedVenue(t, router)

	rec := do(t, router, http.MethodPost, "/api/surge-configs", map[string]any{
		"id": "cfg-1", "entity_id": "loc-1", "level": "location",
		"demand_supply": map[string]any{"current_demand": 150, "current_supply": 50, "historical_avg_pressure": 2.0},
		"params":        map[string]any{"alpha": 0.5, "min_multiplier": 0.8, "max_multiplier": 3.0, "ema_alpha": 0.3},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create config: %d body %s", rec.Code, rec.Body.String())
	}

	// Materialize creates a priced draft.
	rec = do(t, router, http.MethodPost, "/api/surge-configs/cfg-1/materialize", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("materialize: %d body %s", rec.Code, rec.Body.String())
	}
	mat := decode[MaterializeResponseDTO](t, rec)
	if mat.Multiplier < 1.2 || mat.Multiplier > 1.21 {
		t.Errorf("worked example multiplier ~1.2027, got %v", mat.Multiplier)
	}
	if mat.BaseRate != 20 {
		t.Errorf("base rate should be the location default 20, got %v", mat.BaseRate)
	}

	// Second materialize conflicts.
	rec = do(t, router, http.MethodPost, "/api/surge-configs/cfg-1/materialize", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("live sheet should 409, got %d body %s", rec.Code, rec.Body.String())
	}

	// Approve the draft through the sheet surface (surge path).
	rec = do(t, router, http.MethodPost, "/api/sheets/"+mat.RateSheetID+"/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve surge sheet: %d body %s", rec.Code, rec.Body.String())
	}
	approved := decode[SheetDTO](t, rec)
	if approved.Status != "approved" || !approved.IsActive {
		t.Errorf("expected approved+active, got %s/%v", approved.Status, approved.IsActive)
	}

	// Recalculate with doubled demand, approve, verify supersede.
	rec = do(t, router, http.MethodPut, "/api/surge-configs/cfg-1/demand", map[string]any{
		"current_demand": 300, "current_supply": 50,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update demand: %d body %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/api/surge-configs/cfg-1/recalculate", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("recalculate: %d body %s", rec.Code, rec.Body.String())
	}
	rec2 := decode[MaterializeResponseDTO](t, rec)
	if rec2.OldMultiplier == nil {
		t.Error("recalculate should report the prior multiplier")
	}

	rec = do(t, router, http.MethodPost, "/api/sheets/"+rec2.RateSheetID+"/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve recalculated sheet: %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/api/sheets/"+mat.RateSheetID, nil)
	old := decode[SheetDTO](t, rec)
	if old.Status != "superseded" || old.IsActive {
		t.Errorf("prior surge sheet should be superseded, got %s/%v", old.Status, old.IsActive)
	}
}

// =============================================================================
// CASCADE
// =============================================================================

func TestDefaultRateCascade(t *testing.T) {
	_, router := newTestServer(t)
	seedVenue(t, router)

	// No descendant customs: customer edit auto-cascades.
	rec := do(t, router, http.MethodPost, "/api/entities/loc-1/default-rate", map[string]any{
		"level": "location", "rate": "22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("default-rate: %d body %s", rec.Code, rec.Body.String())
	}
	plan := decode[CascadePlanDTO](t, rec)
	if !plan.AutoCascaded {
		t.Fatalf("court has no custom rate; expected auto-cascade, got %+v", plan)
	}

	// The court inherited 22 as its own default now.
	rec = do(t, router, http.MethodGet, "/api/entities/court-1", nil)
	court := decode[EntityDTO](t, rec)
	if court.DefaultRate == nil || *court.DefaultRate != "22" {
		t.Errorf("court should carry 22, got %v", court.DefaultRate)
	}

	// A customer edit now requires confirmation (court carries a custom rate).
	rec = do(t, router, http.MethodPost, "/api/entities/cust-1/default-rate", map[string]any{
		"level": "customer", "rate": "18",
	})
	plan = decode[CascadePlanDTO](t, rec)
	if plan.AutoCascaded || !plan.RequiresConfirmation {
		t.Fatalf("expected a confirmation plan, got %+v", plan)
	}

	// Confirm with the "both" option.
	rec = do(t, router, http.MethodPost, "/api/entities/cust-1/cascade", map[string]any{
		"level": "customer", "rate": "18", "option": "both",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cascade execute: %d body %s", rec.Code, rec.Body.String())
	}
	result := decode[CascadeResultDTO](t, rec)
	if result.Succeeded != 2 || result.Failed != 0 {
		t.Errorf("expected loc-1 and court-1 rewritten, got %+v", result)
	}

	// History is append-only and visible.
	rec = do(t, router, http.MethodGet, "/api/entities/court-1/history", nil)
	history := decode[[]RateHistoryDTO](t, rec)
	if len(history) != 2 {
		t.Errorf("expected 2 history entries for court-1, got %d", len(history))
	}
}

// =============================================================================
// SCENARIOS AND ALLOCATION
// =============================================================================

func TestScenarioLoadAndAllocation(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	list := decode[[]ScenarioDTO](t, rec)
	if len(list) == 0 {
		t.Fatal("scenario catalog should not be empty")
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "capacity-floor"})
	if rec.Code != http.StatusOK {
		t.Fatalf("load scenario: %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/api/entities/court-1/allocation?start=2026-06-10T08:00:00Z&end=2026-06-10T18:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("allocation: %d body %s", rec.Code, rec.Body.String())
	}
	alloc := decode[AllocationDTO](t, rec)
	sum := alloc.Allocated.Total + alloc.Unallocated.Total
	if sum != alloc.TotalCapacity {
		t.Errorf("partition must sum to total: %v + %v != %v",
			alloc.Allocated.Total, alloc.Unallocated.Total, alloc.TotalCapacity)
	}
	if alloc.TotalCapacity != 80 {
		// capacity sheet: 8/hour over 08:00-20:00 covers the whole interval
		t.Errorf("expected 10h x 8 = 80, got %v", alloc.TotalCapacity)
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown scenario should 400, got %d", rec.Code)
	}
}
