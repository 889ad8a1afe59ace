/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a venue hierarchy,
	override sheets, and surge configs that demonstrate specific features.

AVAILABLE SCENARIOS:

	simple-venue:     One location, one court, inherited default rates
	peak-hours:       Approved rate sheets with morning/evening windows
	event-pricing:    Event-scoped sheet that outranks everything else
	surge-weekend:    Surge config ready to materialize on a busy location
	capacity-floor:   Capacity sheets plus a booking allocation feed

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the entity hierarchy
 3. Create sheets via factory and approve the relevant ones
 4. Optionally create surge configs and seed the allocation feed

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "peak-hours"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared helpers and wiring
  - factory/sheet.go: Sheet JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/capacity"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "simple-venue",
		Name:        "Simple Venue",
		Description: "One location, one court, rates inherited from defaults",
		Category:    "pricing",
	},
	{
		ID:          "peak-hours",
		Name:        "Peak Hours",
		Description: "Morning and evening rate windows on a court, with a location fallback",
		Category:    "pricing",
	},
	{
		ID:          "event-pricing",
		Name:        "Event Pricing",
		Description: "Event-scoped sheet that outranks location and court sheets",
		Category:    "pricing",
	},
	{
		ID:          "surge-weekend",
		Name:        "Surge Weekend",
		Description: "High-pressure surge config on a location, ready to materialize",
		Category:    "surge",
	},
	{
		ID:          "capacity-floor",
		Name:        "Capacity Floor",
		Description: "Capacity windows plus a booking allocation feed on a court",
		Category:    "capacity",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.allocations.Input = capacity.AllocationInput{}

	var err error
	switch req.ScenarioID {
	case "simple-venue":
		err = h.loadSimpleVenueScenario(ctx)
	case "peak-hours":
		err = h.loadPeakHoursScenario(ctx)
	case "event-pricing":
		err = h.loadEventPricingScenario(ctx)
	case "surge-weekend":
		err = h.loadSurgeWeekendScenario(ctx)
	case "capacity-floor":
		err = h.loadCapacityFloorScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSimpleVenueScenario: a bare hierarchy where every price comes from
// entity defaults.
func (h *Handler) loadSimpleVenueScenario(ctx context.Context) error {
	return h.createVenue(ctx, venueSpec{
		customerRate:  "15",
		locationRate:  "20",
		courtCapacity: "4",
	})
}

// loadPeakHoursScenario: approved windowed rate sheets on the court, plus a
// lower-priority location sheet covering the rest of the day.
func (h *Handler) loadPeakHoursScenario(ctx context.Context) error {
	if err := h.createVenue(ctx, venueSpec{
		customerRate:  "15",
		locationRate:  "20",
		courtCapacity: "4",
	}); err != nil {
		return err
	}

	court := factory.SheetJSON{
		Kind:          "rate",
		Level:         "sublocation",
		EntityID:      "court-1",
		Priority:      10,
		EffectiveFrom: "2026-01-01",
		Windows: []factory.WindowJSON{
			{Type: "absolute_time", StartTime: "06:00", EndTime: "09:00", Value: "35"},
			{Type: "absolute_time", StartTime: "17:00", EndTime: "22:00", Value: "45"},
		},
	}
	location := factory.SheetJSON{
		Kind:          "rate",
		Level:         "location",
		EntityID:      "loc-1",
		Priority:      5,
		EffectiveFrom: "2026-01-01",
		Windows: []factory.WindowJSON{
			{Type: "absolute_time", StartTime: "00:00", EndTime: "24:00", Value: "25"},
		},
	}
	for _, j := range []factory.SheetJSON{court, location} {
		if err := h.createApprovedSheet(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// loadEventPricingScenario: an event booking on a court with its own sheet.
func (h *Handler) loadEventPricingScenario(ctx context.Context) error {
	if err := h.loadPeakHoursScenario(ctx); err != nil {
		return err
	}

	event := &engine.Entity{
		ID:        "tournament-1",
		Level:     engine.LevelEvent,
		ParentID:  entityIDPtr("court-1"),
		Name:      "Spring Tournament",
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveEntity(ctx, event); err != nil {
		return err
	}

	eventID := "tournament-1"
	sheet := factory.SheetJSON{
		Kind:          "rate",
		Level:         "sublocation",
		EntityID:      "court-1",
		EventID:       &eventID,
		Priority:      1, // low on purpose: event scope beats priority
		EffectiveFrom: "2026-01-01",
		Windows: []factory.WindowJSON{
			{Type: "duration_based", StartMinute: 0, EndMinute: 120, Value: "60"},
			{Type: "duration_based", StartMinute: 120, EndMinute: 480, Value: "50"},
		},
	}
	return h.createApprovedSheet(ctx, sheet)
}

// loadSurgeWeekendScenario: a location under pressure, config not yet
// materialized so the demo can walk through the workflow.
func (h *Handler) loadSurgeWeekendScenario(ctx context.Context) error {
	if err := h.createVenue(ctx, venueSpec{
		customerRate:  "15",
		locationRate:  "20",
		courtCapacity: "4",
	}); err != nil {
		return err
	}

	cfg, err := h.Factory.SurgeConfigFromJSON(factory.SurgeConfigJSON{
		ID:       "surge-loc-1",
		EntityID: "loc-1",
		Level:    "location",
		DemandSupply: factory.DemandSupplyJSON{
			CurrentDemand:         150,
			CurrentSupply:         50,
			HistoricalAvgPressure: 2.0,
		},
		Params: factory.SurgeParamsJSON{
			Alpha:         0.5,
			MinMultiplier: 0.8,
			MaxMultiplier: 3.0,
			EMAAlpha:      0.3,
		},
		Days:    []string{"Friday", "Saturday"},
		Windows: []factory.WindowJSON{{Type: "absolute_time", StartTime: "18:00", EndTime: "23:00"}},
	})
	if err != nil {
		return err
	}
	return h.Store.SaveConfig(ctx, cfg)
}

// loadCapacityFloorScenario: capacity sheets on a court plus a static
// booking feed so the allocation endpoint has something to partition.
func (h *Handler) loadCapacityFloorScenario(ctx context.Context) error {
	if err := h.createVenue(ctx, venueSpec{
		customerRate:  "15",
		locationRate:  "20",
		courtCapacity: "4",
	}); err != nil {
		return err
	}

	sheet := factory.SheetJSON{
		Kind:          "capacity",
		Level:         "sublocation",
		EntityID:      "court-1",
		Priority:      10,
		EffectiveFrom: "2026-01-01",
		Windows: []factory.WindowJSON{
			{Type: "absolute_time", StartTime: "08:00", EndTime: "20:00", Value: "8"},
		},
	}
	if err := h.createApprovedSheet(ctx, sheet); err != nil {
		return err
	}

	h.allocations.Input = capacity.AllocationInput{
		Transient:   decimal.NewFromInt(20),
		Events:      decimal.NewFromInt(10),
		Reserved:    decimal.NewFromInt(5),
		Unavailable: decimal.NewFromInt(8),
	}
	return nil
}

// =============================================================================
// SHARED BUILDERS
// =============================================================================

type venueSpec struct {
	customerRate  string
	locationRate  string
	courtCapacity string
}

// createVenue builds the standard customer -> location -> court chain used
// by every scenario: cust-1, loc-1, court-1.
func (h *Handler) createVenue(ctx context.Context, spec venueSpec) error {
	custRate, err := decimal.NewFromString(spec.customerRate)
	if err != nil {
		return err
	}
	locRate, err := decimal.NewFromString(spec.locationRate)
	if err != nil {
		return err
	}
	courtCap, err := decimal.NewFromString(spec.courtCapacity)
	if err != nil {
		return err
	}

	now := time.Now()
	entities := []*engine.Entity{
		{
			ID:          "cust-1",
			Level:       engine.LevelCustomer,
			Name:        "Riverside Sports",
			DefaultRate: &custRate,
			CreatedAt:   now,
		},
		{
			ID:          "loc-1",
			Level:       engine.LevelLocation,
			ParentID:    entityIDPtr("cust-1"),
			Name:        "Downtown Club",
			DefaultRate: &locRate,
			CreatedAt:   now,
		},
		{
			ID:       "court-1",
			Level:    engine.LevelSubLocation,
			ParentID: entityIDPtr("loc-1"),
			Name:     "Court 1",
			Capacity: &engine.CapacityConfig{
				MinCapacity:     decimal.NewFromInt(1),
				MaxCapacity:     decimal.NewFromInt(12),
				DefaultCapacity: courtCap,
			},
			CreatedAt: now,
		},
	}
	for _, e := range entities {
		if err := h.Store.SaveEntity(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// createApprovedSheet runs a definition through the factory and walks it
// through the full lifecycle so it participates in resolution immediately.
func (h *Handler) createApprovedSheet(ctx context.Context, j factory.SheetJSON) error {
	sheet, err := h.Factory.FromJSON(j)
	if err != nil {
		return err
	}
	if err := h.Store.CreateSheet(ctx, sheet); err != nil {
		return err
	}
	pending := engine.StatusPendingApproval
	if err := h.Store.UpdateSheetStatus(ctx, sheet.ID, &pending, nil); err != nil {
		return err
	}
	approved := engine.StatusApproved
	active := true
	return h.Store.UpdateSheetStatus(ctx, sheet.ID, &approved, &active)
}

func entityIDPtr(s string) *engine.EntityID {
	id := engine.EntityID(s)
	return &id
}
