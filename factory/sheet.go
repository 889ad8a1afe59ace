/*
Package factory provides JSON to Go sheet and surge-config conversion.

PURPOSE:
  Converts JSON definitions into engine.Sheet and surge.Config objects with
  save-time validation. This enables configuration without code changes -
  operators can define override sheets in JSON, and the factory creates the
  proper Go structs.

WHY JSON?
  - Non-developers can author sheets
  - Easy integration with admin UI
  - Version control for pricing definitions
  - Database storage of raw configs

SHEET JSON SCHEMA:
  {
    "kind": "rate",
    "level": "sublocation",
    "entity_id": "subloc-1",
    "priority": 10,
    "effective_from": "2026-09-01",
    "effective_to": "2026-12-31",
    "windows": [
      {"type": "absolute_time", "start_time": "09:00", "end_time": "17:00", "value": "25"},
      {"type": "duration_based", "start_minute": 0, "end_minute": 120, "value": "30"}
    ]
  }

SURGE CONFIG JSON SCHEMA:
  {
    "entity_id": "loc-1",
    "level": "location",
    "demand_supply": {"current_demand": 150, "current_supply": 50, "historical_avg_pressure": 2.0},
    "params": {"alpha": 0.5, "min_multiplier": 0.8, "max_multiplier": 3.0, "ema_alpha": 0.3},
    "days": ["Friday", "Saturday"],
    "windows": [{"type": "absolute_time", "start_time": "18:00", "end_time": "23:00"}]
  }

VALIDATION:
  Malformed windows (bad HH:MM, start >= end, midnight crossing), unknown
  levels, and invalid surge bounds are rejected here, before anything is
  persisted. The resolver therefore only ever warns about sheets written
  outside this path.

SEE ALSO:
  - engine/window.go: Window validation rules
  - surge/surge.go: Surge config invariants
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/surge"
)

// =============================================================================
// JSON SHAPES
// =============================================================================

type WindowJSON struct {
	Type        string `json:"type"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	StartMinute int    `json:"start_minute,omitempty"`
	EndMinute   int    `json:"end_minute,omitempty"`
	Value       string `json:"value,omitempty"`
}

type SheetJSON struct {
	ID            string       `json:"id,omitempty"`
	Kind          string       `json:"kind"`
	Level         string       `json:"level"`
	EntityID      string       `json:"entity_id"`
	EventID       *string      `json:"event_id,omitempty"`
	Priority      int          `json:"priority"`
	EffectiveFrom string       `json:"effective_from"`
	EffectiveTo   *string      `json:"effective_to,omitempty"`
	Windows       []WindowJSON `json:"windows"`
}

type DemandSupplyJSON struct {
	CurrentDemand         float64 `json:"current_demand"`
	CurrentSupply         float64 `json:"current_supply"`
	HistoricalAvgPressure float64 `json:"historical_avg_pressure"`
}

type SurgeParamsJSON struct {
	Alpha         float64 `json:"alpha"`
	MinMultiplier float64 `json:"min_multiplier"`
	MaxMultiplier float64 `json:"max_multiplier"`
	EMAAlpha      float64 `json:"ema_alpha"`
}

type SurgeConfigJSON struct {
	ID           string           `json:"id,omitempty"`
	EntityID     string           `json:"entity_id"`
	Level        string           `json:"level"`
	DemandSupply DemandSupplyJSON `json:"demand_supply"`
	Params       SurgeParamsJSON  `json:"params"`
	Days         []string         `json:"days,omitempty"`
	Windows      []WindowJSON     `json:"windows,omitempty"`
}

// =============================================================================
// SHEET FACTORY
// =============================================================================

// SheetFactory converts JSON sheet definitions into validated engine sheets.
type SheetFactory struct {
	// Clock defaults to time.Now. Injectable for tests.
	Clock func() time.Time
}

func NewSheetFactory() *SheetFactory { return &SheetFactory{} }

func (f *SheetFactory) now() time.Time {
	if f.Clock != nil {
		return f.Clock()
	}
	return time.Now()
}

// ParseSheet builds a DRAFT sheet from JSON. All windows must validate.
func (f *SheetFactory) ParseSheet(raw string) (*engine.Sheet, error) {
	var j SheetJSON
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("%w: invalid sheet JSON: %v", engine.ErrInvalidConfiguration, err)
	}
	return f.FromJSON(j)
}

// FromJSON builds a DRAFT sheet from an already decoded definition.
func (f *SheetFactory) FromJSON(j SheetJSON) (*engine.Sheet, error) {
	kind := engine.Attribute(j.Kind)
	if kind != engine.AttributeRate && kind != engine.AttributeCapacity {
		return nil, fmt.Errorf("%w: unknown sheet kind %q", engine.ErrInvalidConfiguration, j.Kind)
	}
	level := engine.Level(j.Level)
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown level %q", engine.ErrInvalidConfiguration, j.Level)
	}
	if j.EntityID == "" {
		return nil, fmt.Errorf("%w: sheet requires an entity_id", engine.ErrInvalidConfiguration)
	}
	if len(j.Windows) == 0 {
		return nil, fmt.Errorf("%w: sheet requires at least one window", engine.ErrInvalidConfiguration)
	}

	from, err := parseDate(j.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: effective_from: %v", engine.ErrInvalidConfiguration, err)
	}
	var to *time.Time
	if j.EffectiveTo != nil {
		t, err := parseDate(*j.EffectiveTo)
		if err != nil {
			return nil, fmt.Errorf("%w: effective_to: %v", engine.ErrInvalidConfiguration, err)
		}
		if !t.After(from) {
			return nil, fmt.Errorf("%w: effective_to must be after effective_from", engine.ErrInvalidConfiguration)
		}
		to = &t
	}

	windows, err := parseWindows(j.Windows, true)
	if err != nil {
		return nil, err
	}

	id := j.ID
	if id == "" {
		id = uuid.NewString()
	}
	var eventID *engine.EntityID
	if j.EventID != nil {
		e := engine.EntityID(*j.EventID)
		eventID = &e
	}

	return &engine.Sheet{
		ID:            engine.SheetID(id),
		Kind:          kind,
		Level:         level,
		EntityID:      engine.EntityID(j.EntityID),
		EventID:       eventID,
		Priority:      j.Priority,
		EffectiveFrom: from,
		EffectiveTo:   to,
		Windows:       windows,
		Status:        engine.StatusDraft,
		Origin:        engine.OriginManual,
		CreatedAt:     f.now(),
	}, nil
}

// ParseSurgeConfig builds a validated surge config from JSON.
func (f *SheetFactory) ParseSurgeConfig(raw string) (*surge.Config, error) {
	var j SurgeConfigJSON
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("%w: invalid surge config JSON: %v", engine.ErrInvalidConfiguration, err)
	}
	return f.SurgeConfigFromJSON(j)
}

// SurgeConfigFromJSON builds a validated surge config.
func (f *SheetFactory) SurgeConfigFromJSON(j SurgeConfigJSON) (*surge.Config, error) {
	if j.EntityID == "" {
		return nil, fmt.Errorf("%w: surge config requires an entity_id", engine.ErrInvalidConfiguration)
	}

	days, err := parseDays(j.Days)
	if err != nil {
		return nil, err
	}
	// Surge applicability windows carry no value of their own; prices come
	// from the materialization multiplier.
	windows, err := parseWindows(j.Windows, false)
	if err != nil {
		return nil, err
	}

	id := j.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := f.now()
	cfg := &surge.Config{
		ID:       surge.ConfigID(id),
		EntityID: engine.EntityID(j.EntityID),
		Level:    engine.Level(j.Level),
		DemandSupply: surge.DemandSupplyParams{
			CurrentDemand:         j.DemandSupply.CurrentDemand,
			CurrentSupply:         j.DemandSupply.CurrentSupply,
			HistoricalAvgPressure: j.DemandSupply.HistoricalAvgPressure,
		},
		Params: surge.SurgeParams{
			Alpha:         j.Params.Alpha,
			MinMultiplier: j.Params.MinMultiplier,
			MaxMultiplier: j.Params.MaxMultiplier,
			EMAAlpha:      j.Params.EMAAlpha,
		},
		Windows:   windows,
		Days:      days,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := surge.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseWindows(js []WindowJSON, requireValue bool) ([]engine.Window, error) {
	var out []engine.Window
	for i, wj := range js {
		w := engine.Window{
			Type:        engine.WindowType(wj.Type),
			StartTime:   wj.StartTime,
			EndTime:     wj.EndTime,
			StartMinute: wj.StartMinute,
			EndMinute:   wj.EndMinute,
		}
		if wj.Value != "" {
			v, err := decimal.NewFromString(wj.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: window %d: bad value %q", engine.ErrInvalidConfiguration, i, wj.Value)
			}
			if v.IsNegative() {
				return nil, fmt.Errorf("%w: window %d: value must not be negative", engine.ErrInvalidConfiguration, i)
			}
			w.Value = v
		} else if requireValue {
			return nil, fmt.Errorf("%w: window %d: value is required", engine.ErrInvalidConfiguration, i)
		}
		if err := w.Validate(); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func parseDays(names []string) ([]time.Weekday, error) {
	byName := map[string]time.Weekday{
		"Sunday": time.Sunday, "Monday": time.Monday, "Tuesday": time.Tuesday,
		"Wednesday": time.Wednesday, "Thursday": time.Thursday,
		"Friday": time.Friday, "Saturday": time.Saturday,
	}
	var out []time.Weekday
	for _, n := range names {
		d, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", engine.ErrInvalidConfiguration, n)
		}
		out = append(out, d)
	}
	return out, nil
}

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
