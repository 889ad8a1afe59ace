/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the factory, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/sheet.go: SheetJSON / SurgeConfigJSON payloads
*/
package api

import (
	"time"

	"github.com/warp/pricing-engine/capacity"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/surge"
)

// =============================================================================
// ENTITY TYPES
// =============================================================================

// EntityDTO represents a hierarchy node in API responses.
type EntityDTO struct {
	ID          string              `json:"id"`
	Level       string              `json:"level"`
	ParentID    *string             `json:"parent_id,omitempty"`
	Name        string              `json:"name"`
	DefaultRate *string             `json:"default_rate,omitempty"`
	Capacity    *CapacityConfigDTO  `json:"capacity,omitempty"`
	CreatedAt   string              `json:"created_at,omitempty"`
}

type CapacityConfigDTO struct {
	MinCapacity       string `json:"min_capacity"`
	MaxCapacity       string `json:"max_capacity"`
	DefaultCapacity   string `json:"default_capacity"`
	AllocatedCapacity string `json:"allocated_capacity"`
}

// CreateEntityRequest is the request to create a hierarchy node.
type CreateEntityRequest struct {
	ID          string             `json:"id"`
	Level       string             `json:"level"`
	ParentID    *string            `json:"parent_id,omitempty"`
	Name        string             `json:"name"`
	DefaultRate *string            `json:"default_rate,omitempty"`
	Capacity    *CapacityConfigDTO `json:"capacity,omitempty"`
}

// =============================================================================
// RESOLUTION TYPES
// =============================================================================

// SliceDTO is one hour of a resolution breakdown.
type SliceDTO struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Fraction float64 `json:"fraction"`
	Value    float64 `json:"value"`
	Source   string  `json:"source"`
	SheetID  string  `json:"sheet_id,omitempty"`
	Level    string  `json:"source_level,omitempty"`
}

// QuoteDTO is the priced interval response.
type QuoteDTO struct {
	EntityID        string     `json:"entity_id"`
	Start           string     `json:"start"`
	End             string     `json:"end"`
	TotalPrice      float64    `json:"total_price"`
	AverageRate     float64    `json:"average_rate"`
	UnpricedHours   int        `json:"unpriced_hours"`
	HourlyBreakdown []SliceDTO `json:"hourly_breakdown"`
}

// CapacityDTO is the capacity interval response.
type CapacityDTO struct {
	EntityID        string     `json:"entity_id"`
	Start           string     `json:"start"`
	End             string     `json:"end"`
	TotalCapacity   float64    `json:"total_capacity"`
	HourlyBreakdown []SliceDTO `json:"hourly_breakdown"`
}

// AllocationDTO is the partition response.
type AllocationDTO struct {
	SubLocationID string             `json:"sublocation_id"`
	Start         string             `json:"start"`
	End           string             `json:"end"`
	TotalCapacity float64            `json:"total_capacity"`
	Allocated     AllocatedDTO       `json:"allocated"`
	Unallocated   UnallocatedDTO     `json:"unallocated"`
	Percentages   map[string]float64 `json:"percentages"`
}

type AllocatedDTO struct {
	Transient float64 `json:"transient"`
	Events    float64 `json:"events"`
	Reserved  float64 `json:"reserved"`
	Total     float64 `json:"total"`
}

type UnallocatedDTO struct {
	Unavailable float64 `json:"unavailable"`
	ReadyToUse  float64 `json:"ready_to_use"`
	Total       float64 `json:"total"`
}

// =============================================================================
// SHEET TYPES
// =============================================================================

// SheetDTO represents an override sheet.
type SheetDTO struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	Level         string            `json:"level"`
	EntityID      string            `json:"entity_id"`
	EventID       *string           `json:"event_id,omitempty"`
	Priority      int               `json:"priority"`
	EffectiveFrom string            `json:"effective_from"`
	EffectiveTo   *string           `json:"effective_to,omitempty"`
	Windows       []WindowDTO       `json:"windows"`
	Status        string            `json:"status"`
	IsActive      bool              `json:"is_active"`
	Origin        string            `json:"origin"`
	ConfigID      string            `json:"config_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at,omitempty"`
}

type WindowDTO struct {
	Type        string  `json:"type"`
	StartTime   string  `json:"start_time,omitempty"`
	EndTime     string  `json:"end_time,omitempty"`
	StartMinute int     `json:"start_minute,omitempty"`
	EndMinute   int     `json:"end_minute,omitempty"`
	Value       float64 `json:"value"`
}

// =============================================================================
// SURGE TYPES
// =============================================================================

// SurgeConfigDTO represents a surge config.
type SurgeConfigDTO struct {
	ID               string   `json:"id"`
	EntityID         string   `json:"entity_id"`
	Level            string   `json:"level"`
	CurrentDemand    float64  `json:"current_demand"`
	CurrentSupply    float64  `json:"current_supply"`
	HistoricalAvg    float64  `json:"historical_avg_pressure"`
	Alpha            float64  `json:"alpha"`
	MinMultiplier    float64  `json:"min_multiplier"`
	MaxMultiplier    float64  `json:"max_multiplier"`
	EMAAlpha         float64  `json:"ema_alpha"`
	LastMaterialized *string  `json:"last_materialized,omitempty"`
}

// MaterializeResponseDTO is returned by materialize/recalculate.
type MaterializeResponseDTO struct {
	ConfigID      string   `json:"config_id"`
	RateSheetID   string   `json:"ratesheet_id"`
	Multiplier    float64  `json:"multiplier"`
	BaseRate      float64  `json:"base_rate"`
	OldMultiplier *float64 `json:"old_multiplier,omitempty"`
}

// UpdateDemandRequest feeds new demand/supply readings into a config.
type UpdateDemandRequest struct {
	CurrentDemand float64 `json:"current_demand"`
	CurrentSupply float64 `json:"current_supply"`
}

// =============================================================================
// CASCADE TYPES
// =============================================================================

// DefaultRateRequest changes an entity's default rate and triggers the
// cascade decision rule.
type DefaultRateRequest struct {
	Level string `json:"level"`
	Rate  string `json:"rate"`
}

// CascadeRequest executes a confirmed cascade option.
type CascadeRequest struct {
	Level  string `json:"level"`
	Rate   string `json:"rate"`
	Option string `json:"option"`
}

// CascadePlanDTO is the decision returned by a default-rate change.
type CascadePlanDTO struct {
	EntityID             string             `json:"entity_id"`
	AutoCascaded         bool               `json:"auto_cascaded"`
	RequiresConfirmation bool               `json:"requires_confirmation"`
	CustomRateChildren   []string           `json:"custom_rate_children,omitempty"`
	Options              []string           `json:"options,omitempty"`
	Result               *CascadeResultDTO  `json:"result,omitempty"`
}

// CascadeResultDTO summarizes the per-entity writes.
type CascadeResultDTO struct {
	AffectedCount int                 `json:"affected_count"`
	Succeeded     int                 `json:"succeeded"`
	Failed        int                 `json:"failed"`
	Results       []CascadeOutcomeDTO `json:"results"`
}

type CascadeOutcomeDTO struct {
	EntityID string `json:"entity_id"`
	Level    string `json:"level"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// RateHistoryDTO is one immutable rate-change entry.
type RateHistoryDTO struct {
	ID         string  `json:"id"`
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	OldRate    *string `json:"old_rate,omitempty"`
	NewRate    string  `json:"new_rate"`
	ChangedAt  string  `json:"changed_at"`
	Reason     string  `json:"reason,omitempty"`
}

// RollbackRequest re-applies a historical entry's old rate.
type RollbackRequest struct {
	HistoryID string `json:"history_id"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntityDTO(e *engine.Entity) EntityDTO {
	dto := EntityDTO{
		ID:        string(e.ID),
		Level:     string(e.Level),
		Name:      e.Name,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if e.ParentID != nil {
		p := string(*e.ParentID)
		dto.ParentID = &p
	}
	if e.DefaultRate != nil {
		r := e.DefaultRate.String()
		dto.DefaultRate = &r
	}
	if e.Capacity != nil {
		dto.Capacity = &CapacityConfigDTO{
			MinCapacity:       e.Capacity.MinCapacity.String(),
			MaxCapacity:       e.Capacity.MaxCapacity.String(),
			DefaultCapacity:   e.Capacity.DefaultCapacity.String(),
			AllocatedCapacity: e.Capacity.AllocatedCapacity.String(),
		}
	}
	return dto
}

func toSliceDTOs(slices []engine.Slice) []SliceDTO {
	out := make([]SliceDTO, len(slices))
	for i, s := range slices {
		fraction, _ := s.Fraction.Float64()
		value, _ := s.Value.Float64()
		out[i] = SliceDTO{
			Start:    s.Start.Format(time.RFC3339),
			End:      s.End.Format(time.RFC3339),
			Fraction: fraction,
			Value:    value,
			Source:   string(s.Source),
			SheetID:  string(s.SheetID),
			Level:    string(s.SourceLevel),
		}
	}
	return out
}

func toSheetDTO(s *engine.Sheet) SheetDTO {
	dto := SheetDTO{
		ID:            string(s.ID),
		Kind:          string(s.Kind),
		Level:         string(s.Level),
		EntityID:      string(s.EntityID),
		Priority:      s.Priority,
		EffectiveFrom: s.EffectiveFrom.Format(time.RFC3339),
		Status:        string(s.Status),
		IsActive:      s.IsActive,
		Origin:        string(s.Origin),
		ConfigID:      s.ConfigID,
		Metadata:      s.Metadata,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
	if s.EventID != nil {
		e := string(*s.EventID)
		dto.EventID = &e
	}
	if s.EffectiveTo != nil {
		t := s.EffectiveTo.Format(time.RFC3339)
		dto.EffectiveTo = &t
	}
	dto.Windows = make([]WindowDTO, len(s.Windows))
	for i, w := range s.Windows {
		value, _ := w.Value.Float64()
		dto.Windows[i] = WindowDTO{
			Type:        string(w.Type),
			StartTime:   w.StartTime,
			EndTime:     w.EndTime,
			StartMinute: w.StartMinute,
			EndMinute:   w.EndMinute,
			Value:       value,
		}
	}
	return dto
}

func toSurgeConfigDTO(c *surge.Config) SurgeConfigDTO {
	dto := SurgeConfigDTO{
		ID:            string(c.ID),
		EntityID:      string(c.EntityID),
		Level:         string(c.Level),
		CurrentDemand: c.DemandSupply.CurrentDemand,
		CurrentSupply: c.DemandSupply.CurrentSupply,
		HistoricalAvg: c.DemandSupply.HistoricalAvgPressure,
		Alpha:         c.Params.Alpha,
		MinMultiplier: c.Params.MinMultiplier,
		MaxMultiplier: c.Params.MaxMultiplier,
		EMAAlpha:      c.Params.EMAAlpha,
	}
	if c.LastMaterialized != nil {
		t := c.LastMaterialized.Format(time.RFC3339)
		dto.LastMaterialized = &t
	}
	return dto
}

func toPartitionDTO(p *capacity.PartitionResult) AllocationDTO {
	f := func(d interface{ Float64() (float64, bool) }) float64 {
		v, _ := d.Float64()
		return v
	}
	return AllocationDTO{
		SubLocationID: string(p.SubLocationID),
		Start:         p.Start.Format(time.RFC3339),
		End:           p.End.Format(time.RFC3339),
		TotalCapacity: f(p.TotalCapacity),
		Allocated: AllocatedDTO{
			Transient: f(p.Allocated.Transient),
			Events:    f(p.Allocated.Events),
			Reserved:  f(p.Allocated.Reserved),
			Total:     f(p.Allocated.Total),
		},
		Unallocated: UnallocatedDTO{
			Unavailable: f(p.Unallocated.Unavailable),
			ReadyToUse:  f(p.Unallocated.ReadyToUse),
			Total:       f(p.Unallocated.Total),
		},
		Percentages: map[string]float64{
			"transient":    p.Percentages.Transient,
			"events":       p.Percentages.Events,
			"reserved":     p.Percentages.Reserved,
			"unavailable":  p.Percentages.Unavailable,
			"ready_to_use": p.Percentages.ReadyToUse,
		},
	}
}

func toCascadeResultDTO(r *engine.CascadeResult) *CascadeResultDTO {
	dto := &CascadeResultDTO{
		AffectedCount: len(r.Outcomes),
		Succeeded:     r.Succeeded,
		Failed:        r.Failed,
		Results:       make([]CascadeOutcomeDTO, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		item := CascadeOutcomeDTO{
			EntityID: string(o.EntityID),
			Level:    string(o.Level),
			OK:       o.Err == nil,
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		dto.Results[i] = item
	}
	return dto
}

func toRateHistoryDTO(e engine.RateHistoryEntry) RateHistoryDTO {
	dto := RateHistoryDTO{
		ID:         string(e.ID),
		EntityType: string(e.EntityType),
		EntityID:   string(e.EntityID),
		NewRate:    e.NewRate.String(),
		ChangedAt:  e.ChangedAt.Format(time.RFC3339),
		Reason:     e.Reason,
	}
	if e.OldRate != nil {
		r := e.OldRate.String()
		dto.OldRate = &r
	}
	return dto
}
