/*
handlers.go - HTTP API handlers for the pricing and capacity engine

PURPOSE:
  Exposes the resolution engine, surge workflow, and cascade logic via REST.
  Handles HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Entities:
    GET    /api/entities                      List entities (?level=)
    POST   /api/entities                      Create entity
    GET    /api/entities/{id}                 Get entity
    GET    /api/entities/{id}/price           Effective price for interval
    GET    /api/entities/{id}/capacity        Effective capacity for interval
    GET    /api/entities/{id}/allocation      Capacity allocation partition
    GET    /api/entities/{id}/history         Rate-change history
    POST   /api/entities/{id}/default-rate    Change default rate (cascade rule)
    POST   /api/entities/{id}/cascade         Execute a confirmed cascade
    POST   /api/entities/{id}/rollback        Roll back a historical rate

  Sheets:
    GET    /api/sheets                        List sheets (?entity_id=&kind=)
    POST   /api/sheets                        Create a draft sheet from JSON
    GET    /api/sheets/{id}                   Get sheet
    POST   /api/sheets/{id}/submit            draft -> pending_approval
    POST   /api/sheets/{id}/approve           pending -> approved (+active)
    POST   /api/sheets/{id}/reject            pending -> rejected
    POST   /api/sheets/{id}/archive           -> archived (+inactive)
    POST   /api/sheets/{id}/activate          Toggle approved sheet on
    POST   /api/sheets/{id}/deactivate        Toggle approved sheet off

  Surge:
    GET    /api/surge-configs                 List configs
    POST   /api/surge-configs                 Create config from JSON
    GET    /api/surge-configs/{id}            Get config
    GET    /api/surge-configs/{id}/multiplier Preview the live multiplier
    PUT    /api/surge-configs/{id}/demand     Feed a demand/supply reading
    POST   /api/surge-configs/{id}/materialize  Snapshot into a draft sheet
    POST   /api/surge-configs/{id}/recalculate  New draft from fresh pressure

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario

ERROR HANDLING:
  Domain errors map onto HTTP status by category:
  - 400: invalid configuration / malformed input
  - 404: not found
  - 409: conflicting state (lifecycle, live surge sheet)
  - 207: partial failure on cascade writes (detail in body)
  - 500: persistence or unexpected errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/capacity"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/factory"
	"github.com/warp/pricing-engine/pricing"
	"github.com/warp/pricing-engine/store/sqlite"
	"github.com/warp/pricing-engine/surge"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Factory *factory.SheetFactory
	Logger  *log.Logger

	Resolver     *engine.Resolver
	Quoter       *pricing.Quoter
	Reporter     *capacity.Reporter
	Partitioner  *capacity.Partitioner
	Materializer *surge.Materializer
	Cascader     *engine.Cascader

	// allocations is the demo booking feed; scenarios overwrite its input.
	allocations *capacity.StaticSource

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler with all components wired onto the store.
func NewHandler(store *sqlite.Store, logger *log.Logger) *Handler {
	resolver := &engine.Resolver{Sheets: store, Entities: store, Logger: logger}
	reporter := &capacity.Reporter{Resolver: resolver}
	allocations := &capacity.StaticSource{}
	return &Handler{
		Store:    store,
		Factory:  factory.NewSheetFactory(),
		Logger:   logger,
		Resolver: resolver,
		Quoter:   &pricing.Quoter{Resolver: resolver},
		Reporter: reporter,
		Partitioner: &capacity.Partitioner{
			Reporter: reporter,
			Source:   allocations,
			Logger:   logger,
		},
		Materializer: &surge.Materializer{
			Configs:  store,
			Sheets:   store,
			Resolver: resolver,
			Logger:   logger,
		},
		Cascader: &engine.Cascader{
			Entities: store,
			History:  store,
			Logger:   logger,
		},
		allocations: allocations,
	}
}

// =============================================================================
// ENTITY HANDLERS
// =============================================================================

// ListEntities returns all entities, optionally filtered by level.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	level := engine.Level(r.URL.Query().Get("level"))
	if level != "" && !level.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown level", nil)
		return
	}
	entities, err := h.Store.ListEntities(r.Context(), level)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entities", err)
		return
	}
	dtos := make([]EntityDTO, len(entities))
	for i, e := range entities {
		dtos[i] = toEntityDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntity returns one entity.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	ent, err := h.Store.GetEntity(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get entity", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTO(ent))
}

// CreateEntity creates a hierarchy node. The parent, when given, must exist
// and sit exactly one level up.
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	level := engine.Level(req.Level)
	if !level.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown level", nil)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	ent := &engine.Entity{
		ID:        engine.EntityID(req.ID),
		Level:     level,
		Name:      req.Name,
		CreatedAt: time.Now(),
	}

	if req.ParentID != nil {
		parent, err := h.Store.GetEntity(r.Context(), engine.EntityID(*req.ParentID))
		if err != nil {
			writeEngineError(w, "Failed to load parent", err)
			return
		}
		if parent.Level.Depth() != level.Depth()-1 {
			writeError(w, http.StatusBadRequest, "Parent must sit exactly one level up", nil)
			return
		}
		ent.ParentID = &parent.ID
	} else if level != engine.LevelCustomer {
		writeError(w, http.StatusBadRequest, "Only customers may omit parent_id", nil)
		return
	}

	if req.DefaultRate != nil {
		rate, err := decimal.NewFromString(*req.DefaultRate)
		if err != nil || rate.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid default_rate", err)
			return
		}
		ent.DefaultRate = &rate
	}
	if req.Capacity != nil {
		cap, err := parseCapacityConfig(req.Capacity)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid capacity", err)
			return
		}
		ent.Capacity = cap
	}

	if err := h.Store.SaveEntity(r.Context(), ent); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create entity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityDTO(ent))
}

// GetPrice returns the effective price for an interval.
// GET /api/entities/{id}/price?start=...&end=...&event_id=...&event_booking=true
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	start, end, ok := parseInterval(w, r)
	if !ok {
		return
	}

	opts := pricing.QuoteOptions{}
	if ev := r.URL.Query().Get("event_id"); ev != "" {
		evID := engine.EntityID(ev)
		opts.EventID = &evID
	}
	opts.IsEventBooking = r.URL.Query().Get("event_booking") == "true"

	quote, err := h.Quoter.Quote(r.Context(), id, start, end, opts)
	if err != nil {
		writeEngineError(w, "Failed to price interval", err)
		return
	}

	total, _ := quote.TotalPrice.Float64()
	avg, _ := quote.AverageRate.Float64()
	writeJSON(w, http.StatusOK, QuoteDTO{
		EntityID:        string(id),
		Start:           start.Format(time.RFC3339),
		End:             end.Format(time.RFC3339),
		TotalPrice:      total,
		AverageRate:     avg,
		UnpricedHours:   quote.UnpricedHours,
		HourlyBreakdown: toSliceDTOs(quote.Slices),
	})
}

// GetCapacity returns the effective capacity for an interval.
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	start, end, ok := parseInterval(w, r)
	if !ok {
		return
	}

	report, err := h.Reporter.Total(r.Context(), id, start, end)
	if err != nil {
		writeEngineError(w, "Failed to resolve capacity", err)
		return
	}

	total, _ := report.TotalCapacity.Float64()
	writeJSON(w, http.StatusOK, CapacityDTO{
		EntityID:        string(id),
		Start:           start.Format(time.RFC3339),
		End:             end.Format(time.RFC3339),
		TotalCapacity:   total,
		HourlyBreakdown: toSliceDTOs(report.Slices),
	})
}

// GetAllocation returns the capacity allocation partition for a sub-location.
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	start, end, ok := parseInterval(w, r)
	if !ok {
		return
	}

	result, err := h.Partitioner.Partition(r.Context(), id, start, end)
	if err != nil {
		writeEngineError(w, "Failed to partition capacity", err)
		return
	}
	writeJSON(w, http.StatusOK, toPartitionDTO(result))
}

// GetRateHistory returns an entity's rate-change audit, oldest first.
func (h *Handler) GetRateHistory(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	entries, err := h.Store.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	dtos := make([]RateHistoryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toRateHistoryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ChangeDefaultRate updates an entity's default rate and runs the cascade
// decision rule. Auto-cascade happens silently; otherwise the response lists
// the confirmation options.
func (h *Handler) ChangeDefaultRate(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	var req DefaultRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil || rate.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}

	plan, err := h.Cascader.OnDefaultRateChange(r.Context(), id, engine.Level(req.Level), rate)
	if err != nil && plan == nil {
		writeEngineError(w, "Failed to change default rate", err)
		return
	}

	dto := toCascadePlanDTO(plan)
	if err != nil {
		// Partial failure: the auto-cascade ran but some writes failed.
		writeJSON(w, http.StatusMultiStatus, dto)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// ExecuteCascade runs a confirmed cascade option.
func (h *Handler) ExecuteCascade(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	var req CascadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil || rate.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}

	result, err := h.Cascader.Execute(r.Context(), id, engine.Level(req.Level), rate, engine.CascadeOption(req.Option))
	if err != nil && result == nil {
		writeEngineError(w, "Failed to execute cascade", err)
		return
	}
	dto := toCascadeResultDTO(result)
	if err != nil {
		writeJSON(w, http.StatusMultiStatus, dto)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// RollbackRate re-applies a historical entry's old rate as a forward write.
func (h *Handler) RollbackRate(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))
	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entries, err := h.Store.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	var entry *engine.RateHistoryEntry
	for i := range entries {
		if string(entries[i].ID) == req.HistoryID {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "History entry not found", nil)
		return
	}

	if err := h.Cascader.Rollback(r.Context(), id, *entry); err != nil {
		writeEngineError(w, "Failed to roll back rate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rolled back"})
}

// =============================================================================
// SHEET HANDLERS
// =============================================================================

// ListSheets returns sheets, optionally filtered by entity and kind.
func (h *Handler) ListSheets(w http.ResponseWriter, r *http.Request) {
	f := engine.SheetFilter{}
	if e := r.URL.Query().Get("entity_id"); e != "" {
		f.EntityIDs = []engine.EntityID{engine.EntityID(e)}
	}
	if k := r.URL.Query().Get("kind"); k != "" {
		f.Kind = engine.Attribute(k)
	}
	f.ActiveOnly = r.URL.Query().Get("active") == "true"

	sheets, err := h.Store.ListSheets(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sheets", err)
		return
	}
	dtos := make([]SheetDTO, len(sheets))
	for i, s := range sheets {
		dtos[i] = toSheetDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSheet returns one sheet.
func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	id := engine.SheetID(chi.URLParam(r, "id"))
	sheet, err := h.Store.GetSheet(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(sheet))
}

// CreateSheet builds a DRAFT sheet from a JSON definition. The target entity
// must exist and match the declared level.
func (h *Handler) CreateSheet(w http.ResponseWriter, r *http.Request) {
	var j factory.SheetJSON
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sheet, err := h.Factory.FromJSON(j)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sheet definition", err)
		return
	}

	ent, err := h.Store.GetEntity(r.Context(), sheet.EntityID)
	if err != nil {
		writeEngineError(w, "Failed to load target entity", err)
		return
	}
	if ent.Level != sheet.Level {
		writeError(w, http.StatusBadRequest, "Sheet level does not match entity level", nil)
		return
	}

	if err := h.Store.CreateSheet(r.Context(), sheet); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create sheet", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSheetDTO(sheet))
}

// SubmitSheet transitions draft -> pending_approval.
func (h *Handler) SubmitSheet(w http.ResponseWriter, r *http.Request) {
	h.transitionSheet(w, r, engine.StatusPendingApproval, nil)
}

// ApproveSheet transitions pending_approval -> approved and activates the
// sheet. Surge-materialized sheets route through the atomic
// supersede-and-approve workflow.
func (h *Handler) ApproveSheet(w http.ResponseWriter, r *http.Request) {
	id := engine.SheetID(chi.URLParam(r, "id"))
	sheet, err := h.Store.GetSheet(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get sheet", err)
		return
	}

	if sheet.Origin == engine.OriginSurge {
		if err := h.Materializer.Approve(r.Context(), id); err != nil {
			writeEngineError(w, "Failed to approve surge sheet", err)
			return
		}
		updated, err := h.Store.GetSheet(r.Context(), id)
		if err != nil {
			writeEngineError(w, "Failed to reload sheet", err)
			return
		}
		writeJSON(w, http.StatusOK, toSheetDTO(updated))
		return
	}

	active := true
	h.applyTransition(w, r, sheet, engine.StatusApproved, &active)
}

// RejectSheet transitions pending_approval -> rejected.
func (h *Handler) RejectSheet(w http.ResponseWriter, r *http.Request) {
	h.transitionSheet(w, r, engine.StatusRejected, nil)
}

// ArchiveSheet retires a draft or approved sheet.
func (h *Handler) ArchiveSheet(w http.ResponseWriter, r *http.Request) {
	inactive := false
	h.transitionSheet(w, r, engine.StatusArchived, &inactive)
}

// ActivateSheet turns an approved sheet back on.
func (h *Handler) ActivateSheet(w http.ResponseWriter, r *http.Request) {
	h.toggleSheet(w, r, true)
}

// DeactivateSheet turns an approved sheet off without archiving it.
func (h *Handler) DeactivateSheet(w http.ResponseWriter, r *http.Request) {
	h.toggleSheet(w, r, false)
}

func (h *Handler) transitionSheet(w http.ResponseWriter, r *http.Request, to engine.ApprovalStatus, active *bool) {
	id := engine.SheetID(chi.URLParam(r, "id"))
	sheet, err := h.Store.GetSheet(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get sheet", err)
		return
	}
	h.applyTransition(w, r, sheet, to, active)
}

func (h *Handler) applyTransition(w http.ResponseWriter, r *http.Request, sheet *engine.Sheet, to engine.ApprovalStatus, active *bool) {
	if !sheet.Status.CanTransition(to) {
		writeError(w, http.StatusConflict,
			"Illegal transition "+string(sheet.Status)+" -> "+string(to), nil)
		return
	}
	if err := h.Store.UpdateSheetStatus(r.Context(), sheet.ID, &to, active); err != nil {
		writeEngineError(w, "Failed to update sheet", err)
		return
	}
	updated, err := h.Store.GetSheet(r.Context(), sheet.ID)
	if err != nil {
		writeEngineError(w, "Failed to reload sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(updated))
}

func (h *Handler) toggleSheet(w http.ResponseWriter, r *http.Request, active bool) {
	id := engine.SheetID(chi.URLParam(r, "id"))
	sheet, err := h.Store.GetSheet(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get sheet", err)
		return
	}
	if sheet.Status != engine.StatusApproved {
		writeError(w, http.StatusConflict, "Only approved sheets can be toggled", nil)
		return
	}
	if err := h.Store.UpdateSheetStatus(r.Context(), id, nil, &active); err != nil {
		writeEngineError(w, "Failed to update sheet", err)
		return
	}
	updated, err := h.Store.GetSheet(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to reload sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(updated))
}

// =============================================================================
// SURGE HANDLERS
// =============================================================================

// ListSurgeConfigs returns all surge configs.
func (h *Handler) ListSurgeConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Store.ListConfigs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list surge configs", err)
		return
	}
	dtos := make([]SurgeConfigDTO, len(configs))
	for i, c := range configs {
		dtos[i] = toSurgeConfigDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSurgeConfig returns one config.
func (h *Handler) GetSurgeConfig(w http.ResponseWriter, r *http.Request) {
	id := surge.ConfigID(chi.URLParam(r, "id"))
	cfg, err := h.Store.GetConfig(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get surge config", err)
		return
	}
	writeJSON(w, http.StatusOK, toSurgeConfigDTO(cfg))
}

// CreateSurgeConfig validates and persists a config. The owning entity must
// exist and match the declared level.
func (h *Handler) CreateSurgeConfig(w http.ResponseWriter, r *http.Request) {
	var j factory.SurgeConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.Factory.SurgeConfigFromJSON(j)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid surge config", err)
		return
	}

	ent, err := h.Store.GetEntity(r.Context(), cfg.EntityID)
	if err != nil {
		writeEngineError(w, "Failed to load owning entity", err)
		return
	}
	if ent.Level != cfg.Level {
		writeError(w, http.StatusBadRequest, "Config level does not match entity level", nil)
		return
	}

	if err := h.Store.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save surge config", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSurgeConfigDTO(cfg))
}

// PreviewMultiplier computes the live multiplier without persisting anything.
func (h *Handler) PreviewMultiplier(w http.ResponseWriter, r *http.Request) {
	id := surge.ConfigID(chi.URLParam(r, "id"))
	cfg, err := h.Store.GetConfig(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get surge config", err)
		return
	}
	mult, err := surge.ComputeMultiplier(cfg)
	if err != nil {
		writeEngineError(w, "Failed to compute multiplier", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config_id":  string(id),
		"multiplier": mult,
		"applies_at": cfg.AppliesAt(time.Now()),
	})
}

// UpdateDemand feeds a new demand/supply reading into a config, EMA-smoothing
// the historical baseline.
func (h *Handler) UpdateDemand(w http.ResponseWriter, r *http.Request) {
	id := surge.ConfigID(chi.URLParam(r, "id"))
	var req UpdateDemandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.Store.GetConfig(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get surge config", err)
		return
	}
	if err := surge.ApplyReading(cfg, req.CurrentDemand, req.CurrentSupply, time.Now()); err != nil {
		writeEngineError(w, "Invalid demand reading", err)
		return
	}
	if err := h.Store.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save surge config", err)
		return
	}
	writeJSON(w, http.StatusOK, toSurgeConfigDTO(cfg))
}

// MaterializeSurge snapshots the live calculation into a draft rate sheet.
// Conflicts (an existing live surge sheet) return 409.
func (h *Handler) MaterializeSurge(w http.ResponseWriter, r *http.Request) {
	id := surge.ConfigID(chi.URLParam(r, "id"))
	res, err := h.Materializer.Materialize(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to materialize surge sheet", err)
		return
	}
	base, _ := res.BaseRate.Float64()
	writeJSON(w, http.StatusCreated, MaterializeResponseDTO{
		ConfigID:    string(res.ConfigID),
		RateSheetID: string(res.SheetID),
		Multiplier:  res.Multiplier,
		BaseRate:    base,
	})
}

// RecalculateSurge creates an additional draft sheet from fresh pressure.
func (h *Handler) RecalculateSurge(w http.ResponseWriter, r *http.Request) {
	id := surge.ConfigID(chi.URLParam(r, "id"))
	res, err := h.Materializer.Recalculate(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to recalculate surge sheet", err)
		return
	}
	base, _ := res.BaseRate.Float64()
	old := res.OldMultiplier
	writeJSON(w, http.StatusCreated, MaterializeResponseDTO{
		ConfigID:      string(res.ConfigID),
		RateSheetID:   string(res.SheetID),
		Multiplier:    res.Multiplier,
		BaseRate:      base,
		OldMultiplier: &old,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func toCascadePlanDTO(plan *engine.CascadePlan) CascadePlanDTO {
	dto := CascadePlanDTO{
		EntityID:             string(plan.EntityID),
		AutoCascaded:         plan.AutoCascaded,
		RequiresConfirmation: !plan.AutoCascaded && len(plan.Options) > 0,
	}
	for _, c := range plan.CustomRateChildren {
		dto.CustomRateChildren = append(dto.CustomRateChildren, string(c))
	}
	for _, o := range plan.Options {
		dto.Options = append(dto.Options, string(o))
	}
	if plan.Result != nil {
		dto.Result = toCascadeResultDTO(plan.Result)
	}
	return dto
}

func parseCapacityConfig(dto *CapacityConfigDTO) (*engine.CapacityConfig, error) {
	min, err := decimal.NewFromString(dto.MinCapacity)
	if err != nil {
		return nil, err
	}
	max, err := decimal.NewFromString(dto.MaxCapacity)
	if err != nil {
		return nil, err
	}
	def, err := decimal.NewFromString(dto.DefaultCapacity)
	if err != nil {
		return nil, err
	}
	alloc := decimal.Zero
	if dto.AllocatedCapacity != "" {
		alloc, err = decimal.NewFromString(dto.AllocatedCapacity)
		if err != nil {
			return nil, err
		}
	}
	if min.IsNegative() || max.LessThan(min) || def.LessThan(min) || def.GreaterThan(max) {
		return nil, errors.New("capacity bounds must satisfy 0 <= min <= default <= max")
	}
	return &engine.CapacityConfig{
		MinCapacity:       min,
		MaxCapacity:       max,
		DefaultCapacity:   def,
		AllocatedCapacity: alloc,
	}, nil
}

// parseInterval reads start/end query params (RFC3339 or YYYY-MM-DD).
func parseInterval(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, err := parseTimeParam(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing start", err)
		return time.Time{}, time.Time{}, false
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing end", err)
		return time.Time{}, time.Time{}, false
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start", nil)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// writeEngineError maps domain error categories onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrConflictingState):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, engine.ErrInvalidConfiguration):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, engine.ErrPartialFailure):
		writeError(w, http.StatusMultiStatus, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
