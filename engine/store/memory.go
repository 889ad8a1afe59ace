// Package store provides in-memory implementations of the engine's
// persistence interfaces, for testing and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements engine.SheetStore, engine.EntityStore and
// engine.HistoryStore over maps. Thread-safe.
type Memory struct {
	mu       sync.RWMutex
	entities map[engine.EntityID]*engine.Entity
	sheets   map[engine.SheetID]*engine.Sheet
	history  map[engine.EntityID][]engine.RateHistoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		entities: make(map[engine.EntityID]*engine.Entity),
		sheets:   make(map[engine.SheetID]*engine.Sheet),
		history:  make(map[engine.EntityID][]engine.RateHistoryEntry),
	}
}

// =============================================================================
// SHEET STORE
// =============================================================================

func (m *Memory) ListSheets(_ context.Context, f engine.SheetFilter) ([]*engine.Sheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSheetsLocked(f), nil
}

func (m *Memory) listSheetsLocked(f engine.SheetFilter) []*engine.Sheet {
	wanted := make(map[engine.EntityID]bool, len(f.EntityIDs))
	for _, id := range f.EntityIDs {
		wanted[id] = true
	}
	var out []*engine.Sheet
	for _, s := range m.sheets {
		if len(f.EntityIDs) > 0 && !wanted[s.EntityID] {
			continue
		}
		if f.Kind != "" && s.Kind != f.Kind {
			continue
		}
		if f.ActiveOnly && (s.Status != engine.StatusApproved || !s.IsActive) {
			continue
		}
		if f.ConfigID != "" && s.ConfigID != f.ConfigID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	// Deterministic order for callers that diff results.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Memory) GetSheet(_ context.Context, id engine.SheetID) (*engine.Sheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sheets[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "sheet", ID: string(id)}
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) CreateSheet(_ context.Context, s *engine.Sheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSheetLocked(s)
}

func (m *Memory) createSheetLocked(s *engine.Sheet) error {
	cp := *s
	m.sheets[s.ID] = &cp
	return nil
}

func (m *Memory) UpdateSheetStatus(_ context.Context, id engine.SheetID, status *engine.ApprovalStatus, isActive *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSheetStatusLocked(id, status, isActive)
}

func (m *Memory) updateSheetStatusLocked(id engine.SheetID, status *engine.ApprovalStatus, isActive *bool) error {
	s, ok := m.sheets[id]
	if !ok {
		return &engine.NotFoundError{Kind: "sheet", ID: string(id)}
	}
	if status != nil {
		s.Status = *status
	}
	if isActive != nil {
		s.IsActive = *isActive
	}
	return nil
}

func (m *Memory) Supersede(_ context.Context, id engine.SheetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supersedeLocked(id)
}

func (m *Memory) supersedeLocked(id engine.SheetID) error {
	s, ok := m.sheets[id]
	if !ok {
		return &engine.NotFoundError{Kind: "sheet", ID: string(id)}
	}
	s.Status = engine.StatusSuperseded
	s.IsActive = false
	return nil
}

// =============================================================================
// ENTITY STORE
// =============================================================================

func (m *Memory) GetEntity(_ context.Context, id engine.EntityID) (*engine.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "entity", ID: string(id)}
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) Ancestors(_ context.Context, id engine.EntityID) ([]*engine.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*engine.Entity
	e, ok := m.entities[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "entity", ID: string(id)}
	}
	for e.ParentID != nil {
		p, ok := m.entities[*e.ParentID]
		if !ok {
			break
		}
		cp := *p
		out = append(out, &cp)
		e = p
	}
	return out, nil
}

func (m *Memory) Descendants(_ context.Context, id engine.EntityID) ([]*engine.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	children := make(map[engine.EntityID][]*engine.Entity)
	for _, e := range m.entities {
		if e.ParentID != nil {
			children[*e.ParentID] = append(children[*e.ParentID], e)
		}
	}

	var out []*engine.Entity
	queue := []engine.EntityID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ch := range children[cur] {
			cp := *ch
			out = append(out, &cp)
			queue = append(queue, ch.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateDefaultRate(_ context.Context, id engine.EntityID, rate decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return &engine.NotFoundError{Kind: "entity", ID: string(id)}
	}
	r := rate
	e.DefaultRate = &r
	return nil
}

func (m *Memory) SaveEntity(_ context.Context, e *engine.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entities[e.ID] = &cp
	return nil
}

func (m *Memory) ListEntities(_ context.Context, level engine.Level) ([]*engine.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*engine.Entity
	for _, e := range m.entities {
		if level != "" && e.Level != level {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// HISTORY STORE - Append-only
// =============================================================================

func (m *Memory) AppendRateHistory(_ context.Context, entry engine.RateHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[entry.EntityID] = append(m.history[entry.EntityID], entry)
	return nil
}

func (m *Memory) History(_ context.Context, id engine.EntityID) ([]engine.RateHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.RateHistoryEntry, len(m.history[id]))
	copy(out, m.history[id])
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support for the
// supersede-and-approve pairing.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a sheet snapshot
// and rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(engine.SheetStore) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := make(map[engine.SheetID]*engine.Sheet, len(tm.sheets))
	for id, s := range tm.sheets {
		cp := *s
		snapshot[id] = &cp
	}

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.sheets = snapshot
		return err
	}
	return nil
}

// txMemoryView routes writes to the locked parent without re-locking.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) ListSheets(_ context.Context, f engine.SheetFilter) ([]*engine.Sheet, error) {
	return tv.parent.listSheetsLocked(f), nil
}

func (tv *txMemoryView) GetSheet(_ context.Context, id engine.SheetID) (*engine.Sheet, error) {
	s, ok := tv.parent.sheets[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "sheet", ID: string(id)}
	}
	cp := *s
	return &cp, nil
}

func (tv *txMemoryView) CreateSheet(_ context.Context, s *engine.Sheet) error {
	return tv.parent.createSheetLocked(s)
}

func (tv *txMemoryView) UpdateSheetStatus(_ context.Context, id engine.SheetID, status *engine.ApprovalStatus, isActive *bool) error {
	return tv.parent.updateSheetStatusLocked(id, status, isActive)
}

func (tv *txMemoryView) Supersede(_ context.Context, id engine.SheetID) error {
	return tv.parent.supersedeLocked(id)
}
