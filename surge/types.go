// Package surge implements demand/supply surge pricing: a pure multiplier
// calculator and the workflow that materializes a live calculation into an
// approvable rate sheet on the engine.
package surge

import (
	"context"
	"sync"
	"time"

	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// SURGE CONFIG
// =============================================================================

type ConfigID string

// DemandSupplyParams are the live pressure inputs, fed externally.
type DemandSupplyParams struct {
	CurrentDemand float64
	CurrentSupply float64

	// HistoricalAvgPressure is the EMA-smoothed baseline the external feed
	// maintains; the calculator only consumes it. Must be > 0.
	HistoricalAvgPressure float64
}

// SurgeParams tune the multiplier formula.
type SurgeParams struct {
	Alpha         float64
	MinMultiplier float64
	MaxMultiplier float64

	// EMAAlpha governs how the external feed smooths HistoricalAvgPressure.
	// Kept on the config so one record describes the whole model.
	EMAAlpha float64
}

// Config is owned by one location or sub-location.
type Config struct {
	ID       ConfigID
	EntityID engine.EntityID
	Level    engine.Level

	DemandSupply DemandSupplyParams
	Params       SurgeParams

	// Windows restrict when a materialized sheet applies within the day.
	// Empty means the sheet covers the full day. Days additionally restrict
	// applicability by weekday; empty means every day.
	Windows []engine.Window
	Days    []time.Weekday

	LastMaterialized *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AppliesAt reports whether the config's day/clock restrictions cover t.
func (c *Config) AppliesAt(t time.Time) bool {
	if len(c.Days) > 0 {
		found := false
		for _, d := range c.Days {
			if t.Weekday() == d {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.Windows) == 0 {
		return true
	}
	clock := engine.Clock(t)
	for _, w := range c.Windows {
		if w.Type == engine.WindowAbsoluteTime && w.Matches(clock, 0) {
			return true
		}
	}
	return false
}

// =============================================================================
// CONFIG STORE
// =============================================================================

// ConfigStore persists surge configs.
type ConfigStore interface {
	GetConfig(ctx context.Context, id ConfigID) (*Config, error)
	SaveConfig(ctx context.Context, c *Config) error
	ListConfigs(ctx context.Context) ([]*Config, error)
}

// MemoryConfigStore is an in-memory ConfigStore for testing and development.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[ConfigID]*Config
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[ConfigID]*Config)}
}

func (m *MemoryConfigStore) GetConfig(_ context.Context, id ConfigID) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "surge config", ID: string(id)}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryConfigStore) SaveConfig(_ context.Context, c *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.configs[c.ID] = &cp
	return nil
}

func (m *MemoryConfigStore) ListConfigs(_ context.Context) ([]*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Config, 0, len(m.configs))
	for _, c := range m.configs {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}
