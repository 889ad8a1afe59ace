/*
surge.go - Demand/supply surge multiplier

PURPOSE:
  Computes a live rate multiplier from demand/supply pressure against a
  smoothed historical baseline:

    pressure   = currentDemand / currentSupply
    normalized = pressure / historicalAvgPressure
    rawFactor  = 1 + alpha * ln(normalized)
    factor     = clamp(rawFactor, minMultiplier, maxMultiplier)

  Pure functions of the config; no I/O. ApplyReading folds new demand
  observations in and EMA-smooths the historical baseline.

GUARDS:
  ln of a non-positive normalized pressure is undefined, so currentSupply
  and historicalAvgPressure must be > 0 and currentDemand must be >= 0.
  Validate rejects bad configs at save time; ComputeMultiplier re-checks
  so a stale config can never produce NaN.

SEE ALSO:
  - materialize.go: Turns the multiplier into a draft rate sheet
*/
package surge

import (
	"fmt"
	"math"
	"time"

	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// VALIDATION
// =============================================================================

// Validate enforces the config invariants at save time:
// minMultiplier <= maxMultiplier, both > 0; historicalAvgPressure > 0;
// currentSupply > 0; currentDemand >= 0; emaAlpha in (0, 1].
func Validate(c *Config) error {
	p := c.Params
	if p.MinMultiplier <= 0 || p.MaxMultiplier <= 0 {
		return fmt.Errorf("%w: multiplier bounds must be > 0 (got min=%v max=%v)",
			engine.ErrInvalidConfiguration, p.MinMultiplier, p.MaxMultiplier)
	}
	if p.MinMultiplier > p.MaxMultiplier {
		return fmt.Errorf("%w: minMultiplier %v exceeds maxMultiplier %v",
			engine.ErrInvalidConfiguration, p.MinMultiplier, p.MaxMultiplier)
	}
	if p.EMAAlpha <= 0 || p.EMAAlpha > 1 {
		return fmt.Errorf("%w: emaAlpha must be in (0, 1], got %v",
			engine.ErrInvalidConfiguration, p.EMAAlpha)
	}
	ds := c.DemandSupply
	if ds.CurrentDemand < 0 {
		return fmt.Errorf("%w: currentDemand must be >= 0, got %v",
			engine.ErrInvalidConfiguration, ds.CurrentDemand)
	}
	if ds.CurrentSupply <= 0 {
		return fmt.Errorf("%w: currentSupply must be > 0, got %v",
			engine.ErrInvalidConfiguration, ds.CurrentSupply)
	}
	if ds.HistoricalAvgPressure <= 0 {
		return fmt.Errorf("%w: historicalAvgPressure must be > 0, got %v",
			engine.ErrInvalidConfiguration, ds.HistoricalAvgPressure)
	}
	if !c.Level.Valid() || (c.Level != engine.LevelLocation && c.Level != engine.LevelSubLocation) {
		return fmt.Errorf("%w: surge configs belong to locations or sub-locations, got %q",
			engine.ErrInvalidConfiguration, c.Level)
	}
	for _, w := range c.Windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// MULTIPLIER
// =============================================================================

// ComputeMultiplier evaluates the surge formula. For all valid configs the
// result lies in [minMultiplier, maxMultiplier].
func ComputeMultiplier(c *Config) (float64, error) {
	if err := Validate(c); err != nil {
		return 0, err
	}

	pressure := c.DemandSupply.CurrentDemand / c.DemandSupply.CurrentSupply
	normalized := pressure / c.DemandSupply.HistoricalAvgPressure
	if normalized <= 0 {
		// Zero demand: no surge signal at all, clamp from below.
		return c.Params.MinMultiplier, nil
	}

	raw := 1 + c.Params.Alpha*math.Log(normalized)
	return clamp(raw, c.Params.MinMultiplier, c.Params.MaxMultiplier), nil
}

// =============================================================================
// DEMAND FEED
// =============================================================================

// ApplyReading folds a new demand/supply observation into the config. The
// historical baseline is EMA-smoothed with the PREVIOUS reading's pressure
// before the new one replaces it, so a single spike moves the baseline by
// at most emaAlpha of its weight:
//
//	baseline' = emaAlpha * oldPressure + (1 - emaAlpha) * baseline
//
// The config is mutated in place; the caller persists it.
func ApplyReading(c *Config, demand, supply float64, at time.Time) error {
	if demand < 0 {
		return fmt.Errorf("%w: currentDemand must be >= 0, got %v", engine.ErrInvalidConfiguration, demand)
	}
	if supply <= 0 {
		return fmt.Errorf("%w: currentSupply must be > 0, got %v", engine.ErrInvalidConfiguration, supply)
	}

	oldPressure := c.DemandSupply.CurrentDemand / c.DemandSupply.CurrentSupply
	if oldPressure > 0 {
		a := c.Params.EMAAlpha
		c.DemandSupply.HistoricalAvgPressure = a*oldPressure + (1-a)*c.DemandSupply.HistoricalAvgPressure
	}
	c.DemandSupply.CurrentDemand = demand
	c.DemandSupply.CurrentSupply = supply
	c.UpdatedAt = at
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
