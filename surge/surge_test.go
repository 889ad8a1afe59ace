package surge_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/surge"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func validConfig() *surge.Config {
	return &surge.Config{
		ID:       "cfg-1",
		EntityID: "loc-1",
		Level:    engine.LevelLocation,
		DemandSupply: surge.DemandSupplyParams{
			CurrentDemand:         150,
			CurrentSupply:         50,
			HistoricalAvgPressure: 2.0,
		},
		Params: surge.SurgeParams{
			Alpha:         0.5,
			MinMultiplier: 0.8,
			MaxMultiplier: 3.0,
			EMAAlpha:      0.3,
		},
	}
}

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// =============================================================================
// MULTIPLIER FORMULA
// =============================================================================

func TestComputeMultiplier_WorkedExample(t *testing.T) {
	// GIVEN: demand 150, supply 50, historical 2.0, alpha 0.5
	// THEN:  pressure 3.0, normalized 1.5, factor 1 + 0.5*ln(1.5) ~ 1.2027

	mult, err := surge.ComputeMultiplier(validConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := 1 + 0.5*math.Log(1.5)
	if !approxEqual(mult, want) {
		t.Errorf("expected %.6f, got %.6f", want, mult)
	}
}

func TestComputeMultiplier_ClampedAbove(t *testing.T) {
	// GIVEN: extreme pressure that pushes raw factor past maxMultiplier
	c := validConfig()
	c.DemandSupply.CurrentDemand = 1e9

	mult, err := surge.ComputeMultiplier(c)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if mult != c.Params.MaxMultiplier {
		t.Errorf("expected clamp at %v, got %v", c.Params.MaxMultiplier, mult)
	}
}

func TestComputeMultiplier_ClampedBelow(t *testing.T) {
	// GIVEN: demand far below the historical baseline
	c := validConfig()
	c.DemandSupply.CurrentDemand = 1

	mult, err := surge.ComputeMultiplier(c)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if mult != c.Params.MinMultiplier {
		t.Errorf("expected clamp at %v, got %v", c.Params.MinMultiplier, mult)
	}
}

func TestComputeMultiplier_ZeroDemand(t *testing.T) {
	// GIVEN: zero demand (normalized pressure 0, ln undefined)
	// THEN:  minMultiplier, never NaN and never an error

	c := validConfig()
	c.DemandSupply.CurrentDemand = 0

	mult, err := surge.ComputeMultiplier(c)
	if err != nil {
		t.Fatalf("zero demand must not error: %v", err)
	}
	if mult != c.Params.MinMultiplier {
		t.Errorf("expected minMultiplier %v, got %v", c.Params.MinMultiplier, mult)
	}
	if math.IsNaN(mult) {
		t.Error("multiplier must never be NaN")
	}
}

func TestComputeMultiplier_AlwaysWithinBounds(t *testing.T) {
	// Sweep a range of demands; the result must always land in [min, max].
	c := validConfig()
	for _, demand := range []float64{0, 0.001, 1, 10, 50, 100, 500, 1e6} {
		c.DemandSupply.CurrentDemand = demand
		mult, err := surge.ComputeMultiplier(c)
		if err != nil {
			t.Fatalf("demand %v: %v", demand, err)
		}
		if mult < c.Params.MinMultiplier || mult > c.Params.MaxMultiplier {
			t.Errorf("demand %v: multiplier %v escapes [%v, %v]",
				demand, mult, c.Params.MinMultiplier, c.Params.MaxMultiplier)
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*surge.Config)
	}{
		{"zero min multiplier", func(c *surge.Config) { c.Params.MinMultiplier = 0 }},
		{"min above max", func(c *surge.Config) { c.Params.MinMultiplier = 5 }},
		{"ema alpha zero", func(c *surge.Config) { c.Params.EMAAlpha = 0 }},
		{"ema alpha above one", func(c *surge.Config) { c.Params.EMAAlpha = 1.5 }},
		{"negative demand", func(c *surge.Config) { c.DemandSupply.CurrentDemand = -1 }},
		{"zero supply", func(c *surge.Config) { c.DemandSupply.CurrentSupply = 0 }},
		{"zero historical pressure", func(c *surge.Config) { c.DemandSupply.HistoricalAvgPressure = 0 }},
		{"customer level", func(c *surge.Config) { c.Level = engine.LevelCustomer }},
		{"event level", func(c *surge.Config) { c.Level = engine.LevelEvent }},
		{"midnight-crossing window", func(c *surge.Config) {
			c.Windows = []engine.Window{{Type: engine.WindowAbsoluteTime, StartTime: "22:00", EndTime: "02:00"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := surge.Validate(c)
			if !errors.Is(err, engine.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestValidate_SubLocationLevelAllowed(t *testing.T) {
	c := validConfig()
	c.Level = engine.LevelSubLocation
	if err := surge.Validate(c); err != nil {
		t.Errorf("sub-location configs are valid: %v", err)
	}
}

// =============================================================================
// APPLICABILITY
// =============================================================================

func TestAppliesAt_DayAndWindowRestrictions(t *testing.T) {
	c := validConfig()
	c.Days = []time.Weekday{time.Friday, time.Saturday}
	c.Windows = []engine.Window{{Type: engine.WindowAbsoluteTime, StartTime: "18:00", EndTime: "23:00"}}

	friday1900 := time.Date(2026, time.June, 12, 19, 0, 0, 0, time.UTC)
	friday1000 := time.Date(2026, time.June, 12, 10, 0, 0, 0, time.UTC)
	monday1900 := time.Date(2026, time.June, 8, 19, 0, 0, 0, time.UTC)

	if !c.AppliesAt(friday1900) {
		t.Error("Friday evening should apply")
	}
	if c.AppliesAt(friday1000) {
		t.Error("Friday morning is outside the window")
	}
	if c.AppliesAt(monday1900) {
		t.Error("Monday is not a configured day")
	}
}

func TestAppliesAt_UnrestrictedCoversAlways(t *testing.T) {
	c := validConfig()
	if !c.AppliesAt(time.Date(2026, time.June, 8, 3, 0, 0, 0, time.UTC)) {
		t.Error("config without days/windows should always apply")
	}
}

// =============================================================================
// DEMAND FEED
// =============================================================================

func TestApplyReading_SmoothsBaseline(t *testing.T) {
	// GIVEN: baseline 2.0, old pressure 3.0, emaAlpha 0.3
	// WHEN: feeding a new reading
	// THEN: baseline' = 0.3*3.0 + 0.7*2.0 = 2.3, and current values replaced

	c := validConfig()
	at := time.Date(2026, time.June, 12, 19, 0, 0, 0, time.UTC)
	if err := surge.ApplyReading(c, 80, 40, at); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !approxEqual(c.DemandSupply.HistoricalAvgPressure, 2.3) {
		t.Errorf("expected baseline 2.3, got %v", c.DemandSupply.HistoricalAvgPressure)
	}
	if c.DemandSupply.CurrentDemand != 80 || c.DemandSupply.CurrentSupply != 40 {
		t.Errorf("current reading should be replaced, got %+v", c.DemandSupply)
	}
	if !c.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt should advance to the reading time")
	}
}

func TestApplyReading_RejectsBadInput(t *testing.T) {
	c := validConfig()
	now := time.Now()
	if err := surge.ApplyReading(c, -1, 10, now); !errors.Is(err, engine.ErrInvalidConfiguration) {
		t.Errorf("negative demand should fail, got %v", err)
	}
	if err := surge.ApplyReading(c, 10, 0, now); !errors.Is(err, engine.ErrInvalidConfiguration) {
		t.Errorf("zero supply should fail, got %v", err)
	}
}
