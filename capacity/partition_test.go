package capacity_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/capacity"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newCourt seeds a sub-location with default capacity 4 per hour.
func newCourt(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	err := mem.SaveEntity(context.Background(), &engine.Entity{
		ID:    "court-1",
		Level: engine.LevelSubLocation,
		Name:  "Court 1",
		Capacity: &engine.CapacityConfig{
			MinCapacity:     decimal.NewFromInt(1),
			MaxCapacity:     decimal.NewFromInt(12),
			DefaultCapacity: decimal.NewFromInt(4),
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return mem
}

func newPartitioner(mem *store.Memory, input capacity.AllocationInput) *capacity.Partitioner {
	return &capacity.Partitioner{
		Reporter: &capacity.Reporter{Resolver: &engine.Resolver{Sheets: mem, Entities: mem}},
		Source:   capacity.StaticSource{Input: input},
	}
}

func interval() (time.Time, time.Time) {
	return time.Date(2026, time.June, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2026, time.June, 10, 18, 0, 0, 0, time.UTC)
}

// =============================================================================
// CAPACITY REPORT
// =============================================================================

func TestReporter_SumsHourValues(t *testing.T) {
	// GIVEN: default capacity 4 over a 10h interval
	// THEN: total capacity 40, additive across hours

	mem := newCourt(t)
	start, end := interval()
	report, err := (&capacity.Reporter{Resolver: &engine.Resolver{Sheets: mem, Entities: mem}}).
		Total(context.Background(), "court-1", start, end)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !report.TotalCapacity.Equal(dec("40")) {
		t.Errorf("expected 40, got %s", report.TotalCapacity)
	}
}

func TestReporter_PartialHourCountsInFull(t *testing.T) {
	// Capacity is per hour slice: a half-covered hour still offers 4.
	mem := newCourt(t)
	start := time.Date(2026, time.June, 10, 8, 30, 0, 0, time.UTC)
	end := time.Date(2026, time.June, 10, 10, 0, 0, 0, time.UTC)

	report, err := (&capacity.Reporter{Resolver: &engine.Resolver{Sheets: mem, Entities: mem}}).
		Total(context.Background(), "court-1", start, end)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	// Slices 08:30-09:00 and 09:00-10:00, each contributing 4.
	if !report.TotalCapacity.Equal(dec("8")) {
		t.Errorf("partial slices count in full; expected 8, got %s", report.TotalCapacity)
	}
}

// =============================================================================
// PARTITION
// =============================================================================

func TestPartition_SumInvariant(t *testing.T) {
	// GIVEN: total 40, usage 20/10/5 allocated and 3 unavailable
	// THEN: ready-to-use 2 and the partition sums exactly to 40

	mem := newCourt(t)
	p := newPartitioner(mem, capacity.AllocationInput{
		Transient:   dec("20"),
		Events:      dec("10"),
		Reserved:    dec("5"),
		Unavailable: dec("3"),
	})
	start, end := interval()
	res, err := p.Partition(context.Background(), "court-1", start, end)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}

	if !res.Allocated.Total.Equal(dec("35")) {
		t.Errorf("allocated total should be 35, got %s", res.Allocated.Total)
	}
	if !res.Unallocated.ReadyToUse.Equal(dec("2")) {
		t.Errorf("ready-to-use should be 2, got %s", res.Unallocated.ReadyToUse)
	}
	sum := res.Allocated.Total.Add(res.Unallocated.Total)
	if !sum.Equal(res.TotalCapacity) {
		t.Errorf("partition must sum exactly to total: %s != %s", sum, res.TotalCapacity)
	}
}

func TestPartition_OverflowCappedNeverNegative(t *testing.T) {
	// GIVEN: reported usage exceeding total capacity
	// THEN: categories are capped in order and the invariant still holds

	mem := newCourt(t)
	p := newPartitioner(mem, capacity.AllocationInput{
		Transient:   dec("30"),
		Events:      dec("30"),
		Reserved:    dec("30"),
		Unavailable: dec("30"),
	})
	start, end := interval()
	res, err := p.Partition(context.Background(), "court-1", start, end)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}

	if !res.Allocated.Transient.Equal(dec("30")) || !res.Allocated.Events.Equal(dec("10")) {
		t.Errorf("capping order violated: %+v", res.Allocated)
	}
	if !res.Allocated.Reserved.IsZero() || !res.Unallocated.Unavailable.IsZero() {
		t.Errorf("later categories should be capped to zero: %+v", res)
	}
	if !res.Unallocated.ReadyToUse.IsZero() {
		t.Errorf("nothing should be left, got %s", res.Unallocated.ReadyToUse)
	}
	sum := res.Allocated.Total.Add(res.Unallocated.Total)
	if !sum.Equal(res.TotalCapacity) {
		t.Errorf("invariant must hold under overflow: %s != %s", sum, res.TotalCapacity)
	}
}

func TestPartition_NegativeInputTreatedAsZero(t *testing.T) {
	mem := newCourt(t)
	p := newPartitioner(mem, capacity.AllocationInput{
		Transient: dec("-5"),
		Events:    dec("10"),
	})
	start, end := interval()
	res, err := p.Partition(context.Background(), "court-1", start, end)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if !res.Allocated.Transient.IsZero() {
		t.Errorf("negative usage is zero, got %s", res.Allocated.Transient)
	}
	sum := res.Allocated.Total.Add(res.Unallocated.Total)
	if !sum.Equal(res.TotalCapacity) {
		t.Errorf("invariant must hold: %s != %s", sum, res.TotalCapacity)
	}
}

func TestPartition_Percentages(t *testing.T) {
	mem := newCourt(t)
	p := newPartitioner(mem, capacity.AllocationInput{Transient: dec("10")})
	start, end := interval()
	res, err := p.Partition(context.Background(), "court-1", start, end)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if res.Percentages.Transient != 25 {
		t.Errorf("10/40 should be 25%%, got %v", res.Percentages.Transient)
	}
	if res.Percentages.ReadyToUse != 75 {
		t.Errorf("30/40 should be 75%%, got %v", res.Percentages.ReadyToUse)
	}
}

func TestPartition_ZeroCapacity(t *testing.T) {
	// GIVEN: an entity with no capacity configured anywhere
	mem := store.NewMemory()
	mem.SaveEntity(context.Background(), &engine.Entity{ID: "bare", Level: engine.LevelSubLocation, Name: "Bare"})

	p := newPartitioner(mem, capacity.AllocationInput{Transient: dec("5")})
	start, end := interval()
	res, err := p.Partition(context.Background(), "bare", start, end)
	if err != nil {
		t.Fatalf("zero capacity must not error: %v", err)
	}
	if !res.TotalCapacity.IsZero() || !res.Allocated.Total.IsZero() {
		t.Errorf("everything caps to zero, got %+v", res)
	}
	if res.Percentages.Transient != 0 {
		t.Errorf("percentages of zero capacity are zero, got %v", res.Percentages.Transient)
	}
}
