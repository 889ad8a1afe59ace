/*
partition.go - Capacity allocation partitioner

PURPOSE:
  Splits a sub-location's resolved capacity for an interval into mutually
  exclusive allocation categories:

    allocated:   transient bookings, event holds, reserved blocks
    unallocated: unavailable (blackouts) and ready-to-use

INVARIANT:
  allocated.total + unallocated.total == totalCapacity, always, with zero
  rounding tolerance. The booking categories come from an external
  collaborator and cannot be trusted to sum correctly, so the partitioner
  caps each category at the remaining capacity (in a fixed order) and
  assigns whatever is left to ready-to-use. The invariant holds by
  construction, never by chance.

SEE ALSO:
  - capacity.go: TotalCapacity source
*/
package capacity

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// ALLOCATION INPUT - External booking/blackout collaborator
// =============================================================================

// AllocationInput is the raw category usage reported by the booking system.
type AllocationInput struct {
	Transient   decimal.Decimal
	Events      decimal.Decimal
	Reserved    decimal.Decimal
	Unavailable decimal.Decimal
}

// AllocationSource supplies booking/blackout usage for an interval. The
// implementation lives outside this core.
type AllocationSource interface {
	Allocations(ctx context.Context, subLocationID engine.EntityID, start, end time.Time) (AllocationInput, error)
}

// StaticSource returns the same input for every interval. Useful for demos
// and tests.
type StaticSource struct {
	Input AllocationInput
}

func (s StaticSource) Allocations(context.Context, engine.EntityID, time.Time, time.Time) (AllocationInput, error) {
	return s.Input, nil
}

// =============================================================================
// PARTITION RESULT
// =============================================================================

type AllocatedBreakdown struct {
	Transient decimal.Decimal
	Events    decimal.Decimal
	Reserved  decimal.Decimal
	Total     decimal.Decimal
}

type UnallocatedBreakdown struct {
	Unavailable decimal.Decimal
	ReadyToUse  decimal.Decimal
	Total       decimal.Decimal
}

// Percentages of total capacity per category, 0 when capacity is zero.
type Percentages struct {
	Transient   float64
	Events      float64
	Reserved    float64
	Unavailable float64
	ReadyToUse  float64
}

type PartitionResult struct {
	SubLocationID engine.EntityID
	Start         time.Time
	End           time.Time

	TotalCapacity decimal.Decimal
	Allocated     AllocatedBreakdown
	Unallocated   UnallocatedBreakdown
	Percentages   Percentages
}

// =============================================================================
// PARTITIONER
// =============================================================================

// Partitioner combines resolved capacity with external booking data.
type Partitioner struct {
	Reporter *Reporter
	Source   AllocationSource
	Logger   *log.Logger
}

// Partition computes the allocation split for [start, end). The categories
// are capped in order (transient, events, reserved, unavailable) so they
// can never exceed total capacity; the remainder is ready-to-use.
func (p *Partitioner) Partition(ctx context.Context, subLocationID engine.EntityID, start, end time.Time) (*PartitionResult, error) {
	report, err := p.Reporter.Total(ctx, subLocationID, start, end)
	if err != nil {
		return nil, err
	}
	input, err := p.Source.Allocations(ctx, subLocationID, start, end)
	if err != nil {
		return nil, err
	}

	total := report.TotalCapacity
	remaining := total

	take := func(name string, v decimal.Decimal) decimal.Decimal {
		if v.IsNegative() {
			p.warnf("%s usage for %s is negative (%s), treating as zero", name, subLocationID, v)
			v = decimal.Zero
		}
		if v.GreaterThan(remaining) {
			p.warnf("%s usage for %s exceeds remaining capacity (%s > %s), capping", name, subLocationID, v, remaining)
			v = remaining
		}
		remaining = remaining.Sub(v)
		return v
	}

	transient := take("transient", input.Transient)
	events := take("events", input.Events)
	reserved := take("reserved", input.Reserved)
	unavailable := take("unavailable", input.Unavailable)
	readyToUse := remaining // shortfall lands here, invariant by construction

	allocated := AllocatedBreakdown{
		Transient: transient,
		Events:    events,
		Reserved:  reserved,
		Total:     transient.Add(events).Add(reserved),
	}
	unallocated := UnallocatedBreakdown{
		Unavailable: unavailable,
		ReadyToUse:  readyToUse,
		Total:       unavailable.Add(readyToUse),
	}

	return &PartitionResult{
		SubLocationID: subLocationID,
		Start:         start,
		End:           end,
		TotalCapacity: total,
		Allocated:     allocated,
		Unallocated:   unallocated,
		Percentages: Percentages{
			Transient:   pct(transient, total),
			Events:      pct(events, total),
			Reserved:    pct(reserved, total),
			Unavailable: pct(unavailable, total),
			ReadyToUse:  pct(readyToUse, total),
		},
	}, nil
}

func pct(part, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	f, _ := part.Div(total).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

func (p *Partitioner) warnf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf("[partition] "+format, args...)
	}
}
