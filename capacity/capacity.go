/*
Package capacity aggregates and partitions capacity resolution output.

PURPOSE:
  Capacity is additive across hours, not across duration: the capacity for
  a day is the sum of the hour values, and a partially covered hour still
  offers its full hourly capacity. This package computes interval totals
  and partitions them into mutually exclusive allocation categories with a
  sum invariant that holds by construction.

SEE ALSO:
  - partition.go: The allocation partitioner
  - pricing/: The price aggregation, which IS duration-weighted
*/
package capacity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// CAPACITY REPORT
// =============================================================================

// Report is the resolved capacity for an interval.
type Report struct {
	EntityID engine.EntityID
	Start    time.Time
	End      time.Time

	// TotalCapacity is Σ hour values across the interval's slices.
	TotalCapacity decimal.Decimal
	Slices        []engine.Slice
}

// Reporter resolves capacity via the engine.
type Reporter struct {
	Resolver *engine.Resolver
}

// Total resolves the capacity for [start, end) and sums it per hour.
func (r *Reporter) Total(ctx context.Context, entityID engine.EntityID, start, end time.Time) (*Report, error) {
	res, err := r.Resolver.Resolve(ctx, entityID, engine.AttributeCapacity, start, end, engine.ResolveOptions{
		ResolveHierarchy: true,
	})
	if err != nil {
		return nil, err
	}
	return &Report{
		EntityID:      entityID,
		Start:         start,
		End:           end,
		TotalCapacity: res.SliceSum,
		Slices:        res.Slices,
	}, nil
}
