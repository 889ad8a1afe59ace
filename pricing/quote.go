/*
Package pricing turns resolution output into price quotes.

PURPOSE:
  Price is additive across duration: the total for an interval is
  Σ(hour value × hour fraction covered). A slice that resolved to source
  NONE contributes zero but is counted as unpriced — callers must render
  those hours as "N/A", never as free.

SEE ALSO:
  - engine/resolve.go: Produces the hourly slices
  - capacity/: The capacity aggregation, which is additive across hours
*/
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// QUOTE
// =============================================================================

// Quote is the priced interval with its hourly breakdown.
type Quote struct {
	EntityID engine.EntityID
	Start    time.Time
	End      time.Time

	TotalPrice  decimal.Decimal
	AverageRate decimal.Decimal
	Slices      []engine.Slice

	// UnpricedHours counts slices with no value anywhere. A quote with
	// unpriced hours is incomplete, not cheap.
	UnpricedHours int
}

// FullyPriced reports whether every hour resolved to a real value.
func (q *Quote) FullyPriced() bool { return q.UnpricedHours == 0 }

// =============================================================================
// QUOTER
// =============================================================================

// Quoter prices intervals via the resolution engine.
type Quoter struct {
	Resolver *engine.Resolver
}

// QuoteOptions mirror the resolution options relevant to pricing.
type QuoteOptions struct {
	EventID        *engine.EntityID
	IsEventBooking bool
}

// Quote resolves the rate for [start, end) and folds it into a total.
func (q *Quoter) Quote(ctx context.Context, entityID engine.EntityID, start, end time.Time, opts QuoteOptions) (*Quote, error) {
	res, err := q.Resolver.Resolve(ctx, entityID, engine.AttributeRate, start, end, engine.ResolveOptions{
		ResolveHierarchy: true,
		EventID:          opts.EventID,
		IsEventBooking:   opts.IsEventBooking,
	})
	if err != nil {
		return nil, err
	}

	return &Quote{
		EntityID:      entityID,
		Start:         start,
		End:           end,
		TotalPrice:    res.WeightedTotal,
		AverageRate:   res.Average,
		Slices:        res.Slices,
		UnpricedHours: res.Unresolved(),
	}, nil
}
