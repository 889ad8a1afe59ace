/*
resolve.go - Layered time-window resolution

PURPOSE:
  Produces the effective value of an attribute (rate or capacity) for every
  hour slice of a requested interval, given competing override sheets,
  entity defaults, and the hierarchy fallback chain.

ALGORITHM PER HOUR SLICE [h, h+1h):
  1. Collect candidate sheets for the target entity and, when hierarchy
     resolution is on, its ancestors (same attribute kind).
  2. Keep sheets that are approved, active, and effective at h.
  3. Keep sheets with a window covering h (clock time for absolute windows,
     elapsed minutes since interval start for duration windows).
  4. Event-scoped sheets win outright for event bookings. Otherwise the most
     specific entity's sheets win (specificity beats priority), then the
     highest priority, then the most recently created sheet.
  5. No winner: fall back to the first non-null entity default walking up
     the ancestor chain.
  6. Still nothing: value 0 with source NONE. Callers must treat 0/NONE as
     "unpriced", never as a free rate.

PARTIAL SLICES:
  A caller-supplied window not aligned to the hour produces one leading and
  one trailing partial slice, each weighted by its fractional duration.
  Price totals multiply by the fraction; capacity totals do not (capacity
  is per-hour, not per-minute).

CONCURRENCY:
  The engine is pure over data fetched at call time. Slices are independent
  and evaluated in parallel; results are reassembled in chronological order.

SEE ALSO:
  - window.go: Window matching
  - defaults.go: Ancestor default fallback
  - pricing/, capacity/: Aggregation semantics per attribute
*/
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Source says where a slice's value came from.
type Source string

const (
	SourceSheet   Source = "sheet"
	SourceDefault Source = "entity_default"
	SourceNone    Source = "none"
)

// Slice is the resolution result for one (possibly partial) hour.
type Slice struct {
	Start    time.Time
	End      time.Time
	Fraction decimal.Decimal // covered portion of the hour, (0, 1]

	Value       decimal.Decimal
	Source      Source
	SheetID     SheetID // set when Source == sheet
	SourceLevel Level   // level the winning sheet or default came from
}

// Resolution is the ordered per-slice breakdown plus aggregates.
type Resolution struct {
	EntityID  EntityID
	Attribute Attribute
	Start     time.Time
	End       time.Time

	Slices []Slice

	// WeightedTotal is Σ value × fraction: the price semantics, additive
	// across duration.
	WeightedTotal decimal.Decimal

	// SliceSum is Σ value per slice: the capacity semantics, additive
	// across hours regardless of partial coverage.
	SliceSum decimal.Decimal

	// Average is WeightedTotal divided by the interval's length in hours.
	Average decimal.Decimal
}

// Unresolved counts slices that fell through to source NONE.
func (r *Resolution) Unresolved() int {
	n := 0
	for _, s := range r.Slices {
		if s.Source == SourceNone {
			n++
		}
	}
	return n
}

// =============================================================================
// RESOLVER
// =============================================================================

// ResolveOptions tune one resolution call.
type ResolveOptions struct {
	// ResolveHierarchy includes ancestors' sheets as fallback candidates.
	// Ancestor sheets never override a more specific entity's match.
	ResolveHierarchy bool

	// EventID and IsEventBooking give event-scoped sheets precedence over
	// all non-event sheets, regardless of priority.
	EventID        *EntityID
	IsEventBooking bool

	// ExcludeSurge drops surge-materialized sheets from the candidate set.
	// The materialization workflow uses this to compute a base rate without
	// referencing its own output.
	ExcludeSurge bool
}

// Resolver is the resolution engine. It is stateless and safe for
// concurrent use across unrelated entities and intervals.
type Resolver struct {
	Sheets   SheetStore
	Entities EntityStore
	Logger   *log.Logger

	// Parallelism bounds concurrent slice evaluation. Zero means a small
	// default.
	Parallelism int
}

// Resolve computes the effective value of attr for every hour slice in
// [start, end). Missing entities return ErrNotFound; an unreachable store
// fails the whole call with ErrPersistence; a total absence of values is
// NOT an error and yields zero-valued NONE slices.
func (rv *Resolver) Resolve(ctx context.Context, entityID EntityID, attr Attribute, start, end time.Time, opts ResolveOptions) (*Resolution, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: interval end must be after start", ErrInvalidConfiguration)
	}

	target, err := rv.Entities.GetEntity(ctx, entityID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading entity %s: %v", ErrPersistence, entityID, err)
	}

	var ancestors []*Entity
	ids := []EntityID{entityID}
	if opts.ResolveHierarchy {
		ancestors, err = rv.Entities.Ancestors(ctx, entityID)
		if err != nil {
			return nil, fmt.Errorf("%w: loading ancestors of %s: %v", ErrPersistence, entityID, err)
		}
		for _, a := range ancestors {
			ids = append(ids, a.ID)
		}
	}

	sheets, err := rv.Sheets.ListSheets(ctx, SheetFilter{EntityIDs: ids, Kind: attr, ActiveOnly: true})
	if err != nil {
		// Sheet reads are batched per call, so a store failure here is the
		// "every slice fails" case and the whole call fails.
		return nil, fmt.Errorf("%w: listing sheets: %v", ErrPersistence, err)
	}

	cands := rv.prepare(sheets, opts)

	// Specificity rank: target entity highest, then ancestors nearest first.
	rank := make(map[EntityID]int, len(ids))
	for i, id := range ids {
		rank[id] = len(ids) - i
	}

	bounds := hourBounds(start, end)
	slices := make([]Slice, len(bounds))

	g, gctx := errgroup.WithContext(ctx)
	limit := rv.Parallelism
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)
	for i := range bounds {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slices[i] = rv.evaluate(bounds[i], start, cands, rank, target, ancestors, attr, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Resolution{
		EntityID:  entityID,
		Attribute: attr,
		Start:     start,
		End:       end,
		Slices:    slices,
	}
	hours := decimal.Zero
	for _, s := range slices {
		res.WeightedTotal = res.WeightedTotal.Add(s.Value.Mul(s.Fraction))
		res.SliceSum = res.SliceSum.Add(s.Value)
		hours = hours.Add(s.Fraction)
	}
	if hours.IsPositive() {
		res.Average = res.WeightedTotal.Div(hours)
	}
	return res, nil
}

// =============================================================================
// CANDIDATE PREPARATION
// =============================================================================

// candidate pairs a sheet with its pre-validated windows.
type candidate struct {
	sheet   *Sheet
	windows []Window
}

// prepare filters the fetched sheets and drops malformed windows with a
// warning. A sheet whose windows are all malformed is skipped entirely but
// never fails the resolution.
func (rv *Resolver) prepare(sheets []*Sheet, opts ResolveOptions) []candidate {
	var out []candidate
	for _, s := range sheets {
		if opts.ExcludeSurge && s.Origin == OriginSurge {
			continue
		}
		var valid []Window
		for _, w := range s.Windows {
			if err := w.Validate(); err != nil {
				rv.warnf("sheet %s: skipping window: %v", s.ID, err)
				continue
			}
			valid = append(valid, w)
		}
		if len(valid) == 0 {
			continue
		}
		out = append(out, candidate{sheet: s, windows: valid})
	}
	return out
}

func (rv *Resolver) warnf(format string, args ...any) {
	if rv.Logger != nil {
		rv.Logger.Printf("[resolver] "+format, args...)
	}
}

// =============================================================================
// PER-SLICE EVALUATION (pure)
// =============================================================================

type sliceBound struct {
	start, end time.Time
}

// hourBounds splits [start, end) into clock-aligned hour slices, with
// partial leading/trailing slices when the interval is not hour-aligned.
func hourBounds(start, end time.Time) []sliceBound {
	var out []sliceBound
	cur := start
	for cur.Before(end) {
		next := cur.Truncate(time.Hour).Add(time.Hour)
		if next.After(end) {
			next = end
		}
		out = append(out, sliceBound{start: cur, end: next})
		cur = next
	}
	return out
}

func (rv *Resolver) evaluate(b sliceBound, intervalStart time.Time, cands []candidate, rank map[EntityID]int, target *Entity, ancestors []*Entity, attr Attribute, opts ResolveOptions) Slice {
	sl := Slice{
		Start:    b.start,
		End:      b.end,
		Fraction: decimal.NewFromFloat(b.end.Sub(b.start).Minutes()).Div(decimal.NewFromInt(60)),
		Source:   SourceNone,
		Value:    decimal.Zero,
	}

	clock := Clock(b.start)
	elapsed := int(b.start.Sub(intervalStart).Minutes())

	type match struct {
		cand  candidate
		value decimal.Decimal
	}
	var matches []match
	for _, c := range cands {
		if !c.sheet.Applicable(b.start) {
			continue
		}
		for _, w := range c.windows {
			if w.Matches(clock, elapsed) {
				matches = append(matches, match{cand: c, value: w.Value})
				break // windows within a sheet do not overlap
			}
		}
	}

	if len(matches) > 0 {
		// Event-scoped sheets take precedence for event bookings, regardless
		// of priority.
		if opts.IsEventBooking && opts.EventID != nil {
			var scoped []match
			for _, m := range matches {
				if m.cand.sheet.EventID != nil && *m.cand.sheet.EventID == *opts.EventID {
					scoped = append(scoped, m)
				}
			}
			if len(scoped) > 0 {
				matches = scoped
			}
		}

		// Specificity beats priority: keep only the most specific entity's
		// matches. Ancestor sheets are a fallback, never an override.
		best := -1
		for _, m := range matches {
			if r := rank[m.cand.sheet.EntityID]; r > best {
				best = r
			}
		}
		var winner match
		for _, m := range matches {
			if rank[m.cand.sheet.EntityID] != best {
				continue
			}
			if winner.cand.sheet == nil {
				winner = m
				continue
			}
			switch {
			case m.cand.sheet.Priority > winner.cand.sheet.Priority:
				winner = m
			case m.cand.sheet.Priority == winner.cand.sheet.Priority &&
				m.cand.sheet.CreatedAt.After(winner.cand.sheet.CreatedAt):
				// Exact priority ties: most recently created sheet wins.
				winner = m
			}
		}

		sl.Value = winner.value
		sl.Source = SourceSheet
		sl.SheetID = winner.cand.sheet.ID
		sl.SourceLevel = winner.cand.sheet.Level
		return sl
	}

	// No sheet matched: entity default chain.
	if v, lvl, ok := DefaultValue(target, ancestors, attr); ok {
		sl.Value = v
		sl.Source = SourceDefault
		sl.SourceLevel = lvl
	}
	return sl
}
