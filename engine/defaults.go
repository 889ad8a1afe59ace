package engine

import "github.com/shopspring/decimal"

// =============================================================================
// ENTITY DEFAULT RESOLVER - Ancestor-chain fallback
// =============================================================================

// DefaultValue walks the entity and then its ancestor chain (nearest first)
// and returns the first non-null default for the attribute, with the level
// it came from. For rates, nil means "no default" while an explicit zero is
// a legitimate free rate; for capacity, a zero default is treated as unset.
func DefaultValue(target *Entity, ancestors []*Entity, attr Attribute) (decimal.Decimal, Level, bool) {
	if target != nil {
		if v, ok := target.DefaultFor(attr); ok {
			return v, target.Level, true
		}
	}
	for _, a := range ancestors {
		if a == nil {
			continue
		}
		if v, ok := a.DefaultFor(attr); ok {
			return v, a.Level, true
		}
	}
	return decimal.Zero, "", false
}
