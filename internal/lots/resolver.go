// Package lots resolves per-instrument minimum tradable units and applies
// the quantity rounding rules of the simulation. Buy quantities round down
// to a lot multiple so an order can never overspend; sell quantities round
// up (capped at the held amount) so an intended exit always executes
// something.
package lots

import "math"

// DefaultLotSize is the market default minimum tradable unit.
const DefaultLotSize = 100

// Resolver resolves lot sizes and converts cash/fractions into tradable
// quantities.
type Resolver struct {
	defaultLot int64
	overrides  map[string]int64
}

// NewResolver creates a resolver with the given default lot size.
// Non-positive defaults fall back to DefaultLotSize.
func NewResolver(defaultLot int64) *Resolver {
	if defaultLot <= 0 {
		defaultLot = DefaultLotSize
	}
	return &Resolver{
		defaultLot: defaultLot,
		overrides:  make(map[string]int64),
	}
}

// SetLotSize overrides the lot size for one instrument. Non-positive
// values are ignored.
func (r *Resolver) SetLotSize(instrumentID string, lot int64) {
	if lot <= 0 {
		return
	}
	r.overrides[instrumentID] = lot
}

// LotSize returns the minimum tradable unit for an instrument.
func (r *Resolver) LotSize(instrumentID string) int64 {
	if lot, ok := r.overrides[instrumentID]; ok {
		return lot
	}
	return r.defaultLot
}

// BuyableQuantity returns the largest lot multiple purchasable with cash
// at price. Returns 0 when price is non-positive or cash does not cover
// one full lot.
func (r *Resolver) BuyableQuantity(instrumentID string, cash, price float64) int64 {
	if price <= 0 || cash <= 0 {
		return 0
	}
	lot := r.LotSize(instrumentID)
	shares := int64(math.Floor(cash / price))
	return (shares / lot) * lot
}

// fullExitThreshold treats near-1 fractions as full exits so rounding can
// never strand a sub-lot remainder.
const fullExitThreshold = 0.999

// SellQuantity converts a sell fraction of the held quantity into a lot
// multiple. Fractions at or above fullExitThreshold return the full held
// quantity, bypassing lot rounding. Otherwise the target rounds up to the
// nearest lot multiple and is capped at held; a zero result is forced up
// to one lot so an intended partial sell is never silently dropped.
//
// The one-lot floor can oversell relative to the fractional intent when
// the lot is large compared to the holding. That approximation is
// deliberate: executing too much beats executing nothing on a risk exit.
func (r *Resolver) SellQuantity(instrumentID string, held int64, fraction float64) int64 {
	if held <= 0 {
		return 0
	}
	if fraction >= fullExitThreshold {
		return held
	}
	if fraction <= 0 {
		return 0
	}

	lot := r.LotSize(instrumentID)
	target := float64(held) * fraction
	qty := int64(math.Ceil(target/float64(lot))) * lot

	if qty == 0 {
		qty = lot
	}
	if qty > held {
		qty = held
	}
	return qty
}
