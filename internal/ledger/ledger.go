// Package ledger implements FIFO lot accounting for a portfolio sharing
// one pool of cash. Every buy appends a lot; every sell consumes lots
// oldest-first at a single fill price. The share conservation invariant
// held + cumulative_sold == cumulative_bought holds for every instrument
// at every point in time.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/idhash"
)

// Ledger errors.
var (
	// ErrInsufficientCapital is returned when a buy's cost exceeds cash.
	// The caller discards the order; the ledger is unchanged.
	ErrInsufficientCapital = errors.New("insufficient capital for buy")

	// ErrInsufficientHoldings is returned when a sell exceeds the held
	// quantity. This is a hard error: the ledger never under- or
	// over-sells.
	ErrInsufficientHoldings = errors.New("sell quantity exceeds holdings")

	// ErrConservationViolated indicates the FIFO conservation invariant
	// no longer reconciles. Callers must abort the run rather than
	// continue on corrupt state.
	ErrConservationViolated = errors.New("share conservation invariant violated")

	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// cashEpsilon absorbs float accumulation noise in cash comparisons.
const cashEpsilon = 1e-6

// Ledger tracks cash, open FIFO lots per instrument, and cumulative
// bought/sold counters for conservation checks. Not safe for concurrent
// use; each simulation run owns its own ledger.
type Ledger struct {
	cash           float64
	initialCapital float64
	realizedPnL    float64

	maxPositions   int
	maxPositionPct float64

	positions map[string][]*domain.Position // FIFO order per instrument
	cumBought map[string]int64
	cumSold   map[string]int64

	runID string // stamped onto emitted trade records
}

// New creates a ledger with the given starting cash and position limits.
func New(cash float64, maxPositions int, maxPositionPct float64) *Ledger {
	return &Ledger{
		cash:           cash,
		initialCapital: cash,
		maxPositions:   maxPositions,
		maxPositionPct: maxPositionPct,
		positions:      make(map[string][]*domain.Position),
		cumBought:      make(map[string]int64),
		cumSold:        make(map[string]int64),
	}
}

// SetRunID stamps subsequently emitted trade records with a run identifier.
func (l *Ledger) SetRunID(runID string) { l.runID = runID }

// Cash returns the current uninvested cash.
func (l *Ledger) Cash() float64 { return l.cash }

// InitialCapital returns the starting cash.
func (l *Ledger) InitialCapital() float64 { return l.initialCapital }

// RealizedPnL returns cumulative realized profit and loss.
func (l *Ledger) RealizedPnL() float64 { return l.realizedPnL }

// HeldQuantity returns the total held quantity for an instrument.
func (l *Ledger) HeldQuantity(instrumentID string) int64 {
	var total int64
	for _, p := range l.positions[instrumentID] {
		total += p.Quantity
	}
	return total
}

// Positions returns the open lots for an instrument in FIFO order.
// The returned slice is shared internal state for the engine's read path;
// callers must not mutate lot quantities directly.
func (l *Ledger) Positions(instrumentID string) []*domain.Position {
	return l.positions[instrumentID]
}

// OldestPosition returns the oldest open lot for an instrument, if any.
// Exit strategies evaluate against the oldest lot.
func (l *Ledger) OldestPosition(instrumentID string) (*domain.Position, bool) {
	lots := l.positions[instrumentID]
	if len(lots) == 0 {
		return nil, false
	}
	return lots[0], true
}

// OpenInstruments returns the instruments with open positions, sorted for
// deterministic iteration.
func (l *Ledger) OpenInstruments() []string {
	out := make([]string, 0, len(l.positions))
	for id, lots := range l.positions {
		if len(lots) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// PositionCount returns the number of distinct instruments held.
func (l *Ledger) PositionCount() int {
	n := 0
	for _, lots := range l.positions {
		if len(lots) > 0 {
			n++
		}
	}
	return n
}

// CanOpenNewPosition reports whether a new distinct instrument may be
// opened under the max_positions limit.
func (l *Ledger) CanOpenNewPosition() bool {
	return l.PositionCount() < l.maxPositions
}

// AddPosition appends a new FIFO lot and debits its cost from cash.
// Returns ErrInsufficientCapital (and changes nothing) when the cost
// exceeds available cash.
func (l *Ledger) AddPosition(instrumentID string, qty int64, price float64, date time.Time, sig domain.TradingSignal) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	cost := float64(qty) * price
	if cost > l.cash+cashEpsilon {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCapital, cost, l.cash)
	}

	l.cash -= cost
	l.cumBought[instrumentID] += qty
	l.positions[instrumentID] = append(l.positions[instrumentID], &domain.Position{
		InstrumentID: instrumentID,
		EntryPrice:   price,
		EntryDate:    domain.Day(date),
		Quantity:     qty,
		EntrySignal:  sig.Clone(),
		PeakPrice:    price,
	})
	return nil
}

// PartialSell consumes qty shares of an instrument oldest-first at a
// single fill price, credits the proceeds to cash, and returns one
// TradeRecord per fully closed lot. A partially consumed lot shrinks in
// place and produces no record. Returns ErrInsufficientHoldings (and
// changes nothing) when qty exceeds the held total.
func (l *Ledger) PartialSell(instrumentID string, qty int64, exitPrice float64, exitDate time.Time, exitReason string, exitUrgency float64) (float64, []*domain.TradeRecord, error) {
	if qty <= 0 {
		return 0, nil, ErrInvalidQuantity
	}
	held := l.HeldQuantity(instrumentID)
	if qty > held {
		return 0, nil, fmt.Errorf("%w: want %d, held %d", ErrInsufficientHoldings, qty, held)
	}

	day := domain.Day(exitDate)
	remaining := qty
	var trades []*domain.TradeRecord
	var consumedBasis float64

	lots := l.positions[instrumentID]
	for remaining > 0 {
		lot := lots[0]
		if lot.Quantity <= remaining {
			// Lot fully closed: emit its trade record atomically.
			remaining -= lot.Quantity
			consumedBasis += float64(lot.Quantity) * lot.EntryPrice
			trades = append(trades, l.closeLot(lot, lot.Quantity, exitPrice, day, exitReason, exitUrgency))
			lots = lots[1:]
		} else {
			lot.Quantity -= remaining
			consumedBasis += float64(remaining) * lot.EntryPrice
			remaining = 0
		}
	}
	if len(lots) == 0 {
		delete(l.positions, instrumentID)
	} else {
		l.positions[instrumentID] = lots
	}

	proceeds := float64(qty) * exitPrice
	l.cash += proceeds
	l.realizedPnL += proceeds - consumedBasis
	l.cumSold[instrumentID] += qty

	return proceeds, trades, nil
}

// closeLot builds the immutable trade record for a fully consumed lot.
func (l *Ledger) closeLot(lot *domain.Position, qty int64, exitPrice float64, exitDate time.Time, reason string, urgency float64) *domain.TradeRecord {
	entryReason := ""
	if len(lot.EntrySignal.Reasons) > 0 {
		entryReason = lot.EntrySignal.Reasons[0]
	}
	holdingDays := int(exitDate.Sub(lot.EntryDate).Hours() / 24)

	return &domain.TradeRecord{
		TradeID:      idhash.ComputeTradeID(l.runID, lot.InstrumentID, lot.EntryDate, exitDate, qty),
		RunID:        l.runID,
		InstrumentID: lot.InstrumentID,
		EntryDate:    lot.EntryDate,
		EntryPrice:   lot.EntryPrice,
		Quantity:     qty,
		EntryReason:  entryReason,
		EntryScore:   lot.EntrySignal.Meta(domain.MetaScore, domain.DefaultScore),
		ExitDate:     exitDate,
		ExitPrice:    exitPrice,
		ExitReason:   reason,
		ExitUrgency:  urgency,
		HoldingDays:  holdingDays,
		ReturnPct:    (exitPrice - lot.EntryPrice) / lot.EntryPrice,
		ReturnValue:  (exitPrice - lot.EntryPrice) * float64(qty),
	}
}

// RefreshPeaks raises PeakPrice for every lot of an instrument from the
// day's close. Called once per simulated day before exit evaluation.
func (l *Ledger) RefreshPeaks(instrumentID string, close float64) {
	for _, lot := range l.positions[instrumentID] {
		lot.RefreshPeak(close)
	}
}

// CostBasis returns the total entry cost of all open lots.
func (l *Ledger) CostBasis() float64 {
	var total float64
	for _, lots := range l.positions {
		for _, lot := range lots {
			total += float64(lot.Quantity) * lot.EntryPrice
		}
	}
	return total
}

// TotalValue marks the portfolio to market: cash plus open lots valued at
// the supplied prices. Instruments missing a price mark at entry price.
func (l *Ledger) TotalValue(prices map[string]float64) float64 {
	total := l.cash
	for id, lots := range l.positions {
		price, ok := prices[id]
		for _, lot := range lots {
			if ok {
				total += float64(lot.Quantity) * price
			} else {
				total += float64(lot.Quantity) * lot.EntryPrice
			}
		}
	}
	return total
}

// MaxPositionSize returns the capital admissible for one new position:
// min(total portfolio value * max_position_pct, cash).
func (l *Ledger) MaxPositionSize(prices map[string]float64) float64 {
	limit := l.TotalValue(prices) * l.maxPositionPct
	return math.Min(limit, l.cash)
}

// Reconcile verifies both conservation invariants: per-instrument share
// conservation (held + cumulative_sold == cumulative_bought) and cash
// reconciliation (initial capital + realized P&L == cash + cost basis,
// there being no external capital flows). Any violation is terminal for
// the owning run.
func (l *Ledger) Reconcile() error {
	for id, bought := range l.cumBought {
		held := l.HeldQuantity(id)
		if held+l.cumSold[id] != bought {
			return fmt.Errorf("%w: %s held=%d sold=%d bought=%d",
				ErrConservationViolated, id, held, l.cumSold[id], bought)
		}
	}

	want := l.initialCapital + l.realizedPnL
	got := l.cash + l.CostBasis()
	if math.Abs(want-got) > 1e-4 {
		return fmt.Errorf("%w: cash reconciliation off by %.6f", ErrConservationViolated, got-want)
	}
	return nil
}
