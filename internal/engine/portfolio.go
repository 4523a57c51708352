package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/ledger"
	"portfolio-backtest-lab/internal/overlay"
	"portfolio-backtest-lab/internal/ranker"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/strategy"
)

// PortfolioEngine replays many instruments against one shared ledger.
// Per day: overlay adjustments resolve first (force exits execute before
// any normal order), then pending sells across all instruments free cash,
// then pending buys execute in ranked order under capacity and capital
// constraints, then fresh signals queue for the next day, then peaks and
// equity update from the close.
type PortfolioEngine struct {
	entry strategy.EntryStrategy
	exit  strategy.ExitStrategy
	cfg   Config
	rank  *ranker.Ranker
}

// NewPortfolioEngine creates a portfolio engine.
func NewPortfolioEngine(entry strategy.EntryStrategy, exit strategy.ExitStrategy, cfg Config) (*PortfolioEngine, error) {
	cfg = cfg.withDefaults()
	rk, err := ranker.New(cfg.RankPolicy)
	if err != nil {
		return nil, err
	}
	return &PortfolioEngine{entry: entry, exit: exit, cfg: cfg, rank: rk}, nil
}

// Run simulates the shared-capital portfolio over the union calendar of
// all instrument histories. Cancellation between days returns the partial
// result with ctx.Err(); completed trades are already final.
func (e *PortfolioEngine) Run(ctx context.Context, universe map[string]*snapshot.History) (*Result, error) {
	if len(universe) == 0 {
		return nil, snapshot.ErrDataUnavailable
	}
	for id, h := range universe {
		if h == nil {
			return nil, fmt.Errorf("%s: %w", id, snapshot.ErrDataUnavailable)
		}
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("invalid history: %w", err)
		}
	}

	cfg := e.cfg
	calendar := unionCalendar(universe)
	if len(calendar) == 0 {
		return nil, snapshot.ErrDataUnavailable
	}

	book := ledger.New(cfg.InitialCapital, cfg.MaxPositions, cfg.MaxPositionPct)
	book.SetRunID(cfg.RunID)
	result := &Result{RunID: cfg.RunID, InitialCapital: cfg.InitialCapital}

	// Instrument iteration is always in sorted order so runs replay
	// deterministically.
	instruments := sortedIDs(universe)
	pendingBuys := make(map[string]*domain.PendingOrder)
	pendingSells := make(map[string]*domain.PendingOrder)

	for _, day := range calendar {
		if err := ctx.Err(); err != nil {
			result.FinalEquity = lastEquity(result, cfg.InitialCapital)
			return result, err
		}
		result.Days++

		// Bars trading today, keyed by instrument.
		bars := make(map[string]domain.Bar)
		for _, id := range instruments {
			if bar, ok := universe[id].BarOn(day); ok {
				bars[id] = bar
			}
		}
		if len(bars) == 0 {
			continue
		}

		// Overlay adjustments bind the whole day; force exits execute
		// before normal order execution.
		adj := evaluateOverlay(ctx, cfg.Overlay, &overlay.DayContext{
			Date:          day,
			Cash:          book.Cash(),
			Equity:        lastEquity(result, cfg.InitialCapital),
			OpenPositions: openPositions(book),
		}, cfg)
		if adj != nil {
			if err := e.applyForcedExits(book, adj, bars, day, result, pendingSells); err != nil {
				return result, err
			}
		}

		// 1. Execute all pending sells first to free cash for buys.
		for _, id := range instruments {
			order := pendingSells[id]
			if order == nil {
				continue
			}
			bar, trading := bars[id]
			if !trading {
				continue // order waits for the instrument's next bar
			}
			delete(pendingSells, id)

			held := book.HeldQuantity(id)
			if held == 0 {
				continue
			}
			qty := cfg.Lots.SellQuantity(id, held, order.Signal.SellFraction())
			if qty == 0 {
				result.DiscardedOrders++
				continue
			}
			_, trades, err := book.PartialSell(id, qty, bar.Open, day,
				domain.ExitReasonStrategy, order.Signal.Confidence)
			if err != nil {
				return result, err
			}
			result.Trades = append(result.Trades, trades...)
		}

		// 2. Execute pending buys in ranked order while capacity and
		// capital remain. Skipped candidates are not retried; their
		// orders are consumed either way.
		if err := e.executeBuys(book, adj, bars, day, result, pendingBuys, instruments); err != nil {
			return result, err
		}

		// 3. Refresh peaks from today's close before exit evaluation.
		for _, id := range instruments {
			if bar, ok := bars[id]; ok {
				book.RefreshPeaks(id, bar.Close)
			}
		}

		// 4. Generate fresh signals for tomorrow: exits for held
		// instruments, entries for flat ones.
		for _, id := range instruments {
			if _, trading := bars[id]; !trading {
				continue
			}
			snap := universe[id].Through(day)
			if pos, held := book.OldestPosition(id); held {
				if sig := evaluateExit(e.exit, snap, pos, cfg, &result.StrategyErrors); sig != nil {
					queueOrderMap(pendingSells, id, sig, day)
				}
			} else {
				if sig := evaluateEntry(e.entry, snap, cfg, &result.StrategyErrors); sig != nil {
					queueOrderMap(pendingBuys, id, sig, day)
				}
			}
		}

		// 5. Mark total equity at the close.
		closes := make(map[string]float64, len(bars))
		for id, bar := range bars {
			closes[id] = bar.Close
		}
		result.Equity = append(result.Equity, EquityPoint{Date: day, Equity: book.TotalValue(closes)})
	}

	if cfg.LiquidateAtEnd {
		if err := liquidateAll(book, universe, calendar[len(calendar)-1], result); err != nil {
			return result, err
		}
	}

	if err := book.Reconcile(); err != nil {
		return result, err
	}
	result.FinalEquity = lastEquity(result, cfg.InitialCapital)
	return result, nil
}

// applyForcedExits liquidates overlay-mandated positions at today's open.
// A consumed instrument's queued sell is cleared; overlays never override
// a queued sell on instruments they leave alone.
func (e *PortfolioEngine) applyForcedExits(book *ledger.Ledger, adj *overlay.Adjustment, bars map[string]domain.Bar, day time.Time, result *Result, pendingSells map[string]*domain.PendingOrder) error {
	for _, id := range book.OpenInstruments() {
		reason, forced := forcedExitReason(adj, id)
		if !forced {
			continue
		}
		bar, trading := bars[id]
		if !trading {
			continue // cannot fill without a bar; retried next day the overlay insists
		}
		held := book.HeldQuantity(id)
		_, trades, err := book.PartialSell(id, held, bar.Open, day, reason, 1)
		if err != nil {
			return err
		}
		result.Trades = append(result.Trades, trades...)
		delete(pendingSells, id)
	}
	return nil
}

// executeBuys ranks today's pending buys and admits them while
// can_open_new_position holds and capital remains.
func (e *PortfolioEngine) executeBuys(book *ledger.Ledger, adj *overlay.Adjustment, bars map[string]domain.Bar, day time.Time, result *Result, pendingBuys map[string]*domain.PendingOrder, instruments []string) error {
	cfg := e.cfg

	// Collect candidates trading today in stable instrument order, then
	// consume their orders: pending orders live exactly one day.
	var candidates []*ranker.Candidate
	for _, id := range instruments {
		order := pendingBuys[id]
		if order == nil {
			continue
		}
		if _, trading := bars[id]; !trading {
			continue
		}
		delete(pendingBuys, id)
		candidates = append(candidates, &ranker.Candidate{Order: order})
	}
	if len(candidates) == 0 {
		return nil
	}

	if adj != nil && (adj.BlockNewEntries || adj.ForceExitAll) {
		result.DiscardedOrders += len(candidates)
		return nil
	}

	opens := make(map[string]float64, len(bars))
	for id, bar := range bars {
		opens[id] = bar.Open
	}

	newPositionsLeft := len(candidates)
	if adj != nil && adj.MaxNewPositions != nil {
		newPositionsLeft = *adj.MaxNewPositions
	}

	// Remaining exposure budget under a target_exposure cap.
	equity := book.TotalValue(opens)
	exposureBudget := equity // effectively unbounded without a target
	if adj != nil && adj.TargetExposure != nil {
		invested := equity - book.Cash()
		exposureBudget = *adj.TargetExposure*equity - invested
	}

	for _, cand := range e.rank.Rank(candidates) {
		if newPositionsLeft <= 0 {
			break
		}
		if !book.CanOpenNewPosition() {
			break
		}

		id := cand.Order.InstrumentID
		budget := book.MaxPositionSize(opens)
		if adj != nil && adj.PositionScale != nil {
			budget *= *adj.PositionScale
		}
		if budget > exposureBudget {
			budget = exposureBudget
		}

		qty := cfg.Lots.BuyableQuantity(id, budget, opens[id])
		if qty == 0 {
			// Sub-lot budget: the order is discarded, not retried.
			result.DiscardedOrders++
			continue
		}
		if err := book.AddPosition(id, qty, opens[id], day, cand.Order.Signal); err != nil {
			result.DiscardedOrders++
			cfg.log("buy %s on %s discarded: %v", id, day.Format("2006-01-02"), err)
			continue
		}
		newPositionsLeft--
		exposureBudget -= float64(qty) * opens[id]
	}
	return nil
}

// liquidateAll closes every open lot at the instrument's last close on or
// before the final simulated day.
func liquidateAll(book *ledger.Ledger, universe map[string]*snapshot.History, lastDay time.Time, result *Result) error {
	for _, id := range book.OpenInstruments() {
		snap := universe[id].Through(lastDay)
		bar, ok := snap.LastBar()
		if !ok {
			continue
		}
		held := book.HeldQuantity(id)
		_, trades, err := book.PartialSell(id, held, bar.Close, lastDay, domain.ExitReasonEndOfPeriod, 0)
		if err != nil {
			return err
		}
		result.Trades = append(result.Trades, trades...)
	}
	return nil
}

// unionCalendar returns the sorted union of all bar dates.
func unionCalendar(universe map[string]*snapshot.History) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, h := range universe {
		for i := range h.Bars {
			seen[h.Bars[i].Date] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// sortedIDs returns the universe's instrument IDs in sorted order.
func sortedIDs(universe map[string]*snapshot.History) []string {
	out := make([]string, 0, len(universe))
	for id := range universe {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// openPositions flattens the ledger's open lots in sorted instrument
// order for the overlay's day context.
func openPositions(book *ledger.Ledger) []*domain.Position {
	var out []*domain.Position
	for _, id := range book.OpenInstruments() {
		out = append(out, book.Positions(id)...)
	}
	return out
}

// queueOrderMap applies last-write-wins queuing into a per-instrument map.
func queueOrderMap(orders map[string]*domain.PendingOrder, instrumentID string, sig *domain.TradingSignal, date time.Time) {
	orders[instrumentID] = &domain.PendingOrder{
		Signal:       sig.Clone(),
		InstrumentID: instrumentID,
		CreatedDate:  domain.Day(date),
	}
}
