package engine

import (
	"context"
	"fmt"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/ledger"
	"portfolio-backtest-lab/internal/overlay"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/strategy"
)

// SingleInstrumentEngine replays one instrument day by day through a
// FLAT/LONG state machine with next-bar execution.
type SingleInstrumentEngine struct {
	entry strategy.EntryStrategy
	exit  strategy.ExitStrategy
	cfg   Config
}

// NewSingleInstrumentEngine creates a single-instrument engine.
func NewSingleInstrumentEngine(entry strategy.EntryStrategy, exit strategy.ExitStrategy, cfg Config) *SingleInstrumentEngine {
	return &SingleInstrumentEngine{entry: entry, exit: exit, cfg: cfg.withDefaults()}
}

// Run simulates the full history. Cancellation between days returns the
// partial result with ctx.Err(); completed trades are already final.
func (e *SingleInstrumentEngine) Run(ctx context.Context, history *snapshot.History) (*Result, error) {
	if history == nil || len(history.Bars) == 0 {
		return nil, snapshot.ErrDataUnavailable
	}
	if err := history.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history: %w", err)
	}

	cfg := e.cfg
	id := history.InstrumentID
	book := ledger.New(cfg.InitialCapital, 1, 1.0)
	book.SetRunID(cfg.RunID)

	result := &Result{RunID: cfg.RunID, InitialCapital: cfg.InitialCapital}
	var pendingBuy, pendingSell *domain.PendingOrder

	for i := range history.Bars {
		if err := ctx.Err(); err != nil {
			result.FinalEquity = lastEquity(result, cfg.InitialCapital)
			return result, err
		}
		today := &history.Bars[i]
		result.Days++

		// Overlay force-exit checks take effect before normal order
		// execution.
		adj := evaluateOverlay(ctx, cfg.Overlay, &overlay.DayContext{
			Date:          today.Date,
			Cash:          book.Cash(),
			Equity:        lastEquity(result, cfg.InitialCapital),
			OpenPositions: book.Positions(id),
		}, cfg)
		if adj != nil && book.HeldQuantity(id) > 0 {
			if reason, forced := forcedExitReason(adj, id); forced {
				_, trades, err := book.PartialSell(id, book.HeldQuantity(id), today.Open, today.Date, reason, 1)
				if err != nil {
					return result, err
				}
				result.Trades = append(result.Trades, trades...)
				pendingSell = nil // nothing left for the queued sell
			}
		}

		// 1. Execute yesterday's pending orders at today's open.
		if pendingSell != nil {
			if held := book.HeldQuantity(id); held > 0 {
				qty := cfg.Lots.SellQuantity(id, held, pendingSell.Signal.SellFraction())
				if qty > 0 {
					_, trades, err := book.PartialSell(id, qty, today.Open, today.Date,
						domain.ExitReasonStrategy, pendingSell.Signal.Confidence)
					if err != nil {
						return result, err
					}
					result.Trades = append(result.Trades, trades...)
				} else {
					result.DiscardedOrders++
				}
			}
			pendingSell = nil
		}
		if pendingBuy != nil {
			blocked := adj != nil && (adj.BlockNewEntries || adj.ForceExitAll)
			if blocked {
				result.DiscardedOrders++
			} else if book.HeldQuantity(id) == 0 {
				qty := cfg.Lots.BuyableQuantity(id, book.Cash(), today.Open)
				if qty > 0 {
					if err := book.AddPosition(id, qty, today.Open, today.Date, pendingBuy.Signal); err != nil {
						result.DiscardedOrders++
						cfg.log("buy %s on %s discarded: %v", id, today.Date.Format("2006-01-02"), err)
					}
				} else {
					// Rounding to zero shares silently discards the order.
					result.DiscardedOrders++
				}
			}
			pendingBuy = nil
		}

		// 2. Refresh the peak from today's close before exit evaluation.
		book.RefreshPeaks(id, today.Close)

		// 3. Evaluate the strategy against data through today only and
		// queue the decision as tomorrow's pending order.
		snap := history.Through(today.Date)
		if pos, held := book.OldestPosition(id); held {
			if sig := evaluateExit(e.exit, snap, pos, cfg, &result.StrategyErrors); sig != nil {
				queueOrder(&pendingSell, id, sig, today.Date)
			}
		} else {
			if sig := evaluateEntry(e.entry, snap, cfg, &result.StrategyErrors); sig != nil {
				queueOrder(&pendingBuy, id, sig, today.Date)
			}
		}

		// 4. Mark equity at the close.
		equity := book.Cash() + float64(book.HeldQuantity(id))*today.Close
		result.Equity = append(result.Equity, EquityPoint{Date: today.Date, Equity: equity})
	}

	if cfg.LiquidateAtEnd {
		if held := book.HeldQuantity(id); held > 0 {
			last := &history.Bars[len(history.Bars)-1]
			_, trades, err := book.PartialSell(id, held, last.Close, last.Date, domain.ExitReasonEndOfPeriod, 0)
			if err != nil {
				return result, err
			}
			result.Trades = append(result.Trades, trades...)
		}
	}

	if err := book.Reconcile(); err != nil {
		return result, err
	}
	result.FinalEquity = lastEquity(result, cfg.InitialCapital)
	return result, nil
}

// forcedExitReason resolves whether the adjustment force-exits the
// instrument, and with which reason.
func forcedExitReason(adj *overlay.Adjustment, instrumentID string) (string, bool) {
	if reason, ok := adj.ExitOverrides[instrumentID]; ok {
		if reason == "" {
			reason = domain.ExitReasonRiskOverlay
		}
		return reason, true
	}
	if adj.ForceExitAll {
		return domain.ExitReasonRiskOverlay, true
	}
	return "", false
}

// lastEquity returns the latest equity mark, or the initial capital
// before the first close.
func lastEquity(r *Result, initial float64) float64 {
	if len(r.Equity) == 0 {
		return initial
	}
	return r.Equity[len(r.Equity)-1].Equity
}
