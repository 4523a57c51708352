// Package engine implements the day-by-day backtest simulation loop:
// single-instrument and portfolio replay with strict temporal causality,
// next-bar order execution, FIFO position lifecycle, and competitive
// capital allocation across same-day entry signals.
//
// The per-day ordering is correctness-critical and must not be
// reordered: pending orders execute at today's open, peaks refresh from
// today's close before exit evaluation, strategies see a snapshot
// truncated to today, and equity marks at the close.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/lots"
	"portfolio-backtest-lab/internal/overlay"
	"portfolio-backtest-lab/internal/ranker"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/strategy"
)

// Default configuration values.
const (
	DefaultInitialCapital = 1_000_000
	DefaultMaxPositions   = 5
	DefaultMaxPositionPct = 0.30
)

// Config holds simulation parameters shared by both engines.
type Config struct {
	// RunID namespaces trade identifiers; empty for ad-hoc runs.
	RunID string

	InitialCapital float64
	MaxPositions   int
	MaxPositionPct float64
	RankPolicy     ranker.Policy
	Lots           *lots.Resolver
	Overlay        overlay.Overlay // optional

	// LiquidateAtEnd closes all open lots at the final close so every
	// run's trades are complete. Open lots still mark to market either
	// way.
	LiquidateAtEnd bool

	Verbose bool
	Logger  *log.Logger
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.InitialCapital <= 0 {
		c.InitialCapital = DefaultInitialCapital
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = DefaultMaxPositions
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		c.MaxPositionPct = DefaultMaxPositionPct
	}
	if c.RankPolicy == "" {
		c.RankPolicy = ranker.PolicySimpleScore
	}
	if c.Lots == nil {
		c.Lots = lots.NewResolver(lots.DefaultLotSize)
	}
	return c
}

// log writes a verbose progress message.
func (c Config) log(format string, args ...interface{}) {
	if !c.Verbose {
		return
	}
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// EquityPoint is one mark-to-market equity observation at a day's close.
type EquityPoint struct {
	Date   time.Time
	Equity float64
}

// Result holds the output of one simulation run. Trades are complete and
// immutable even when a run is cancelled between days.
type Result struct {
	RunID          string
	InitialCapital float64
	FinalEquity    float64
	Days           int
	Trades         []*domain.TradeRecord
	Equity         []EquityPoint

	// StrategyErrors counts per-day evaluations degraded to HOLD.
	StrategyErrors int

	// DiscardedOrders counts pending orders dropped by lot rounding or
	// insufficient capital.
	DiscardedOrders int
}

// evaluateEntry runs an entry strategy with failure isolation: an error
// or panic degrades to HOLD for the day and never aborts the run.
func evaluateEntry(es strategy.EntryStrategy, snap *snapshot.Snapshot, cfg Config, errCount *int) *domain.TradingSignal {
	sig, err := func() (sig *domain.TradingSignal, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("entry strategy panic: %v", r)
			}
		}()
		return es.Evaluate(snap)
	}()
	if err != nil {
		*errCount++
		cfg.log("entry %s on %s %s: %v (treated as HOLD)",
			es.Name(), snap.InstrumentID(), snap.Date().Format("2006-01-02"), err)
		return nil
	}
	if sig == nil || sig.Action != domain.ActionBuy {
		return nil
	}
	return sig
}

// evaluateExit runs an exit strategy with the same failure isolation.
func evaluateExit(xs strategy.ExitStrategy, snap *snapshot.Snapshot, pos *domain.Position, cfg Config, errCount *int) *domain.TradingSignal {
	sig, err := func() (sig *domain.TradingSignal, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("exit strategy panic: %v", r)
			}
		}()
		return xs.Evaluate(snap, pos)
	}()
	if err != nil {
		*errCount++
		cfg.log("exit %s on %s %s: %v (treated as HOLD)",
			xs.Name(), snap.InstrumentID(), snap.Date().Format("2006-01-02"), err)
		return nil
	}
	if sig == nil || sig.Action != domain.ActionSell {
		return nil
	}
	return sig
}

// evaluateOverlay runs the overlay with failure isolation: an error or
// panic means no adjustment for the day.
func evaluateOverlay(ctx context.Context, ov overlay.Overlay, day *overlay.DayContext, cfg Config) *overlay.Adjustment {
	if ov == nil {
		return nil
	}
	adj, err := func() (adj *overlay.Adjustment, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("overlay panic: %v", r)
			}
		}()
		return ov.Evaluate(ctx, day)
	}()
	if err != nil {
		cfg.log("overlay %s on %s: %v (no adjustment)", ov.Name(), day.Date.Format("2006-01-02"), err)
		return nil
	}
	return adj
}

// queueOrder applies the last-write-wins pending order policy: a newer
// same-direction signal replaces an unexecuted one.
func queueOrder(slot **domain.PendingOrder, instrumentID string, sig *domain.TradingSignal, date time.Time) {
	*slot = &domain.PendingOrder{
		Signal:       sig.Clone(),
		InstrumentID: instrumentID,
		CreatedDate:  domain.Day(date),
	}
}
