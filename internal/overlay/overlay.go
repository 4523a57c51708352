// Package overlay defines the risk overlay contract and the merge rule
// for combining several overlays. An overlay may force exits, block new
// entries, scale entry capital, or cap the day's new positions; it never
// overrides an already-queued sell.
package overlay

import (
	"context"
	"time"

	"portfolio-backtest-lab/internal/domain"
)

// DayContext is the portfolio state an overlay sees at the start of a
// simulated day, before any order executes. It carries no market rows;
// overlays needing market data hold their own snapshots.
type DayContext struct {
	Date          time.Time
	Cash          float64
	Equity        float64 // previous close mark
	OpenPositions []*domain.Position
}

// Adjustment is the decision of one overlay for one day. Nil numeric
// fields mean "no opinion".
type Adjustment struct {
	// TargetExposure caps invested value as a fraction of equity.
	TargetExposure *float64

	// PositionScale scales the capital admissible per new entry.
	PositionScale *float64

	// MaxNewPositions caps entries admitted today.
	MaxNewPositions *int

	// BlockNewEntries drops all pending buys for the day.
	BlockNewEntries bool

	// ForceExitAll liquidates every open position at today's open,
	// before normal order execution.
	ForceExitAll bool

	// ExitOverrides force-exits specific instruments with a reason,
	// irrespective of the exit strategy's opinion.
	ExitOverrides map[string]string
}

// Overlay is the external risk-control contract.
type Overlay interface {
	// Evaluate returns the overlay's adjustment for the day, or nil for
	// no opinion. An error counts as no opinion for that day only.
	Evaluate(ctx context.Context, day *DayContext) (*Adjustment, error)

	// Name returns the overlay identifier.
	Name() string
}

// Merge reduces an ordered list of adjustments into one. Numeric fields
// combine min-wins (the most conservative opinion binds); booleans OR;
// exit overrides union, with the earliest overlay's reason kept on
// conflict. Nil entries are skipped.
func Merge(adjs []*Adjustment) *Adjustment {
	out := &Adjustment{}
	for _, a := range adjs {
		if a == nil {
			continue
		}
		out.TargetExposure = minFloat(out.TargetExposure, a.TargetExposure)
		out.PositionScale = minFloat(out.PositionScale, a.PositionScale)
		out.MaxNewPositions = minInt(out.MaxNewPositions, a.MaxNewPositions)
		out.BlockNewEntries = out.BlockNewEntries || a.BlockNewEntries
		out.ForceExitAll = out.ForceExitAll || a.ForceExitAll

		for id, reason := range a.ExitOverrides {
			if out.ExitOverrides == nil {
				out.ExitOverrides = make(map[string]string)
			}
			if _, exists := out.ExitOverrides[id]; !exists {
				out.ExitOverrides[id] = reason
			}
		}
	}
	return out
}

func minFloat(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b < *a {
		return b
	}
	return a
}

func minInt(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b < *a {
		return b
	}
	return a
}

// Func adapts a plain function into an Overlay.
type Func struct {
	name string
	fn   func(ctx context.Context, day *DayContext) (*Adjustment, error)
}

// NewFunc wraps fn as a named overlay.
func NewFunc(name string, fn func(ctx context.Context, day *DayContext) (*Adjustment, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Evaluate(ctx context.Context, day *DayContext) (*Adjustment, error) {
	return f.fn(ctx, day)
}

func (f *Func) Name() string { return f.name }

var _ Overlay = (*Func)(nil)

// Chain composes several overlays into one, evaluating them in order and
// merging their adjustments. A failing member is skipped for the day.
type Chain struct {
	overlays []Overlay
}

// NewChain creates an overlay chain. Order determines conflict priority
// for exit-override reasons.
func NewChain(overlays ...Overlay) *Chain {
	return &Chain{overlays: overlays}
}

// Evaluate merges the member adjustments for the day.
func (c *Chain) Evaluate(ctx context.Context, day *DayContext) (*Adjustment, error) {
	adjs := make([]*Adjustment, 0, len(c.overlays))
	for _, o := range c.overlays {
		adj, err := o.Evaluate(ctx, day)
		if err != nil {
			continue // member failure is isolated to its own opinion
		}
		adjs = append(adjs, adj)
	}
	return Merge(adjs), nil
}

// Name returns the chain identifier.
func (c *Chain) Name() string { return "chain" }

var _ Overlay = (*Chain)(nil)
