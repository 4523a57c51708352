// Package strategy defines the entry/exit strategy contracts and a
// name-to-constructor registry. Strategies are pure functions of a
// point-in-time snapshot (and, for exits, the position under review);
// the engine owns all execution semantics.
package strategy

import (
	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/snapshot"
)

// EntryStrategy evaluates whether to open a position in an instrument.
type EntryStrategy interface {
	// Evaluate inspects the snapshot and returns a trading signal.
	// The snapshot never exposes data after its cursor date.
	Evaluate(snap *snapshot.Snapshot) (*domain.TradingSignal, error)

	// Name returns the strategy identifier.
	Name() string
}

// ExitStrategy evaluates whether to close (or reduce) an open position.
type ExitStrategy interface {
	// Evaluate inspects the snapshot and the position under review.
	// A SELL signal may set metadata sell_percentage for partial exits.
	Evaluate(snap *snapshot.Snapshot, pos *domain.Position) (*domain.TradingSignal, error)

	// Name returns the strategy identifier.
	Name() string
}
