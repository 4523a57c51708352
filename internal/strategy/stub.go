package strategy

import (
	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/snapshot"
)

// StubEntryStrategy always holds. Used in tests and as a wiring baseline.
type StubEntryStrategy struct{}

// NewStubEntryStrategy creates a new stub entry strategy.
func NewStubEntryStrategy() *StubEntryStrategy { return &StubEntryStrategy{} }

// Evaluate always returns HOLD.
func (s *StubEntryStrategy) Evaluate(_ *snapshot.Snapshot) (*domain.TradingSignal, error) {
	return &domain.TradingSignal{Action: domain.ActionHold, StrategyName: s.Name()}, nil
}

// Name returns the strategy identifier.
func (s *StubEntryStrategy) Name() string { return "stub_entry" }

// StubExitStrategy always holds, leaving positions open.
type StubExitStrategy struct{}

// NewStubExitStrategy creates a new stub exit strategy.
func NewStubExitStrategy() *StubExitStrategy { return &StubExitStrategy{} }

// Evaluate always returns HOLD.
func (s *StubExitStrategy) Evaluate(_ *snapshot.Snapshot, _ *domain.Position) (*domain.TradingSignal, error) {
	return &domain.TradingSignal{Action: domain.ActionHold, StrategyName: s.Name()}, nil
}

// Name returns the strategy identifier.
func (s *StubExitStrategy) Name() string { return "stub_exit" }

// Ensure stubs implement the strategy interfaces
var (
	_ EntryStrategy = (*StubEntryStrategy)(nil)
	_ ExitStrategy  = (*StubExitStrategy)(nil)
)
