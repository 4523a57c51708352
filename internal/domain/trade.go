package domain

import "time"

// TradeRecord is the immutable summary of one fully closed lot. It is
// emitted atomically at the moment the lot's quantity reaches zero; a
// partially reduced lot produces no record.
type TradeRecord struct {
	TradeID      string // deterministic hash
	RunID        string // owning simulation run, empty for standalone runs
	InstrumentID string

	// Entry
	EntryDate   time.Time
	EntryPrice  float64
	Quantity    int64
	EntryReason string // first reason of the entry signal, if any
	EntryScore  float64

	// Exit
	ExitDate    time.Time
	ExitPrice   float64
	ExitReason  string
	ExitUrgency float64 // confidence of the exit signal

	// Outcome
	HoldingDays int
	ReturnPct   float64 // (exit - entry) / entry
	ReturnValue float64 // (exit - entry) * quantity
}

// Exit reason codes.
const (
	ExitReasonStrategy    = "STRATEGY_EXIT"
	ExitReasonRiskOverlay = "RISK_OVERLAY"
	ExitReasonEndOfPeriod = "END_OF_PERIOD"
)
