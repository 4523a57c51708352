package reporting

import (
	"time"

	"portfolio-backtest-lab/internal/domain"
)

// Report is the evaluation report for one batch.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	BatchID     string
	PeriodCount int
	EntryCount  int
	ExitCount   int

	// Batch Summary
	Summary BatchSummary

	// Per-run rows (sorted by period_name, entry_strategy, exit_strategy)
	Runs []RunRow

	// Ranked combo aggregates per regime
	Aggregates []*domain.ComboAggregate

	// Recommendation by average cross-regime rank, best first
	Recommendations []*domain.Recommendation

	// Failures lists failed runs with their reasons.
	Failures []FailureRow
}

// BatchSummary describes the batch as a whole.
type BatchSummary struct {
	TotalRuns   int
	FailedRuns  int
	TotalTrades int
	PeriodStart time.Time
	PeriodEnd   time.Time

	// RegimeCounts is sorted by regime label for deterministic output.
	RegimeCounts []RegimeCount
}

// RegimeCount is the number of runs labeled with one regime.
type RegimeCount struct {
	Regime domain.RegimeLabel
	Runs   int
}

// RunRow is one row of the per-run table.
type RunRow struct {
	RunID          string
	PeriodName     string
	EntryStrategy  string
	ExitStrategy   string
	Regime         domain.RegimeLabel
	TotalReturnPct float64
	MaxDrawdownPct float64
	WinRate        float64
	TotalTrades    int
	DaysSimulated  int
	Failed         bool
}

// FailureRow identifies a failed run and why it failed.
type FailureRow struct {
	RunID         string
	PeriodName    string
	EntryStrategy string
	ExitStrategy  string
	Reason        string
}
