package domain

import "time"

// RunMetrics is one metrics row per backtest run, consumed by the
// evaluation harness and the reporting layer.
type RunMetrics struct {
	RunID   string
	BatchID string // owning batch, empty for standalone runs

	// Combination identity
	PeriodName    string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	EntryStrategy string
	ExitStrategy  string
	Regime        RegimeLabel // derived from the benchmark at run time

	// Outcome
	InitialCapital float64
	FinalEquity    float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	TotalTrades    int
	WinningTrades  int
	WinRate        float64
	AvgHoldingDays float64
	DaysSimulated  int

	// Failure bookkeeping. A failed run carries null outcome metrics.
	Failed        bool
	FailureReason string
}

// ComboAggregate summarizes all successful runs of one
// (entry, exit, regime) group across a batch's periods.
type ComboAggregate struct {
	EntryStrategy string
	ExitStrategy  string
	Regime        RegimeLabel

	Runs        int
	FailedRuns  int
	AvgReturn   float64
	MedReturn   float64
	StdReturn   float64
	AvgDrawdown float64
	AvgWinRate  float64
	AvgTrades   float64

	// Rank is the 1-based position of this combination within its
	// regime, ordered by AvgReturn descending.
	Rank int
}

// Recommendation is one entry/exit combination scored by its average
// rank across the regimes it was observed in.
type Recommendation struct {
	EntryStrategy string
	ExitStrategy  string
	AvgRank       float64
	Regimes       int // distinct known regimes the combo was ranked in
}

// Instrument is per-instrument metadata, including the minimum tradable
// lot when it differs from the market default.
type Instrument struct {
	InstrumentID string
	Name         string
	LotSize      int64 // 0 means use the resolver default
}
