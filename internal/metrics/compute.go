package metrics

import (
	"math"
	"sort"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/engine"
)

// RunKey identifies the combination a simulation result belongs to.
type RunKey struct {
	BatchID       string
	PeriodName    string
	EntryStrategy string
	ExitStrategy  string
	Regime        domain.RegimeLabel
}

// ComputeRun derives the per-run metrics row from a simulation result.
func ComputeRun(res *engine.Result, key RunKey, period domain.EvaluationPeriod) *domain.RunMetrics {
	m := &domain.RunMetrics{
		RunID:          res.RunID,
		BatchID:        key.BatchID,
		PeriodName:     key.PeriodName,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		EntryStrategy:  key.EntryStrategy,
		ExitStrategy:   key.ExitStrategy,
		Regime:         key.Regime,
		InitialCapital: res.InitialCapital,
		FinalEquity:    res.FinalEquity,
		DaysSimulated:  res.Days,
		TotalTrades:    len(res.Trades),
	}

	if res.InitialCapital > 0 {
		m.TotalReturnPct = (res.FinalEquity - res.InitialCapital) / res.InitialCapital
	}

	equity := make([]float64, len(res.Equity))
	for i, p := range res.Equity {
		equity[i] = p.Equity
	}
	m.MaxDrawdownPct = MaxDrawdownPct(equity)

	wins := 0
	holdingSum := 0.0
	for _, t := range res.Trades {
		if t.ReturnValue > 0 {
			wins++
		}
		holdingSum += float64(t.HoldingDays)
	}
	m.WinningTrades = wins
	if len(res.Trades) > 0 {
		m.WinRate = float64(wins) / float64(len(res.Trades))
		m.AvgHoldingDays = holdingSum / float64(len(res.Trades))
	}
	return m
}

// FailedRun builds the metrics row for a run that could not complete.
// Outcome fields stay zero; only identity and the failure reason carry.
func FailedRun(runID string, key RunKey, period domain.EvaluationPeriod, reason string) *domain.RunMetrics {
	return &domain.RunMetrics{
		RunID:         runID,
		BatchID:       key.BatchID,
		PeriodName:    key.PeriodName,
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
		EntryStrategy: key.EntryStrategy,
		ExitStrategy:  key.ExitStrategy,
		Regime:        key.Regime,
		Failed:        true,
		FailureReason: reason,
	}
}

// MaxDrawdownPct returns the worst peak-to-trough decline of an equity
// curve as a positive fraction of the peak. Values must be in
// chronological order.
func MaxDrawdownPct(equity []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Stddev returns the sample standard deviation (n-1 denominator),
// 0 when fewer than two samples exist.
func Stddev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile returns the p-th percentile (p in [0,1]) with linear
// interpolation. The input is copied and sorted.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
