package reporting

import (
	"context"
	"sort"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/metrics"
	"portfolio-backtest-lab/internal/storage"
)

// Generator produces reports from stored run metrics.
type Generator struct {
	runStore storage.RunMetricsStore
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunMetricsStore) *Generator {
	return &Generator{
		runStore: runStore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for one batch. Returns
// metrics.ErrNoRuns when the batch has no runs.
func (g *Generator) Generate(ctx context.Context, batchID string) (*Report, error) {
	runs, err := g.runStore.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, metrics.ErrNoRuns
	}

	aggs := metrics.Aggregate(runs)

	periodSet := make(map[string]struct{})
	entrySet := make(map[string]struct{})
	exitSet := make(map[string]struct{})
	for _, r := range runs {
		periodSet[r.PeriodName] = struct{}{}
		entrySet[r.EntryStrategy] = struct{}{}
		exitSet[r.ExitStrategy] = struct{}{}
	}

	return &Report{
		GeneratedAt:     g.now(),
		BatchID:         batchID,
		PeriodCount:     len(periodSet),
		EntryCount:      len(entrySet),
		ExitCount:       len(exitSet),
		Summary:         buildSummary(runs),
		Runs:            buildRunRows(runs),
		Aggregates:      aggs,
		Recommendations: metrics.Recommend(aggs),
		Failures:        buildFailureRows(runs),
	}, nil
}

// buildSummary computes batch-wide totals from the run rows.
func buildSummary(runs []*domain.RunMetrics) BatchSummary {
	s := BatchSummary{TotalRuns: len(runs)}
	regimes := make(map[domain.RegimeLabel]int)
	for _, r := range runs {
		if r.Failed {
			s.FailedRuns++
		}
		s.TotalTrades += r.TotalTrades
		regimes[r.Regime]++

		if s.PeriodStart.IsZero() || r.PeriodStart.Before(s.PeriodStart) {
			s.PeriodStart = r.PeriodStart
		}
		if r.PeriodEnd.After(s.PeriodEnd) {
			s.PeriodEnd = r.PeriodEnd
		}
	}

	s.RegimeCounts = make([]RegimeCount, 0, len(regimes))
	for regime, n := range regimes {
		s.RegimeCounts = append(s.RegimeCounts, RegimeCount{Regime: regime, Runs: n})
	}
	sort.Slice(s.RegimeCounts, func(i, j int) bool {
		return s.RegimeCounts[i].Regime < s.RegimeCounts[j].Regime
	})
	return s
}

// buildRunRows converts metrics rows for rendering, sorted by
// (period_name, entry_strategy, exit_strategy).
func buildRunRows(runs []*domain.RunMetrics) []RunRow {
	rows := make([]RunRow, len(runs))
	for i, r := range runs {
		rows[i] = RunRow{
			RunID:          r.RunID,
			PeriodName:     r.PeriodName,
			EntryStrategy:  r.EntryStrategy,
			ExitStrategy:   r.ExitStrategy,
			Regime:         r.Regime,
			TotalReturnPct: r.TotalReturnPct,
			MaxDrawdownPct: r.MaxDrawdownPct,
			WinRate:        r.WinRate,
			TotalTrades:    r.TotalTrades,
			DaysSimulated:  r.DaysSimulated,
			Failed:         r.Failed,
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.PeriodName != b.PeriodName {
			return a.PeriodName < b.PeriodName
		}
		if a.EntryStrategy != b.EntryStrategy {
			return a.EntryStrategy < b.EntryStrategy
		}
		return a.ExitStrategy < b.ExitStrategy
	})
	return rows
}

func buildFailureRows(runs []*domain.RunMetrics) []FailureRow {
	var rows []FailureRow
	for _, r := range runs {
		if !r.Failed {
			continue
		}
		rows = append(rows, FailureRow{
			RunID:         r.RunID,
			PeriodName:    r.PeriodName,
			EntryStrategy: r.EntryStrategy,
			ExitStrategy:  r.ExitStrategy,
			Reason:        r.FailureReason,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RunID < rows[j].RunID })
	return rows
}
