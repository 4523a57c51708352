package metrics

import (
	"context"
	"errors"
	"sort"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// ErrNoRuns is returned when no runs are available for aggregation.
var ErrNoRuns = errors.New("no runs available for aggregation")

// Aggregate groups run metrics by (entry, exit, regime), averages the
// outcomes of successful runs, and ranks the groups within each regime
// by average return descending. Failed runs count toward FailedRuns but
// contribute no outcome values.
func Aggregate(runs []*domain.RunMetrics) []*domain.ComboAggregate {
	type comboKey struct {
		entry  string
		exit   string
		regime domain.RegimeLabel
	}
	groups := make(map[comboKey][]*domain.RunMetrics)
	for _, r := range runs {
		k := comboKey{entry: r.EntryStrategy, exit: r.ExitStrategy, regime: r.Regime}
		groups[k] = append(groups[k], r)
	}

	out := make([]*domain.ComboAggregate, 0, len(groups))
	for k, members := range groups {
		agg := &domain.ComboAggregate{
			EntryStrategy: k.entry,
			ExitStrategy:  k.exit,
			Regime:        k.regime,
		}
		var returns, drawdowns, winRates, trades []float64
		for _, r := range members {
			if r.Failed {
				agg.FailedRuns++
				continue
			}
			agg.Runs++
			returns = append(returns, r.TotalReturnPct)
			drawdowns = append(drawdowns, r.MaxDrawdownPct)
			winRates = append(winRates, r.WinRate)
			trades = append(trades, float64(r.TotalTrades))
		}
		agg.AvgReturn = Mean(returns)
		agg.MedReturn = Percentile(returns, 0.50)
		agg.StdReturn = Stddev(returns)
		agg.AvgDrawdown = Mean(drawdowns)
		agg.AvgWinRate = Mean(winRates)
		agg.AvgTrades = Mean(trades)
		out = append(out, agg)
	}

	// Deterministic order: regime, then return descending, then names.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Regime != b.Regime {
			return a.Regime < b.Regime
		}
		if a.AvgReturn != b.AvgReturn {
			return a.AvgReturn > b.AvgReturn
		}
		if a.EntryStrategy != b.EntryStrategy {
			return a.EntryStrategy < b.EntryStrategy
		}
		return a.ExitStrategy < b.ExitStrategy
	})

	rank := 0
	var prevRegime domain.RegimeLabel
	for i, agg := range out {
		if i == 0 || agg.Regime != prevRegime {
			rank = 0
			prevRegime = agg.Regime
		}
		rank++
		agg.Rank = rank
	}
	return out
}

// Recommend orders entry/exit combinations by their average rank across
// the known regimes they appear in, best first. Runs under an unknown
// regime are excluded: an unclassifiable market tells nothing about
// regime fitness.
func Recommend(aggs []*domain.ComboAggregate) []*domain.Recommendation {
	type comboKey struct {
		entry string
		exit  string
	}
	rankSums := make(map[comboKey]float64)
	counts := make(map[comboKey]int)
	for _, agg := range aggs {
		if agg.Regime == domain.RegimeUnknown || agg.Runs == 0 {
			continue
		}
		k := comboKey{entry: agg.EntryStrategy, exit: agg.ExitStrategy}
		rankSums[k] += float64(agg.Rank)
		counts[k]++
	}

	out := make([]*domain.Recommendation, 0, len(counts))
	for k, n := range counts {
		out = append(out, &domain.Recommendation{
			EntryStrategy: k.entry,
			ExitStrategy:  k.exit,
			AvgRank:       rankSums[k] / float64(n),
			Regimes:       n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AvgRank != b.AvgRank {
			return a.AvgRank < b.AvgRank
		}
		if a.Regimes != b.Regimes {
			return a.Regimes > b.Regimes
		}
		if a.EntryStrategy != b.EntryStrategy {
			return a.EntryStrategy < b.EntryStrategy
		}
		return a.ExitStrategy < b.ExitStrategy
	})
	return out
}

// Aggregator computes batch aggregates from persisted run metrics.
type Aggregator struct {
	runStore storage.RunMetricsStore
}

// NewAggregator creates a store-backed aggregator.
func NewAggregator(runStore storage.RunMetricsStore) *Aggregator {
	return &Aggregator{runStore: runStore}
}

// AggregateBatch loads a batch's runs and returns its ranked combo
// aggregates. Returns ErrNoRuns for an empty batch.
func (a *Aggregator) AggregateBatch(ctx context.Context, batchID string) ([]*domain.ComboAggregate, error) {
	runs, err := a.runStore.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return Aggregate(runs), nil
}
