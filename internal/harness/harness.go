// Package harness evaluates entry/exit strategy combinations across
// historical periods. Each combination runs one portfolio simulation per
// period; results are labeled with the period's market regime and ranked
// within each regime so a recommendation can be made by average rank
// across regimes.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/engine"
	"portfolio-backtest-lab/internal/idhash"
	"portfolio-backtest-lab/internal/metrics"
	"portfolio-backtest-lab/internal/observability"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/storage"
	"portfolio-backtest-lab/internal/strategy"
)

// DefaultWorkers bounds concurrent simulations when Options.Workers is
// unset.
const DefaultWorkers = 4

// Options configures a Harness.
type Options struct {
	Registry  *strategy.Registry
	Universe  UniverseSource
	Benchmark BenchmarkSource

	// Trades and Runs are optional; when set, every completed run's
	// trades and metrics row are persisted.
	Trades storage.TradeRecordStore
	Runs   storage.RunMetricsStore

	// Engine is the base simulation config. RunID and LiquidateAtEnd
	// are overridden per run.
	Engine engine.Config

	// Workers bounds concurrent simulations. Defaults to DefaultWorkers.
	Workers int

	Verbose bool
	Logger  *log.Logger
}

// BatchResult holds everything one evaluation batch produced.
type BatchResult struct {
	BatchID         string
	Runs            []*domain.RunMetrics
	Aggregates      []*domain.ComboAggregate
	Recommendations []*domain.Recommendation

	// Errors collects non-fatal problems (persistence failures,
	// unavailable data). Individual run failures are recorded on the
	// run rows themselves.
	Errors []string
}

// Harness runs evaluation batches. The instrument universe and benchmark
// regime for a given date range are cached for the harness's lifetime;
// safe for concurrent use.
type Harness struct {
	opts Options

	mu        sync.Mutex
	universes map[rangeKey]map[string]*snapshot.History
	regimes   map[rangeKey]domain.RegimeLabel
}

type rangeKey struct {
	start time.Time
	end   time.Time
}

// New creates a Harness. Registry and Universe are required; Benchmark
// is optional and its absence labels every period unknown.
func New(opts Options) (*Harness, error) {
	if opts.Registry == nil {
		return nil, errors.New("harness: strategy registry is required")
	}
	if opts.Universe == nil {
		return nil, errors.New("harness: universe source is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Harness{
		opts:      opts,
		universes: make(map[rangeKey]map[string]*snapshot.History),
		regimes:   make(map[rangeKey]domain.RegimeLabel),
	}, nil
}

// runJob is one combination scheduled for simulation.
type runJob struct {
	period   domain.EvaluationPeriod
	entry    string
	exit     string
	universe map[string]*snapshot.History
	regime   domain.RegimeLabel

	// loadErr marks the period's universe as unavailable; the job is
	// recorded as failed without simulating.
	loadErr error
}

// RunBatch evaluates every period x entry x exit combination. Simulations
// fan out across Workers goroutines; a panicking or failing run is
// recorded as a failed metrics row and the batch continues.
func (h *Harness) RunBatch(ctx context.Context, batchID string, periods []domain.EvaluationPeriod, entries, exits []string) (*BatchResult, error) {
	if batchID == "" {
		return nil, errors.New("harness: batch id is required")
	}
	if len(periods) == 0 || len(entries) == 0 || len(exits) == 0 {
		return nil, errors.New("harness: periods, entries and exits must all be non-empty")
	}

	started := time.Now()
	result := &BatchResult{BatchID: batchID}

	// Resolve universes and regimes up front so the caches are fully
	// populated before the fan-out begins.
	jobs := make([]runJob, 0, len(periods)*len(entries)*len(exits))
	for _, period := range periods {
		universe, regime, err := h.resolvePeriod(ctx, period)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("period %s: %v", period.Name, err))
		}
		for _, entry := range entries {
			for _, exit := range exits {
				jobs = append(jobs, runJob{
					period:   period,
					entry:    entry,
					exit:     exit,
					universe: universe,
					regime:   regime,
					loadErr:  err,
				})
			}
		}
	}

	h.log("batch %s: %d runs across %d periods, %d workers", batchID, len(jobs), len(periods), h.opts.Workers)

	outcomes := make([]runOutcome, len(jobs))
	sem := make(chan struct{}, h.opts.Workers)
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = h.runOne(ctx, batchID, jobs[i])
		}(i)
	}
	wg.Wait()

	runs := make([]*domain.RunMetrics, len(outcomes))
	for i, out := range outcomes {
		runs[i] = out.metrics
		if err := h.persist(ctx, out); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}
	result.Runs = runs
	result.Aggregates = metrics.Aggregate(runs)
	result.Recommendations = metrics.Recommend(result.Aggregates)
	observability.RecordBatch(len(result.Errors) > 0, time.Since(started).Seconds())

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// resolvePeriod returns the cached universe and regime for a period,
// loading both on first use.
func (h *Harness) resolvePeriod(ctx context.Context, period domain.EvaluationPeriod) (map[string]*snapshot.History, domain.RegimeLabel, error) {
	key := rangeKey{start: domain.Day(period.Start), end: domain.Day(period.End)}

	h.mu.Lock()
	universe, haveUniverse := h.universes[key]
	regime, haveRegime := h.regimes[key]
	h.mu.Unlock()
	observability.RecordUniverseLoad(haveUniverse)
	observability.RecordBenchmarkLoad(haveRegime)

	if !haveUniverse {
		var err error
		universe, err = h.opts.Universe.LoadUniverse(ctx, period.Start, period.End)
		if err != nil {
			return nil, domain.RegimeUnknown, fmt.Errorf("load universe: %w", err)
		}
		h.mu.Lock()
		h.universes[key] = universe
		h.mu.Unlock()
	}

	if !haveRegime {
		regime = h.classify(ctx, period)
		h.mu.Lock()
		h.regimes[key] = regime
		h.mu.Unlock()
	}
	return universe, regime, nil
}

// classify labels a period by benchmark return, degrading to unknown
// when no benchmark data covers the range.
func (h *Harness) classify(ctx context.Context, period domain.EvaluationPeriod) domain.RegimeLabel {
	if h.opts.Benchmark == nil {
		return domain.RegimeUnknown
	}
	returnPct, err := h.opts.Benchmark.Return(ctx, period.Start, period.End)
	if err != nil {
		if !errors.Is(err, snapshot.ErrDataUnavailable) {
			h.log("benchmark for %s: %v", period.Name, err)
		}
		return domain.RegimeUnknown
	}
	return ClassifyRegime(returnPct)
}

// runOutcome pairs a run's metrics row with the trades it produced.
type runOutcome struct {
	metrics *domain.RunMetrics
	trades  []*domain.TradeRecord
}

// runOne simulates one combination. Panics and errors never escape; they
// produce a failed metrics row instead.
func (h *Harness) runOne(ctx context.Context, batchID string, job runJob) (out runOutcome) {
	runID := idhash.ComputeRunID(job.period.Name, job.period.Start, job.period.End, job.entry, job.exit)
	key := metrics.RunKey{
		BatchID:       batchID,
		PeriodName:    job.period.Name,
		EntryStrategy: job.entry,
		ExitStrategy:  job.exit,
		Regime:        job.regime,
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			h.log("run %s panicked: %v", runID, r)
			out = runOutcome{metrics: metrics.FailedRun(runID, key, job.period, fmt.Sprintf("panic: %v", r))}
		}
		if out.metrics != nil {
			observability.RecordRun(out.metrics.Failed, time.Since(started).Seconds())
		}
	}()

	if job.loadErr != nil {
		return runOutcome{metrics: metrics.FailedRun(runID, key, job.period, job.loadErr.Error())}
	}

	entry, err := h.opts.Registry.NewEntry(job.entry)
	if err != nil {
		return runOutcome{metrics: metrics.FailedRun(runID, key, job.period, err.Error())}
	}
	exit, err := h.opts.Registry.NewExit(job.exit)
	if err != nil {
		return runOutcome{metrics: metrics.FailedRun(runID, key, job.period, err.Error())}
	}

	cfg := h.opts.Engine
	cfg.RunID = runID
	cfg.LiquidateAtEnd = true

	eng, err := engine.NewPortfolioEngine(entry, exit, cfg)
	if err != nil {
		return runOutcome{metrics: metrics.FailedRun(runID, key, job.period, err.Error())}
	}

	res, err := eng.Run(ctx, job.universe)
	if err != nil {
		return runOutcome{metrics: metrics.FailedRun(runID, key, job.period, err.Error())}
	}

	h.log("run %s: %d trades, final equity %.2f", runID, len(res.Trades), res.FinalEquity)
	observability.RecordRunOutput(len(res.Trades), res.StrategyErrors, res.DiscardedOrders)
	return runOutcome{metrics: metrics.ComputeRun(res, key, job.period), trades: res.Trades}
}

// persist writes a finished run's trades and metrics row to the
// configured stores.
func (h *Harness) persist(ctx context.Context, out runOutcome) error {
	if out.metrics == nil {
		return nil
	}
	if h.opts.Trades != nil && len(out.trades) > 0 {
		trades := make([]*domain.TradeRecord, len(out.trades))
		copy(trades, out.trades)
		sort.Slice(trades, func(i, j int) bool {
			if !trades[i].EntryDate.Equal(trades[j].EntryDate) {
				return trades[i].EntryDate.Before(trades[j].EntryDate)
			}
			return trades[i].TradeID < trades[j].TradeID
		})
		if err := h.opts.Trades.InsertBulk(ctx, trades); err != nil {
			return fmt.Errorf("persist trades for run %s: %w", out.metrics.RunID, err)
		}
	}
	if h.opts.Runs != nil {
		if err := h.opts.Runs.Insert(ctx, out.metrics); err != nil {
			return fmt.Errorf("persist metrics for run %s: %w", out.metrics.RunID, err)
		}
	}
	return nil
}

// log writes a verbose progress message.
func (h *Harness) log(format string, args ...interface{}) {
	if !h.opts.Verbose {
		return
	}
	if h.opts.Logger != nil {
		h.opts.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
