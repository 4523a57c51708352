package harness

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/engine"
	"portfolio-backtest-lab/internal/idhash"
	"portfolio-backtest-lab/internal/lots"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/storage/memory"
	"portfolio-backtest-lab/internal/strategy"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func bars(opens ...float64) []domain.Bar {
	out := make([]domain.Bar, len(opens))
	start := day("2024-01-01")
	for i, o := range opens {
		out[i] = domain.Bar{
			Date:  start.AddDate(0, 0, i),
			Open:  o,
			High:  o * 1.05,
			Low:   o * 0.95,
			Close: o * 1.02,
		}
	}
	return out
}

func testUniverse() map[string]*snapshot.History {
	return map[string]*snapshot.History{
		"AAA": {InstrumentID: "AAA", Bars: bars(10, 11, 12, 13)},
		"BBB": {InstrumentID: "BBB", Bars: bars(20, 21, 22, 23)},
	}
}

type fakeUniverse struct {
	mu       sync.Mutex
	calls    int
	universe map[string]*snapshot.History
	err      error
}

func (f *fakeUniverse) LoadUniverse(_ context.Context, _, _ time.Time) (map[string]*snapshot.History, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.universe, nil
}

type fakeBenchmark struct {
	mu    sync.Mutex
	calls int
	pct   float64
	err   error
}

func (f *fakeBenchmark) Return(_ context.Context, _, _ time.Time) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.pct, nil
}

// alwaysBuyEntry buys every instrument it sees.
type alwaysBuyEntry struct{}

func (alwaysBuyEntry) Evaluate(_ *snapshot.Snapshot) (*domain.TradingSignal, error) {
	return &domain.TradingSignal{Action: domain.ActionBuy, Confidence: 1.0, StrategyName: "always_buy"}, nil
}

func (alwaysBuyEntry) Name() string { return "always_buy" }

func testRegistry(t *testing.T) *strategy.Registry {
	t.Helper()
	reg := strategy.NewRegistry()
	if err := reg.RegisterEntry("always_buy", func() strategy.EntryStrategy { return alwaysBuyEntry{} }); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterEntry("bad_ctor", func() strategy.EntryStrategy { panic("constructor exploded") }); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterExit("hold", func() strategy.ExitStrategy { return strategy.NewStubExitStrategy() }); err != nil {
		t.Fatal(err)
	}
	return reg
}

func testPeriod() domain.EvaluationPeriod {
	return domain.EvaluationPeriod{Name: "2024H1", Start: day("2024-01-01"), End: day("2024-01-04")}
}

func TestClassifyRegime(t *testing.T) {
	cases := []struct {
		pct  float64
		want domain.RegimeLabel
	}{
		{-30, domain.RegimeBear},
		{-0.01, domain.RegimeBear},
		{0, domain.RegimeModestBull},
		{24.99, domain.RegimeModestBull},
		{25, domain.RegimeBull},
		{49.9, domain.RegimeBull},
		{50, domain.RegimeStrongBull},
		{74.9, domain.RegimeStrongBull},
		{75, domain.RegimeExtremeBull},
		{220, domain.RegimeExtremeBull},
	}
	for _, c := range cases {
		if got := ClassifyRegime(c.pct); got != c.want {
			t.Errorf("ClassifyRegime(%v) = %s, want %s", c.pct, got, c.want)
		}
	}
}

func TestHarnessRunBatch(t *testing.T) {
	trades := memory.NewTradeRecordStore()
	runs := memory.NewRunMetricsStore()

	h, err := New(Options{
		Registry:  testRegistry(t),
		Universe:  &fakeUniverse{universe: testUniverse()},
		Benchmark: &fakeBenchmark{pct: 30},
		Trades:    trades,
		Runs:      runs,
		Engine: engine.Config{
			InitialCapital: 100_000,
			Lots:           lots.NewResolver(100),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	period := testPeriod()
	res, err := h.RunBatch(context.Background(), "batch-1", []domain.EvaluationPeriod{period}, []string{"always_buy"}, []string{"hold"})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected batch errors: %v", res.Errors)
	}
	if len(res.Runs) != 1 {
		t.Fatalf("Runs = %d, want 1", len(res.Runs))
	}

	run := res.Runs[0]
	if run.Failed {
		t.Fatalf("run failed: %s", run.FailureReason)
	}
	wantID := idhash.ComputeRunID(period.Name, period.Start, period.End, "always_buy", "hold")
	if run.RunID != wantID {
		t.Errorf("RunID = %s, want %s", run.RunID, wantID)
	}
	if run.BatchID != "batch-1" {
		t.Errorf("BatchID = %s", run.BatchID)
	}
	if run.Regime != domain.RegimeBull {
		t.Errorf("Regime = %s, want %s", run.Regime, domain.RegimeBull)
	}
	if run.TotalTrades == 0 {
		t.Error("expected end-of-period liquidation to produce trades")
	}

	stored, err := runs.GetByID(context.Background(), run.RunID)
	if err != nil {
		t.Fatalf("metrics row not persisted: %v", err)
	}
	if stored.Regime != domain.RegimeBull {
		t.Errorf("persisted Regime = %s", stored.Regime)
	}
	persisted, err := trades.GetByRunID(context.Background(), run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != run.TotalTrades {
		t.Errorf("persisted %d trades, metrics say %d", len(persisted), run.TotalTrades)
	}

	if len(res.Aggregates) != 1 {
		t.Fatalf("Aggregates = %d, want 1", len(res.Aggregates))
	}
	agg := res.Aggregates[0]
	if agg.Runs != 1 || agg.Rank != 1 || agg.Regime != domain.RegimeBull {
		t.Errorf("aggregate = %+v", agg)
	}
	if len(res.Recommendations) != 1 {
		t.Fatalf("Recommendations = %d, want 1", len(res.Recommendations))
	}
	rec := res.Recommendations[0]
	if rec.EntryStrategy != "always_buy" || rec.AvgRank != 1 || rec.Regimes != 1 {
		t.Errorf("recommendation = %+v", rec)
	}
}

func TestHarnessCachesUniverseAndBenchmark(t *testing.T) {
	universe := &fakeUniverse{universe: testUniverse()}
	bench := &fakeBenchmark{pct: 10}

	h, err := New(Options{
		Registry:  testRegistry(t),
		Universe:  universe,
		Benchmark: bench,
		Engine:    engine.Config{InitialCapital: 100_000, Lots: lots.NewResolver(100)},
	})
	if err != nil {
		t.Fatal(err)
	}

	periods := []domain.EvaluationPeriod{testPeriod()}
	if _, err := h.RunBatch(context.Background(), "b1", periods, []string{"always_buy"}, []string{"hold"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.RunBatch(context.Background(), "b2", periods, []string{"always_buy"}, []string{"hold"}); err != nil {
		t.Fatal(err)
	}
	if universe.calls != 1 {
		t.Errorf("universe loaded %d times, want 1", universe.calls)
	}
	if bench.calls != 1 {
		t.Errorf("benchmark loaded %d times, want 1", bench.calls)
	}
}

func TestHarnessPanicIsolation(t *testing.T) {
	h, err := New(Options{
		Registry: testRegistry(t),
		Universe: &fakeUniverse{universe: testUniverse()},
		Engine:   engine.Config{InitialCapital: 100_000, Lots: lots.NewResolver(100)},
		Workers:  2,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.RunBatch(context.Background(), "b1", []domain.EvaluationPeriod{testPeriod()},
		[]string{"bad_ctor", "always_buy"}, []string{"hold"})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Runs) != 2 {
		t.Fatalf("Runs = %d, want 2", len(res.Runs))
	}

	var failed, ok *domain.RunMetrics
	for _, r := range res.Runs {
		if r.EntryStrategy == "bad_ctor" {
			failed = r
		} else {
			ok = r
		}
	}
	if failed == nil || !failed.Failed {
		t.Fatal("constructor panic should produce a failed run")
	}
	if !strings.Contains(failed.FailureReason, "panic") {
		t.Errorf("FailureReason = %q, want a panic marker", failed.FailureReason)
	}
	if ok == nil || ok.Failed {
		t.Error("healthy combination should still complete")
	}
}

func TestHarnessUnknownStrategyFailsRun(t *testing.T) {
	h, err := New(Options{
		Registry: testRegistry(t),
		Universe: &fakeUniverse{universe: testUniverse()},
		Engine:   engine.Config{InitialCapital: 100_000, Lots: lots.NewResolver(100)},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.RunBatch(context.Background(), "b1", []domain.EvaluationPeriod{testPeriod()},
		[]string{"no_such"}, []string{"hold"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Runs) != 1 || !res.Runs[0].Failed {
		t.Fatal("unknown strategy should produce a failed run")
	}
	if !strings.Contains(res.Runs[0].FailureReason, "no_such") {
		t.Errorf("FailureReason = %q", res.Runs[0].FailureReason)
	}
}

func TestHarnessUniverseUnavailable(t *testing.T) {
	h, err := New(Options{
		Registry: testRegistry(t),
		Universe: &fakeUniverse{err: snapshot.ErrDataUnavailable},
		Engine:   engine.Config{InitialCapital: 100_000, Lots: lots.NewResolver(100)},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.RunBatch(context.Background(), "b1", []domain.EvaluationPeriod{testPeriod()},
		[]string{"always_buy"}, []string{"hold"})
	if err != nil {
		t.Fatalf("a period without data must not abort the batch: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry for the period", res.Errors)
	}
	if len(res.Runs) != 1 || !res.Runs[0].Failed {
		t.Fatal("run over missing data should be recorded as failed")
	}
	if res.Runs[0].Regime != domain.RegimeUnknown {
		t.Errorf("Regime = %s, want unknown", res.Runs[0].Regime)
	}
}

func TestHarnessMissingBenchmarkYieldsUnknownRegime(t *testing.T) {
	h, err := New(Options{
		Registry:  testRegistry(t),
		Universe:  &fakeUniverse{universe: testUniverse()},
		Benchmark: &fakeBenchmark{err: snapshot.ErrDataUnavailable},
		Engine:    engine.Config{InitialCapital: 100_000, Lots: lots.NewResolver(100)},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.RunBatch(context.Background(), "b1", []domain.EvaluationPeriod{testPeriod()},
		[]string{"always_buy"}, []string{"hold"})
	if err != nil {
		t.Fatal(err)
	}
	run := res.Runs[0]
	if run.Failed {
		t.Fatalf("missing benchmark must not fail the run: %s", run.FailureReason)
	}
	if run.Regime != domain.RegimeUnknown {
		t.Errorf("Regime = %s, want unknown", run.Regime)
	}
	if len(res.Recommendations) != 0 {
		t.Errorf("unknown-regime-only batches produce no recommendation, got %d", len(res.Recommendations))
	}
}

func TestHarnessValidation(t *testing.T) {
	if _, err := New(Options{Universe: &fakeUniverse{}}); err == nil {
		t.Error("New without registry should fail")
	}
	if _, err := New(Options{Registry: strategy.NewRegistry()}); err == nil {
		t.Error("New without universe source should fail")
	}

	h, err := New(Options{Registry: testRegistry(t), Universe: &fakeUniverse{universe: testUniverse()}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.RunBatch(context.Background(), "", []domain.EvaluationPeriod{testPeriod()}, []string{"a"}, []string{"b"}); err == nil {
		t.Error("empty batch id should fail")
	}
	if _, err := h.RunBatch(context.Background(), "b", nil, []string{"a"}, []string{"b"}); err == nil {
		t.Error("empty periods should fail")
	}
}

func TestHarnessContextCancellation(t *testing.T) {
	h, err := New(Options{
		Registry: testRegistry(t),
		Universe: &fakeUniverse{universe: testUniverse()},
		Engine:   engine.Config{InitialCapital: 100_000, Lots: lots.NewResolver(100)},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.RunBatch(ctx, "b1", []domain.EvaluationPeriod{testPeriod()},
		[]string{"always_buy"}, []string{"hold"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res == nil {
		t.Fatal("cancelled batch should still return its partial result")
	}
}
