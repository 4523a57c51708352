package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/engine"
	"portfolio-backtest-lab/internal/harness"
	"portfolio-backtest-lab/internal/lots"
	"portfolio-backtest-lab/internal/observability"
	"portfolio-backtest-lab/internal/ranker"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/storage"
	chstore "portfolio-backtest-lab/internal/storage/clickhouse"
	"portfolio-backtest-lab/internal/storage/memory"
	"portfolio-backtest-lab/internal/storage/migrations"
	pgstore "portfolio-backtest-lab/internal/storage/postgres"
	"portfolio-backtest-lab/internal/strategy"
)

func main() {
	// Parse flags
	batchID := flag.String("batch-id", "", "Batch identifier (required)")
	periodsFlag := flag.String("periods", "", "Evaluation periods as name=start:end, comma-separated (required)")
	entriesFlag := flag.String("entries", "buy_hold", "Entry strategy names, comma-separated")
	exitsFlag := flag.String("exits", "stub_exit", "Exit strategy names, comma-separated")
	benchmarkID := flag.String("benchmark-id", "BENCH", "Benchmark series identifier")
	workers := flag.Int("workers", harness.DefaultWorkers, "Concurrent simulation runs")

	// Engine parameters
	initialCapital := flag.Float64("initial-capital", engine.DefaultInitialCapital, "Starting cash per run")
	maxPositions := flag.Int("max-positions", engine.DefaultMaxPositions, "Maximum concurrent positions")
	maxPositionPct := flag.Float64("max-position-pct", engine.DefaultMaxPositionPct, "Per-position fraction of total value")
	rankPolicy := flag.String("rank-policy", string(ranker.PolicySimpleScore), "Ranking policy")
	lotSize := flag.Int64("lot-size", lots.DefaultLotSize, "Default lot size")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use generated demo data and in-memory stores")
	migrate := flag.Bool("migrate", false, "Run database migrations before evaluating")

	// Observability
	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (e.g. :9090)")
	verbose := flag.Bool("verbose", false, "Verbose per-run logging")

	flag.Parse()

	logger := log.New(os.Stderr, "[evaluate] ", log.LstdFlags)

	if *batchID == "" {
		logger.Fatal("--batch-id is required")
	}
	periods, err := parsePeriods(*periodsFlag)
	if err != nil {
		logger.Fatalf("invalid --periods: %v", err)
	}
	entries := splitNames(*entriesFlag)
	exits := splitNames(*exitsFlag)
	if len(entries) == 0 || len(exits) == 0 {
		logger.Fatal("--entries and --exits must both name at least one strategy")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Serve Prometheus metrics when requested
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		go func() {
			logger.Printf("Serving metrics on %s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	// Wire sources and stores
	var (
		universeSource  harness.UniverseSource
		benchmarkSource harness.BenchmarkSource
		tradeStore      storage.TradeRecordStore
		runStore        storage.RunMetricsStore
	)

	if *useMemory {
		universeSource, benchmarkSource = demoSources(periods, *benchmarkID)
		tradeStore = memory.NewTradeRecordStore()
		runStore = memory.NewRunMetricsStore()
	} else {
		if *postgresDSN == "" || *clickhouseDSN == "" {
			logger.Fatal("--postgres-dsn and --clickhouse-dsn are required when not using --use-memory")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("postgres migrations: %v", err)
			}
		}

		var conn *chstore.Conn
		if *migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, *clickhouseDSN)
		}
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		universeSource = harness.NewStoreUniverseSource(pgstore.NewInstrumentStore(pool), chstore.NewBarStore(conn))
		benchmarkSource = harness.NewStoreBenchmarkSource(chstore.NewBenchmarkStore(conn), *benchmarkID)
		tradeStore = pgstore.NewTradeRecordStore(pool)
		runStore = pgstore.NewRunMetricsStore(pool)
	}

	h, err := harness.New(harness.Options{
		Registry:  demoRegistry(),
		Universe:  universeSource,
		Benchmark: benchmarkSource,
		Trades:    tradeStore,
		Runs:      runStore,
		Engine: engine.Config{
			InitialCapital: *initialCapital,
			MaxPositions:   *maxPositions,
			MaxPositionPct: *maxPositionPct,
			RankPolicy:     ranker.Policy(*rankPolicy),
			Lots:           lots.NewResolver(*lotSize),
		},
		Workers: *workers,
		Verbose: *verbose,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("create harness: %v", err)
	}

	logger.Printf("Evaluating batch %s: %d periods x %d entries x %d exits",
		*batchID, len(periods), len(entries), len(exits))

	result, err := h.RunBatch(ctx, *batchID, periods, entries, exits)
	if err != nil {
		logger.Fatalf("batch failed: %v", err)
	}
	for _, msg := range result.Errors {
		logger.Printf("warning: %s", msg)
	}

	printBatchSummary(result)
}

// parsePeriods parses "name=start:end,name=start:end" into periods.
func parsePeriods(s string) ([]domain.EvaluationPeriod, error) {
	if s == "" {
		return nil, fmt.Errorf("at least one period is required")
	}
	var periods []domain.EvaluationPeriod
	for _, part := range strings.Split(s, ",") {
		name, window, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("%q: want name=start:end", part)
		}
		startStr, endStr, ok := strings.Cut(window, ":")
		if !ok {
			return nil, fmt.Errorf("%q: want name=start:end", part)
		}
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return nil, fmt.Errorf("%q: %v", part, err)
		}
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return nil, fmt.Errorf("%q: %v", part, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%q: end precedes start", part)
		}
		periods = append(periods, domain.EvaluationPeriod{Name: name, Start: start, End: end})
	}
	return periods, nil
}

func splitNames(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// demoRegistry registers the library stubs plus a buy-and-hold fixture.
func demoRegistry() *strategy.Registry {
	registry := strategy.NewRegistry()
	_ = registry.RegisterEntry("stub_entry", func() strategy.EntryStrategy { return strategy.NewStubEntryStrategy() })
	_ = registry.RegisterEntry("buy_hold", func() strategy.EntryStrategy { return buyHoldEntry{} })
	_ = registry.RegisterExit("stub_exit", func() strategy.ExitStrategy { return strategy.NewStubExitStrategy() })
	return registry
}

type buyHoldEntry struct{}

func (buyHoldEntry) Evaluate(_ *snapshot.Snapshot) (*domain.TradingSignal, error) {
	return &domain.TradingSignal{Action: domain.ActionBuy, Confidence: 1.0, StrategyName: "buy_hold"}, nil
}

func (buyHoldEntry) Name() string { return "buy_hold" }

// demoSources builds in-memory sources with synthetic bars and benchmark
// covering the requested periods.
func demoSources(periods []domain.EvaluationPeriod, benchmarkID string) (harness.UniverseSource, harness.BenchmarkSource) {
	ctx := context.Background()
	start, end := periods[0].Start, periods[0].End
	for _, p := range periods[1:] {
		if p.Start.Before(start) {
			start = p.Start
		}
		if p.End.After(end) {
			end = p.End
		}
	}
	days := int(end.Sub(start).Hours()/24) + 1

	instruments := memory.NewInstrumentStore()
	barStore := memory.NewBarStore()
	benchmarks := memory.NewBenchmarkStore()

	for n, id := range []string{"DEMO_A", "DEMO_B", "DEMO_C"} {
		_ = instruments.Insert(ctx, &domain.Instrument{InstrumentID: id, Name: id})
		base := 50.0 * float64(n+1)
		bars := make([]domain.Bar, 0, days)
		for i := 0; i < days; i++ {
			open := base * (1 + 0.001*float64(i) + 0.03*math.Sin(float64(i)/7))
			bars = append(bars, domain.Bar{
				Date:   domain.Day(start.AddDate(0, 0, i)),
				Open:   open,
				High:   open * 1.01,
				Low:    open * 0.99,
				Close:  open * 1.002,
				Volume: 1_000_000,
			})
		}
		_ = barStore.InsertBulk(ctx, id, bars)
	}

	points := make([]domain.BenchmarkPoint, 0, days)
	for i := 0; i < days; i++ {
		points = append(points, domain.BenchmarkPoint{
			Date:  domain.Day(start.AddDate(0, 0, i)),
			Close: 1000 * (1 + 0.0008*float64(i)),
		})
	}
	_ = benchmarks.InsertBulk(ctx, benchmarkID, points)

	return harness.NewStoreUniverseSource(instruments, barStore),
		harness.NewStoreBenchmarkSource(benchmarks, benchmarkID)
}

// printBatchSummary outputs ranked recommendations and per-regime ranks.
func printBatchSummary(result *harness.BatchResult) {
	failed := 0
	for _, r := range result.Runs {
		if r.Failed {
			failed++
		}
	}

	fmt.Println()
	fmt.Println("=== Batch Summary ===")
	fmt.Printf("Batch:   %s\n", result.BatchID)
	fmt.Printf("Runs:    %d (%d failed)\n", len(result.Runs), failed)
	fmt.Println()

	if len(result.Recommendations) > 0 {
		fmt.Println("Recommended combinations (by average cross-regime rank):")
		for i, rec := range result.Recommendations {
			fmt.Printf("  %d. %s / %s  avg rank %.2f over %d regime(s)\n",
				i+1, rec.EntryStrategy, rec.ExitStrategy, rec.AvgRank, rec.Regimes)
		}
	} else {
		fmt.Println("No recommendation: no runs under a known regime.")
	}
	fmt.Println()

	if len(result.Aggregates) > 0 {
		fmt.Println("Per-regime ranking:")
		for _, a := range result.Aggregates {
			fmt.Printf("  [%s] #%d %s / %s  avg return %.2f%%  runs %d  failed %d\n",
				a.Regime, a.Rank, a.EntryStrategy, a.ExitStrategy,
				a.AvgReturn*100, a.Runs, a.FailedRuns)
		}
	}
}
