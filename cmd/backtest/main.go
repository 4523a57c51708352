package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/engine"
	"portfolio-backtest-lab/internal/harness"
	"portfolio-backtest-lab/internal/lots"
	"portfolio-backtest-lab/internal/ranker"
	"portfolio-backtest-lab/internal/reporting"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/storage"
	chstore "portfolio-backtest-lab/internal/storage/clickhouse"
	pgstore "portfolio-backtest-lab/internal/storage/postgres"
	"portfolio-backtest-lab/internal/strategy"
)

func main() {
	// Parse flags
	startStr := flag.String("start", "", "Simulation start date, YYYY-MM-DD (required)")
	endStr := flag.String("end", "", "Simulation end date, YYYY-MM-DD (required)")
	entryName := flag.String("entry", "buy_hold", "Entry strategy name")
	exitName := flag.String("exit", "stub_exit", "Exit strategy name")

	// Engine parameters
	initialCapital := flag.Float64("initial-capital", engine.DefaultInitialCapital, "Starting cash")
	maxPositions := flag.Int("max-positions", engine.DefaultMaxPositions, "Maximum concurrent positions")
	maxPositionPct := flag.Float64("max-position-pct", engine.DefaultMaxPositionPct, "Per-position fraction of total value")
	rankPolicy := flag.String("rank-policy", string(ranker.PolicySimpleScore), "Ranking policy: simple_score, confidence_weighted, risk_adjusted, composite")
	lotSize := flag.Int64("lot-size", lots.DefaultLotSize, "Default lot size")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use generated demo data instead of databases")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	tradesCSV := flag.String("trades-csv", "", "Write trade records as CSV to this path")
	persistResult := flag.Bool("persist", false, "Persist trade records to storage")
	verbose := flag.Bool("verbose", false, "Verbose per-day logging")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *startStr == "" || *endStr == "" {
		logger.Fatal("--start and --end are required")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		logger.Fatalf("invalid --start: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		logger.Fatalf("invalid --end: %v", err)
	}
	if end.Before(start) {
		logger.Fatal("--end must not precede --start")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Load the universe
	var universe map[string]*snapshot.History
	var tradeStore storage.TradeRecordStore

	if *useMemory {
		universe = demoUniverse([]string{"DEMO_A", "DEMO_B", "DEMO_C"}, start, end)
	} else {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (instruments, trade records)")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory (daily bars)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		source := harness.NewStoreUniverseSource(pgstore.NewInstrumentStore(pool), chstore.NewBarStore(conn))
		universe, err = source.LoadUniverse(ctx, start, end)
		if err != nil {
			logger.Fatalf("load universe: %v", err)
		}
		if *persistResult {
			tradeStore = pgstore.NewTradeRecordStore(pool)
		}
	}

	// Build strategies
	registry := demoRegistry()
	entry, err := registry.NewEntry(*entryName)
	if err != nil {
		logger.Fatalf("entry strategy: %v", err)
	}
	exit, err := registry.NewExit(*exitName)
	if err != nil {
		logger.Fatalf("exit strategy: %v", err)
	}

	eng, err := engine.NewPortfolioEngine(entry, exit, engine.Config{
		InitialCapital: *initialCapital,
		MaxPositions:   *maxPositions,
		MaxPositionPct: *maxPositionPct,
		RankPolicy:     ranker.Policy(*rankPolicy),
		Lots:           lots.NewResolver(*lotSize),
		LiquidateAtEnd: true,
		Verbose:        *verbose,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("create engine: %v", err)
	}

	logger.Printf("Running backtest: %d instruments, %s..%s, entry=%s exit=%s",
		len(universe), *startStr, *endStr, *entryName, *exitName)

	result, err := eng.Run(ctx, universe)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	if tradeStore != nil && len(result.Trades) > 0 {
		if err := tradeStore.InsertBulk(ctx, result.Trades); err != nil {
			logger.Fatalf("persist trades: %v", err)
		}
		logger.Printf("Persisted %d trades", len(result.Trades))
	}

	if *tradesCSV != "" {
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderTradesCSV(result.Trades)), 0o644); err != nil {
			logger.Fatalf("write %s: %v", *tradesCSV, err)
		}
		logger.Printf("Wrote %d trades to %s", len(result.Trades), *tradesCSV)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		printResult(result)
	}
}

// demoRegistry registers the built-in strategies: the library stubs plus a
// buy-and-hold fixture so a demo run opens positions.
func demoRegistry() *strategy.Registry {
	registry := strategy.NewRegistry()
	_ = registry.RegisterEntry("stub_entry", func() strategy.EntryStrategy { return strategy.NewStubEntryStrategy() })
	_ = registry.RegisterEntry("buy_hold", func() strategy.EntryStrategy { return buyHoldEntry{} })
	_ = registry.RegisterExit("stub_exit", func() strategy.ExitStrategy { return strategy.NewStubExitStrategy() })
	return registry
}

// buyHoldEntry signals BUY on every evaluation; the engine's capacity rules
// keep it to one open position per instrument.
type buyHoldEntry struct{}

func (buyHoldEntry) Evaluate(_ *snapshot.Snapshot) (*domain.TradingSignal, error) {
	return &domain.TradingSignal{Action: domain.ActionBuy, Confidence: 1.0, StrategyName: "buy_hold"}, nil
}

func (buyHoldEntry) Name() string { return "buy_hold" }

// demoUniverse generates deterministic synthetic daily bars for a demo run.
func demoUniverse(instruments []string, start, end time.Time) map[string]*snapshot.History {
	days := int(end.Sub(start).Hours()/24) + 1
	universe := make(map[string]*snapshot.History, len(instruments))
	for n, id := range instruments {
		base := 50.0 * float64(n+1)
		bars := make([]domain.Bar, 0, days)
		for i := 0; i < days; i++ {
			drift := base * 0.001 * float64(i)
			wave := base * 0.03 * math.Sin(float64(i)/7)
			open := base + drift + wave
			closePx := open * 1.002
			bars = append(bars, domain.Bar{
				Date:   domain.Day(start.AddDate(0, 0, i)),
				Open:   open,
				High:   closePx * 1.01,
				Low:    open * 0.99,
				Close:  closePx,
				Volume: 1_000_000,
			})
		}
		universe[id] = &snapshot.History{InstrumentID: id, Bars: bars}
	}
	return universe
}

// printResult outputs a human-readable run summary.
func printResult(r *engine.Result) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Days Simulated:     %d\n", r.Days)
	fmt.Printf("Initial Capital:    %.2f\n", r.InitialCapital)
	fmt.Printf("Final Equity:       %.2f\n", r.FinalEquity)
	if r.InitialCapital > 0 {
		fmt.Printf("Total Return:       %.2f%%\n", (r.FinalEquity-r.InitialCapital)/r.InitialCapital*100)
	}
	fmt.Printf("Trades:             %d\n", len(r.Trades))
	fmt.Printf("Strategy Errors:    %d\n", r.StrategyErrors)
	fmt.Printf("Discarded Orders:   %d\n", r.DiscardedOrders)
	fmt.Println()

	if len(r.Trades) == 0 {
		return
	}
	fmt.Println("Trades:")
	for _, t := range r.Trades {
		fmt.Printf("  %s %s %6d @ %.4f -> %.4f  %s  held %dd  pnl %.2f\n",
			t.EntryDate.Format("2006-01-02"),
			padRight(t.InstrumentID, 10),
			t.Quantity, t.EntryPrice, t.ExitPrice,
			padRight(t.ExitReason, 14), t.HoldingDays, t.ReturnValue)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
