package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"portfolio-backtest-lab/internal/ingestion"
	chstore "portfolio-backtest-lab/internal/storage/clickhouse"
	"portfolio-backtest-lab/internal/storage/migrations"
	pgstore "portfolio-backtest-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	dataDir := flag.String("data-dir", "", "Directory of per-instrument bar CSV files")
	benchmarkCSV := flag.String("benchmark-csv", "", "Benchmark series CSV file")
	benchmarkID := flag.String("benchmark-id", "BENCH", "Benchmark series identifier")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (required)")
	migrate := flag.Bool("migrate", false, "Run database migrations before loading")
	flag.Parse()

	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	if *dataDir == "" && *benchmarkCSV == "" {
		logger.Fatal("nothing to do: provide --data-dir and/or --benchmark-csv")
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

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

	loader := ingestion.NewLoader(ingestion.LoaderOptions{
		InstrumentStore: pgstore.NewInstrumentStore(pool),
		BarStore:        chstore.NewBarStore(conn),
		BenchmarkStore:  chstore.NewBenchmarkStore(conn),
		Logger:          logger,
	})

	if *dataDir != "" {
		files, err := loader.LoadDirectory(ctx, *dataDir)
		if err != nil {
			logger.Fatalf("load %s: %v", *dataDir, err)
		}
		logger.Printf("Loaded %d instrument files from %s", files, *dataDir)
	}

	if *benchmarkCSV != "" {
		points, err := loader.LoadBenchmarkFile(ctx, *benchmarkID, *benchmarkCSV)
		if err != nil {
			logger.Fatalf("load benchmark: %v", err)
		}
		logger.Printf("Loaded %d benchmark points as %s", points, *benchmarkID)
	}
}
