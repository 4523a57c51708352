package ingestion

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"portfolio-backtest-lab/internal/storage/memory"
)

const sampleBars = `date,open,high,low,close,volume,rsi_14
2024-01-02,10.0,10.5,9.8,10.2,150000,55.2
2024-01-03,10.2,10.9,10.1,10.8,180000,
2024-01-04,10.8,11.0,10.5,10.6,120000,61.0
`

func TestParseBars(t *testing.T) {
	bars, err := ParseBars(strings.NewReader(sampleBars))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(bars))
	}

	first := bars[0]
	if !first.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", first.Date)
	}
	if first.Open != 10.0 || first.Close != 10.2 || first.Volume != 150000 {
		t.Errorf("ohlcv = %+v", first)
	}
	if got := first.Column("rsi_14"); got != 55.2 {
		t.Errorf("rsi_14 = %v, want 55.2", got)
	}
	// Empty indicator cell reads back as NaN.
	if got := bars[1].Column("rsi_14"); !math.IsNaN(got) {
		t.Errorf("missing rsi_14 = %v, want NaN", got)
	}
}

func TestParseBarsMissingColumn(t *testing.T) {
	_, err := ParseBars(strings.NewReader("date,open,high,low,close\n2024-01-02,1,1,1,1\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("err = %v, want ErrMissingColumn", err)
	}
}

func TestParseBarsBadNumber(t *testing.T) {
	_, err := ParseBars(strings.NewReader("date,open,high,low,close,volume\n2024-01-02,x,1,1,1,1\n"))
	if err == nil || !strings.Contains(err.Error(), "open") {
		t.Errorf("err = %v, want open parse failure", err)
	}
}

func TestParseBenchmark(t *testing.T) {
	points, err := ParseBenchmark(strings.NewReader("date,close\n2024-01-02,1000\n2024-01-03,1010.5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 || points[1].Close != 1010.5 {
		t.Errorf("points = %+v", points)
	}
}

func TestLoaderLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"AAA.csv", "BBB.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sampleBars), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-CSV files are skipped.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	instruments := memory.NewInstrumentStore()
	barStore := memory.NewBarStore()
	loader := NewLoader(LoaderOptions{
		InstrumentStore: instruments,
		BarStore:        barStore,
		BenchmarkStore:  memory.NewBenchmarkStore(),
	})

	loaded, err := loader.LoadDirectory(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != 2 {
		t.Fatalf("loaded = %d, want 2", loaded)
	}

	all, err := instruments.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].InstrumentID != "AAA" || all[1].InstrumentID != "BBB" {
		t.Errorf("instruments = %+v", all)
	}
	bars, err := barStore.GetByInstrument(ctx, "AAA")
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 3 {
		t.Errorf("AAA bars = %d, want 3", len(bars))
	}
}

func TestLoaderBenchmarkFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.csv")
	if err := os.WriteFile(path, []byte("date,close\n2024-01-02,1000\n2024-01-03,1020\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	store := memory.NewBenchmarkStore()
	loader := NewLoader(LoaderOptions{
		InstrumentStore: memory.NewInstrumentStore(),
		BarStore:        memory.NewBarStore(),
		BenchmarkStore:  store,
	})

	n, err := loader.LoadBenchmarkFile(ctx, "BENCH", path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	points, err := store.GetByDateRange(ctx, "BENCH",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Errorf("stored points = %d, want 2", len(points))
	}
}
