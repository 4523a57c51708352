package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// Loader ingests CSV series into the storage layer.
type Loader struct {
	instrumentStore storage.InstrumentStore
	barStore        storage.BarStore
	benchmarkStore  storage.BenchmarkStore
	logger          *log.Logger
}

// LoaderOptions contains configuration for creating a Loader.
type LoaderOptions struct {
	InstrumentStore storage.InstrumentStore
	BarStore        storage.BarStore
	BenchmarkStore  storage.BenchmarkStore
	Logger          *log.Logger
}

// NewLoader creates a new CSV loader.
func NewLoader(opts LoaderOptions) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{
		instrumentStore: opts.InstrumentStore,
		barStore:        opts.BarStore,
		benchmarkStore:  opts.BenchmarkStore,
		logger:          logger,
	}
}

// LoadBarFile ingests one instrument's daily bars from a CSV file and
// registers the instrument if it is not yet known. An already-known
// instrument is not an error; already-known bars are.
func (l *Loader) LoadBarFile(ctx context.Context, instrumentID, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := ParseBars(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(bars) == 0 {
		return 0, nil
	}

	err = l.instrumentStore.Insert(ctx, &domain.Instrument{InstrumentID: instrumentID, Name: instrumentID})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, fmt.Errorf("register instrument %s: %w", instrumentID, err)
	}

	if err := l.barStore.InsertBulk(ctx, instrumentID, bars); err != nil {
		return 0, fmt.Errorf("store bars for %s: %w", instrumentID, err)
	}
	l.logger.Printf("loaded %d bars for %s", len(bars), instrumentID)
	return len(bars), nil
}

// LoadBenchmarkFile ingests a benchmark series from a CSV file.
func (l *Loader) LoadBenchmarkFile(ctx context.Context, benchmarkID, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	points, err := ParseBenchmark(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(points) == 0 {
		return 0, nil
	}

	if err := l.benchmarkStore.InsertBulk(ctx, benchmarkID, points); err != nil {
		return 0, fmt.Errorf("store benchmark %s: %w", benchmarkID, err)
	}
	l.logger.Printf("loaded %d benchmark points for %s", len(points), benchmarkID)
	return len(points), nil
}

// LoadDirectory ingests every *.csv file in dir as one instrument's bars,
// named by the file's base name. Returns the number of files loaded.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, err := l.LoadBarFile(ctx, id, filepath.Join(dir, entry.Name())); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
