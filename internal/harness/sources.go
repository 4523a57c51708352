package harness

import (
	"context"
	"fmt"
	"time"

	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/storage"
)

// UniverseSource loads the full instrument universe for a date range.
// Implementations return snapshot.ErrDataUnavailable when no instrument
// has bars in the range.
type UniverseSource interface {
	LoadUniverse(ctx context.Context, start, end time.Time) (map[string]*snapshot.History, error)
}

// BenchmarkSource reports the benchmark return over a date range, in
// percent. Implementations return snapshot.ErrDataUnavailable when the
// benchmark series does not cover the range.
type BenchmarkSource interface {
	Return(ctx context.Context, start, end time.Time) (float64, error)
}

// StoreUniverseSource loads histories from the instrument and bar stores.
type StoreUniverseSource struct {
	instruments storage.InstrumentStore
	bars        storage.BarStore
}

// NewStoreUniverseSource creates a universe source backed by storage.
func NewStoreUniverseSource(instruments storage.InstrumentStore, bars storage.BarStore) *StoreUniverseSource {
	return &StoreUniverseSource{instruments: instruments, bars: bars}
}

// LoadUniverse materializes one History per instrument that has at least
// one bar in [start, end]. Instruments with no bars in the range are
// omitted rather than failing the load.
func (s *StoreUniverseSource) LoadUniverse(ctx context.Context, start, end time.Time) (map[string]*snapshot.History, error) {
	insts, err := s.instruments.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}

	universe := make(map[string]*snapshot.History)
	for _, inst := range insts {
		bars, err := s.bars.GetByDateRange(ctx, inst.InstrumentID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", inst.InstrumentID, err)
		}
		if len(bars) == 0 {
			continue
		}
		universe[inst.InstrumentID] = &snapshot.History{
			InstrumentID: inst.InstrumentID,
			Bars:         bars,
		}
	}
	if len(universe) == 0 {
		return nil, snapshot.ErrDataUnavailable
	}
	return universe, nil
}

// StoreBenchmarkSource computes benchmark returns from stored points.
type StoreBenchmarkSource struct {
	store       storage.BenchmarkStore
	benchmarkID string
}

// NewStoreBenchmarkSource creates a benchmark source backed by storage.
func NewStoreBenchmarkSource(store storage.BenchmarkStore, benchmarkID string) *StoreBenchmarkSource {
	return &StoreBenchmarkSource{store: store, benchmarkID: benchmarkID}
}

// Return computes the percent return between the first and last benchmark
// closes inside [start, end].
func (s *StoreBenchmarkSource) Return(ctx context.Context, start, end time.Time) (float64, error) {
	points, err := s.store.GetByDateRange(ctx, s.benchmarkID, start, end)
	if err != nil {
		return 0, fmt.Errorf("load benchmark %s: %w", s.benchmarkID, err)
	}
	if len(points) < 2 {
		return 0, snapshot.ErrDataUnavailable
	}
	first, last := points[0].Close, points[len(points)-1].Close
	if first <= 0 {
		return 0, snapshot.ErrDataUnavailable
	}
	return (last - first) / first * 100, nil
}

var (
	_ UniverseSource  = (*StoreUniverseSource)(nil)
	_ BenchmarkSource = (*StoreBenchmarkSource)(nil)
)
