package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// BenchmarkStore is an in-memory implementation of storage.BenchmarkStore.
type BenchmarkStore struct {
	mu   sync.RWMutex
	data map[string][]domain.BenchmarkPoint // keyed by benchmark_id, kept sorted by date
}

// NewBenchmarkStore creates a new in-memory benchmark store.
func NewBenchmarkStore() *BenchmarkStore {
	return &BenchmarkStore{
		data: make(map[string][]domain.BenchmarkPoint),
	}
}

// InsertBulk adds multiple points for one benchmark. Fails entire batch
// on duplicate (benchmark_id, date).
func (s *BenchmarkStore) InsertBulk(_ context.Context, benchmarkID string, points []domain.BenchmarkPoint) error {
	if benchmarkID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[time.Time]struct{}, len(s.data[benchmarkID]))
	for _, p := range s.data[benchmarkID] {
		existing[p.Date] = struct{}{}
	}

	batchDates := make(map[time.Time]struct{}, len(points))
	for _, p := range points {
		d := domain.Day(p.Date)
		if _, exists := existing[d]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchDates[d]; exists {
			return storage.ErrDuplicateKey
		}
		batchDates[d] = struct{}{}
	}

	for _, p := range points {
		p.Date = domain.Day(p.Date)
		s.data[benchmarkID] = append(s.data[benchmarkID], p)
	}
	sort.Slice(s.data[benchmarkID], func(i, j int) bool {
		return s.data[benchmarkID][i].Date.Before(s.data[benchmarkID][j].Date)
	})

	return nil
}

// GetByDateRange retrieves benchmark points within [start, end]
// (inclusive), ordered by date ASC.
func (s *BenchmarkStore) GetByDateRange(_ context.Context, benchmarkID string, start, end time.Time) ([]domain.BenchmarkPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = domain.Day(start), domain.Day(end)
	var result []domain.BenchmarkPoint
	for _, p := range s.data[benchmarkID] {
		if !p.Date.Before(start) && !p.Date.After(end) {
			result = append(result, p)
		}
	}
	return result, nil
}

var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)
