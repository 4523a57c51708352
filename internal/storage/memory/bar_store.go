package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Bar // keyed by instrument_id, kept sorted by date
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string][]domain.Bar),
	}
}

// InsertBulk adds multiple bars for one instrument. Fails entire batch
// on duplicate (instrument_id, date).
func (s *BarStore) InsertBulk(_ context.Context, instrumentID string, bars []domain.Bar) error {
	if instrumentID == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[time.Time]struct{}, len(s.data[instrumentID]))
	for _, b := range s.data[instrumentID] {
		existing[b.Date] = struct{}{}
	}

	// First pass: check duplicates (existing + intra-batch).
	batchDates := make(map[time.Time]struct{}, len(bars))
	for _, b := range bars {
		d := domain.Day(b.Date)
		if _, exists := existing[d]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchDates[d]; exists {
			return storage.ErrDuplicateKey
		}
		batchDates[d] = struct{}{}
	}

	// Second pass: insert all, re-sorting once. The bar is a value copy;
	// the Columns map still needs cloning to detach from the caller.
	for _, b := range bars {
		b.Date = domain.Day(b.Date)
		b.Columns = cloneColumns(b.Columns)
		s.data[instrumentID] = append(s.data[instrumentID], b)
	}
	sort.Slice(s.data[instrumentID], func(i, j int) bool {
		return s.data[instrumentID][i].Date.Before(s.data[instrumentID][j].Date)
	})

	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by date ASC.
func (s *BarStore) GetByInstrument(_ context.Context, instrumentID string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Bar, len(s.data[instrumentID]))
	copy(result, s.data[instrumentID])
	for i := range result {
		result[i].Columns = cloneColumns(result[i].Columns)
	}
	return result, nil
}

// GetByDateRange retrieves bars for an instrument within [start, end] (inclusive).
func (s *BarStore) GetByDateRange(_ context.Context, instrumentID string, start, end time.Time) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = domain.Day(start), domain.Day(end)
	var result []domain.Bar
	for _, b := range s.data[instrumentID] {
		if !b.Date.Before(start) && !b.Date.After(end) {
			b.Columns = cloneColumns(b.Columns)
			result = append(result, b)
		}
	}
	return result, nil
}

// cloneColumns copies an indicator map, preserving nil.
func cloneColumns(cols map[string]float64) map[string]float64 {
	if cols == nil {
		return nil
	}
	out := make(map[string]float64, len(cols))
	for k, v := range cols {
		out[k] = v
	}
	return out
}

var _ storage.BarStore = (*BarStore)(nil)
