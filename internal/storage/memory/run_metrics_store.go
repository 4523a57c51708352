package memory

import (
	"context"
	"sort"
	"sync"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// RunMetricsStore is an in-memory implementation of storage.RunMetricsStore.
type RunMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunMetrics // keyed by run_id
}

// NewRunMetricsStore creates a new in-memory run metrics store.
func NewRunMetricsStore() *RunMetricsStore {
	return &RunMetricsStore{
		data: make(map[string]*domain.RunMetrics),
	}
}

// Insert adds a new run metrics row. Returns ErrDuplicateKey if run_id exists.
func (s *RunMetricsStore) Insert(_ context.Context, m *domain.RunMetrics) error {
	if m == nil || m.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *m
	s.data[m.RunID] = &copy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunMetricsStore) GetByID(_ context.Context, runID string) (*domain.RunMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *m
	return &copy, nil
}

// ListByBatch retrieves all runs of a batch, ordered by run_id ASC.
func (s *RunMetricsStore) ListByBatch(_ context.Context, batchID string) ([]*domain.RunMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunMetrics
	for _, m := range s.data {
		if m.BatchID == batchID {
			copy := *m
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

var _ storage.RunMetricsStore = (*RunMetricsStore)(nil)
