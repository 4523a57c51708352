package storage

import (
	"context"
	"time"

	"portfolio-backtest-lab/internal/domain"
)

// InstrumentStore provides access to instruments storage.
type InstrumentStore interface {
	// Insert adds a new instrument. Returns ErrDuplicateKey if instrument_id exists.
	Insert(ctx context.Context, inst *domain.Instrument) error

	// GetByID retrieves an instrument by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, instrumentID string) (*domain.Instrument, error)

	// GetAll retrieves all instruments ordered by instrument_id ASC.
	GetAll(ctx context.Context) ([]*domain.Instrument, error)
}

// BarStore provides access to daily bar storage.
type BarStore interface {
	// InsertBulk adds multiple bars for one instrument. Fails entire
	// batch on duplicate (instrument_id, date).
	InsertBulk(ctx context.Context, instrumentID string, bars []domain.Bar) error

	// GetByInstrument retrieves all bars for an instrument, ordered by date ASC.
	GetByInstrument(ctx context.Context, instrumentID string) ([]domain.Bar, error)

	// GetByDateRange retrieves bars for an instrument within [start, end] (inclusive).
	GetByDateRange(ctx context.Context, instrumentID string, start, end time.Time) ([]domain.Bar, error)
}

// BenchmarkStore provides access to benchmark index storage.
type BenchmarkStore interface {
	// InsertBulk adds multiple points for one benchmark. Fails entire
	// batch on duplicate (benchmark_id, date).
	InsertBulk(ctx context.Context, benchmarkID string, points []domain.BenchmarkPoint) error

	// GetByDateRange retrieves benchmark points within [start, end]
	// (inclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, benchmarkID string, start, end time.Time) ([]domain.BenchmarkPoint, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades for a run, ordered by entry_date ASC, trade_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// RunMetricsStore provides access to run_metrics storage.
type RunMetricsStore interface {
	// Insert adds a new run metrics row. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, m *domain.RunMetrics) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunMetrics, error)

	// ListByBatch retrieves all runs of a batch, ordered by run_id ASC.
	ListByBatch(ctx context.Context, batchID string) ([]*domain.RunMetrics, error)
}
