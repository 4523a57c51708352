package clickhouse

import (
	"context"
	"fmt"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars for one instrument. Fails entire batch
// on duplicate (instrument_id, date). ClickHouse MergeTree does not
// enforce uniqueness, so duplicates are checked explicitly before insert.
func (s *BarStore) InsertBulk(ctx context.Context, instrumentID string, bars []domain.Bar) error {
	if instrumentID == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[time.Time]struct{}, len(bars))
	for _, b := range bars {
		d := domain.Day(b.Date)
		if _, exists := seen[d]; exists {
			return storage.ErrDuplicateKey
		}
		seen[d] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, instrumentID, domain.Day(b.Date))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_bars (
			instrument_id, date, open, high, low, close, volume, indicators
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		indicators := b.Columns
		if indicators == nil {
			indicators = map[string]float64{}
		}
		err = batch.Append(
			instrumentID, domain.Day(b.Date),
			b.Open, b.High, b.Low, b.Close, b.Volume, indicators,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by date ASC.
func (s *BarStore) GetByInstrument(ctx context.Context, instrumentID string) ([]domain.Bar, error) {
	query := `
		SELECT date, open, high, low, close, volume, indicators
		FROM daily_bars
		WHERE instrument_id = ?
		ORDER BY date ASC
	`
	rows, err := s.conn.Query(ctx, query, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("get bars by instrument: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByDateRange retrieves bars for an instrument within [start, end] (inclusive).
func (s *BarStore) GetByDateRange(ctx context.Context, instrumentID string, start, end time.Time) ([]domain.Bar, error) {
	query := `
		SELECT date, open, high, low, close, volume, indicators
		FROM daily_bars
		WHERE instrument_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := s.conn.Query(ctx, query, instrumentID, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("get bars by date range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// exists checks whether a bar already exists for (instrument_id, date).
func (s *BarStore) exists(ctx context.Context, instrumentID string, d time.Time) (bool, error) {
	query := `SELECT count() FROM daily_bars WHERE instrument_id = ? AND date = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, instrumentID, d).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows abstracts the driver row iterator for scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanBars(rows chRows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		indicators := map[string]float64{}
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &indicators); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Date = domain.Day(b.Date)
		if len(indicators) > 0 {
			b.Columns = indicators
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
