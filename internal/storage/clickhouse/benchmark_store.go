package clickhouse

import (
	"context"
	"fmt"
	"time"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// BenchmarkStore implements storage.BenchmarkStore using ClickHouse.
type BenchmarkStore struct {
	conn *Conn
}

// NewBenchmarkStore creates a new BenchmarkStore.
func NewBenchmarkStore(conn *Conn) *BenchmarkStore {
	return &BenchmarkStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

// InsertBulk adds multiple points for one benchmark. Fails entire batch
// on duplicate (benchmark_id, date).
func (s *BenchmarkStore) InsertBulk(ctx context.Context, benchmarkID string, points []domain.BenchmarkPoint) error {
	if benchmarkID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[time.Time]struct{}, len(points))
	for _, p := range points {
		d := domain.Day(p.Date)
		if _, exists := seen[d]; exists {
			return storage.ErrDuplicateKey
		}
		seen[d] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, benchmarkID, domain.Day(p.Date))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO benchmark_points (benchmark_id, date, close)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(benchmarkID, domain.Day(p.Date), p.Close); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDateRange retrieves benchmark points within [start, end]
// (inclusive), ordered by date ASC.
func (s *BenchmarkStore) GetByDateRange(ctx context.Context, benchmarkID string, start, end time.Time) ([]domain.BenchmarkPoint, error) {
	query := `
		SELECT date, close
		FROM benchmark_points
		WHERE benchmark_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := s.conn.Query(ctx, query, benchmarkID, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("get benchmark by date range: %w", err)
	}
	defer rows.Close()

	var points []domain.BenchmarkPoint
	for rows.Next() {
		var p domain.BenchmarkPoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan benchmark row: %w", err)
		}
		p.Date = domain.Day(p.Date)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benchmark rows: %w", err)
	}
	return points, nil
}

// exists checks if a point with the given key exists.
func (s *BenchmarkStore) exists(ctx context.Context, benchmarkID string, d time.Time) (bool, error) {
	query := `SELECT count(*) FROM benchmark_points WHERE benchmark_id = ? AND date = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, benchmarkID, d).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
