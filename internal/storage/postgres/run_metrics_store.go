package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// RunMetricsStore implements storage.RunMetricsStore using PostgreSQL.
type RunMetricsStore struct {
	pool *Pool
}

// NewRunMetricsStore creates a new RunMetricsStore.
func NewRunMetricsStore(pool *Pool) *RunMetricsStore {
	return &RunMetricsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunMetricsStore = (*RunMetricsStore)(nil)

const runMetricsColumns = `
	run_id, batch_id,
	period_name, period_start, period_end,
	entry_strategy, exit_strategy, regime,
	initial_capital, final_equity, total_return_pct, max_drawdown_pct,
	total_trades, winning_trades, win_rate, avg_holding_days, days_simulated,
	failed, failure_reason
`

// Insert adds a new run metrics row. Returns ErrDuplicateKey if run_id exists.
func (s *RunMetricsStore) Insert(ctx context.Context, m *domain.RunMetrics) error {
	query := `
		INSERT INTO run_metrics (
			run_id, batch_id,
			period_name, period_start, period_end,
			entry_strategy, exit_strategy, regime,
			initial_capital, final_equity, total_return_pct, max_drawdown_pct,
			total_trades, winning_trades, win_rate, avg_holding_days, days_simulated,
			failed, failure_reason
		) VALUES (
			$1, $2,
			$3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19
		)
	`

	_, err := s.pool.Exec(ctx, query,
		m.RunID, m.BatchID,
		m.PeriodName, m.PeriodStart, m.PeriodEnd,
		m.EntryStrategy, m.ExitStrategy, string(m.Regime),
		m.InitialCapital, m.FinalEquity, m.TotalReturnPct, m.MaxDrawdownPct,
		m.TotalTrades, m.WinningTrades, m.WinRate, m.AvgHoldingDays, m.DaysSimulated,
		m.Failed, m.FailureReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run metrics: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunMetricsStore) GetByID(ctx context.Context, runID string) (*domain.RunMetrics, error) {
	query := `SELECT ` + runMetricsColumns + ` FROM run_metrics WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	m, err := scanRunMetrics(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run metrics by id: %w", err)
	}
	return m, nil
}

// ListByBatch retrieves all runs of a batch, ordered by run_id ASC.
func (s *RunMetricsStore) ListByBatch(ctx context.Context, batchID string) ([]*domain.RunMetrics, error) {
	query := `
		SELECT ` + runMetricsColumns + `
		FROM run_metrics
		WHERE batch_id = $1
		ORDER BY run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list run metrics by batch: %w", err)
	}
	defer rows.Close()

	var result []*domain.RunMetrics
	for rows.Next() {
		m, err := scanRunMetrics(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run metrics row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run metrics rows: %w", err)
	}
	return result, nil
}

// scanRunMetrics scans a single row into a RunMetrics.
func scanRunMetrics(row pgx.Row) (*domain.RunMetrics, error) {
	var m domain.RunMetrics
	var regime string
	err := row.Scan(
		&m.RunID, &m.BatchID,
		&m.PeriodName, &m.PeriodStart, &m.PeriodEnd,
		&m.EntryStrategy, &m.ExitStrategy, &regime,
		&m.InitialCapital, &m.FinalEquity, &m.TotalReturnPct, &m.MaxDrawdownPct,
		&m.TotalTrades, &m.WinningTrades, &m.WinRate, &m.AvgHoldingDays, &m.DaysSimulated,
		&m.Failed, &m.FailureReason,
	)
	if err != nil {
		return nil, err
	}
	m.Regime = domain.RegimeLabel(regime)
	return &m, nil
}
