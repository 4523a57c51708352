package postgres

import (
	"context"
	"fmt"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

// InstrumentStore implements storage.InstrumentStore using PostgreSQL.
type InstrumentStore struct {
	pool *Pool
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(pool *Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InstrumentStore = (*InstrumentStore)(nil)

// Insert adds a new instrument. Returns ErrDuplicateKey if instrument_id exists.
func (s *InstrumentStore) Insert(ctx context.Context, inst *domain.Instrument) error {
	query := `
		INSERT INTO instruments (instrument_id, name, lot_size)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, inst.InstrumentID, inst.Name, inst.LotSize)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert instrument: %w", err)
	}
	return nil
}

// GetByID retrieves an instrument by its ID. Returns ErrNotFound if not exists.
func (s *InstrumentStore) GetByID(ctx context.Context, instrumentID string) (*domain.Instrument, error) {
	query := `
		SELECT instrument_id, name, lot_size
		FROM instruments
		WHERE instrument_id = $1
	`

	var inst domain.Instrument
	err := s.pool.QueryRow(ctx, query, instrumentID).Scan(&inst.InstrumentID, &inst.Name, &inst.LotSize)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get instrument by id: %w", err)
	}
	return &inst, nil
}

// GetAll retrieves all instruments ordered by instrument_id ASC.
func (s *InstrumentStore) GetAll(ctx context.Context) ([]*domain.Instrument, error) {
	query := `
		SELECT instrument_id, name, lot_size
		FROM instruments
		ORDER BY instrument_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all instruments: %w", err)
	}
	defer rows.Close()

	var result []*domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.InstrumentID, &inst.Name, &inst.LotSize); err != nil {
			return nil, fmt.Errorf("scan instrument row: %w", err)
		}
		result = append(result, &inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument rows: %w", err)
	}
	return result, nil
}
