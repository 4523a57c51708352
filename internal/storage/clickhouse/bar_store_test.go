package clickhouse_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
	chstore "portfolio-backtest-lab/internal/storage/clickhouse"
)

func TestBarStoreClickhouse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewBarStore(conn)
	ctx := context.Background()

	bars := []domain.Bar{
		{Date: date("2024-01-03"), Open: 10.2, High: 10.9, Low: 10.0, Close: 10.8, Volume: 52000},
		{Date: date("2024-01-02"), Open: 9.8, High: 10.3, Low: 9.7, Close: 10.1, Volume: 48000},
	}
	require.NoError(t, store.InsertBulk(ctx, "600000", bars))

	t.Run("returns bars in date order", func(t *testing.T) {
		got, err := store.GetByInstrument(ctx, "600000")
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.True(t, got[0].Date.Equal(date("2024-01-02")))
		require.InDelta(t, 10.1, got[0].Close, 1e-9)
		require.InDelta(t, 10.8, got[1].Close, 1e-9)
	})

	t.Run("duplicate date rejected", func(t *testing.T) {
		err := store.InsertBulk(ctx, "600000", []domain.Bar{{Date: date("2024-01-02"), Close: 1}})
		require.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("same date on another instrument allowed", func(t *testing.T) {
		err := store.InsertBulk(ctx, "000001", []domain.Bar{{Date: date("2024-01-02"), Close: 20}})
		require.NoError(t, err)
	})

	t.Run("date range is inclusive", func(t *testing.T) {
		got, err := store.GetByDateRange(ctx, "600000", date("2024-01-02"), date("2024-01-02"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.True(t, got[0].Date.Equal(date("2024-01-02")))
	})
}

func TestBarStoreClickhouseIndicatorColumns(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewBarStore(conn)
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Date: date("2024-01-02"), Open: 9.8, High: 10.3, Low: 9.7, Close: 10.1, Volume: 48000,
			Columns: map[string]float64{"rsi_14": 61.5, "ma_20": 9.92},
		},
		{Date: date("2024-01-03"), Open: 10.2, High: 10.9, Low: 10.0, Close: 10.8, Volume: 52000},
	}
	require.NoError(t, store.InsertBulk(ctx, "600519", bars))

	got, err := store.GetByInstrument(ctx, "600519")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.InDelta(t, 61.5, got[0].Column("rsi_14"), 1e-9)
	require.InDelta(t, 9.92, got[0].Column("ma_20"), 1e-9)
	// A bar stored without indicators must read back NaN, same as memory.
	require.True(t, math.IsNaN(got[1].Column("rsi_14")))
}

func TestBenchmarkStoreClickhouse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewBenchmarkStore(conn)
	ctx := context.Background()

	points := []domain.BenchmarkPoint{
		{Date: date("2024-01-02"), Close: 3000},
		{Date: date("2024-01-03"), Close: 3012.5},
		{Date: date("2024-01-04"), Close: 2990},
	}
	require.NoError(t, store.InsertBulk(ctx, "csi300", points))

	got, err := store.GetByDateRange(ctx, "csi300", date("2024-01-02"), date("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.InDelta(t, 3012.5, got[1].Close, 1e-9)

	err = store.InsertBulk(ctx, "csi300", []domain.BenchmarkPoint{{Date: date("2024-01-03"), Close: 1}})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	other, err := store.GetByDateRange(ctx, "sse50", date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	require.Empty(t, other)
}
