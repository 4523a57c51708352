package memory

import (
	"context"
	"errors"
	"testing"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/storage"
)

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []domain.Bar{
		{Date: date("2024-01-03"), Open: 10, High: 11, Low: 9.5, Close: 10.8, Volume: 5000},
		{Date: date("2024-01-02"), Open: 9.8, High: 10.2, Low: 9.6, Close: 10, Volume: 4200},
	}
	if err := store.InsertBulk(ctx, "600000", bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByInstrument(ctx, "600000")
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(got))
	}
	// Returned in date order regardless of insert order.
	if !got[0].Date.Equal(date("2024-01-02")) {
		t.Errorf("first bar = %s, want 2024-01-02", got[0].Date.Format("2006-01-02"))
	}
}

func TestBarStore_DuplicateDate(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "600000", []domain.Bar{{Date: date("2024-01-02"), Close: 10}}); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "600000", []domain.Bar{
		{Date: date("2024-01-03"), Close: 11},
		{Date: date("2024-01-02"), Close: 12},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByInstrument(ctx, "600000")
	if len(got) != 1 {
		t.Errorf("failed batch must not leave partial rows, have %d bars", len(got))
	}
}

func TestBarStore_InstrumentsIsolated(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	// Same date across instruments is not a duplicate.
	if err := store.InsertBulk(ctx, "600000", []domain.Bar{{Date: date("2024-01-02"), Close: 10}}); err != nil {
		t.Fatalf("InsertBulk 600000 failed: %v", err)
	}
	if err := store.InsertBulk(ctx, "000001", []domain.Bar{{Date: date("2024-01-02"), Close: 20}}); err != nil {
		t.Fatalf("InsertBulk 000001 failed: %v", err)
	}
}

func TestBarStore_ColumnsDetached(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	cols := map[string]float64{"rsi_14": 61.5}
	if err := store.InsertBulk(ctx, "600000", []domain.Bar{
		{Date: date("2024-01-02"), Close: 10, Columns: cols},
	}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Mutating the caller's map after insert must not reach the store.
	cols["rsi_14"] = 0

	got, err := store.GetByInstrument(ctx, "600000")
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}
	if v := got[0].Column("rsi_14"); v != 61.5 {
		t.Errorf("stored rsi_14 = %v, want 61.5", v)
	}

	// Mutating a returned map must not reach the store either.
	got[0].Columns["rsi_14"] = -1
	again, _ := store.GetByDateRange(ctx, "600000", date("2024-01-02"), date("2024-01-02"))
	if v := again[0].Column("rsi_14"); v != 61.5 {
		t.Errorf("rsi_14 after reader mutation = %v, want 61.5", v)
	}
}

func TestBarStore_GetByDateRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	var bars []domain.Bar
	for _, d := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		bars = append(bars, domain.Bar{Date: date(d), Close: 10})
	}
	if err := store.InsertBulk(ctx, "600000", bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByDateRange(ctx, "600000", date("2024-01-03"), date("2024-01-04"))
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 bars in inclusive range, got %d", len(got))
	}
}
