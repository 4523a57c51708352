package harness

import (
	"context"
	"errors"
	"testing"

	"portfolio-backtest-lab/internal/domain"
	"portfolio-backtest-lab/internal/snapshot"
	"portfolio-backtest-lab/internal/storage/memory"
)

func TestStoreUniverseSource(t *testing.T) {
	ctx := context.Background()
	instruments := memory.NewInstrumentStore()
	barStore := memory.NewBarStore()

	for _, id := range []string{"AAA", "BBB", "EMPTY"} {
		if err := instruments.Insert(ctx, &domain.Instrument{InstrumentID: id, Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := barStore.InsertBulk(ctx, "AAA", bars(10, 11, 12)); err != nil {
		t.Fatal(err)
	}
	if err := barStore.InsertBulk(ctx, "BBB", bars(20, 21, 22)); err != nil {
		t.Fatal(err)
	}

	src := NewStoreUniverseSource(instruments, barStore)
	universe, err := src.LoadUniverse(ctx, day("2024-01-01"), day("2024-01-03"))
	if err != nil {
		t.Fatal(err)
	}
	if len(universe) != 2 {
		t.Fatalf("universe size = %d, want 2 (instrument without bars omitted)", len(universe))
	}
	if universe["AAA"] == nil || len(universe["AAA"].Bars) != 3 {
		t.Errorf("AAA history = %+v", universe["AAA"])
	}
	if _, ok := universe["EMPTY"]; ok {
		t.Error("instrument with no bars in range must be omitted")
	}

	_, err = src.LoadUniverse(ctx, day("2030-01-01"), day("2030-01-31"))
	if !errors.Is(err, snapshot.ErrDataUnavailable) {
		t.Errorf("empty range err = %v, want ErrDataUnavailable", err)
	}
}

func TestStoreBenchmarkSource(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBenchmarkStore()
	points := []domain.BenchmarkPoint{
		{Date: day("2024-01-01"), Close: 100},
		{Date: day("2024-01-02"), Close: 115},
		{Date: day("2024-01-03"), Close: 130},
	}
	if err := store.InsertBulk(ctx, "BENCH", points); err != nil {
		t.Fatal(err)
	}

	src := NewStoreBenchmarkSource(store, "BENCH")
	pct, err := src.Return(ctx, day("2024-01-01"), day("2024-01-03"))
	if err != nil {
		t.Fatal(err)
	}
	if pct != 30 {
		t.Errorf("return = %v%%, want 30%%", pct)
	}

	// A single point cannot define a return.
	if _, err := src.Return(ctx, day("2024-01-03"), day("2024-01-03")); !errors.Is(err, snapshot.ErrDataUnavailable) {
		t.Errorf("single-point err = %v, want ErrDataUnavailable", err)
	}
	if _, err := src.Return(ctx, day("2030-01-01"), day("2030-01-02")); !errors.Is(err, snapshot.ErrDataUnavailable) {
		t.Errorf("empty-range err = %v, want ErrDataUnavailable", err)
	}
}
