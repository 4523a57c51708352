package idhash

import (
	"testing"
	"time"
)

var (
	d1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
)

func TestComputeTradeID_Deterministic(t *testing.T) {
	a := ComputeTradeID("run1", "AAA", d1, d2, 100)
	b := ComputeTradeID("run1", "AAA", d1, d2, 100)

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("ID length = %d, want 64", len(a))
	}
}

func TestComputeTradeID_DistinctInputs(t *testing.T) {
	base := ComputeTradeID("run1", "AAA", d1, d2, 100)

	variants := []string{
		ComputeTradeID("run2", "AAA", d1, d2, 100),
		ComputeTradeID("run1", "BBB", d1, d2, 100),
		ComputeTradeID("run1", "AAA", d2, d2, 100),
		ComputeTradeID("run1", "AAA", d1, d2, 200),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base ID", i)
		}
	}
}

func TestComputeRunID_Deterministic(t *testing.T) {
	a := ComputeRunID("2024H1", d1, d2, "momentum", "trailing")
	b := ComputeRunID("2024H1", d1, d2, "momentum", "trailing")

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if a == ComputeRunID("2024H1", d1, d2, "momentum", "fixed") {
		t.Error("different exit strategies produced the same run ID")
	}
}
