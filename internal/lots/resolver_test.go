package lots

import "testing"

func TestResolver_LotSizeDefaultAndOverride(t *testing.T) {
	r := NewResolver(100)

	if got := r.LotSize("AAA"); got != 100 {
		t.Errorf("default lot = %d, want 100", got)
	}

	r.SetLotSize("BBB", 200)
	if got := r.LotSize("BBB"); got != 200 {
		t.Errorf("override lot = %d, want 200", got)
	}

	// Non-positive overrides are ignored
	r.SetLotSize("BBB", 0)
	if got := r.LotSize("BBB"); got != 200 {
		t.Errorf("lot after zero override = %d, want 200", got)
	}
}

func TestResolver_BuyableQuantity(t *testing.T) {
	r := NewResolver(100)

	tests := []struct {
		name  string
		cash  float64
		price float64
		want  int64
	}{
		{"sub-lot cash", 999, 10, 0},
		{"rounds down to lot multiple", 2050, 10, 200},
		{"exact lot", 1000, 10, 100},
		{"zero price", 1000, 0, 0},
		{"negative price", 1000, -5, 0},
		{"zero cash", 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.BuyableQuantity("AAA", tt.cash, tt.price)
			if got != tt.want {
				t.Errorf("BuyableQuantity(%v, %v) = %d, want %d", tt.cash, tt.price, got, tt.want)
			}
		})
	}
}

func TestResolver_SellQuantity(t *testing.T) {
	r := NewResolver(100)

	tests := []struct {
		name     string
		held     int64
		fraction float64
		want     int64
	}{
		{"half rounds up capped at held", 100, 0.5, 100},
		{"half of two lots", 200, 0.5, 100},
		{"full exit bypasses rounding", 150, 1.0, 150},
		{"near-full treated as full", 150, 0.999, 150},
		{"small fraction forces one lot", 1000, 0.01, 100},
		{"cap at held", 100, 0.9, 100},
		{"zero fraction sells nothing", 100, 0, 0},
		{"nothing held", 0, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.SellQuantity("AAA", tt.held, tt.fraction)
			if got != tt.want {
				t.Errorf("SellQuantity(%d, %v) = %d, want %d", tt.held, tt.fraction, got, tt.want)
			}
		})
	}
}

func TestResolver_SellQuantityOddHolding(t *testing.T) {
	r := NewResolver(100)

	// Full exit returns the odd remainder untouched.
	if got := r.SellQuantity("AAA", 250, 1.0); got != 250 {
		t.Errorf("full exit of odd holding = %d, want 250", got)
	}

	// Partial exit rounds up to lot multiple within the holding.
	if got := r.SellQuantity("AAA", 250, 0.5); got != 200 {
		t.Errorf("half of 250 = %d, want 200", got)
	}
}
