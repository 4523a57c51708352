package domain

import (
	"math"
	"time"
)

// Bar is one daily OHLCV row for an instrument, plus arbitrary indicator
// columns. Missing columns read as NaN so strategies can tolerate sparse
// indicator coverage without nil checks.
type Bar struct {
	Date    time.Time // normalized to UTC midnight
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
	Columns map[string]float64 // indicator columns, may be nil
}

// Column returns the named indicator value, or NaN when absent.
func (b *Bar) Column(name string) float64 {
	if b.Columns == nil {
		return math.NaN()
	}
	v, ok := b.Columns[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// AuxRow is one row of a lower-frequency auxiliary table (fund flow,
// fundamentals). Columns are NaN-tolerant like Bar columns.
type AuxRow struct {
	Date    time.Time
	Columns map[string]float64
}

// Column returns the named value, or NaN when absent.
func (r *AuxRow) Column(name string) float64 {
	if r.Columns == nil {
		return math.NaN()
	}
	v, ok := r.Columns[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// EarningsEvent is one entry of an instrument's earnings calendar.
type EarningsEvent struct {
	Date time.Time
}

// BenchmarkPoint is one daily close of the benchmark index.
type BenchmarkPoint struct {
	Date  time.Time
	Close float64
}

// Day normalizes a timestamp to UTC midnight. All simulated dates are
// compared at day granularity.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
