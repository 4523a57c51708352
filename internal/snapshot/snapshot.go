// Package snapshot provides point-in-time, look-ahead-safe views over an
// instrument's history. A Snapshot exposes only rows dated at or before
// its cursor; strategies evaluated against it cannot observe the future.
package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"portfolio-backtest-lab/internal/domain"
)

// ErrDataUnavailable is returned when no market data exists for a
// requested instrument or range.
var ErrDataUnavailable = errors.New("market data unavailable")

// History is the full materialized series for one instrument: daily bars
// ascending by date, lower-frequency auxiliary tables, and the earnings
// calendar. A History is loaded once before a run starts; the engine
// performs no mid-run I/O.
type History struct {
	InstrumentID string
	Bars         []domain.Bar
	Flows        []domain.AuxRow
	Fundamentals []domain.AuxRow
	Earnings     []domain.EarningsEvent
}

// Validate checks that all series are strictly ascending by date.
func (h *History) Validate() error {
	for i := 1; i < len(h.Bars); i++ {
		if !h.Bars[i-1].Date.Before(h.Bars[i].Date) {
			return fmt.Errorf("%s: bars not strictly ascending at index %d", h.InstrumentID, i)
		}
	}
	for i := 1; i < len(h.Flows); i++ {
		if h.Flows[i].Date.Before(h.Flows[i-1].Date) {
			return fmt.Errorf("%s: flows not ascending at index %d", h.InstrumentID, i)
		}
	}
	for i := 1; i < len(h.Fundamentals); i++ {
		if h.Fundamentals[i].Date.Before(h.Fundamentals[i-1].Date) {
			return fmt.Errorf("%s: fundamentals not ascending at index %d", h.InstrumentID, i)
		}
	}
	return nil
}

// Through returns the snapshot of the history truncated to date (inclusive).
// The snapshot shares backing arrays with the history; callers must treat
// the returned slices as read-only.
func (h *History) Through(date time.Time) *Snapshot {
	day := domain.Day(date)
	cut := sort.Search(len(h.Bars), func(i int) bool {
		return h.Bars[i].Date.After(day)
	})
	return &Snapshot{history: h, cut: cut, date: day}
}

// BarOn returns the bar dated exactly on the given day, if any.
func (h *History) BarOn(date time.Time) (domain.Bar, bool) {
	day := domain.Day(date)
	i := sort.Search(len(h.Bars), func(i int) bool {
		return !h.Bars[i].Date.Before(day)
	})
	if i < len(h.Bars) && h.Bars[i].Date.Equal(day) {
		return h.Bars[i], true
	}
	return domain.Bar{}, false
}

// Snapshot is an immutable view of a History truncated to a cursor date.
// No row dated after the cursor is ever exposed.
type Snapshot struct {
	history *History
	cut     int // number of visible bars
	date    time.Time
}

// InstrumentID returns the instrument this snapshot belongs to.
func (s *Snapshot) InstrumentID() string { return s.history.InstrumentID }

// Date returns the cursor date.
func (s *Snapshot) Date() time.Time { return s.date }

// Len returns the number of visible bars.
func (s *Snapshot) Len() int { return s.cut }

// Bars returns the visible bars, ascending. Read-only.
func (s *Snapshot) Bars() []domain.Bar {
	return s.history.Bars[:s.cut]
}

// LastBar returns the most recent visible bar.
func (s *Snapshot) LastBar() (domain.Bar, bool) {
	if s.cut == 0 {
		return domain.Bar{}, false
	}
	return s.history.Bars[s.cut-1], true
}

// Close returns the most recent visible close.
func (s *Snapshot) Close() (float64, bool) {
	bar, ok := s.LastBar()
	if !ok {
		return 0, false
	}
	return bar.Close, true
}

// Column returns the named indicator column across all visible bars,
// with NaN for bars missing the column.
func (s *Snapshot) Column(name string) []float64 {
	out := make([]float64, s.cut)
	for i := 0; i < s.cut; i++ {
		out[i] = s.history.Bars[i].Column(name)
	}
	return out
}

// Flows returns the visible fund-flow rows (date <= cursor). Read-only.
func (s *Snapshot) Flows() []domain.AuxRow {
	return truncateAux(s.history.Flows, s.date)
}

// Fundamentals returns the visible fundamental rows (date <= cursor).
// Read-only.
func (s *Snapshot) Fundamentals() []domain.AuxRow {
	return truncateAux(s.history.Fundamentals, s.date)
}

// Earnings returns earnings events dated at or before the cursor.
// Future calendar entries are withheld so replays stay byte-identical
// regardless of data appended after the simulation end.
func (s *Snapshot) Earnings() []domain.EarningsEvent {
	cut := sort.Search(len(s.history.Earnings), func(i int) bool {
		return s.history.Earnings[i].Date.After(s.date)
	})
	return s.history.Earnings[:cut]
}

func truncateAux(rows []domain.AuxRow, date time.Time) []domain.AuxRow {
	cut := sort.Search(len(rows), func(i int) bool {
		return rows[i].Date.After(date)
	})
	return rows[:cut]
}
