package domain

import "time"

// Position is one open FIFO lot. Quantity only ever decreases after
// creation; PeakPrice only ever increases (refreshed once per simulated
// day from the close). EntrySignal is a value copy of the signal that
// opened the lot, never a shared reference.
type Position struct {
	InstrumentID string
	EntryPrice   float64
	EntryDate    time.Time
	Quantity     int64
	EntrySignal  TradingSignal
	PeakPrice    float64
}

// RefreshPeak raises PeakPrice to close if it is higher. PeakPrice never
// decreases.
func (p *Position) RefreshPeak(close float64) {
	if close > p.PeakPrice {
		p.PeakPrice = close
	}
}

// PendingOrder is a signal generated on day N, executed at day N+1's open.
// At most one pending order per direction exists per instrument; a newer
// same-direction signal overwrites an unexecuted one (last-write-wins).
type PendingOrder struct {
	Signal       TradingSignal
	InstrumentID string
	CreatedDate  time.Time
}
