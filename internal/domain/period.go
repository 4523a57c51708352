package domain

import "time"

// EvaluationPeriod is a named date range a batch evaluation runs over.
// The regime label is always derived from the benchmark return over the
// range, never stored on the period itself.
type EvaluationPeriod struct {
	Name  string
	Start time.Time
	End   time.Time
}

// RegimeLabel classifies benchmark performance over a period.
type RegimeLabel string

// Regime labels by benchmark return over the period, in percent:
// bear < 0, modest_bull [0, 25), bull [25, 50), strong_bull [50, 75),
// extreme_bull >= 75. Unknown when no benchmark data is available.
const (
	RegimeBear        RegimeLabel = "bear"
	RegimeModestBull  RegimeLabel = "modest_bull"
	RegimeBull        RegimeLabel = "bull"
	RegimeStrongBull  RegimeLabel = "strong_bull"
	RegimeExtremeBull RegimeLabel = "extreme_bull"
	RegimeUnknown     RegimeLabel = "unknown"
)
