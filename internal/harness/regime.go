package harness

import "portfolio-backtest-lab/internal/domain"

// Regime breakpoints on the benchmark return, in percent.
const (
	regimeModestBullFloor  = 0.0
	regimeBullFloor        = 25.0
	regimeStrongBullFloor  = 50.0
	regimeExtremeBullFloor = 75.0
)

// ClassifyRegime maps a benchmark return over a period, expressed in
// percent, to its regime label.
func ClassifyRegime(returnPct float64) domain.RegimeLabel {
	switch {
	case returnPct < regimeModestBullFloor:
		return domain.RegimeBear
	case returnPct < regimeBullFloor:
		return domain.RegimeModestBull
	case returnPct < regimeStrongBullFloor:
		return domain.RegimeBull
	case returnPct < regimeExtremeBullFloor:
		return domain.RegimeStrongBull
	default:
		return domain.RegimeExtremeBull
	}
}
