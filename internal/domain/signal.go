package domain

// Action represents the decision of a strategy for one day.
type Action string

// Action constants.
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Metadata keys consumed by the engine and ranker.
const (
	// MetaScore is the ranking score of a buy signal. Defaults to
	// DefaultScore when absent.
	MetaScore = "score"

	// MetaSellPercentage is the fraction of the held quantity a sell
	// signal wants to liquidate, in (0, 1]. Defaults to 1 (full exit).
	MetaSellPercentage = "sell_percentage"

	// MetaVolatilityRatio is an optional volatility estimate used by the
	// risk-adjusted and composite ranking policies.
	MetaVolatilityRatio = "volatility_ratio"
)

// DefaultScore is used for ranking when a buy signal carries no score.
const DefaultScore = 50.0

// TradingSignal is the decision a strategy produces for one instrument on
// one day. Immutable once produced; the engine copies it into pending
// orders and positions rather than sharing the original.
type TradingSignal struct {
	Action       Action
	Confidence   float64 // in [0, 1]
	Reasons      []string
	Metadata     map[string]float64
	StrategyName string
}

// Clone returns a deep copy of the signal.
func (s *TradingSignal) Clone() TradingSignal {
	out := TradingSignal{
		Action:       s.Action,
		Confidence:   s.Confidence,
		StrategyName: s.StrategyName,
	}
	if len(s.Reasons) > 0 {
		out.Reasons = make([]string, len(s.Reasons))
		copy(out.Reasons, s.Reasons)
	}
	if len(s.Metadata) > 0 {
		out.Metadata = make(map[string]float64, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Meta returns the metadata value for key, or fallback when absent.
func (s *TradingSignal) Meta(key string, fallback float64) float64 {
	if s.Metadata == nil {
		return fallback
	}
	v, ok := s.Metadata[key]
	if !ok {
		return fallback
	}
	return v
}

// SellFraction returns the requested sell fraction clamped to (0, 1].
// Signals without an explicit sell_percentage request a full exit.
func (s *TradingSignal) SellFraction() float64 {
	f := s.Meta(MetaSellPercentage, 1.0)
	if f <= 0 || f > 1 {
		return 1.0
	}
	return f
}
