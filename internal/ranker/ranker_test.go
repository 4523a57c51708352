package ranker

import (
	"errors"
	"testing"

	"portfolio-backtest-lab/internal/domain"
)

func candidate(id string, score, confidence float64, vol *float64) *Candidate {
	md := map[string]float64{domain.MetaScore: score}
	if vol != nil {
		md[domain.MetaVolatilityRatio] = *vol
	}
	return &Candidate{
		Order: &domain.PendingOrder{
			InstrumentID: id,
			Signal: domain.TradingSignal{
				Action:     domain.ActionBuy,
				Confidence: confidence,
				Metadata:   md,
			},
		},
	}
}

func ids(cands []*Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Order.InstrumentID
	}
	return out
}

func TestRanker_SimpleScoreOrder(t *testing.T) {
	r, err := New(PolicySimpleScore)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	input := []*Candidate{
		candidate("A", 80, 0.5, nil),
		candidate("B", 60, 0.5, nil),
		candidate("C", 70, 0.5, nil),
	}

	got := ids(r.Rank(input))
	want := []string{"A", "C", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order = %v, want %v", got, want)
		}
	}

	// Re-ranking identical input yields an identical sequence.
	again := ids(r.Rank(input))
	for i := range got {
		if got[i] != again[i] {
			t.Fatalf("re-rank order = %v, want %v", again, got)
		}
	}
}

func TestRanker_TiesKeepFirstSeenOrder(t *testing.T) {
	r, _ := New(PolicySimpleScore)

	input := []*Candidate{
		candidate("X", 50, 0.5, nil),
		candidate("Y", 50, 0.5, nil),
		candidate("Z", 50, 0.5, nil),
	}
	got := ids(r.Rank(input))
	want := []string{"X", "Y", "Z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}

func TestRanker_DefaultScore(t *testing.T) {
	r, _ := New(PolicySimpleScore)

	noScore := &Candidate{Order: &domain.PendingOrder{
		InstrumentID: "N",
		Signal:       domain.TradingSignal{Action: domain.ActionBuy},
	}}
	input := []*Candidate{candidate("A", 40, 0.5, nil), noScore}

	// Missing score defaults to 50, outranking an explicit 40.
	got := ids(r.Rank(input))
	if got[0] != "N" {
		t.Errorf("rank order = %v, want N first (default score 50)", got)
	}
}

func TestRanker_ConfidenceWeighted(t *testing.T) {
	r, _ := New(PolicyConfidenceWeighted)

	input := []*Candidate{
		candidate("A", 80, 0.5, nil), // 40
		candidate("B", 60, 0.9, nil), // 54
	}
	got := ids(r.Rank(input))
	if got[0] != "B" {
		t.Errorf("rank order = %v, want B first", got)
	}
}

func TestRanker_RiskAdjusted(t *testing.T) {
	r, _ := New(PolicyRiskAdjusted)

	highVol := 0.5 // 80 / (1 + 5) = 13.3
	input := []*Candidate{
		candidate("A", 80, 0.5, &highVol),
		candidate("B", 40, 0.5, nil), // no volatility: raw score 40
	}
	got := ids(r.Rank(input))
	if got[0] != "B" {
		t.Errorf("rank order = %v, want B first (volatility-penalized A)", got)
	}
}

func TestRanker_CompositePrefersCalmConfidentHighScore(t *testing.T) {
	r, _ := New(PolicyComposite)

	calm := 0.0
	wild := 2.0
	input := []*Candidate{
		candidate("A", 70, 0.9, &calm),
		candidate("B", 70, 0.9, &wild),
	}
	got := ids(r.Rank(input))
	if got[0] != "A" {
		t.Errorf("rank order = %v, want calm instrument first", got)
	}
}

func TestRanker_UnknownPolicy(t *testing.T) {
	_, err := New(Policy("bogus"))
	if !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}
