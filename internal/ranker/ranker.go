// Package ranker orders same-day competing buy signals under capital and
// position constraints. Ranking is a deterministic total order: a stable
// sort on the policy priority with ties broken by first-seen order, so
// re-ranking identical input always yields an identical sequence.
package ranker

import (
	"errors"
	"fmt"
	"sort"

	"portfolio-backtest-lab/internal/domain"
)

// Policy selects how buy candidates are prioritized.
type Policy string

// Ranking policies.
const (
	PolicySimpleScore        Policy = "simple_score"
	PolicyConfidenceWeighted Policy = "confidence_weighted"
	PolicyRiskAdjusted       Policy = "risk_adjusted"
	PolicyComposite          Policy = "composite"
)

// ErrUnknownPolicy is returned for an unrecognized ranking policy.
var ErrUnknownPolicy = errors.New("unknown ranking policy")

// Composite policy weights. The inverted-volatility bonus rewards calm
// instruments on the same 0-100 scale as the score.
const (
	compositeScoreWeight      = 0.6
	compositeConfidenceWeight = 0.3
	compositeVolatilityWeight = 0.1
)

// Candidate is one pending buy competing for capital on a given day.
type Candidate struct {
	Order *domain.PendingOrder
}

// Ranker orders buy candidates by a fixed policy.
type Ranker struct {
	policy Policy
}

// New creates a ranker, validating the policy.
func New(policy Policy) (*Ranker, error) {
	switch policy {
	case PolicySimpleScore, PolicyConfidenceWeighted, PolicyRiskAdjusted, PolicyComposite:
		return &Ranker{policy: policy}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// Policy returns the ranker's policy.
func (r *Ranker) Policy() Policy { return r.policy }

// Rank returns the candidates in descending priority. The input slice is
// not modified; the first-seen order of equal-priority candidates is
// preserved.
func (r *Ranker) Rank(candidates []*Candidate) []*Candidate {
	out := make([]*Candidate, len(candidates))
	copy(out, candidates)

	sort.SliceStable(out, func(i, j int) bool {
		return r.priority(out[i]) > r.priority(out[j])
	})
	return out
}

// priority computes the policy priority for one candidate.
func (r *Ranker) priority(c *Candidate) float64 {
	sig := &c.Order.Signal
	score := sig.Meta(domain.MetaScore, domain.DefaultScore)

	switch r.policy {
	case PolicyConfidenceWeighted:
		return score * sig.Confidence

	case PolicyRiskAdjusted:
		vol, ok := sig.Metadata[domain.MetaVolatilityRatio]
		if !ok || vol < 0 {
			return score // fall back to raw score when volatility is unavailable
		}
		return score / (1 + 10*vol)

	case PolicyComposite:
		bonus := 0.0
		if vol, ok := sig.Metadata[domain.MetaVolatilityRatio]; ok && vol >= 0 {
			bonus = 100 / (1 + 10*vol)
		}
		return compositeScoreWeight*score +
			compositeConfidenceWeight*(sig.Confidence*100) +
			compositeVolatilityWeight*bonus

	default: // PolicySimpleScore
		return score
	}
}
