// Package ranking implements the HybridRanker, StrategyMixer and
// ConfidenceCalibrator components that turn raw provider scores plus
// FSRS/profile/similarity signals into the final ordered recommendation
// list. The weighted multi-source blend is grounded on the
// cartographus recommend-engine.go reference's combineAlgorithmScores
// weighted-sum pattern, adapted from an ensemble-of-algorithms shape to
// this spec's fixed four-signal blend.
package ranking

import (
	"sort"

	"github.com/codetop/reviewsched/domain"
)

// Weights controls the hybrid linear blend. They need not sum to 1;
// Rank normalizes by their sum.
type Weights struct {
	LLM           float64
	Urgency       float64
	Similarity    float64
	Personalization float64
}

// DefaultWeights favors the LLM score over scheduling urgency, treating
// content similarity and personalization as secondary tie-breakers.
func DefaultWeights() Weights {
	return Weights{LLM: 0.45, Urgency: 0.30, Similarity: 0.15, Personalization: 0.10}
}

func (w Weights) sum() float64 {
	return w.LLM + w.Urgency + w.Similarity + w.Personalization
}

// SignalSet carries the per-candidate inputs to the blend.
type SignalSet struct {
	ProblemID       string
	LLMScore        float64
	UrgencyScore    float64
	SimilarityScore float64
	PersonalBoost   float64
	Category        string
}

// HybridRanker blends the four signals and sorts candidates descending.
type HybridRanker struct {
	weights Weights
}

// New builds a HybridRanker; a zero-value Weights falls back to DefaultWeights.
func New(weights Weights) *HybridRanker {
	if weights.sum() == 0 {
		weights = DefaultWeights()
	}
	return &HybridRanker{weights: weights}
}

// Rank scores every signal set and returns items sorted by descending
// blended score.
func (r *HybridRanker) Rank(signals []SignalSet) []domain.RecommendationItem {
	sum := r.weights.sum()
	items := make([]domain.RecommendationItem, 0, len(signals))

	for _, s := range signals {
		score := (r.weights.LLM*s.LLMScore +
			r.weights.Urgency*s.UrgencyScore +
			r.weights.Similarity*s.SimilarityScore +
			r.weights.Personalization*s.PersonalBoost) / sum

		items = append(items, domain.RecommendationItem{
			ProblemID:       s.ProblemID,
			Score:           score,
			LLMScore:        s.LLMScore,
			UrgencyScore:    s.UrgencyScore,
			SimilarityScore: s.SimilarityScore,
			PersonalBoost:   s.PersonalBoost,
			Category:        s.Category,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	return items
}

// JaccardSimilarity computes content similarity between two tag/topic
// sets, used to compute SignalSet.SimilarityScore against a user's
// recently-solved problems.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA)
	for k := range setB {
		if !setA[k] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}
