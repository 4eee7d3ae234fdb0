package ranking

import (
	"testing"

	"github.com/codetop/reviewsched/domain"
	"github.com/stretchr/testify/assert"
)

func TestHybridRanker_SortsDescendingByBlendedScore(t *testing.T) {
	r := New(Weights{})
	out := r.Rank([]SignalSet{
		{ProblemID: "low", LLMScore: 0.1, UrgencyScore: 0.1, SimilarityScore: 0.1, PersonalBoost: 0.1},
		{ProblemID: "high", LLMScore: 0.9, UrgencyScore: 0.9, SimilarityScore: 0.9, PersonalBoost: 0.9},
	})
	assert.Equal(t, "high", out[0].ProblemID)
	assert.Equal(t, "low", out[1].ProblemID)
}

func TestJaccardSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, JaccardSimilarity([]string{"dp"}, []string{"dp"}), 0.001)
	assert.InDelta(t, 0.0, JaccardSimilarity([]string{"dp"}, []string{"graphs"}), 0.001)
	assert.InDelta(t, 0.5, JaccardSimilarity([]string{"dp", "graphs"}, []string{"dp"}), 0.001)
}

func TestStrategyMixer_RespectsQuotasAndBackfills(t *testing.T) {
	m := NewStrategyMixer(map[string]int{"due": 2, "fresh": 1}, 5)
	byCategory := map[string][]domain.RecommendationItem{
		"due":   {{ProblemID: "d1"}, {ProblemID: "d2"}, {ProblemID: "d3"}},
		"fresh": {{ProblemID: "f1"}},
	}
	out := m.Mix(byCategory)
	assert.Len(t, out, 4) // 2 due + 1 fresh + backfill 1 more due
}

func TestConfidenceCalibrator_LabelsByThreshold(t *testing.T) {
	c := NewConfidenceCalibrator(ConfidenceWeights{})
	_, label := c.Score(ConfidenceSignals{
		ProviderAgreement: 1, HistorySampleSize: 1, RecencyOfData: 1,
		FSRSCertainty: 1, ChainHealth: 1, ToggleStability: 1,
	})
	assert.Equal(t, "HIGH", label)

	_, label2 := c.Score(ConfidenceSignals{})
	assert.Equal(t, "LOW", label2)
}
