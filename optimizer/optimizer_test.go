package optimizer

import (
	"testing"
	"time"

	"github.com/codetop/reviewsched/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLogs(n int, now time.Time) []domain.ReviewLog {
	logs := make([]domain.ReviewLog, 0, n)
	for i := 0; i < n; i++ {
		logs = append(logs, domain.ReviewLog{
			ID:          "r",
			UserID:      "u1",
			ProblemID:   "p1",
			Rating:      domain.RatingGood,
			ReviewedAt:  now.Add(-time.Duration(i) * 24 * time.Hour),
			ElapsedDays: 3,
			Stability:   8,
			Difficulty:  5,
			State:       domain.CardStateReview,
		})
	}
	return logs
}

func TestEligible(t *testing.T) {
	o := New(Config{})
	assert.False(t, o.Eligible(buildLogs(10, time.Now())))
	assert.True(t, o.Eligible(buildLogs(60, time.Now())))
}

func TestOptimize_BelowThresholdReturnsInputUnchanged(t *testing.T) {
	o := New(Config{})
	now := time.Now()
	prior := domain.DefaultUserParameters("u1")

	out, err := o.Optimize("u1", buildLogs(5, now), prior, now)
	require.NoError(t, err)
	assert.Equal(t, prior.Weights, out.Weights)
}

func TestOptimize_AboveThresholdConverges(t *testing.T) {
	o := New(Config{})
	now := time.Now()
	prior := domain.DefaultUserParameters("u1")

	out, err := o.Optimize("u1", buildLogs(80, now), prior, now)
	require.NoError(t, err)
	assert.Equal(t, 80, out.ReviewCount)
	assert.GreaterOrEqual(t, out.RequestRetention, 0.7)
	assert.LessOrEqual(t, out.RequestRetention, 0.97)
	for _, w := range out.Weights {
		assert.GreaterOrEqual(t, w, 0.01)
		assert.LessOrEqual(t, w, 20.0)
	}
}

func TestShouldReoptimize(t *testing.T) {
	params := domain.UserParameters{ReviewCount: 10}
	assert.False(t, ShouldReoptimize(params, 40))
	assert.True(t, ShouldReoptimize(params, 61))
}
