// Package profiler implements UserProfiler: a lightweight summary of a
// user's practice history (topic strengths/weaknesses, recent lapse
// rate, review velocity; difficulty preference is not tracked) used to compute the
// personalization boost term in the hybrid ranker. Grounded on the
// cartographus recommend-engine.go reference's per-user feature
// aggregation ahead of scoring.
package profiler

import (
	"context"

	"github.com/codetop/reviewsched/domain"
)

// HistorySource supplies the review logs a profile is built from.
type HistorySource interface {
	RecentReviewLogs(ctx context.Context, userID string, limit int) ([]domain.ReviewLog, error)
	ProblemTopics(ctx context.Context, problemID string) ([]string, error)
}

// Profile is the derived per-user signal set.
type Profile struct {
	UserID           string
	TopicStrength    map[string]float64 // [0,1], higher = stronger mastery
	PreferredTopics  []string
	RecentLapseRate  float64
	ReviewVelocity   float64 // reviews/day over the sample window
}

// Profiler computes Profile from a user's history.
type Profiler struct {
	source HistorySource
	sample int
}

// New builds a Profiler sampling up to sampleSize recent review logs
// (zero uses a default of 200).
func New(source HistorySource, sampleSize int) *Profiler {
	if sampleSize <= 0 {
		sampleSize = 200
	}
	return &Profiler{source: source, sample: sampleSize}
}

// Build computes the profile for userID.
func (p *Profiler) Build(ctx context.Context, userID string) (Profile, error) {
	logs, err := p.source.RecentReviewLogs(ctx, userID, p.sample)
	if err != nil {
		return Profile{}, domain.NewError("BuildProfile", domain.KindTransient, userID, err)
	}
	if len(logs) == 0 {
		return Profile{UserID: userID, TopicStrength: map[string]float64{}}, nil
	}

	topicHits := map[string]int{}
	topicTotal := map[string]int{}
	lapses := 0
	var earliestReview, latestReview = logs[0].ReviewedAt, logs[0].ReviewedAt

	for _, log := range logs {
		if log.ReviewedAt.Before(earliestReview) {
			earliestReview = log.ReviewedAt
		}
		if log.ReviewedAt.After(latestReview) {
			latestReview = log.ReviewedAt
		}
		if log.Rating == domain.RatingAgain {
			lapses++
		}

		topics, tErr := p.source.ProblemTopics(ctx, log.ProblemID)
		if tErr != nil {
			continue
		}
		for _, t := range topics {
			topicTotal[t]++
			if log.Rating != domain.RatingAgain {
				topicHits[t]++
			}
		}
	}

	strength := make(map[string]float64, len(topicTotal))
	for t, total := range topicTotal {
		if total == 0 {
			continue
		}
		strength[t] = float64(topicHits[t]) / float64(total)
	}

	preferred := weakestTopics(strength, 5)

	days := latestReview.Sub(earliestReview).Hours() / 24
	velocity := 0.0
	if days > 0 {
		velocity = float64(len(logs)) / days
	}

	return Profile{
		UserID:          userID,
		TopicStrength:   strength,
		PreferredTopics: preferred,
		RecentLapseRate: float64(lapses) / float64(len(logs)),
		ReviewVelocity:  velocity,
	}, nil
}

// weakestTopics returns up to n topic names with the lowest strength,
// used to bias recommendations toward growth areas.
func weakestTopics(strength map[string]float64, n int) []string {
	type pair struct {
		topic string
		val   float64
	}
	pairs := make([]pair, 0, len(strength))
	for t, v := range strength {
		pairs = append(pairs, pair{t, v})
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].val < pairs[i].val {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.topic)
	}
	return out
}
