package storage

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

const (
	catalogSetKey    = "codetop:catalog:problems"
	seenSetPrefix    = "codetop:seen:"
	recentSetPrefix  = "codetop:recent:"
)

// CandidateSource adapts CardStore plus a Redis-backed problem catalog
// into candidates.ProblemSource. The catalog itself (problem metadata,
// difficulty, tags) is an external collaborator per the spec's
// persistence non-goal; this only tracks the ID sets needed to compute
// unseen/recently-excluded membership.
type CandidateSource struct {
	cards  *CardStore
	client *redis.Client
}

func NewCandidateSource(cards *CardStore, client *redis.Client) *CandidateSource {
	return &CandidateSource{cards: cards, client: client}
}

func (s *CandidateSource) DueCards(ctx context.Context, userID string, now time.Time) ([]domain.Card, error) {
	return s.cards.DueQueue(ctx, userID, now, 200)
}

func (s *CandidateSource) UnseenProblems(ctx context.Context, userID string, limit int) ([]domain.Problem, error) {
	ids, err := s.client.SDiff(ctx, catalogSetKey, seenSetPrefix+userID).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Problem, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Problem{ID: id})
	}
	return out, nil
}

func (s *CandidateSource) RecentlyExcluded(ctx context.Context, userID string, within time.Duration) (map[string]bool, error) {
	cutoff := time.Now().Add(-within)
	ids, err := s.client.ZRangeByScore(ctx, recentSetPrefix+userID, &redis.ZRangeBy{
		Min: scoreOf(cutoff),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
