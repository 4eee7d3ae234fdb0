package storage

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

const topicsHashPrefix = "codetop:topics:"

// HistorySource adapts ReviewLogStore plus one Redis set of topic names
// per problem (key prefix topicsHashPrefix) into profiler.HistorySource.
type HistorySource struct {
	logs   *ReviewLogStore
	client *redis.Client
}

func NewHistorySource(logs *ReviewLogStore, client *redis.Client) *HistorySource {
	return &HistorySource{logs: logs, client: client}
}

func (s *HistorySource) RecentReviewLogs(ctx context.Context, userID string, limit int) ([]domain.ReviewLog, error) {
	return s.logs.RecentForUser(ctx, userID, limit)
}

func (s *HistorySource) ProblemTopics(ctx context.Context, problemID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, topicsHashPrefix+problemID).Result()
	if err != nil {
		return nil, err
	}
	return members, nil
}
