package storage

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

// ReviewLogStore is a Redis-list-backed implementation of
// orchestrator.ReviewLogStore, grounded on core.RedisClient's
// namespaced key conventions.
type ReviewLogStore struct {
	client *redis.Client
}

func NewReviewLogStore(client *redis.Client) *ReviewLogStore {
	return &ReviewLogStore{client: client}
}

func logListKey(userID string) string {
	return reviewLogKey + userID
}

func (s *ReviewLogStore) Append(ctx context.Context, log domain.ReviewLog) error {
	raw, err := json.Marshal(log)
	if err != nil {
		return err
	}
	return s.client.LPush(ctx, logListKey(log.UserID), raw).Err()
}

func (s *ReviewLogStore) RecentForUser(ctx context.Context, userID string, limit int) ([]domain.ReviewLog, error) {
	if limit <= 0 {
		limit = 10000
	}
	raws, err := s.client.LRange(ctx, logListKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ReviewLog, 0, len(raws))
	for _, raw := range raws {
		var log domain.ReviewLog
		if err := json.Unmarshal([]byte(raw), &log); err != nil {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}
