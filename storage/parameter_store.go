package storage

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

// ParameterStore is a Redis-backed implementation of
// orchestrator.ParameterStore.
type ParameterStore struct {
	client *redis.Client
}

func NewParameterStore(client *redis.Client) *ParameterStore {
	return &ParameterStore{client: client}
}

func (s *ParameterStore) Get(ctx context.Context, userID string) (domain.UserParameters, error) {
	raw, err := s.client.Get(ctx, paramsPrefix+userID).Result()
	if err == redis.Nil {
		return domain.DefaultUserParameters(userID), nil
	}
	if err != nil {
		return domain.UserParameters{}, err
	}
	var params domain.UserParameters
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return domain.UserParameters{}, err
	}
	return params, nil
}

func (s *ParameterStore) Save(ctx context.Context, params domain.UserParameters) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, paramsPrefix+params.UserID, raw, 0).Err()
}
