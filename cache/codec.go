package cache

import (
	"encoding/json"

	"github.com/codetop/reviewsched/domain"
)

func encodeSet(set *domain.RecommendationSet) (string, error) {
	b, err := json.Marshal(set)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSet(raw string) (*domain.RecommendationSet, error) {
	var set domain.RecommendationSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, err
	}
	return &set, nil
}
