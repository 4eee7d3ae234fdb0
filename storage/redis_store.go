// Package storage provides Redis-backed implementations of the
// orchestrator's CardStore, ReviewLogStore and ParameterStore
// collaborators. The spec leaves persistence library choice
// unprescribed (non-goal); this package exists so the module is
// runnable end-to-end, grounded on core.RedisClient's key-namespacing
// and DB-isolation-by-number convention from the teacher repository.
package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

const (
	cardPrefix      = "codetop:card:"
	reviewLogKey    = "codetop:reviewlog:"
	paramsPrefix    = "codetop:params:"
	dueIndexPrefix  = "codetop:due:"
)

// CardStore is a Redis-backed implementation of orchestrator.CardStore
// and candidates.ProblemSource's due-card half.
type CardStore struct {
	client *redis.Client
}

// NewCardStore builds a CardStore over client.
func NewCardStore(client *redis.Client) *CardStore {
	return &CardStore{client: client}
}

func cardKey(userID, problemID string) string {
	return cardPrefix + userID + ":" + problemID
}

func (s *CardStore) GetCard(ctx context.Context, userID, problemID string) (domain.Card, error) {
	raw, err := s.client.Get(ctx, cardKey(userID, problemID)).Result()
	if err == redis.Nil {
		return domain.Card{UserID: userID, ProblemID: problemID, State: domain.CardStateNew}, nil
	}
	if err != nil {
		return domain.Card{}, err
	}
	var card domain.Card
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

func (s *CardStore) SaveCard(ctx context.Context, card domain.Card) error {
	raw, err := json.Marshal(card)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, cardKey(card.UserID, card.ProblemID), raw, 0)
	pipe.ZAdd(ctx, dueIndexPrefix+card.UserID, &redis.Z{Score: float64(card.Due.Unix()), Member: card.ProblemID})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *CardStore) DueQueue(ctx context.Context, userID string, now time.Time, limit int) ([]domain.Card, error) {
	ids, err := s.client.ZRangeByScore(ctx, dueIndexPrefix+userID, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   scoreOf(now),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Card, 0, len(ids))
	for _, id := range ids {
		card, err := s.GetCard(ctx, userID, id)
		if err != nil {
			continue
		}
		out = append(out, card)
	}
	return out, nil
}

func scoreOf(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
