// Package idempotency implements IdempotencyStore: a SETNX-based
// atomic insert-if-absent record of (requestID, userID, operation) ->
// result, grounded on orchestration.RedisTaskStore.Create's use of
// Redis SetNX to reject duplicate task IDs.
package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

const keyPrefix = "codetop:idem:"

// DefaultTTL is how long a completed idempotency record survives,
// bounding duplicate-suppression to the window a client would
// realistically retry within.
const DefaultTTL = 24 * time.Hour

// Store is the IdempotencyStore contract.
type Store interface {
	// Begin atomically records that (requestID, userID, operation) is
	// now in flight. It returns (true, nil) if this call won the race
	// and the caller should proceed; (false, nil) if a record already
	// exists (either in flight or completed) and the caller should
	// fetch it via Get instead of redoing the operation.
	Begin(ctx context.Context, requestID, userID, operation string) (bool, error)
	// Complete stores the result of a finished operation under the key
	// already reserved by Begin.
	Complete(ctx context.Context, requestID, userID, operation string, result interface{}) error
	Get(ctx context.Context, requestID, userID, operation string) (*domain.IdempotencyRecord, bool, error)
}

// RedisStore is the production Store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore with the given record TTL (zero
// uses DefaultTTL).
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func recordKey(requestID, userID, operation string) string {
	return keyPrefix + operation + ":" + userID + ":" + requestID
}

// Begin uses SETNX to atomically claim the key; only the first caller
// for a given (requestID, userID, operation) triple gets true.
func (s *RedisStore) Begin(ctx context.Context, requestID, userID, operation string) (bool, error) {
	key := recordKey(requestID, userID, operation)
	placeholder := pendingMarker
	ok, err := s.client.SetNX(ctx, key, placeholder, s.ttl).Result()
	if err != nil {
		return false, domain.NewError("IdempotencyBegin", domain.KindTransient, requestID, err)
	}
	return ok, nil
}

const pendingMarker = "__pending__"

// Complete overwrites the placeholder with the serialized result and
// resets the record's TTL to the store's full record TTL.
func (s *RedisStore) Complete(ctx context.Context, requestID, userID, operation string, result interface{}) error {
	key := recordKey(requestID, userID, operation)
	raw, err := json.Marshal(result)
	if err != nil {
		return domain.NewError("IdempotencyComplete", domain.KindInvalidInput, requestID, err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return domain.NewError("IdempotencyComplete", domain.KindTransient, requestID, err)
	}
	return nil
}

// Get fetches the record if present. A record whose value is still the
// pending marker means the operation is in flight elsewhere; Get then
// returns a KindDuplicateInFlight error.
func (s *RedisStore) Get(ctx context.Context, requestID, userID, operation string) (*domain.IdempotencyRecord, bool, error) {
	key := recordKey(requestID, userID, operation)
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewError("IdempotencyGet", domain.KindTransient, requestID, err)
	}
	if raw == pendingMarker {
		return nil, false, domain.NewError("IdempotencyGet", domain.KindDuplicateInFlight, requestID, nil)
	}
	return &domain.IdempotencyRecord{
		RequestID: requestID,
		UserID:    userID,
		Operation: operation,
		Result:    []byte(raw),
	}, true, nil
}
