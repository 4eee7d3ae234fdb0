// Package cache implements the recommendation CacheStore: a Redis-backed
// cache-aside layer with post-commit invalidation and a delayed
// double-delete to close the stale-repopulate race, grounded on the
// teacher's core.RedisClient (key namespacing, DB isolation by number)
// and orchestration.SimpleCache (expiry bookkeeping, sha-hashed keys).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

// Namespace prefix for recommendation cache keys, following the
// teacher's "<service>:<domain>:..." convention.
const keyPrefix = "codetop:reco:"

// DoubleDeleteDelay is how long after a commit-triggered invalidation
// the second delete fires, closing the window where a concurrent
// reader repopulates the cache from stale data read just before the
// commit.
const DoubleDeleteDelay = 1 * time.Second

// Store is the CacheStore contract: get/set the cached recommendation
// set for a user, and invalidate on writes (reviews, re-optimization).
type Store interface {
	Get(ctx context.Context, userID string) (*domain.RecommendationSet, bool, error)
	Set(ctx context.Context, userID string, set *domain.RecommendationSet, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
	InvalidateWithDelayedDelete(ctx context.Context, userID string, schedule func(delay time.Duration, fn func()))
}

// RedisStore is the production Store backed by Redis, DB-isolated the
// same way core.RedisClient dedicates one DB number per concern.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a RedisStore over an existing redis.Client; the
// caller is expected to have pointed it at the cache-reserved DB number.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func cacheKey(userID string) string {
	return keyPrefix + hashUser(userID)
}

func hashUser(userID string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// Get retrieves the cached recommendation set and JSON-decodes it (see
// codec.go); a missing key is reported as a miss, not an error.
func (s *RedisStore) Get(ctx context.Context, userID string) (*domain.RecommendationSet, bool, error) {
	key := cacheKey(userID)
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewError("CacheGet", domain.KindTransient, userID, err)
	}
	set, decodeErr := decodeSet(raw)
	if decodeErr != nil {
		return nil, false, domain.NewError("CacheGet", domain.KindTransient, userID, decodeErr)
	}
	return set, true, nil
}

// Set stores the recommendation set with the given TTL.
func (s *RedisStore) Set(ctx context.Context, userID string, set *domain.RecommendationSet, ttl time.Duration) error {
	key := cacheKey(userID)
	raw, err := encodeSet(set)
	if err != nil {
		return domain.NewError("CacheSet", domain.KindInvalidInput, userID, err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return domain.NewError("CacheSet", domain.KindTransient, userID, err)
	}
	return nil
}

// Invalidate evicts the cached entry immediately (the first delete of
// the double-delete pattern).
func (s *RedisStore) Invalidate(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return domain.NewError("CacheInvalidate", domain.KindTransient, userID, err)
	}
	return nil
}

// InvalidateWithDelayedDelete performs the immediate delete and then
// schedules a second delete DoubleDeleteDelay later via the caller's
// scheduler (typically a goroutine + time.AfterFunc or a worker queue),
// closing the race where a read in flight at commit time repopulates
// the cache with data from just before the write.
func (s *RedisStore) InvalidateWithDelayedDelete(ctx context.Context, userID string, schedule func(delay time.Duration, fn func())) {
	_ = s.Invalidate(ctx, userID)
	schedule(DoubleDeleteDelay, func() {
		_ = s.Invalidate(context.Background(), userID)
	})
}

// ScanInvalidateAll invalidates every cached recommendation set, using
// cursor-based SCAN rather than a blocking KEYS enumeration, grounded
// on orchestration.RedisTaskStore.ListByStatus's scan loop.
func (s *RedisStore) ScanInvalidateAll(ctx context.Context) error {
	var cursor uint64
	pattern := keyPrefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return domain.NewError("CacheScanInvalidateAll", domain.KindTransient, "", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return domain.NewError("CacheScanInvalidateAll", domain.KindTransient, "", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}
