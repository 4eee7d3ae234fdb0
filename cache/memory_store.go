package cache

import (
	"context"
	"sync"
	"time"

	"github.com/codetop/reviewsched/domain"
)

// MemoryStore is an in-process Store, mirroring the teacher's pairing
// of a Redis-backed and an in-memory implementation of the same
// interface (core.RedisClient / core.MemoryStore). Useful for tests and
// for the delayed-double-delete unit tests where Redis isn't available.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	set       *domain.RecommendationSet
	expiresAt time.Time
}

// NewMemoryStore builds an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*domain.RecommendationSet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, userID)
		return nil, false, nil
	}
	return e.set, true, nil
}

func (m *MemoryStore) Set(_ context.Context, userID string, set *domain.RecommendationSet, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = memoryEntry{set: set, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

func (m *MemoryStore) InvalidateWithDelayedDelete(ctx context.Context, userID string, schedule func(delay time.Duration, fn func())) {
	_ = m.Invalidate(ctx, userID)
	schedule(DoubleDeleteDelay, func() {
		_ = m.Invalidate(context.Background(), userID)
	})
}

var _ Store = (*MemoryStore)(nil)
