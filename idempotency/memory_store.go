package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/codetop/reviewsched/domain"
)

// MemoryStore is an in-process Store used in tests, pairing with
// RedisStore the same way the teacher pairs core.RedisClient with
// core.MemoryStore for the same interface.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryRecord
	ttl     time.Duration
}

type memoryRecord struct {
	pending   bool
	result    []byte
	expiresAt time.Time
}

// NewMemoryStore builds an empty in-memory Store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{entries: make(map[string]memoryRecord), ttl: ttl}
}

func (m *MemoryStore) Begin(_ context.Context, requestID, userID, operation string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(requestID, userID, operation)
	if e, ok := m.entries[key]; ok && time.Now().Before(e.expiresAt) {
		return false, nil
	}
	m.entries[key] = memoryRecord{pending: true, expiresAt: time.Now().Add(m.ttl)}
	return true, nil
}

func (m *MemoryStore) Complete(_ context.Context, requestID, userID, operation string, result interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(requestID, userID, operation)
	raw, err := json.Marshal(result)
	if err != nil {
		return domain.NewError("IdempotencyComplete", domain.KindInvalidInput, requestID, err)
	}
	m.entries[key] = memoryRecord{pending: false, result: raw, expiresAt: time.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, requestID, userID, operation string) (*domain.IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(requestID, userID, operation)
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	if e.pending {
		return nil, false, domain.NewError("IdempotencyGet", domain.KindDuplicateInFlight, requestID, nil)
	}
	return &domain.IdempotencyRecord{RequestID: requestID, UserID: userID, Operation: operation, Result: e.result}, true, nil
}

var _ Store = (*MemoryStore)(nil)
