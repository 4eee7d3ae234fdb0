package cache

import (
	"context"
	"testing"
	"time"

	"github.com/codetop/reviewsched/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	set := &domain.RecommendationSet{UserID: "u1", Provider: "chain"}

	require.NoError(t, s.Set(ctx, "u1", set, time.Minute))
	got, ok, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "chain", got.Provider)
}

func TestMemoryStore_GetMissReturnsFalse(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ExpiredEntryIsEvicted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "u1", &domain.RecommendationSet{UserID: "u1"}, -time.Second))

	_, ok, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_DelayedDoubleDeleteFiresTwice(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "u1", &domain.RecommendationSet{UserID: "u1"}, time.Minute))

	var delayed func()
	s.InvalidateWithDelayedDelete(ctx, "u1", func(delay time.Duration, fn func()) {
		delayed = fn
	})

	_, ok, _ := s.Get(ctx, "u1")
	assert.False(t, ok, "first delete should have already evicted")

	require.NoError(t, s.Set(ctx, "u1", &domain.RecommendationSet{UserID: "u1"}, time.Minute))
	require.NotNil(t, delayed, "second delete should have been scheduled")
	delayed()

	_, ok, _ = s.Get(ctx, "u1")
	assert.False(t, ok, "delayed second delete should have evicted the repopulated entry")
}
