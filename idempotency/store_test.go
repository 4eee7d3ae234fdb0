package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codetop/reviewsched/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_FirstCallerWins(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	ok, err := s.Begin(ctx, "r1", "u1", "submitReview")
	require.NoError(t, err)
	assert.True(t, ok)

	ok2, err := s.Begin(ctx, "r1", "u1", "submitReview")
	require.NoError(t, err)
	assert.False(t, ok2, "second caller for the same triple must lose the race")
}

func TestGet_PendingRecordReportsDuplicateInFlight(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	_, err := s.Begin(ctx, "r1", "u1", "submitReview")
	require.NoError(t, err)

	_, found, err := s.Get(ctx, "r1", "u1", "submitReview")
	assert.False(t, found)
	require.Error(t, err)
	var se *domain.SchedulerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.KindDuplicateInFlight, se.Kind)
}

func TestComplete_ThenGetReturnsResult(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	_, err := s.Begin(ctx, "r1", "u1", "submitReview")
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, "r1", "u1", "submitReview", map[string]string{"status": "ok"}))

	rec, found, err := s.Get(ctx, "r1", "u1", "submitReview")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(rec.Result), "ok")
}

func TestBegin_DifferentOperationsDoNotCollide(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	ok1, err := s.Begin(ctx, "r1", "u1", "submitReview")
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := s.Begin(ctx, "r1", "u1", "optimizeParameters")
	require.NoError(t, err)
	assert.True(t, ok2)
}
