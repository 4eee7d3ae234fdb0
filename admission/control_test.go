package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_ReleaseAllowsReacquire(t *testing.T) {
	c := New(Config{GlobalConcurrency: 1, PerUserConcurrency: 1, AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	release, err := c.Acquire(ctx, "u1")
	require.NoError(t, err)
	release()

	release2, err := c.Acquire(ctx, "u1")
	require.NoError(t, err)
	release2()
}

func TestAcquire_PerUserLimitBlocksSecondConcurrentCaller(t *testing.T) {
	c := New(Config{GlobalConcurrency: 10, PerUserConcurrency: 1, AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	release, err := c.Acquire(ctx, "u1")
	require.NoError(t, err)
	defer release()

	_, err = c.Acquire(ctx, "u1")
	assert.Error(t, err)
}

func TestAcquire_DifferentUsersDoNotContend(t *testing.T) {
	c := New(Config{GlobalConcurrency: 10, PerUserConcurrency: 1, AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	release1, err := c.Acquire(ctx, "u1")
	require.NoError(t, err)
	defer release1()

	release2, err := c.Acquire(ctx, "u2")
	require.NoError(t, err)
	defer release2()
}

func TestAcquire_GlobalLimitBlocks(t *testing.T) {
	c := New(Config{GlobalConcurrency: 1, PerUserConcurrency: 5, AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	release, err := c.Acquire(ctx, "u1")
	require.NoError(t, err)
	defer release()

	_, err = c.Acquire(ctx, "u2")
	assert.Error(t, err)
}
