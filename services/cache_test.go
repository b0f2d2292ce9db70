package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Without a Redis client the cache degrades to pass-through behavior; the
// pipeline must keep working.
func TestCacheServiceDisabled(t *testing.T) {
	cs := NewCacheService(nil)
	ctx := context.Background()

	assert.False(t, cs.Enabled())

	var out string
	found, err := cs.Get(ctx, "question:abc", &out)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cs.Set(ctx, "question:abc", "value", time.Minute))
	assert.NoError(t, cs.Delete(ctx, "question:abc"))
	assert.NoError(t, cs.InvalidatePattern(ctx, "chunks:*"))
	cs.SetAsync("question:abc", "value", time.Minute)
}

func TestGetOrComputeDisabledAlwaysComputes(t *testing.T) {
	cs := NewCacheService(nil)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrCompute(ctx, cs, "counter", time.Minute, compute)
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	}
	assert.Equal(t, 3, calls)
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	cs := NewCacheService(nil)

	_, err := GetOrCompute(context.Background(), cs, "key", time.Minute,
		func(ctx context.Context) (string, error) {
			return "", errors.New("store unavailable")
		})
	assert.EqualError(t, err, "store unavailable")
}
