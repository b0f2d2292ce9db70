package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRingRetrySucceedsOnFirstKey(t *testing.T) {
	ring := NewKeyRing([]string{"key-a", "key-b"})

	var used []string
	err := ring.Retry(context.Background(), func(ctx context.Context, apiKey string) error {
		used = append(used, apiKey)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"key-a"}, used)
}

func TestKeyRingRetryRotatesOnFailure(t *testing.T) {
	ring := NewKeyRing([]string{"key-a", "key-b", "key-c"})

	var used []string
	err := ring.Retry(context.Background(), func(ctx context.Context, apiKey string) error {
		used = append(used, apiKey)
		if apiKey == "key-a" {
			return errors.New("quota exceeded")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"key-a", "key-b"}, used)
}

func TestKeyRingRetryStaysOnWorkingKey(t *testing.T) {
	ring := NewKeyRing([]string{"key-a", "key-b"})

	// First call burns key-a and lands on key-b.
	_ = ring.Retry(context.Background(), func(ctx context.Context, apiKey string) error {
		if apiKey == "key-a" {
			return errors.New("quota exceeded")
		}
		return nil
	})

	// The next call starts at key-b, not back at key-a.
	var used []string
	err := ring.Retry(context.Background(), func(ctx context.Context, apiKey string) error {
		used = append(used, apiKey)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"key-b"}, used)
}

func TestKeyRingRetryAllKeysExhausted(t *testing.T) {
	ring := NewKeyRing([]string{"key-a", "key-b"})

	attempts := 0
	err := ring.Retry(context.Background(), func(ctx context.Context, apiKey string) error {
		attempts++
		return errors.New("invalid key")
	})

	assert.ErrorIs(t, err, ErrAllKeysExhausted)
	assert.Contains(t, err.Error(), "invalid key")
	assert.Equal(t, 2, attempts)
}

func TestKeyRingRetryNoKeys(t *testing.T) {
	ring := NewKeyRing(nil)

	err := ring.Retry(context.Background(), func(ctx context.Context, apiKey string) error {
		t.Fatal("op must not be called without keys")
		return nil
	})

	assert.ErrorIs(t, err, ErrNoAPIKeys)
}

func TestKeyRingRetryHonorsContext(t *testing.T) {
	ring := NewKeyRing([]string{"key-a", "key-b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ring.Retry(ctx, func(ctx context.Context, apiKey string) error {
		return errors.New("should not matter")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyRingLen(t *testing.T) {
	assert.Equal(t, 0, NewKeyRing(nil).Len())
	assert.False(t, NewKeyRing(nil).HasKeys())
	assert.Equal(t, 3, NewKeyRing([]string{"a", "b", "c"}).Len())
}
