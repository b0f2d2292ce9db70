package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ticketing-chatbot-platform/internal/logger"
)

var (
	// ErrNoAPIKeys means the ring was constructed without credentials.
	ErrNoAPIKeys = errors.New("no API keys configured")
	// ErrAllKeysExhausted means every key in the ring failed for one call.
	ErrAllKeysExhausted = errors.New("all API keys exhausted")
)

// KeyRing holds a pool of upstream API keys and rotates through them when a
// call fails (quota or auth errors on one key should not fail the request).
// The rotation index is shared by all concurrent embedding and generation
// calls, so it is guarded by a mutex.
type KeyRing struct {
	mu      sync.Mutex
	keys    []string
	current int
}

func NewKeyRing(keys []string) *KeyRing {
	return &KeyRing{keys: keys}
}

func (r *KeyRing) HasKeys() bool {
	return len(r.keys) > 0
}

func (r *KeyRing) Len() int {
	return len(r.keys)
}

// snapshot returns the active key and its position.
func (r *KeyRing) snapshot() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[r.current], r.current
}

// advance rotates past the key at position from. A concurrent caller may have
// already rotated; in that case the index is left alone.
func (r *KeyRing) advance(from int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == from {
		r.current = (r.current + 1) % len(r.keys)
	}
}

// Retry invokes op with each key in rotation order, starting at the current
// one and stopping at the first success. A failure advances the ring and
// moves on to the next key. When every key has failed, the last error is
// surfaced wrapped in ErrAllKeysExhausted.
func (r *KeyRing) Retry(ctx context.Context, op func(ctx context.Context, apiKey string) error) error {
	if !r.HasKeys() {
		return ErrNoAPIKeys
	}

	var lastErr error
	for attempt := 0; attempt < len(r.keys); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		key, pos := r.snapshot()
		err := op(ctx, key)
		if err == nil {
			return nil
		}

		lastErr = err
		logger.Warn("Upstream call failed, rotating API key", "key_index", pos, "error", err)
		r.advance(pos)
	}

	return fmt.Errorf("%w: %v", ErrAllKeysExhausted, lastErr)
}
