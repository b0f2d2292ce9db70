package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketing-chatbot-platform/internal/logger"
)

// CacheService is a thin JSON-over-Redis layer. Every miss is reported as
// (found=false, nil error); only transport failures surface as errors.
type CacheService struct {
	client *redis.Client
}

func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

// Enabled reports whether a Redis client was configured; callers degrade to
// uncached behavior when it was not.
func (cs *CacheService) Enabled() bool {
	return cs != nil && cs.client != nil
}

// Get unmarshals the cached value for key into dest.
func (cs *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !cs.Enabled() {
		return false, nil
	}

	data, err := cs.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry is treated as a miss and evicted.
		cs.client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// Set marshals value as JSON and stores it under key with the given TTL.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !cs.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// SetAsync writes to the cache in the background. Failures are logged and
// never reach the caller; the cache is an optimization, not a dependency.
func (cs *CacheService) SetAsync(key string, value interface{}, ttl time.Duration) {
	if !cs.Enabled() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := cs.Set(ctx, key, value, ttl); err != nil {
			logger.Warn("Async cache write failed", "key", key, "error", err)
		}
	}()
}

// GetOrCompute returns the cached value under key, or runs compute and
// returns its result immediately while the cache write happens in the
// background. Compute errors propagate; cache errors never do.
func GetOrCompute[T any](ctx context.Context, cs *CacheService, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if found, err := cs.Get(ctx, key, &cached); err != nil {
		logger.Warn("Cache read failed, recomputing", "key", key, "error", err)
	} else if found {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	cs.SetAsync(key, value, ttl)
	return value, nil
}

func (cs *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !cs.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := cs.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// InvalidatePattern deletes every key matching the glob pattern using SCAN,
// so it is safe against large keyspaces.
func (cs *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	if !cs.Enabled() {
		return nil
	}

	iter := cs.client.Scan(ctx, 0, pattern, 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := cs.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Cache invalidation delete failed", "key", iter.Val(), "error", err)
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}

	if deleted > 0 {
		logger.Debug("Cache pattern invalidated", "pattern", pattern, "deleted", deleted)
	}
	return nil
}
