package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopsense/domain"
)

// ResultStore is the shared second tier of the recommendation result cache.
// Keys mirror the in-process cache so invalidation can sweep both tiers with
// the same prefix.
type ResultStore struct {
	client *redis.Client
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{
		client: client,
	}
}

func (r *ResultStore) Get(ctx context.Context, key string) (*domain.RecommendationResult, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get result from Redis: %w", err)
	}

	var result domain.RecommendationResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}

	return &result, nil
}

func (r *ResultStore) Set(ctx context.Context, key string, result *domain.RecommendationResult, ttl time.Duration) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := r.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result in Redis: %w", err)
	}

	return nil
}

// DeletePrefix removes every key under the prefix via SCAN, so a burst of
// invalidations does not block the server the way KEYS would.
func (r *ResultStore) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cached result: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached results: %w", err)
	}

	return nil
}
