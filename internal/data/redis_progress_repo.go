package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/review-harvester/internal/domain/model"
)

// DefaultProgressKey is the Redis key holding the current extraction progress snapshot.
const DefaultProgressKey = "harvester:progress:current"

// RedisProgressRepo mirrors the extraction progress snapshot into Redis.
type RedisProgressRepo struct {
	client redis.UniversalClient
	key    string
}

// NewRedisProgressRepo creates a RedisProgressRepo. An empty key uses DefaultProgressKey.
func NewRedisProgressRepo(client redis.UniversalClient, key string) *RedisProgressRepo {
	if key == "" {
		key = DefaultProgressKey
	}
	return &RedisProgressRepo{client: client, key: key}
}

// Put overwrites the snapshot. A non-positive ttl stores it without expiry.
func (r *RedisProgressRepo) Put(ctx context.Context, p *model.ExtractionProgress, ttl time.Duration) error {
	if p == nil {
		return errors.New("progress is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set progress: %w", err)
	}
	return nil
}

// Get returns the stored snapshot, or nil when none exists.
func (r *RedisProgressRepo) Get(ctx context.Context) (*model.ExtractionProgress, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get progress: %w", err)
	}
	var p model.ExtractionProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &p, nil
}

// Clear removes the snapshot.
func (r *RedisProgressRepo) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del progress: %w", err)
	}
	return nil
}

// Health checks the health of the Redis connection.
func (r *RedisProgressRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
