package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache using Redis.
// Used as the distributed-mode cache and as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, datasetID string, key string) ([]byte, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, key)
	val, err := c.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, datasetID string, key string, value []byte, ttl time.Duration) error {
	if datasetID == "" {
		return fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, key)
	return c.client.Set(ctx, fullKey, value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, datasetID string, key string) error {
	if datasetID == "" {
		return fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, key)
	return c.client.Del(ctx, fullKey).Err()
}

// GetReport retrieves a cached query report.
func (c *RedisCache) GetReport(ctx context.Context, datasetID string, key string) (*domain.Report, error) {
	data, err := c.Get(ctx, datasetID, "report:"+key)
	if err != nil || data == nil {
		return nil, err
	}

	var rep domain.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// SetReport caches a query report under its fingerprint key.
func (c *RedisCache) SetReport(ctx context.Context, datasetID string, key string, report *domain.Report, ttl time.Duration) error {
	bytes, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.Set(ctx, datasetID, "report:"+key, bytes, ttl)
}

// SnapshotVersion returns the dataset's current snapshot version.
func (c *RedisCache) SnapshotVersion(ctx context.Context, datasetID string) (int64, error) {
	if datasetID == "" {
		return 0, fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, "snapshot:version")
	val, err := c.client.Get(ctx, fullKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// BumpSnapshotVersion atomically increments the snapshot version using
// Redis INCR, so every node observes the same version sequence.
func (c *RedisCache) BumpSnapshotVersion(ctx context.Context, datasetID string) (int64, error) {
	if datasetID == "" {
		return 0, fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, "snapshot:version")
	return c.client.Incr(ctx, fullKey).Result()
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) makeKey(datasetID, key string) string {
	return "superstore:" + datasetID + ":" + key
}
