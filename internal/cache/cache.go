package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// New creates a new cache based on configuration.
// Standalone mode: returns LRU cache.
// Distributed mode with two-phase: returns TwoPhaseCache wrapping LRU + Redis.
// Distributed mode without two-phase: returns Redis cache.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache implements the two-phase caching strategy.
// L1: Local LRU cache for fast reads
// L2: Redis for distributed caching and persistence
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	local := NewLRUCache(cfg.LocalMaxSize)

	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}

	l1TTL := cfg.LocalTTL
	if l1TTL == 0 {
		l1TTL = 5 * time.Minute
	}

	return &TwoPhaseCache{
		local:  local,
		remote: remote,
		l1TTL:  l1TTL,
	}, nil
}

// Get retrieves from L1 first, then L2. Populates L1 on L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, datasetID string, key string) ([]byte, error) {
	// Check L1 first
	val, err := c.local.Get(ctx, datasetID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		return val, nil
	}

	// Check L2
	val, err = c.remote.Get(ctx, datasetID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		// Populate L1 for future reads
		_ = c.local.Set(ctx, datasetID, key, val, c.l1TTL)
	}

	return val, nil
}

// Set writes to both L1 and L2.
func (c *TwoPhaseCache) Set(ctx context.Context, datasetID string, key string, value []byte, ttl time.Duration) error {
	// Write to L1 with shorter TTL
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.local.Set(ctx, datasetID, key, value, l1TTL); err != nil {
		return err
	}

	// Write to L2 with full TTL
	return c.remote.Set(ctx, datasetID, key, value, ttl)
}

// Delete removes from both L1 and L2.
func (c *TwoPhaseCache) Delete(ctx context.Context, datasetID string, key string) error {
	if err := c.local.Delete(ctx, datasetID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, datasetID, key)
}

// GetReport retrieves a cached report, L1 first.
func (c *TwoPhaseCache) GetReport(ctx context.Context, datasetID string, key string) (*domain.Report, error) {
	// Check L1 first
	rep, err := c.local.GetReport(ctx, datasetID, key)
	if err != nil {
		return nil, err
	}
	if rep != nil {
		return rep, nil
	}

	// Check L2
	rep, err = c.remote.GetReport(ctx, datasetID, key)
	if err != nil {
		return nil, err
	}
	if rep != nil {
		// Populate L1
		_ = c.local.SetReport(ctx, datasetID, key, rep, c.l1TTL)
	}

	return rep, nil
}

// SetReport caches a report in both L1 and L2.
func (c *TwoPhaseCache) SetReport(ctx context.Context, datasetID string, key string, report *domain.Report, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.local.SetReport(ctx, datasetID, key, report, l1TTL); err != nil {
		return err
	}
	return c.remote.SetReport(ctx, datasetID, key, report, ttl)
}

// SnapshotVersion reads the version from Redis. L1 is not consulted so
// every node observes the same version sequence.
func (c *TwoPhaseCache) SnapshotVersion(ctx context.Context, datasetID string) (int64, error) {
	return c.remote.SnapshotVersion(ctx, datasetID)
}

// BumpSnapshotVersion increments the version in Redis.
func (c *TwoPhaseCache) BumpSnapshotVersion(ctx context.Context, datasetID string) (int64, error) {
	return c.remote.BumpSnapshotVersion(ctx, datasetID)
}

// Ping checks both L1 and L2 health.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both L1 and L2.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 cache statistics.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}
