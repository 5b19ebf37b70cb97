package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (standalone) + Redis (distributed).
// All methods require datasetID for strict dataset isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, datasetID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, datasetID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, datasetID string, key string) error

	// GetReport retrieves a cached query report.
	GetReport(ctx context.Context, datasetID string, key string) (*Report, error)

	// SetReport caches a query report under a fingerprint key.
	SetReport(ctx context.Context, datasetID string, key string, report *Report, ttl time.Duration) error

	// SnapshotVersion returns the dataset's current snapshot version.
	// Report cache keys include the version, so bumping it implicitly
	// invalidates every report cached against the prior snapshot.
	SnapshotVersion(ctx context.Context, datasetID string) (int64, error)

	// BumpSnapshotVersion atomically increments the snapshot version
	// and returns the new value.
	BumpSnapshotVersion(ctx context.Context, datasetID string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (standalone mode)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (distributed mode)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
