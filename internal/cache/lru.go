// Package cache provides caching implementations for query reports.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// LRUCache is a thread-safe LRU cache with TTL support.
// Used as the standalone-mode cache and as L1 in two-phase caching.
type LRUCache struct {
	mu       sync.RWMutex
	maxSize  int
	items    map[string]*list.Element
	order    *list.List
	versions map[string]int64
}

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with the specified max size.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize:  maxSize,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		versions: make(map[string]int64),
	}
}

// Get retrieves a value from cache.
func (c *LRUCache) Get(ctx context.Context, datasetID string, key string) ([]byte, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, nil
	}

	// Move to front (most recently used)
	c.order.MoveToFront(elem)
	return entry.value, nil
}

// Set stores a value in cache with TTL.
func (c *LRUCache) Set(ctx context.Context, datasetID string, key string, value []byte, ttl time.Duration) error {
	if datasetID == "" {
		return fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Update existing entry
	if elem, ok := c.items[fullKey]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		return nil
	}

	// Add new entry
	entry := &cacheEntry{
		key:       fullKey,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	elem := c.order.PushFront(entry)
	c.items[fullKey] = elem

	// Evict if over capacity
	for c.order.Len() > c.maxSize {
		c.removeOldest()
	}

	return nil
}

// Delete removes a value from cache.
func (c *LRUCache) Delete(ctx context.Context, datasetID string, key string) error {
	if datasetID == "" {
		return fmt.Errorf("datasetID is required")
	}

	fullKey := c.makeKey(datasetID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fullKey]; ok {
		c.removeElement(elem)
	}
	return nil
}

// GetReport retrieves a cached query report.
func (c *LRUCache) GetReport(ctx context.Context, datasetID string, key string) (*domain.Report, error) {
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
func (c *LRUCache) SetReport(ctx context.Context, datasetID string, key string, report *domain.Report, ttl time.Duration) error {
	bytes, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.Set(ctx, datasetID, "report:"+key, bytes, ttl)
}

// SnapshotVersion returns the dataset's current snapshot version.
// Datasets that were never refreshed report version 0.
func (c *LRUCache) SnapshotVersion(ctx context.Context, datasetID string) (int64, error) {
	if datasetID == "" {
		return 0, fmt.Errorf("datasetID is required")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[datasetID], nil
}

// BumpSnapshotVersion atomically increments the snapshot version.
// Report cache keys embed the version, so the bump orphans every
// report cached against the prior snapshot.
func (c *LRUCache) BumpSnapshotVersion(ctx context.Context, datasetID string) (int64, error) {
	if datasetID == "" {
		return 0, fmt.Errorf("datasetID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[datasetID]++
	return c.versions[datasetID], nil
}

// Ping checks cache health.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close cleans up the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.versions = make(map[string]int64)
	return nil
}

// Stats returns cache statistics.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len(), c.maxSize
}

func (c *LRUCache) makeKey(datasetID, key string) string {
	return datasetID + ":" + key
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
}

func (c *LRUCache) removeOldest() {
	elem := c.order.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}
