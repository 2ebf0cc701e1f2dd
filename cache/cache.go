package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/use-agent/gridsight/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.ExtractResponse
	createdAt time.Time
}

// Cache is a simple in-memory cache for extraction responses.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries
// (older than 1 hour).
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// Key generates a cache key from the URL and the geometry knobs that
// change what an extraction returns. Two requests differing only in
// timeout or cache policy share an entry; one differing in any grid
// size produces different records and must not.
func Key(req *models.ExtractRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%g|%d|%d|%d|%d",
		req.URL,
		req.MaxPasses,
		req.ScrollOverlapRatio,
		req.DedupCellSize,
		req.ClassifyCellSize,
		req.RowBandHeight,
		req.SettleDelayMs,
	)
	if req.SizeFilter != nil {
		fmt.Fprintf(h, "|%g,%g,%g,%g",
			req.SizeFilter.WMin, req.SizeFilter.WMax,
			req.SizeFilter.HMin, req.SizeFilter.HMax,
		)
	}
	if req.FallbackThreshold != nil {
		fmt.Fprintf(h, "|%d", *req.FallbackThreshold)
	}
	fmt.Fprintf(h, "|%t", req.EnrichDetails)
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached response if it exists and is younger than
// maxAgeMs milliseconds. If maxAgeMs <= 0, no lookup is performed.
// Returns the response and whether it was a cache hit.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ExtractResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	return e.response, true
}

// Set stores a response in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, resp *models.ExtractResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
