// Package cache memoizes recent recommendation batches per seed track.
package cache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ytqueue/internal/core"
)

type entry struct {
	storedAt time.Time
	tracks   []core.Track
}

// RecommendationCache holds the last good batch per seed id for a fixed TTL.
// Entries are evicted oldest-inserted first once the cap is exceeded; lookups
// use Peek so reads never refresh an entry's position.
type RecommendationCache struct {
	entries *lru.Cache[string, entry]
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a cache with the given TTL and entry cap.
func New(ttl time.Duration, maxEntries int) *RecommendationCache {
	if maxEntries <= 0 {
		maxEntries = core.DefaultCacheMaxEntries
	}
	entries, _ := lru.New[string, entry](maxEntries)
	return &RecommendationCache{
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (c *RecommendationCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get purges expired entries, then returns a copy of the tracks cached for seedID.
func (c *RecommendationCache) Get(seedID string) []core.Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpired()

	e, ok := c.entries.Peek(seedID)
	if !ok {
		return nil
	}
	return append([]core.Track(nil), e.tracks...)
}

// Put stores tracks for seedID. Empty batches and blank seeds are ignored.
func (c *RecommendationCache) Put(seedID string, tracks []core.Track) {
	if len(tracks) == 0 || strings.TrimSpace(seedID) == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-adding must count as a fresh insertion for eviction order.
	c.entries.Remove(seedID)
	c.entries.Add(seedID, entry{
		storedAt: c.now(),
		tracks:   append([]core.Track(nil), tracks...),
	})

	c.purgeExpired()
}

// Len returns the number of entries, expired or not.
func (c *RecommendationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *RecommendationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

func (c *RecommendationCache) purgeExpired() {
	cutoff := c.now().Add(-c.ttl)
	// Keys are ordered oldest to newest.
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if !e.storedAt.Before(cutoff) {
			continue
		}
		c.entries.Remove(key)
	}
}
