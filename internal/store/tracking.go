// Package store provides the engine's bounded tracking sets and SQLite queue persistence.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// bloomRebuildFactor controls how many insertions (as a multiple of capacity)
// the filter absorbs before it is rebuilt from the live ids. The filter cannot
// forget evicted ids, so without rebuilding it would saturate over a long session.
const bloomRebuildFactor = 4

// TrackingSet is a thread-safe set of track ids capped at a fixed size.
// When full, the oldest-inserted id is evicted; lookups never refresh an id.
type TrackingSet struct {
	trackIDs               map[string]struct{}
	bloom                  *bloom.BloomFilter
	order                  *lru.Cache[string, struct{}]
	mutex                  sync.RWMutex
	maxTracks              int
	bloomFalsePositiveRate float64
	insertsSinceRebuild    int
}

// NewTrackingSet creates a set holding at most maxTracks ids.
func NewTrackingSet(maxTracks int, bloomFalsePositiveRate float64) *TrackingSet {
	if maxTracks <= 0 || maxTracks > int(^uint(0)>>1) {
		panic("maxTracks value out of range for uint conversion")
	}
	// The LRU is one larger than the cap so eviction stays under our control.
	order, _ := lru.New[string, struct{}](maxTracks + 1)

	return &TrackingSet{
		trackIDs:               make(map[string]struct{}),
		bloom:                  bloom.NewWithEstimates(uint(maxTracks), bloomFalsePositiveRate),
		order:                  order,
		maxTracks:              maxTracks,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}
}

// Has checks if a track ID is in the set.
func (ts *TrackingSet) Has(trackID string) bool {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	if !ts.bloom.TestString(trackID) {
		return false
	}

	_, exists := ts.trackIDs[trackID]
	return exists
}

// Add inserts a track ID, evicting the oldest insertion if the set is full.
// Adding an ID that is already present does not change its position.
func (ts *TrackingSet) Add(trackID string) {
	if trackID == "" {
		return
	}

	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	ts.add(trackID)
}

// Remove deletes a track ID from the set.
func (ts *TrackingSet) Remove(trackID string) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	if _, exists := ts.trackIDs[trackID]; !exists {
		return
	}

	delete(ts.trackIDs, trackID)
	ts.order.Remove(trackID)
}

// Load clears the set and inserts the provided IDs in order.
// If there are more than the cap, the earliest ones are evicted.
func (ts *TrackingSet) Load(trackIDs []string) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	ts.clear()

	for _, trackID := range trackIDs {
		if trackID != "" {
			ts.add(trackID)
		}
	}
}

// IDs returns the stored IDs from oldest to newest insertion.
func (ts *TrackingSet) IDs() []string {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()
	return ts.order.Keys()
}

// Size returns the number of track IDs currently stored.
func (ts *TrackingSet) Size() int {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()
	return len(ts.trackIDs)
}

// Capacity returns the configured cap.
func (ts *TrackingSet) Capacity() int {
	return ts.maxTracks
}

// Clear removes all track IDs from the set.
func (ts *TrackingSet) Clear() {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.clear()
}

func (ts *TrackingSet) add(trackID string) {
	if _, exists := ts.trackIDs[trackID]; exists {
		return
	}

	ts.trackIDs[trackID] = struct{}{}
	ts.order.Add(trackID, struct{}{})
	ts.bloom.AddString(trackID)
	ts.insertsSinceRebuild++

	for len(ts.trackIDs) > ts.maxTracks {
		ts.evictOldest()
	}

	if ts.insertsSinceRebuild > ts.maxTracks*bloomRebuildFactor {
		ts.rebuildBloom()
	}
}

func (ts *TrackingSet) clear() {
	ts.trackIDs = make(map[string]struct{})
	ts.bloom = bloom.NewWithEstimates(uint(ts.maxTracks), ts.bloomFalsePositiveRate)
	ts.order.Purge()
	ts.insertsSinceRebuild = 0
}

func (ts *TrackingSet) rebuildBloom() {
	ts.bloom = bloom.NewWithEstimates(uint(ts.maxTracks), ts.bloomFalsePositiveRate)
	for trackID := range ts.trackIDs {
		ts.bloom.AddString(trackID)
	}
	ts.insertsSinceRebuild = 0
}

func (ts *TrackingSet) evictOldest() {
	oldestKey, _, ok := ts.order.GetOldest()
	if !ok {
		return
	}

	delete(ts.trackIDs, oldestKey)
	ts.order.Remove(oldestKey)
}
