package queue

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"ytqueue/internal/core"
)

const (
	sourceManual   = "manual"
	sourcePlayNext = "play_next"
	sourceRefill   = "refill"
	sourceRefresh  = "refresh"
	sourceRadio    = "radio"
)

// AddToQueue appends the eligible tracks that are not already queued and
// returns how many were added.
func (e *Engine) AddToQueue(tracks []core.Track) int {
	return e.addTracks(tracks, sourceManual, false, nil)
}

// AddToPlayNext inserts the eligible, not yet queued tracks right after the current one.
func (e *Engine) AddToPlayNext(tracks []core.Track) int {
	return e.addTracks(tracks, sourcePlayNext, true, nil)
}

// addTracks filters and inserts tracks. A non-nil generation makes the insert
// a no-op when the queue was discarded after the tracks were fetched.
func (e *Engine) addTracks(tracks []core.Track, source string, playNext bool, generation *uint64) int {
	if len(tracks) == 0 {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != nil && *generation != e.generation {
		e.logger.Debug("Discarding tracks fetched for a replaced queue",
			zap.String("source", source),
			zap.Int("count", len(tracks)))
		return 0
	}

	present := make(map[string]struct{}, len(e.tracks)+len(tracks))
	for _, t := range e.tracks {
		present[t.ID] = struct{}{}
	}

	survivors := lo.Filter(tracks, func(t core.Track, _ int) bool {
		if t.ID == "" || !t.IsQueueEligible() || e.queued.Has(t.ID) {
			return false
		}
		if _, dup := present[t.ID]; dup {
			return false
		}
		present[t.ID] = struct{}{}
		return true
	})
	if len(survivors) == 0 {
		return 0
	}

	wasEmpty := len(e.tracks) == 0
	if playNext && !wasEmpty {
		e.tracks = slices.Insert(e.tracks, e.index+1, survivors...)
	} else if playNext {
		e.tracks = append(survivors, e.tracks...)
	} else {
		e.tracks = append(e.tracks, survivors...)
	}
	if wasEmpty {
		e.index = 0
	}

	for _, t := range survivors {
		e.queued.Add(t.ID)
	}

	e.logger.Debug("Added tracks to queue",
		zap.String("source", source),
		zap.Int("added", len(survivors)),
		zap.Int("rejected", len(tracks)-len(survivors)),
		zap.Int("queueLength", len(e.tracks)))

	e.metrics.RecordTracksAdded(source, len(survivors))
	reason := ReasonAdded
	if playNext {
		reason = ReasonPlayNext
	}
	e.publishLocked(reason)

	return len(survivors)
}

// MarkSongAsPlayed moves id from the queued set to the played set so it is
// never recommended again this session.
func (e *Engine) MarkSongAsPlayed(id string) {
	if id == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.queued.Remove(id)
	e.played.Add(id)
}

// SyncQueueState replaces the queue with the player's view. Tracks are not
// re-checked for eligibility; the player is the source of truth.
func (e *Engine) SyncQueueState(tracks []core.Track, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracks = append([]core.Track{}, tracks...)
	e.index = clampIndex(index, len(e.tracks))
	e.queued.Load(lo.Map(e.tracks, func(t core.Track, _ int) string { return t.ID }))

	e.logger.Debug("Synced queue state",
		zap.Int("tracks", len(e.tracks)),
		zap.Int("index", e.index))

	e.publishLocked(ReasonSynced)
}

// RemoveFromQueue deletes the track at index. It returns false for an out-of-range index.
func (e *Engine) RemoveFromQueue(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.tracks) {
		return false
	}

	removed := e.tracks[index]
	e.tracks = slices.Delete(e.tracks, index, index+1)

	// A synced queue may hold the same id twice; keep it tracked while any copy remains.
	if !slices.ContainsFunc(e.tracks, func(t core.Track) bool { return t.ID == removed.ID }) {
		e.queued.Remove(removed.ID)
	}

	if e.index > index {
		e.index--
	} else if e.index == index && e.index >= len(e.tracks) {
		// The next track becomes current; clamp when the last one was removed.
		e.index = len(e.tracks) - 1
	}

	e.publishLocked(ReasonRemoved)
	return true
}

// MoveSong moves the track at from to position to. The current index follows
// the current track.
func (e *Engine) MoveSong(from, to int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}

	track := e.tracks[from]
	e.tracks = slices.Delete(e.tracks, from, from+1)
	e.tracks = slices.Insert(e.tracks, to, track)

	switch {
	case e.index == from:
		e.index = to
	case from < e.index && to >= e.index:
		e.index--
	case from > e.index && to <= e.index:
		e.index++
	}

	e.publishLocked(ReasonMoved)
	return true
}

// UpdateCurrentIndex sets the current position, clamped into range, and returns it.
func (e *Engine) UpdateCurrentIndex(index int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	clamped := clampIndex(index, len(e.tracks))
	if clamped != e.index {
		e.index = clamped
		e.publishLocked(ReasonIndexChanged)
	}
	return clamped
}

// ClearQueue empties the queue and forgets all tracking, cache and debounce state.
func (e *Engine) ClearQueue() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracks = nil
	e.index = -1
	e.queued.Clear()
	e.played.Clear()
	e.cache.Clear()
	e.lastFetchAt = time.Time{}
	e.lastFetchSeed = ""
	e.generation++

	e.logger.Info("Queue cleared")
	e.publishLocked(ReasonCleared)
}

func clampIndex(index, length int) int {
	if length == 0 {
		return -1
	}
	if index < 0 {
		return 0
	}
	if index >= length {
		return length - 1
	}
	return index
}
