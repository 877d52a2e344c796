// Package queue owns the live playback queue and keeps it supplied with
// recommendations when infinite mode is on.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ytqueue/internal/cache"
	"ytqueue/internal/core"
	"ytqueue/internal/ranker"
	"ytqueue/internal/store"
)

const (
	trackingFalsePositiveRate = 0.01
	subscriptionBuffer        = 16
)

// Engine is the single owner of queue state. All state below mu is guarded by it;
// provider calls are never made while it is held.
type Engine struct {
	provider core.MusicSearchProvider
	ranker   *ranker.Ranker
	cache    *cache.RecommendationCache
	queued   *store.TrackingSet
	played   *store.TrackingSet
	metrics  core.Metrics
	logger   *zap.Logger
	cfg      core.EngineConfig

	mu            sync.Mutex
	now           func() time.Time
	tracks        []core.Track
	index         int
	infinite      bool
	taste         core.TasteProfile
	fetchActive   bool
	lastFetchAt   time.Time
	lastFetchSeed string
	rotation      int
	// generation changes whenever the queue is discarded wholesale, so a fetch
	// started before a clear or radio restart does not leak into the new queue.
	generation  uint64
	subscribers map[*Subscription]struct{}
	// sessionCtx belongs to the most recently started session.
	sessionCtx context.Context

	lifetime   context.Context
	stop       context.CancelFunc
	background sync.WaitGroup
}

// NewEngine creates an engine. Zero-valued config fields fall back to the defaults;
// a nil metrics sink discards measurements.
func NewEngine(provider core.MusicSearchProvider, cfg core.EngineConfig, metrics core.Metrics, logger *zap.Logger) *Engine {
	cfg = withDefaults(cfg)
	if metrics == nil {
		metrics = core.NopMetrics{}
	}

	lifetime, stop := context.WithCancel(context.Background())

	return &Engine{
		provider:    provider,
		ranker:      ranker.New(),
		cache:       cache.New(cfg.CacheTTL, cfg.CacheMaxEntries),
		queued:      store.NewTrackingSet(cfg.TrackingCapacity, trackingFalsePositiveRate),
		played:      store.NewTrackingSet(cfg.TrackingCapacity, trackingFalsePositiveRate),
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
		index:       -1,
		infinite:    cfg.InfiniteMode,
		subscribers: make(map[*Subscription]struct{}),
		lifetime:    lifetime,
		stop:        stop,
	}
}

func withDefaults(cfg core.EngineConfig) core.EngineConfig {
	def := core.DefaultEngineConfig()
	if cfg.MinQueueSize <= 0 {
		cfg.MinQueueSize = def.MinQueueSize
	}
	if cfg.RefillBatchSize <= 0 {
		cfg.RefillBatchSize = def.RefillBatchSize
	}
	if cfg.PrimaryFloor <= 0 {
		cfg.PrimaryFloor = def.PrimaryFloor
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = def.CandidateMultiplier
	}
	if cfg.TrackingCapacity <= 0 {
		cfg.TrackingCapacity = def.TrackingCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = def.CacheMaxEntries
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.InstantTimeout <= 0 {
		cfg.InstantTimeout = def.InstantTimeout
	}
	if cfg.DebounceSameSeed < 0 {
		cfg.DebounceSameSeed = def.DebounceSameSeed
	}
	if cfg.DebounceDifferentSeed < 0 {
		cfg.DebounceDifferentSeed = def.DebounceDifferentSeed
	}
	return cfg
}

// SetClock replaces the time source used for debouncing and cache expiry.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
	e.cache.SetClock(now)
}

// Config returns the effective engine configuration.
func (e *Engine) Config() core.EngineConfig {
	return e.cfg
}

// Snapshot returns a copy of the queue for display and persistence.
func (e *Engine) Snapshot() core.QueueSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() core.QueueSnapshot {
	return core.QueueSnapshot{
		Tracks:       append([]core.Track{}, e.tracks...),
		Index:        e.index,
		InfiniteMode: e.infinite,
	}
}

// InfiniteMode reports whether automatic refills are enabled.
func (e *Engine) InfiniteMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.infinite
}

// SetInfiniteMode toggles automatic refills.
func (e *Engine) SetInfiniteMode(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.infinite == enabled {
		return
	}
	e.infinite = enabled
	e.logger.Info("Infinite mode changed", zap.Bool("enabled", enabled))
	e.publishLocked(ReasonInfiniteMode)
}

// TasteProfile returns a copy of the current taste profile.
func (e *Engine) TasteProfile() core.TasteProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyTaste(e.taste)
}

// SetTasteProfile replaces the profile used by the taste-weighted fallback search.
func (e *Engine) SetTasteProfile(p core.TasteProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taste = copyTaste(p)
}

// IsQueued reports whether id is in the queued tracking set.
func (e *Engine) IsQueued(id string) bool {
	return e.queued.Has(id)
}

// IsPlayed reports whether id is in the played tracking set.
func (e *Engine) IsPlayed(id string) bool {
	return e.played.Has(id)
}

// QueuedIDs returns the queued tracking set, oldest first.
func (e *Engine) QueuedIDs() []string {
	return e.queued.IDs()
}

// Wait blocks until background work started by InstantRadio has finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// Close cancels background work and waits for it to exit.
func (e *Engine) Close() {
	e.stop()
	e.background.Wait()
}

// backgroundContextLocked returns a context for work that must outlive its
// caller. It ends when the engine is closed or the current session stops.
func (e *Engine) backgroundContextLocked() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(e.lifetime)
	if e.sessionCtx == nil {
		return ctx, cancel
	}
	stopAfter := context.AfterFunc(e.sessionCtx, cancel)
	return ctx, func() {
		stopAfter()
		cancel()
	}
}

func copyTaste(p core.TasteProfile) core.TasteProfile {
	return core.TasteProfile{
		TopArtists: append([]string(nil), p.TopArtists...),
		TopGenres:  append([]string(nil), p.TopGenres...),
	}
}
