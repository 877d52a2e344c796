package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ytqueue/internal/core"
)

const (
	fetchSourceDetails = "details"
	fetchSourceUpNext  = "up_next"
	fetchSourceRadio   = "radio"
	fetchSourceSearch  = "search"

	fetchStatusOK      = "ok"
	fetchStatusEmpty   = "empty"
	fetchStatusError   = "error"
	fetchStatusTimeout = "timeout"

	// upNextPerRound and radioPerRound set the 2:1 interleave weighting.
	upNextPerRound = 2
	radioPerRound  = 1
)

// fetchRequest carries the per-fetch state that is read without the engine lock.
type fetchRequest struct {
	fetchID    string
	seedID     string
	seed       core.Track
	limit      int
	taste      core.TasteProfile
	rotation   int
	generation uint64
	logger     *zap.Logger
}

// primaryResult is what the concurrent fan-out produced.
type primaryResult struct {
	seed   core.Track
	upNext []core.Track
	radio  []core.Track
}

// GetRelatedSongs returns up to limit eligible tracks related to seedID that are
// neither queued nor played. Slow or failing sources only shrink the result; an
// empty result with a nil error means "nothing right now, try again later".
func (e *Engine) GetRelatedSongs(ctx context.Context, seedID string, limit int) (tracks []core.Track, err error) {
	seedID = strings.TrimSpace(seedID)
	if seedID == "" {
		return nil, fmt.Errorf("%w: blank seed id", core.ErrInvalidSeed)
	}
	if limit <= 0 {
		return []core.Track{}, nil
	}
	limit = min(limit, core.MaxRelatedLimit)

	if cached := e.cachedRelated(seedID, limit); len(cached) > 0 {
		return cached, nil
	}

	req, ok := e.beginFetch(seedID, limit)
	if !ok {
		return []core.Track{}, nil
	}

	start := time.Now()
	var cacheable []core.Track
	defer func() {
		if r := recover(); r != nil {
			req.logger.Error("Recommendation pipeline panicked", zap.Any("panic", r))
			tracks, err, cacheable = nil, fmt.Errorf("%w: %v", core.ErrPipelineFault, r), nil
		}
		e.endFetch(req, cacheable)
		e.metrics.ObserveFetchDuration(time.Since(start))
	}()

	tracks, cacheable, err = e.runPipeline(ctx, req)
	if err != nil {
		cacheable = nil
		req.logger.Warn("Recommendation fetch failed", zap.Error(err))
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cacheable = nil
		return nil, ctxErr
	}

	req.logger.Info("Recommendation fetch finished",
		zap.Int("returned", len(tracks)),
		zap.Duration("elapsed", time.Since(start)))

	return tracks, nil
}

// cachedRelated is the hot path for repeated triggers on the same seed.
func (e *Engine) cachedRelated(seedID string, limit int) []core.Track {
	cached := e.cache.Get(seedID)
	if len(cached) == 0 {
		e.metrics.RecordCacheLookup(false)
		return nil
	}

	survivors := e.filterCandidates(seedID, cached)
	if len(survivors) == 0 {
		e.metrics.RecordCacheLookup(false)
		return nil
	}

	e.metrics.RecordCacheLookup(true)
	e.logger.Debug("Serving recommendations from cache",
		zap.String("seedID", seedID),
		zap.Int("available", len(survivors)))

	if len(survivors) > limit {
		survivors = survivors[:limit]
	}
	return survivors
}

// beginFetch applies the debounce window and the single in-flight guard.
func (e *Engine) beginFetch(seedID string, limit int) (*fetchRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fetchActive {
		e.logger.Debug("Fetch already in flight, skipping", zap.String("seedID", seedID))
		return nil, false
	}

	minGap := e.cfg.DebounceDifferentSeed
	if seedID == e.lastFetchSeed {
		minGap = e.cfg.DebounceSameSeed
	}
	if !e.lastFetchAt.IsZero() {
		if gap := e.now().Sub(e.lastFetchAt); gap < minGap {
			e.logger.Debug("Fetch debounced",
				zap.String("seedID", seedID),
				zap.Duration("sinceLast", gap),
				zap.Duration("minGap", minGap))
			return nil, false
		}
	}

	e.fetchActive = true

	fetchID := uuid.NewString()
	req := &fetchRequest{
		fetchID:    fetchID,
		seedID:     seedID,
		seed:       core.Track{ID: seedID},
		limit:      limit,
		taste:      copyTaste(e.taste),
		rotation:   e.rotation,
		generation: e.generation,
		logger: e.logger.With(
			zap.String("fetchID", fetchID),
			zap.String("seedID", seedID)),
	}
	e.rotation += contextQueriesPerFetch

	// The player's own copy of the seed is a good default until details arrive.
	for _, t := range e.tracks {
		if t.ID == seedID {
			req.seed = t
			break
		}
	}

	return req, true
}

// endFetch always releases the guard and records the debounce timestamp.
// Results are cached only when the queue they were fetched for still exists.
func (e *Engine) endFetch(req *fetchRequest, cacheable []core.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fetchActive = false
	e.lastFetchAt = e.now()
	e.lastFetchSeed = req.seedID

	if req.generation == e.generation {
		e.cache.Put(req.seedID, cacheable)
	}
}

// runPipeline returns the tracks to hand back and the full list worth caching.
func (e *Engine) runPipeline(ctx context.Context, req *fetchRequest) (result, cacheable []core.Track, err error) {
	req.logger.Debug("Starting recommendation fetch", zap.Int("limit", req.limit))

	primary, err := e.fanOut(ctx, req, e.cfg.FetchTimeout)
	if err != nil {
		return nil, nil, err
	}
	req.seed = primary.seed

	candidates := interleave(primary.upNext, primary.radio, e.cfg.CandidateMultiplier*req.limit)
	ranked := e.rankAndFilter(req.seed, candidates)

	req.logger.Debug("Primary candidates ranked",
		zap.Int("upNext", len(primary.upNext)),
		zap.Int("radio", len(primary.radio)),
		zap.Int("interleaved", len(candidates)),
		zap.Int("eligible", len(ranked)))

	if len(ranked) >= min(req.limit, e.cfg.PrimaryFloor) {
		if len(ranked) > req.limit {
			return ranked[:req.limit], ranked, nil
		}
		return ranked, ranked, nil
	}

	collected, err := e.runFallbackChain(ctx, req, ranked)
	if err != nil {
		return nil, nil, err
	}
	return collected, collected, nil
}

// fanOut runs the seed lookup, up-next and radio calls concurrently. Each call
// has its own deadline and a failing call only empties its own slot.
func (e *Engine) fanOut(ctx context.Context, req *fetchRequest, timeout time.Duration) (primaryResult, error) {
	result := primaryResult{seed: req.seed}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		details, err := callWithTimeout(gctx, timeout, func(c context.Context) (*core.Track, error) {
			return e.provider.SongDetails(c, req.seedID)
		})
		if err := e.classifyFetchError(req, fetchSourceDetails, err, details != nil); err != nil {
			return err
		}
		if details != nil {
			merged := *details
			merged.ID = req.seedID
			if !merged.HasMetadata() {
				merged.Title, merged.Artist = req.seed.Title, req.seed.Artist
			}
			result.seed = merged
		}
		return nil
	})

	g.Go(func() error {
		tracks, err := callWithTimeout(gctx, timeout, func(c context.Context) ([]core.Track, error) {
			return e.provider.UpNext(c, req.seedID)
		})
		if err := e.classifyFetchError(req, fetchSourceUpNext, err, len(tracks) > 0); err != nil {
			return err
		}
		result.upNext = tracks
		return nil
	})

	g.Go(func() error {
		tracks, err := callWithTimeout(gctx, timeout, func(c context.Context) ([]core.Track, error) {
			return e.provider.RadioMix(c, req.seedID)
		})
		if err := e.classifyFetchError(req, fetchSourceRadio, err, len(tracks) > 0); err != nil {
			return err
		}
		result.radio = tracks
		return nil
	})

	if err := g.Wait(); err != nil {
		return primaryResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return primaryResult{}, err
	}
	return result, nil
}

// classifyFetchError records the outcome of one provider call and returns a
// non-nil error only when the whole fetch must fail.
func (e *Engine) classifyFetchError(req *fetchRequest, source string, err error, nonEmpty bool) error {
	switch {
	case err == nil && nonEmpty:
		e.metrics.RecordFetch(source, fetchStatusOK)
		return nil
	case err == nil:
		e.metrics.RecordFetch(source, fetchStatusEmpty)
		return nil
	case errors.Is(err, core.ErrProviderUnavailable), errors.Is(err, core.ErrPipelineFault):
		e.metrics.RecordFetch(source, fetchStatusError)
		return err
	case errors.Is(err, context.DeadlineExceeded):
		e.metrics.RecordFetch(source, fetchStatusTimeout)
		req.logger.Debug("Provider call timed out", zap.String("source", source))
		return nil
	default:
		e.metrics.RecordFetch(source, fetchStatusError)
		req.logger.Debug("Provider call failed", zap.String("source", source), zap.Error(err))
		return nil
	}
}

// callWithTimeout bounds fn by timeout. A call that ignores its context is
// abandoned at the deadline; its goroutine finishes in the background.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: provider panic: %v", core.ErrPipelineFault, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// interleave merges two lists taking two from primary then one from secondary,
// dropping repeated ids, until both are exhausted or capacity is reached.
func interleave(primary, secondary []core.Track, capacity int) []core.Track {
	out := make([]core.Track, 0, min(capacity, len(primary)+len(secondary)))
	seen := make(map[string]struct{}, cap(out))

	add := func(t core.Track) {
		if len(out) >= capacity || t.ID == "" {
			return
		}
		if _, dup := seen[t.ID]; dup {
			return
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}

	i, j := 0, 0
	for (i < len(primary) || j < len(secondary)) && len(out) < capacity {
		for k := 0; k < upNextPerRound && i < len(primary); k++ {
			add(primary[i])
			i++
		}
		for k := 0; k < radioPerRound && j < len(secondary); k++ {
			add(secondary[j])
			j++
		}
	}

	return out
}

// rankAndFilter orders candidates by affinity to seed and drops anything that
// may not be recommended.
func (e *Engine) rankAndFilter(seed core.Track, candidates []core.Track) []core.Track {
	return e.filterCandidates(seed.ID, e.ranker.Rank(seed, candidates))
}

func (e *Engine) filterCandidates(seedID string, candidates []core.Track) []core.Track {
	seen := make(map[string]struct{}, len(candidates))
	return lo.Filter(candidates, func(t core.Track, _ int) bool {
		if t.ID == "" || t.ID == seedID || !t.IsQueueEligible() {
			return false
		}
		if e.queued.Has(t.ID) || e.played.Has(t.ID) {
			return false
		}
		if _, dup := seen[t.ID]; dup {
			return false
		}
		seen[t.ID] = struct{}{}
		return true
	})
}

// EnsureQueueNotEmpty refills the queue when fewer than MinQueueSize tracks
// follow the current one. It reports whether any tracks were appended.
func (e *Engine) EnsureQueueNotEmpty(ctx context.Context, seedID string) (bool, error) {
	e.mu.Lock()
	if !e.infinite {
		e.mu.Unlock()
		return false, nil
	}
	upcoming := len(e.tracks) - e.index - 1
	generation := e.generation
	e.mu.Unlock()

	if upcoming >= e.cfg.MinQueueSize {
		return false, nil
	}

	batch := e.cfg.RefillBatchSize
	if upcoming <= 1 {
		batch *= 2
	}

	e.logger.Debug("Queue running low",
		zap.String("seedID", seedID),
		zap.Int("upcoming", upcoming),
		zap.Int("batch", batch))

	tracks, err := e.GetRelatedSongs(ctx, seedID, batch)
	if err != nil {
		return false, err
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	return e.addTracks(tracks, sourceRefill, false, &generation) > 0, nil
}

// InstantRadio starts a new queue from seed using only the primary fan-out
// under a short deadline, then fetches the full batch in the background.
// It returns the new queue contents. ctx bounds only the fast path; the
// background fetch ends with the session or Close.
func (e *Engine) InstantRadio(ctx context.Context, seed core.Track, limit int) ([]core.Track, error) {
	if strings.TrimSpace(seed.ID) == "" {
		return nil, fmt.Errorf("%w: blank seed id", core.ErrInvalidSeed)
	}
	if err := checkSeedEligible(seed); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.cfg.RefillBatchSize
	}
	limit = min(limit, core.MaxRelatedLimit)

	fetchID := uuid.NewString()
	req := &fetchRequest{
		fetchID: fetchID,
		seedID:  seed.ID,
		seed:    seed,
		limit:   limit,
		logger: e.logger.With(
			zap.String("fetchID", fetchID),
			zap.String("seedID", seed.ID),
			zap.Bool("instant", true)),
	}

	primary, err := e.fanOut(ctx, req, e.cfg.InstantTimeout)
	if err != nil {
		return nil, err
	}
	if !seed.HasMetadata() {
		seed = primary.seed
		if err := checkSeedEligible(seed); err != nil {
			return nil, err
		}
	}

	// The old queue is being discarded, so only the played set excludes candidates here.
	candidates := e.ranker.Rank(seed, interleave(primary.upNext, primary.radio, e.cfg.CandidateMultiplier*limit))
	seen := map[string]struct{}{seed.ID: {}}
	picked := make([]core.Track, 0, min(limit, len(candidates))+1)
	picked = append(picked, seed)
	for _, t := range candidates {
		if len(picked) > limit {
			break
		}
		if _, dup := seen[t.ID]; dup || !t.IsQueueEligible() || e.played.Has(t.ID) {
			continue
		}
		seen[t.ID] = struct{}{}
		picked = append(picked, t)
	}

	e.mu.Lock()
	e.tracks = picked
	e.index = 0
	e.queued.Load(lo.Map(picked, func(t core.Track, _ int) string { return t.ID }))
	e.generation++
	generation := e.generation
	infinite := e.infinite
	snapshot := append([]core.Track{}, e.tracks...)
	e.metrics.RecordTracksAdded(sourceRadio, len(picked)-1)
	e.publishLocked(ReasonRadio)
	var bgCtx context.Context
	var bgCancel context.CancelFunc
	if infinite {
		bgCtx, bgCancel = e.backgroundContextLocked()
		e.background.Add(1)
	}
	e.mu.Unlock()

	req.logger.Info("Instant radio started", zap.Int("tracks", len(picked)))

	if infinite {
		go func() {
			defer e.background.Done()
			defer bgCancel()
			e.extendRadio(bgCtx, seed.ID, generation)
		}()
	}

	return snapshot, nil
}

// checkSeedEligible rejects seeds that could not be queued themselves.
func checkSeedEligible(seed core.Track) error {
	if seed.IsQueueEligible() {
		return nil
	}
	return fmt.Errorf("%w: %s is a %s, not a song", core.ErrInvalidSeed, seed.ID, seed.Kind)
}

// extendRadio runs the full recommendation pipeline for a fresh radio queue.
func (e *Engine) extendRadio(ctx context.Context, seedID string, generation uint64) {
	tracks, err := e.GetRelatedSongs(ctx, seedID, e.cfg.RefillBatchSize)
	if err != nil {
		e.logger.Warn("Background radio fetch failed", zap.String("seedID", seedID), zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	added := e.addTracks(tracks, sourceRadio, false, &generation)
	e.logger.Debug("Background radio fetch appended tracks",
		zap.String("seedID", seedID),
		zap.Int("added", added))
}
