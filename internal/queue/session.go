package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session connects one player session to the engine. The player calls
// QueueLow, SongAdvanced and Refresh from its own callbacks; the session
// coalesces them onto a single worker goroutine.
type Session struct {
	engine *Engine
	logger *zap.Logger
	wakeup chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	pendingPlayed []string
	refresh       bool
}

// StartSession starts the refill worker. It stops when ctx is cancelled or Stop is called;
// in-flight fetches, including background radio extensions, are cancelled with it.
func (e *Engine) StartSession(ctx context.Context) *Session {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.sessionCtx = ctx
	e.mu.Unlock()

	s := &Session{
		engine: e,
		logger: e.logger.Named("session"),
		wakeup: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run(ctx)
	return s
}

// QueueLow tells the engine the player is running out of upcoming tracks.
func (s *Session) QueueLow() {
	s.signal("queue_low")
}

// SongAdvanced records that playback moved to index. The previously current
// track is marked as played before the next refill check.
func (s *Session) SongAdvanced(index int) int {
	previous, hadCurrent := s.engine.Snapshot().Current()
	clamped := s.engine.UpdateCurrentIndex(index)

	if hadCurrent {
		if now, ok := s.engine.Snapshot().Current(); !ok || now.ID != previous.ID {
			s.mu.Lock()
			s.pendingPlayed = append(s.pendingPlayed, previous.ID)
			s.mu.Unlock()
		}
	}

	s.signal("song_advanced")
	return clamped
}

// Refresh appends a fresh batch regardless of how many tracks are upcoming.
func (s *Session) Refresh() {
	s.mu.Lock()
	s.refresh = true
	s.mu.Unlock()

	s.signal("refresh")
}

// Stop cancels the worker and waits for it to exit.
func (s *Session) Stop() {
	s.cancel()
	<-s.done
}

// Done is closed once the worker has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) signal(trigger string) {
	select {
	case s.wakeup <- struct{}{}:
		s.logger.Debug("Sent wake-up signal to session", zap.String("trigger", trigger))
	default:
		// A wake-up is already pending and will see this trigger's state.
		s.logger.Debug("Session wake-up already pending", zap.String("trigger", trigger))
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	interval := s.engine.cfg.RefillCheckInterval
	s.logger.Info("Starting queue session", zap.Duration("refillCheckInterval", interval))

	// A nil channel blocks forever, which disables the safety-net tick.
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Queue session stopped")
			return
		case <-tick:
			s.handleWakeup(ctx)
		case <-s.wakeup:
			s.handleWakeup(ctx)
		}
	}
}

func (s *Session) handleWakeup(ctx context.Context) {
	s.mu.Lock()
	played := s.pendingPlayed
	s.pendingPlayed = nil
	refresh := s.refresh
	s.refresh = false
	s.mu.Unlock()

	for _, id := range played {
		s.engine.MarkSongAsPlayed(id)
	}

	seedID := s.currentSeed()
	if seedID == "" {
		s.logger.Debug("No seed track available, skipping refill")
		return
	}

	if refresh {
		s.refreshQueue(ctx, seedID)
		return
	}

	added, err := s.engine.EnsureQueueNotEmpty(ctx, seedID)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Queue refill failed, will retry on next trigger",
				zap.String("seedID", seedID),
				zap.Error(err))
		}
		return
	}
	if added {
		s.logger.Debug("Queue refilled", zap.String("seedID", seedID))
	}
}

func (s *Session) refreshQueue(ctx context.Context, seedID string) {
	e := s.engine

	e.mu.Lock()
	generation := e.generation
	e.mu.Unlock()

	tracks, err := e.GetRelatedSongs(ctx, seedID, e.cfg.RefillBatchSize)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Manual refresh failed", zap.String("seedID", seedID), zap.Error(err))
		}
		return
	}

	added := e.addTracks(tracks, sourceRefresh, false, &generation)
	s.logger.Info("Manual refresh finished",
		zap.String("seedID", seedID),
		zap.Int("added", added))
}

// currentSeed is the current track, or the last queued one when nothing is current.
func (s *Session) currentSeed() string {
	snap := s.engine.Snapshot()
	if current, ok := snap.Current(); ok {
		return current.ID
	}
	if n := len(snap.Tracks); n > 0 {
		return snap.Tracks[n-1].ID
	}
	return ""
}
