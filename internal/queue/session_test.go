package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytqueue/internal/core"
)

const (
	eventuallyWait = 2 * time.Second
	eventuallyTick = 10 * time.Millisecond
)

func TestSession_QueueLowRefills(t *testing.T) {
	p := newMockProvider()
	p.upNext = returns(songs("u", 30)...)
	e, _ := newTestEngine(p)
	e.SyncQueueState(songs("t", 2), 0)

	s := e.StartSession(context.Background())
	defer s.Stop()

	s.QueueLow()

	assert.Eventually(t, func() bool {
		return len(e.Snapshot().Tracks) > 2
	}, eventuallyWait, eventuallyTick)
}

func TestSession_SongAdvancedMarksPreviousAsPlayed(t *testing.T) {
	p := newMockProvider()
	e, _ := newTestEngine(p)
	e.SyncQueueState(songs("t", 6), 0)

	s := e.StartSession(context.Background())
	defer s.Stop()

	assert.Equal(t, 1, s.SongAdvanced(1))
	assert.Equal(t, 1, e.Snapshot().Index)

	assert.Eventually(t, func() bool {
		return e.IsPlayed("t0")
	}, eventuallyWait, eventuallyTick)
	assert.False(t, e.IsQueued("t0"))
	assert.True(t, e.IsQueued("t1"))
}

func TestSession_SongAdvancedClampsIndex(t *testing.T) {
	e, _ := newTestEngine(newMockProvider())
	e.SetInfiniteMode(false)
	e.SyncQueueState(songs("t", 3), 0)

	s := e.StartSession(context.Background())
	defer s.Stop()

	assert.Equal(t, 2, s.SongAdvanced(99))
}

func TestSession_RefreshAppendsWhenQueueIsFull(t *testing.T) {
	p := newMockProvider()
	p.upNext = returns(songs("u", 30)...)
	e, _ := newTestEngine(p)
	e.SyncQueueState(songs("t", 10), 0)

	s := e.StartSession(context.Background())
	defer s.Stop()

	s.Refresh()

	assert.Eventually(t, func() bool {
		return len(e.Snapshot().Tracks) == 10+e.Config().RefillBatchSize
	}, eventuallyWait, eventuallyTick)
}

func TestSession_InfiniteModeOffDoesNotFetch(t *testing.T) {
	p := newMockProvider()
	p.upNext = returns(songs("u", 30)...)
	e, _ := newTestEngine(p)
	e.SetInfiniteMode(false)
	e.SyncQueueState(songs("t", 1), 0)

	s := e.StartSession(context.Background())
	s.QueueLow()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Equal(t, 0, p.totalCalls())
	assert.Len(t, e.Snapshot().Tracks, 1)
}

func TestSession_TickerRefillsWithoutSignal(t *testing.T) {
	p := newMockProvider()
	p.upNext = returns(songs("u", 30)...)

	cfg := testConfig()
	cfg.RefillCheckInterval = 20 * time.Millisecond
	e, _ := newTestEngineWithConfig(p, cfg)
	e.SyncQueueState(songs("t", 1), 0)

	s := e.StartSession(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return len(e.Snapshot().Tracks) > 1
	}, eventuallyWait, eventuallyTick)
}

func TestSession_StopsWithContext(t *testing.T) {
	e, _ := newTestEngine(newMockProvider())
	ctx, cancel := context.WithCancel(context.Background())

	s := e.StartSession(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(eventuallyWait):
		require.FailNow(t, "session did not stop after context cancellation")
	}

	// Stop after the worker exited must not block.
	s.Stop()
}

func TestSession_EmptyQueueSkipsRefill(t *testing.T) {
	p := newMockProvider()
	e, _ := newTestEngine(p)

	s := e.StartSession(context.Background())
	s.QueueLow()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Equal(t, 0, p.totalCalls())
}

func TestSession_StopCancelsRadioExtension(t *testing.T) {
	cfg := testConfig()
	cfg.FetchTimeout = 5 * time.Second
	p := newMockProvider()
	p.upNext = func(ctx context.Context, _ string) ([]core.Track, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	e, _ := newTestEngineWithConfig(p, cfg)
	s := e.StartSession(context.Background())

	// The request context stays alive; only the session owns the extension.
	_, err := e.InstantRadio(context.Background(), song("seed", "x"), 5)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return p.callCount("upNext") >= 2
	}, eventuallyWait, eventuallyTick, "background extension should have started")

	s.Stop()

	finished := make(chan struct{})
	go func() {
		e.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		require.FailNow(t, "stopping the session did not cancel the background radio fetch")
	}
	assert.Equal(t, []string{"seed"}, ids(e.Snapshot().Tracks))
}
