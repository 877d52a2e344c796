package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ytqueue/internal/core"
)

// mockProvider is a scriptable MusicSearchProvider with call counters.
type mockProvider struct {
	mu      sync.Mutex
	calls   map[string]int
	queries []string

	details func(ctx context.Context, id string) (*core.Track, error)
	upNext  func(ctx context.Context, id string) ([]core.Track, error)
	radio   func(ctx context.Context, id string) ([]core.Track, error)
	search  func(ctx context.Context, query string, limit int) ([]core.Track, error)
}

func newMockProvider() *mockProvider {
	return &mockProvider{calls: make(map[string]int)}
}

func (m *mockProvider) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

func (m *mockProvider) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockProvider) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *mockProvider) searchedQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func (m *mockProvider) SearchByText(ctx context.Context, query string, limit int) ([]core.Track, error) {
	m.record("search")
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.search == nil {
		return nil, nil
	}
	return m.search(ctx, query, limit)
}

func (m *mockProvider) SongDetails(ctx context.Context, id string) (*core.Track, error) {
	m.record("details")
	if m.details == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrTrackNotFound, id)
	}
	return m.details(ctx, id)
}

func (m *mockProvider) UpNext(ctx context.Context, id string) ([]core.Track, error) {
	m.record("upNext")
	if m.upNext == nil {
		return nil, nil
	}
	return m.upNext(ctx, id)
}

func (m *mockProvider) RadioMix(ctx context.Context, id string) ([]core.Track, error) {
	m.record("radio")
	if m.radio == nil {
		return nil, nil
	}
	return m.radio(ctx, id)
}

func returns(tracks ...core.Track) func(context.Context, string) ([]core.Track, error) {
	return func(context.Context, string) ([]core.Track, error) {
		return tracks, nil
	}
}

// fakeClock is safe for use from background fetches.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func song(id, artist string) core.Track {
	return core.Track{ID: id, Title: "Song " + id, Artist: artist, DurationSecs: 200, Kind: core.KindSong}
}

func songs(prefix string, n int) []core.Track {
	out := make([]core.Track, n)
	for i := range out {
		out[i] = song(fmt.Sprintf("%s%d", prefix, i), "Artist")
	}
	return out
}

func testConfig() core.EngineConfig {
	cfg := core.DefaultEngineConfig()
	cfg.FetchTimeout = 200 * time.Millisecond
	cfg.InstantTimeout = 100 * time.Millisecond
	return cfg
}

func newTestEngine(provider core.MusicSearchProvider) (*Engine, *fakeClock) {
	return newTestEngineWithConfig(provider, testConfig())
}

func newTestEngineWithConfig(provider core.MusicSearchProvider, cfg core.EngineConfig) (*Engine, *fakeClock) {
	clock := newFakeClock()
	e := NewEngine(provider, cfg, nil, zap.NewNop())
	e.SetClock(clock.now)
	return e, clock
}

func ids(tracks []core.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}
