// Package flood limits how often a single API client may mutate the queue.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the sliding window the limits apply to.
	windowDuration = 60 * time.Second
	// cleanupInterval is how often idle clients are forgotten.
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long a client may stay silent before its window is dropped.
	idleTimeout = 10 * time.Minute
)

// Floodgate keeps a sliding window per client within each route. Every route
// uses the default limit unless SetRouteLimit gave it its own.
type Floodgate struct {
	defaultLimit int
	limits       map[string]int
	routes       map[string]map[string]*window // route -> client -> window
	now          func() time.Time
	mutex        sync.Mutex
	stopCleanup  chan struct{}
	stopOnce     sync.Once
}

type window struct {
	hits     []time.Time
	lastSeen time.Time
}

// New creates a Floodgate allowing limitPerMinute requests per client on each
// route. A limit of zero or less disables limiting for routes without their own.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		defaultLimit: limitPerMinute,
		limits:       make(map[string]int),
		routes:       make(map[string]map[string]*window),
		now:          time.Now,
		stopCleanup:  make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// SetRouteLimit overrides the limit for one route. Zero or less disables it there.
func (fg *Floodgate) SetRouteLimit(route string, limitPerMinute int) {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()
	fg.limits[route] = limitPerMinute
}

// Stop ends the background cleanup. It is safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() { close(fg.stopCleanup) })
}

// Allow records a request from clientID on route and reports whether it fits
// inside that route's window.
func (fg *Floodgate) Allow(route, clientID string) bool {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	limit := fg.limitLocked(route)
	if limit <= 0 {
		return true
	}

	now := fg.now()
	clients, ok := fg.routes[route]
	if !ok {
		clients = make(map[string]*window)
		fg.routes[route] = clients
	}
	w, ok := clients[clientID]
	if !ok {
		w = &window{hits: make([]time.Time, 0, limit)}
		clients[clientID] = w
	}
	w.lastSeen = now
	w.slide(now)

	if len(w.hits) >= limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

// RetryAfter is how long until clientID may call route again. Zero means now.
func (fg *Floodgate) RetryAfter(route, clientID string) time.Duration {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	limit := fg.limitLocked(route)
	w, ok := fg.routes[route][clientID]
	if limit <= 0 || !ok {
		return 0
	}

	now := fg.now()
	w.slide(now)
	if len(w.hits) < limit {
		return 0
	}
	// The oldest hits leave the window first.
	return w.hits[len(w.hits)-limit].Add(windowDuration).Sub(now)
}

func (fg *Floodgate) limitLocked(route string) int {
	if limit, ok := fg.limits[route]; ok {
		return limit
	}
	return fg.defaultLimit
}

// slide drops hits that fell out of the window.
func (w *window) slide(now time.Time) {
	windowStart := now.Add(-windowDuration)
	kept := w.hits[:0]
	for _, ts := range w.hits {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	w.hits = kept
}

func (fg *Floodgate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-fg.stopCleanup:
			return
		}
	}
}

// performCleanup forgets idle clients and routes nobody is using.
func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := fg.now().Add(-idleTimeout)
	for route, clients := range fg.routes {
		for id, w := range clients {
			if w.lastSeen.Before(cutoff) {
				delete(clients, id)
			}
		}
		if len(clients) == 0 {
			delete(fg.routes, route)
		}
	}
}

// GetStats returns a summary for the status endpoint.
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	stats := Stats{
		LimitPerMinute: fg.defaultLimit,
		WindowSeconds:  int(windowDuration.Seconds()),
		Routes:         make(map[string]RouteStats, len(fg.routes)),
	}
	for route, clients := range fg.routes {
		stats.ActiveClients += len(clients)
		stats.Routes[route] = RouteStats{
			ActiveClients:  len(clients),
			LimitPerMinute: fg.limitLocked(route),
		}
	}
	return stats
}

type Stats struct {
	ActiveClients  int                   `json:"active_clients"`
	LimitPerMinute int                   `json:"limit_per_minute"`
	WindowSeconds  int                   `json:"window_seconds"`
	Routes         map[string]RouteStats `json:"routes"`
}

type RouteStats struct {
	ActiveClients  int `json:"active_clients"`
	LimitPerMinute int `json:"limit_per_minute"`
}
