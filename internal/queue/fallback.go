package queue

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ytqueue/internal/core"
)

// contextQueriesPerFetch is how many context templates one fetch uses; the
// rotation counter advances by this much so consecutive fetches vary.
const contextQueriesPerFetch = 2

// contextTemplates build searches from the seed's title and artist.
var contextTemplates = []func(title, artist string) string{
	func(title, artist string) string { return joinQuery(title, artist) },
	func(title, artist string) string { return joinQuery("songs like", title, artist) },
	func(title, artist string) string { return joinQuery(artist, title, "similar songs") },
	func(title, artist string) string { return joinQuery(title, artist, "mix") },
}

// genericPool is searched when nothing is known about the seed. The phrases
// deliberately avoid dates so results stay valid year-round.
var genericPool = []string{
	"top hits",
	"popular songs",
	"greatest hits",
	"feel good songs",
	"chill hits",
}

const (
	genericQueriesPerFetch = 2
	catchAllTrending       = "trending now"
	tasteQueriesPerFetch   = 2
)

// fallbackStep is one tier of the fallback chain.
type fallbackStep struct {
	name    string
	queries []string
}

// collector accumulates tracks in order, once each, up to limit.
type collector struct {
	limit  int
	seen   map[string]struct{}
	tracks []core.Track
}

// newCollector sizes its buffers from the first batch, not from limit.
func newCollector(limit int, first []core.Track) *collector {
	size := min(limit, len(first))
	c := &collector{
		limit:  limit,
		seen:   make(map[string]struct{}, size),
		tracks: make([]core.Track, 0, size),
	}
	c.add(first)
	return c
}

func (c *collector) add(tracks []core.Track) int {
	added := 0
	for _, t := range tracks {
		if c.full() {
			break
		}
		if _, dup := c.seen[t.ID]; dup {
			continue
		}
		c.seen[t.ID] = struct{}{}
		c.tracks = append(c.tracks, t)
		added++
	}
	return added
}

func (c *collector) full() bool {
	return len(c.tracks) >= c.limit
}

// runFallbackChain tries progressively broader searches, one at a time, until
// limit tracks are collected. Whatever was collected is returned.
func (e *Engine) runFallbackChain(ctx context.Context, req *fetchRequest, primary []core.Track) ([]core.Track, error) {
	col := newCollector(req.limit, primary)

	for _, step := range buildFallbackSteps(req) {
		if col.full() {
			break
		}

		for _, query := range step.queries {
			if col.full() {
				break
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			results, err := e.search(ctx, req, query)
			if err != nil {
				return nil, err
			}
			added := col.add(e.rankAndFilter(req.seed, results))

			req.logger.Debug("Fallback search",
				zap.String("step", step.name),
				zap.String("query", query),
				zap.Int("results", len(results)),
				zap.Int("added", added),
				zap.Int("collected", len(col.tracks)))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req.logger.Debug("Fallback chain finished",
		zap.Int("collected", len(col.tracks)),
		zap.Int("limit", req.limit))

	return col.tracks, nil
}

// search runs one time-boxed text search. Soft failures yield no results.
func (e *Engine) search(ctx context.Context, req *fetchRequest, query string) ([]core.Track, error) {
	searchLimit := req.limit * 2
	results, err := callWithTimeout(ctx, e.cfg.FetchTimeout, func(c context.Context) ([]core.Track, error) {
		return e.provider.SearchByText(c, query, searchLimit)
	})
	if fatal := e.classifyFetchError(req, fetchSourceSearch, err, len(results) > 0); fatal != nil {
		return nil, fatal
	}
	if err != nil {
		return nil, nil
	}
	return results, nil
}

// buildFallbackSteps lists the fallback tiers in order: context search,
// artist deep dive, discovery, taste profile and a final catch-all.
func buildFallbackSteps(req *fetchRequest) []fallbackStep {
	title := strings.TrimSpace(req.seed.Title)
	artist := strings.TrimSpace(req.seed.Artist)
	if strings.EqualFold(artist, "Unknown Artist") {
		artist = ""
	}
	hasMetadata := title != "" || artist != ""

	var steps []fallbackStep

	if hasMetadata {
		queries := make([]string, 0, contextQueriesPerFetch)
		for i := 0; i < contextQueriesPerFetch; i++ {
			tmpl := contextTemplates[(req.rotation+i)%len(contextTemplates)]
			queries = append(queries, tmpl(title, artist))
		}
		steps = append(steps, fallbackStep{name: "context", queries: uniqueQueries(queries)})
	}

	if artist != "" {
		steps = append(steps, fallbackStep{
			name:    "artist",
			queries: []string{joinQuery(artist, "top songs"), joinQuery(artist, "deep cuts")},
		})
	}

	switch {
	case artist != "":
		steps = append(steps, fallbackStep{name: "discovery", queries: []string{joinQuery("artists similar to", artist)}})
	case title != "":
		steps = append(steps, fallbackStep{name: "discovery", queries: []string{joinQuery("songs similar to", title)}})
	default:
		queries := make([]string, 0, genericQueriesPerFetch)
		for i := 0; i < genericQueriesPerFetch; i++ {
			queries = append(queries, genericPool[(req.rotation+i)%len(genericPool)])
		}
		steps = append(steps, fallbackStep{name: "discovery", queries: queries})
	}

	if !req.taste.IsEmpty() {
		queries := make([]string, 0, tasteQueriesPerFetch)
		for i := 0; i < tasteQueriesPerFetch; i++ {
			topArtist := req.taste.TopArtists[i%len(req.taste.TopArtists)]
			topGenre := req.taste.TopGenres[i%len(req.taste.TopGenres)]
			queries = append(queries, joinQuery(topArtist, topGenre))
		}
		steps = append(steps, fallbackStep{name: "taste", queries: uniqueQueries(queries)})
	}

	catchAll := catchAllTrending
	if artist != "" {
		catchAll = joinQuery(artist, "radio mix")
	}
	steps = append(steps, fallbackStep{name: "catch_all", queries: []string{catchAll}})

	return steps
}

func joinQuery(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func uniqueQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := queries[:0]
	for _, q := range queries {
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
