// Package ytmusic implements core.MusicSearchProvider against a ytmusicapi proxy.
//
// The proxy is a small HTTP service wrapping the ytmusicapi Python library.
// Endpoints used:
//
//	GET /api/search?q=...&filter=songs&limit=N   -> []track
//	GET /api/songs/{id}                          -> track
//	GET /api/watch/{id}[?radio=true]             -> {"tracks": []track}
package ytmusic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ytqueue/internal/core"
	"ytqueue/pkg/ytlink"
)

// Client talks to the proxy. It rate-limits itself; callers make one attempt per call.
type Client struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
	limiter    *rate.Limiter
	oembed     *ytlink.Resolver
	logger     *zap.Logger
}

// NewClient creates a proxy client. An empty BaseURL yields a client whose
// every call fails with core.ErrProviderUnavailable.
func NewClient(cfg *core.ProviderConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = core.DefaultProviderTimeoutSecs * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authFile:   cfg.AuthFile,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
	if cfg.OEmbedFallback {
		c.oembed = ytlink.NewResolver()
	}
	return c
}

// WithOEmbedResolver replaces the details fallback resolver. Nil disables the fallback.
func (c *Client) WithOEmbedResolver(r *ytlink.Resolver) *Client {
	c.oembed = r
	return c
}

// SearchByText runs a songs-filtered search.
func (c *Client) SearchByText(ctx context.Context, query string, limit int) ([]core.Track, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", "songs")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var items []ytTrack
	if err := c.doRequest(ctx, "/api/search?"+params.Encode(), &items); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	tracks := toTracks(items)
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// SongDetails fetches metadata for one video id, falling back to oEmbed when the proxy fails.
func (c *Client) SongDetails(ctx context.Context, id string) (*core.Track, error) {
	var item ytTrack
	err := c.doRequest(ctx, "/api/songs/"+url.PathEscape(id), &item)
	if err == nil {
		if item.VideoID == "" {
			item.VideoID = id
		}
		t := item.toTrack()
		return &t, nil
	}

	if errors.Is(err, core.ErrProviderUnavailable) || c.oembed == nil || ctx.Err() != nil {
		return nil, fmt.Errorf("song details %s: %w", id, err)
	}

	c.logger.Debug("Song details failed, trying oEmbed",
		zap.String("videoID", id),
		zap.Error(err))

	meta, oerr := c.oembed.Resolve(ctx, id)
	if oerr != nil {
		return nil, fmt.Errorf("song details %s: %w (oEmbed: %v)", id, err, oerr)
	}

	return &core.Track{
		ID:     id,
		Title:  meta.Title,
		Artist: meta.Artist,
		Kind:   core.KindUnknown,
	}, nil
}

// UpNext returns the watch-next list for a video.
func (c *Client) UpNext(ctx context.Context, id string) ([]core.Track, error) {
	return c.watch(ctx, id, false)
}

// RadioMix returns the generated radio playlist for a video.
func (c *Client) RadioMix(ctx context.Context, id string) ([]core.Track, error) {
	return c.watch(ctx, id, true)
}

func (c *Client) watch(ctx context.Context, id string, radio bool) ([]core.Track, error) {
	endpoint := "/api/watch/" + url.PathEscape(id)
	if radio {
		endpoint += "?radio=true"
	}

	var resp struct {
		Tracks []ytTrack `json:"tracks"`
	}
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("watch %s (radio=%v): %w", id, radio, err)
	}

	// The watch list starts with the seed itself.
	tracks := toTracks(resp.Tracks)
	out := tracks[:0]
	for _, t := range tracks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, result any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: no proxy base URL configured", core.ErrProviderUnavailable)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.authFile != "" {
		req.Header.Set("X-Auth-File", c.authFile)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.logger.Debug("Proxy request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := fmt.Errorf("youtube music API error: status %d", resp.StatusCode)
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			apiErr = fmt.Errorf("youtube music API error (status %d): %s", resp.StatusCode, errResp.Detail)
		}
		// Bad credentials break every call, not just this one.
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", core.ErrProviderUnavailable, apiErr)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
