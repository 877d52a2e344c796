// Package ytlink recognises YouTube and YouTube Music links and resolves
// basic track metadata through the public oEmbed endpoint.
package ytlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// OEmbedURL is the YouTube oEmbed API endpoint.
	OEmbedURL = "https://www.youtube.com/oembed"
	// RequestTimeout is the timeout for oEmbed requests.
	RequestTimeout = 10 * time.Second
	// expectedSplitParts is the expected number of parts when splitting title/artist strings.
	expectedSplitParts = 2
)

var (
	// ErrNotYouTube is returned for URLs outside the YouTube domains.
	ErrNotYouTube = errors.New("not a YouTube URL")
	// ErrNoVideoID is returned when a YouTube URL carries no video id.
	ErrNoVideoID = errors.New("no video ID in YouTube URL")

	videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	titleDecorations = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[\(\[]\s*official\s+(music\s+)?(video|audio)\s*[\)\]]`),
		regexp.MustCompile(`(?i)[\(\[]\s*(lyric\s+video|lyrics|visualizer)\s*[\)\]]`),
		regexp.MustCompile(`(?i)[\(\[]\s*(hd|4k)\s*[\)\]]`),
	}
	camelCaseRegex = regexp.MustCompile(`([a-z])([A-Z])`)

	youtubeHosts = map[string]bool{
		"youtube.com":       true,
		"www.youtube.com":   true,
		"m.youtube.com":     true,
		"music.youtube.com": true,
		"youtu.be":          true,
	}
)

// OEmbedResponse is the subset of the oEmbed payload we read.
type OEmbedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// Metadata is the best-effort title and artist for a video.
type Metadata struct {
	VideoID string
	Title   string
	Artist  string
}

// IsVideoID reports whether s has the shape of a YouTube video id.
func IsVideoID(s string) bool {
	return videoIDRegex.MatchString(s)
}

// IsYouTubeURL checks if the URL is a YouTube or YouTube Music link.
func IsYouTubeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

// ExtractVideoID extracts the video id from watch, short, embed and youtu.be URLs.
func ExtractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	hostname := strings.ToLower(u.Hostname())
	if !youtubeHosts[hostname] {
		return "", ErrNotYouTube
	}

	if hostname == "youtu.be" {
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", ErrNoVideoID
		}
		return id, nil
	}

	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}

	// /shorts/<id>, /embed/<id>, /live/<id>
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == expectedSplitParts {
		switch parts[0] {
		case "shorts", "embed", "live":
			if parts[1] != "" {
				return parts[1], nil
			}
		}
	}

	return "", ErrNoVideoID
}

// Resolver fetches oEmbed metadata for video ids.
type Resolver struct {
	client   *http.Client
	endpoint string
}

// NewResolver creates a resolver against the public oEmbed endpoint.
func NewResolver() *Resolver {
	return &Resolver{
		client:   &http.Client{Timeout: RequestTimeout},
		endpoint: OEmbedURL,
	}
}

// WithEndpoint points the resolver at a different oEmbed endpoint.
func (r *Resolver) WithEndpoint(endpoint string) *Resolver {
	r.endpoint = endpoint
	return r
}

// Resolve returns the title and artist oEmbed reports for videoID.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (*Metadata, error) {
	if videoID == "" {
		return nil, ErrNoVideoID
	}

	videoURL := "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)

	resp, err := r.fetchOEmbed(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch oEmbed data: %w", err)
	}

	return &Metadata{
		VideoID: videoID,
		Title:   CleanTitle(stripArtistPrefix(resp.Title)),
		Artist:  ExtractArtist(resp.Title, resp.AuthorName),
	}, nil
}

func (r *Resolver) fetchOEmbed(ctx context.Context, videoURL string) (*OEmbedResponse, error) {
	reqURL := fmt.Sprintf("%s?url=%s&format=json", r.endpoint, url.QueryEscape(videoURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oEmbed API returned status %d", resp.StatusCode)
	}

	var oembedResp OEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&oembedResp); err != nil {
		return nil, fmt.Errorf("failed to decode oEmbed response: %w", err)
	}

	return &oembedResp, nil
}

// CleanTitle removes common video decorations such as "(Official Video)".
func CleanTitle(title string) string {
	cleaned := title
	for _, re := range titleDecorations {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

// ExtractArtist guesses the artist from the video title and channel name.
func ExtractArtist(title, authorName string) string {
	if strings.HasSuffix(authorName, "VEVO") {
		// "RickAstleyVEVO" -> "Rick Astley"
		return camelCaseRegex.ReplaceAllString(strings.TrimSuffix(authorName, "VEVO"), "$1 $2")
	}

	if strings.HasSuffix(authorName, " - Topic") {
		return strings.TrimSuffix(authorName, " - Topic")
	}

	// "Artist - Song Title" is the most common upload format.
	if parts := strings.SplitN(title, " - ", expectedSplitParts); len(parts) == expectedSplitParts {
		return strings.TrimSpace(parts[0])
	}

	return authorName
}

func stripArtistPrefix(title string) string {
	if parts := strings.SplitN(title, " - ", expectedSplitParts); len(parts) == expectedSplitParts {
		return strings.TrimSpace(parts[1])
	}
	return title
}
