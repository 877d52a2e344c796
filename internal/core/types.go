package core

import (
	"context"
	"time"
)

// Classification is the upstream content type of a track.
type Classification int

const (
	// KindUnknown is used when the provider did not say what the item is.
	KindUnknown Classification = iota
	// KindSong is an audio-only catalog track.
	KindSong
	// KindVideo is a music video or user upload.
	KindVideo
	// KindPodcast is a podcast episode.
	KindPodcast
)

const (
	// MinUnknownDurationSecs and MaxUnknownDurationSecs bound how long an
	// unclassified item may be and still be treated as music.
	MinUnknownDurationSecs = 30
	MaxUnknownDurationSecs = 900
)

func (c Classification) String() string {
	switch c {
	case KindSong:
		return "song"
	case KindVideo:
		return "video"
	case KindPodcast:
		return "podcast"
	default:
		return "unknown"
	}
}

// ParseClassification is the inverse of String. Anything unrecognised is KindUnknown.
func ParseClassification(s string) Classification {
	switch s {
	case "song":
		return KindSong
	case "video":
		return KindVideo
	case "podcast":
		return KindPodcast
	default:
		return KindUnknown
	}
}

// MarshalText lets Classification travel as a string in JSON.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts the strings produced by MarshalText.
func (c *Classification) UnmarshalText(b []byte) error {
	*c = ParseClassification(string(b))
	return nil
}

// Track is an immutable catalog entry.
type Track struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Artist       string         `json:"artist"`
	DurationSecs int            `json:"duration_secs"`
	Thumbnail    string         `json:"thumbnail,omitempty"`
	Kind         Classification `json:"kind"`
}

// Duration returns the track length, zero when unknown.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationSecs) * time.Second
}

// IsQueueEligible reports whether the track may be inserted into the live queue.
// Songs always qualify; unclassified items qualify when their length is unknown
// or looks like a song.
func (t Track) IsQueueEligible() bool {
	switch t.Kind {
	case KindSong:
		return true
	case KindUnknown:
		return t.DurationSecs == 0 ||
			(t.DurationSecs >= MinUnknownDurationSecs && t.DurationSecs <= MaxUnknownDurationSecs)
	default:
		return false
	}
}

// HasMetadata is true when the track carries enough text to build search queries from.
func (t Track) HasMetadata() bool {
	return t.Title != "" || t.Artist != ""
}

// QueueSnapshot is a point-in-time copy of the live queue.
type QueueSnapshot struct {
	Tracks       []Track `json:"tracks"`
	Index        int     `json:"index"`
	InfiniteMode bool    `json:"infinite_mode"`
}

// Current returns the track at Index, if any.
func (s QueueSnapshot) Current() (Track, bool) {
	if s.Index < 0 || s.Index >= len(s.Tracks) {
		return Track{}, false
	}
	return s.Tracks[s.Index], true
}

// Upcoming is the number of tracks after the current one.
func (s QueueSnapshot) Upcoming() int {
	return len(s.Tracks) - s.Index - 1
}

// TasteProfile is the listener's preference summary supplied by the caller.
type TasteProfile struct {
	TopArtists []string `json:"top_artists"`
	TopGenres  []string `json:"top_genres"`
}

// IsEmpty reports whether a taste-weighted search can be built from the profile.
func (p TasteProfile) IsEmpty() bool {
	return len(p.TopArtists) == 0 || len(p.TopGenres) == 0
}

// MusicSearchProvider is the upstream catalog. An empty result is a success;
// errors mean transport or parse problems.
type MusicSearchProvider interface {
	SearchByText(ctx context.Context, query string, limit int) ([]Track, error)
	SongDetails(ctx context.Context, id string) (*Track, error)
	UpNext(ctx context.Context, id string) ([]Track, error)
	RadioMix(ctx context.Context, id string) ([]Track, error)
}

// Metrics receives engine and provider measurements.
type Metrics interface {
	RecordFetch(source, status string)
	RecordCacheLookup(hit bool)
	ObserveFetchDuration(d time.Duration)
	RecordTracksAdded(source string, n int)
	SetQueueLength(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordFetch(string, string) {}
func (NopMetrics) RecordCacheLookup(bool) {}
func (NopMetrics) ObserveFetchDuration(time.Duration) {}
func (NopMetrics) RecordTracksAdded(string, int) {}
func (NopMetrics) SetQueueLength(int) {}
