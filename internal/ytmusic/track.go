package ytmusic

import (
	"strconv"
	"strings"

	"ytqueue/internal/core"
)

const (
	videoTypeATV     = "MUSIC_VIDEO_TYPE_ATV"
	videoTypeOMV     = "MUSIC_VIDEO_TYPE_OMV"
	videoTypeUGC     = "MUSIC_VIDEO_TYPE_UGC"
	videoTypePodcast = "MUSIC_VIDEO_TYPE_PODCAST_EPISODE"
)

type ytImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ytArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ytTrack covers the track shapes returned by search, get_song and get_watch_playlist.
type ytTrack struct {
	VideoID     string     `json:"videoId"`
	Title       string     `json:"title"`
	Artists     []ytArtist `json:"artists"`
	Author      string     `json:"author"`
	Duration    string     `json:"duration"`
	Length      string     `json:"length"`
	DurationSec int        `json:"duration_seconds"`
	Thumbnails  []ytImage  `json:"thumbnails"`
	Thumbnail   []ytImage  `json:"thumbnail"`
	VideoType   string     `json:"videoType"`
	ResultType  string     `json:"resultType"`
}

func (t ytTrack) toTrack() core.Track {
	return core.Track{
		ID:           t.VideoID,
		Title:        strings.TrimSpace(t.Title),
		Artist:       t.artist(),
		DurationSecs: t.durationSecs(),
		Thumbnail:    t.thumbnail(),
		Kind:         classify(t.VideoType, t.ResultType),
	}
}

func (t ytTrack) artist() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return strings.TrimSpace(t.Author)
}

func (t ytTrack) durationSecs() int {
	if t.DurationSec > 0 {
		return t.DurationSec
	}
	if n := parseClock(t.Length); n > 0 {
		return n
	}
	return parseClock(t.Duration)
}

// thumbnail picks the last (largest) image.
func (t ytTrack) thumbnail() string {
	images := t.Thumbnails
	if len(images) == 0 {
		images = t.Thumbnail
	}
	if len(images) == 0 {
		return ""
	}
	return images[len(images)-1].URL
}

// parseClock converts "m:ss" or "h:mm:ss" to seconds. Anything else is 0.
func parseClock(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	total := 0
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func classify(videoType, resultType string) core.Classification {
	switch videoType {
	case videoTypeATV:
		return core.KindSong
	case videoTypeOMV, videoTypeUGC:
		return core.KindVideo
	case videoTypePodcast:
		return core.KindPodcast
	case "":
		switch strings.ToLower(resultType) {
		case "song":
			return core.KindSong
		case "video":
			return core.KindVideo
		case "episode", "podcast":
			return core.KindPodcast
		}
	}
	return core.KindUnknown
}

func toTracks(items []ytTrack) []core.Track {
	tracks := make([]core.Track, 0, len(items))
	for _, item := range items {
		if item.VideoID == "" {
			continue
		}
		tracks = append(tracks, item.toTrack())
	}
	return tracks
}
