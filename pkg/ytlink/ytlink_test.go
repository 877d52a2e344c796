package ytlink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsYouTubeURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{name: "Standard YouTube URL", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", expected: true},
		{name: "YouTube short URL", url: "https://youtu.be/dQw4w9WgXcQ", expected: true},
		{name: "YouTube Music URL", url: "https://music.youtube.com/watch?v=dQw4w9WgXcQ", expected: true},
		{name: "Mobile YouTube URL", url: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", expected: true},
		{name: "Non-YouTube URL", url: "https://example.com", expected: false},
		{name: "Spotify URL", url: "https://open.spotify.com/track/123", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsYouTubeURL(tt.url); result != tt.expected {
				t.Errorf("IsYouTubeURL() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		expectedID string
		wantError  bool
	}{
		{name: "Standard YouTube URL", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", expectedID: "dQw4w9WgXcQ"},
		{name: "YouTube short URL", url: "https://youtu.be/dQw4w9WgXcQ", expectedID: "dQw4w9WgXcQ"},
		{name: "YouTube Music URL", url: "https://music.youtube.com/watch?v=dQw4w9WgXcQ&feature=share", expectedID: "dQw4w9WgXcQ"},
		{
			name:       "URL with additional parameters",
			url:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf",
			expectedID: "dQw4w9WgXcQ",
		},
		{name: "Shorts URL", url: "https://www.youtube.com/shorts/dQw4w9WgXcQ", expectedID: "dQw4w9WgXcQ"},
		{name: "Embed URL", url: "https://www.youtube.com/embed/dQw4w9WgXcQ", expectedID: "dQw4w9WgXcQ"},
		{name: "No video ID", url: "https://www.youtube.com/", wantError: true},
		{name: "Other host", url: "https://example.com/watch?v=dQw4w9WgXcQ", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videoID, err := ExtractVideoID(tt.url)
			if tt.wantError {
				if err == nil {
					t.Errorf("ExtractVideoID() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("ExtractVideoID() unexpected error: %v", err)
			}
			if videoID != tt.expectedID {
				t.Errorf("ExtractVideoID() = %v, want %v", videoID, tt.expectedID)
			}
		})
	}
}

func TestIsVideoID(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"dQw4w9WgXcQ", true},
		{"a_b-c_d-e_f", true},
		{"short", false},
		{"dQw4w9WgXcQx", false},
		{"never gonna", false},
	}

	for _, tt := range tests {
		if result := IsVideoID(tt.input); result != tt.expected {
			t.Errorf("IsVideoID(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Title with Official Video", input: "Never Gonna Give You Up (Official Video)", expected: "Never Gonna Give You Up"},
		{name: "Title with Lyric Video", input: "Some Song (Lyric Video)", expected: "Some Song"},
		{name: "Title with HD", input: "Amazing Track [HD]", expected: "Amazing Track"},
		{name: "Title with multiple markers", input: "Song Title (Official Music Video) [4K]", expected: "Song Title"},
		{name: "Clean title", input: "Simple Song Title", expected: "Simple Song Title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := CleanTitle(tt.input); result != tt.expected {
				t.Errorf("CleanTitle() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractArtist(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		authorName string
		expected   string
	}{
		{name: "VEVO channel", title: "Never Gonna Give You Up", authorName: "RickAstleyVEVO", expected: "Rick Astley"},
		{name: "Topic channel", title: "Some Song", authorName: "Artist Name - Topic", expected: "Artist Name"},
		{name: "Title with separator", title: "Artist Name - Track Title", authorName: "Random Channel", expected: "Artist Name"},
		{name: "No separator returns authorName", title: "Just a song title", authorName: "Channel Name", expected: "Channel Name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := ExtractArtist(tt.title, tt.authorName); result != tt.expected {
				t.Errorf("ExtractArtist() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
			http.Error(w, "unexpected url "+got, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"Rick Astley - Never Gonna Give You Up (Official Video)","author_name":"RickAstleyVEVO"}`))
	}))
	defer server.Close()

	resolver := NewResolver().WithEndpoint(server.URL)

	meta, err := resolver.Resolve(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if meta.Title != "Never Gonna Give You Up" {
		t.Errorf("Title = %q, want %q", meta.Title, "Never Gonna Give You Up")
	}
	if meta.Artist != "Rick Astley" {
		t.Errorf("Artist = %q, want %q", meta.Artist, "Rick Astley")
	}
}

func TestResolver_ResolveErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	resolver := NewResolver().WithEndpoint(server.URL)

	if _, err := resolver.Resolve(context.Background(), "dQw4w9WgXcQ"); err == nil {
		t.Error("Resolve() expected error for 404")
	}

	if _, err := resolver.Resolve(context.Background(), ""); !errors.Is(err, ErrNoVideoID) {
		t.Errorf("Resolve(\"\") error = %v, want ErrNoVideoID", err)
	}
}
