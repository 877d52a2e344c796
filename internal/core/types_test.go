package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTrack_IsQueueEligible(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected bool
	}{
		{"Song of any length", Track{Kind: KindSong, DurationSecs: 4000}, true},
		{"Video", Track{Kind: KindVideo, DurationSecs: 200}, false},
		{"Podcast", Track{Kind: KindPodcast, DurationSecs: 1200}, false},
		{"Unknown without duration", Track{Kind: KindUnknown}, true},
		{"Unknown song length", Track{Kind: KindUnknown, DurationSecs: 240}, true},
		{"Unknown at lower bound", Track{Kind: KindUnknown, DurationSecs: MinUnknownDurationSecs}, true},
		{"Unknown at upper bound", Track{Kind: KindUnknown, DurationSecs: MaxUnknownDurationSecs}, true},
		{"Unknown too short", Track{Kind: KindUnknown, DurationSecs: 10}, false},
		{"Unknown too long", Track{Kind: KindUnknown, DurationSecs: 1200}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.IsQueueEligible(); got != tt.expected {
				t.Errorf("IsQueueEligible() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestTrack_HasMetadataAndDuration(t *testing.T) {
	if (Track{ID: "x"}).HasMetadata() {
		t.Error("A bare id should have no metadata")
	}
	if !(Track{Artist: "Band"}).HasMetadata() {
		t.Error("An artist alone counts as metadata")
	}
	if got := (Track{DurationSecs: 90}).Duration(); got != 90*time.Second {
		t.Errorf("Duration() = %v, expected 90s", got)
	}
}

func TestClassification_JSON(t *testing.T) {
	raw, err := json.Marshal(Track{ID: "a", Kind: KindPodcast})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if want := `"kind":"podcast"`; !strings.Contains(string(raw), want) {
		t.Errorf("Expected %s in %s", want, raw)
	}

	var decoded Track
	if err := json.Unmarshal([]byte(`{"id":"b","kind":"something-new"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Kind != KindUnknown {
		t.Errorf("Unrecognised kinds should decode as unknown, got %v", decoded.Kind)
	}
}

func TestQueueSnapshot_CurrentAndUpcoming(t *testing.T) {
	snap := QueueSnapshot{Tracks: []Track{{ID: "a"}, {ID: "b"}, {ID: "c"}}, Index: 1}

	current, ok := snap.Current()
	if !ok || current.ID != "b" {
		t.Errorf("Current() = %v, %v; expected b", current, ok)
	}
	if got := snap.Upcoming(); got != 1 {
		t.Errorf("Upcoming() = %d, expected 1", got)
	}

	empty := QueueSnapshot{Index: -1}
	if _, ok := empty.Current(); ok {
		t.Error("An empty queue has no current track")
	}
	if got := empty.Upcoming(); got != 0 {
		t.Errorf("Upcoming() on empty queue = %d, expected 0", got)
	}
}

func TestTasteProfile_IsEmpty(t *testing.T) {
	tests := []struct {
		profile  TasteProfile
		expected bool
	}{
		{TasteProfile{}, true},
		{TasteProfile{TopArtists: []string{"a"}}, true},
		{TasteProfile{TopGenres: []string{"g"}}, true},
		{TasteProfile{TopArtists: []string{"a"}, TopGenres: []string{"g"}}, false},
	}

	for _, tt := range tests {
		if got := tt.profile.IsEmpty(); got != tt.expected {
			t.Errorf("IsEmpty(%+v) = %v, expected %v", tt.profile, got, tt.expected)
		}
	}
}
