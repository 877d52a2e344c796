package ranker

import (
	"testing"

	"ytqueue/internal/core"
)

func TestRanker_Score(t *testing.T) {
	r := New()
	seed := core.Track{ID: "seed", Title: "Midnight City", Artist: "M83", DurationSecs: 243}

	tests := []struct {
		name      string
		candidate core.Track
		expected  int
	}{
		{
			name:      "Same artist, typical length",
			candidate: core.Track{Title: "Wait", Artist: "m83", DurationSecs: 340},
			expected:  6 + 1,
		},
		{
			name:      "Shared title tokens",
			candidate: core.Track{Title: "Midnight City (Eric Prydz Remix)", Artist: "Eric Prydz", DurationSecs: 500},
			expected:  2 * 2,
		},
		{
			name:      "Artist and tokens combined",
			candidate: core.Track{Title: "Midnight City - Live", Artist: "M83", DurationSecs: 250},
			expected:  6 + 4 + 1,
		},
		{
			name:      "Unknown artist penalty",
			candidate: core.Track{Title: "Something", Artist: "Unknown Artist", DurationSecs: 200},
			expected:  1 - 2,
		},
		{
			name:      "Blank artist and short title",
			candidate: core.Track{Title: "Hi", Artist: "  "},
			expected:  -2 - 2,
		},
		{
			name:      "Duration band edges are inclusive",
			candidate: core.Track{Title: "Edge", Artist: "Someone", DurationSecs: 90},
			expected:  1,
		},
		{
			name:      "Just outside the band",
			candidate: core.Track{Title: "Edge", Artist: "Someone", DurationSecs: 421},
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Score(seed, tt.candidate); got != tt.expected {
				t.Errorf("Score() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestRanker_Score_EmptySeedArtistNeverMatches(t *testing.T) {
	r := New()
	seed := core.Track{ID: "seed"}
	candidate := core.Track{Title: "Anything", Artist: ""}

	// Blank seed and blank candidate artists must not count as a match.
	if got := r.Score(seed, candidate); got != -2 {
		t.Errorf("Score() = %d, want -2", got)
	}
}

func TestRanker_Score_ArtistMatchFoldsOnlyCaseAndWhitespace(t *testing.T) {
	r := New()
	seed := core.Track{ID: "seed", Title: "Thunderstruck", Artist: "AC/DC"}

	tests := []struct {
		artist string
		match  bool
	}{
		{"ac/dc", true},
		{"  AC/DC ", true},
		{"ACDC", false},
		{"AC DC", false},
	}

	for _, tt := range tests {
		// Title "Zzz" shares no tokens and duration 0 earns no length bonus.
		got := r.Score(seed, core.Track{Title: "Zzz", Artist: tt.artist})
		want := 0
		if tt.match {
			want = artistMatchScore
		}
		if got != want {
			t.Errorf("Score() with artist %q = %d, want %d", tt.artist, got, want)
		}
	}
}

func TestRanker_Rank(t *testing.T) {
	r := New()
	seed := core.Track{ID: "seed", Title: "Midnight City", Artist: "M83"}

	candidates := []core.Track{
		{ID: "a", Title: "Random", Artist: "Other", DurationSecs: 1000},
		{ID: "b", Title: "Outro", Artist: "M83", DurationSecs: 250},
		{ID: "c", Title: "Another", Artist: "Other", DurationSecs: 1000},
		{ID: "d", Title: "Midnight", Artist: "Other", DurationSecs: 1000},
	}

	ranked := r.Rank(seed, candidates)
	want := []string{"b", "d", "a", "c"}

	if len(ranked) != len(want) {
		t.Fatalf("Rank() returned %d tracks, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("Rank()[%d] = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRanker_Rank_DoesNotMutateInput(t *testing.T) {
	r := New()
	candidates := []core.Track{
		{ID: "low", Title: "x"},
		{ID: "high", Title: "Midnight", Artist: "M83"},
	}

	_ = r.Rank(core.Track{Title: "Midnight", Artist: "M83"}, candidates)

	if candidates[0].ID != "low" || candidates[1].ID != "high" {
		t.Error("Rank() must not reorder the caller's slice")
	}
}
