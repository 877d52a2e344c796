// Package ranker orders recommendation candidates by lexical affinity to a seed track.
package ranker

import (
	"sort"
	"strings"

	"ytqueue/internal/core"
	"ytqueue/pkg/fuzzy"
)

const (
	artistMatchScore   = 6
	sharedTokenScore   = 2
	typicalLengthScore = 1
	missingArtistScore = -2
	shortTitleScore    = -2

	typicalMinSecs = 90
	typicalMaxSecs = 420
	minTitleLength = 3

	// UnknownArtist is the placeholder providers use when no artist is known.
	UnknownArtist = "Unknown Artist"
)

// Ranker scores candidates against a seed. It holds no state besides the normalizer.
type Ranker struct {
	normalizer *fuzzy.Normalizer
}

func New() *Ranker {
	return &Ranker{normalizer: fuzzy.NewNormalizer()}
}

// Score is an additive affinity heuristic. Higher is better.
func (r *Ranker) Score(seed, candidate core.Track) int {
	score := 0

	if seedArtist := r.normalizer.NormalizeArtist(seed.Artist); seedArtist != "" &&
		seedArtist == r.normalizer.NormalizeArtist(candidate.Artist) {
		score += artistMatchScore
	}

	score += sharedTokenScore * r.normalizer.SharedTokens(seed.Title, candidate.Title)

	if candidate.DurationSecs >= typicalMinSecs && candidate.DurationSecs <= typicalMaxSecs {
		score += typicalLengthScore
	}

	artist := strings.TrimSpace(candidate.Artist)
	if artist == "" || strings.EqualFold(artist, UnknownArtist) {
		score += missingArtistScore
	}

	if len([]rune(strings.TrimSpace(candidate.Title))) < minTitleLength {
		score += shortTitleScore
	}

	return score
}

// Rank returns candidates sorted by descending score. Equal scores keep their input order.
func (r *Ranker) Rank(seed core.Track, candidates []core.Track) []core.Track {
	type scoredTrack struct {
		track core.Track
		score int
	}

	scored := make([]scoredTrack, len(candidates))
	for i, c := range candidates {
		scored[i] = scoredTrack{track: c, score: r.Score(seed, c)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	ranked := make([]core.Track, len(scored))
	for i, s := range scored {
		ranked[i] = s.track
	}
	return ranked
}
