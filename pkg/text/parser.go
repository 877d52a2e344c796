// Package text parses user-supplied radio seeds: video ids, YouTube links or free text.
package text

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"ytqueue/internal/core"
	"ytqueue/pkg/ytlink"
)

// SeedKind says how a seed string should be resolved.
type SeedKind int

const (
	// SeedVideoID is a bare video id.
	SeedVideoID SeedKind = iota
	// SeedURL is a YouTube or YouTube Music link; VideoID holds the extracted id.
	SeedURL
	// SeedQuery is free text that must be resolved by search.
	SeedQuery
)

func (k SeedKind) String() string {
	switch k {
	case SeedVideoID:
		return "video_id"
	case SeedURL:
		return "url"
	case SeedQuery:
		return "query"
	default:
		return "unknown"
	}
}

var (
	urlRegex        = regexp.MustCompile(`https?://\S+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Seed is a parsed radio seed.
type Seed struct {
	Kind    SeedKind
	VideoID string
	Query   string
	URL     string
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseSeed classifies input. A YouTube link anywhere in the text wins over
// the surrounding words; links to other sites are rejected.
func (p *Parser) ParseSeed(input string) (Seed, error) {
	text := p.normalizeText(input)
	if text == "" {
		return Seed{}, fmt.Errorf("%w: empty seed", core.ErrInvalidSeed)
	}

	urls := p.extractURLs(text)
	for _, u := range urls {
		if !ytlink.IsYouTubeURL(u) {
			continue
		}
		id, err := ytlink.ExtractVideoID(u)
		if err != nil {
			return Seed{}, fmt.Errorf("%w: %v", core.ErrInvalidSeed, err)
		}
		return Seed{Kind: SeedURL, VideoID: id, URL: u}, nil
	}
	if len(urls) > 0 {
		return Seed{}, fmt.Errorf("%w: unsupported link %s", core.ErrInvalidSeed, urls[0])
	}

	if ytlink.IsVideoID(text) && looksLikeID(text) {
		return Seed{Kind: SeedVideoID, VideoID: text}, nil
	}

	return Seed{Kind: SeedQuery, Query: text}, nil
}

// looksLikeID rejects plain 11-letter words such as "celebration", which
// match the id alphabet but are far more likely to be a search.
func looksLikeID(s string) bool {
	hasDigitOrSymbol := strings.ContainsAny(s, "0123456789_-")
	hasUpper := strings.ToLower(s) != s
	return hasDigitOrSymbol || hasUpper
}

func (p *Parser) normalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func (p *Parser) extractURLs(text string) []string {
	matches := urlRegex.FindAllString(text, -1)
	var cleanURLs []string

	for _, match := range matches {
		if cleanURL := p.cleanURL(match); cleanURL != "" {
			cleanURLs = append(cleanURLs, cleanURL)
		}
	}

	return cleanURLs
}

func (p *Parser) cleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, ".,!?;")

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	q := u.Query()
	for _, param := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "si", "feature"} {
		q.Del(param)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
