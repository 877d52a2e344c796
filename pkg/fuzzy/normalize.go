// Package fuzzy normalizes artist names and titles so that loosely formatted
// catalog strings can be compared.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MinTokenLength is the shortest word that counts as a title token.
const MinTokenLength = 3

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]\s*`)
	decorationRegex = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:official\s+(?:music\s+)?(?:video|audio)|lyrics?(?:\s+video)?|visuali[sz]er|hd|4k|remaster(?:ed)?(?:\s+\d{4})?)\s*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeArtist folds case and whitespace only. Punctuation and accents are
// part of an artist's name, so "AC/DC" and "ACDC" stay different.
func (n *Normalizer) NormalizeArtist(artist string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(artist))), " ")
}

// NormalizeTitle strips featuring credits and video decorations before folding.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = decorationRegex.ReplaceAllString(title, " ")
	return n.basicNormalize(title)
}

// Tokens returns the distinct alphanumeric words of at least MinTokenLength
// runes in text, case-folded, in first-seen order.
func (n *Normalizer) Tokens(text string) []string {
	fields := strings.Fields(n.basicNormalize(text))
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < MinTokenLength || !isAlphanumeric(f) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// SharedTokens counts the title tokens that appear in both a and b.
func (n *Normalizer) SharedTokens(a, b string) int {
	left := n.Tokens(a)
	if len(left) == 0 {
		return 0
	}
	right := make(map[string]struct{})
	for _, t := range n.Tokens(b) {
		right[t] = struct{}{}
	}
	shared := 0
	for _, t := range left {
		if _, ok := right[t]; ok {
			shared++
		}
	}
	return shared
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.ToLower(text)
	text = strings.TrimSpace(text)

	return text
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
