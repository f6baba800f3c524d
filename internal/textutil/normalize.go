// Package textutil holds the locale-aware text helpers shared by the
// extraction strategies and the matching engine.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// Normalize lowercases s, strips accents and collapses every run of
// non-alphanumeric characters into a single space.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	// transform.Chain keeps internal state, so each call gets its own.
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, lower)
	if err != nil {
		folded = lower
	}
	folded = nonAlphanumericRegex.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// CollapseSpaces trims s and reduces inner whitespace runs to one space.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multipleSpacesRegex.ReplaceAllString(s, " "))
}

// Tokens returns the unique normalized tokens of s that are at least
// minLen runes long, in first-seen order.
func Tokens(s string, minLen int) []string {
	words := strings.Fields(Normalize(s))
	seen := make(map[string]bool, len(words))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < minLen || seen[word] {
			continue
		}
		seen[word] = true
		tokens = append(tokens, word)
	}
	return tokens
}

// ContainsToken reports whether token occurs in the normalized text.
// The text is also checked with spaces removed so "500g" matches "500 g".
func ContainsToken(normalizedText, token string) bool {
	if token == "" {
		return true
	}
	if strings.Contains(normalizedText, token) {
		return true
	}
	return strings.Contains(strings.ReplaceAll(normalizedText, " ", ""), token)
}

// Slug turns a display name into a lowercase dash separated identifier.
func Slug(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "-")
}
