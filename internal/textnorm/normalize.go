// Package textnorm turns raw user text into comparable forms: normalized strings,
// stop-word filtered tokens with synonym substitution, and diacritic-free compact keys.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases text, replaces every rune that is not a word character,
// whitespace or '-' with a space, collapses whitespace and trims.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if isWordRune(r) || r == '-' || unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Fold strips combining marks after canonical decomposition, so "pysäköinti" becomes
// "pysakointi" and "öppet" becomes "oppet".
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Compact lowercases and folds text and keeps only [a-z0-9]. "Karjalan-piirakka!" and
// "karjalanpiirakka" share the compact key "karjalanpiirakka".
func Compact(text string) string {
	folded := Fold(strings.ToLower(text))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Words splits normalized text on whitespace without stop-word filtering.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}
