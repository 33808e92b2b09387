package suggest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldName prepares a food name for full-text matching:
//  1. Lowercase, ß → ss
//  2. Strip accents
//  3. Replace non-letter/non-digit (underscores and parentheses included) with space
//  4. Collapse runs of spaces, trim
//
// It is only used for suggestions; the local index itself is keyed by the
// raw name.
func FoldName(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "ß", "ss")

	// A Chain keeps per-use buffers, so each call gets its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}
