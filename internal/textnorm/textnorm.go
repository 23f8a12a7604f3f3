// Package textnorm folds transcripts and catalog titles down to a
// comparable form: lowercase, diacritic-stripped, punctuation-light.
// Shared by the intent matcher and the music resolver so "écrase" and
// "ecrase" compare equal regardless of which side supplied the accent.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, decomposes accented runes (NFD) and drops the
// resulting combining marks, then collapses whitespace. It leaves
// apostrophes and hyphens intact since French contractions ("l'") and
// compound titles depend on them.
func Fold(s string) string {
	s = strings.ToLower(s)
	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	return collapseSpace(b.String())
}

// StripPunct removes punctuation runes other than apostrophe and
// hyphen, useful once Fold has already normalized case and accents.
func StripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\'' || r == '-' || r == ' ' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return collapseSpace(b.String())
}

// Tokens splits a folded string on whitespace into non-empty tokens.
func Tokens(s string) []string {
	return strings.Fields(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
