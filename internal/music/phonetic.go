package music

import (
	"strings"

	"github.com/gritskevich/pi-sat/internal/textnorm"
)

// Coder derives a deterministic phonetic key set from a word. The
// contract (spec §9, "Phonetic algorithm choice") only fixes
// determinism and case/diacritic independence, not a specific
// algorithm name; French gets a FONEM-style consonant-skeleton coder,
// other languages fall back to a coarser vowel-collapsing coder.
type Coder interface {
	Encode(word string) string
}

// NewCoder selects the phonetic coder for language, defaulting to
// French per spec.md's deployment default.
func NewCoder(language string) Coder {
	switch language {
	case "fr":
		return frenchCoder{}
	default:
		return neutralCoder{}
	}
}

// frenchCoder implements a FONEM-inspired reduction: fold accents,
// collapse digraphs that are pronounced as a single French phoneme,
// drop silent terminal consonants, then collapse repeated letters.
// Not a byte-for-byte FONEM implementation, but it satisfies the
// same contract: words that sound alike in French reduce to the same
// code.
type frenchCoder struct{}

var frenchDigraphs = []struct {
	from, to string
}{
	{"ph", "f"}, {"th", "t"}, {"ch", "x"}, {"qu", "k"},
	{"gu", "g"}, {"ill", "y"}, {"eau", "o"}, {"au", "o"},
	{"ai", "e"}, {"ei", "e"}, {"oi", "wa"}, {"ou", "u"},
	{"eu", "x"}, {"an", "a"}, {"en", "a"}, {"on", "o"},
	{"in", "e"}, {"un", "e"}, {"gn", "ny"},
}

func (frenchCoder) Encode(word string) string {
	s := textnorm.Fold(word)
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return ""
	}

	for _, d := range frenchDigraphs {
		s = strings.ReplaceAll(s, d.from, d.to)
	}

	// Standalone 'h' is silent in French outside the digraphs already
	// folded above ("ch", "th", "ph"), so a leftover one carries no
	// sound of its own — e.g. a mis-transcribed "abah" for "abba".
	s = strings.ReplaceAll(s, "h", "")

	s = strings.TrimRight(s, "sdtxz")
	if s == "" {
		s = textnorm.Fold(word)
	}

	return foldTrailingVowel(collapseRuns(s))
}

// neutralCoder is the language-agnostic fallback: fold accents,
// collapse vowel runs and doubled consonants. Weaker discriminative
// power than the French coder, but equally deterministic.
type neutralCoder struct{}

func (neutralCoder) Encode(word string) string {
	s := textnorm.Fold(word)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")
	return foldTrailingVowel(collapseRuns(s))
}

// collapseRuns removes consecutive duplicate runes, e.g. "gimme" -> "gime".
func collapseRuns(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

const trailingVowels = "aeiouy"

// foldTrailingVowel collapses a word-final vowel to a single
// canonical marker. An unstressed final vowel is the least reliable
// part of an ear-spelled transcription (a child writing "gimi" for
// "gimme" drops the same sound two different ways); folding it keeps
// the two from producing different phonetic keys over one mismatched
// letter.
func foldTrailingVowel(s string) string {
	trimmed := strings.TrimRight(s, trailingVowels)
	if trimmed == s || trimmed == "" {
		return s
	}
	return trimmed + "e"
}

// EncodeAll folds text to lowercase tokens and returns the set of
// distinct phonetic keys across all of them.
func EncodeAll(coder Coder, text string) []string {
	tokens := textnorm.Tokens(textnorm.StripPunct(textnorm.Fold(text)))
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, tok := range tokens {
		key := coder.Encode(tok)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
