// Package fuzzy implements a fuzzywuzzy-style token-set similarity
// ratio on top of a Levenshtein edit-distance primitive. Both the
// IntentEngine (trigger-phrase matching) and the MusicResolver
// (catalog title matching) score strings on the same 0-100 scale
// using this package.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio returns the classic Levenshtein-based similarity of a and b on
// a 0-100 scale, where 100 means identical.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (1 - float64(dist)/float64(maxLen)) * 100
}

// TokenSetRatio compares two strings after splitting each into a sorted,
// deduplicated set of whitespace tokens, then applying Ratio to three
// derived strings (the intersection, and each side's full sorted-token
// string) and taking the maximum — the standard fuzzywuzzy
// token_set_ratio construction. It is robust to extra or reordered
// words, which matters for both loosely-phrased voice commands and
// catalog titles with inconsistent artist/tag ordering.
func TokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	intersection := intersect(tokensA, tokensB)
	diffA := difference(tokensA, intersection)
	diffB := difference(tokensB, intersection)

	sortedIntersection := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(sortedIntersection + " " + strings.Join(diffA, " "))
	combinedB := strings.TrimSpace(sortedIntersection + " " + strings.Join(diffB, " "))

	best := Ratio(sortedIntersection, combinedA)
	if r := Ratio(sortedIntersection, combinedB); r > best {
		best = r
	}
	if r := Ratio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

func tokenSet(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func difference(a, remove []string) []string {
	set := make(map[string]struct{}, len(remove))
	for _, t := range remove {
		set[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := set[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
