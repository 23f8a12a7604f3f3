// Package music implements the MusicResolver of spec §4.6: it turns a
// play_music query into a catalog entry via a hybrid text+phonetic
// similarity score, and holds the in-memory catalog snapshot.
package music

import (
	"regexp"
	"strings"

	"github.com/gritskevich/pi-sat/internal/fuzzy"
	"github.com/gritskevich/pi-sat/internal/textnorm"
)

// Entry is spec §3's CatalogEntry, with phonetic keys precomputed at
// load time.
type Entry struct {
	Key          string
	Title        string
	Artist       string
	Tags         []string
	PhoneticKeys []string
}

// Resolved is spec §3's ResolvedMusic.
type Resolved struct {
	CatalogKey      string
	DisplayName     string
	MatchConfidence float64
}

func (r Resolved) LowConfidence() bool { return r.MatchConfidence < 0.6 }

// defaultPhoneticWeight mirrors config.Config.PhoneticWeight's default
// (spec §6): used whenever NewResolver is given a weight outside the
// valid [0, 1] range.
const defaultPhoneticWeight = 0.6

var provenanceSuffix = regexp.MustCompile(`(?i)\s*\([^)]*(spotisaver|download|unofficial)[^)]*\)\s*`)

// stripProvenance removes parenthetical provenance markers like
// "(SPOTISAVER)" that pollute titles pulled from arbitrary sources.
func stripProvenance(s string) string {
	return strings.TrimSpace(provenanceSuffix.ReplaceAllString(s, " "))
}

// Catalog is an immutable snapshot of playable entries plus the
// phonetic coder used to build their keys. A refresh publishes a new
// Catalog value rather than mutating this one, satisfying the
// "swapped atomically" requirement of spec §5.
type Catalog struct {
	entries []Entry
	coder   Coder
}

// Load builds a Catalog from raw entries, deriving phonetic keys
// deterministically: calling Load twice on identical entries produces
// identical keys (spec §8's round-trip law).
func Load(rawEntries []Entry, language string) *Catalog {
	coder := NewCoder(language)
	entries := make([]Entry, len(rawEntries))
	for i, e := range rawEntries {
		e.PhoneticKeys = EncodeAll(coder, stripProvenance(e.Title)+" "+e.Artist+" "+strings.Join(e.Tags, " "))
		entries[i] = e
	}
	return &Catalog{entries: entries, coder: coder}
}

func (c *Catalog) Len() int { return len(c.entries) }

// Resolver matches a free-text query against a Catalog, blending text
// and phonetic similarity per phoneticWeight (spec §6's PHONETIC_WEIGHT).
type Resolver struct {
	phoneticWeight float64
	textWeight     float64
}

// NewResolver builds a Resolver weighting phonetic-key overlap at
// phoneticWeight and text similarity at its complement. A weight
// outside [0, 1] falls back to defaultPhoneticWeight.
func NewResolver(phoneticWeight float64) *Resolver {
	if phoneticWeight < 0 || phoneticWeight > 1 {
		phoneticWeight = defaultPhoneticWeight
	}
	return &Resolver{phoneticWeight: phoneticWeight, textWeight: 1 - phoneticWeight}
}

// Resolve implements spec §4.6's algorithm. A nil catalog or empty
// query returns (nil, false).
func (r *Resolver) Resolve(catalog *Catalog, query string) (*Resolved, bool) {
	query = strings.TrimSpace(query)
	if catalog == nil || len(catalog.entries) == 0 || query == "" {
		return nil, false
	}

	foldedQuery := textnorm.StripPunct(textnorm.Fold(stripProvenance(query)))
	queryKeys := EncodeAll(catalog.coder, foldedQuery)

	type scored struct {
		entry     Entry
		combined  float64
		textScore float64
		index     int
	}

	var best *scored
	for i, e := range catalog.entries {
		haystack := textnorm.StripPunct(textnorm.Fold(stripProvenance(e.Title)+" "+e.Artist+" "+strings.Join(e.Tags, " ")))
		textScore := fuzzy.TokenSetRatio(foldedQuery, haystack) / 100
		// The phonetic score is the better of the overlap with all of the
		// entry's keys and the overlap with its title's keys alone, so a
		// query naming only the title is not diluted by the artist and tags.
		phoneticScore := jaccard(queryKeys, e.PhoneticKeys)
		if titleScore := jaccard(queryKeys, EncodeAll(catalog.coder, stripProvenance(e.Title))); titleScore > phoneticScore {
			phoneticScore = titleScore
		}
		combined := r.textWeight*textScore + r.phoneticWeight*phoneticScore

		cand := scored{entry: e, combined: combined, textScore: textScore, index: i}
		if best == nil ||
			cand.combined > best.combined ||
			(cand.combined == best.combined && cand.textScore > best.textScore) ||
			(cand.combined == best.combined && cand.textScore == best.textScore && cand.index < best.index) {
			best = &cand
		}
	}

	if best == nil {
		return nil, false
	}

	return &Resolved{
		CatalogKey:      best.entry.Key,
		DisplayName:     displayName(best.entry),
		MatchConfidence: best.combined,
	}, true
}

func displayName(e Entry) string {
	title := stripProvenance(e.Title)
	if e.Artist == "" {
		return title
	}
	return e.Artist + " — " + title
}

// jaccard computes |A∩B| / |A∪B| over two key sets, 0 if both empty.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, k := range a {
		setA[k] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, k := range b {
		setB[k] = struct{}{}
	}

	intersection := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			intersection++
		}
	}
	union := len(setA)
	for k := range setB {
		if _, ok := setA[k]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
