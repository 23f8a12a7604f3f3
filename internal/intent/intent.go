// Package intent implements the stateless IntentEngine of spec §4.5:
// a compiled pattern table matched against normalized text via
// token-set fuzzy similarity, with priority-based selection and
// per-intent parameter extraction.
package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/gritskevich/pi-sat/internal/fuzzy"
	"github.com/gritskevich/pi-sat/internal/textnorm"
)

// Declared intent ids. The active deployment only dispatches the
// subset named by configuration's ActiveIntents; the rest stay
// implemented so activating one is a one-line config change.
const (
	PlayMusic     = "play_music"
	Stop          = "stop"
	VolumeUp      = "volume_up"
	VolumeDown    = "volume_down"
	SetVolume     = "set_volume"
	Pause         = "pause"
	Resume        = "resume"
	Next          = "next"
	Previous      = "previous"
	AddFavourite  = "add_favourite"
	RepeatOn      = "repeat_on"
	RepeatOff     = "repeat_off"
	ShuffleOn     = "shuffle_on"
	ShuffleOff    = "shuffle_off"
	SleepTimer    = "sleep_timer"
)

// Pattern is the compile-time record of spec §3's IntentPattern.
type Pattern struct {
	ID         string
	Language   string
	Priority   int
	Triggers   []string
	Extractors []string
}

// Result is spec §3's IntentResult.
type Result struct {
	ID             string
	Confidence     float64
	Parameters     map[string]any
	MatchedTrigger string
}

// Engine classifies free text into the best-matching Pattern. It is
// stateless and safe for concurrent use; all state lives in the
// pattern table supplied at construction.
type Engine struct {
	patterns      []Pattern
	activeIntents map[string]bool
	threshold     float64
}

// New builds an Engine over patterns, restricted to the ids in
// activeIntents, matching at or above threshold (0-100 scale).
func New(patterns []Pattern, activeIntents []string, threshold float64) *Engine {
	active := make(map[string]bool, len(activeIntents))
	for _, id := range activeIntents {
		active[id] = true
	}
	return &Engine{patterns: patterns, activeIntents: active, threshold: threshold}
}

type candidate struct {
	pattern    Pattern
	similarity float64
	trigger    string
}

// Classify is a pure function of (text, language, pattern table,
// active intents): identical inputs always return an identical
// Result (spec §8's determinism property).
func (e *Engine) Classify(text, language string) (*Result, bool) {
	normalized := textnorm.StripPunct(textnorm.Fold(text))
	if normalized == "" {
		return nil, false
	}

	var candidates []candidate
	for _, p := range e.patterns {
		if p.Language != language || !e.activeIntents[p.ID] {
			continue
		}
		best := candidate{pattern: p}
		for _, trig := range p.Triggers {
			sim := fuzzy.TokenSetRatio(normalized, textnorm.Fold(trig))
			if sim > best.similarity || (sim == best.similarity && len(trig) > len(best.trigger)) {
				best.similarity = sim
				best.trigger = trig
			}
		}
		if best.similarity >= e.threshold {
			candidates = append(candidates, best)
		}
	}

	if len(candidates) == 0 {
		return nil, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.pattern.Priority != b.pattern.Priority {
			return a.pattern.Priority > b.pattern.Priority
		}
		if a.similarity != b.similarity {
			return a.similarity > b.similarity
		}
		if len(a.trigger) != len(b.trigger) {
			return len(a.trigger) > len(b.trigger)
		}
		return a.pattern.ID < b.pattern.ID
	})

	winner := candidates[0]
	return &Result{
		ID:             winner.pattern.ID,
		Confidence:     winner.similarity / 100,
		MatchedTrigger: winner.trigger,
		Parameters:     extract(winner.pattern, winner.trigger, text),
	}, true
}

func extract(p Pattern, matchedTrigger, originalText string) map[string]any {
	params := make(map[string]any, len(p.Extractors))
	for _, name := range p.Extractors {
		switch name {
		case "query":
			params["query"] = extractQuery(matchedTrigger, originalText)
		case "duration_minutes":
			if n, ok := extractNumber(originalText); ok {
				params["duration_minutes"] = n
			}
		case "volume_level":
			if n, ok := extractNumber(originalText); ok {
				params["volume_level"] = clamp(n, 0, 100)
			}
		}
	}
	return params
}

// extractQuery returns the substring of originalText following the
// matched trigger phrase, trimmed. The trigger is located by aligning
// its folded words against originalText's own whitespace-delimited
// tokens (each folded individually) rather than by reusing a byte
// offset computed in a folded copy of the whole text: folding can
// change a string's byte length (NFD decomposition plus combining-mark
// removal shrinks multi-byte accented runes like "é" down to a single
// ASCII byte), so an offset found in the folded text does not in
// general land on the same cut point in originalText.
func extractQuery(trigger, originalText string) string {
	triggerWords := strings.Fields(textnorm.StripPunct(textnorm.Fold(trigger)))
	if len(triggerWords) == 0 {
		return strings.TrimSpace(originalText)
	}

	tokens := wordTokens(originalText)
	for i := 0; i+len(triggerWords) <= len(tokens); i++ {
		matched := true
		for j, want := range triggerWords {
			got := textnorm.StripPunct(textnorm.Fold(tokens[i+j].text))
			if got != want {
				matched = false
				break
			}
		}
		if matched {
			cut := tokens[i+len(triggerWords)-1].end
			return strings.TrimSpace(originalText[cut:])
		}
	}
	return ""
}

// wordToken is one whitespace-delimited word of the original,
// unfolded text, with its byte span in that same string.
type wordToken struct {
	text       string
	start, end int
}

// wordTokens splits s on whitespace, recording each word's original
// byte offsets so callers can cut s itself at a token boundary.
func wordTokens(s string) []wordToken {
	var tokens []wordToken
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, wordToken{text: s[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, wordToken{text: s[start:], start: start, end: len(s)})
	}
	return tokens
}

var digitsRe = regexp.MustCompile(`\d+`)

var frenchNumberWords = map[string]int{
	"zero": 0, "un": 1, "une": 1, "deux": 2, "trois": 3, "quatre": 4,
	"cinq": 5, "six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10,
	"onze": 11, "douze": 12, "treize": 13, "quatorze": 14, "quinze": 15,
	"seize": 16, "vingt": 20, "trente": 30, "quarante": 40,
	"cinquante": 50, "soixante": 60, "cent": 100,
}

// extractNumber finds the first digit run or French number word in
// text and returns its integer value.
func extractNumber(text string) (int, bool) {
	if m := digitsRe.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n, true
		}
	}
	folded := textnorm.Fold(text)
	for _, tok := range textnorm.Tokens(folded) {
		if n, ok := frenchNumberWords[tok]; ok {
			return n, true
		}
	}
	return 0, false
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
