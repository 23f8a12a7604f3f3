package intent

import "testing"

func activeAll() []string {
	return AllIntentIDs()
}

func TestClassifyPlayMusicExtractsQuery(t *testing.T) {
	e := New(DefaultPatterns(), activeAll(), 35)
	res, ok := e.Classify("joue Louane", "fr")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ID != PlayMusic {
		t.Fatalf("expected play_music, got %s", res.ID)
	}
	if res.Parameters["query"] != "Louane" {
		t.Fatalf("expected query %q, got %q", "Louane", res.Parameters["query"])
	}
}

func TestClassifyPlayMusicExtractsQueryAfterAccentedTrigger(t *testing.T) {
	// "écoute" is 7 bytes (the accented é is 2 bytes) where the
	// unaccented trigger "ecoute" is 6; a cut point computed from the
	// folded string would land one byte short, inside "écoute" itself.
	e := New(DefaultPatterns(), activeAll(), 35)
	res, ok := e.Classify("écoute Louane", "fr")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Parameters["query"] != "Louane" {
		t.Fatalf("expected query %q, got %q", "Louane", res.Parameters["query"])
	}
}

func TestClassifyAmbiguousReturnsNoMatch(t *testing.T) {
	e := New(DefaultPatterns(), activeAll(), 35)
	_, ok := e.Classify("euh je sais pas", "fr")
	if ok {
		t.Fatal("expected no intent for an ambiguous utterance")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	e := New(DefaultPatterns(), activeAll(), 35)
	first, _ := e.Classify("joue des musiques de louane", "fr")
	second, _ := e.Classify("joue des musiques de louane", "fr")
	if first.ID != second.ID || first.Confidence != second.Confidence {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
}

func TestClassifyHonorsPriorityOverSimilarity(t *testing.T) {
	// The "specific" pattern (priority 20) should win over the "generic"
	// one (priority 5), which matches more closely, when both clear the
	// threshold.
	patterns := []Pattern{
		{ID: "generic", Priority: 5, Language: "fr", Triggers: []string{"plus fort"}},
		{ID: "specific", Priority: 20, Language: "fr", Triggers: []string{"plus fort encore"}},
	}
	e := New(patterns, []string{"generic", "specific"}, 35)
	res, ok := e.Classify("plus fort", "fr")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ID != "specific" {
		t.Fatalf("expected higher-priority pattern to win, got %s", res.ID)
	}
}

func TestClassifyRespectsActiveIntentsGate(t *testing.T) {
	e := New(DefaultPatterns(), []string{Stop}, 35)
	_, ok := e.Classify("joue Louane", "fr")
	if ok {
		t.Fatal("expected play_music to be gated out of the active set")
	}
}

func TestExtractNumberFromDigits(t *testing.T) {
	n, ok := extractNumber("arrete dans 15 minutes")
	if !ok || n != 15 {
		t.Fatalf("extractNumber() = %d, %v; want 15, true", n, ok)
	}
}

func TestExtractNumberFromFrenchWords(t *testing.T) {
	n, ok := extractNumber("mets le volume a vingt")
	if !ok || n != 20 {
		t.Fatalf("extractNumber() = %d, %v; want 20, true", n, ok)
	}
}

func TestClassifyEmptyTextReturnsNoMatch(t *testing.T) {
	e := New(DefaultPatterns(), activeAll(), 35)
	if _, ok := e.Classify("", "fr"); ok {
		t.Fatal("expected no match for empty text")
	}
}
