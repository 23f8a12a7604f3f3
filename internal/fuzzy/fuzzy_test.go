package fuzzy

import "testing"

func TestRatioIdentical(t *testing.T) {
	if r := Ratio("joue louane", "joue louane"); r != 100 {
		t.Fatalf("Ratio() = %v, want 100", r)
	}
}

func TestRatioCompletelyDifferent(t *testing.T) {
	r := Ratio("abc", "xyz")
	if r != 0 {
		t.Fatalf("Ratio() = %v, want 0", r)
	}
}

func TestTokenSetRatioIgnoresWordOrder(t *testing.T) {
	r := TokenSetRatio("gimme gimme gimme abba", "abba gimme gimme gimme")
	if r < 99 {
		t.Fatalf("TokenSetRatio() = %v, want ~100 for reordered tokens", r)
	}
}

func TestTokenSetRatioToleratesExtraWords(t *testing.T) {
	r := TokenSetRatio("joue louane", "joue la chanson de louane stp")
	if r < 50 {
		t.Fatalf("TokenSetRatio() = %v, want a reasonably high score despite extra words", r)
	}
}

func TestTokenSetRatioLowForUnrelatedStrings(t *testing.T) {
	r := TokenSetRatio("arrete la musique", "plus fort")
	if r > 50 {
		t.Fatalf("TokenSetRatio() = %v, want a low score for unrelated phrases", r)
	}
}
