package wakeword

import (
	"testing"
	"time"
)

type fakeEngine struct {
	nextDetection *Detection
	resetCount    int
}

func (f *fakeEngine) Feed(samples []float32) (*Detection, error) {
	d := f.nextDetection
	f.nextDetection = nil
	return d, nil
}
func (f *fakeEngine) Reset()          { f.resetCount++ }
func (f *fakeEngine) SampleRate() int { return 16000 }
func (f *fakeEngine) Close() error    { return nil }

type fakeGate struct{ inCooldown bool }

func (g *fakeGate) InCooldown() bool { return g.inCooldown }

func loudFrame() []float32 {
	out := make([]float32, 160)
	for i := range out {
		out[i] = 0.5
	}
	return out
}

func TestListenerAcceptsFirstDetection(t *testing.T) {
	eng := &fakeEngine{}
	l := NewListener(eng, nil, 2*time.Second, 25, 2, nil)

	eng.nextDetection = &Detection{PhraseID: "alexa", Confidence: 0.9, At: time.Now()}
	det, err := l.Feed(loudFrame())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det == nil {
		t.Fatal("expected detection to be accepted")
	}
}

func TestListenerSuppressesDuringCooldown(t *testing.T) {
	eng := &fakeEngine{}
	l := NewListener(eng, nil, 2*time.Second, 25, 2, nil)

	now := time.Now()
	eng.nextDetection = &Detection{PhraseID: "alexa", At: now}
	if det, _ := l.Feed(loudFrame()); det == nil {
		t.Fatal("expected first detection accepted")
	}

	eng.nextDetection = &Detection{PhraseID: "alexa", At: now.Add(500 * time.Millisecond)}
	det, err := l.Feed(loudFrame())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det != nil {
		t.Fatal("expected second detection within cooldown to be suppressed")
	}
}

func TestListenerSuppressesDuringEchoGate(t *testing.T) {
	eng := &fakeEngine{}
	gate := &fakeGate{inCooldown: true}
	l := NewListener(eng, gate, 2*time.Second, 25, 2, nil)

	eng.nextDetection = &Detection{PhraseID: "alexa", At: time.Now()}
	det, err := l.Feed(loudFrame())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det != nil {
		t.Fatal("expected detection to be suppressed by echo gate")
	}
}

func TestListenerResetsEngineAfterSustainedSilence(t *testing.T) {
	eng := &fakeEngine{}
	l := NewListener(eng, nil, 2*time.Second, 3, 1, nil)

	silence := make([]float32, 160)
	for i := 0; i < 3; i++ {
		if _, err := l.Feed(silence); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if eng.resetCount != 1 {
		t.Fatalf("expected engine reset once, got %d resets", eng.resetCount)
	}
}
