package stt

import (
	"errors"
	"testing"
	"time"

	"github.com/gritskevich/pi-sat/internal/errs"
)

type fakeEngine struct {
	results []string
	errs    []error
	calls   int
	closed  bool
}

func (f *fakeEngine) Transcribe(wav []byte) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var text string
	if i < len(f.results) {
		text = f.results[i]
	}
	return text, err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, Backoff: 1.5, MaxDelay: 5 * time.Millisecond}
}

func TestAdapterReturnsFirstSuccess(t *testing.T) {
	eng := &fakeEngine{results: []string{"joue louane"}}
	a := NewAdapter(eng, fastRetry(), 16000, time.Second, nil)

	text, err := a.Transcribe([]int16{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "joue louane" {
		t.Fatalf("got %q", text)
	}
	if eng.calls != 1 {
		t.Fatalf("expected 1 call, got %d", eng.calls)
	}
}

func TestAdapterRetriesTransientFailure(t *testing.T) {
	eng := &fakeEngine{
		results: []string{"", "joue louane"},
		errs:    []error{errors.New("i/o error"), nil},
	}
	a := NewAdapter(eng, fastRetry(), 16000, time.Second, nil)

	text, err := a.Transcribe([]int16{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "joue louane" {
		t.Fatalf("got %q", text)
	}
	if eng.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", eng.calls)
	}
}

func TestAdapterDegradesToEmptyAfterRetriesExhausted(t *testing.T) {
	eng := &fakeEngine{errs: []error{
		errors.New("e1"), errors.New("e2"), errors.New("e3"), errors.New("e4"),
	}}
	cfg := fastRetry()
	a := NewAdapter(eng, cfg, 16000, time.Second, nil)

	text, err := a.Transcribe([]int16{1, 2, 3})
	if err != nil {
		t.Fatalf("expected no error past the adapter boundary, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
	if eng.calls != cfg.MaxRetries+1 {
		t.Fatalf("expected %d calls, got %d", cfg.MaxRetries+1, eng.calls)
	}
}

func TestAdapterZeroRetriesIsOneAttempt(t *testing.T) {
	eng := &fakeEngine{errs: []error{errors.New("e1")}}
	cfg := RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, Backoff: 2, MaxDelay: time.Millisecond}
	a := NewAdapter(eng, cfg, 16000, time.Second, nil)

	if _, err := a.Transcribe([]int16{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", eng.calls)
	}
}

func TestAdapterFatalHardwareStopsRetrying(t *testing.T) {
	eng := &fakeEngine{errs: []error{errs.New(errs.KindFatalHardware, "op", "engine gone")}}
	a := NewAdapter(eng, fastRetry(), 16000, time.Second, nil)

	_, err := a.Transcribe([]int16{1})
	if errs.KindOf(err) != errs.KindFatalHardware {
		t.Fatalf("expected KindFatalHardware, got %v", err)
	}
	if eng.calls != 1 {
		t.Fatalf("expected no retry on fatal hardware, got %d calls", eng.calls)
	}
}
