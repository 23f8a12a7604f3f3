// Package stt wraps the offline speech-to-text engine with the
// STTAdapter contract of spec §4.4: a stable transcribe call backed by
// retry/backoff, a per-engine mutex (the accelerator is single-tenant),
// and a scoped WAV temp buffer released on every exit path.
package stt

import (
	"time"

	"github.com/gritskevich/pi-sat/internal/errs"
	"github.com/gritskevich/pi-sat/internal/logging"
)

// Engine is the offline recognizer surface. Transcribe must be safe to
// call repeatedly on the same handle; Close disposes any background
// resources (worker threads, loaded model) held by the accelerator.
type Engine interface {
	Transcribe(wav []byte) (string, error)
	Close() error
}

// RetryConfig configures the exponential backoff of spec §4.4.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	Backoff      float64
	MaxDelay     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		Backoff:      2.0,
		MaxDelay:     2 * time.Second,
	}
}

// Adapter is the STTAdapter: it serializes calls to a single Engine
// and retries transient failures.
type Adapter struct {
	engine     Engine
	retry      RetryConfig
	sampleRate int
	lockWait   time.Duration

	sem chan struct{}
	log logging.Logger
}

func NewAdapter(engine Engine, retry RetryConfig, sampleRate int, lockWaitTimeout time.Duration, log logging.Logger) *Adapter {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Adapter{
		engine:     engine,
		retry:      retry,
		sampleRate: sampleRate,
		lockWait:   lockWaitTimeout,
		sem:        make(chan struct{}, 1),
		log:        log,
	}
}

// Transcribe encodes samples as WAV, acquires the engine mutex (with a
// bounded timeout), and retries transient errors with exponential
// backoff. It never returns an error for an empty result after retry
// exhaustion — callers observe that as an empty string, per spec §4.4.
func (a *Adapter) Transcribe(samples []int16) (string, error) {
	const op = "stt.Adapter.Transcribe"

	if !a.tryLock(a.lockWait) {
		a.log.Warn("stt engine lock acquisition timed out")
		return "", nil
	}
	defer func() { <-a.sem }()

	wav := encodeWAV(samples, a.sampleRate)

	delay := a.retry.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		text, err := a.engine.Transcribe(wav)
		if err == nil && text != "" {
			return text, nil
		}
		lastErr = err
		if err != nil && errs.KindOf(err) == errs.KindFatalHardware {
			return "", errs.Wrap(errs.KindFatalHardware, op, err)
		}

		if attempt == a.retry.MaxRetries {
			break
		}
		a.log.Warn("stt transcription attempt failed, retrying", "attempt", attempt+1, "err", err)
		time.Sleep(delay)
		delay = time.Duration(float64(delay) * a.retry.Backoff)
		if delay > a.retry.MaxDelay {
			delay = a.retry.MaxDelay
		}
	}

	if lastErr != nil {
		a.log.Warn("stt retries exhausted, degrading to empty transcript", "err", lastErr)
	}
	return "", nil
}

func (a *Adapter) tryLock(timeout time.Duration) bool {
	select {
	case a.sem <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (a *Adapter) Close() error {
	return a.engine.Close()
}
