// Package wakeword implements the always-on keyword spotter and the
// listener state machine around it: cooldown after a trigger, the
// reset-after-silence rule, and self-echo rejection while Pi-Sat's
// own voice is still playing.
package wakeword

import (
	"math"
	"sync"
	"time"

	"github.com/gritskevich/pi-sat/internal/errs"
	"github.com/gritskevich/pi-sat/internal/logging"
)

// Detection is a single positive wake-word spot.
type Detection struct {
	PhraseID   string
	Confidence float64
	At         time.Time
}

// Engine is the offline keyword-spotting model. Implementations are
// not required to be safe for concurrent Feed calls from multiple
// goroutines; the Listener serializes access.
type Engine interface {
	// Feed pushes one frame (mono float32, engine's native sample rate)
	// and returns a Detection if the frame completed a spot above the
	// configured threshold.
	Feed(samples []float32) (*Detection, error)
	Reset()
	SampleRate() int
	Close() error
}

// EchoGate tells the Listener whether recent output audio makes input
// unreliable for wake-word spotting (spec's self-echo suppression
// requirement). Only the Listener consults it.
type EchoGate interface {
	// InCooldown reports whether we're within the post-TTS cooldown
	// window where the device's own voice may still be captured.
	InCooldown() bool
}

// Listener runs Engine.Feed over a stream of frames and emits
// Detections, honoring:
//   - WakeWordCooldown: minimum spacing between two accepted detections.
//   - WakeResetSilenceChunks / WakeResetIterations: the engine is reset
//     after that many consecutive near-silent chunks, so a long session
//     without speech doesn't let internal model state drift.
//   - EchoGate: detections arriving during the TTS cooldown window are
//     dropped rather than triggering a new command cycle.
type Listener struct {
	engine Engine
	gate   EchoGate
	log    logging.Logger

	cooldown       time.Duration
	resetChunks    int
	resetIters     int
	silenceRMSGate float64

	mu           sync.Mutex
	lastTrigger  time.Time
	silenceRun   int
	resetCounter int
}

// NewListener wires engine to the cooldown/reset policy. gate may be
// nil, meaning echo rejection is left entirely to the recorder stage.
func NewListener(engine Engine, gate EchoGate, cooldown time.Duration, resetSilenceChunks, resetIterations int, log logging.Logger) *Listener {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Listener{
		engine:         engine,
		gate:           gate,
		log:            log,
		cooldown:       cooldown,
		resetChunks:    resetSilenceChunks,
		resetIters:     resetIterations,
		silenceRMSGate: 0.01,
	}
}

// Feed processes one frame. It returns a non-nil *Detection only when
// a spot is accepted (passes cooldown and echo-gate checks).
func (l *Listener) Feed(samples []float32) (*Detection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rms(samples) < l.silenceRMSGate {
		l.silenceRun++
		if l.silenceRun >= l.resetChunks {
			l.resetCounter++
			l.silenceRun = 0
			if l.resetCounter >= l.resetIters {
				l.engine.Reset()
				l.resetCounter = 0
				l.log.Debug("wakeword engine reset after sustained silence")
			}
		}
	} else {
		l.silenceRun = 0
	}

	det, err := l.engine.Feed(samples)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientHardware, "wakeword.Listener.Feed", err)
	}
	if det == nil {
		return nil, nil
	}

	now := det.At
	if now.IsZero() {
		now = time.Now()
	}

	if !l.lastTrigger.IsZero() && now.Sub(l.lastTrigger) < l.cooldown {
		l.log.Debug("wake-word detection suppressed by cooldown")
		return nil, nil
	}
	if l.gate != nil && l.gate.InCooldown() {
		l.log.Debug("wake-word detection suppressed by echo gate")
		return nil, nil
	}

	l.lastTrigger = now
	l.log.Info("wake-word detected", "phrase", det.PhraseID, "confidence", det.Confidence)
	return det, nil
}

func (l *Listener) Close() error {
	return l.engine.Close()
}

// EngineSampleRate exposes the underlying engine's native sample rate
// so callers can configure a resampler into Feed.
func (l *Listener) EngineSampleRate() int { return l.engine.SampleRate() }

// ResetEngine forces an engine reset, used after a command cycle
// completes so wake-word spotting restarts from a clean state.
func (l *Listener) ResetEngine() { l.engine.Reset() }

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
