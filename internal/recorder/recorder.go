// Package recorder implements the SpeechRecorder: it captures a
// single command utterance from an already-open stream, gated by a
// dual voice-activity check (neural VAD + RMS energy), with
// calibration, normalization, and resampling to the STT engine's
// expected format.
package recorder

import (
	"math"
	"sort"
	"time"

	"github.com/gritskevich/pi-sat/internal/audioio"
	"github.com/gritskevich/pi-sat/internal/errs"
	"github.com/gritskevich/pi-sat/internal/logging"
)

// CommandAudio is contiguous resampled 16 kHz mono PCM representing a
// user utterance. Zero-valued (Samples == nil) means no speech was
// ever detected.
type CommandAudio struct {
	Samples         []int16
	DurationSeconds float64
	PeakRMS         float64
}

func (c CommandAudio) Empty() bool { return len(c.Samples) == 0 }

// NeuralVAD is the WebRTC-style half of the dual gate (spec §4.3): a
// neural voice-activity detector operating on resampled 16 kHz frames.
type NeuralVAD interface {
	// IsSpeech reports whether the frame (float32, 16 kHz mono) is voiced.
	IsSpeech(frame []float32) (bool, error)
	Reset() error
}

// Config bundles the tunables named in spec.md §6.
type Config struct {
	CaptureRate          int
	TargetRate           int
	SpeechMultiplier     float64
	SilenceDuration      time.Duration
	MinSpeechDuration    time.Duration
	MaxRecordingTime     time.Duration
	CalibrationDuration  time.Duration
	NormalizationEnabled bool
	TargetRMS            float64
	PeakLimit            float64
}

// DefaultConfig mirrors spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		CaptureRate:          48000,
		TargetRate:           16000,
		SpeechMultiplier:     1.25,
		SilenceDuration:      time.Second,
		MinSpeechDuration:    500 * time.Millisecond,
		MaxRecordingTime:     10 * time.Second,
		CalibrationDuration:  300 * time.Millisecond,
		NormalizationEnabled: true,
		TargetRMS:            3000,
		PeakLimit:            28000,
	}
}

// Recorder runs the capture-calibrate-record-normalize pipeline.
type Recorder struct {
	cfg Config
	vad NeuralVAD
	log logging.Logger
}

func New(cfg Config, vad NeuralVAD, log logging.Logger) *Recorder {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Recorder{cfg: cfg, vad: vad, log: log}
}

// Record consumes frames from stream, skipping initialSkip worth of
// audio first (to discard the confirmation-beep echo), then runs
// calibration and the active recording phase. It never closes stream.
func (r *Recorder) Record(stream audioio.CaptureStream, initialSkip time.Duration) (CommandAudio, error) {
	const op = "recorder.Record"

	skipFrames := r.framesFor(initialSkip)
	for i := 0; i < skipFrames; i++ {
		if _, ok := r.nextFrame(stream); !ok {
			return CommandAudio{}, errs.New(errs.KindTransientHardware, op, "capture stream closed during skip phase")
		}
	}

	calibFrames := r.framesFor(r.cfg.CalibrationDuration)
	rmsSamples := make([]float64, 0, calibFrames)
	for i := 0; i < calibFrames; i++ {
		frame, ok := r.nextFrame(stream)
		if !ok {
			return CommandAudio{}, errs.New(errs.KindTransientHardware, op, "capture stream closed during calibration")
		}
		rmsSamples = append(rmsSamples, rms(frame.Samples))
	}
	noiseFloor := median(rmsSamples)
	speechThreshold := noiseFloor * r.cfg.SpeechMultiplier
	if speechThreshold <= 0 {
		speechThreshold = 1
	}

	var (
		accumulated   []int16
		speechElapsed time.Duration
		silenceRun    time.Duration
		started       bool
		peak          float64
		frameDuration = r.frameDuration()
	)

	var elapsed time.Duration
	for elapsed < r.cfg.MaxRecordingTime {
		frame, ok := r.nextFrame(stream)
		if !ok {
			return CommandAudio{}, errs.New(errs.KindTransientHardware, op, "capture stream closed during active phase")
		}
		elapsed += frameDuration

		frameRMS := rms(frame.Samples)
		if frameRMS > peak {
			peak = frameRMS
		}

		voiced := frameRMS >= speechThreshold
		if r.vad != nil {
			neural, err := r.vad.IsSpeech(audioio.Int16ToFloat32(frame.Samples))
			if err != nil {
				r.log.Warn("neural VAD error, falling back to energy gate", "err", err)
			} else {
				voiced = voiced && neural
			}
		}

		if voiced {
			accumulated = append(accumulated, frame.Samples...)
			speechElapsed += frameDuration
			silenceRun = 0
			started = true
			continue
		}

		if started {
			accumulated = append(accumulated, frame.Samples...)
			silenceRun += frameDuration
			if speechElapsed >= r.cfg.MinSpeechDuration && silenceRun >= r.cfg.SilenceDuration {
				break
			}
		}
	}

	if !started || len(accumulated) == 0 {
		return CommandAudio{}, nil
	}

	if r.cfg.NormalizationEnabled {
		accumulated = normalize(accumulated, r.cfg.TargetRMS, r.cfg.PeakLimit)
	}

	resampler := audioio.NewResampler(r.cfg.CaptureRate, r.cfg.TargetRate)
	resampled := audioio.Float32ToInt16(resampler.Resample(audioio.Int16ToFloat32(accumulated)))

	return CommandAudio{
		Samples:         resampled,
		DurationSeconds: float64(len(accumulated)) / float64(r.cfg.CaptureRate),
		PeakRMS:         peak,
	}, nil
}

func (r *Recorder) nextFrame(stream audioio.CaptureStream) (audioio.AudioFrame, bool) {
	frame, ok := <-stream.Frames()
	return frame, ok
}

func (r *Recorder) frameDuration() time.Duration {
	// Device frames are produced at a fixed size; 20ms matches the
	// configured capture frame length used throughout the pipeline.
	return 20 * time.Millisecond
}

func (r *Recorder) framesFor(d time.Duration) int {
	fd := r.frameDuration()
	if fd <= 0 {
		return 0
	}
	n := int(d / fd)
	if n < 0 {
		n = 0
	}
	return n
}

func rms(samples []int16) float64 {
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

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// normalize applies a uniform gain toward targetRMS, then hard-limits
// peaks to peakLimit to prevent clipping (spec §4.3 step 5).
func normalize(samples []int16, targetRMS, peakLimit float64) []int16 {
	current := rms(samples)
	if current <= 0 || current >= targetRMS {
		return samples
	}
	gain := targetRMS / current

	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * gain
		if v > peakLimit {
			v = peakLimit
		} else if v < -peakLimit {
			v = -peakLimit
		}
		out[i] = int16(v)
	}
	return out
}
