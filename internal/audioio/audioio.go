// Package audioio wraps the duplex capture/playback device the rest of
// the pipeline streams frames through. It keeps a single malgo device
// open for the life of the process; each command cycle gets a fresh
// capture subscription handle rather than a fresh device (spec §8:
// "the capture handle presented to the next cycle is not the same
// handle used by the previous cycle").
package audioio

import (
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/gritskevich/pi-sat/internal/errs"
	"github.com/gritskevich/pi-sat/internal/logging"
)

// AudioFrame is a chunk of mono 16-bit PCM samples at the device's
// native sample rate.
type AudioFrame struct {
	Samples []int16
}

// CaptureStream is a live subscription to the device's input. Reads
// deliver one frame at a time; Close detaches the subscription without
// touching the underlying hardware device.
type CaptureStream interface {
	ID() string
	Frames() <-chan AudioFrame
	Close()
}

// AudioIO is the hardware seam every other component depends on
// through this interface, never through *malgo.Device directly.
type AudioIO interface {
	OpenCapture() (CaptureStream, error)
	PlaySamples(samples []int16) error
	PlayTone(freqHz float64, durationMillis int) error
	SampleRate() int
	Close() error
}

type captureStream struct {
	id     string
	frames chan AudioFrame
	owner  *Device
}

func (c *captureStream) ID() string                    { return c.id }
func (c *captureStream) Frames() <-chan AudioFrame      { return c.frames }
func (c *captureStream) Close()                         { c.owner.detach(c) }

// Device is the concrete malgo-backed AudioIO. One Device per process;
// Capture.Channels and Playback.Channels are fixed to mono to match the
// offline engines' expected input shape.
type Device struct {
	mctx       *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	log        logging.Logger

	mu       sync.Mutex
	active   *captureStream
	playback []int16
	playMu   sync.Mutex
}

// Open initializes the malgo context and starts a duplex device at
// sampleRate. captureName/playbackName select a device by substring
// match against the system's enumeration; empty strings use the
// system default.
func Open(sampleRate int, captureName, playbackName string, log logging.Logger) (*Device, error) {
	const op = "audioio.Open"
	if log == nil {
		log = logging.NoOpLogger{}
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindFatalHardware, op, err)
	}

	d := &Device{mctx: mctx, sampleRate: sampleRate, log: log}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return nil, errs.Wrap(errs.KindFatalHardware, op, err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, errs.Wrap(errs.KindFatalHardware, op, err)
	}
	return d, nil
}

func (d *Device) onSamples(pOutput, pInput []byte, frameCount uint32) {
	if pInput != nil {
		d.mu.Lock()
		cur := d.active
		d.mu.Unlock()
		if cur != nil {
			frame := AudioFrame{Samples: bytesToInt16(pInput)}
			select {
			case cur.frames <- frame:
			default:
				// Backpressure: drop the oldest-pending frame rather than
				// block the audio callback.
				select {
				case <-cur.frames:
				default:
				}
				cur.frames <- frame
			}
		}
	}
	if pOutput != nil {
		d.playMu.Lock()
		need := len(pOutput) / 2
		n := need
		if n > len(d.playback) {
			n = len(d.playback)
		}
		for i := 0; i < n; i++ {
			s := d.playback[i]
			pOutput[2*i] = byte(s)
			pOutput[2*i+1] = byte(s >> 8)
		}
		d.playback = d.playback[n:]
		if n < need {
			zeroRemainder(pOutput, n)
		}
		d.playMu.Unlock()
	}
}

// OpenCapture swaps in a new subscription as the active one, detaching
// whatever was previously active. The previous cycle's handle, if the
// caller still holds it, becomes inert: Close on it is then a no-op.
func (d *Device) OpenCapture() (CaptureStream, error) {
	cs := &captureStream{
		id:     uuid.NewString(),
		frames: make(chan AudioFrame, 64),
		owner:  d,
	}
	d.mu.Lock()
	d.active = cs
	d.mu.Unlock()
	return cs, nil
}

func (d *Device) detach(cs *captureStream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == cs {
		d.active = nil
	}
}

// PlaySamples enqueues PCM for playback and returns immediately; the
// audio callback drains the buffer asynchronously.
func (d *Device) PlaySamples(samples []int16) error {
	d.playMu.Lock()
	d.playback = append(d.playback, samples...)
	d.playMu.Unlock()
	return nil
}

// PlayTone synthesizes and enqueues a sine-wave beep, used for the
// non-verbal acknowledgement chime (spec §4.8).
func (d *Device) PlayTone(freqHz float64, durationMillis int) error {
	n := d.sampleRate * durationMillis / 1000
	samples := make([]int16, n)
	const amplitude = 0.2
	for i := range samples {
		t := float64(i) / float64(d.sampleRate)
		samples[i] = int16(amplitude * 32767 * sin2pi(freqHz*t))
	}
	return d.PlaySamples(samples)
}

func (d *Device) SampleRate() int { return d.sampleRate }

func (d *Device) Close() error {
	if d.device != nil {
		d.device.Uninit()
	}
	if d.mctx != nil {
		d.mctx.Uninit()
	}
	return nil
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

func zeroRemainder(pOutput []byte, fromSample int) {
	for i := fromSample * 2; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

func sin2pi(x float64) float64 {
	const tau = 6.283185307179586
	return math.Sin(tau * x)
}
