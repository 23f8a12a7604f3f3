package orchestrator

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gritskevich/pi-sat/internal/audioio"
	"github.com/gritskevich/pi-sat/internal/config"
	"github.com/gritskevich/pi-sat/internal/intent"
	"github.com/gritskevich/pi-sat/internal/logging"
	"github.com/gritskevich/pi-sat/internal/music"
	"github.com/gritskevich/pi-sat/internal/playback"
	"github.com/gritskevich/pi-sat/internal/recorder"
	"github.com/gritskevich/pi-sat/internal/stt"
	"github.com/gritskevich/pi-sat/internal/tts"
	"github.com/gritskevich/pi-sat/internal/volume"
	"github.com/gritskevich/pi-sat/internal/wakeword"
)

type fakeCaptureStream struct {
	frames chan audioio.AudioFrame
	closed bool
}

func (s *fakeCaptureStream) ID() string                       { return "fake" }
func (s *fakeCaptureStream) Frames() <-chan audioio.AudioFrame { return s.frames }
func (s *fakeCaptureStream) Close()                            { s.closed = true }

type fakeAudioIO struct {
	sampleRate int
	played     [][]int16
	tones      int
	lastStream *fakeCaptureStream
}

func (a *fakeAudioIO) OpenCapture() (audioio.CaptureStream, error) {
	s := &fakeCaptureStream{frames: make(chan audioio.AudioFrame, 32)}
	a.lastStream = s
	return s, nil
}
func (a *fakeAudioIO) PlaySamples(samples []int16) error {
	a.played = append(a.played, samples)
	return nil
}
func (a *fakeAudioIO) PlayTone(freqHz float64, durationMillis int) error {
	a.tones++
	return nil
}
func (a *fakeAudioIO) SampleRate() int { return a.sampleRate }
func (a *fakeAudioIO) Close() error    { return nil }

type fakeWakeEngine struct {
	resets int
}

func (e *fakeWakeEngine) Feed(samples []float32) (*wakeword.Detection, error) { return nil, nil }
func (e *fakeWakeEngine) Reset()                                              { e.resets++ }
func (e *fakeWakeEngine) SampleRate() int                                     { return 16000 }
func (e *fakeWakeEngine) Close() error                                        { return nil }

type fakeSTTEngine struct {
	text string
}

func (e *fakeSTTEngine) Transcribe(wav []byte) (string, error) { return e.text, nil }
func (e *fakeSTTEngine) Close() error                          { return nil }

type fakeTTSEngine struct{}

func (e *fakeTTSEngine) Synthesize(text string) ([]int16, int, error) {
	return make([]int16, 16), 16000, nil
}
func (e *fakeTTSEngine) Close() error { return nil }

type fakeTTSPlayer struct {
	played [][]int16
}

func (p *fakeTTSPlayer) PlaySamples(samples []int16) error {
	p.played = append(p.played, samples)
	return nil
}

type fakeSink struct {
	levels []int
}

func (s *fakeSink) SetLevel(level int) error {
	s.levels = append(s.levels, level)
	return nil
}

// startFakeMPDServer accepts one connection, sends the MPD greeting,
// and answers every command line with "OK" until the connection closes.
func startFakeMPDServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("OK MPD 0.21.25\n"))
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			_ = strings.TrimSpace(line)
			conn.Write([]byte("OK\n"))
		}
	}()

	return ln.Addr().String()
}

func preloadFrames(stream *fakeCaptureStream, frames [][]int16) {
	for _, f := range frames {
		stream.frames <- audioio.AudioFrame{Samples: f}
	}
}

func voicedFrame() []int16 {
	s := make([]int16, 160)
	for i := range s {
		s[i] = 6000
	}
	return s
}

func silentFrame() []int16 {
	return make([]int16, 160)
}

type testRig struct {
	o        *Orchestrator
	audio    *fakeAudioIO
	ttsPlay  *fakeTTSPlayer
	sink     *fakeSink
	wakeEng  *fakeWakeEngine
	stream   *fakeCaptureStream
}

func newTestRig(t *testing.T, sttText string, catalog *music.Catalog, recCfg recorder.Config) *testRig {
	t.Helper()

	addr := startFakeMPDServer(t)
	log := logging.NoOpLogger{}

	audioDev := &fakeAudioIO{sampleRate: 48000}
	wakeEng := &fakeWakeEngine{}
	listener := wakeword.NewListener(wakeEng, nil, 2*time.Second, 50, 3, log)

	rec := recorder.New(recCfg, nil, log)

	sttEngine := &fakeSTTEngine{text: sttText}
	sttAdapter := stt.NewAdapter(sttEngine, stt.RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, Backoff: 1, MaxDelay: time.Millisecond}, 16000, time.Second, log)

	intentEngine := intent.New(intent.DefaultPatterns(), intent.AllIntentIDs(), 60)
	resolver := music.NewResolver(0.6)

	pb := playback.New(addr, 2*time.Second, log)

	sink := &fakeSink{}
	vol := volume.New(sink, 100, 5, 50, log)

	ttsPlayer := &fakeTTSPlayer{}
	ttsAdapter := tts.NewAdapter(&fakeTTSEngine{}, ttsPlayer, nil, log)

	cfg := config.Default()
	cfg.STTLanguage = "fr"
	cfg.VolumeDuckLevel = 10
	cfg.ActiveIntents = intent.AllIntentIDs()

	o := New(cfg, log, Collaborators{
		Audio:          audioDev,
		Wake:           listener,
		Recorder:       rec,
		STT:            sttAdapter,
		Intent:         intentEngine,
		Music:          resolver,
		InitialCatalog: catalog,
		Playback:       pb,
		Volume:         vol,
		TTS:            ttsAdapter,
	})

	stream, err := audioDev.OpenCapture()
	if err != nil {
		t.Fatalf("open capture: %v", err)
	}
	fcs := stream.(*fakeCaptureStream)

	return &testRig{o: o, audio: audioDev, ttsPlay: ttsPlayer, sink: sink, wakeEng: wakeEng, stream: fcs}
}

func fastRecorderConfig() recorder.Config {
	cfg := recorder.DefaultConfig()
	cfg.CalibrationDuration = 0
	cfg.SilenceDuration = 10 * time.Millisecond
	cfg.MinSpeechDuration = 10 * time.Millisecond
	cfg.MaxRecordingTime = 2 * time.Second
	return cfg
}

func TestRunCommandCycleResolvesMusicAndSpeaksConfirmation(t *testing.T) {
	catalog := music.Load([]music.Entry{
		{Key: "1", Title: "Dodo l'enfant do", Artist: "Comptine"},
	}, "fr")

	rig := newTestRig(t, "joue dodo", catalog, fastRecorderConfig())

	// Skip-phase frames (beepDuration=50ms / 20ms-per-frame = 2) followed
	// by one voiced frame and one silent frame to end the active phase.
	preloadFrames(rig.stream, [][]int16{silentFrame(), silentFrame(), voicedFrame(), silentFrame()})

	rig.o.runCommandCycle(rig.stream)

	if rig.audio.tones != 1 {
		t.Fatalf("expected one confirmation beep, got %d", rig.audio.tones)
	}
	if len(rig.ttsPlay.played) != 1 {
		t.Fatalf("expected one spoken response, got %d", len(rig.ttsPlay.played))
	}
	if rig.wakeEng.resets != 1 {
		t.Fatalf("expected wake engine reset once per cycle, got %d", rig.wakeEng.resets)
	}
}

func TestRunCommandCycleDucksAndRestoresVolume(t *testing.T) {
	catalog := music.Load([]music.Entry{{Key: "1", Title: "Dodo", Artist: "Comptine"}}, "fr")
	rig := newTestRig(t, "joue dodo", catalog, fastRecorderConfig())
	preloadFrames(rig.stream, [][]int16{silentFrame(), silentFrame(), voicedFrame(), silentFrame()})

	rig.o.runCommandCycle(rig.stream)

	if len(rig.sink.levels) < 2 {
		t.Fatalf("expected at least a duck and a restore write, got %v", rig.sink.levels)
	}
	last := rig.sink.levels[len(rig.sink.levels)-1]
	if last != 50 {
		t.Fatalf("expected volume restored to pre-duck level 50, got %d", last)
	}
	sawDuck := false
	for _, l := range rig.sink.levels {
		if l == 10 {
			sawDuck = true
		}
	}
	if !sawDuck {
		t.Fatalf("expected the duck level 10 to have been applied, got %v", rig.sink.levels)
	}
}

func TestRunCommandCycleSpeaksUnknownWhenNoSpeechDetected(t *testing.T) {
	cfg := fastRecorderConfig()
	cfg.MaxRecordingTime = 80 * time.Millisecond

	rig := newTestRig(t, "joue dodo", nil, cfg)
	// Only silence: skip frames plus enough silent frames to exceed the
	// (short) recording deadline without ever starting speech.
	frames := make([][]int16, 0, 10)
	for i := 0; i < 10; i++ {
		frames = append(frames, silentFrame())
	}
	preloadFrames(rig.stream, frames)

	rig.o.runCommandCycle(rig.stream)

	if len(rig.ttsPlay.played) != 1 {
		t.Fatalf("expected exactly one spoken response (unknown), got %d", len(rig.ttsPlay.played))
	}
}

func TestRunCommandCycleUnknownQueryWhenCatalogEmpty(t *testing.T) {
	empty := music.Load(nil, "fr")
	rig := newTestRig(t, "joue dodo", empty, fastRecorderConfig())
	preloadFrames(rig.stream, [][]int16{silentFrame(), silentFrame(), voicedFrame(), silentFrame()})

	rig.o.runCommandCycle(rig.stream)

	if len(rig.ttsPlay.played) != 1 {
		t.Fatalf("expected a spoken response even with no catalog match, got %d", len(rig.ttsPlay.played))
	}
}
