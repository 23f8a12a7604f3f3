// Package orchestrator owns the process lifecycle (spec §4.1): it
// wires every collaborator, runs the always-on wake-word capture
// loop, and drives the single-flight command cycle from wake
// detection through the spoken response.
package orchestrator

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gritskevich/pi-sat/internal/audioio"
	"github.com/gritskevich/pi-sat/internal/config"
	"github.com/gritskevich/pi-sat/internal/errs"
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

const beepDuration = 50 * time.Millisecond
const beepFreqHz = 1200.0

// volumeFaderAdapter satisfies playback.VolumeFader over a
// *volume.Manager, without playback importing volume directly.
type volumeFaderAdapter struct{ m *volume.Manager }

func (v volumeFaderAdapter) CurrentLevel() int    { return v.m.State().Level }
func (v volumeFaderAdapter) SetLevel(n int) error { return v.m.SetLevel(n) }

// Orchestrator holds every collaborator named in spec §4.1's control
// flow: AudioIO -> WakewordListener -> Orchestrator -> {SpeechRecorder
// -> STTAdapter -> IntentEngine -> MusicResolver -> PlaybackController}
// -> TTSAdapter -> VolumeManager -> AudioIO.
type Orchestrator struct {
	cfg    config.Config
	log    logging.Logger
	audio  audioio.AudioIO
	wake   *wakeword.Listener
	rec    *recorder.Recorder
	stt    *stt.Adapter
	intent *intent.Engine
	music  *music.Resolver
	pb     *playback.Controller
	vol    *volume.Manager
	tts    *tts.Adapter

	catalogMu atomic.Pointer[music.Catalog]

	commandInFlight atomic.Bool
	shutdown        chan struct{}
}

// Collaborators bundles every already-constructed component the
// orchestrator wires together; splitting construction out keeps each
// component's own package responsible for its own setup (models,
// connections) while this package owns only the control flow.
type Collaborators struct {
	Audio          audioio.AudioIO
	Wake           *wakeword.Listener
	Recorder       *recorder.Recorder
	STT            *stt.Adapter
	Intent         *intent.Engine
	Music          *music.Resolver
	InitialCatalog *music.Catalog
	Playback       *playback.Controller
	Volume         *volume.Manager
	TTS            *tts.Adapter
}

// New assembles the Orchestrator. It does not start the capture loop;
// call Run for that.
func New(cfg config.Config, log logging.Logger, c Collaborators) *Orchestrator {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	o := &Orchestrator{
		cfg:      cfg,
		log:      log,
		audio:    c.Audio,
		wake:     c.Wake,
		rec:      c.Recorder,
		stt:      c.STT,
		intent:   c.Intent,
		music:    c.Music,
		pb:       c.Playback,
		vol:      c.Volume,
		tts:      c.TTS,
		shutdown: make(chan struct{}),
	}
	o.catalogMu.Store(c.InitialCatalog)
	return o
}

// RefreshCatalog atomically swaps the in-memory catalog snapshot
// (spec §4.6: "swapped atomically on refresh").
func (o *Orchestrator) RefreshCatalog(cat *music.Catalog) {
	o.catalogMu.Store(cat)
}

func (o *Orchestrator) catalog() *music.Catalog {
	return o.catalogMu.Load()
}

// Stop signals Run's capture loop to exit by closing the shutdown
// channel. It returns at once and does not wait for Run to return.
func (o *Orchestrator) Stop() {
	close(o.shutdown)
}

// Run opens the capture stream and feeds it to the wake-word listener
// until Stop is called or a fatal capture error occurs. On each
// accepted detection it runs one command cycle inline, holding the
// capture stream exclusively until the cycle's step 9 completes, and
// recreates the stream for the next iteration — the capture handle is
// never reused across cycles.
func (o *Orchestrator) Run() error {
	const op = "orchestrator.Run"

	stream, err := o.audio.OpenCapture()
	if err != nil {
		return errs.Wrap(errs.KindFatalHardware, op, err)
	}

	resampler := audioio.NewResampler(o.audio.SampleRate(), o.wake.EngineSampleRate())
	consecutiveRecreateFailures := 0

	for {
		select {
		case <-o.shutdown:
			stream.Close()
			return nil
		default:
		}

		frame, ok := readFrame(stream, o.shutdown)
		if !ok {
			stream.Close()
			consecutiveRecreateFailures++
			o.log.Warn("capture stream read failed, recreating", "attempt", consecutiveRecreateFailures)
			if consecutiveRecreateFailures >= 5 {
				return errs.New(errs.KindFatalHardware, op, "five consecutive capture recreate failures")
			}
			newStream, openErr := o.audio.OpenCapture()
			if openErr != nil {
				return errs.Wrap(errs.KindFatalHardware, op, openErr)
			}
			stream = newStream
			resampler = audioio.NewResampler(o.audio.SampleRate(), o.wake.EngineSampleRate())
			continue
		}
		consecutiveRecreateFailures = 0

		if o.commandInFlight.Load() {
			continue
		}

		samples16k := resampler.Resample(audioio.Int16ToFloat32(frame.Samples))
		det, feedErr := o.wake.Feed(samples16k)
		if feedErr != nil {
			o.log.Warn("wakeword feed error", "error", feedErr)
			continue
		}
		if det == nil {
			continue
		}

		newStream := o.runCommandCycle(stream)
		stream = newStream
		resampler = audioio.NewResampler(o.audio.SampleRate(), o.wake.EngineSampleRate())
	}
}

func readFrame(stream audioio.CaptureStream, shutdown <-chan struct{}) (audioio.AudioFrame, bool) {
	select {
	case frame, ok := <-stream.Frames():
		return frame, ok
	case <-shutdown:
		return audioio.AudioFrame{}, false
	}
}

// runCommandCycle executes spec §4.1's nine steps in order and
// returns the replacement capture stream (step 9). Volume restore and
// the listener reset run on every exit path via defer, regardless of
// which step failed; the capture stream is closed and reopened right
// after recording, before transcription.
func (o *Orchestrator) runCommandCycle(stream audioio.CaptureStream) audioio.CaptureStream {
	o.commandInFlight.Store(true)
	defer o.commandInFlight.Store(false)

	// Step 9's listener reset runs last, after volume restore, on every
	// path.
	defer func() {
		o.wake.ResetEngine()
	}()

	// Step 1: duck, and guarantee restore (step 8) on every exit path
	// via the scoped token, per spec §9's design note.
	token, err := o.vol.DuckScope(o.cfg.VolumeDuckLevel)
	if err != nil {
		o.log.Warn("volume duck failed", "error", err)
	} else {
		defer token.Release()
	}

	// Step 2: short non-blocking confirmation beep.
	if err := o.audio.PlayTone(beepFreqHz, int(beepDuration.Milliseconds())); err != nil {
		o.log.Warn("confirmation beep failed", "error", err)
	}

	// Step 3: capture the command utterance on the same stream,
	// skipping the beep's own echo.
	cmdAudio, err := o.rec.Record(stream, beepDuration)
	stream.Close()
	newStream, openErr := o.audio.OpenCapture()
	if openErr != nil {
		o.log.Error("failed to recreate capture stream after command cycle", "error", openErr)
		newStream = stream
	}

	if err != nil {
		o.log.Warn("speech recording failed", "error", err)
		o.speak(tts.Error, "")
		return newStream
	}
	if cmdAudio.Empty() {
		o.speak(tts.Unknown, "")
		return newStream
	}

	// Step 4: transcribe.
	transcript, sttErr := o.stt.Transcribe(cmdAudio.Samples)
	if sttErr != nil {
		o.log.Warn("transcription failed", "error", sttErr)
		o.speak(tts.Error, "")
		return newStream
	}
	if transcript == "" {
		o.speak(tts.Unknown, "")
		return newStream
	}

	// Step 5: classify.
	result, ok := o.intent.Classify(transcript, o.cfg.STTLanguage)
	if !ok {
		o.speak(tts.Unknown, "")
		return newStream
	}
	if !o.cfg.IsActive(result.ID) {
		o.speak(tts.Unknown, "")
		return newStream
	}

	// Steps 6-7: dispatch and render the response.
	o.dispatch(result)

	return newStream
}

// dispatch executes step 6 (PlaybackController / MusicResolver) and
// step 7 (TTS response) for a classified intent.
func (o *Orchestrator) dispatch(result *intent.Result) {
	switch result.ID {
	case intent.PlayMusic:
		query, _ := result.Parameters["query"].(string)
		if query == "" {
			o.speak(tts.NothingToPlay, "")
			return
		}
		resolved, found := o.music.Resolve(o.catalog(), query)
		if !found {
			o.speak(tts.NothingToPlay, "")
			return
		}
		if err := o.pb.Play(resolved.CatalogKey); err != nil {
			o.log.Warn("playback start failed", "error", err)
			o.speak(tts.Error, "")
			return
		}
		if resolved.LowConfidence() {
			o.speak(tts.LowConfidence, resolved.DisplayName)
		} else {
			o.speak(tts.Playing, resolved.DisplayName)
		}

	case intent.Stop:
		if err := o.pb.Stop(); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.Stopped, "")

	case intent.Pause:
		if err := o.pb.Pause(true); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.Paused, "")

	case intent.Resume:
		if err := o.pb.Pause(false); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.Resumed, "")

	case intent.Next:
		if err := o.pb.Next(); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.Next, "")

	case intent.Previous:
		if err := o.pb.Previous(); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.Previous, "")

	case intent.VolumeUp:
		if err := o.vol.StepUp(); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.VolumeUp, "")

	case intent.VolumeDown:
		if err := o.vol.StepDown(); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.VolumeDown, "")

	case intent.SetVolume:
		level, valid := result.Parameters["volume_level"].(int)
		if !valid {
			o.speak(tts.Unknown, "")
			return
		}
		if err := o.vol.SetLevel(level); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.VolumeSet, strconv.Itoa(level))

	case intent.AddFavourite:
		if err := o.pb.AddFavourite(o.favouritesPlaylistName(), "current"); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.AddedFavourite, "")

	case intent.RepeatOn:
		if err := o.pb.Repeat(true); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.RepeatOn, "")

	case intent.RepeatOff:
		if err := o.pb.Repeat(false); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.RepeatOff, "")

	case intent.ShuffleOn:
		if err := o.pb.Shuffle(true); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.ShuffleOn, "")

	case intent.ShuffleOff:
		if err := o.pb.Shuffle(false); err != nil {
			o.speak(tts.Error, "")
			return
		}
		o.speak(tts.ShuffleOff, "")

	case intent.SleepTimer:
		minutes, valid := result.Parameters["duration_minutes"].(int)
		if !valid || minutes <= 0 {
			o.speak(tts.Unknown, "")
			return
		}
		o.pb.Sleep(minutes, volumeFaderAdapter{o.vol})
		o.speak(tts.SleepTimerSet, strconv.Itoa(minutes))

	default:
		o.speak(tts.Unknown, "")
	}
}

func (o *Orchestrator) favouritesPlaylistName() string {
	if o.cfg.FavouritesPlaylistPath == "" {
		return "favourites"
	}
	return o.cfg.FavouritesPlaylistPath
}

func (o *Orchestrator) speak(tmpl tts.Template, arg string) {
	if err := o.tts.Speak(tmpl, arg); err != nil {
		o.log.Warn("tts speak failed", "template", tmpl, "error", err)
	}
}

// Close disposes STT/TTS resources and the playback connection on
// orchestrator teardown.
func (o *Orchestrator) Close() error {
	o.pb.Close()
	if err := o.stt.Close(); err != nil {
		o.log.Warn("stt close failed", "error", err)
	}
	if err := o.tts.Close(); err != nil {
		o.log.Warn("tts close failed", "error", err)
	}
	if err := o.wake.Close(); err != nil {
		o.log.Warn("wakeword close failed", "error", err)
	}
	return o.audio.Close()
}
