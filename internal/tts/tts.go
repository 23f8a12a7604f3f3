// Package tts implements the TTSAdapter of spec §4.9: rendering a
// response template into speech, serialized through a single engine
// lock, and recording the completion timestamp the WakewordListener
// uses for its post-TTS cooldown.
package tts

import (
	"fmt"
	"sync"
	"time"

	"github.com/gritskevich/pi-sat/internal/logging"
)

// Template is a response template id, spec §4.9's enum of keyed
// messages.
type Template string

const (
	Playing         Template = "playing"
	Paused          Template = "paused"
	Resumed         Template = "resumed"
	Stopped         Template = "stopped"
	Unknown         Template = "unknown"
	Error           Template = "error"
	VolumeUp        Template = "volume_up"
	VolumeDown      Template = "volume_down"
	VolumeSet       Template = "volume_set"
	AddedFavourite  Template = "added_favourite"
	SleepTimerSet   Template = "sleep_timer_set"
	RepeatOn        Template = "repeat_on"
	RepeatOff       Template = "repeat_off"
	ShuffleOn       Template = "shuffle_on"
	ShuffleOff      Template = "shuffle_off"
	Next            Template = "next"
	Previous        Template = "previous"
	NothingToPlay   Template = "nothing_to_play"
	LowConfidence   Template = "low_confidence_prefix"
)

// DefaultPhrases is the French phrase table. Each entry may reference
// a single positional "%s" placeholder.
func DefaultPhrases() map[Template]string {
	return map[Template]string{
		Playing:        "Je mets %s.",
		Paused:         "Pause.",
		Resumed:        "Je reprends la musique.",
		Stopped:        "J'arrete la musique.",
		Unknown:        "Je n'ai pas compris.",
		Error:          "Une erreur est survenue.",
		VolumeUp:       "Je monte le son.",
		VolumeDown:     "Je baisse le son.",
		VolumeSet:      "Volume regle sur %s.",
		AddedFavourite: "Ajoute a tes favoris.",
		SleepTimerSet:  "Minuteur regle sur %s minutes.",
		RepeatOn:       "Je repete la chanson.",
		RepeatOff:      "J'arrete de repeter.",
		ShuffleOn:      "Je melange les chansons.",
		ShuffleOff:     "J'arrete de melanger.",
		Next:           "Chanson suivante.",
		Previous:       "Chanson precedente.",
		NothingToPlay:  "Quelle musique veux-tu ecouter ?",
		LowConfidence:  "Je ne suis pas sur, mais voici %s.",
	}
}

// Engine is the offline TTS synthesis surface (spec §6's TTSEngine).
// Engine load happens once per process; Synthesize calls are
// serialized by the Adapter's lock, not by the engine itself.
type Engine interface {
	Synthesize(text string) (samples []int16, sampleRate int, err error)
	Close() error
}

// Player is the narrow AudioIO surface the adapter needs.
type Player interface {
	PlaySamples(samples []int16) error
}

// Adapter renders templates into speech on the configured output
// device, at a fixed gain that never touches the VolumeManager.
type Adapter struct {
	mu      sync.Mutex
	engine  Engine
	player  Player
	phrases map[Template]string
	logger  logging.Logger

	lastCompletionMu sync.RWMutex
	lastCompletion   time.Time
}

// NewAdapter constructs an Adapter. phrases defaults to
// DefaultPhrases() when nil.
func NewAdapter(engine Engine, player Player, phrases map[Template]string, logger logging.Logger) *Adapter {
	if phrases == nil {
		phrases = DefaultPhrases()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Adapter{engine: engine, player: player, phrases: phrases, logger: logger}
}

// Render fills a template's single positional placeholder, if any.
func (a *Adapter) Render(tmpl Template, arg string) string {
	phrase, ok := a.phrases[tmpl]
	if !ok {
		return string(tmpl)
	}
	if arg == "" {
		return phrase
	}
	if countVerbs(phrase) == 0 {
		return phrase
	}
	return fmt.Sprintf(phrase, arg)
}

func countVerbs(s string) int {
	n := 0
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '%' && s[i+1] == 's' {
			n++
		}
	}
	return n
}

// Speak renders tmpl with arg and synthesizes it, blocking until
// playback completes (spec §4.9: "synchronous from the adapter's
// caller point of view"). It records the completion timestamp for the
// WakewordListener's cooldown regardless of success or failure, and
// is serialized by a dedicated lock so the capture loop is never
// blocked longer than one utterance.
func (a *Adapter) Speak(tmpl Template, arg string) error {
	text := a.Render(tmpl, arg)

	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.recordCompletion()

	samples, sampleRate, err := a.engine.Synthesize(text)
	if err != nil {
		a.logger.Warn("tts synthesis failed", "error", err)
		return err
	}
	if err := a.player.PlaySamples(samples); err != nil {
		a.logger.Warn("tts playback failed", "error", err)
		return err
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	time.Sleep(duration)
	return nil
}

func (a *Adapter) recordCompletion() {
	a.lastCompletionMu.Lock()
	a.lastCompletion = time.Now()
	a.lastCompletionMu.Unlock()
}

// LastCompletion returns the timestamp of the most recent Speak call's
// completion, implementing the EchoGate interface wakeword.Listener
// consults for its post-TTS cooldown window.
func (a *Adapter) LastCompletion() time.Time {
	a.lastCompletionMu.RLock()
	defer a.lastCompletionMu.RUnlock()
	return a.lastCompletion
}

// Close releases the underlying engine.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.Close()
}

// CooldownGate adapts an Adapter to the wakeword package's EchoGate
// contract: input is unreliable for `window` after the last completed
// utterance, since the device's own voice may still be in the mic
// buffer.
type CooldownGate struct {
	adapter *Adapter
	window  time.Duration
}

// NewCooldownGate builds a CooldownGate for window (spec's
// TTS_COOLDOWN_SECONDS).
func NewCooldownGate(adapter *Adapter, window time.Duration) *CooldownGate {
	return &CooldownGate{adapter: adapter, window: window}
}

func (g *CooldownGate) InCooldown() bool {
	last := g.adapter.LastCompletion()
	if last.IsZero() {
		return false
	}
	return time.Since(last) < g.window
}
