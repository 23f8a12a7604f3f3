package tts

import (
	"github.com/gritskevich/pi-sat/internal/errs"
	"github.com/gritskevich/pi-sat/internal/sherpa"
)

// SherpaEngineConfig configures the offline Piper-class TTS model.
type SherpaEngineConfig struct {
	ModelPath  string
	TokensPath string
	DataDir    string
	SpeakerID  int
	Speed      float32
	NumThreads int
}

// SherpaEngine implements Engine via sherpa-onnx's offline TTS model.
type SherpaEngine struct {
	tts       *sherpa.OfflineTts
	speakerID int
	speed     float32
}

// NewSherpaEngine loads the TTS model once per process; Synthesize
// calls are serialized upstream by Adapter's lock, not here.
func NewSherpaEngine(cfg SherpaEngineConfig) (*SherpaEngine, error) {
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1.0
	}
	const op = "tts.NewSherpaEngine"
	sherpaCfg := sherpa.OfflineTtsConfig{
		Model: sherpa.OfflineTtsModelConfig{
			Vits: sherpa.OfflineTtsVitsModelConfig{
				Model:       cfg.ModelPath,
				Tokens:      cfg.TokensPath,
				DataDir:     cfg.DataDir,
				NoiseScale:  0.667,
				NoiseScaleW: 0.8,
				LengthScale: 1.0,
			},
			NumThreads: cfg.NumThreads,
			Debug:      0,
		},
	}
	t := sherpa.NewOfflineTts(&sherpaCfg)
	if t == nil {
		return nil, errs.New(errs.KindFatalHardware, op, "failed to load offline TTS model")
	}
	return &SherpaEngine{tts: t, speakerID: cfg.SpeakerID, speed: speed}, nil
}

// Synthesize renders text to mono PCM at the model's native rate.
func (e *SherpaEngine) Synthesize(text string) ([]int16, int, error) {
	audio := e.tts.Generate(text, e.speakerID, e.speed)
	samples := make([]int16, len(audio.Samples))
	for i, s := range audio.Samples {
		v := s * 32767
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		samples[i] = int16(v)
	}
	return samples, audio.SampleRate, nil
}

func (e *SherpaEngine) Close() error {
	sherpa.DeleteOfflineTts(e.tts)
	return nil
}
