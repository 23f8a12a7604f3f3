package stt

import (
	"sync"

	"github.com/gritskevich/pi-sat/internal/errs"
	"github.com/gritskevich/pi-sat/internal/sherpa"
)

// SherpaEngine implements Engine on an offline Whisper-class ONNX
// recognizer. The output language token is pinned once at load time
// (spec §4.4), never per call.
type SherpaEngine struct {
	mu   sync.Mutex
	rec  *sherpa.OfflineRecognizer
}

type SherpaEngineConfig struct {
	EncoderPath string
	DecoderPath string
	TokensPath  string
	Language    string
	NumThreads  int
	SampleRate  int
}

func NewSherpaEngine(cfg SherpaEngineConfig) (*SherpaEngine, error) {
	const op = "stt.NewSherpaEngine"
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 1
	}

	recCfg := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: cfg.SampleRate,
			FeatureDim: 80,
		},
		DecodingMethod: "greedy_search",
	}
	recCfg.ModelConfig.Whisper.Encoder = cfg.EncoderPath
	recCfg.ModelConfig.Whisper.Decoder = cfg.DecoderPath
	recCfg.ModelConfig.Whisper.Language = cfg.Language
	recCfg.ModelConfig.Tokens = cfg.TokensPath
	recCfg.ModelConfig.NumThreads = cfg.NumThreads
	recCfg.ModelConfig.Provider = "cpu"

	rec := sherpa.NewOfflineRecognizer(&recCfg)
	if rec == nil {
		return nil, errs.New(errs.KindFatalHardware, op, "failed to load offline STT recognizer")
	}
	return &SherpaEngine{rec: rec}, nil
}

func (e *SherpaEngine) Transcribe(wav []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	samples, sampleRate, err := decodeWAV(wav)
	if err != nil {
		return "", errs.Wrap(errs.KindUserEmpty, "stt.SherpaEngine.Transcribe", err)
	}

	stream := sherpa.NewOfflineStream(e.rec)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, samples)
	e.rec.Decode(stream)
	result := e.rec.GetResult(stream)
	if result == nil {
		return "", nil
	}
	return result.Text, nil
}

func (e *SherpaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		sherpa.DeleteOfflineRecognizer(e.rec)
		e.rec = nil
	}
	return nil
}
