package wakeword

import (
	"sync"
	"time"

	"github.com/gritskevich/pi-sat/internal/errs"
	"github.com/gritskevich/pi-sat/internal/sherpa"
)

// SherpaEngine implements Engine on top of sherpa-onnx's offline
// keyword-spotting model. It accepts a single fixed sample rate
// matching the model; callers resample before Feed.
type SherpaEngine struct {
	mu         sync.Mutex
	spotter    *sherpa.KeywordSpotter
	stream     *sherpa.OfflineStream
	phraseID   string
	threshold  float64
	sampleRate int
}

// SherpaEngineConfig names the on-disk model files and tuning knobs.
type SherpaEngineConfig struct {
	ModelPath    string
	KeywordsFile string
	PhraseID     string
	Threshold    float64
	SampleRate   int
	NumThreads   int
}

// NewSherpaEngine loads the keyword-spotting model. The model files
// must already exist on disk; a missing/corrupt model is a
// KindFatalHardware error since the process cannot listen without it.
func NewSherpaEngine(cfg SherpaEngineConfig) (*SherpaEngine, error) {
	const op = "wakeword.NewSherpaEngine"
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 1
	}

	kwsConfig := sherpa.KeywordSpotterConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: cfg.SampleRate,
			FeatureDim: 80,
		},
		MaxActivePaths:     4,
		NumTrailingBlanks:  1,
		KeywordsScore:      1.0,
		KeywordsThreshold:  float32(cfg.Threshold),
		KeywordsFile:       cfg.KeywordsFile,
	}
	kwsConfig.ModelConfig.Transducer.Encoder = cfg.ModelPath
	kwsConfig.ModelConfig.NumThreads = cfg.NumThreads
	kwsConfig.ModelConfig.Provider = "cpu"

	spotter := sherpa.NewKeywordSpotter(&kwsConfig)
	if spotter == nil {
		return nil, errs.New(errs.KindFatalHardware, op, "failed to load keyword spotter model")
	}

	e := &SherpaEngine{
		spotter:    spotter,
		phraseID:   cfg.PhraseID,
		threshold:  cfg.Threshold,
		sampleRate: cfg.SampleRate,
	}
	e.stream = sherpa.NewOfflineStream(nil)
	return e, nil
}

func (e *SherpaEngine) SampleRate() int { return e.sampleRate }

func (e *SherpaEngine) Feed(samples []float32) (*Detection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stream.AcceptWaveform(e.sampleRate, samples)
	for e.spotter.IsReady(e.stream) {
		e.spotter.Decode(e.stream)
		result := e.spotter.GetResult(e.stream)
		if result != nil && result.Keyword != "" {
			e.spotter.Reset(e.stream)
			return &Detection{
				PhraseID:   e.phraseID,
				Confidence: e.threshold,
				At:         time.Now(),
			}, nil
		}
	}
	return nil, nil
}

func (e *SherpaEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil {
		e.spotter.Reset(e.stream)
	}
}

func (e *SherpaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil {
		sherpa.DeleteOfflineStream(e.stream)
		e.stream = nil
	}
	if e.spotter != nil {
		sherpa.DeleteKeywordSpotter(e.spotter)
		e.spotter = nil
	}
	return nil
}
