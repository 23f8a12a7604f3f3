//go:build darwin

package sherpa

import (
	impl "github.com/k2-fsa/sherpa-onnx-go-macos"
)

type (
	KeywordSpotter       = impl.KeywordSpotter
	KeywordSpotterConfig = impl.KeywordSpotterConfig

	VoiceActivityDetector = impl.VoiceActivityDetector
	VadModelConfig        = impl.VadModelConfig
	SpeechSegment         = impl.SpeechSegment

	OfflineRecognizer       = impl.OfflineRecognizer
	OfflineRecognizerConfig = impl.OfflineRecognizerConfig
	OfflineStream           = impl.OfflineStream
	OfflineRecognizerResult = impl.OfflineRecognizerResult

	OfflineTts                = impl.OfflineTts
	OfflineTtsConfig          = impl.OfflineTtsConfig
	OfflineTtsModelConfig     = impl.OfflineTtsModelConfig
	OfflineTtsVitsModelConfig = impl.OfflineTtsVitsModelConfig
	GeneratedAudio            = impl.GeneratedAudio

	FeatureConfig = impl.FeatureConfig
)

var (
	NewKeywordSpotter    = impl.NewKeywordSpotter
	DeleteKeywordSpotter = impl.DeleteKeywordSpotter

	NewVoiceActivityDetector = impl.NewVoiceActivityDetector
	DeleteVoiceActivityDetector = impl.DeleteVoiceActivityDetector

	NewOfflineRecognizer    = impl.NewOfflineRecognizer
	DeleteOfflineRecognizer = impl.DeleteOfflineRecognizer
	NewOfflineStream        = impl.NewOfflineStream
	DeleteOfflineStream     = impl.DeleteOfflineStream

	NewOfflineTts    = impl.NewOfflineTts
	DeleteOfflineTts = impl.DeleteOfflineTts
)
