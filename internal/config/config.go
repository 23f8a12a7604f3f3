// Package config loads Pi-Sat's single configuration record: a YAML
// file overlaid with environment variables (via godotenv for local
// development), matching every option in spec.md §6's configuration
// surface plus the ambient device/model/network settings a real
// deployment needs.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gritskevich/pi-sat/internal/errs"
)

type Config struct {
	// Audio device
	DeviceCaptureName  string `yaml:"device_capture_name"`
	DevicePlaybackName string `yaml:"device_playback_name"`
	CaptureSampleRate  int    `yaml:"capture_sample_rate"`
	CaptureFrameMillis int    `yaml:"capture_frame_millis"`

	// Pipeline tuning (spec §6)
	STTLanguage               string   `yaml:"stt_language"`
	WakePhraseID              string   `yaml:"wake_phrase_id"`
	DetectThreshold           float64  `yaml:"detect_threshold"`
	VADThreshold              float64  `yaml:"vad_threshold"`
	TTSCooldownSeconds        float64  `yaml:"tts_cooldown_seconds"`
	WakeWordCooldown          float64  `yaml:"wake_word_cooldown"`
	WakeResetSilenceChunks    int      `yaml:"wake_reset_silence_chunks"`
	WakeResetIterations       int      `yaml:"wake_reset_iterations"`
	VADSpeechMultiplier       float64  `yaml:"vad_speech_multiplier"`
	VADSilenceDuration        float64  `yaml:"vad_silence_duration"`
	VADMinSpeechDuration      float64  `yaml:"vad_min_speech_duration"`
	MaxRecordingTime          float64  `yaml:"max_recording_time"`
	AudioNormalizationEnabled bool     `yaml:"audio_normalization_enabled"`
	AudioTargetRMS            float64  `yaml:"audio_target_rms"`
	STTMaxRetries             int      `yaml:"stt_max_retries"`
	STTRetryDelay             float64  `yaml:"stt_retry_delay"`
	STTRetryBackoff           float64  `yaml:"stt_retry_backoff"`
	FuzzyMatchThreshold       float64  `yaml:"fuzzy_match_threshold"`
	PhoneticWeight            float64  `yaml:"phonetic_weight"`
	VolumeStep                int      `yaml:"volume_step"`
	VolumeDuckLevel            int     `yaml:"volume_duck_level"`
	MaxVolume                 int      `yaml:"max_volume"`
	ActiveIntents             []string `yaml:"active_intents"`

	// Model/resource paths for the offline engines
	WakewordModelPath    string `yaml:"wakeword_model_path"`
	WakewordKeywordsFile string `yaml:"wakeword_keywords_file"`
	SileroVADModelPath   string `yaml:"silero_vad_model_path"`
	STTEncoderPath       string `yaml:"stt_encoder_path"`
	STTDecoderPath       string `yaml:"stt_decoder_path"`
	STTTokensPath        string `yaml:"stt_tokens_path"`
	TTSModelPath         string `yaml:"tts_model_path"`
	TTSTokensPath        string `yaml:"tts_tokens_path"`
	TTSVoicesPath        string `yaml:"tts_voices_path"`
	TTSDataPath          string `yaml:"tts_data_path"`
	TTSVoiceID           int    `yaml:"tts_voice_id"`
	TTSGain              float64 `yaml:"tts_gain"`

	// PlaybackBackend (MPD-compatible)
	MPDAddress               string  `yaml:"mpd_address"`
	MPDDialTimeoutSeconds    float64 `yaml:"mpd_dial_timeout_seconds"`
	MPDCommandTimeoutSeconds float64 `yaml:"mpd_command_timeout_seconds"`

	FavouritesPlaylistPath string `yaml:"favourites_playlist_path"`

	LogPath       string `yaml:"log_path"`
	LogDebug      bool   `yaml:"log_debug"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
}

// Default returns the documented defaults from spec.md §6.
func Default() Config {
	return Config{
		DeviceCaptureName:  "",
		DevicePlaybackName: "",
		CaptureSampleRate:  48000,
		CaptureFrameMillis: 20,

		STTLanguage:               "fr",
		WakePhraseID:              "alexa_v0.1",
		DetectThreshold:           0.5,
		VADThreshold:              0.6,
		TTSCooldownSeconds:        1.5,
		WakeWordCooldown:          2.0,
		WakeResetSilenceChunks:    25,
		WakeResetIterations:       2,
		VADSpeechMultiplier:       1.25,
		VADSilenceDuration:        1.0,
		VADMinSpeechDuration:      0.5,
		MaxRecordingTime:          10.0,
		AudioNormalizationEnabled: true,
		AudioTargetRMS:            3000,
		STTMaxRetries:             3,
		STTRetryDelay:             0.5,
		STTRetryBackoff:           2.0,
		FuzzyMatchThreshold:       35,
		PhoneticWeight:            0.6,
		VolumeStep:                10,
		VolumeDuckLevel:           20,
		MaxVolume:                 70,
		ActiveIntents:             []string{"play_music", "stop", "volume_up", "volume_down"},

		WakewordModelPath:    "models/wakeword/alexa.onnx",
		WakewordKeywordsFile: "models/wakeword/keywords.txt",
		SileroVADModelPath:   "models/vad/silero_vad.onnx",
		STTEncoderPath:       "models/stt/encoder.onnx",
		STTDecoderPath:       "models/stt/decoder.onnx",
		STTTokensPath:        "models/stt/tokens.txt",
		TTSModelPath:         "models/tts/model.onnx",
		TTSTokensPath:        "models/tts/tokens.txt",
		TTSVoicesPath:        "models/tts/voices.bin",
		TTSDataPath:          "models/tts/espeak-ng-data",
		TTSVoiceID:           0,
		TTSGain:              1.0,

		MPDAddress:               "127.0.0.1:6600",
		MPDDialTimeoutSeconds:    2.0,
		MPDCommandTimeoutSeconds: 2.0,

		FavouritesPlaylistPath: "state/favourites.m3u",

		LogPath:       "logs/pi-sat.log",
		LogDebug:      false,
		LogMaxSizeMB:  10,
		LogMaxBackups: 5,
	}
}

// Load reads a YAML config file (if path is non-empty and exists),
// overlays a ".env" file via godotenv for local secrets/paths, then
// overlays PISAT_-prefixed environment variables for the handful of
// fields that commonly vary per deployment. Missing file is not an
// error: Default() is the base in all cases.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, errs.Wrap(errs.KindConfigInvalid, "config.Load", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errs.Wrap(errs.KindConfigInvalid, "config.Load", fmt.Errorf("parse %s: %w", path, err))
		}
	}

	// Local dev convenience; ignored in production where vars are set by
	// the service manager directly.
	_ = godotenv.Load()

	overlayString(&cfg.MPDAddress, "PISAT_MPD_ADDRESS")
	overlayString(&cfg.STTLanguage, "PISAT_STT_LANGUAGE")
	overlayString(&cfg.LogPath, "PISAT_LOG_PATH")
	overlayString(&cfg.FavouritesPlaylistPath, "PISAT_FAVOURITES_PLAYLIST_PATH")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayString(dst *string, envVar string) {
	if v, ok := os.LookupEnv(envVar); ok && v != "" {
		*dst = v
	}
}

// Validate enforces the invariants a startup-time ConfigInvalid error
// must catch (spec §7): a malformed config aborts the process rather
// than limping along with nonsensical values.
func (c Config) Validate() error {
	const op = "config.Validate"
	if c.MaxVolume <= 0 || c.MaxVolume > 100 {
		return errs.New(errs.KindConfigInvalid, op, "max_volume must be in (0, 100]")
	}
	if c.VolumeDuckLevel < 0 || c.VolumeDuckLevel > c.MaxVolume {
		return errs.New(errs.KindConfigInvalid, op, "volume_duck_level must be within [0, max_volume]")
	}
	if c.DetectThreshold < 0 || c.DetectThreshold > 1 {
		return errs.New(errs.KindConfigInvalid, op, "detect_threshold must be in [0, 1]")
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return errs.New(errs.KindConfigInvalid, op, "vad_threshold must be in [0, 1]")
	}
	if c.FuzzyMatchThreshold < 0 || c.FuzzyMatchThreshold > 100 {
		return errs.New(errs.KindConfigInvalid, op, "fuzzy_match_threshold must be in [0, 100]")
	}
	if c.PhoneticWeight < 0 || c.PhoneticWeight > 1 {
		return errs.New(errs.KindConfigInvalid, op, "phonetic_weight must be in [0, 1]")
	}
	if c.STTMaxRetries < 0 {
		return errs.New(errs.KindConfigInvalid, op, "stt_max_retries must be >= 0")
	}
	if c.CaptureSampleRate <= 0 {
		return errs.New(errs.KindConfigInvalid, op, "capture_sample_rate must be positive")
	}
	if len(c.ActiveIntents) == 0 {
		return errs.New(errs.KindConfigInvalid, op, "active_intents must not be empty")
	}
	return nil
}

// IsActive reports whether intentID is in the configured active set.
func (c Config) IsActive(intentID string) bool {
	for _, id := range c.ActiveIntents {
		if id == intentID {
			return true
		}
	}
	return false
}
