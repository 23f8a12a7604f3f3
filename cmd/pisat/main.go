// Command pisat is the voice-controlled music player daemon: it
// loads configuration, wires every pipeline component to the
// physical devices and offline models it names, and runs the
// orchestrator's wake-word loop until signalled to stop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gritskevich/pi-sat/internal/audioio"
	"github.com/gritskevich/pi-sat/internal/config"
	"github.com/gritskevich/pi-sat/internal/intent"
	"github.com/gritskevich/pi-sat/internal/logging"
	"github.com/gritskevich/pi-sat/internal/music"
	"github.com/gritskevich/pi-sat/internal/orchestrator"
	"github.com/gritskevich/pi-sat/internal/playback"
	"github.com/gritskevich/pi-sat/internal/recorder"
	"github.com/gritskevich/pi-sat/internal/stt"
	"github.com/gritskevich/pi-sat/internal/tts"
	"github.com/gritskevich/pi-sat/internal/volume"
	"github.com/gritskevich/pi-sat/internal/wakeword"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults embedded if omitted)")
	debug := flag.Bool("debug", false, "force debug-level logging regardless of config")
	flag.Parse()

	subcommand := "run"
	if args := flag.Args(); len(args) > 0 {
		subcommand = args[0]
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("pisat: invalid configuration: %v", err)
	}
	if *debug || subcommand == "run_debug" {
		cfg.LogDebug = true
	}

	logger, closeLog, err := logging.New(cfg.LogPath, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogDebug)
	if err != nil {
		log.Fatalf("pisat: failed to initialize logging: %v", err)
	}
	defer closeLog()

	orch, cleanup, err := buildOrchestrator(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		fmt.Fprintf(os.Stderr, "pisat: startup failed: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	defer orch.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run() }()

	select {
	case err := <-runErr:
		if err != nil {
			logger.Error("orchestrator exited with error", "error", err)
			fmt.Fprintf(os.Stderr, "pisat: fatal: %v\n", err)
			os.Exit(1)
		}
	case <-sig:
		logger.Info("shutdown signal received")
		orch.Stop()
		select {
		case <-runErr:
		case <-time.After(5 * time.Second):
			logger.Warn("orchestrator did not stop within the shutdown deadline")
		}
	}
}

// buildOrchestrator wires every collaborator named in SPEC_FULL.md's
// component inventory to the paths and tunables in cfg. The returned
// cleanup func releases the PlaybackBackend idle-poll connection; the
// orchestrator's own Close handles the rest.
func buildOrchestrator(cfg config.Config, logger logging.Logger) (*orchestrator.Orchestrator, func(), error) {
	audioDev, err := audioio.Open(cfg.CaptureSampleRate, cfg.DeviceCaptureName, cfg.DevicePlaybackName, logger.With("component", "audioio"))
	if err != nil {
		return nil, nil, err
	}

	wakeEngine, err := wakeword.NewSherpaEngine(wakeword.SherpaEngineConfig{
		ModelPath:    cfg.WakewordModelPath,
		KeywordsFile: cfg.WakewordKeywordsFile,
		PhraseID:     cfg.WakePhraseID,
		Threshold:    cfg.DetectThreshold,
		SampleRate:   16000,
	})
	if err != nil {
		audioDev.Close()
		return nil, nil, err
	}

	ttsEngine, err := tts.NewSherpaEngine(tts.SherpaEngineConfig{
		ModelPath:  cfg.TTSModelPath,
		TokensPath: cfg.TTSTokensPath,
		DataDir:    cfg.TTSDataPath,
		SpeakerID:  cfg.TTSVoiceID,
		Speed:      1.0,
		NumThreads: 1,
	})
	if err != nil {
		wakeEngine.Close()
		audioDev.Close()
		return nil, nil, err
	}
	ttsAdapter := tts.NewAdapter(ttsEngine, audioDev, nil, logger.With("component", "tts"))

	cooldown := time.Duration(cfg.TTSCooldownSeconds * float64(time.Second))
	gate := tts.NewCooldownGate(ttsAdapter, cooldown)
	wakeListener := wakeword.NewListener(
		wakeEngine,
		gate,
		time.Duration(cfg.WakeWordCooldown*float64(time.Second)),
		cfg.WakeResetSilenceChunks,
		cfg.WakeResetIterations,
		logger.With("component", "wakeword"),
	)

	sileroVAD, err := recorder.NewSileroVAD(cfg.SileroVADModelPath, 16000, float32(cfg.VADThreshold))
	if err != nil {
		ttsAdapter.Close()
		wakeListener.Close()
		audioDev.Close()
		return nil, nil, err
	}
	recCfg := recorder.Config{
		CaptureRate:          cfg.CaptureSampleRate,
		TargetRate:           16000,
		SpeechMultiplier:     cfg.VADSpeechMultiplier,
		SilenceDuration:      time.Duration(cfg.VADSilenceDuration * float64(time.Second)),
		MinSpeechDuration:    time.Duration(cfg.VADMinSpeechDuration * float64(time.Second)),
		MaxRecordingTime:     time.Duration(cfg.MaxRecordingTime * float64(time.Second)),
		CalibrationDuration:  300 * time.Millisecond,
		NormalizationEnabled: cfg.AudioNormalizationEnabled,
		TargetRMS:            cfg.AudioTargetRMS,
		PeakLimit:             28000,
	}
	rec := recorder.New(recCfg, sileroVAD, logger.With("component", "recorder"))

	sttEngine, err := stt.NewSherpaEngine(stt.SherpaEngineConfig{
		EncoderPath: cfg.STTEncoderPath,
		DecoderPath: cfg.STTDecoderPath,
		TokensPath:  cfg.STTTokensPath,
		Language:    cfg.STTLanguage,
		SampleRate:  16000,
	})
	if err != nil {
		sileroVAD.Close()
		ttsAdapter.Close()
		wakeListener.Close()
		audioDev.Close()
		return nil, nil, err
	}
	sttAdapter := stt.NewAdapter(
		sttEngine,
		stt.RetryConfig{
			MaxRetries:   cfg.STTMaxRetries,
			InitialDelay: time.Duration(cfg.STTRetryDelay * float64(time.Second)),
			Backoff:      cfg.STTRetryBackoff,
			MaxDelay:     2 * time.Second,
		},
		16000,
		3*time.Second,
		logger.With("component", "stt"),
	)

	intentEngine := intent.New(intent.DefaultPatterns(), cfg.ActiveIntents, cfg.FuzzyMatchThreshold)
	resolver := music.NewResolver(cfg.PhoneticWeight)

	commandTimeout := time.Duration(cfg.MPDCommandTimeoutSeconds * float64(time.Second))
	pb := playback.New(cfg.MPDAddress, commandTimeout, logger.With("component", "playback"))

	idlePoller := playback.New(cfg.MPDAddress, 0, logger.With("component", "playback-idle"))

	sink := volume.NewALSASink("PCM")
	vol := volume.New(sink, cfg.MaxVolume, cfg.VolumeStep, cfg.MaxVolume, logger.With("component", "volume"))

	catalog, err := loadCatalog(pb, cfg.STTLanguage, logger)
	if err != nil {
		logger.Warn("initial catalog load failed, starting with an empty catalog", "error", err)
		catalog = music.Load(nil, cfg.STTLanguage)
	}

	orch := orchestrator.New(cfg, logger.With("component", "orchestrator"), orchestrator.Collaborators{
		Audio:          audioDev,
		Wake:           wakeListener,
		Recorder:       rec,
		STT:            sttAdapter,
		Intent:         intentEngine,
		Music:          resolver,
		InitialCatalog: catalog,
		Playback:       pb,
		Volume:         vol,
		TTS:            ttsAdapter,
	})

	stopIdle := make(chan struct{})
	go runCatalogRefreshLoop(idlePoller, orch, cfg.STTLanguage, logger, stopIdle)

	cleanup := func() {
		close(stopIdle)
		idlePoller.Close()
	}
	return orch, cleanup, nil
}

// loadCatalog pulls the backend's full library listing and builds the
// MusicResolver's catalog snapshot from it (spec §4.6).
func loadCatalog(pb *playback.Controller, language string, logger logging.Logger) (*music.Catalog, error) {
	songs, err := pb.ListAllInfo()
	if err != nil {
		return nil, err
	}
	entries := make([]music.Entry, len(songs))
	for i, s := range songs {
		entries[i] = music.Entry{Key: s.URI, Title: s.Title, Artist: s.Artist}
	}
	logger.Info("catalog loaded", "entries", len(entries))
	return music.Load(entries, language), nil
}

// runCatalogRefreshLoop blocks on the backend's idle-database
// notification and republishes the catalog snapshot on every change,
// until stop is closed (spec §4.6/§4.7's background idle-poll worker).
func runCatalogRefreshLoop(poller *playback.Controller, orch *orchestrator.Orchestrator, language string, logger logging.Logger, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := poller.IdleDatabaseChanges(); err != nil {
			logger.Warn("idle-database wait failed, retrying", "error", err)
			time.Sleep(time.Second)
			continue
		}
		catalog, err := loadCatalog(poller, language, logger)
		if err != nil {
			logger.Warn("catalog refresh failed", "error", err)
			continue
		}
		orch.RefreshCatalog(catalog)
		logger.Info("catalog refreshed")
	}
}
