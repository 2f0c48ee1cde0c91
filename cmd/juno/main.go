// Juno is a hands-free voice assistant for the home.
//
// Usage:
//
//	juno [--env-file .env] [--log-level debug] [--speaker sonos]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/alarm"
	"github.com/mkessler/juno/internal/config"
	"github.com/mkessler/juno/internal/conversation"
	"github.com/mkessler/juno/internal/domain"
	"github.com/mkessler/juno/internal/hue"
	"github.com/mkessler/juno/internal/listen"
	"github.com/mkessler/juno/internal/logger"
	"github.com/mkessler/juno/internal/notion"
	"github.com/mkessler/juno/internal/sonos"
	"github.com/mkessler/juno/internal/sound"
	"github.com/mkessler/juno/internal/spotify"
	"github.com/mkessler/juno/internal/tts"
	"github.com/mkessler/juno/internal/wakeword"
	"github.com/mkessler/juno/internal/workflow"
)

func main() {
	envFile := pflag.String("env-file", ".env", "environment file to load")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	speakerMode := pflag.String("speaker", "", "override speaker mode (local or sonos)")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	log := logger.New(logger.ParseLevel(*logLevel))
	defer log.Sync()

	cfg := config.FromEnv()
	if *speakerMode != "" {
		cfg.SpeakerMode = *speakerMode
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("assistant stopped", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := openai.NewClient(option.WithAPIKey(cfg.OpenAIKey))

	// ── Playback ────────────────────────────────────────────────
	registry := sound.NewRegistry(log)
	if n := registry.Scan(cfg.SoundsDir); n == 0 {
		log.Warnw("no sounds found", "dir", cfg.SoundsDir)
	}

	var backend sound.Backend
	if cfg.SpeakerMode == "sonos" {
		backend = sound.NewRemoteBackend(sonos.New(cfg.SonosIP, log), cfg.SoundsDir, cfg.HTTPPort, log)
	} else {
		backend = sound.NewLocalBackend(log)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("audio backend: %w", err)
	}

	engine := sound.NewEngine(registry, backend, log, sound.WithFadeOut(cfg.FadeOut))
	defer engine.Close()

	// ── Alarms ──────────────────────────────────────────────────
	scheduler := alarm.New(engine, log,
		alarm.WithSnoozeDuration(cfg.SnoozeDuration),
		alarm.WithWakeUpDuration(cfg.WakeUpDuration),
		alarm.WithGetUpDuration(cfg.GetUpDuration),
		alarm.WithFadeOut(cfg.FadeOut),
	)
	scheduler.Start(ctx)
	defer scheduler.Shutdown()

	// ── Ears ────────────────────────────────────────────────────
	detector := wakeword.New(wakeword.Config{
		WakeModel:  cfg.WakewordModel,
		MelModel:   cfg.MelspecModel,
		EmbedModel: cfg.EmbeddingModel,
		OnnxLib:    cfg.OnnxLib,
	}, log)
	go func() {
		if err := detector.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("wake word detection stopped", "error", err)
		}
	}()

	// Saying the wake phrase while an alarm rings silences it.
	detector.Subscribe(engine.StopLoop)

	recorder := listen.NewRecorder(log)
	if err := recorder.Init(); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	defer recorder.Close()

	transcriber := listen.NewTranscriber(client, cfg.LanguageHint, log)

	// ── Voice ───────────────────────────────────────────────────
	synth := tts.NewSynthesizer(tts.NewOpenAIVoice(client, ""), registry, cfg.TTSCacheDir, log)
	speaker := tts.NewSpeaker(synth, engine, log)

	// ── Integrations and workflows ──────────────────────────────
	llm := workflow.NewLLM(client, "", log)

	var hueClient *hue.Client
	regs := []workflow.Registration{
		workflow.NewResearch(llm, log).Registration(),
		workflow.NewAlarms(scheduler, llm, domain.SoundWakeUp, domain.SoundGetUp, log).Registration(),
	}
	if cfg.HueEnabled() {
		hueClient = hue.NewClient(cfg.HueBridgeIP, cfg.HueUserID, log)
		regs = append(regs, workflow.NewLights(hueClient, llm, log).Registration())
	}
	if cfg.SpotifyEnabled() {
		spotifyClient := spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifySecret, cfg.SpotifyRefresh, log)
		regs = append(regs, workflow.NewMusic(spotifyClient, llm, log).Registration())
	}
	if cfg.NotionEnabled() {
		notionClient := notion.NewClient(cfg.NotionSecret, cfg.NotionTodoDB, log)
		regs = append(regs, workflow.NewTodos(notionClient, llm, log).Registration())
	}
	log.Infow("workflows registered", "count", len(regs))

	dispatcher := workflow.NewDispatcher(workflow.NewRegistry(regs...), llm, log)

	// A short phrase covers the round trip to the model.
	dispatcher.OnSelect(func(reg workflow.Registration) {
		if reg.SoundCategory == "" {
			return
		}
		if info, ok := registry.Random(reg.SoundCategory); ok {
			engine.Play(info.ID, false)
		}
	})

	// ── Conversation loop ───────────────────────────────────────
	driver := conversation.NewDriver(&conversation.Deps{
		Wake:       detector,
		Recorder:   recorder,
		Transcribe: transcriber,
		Dispatch:   dispatcher,
		Player:     engine,
		Speaker:    speaker,
		Gate:       detector,
		ErrorCue: func(ctx context.Context) {
			engine.Play(domain.SoundError, false)
			if hueClient != nil {
				if err := hueClient.Flash(ctx, "0"); err != nil {
					log.Debugw("error flash failed", "error", err)
				}
			}
		},
		Log: log,
	})

	log.Info("juno is listening")
	return driver.Run(ctx)
}
