// Package config collects everything the daemon reads from its process
// environment. Missing credentials for an enabled feature are a hard
// failure at startup, not a runtime surprise.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Env var names. Kept as constants so the startup error messages and the
// docs can't drift apart.
const (
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvHueBridgeIP     = "HUE_BRIDGE_IP"
	EnvHueUserID       = "HUE_USER_ID"
	EnvSpotifyClientID = "SPOTIFY_CLIENT_ID"
	EnvSpotifySecret   = "SPOTIFY_CLIENT_SECRET"
	EnvSpotifyRefresh  = "SPOTIFY_REFRESH_TOKEN"
	EnvNotionSecret    = "NOTION_SECRET"
	EnvNotionTodoDB    = "NOTION_TODO_DATABASE_ID"
	EnvSonosIP         = "SONOS_DEVICE_IP"
)

// Config is the fully resolved daemon configuration.
type Config struct {
	OpenAIKey string

	// Wake word model files (openWakeWord ONNX pipeline).
	WakewordModel  string
	MelspecModel   string
	EmbeddingModel string
	OnnxLib        string

	HueBridgeIP     string
	HueUserID       string
	SpotifyClientID string
	SpotifySecret   string
	SpotifyRefresh  string
	NotionSecret    string
	NotionTodoDB    string
	SonosIP         string

	// Audio engine.
	SoundsDir    string
	TTSCacheDir  string
	FadeOut      time.Duration
	HTTPPort     int // static file server for the networked speaker
	SpeakerMode  string
	LanguageHint string

	// Alarm scheduler.
	SnoozeDuration time.Duration
	WakeUpDuration time.Duration
	GetUpDuration  time.Duration
}

// FromEnv builds a Config from the process environment, falling back to
// the defaults that match the shipped sound set.
func FromEnv() *Config {
	return &Config{
		OpenAIKey:       os.Getenv(EnvOpenAIKey),
		WakewordModel:   envOr("WAKEWORD_MODEL", "models/wakeword.onnx"),
		MelspecModel:    envOr("MELSPEC_MODEL", "models/melspectrogram.onnx"),
		EmbeddingModel:  envOr("EMBEDDING_MODEL", "models/embedding_model.onnx"),
		OnnxLib:         envOr("ONNX_LIB", "models/libonnxruntime.so"),
		HueBridgeIP:     os.Getenv(EnvHueBridgeIP),
		HueUserID:       os.Getenv(EnvHueUserID),
		SpotifyClientID: os.Getenv(EnvSpotifyClientID),
		SpotifySecret:   os.Getenv(EnvSpotifySecret),
		SpotifyRefresh:  os.Getenv(EnvSpotifyRefresh),
		NotionSecret:    os.Getenv(EnvNotionSecret),
		NotionTodoDB:    os.Getenv(EnvNotionTodoDB),
		SonosIP:         os.Getenv(EnvSonosIP),
		SoundsDir:       envOr("SOUNDS_DIR", "sounds"),
		TTSCacheDir:     envOr("TTS_CACHE_DIR", "sounds"),
		FadeOut:         envDuration("FADE_OUT_DURATION", 2500*time.Millisecond),
		HTTPPort:        envInt("SOUND_HTTP_PORT", 8093),
		SpeakerMode:     envOr("SPEAKER_MODE", "local"),
		LanguageHint:    envOr("LANGUAGE_HINT", "de"),
		SnoozeDuration:  envDuration("SNOOZE_DURATION", 9*time.Minute),
		WakeUpDuration:  envDuration("WAKE_UP_DURATION", 60*time.Second),
		GetUpDuration:   envDuration("GET_UP_DURATION", 60*time.Second),
	}
}

// Validate checks that everything the selected features need is present.
func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("%s is required", EnvOpenAIKey)
	}
	if c.SpeakerMode != "local" && c.SpeakerMode != "sonos" {
		return fmt.Errorf("unknown speaker mode %q (want local or sonos)", c.SpeakerMode)
	}
	if c.SpeakerMode == "sonos" && c.SonosIP == "" {
		return fmt.Errorf("%s is required for the sonos speaker mode", EnvSonosIP)
	}
	if (c.HueBridgeIP == "") != (c.HueUserID == "") {
		return fmt.Errorf("%s and %s must be set together", EnvHueBridgeIP, EnvHueUserID)
	}
	return nil
}

// HueEnabled reports whether the lights integration is configured.
func (c *Config) HueEnabled() bool { return c.HueBridgeIP != "" && c.HueUserID != "" }

// NotionEnabled reports whether the to-do integration is configured.
func (c *Config) NotionEnabled() bool { return c.NotionSecret != "" && c.NotionTodoDB != "" }

// SpotifyEnabled reports whether the music integration is configured.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifySecret != "" && c.SpotifyRefresh != ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
