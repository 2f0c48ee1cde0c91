// Package tts renders spoken responses through the OpenAI speech API
// and caches every rendered phrase on disk. Repeated phrases, and there
// are many in an assistant's day, never hit the network twice.
package tts

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/sound"
)

// Voice renders text to MP3 audio.
type Voice interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAIVoice renders speech through the OpenAI API.
type OpenAIVoice struct {
	client openai.Client
	voice  openai.AudioSpeechNewParamsVoice
}

var _ Voice = (*OpenAIVoice)(nil)

// NewOpenAIVoice creates a Voice using the given speaking voice, or
// "nova" when empty.
func NewOpenAIVoice(client openai.Client, voice string) *OpenAIVoice {
	v := openai.AudioSpeechNewParamsVoice(voice)
	if voice == "" {
		v = openai.AudioSpeechNewParamsVoice("nova")
	}
	return &OpenAIVoice{client: client, voice: v}
}

// Synthesize renders text as MP3.
func (v *OpenAIVoice) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := v.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Voice:          v.voice,
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Synthesizer manages the phrase cache and hands rendered phrases to
// the sound registry so the playback engine can use them like any other
// sound.
type Synthesizer struct {
	voice    Voice
	registry *sound.Registry
	dir      string
	log      *zap.SugaredLogger
}

// NewSynthesizer creates a synthesizer caching below dir.
func NewSynthesizer(voice Voice, registry *sound.Registry, dir string, log *zap.SugaredLogger) *Synthesizer {
	return &Synthesizer{voice: voice, registry: registry, dir: dir, log: log}
}

// CacheID returns the sound ID a phrase renders to. The ID doubles as
// the cache file stem, so identical text always maps to the same file.
func CacheID(category, text string) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("tts_%s_%x", category, sum[:4])
}

// Prepare ensures a phrase is rendered, cached and registered, and
// returns its sound ID. A cache hit costs one stat call.
func (s *Synthesizer) Prepare(ctx context.Context, category, text string) (string, error) {
	id := CacheID(category, text)
	path := filepath.Join(s.dir, category, id+".mp3")

	if _, err := os.Stat(path); err == nil {
		s.registry.Register(id, path, category)
		return id, nil
	}

	audio, err := s.voice.Synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", err
	}
	s.log.Debugw("phrase rendered", "id", id, "bytes", len(audio))

	s.registry.Register(id, path, category)
	return id, nil
}
