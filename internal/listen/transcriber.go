package listen

import (
	"bytes"
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

// vocabulary primes the recognizer toward the assistant's command
// domain. Whisper otherwise mangles the wake phrase and device names.
const vocabulary = "Juno, Wecker, Alarm, Licht, Lampe, Spotify, Sonos, Lautstärke, Timer, Einkaufsliste, Todo"

// Transcriber turns recorded WAV audio into text via the Whisper API.
type Transcriber struct {
	client   openai.Client
	language string
	log      *zap.SugaredLogger
}

var _ domain.Transcriber = (*Transcriber)(nil)

// NewTranscriber creates a transcriber. language is an ISO 639-1 hint
// such as "de".
func NewTranscriber(client openai.Client, language string, log *zap.SugaredLogger) *Transcriber {
	return &Transcriber{client: client, language: language, log: log}
}

// Transcribe sends the WAV audio to Whisper and returns the recognized
// text, trimmed. An empty result means nothing intelligible was said.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		Model:  openai.AudioModelWhisper1,
		File:   openai.File(bytes.NewReader(wav), "speech.wav", "audio/wav"),
		Prompt: openai.String(vocabulary),
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	t.log.Debugw("transcribed", "text", text)
	return text, nil
}
