package workflow

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/spotify"
)

const musicSystem = "You control Spotify playback for a German-speaking household. " +
	"Volume requests on a 0-10 scale mean tens of percent, so 5 means 50. " +
	"Use the tools, then confirm in one short German sentence."

// Music is the playback workflow backed by Spotify.
type Music struct {
	spotify *spotify.Client
	agent   Agent
	log     *zap.SugaredLogger
}

// NewMusic creates the music workflow.
func NewMusic(client *spotify.Client, agent Agent, log *zap.SugaredLogger) *Music {
	return &Music{spotify: client, agent: agent, log: log}
}

// Registration describes the workflow to the registry.
func (w *Music) Registration() Registration {
	return Registration{
		Name:          "music",
		Description:   "playing or pausing music, skipping tracks, music volume, what is playing",
		SoundCategory: "loading",
		Handler:       w,
	}
}

// Handle runs the music request through the tool-calling agent.
func (w *Music) Handle(ctx context.Context, text string) (string, error) {
	return w.agent.Run(ctx, musicSystem, text, w.tools())
}

func (w *Music) tools() []Tool {
	return []Tool{
		{
			Name:        "spotify_play",
			Description: "Resume playback, or search for a song or artist and play it when a query is given.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "song or artist to play, empty to just resume"},
				},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := w.spotify.Play(ctx, argString(args, "query")); err != nil {
					return "", err
				}
				return "playing", nil
			},
		},
		{
			Name:        "spotify_pause",
			Description: "Pause playback.",
			Parameters:  openai.FunctionParameters{"type": "object", "properties": map[string]any{}},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if err := w.spotify.Pause(ctx); err != nil {
					return "", err
				}
				return "paused", nil
			},
		},
		{
			Name:        "spotify_next",
			Description: "Skip to the next track.",
			Parameters:  openai.FunctionParameters{"type": "object", "properties": map[string]any{}},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if err := w.spotify.Next(ctx); err != nil {
					return "", err
				}
				return "skipped", nil
			},
		},
		{
			Name:        "spotify_set_volume",
			Description: "Set the playback volume as a percentage, 0 to 100.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"percent": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"required": []string{"percent"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				percent, ok := argInt(args, "percent")
				if !ok {
					return "", fmt.Errorf("percent missing")
				}
				if err := w.spotify.SetVolume(ctx, percent); err != nil {
					return "", err
				}
				return fmt.Sprintf("volume set to %d", percent), nil
			},
		},
		{
			Name:        "spotify_now_playing",
			Description: "Report the currently playing track.",
			Parameters:  openai.FunctionParameters{"type": "object", "properties": map[string]any{}},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				track, err := w.spotify.NowPlaying(ctx)
				if err != nil {
					return "", err
				}
				if track == "" {
					return "nothing is playing", nil
				}
				return track, nil
			},
		},
	}
}
