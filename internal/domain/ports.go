package domain

import (
	"context"
	"time"
)

// SoundPlayer is the playback surface the rest of the assistant talks to.
// The concrete engine lives in internal/sound; the alarm scheduler and the
// conversation layer only ever see this interface.
type SoundPlayer interface {
	// Play starts a registered sound. When block is true the call returns
	// after playback finishes. Returns false for unknown ids or backend
	// failures; playback errors never propagate further than that.
	Play(id string, block bool) bool
	// PlayLoop repeats the sound until the duration elapses or StopLoop
	// is called. Starting a new loop stops the previous one.
	PlayLoop(id string, duration time.Duration) bool
	// StopLoop fades out and halts the active loop, if any.
	StopLoop()
	// SetVolume sets playback volume. Values are clamped to [0,1];
	// values above 1 are read as percentages.
	SetVolume(v float64)
}

// WakeListener blocks until the wake word is heard or listening stops.
type WakeListener interface {
	Listen(ctx context.Context) bool
}

// Recorder captures one utterance from the microphone. A nil buffer with
// a nil error means nothing usable was said.
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

// Transcriber converts a recorded WAV buffer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Dispatcher routes a transcribed utterance to a workflow and returns the
// spoken response.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) (string, error)
}
