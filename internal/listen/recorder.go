// Package listen captures spoken commands from the microphone and turns
// them into text. Recording is endpointed on silence; transcription goes
// through the OpenAI Whisper API.
package listen

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

const (
	captureRate = 16000
	frameSize   = 320 // 20 ms @ 16 kHz
	frameDur    = 20 * time.Millisecond
)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSilenceThreshold sets the RMS level below which a frame counts as
// silence.
func WithSilenceThreshold(rms float64) RecorderOption {
	return func(r *Recorder) { r.silenceRMS = rms }
}

// WithSilenceWindow sets how long sustained silence ends the recording.
func WithSilenceWindow(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.silenceWindow = d }
}

// WithMaxDuration caps the total recording length.
func WithMaxDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.maxDur = d }
}

// Recorder captures one spoken utterance from the default input device.
type Recorder struct {
	log           *zap.SugaredLogger
	silenceRMS    float64
	silenceWindow time.Duration
	maxDur        time.Duration
	leadIn        time.Duration
}

var _ domain.Recorder = (*Recorder)(nil)

// NewRecorder creates a recorder. Call Init before first use and Close
// when the process shuts down.
func NewRecorder(log *zap.SugaredLogger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		log:           log,
		silenceRMS:    0.015,
		silenceWindow: 1500 * time.Millisecond,
		maxDur:        15 * time.Second,
		leadIn:        4 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init initialises the audio host layer.
func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

// Close releases the audio host layer.
func (r *Recorder) Close() {
	if err := portaudio.Terminate(); err != nil {
		r.log.Warnw("portaudio terminate failed", "error", err)
	}
}

// Record captures until the speaker falls silent and returns the
// utterance as WAV bytes. It returns ErrNoSpeech when nothing was said
// within the lead-in window.
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	buf := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, captureRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		out       = make([]int16, 0, captureRate*4)
		speaking  bool
		silentFor time.Duration
		elapsed   time.Duration
	)

	for elapsed < r.maxDur {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}
		elapsed += frameDur

		if frameRMS(buf) > r.silenceRMS {
			speaking = true
			silentFor = 0
			out = append(out, buf...)
			continue
		}

		if !speaking {
			if elapsed >= r.leadIn {
				r.log.Debug("no speech within lead-in window")
				return nil, domain.ErrNoSpeech
			}
			continue
		}

		// Trailing silence is kept so the tail of the last word is not
		// clipped.
		out = append(out, buf...)
		silentFor += frameDur
		if silentFor >= r.silenceWindow {
			break
		}
	}

	if len(out) < frameSize*4 {
		return nil, domain.ErrNoSpeech
	}

	r.log.Debugw("utterance captured", "seconds", float64(len(out))/captureRate)
	return encodeWAV(out, captureRate), nil
}
