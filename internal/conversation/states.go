// Package conversation implements the interaction loop as an explicit
// state machine: wait for the wake phrase, record, transcribe, dispatch,
// speak the answer, start over.
package conversation

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

// Kind tells the driver what to do with a Transition.
type Kind int

const (
	// KindContinue moves to the Next state.
	KindContinue Kind = iota
	// KindRestart begins a fresh cycle at the wake-phrase state.
	KindRestart
	// KindFailed aborts the driver, used when the context ends.
	KindFailed
)

// Transition is the outcome of one state's Process call.
type Transition struct {
	Kind Kind
	Next State
	Err  error
}

// State is one step of the interaction loop.
type State interface {
	Name() string
	Process(ctx context.Context) Transition
}

// Speaker voices text responses.
type Speaker interface {
	Say(ctx context.Context, category, text string, block bool) error
}

// MicGate mutes wake-phrase scoring while the assistant itself records
// or speaks, so the chime and the spoken answer cannot retrigger it.
type MicGate interface {
	Pause()
	Resume()
}

// Deps bundles everything the states touch.
type Deps struct {
	Wake       domain.WakeListener
	Recorder   domain.Recorder
	Transcribe domain.Transcriber
	Dispatch   domain.Dispatcher
	Player     domain.SoundPlayer
	Speaker    Speaker
	// Gate is paused for the rest of a cycle once the wake phrase is
	// heard and resumed when a fresh cycle begins. Optional.
	Gate MicGate
	// ErrorCue signals a failed interaction, e.g. an error sound plus a
	// light flash. Optional.
	ErrorCue func(ctx context.Context)
	Log      *zap.SugaredLogger
}

// ── States ───────────────────────────────────────────────────────

// waiting blocks until the wake phrase is heard.
type waiting struct{ deps *Deps }

// NewWaiting returns the entry state of a cycle.
func NewWaiting(deps *Deps) State { return &waiting{deps} }

func (s *waiting) Name() string { return "waiting_for_wake_word" }

func (s *waiting) Process(ctx context.Context) Transition {
	if !s.deps.Wake.Listen(ctx) {
		return Transition{Kind: KindFailed, Err: ctx.Err()}
	}
	return Transition{Kind: KindContinue, Next: &detected{s.deps}}
}

// detected confirms with a chime and records the command.
type detected struct{ deps *Deps }

func (s *detected) Name() string { return "wake_word_detected" }

func (s *detected) Process(ctx context.Context) Transition {
	if s.deps.Gate != nil {
		s.deps.Gate.Pause()
	}
	s.deps.Player.Play(domain.SoundWakeChime, false)

	audio, err := s.deps.Recorder.Record(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSpeech) {
			s.deps.Log.Debug("wake phrase without command")
			return Transition{Kind: KindRestart}
		}
		return Transition{Kind: KindContinue, Next: &failed{s.deps, err}}
	}
	return Transition{Kind: KindContinue, Next: &transcribing{s.deps, audio}}
}

// transcribing turns the recording into text.
type transcribing struct {
	deps  *Deps
	audio []byte
}

func (s *transcribing) Name() string { return "transcribing" }

func (s *transcribing) Process(ctx context.Context) Transition {
	text, err := s.deps.Transcribe.Transcribe(ctx, s.audio)
	if err != nil {
		return Transition{Kind: KindContinue, Next: &failed{s.deps, err}}
	}
	if strings.TrimSpace(text) == "" {
		return Transition{Kind: KindContinue, Next: &failed{s.deps, domain.ErrNoSpeech}}
	}
	return Transition{Kind: KindContinue, Next: &dispatching{s.deps, text}}
}

// dispatching routes the command and speaks the response.
type dispatching struct {
	deps *Deps
	text string
}

func (s *dispatching) Name() string { return "dispatching" }

func (s *dispatching) Process(ctx context.Context) Transition {
	response, err := s.deps.Dispatch.Dispatch(ctx, s.text)
	if err != nil {
		return Transition{Kind: KindContinue, Next: &failed{s.deps, err}}
	}
	if response != "" {
		if err := s.deps.Speaker.Say(ctx, "responses", response, true); err != nil {
			s.deps.Log.Warnw("speaking response failed", "error", err)
		}
	}
	return Transition{Kind: KindContinue, Next: &completed{s.deps}}
}

// completed ends a successful cycle.
type completed struct{ deps *Deps }

func (s *completed) Name() string { return "completed" }

func (s *completed) Process(ctx context.Context) Transition {
	return Transition{Kind: KindRestart}
}

// failed ends a broken cycle with the error cue.
type failed struct {
	deps *Deps
	err  error
}

func (s *failed) Name() string { return "failed" }

func (s *failed) Process(ctx context.Context) Transition {
	s.deps.Log.Warnw("interaction failed", "error", s.err)
	if s.deps.ErrorCue != nil {
		s.deps.ErrorCue(ctx)
	}
	return Transition{Kind: KindRestart, Err: s.err}
}
