package sound

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

// loopHandle tracks the single looped playback permitted at a time.
type loopHandle struct {
	stop chan struct{}
	done chan struct{}
}

// Engine ties the registry to a playback backend and layers loop and
// volume semantics on top. At most one loop runs at any moment; starting
// a new one stops the previous loop first.
type Engine struct {
	registry *Registry
	backend  Backend
	fade     time.Duration
	log      *zap.SugaredLogger

	mu   sync.Mutex
	loop *loopHandle
}

var _ domain.SoundPlayer = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFadeOut overrides the fade-out duration applied when a loop is stopped.
func WithFadeOut(d time.Duration) EngineOption {
	return func(e *Engine) { e.fade = d }
}

// NewEngine creates a playback engine over the given registry and backend.
func NewEngine(registry *Registry, backend Backend, log *zap.SugaredLogger, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		backend:  backend,
		fade:     2500 * time.Millisecond,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Play plays a registered sound once. With block set it returns after
// playback finishes, otherwise playback continues in the background.
// Returns false when the id is unknown.
func (e *Engine) Play(id string, block bool) bool {
	info, ok := e.registry.Get(id)
	if !ok {
		e.log.Warnw("unknown sound", "id", id)
		return false
	}
	if block {
		if err := e.backend.Play(info); err != nil {
			e.log.Errorw("playback failed", "id", id, "error", err)
			return false
		}
		return true
	}
	go func() {
		if err := e.backend.Play(info); err != nil {
			e.log.Errorw("playback failed", "id", id, "error", err)
		}
	}()
	return true
}

// PlayLoop plays a registered sound repeatedly until the duration elapses
// or StopLoop is called. A running loop is stopped before the new one
// starts; the swap happens in one critical section, so concurrent
// PlayLoop calls cannot leave two loops running. Returns false when the
// id is unknown.
func (e *Engine) PlayLoop(id string, duration time.Duration) bool {
	info, ok := e.registry.Get(id)
	if !ok {
		e.log.Warnw("unknown sound", "id", id)
		return false
	}

	h := &loopHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	e.mu.Lock()
	prev := e.loop
	e.loop = h
	if prev != nil {
		e.stopHandle(prev)
	}
	go e.runLoop(info, duration, h)
	e.mu.Unlock()
	return true
}

func (e *Engine) runLoop(info Info, duration time.Duration, h *loopHandle) {
	defer close(h.done)
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		select {
		case <-h.stop:
			return
		default:
		}
		if err := e.backend.Play(info); err != nil {
			e.log.Errorw("loop playback failed", "id", info.ID, "error", err)
			return
		}
	}
}

// StopLoop fades out and stops the active loop, if any. It is a no-op
// when nothing is looping.
func (e *Engine) StopLoop() {
	e.mu.Lock()
	h := e.loop
	e.loop = nil
	if h != nil {
		e.stopHandle(h)
	}
	e.mu.Unlock()
}

// stopHandle silences one loop and waits for its goroutine to exit.
// Callers must hold e.mu.
func (e *Engine) stopHandle(h *loopHandle) {
	close(h.stop)
	e.backend.FadeOut(e.fade)
	select {
	case <-h.done:
	case <-time.After(time.Second):
		e.log.Warn("loop goroutine did not exit in time")
	}
}

// SetVolume sets the playback volume. Values above 1 are treated as
// percentages; the result is clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.backend.SetVolume(clampVolume(v))
}

// IsPlaying reports whether the backend is currently producing audio.
func (e *Engine) IsPlaying() bool {
	return e.backend.IsPlaying()
}

// Close stops any active loop and releases the backend.
func (e *Engine) Close() error {
	e.StopLoop()
	e.backend.Stop()
	return e.backend.Close()
}

func clampVolume(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
