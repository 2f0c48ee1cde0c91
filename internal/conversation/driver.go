package conversation

import (
	"context"

	"go.uber.org/zap"
)

// Driver runs the state machine. Cycles are strictly sequential; a new
// one begins only after the previous ended in a terminal state.
type Driver struct {
	deps *Deps
	log  *zap.SugaredLogger
}

// NewDriver creates a driver over the given dependencies.
func NewDriver(deps *Deps) *Driver {
	return &Driver{deps: deps, log: deps.Log}
}

// Run processes interactions until the context ends. Blocking.
func (d *Driver) Run(ctx context.Context) error {
	state := NewWaiting(d.deps)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := d.step(ctx, state)
		switch t.Kind {
		case KindContinue:
			d.log.Debugw("state transition", "from", state.Name(), "to", t.Next.Name())
			state = t.Next
		case KindRestart:
			if d.deps.Gate != nil {
				d.deps.Gate.Resume()
			}
			state = NewWaiting(d.deps)
		case KindFailed:
			return t.Err
		}
	}
}

// step runs one state, converting a panic into a fresh cycle so a
// single bad interaction cannot take the assistant down.
func (d *Driver) step(ctx context.Context, state State) (t Transition) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("state panicked", "state", state.Name(), "panic", r)
			t = Transition{Kind: KindRestart}
		}
	}()
	return state.Process(ctx)
}
