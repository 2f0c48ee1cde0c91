package workflow

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

const chatWorkflow = "chat"

// Dispatcher classifies utterances and runs the matching workflow.
type Dispatcher struct {
	registry *Registry
	model    Model
	log      *zap.SugaredLogger

	mu        sync.Mutex
	observers []func(Registration)
}

var _ domain.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher over the given registry and model.
func NewDispatcher(registry *Registry, model Model, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{registry: registry, model: model, log: log}
}

// OnSelect registers a callback fired when a workflow has been chosen,
// before it runs. The assistant uses this to play a loading phrase.
// Callbacks run in their own goroutine.
func (d *Dispatcher) OnSelect(fn func(Registration)) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// Dispatch routes one utterance and returns the spoken response.
// Utterances no workflow claims go to plain conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) (string, error) {
	name, err := d.model.Classify(ctx, text, d.registry.All())
	if err != nil {
		return "", err
	}

	reg, lookupErr := d.registry.Get(name)
	if name == chatWorkflow || lookupErr != nil {
		if lookupErr != nil && name != chatWorkflow {
			d.log.Warnw("classifier named unknown workflow", "name", name)
		}
		return d.model.Respond(ctx, text)
	}

	d.log.Infow("workflow selected", "workflow", reg.Name, "text", text)
	d.notify(reg)
	return reg.Handler.Handle(ctx, text)
}

func (d *Dispatcher) notify(reg Registration) {
	d.mu.Lock()
	observers := append(([]func(Registration))(nil), d.observers...)
	d.mu.Unlock()
	for _, fn := range observers {
		go fn(reg)
	}
}
