// Package workflow routes transcribed commands to the right handler.
// A language model classifies each utterance against the registered
// workflows; the chosen handler then runs its own tool-calling loop
// against the integrations it owns.
package workflow

import (
	"context"
	"sort"

	"github.com/mkessler/juno/internal/domain"
)

// Handler executes one workflow for a single utterance and returns the
// spoken response.
type Handler interface {
	Handle(ctx context.Context, text string) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, text string) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Registration describes one workflow to the classifier.
type Registration struct {
	// Name is the classifier label, e.g. "music".
	Name string
	// Description tells the classifier what utterances belong here.
	Description string
	// SoundCategory names the loading-phrase category played while the
	// workflow runs. Empty means silence.
	SoundCategory string
	Handler       Handler
}

// Registry holds the workflow set. It is populated once at startup and
// read-only afterwards, so lookups take no lock.
type Registry struct {
	byName map[string]Registration
	names  []string
}

// NewRegistry builds a registry from the given registrations.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{byName: make(map[string]Registration, len(regs))}
	for _, reg := range regs {
		if _, dup := r.byName[reg.Name]; dup {
			continue
		}
		r.byName[reg.Name] = reg
		r.names = append(r.names, reg.Name)
	}
	sort.Strings(r.names)
	return r
}

// Get returns the registration for a name.
func (r *Registry) Get(name string) (Registration, error) {
	reg, ok := r.byName[name]
	if !ok {
		return Registration{}, domain.ErrWorkflowNotFound
	}
	return reg, nil
}

// All returns every registration in name order.
func (r *Registry) All() []Registration {
	out := make([]Registration, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}
