package workflow

import (
	"context"

	"go.uber.org/zap"
)

const researchSystem = "You are Juno, a German-speaking home assistant answering a factual " +
	"question asked out loud. Answer in spoken German, at most three short sentences, " +
	"no lists, no markdown."

// Research answers open questions without touching any integration.
type Research struct {
	agent Agent
	log   *zap.SugaredLogger
}

// NewResearch creates the research workflow.
func NewResearch(agent Agent, log *zap.SugaredLogger) *Research {
	return &Research{agent: agent, log: log}
}

// Registration describes the workflow to the registry.
func (w *Research) Registration() Registration {
	return Registration{
		Name:          "research",
		Description:   "factual questions, explanations, translations, anything asking for knowledge",
		SoundCategory: "thinking",
		Handler:       w,
	}
}

// Handle answers the question directly; no tools are involved.
func (w *Research) Handle(ctx context.Context, text string) (string, error) {
	return w.agent.Run(ctx, researchSystem, text, nil)
}
