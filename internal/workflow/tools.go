package workflow

import (
	"context"

	"github.com/openai/openai-go/v3"
)

// Tool is one function a workflow exposes to the model. Run receives
// the decoded arguments object and returns a plain-text result the
// model can build its answer from.
type Tool struct {
	Name        string
	Description string
	Parameters  openai.FunctionParameters
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Model classifies utterances and produces free-form answers.
type Model interface {
	// Classify maps an utterance onto one of the registered workflow
	// names, or "chat" when nothing fits.
	Classify(ctx context.Context, text string, regs []Registration) (string, error)
	// Respond answers an utterance conversationally, without tools.
	Respond(ctx context.Context, text string) (string, error)
}

// Agent runs a tool-calling conversation to completion.
type Agent interface {
	Run(ctx context.Context, system, user string, tools []Tool) (string, error)
}

// argString reads a string argument, empty when absent or mistyped.
func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// argInt reads a numeric argument. JSON numbers decode as float64.
func argInt(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
