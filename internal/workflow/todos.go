package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/notion"
)

const todosSystem = "You manage a to-do list stored in Notion for a German-speaking user. " +
	"Use the tools, then confirm in one short German sentence. " +
	"When checking something off, list the open items first to find the right page ID."

// Todos is the to-do list workflow backed by Notion.
type Todos struct {
	notion *notion.Client
	agent  Agent
	log    *zap.SugaredLogger
}

// NewTodos creates the todos workflow.
func NewTodos(client *notion.Client, agent Agent, log *zap.SugaredLogger) *Todos {
	return &Todos{notion: client, agent: agent, log: log}
}

// Registration describes the workflow to the registry.
func (w *Todos) Registration() Registration {
	return Registration{
		Name:          "todos",
		Description:   "adding items to the to-do or shopping list, reading the list, checking items off",
		SoundCategory: "loading",
		Handler:       w,
	}
}

// Handle runs the to-do request through the tool-calling agent.
func (w *Todos) Handle(ctx context.Context, text string) (string, error) {
	return w.agent.Run(ctx, todosSystem, text, w.tools())
}

func (w *Todos) tools() []Tool {
	return []Tool{
		{
			Name:        "add_todo",
			Description: "Add a new entry to the to-do list.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
				},
				"required": []string{"title"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				title := argString(args, "title")
				if title == "" {
					return "", fmt.Errorf("title missing")
				}
				if err := w.notion.Add(ctx, title); err != nil {
					return "", err
				}
				return "added", nil
			},
		},
		{
			Name:        "list_todos",
			Description: "List all open entries with their page IDs.",
			Parameters:  openai.FunctionParameters{"type": "object", "properties": map[string]any{}},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				todos, err := w.notion.Open(ctx)
				if err != nil {
					return "", err
				}
				if len(todos) == 0 {
					return "the list is empty", nil
				}
				var sb strings.Builder
				for _, td := range todos {
					fmt.Fprintf(&sb, "%s: %s\n", td.PageID, td.Title)
				}
				return sb.String(), nil
			},
		},
		{
			Name:        "check_todo",
			Description: "Mark an entry as done by its page ID.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"page_id": map[string]any{"type": "string"},
				},
				"required": []string{"page_id"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				id := argString(args, "page_id")
				if id == "" {
					return "", fmt.Errorf("page_id missing")
				}
				if err := w.notion.Check(ctx, id); err != nil {
					return "", err
				}
				return "checked off", nil
			},
		},
	}
}
