package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
)

const maxToolRounds = 6

// LLM backs both the classifier and the tool-calling agent with the
// OpenAI chat API.
type LLM struct {
	client openai.Client
	model  openai.ChatModel
	log    *zap.SugaredLogger
}

var (
	_ Model = (*LLM)(nil)
	_ Agent = (*LLM)(nil)
)

// NewLLM creates an LLM. model defaults to gpt-4o when empty.
func NewLLM(client openai.Client, model string, log *zap.SugaredLogger) *LLM {
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT4o
	}
	return &LLM{client: client, model: m, log: log}
}

// Classify picks the workflow an utterance belongs to. The model sees
// one line per workflow and must answer with a bare name; anything else
// falls back to "chat".
func (l *LLM) Classify(ctx context.Context, text string, regs []Registration) (string, error) {
	var sb strings.Builder
	sb.WriteString("You route commands for a German-speaking voice assistant. ")
	sb.WriteString("Answer with exactly one category name from this list and nothing else:\n")
	for _, reg := range regs {
		fmt.Fprintf(&sb, "- %s: %s\n", reg.Name, reg.Description)
	}
	sb.WriteString("- chat: anything that fits none of the above\n")

	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sb.String()),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}

	name := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	name = strings.Trim(name, `"'.`)
	l.log.Debugw("classified", "text", text, "workflow", name)
	return name, nil
}

// Respond answers conversationally.
func (l *LLM) Respond(ctx context.Context, text string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are Juno, a terse and helpful German-speaking home assistant. Answer in one or two short spoken sentences."),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Run drives a tool-calling conversation until the model answers in
// plain text or the round limit is hit.
func (l *LLM) Run(ctx context.Context, system, user string, tools []Tool) (string, error) {
	byName := make(map[string]Tool, len(tools))
	params := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
		params = append(params, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  t.Parameters,
		}))
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    l.model,
			Messages: messages,
			Tools:    params,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return strings.TrimSpace(msg.Content), nil
		}

		messages = append(messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			result := l.invoke(ctx, byName, tc.Function.Name, tc.Function.Arguments)
			messages = append(messages, openai.ToolMessage(result, tc.ID))
		}
	}

	return "", fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

// invoke runs one tool call. Failures come back as text so the model
// can apologize in words instead of the turn dying.
func (l *LLM) invoke(ctx context.Context, byName map[string]Tool, name, rawArgs string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("tool panicked", "tool", name, "panic", r)
			result = fmt.Sprintf("the %s tool crashed, tell the user it failed", name)
		}
	}()

	tool, ok := byName[name]
	if !ok {
		return fmt.Sprintf("unknown tool %q", name)
	}

	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err)
		}
	}

	l.log.Debugw("tool call", "tool", name, "args", rawArgs)
	out, err := tool.Run(ctx, args)
	if err != nil {
		l.log.Warnw("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("the %s tool failed: %v", name, err)
	}
	return out
}
