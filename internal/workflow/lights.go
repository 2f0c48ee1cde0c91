package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/hue"
)

const lightsSystem = "You control the Philips Hue lights of a German-speaking household. " +
	"Use the tools to carry out the request, then confirm in one short German sentence. " +
	"Group 0 means every light in the flat."

// Lights is the light-control workflow backed by the Hue bridge.
type Lights struct {
	hue   *hue.Client
	agent Agent
	log   *zap.SugaredLogger
}

// NewLights creates the lights workflow.
func NewLights(client *hue.Client, agent Agent, log *zap.SugaredLogger) *Lights {
	return &Lights{hue: client, agent: agent, log: log}
}

// Registration describes the workflow to the registry.
func (w *Lights) Registration() Registration {
	return Registration{
		Name:          "lights",
		Description:   "turning lamps on or off, dimming, light scenes, anything about lighting",
		SoundCategory: "loading",
		Handler:       w,
	}
}

// Handle runs the light request through the tool-calling agent.
func (w *Lights) Handle(ctx context.Context, text string) (string, error) {
	return w.agent.Run(ctx, lightsSystem, text, w.tools())
}

func (w *Lights) tools() []Tool {
	return []Tool{
		{
			Name:        "list_rooms",
			Description: "List all light groups with their IDs and whether any light in them is on.",
			Parameters:  openai.FunctionParameters{"type": "object", "properties": map[string]any{}},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				groups, err := w.hue.Groups(ctx)
				if err != nil {
					return "", err
				}
				var sb strings.Builder
				for id, g := range groups {
					state := "off"
					if g.State.AnyOn {
						state = "on"
					}
					fmt.Fprintf(&sb, "%s: %s (%s)\n", id, g.Name, state)
				}
				if sb.Len() == 0 {
					return "no groups configured", nil
				}
				return sb.String(), nil
			},
		},
		{
			Name:        "list_lights",
			Description: "List every individual lamp with its ID, on/off state, brightness and reachability.",
			Parameters:  openai.FunctionParameters{"type": "object", "properties": map[string]any{}},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				lights, err := w.hue.Lights(ctx)
				if err != nil {
					return "", err
				}
				var sb strings.Builder
				for id, l := range lights {
					state := "off"
					if l.State.On {
						state = fmt.Sprintf("on, brightness %d", l.State.Bri)
					}
					if !l.State.Reachable {
						state += ", unreachable"
					}
					fmt.Fprintf(&sb, "%s: %s (%s)\n", id, l.Name, state)
				}
				if sb.Len() == 0 {
					return "no lamps configured", nil
				}
				return sb.String(), nil
			},
		},
		{
			Name:        "toggle_room",
			Description: "Flip a light group: off if any light in it is on, otherwise on.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"group_id": map[string]any{"type": "string", "description": "group ID from list_rooms, or 0 for all"},
				},
				"required": []string{"group_id"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := w.hue.ToggleGroup(ctx, argString(args, "group_id")); err != nil {
					return "", err
				}
				return "done", nil
			},
		},
		{
			Name:        "set_group",
			Description: "Switch a light group on or off.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"group_id": map[string]any{"type": "string", "description": "group ID from list_rooms, or 0 for all"},
					"on":       map[string]any{"type": "boolean"},
				},
				"required": []string{"group_id", "on"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				on, _ := args["on"].(bool)
				group := argString(args, "group_id")
				if err := w.hue.SetGroupOn(ctx, group, on); err != nil {
					return "", err
				}
				return "done", nil
			},
		},
		{
			Name:        "set_brightness",
			Description: "Set a light group's brightness as a percentage, 0 to 100.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"group_id": map[string]any{"type": "string"},
					"percent":  map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"required": []string{"group_id", "percent"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				percent, ok := argInt(args, "percent")
				if !ok {
					return "", fmt.Errorf("percent missing")
				}
				bri := percent * 254 / 100
				if err := w.hue.SetGroupBrightness(ctx, argString(args, "group_id"), bri); err != nil {
					return "", err
				}
				return "done", nil
			},
		},
		{
			Name:        "recall_scene",
			Description: "Apply a saved light scene to a group.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"group_id": map[string]any{"type": "string"},
					"scene_id": map[string]any{"type": "string"},
				},
				"required": []string{"group_id", "scene_id"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := w.hue.RecallScene(ctx, argString(args, "group_id"), argString(args, "scene_id")); err != nil {
					return "", err
				}
				return "done", nil
			},
		},
	}
}
