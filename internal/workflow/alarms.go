package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/alarm"
)

const alarmsSystem = "You manage wake-up alarms for a German-speaking user. " +
	"Use the tools, then confirm in one short German sentence including the time. " +
	"Times are 24-hour local time."

// Alarms is the alarm workflow bound to the scheduler.
type Alarms struct {
	scheduler  *alarm.Scheduler
	agent      Agent
	wakeSound  string
	getUpSound string
	log        *zap.SugaredLogger
}

// NewAlarms creates the alarms workflow. wakeSound and getUpSound name
// registered sounds for the two wake phases.
func NewAlarms(scheduler *alarm.Scheduler, agent Agent, wakeSound, getUpSound string, log *zap.SugaredLogger) *Alarms {
	return &Alarms{
		scheduler:  scheduler,
		agent:      agent,
		wakeSound:  wakeSound,
		getUpSound: getUpSound,
		log:        log,
	}
}

// Registration describes the workflow to the registry.
func (w *Alarms) Registration() Registration {
	return Registration{
		Name:          "alarms",
		Description:   "setting, cancelling or asking about wake-up alarms and wake-up times",
		SoundCategory: "loading",
		Handler:       w,
	}
}

// Handle runs the alarm request through the tool-calling agent.
func (w *Alarms) Handle(ctx context.Context, text string) (string, error) {
	user := fmt.Sprintf("It is now %s. %s", time.Now().Format("Monday 15:04"), text)
	return w.agent.Run(ctx, alarmsSystem, user, w.tools())
}

func (w *Alarms) tools() []Tool {
	return []Tool{
		{
			Name:        "set_alarm",
			Description: "Set an alarm to get up at the given time. Already-passed times roll to tomorrow.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"hour":   map[string]any{"type": "integer", "minimum": 0, "maximum": 23},
					"minute": map[string]any{"type": "integer", "minimum": 0, "maximum": 59},
				},
				"required": []string{"hour", "minute"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				hour, okH := argInt(args, "hour")
				minute, okM := argInt(args, "minute")
				if !okH || !okM {
					return "", fmt.Errorf("hour or minute missing")
				}
				id, at := w.scheduler.SetForTime(hour, minute, w.wakeSound, w.getUpSound, nil)
				return fmt.Sprintf("alarm %d set for %s", id, at.Format("Monday 15:04")), nil
			},
		},
		{
			Name:        "cancel_alarm",
			Description: "Cancel a pending alarm. Without an ID the next pending alarm is cancelled.",
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "integer"},
				},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				id, ok := argInt(args, "id")
				if !ok {
					nextID, _, _, found := w.scheduler.NextInfo()
					if !found {
						return "no alarm is set", nil
					}
					id = int(nextID)
				}
				if err := w.scheduler.Cancel(uint64(id)); err != nil {
					return "", err
				}
				return fmt.Sprintf("alarm %d cancelled", id), nil
			},
		},
		{
			Name:        "next_alarm",
			Description: "Report the next pending alarm.",
			Parameters:  openai.FunctionParameters{"type": "object", "properties": map[string]any{}},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				id, wakeAt, getUpAt, ok := w.scheduler.NextInfo()
				if !ok {
					return "no alarm is set", nil
				}
				return fmt.Sprintf("alarm %d: wake-up at %s, get-up at %s",
					id, wakeAt.Format("Monday 15:04"), getUpAt.Format("Monday 15:04")), nil
			},
		},
	}
}
