package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrSoundNotFound    = errors.New("sound not found")
	ErrAlarmNotFound    = errors.New("alarm not found")
	ErrAlarmTriggered   = errors.New("alarm already triggered")
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNoSpeech         = errors.New("no speech captured")
	ErrUnreachable      = errors.New("device unreachable")
)
