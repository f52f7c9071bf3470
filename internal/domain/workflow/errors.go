package workflow

import "errors"

// Transition errors; callers match them with errors.Is
var (
	// ErrInvalidTransition is returned when the trigger is not configured for the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guarded transition for a trigger refused
	ErrGuardFailed = errors.New("guard condition failed")
)
