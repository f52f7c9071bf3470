package workflow

import "context"

// StateMachine represents a state machine that tracks current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured in the current state.
	// Guards are not evaluated.
	CanFire(trigger Trigger) bool

	// CanFireWith returns true if firing the trigger now would succeed
	CanFireWith(ctx context.Context, trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured in the current state
	PermittedTriggers() []Trigger

	// Targets returns the states reachable from the current state by trigger
	Targets(trigger Trigger) []State
}
