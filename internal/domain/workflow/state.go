package workflow

// State represents a workflow state in the application lifecycle
type State string

const (
	StateDraft          State = "draft"
	StatePendingReview  State = "pending_review"
	StateRequiresReview State = "requires_review"
	StateValidated      State = "validated"
	StateReadyForReview State = "ready_for_review"
	StateApproved       State = "approved"
)

// States lists every state in lifecycle order
var States = []State{
	StateDraft,
	StatePendingReview,
	StateRequiresReview,
	StateValidated,
	StateReadyForReview,
	StateApproved,
}

var validStates = map[State]bool{
	StateDraft:          true,
	StatePendingReview:  true,
	StateRequiresReview: true,
	StateValidated:      true,
	StateReadyForReview: true,
	StateApproved:       true,
}

// approved only leaves through a reset, which destroys the record
var terminalStates = map[State]bool{
	StateApproved: true,
}

// IsTerminal returns true if the state ends the lifecycle of this record
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
