package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit             Trigger = "SUBMIT"
	TriggerCompleteValidation Trigger = "COMPLETE_VALIDATION"
	TriggerProceed            Trigger = "PROCEED"
	TriggerApprove            Trigger = "APPROVE"
	TriggerReset              Trigger = "RESET"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
