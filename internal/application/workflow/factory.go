package workflow

import (
	"context"

	domainwf "github.com/garyjia/visaflow/internal/domain/workflow"
)

// Guards supplies the conditions evaluated by guarded transitions.
// A nil guard always passes.
type Guards struct {
	// RequiredPresent gates SUBMIT
	RequiredPresent domainwf.GuardFunc
	// ValidationPassed picks validated over requires_review
	ValidationPassed domainwf.GuardFunc
	// NothingBlocking gates PROCEED
	NothingBlocking domainwf.GuardFunc
}

func negate(g domainwf.GuardFunc) domainwf.GuardFunc {
	if g == nil {
		return nil
	}
	return func(ctx context.Context) bool { return !g(ctx) }
}

// BuildApplicationStateMachine creates a state machine configured for the
// application lifecycle
func BuildApplicationStateMachine(initialState domainwf.State, guards Guards) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// DRAFT state transitions
	builder.Configure(domainwf.StateDraft).
		PermitIf(domainwf.TriggerSubmit, domainwf.StatePendingReview, guards.RequiredPresent).
		Permit(domainwf.TriggerReset, domainwf.StateDraft)

	// Validation may be re-run from either outcome
	for _, state := range []domainwf.State{domainwf.StatePendingReview, domainwf.StateRequiresReview, domainwf.StateValidated} {
		cfg := builder.Configure(state).
			PermitIf(domainwf.TriggerCompleteValidation, domainwf.StateValidated, guards.ValidationPassed).
			PermitIf(domainwf.TriggerCompleteValidation, domainwf.StateRequiresReview, negate(guards.ValidationPassed)).
			Permit(domainwf.TriggerReset, domainwf.StateDraft)
		if state != domainwf.StatePendingReview {
			cfg.PermitIf(domainwf.TriggerProceed, domainwf.StateReadyForReview, guards.NothingBlocking)
		}
	}

	// READY_FOR_REVIEW state transitions
	builder.Configure(domainwf.StateReadyForReview).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReset, domainwf.StateDraft)

	// APPROVED only leaves through a reset
	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerReset, domainwf.StateDraft)

	return builder.Build(initialState)
}
