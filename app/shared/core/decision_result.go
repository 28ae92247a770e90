package core

// DecisionResult represents the outcome of a business decision in a Decide function.
// T is the effect the shell applies on success, e.g. a lending.LoanChange.
//
// DecisionResult should only be constructed using the provided factory methods:
// IdempotentDecision(), SuccessDecision(effect), or ErrorDecision(err).
type DecisionResult[T any] struct {
	Outcome string // "idempotent", "success", or "error"
	Effect  T      // zero value unless Outcome is "success"
	Err     error
}

const (
	idempotentOutcome = "idempotent"
	successOutcome    = "success"
	errorOutcome      = "error"
)

// IdempotentDecision creates a DecisionResult indicating no state change is needed.
func IdempotentDecision[T any]() DecisionResult[T] {
	return DecisionResult[T]{
		Outcome: idempotentOutcome,
	}
}

// SuccessDecision creates a DecisionResult indicating a state change with the effect to apply.
func SuccessDecision[T any](effect T) DecisionResult[T] {
	return DecisionResult[T]{
		Outcome: successOutcome,
		Effect:  effect,
	}
}

// ErrorDecision creates a DecisionResult indicating a business rule violation.
func ErrorDecision[T any](err error) DecisionResult[T] {
	return DecisionResult[T]{
		Outcome: errorOutcome,
		Err:     err,
	}
}

// HasEffect returns true if there is an effect to apply.
func (r DecisionResult[T]) HasEffect() bool {
	return r.Outcome == successOutcome
}

// IsIdempotent returns true if the decision requires no state change.
func (r DecisionResult[T]) IsIdempotent() bool {
	return r.Outcome == idempotentOutcome
}

// HasError returns the error if there is one, otherwise nil.
func (r DecisionResult[T]) HasError() error {
	if r.Outcome == errorOutcome {
		return r.Err
	}

	return nil
}
