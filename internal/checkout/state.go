package checkout

import (
	"errors"
	"fmt"
)

type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateCreatingOrder   State = "creating_order"
	StateAwaitingPayment State = "awaiting_payment"
	StateVerifying       State = "verifying"
	StateConfirmed       State = "confirmed"
	StateFailed          State = "failed"
)

type FailureKind string

const (
	FailureValidation      FailureKind = "validation"
	FailureOrder           FailureKind = "order"
	FailureCancelled       FailureKind = "cancelled"
	FailurePaymentRejected FailureKind = "payment_rejected"
	FailureVerification    FailureKind = "verification"
	FailureTimeout         FailureKind = "timeout"
)

var (
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrSubmitInProgress  = errors.New("checkout is already being submitted")
	ErrAlreadyConfirmed  = errors.New("checkout is already confirmed")
)

// Failed is reachable from every non-terminal state and is not listed here.
var transitions = map[State]State{
	StateIdle:            StateValidating,
	StateValidating:      StateCreatingOrder,
	StateCreatingOrder:   StateAwaitingPayment,
	StateAwaitingPayment: StateVerifying,
	StateVerifying:       StateConfirmed,
}

func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

func (s State) canMoveTo(to State) error {
	if to == StateFailed && !s.Terminal() {
		return nil
	}

	if next, ok := transitions[s]; ok && next == to {
		return nil
	}

	return fmt.Errorf("%s -> %s: %w", s, to, ErrInvalidTransition)
}

// Failure is the single current booking error of a session.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("checkout failed (%s): %s", f.Kind, f.Message)
}

func IsFailure(err error) *Failure {
	if err == nil {
		return nil
	}

	var failure *Failure

	if errors.As(err, &failure) {
		return failure
	}

	return nil
}
