package order

import (
	"errors"
	"fmt"
)

// Sentinel errors for order operations.
var (
	ErrNotFound               = errors.New("order: not found")
	ErrNotMutable             = errors.New("order: not mutable")
	ErrEmptyOrder             = errors.New("order: order has no items")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrNotAwaitingPayment     = errors.New("order: not awaiting payment")
	ErrOutstandingBalance     = errors.New("order: outstanding balance")
	ErrInvalidCancellation    = errors.New("order: cannot be cancelled")
	ErrInvalidQuantity        = errors.New("order: item quantity must be at least 1")
	ErrNegativeAmount         = errors.New("order: amount must not be negative")
	ErrConcurrentUpdate       = errors.New("order: concurrent update")
)

// TransitionError reports a lifecycle transition attempted from a state that
// does not permit it. It unwraps to Err, or ErrInvalidStateTransition when
// Err is nil.
type TransitionError struct {
	Transition string
	From       Status
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s from %s", e.Unwrap(), e.Transition, e.From)
}

// Unwrap returns the error kind.
func (e *TransitionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidStateTransition
}
