package order

import (
	"time"

	"github.com/xraph/settle/types"
)

// Transition names carried by TransitionError.
const (
	TransitionSubmit           = "submit"
	TransitionBeginPayment     = "begin_payment"
	TransitionPaymentSucceeded = "payment_succeeded"
	TransitionPaymentFailed    = "payment_failed"
	TransitionComplete         = "complete"
	TransitionCancel           = "cancel"
	TransitionRefund           = "refund"
)

// sources lists the states each transition may start from.
var sources = map[string][]Status{
	TransitionSubmit:           {StatusDraft},
	TransitionBeginPayment:     {StatusPendingPayment, StatusPaymentFailed, StatusConfirmed},
	TransitionPaymentSucceeded: {StatusPaymentProcessing},
	TransitionPaymentFailed:    {StatusPaymentProcessing},
	TransitionComplete:         {StatusConfirmed, StatusProcessing},
	TransitionCancel: {
		StatusDraft, StatusPendingPayment, StatusPaymentProcessing,
		StatusPaymentFailed, StatusConfirmed, StatusProcessing,
	},
	TransitionRefund: {StatusConfirmed, StatusProcessing, StatusCompleted},
}

// Can reports whether transition may start from the order's current status.
func (o *Order) Can(transition string) bool {
	for _, s := range sources[transition] {
		if s == o.Status {
			return true
		}
	}
	return false
}

func (o *Order) guard(transition string, kind error) error {
	if o.Can(transition) {
		return nil
	}
	return &TransitionError{Transition: transition, From: o.Status, Err: kind}
}

// Submit moves a draft with at least one item to PendingPayment.
func (o *Order) Submit(now time.Time) error {
	if err := o.guard(TransitionSubmit, nil); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	o.Status = StatusPendingPayment
	o.SubmittedAt = &now
	return nil
}

// CheckAwaitingPayment reports whether a new payment attempt may be admitted
// given the current balance due. A confirmed order still owing money accepts
// further partial payments.
func (o *Order) CheckAwaitingPayment(balance types.Money) error {
	if err := o.guard(TransitionBeginPayment, ErrNotAwaitingPayment); err != nil {
		return err
	}
	if o.Status == StatusConfirmed && !balance.IsPositive() {
		return &TransitionError{Transition: TransitionBeginPayment, From: o.Status, Err: ErrNotAwaitingPayment}
	}
	return nil
}

// BeginPayment moves the order to PaymentProcessing for a new attempt.
func (o *Order) BeginPayment(balance types.Money) error {
	if err := o.CheckAwaitingPayment(balance); err != nil {
		return err
	}
	o.Status = StatusPaymentProcessing
	return nil
}

// RecordPaymentSuccess settles a completed attempt: Processing once nothing
// is owed, Confirmed while a balance remains.
func (o *Order) RecordPaymentSuccess(balance types.Money) error {
	if err := o.guard(TransitionPaymentSucceeded, nil); err != nil {
		return err
	}
	if balance.IsZero() {
		o.Status = StatusProcessing
	} else {
		o.Status = StatusConfirmed
	}
	return nil
}

// RecordPaymentFailure settles a failed attempt against the balance still
// due. Earlier partial payments do not change the outcome: while anything
// is owed the order becomes PaymentFailed so the caller can retry. Only a
// balance already cleared by completed attempts leaves it Processing.
func (o *Order) RecordPaymentFailure(balance types.Money) error {
	if err := o.guard(TransitionPaymentFailed, nil); err != nil {
		return err
	}
	if balance.IsPositive() {
		o.Status = StatusPaymentFailed
	} else {
		o.Status = StatusProcessing
	}
	return nil
}

// Complete finishes a fully paid order.
func (o *Order) Complete(balance types.Money, now time.Time) error {
	if err := o.guard(TransitionComplete, nil); err != nil {
		return err
	}
	if !balance.IsZero() {
		return &TransitionError{Transition: TransitionComplete, From: o.Status, Err: ErrOutstandingBalance}
	}
	o.Status = StatusCompleted
	o.CompletedAt = &now
	return nil
}

// Cancel moves any non-terminal order to Cancelled.
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.guard(TransitionCancel, ErrInvalidCancellation); err != nil {
		return err
	}
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason
	return nil
}

// ApplyRefund moves the order to Refunded when a refund has brought net paid
// to zero. It reports whether the status changed.
func (o *Order) ApplyRefund(netPaid types.Money) bool {
	if !netPaid.IsZero() || !o.Can(TransitionRefund) {
		return false
	}
	o.Status = StatusRefunded
	return true
}
