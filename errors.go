package settle

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/settle/coupon"
	"github.com/xraph/settle/customer"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plan"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// Sentinel errors. Most are defined next to the aggregate that raises them
// and re-exported here so callers only need this package.
var (
	// General errors
	ErrInvalidInput     = errors.New("settle: invalid input")
	ErrAlreadyExists    = store.ErrAlreadyExists
	ErrNoTaxProvider    = errors.New("settle: no tax calculator registered")
	ErrCurrencyMismatch = types.ErrCurrencyMismatch

	// Order errors
	ErrOrderNotFound           = order.ErrNotFound
	ErrOrderNotMutable         = order.ErrNotMutable
	ErrEmptyOrder              = order.ErrEmptyOrder
	ErrInvalidStateTransition  = order.ErrInvalidStateTransition
	ErrOrderNotAwaitingPayment = order.ErrNotAwaitingPayment
	ErrOutstandingBalance      = order.ErrOutstandingBalance
	ErrInvalidCancellation     = order.ErrInvalidCancellation
	ErrInvalidQuantity         = order.ErrInvalidQuantity
	ErrNegativeAmount          = order.ErrNegativeAmount
	ErrConcurrentUpdate        = order.ErrConcurrentUpdate

	// Payment errors
	ErrPaymentNotFound        = payment.ErrNotFound
	ErrInvalidAmount          = payment.ErrInvalidAmount
	ErrAmountExceedsBalance   = payment.ErrAmountExceedsBalance
	ErrRefundExceedsAvailable = payment.ErrRefundExceedsAvailable
	ErrAttemptNotCompleted    = payment.ErrNotRefundable
	ErrAttemptNotFailed       = payment.ErrAttemptNotFailed
	ErrRetryLimitExceeded     = payment.ErrRetryLimitExceeded
	ErrOutcomeUnknown         = payment.ErrOutcomeUnknown
	ErrRefundFailed           = payment.ErrRefundFailed
	ErrNoGateway              = payment.ErrNoGateway

	// Invoice errors
	ErrInvoiceNotFound          = invoice.ErrNotFound
	ErrOrderNotSubmitted        = invoice.ErrOrderNotSubmitted
	ErrCannotCancelPaidInvoice  = invoice.ErrCannotCancelPaid
	ErrInvalidInvoiceTransition = invoice.ErrInvalidTransition

	// Collaborator errors
	ErrCustomerNotFound = customer.ErrNotFound
	ErrPlanNotFound     = plan.ErrNotFound
	ErrPlanUnavailable  = plan.ErrInactive
	ErrCouponNotFound   = coupon.ErrNotFound
	ErrCouponExpired    = coupon.ErrExpired
	ErrCouponNotStarted = coupon.ErrNotActive
	ErrCouponExhausted  = coupon.ErrExhausted
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("settle: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "settle: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("settle: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Err returns e when it holds errors and nil otherwise.
func (e MultiError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// IsNotFound reports whether err means a referenced entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrCouponNotFound)
}

// IsValidation reports whether err rejects the caller's input. Nothing was
// changed and the same request will fail again.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAmountExceedsBalance) ||
		errors.Is(err, ErrRefundExceedsAvailable) ||
		errors.Is(err, ErrPlanUnavailable) ||
		errors.Is(err, ErrCouponExpired) ||
		errors.Is(err, ErrCouponNotStarted) ||
		errors.Is(err, ErrCouponExhausted)
}

// IsStateConflict reports whether err was caused by the entity's current
// state. Re-read before retrying.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrOrderNotMutable) ||
		errors.Is(err, ErrOrderNotAwaitingPayment) ||
		errors.Is(err, ErrOutstandingBalance) ||
		errors.Is(err, ErrInvalidCancellation) ||
		errors.Is(err, ErrOrderNotSubmitted) ||
		errors.Is(err, ErrCannotCancelPaidInvoice) ||
		errors.Is(err, ErrInvalidInvoiceTransition) ||
		errors.Is(err, ErrAttemptNotCompleted) ||
		errors.Is(err, ErrAttemptNotFailed) ||
		errors.Is(err, ErrConcurrentUpdate)
}

// IsRetryable reports whether err is temporary and the operation can be
// retried as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate) ||
		errors.Is(err, ErrOutcomeUnknown) ||
		errors.Is(err, ErrRefundFailed) ||
		errors.Is(err, context.DeadlineExceeded)
}
