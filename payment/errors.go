package payment

import "errors"

// Sentinel errors for payment operations.
var (
	ErrNotFound               = errors.New("payment: attempt not found")
	ErrInvalidAmount          = errors.New("payment: amount must be positive")
	ErrAmountExceedsBalance   = errors.New("payment: amount exceeds balance due")
	ErrRefundExceedsAvailable = errors.New("payment: refund exceeds available amount")
	ErrNotRefundable          = errors.New("payment: attempt is not completed")
	ErrInvalidStatus          = errors.New("payment: invalid attempt status transition")
	ErrAttemptNotFailed       = errors.New("payment: only failed attempts can be retried")
	ErrRetryLimitExceeded     = errors.New("payment: retry limit exceeded")
	ErrOutcomeUnknown         = errors.New("payment: gateway outcome unknown")
	ErrRefundFailed           = errors.New("payment: gateway refund failed")
	ErrChargeNotFound         = errors.New("payment: gateway has no record of charge")
	ErrNoGateway              = errors.New("payment: no gateway configured")
)
