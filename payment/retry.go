package payment

import (
	"fmt"
	"time"

	"github.com/xraph/settle/order"
)

// Default retry limits.
const (
	DefaultMaxFailures = 3
	DefaultLookback    = 24 * time.Hour
)

// RetryPolicy decides whether a failed attempt may be retried given the
// order and its attempt history.
type RetryPolicy interface {
	CanRetry(o *order.Order, attempts []*Attempt, now time.Time) error
}

// RetryPolicyFunc adapts a function to RetryPolicy.
type RetryPolicyFunc func(o *order.Order, attempts []*Attempt, now time.Time) error

// CanRetry implements RetryPolicy.
func (f RetryPolicyFunc) CanRetry(o *order.Order, attempts []*Attempt, now time.Time) error {
	return f(o, attempts, now)
}

// DefaultRetryPolicy permits a retry while the order is PaymentFailed and
// fewer than MaxFailures attempts failed within Lookback.
type DefaultRetryPolicy struct {
	MaxFailures int
	Lookback    time.Duration
}

// NewDefaultRetryPolicy returns a policy with three failures per 24 hours.
func NewDefaultRetryPolicy() DefaultRetryPolicy {
	return DefaultRetryPolicy{MaxFailures: DefaultMaxFailures, Lookback: DefaultLookback}
}

// CanRetry implements RetryPolicy.
func (p DefaultRetryPolicy) CanRetry(o *order.Order, attempts []*Attempt, now time.Time) error {
	if o.Status != order.StatusPaymentFailed {
		return fmt.Errorf("%w: order is %s", ErrRetryLimitExceeded, o.Status)
	}
	limit := p.MaxFailures
	if limit <= 0 {
		limit = DefaultMaxFailures
	}
	lookback := p.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if n := FailedSince(attempts, now.Add(-lookback)); n >= limit {
		return fmt.Errorf("%w: %d failures in %s", ErrRetryLimitExceeded, n, lookback)
	}
	return nil
}
