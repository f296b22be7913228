package payment

import (
	"time"

	"github.com/xraph/settle/types"
)

// NetPaid sums amount minus refunded amount over completed attempts. Failed
// and in-flight attempts contribute nothing.
func NetPaid(currency string, attempts []*Attempt) (types.Money, error) {
	total := types.Zero(currency)
	for _, a := range attempts {
		if a.Status != StatusCompleted {
			continue
		}
		var err error
		if total, err = total.Add(a.Net()); err != nil {
			return types.Money{}, err
		}
	}
	return total, nil
}

// TotalRefunded sums refunds recorded across all attempts.
func TotalRefunded(currency string, attempts []*Attempt) (types.Money, error) {
	total := types.Zero(currency)
	for _, a := range attempts {
		if a.RefundedAmount.Currency == "" {
			continue
		}
		var err error
		if total, err = total.Add(a.RefundedAmount); err != nil {
			return types.Money{}, err
		}
	}
	return total, nil
}

// FailedSince counts failed attempts whose failure happened at or after since.
func FailedSince(attempts []*Attempt, since time.Time) int {
	n := 0
	for _, a := range attempts {
		if a.Status != StatusFailed {
			continue
		}
		at := a.CreatedAt
		if a.FailedAt != nil {
			at = *a.FailedAt
		}
		if !at.Before(since) {
			n++
		}
	}
	return n
}

// Find returns the attempt with the given id from attempts, or nil.
func Find(attempts []*Attempt, paymentID string) *Attempt {
	for _, a := range attempts {
		if a.ID.String() == paymentID {
			return a
		}
	}
	return nil
}
