package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/settle/order"
	"github.com/xraph/settle/types"
)

func failedAt(at time.Time) *Attempt {
	return &Attempt{Amount: types.USD(100), Status: StatusFailed, FailedAt: &at}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := NewDefaultRetryPolicy()
	now := t0

	tests := []struct {
		name     string
		status   order.Status
		attempts []*Attempt
		ok       bool
	}{
		{"one failure", order.StatusPaymentFailed, []*Attempt{failedAt(now.Add(-time.Minute))}, true},
		{"two failures", order.StatusPaymentFailed, []*Attempt{failedAt(now.Add(-2 * time.Hour)), failedAt(now.Add(-time.Hour))}, true},
		{"three failures", order.StatusPaymentFailed, []*Attempt{failedAt(now.Add(-3 * time.Hour)), failedAt(now.Add(-2 * time.Hour)), failedAt(now.Add(-time.Hour))}, false},
		{"old failures fall out of window", order.StatusPaymentFailed, []*Attempt{failedAt(now.Add(-48 * time.Hour)), failedAt(now.Add(-30 * time.Hour)), failedAt(now.Add(-time.Hour))}, true},
		{"order not failed", order.StatusConfirmed, []*Attempt{failedAt(now)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &order.Order{Status: tt.status}
			err := p.CanRetry(o, tt.attempts, now)
			if tt.ok && err != nil {
				t.Fatalf("CanRetry: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrRetryLimitExceeded) {
				t.Fatalf("got %v, want ErrRetryLimitExceeded", err)
			}
		})
	}
}

func TestRetryPolicyFunc(t *testing.T) {
	deny := errors.New("deny")
	p := RetryPolicyFunc(func(*order.Order, []*Attempt, time.Time) error { return deny })
	if err := p.CanRetry(&order.Order{}, nil, t0); !errors.Is(err, deny) {
		t.Errorf("got %v", err)
	}
}
