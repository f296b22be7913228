// Package payment models payment attempts against an order and the
// append-only ledger they form.
package payment

import (
	"fmt"
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Status is the state of a single payment attempt. Transitions only move
// forward: Pending -> Processing -> Completed | Failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Method is the payment instrument family.
type Method string

const (
	MethodCreditCard   Method = "credit_card"
	MethodDebitCard    Method = "debit_card"
	MethodBankTransfer Method = "bank_transfer"
	MethodACH          Method = "ach"
	MethodCheck        Method = "check"
	MethodWire         Method = "wire_transfer"
)

// IsCard reports whether m is a card method.
func (m Method) IsCard() bool { return m == MethodCreditCard || m == MethodDebitCard }

// Refund records one (possibly partial) reversal of a completed attempt.
type Refund struct {
	ID              id.RefundID `json:"id"`
	Amount          types.Money `json:"amount"`
	Reason          string      `json:"reason,omitempty"`
	GatewayRefundID string      `json:"gateway_refund_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Attempt is one try at charging an instrument for part or all of an
// order's balance. Attempts are never deleted and never revived; a retry is
// a new Attempt pointing at the failed one through RetryOf.
type Attempt struct {
	types.Entity

	ID             id.PaymentID      `json:"id"`
	OrderID        id.OrderID        `json:"order_id"`
	Amount         types.Money       `json:"amount"`
	Method         Method            `json:"method"`
	Instrument     Instrument        `json:"instrument"`
	Status         Status            `json:"status"`
	IdempotencyKey string            `json:"idempotency_key"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	RefundedAmount types.Money       `json:"refunded_amount"`
	Refunds        []Refund          `json:"refunds,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	TimedOut       bool              `json:"timed_out,omitempty"`
	Reconciled     bool              `json:"reconciled,omitempty"`
	ReversalID     string            `json:"reversal_id,omitempty"`
	RetryOf        id.PaymentID      `json:"retry_of,omitempty"`
	ProcessedAt    *time.Time        `json:"processed_at,omitempty"`
	FailedAt       *time.Time        `json:"failed_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Start marks a pending attempt as sent to the gateway.
func (a *Attempt) Start() error {
	if a.Status != StatusPending {
		return fmt.Errorf("%w: start from %s", ErrInvalidStatus, a.Status)
	}
	a.Status = StatusProcessing
	return nil
}

// Complete records a successful charge.
func (a *Attempt) Complete(transactionID string, now time.Time) error {
	if a.Status != StatusProcessing {
		return fmt.Errorf("%w: complete from %s", ErrInvalidStatus, a.Status)
	}
	a.Status = StatusCompleted
	a.TransactionID = transactionID
	a.ProcessedAt = &now
	return nil
}

// Fail records a declined, errored or timed-out charge.
func (a *Attempt) Fail(reason string, timedOut bool, now time.Time) error {
	if a.Status != StatusPending && a.Status != StatusProcessing {
		return fmt.Errorf("%w: fail from %s", ErrInvalidStatus, a.Status)
	}
	a.Status = StatusFailed
	a.FailureReason = reason
	a.TimedOut = timedOut
	a.FailedAt = &now
	return nil
}

// Refundable returns the amount still available for refund.
func (a *Attempt) Refundable() types.Money {
	if a.Status != StatusCompleted {
		return types.Zero(a.Amount.Currency)
	}
	return types.Money{Amount: a.Amount.Amount - a.refunded().Amount, Currency: a.Amount.Currency}.ClampToZero()
}

func (a *Attempt) refunded() types.Money {
	if a.RefundedAmount.Currency == "" {
		return types.Zero(a.Amount.Currency)
	}
	return a.RefundedAmount
}

// CheckRefund validates amount against the attempt without changing it.
func (a *Attempt) CheckRefund(amount types.Money) error {
	if a.Status != StatusCompleted {
		return fmt.Errorf("%w: attempt is %s", ErrNotRefundable, a.Status)
	}
	if !amount.SameCurrency(a.Amount) {
		return fmt.Errorf("%w: refund in %s, attempt in %s", types.ErrCurrencyMismatch, amount.Currency, a.Amount.Currency)
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Amount > a.Refundable().Amount {
		return fmt.Errorf("%w: requested %s, available %s", ErrRefundExceedsAvailable, amount, a.Refundable())
	}
	return nil
}

// ApplyRefund appends r and grows RefundedAmount.
func (a *Attempt) ApplyRefund(r Refund) error {
	if err := a.CheckRefund(r.Amount); err != nil {
		return err
	}
	total, err := a.refunded().Add(r.Amount)
	if err != nil {
		return err
	}
	a.RefundedAmount = total
	a.Refunds = append(a.Refunds, r)
	return nil
}

// Net returns what this attempt contributes to the order's paid amount.
func (a *Attempt) Net() types.Money {
	return a.Refundable()
}

// Clone returns a deep copy of a.
func (a *Attempt) Clone() *Attempt {
	c := *a
	c.Refunds = append([]Refund(nil), a.Refunds...)
	if a.ProcessedAt != nil {
		t := *a.ProcessedAt
		c.ProcessedAt = &t
	}
	if a.FailedAt != nil {
		t := *a.FailedAt
		c.FailedAt = &t
	}
	if a.Metadata != nil {
		c.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
