package payment

import (
	"context"

	"github.com/xraph/settle/types"
)

// ChargeRequest asks the gateway to move Amount from the tokenised
// instrument. IdempotencyKey is stable for the attempt so the gateway can
// de-duplicate resubmissions.
type ChargeRequest struct {
	Amount          types.Money
	InstrumentToken string
	Method          Method
	IdempotencyKey  string
	OrderID         string
}

// ChargeResult is the gateway's verdict on a charge.
type ChargeResult struct {
	Success       bool
	TransactionID string
	FailureReason string
}

// RefundRequest reverses part or all of a settled charge.
type RefundRequest struct {
	TransactionID  string
	Amount         types.Money
	IdempotencyKey string
	Reason         string
}

// RefundResult is the gateway's verdict on a refund.
type RefundResult struct {
	Success       bool
	RefundID      string
	FailureReason string
}

// Gateway is the external processor boundary. A non-nil error means the
// outcome is unknown (network failure or timeout); a declined charge is a
// nil error with Success false.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// Lookuper is implemented by gateways that can report the recorded outcome
// of an earlier charge by idempotency key. It returns ErrChargeNotFound when
// the gateway never saw the charge.
type Lookuper interface {
	Lookup(ctx context.Context, idempotencyKey string) (*ChargeResult, error)
}
