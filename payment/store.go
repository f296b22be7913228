package payment

import (
	"context"

	"github.com/xraph/settle/id"
)

// Store persists payment attempts. Attempts are append-only: there is no
// delete.
type Store interface {
	CreatePayment(ctx context.Context, a *Attempt) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*Attempt, error)
	UpdatePayment(ctx context.Context, a *Attempt) error
	// ListPayments returns every attempt for the order, oldest first.
	ListPayments(ctx context.Context, orderID id.OrderID) ([]*Attempt, error)
}
