package invoice

import (
	"context"

	"github.com/xraph/settle/id"
)

// Store persists invoices. PaidAmount and BalanceDue are not stored; the
// engine re-derives them from the payment ledger on read.
type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	// ListInvoices returns the order's invoices, oldest first.
	ListInvoices(ctx context.Context, orderID id.OrderID) ([]*Invoice, error)
}
