package settle

import (
	"context"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
)

// GenerateInvoice snapshots a submitted order into a new draft invoice.
// Later changes to the order do not reach the invoice.
func (e *Engine) GenerateInvoice(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	var inv *invoice.Invoice
	err := e.withOrderLock(ctx, orderID, func() error {
		o, err := e.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		now := e.now()
		invID := e.ids.New(id.PrefixInvoice)
		inv, err = invoice.Generate(o, invoice.Issue{
			ID:          invID,
			Number:      id.DocumentNumber("INV", now, invID),
			LineItemIDs: func() id.LineItemID { return e.ids.New(id.PrefixLineItem) },
			IssuedAt:    now,
			DueDays:     e.invoiceDueDays,
		})
		if err != nil {
			return err
		}
		paid, _, err := e.netPaid(ctx, o)
		if err != nil {
			return err
		}
		if err := inv.ApplyPaid(paid); err != nil {
			return err
		}
		return e.store.CreateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitInvoiceGenerated(ctx, inv)
	e.logger.Info("invoice generated",
		"invoice_id", inv.ID.String(),
		"number", inv.Number,
		"order_id", inv.OrderID.String(),
		"total", inv.Total.String(),
	)
	return inv, nil
}

// GetInvoice returns the invoice with PaidAmount and BalanceDue derived from
// the order's current ledger.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if err := e.derivePaid(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns the order's invoices, oldest first.
func (e *Engine) ListInvoices(ctx context.Context, orderID id.OrderID) ([]*invoice.Invoice, error) {
	invs, err := e.store.ListInvoices(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, inv := range invs {
		if err := e.derivePaid(ctx, inv); err != nil {
			return nil, err
		}
	}
	return invs, nil
}

// SendInvoice marks a draft invoice as sent.
func (e *Engine) SendInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	inv, err := e.mutateInvoice(ctx, invID, func(inv *invoice.Invoice) error {
		return inv.Send(e.now())
	})
	if err != nil {
		return nil, err
	}
	e.plugins.EmitInvoiceSent(ctx, inv)
	e.logger.Info("invoice sent", "invoice_id", inv.ID.String())
	return inv, nil
}

// ReconcileInvoice refreshes the invoice from the order's ledger and marks
// it paid once nothing is owed. Reconciling an already paid invoice changes
// nothing.
func (e *Engine) ReconcileInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var changed bool
	inv, err := e.mutateInvoice(ctx, invID, func(inv *invoice.Invoice) error {
		o, err := e.store.GetOrder(ctx, inv.OrderID)
		if err != nil {
			return err
		}
		paid, _, err := e.netPaid(ctx, o)
		if err != nil {
			return err
		}
		changed, err = inv.Reconcile(paid, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.plugins.EmitInvoicePaid(ctx, inv)
		e.logger.Info("invoice paid", "invoice_id", inv.ID.String(), "order_id", inv.OrderID.String())
	}
	return inv, nil
}

// CancelInvoice cancels a draft or sent invoice.
func (e *Engine) CancelInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	inv, err := e.mutateInvoice(ctx, invID, func(inv *invoice.Invoice) error {
		return inv.Cancel(e.now())
	})
	if err != nil {
		return nil, err
	}
	e.plugins.EmitInvoiceCancelled(ctx, inv)
	e.logger.Info("invoice cancelled", "invoice_id", inv.ID.String())
	return inv, nil
}

// mutateInvoice loads the invoice under its order's lock, applies fn and
// saves it.
func (e *Engine) mutateInvoice(ctx context.Context, invID id.InvoiceID, fn func(inv *invoice.Invoice) error) (*invoice.Invoice, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	err = e.withOrderLock(ctx, inv.OrderID, func() error {
		if inv, err = e.store.GetInvoice(ctx, invID); err != nil {
			return err
		}
		if err := e.derivePaid(ctx, inv); err != nil {
			return err
		}
		if err := fn(inv); err != nil {
			return err
		}
		return e.store.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (e *Engine) derivePaid(ctx context.Context, inv *invoice.Invoice) error {
	o, err := e.store.GetOrder(ctx, inv.OrderID)
	if err != nil {
		return err
	}
	paid, _, err := e.netPaid(ctx, o)
	if err != nil {
		return err
	}
	return inv.ApplyPaid(paid)
}
