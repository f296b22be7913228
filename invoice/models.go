// Package invoice produces frozen billing snapshots of submitted orders and
// tracks them through Draft, Sent, Paid and Cancelled.
package invoice

import (
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Status is where an invoice sits in its Draft, Sent, Paid or Cancelled
// lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Invoice is a snapshot of an order at generation time. Line items and
// totals are frozen; PaidAmount and BalanceDue are derived from the payment
// ledger by Reconcile and are not persisted.
type Invoice struct {
	types.Entity
	ID             id.InvoiceID      `json:"id"`
	Number         string            `json:"number"`
	OrderID        id.OrderID        `json:"order_id"`
	CustomerID     string            `json:"customer_id"`
	Status         Status            `json:"status"`
	Currency       string            `json:"currency"`
	LineItems      []LineItem        `json:"line_items"`
	Subtotal       types.Money       `json:"subtotal"`
	TaxAmount      types.Money       `json:"tax_amount"`
	DiscountAmount types.Money       `json:"discount_amount"`
	Total          types.Money       `json:"total"`
	PaidAmount     types.Money       `json:"paid_amount"`
	BalanceDue     types.Money       `json:"balance_due"`
	IssueDate      time.Time         `json:"issue_date"`
	DueDate        time.Time         `json:"due_date"`
	PeriodStart    time.Time         `json:"period_start"`
	PeriodEnd      time.Time         `json:"period_end"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// LineItem is a frozen copy of one order item.
type LineItem struct {
	ID          id.LineItemID `json:"id"`
	PlanID      string        `json:"plan_id"`
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"`
	UnitPrice   types.Money   `json:"unit_price"`
	Discount    types.Money   `json:"discount"`
	Subsidy     types.Money   `json:"subsidy"`
	Total       types.Money   `json:"total"`
}

// Clone returns a deep copy of inv.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	c.LineItems = append([]LineItem(nil), inv.LineItems...)
	c.SentAt = cloneTime(inv.SentAt)
	c.PaidAt = cloneTime(inv.PaidAt)
	c.CancelledAt = cloneTime(inv.CancelledAt)
	if inv.Metadata != nil {
		c.Metadata = make(map[string]string, len(inv.Metadata))
		for k, v := range inv.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
