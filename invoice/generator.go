package invoice

import (
	"fmt"
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/types"
)

// DefaultDueDays is the payment term applied when Issue.DueDays is zero.
const DefaultDueDays = 30

// Issue carries the identity and dates for a new invoice.
type Issue struct {
	ID          id.InvoiceID
	Number      string
	LineItemIDs func() id.LineItemID
	IssuedAt    time.Time
	DueDays     int
}

// Generate snapshots o into a new Draft invoice. Only orders that were
// submitted can be invoiced; a draft cancelled before submission never was.
func Generate(o *order.Order, is Issue) (*Invoice, error) {
	if o.Status == order.StatusDraft || o.SubmittedAt == nil {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotSubmitted, o.ID, o.Status)
	}

	nextID := is.LineItemIDs
	if nextID == nil {
		nextID = id.NewLineItemID
	}
	lines := make([]LineItem, len(o.Items))
	for i, it := range o.Items {
		lines[i] = LineItem{
			ID:          nextID(),
			PlanID:      it.PlanID,
			Description: describe(it),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
			Subsidy:     it.Subsidy,
			Total:       it.TotalPrice,
		}
	}

	dueDays := is.DueDays
	if dueDays <= 0 {
		dueDays = DefaultDueDays
	}
	start := o.EffectiveDate
	if start.IsZero() {
		start = is.IssuedAt
	}
	start = truncateDay(start)

	return &Invoice{
		Entity:         types.NewEntity(is.IssuedAt),
		ID:             is.ID,
		Number:         is.Number,
		OrderID:        o.ID,
		CustomerID:     o.CustomerID,
		Status:         StatusDraft,
		Currency:       o.Currency,
		LineItems:      lines,
		Subtotal:       o.Subtotal,
		TaxAmount:      o.TaxAmount,
		DiscountAmount: o.DiscountAmount,
		Total:          o.Total,
		PaidAmount:     types.Zero(o.Currency),
		BalanceDue:     o.Total,
		IssueDate:      is.IssuedAt,
		DueDate:        is.IssuedAt.AddDate(0, 0, dueDays),
		PeriodStart:    start,
		PeriodEnd:      start.AddDate(0, 1, -1),
	}, nil
}

// LineTotal sums the frozen line items.
func (inv *Invoice) LineTotal() (types.Money, error) {
	sum := types.Zero(inv.Currency)
	for _, li := range inv.LineItems {
		var err error
		if sum, err = sum.Add(li.Total); err != nil {
			return types.Money{}, err
		}
	}
	return sum, nil
}

// Send moves a draft invoice to Sent.
func (inv *Invoice) Send(now time.Time) error {
	if inv.Status != StatusDraft {
		return fmt.Errorf("%w: send from %s", ErrInvalidTransition, inv.Status)
	}
	inv.Status = StatusSent
	inv.SentAt = &now
	inv.Touch(now)
	return nil
}

// Reconcile refreshes PaidAmount and BalanceDue from netPaid and moves the
// invoice to Paid once nothing is owed. It reports whether the status
// changed; reconciling a paid invoice is a no-op. Cancelled invoices keep
// their status but still get the derived amounts.
func (inv *Invoice) Reconcile(netPaid types.Money, now time.Time) (bool, error) {
	if err := inv.ApplyPaid(netPaid); err != nil {
		return false, err
	}
	if inv.Status == StatusPaid || inv.Status == StatusCancelled {
		return false, nil
	}
	if !inv.BalanceDue.IsZero() {
		return false, nil
	}
	inv.Status = StatusPaid
	inv.PaidAt = &now
	inv.Touch(now)
	return true, nil
}

// ApplyPaid sets the derived PaidAmount and BalanceDue without touching the
// status.
func (inv *Invoice) ApplyPaid(netPaid types.Money) error {
	due, err := inv.Total.Subtract(netPaid)
	if err != nil {
		return err
	}
	inv.PaidAmount = netPaid
	inv.BalanceDue = due.ClampToZero()
	return nil
}

// Cancel moves a draft or sent invoice to Cancelled.
func (inv *Invoice) Cancel(now time.Time) error {
	switch inv.Status {
	case StatusPaid:
		return ErrCannotCancelPaid
	case StatusCancelled:
		return fmt.Errorf("%w: already cancelled", ErrInvalidTransition)
	}
	inv.Status = StatusCancelled
	inv.CancelledAt = &now
	inv.Touch(now)
	return nil
}

func describe(it order.Item) string {
	switch {
	case it.PlanName != "" && it.Description != "":
		return it.PlanName + " - " + it.Description
	case it.PlanName != "":
		return it.PlanName
	case it.Description != "":
		return it.Description
	default:
		return it.PlanID
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
