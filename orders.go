package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// ErrNoCatalog is returned by AddPlanItem when no plan catalog is configured.
var ErrNoCatalog = errors.New("settle: no plan catalog configured")

// NewOrder describes an order to create.
type NewOrder struct {
	CustomerID       string
	Type             order.Type
	BillingFrequency order.BillingFrequency
	Currency         string
	EffectiveDate    time.Time
	ExpirationDate   *time.Time
	Notes            string
	PromoCode        string
	Items            []order.Item
	Metadata         map[string]string
}

// PlanItem adds a catalog-priced line to a draft order. The unit price is
// the plan's monthly premium times the order's billing frequency.
type PlanItem struct {
	PlanID             string
	Quantity           int64
	Subsidy            types.Money
	Description        string
	IncludesDependents bool
	DependentCount     int
}

// OrderSummary is an order together with its ledger and the amounts
// derived from it.
type OrderSummary struct {
	Order         *order.Order       `json:"order"`
	Payments      []*payment.Attempt `json:"payments"`
	TotalPaid     types.Money        `json:"total_paid"`
	TotalRefunded types.Money        `json:"total_refunded"`
	BalanceDue    types.Money        `json:"balance_due"`
}

// ──────────────────────────────────────────────────
// Order creation and lookup
// ──────────────────────────────────────────────────

// CreateOrder validates in, checks the customer and stores a new draft.
func (e *Engine) CreateOrder(ctx context.Context, in NewOrder) (*order.Order, error) {
	var verr MultiError
	if in.CustomerID == "" {
		verr.Add(ValidationError{Field: "customer_id", Message: "required"})
	}
	if in.ExpirationDate != nil && !in.EffectiveDate.IsZero() && in.ExpirationDate.Before(in.EffectiveDate) {
		verr.Add(ValidationError{Field: "expiration_date", Message: "before effective date"})
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	exists, err := e.customers.Exists(ctx, in.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("settle: customer lookup: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, in.CustomerID)
	}

	now := e.now()
	currency := in.Currency
	if currency == "" {
		currency = e.currency
	}
	o := &order.Order{
		Entity:           types.NewEntity(now),
		ID:               e.ids.New(id.PrefixOrder),
		CustomerID:       in.CustomerID,
		Type:             in.Type,
		BillingFrequency: in.BillingFrequency,
		Currency:         types.Zero(currency).Currency,
		Status:           order.StatusDraft,
		EffectiveDate:    in.EffectiveDate,
		ExpirationDate:   in.ExpirationDate,
		Notes:            in.Notes,
		Metadata:         in.Metadata,
	}
	o.Number = id.DocumentNumber("ORD", now, o.ID)
	if o.Type == "" {
		o.Type = order.TypeNewEnrollment
	}
	if o.BillingFrequency == "" {
		o.BillingFrequency = order.BillingMonthly
	}
	if o.EffectiveDate.IsZero() {
		o.EffectiveDate = now
	}
	if err := o.RecalculateTotals(); err != nil {
		return nil, err
	}

	for i, it := range in.Items {
		if it.ID.IsNil() {
			it.ID = e.ids.New(id.PrefixOrderItem)
		}
		if err := o.AddItem(it); err != nil {
			return nil, fmt.Errorf("settle: item %d: %w", i, err)
		}
	}
	if in.PromoCode != "" {
		if err := e.applyPromo(ctx, o, in.PromoCode); err != nil {
			return nil, err
		}
	}

	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	e.plugins.EmitOrderCreated(ctx, o)
	e.logger.Info("order created",
		"order_id", o.ID.String(),
		"number", o.Number,
		"customer_id", o.CustomerID,
		"total", o.Total.String(),
	)
	return o, nil
}

// GetOrder returns the order.
func (e *Engine) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// ListOrders returns a customer's orders, newest first.
func (e *Engine) ListOrders(ctx context.Context, customerID string, opts order.ListOpts) ([]*order.Order, error) {
	return e.store.ListOrders(ctx, customerID, opts)
}

// OrderSummary returns the order, its attempts and the paid amounts
// derived from them.
func (e *Engine) OrderSummary(ctx context.Context, orderID id.OrderID) (*OrderSummary, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	attempts, err := e.store.ListPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	paid, err := payment.NetPaid(o.Currency, attempts)
	if err != nil {
		return nil, err
	}
	refunded, err := payment.TotalRefunded(o.Currency, attempts)
	if err != nil {
		return nil, err
	}
	due, err := o.BalanceDue(paid)
	if err != nil {
		return nil, err
	}
	return &OrderSummary{Order: o, Payments: attempts, TotalPaid: paid, TotalRefunded: refunded, BalanceDue: due}, nil
}

// ──────────────────────────────────────────────────
// Draft editing
// ──────────────────────────────────────────────────

// AddItem appends an item to a draft order.
func (e *Engine) AddItem(ctx context.Context, orderID id.OrderID, it order.Item) (*order.Order, error) {
	return e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		if it.ID.IsNil() {
			it.ID = e.ids.New(id.PrefixOrderItem)
		}
		return o.AddItem(it)
	})
}

// AddPlanItem prices a plan through the catalog and appends it.
func (e *Engine) AddPlanItem(ctx context.Context, orderID id.OrderID, pi PlanItem) (*order.Order, error) {
	if e.catalog == nil {
		return nil, ErrNoCatalog
	}
	return e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		if o.Status != order.StatusDraft {
			return fmt.Errorf("%w: add item while %s", ErrOrderNotMutable, o.Status)
		}
		p, err := e.catalog.Price(ctx, pi.PlanID)
		if err != nil {
			return err
		}
		return o.AddItem(order.Item{
			ID:                 e.ids.New(id.PrefixOrderItem),
			PlanID:             p.ID,
			PlanCode:           p.Code,
			PlanName:           p.Name,
			PlanYear:           p.Year,
			MetalTier:          p.MetalTier,
			Description:        pi.Description,
			Quantity:           pi.Quantity,
			UnitPrice:          p.MonthlyPremium.Multiply(o.BillingFrequency.Months()),
			Subsidy:            pi.Subsidy,
			IncludesDependents: pi.IncludesDependents,
			DependentCount:     pi.DependentCount,
		})
	})
}

// ApplyTax sets the absolute tax on a draft order.
func (e *Engine) ApplyTax(ctx context.Context, orderID id.OrderID, amount types.Money) (*order.Order, error) {
	return e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		return o.ApplyTax(amount)
	})
}

// ApplyDiscount sets the absolute discount on a draft order.
func (e *Engine) ApplyDiscount(ctx context.Context, orderID id.OrderID, amount types.Money) (*order.Order, error) {
	return e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		return o.ApplyDiscount(amount)
	})
}

// ApplyPromoCode redeems code and sets the resulting discount.
func (e *Engine) ApplyPromoCode(ctx context.Context, orderID id.OrderID, code string) (*order.Order, error) {
	return e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		return e.applyPromo(ctx, o, code)
	})
}

// CalculateTax asks the registered tax calculator plugin for the order's
// tax and applies it.
func (e *Engine) CalculateTax(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	tc := e.plugins.TaxCalculator()
	if tc == nil {
		return nil, ErrNoTaxProvider
	}
	return e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		if o.Status != order.StatusDraft {
			return fmt.Errorf("%w: apply tax while %s", ErrOrderNotMutable, o.Status)
		}
		amount, err := tc.CalculateTax(ctx, o)
		if err != nil {
			return fmt.Errorf("settle: tax calculator %s: %w", tc.Name(), err)
		}
		return o.ApplyTax(amount)
	})
}

// DeleteDraftOrder removes an order that was never submitted.
func (e *Engine) DeleteDraftOrder(ctx context.Context, orderID id.OrderID) error {
	return e.withOrderLock(ctx, orderID, func() error {
		o, err := e.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusDraft {
			return fmt.Errorf("%w: delete while %s", ErrOrderNotMutable, o.Status)
		}
		if err := e.store.DeleteOrder(ctx, orderID); err != nil {
			return err
		}
		e.logger.Info("draft order deleted", "order_id", orderID.String())
		return nil
	})
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// SubmitOrder moves a draft to PendingPayment.
func (e *Engine) SubmitOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	o, err := e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		return o.Submit(e.now())
	})
	if err != nil {
		return nil, err
	}
	e.plugins.EmitOrderSubmitted(ctx, o)
	e.logger.Info("order submitted", "order_id", o.ID.String(), "total", o.Total.String())
	return o, nil
}

// CompleteOrder finishes an order once the ledger shows nothing owed.
func (e *Engine) CompleteOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	o, err := e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		due, err := e.balanceDue(ctx, o)
		if err != nil {
			return err
		}
		return o.Complete(due, e.now())
	})
	if err != nil {
		return nil, err
	}
	e.plugins.EmitOrderCompleted(ctx, o)
	e.logger.Info("order completed", "order_id", o.ID.String())
	return o, nil
}

// CancelOrder cancels any non-terminal order. Completed payments are not
// reversed; refund them explicitly.
func (e *Engine) CancelOrder(ctx context.Context, orderID id.OrderID, reason string) (*order.Order, error) {
	o, err := e.mutateOrder(ctx, orderID, func(o *order.Order) error {
		return o.Cancel(reason, e.now())
	})
	if err != nil {
		return nil, err
	}
	e.plugins.EmitOrderCancelled(ctx, o, reason)
	e.logger.Info("order cancelled", "order_id", o.ID.String(), "reason", reason)
	return o, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// mutateOrder loads the order under its lock, applies fn and saves the
// result. Nothing is saved when fn fails.
func (e *Engine) mutateOrder(ctx context.Context, orderID id.OrderID, fn func(o *order.Order) error) (*order.Order, error) {
	var out *order.Order
	err := e.withOrderLock(ctx, orderID, func() error {
		o, err := e.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		o.Touch(e.now())
		if err := e.store.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (e *Engine) applyPromo(ctx context.Context, o *order.Order, code string) error {
	if o.Status != order.StatusDraft {
		return fmt.Errorf("%w: apply promo code while %s", ErrOrderNotMutable, o.Status)
	}
	c, err := e.promos.Redeem(ctx, code, e.now())
	if err != nil {
		return err
	}
	discount, err := c.Discount(o.Subtotal)
	if err != nil {
		return err
	}
	if err := o.ApplyDiscount(discount); err != nil {
		return err
	}
	o.PromoCode = c.Code
	e.logger.Info("promo code applied",
		"order_id", o.ID.String(),
		"code", c.Code,
		"discount", discount.String(),
	)
	return nil
}

// netPaid sums the order's ledger. It is the only source of paid amounts.
func (e *Engine) netPaid(ctx context.Context, o *order.Order) (types.Money, []*payment.Attempt, error) {
	attempts, err := e.store.ListPayments(ctx, o.ID)
	if err != nil {
		return types.Money{}, nil, err
	}
	paid, err := payment.NetPaid(o.Currency, attempts)
	if err != nil {
		return types.Money{}, nil, err
	}
	return paid, attempts, nil
}

func (e *Engine) balanceDue(ctx context.Context, o *order.Order) (types.Money, error) {
	paid, _, err := e.netPaid(ctx, o)
	if err != nil {
		return types.Money{}, err
	}
	return o.BalanceDue(paid)
}
