package order

import (
	"fmt"

	"github.com/xraph/settle/types"
)

// AddItem appends it and recomputes the totals. Only draft orders accept
// items. On error the order is left unchanged.
func (o *Order) AddItem(it Item) error {
	if o.Status != StatusDraft {
		return fmt.Errorf("%w: add item while %s", ErrNotMutable, o.Status)
	}
	priced, err := o.priceItem(it)
	if err != nil {
		return err
	}

	items := make([]Item, len(o.Items), len(o.Items)+1)
	copy(items, o.Items)
	items = append(items, priced)

	return o.commit(items, o.TaxAmount, o.DiscountAmount)
}

// ApplyTax sets the absolute tax amount. Draft only.
func (o *Order) ApplyTax(amount types.Money) error {
	if err := o.checkAdjustment("tax", amount); err != nil {
		return err
	}
	return o.commit(o.Items, amount, o.DiscountAmount)
}

// ApplyDiscount sets the absolute discount amount. Draft only. A discount
// larger than subtotal plus tax drives the total to zero, never below.
func (o *Order) ApplyDiscount(amount types.Money) error {
	if err := o.checkAdjustment("discount", amount); err != nil {
		return err
	}
	return o.commit(o.Items, o.TaxAmount, amount)
}

// RecalculateTotals recomputes every item total, the subtotal and the total
// from the current items, tax and discount. It is idempotent.
func (o *Order) RecalculateTotals() error {
	return o.commit(o.Items, o.TaxAmount, o.DiscountAmount)
}

// BalanceDue returns max(0, total - paid).
func (o *Order) BalanceDue(paid types.Money) (types.Money, error) {
	due, err := o.Total.Subtract(paid)
	if err != nil {
		return types.Money{}, err
	}
	return due.ClampToZero(), nil
}

// ItemTotal returns max(0, unit price x quantity - discount - subsidy).
func ItemTotal(it Item) (types.Money, error) {
	if it.Quantity < 1 {
		return types.Money{}, ErrInvalidQuantity
	}
	gross := it.UnitPrice.Multiply(it.Quantity)
	net, err := gross.Subtract(it.Discount)
	if err != nil {
		return types.Money{}, err
	}
	if net, err = net.Subtract(it.Subsidy); err != nil {
		return types.Money{}, err
	}
	return net.ClampToZero(), nil
}

// commit computes the derived totals for the candidate values and only
// assigns them once every step has succeeded.
func (o *Order) commit(items []Item, tax, discount types.Money) error {
	currency := o.Currency
	if tax.Currency == "" {
		tax = types.Zero(currency)
	}
	if discount.Currency == "" {
		discount = types.Zero(currency)
	}

	repriced := make([]Item, len(items))
	subtotal := types.Zero(currency)
	for i, it := range items {
		total, err := ItemTotal(it)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		it.TotalPrice = total
		repriced[i] = it
		if subtotal, err = subtotal.Add(total); err != nil {
			return err
		}
	}

	gross, err := subtotal.Add(tax)
	if err != nil {
		return err
	}
	net, err := gross.Subtract(discount)
	if err != nil {
		return err
	}

	o.Items = repriced
	o.Subtotal = subtotal
	o.TaxAmount = tax
	o.DiscountAmount = discount
	o.Total = net.ClampToZero()
	return nil
}

func (o *Order) priceItem(it Item) (Item, error) {
	if it.Quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	if it.Discount.Currency == "" {
		it.Discount = types.Zero(o.Currency)
	}
	if it.Subsidy.Currency == "" {
		it.Subsidy = types.Zero(o.Currency)
	}
	for _, m := range []types.Money{it.UnitPrice, it.Discount, it.Subsidy} {
		if m.Currency != o.Currency {
			return Item{}, fmt.Errorf("%w: item in %s, order in %s", types.ErrCurrencyMismatch, m.Currency, o.Currency)
		}
		if m.IsNegative() {
			return Item{}, ErrNegativeAmount
		}
	}
	total, err := ItemTotal(it)
	if err != nil {
		return Item{}, err
	}
	it.TotalPrice = total
	return it, nil
}

func (o *Order) checkAdjustment(kind string, amount types.Money) error {
	if o.Status != StatusDraft {
		return fmt.Errorf("%w: apply %s while %s", ErrNotMutable, kind, o.Status)
	}
	if amount.Currency != o.Currency {
		return fmt.Errorf("%w: %s in %s, order in %s", types.ErrCurrencyMismatch, kind, amount.Currency, o.Currency)
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
