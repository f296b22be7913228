package api

import (
	"time"

	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// Amounts are in the currency's minor unit. An empty currency means the
// handler's default currency.

// MoneyRequest is an amount in a request body.
type MoneyRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// ItemRequest is an explicitly priced order line.
type ItemRequest struct {
	PlanID             string        `json:"plan_id"`
	PlanCode           string        `json:"plan_code,omitempty"`
	PlanName           string        `json:"plan_name,omitempty"`
	PlanYear           int           `json:"plan_year,omitempty"`
	MetalTier          string        `json:"metal_tier,omitempty"`
	Description        string        `json:"description,omitempty"`
	Quantity           int64         `json:"quantity"`
	UnitPrice          MoneyRequest  `json:"unit_price"`
	Discount           *MoneyRequest `json:"discount,omitempty"`
	Subsidy            *MoneyRequest `json:"subsidy,omitempty"`
	IncludesDependents bool          `json:"includes_dependents,omitempty"`
	DependentCount     int           `json:"dependent_count,omitempty"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	CustomerID       string            `json:"customer_id"`
	Type             string            `json:"type,omitempty"`
	BillingFrequency string            `json:"billing_frequency,omitempty"`
	Currency         string            `json:"currency,omitempty"`
	EffectiveDate    *time.Time        `json:"effective_date,omitempty"`
	ExpirationDate   *time.Time        `json:"expiration_date,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	PromoCode        string            `json:"promo_code,omitempty"`
	Items            []ItemRequest     `json:"items"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// PlanItemRequest is the body of POST /orders/{id}/plan-items.
type PlanItemRequest struct {
	PlanID             string        `json:"plan_id"`
	Quantity           int64         `json:"quantity"`
	Subsidy            *MoneyRequest `json:"subsidy,omitempty"`
	Description        string        `json:"description,omitempty"`
	IncludesDependents bool          `json:"includes_dependents,omitempty"`
	DependentCount     int           `json:"dependent_count,omitempty"`
}

// PromoRequest is the body of POST /orders/{id}/promo.
type PromoRequest struct {
	Code string `json:"code"`
}

// ReasonRequest carries an optional free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CardRequest carries raw card details. Only the masked form is stored.
type CardRequest struct {
	Number     string `json:"number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	HolderName string `json:"holder_name,omitempty"`
	BillingZip string `json:"billing_zip,omitempty"`
}

// BankRequest carries raw bank account details.
type BankRequest struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
}

// InstrumentRequest is a tokenised payment instrument.
type InstrumentRequest struct {
	Token string       `json:"token"`
	Card  *CardRequest `json:"card,omitempty"`
	Bank  *BankRequest `json:"bank,omitempty"`
}

// PaymentRequest is the body of POST /orders/{id}/payments.
type PaymentRequest struct {
	Amount     MoneyRequest      `json:"amount"`
	Method     string            `json:"method"`
	Instrument InstrumentRequest `json:"instrument"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetryRequest is the body of POST /payments/{id}/retry. The previous
// instrument is reused when Instrument is nil.
type RetryRequest struct {
	Instrument *InstrumentRequest `json:"instrument,omitempty"`
}

// RefundRequest is the body of POST /payments/{id}/refunds.
type RefundRequest struct {
	Amount MoneyRequest `json:"amount"`
	Reason string       `json:"reason,omitempty"`
}

// BalanceResponse is returned by GET /orders/{id}/balance.
type BalanceResponse struct {
	TotalPaid  types.Money `json:"total_paid"`
	BalanceDue types.Money `json:"balance_due"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) money(m MoneyRequest) types.Money {
	currency := m.Currency
	if currency == "" {
		currency = h.currency
	}
	return types.New(m.Amount, currency)
}

func (h *Handler) optionalMoney(m *MoneyRequest) types.Money {
	if m == nil {
		return types.Zero(h.currency)
	}
	return h.money(*m)
}

func (h *Handler) toItem(r ItemRequest) order.Item {
	unit := h.money(r.UnitPrice)
	zero := types.Zero(unit.Currency)
	it := order.Item{
		PlanID:             r.PlanID,
		PlanCode:           r.PlanCode,
		PlanName:           r.PlanName,
		PlanYear:           r.PlanYear,
		MetalTier:          r.MetalTier,
		Description:        r.Description,
		Quantity:           r.Quantity,
		UnitPrice:          unit,
		Discount:           zero,
		Subsidy:            zero,
		IncludesDependents: r.IncludesDependents,
		DependentCount:     r.DependentCount,
	}
	if r.Discount != nil {
		it.Discount = h.money(*r.Discount)
	}
	if r.Subsidy != nil {
		it.Subsidy = h.money(*r.Subsidy)
	}
	return it
}

func toInstrument(r InstrumentRequest) payment.Instrument {
	switch {
	case r.Card != nil:
		return payment.CardInstrument(r.Token, payment.CardDetails{
			Number:     r.Card.Number,
			ExpMonth:   r.Card.ExpMonth,
			ExpYear:    r.Card.ExpYear,
			HolderName: r.Card.HolderName,
			BillingZip: r.Card.BillingZip,
		})
	case r.Bank != nil:
		return payment.BankInstrument(r.Token, payment.BankDetails{
			BankName:      r.Bank.BankName,
			AccountNumber: r.Bank.AccountNumber,
			RoutingNumber: r.Bank.RoutingNumber,
		})
	default:
		return payment.Instrument{Token: r.Token}
	}
}
