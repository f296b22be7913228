package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// Amounts are stored in the smallest currency unit next to a single
// currency column per row.

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:settle_orders"`

	ID                 string            `grove:"id,pk"`
	Number             string            `grove:"number"`
	CustomerID         string            `grove:"customer_id"`
	Type               string            `grove:"type"`
	BillingFrequency   string            `grove:"billing_frequency"`
	Currency           string            `grove:"currency"`
	Items              json.RawMessage   `grove:"items,type:jsonb"`
	Subtotal           int64             `grove:"subtotal_amount"`
	TaxAmount          int64             `grove:"tax_amount"`
	DiscountAmount     int64             `grove:"discount_amount"`
	Total              int64             `grove:"total_amount"`
	PromoCode          string            `grove:"promo_code"`
	Status             string            `grove:"status"`
	EffectiveDate      time.Time         `grove:"effective_date"`
	ExpirationDate     *time.Time        `grove:"expiration_date"`
	SubmittedAt        *time.Time        `grove:"submitted_at"`
	CompletedAt        *time.Time        `grove:"completed_at"`
	CancelledAt        *time.Time        `grove:"cancelled_at"`
	CancellationReason string            `grove:"cancellation_reason"`
	Notes              string            `grove:"notes"`
	Version            int64             `grove:"version"`
	Metadata           map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
}

func toOrderModel(o *order.Order) (*orderModel, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: encode items: %w", err)
	}
	return &orderModel{
		ID:                 o.ID.String(),
		Number:             o.Number,
		CustomerID:         o.CustomerID,
		Type:               string(o.Type),
		BillingFrequency:   string(o.BillingFrequency),
		Currency:           o.Currency,
		Items:              items,
		Subtotal:           o.Subtotal.Amount,
		TaxAmount:          o.TaxAmount.Amount,
		DiscountAmount:     o.DiscountAmount.Amount,
		Total:              o.Total.Amount,
		PromoCode:          o.PromoCode,
		Status:             string(o.Status),
		EffectiveDate:      o.EffectiveDate,
		ExpirationDate:     o.ExpirationDate,
		SubmittedAt:        o.SubmittedAt,
		CompletedAt:        o.CompletedAt,
		CancelledAt:        o.CancelledAt,
		CancellationReason: o.CancellationReason,
		Notes:              o.Notes,
		Version:            o.Version,
		Metadata:           o.Metadata,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}, nil
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}
	var items []order.Item
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &items); err != nil {
			return nil, fmt.Errorf("settle/postgres: decode items of %s: %w", m.ID, err)
		}
	}
	return &order.Order{
		Entity:             types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                 orderID,
		Number:             m.Number,
		CustomerID:         m.CustomerID,
		Type:               order.Type(m.Type),
		BillingFrequency:   order.BillingFrequency(m.BillingFrequency),
		Currency:           m.Currency,
		Items:              items,
		Subtotal:           types.New(m.Subtotal, m.Currency),
		TaxAmount:          types.New(m.TaxAmount, m.Currency),
		DiscountAmount:     types.New(m.DiscountAmount, m.Currency),
		Total:              types.New(m.Total, m.Currency),
		PromoCode:          m.PromoCode,
		Status:             order.Status(m.Status),
		EffectiveDate:      m.EffectiveDate,
		ExpirationDate:     m.ExpirationDate,
		SubmittedAt:        m.SubmittedAt,
		CompletedAt:        m.CompletedAt,
		CancelledAt:        m.CancelledAt,
		CancellationReason: m.CancellationReason,
		Notes:              m.Notes,
		Version:            m.Version,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:settle_payments"`

	ID              string            `grove:"id,pk"`
	OrderID         string            `grove:"order_id"`
	Amount          int64             `grove:"amount"`
	Currency        string            `grove:"currency"`
	Method          string            `grove:"method"`
	InstrumentToken string            `grove:"instrument_token"`
	Instrument      json.RawMessage   `grove:"instrument,type:jsonb"`
	Status          string            `grove:"status"`
	IdempotencyKey  string            `grove:"idempotency_key"`
	TransactionID   string            `grove:"transaction_id"`
	RefundedAmount  int64             `grove:"refunded_amount"`
	Refunds         json.RawMessage   `grove:"refunds,type:jsonb"`
	FailureReason   string            `grove:"failure_reason"`
	TimedOut        bool              `grove:"timed_out"`
	Reconciled      bool              `grove:"reconciled"`
	ReversalID      string            `grove:"reversal_id"`
	RetryOf         string            `grove:"retry_of"`
	ProcessedAt     *time.Time        `grove:"processed_at"`
	FailedAt        *time.Time        `grove:"failed_at"`
	Metadata        map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
}

func toPaymentModel(a *payment.Attempt) (*paymentModel, error) {
	inst, err := json.Marshal(a.Instrument)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: encode instrument: %w", err)
	}
	refunds, err := json.Marshal(a.Refunds)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: encode refunds: %w", err)
	}
	var retryOf string
	if !a.RetryOf.IsNil() {
		retryOf = a.RetryOf.String()
	}
	return &paymentModel{
		ID:              a.ID.String(),
		OrderID:         a.OrderID.String(),
		Amount:          a.Amount.Amount,
		Currency:        a.Amount.Currency,
		Method:          string(a.Method),
		InstrumentToken: a.Instrument.Token,
		Instrument:      inst,
		Status:          string(a.Status),
		IdempotencyKey:  a.IdempotencyKey,
		TransactionID:   a.TransactionID,
		RefundedAmount:  a.RefundedAmount.Amount,
		Refunds:         refunds,
		FailureReason:   a.FailureReason,
		TimedOut:        a.TimedOut,
		Reconciled:      a.Reconciled,
		ReversalID:      a.ReversalID,
		RetryOf:         retryOf,
		ProcessedAt:     a.ProcessedAt,
		FailedAt:        a.FailedAt,
		Metadata:        a.Metadata,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

func fromPaymentModel(m *paymentModel) (*payment.Attempt, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}
	var retryOf id.PaymentID
	if m.RetryOf != "" {
		if retryOf, err = id.ParsePaymentID(m.RetryOf); err != nil {
			return nil, err
		}
	}
	var inst payment.Instrument
	if len(m.Instrument) > 0 {
		if err := json.Unmarshal(m.Instrument, &inst); err != nil {
			return nil, fmt.Errorf("settle/postgres: decode instrument of %s: %w", m.ID, err)
		}
	}
	inst.Token = m.InstrumentToken
	var refunds []payment.Refund
	if len(m.Refunds) > 0 && string(m.Refunds) != "null" {
		if err := json.Unmarshal(m.Refunds, &refunds); err != nil {
			return nil, fmt.Errorf("settle/postgres: decode refunds of %s: %w", m.ID, err)
		}
	}
	return &payment.Attempt{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             paymentID,
		OrderID:        orderID,
		Amount:         types.New(m.Amount, m.Currency),
		Method:         payment.Method(m.Method),
		Instrument:     inst,
		Status:         payment.Status(m.Status),
		IdempotencyKey: m.IdempotencyKey,
		TransactionID:  m.TransactionID,
		RefundedAmount: types.New(m.RefundedAmount, m.Currency),
		Refunds:        refunds,
		FailureReason:  m.FailureReason,
		TimedOut:       m.TimedOut,
		Reconciled:     m.Reconciled,
		ReversalID:     m.ReversalID,
		RetryOf:        retryOf,
		ProcessedAt:    m.ProcessedAt,
		FailedAt:       m.FailedAt,
		Metadata:       m.Metadata,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:settle_invoices"`

	ID             string            `grove:"id,pk"`
	Number         string            `grove:"number"`
	OrderID        string            `grove:"order_id"`
	CustomerID     string            `grove:"customer_id"`
	Status         string            `grove:"status"`
	Currency       string            `grove:"currency"`
	LineItems      json.RawMessage   `grove:"line_items,type:jsonb"`
	Subtotal       int64             `grove:"subtotal_amount"`
	TaxAmount      int64             `grove:"tax_amount"`
	DiscountAmount int64             `grove:"discount_amount"`
	Total          int64             `grove:"total_amount"`
	IssueDate      time.Time         `grove:"issue_date"`
	DueDate        time.Time         `grove:"due_date"`
	PeriodStart    time.Time         `grove:"period_start"`
	PeriodEnd      time.Time         `grove:"period_end"`
	SentAt         *time.Time        `grove:"sent_at"`
	PaidAt         *time.Time        `grove:"paid_at"`
	CancelledAt    *time.Time        `grove:"cancelled_at"`
	Notes          string            `grove:"notes"`
	Metadata       map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) (*invoiceModel, error) {
	lines, err := json.Marshal(inv.LineItems)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: encode line items: %w", err)
	}
	return &invoiceModel{
		ID:             inv.ID.String(),
		Number:         inv.Number,
		OrderID:        inv.OrderID.String(),
		CustomerID:     inv.CustomerID,
		Status:         string(inv.Status),
		Currency:       inv.Currency,
		LineItems:      lines,
		Subtotal:       inv.Subtotal.Amount,
		TaxAmount:      inv.TaxAmount.Amount,
		DiscountAmount: inv.DiscountAmount.Amount,
		Total:          inv.Total.Amount,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		PeriodStart:    inv.PeriodStart,
		PeriodEnd:      inv.PeriodEnd,
		SentAt:         inv.SentAt,
		PaidAt:         inv.PaidAt,
		CancelledAt:    inv.CancelledAt,
		Notes:          inv.Notes,
		Metadata:       inv.Metadata,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}, nil
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}
	var lines []invoice.LineItem
	if len(m.LineItems) > 0 {
		if err := json.Unmarshal(m.LineItems, &lines); err != nil {
			return nil, fmt.Errorf("settle/postgres: decode line items of %s: %w", m.ID, err)
		}
	}
	total := types.New(m.Total, m.Currency)
	return &invoice.Invoice{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             invID,
		Number:         m.Number,
		OrderID:        orderID,
		CustomerID:     m.CustomerID,
		Status:         invoice.Status(m.Status),
		Currency:       m.Currency,
		LineItems:      lines,
		Subtotal:       types.New(m.Subtotal, m.Currency),
		TaxAmount:      types.New(m.TaxAmount, m.Currency),
		DiscountAmount: types.New(m.DiscountAmount, m.Currency),
		Total:          total,
		PaidAmount:     types.Zero(m.Currency),
		BalanceDue:     total,
		IssueDate:      m.IssueDate,
		DueDate:        m.DueDate,
		PeriodStart:    m.PeriodStart,
		PeriodEnd:      m.PeriodEnd,
		SentAt:         m.SentAt,
		PaidAt:         m.PaidAt,
		CancelledAt:    m.CancelledAt,
		Notes:          m.Notes,
		Metadata:       m.Metadata,
	}, nil
}
