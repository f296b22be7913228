package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:settle_orders"`

	ID                 string            `grove:"id,pk"               bson:"_id"`
	Number             string            `grove:"number"              bson:"number"`
	CustomerID         string            `grove:"customer_id"         bson:"customer_id"`
	Type               string            `grove:"type"                bson:"type"`
	BillingFrequency   string            `grove:"billing_frequency"   bson:"billing_frequency"`
	Currency           string            `grove:"currency"            bson:"currency"`
	Items              []itemModel       `grove:"items"               bson:"items"`
	SubtotalCents      int64             `grove:"subtotal_cents"      bson:"subtotal_cents"`
	TaxCents           int64             `grove:"tax_cents"           bson:"tax_cents"`
	DiscountCents      int64             `grove:"discount_cents"      bson:"discount_cents"`
	TotalCents         int64             `grove:"total_cents"         bson:"total_cents"`
	PromoCode          string            `grove:"promo_code"          bson:"promo_code,omitempty"`
	Status             string            `grove:"status"              bson:"status"`
	EffectiveDate      time.Time         `grove:"effective_date"      bson:"effective_date"`
	ExpirationDate     *time.Time        `grove:"expiration_date"     bson:"expiration_date,omitempty"`
	SubmittedAt        *time.Time        `grove:"submitted_at"        bson:"submitted_at,omitempty"`
	CompletedAt        *time.Time        `grove:"completed_at"        bson:"completed_at,omitempty"`
	CancelledAt        *time.Time        `grove:"cancelled_at"        bson:"cancelled_at,omitempty"`
	CancellationReason string            `grove:"cancellation_reason" bson:"cancellation_reason,omitempty"`
	Notes              string            `grove:"notes"               bson:"notes,omitempty"`
	Version            int64             `grove:"version"             bson:"version"`
	Metadata           map[string]string `grove:"metadata"            bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"          bson:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"          bson:"updated_at"`
}

type itemModel struct {
	ID                 string `bson:"id"`
	PlanID             string `bson:"plan_id"`
	PlanCode           string `bson:"plan_code,omitempty"`
	PlanName           string `bson:"plan_name,omitempty"`
	PlanYear           int    `bson:"plan_year,omitempty"`
	MetalTier          string `bson:"metal_tier,omitempty"`
	Description        string `bson:"description,omitempty"`
	Quantity           int64  `bson:"quantity"`
	UnitPriceCents     int64  `bson:"unit_price_cents"`
	DiscountCents      int64  `bson:"discount_cents"`
	SubsidyCents       int64  `bson:"subsidy_cents"`
	TotalPriceCents    int64  `bson:"total_price_cents"`
	IncludesDependents bool   `bson:"includes_dependents"`
	DependentCount     int    `bson:"dependent_count"`
}

func toOrderModel(o *order.Order) *orderModel {
	items := make([]itemModel, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemModel{
			ID:                 it.ID.String(),
			PlanID:             it.PlanID,
			PlanCode:           it.PlanCode,
			PlanName:           it.PlanName,
			PlanYear:           it.PlanYear,
			MetalTier:          it.MetalTier,
			Description:        it.Description,
			Quantity:           it.Quantity,
			UnitPriceCents:     it.UnitPrice.Amount,
			DiscountCents:      it.Discount.Amount,
			SubsidyCents:       it.Subsidy.Amount,
			TotalPriceCents:    it.TotalPrice.Amount,
			IncludesDependents: it.IncludesDependents,
			DependentCount:     it.DependentCount,
		}
	}
	return &orderModel{
		ID:                 o.ID.String(),
		Number:             o.Number,
		CustomerID:         o.CustomerID,
		Type:               string(o.Type),
		BillingFrequency:   string(o.BillingFrequency),
		Currency:           o.Currency,
		Items:              items,
		SubtotalCents:      o.Subtotal.Amount,
		TaxCents:           o.TaxAmount.Amount,
		DiscountCents:      o.DiscountAmount.Amount,
		TotalCents:         o.Total.Amount,
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
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	items := make([]order.Item, len(m.Items))
	for i, it := range m.Items {
		itemID, err := id.ParseOrderItemID(it.ID)
		if err != nil {
			return nil, fmt.Errorf("parse order item id: %w", err)
		}
		items[i] = order.Item{
			ID:                 itemID,
			PlanID:             it.PlanID,
			PlanCode:           it.PlanCode,
			PlanName:           it.PlanName,
			PlanYear:           it.PlanYear,
			MetalTier:          it.MetalTier,
			Description:        it.Description,
			Quantity:           it.Quantity,
			UnitPrice:          types.New(it.UnitPriceCents, m.Currency),
			Discount:           types.New(it.DiscountCents, m.Currency),
			Subsidy:            types.New(it.SubsidyCents, m.Currency),
			TotalPrice:         types.New(it.TotalPriceCents, m.Currency),
			IncludesDependents: it.IncludesDependents,
			DependentCount:     it.DependentCount,
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
		Subtotal:           types.New(m.SubtotalCents, m.Currency),
		TaxAmount:          types.New(m.TaxCents, m.Currency),
		DiscountAmount:     types.New(m.DiscountCents, m.Currency),
		Total:              types.New(m.TotalCents, m.Currency),
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

	ID             string            `grove:"id,pk"           bson:"_id"`
	OrderID        string            `grove:"order_id"        bson:"order_id"`
	AmountCents    int64             `grove:"amount_cents"    bson:"amount_cents"`
	Currency       string            `grove:"currency"        bson:"currency"`
	Method         string            `grove:"method"          bson:"method"`
	Instrument     instrumentModel   `grove:"instrument"      bson:"instrument"`
	Status         string            `grove:"status"          bson:"status"`
	IdempotencyKey string            `grove:"idempotency_key" bson:"idempotency_key"`
	TransactionID  string            `grove:"transaction_id"  bson:"transaction_id,omitempty"`
	RefundedCents  int64             `grove:"refunded_cents"  bson:"refunded_cents"`
	Refunds        []refundModel     `grove:"refunds"         bson:"refunds,omitempty"`
	FailureReason  string            `grove:"failure_reason"  bson:"failure_reason,omitempty"`
	TimedOut       bool              `grove:"timed_out"       bson:"timed_out"`
	Reconciled     bool              `grove:"reconciled"      bson:"reconciled"`
	ReversalID     string            `grove:"reversal_id"     bson:"reversal_id,omitempty"`
	RetryOf        string            `grove:"retry_of"        bson:"retry_of,omitempty"`
	ProcessedAt    *time.Time        `grove:"processed_at"    bson:"processed_at,omitempty"`
	FailedAt       *time.Time        `grove:"failed_at"       bson:"failed_at,omitempty"`
	Metadata       map[string]string `grove:"metadata"        bson:"metadata,omitempty"`
	CreatedAt      time.Time         `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"      bson:"updated_at"`
}

type instrumentModel struct {
	Token        string `bson:"token,omitempty"`
	CardBrand    string `bson:"card_brand,omitempty"`
	CardLast4    string `bson:"card_last4,omitempty"`
	CardExpMonth int    `bson:"card_exp_month,omitempty"`
	CardExpYear  int    `bson:"card_exp_year,omitempty"`
	BillingName  string `bson:"billing_name,omitempty"`
	BillingZip   string `bson:"billing_zip,omitempty"`
	BankName     string `bson:"bank_name,omitempty"`
	AccountLast4 string `bson:"account_last4,omitempty"`
	RoutingLast4 string `bson:"routing_last4,omitempty"`
}

type refundModel struct {
	ID              string    `bson:"id"`
	AmountCents     int64     `bson:"amount_cents"`
	Reason          string    `bson:"reason,omitempty"`
	GatewayRefundID string    `bson:"gateway_refund_id,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
}

func toPaymentModel(a *payment.Attempt) *paymentModel {
	refunds := make([]refundModel, len(a.Refunds))
	for i, r := range a.Refunds {
		refunds[i] = refundModel{
			ID:              r.ID.String(),
			AmountCents:     r.Amount.Amount,
			Reason:          r.Reason,
			GatewayRefundID: r.GatewayRefundID,
			CreatedAt:       r.CreatedAt,
		}
	}
	var retryOf string
	if !a.RetryOf.IsNil() {
		retryOf = a.RetryOf.String()
	}
	inst := a.Instrument
	return &paymentModel{
		ID:          a.ID.String(),
		OrderID:     a.OrderID.String(),
		AmountCents: a.Amount.Amount,
		Currency:    a.Amount.Currency,
		Method:      string(a.Method),
		Instrument: instrumentModel{
			Token:        inst.Token,
			CardBrand:    inst.CardBrand,
			CardLast4:    inst.CardLast4,
			CardExpMonth: inst.CardExpMonth,
			CardExpYear:  inst.CardExpYear,
			BillingName:  inst.BillingName,
			BillingZip:   inst.BillingZip,
			BankName:     inst.BankName,
			AccountLast4: inst.AccountLast4,
			RoutingLast4: inst.RoutingLast4,
		},
		Status:         string(a.Status),
		IdempotencyKey: a.IdempotencyKey,
		TransactionID:  a.TransactionID,
		RefundedCents:  a.RefundedAmount.Amount,
		Refunds:        refunds,
		FailureReason:  a.FailureReason,
		TimedOut:       a.TimedOut,
		Reconciled:     a.Reconciled,
		ReversalID:     a.ReversalID,
		RetryOf:        retryOf,
		ProcessedAt:    a.ProcessedAt,
		FailedAt:       a.FailedAt,
		Metadata:       a.Metadata,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Attempt, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse payment id: %w", err)
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	var retryOf id.PaymentID
	if m.RetryOf != "" {
		if retryOf, err = id.ParsePaymentID(m.RetryOf); err != nil {
			return nil, fmt.Errorf("parse retry_of: %w", err)
		}
	}
	refunds := make([]payment.Refund, len(m.Refunds))
	for i, r := range m.Refunds {
		refundID, err := id.ParseRefundID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse refund id: %w", err)
		}
		refunds[i] = payment.Refund{
			ID:              refundID,
			Amount:          types.New(r.AmountCents, m.Currency),
			Reason:          r.Reason,
			GatewayRefundID: r.GatewayRefundID,
			CreatedAt:       r.CreatedAt,
		}
	}
	im := m.Instrument
	return &payment.Attempt{
		Entity:  types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:      paymentID,
		OrderID: orderID,
		Amount:  types.New(m.AmountCents, m.Currency),
		Method:  payment.Method(m.Method),
		Instrument: payment.Instrument{
			Token:        im.Token,
			CardBrand:    im.CardBrand,
			CardLast4:    im.CardLast4,
			CardExpMonth: im.CardExpMonth,
			CardExpYear:  im.CardExpYear,
			BillingName:  im.BillingName,
			BillingZip:   im.BillingZip,
			BankName:     im.BankName,
			AccountLast4: im.AccountLast4,
			RoutingLast4: im.RoutingLast4,
		},
		Status:         payment.Status(m.Status),
		IdempotencyKey: m.IdempotencyKey,
		TransactionID:  m.TransactionID,
		RefundedAmount: types.New(m.RefundedCents, m.Currency),
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

	ID            string            `grove:"id,pk"          bson:"_id"`
	Number        string            `grove:"number"         bson:"number"`
	OrderID       string            `grove:"order_id"       bson:"order_id"`
	CustomerID    string            `grove:"customer_id"    bson:"customer_id"`
	Status        string            `grove:"status"         bson:"status"`
	Currency      string            `grove:"currency"       bson:"currency"`
	LineItems     []lineItemModel   `grove:"line_items"     bson:"line_items"`
	SubtotalCents int64             `grove:"subtotal_cents" bson:"subtotal_cents"`
	TaxCents      int64             `grove:"tax_cents"      bson:"tax_cents"`
	DiscountCents int64             `grove:"discount_cents" bson:"discount_cents"`
	TotalCents    int64             `grove:"total_cents"    bson:"total_cents"`
	IssueDate     time.Time         `grove:"issue_date"     bson:"issue_date"`
	DueDate       time.Time         `grove:"due_date"       bson:"due_date"`
	PeriodStart   time.Time         `grove:"period_start"   bson:"period_start"`
	PeriodEnd     time.Time         `grove:"period_end"     bson:"period_end"`
	SentAt        *time.Time        `grove:"sent_at"        bson:"sent_at,omitempty"`
	PaidAt        *time.Time        `grove:"paid_at"        bson:"paid_at,omitempty"`
	CancelledAt   *time.Time        `grove:"cancelled_at"   bson:"cancelled_at,omitempty"`
	Notes         string            `grove:"notes"          bson:"notes,omitempty"`
	Metadata      map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
	CreatedAt     time.Time         `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time         `grove:"updated_at"     bson:"updated_at"`
}

type lineItemModel struct {
	ID             string `bson:"id"`
	PlanID         string `bson:"plan_id"`
	Description    string `bson:"description"`
	Quantity       int64  `bson:"quantity"`
	UnitPriceCents int64  `bson:"unit_price_cents"`
	DiscountCents  int64  `bson:"discount_cents"`
	SubsidyCents   int64  `bson:"subsidy_cents"`
	TotalCents     int64  `bson:"total_cents"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lines := make([]lineItemModel, len(inv.LineItems))
	for i, li := range inv.LineItems {
		lines[i] = lineItemModel{
			ID:             li.ID.String(),
			PlanID:         li.PlanID,
			Description:    li.Description,
			Quantity:       li.Quantity,
			UnitPriceCents: li.UnitPrice.Amount,
			DiscountCents:  li.Discount.Amount,
			SubsidyCents:   li.Subsidy.Amount,
			TotalCents:     li.Total.Amount,
		}
	}
	return &invoiceModel{
		ID:            inv.ID.String(),
		Number:        inv.Number,
		OrderID:       inv.OrderID.String(),
		CustomerID:    inv.CustomerID,
		Status:        string(inv.Status),
		Currency:      inv.Currency,
		LineItems:     lines,
		SubtotalCents: inv.Subtotal.Amount,
		TaxCents:      inv.TaxAmount.Amount,
		DiscountCents: inv.DiscountAmount.Amount,
		TotalCents:    inv.Total.Amount,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		PeriodStart:   inv.PeriodStart,
		PeriodEnd:     inv.PeriodEnd,
		SentAt:        inv.SentAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		Notes:         inv.Notes,
		Metadata:      inv.Metadata,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse invoice id: %w", err)
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	lines := make([]invoice.LineItem, len(m.LineItems))
	for i, li := range m.LineItems {
		liID, err := id.ParseLineItemID(li.ID)
		if err != nil {
			return nil, fmt.Errorf("parse line item id: %w", err)
		}
		lines[i] = invoice.LineItem{
			ID:          liID,
			PlanID:      li.PlanID,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   types.New(li.UnitPriceCents, m.Currency),
			Discount:    types.New(li.DiscountCents, m.Currency),
			Subsidy:     types.New(li.SubsidyCents, m.Currency),
			Total:       types.New(li.TotalCents, m.Currency),
		}
	}
	total := types.New(m.TotalCents, m.Currency)
	return &invoice.Invoice{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             invID,
		Number:         m.Number,
		OrderID:        orderID,
		CustomerID:     m.CustomerID,
		Status:         invoice.Status(m.Status),
		Currency:       m.Currency,
		LineItems:      lines,
		Subtotal:       types.New(m.SubtotalCents, m.Currency),
		TaxAmount:      types.New(m.TaxCents, m.Currency),
		DiscountAmount: types.New(m.DiscountCents, m.Currency),
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
