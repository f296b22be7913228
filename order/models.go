// Package order holds the order aggregate: its line items, the totals
// derived from them and the status state machine.
package order

import (
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingPayment    Status = "pending_payment"
	StatusPaymentProcessing Status = "payment_processing"
	StatusPaymentFailed     Status = "payment_failed"
	StatusConfirmed         Status = "confirmed"
	StatusProcessing        Status = "processing"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
)

// IsTerminal reports whether no further transitions leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// Type classifies why the order was placed.
type Type string

const (
	TypeNewEnrollment   Type = "new_enrollment"
	TypePlanChange      Type = "plan_change"
	TypeRenewal         Type = "renewal"
	TypeAddDependent    Type = "add_dependent"
	TypeRemoveDependent Type = "remove_dependent"
	TypeCancellation    Type = "cancellation"
)

// BillingFrequency controls how many monthly premiums one order covers.
type BillingFrequency string

const (
	BillingMonthly    BillingFrequency = "monthly"
	BillingQuarterly  BillingFrequency = "quarterly"
	BillingSemiAnnual BillingFrequency = "semi_annual"
	BillingAnnual     BillingFrequency = "annual"
)

// Months returns the number of monthly premiums in one billing period.
// Unknown frequencies count as monthly.
func (f BillingFrequency) Months() int64 {
	switch f {
	case BillingQuarterly:
		return 3
	case BillingSemiAnnual:
		return 6
	case BillingAnnual:
		return 12
	default:
		return 1
	}
}

// Item is a single priced line on an order.
type Item struct {
	ID                 id.OrderItemID `json:"id"`
	PlanID             string         `json:"plan_id"`
	PlanCode           string         `json:"plan_code,omitempty"`
	PlanName           string         `json:"plan_name,omitempty"`
	PlanYear           int            `json:"plan_year,omitempty"`
	MetalTier          string         `json:"metal_tier,omitempty"`
	Description        string         `json:"description,omitempty"`
	Quantity           int64          `json:"quantity"`
	UnitPrice          types.Money    `json:"unit_price"`
	Discount           types.Money    `json:"discount"`
	Subsidy            types.Money    `json:"subsidy"`
	TotalPrice         types.Money    `json:"total_price"`
	IncludesDependents bool           `json:"includes_dependents,omitempty"`
	DependentCount     int            `json:"dependent_count,omitempty"`
}

// Order is the root aggregate. Subtotal and Total are derived from Items,
// TaxAmount and DiscountAmount by RecalculateTotals and are never set directly.
type Order struct {
	types.Entity

	ID                 id.OrderID        `json:"id"`
	Number             string            `json:"number"`
	CustomerID         string            `json:"customer_id"`
	Type               Type              `json:"type"`
	BillingFrequency   BillingFrequency  `json:"billing_frequency"`
	Currency           string            `json:"currency"`
	Items              []Item            `json:"items"`
	Subtotal           types.Money       `json:"subtotal"`
	TaxAmount          types.Money       `json:"tax_amount"`
	DiscountAmount     types.Money       `json:"discount_amount"`
	Total              types.Money       `json:"total"`
	PromoCode          string            `json:"promo_code,omitempty"`
	Status             Status            `json:"status"`
	EffectiveDate      time.Time         `json:"effective_date"`
	ExpirationDate     *time.Time        `json:"expiration_date,omitempty"`
	SubmittedAt        *time.Time        `json:"submitted_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	Version            int64             `json:"version"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.ExpirationDate = cloneTime(o.ExpirationDate)
	c.SubmittedAt = cloneTime(o.SubmittedAt)
	c.CompletedAt = cloneTime(o.CompletedAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	if o.Metadata != nil {
		c.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
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
