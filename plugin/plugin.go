// Package plugin lets extensions observe settle's order, payment and
// invoice lifecycle. A plugin implements Plugin plus any hook interfaces it
// cares about; the Registry discovers them by type assertion.
package plugin

import (
	"context"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called once the engine is constructed.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

type OnOrderCreated interface {
	Plugin
	OnOrderCreated(ctx context.Context, o *order.Order) error
}

type OnOrderSubmitted interface {
	Plugin
	OnOrderSubmitted(ctx context.Context, o *order.Order) error
}

type OnOrderCompleted interface {
	Plugin
	OnOrderCompleted(ctx context.Context, o *order.Order) error
}

type OnOrderCancelled interface {
	Plugin
	OnOrderCancelled(ctx context.Context, o *order.Order, reason string) error
}

// OnOrderRefunded fires when refunds bring an order's net paid to zero.
type OnOrderRefunded interface {
	Plugin
	OnOrderRefunded(ctx context.Context, o *order.Order) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

type OnPaymentCompleted interface {
	Plugin
	OnPaymentCompleted(ctx context.Context, o *order.Order, a *payment.Attempt) error
}

// OnPaymentFailed fires for declines, gateway errors and timeouts.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, o *order.Order, a *payment.Attempt) error
}

type OnPaymentRefunded interface {
	Plugin
	OnPaymentRefunded(ctx context.Context, o *order.Order, a *payment.Attempt, r payment.Refund) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

type OnInvoiceGenerated interface {
	Plugin
	OnInvoiceGenerated(ctx context.Context, inv *invoice.Invoice) error
}

type OnInvoiceSent interface {
	Plugin
	OnInvoiceSent(ctx context.Context, inv *invoice.Invoice) error
}

type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error
}

type OnInvoiceCancelled interface {
	Plugin
	OnInvoiceCancelled(ctx context.Context, inv *invoice.Invoice) error
}

// ──────────────────────────────────────────────────
// Tax calculators
// ──────────────────────────────────────────────────

// TaxCalculator computes the absolute tax for a draft order. The first
// registered calculator wins.
type TaxCalculator interface {
	Plugin
	CalculateTax(ctx context.Context, o *order.Order) (types.Money, error)
}
