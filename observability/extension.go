// Package observability provides a metrics extension for settle that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnOrderCreated     = (*MetricsExtension)(nil)
	_ plugin.OnOrderSubmitted   = (*MetricsExtension)(nil)
	_ plugin.OnOrderCompleted   = (*MetricsExtension)(nil)
	_ plugin.OnOrderCancelled   = (*MetricsExtension)(nil)
	_ plugin.OnOrderRefunded    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCompleted = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRefunded  = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceGenerated = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceSent      = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid      = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceCancelled = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a settle plugin to track order and payment flow.
type MetricsExtension struct {
	factory MetricFactory

	// Order metrics
	OrderCreated   Counter
	OrderSubmitted Counter
	OrderCompleted Counter
	OrderCancelled Counter
	OrderRefunded  Counter
	OrderTotal     Histogram

	// Payment metrics
	PaymentCompleted Counter
	PaymentFailed    Counter
	PaymentTimedOut  Counter
	PaymentAmount    Histogram
	RefundIssued     Counter
	RefundAmount     Histogram

	// Invoice metrics
	InvoiceGenerated Counter
	InvoiceSent      Counter
	InvoicePaid      Counter
	InvoiceCancelled Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Amount histograms observe major currency units.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		OrderCreated:   factory.Counter("settle.order.created"),
		OrderSubmitted: factory.Counter("settle.order.submitted"),
		OrderCompleted: factory.Counter("settle.order.completed"),
		OrderCancelled: factory.Counter("settle.order.cancelled"),
		OrderRefunded:  factory.Counter("settle.order.refunded"),
		OrderTotal:     factory.Histogram("settle.order.total_amount"),

		PaymentCompleted: factory.Counter("settle.payment.completed"),
		PaymentFailed:    factory.Counter("settle.payment.failed"),
		PaymentTimedOut:  factory.Counter("settle.payment.timed_out"),
		PaymentAmount:    factory.Histogram("settle.payment.amount"),
		RefundIssued:     factory.Counter("settle.refund.issued"),
		RefundAmount:     factory.Histogram("settle.refund.amount"),

		InvoiceGenerated: factory.Counter("settle.invoice.generated"),
		InvoiceSent:      factory.Counter("settle.invoice.sent"),
		InvoicePaid:      factory.Counter("settle.invoice.paid"),
		InvoiceCancelled: factory.Counter("settle.invoice.cancelled"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnOrderCreated(_ context.Context, _ *order.Order) error {
	m.OrderCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnOrderSubmitted(_ context.Context, o *order.Order) error {
	m.OrderSubmitted.Inc()
	m.OrderTotal.Observe(o.Total.Decimal().InexactFloat64())
	return nil
}

func (m *MetricsExtension) OnOrderCompleted(_ context.Context, _ *order.Order) error {
	m.OrderCompleted.Inc()
	return nil
}

func (m *MetricsExtension) OnOrderCancelled(_ context.Context, _ *order.Order, _ string) error {
	m.OrderCancelled.Inc()
	return nil
}

func (m *MetricsExtension) OnOrderRefunded(_ context.Context, _ *order.Order) error {
	m.OrderRefunded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnPaymentCompleted(_ context.Context, _ *order.Order, a *payment.Attempt) error {
	m.PaymentCompleted.Inc()
	m.PaymentAmount.Observe(a.Amount.Decimal().InexactFloat64())
	return nil
}

// OnPaymentFailed counts every failure; timeouts are also counted separately.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _ *order.Order, a *payment.Attempt) error {
	m.PaymentFailed.Inc()
	if a.TimedOut {
		m.PaymentTimedOut.Inc()
	}
	return nil
}

func (m *MetricsExtension) OnPaymentRefunded(_ context.Context, _ *order.Order, _ *payment.Attempt, r payment.Refund) error {
	m.RefundIssued.Inc()
	m.RefundAmount.Observe(r.Amount.Decimal().InexactFloat64())
	return nil
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnInvoiceGenerated(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceGenerated.Inc()
	return nil
}

func (m *MetricsExtension) OnInvoiceSent(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceSent.Inc()
	return nil
}

func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ *invoice.Invoice) error {
	m.InvoicePaid.Inc()
	return nil
}

func (m *MetricsExtension) OnInvoiceCancelled(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceCancelled.Inc()
	return nil
}
