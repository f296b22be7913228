// Package audithook bridges settle's order, payment and invoice lifecycle
// events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnOrderCreated     = (*Extension)(nil)
	_ plugin.OnOrderSubmitted   = (*Extension)(nil)
	_ plugin.OnOrderCompleted   = (*Extension)(nil)
	_ plugin.OnOrderCancelled   = (*Extension)(nil)
	_ plugin.OnOrderRefunded    = (*Extension)(nil)
	_ plugin.OnPaymentCompleted = (*Extension)(nil)
	_ plugin.OnPaymentFailed    = (*Extension)(nil)
	_ plugin.OnPaymentRefunded  = (*Extension)(nil)
	_ plugin.OnInvoiceGenerated = (*Extension)(nil)
	_ plugin.OnInvoiceSent      = (*Extension)(nil)
	_ plugin.OnInvoicePaid      = (*Extension)(nil)
	_ plugin.OnInvoiceCancelled = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges settle lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (e *Extension) OnOrderCreated(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderCreated, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryEnrollment, nil,
		"number", o.Number,
		"customer_id", o.CustomerID,
		"total", o.Total.String(),
	)
}

// OnOrderSubmitted implements plugin.OnOrderSubmitted.
func (e *Extension) OnOrderSubmitted(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryEnrollment, nil,
		"customer_id", o.CustomerID,
		"total", o.Total.String(),
	)
}

// OnOrderCompleted implements plugin.OnOrderCompleted.
func (e *Extension) OnOrderCompleted(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderCompleted, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryEnrollment, nil,
		"customer_id", o.CustomerID,
	)
}

// OnOrderCancelled implements plugin.OnOrderCancelled.
func (e *Extension) OnOrderCancelled(ctx context.Context, o *order.Order, reason string) error {
	return e.record(ctx, ActionOrderCancelled, SeverityWarning, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryEnrollment, nil,
		"customer_id", o.CustomerID,
		"cancel_reason", reason,
	)
}

// OnOrderRefunded implements plugin.OnOrderRefunded.
func (e *Extension) OnOrderRefunded(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderRefunded, SeverityWarning, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryPayment, nil,
		"customer_id", o.CustomerID,
	)
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCompleted implements plugin.OnPaymentCompleted.
func (e *Extension) OnPaymentCompleted(ctx context.Context, o *order.Order, a *payment.Attempt) error {
	return e.record(ctx, ActionPaymentCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePayment, a.ID.String(), CategoryPayment, nil,
		"order_id", o.ID.String(),
		"amount", a.Amount.String(),
		"transaction_id", a.TransactionID,
		"order_status", string(o.Status),
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed. Timeouts are recorded
// under their own action because the charge may still have gone through.
func (e *Extension) OnPaymentFailed(ctx context.Context, o *order.Order, a *payment.Attempt) error {
	action, severity := ActionPaymentFailed, SeverityWarning
	if a.TimedOut {
		action, severity = ActionPaymentTimedOut, SeverityError
	}
	return e.record(ctx, action, severity, OutcomeFailure,
		ResourcePayment, a.ID.String(), CategoryPayment, nil,
		"order_id", o.ID.String(),
		"amount", a.Amount.String(),
		"failure_reason", a.FailureReason,
	)
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded.
func (e *Extension) OnPaymentRefunded(ctx context.Context, o *order.Order, a *payment.Attempt, r payment.Refund) error {
	return e.record(ctx, ActionPaymentRefunded, SeverityWarning, OutcomeSuccess,
		ResourcePayment, a.ID.String(), CategoryPayment, nil,
		"order_id", o.ID.String(),
		"refund_id", r.ID.String(),
		"amount", r.Amount.String(),
		"refund_reason", r.Reason,
	)
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated implements plugin.OnInvoiceGenerated.
func (e *Extension) OnInvoiceGenerated(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceGenerated, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"order_id", inv.OrderID.String(),
		"number", inv.Number,
		"total", inv.Total.String(),
	)
}

// OnInvoiceSent implements plugin.OnInvoiceSent.
func (e *Extension) OnInvoiceSent(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceSent, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"order_id", inv.OrderID.String(),
	)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"order_id", inv.OrderID.String(),
		"total", inv.Total.String(),
	)
}

// OnInvoiceCancelled implements plugin.OnInvoiceCancelled.
func (e *Extension) OnInvoiceCancelled(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceCancelled, SeverityWarning, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"order_id", inv.OrderID.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
