// Package kafkahook publishes settle lifecycle events to a Kafka topic.
// Messages are keyed by order id so every event of one order lands on the
// same partition in order.
package kafkahook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Publisher)(nil)
	_ plugin.OnShutdown         = (*Publisher)(nil)
	_ plugin.OnOrderSubmitted   = (*Publisher)(nil)
	_ plugin.OnOrderCompleted   = (*Publisher)(nil)
	_ plugin.OnOrderCancelled   = (*Publisher)(nil)
	_ plugin.OnOrderRefunded    = (*Publisher)(nil)
	_ plugin.OnPaymentCompleted = (*Publisher)(nil)
	_ plugin.OnPaymentFailed    = (*Publisher)(nil)
	_ plugin.OnPaymentRefunded  = (*Publisher)(nil)
	_ plugin.OnInvoiceGenerated = (*Publisher)(nil)
	_ plugin.OnInvoicePaid      = (*Publisher)(nil)
)

// Event types.
const (
	EventOrderSubmitted   = "order.submitted"
	EventOrderCompleted   = "order.completed"
	EventOrderCancelled   = "order.cancelled"
	EventOrderRefunded    = "order.refunded"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
	EventInvoiceGenerated = "invoice.generated"
	EventInvoicePaid      = "invoice.paid"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload of every message.
type Event struct {
	Type        string       `json:"type"`
	OrderID     string       `json:"order_id"`
	OrderStatus order.Status `json:"order_status,omitempty"`
	PaymentID   string       `json:"payment_id,omitempty"`
	InvoiceID   string       `json:"invoice_id,omitempty"`
	Amount      *types.Money `json:"amount,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// Publisher is a plugin writing one message per lifecycle event.
type Publisher struct {
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithClock sets the time source for OccurredAt.
func WithClock(c types.Clock) Option {
	return func(p *Publisher) { p.now = c.Now }
}

// New creates a publisher writing to brokers/topic.
func New(brokers []string, topic string, opts ...Option) *Publisher {
	return NewWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, opts...)
}

// NewWithWriter creates a publisher over an existing writer.
func NewWithWriter(w Writer, opts ...Option) *Publisher {
	p := &Publisher{writer: w, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "kafka-publisher" }

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.writer.Close()
}

func (p *Publisher) OnOrderSubmitted(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, orderEvent(EventOrderSubmitted, o, &o.Total))
}

func (p *Publisher) OnOrderCompleted(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, orderEvent(EventOrderCompleted, o, nil))
}

func (p *Publisher) OnOrderCancelled(ctx context.Context, o *order.Order, reason string) error {
	evt := orderEvent(EventOrderCancelled, o, nil)
	evt.Reason = reason
	return p.publish(ctx, evt)
}

func (p *Publisher) OnOrderRefunded(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, orderEvent(EventOrderRefunded, o, nil))
}

func (p *Publisher) OnPaymentCompleted(ctx context.Context, o *order.Order, a *payment.Attempt) error {
	evt := orderEvent(EventPaymentCompleted, o, &a.Amount)
	evt.PaymentID = a.ID.String()
	return p.publish(ctx, evt)
}

func (p *Publisher) OnPaymentFailed(ctx context.Context, o *order.Order, a *payment.Attempt) error {
	evt := orderEvent(EventPaymentFailed, o, &a.Amount)
	evt.PaymentID = a.ID.String()
	evt.Reason = a.FailureReason
	return p.publish(ctx, evt)
}

func (p *Publisher) OnPaymentRefunded(ctx context.Context, o *order.Order, a *payment.Attempt, r payment.Refund) error {
	evt := orderEvent(EventPaymentRefunded, o, &r.Amount)
	evt.PaymentID = a.ID.String()
	evt.Reason = r.Reason
	return p.publish(ctx, evt)
}

func (p *Publisher) OnInvoiceGenerated(ctx context.Context, inv *invoice.Invoice) error {
	return p.publish(ctx, invoiceEvent(EventInvoiceGenerated, inv))
}

func (p *Publisher) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return p.publish(ctx, invoiceEvent(EventInvoicePaid, inv))
}

func orderEvent(typ string, o *order.Order, amount *types.Money) *Event {
	evt := &Event{Type: typ, OrderID: o.ID.String(), OrderStatus: o.Status}
	if amount != nil {
		m := *amount
		evt.Amount = &m
	}
	return evt
}

func invoiceEvent(typ string, inv *invoice.Invoice) *Event {
	total := inv.Total
	return &Event{
		Type:      typ,
		OrderID:   inv.OrderID.String(),
		InvoiceID: inv.ID.String(),
		Amount:    &total,
	}
}

func (p *Publisher) publish(ctx context.Context, evt *Event) error {
	evt.OccurredAt = p.now().UTC()
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("kafkahook: marshal %s: %w", evt.Type, err)
	}
	msg := kafka.Message{
		Key:     []byte(evt.OrderID),
		Value:   b,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(evt.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("kafkahook: write failed", "event", evt.Type, "order_id", evt.OrderID, "error", err)
		return fmt.Errorf("kafkahook: write %s: %w", evt.Type, err)
	}
	return nil
}
