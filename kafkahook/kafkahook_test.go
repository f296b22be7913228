package kafkahook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/settle"
	"github.com/xraph/settle/gateway/fake"
	"github.com/xraph/settle/kafkahook"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

// fakeWriter records messages written.
type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeWriter) events(t *testing.T) []kafkahook.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]kafkahook.Event, len(f.msgs))
	for i, m := range f.msgs {
		if err := json.Unmarshal(m.Value, &out[i]); err != nil {
			t.Fatalf("decode message %d: %v", i, err)
		}
		if string(m.Key) != out[i].OrderID {
			t.Errorf("message %d key %q, order_id %q", i, m.Key, out[i].OrderID)
		}
	}
	return out
}

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, w *fakeWriter, gw *fake.Gateway) *settle.Engine {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := kafkahook.NewWithWriter(w, kafkahook.WithLogger(quiet), kafkahook.WithClock(types.FixedClock(at)))
	eng := settle.New(memory.New(),
		settle.WithLogger(quiet),
		settle.WithGateway(gw),
		settle.WithPlugin(pub),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return eng
}

func submit(t *testing.T, eng *settle.Engine, cents int64) *order.Order {
	t.Helper()
	ctx := context.Background()
	o, err := eng.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-9",
		Items:      []order.Item{{PlanID: "gold", Quantity: 1, UnitPrice: types.USD(cents)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o, err = eng.SubmitOrder(ctx, o.ID); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	return o
}

func TestPublishesPaymentFlow(t *testing.T) {
	w := &fakeWriter{}
	eng := newEngine(t, w, fake.New())
	ctx := context.Background()
	o := submit(t, eng, 12000)

	a, err := eng.RecordPayment(ctx, o.ID, settle.PaymentRequest{
		Amount: types.USD(12000), Method: payment.MethodACH,
		Instrument: payment.Instrument{Token: "tok_bank"},
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if _, err := eng.Refund(ctx, a.ID, types.USD(12000), "duplicate enrollment"); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	events := w.events(t)
	want := []string{
		kafkahook.EventOrderSubmitted,
		kafkahook.EventPaymentCompleted,
		kafkahook.EventOrderRefunded,
		kafkahook.EventPaymentRefunded,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event[%d]: got %s, want %s", i, events[i].Type, typ)
		}
		if !events[i].OccurredAt.Equal(at) {
			t.Errorf("event[%d] occurred_at: %v", i, events[i].OccurredAt)
		}
	}
	if events[1].OrderStatus != order.StatusProcessing {
		t.Errorf("payment.completed status: got %s", events[1].OrderStatus)
	}
	if events[3].Reason != "duplicate enrollment" || events[3].Amount.Amount != 12000 {
		t.Errorf("payment.refunded: %+v", events[3])
	}
}

func TestPublishesFailureReason(t *testing.T) {
	w := &fakeWriter{}
	eng := newEngine(t, w, fake.New(fake.Step{Outcome: fake.Decline, Reason: "card expired"}))
	o := submit(t, eng, 5000)

	if _, err := eng.RecordPayment(context.Background(), o.ID, settle.PaymentRequest{
		Amount: types.USD(5000), Method: payment.MethodCreditCard,
		Instrument: payment.Instrument{Token: "tok_old"},
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	events := w.events(t)
	last := events[len(events)-1]
	if last.Type != kafkahook.EventPaymentFailed || last.Reason != "card expired" {
		t.Errorf("last event: %+v", last)
	}
	if last.OrderStatus != order.StatusPaymentFailed {
		t.Errorf("order status: got %s", last.OrderStatus)
	}
}

func TestWriteErrorDoesNotFailEngine(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	eng := newEngine(t, w, fake.New())
	o := submit(t, eng, 1000)
	if o.Status != order.StatusPendingPayment {
		t.Errorf("status: got %s", o.Status)
	}
}

func TestShutdownClosesWriter(t *testing.T) {
	w := &fakeWriter{}
	eng := newEngine(t, w, fake.New())
	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !w.closed {
		t.Error("writer not closed on shutdown")
	}
}
