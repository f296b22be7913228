package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	audithook "github.com/xraph/settle/audit_hook"

	"github.com/xraph/settle"
	"github.com/xraph/settle/gateway/fake"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

type captured struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, evt *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *captured) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

func run(t *testing.T, ext *audithook.Extension, gw *fake.Gateway) {
	t.Helper()
	ctx := context.Background()
	eng := settle.New(memory.New(),
		settle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		settle.WithGateway(gw),
		settle.WithPlugin(ext),
	)
	o, err := eng.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-1",
		Items:      []order.Item{{PlanID: "silver", Quantity: 1, UnitPrice: types.USD(20000)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := eng.SubmitOrder(ctx, o.ID); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	req := settle.PaymentRequest{
		Amount:     types.USD(20000),
		Method:     payment.MethodCreditCard,
		Instrument: payment.Instrument{Token: "tok_visa"},
	}
	failed, err := eng.RecordPayment(ctx, o.ID, req)
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if _, err := eng.RetryPayment(ctx, failed.ID, settle.RetryRequest{}); err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
}

func TestRecordsLifecycle(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	run(t, ext, fake.New(fake.Step{Outcome: fake.Decline, Reason: "insufficient funds"}))

	want := []string{
		audithook.ActionOrderCreated,
		audithook.ActionOrderSubmitted,
		audithook.ActionPaymentFailed,
		audithook.ActionPaymentCompleted,
	}
	got := rec.actions()
	if len(got) != len(want) {
		t.Fatalf("actions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d]: got %s, want %s", i, got[i], want[i])
		}
	}

	failed := rec.events[2]
	if failed.Outcome != audithook.OutcomeFailure || failed.Resource != audithook.ResourcePayment {
		t.Errorf("failed event: outcome %s resource %s", failed.Outcome, failed.Resource)
	}
	if failed.Metadata["failure_reason"] != "insufficient funds" {
		t.Errorf("failure_reason: got %v", failed.Metadata["failure_reason"])
	}
}

func TestEnabledActions(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionPaymentFailed))
	run(t, ext, fake.New(fake.Step{Outcome: fake.Decline, Reason: "do not honor"}))

	got := rec.actions()
	if len(got) != 1 || got[0] != audithook.ActionPaymentFailed {
		t.Errorf("actions: got %v, want only %s", got, audithook.ActionPaymentFailed)
	}
}

func TestDisabledActions(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec, audithook.WithDisabledActions(
		audithook.ActionOrderCreated, audithook.ActionOrderSubmitted,
	))
	run(t, ext, fake.New(fake.Step{Outcome: fake.Decline}))

	for _, a := range rec.actions() {
		if a == audithook.ActionOrderCreated || a == audithook.ActionOrderSubmitted {
			t.Errorf("disabled action %s was recorded", a)
		}
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit store down")
	}), audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	// The engine must keep working when the audit backend fails.
	run(t, ext, fake.New(fake.Step{Outcome: fake.Decline}))
}
