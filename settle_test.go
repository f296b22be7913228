package settle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/settle"
	"github.com/xraph/settle/customer"
	"github.com/xraph/settle/gateway/fake"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plan"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

var start = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	engine *settle.Engine
	gw     *fake.Gateway
	clock  *testClock
}

func newHarness(t *testing.T, opts ...settle.Option) *harness {
	t.Helper()
	return newHarnessWithStore(t, memory.New(), opts...)
}

func newHarnessWithStore(t *testing.T, st store.Store, opts ...settle.Option) *harness {
	t.Helper()
	h := &harness{gw: fake.New(), clock: &testClock{now: start}}
	base := []settle.Option{
		settle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		settle.WithGateway(h.gw),
		settle.WithClock(h.clock),
	}
	h.engine = settle.New(st, append(base, opts...)...)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h
}

// submitted creates and submits an order with one item per price.
func (h *harness) submitted(t *testing.T, prices ...int64) *order.Order {
	t.Helper()
	ctx := context.Background()
	items := make([]order.Item, len(prices))
	for i, p := range prices {
		items[i] = order.Item{PlanID: "plan-" + string(rune('a'+i)), Quantity: 1, UnitPrice: types.USD(p)}
	}
	o, err := h.engine.CreateOrder(ctx, settle.NewOrder{CustomerID: "cust-1", Items: items})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	o, err = h.engine.SubmitOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	return o
}

func (h *harness) pay(t *testing.T, orderID id.OrderID, cents int64) *payment.Attempt {
	t.Helper()
	a, err := h.engine.RecordPayment(context.Background(), orderID, payRequest(cents))
	if err != nil {
		t.Fatalf("RecordPayment(%d): %v", cents, err)
	}
	return a
}

func payRequest(cents int64) settle.PaymentRequest {
	return settle.PaymentRequest{
		Amount: types.USD(cents),
		Method: payment.MethodCreditCard,
		Instrument: payment.CardInstrument("tok_visa", payment.CardDetails{
			Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030,
		}),
	}
}

func (h *harness) status(t *testing.T, orderID id.OrderID) order.Status {
	t.Helper()
	o, err := h.engine.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	return o.Status
}

func (h *harness) totalPaid(t *testing.T, orderID id.OrderID) int64 {
	t.Helper()
	paid, err := h.engine.TotalPaid(context.Background(), orderID)
	if err != nil {
		t.Fatalf("TotalPaid: %v", err)
	}
	return paid.Amount
}

// ──────────────────────────────────────────────────
// Payment scenarios
// ──────────────────────────────────────────────────

func TestFullPayment(t *testing.T) {
	h := newHarness(t)
	o := h.submitted(t, 10000, 5000)
	if o.Total.Amount != 15000 || o.Status != order.StatusPendingPayment {
		t.Fatalf("submitted order: total %v status %s", o.Total, o.Status)
	}

	a := h.pay(t, o.ID, 15000)
	if a.Status != payment.StatusCompleted || a.TransactionID == "" {
		t.Fatalf("attempt: %s %q", a.Status, a.TransactionID)
	}
	if got := h.status(t, o.ID); got != order.StatusProcessing {
		t.Errorf("order status: got %s, want processing", got)
	}
	due, err := h.engine.BalanceDue(context.Background(), o.ID)
	if err != nil || !due.IsZero() {
		t.Errorf("balance due: %v, %v", due, err)
	}
}

func TestDeclineThenRetry(t *testing.T) {
	h := newHarness(t)
	h.gw.Queue(fake.Step{Outcome: fake.Decline, Reason: "insufficient funds"})
	o := h.submitted(t, 10000, 5000)

	failed := h.pay(t, o.ID, 15000)
	if failed.Status != payment.StatusFailed || failed.FailureReason != "insufficient funds" {
		t.Fatalf("first attempt: %s %q", failed.Status, failed.FailureReason)
	}
	if got := h.status(t, o.ID); got != order.StatusPaymentFailed {
		t.Fatalf("order status after decline: %s", got)
	}

	retried, err := h.engine.RetryPayment(context.Background(), failed.ID, settle.RetryRequest{})
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if retried.Status != payment.StatusCompleted || retried.RetryOf != failed.ID {
		t.Fatalf("retry: status %s retry_of %s", retried.Status, retried.RetryOf)
	}
	if retried.Instrument.CardLast4 != "4242" {
		t.Errorf("retry did not reuse instrument: %+v", retried.Instrument)
	}
	if got := h.status(t, o.ID); got != order.StatusProcessing {
		t.Errorf("order status after retry: %s", got)
	}

	attempts, err := h.engine.ListPayments(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Status != payment.StatusFailed || attempts[1].Status != payment.StatusCompleted {
		t.Fatalf("ledger: %d attempts", len(attempts))
	}
}

func TestPartialPayments(t *testing.T) {
	h := newHarness(t)
	o := h.submitted(t, 20000)

	h.pay(t, o.ID, 8000)
	if got := h.status(t, o.ID); got != order.StatusConfirmed {
		t.Fatalf("after partial: %s", got)
	}
	due, _ := h.engine.BalanceDue(context.Background(), o.ID)
	if due.Amount != 12000 {
		t.Fatalf("balance: %v", due)
	}

	h.pay(t, o.ID, 12000)
	if got := h.status(t, o.ID); got != order.StatusProcessing {
		t.Errorf("after final: %s", got)
	}
	if got := h.totalPaid(t, o.ID); got != 20000 {
		t.Errorf("total paid: %d", got)
	}
}

func TestRefundToZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 20000)
	a := h.pay(t, o.ID, 20000)
	if _, err := h.engine.CompleteOrder(ctx, o.ID); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	a, err := h.engine.Refund(ctx, a.ID, types.USD(20000), "customer request")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if !a.RefundedAmount.Equal(types.USD(20000)) || len(a.Refunds) != 1 {
		t.Errorf("refund not recorded: %v %d", a.RefundedAmount, len(a.Refunds))
	}
	if got := h.status(t, o.ID); got != order.StatusRefunded {
		t.Errorf("order status: %s", got)
	}
	if got := h.totalPaid(t, o.ID); got != 0 {
		t.Errorf("total paid after refund: %d", got)
	}

	_, err = h.engine.Refund(ctx, a.ID, types.USD(1), "again")
	if !errors.Is(err, settle.ErrRefundExceedsAvailable) {
		t.Fatalf("second refund: got %v, want ErrRefundExceedsAvailable", err)
	}
}

func TestPartialRefundKeepsStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 20000)
	a := h.pay(t, o.ID, 20000)

	if _, err := h.engine.Refund(ctx, a.ID, types.USD(5000), ""); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if got := h.status(t, o.ID); got != order.StatusProcessing {
		t.Errorf("order status: %s", got)
	}
	if got := h.totalPaid(t, o.ID); got != 15000 {
		t.Errorf("total paid: %d", got)
	}
	if got := h.gw.Refunded(a.TransactionID); got.Amount != 5000 {
		t.Errorf("gateway refunded: %v", got)
	}
}

func TestCompleteWithOutstandingBalance(t *testing.T) {
	h := newHarness(t)
	o := h.submitted(t, 10000)
	h.pay(t, o.ID, 7000)

	_, err := h.engine.CompleteOrder(context.Background(), o.ID)
	if !errors.Is(err, settle.ErrOutstandingBalance) {
		t.Fatalf("got %v, want ErrOutstandingBalance", err)
	}
	if got := h.status(t, o.ID); got != order.StatusConfirmed {
		t.Errorf("status changed to %s", got)
	}
}

func TestPaymentValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 20000)

	draft, err := h.engine.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-1",
		Items:      []order.Item{{PlanID: "p", Quantity: 1, UnitPrice: types.USD(100)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	tests := []struct {
		name    string
		orderID id.OrderID
		amount  types.Money
		err     error
	}{
		{"exceeds balance", o.ID, types.USD(25000), settle.ErrAmountExceedsBalance},
		{"zero", o.ID, types.USD(0), settle.ErrInvalidAmount},
		{"negative", o.ID, types.USD(-100), settle.ErrInvalidAmount},
		{"wrong currency", o.ID, types.EUR(100), settle.ErrCurrencyMismatch},
		{"draft order", draft.ID, types.USD(100), settle.ErrOrderNotAwaitingPayment},
		{"unknown order", id.NewOrderID(), types.USD(100), settle.ErrOrderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.RecordPayment(ctx, tt.orderID, settle.PaymentRequest{Amount: tt.amount, Method: payment.MethodACH})
			if !errors.Is(err, tt.err) {
				t.Fatalf("got %v, want %v", err, tt.err)
			}
		})
	}

	attempts, _ := h.engine.ListPayments(ctx, o.ID)
	if len(attempts) != 0 {
		t.Errorf("rejected payments created %d attempts", len(attempts))
	}
}

func TestFailureAfterPartialPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 20000)
	h.pay(t, o.ID, 8000)

	h.gw.Queue(fake.Step{Outcome: fake.Decline, Reason: "insufficient funds"})
	a := h.pay(t, o.ID, 12000)
	if a.Status != payment.StatusFailed {
		t.Fatalf("attempt: %s", a.Status)
	}
	if got := h.status(t, o.ID); got != order.StatusPaymentFailed {
		t.Errorf("order status: got %s, want payment_failed", got)
	}
	if got := h.totalPaid(t, o.ID); got != 8000 {
		t.Errorf("total paid: %d", got)
	}
	due, _ := h.engine.BalanceDue(ctx, o.ID)
	if due.Amount != 12000 {
		t.Errorf("balance due: %d", due.Amount)
	}

	retried, err := h.engine.RetryPayment(ctx, a.ID, settle.RetryRequest{})
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if retried.Status != payment.StatusCompleted {
		t.Fatalf("retry: %s", retried.Status)
	}
	if got := h.status(t, o.ID); got != order.StatusProcessing {
		t.Errorf("order status after retry: %s", got)
	}
	if got := h.totalPaid(t, o.ID); got != 20000 {
		t.Errorf("total paid after retry: %d", got)
	}
}

func TestRetryLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	decline := fake.Step{Outcome: fake.Decline}
	h.gw.Queue(decline, decline, decline)
	o := h.submitted(t, 10000)

	a := h.pay(t, o.ID, 10000)
	for i := 0; i < 2; i++ {
		var err error
		if a, err = h.engine.RetryPayment(ctx, a.ID, settle.RetryRequest{}); err != nil {
			t.Fatalf("retry %d: %v", i+1, err)
		}
		if a.Status != payment.StatusFailed {
			t.Fatalf("retry %d: %s", i+1, a.Status)
		}
	}

	_, err := h.engine.RetryPayment(ctx, a.ID, settle.RetryRequest{})
	if !errors.Is(err, settle.ErrRetryLimitExceeded) {
		t.Fatalf("fourth attempt: got %v, want ErrRetryLimitExceeded", err)
	}

	h.clock.Advance(25 * time.Hour)
	a, err = h.engine.RetryPayment(ctx, a.ID, settle.RetryRequest{})
	if err != nil {
		t.Fatalf("retry after lookback: %v", err)
	}
	if a.Status != payment.StatusCompleted {
		t.Errorf("retry after lookback: %s", a.Status)
	}
}

func TestRetryPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 10000)
	a := h.pay(t, o.ID, 4000)

	if _, err := h.engine.RetryPayment(ctx, a.ID, settle.RetryRequest{}); !errors.Is(err, settle.ErrAttemptNotFailed) {
		t.Errorf("retry completed attempt: got %v", err)
	}

	h.gw.Queue(fake.Step{Outcome: fake.Decline})
	failed := h.pay(t, o.ID, 1000)
	if _, err := h.engine.RetryPayment(ctx, failed.ID, settle.RetryRequest{}); err != nil {
		t.Fatalf("first retry: %v", err)
	}
	// 5000 is paid now and the order is Confirmed, not PaymentFailed.
	if _, err := h.engine.RetryPayment(ctx, failed.ID, settle.RetryRequest{}); !errors.Is(err, settle.ErrOrderNotAwaitingPayment) {
		t.Errorf("retry on confirmed order: got %v", err)
	}
}

func TestRetryWithNewInstrument(t *testing.T) {
	h := newHarness(t)
	h.gw.Queue(fake.Step{Outcome: fake.Decline})
	o := h.submitted(t, 10000)
	failed := h.pay(t, o.ID, 10000)

	inst := payment.BankInstrument("tok_bank", payment.BankDetails{BankName: "First", AccountNumber: "000123456789", RoutingNumber: "110000000"})
	a, err := h.engine.RetryPayment(context.Background(), failed.ID, settle.RetryRequest{Instrument: &inst})
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if a.Instrument.Token != "tok_bank" || a.Instrument.AccountLast4 != "6789" {
		t.Errorf("instrument: %+v", a.Instrument)
	}
}

// ──────────────────────────────────────────────────
// Gateway timeouts
// ──────────────────────────────────────────────────

func TestGatewayTimeoutRecordsFailure(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	h := newHarness(t, settle.WithGatewayTimeout(20*time.Millisecond), settle.WithTracer(tp.Tracer("test")))
	h.gw.Queue(fake.Step{Outcome: fake.Hang})
	o := h.submitted(t, 10000)

	a := h.pay(t, o.ID, 10000)
	if a.Status != payment.StatusFailed || !a.TimedOut || a.FailureReason != "gateway timeout" {
		t.Fatalf("attempt: status %s timed_out %v reason %q", a.Status, a.TimedOut, a.FailureReason)
	}
	if got := h.status(t, o.ID); got != order.StatusPaymentFailed {
		t.Errorf("order status: %s", got)
	}

	var found bool
	for _, s := range sr.Ended() {
		if s.Name() == "settle.gateway.charge" {
			found = true
			if s.Status().Code != codes.Error {
				t.Errorf("span status: %v", s.Status())
			}
		}
	}
	if !found {
		t.Error("no gateway span recorded")
	}

	// The charge never reached the gateway, so the retry goes straight through.
	retried, err := h.engine.RetryPayment(context.Background(), a.ID, settle.RetryRequest{})
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if retried.Status != payment.StatusCompleted {
		t.Errorf("retry: %s", retried.Status)
	}
	prev, _ := h.engine.GetPayment(context.Background(), a.ID)
	if !prev.Reconciled || prev.ReversalID != "" {
		t.Errorf("timed-out attempt: reconciled %v reversal %q", prev.Reconciled, prev.ReversalID)
	}
}

func TestLateChargeIsReversedBeforeRetry(t *testing.T) {
	h := newHarness(t, settle.WithGatewayTimeout(20*time.Millisecond))
	h.gw.Queue(fake.Step{Outcome: fake.LandAfterTimeout})
	o := h.submitted(t, 10000)
	ctx := context.Background()

	a := h.pay(t, o.ID, 10000)
	if a.Status != payment.StatusFailed {
		t.Fatalf("attempt: %s", a.Status)
	}

	if _, err := h.engine.RetryPayment(ctx, a.ID, settle.RetryRequest{}); err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	prev, err := h.engine.GetPayment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if !prev.Reconciled || prev.ReversalID == "" || prev.TransactionID == "" {
		t.Fatalf("late charge not reversed: %+v", prev)
	}
	if got := h.gw.Refunded(prev.TransactionID); got.Amount != 10000 {
		t.Errorf("gateway reversal: %v", got)
	}
	if got := h.totalPaid(t, o.ID); got != 10000 {
		t.Errorf("total paid: %d", got)
	}
}

func TestRetryWithUnknownOutcome(t *testing.T) {
	h := newHarness(t, settle.WithGatewayTimeout(20*time.Millisecond))
	h.gw.Queue(fake.Step{Outcome: fake.LandAfterTimeout})
	h.gw.LookupErr = errors.New("lookup unavailable")
	o := h.submitted(t, 10000)
	ctx := context.Background()

	a := h.pay(t, o.ID, 10000)
	if _, err := h.engine.RetryPayment(ctx, a.ID, settle.RetryRequest{}); !errors.Is(err, settle.ErrOutcomeUnknown) {
		t.Fatalf("got %v, want ErrOutcomeUnknown", err)
	}
	attempts, _ := h.engine.ListPayments(ctx, o.ID)
	if len(attempts) != 1 {
		t.Errorf("retry created an attempt despite unknown outcome: %d", len(attempts))
	}

	h.gw.LookupErr = nil
	rec, err := h.engine.ReconcileAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("ReconcileAttempt: %v", err)
	}
	again, err := h.engine.ReconcileAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("second ReconcileAttempt: %v", err)
	}
	if rec.ReversalID == "" || again.ReversalID != rec.ReversalID {
		t.Errorf("reconcile not idempotent: %q then %q", rec.ReversalID, again.ReversalID)
	}
}

func TestRefundDeclinedByGateway(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 10000)
	a := h.pay(t, o.ID, 10000)

	h.gw.DeclineRefunds = true
	if _, err := h.engine.Refund(ctx, a.ID, types.USD(1000), ""); !errors.Is(err, settle.ErrRefundFailed) {
		t.Fatalf("got %v, want ErrRefundFailed", err)
	}
	got, _ := h.engine.GetPayment(ctx, a.ID)
	if !got.RefundedAmount.IsZero() || len(got.Refunds) != 0 {
		t.Errorf("declined refund recorded: %v", got.RefundedAmount)
	}
}

func TestRefundFailedAttempt(t *testing.T) {
	h := newHarness(t)
	h.gw.Queue(fake.Step{Outcome: fake.Decline})
	o := h.submitted(t, 10000)
	a := h.pay(t, o.ID, 10000)

	if _, err := h.engine.Refund(context.Background(), a.ID, types.USD(100), ""); !errors.Is(err, settle.ErrAttemptNotCompleted) {
		t.Fatalf("got %v, want ErrAttemptNotCompleted", err)
	}
}

func TestNoGateway(t *testing.T) {
	e := settle.New(memory.New(), settle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err := e.RecordPayment(context.Background(), id.NewOrderID(), settle.PaymentRequest{Amount: types.USD(1), Method: payment.MethodACH})
	if !errors.Is(err, settle.ErrNoGateway) {
		t.Fatalf("got %v, want ErrNoGateway", err)
	}
}

// ──────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	h := newHarness(t)
	o := h.submitted(t, 20000)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := h.engine.RecordPayment(context.Background(), o.ID, settle.PaymentRequest{
				Amount: types.USD(5000),
				Method: payment.MethodCreditCard,
			})
			if err != nil {
				if !errors.Is(err, settle.ErrAmountExceedsBalance) && !errors.Is(err, settle.ErrOrderNotAwaitingPayment) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if a.Status == payment.StatusCompleted {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if completed != 4 {
		t.Errorf("completed payments: got %d, want 4", completed)
	}
	if got := h.totalPaid(t, o.ID); got != 20000 {
		t.Errorf("total paid: %d", got)
	}
	if got := h.status(t, o.ID); got != order.StatusProcessing {
		t.Errorf("order status: %s", got)
	}
}

// ──────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────

func TestCreateOrder(t *testing.T) {
	h := newHarness(t, settle.WithCustomerDirectory(customer.NewStaticDirectory("cust-1")))
	ctx := context.Background()

	o, err := h.engine.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-1",
		Items: []order.Item{
			{PlanID: "p1", Quantity: 2, UnitPrice: types.USD(10000), Subsidy: types.USD(2500)},
		},
		PromoCode: "save10",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Status != order.StatusDraft || o.Type != order.TypeNewEnrollment || o.BillingFrequency != order.BillingMonthly {
		t.Errorf("defaults: %s %s %s", o.Status, o.Type, o.BillingFrequency)
	}
	if o.Number != id.DocumentNumber("ORD", start, o.ID) {
		t.Errorf("number: %q", o.Number)
	}
	if o.Subtotal.Amount != 17500 || o.DiscountAmount.Amount != 1750 || o.Total.Amount != 15750 || o.PromoCode != "SAVE10" {
		t.Errorf("totals: subtotal %v discount %v total %v promo %q", o.Subtotal, o.DiscountAmount, o.Total, o.PromoCode)
	}
	if o.Items[0].ID.IsNil() {
		t.Error("item id not assigned")
	}

	_, err = h.engine.CreateOrder(ctx, settle.NewOrder{CustomerID: "cust-2"})
	if !errors.Is(err, settle.ErrCustomerNotFound) {
		t.Errorf("unknown customer: got %v", err)
	}
	_, err = h.engine.CreateOrder(ctx, settle.NewOrder{})
	if !errors.Is(err, settle.ErrInvalidInput) || !settle.IsValidation(err) {
		t.Errorf("missing customer: got %v", err)
	}
}

func TestDraftEditing(t *testing.T) {
	catalog := plan.NewStaticCatalog(plan.Plan{
		ID: "silver", Code: "SLV-24", Name: "Silver PPO", Year: 2026, MetalTier: "silver",
		MonthlyPremium: types.USD(45000), Active: true,
	})
	h := newHarness(t, settle.WithCatalog(catalog))
	ctx := context.Background()

	o, err := h.engine.CreateOrder(ctx, settle.NewOrder{CustomerID: "cust-1", BillingFrequency: order.BillingQuarterly})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	o, err = h.engine.AddPlanItem(ctx, o.ID, settle.PlanItem{PlanID: "silver", Quantity: 1, Subsidy: types.USD(35000)})
	if err != nil {
		t.Fatalf("AddPlanItem: %v", err)
	}
	if it := o.Items[0]; it.UnitPrice.Amount != 135000 || it.PlanName != "Silver PPO" || it.TotalPrice.Amount != 100000 {
		t.Errorf("plan item: %+v", it)
	}
	if _, err := h.engine.AddPlanItem(ctx, o.ID, settle.PlanItem{PlanID: "gold", Quantity: 1}); !errors.Is(err, settle.ErrPlanNotFound) {
		t.Errorf("unknown plan: got %v", err)
	}

	if o, err = h.engine.ApplyTax(ctx, o.ID, types.USD(500)); err != nil {
		t.Fatalf("ApplyTax: %v", err)
	}
	if o, err = h.engine.ApplyDiscount(ctx, o.ID, types.USD(2000)); err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if want := int64(100000 + 500 - 2000); o.Total.Amount != want {
		t.Errorf("total: got %d, want %d", o.Total.Amount, want)
	}

	if _, err := h.engine.SubmitOrder(ctx, o.ID); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if _, err := h.engine.ApplyTax(ctx, o.ID, types.USD(1)); !errors.Is(err, settle.ErrOrderNotMutable) {
		t.Errorf("tax after submit: got %v", err)
	}
	if _, err := h.engine.ApplyPromoCode(ctx, o.ID, "SAVE10"); !errors.Is(err, settle.ErrOrderNotMutable) {
		t.Errorf("promo after submit: got %v", err)
	}
	if err := h.engine.DeleteDraftOrder(ctx, o.ID); !errors.Is(err, settle.ErrOrderNotMutable) {
		t.Errorf("delete submitted: got %v", err)
	}
}

type flatTax struct{}

func (flatTax) Name() string { return "flat-tax" }

func (flatTax) CalculateTax(_ context.Context, o *order.Order) (types.Money, error) {
	return o.Subtotal.Percent(decimal.NewFromInt(5)), nil
}

func TestCalculateTax(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t)
	o, _ := h.engine.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-1",
		Items:      []order.Item{{PlanID: "p", Quantity: 1, UnitPrice: types.USD(10000)}},
	})
	if _, err := h.engine.CalculateTax(ctx, o.ID); !errors.Is(err, settle.ErrNoTaxProvider) {
		t.Fatalf("without calculator: got %v", err)
	}

	h = newHarness(t, settle.WithPlugin(flatTax{}))
	o, _ = h.engine.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-1",
		Items:      []order.Item{{PlanID: "p", Quantity: 1, UnitPrice: types.USD(10000)}},
	})
	o, err := h.engine.CalculateTax(ctx, o.ID)
	if err != nil {
		t.Fatalf("CalculateTax: %v", err)
	}
	if o.TaxAmount.Amount != 500 || o.Total.Amount != 10500 {
		t.Errorf("tax %v total %v", o.TaxAmount, o.Total)
	}
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o := h.submitted(t, 10000)
	o, err := h.engine.CancelOrder(ctx, o.ID, "changed mind")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if o.Status != order.StatusCancelled || o.CancellationReason != "changed mind" || o.CancelledAt == nil {
		t.Errorf("cancelled order: %+v", o)
	}

	paid := h.submitted(t, 10000)
	h.pay(t, paid.ID, 10000)
	if _, err := h.engine.CompleteOrder(ctx, paid.ID); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if _, err := h.engine.CancelOrder(ctx, paid.ID, ""); !errors.Is(err, settle.ErrInvalidCancellation) {
		t.Errorf("cancel completed: got %v", err)
	}
}

func TestZeroTotalOrderCannotBePaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o, err := h.engine.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-1",
		Items:      []order.Item{{PlanID: "p", Quantity: 1, UnitPrice: types.USD(10000), Subsidy: types.USD(10000)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o, err = h.engine.SubmitOrder(ctx, o.ID); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if o.Status != order.StatusPendingPayment || !o.Total.IsZero() {
		t.Fatalf("order: %s %v", o.Status, o.Total)
	}
	if _, err := h.engine.RecordPayment(ctx, o.ID, settle.PaymentRequest{Amount: types.USD(0), Method: payment.MethodACH}); !errors.Is(err, settle.ErrInvalidAmount) {
		t.Errorf("zero payment: got %v", err)
	}
	if _, err := h.engine.CancelOrder(ctx, o.ID, "nothing owed"); err != nil {
		t.Errorf("cancel: %v", err)
	}
}

func TestOrderSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 20000)
	a := h.pay(t, o.ID, 8000)
	if _, err := h.engine.Refund(ctx, a.ID, types.USD(3000), ""); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	sum, err := h.engine.OrderSummary(ctx, o.ID)
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if sum.TotalPaid.Amount != 5000 || sum.TotalRefunded.Amount != 3000 || sum.BalanceDue.Amount != 15000 || len(sum.Payments) != 1 {
		t.Errorf("summary: paid %v refunded %v due %v payments %d", sum.TotalPaid, sum.TotalRefunded, sum.BalanceDue, len(sum.Payments))
	}
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.submitted(t, 100)
	h.clock.Advance(time.Minute)
	second := h.submitted(t, 200)

	orders, err := h.engine.ListOrders(ctx, "cust-1", order.ListOpts{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != second.ID {
		t.Errorf("listing: %d orders", len(orders))
	}
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func TestInvoiceLifecycle(t *testing.T) {
	h := newHarness(t, settle.WithInvoiceDueDays(15))
	ctx := context.Background()
	o := h.submitted(t, 12000, 8000)

	inv, err := h.engine.GenerateInvoice(ctx, o.ID)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}
	if inv.Status != invoice.StatusDraft || !inv.BalanceDue.Equal(o.Total) || len(inv.LineItems) != 2 {
		t.Fatalf("invoice: %s balance %v lines %d", inv.Status, inv.BalanceDue, len(inv.LineItems))
	}
	if !inv.DueDate.Equal(start.AddDate(0, 0, 15)) {
		t.Errorf("due date: %v", inv.DueDate)
	}
	lines, _ := inv.LineTotal()
	if !lines.Equal(o.Subtotal) {
		t.Errorf("line total %v, subtotal %v", lines, o.Subtotal)
	}

	if inv, err = h.engine.SendInvoice(ctx, inv.ID); err != nil || inv.Status != invoice.StatusSent {
		t.Fatalf("SendInvoice: %v %v", inv, err)
	}

	h.pay(t, o.ID, 5000)
	got, err := h.engine.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.PaidAmount.Amount != 5000 || got.BalanceDue.Amount != 15000 {
		t.Errorf("derived amounts: paid %v due %v", got.PaidAmount, got.BalanceDue)
	}

	h.pay(t, o.ID, 15000)
	inv, err = h.engine.ReconcileInvoice(ctx, inv.ID)
	if err != nil || inv.Status != invoice.StatusPaid {
		t.Fatalf("ReconcileInvoice: %v %v", inv, err)
	}
	paidAt := *inv.PaidAt
	h.clock.Advance(time.Hour)
	inv, err = h.engine.ReconcileInvoice(ctx, inv.ID)
	if err != nil || inv.Status != invoice.StatusPaid || !inv.PaidAt.Equal(paidAt) {
		t.Fatalf("second reconcile changed the invoice: %v %v", inv, err)
	}

	if _, err := h.engine.CancelInvoice(ctx, inv.ID); !errors.Is(err, settle.ErrCannotCancelPaidInvoice) {
		t.Errorf("cancel paid: got %v", err)
	}

	invs, err := h.engine.ListInvoices(ctx, o.ID)
	if err != nil || len(invs) != 1 {
		t.Errorf("ListInvoices: %d %v", len(invs), err)
	}
}

func TestInvoiceForDraftOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o, _ := h.engine.CreateOrder(ctx, settle.NewOrder{
		CustomerID: "cust-1",
		Items:      []order.Item{{PlanID: "p", Quantity: 1, UnitPrice: types.USD(100)}},
	})
	if _, err := h.engine.GenerateInvoice(ctx, o.ID); !errors.Is(err, settle.ErrOrderNotSubmitted) {
		t.Fatalf("got %v, want ErrOrderNotSubmitted", err)
	}

	if _, err := h.engine.CancelOrder(ctx, o.ID, "never submitted"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if _, err := h.engine.GenerateInvoice(ctx, o.ID); !errors.Is(err, settle.ErrOrderNotSubmitted) {
		t.Fatalf("cancelled draft: got %v, want ErrOrderNotSubmitted", err)
	}
}

func TestCancelInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submitted(t, 100)
	inv, _ := h.engine.GenerateInvoice(ctx, o.ID)

	inv, err := h.engine.CancelInvoice(ctx, inv.ID)
	if err != nil || inv.Status != invoice.StatusCancelled {
		t.Fatalf("CancelInvoice: %v %v", inv, err)
	}
	if _, err := h.engine.SendInvoice(ctx, inv.ID); !errors.Is(err, settle.ErrInvalidInvoiceTransition) {
		t.Errorf("send cancelled: got %v", err)
	}
}
