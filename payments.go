package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// PaymentRequest charges an instrument against an order's balance.
type PaymentRequest struct {
	Amount     types.Money
	Method     payment.Method
	Instrument payment.Instrument
	Metadata   map[string]string
}

// RetryRequest optionally swaps the instrument used by a retry.
type RetryRequest struct {
	Instrument *payment.Instrument
}

// ──────────────────────────────────────────────────
// Charging
// ──────────────────────────────────────────────────

// RecordPayment charges req against the order. A declined or timed-out
// charge is not an error: the returned attempt is Failed and the order
// moves to PaymentFailed while a balance remains. An order left in
// PaymentProcessing by an interrupted charge is recovered first.
func (e *Engine) RecordPayment(ctx context.Context, orderID id.OrderID, req PaymentRequest) (*payment.Attempt, error) {
	if e.gateway == nil {
		return nil, ErrNoGateway
	}
	if req.Method == "" {
		return nil, ValidationError{Field: "method", Message: "required"}
	}

	var out *payment.Attempt
	err := e.withOrderLock(ctx, orderID, func() error {
		o, err := e.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == order.StatusPaymentProcessing {
			if err := e.recoverOrder(ctx, o); err != nil {
				return err
			}
		}
		due, err := e.balanceDue(ctx, o)
		if err != nil {
			return err
		}
		if err := o.CheckAwaitingPayment(due); err != nil {
			return err
		}
		if err := checkPaymentAmount(req.Amount, due); err != nil {
			return err
		}

		a := e.newAttempt(o, req.Amount, req.Method, req.Instrument, req.Metadata)
		out, err = e.charge(ctx, o, a, due)
		return err
	})
	return out, err
}

// RetryPayment charges the failed attempt's amount again as a new attempt.
// A timed-out attempt whose outcome was never settled is reconciled first,
// so a charge that landed late is reversed before the customer is charged
// again.
func (e *Engine) RetryPayment(ctx context.Context, paymentID id.PaymentID, req RetryRequest) (*payment.Attempt, error) {
	if e.gateway == nil {
		return nil, ErrNoGateway
	}
	prev, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var out *payment.Attempt
	err = e.withOrderLock(ctx, prev.OrderID, func() error {
		o, err := e.store.GetOrder(ctx, prev.OrderID)
		if err != nil {
			return err
		}
		if o.Status == order.StatusPaymentProcessing {
			if err := e.recoverOrder(ctx, o); err != nil {
				return err
			}
		}
		prev, err := e.store.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if prev.Status != payment.StatusFailed {
			return fmt.Errorf("%w: attempt is %s", ErrAttemptNotFailed, prev.Status)
		}
		if o.Status != order.StatusPaymentFailed {
			return &order.TransitionError{Transition: order.TransitionBeginPayment, From: o.Status, Err: order.ErrNotAwaitingPayment}
		}
		if prev.TimedOut && !prev.Reconciled {
			if err := e.reconcile(ctx, prev); err != nil {
				return err
			}
		}

		paid, attempts, err := e.netPaid(ctx, o)
		if err != nil {
			return err
		}
		if err := e.retry.CanRetry(o, attempts, e.now()); err != nil {
			return err
		}
		due, err := o.BalanceDue(paid)
		if err != nil {
			return err
		}
		if err := checkPaymentAmount(prev.Amount, due); err != nil {
			return err
		}

		inst := prev.Instrument
		if req.Instrument != nil {
			inst = *req.Instrument
		}
		a := e.newAttempt(o, prev.Amount, prev.Method, inst, prev.Metadata)
		a.RetryOf = prev.ID
		out, err = e.charge(ctx, o, a, due)
		return err
	})
	return out, err
}

// ReconcileAttempt asks the gateway what happened to an attempt whose
// outcome was never settled. A timed-out attempt stays Failed and a charge
// that settled after the timeout is reversed. An attempt an interrupted
// charge left Pending is finished from the gateway's record and the order
// leaves PaymentProcessing. Reconciling twice is a no-op.
func (e *Engine) ReconcileAttempt(ctx context.Context, paymentID id.PaymentID) (*payment.Attempt, error) {
	a, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	err = e.withOrderLock(ctx, a.OrderID, func() error {
		if a, err = e.store.GetPayment(ctx, paymentID); err != nil {
			return err
		}
		if a.Status == payment.StatusPending || a.Status == payment.StatusProcessing {
			o, err := e.store.GetOrder(ctx, a.OrderID)
			if err != nil {
				return err
			}
			if err := e.recoverOrder(ctx, o); err != nil {
				return err
			}
			a, err = e.store.GetPayment(ctx, paymentID)
			return err
		}
		if a.Status != payment.StatusFailed {
			return fmt.Errorf("%w: attempt is %s", ErrAttemptNotFailed, a.Status)
		}
		if !a.TimedOut || a.Reconciled {
			return nil
		}
		return e.reconcile(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// charge persists a new attempt, moves the order to PaymentProcessing, calls
// the gateway and settles both sides with the outcome. The caller holds the
// order lock.
func (e *Engine) charge(ctx context.Context, o *order.Order, a *payment.Attempt, due types.Money) (*payment.Attempt, error) {
	if err := o.BeginPayment(due); err != nil {
		return nil, err
	}
	if err := e.store.CreatePayment(ctx, a); err != nil {
		return nil, err
	}
	o.Touch(e.now())
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		e.abandonAttempt(ctx, a, err)
		return nil, err
	}
	if err := a.Start(); err != nil {
		return nil, err
	}

	res, gerr := e.callCharge(ctx, a)

	// The gateway has spoken (or not); the outcome is recorded even if the
	// caller has gone away.
	pctx := context.WithoutCancel(ctx)
	done := e.now()
	switch {
	case gerr != nil:
		reason := "gateway error: " + gerr.Error()
		if errors.Is(gerr, context.DeadlineExceeded) {
			reason = "gateway timeout"
		}
		_ = a.Fail(reason, true, done) //nolint:errcheck // attempt is Processing
	case !res.Success:
		_ = a.Fail(res.FailureReason, false, done) //nolint:errcheck // attempt is Processing
	default:
		_ = a.Complete(res.TransactionID, done) //nolint:errcheck // attempt is Processing
	}
	a.Touch(done)
	if err := e.settleAttempt(pctx, o, a); err != nil {
		return nil, err
	}
	return a, nil
}

// abandonAttempt fails an attempt that never reached the gateway because
// the order could not be moved to PaymentProcessing.
func (e *Engine) abandonAttempt(ctx context.Context, a *payment.Attempt, cause error) {
	now := e.now()
	_ = a.Fail("not sent: "+cause.Error(), false, now) //nolint:errcheck // attempt is Pending
	a.Reconciled = true
	a.Touch(now)
	if err := e.persist(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return e.store.UpdatePayment(ctx, a)
	}); err != nil {
		e.logger.Error("abandoned payment attempt not recorded",
			"order_id", a.OrderID.String(),
			"payment_id", a.ID.String(),
			"error", err,
		)
	}
}

// settleAttempt persists a finished attempt, moves the order out of
// PaymentProcessing to match the ledger and emits the outcome.
func (e *Engine) settleAttempt(ctx context.Context, o *order.Order, a *payment.Attempt) error {
	if err := e.persist(ctx, func(ctx context.Context) error {
		return e.store.UpdatePayment(ctx, a)
	}); err != nil {
		e.logger.Error("payment outcome not recorded",
			"order_id", o.ID.String(),
			"payment_id", a.ID.String(),
			"status", string(a.Status),
			"error", err,
		)
		return fmt.Errorf("settle: record outcome of %s: %w", a.ID, err)
	}

	if o.Status == order.StatusPaymentProcessing {
		paid, _, err := e.netPaid(ctx, o)
		if err != nil {
			return err
		}
		due, err := o.BalanceDue(paid)
		if err != nil {
			return err
		}
		if a.Status == payment.StatusCompleted {
			err = o.RecordPaymentSuccess(due)
		} else {
			err = o.RecordPaymentFailure(due)
		}
		if err != nil {
			return err
		}
		o.Touch(e.now())
		if err := e.persist(ctx, func(ctx context.Context) error {
			return e.store.UpdateOrder(ctx, o)
		}); err != nil {
			return fmt.Errorf("settle: settle order %s: %w", o.ID, err)
		}
	}

	if a.Status == payment.StatusCompleted {
		e.plugins.EmitPaymentCompleted(ctx, o, a)
		e.logger.Info("payment completed",
			"order_id", o.ID.String(),
			"payment_id", a.ID.String(),
			"amount", a.Amount.String(),
			"order_status", string(o.Status),
		)
	} else {
		e.plugins.EmitPaymentFailed(ctx, o, a)
		e.logger.Warn("payment failed",
			"order_id", o.ID.String(),
			"payment_id", a.ID.String(),
			"reason", a.FailureReason,
			"timed_out", a.TimedOut,
			"order_status", string(o.Status),
		)
	}
	return nil
}

// recoverOrder brings an order out of PaymentProcessing after a charge was
// interrupted between the gateway call and the writes that record it.
// Attempts still Pending or Processing are finished from the gateway's
// record of their idempotency key. The caller holds the order lock.
func (e *Engine) recoverOrder(ctx context.Context, o *order.Order) error {
	attempts, err := e.store.ListPayments(ctx, o.ID)
	if err != nil {
		return err
	}
	pctx := context.WithoutCancel(ctx)

	var last *payment.Attempt
	for _, a := range attempts {
		last = a
		if a.Status != payment.StatusPending && a.Status != payment.StatusProcessing {
			continue
		}
		if err := e.resolveStale(ctx, a); err != nil {
			return err
		}
		if err := e.persist(pctx, func(ctx context.Context) error {
			return e.store.UpdatePayment(ctx, a)
		}); err != nil {
			return err
		}
	}
	if o.Status != order.StatusPaymentProcessing {
		return nil
	}

	e.logger.Warn("recovering interrupted payment", "order_id", o.ID.String())
	if last != nil {
		return e.settleAttempt(pctx, o, last)
	}
	due, err := e.balanceDue(pctx, o)
	if err != nil {
		return err
	}
	if err := o.RecordPaymentFailure(due); err != nil {
		return err
	}
	o.Touch(e.now())
	return e.persist(pctx, func(ctx context.Context) error {
		return e.store.UpdateOrder(ctx, o)
	})
}

// resolveStale finishes a Pending or Processing attempt from the gateway's
// record. A charge the gateway never saw is failed as timed out, so a later
// retry looks it up again before charging.
func (e *Engine) resolveStale(ctx context.Context, a *payment.Attempt) error {
	lk, ok := e.gateway.(payment.Lookuper)
	if !ok {
		return fmt.Errorf("%w: gateway cannot look up charges", ErrOutcomeUnknown)
	}
	res, err := lk.Lookup(ctx, a.IdempotencyKey)
	if err != nil && !errors.Is(err, payment.ErrChargeNotFound) {
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}

	if a.Status == payment.StatusPending {
		_ = a.Start() //nolint:errcheck // attempt is Pending
	}
	now := e.now()
	switch {
	case err != nil:
		_ = a.Fail("charge interrupted", true, now) //nolint:errcheck // attempt is Processing
	case res.Success:
		_ = a.Complete(res.TransactionID, now) //nolint:errcheck // attempt is Processing
	default:
		_ = a.Fail(res.FailureReason, false, now) //nolint:errcheck // attempt is Processing
	}
	a.Touch(now)
	return nil
}

func (e *Engine) callCharge(ctx context.Context, a *payment.Attempt) (*payment.ChargeResult, error) {
	ctx, span := e.tracer.Start(ctx, "settle.gateway.charge", trace.WithAttributes(
		attribute.String("settle.order_id", a.OrderID.String()),
		attribute.String("settle.payment_id", a.ID.String()),
		attribute.Int64("settle.amount", a.Amount.Amount),
		attribute.String("settle.currency", a.Amount.Currency),
	))
	defer span.End()

	req := payment.ChargeRequest{
		Amount:          a.Amount,
		InstrumentToken: a.Instrument.Token,
		Method:          a.Method,
		IdempotencyKey:  a.IdempotencyKey,
		OrderID:         a.OrderID.String(),
	}
	res, err := callGateway(ctx, e.gatewayTimeout, func(ctx context.Context) (*payment.ChargeResult, error) {
		return e.gateway.Charge(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "charge outcome unknown")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("settle.charge.success", res.Success))
	if !res.Success {
		span.SetStatus(codes.Error, "charge declined")
	}
	return res, nil
}

var errNoGatewayResult = errors.New("settle: gateway returned no result")

// callGateway runs call under the gateway timeout and returns once the
// deadline passes even if the gateway ignores ctx. A reply that arrives
// after that is dropped; Lookup finds it when the attempt is reconciled.
func callGateway[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (*T, error)) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		res *T
		err error
	}
	done := make(chan reply, 1)

	go func() {
		res, err := call(ctx)
		done <- reply{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.res == nil {
			r.err = errNoGatewayResult
		}
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// persistTries bounds the writes that record something the gateway has
// already done.
const persistTries = 3

// persist retries write a few times before giving up. Version conflicts are
// returned at once.
func (e *Engine) persist(ctx context.Context, write func(context.Context) error) error {
	var err error
	for i := 0; i < persistTries; i++ {
		if err = write(ctx); err == nil || errors.Is(err, ErrConcurrentUpdate) {
			return err
		}
		if i < persistTries-1 {
			e.logger.Warn("store write failed, retrying", "try", i+1, "error", err)
			time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
		}
	}
	return err
}

// reconcile settles the outcome of a timed-out attempt. The caller holds the
// order lock.
func (e *Engine) reconcile(ctx context.Context, a *payment.Attempt) error {
	lk, ok := e.gateway.(payment.Lookuper)
	if !ok {
		return fmt.Errorf("%w: gateway cannot look up charges", ErrOutcomeUnknown)
	}

	res, err := lk.Lookup(ctx, a.IdempotencyKey)
	switch {
	case errors.Is(err, payment.ErrChargeNotFound):
	case err != nil:
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	case res.Success:
		rr, err := e.callRefund(ctx, payment.RefundRequest{
			TransactionID:  res.TransactionID,
			Amount:         a.Amount,
			IdempotencyKey: "reversal-" + a.IdempotencyKey,
			Reason:         "reversal of charge settled after timeout",
		})
		if err != nil {
			return fmt.Errorf("%w: reversal: %w", ErrRefundFailed, err)
		}
		if !rr.Success {
			return fmt.Errorf("%w: reversal declined: %s", ErrRefundFailed, rr.FailureReason)
		}
		a.TransactionID = res.TransactionID
		a.ReversalID = rr.RefundID
	}

	a.Reconciled = true
	a.Touch(e.now())
	if err := e.persist(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return e.store.UpdatePayment(ctx, a)
	}); err != nil {
		return err
	}
	e.logger.Info("payment reconciled",
		"order_id", a.OrderID.String(),
		"payment_id", a.ID.String(),
		"reversed", a.ReversalID != "",
	)
	return nil
}

// ──────────────────────────────────────────────────
// Refunds
// ──────────────────────────────────────────────────

// Refund returns amount of a completed attempt to the customer. When the
// order's net paid amount reaches zero the order moves to Refunded.
func (e *Engine) Refund(ctx context.Context, paymentID id.PaymentID, amount types.Money, reason string) (*payment.Attempt, error) {
	if e.gateway == nil {
		return nil, ErrNoGateway
	}
	a, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	err = e.withOrderLock(ctx, a.OrderID, func() error {
		if a, err = e.store.GetPayment(ctx, paymentID); err != nil {
			return err
		}
		if err := a.CheckRefund(amount); err != nil {
			return err
		}
		o, err := e.store.GetOrder(ctx, a.OrderID)
		if err != nil {
			return err
		}

		rid := e.ids.New(id.PrefixRefund)
		res, err := e.callRefund(ctx, payment.RefundRequest{
			TransactionID:  a.TransactionID,
			Amount:         amount,
			IdempotencyKey: rid.String(),
			Reason:         reason,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRefundFailed, err)
		}
		if !res.Success {
			return fmt.Errorf("%w: %s", ErrRefundFailed, res.FailureReason)
		}

		pctx := context.WithoutCancel(ctx)
		now := e.now()
		r := payment.Refund{ID: rid, Amount: amount, Reason: reason, GatewayRefundID: res.RefundID, CreatedAt: now}
		if err := a.ApplyRefund(r); err != nil {
			return err
		}
		a.Touch(now)
		if err := e.persist(pctx, func(ctx context.Context) error {
			return e.store.UpdatePayment(ctx, a)
		}); err != nil {
			e.logger.Error("refund issued but not recorded",
				"order_id", o.ID.String(),
				"payment_id", a.ID.String(),
				"gateway_refund_id", res.RefundID,
				"amount", amount.String(),
				"error", err,
			)
			return fmt.Errorf("settle: record refund %s: %w", res.RefundID, err)
		}

		paid, _, err := e.netPaid(pctx, o)
		if err != nil {
			return err
		}
		if o.ApplyRefund(paid) {
			o.Touch(now)
			if err := e.persist(pctx, func(ctx context.Context) error {
				return e.store.UpdateOrder(ctx, o)
			}); err != nil {
				return err
			}
			e.plugins.EmitOrderRefunded(pctx, o)
		}
		e.plugins.EmitPaymentRefunded(pctx, o, a, r)
		e.logger.Info("payment refunded",
			"order_id", o.ID.String(),
			"payment_id", a.ID.String(),
			"amount", amount.String(),
			"order_status", string(o.Status),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) callRefund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	ctx, span := e.tracer.Start(ctx, "settle.gateway.refund", trace.WithAttributes(
		attribute.String("settle.transaction_id", req.TransactionID),
		attribute.Int64("settle.amount", req.Amount.Amount),
	))
	defer span.End()

	res, err := callGateway(ctx, e.gatewayTimeout, func(ctx context.Context) (*payment.RefundResult, error) {
		return e.gateway.Refund(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund outcome unknown")
		return nil, err
	}
	if !res.Success {
		span.SetStatus(codes.Error, "refund declined")
	}
	return res, nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetPayment returns one attempt.
func (e *Engine) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Attempt, error) {
	return e.store.GetPayment(ctx, paymentID)
}

// ListPayments returns the order's attempts, oldest first.
func (e *Engine) ListPayments(ctx context.Context, orderID id.OrderID) ([]*payment.Attempt, error) {
	return e.store.ListPayments(ctx, orderID)
}

// TotalPaid returns the order's completed payments net of refunds.
func (e *Engine) TotalPaid(ctx context.Context, orderID id.OrderID) (types.Money, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return types.Money{}, err
	}
	paid, _, err := e.netPaid(ctx, o)
	return paid, err
}

// BalanceDue returns what the customer still owes on the order.
func (e *Engine) BalanceDue(ctx context.Context, orderID id.OrderID) (types.Money, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return types.Money{}, err
	}
	return e.balanceDue(ctx, o)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (e *Engine) newAttempt(o *order.Order, amount types.Money, method payment.Method, inst payment.Instrument, meta map[string]string) *payment.Attempt {
	pid := e.ids.New(id.PrefixPayment)
	return &payment.Attempt{
		Entity:         types.NewEntity(e.now()),
		ID:             pid,
		OrderID:        o.ID,
		Amount:         amount,
		Method:         method,
		Instrument:     inst,
		Status:         payment.StatusPending,
		IdempotencyKey: pid.String(),
		RefundedAmount: types.Zero(o.Currency),
		Metadata:       meta,
	}
}

func checkPaymentAmount(amount, due types.Money) error {
	if !amount.SameCurrency(due) {
		return fmt.Errorf("%w: payment in %s, order in %s", ErrCurrencyMismatch, amount.Currency, due.Currency)
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Amount > due.Amount {
		return fmt.Errorf("%w: %s exceeds balance %s", ErrAmountExceedsBalance, amount, due)
	}
	return nil
}
