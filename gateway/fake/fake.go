// Package fake is a scripted, in-memory payment.Gateway. Charges are
// de-duplicated by idempotency key the way real processors do.
package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// Outcome is what the gateway does with the next new charge.
type Outcome int

const (
	// Approve settles the charge.
	Approve Outcome = iota
	// Decline rejects the charge with a reason.
	Decline
	// Fail returns an error without recording anything.
	Fail
	// Hang blocks until the caller's context ends and records nothing.
	Hang
	// LandAfterTimeout blocks until the caller gives up, but the charge
	// settles on the gateway side anyway.
	LandAfterTimeout
)

// Step scripts one charge.
type Step struct {
	Outcome Outcome
	Reason  string
	Err     error
}

// ErrUnavailable is returned by Fail steps without an explicit error.
var ErrUnavailable = errors.New("fake gateway: unavailable")

// Gateway implements payment.Gateway and payment.Lookuper.
type Gateway struct {
	mu       sync.Mutex
	script   []Step
	charges  map[string]*payment.ChargeResult
	settled  map[string]types.Money
	refunded map[string]types.Money
	calls    int

	// LookupErr, when set, is returned by Lookup.
	LookupErr error
	// DeclineRefunds makes every refund fail.
	DeclineRefunds bool
}

// New returns a gateway that approves every charge unless scripted
// otherwise.
func New(steps ...Step) *Gateway {
	return &Gateway{
		script:   steps,
		charges:  make(map[string]*payment.ChargeResult),
		settled:  make(map[string]types.Money),
		refunded: make(map[string]types.Money),
	}
}

// Queue appends steps to the script.
func (g *Gateway) Queue(steps ...Step) {
	g.mu.Lock()
	g.script = append(g.script, steps...)
	g.mu.Unlock()
}

// Calls returns how many charge requests reached the gateway.
func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Refunded returns the total refunded against transactionID.
func (g *Gateway) Refunded(transactionID string) types.Money {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[transactionID]
}

// Charge implements payment.Gateway.
func (g *Gateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.mu.Lock()
	g.calls++
	if prior, ok := g.charges[req.IdempotencyKey]; ok {
		g.mu.Unlock()
		res := *prior
		return &res, nil
	}
	step := Step{Outcome: Approve}
	if len(g.script) > 0 {
		step, g.script = g.script[0], g.script[1:]
	}
	g.mu.Unlock()

	switch step.Outcome {
	case Decline:
		reason := step.Reason
		if reason == "" {
			reason = "card declined"
		}
		return g.record(req, &payment.ChargeResult{Success: false, FailureReason: reason}), nil
	case Fail:
		if step.Err != nil {
			return nil, step.Err
		}
		return nil, ErrUnavailable
	case Hang:
		<-ctx.Done()
		return nil, ctx.Err()
	case LandAfterTimeout:
		g.record(req, newApproval())
		<-ctx.Done()
		return nil, ctx.Err()
	default:
		return g.record(req, newApproval()), nil
	}
}

// Refund implements payment.Gateway.
func (g *Gateway) Refund(_ context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.DeclineRefunds {
		return &payment.RefundResult{Success: false, FailureReason: "refund declined"}, nil
	}
	settled, ok := g.settled[req.TransactionID]
	if !ok {
		return &payment.RefundResult{Success: false, FailureReason: "unknown transaction"}, nil
	}
	done := g.refunded[req.TransactionID]
	if done.Currency == "" {
		done = types.Zero(settled.Currency)
	}
	next, err := done.Add(req.Amount)
	if err != nil {
		return nil, err
	}
	if next.Amount > settled.Amount {
		return &payment.RefundResult{Success: false, FailureReason: "refund exceeds charge"}, nil
	}
	g.refunded[req.TransactionID] = next
	return &payment.RefundResult{Success: true, RefundID: "re_" + uuid.NewString()}, nil
}

// Lookup implements payment.Lookuper.
func (g *Gateway) Lookup(_ context.Context, idempotencyKey string) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.LookupErr != nil {
		return nil, g.LookupErr
	}
	res, ok := g.charges[idempotencyKey]
	if !ok {
		return nil, payment.ErrChargeNotFound
	}
	out := *res
	return &out, nil
}

func newApproval() *payment.ChargeResult {
	return &payment.ChargeResult{Success: true, TransactionID: "txn_" + uuid.NewString()}
}

func (g *Gateway) record(req payment.ChargeRequest, res *payment.ChargeResult) *payment.ChargeResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[req.IdempotencyKey] = res
	if res.Success {
		g.settled[res.TransactionID] = req.Amount
	}
	out := *res
	return &out
}
