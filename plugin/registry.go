package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// Registry holds registered plugins and dispatches hooks to them. Hook
// lists are cached per interface at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit             []OnInit
	onShutdown         []OnShutdown
	onOrderCreated     []OnOrderCreated
	onOrderSubmitted   []OnOrderSubmitted
	onOrderCompleted   []OnOrderCompleted
	onOrderCancelled   []OnOrderCancelled
	onOrderRefunded    []OnOrderRefunded
	onPaymentCompleted []OnPaymentCompleted
	onPaymentFailed    []OnPaymentFailed
	onPaymentRefunded  []OnPaymentRefunded
	onInvoiceGenerated []OnInvoiceGenerated
	onInvoiceSent      []OnInvoiceSent
	onInvoicePaid      []OnInvoicePaid
	onInvoiceCancelled []OnInvoiceCancelled
	taxCalculators     []TaxCalculator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default(), timeout: DefaultHookTimeout}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds p and caches the hooks it implements. Names must be unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnOrderCreated); ok {
		r.onOrderCreated = append(r.onOrderCreated, v)
		hooks = append(hooks, "OnOrderCreated")
	}
	if v, ok := p.(OnOrderSubmitted); ok {
		r.onOrderSubmitted = append(r.onOrderSubmitted, v)
		hooks = append(hooks, "OnOrderSubmitted")
	}
	if v, ok := p.(OnOrderCompleted); ok {
		r.onOrderCompleted = append(r.onOrderCompleted, v)
		hooks = append(hooks, "OnOrderCompleted")
	}
	if v, ok := p.(OnOrderCancelled); ok {
		r.onOrderCancelled = append(r.onOrderCancelled, v)
		hooks = append(hooks, "OnOrderCancelled")
	}
	if v, ok := p.(OnOrderRefunded); ok {
		r.onOrderRefunded = append(r.onOrderRefunded, v)
		hooks = append(hooks, "OnOrderRefunded")
	}
	if v, ok := p.(OnPaymentCompleted); ok {
		r.onPaymentCompleted = append(r.onPaymentCompleted, v)
		hooks = append(hooks, "OnPaymentCompleted")
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
		hooks = append(hooks, "OnPaymentFailed")
	}
	if v, ok := p.(OnPaymentRefunded); ok {
		r.onPaymentRefunded = append(r.onPaymentRefunded, v)
		hooks = append(hooks, "OnPaymentRefunded")
	}
	if v, ok := p.(OnInvoiceGenerated); ok {
		r.onInvoiceGenerated = append(r.onInvoiceGenerated, v)
		hooks = append(hooks, "OnInvoiceGenerated")
	}
	if v, ok := p.(OnInvoiceSent); ok {
		r.onInvoiceSent = append(r.onInvoiceSent, v)
		hooks = append(hooks, "OnInvoiceSent")
	}
	if v, ok := p.(OnInvoicePaid); ok {
		r.onInvoicePaid = append(r.onInvoicePaid, v)
		hooks = append(hooks, "OnInvoicePaid")
	}
	if v, ok := p.(OnInvoiceCancelled); ok {
		r.onInvoiceCancelled = append(r.onInvoiceCancelled, v)
		hooks = append(hooks, "OnInvoiceCancelled")
	}
	if v, ok := p.(TaxCalculator); ok {
		r.taxCalculators = append(r.taxCalculators, v)
		hooks = append(hooks, "TaxCalculator")
	}

	r.logger.Info("plugin registered", "name", p.Name(), "interfaces", hooks)
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// TaxCalculator returns the first registered tax calculator, or nil.
func (r *Registry) TaxCalculator() TaxCalculator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.taxCalculators) == 0 {
		return nil
	}
	return r.taxCalculators[0]
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// dispatch runs call for every hook in the snapshot taken under the read
// lock. Failures are logged, never returned.
func dispatch[T Plugin](r *Registry, ctx context.Context, hook string, list *[]T, call func(T) error) {
	r.mu.RLock()
	hooks := *list
	r.mu.RUnlock()

	for _, h := range hooks {
		h := h
		if err := r.callWithTimeout(ctx, h.Name(), func() error { return call(h) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed", "plugin", h.Name(), "error", err)
		}
	}
}

func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	dispatch(r, ctx, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(r, ctx, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

func (r *Registry) EmitOrderCreated(ctx context.Context, o *order.Order) {
	dispatch(r, ctx, "OnOrderCreated", &r.onOrderCreated, func(p OnOrderCreated) error { return p.OnOrderCreated(ctx, o) })
}

func (r *Registry) EmitOrderSubmitted(ctx context.Context, o *order.Order) {
	dispatch(r, ctx, "OnOrderSubmitted", &r.onOrderSubmitted, func(p OnOrderSubmitted) error { return p.OnOrderSubmitted(ctx, o) })
}

func (r *Registry) EmitOrderCompleted(ctx context.Context, o *order.Order) {
	dispatch(r, ctx, "OnOrderCompleted", &r.onOrderCompleted, func(p OnOrderCompleted) error { return p.OnOrderCompleted(ctx, o) })
}

func (r *Registry) EmitOrderCancelled(ctx context.Context, o *order.Order, reason string) {
	dispatch(r, ctx, "OnOrderCancelled", &r.onOrderCancelled, func(p OnOrderCancelled) error { return p.OnOrderCancelled(ctx, o, reason) })
}

func (r *Registry) EmitOrderRefunded(ctx context.Context, o *order.Order) {
	dispatch(r, ctx, "OnOrderRefunded", &r.onOrderRefunded, func(p OnOrderRefunded) error { return p.OnOrderRefunded(ctx, o) })
}

func (r *Registry) EmitPaymentCompleted(ctx context.Context, o *order.Order, a *payment.Attempt) {
	dispatch(r, ctx, "OnPaymentCompleted", &r.onPaymentCompleted, func(p OnPaymentCompleted) error { return p.OnPaymentCompleted(ctx, o, a) })
}

func (r *Registry) EmitPaymentFailed(ctx context.Context, o *order.Order, a *payment.Attempt) {
	dispatch(r, ctx, "OnPaymentFailed", &r.onPaymentFailed, func(p OnPaymentFailed) error { return p.OnPaymentFailed(ctx, o, a) })
}

func (r *Registry) EmitPaymentRefunded(ctx context.Context, o *order.Order, a *payment.Attempt, ref payment.Refund) {
	dispatch(r, ctx, "OnPaymentRefunded", &r.onPaymentRefunded, func(p OnPaymentRefunded) error { return p.OnPaymentRefunded(ctx, o, a, ref) })
}

func (r *Registry) EmitInvoiceGenerated(ctx context.Context, inv *invoice.Invoice) {
	dispatch(r, ctx, "OnInvoiceGenerated", &r.onInvoiceGenerated, func(p OnInvoiceGenerated) error { return p.OnInvoiceGenerated(ctx, inv) })
}

func (r *Registry) EmitInvoiceSent(ctx context.Context, inv *invoice.Invoice) {
	dispatch(r, ctx, "OnInvoiceSent", &r.onInvoiceSent, func(p OnInvoiceSent) error { return p.OnInvoiceSent(ctx, inv) })
}

func (r *Registry) EmitInvoicePaid(ctx context.Context, inv *invoice.Invoice) {
	dispatch(r, ctx, "OnInvoicePaid", &r.onInvoicePaid, func(p OnInvoicePaid) error { return p.OnInvoicePaid(ctx, inv) })
}

func (r *Registry) EmitInvoiceCancelled(ctx context.Context, inv *invoice.Invoice) {
	dispatch(r, ctx, "OnInvoiceCancelled", &r.onInvoiceCancelled, func(p OnInvoiceCancelled) error { return p.OnInvoiceCancelled(ctx, inv) })
}

// callWithTimeout runs fn, giving up after the registry timeout or when ctx
// ends. Hooks must never stall a payment.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	t := time.NewTimer(r.timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return err
	case <-t.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
