package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/settle/coupon"
	"github.com/xraph/settle/customer"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/lock"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plan"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// Defaults applied by New.
const (
	DefaultGatewayTimeout = 30 * time.Second
	DefaultCurrency       = "usd"
	tracerName            = "github.com/xraph/settle"
)

// Engine reconciles orders, their payment ledger and invoices. All work on
// one order runs under that order's lock; different orders never contend.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer

	clock     types.Clock
	ids       id.Generator
	gateway   payment.Gateway
	locker    lock.Locker
	retry     payment.RetryPolicy
	catalog   plan.Catalog
	customers customer.Directory
	promos    coupon.Book

	gatewayTimeout time.Duration
	invoiceDueDays int
	currency       string
}

// New creates an Engine on s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
		clock:          types.SystemClock{},
		ids:            id.TypeIDGenerator{},
		locker:         lock.NewKeyedMutex(),
		retry:          payment.NewDefaultRetryPolicy(),
		customers:      customer.AllowAll,
		promos:         coupon.DefaultBook(),
		gatewayTimeout: DefaultGatewayTimeout,
		invoiceDueDays: invoice.DefaultDueDays,
		currency:       DefaultCurrency,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source.
func WithClock(c types.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the identity source.
func WithIDGenerator(g id.Generator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithGateway sets the payment gateway. Without one, payments fail with
// ErrNoGateway.
func WithGateway(g payment.Gateway) Option {
	return func(e *Engine) { e.gateway = g }
}

// WithLocker replaces the in-process per-order lock, e.g. with a
// redislock.Locker when several processes share a store.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithRetryPolicy sets the policy consulted by RetryPayment.
func WithRetryPolicy(p payment.RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithCatalog sets the plan catalog used by AddPlanItem.
func WithCatalog(c plan.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithCustomerDirectory sets the directory consulted by CreateOrder.
func WithCustomerDirectory(d customer.Directory) Option {
	return func(e *Engine) { e.customers = d }
}

// WithPromoCodes sets the promo code book.
func WithPromoCodes(b coupon.Book) Option {
	return func(e *Engine) { e.promos = b }
}

// WithGatewayTimeout bounds each gateway call. A charge that runs past it
// is recorded as a failed, timed-out attempt.
func WithGatewayTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.gatewayTimeout = d
		}
	}
}

// WithInvoiceDueDays sets the payment term for generated invoices.
func WithInvoiceDueDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.invoiceDueDays = days
		}
	}
}

// WithTracer sets the tracer used for gateway spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithCurrency sets the default currency for new orders.
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		if currency != "" {
			e.currency = currency
		}
	}
}

// Start migrates the store and initialises plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("settle: migrate: %w", err)
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("settle started",
		"gateway_timeout", e.gatewayTimeout,
		"invoice_due_days", e.invoiceDueDays,
		"currency", e.currency,
		"plugins", e.plugins.Count(),
	)
	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop(ctx context.Context) error {
	e.plugins.EmitShutdown(ctx)
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// withOrderLock runs fn while holding the order's lock.
func (e *Engine) withOrderLock(ctx context.Context, orderID id.OrderID, fn func() error) error {
	unlock, err := e.locker.Lock(ctx, orderID.String())
	if err != nil {
		return fmt.Errorf("settle: lock order %s: %w", orderID, err)
	}
	defer unlock()
	return fn()
}

func (e *Engine) now() time.Time { return e.clock.Now() }
