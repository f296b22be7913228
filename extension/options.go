package extension

import (
	"time"

	"github.com/xraph/settle"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/store"
)

// Option configures the settle Forge extension.
type Option func(*Extension)

// WithStore sets the store for the settle engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway sets the payment gateway.
func WithGateway(g payment.Gateway) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, settle.WithGateway(g))
	}
}

// WithEngineOption passes a settle.Option through to the underlying engine.
func WithEngineOption(opt settle.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a settle plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, settle.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP handler registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for settle routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGatewayTimeout bounds every gateway call.
func WithGatewayTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.GatewayTimeout = d }
}

// WithRetryLimit sets how many failures within lookback block retries.
func WithRetryLimit(maxFailures int, lookback time.Duration) Option {
	return func(e *Extension) {
		e.config.RetryMaxFailures = maxFailures
		e.config.RetryLookback = lookback
	}
}

// WithInvoiceDueDays sets the invoice payment term.
func WithInvoiceDueDays(days int) Option {
	return func(e *Extension) { e.config.InvoiceDueDays = days }
}

// WithRedisAddr enables the distributed order lock.
func WithRedisAddr(addr string) Option {
	return func(e *Extension) { e.config.RedisAddr = addr }
}
