package extension

import "time"

// Config holds the settle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.settle" or "settle" keys).
type Config struct {
	// DisableRoutes prevents HTTP handler registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for settle routes (default: "/settle").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// GatewayTimeout bounds every gateway call (default: 30s).
	GatewayTimeout time.Duration `json:"gateway_timeout" mapstructure:"gateway_timeout" yaml:"gateway_timeout"`

	// RetryMaxFailures is how many failed attempts within RetryLookback
	// block further retries (default: 3).
	RetryMaxFailures int `json:"retry_max_failures" mapstructure:"retry_max_failures" yaml:"retry_max_failures"`

	// RetryLookback is the window failed attempts are counted in (default: 24h).
	RetryLookback time.Duration `json:"retry_lookback" mapstructure:"retry_lookback" yaml:"retry_lookback"`

	// InvoiceDueDays is the gap between issue and due date (default: 30).
	InvoiceDueDays int `json:"invoice_due_days" mapstructure:"invoice_due_days" yaml:"invoice_due_days"`

	// Currency is the default order currency (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// RedisAddr, when set, replaces the in-process order lock with a Redis
	// lock shared by every instance.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:         "/settle",
		GatewayTimeout:   30 * time.Second,
		RetryMaxFailures: 3,
		RetryLookback:    24 * time.Hour,
		InvoiceDueDays:   30,
		Currency:         "usd",
	}
}
