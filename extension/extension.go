// Package extension provides the Forge extension adapter for settle.
//
// It implements the forge.Extension interface to integrate the settle
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.settle" or "settle" keys.
package extension

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/settle"
	"github.com/xraph/settle/api"
	"github.com/xraph/settle/lock/redislock"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "settle"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Order payment reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts settle as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *settle.Engine
	store      store.Store
	api        *api.Handler
	handler    http.Handler
	engineOpts []settle.Option
}

// New creates a new settle Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *settle.Engine { return e.engine }

// Handler returns the HTTP API mounted at the configured base path, or nil
// when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = settle.New(e.store, e.buildEngineOpts()...)
	e.handler = e.buildHandler()

	if err := vessel.Provide(fapp.Container(), func() (*settle.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	if e.api == nil {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (*api.Handler, error) {
		return e.api, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("settle: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(ctx); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("settle: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs settle.Option values from the resolved config.
// Pass-through options come last so they win over config.
func (e *Extension) buildEngineOpts() []settle.Option {
	opts := make([]settle.Option, 0, len(e.engineOpts)+5)

	opts = append(opts,
		settle.WithGatewayTimeout(e.config.GatewayTimeout),
		settle.WithInvoiceDueDays(e.config.InvoiceDueDays),
		settle.WithCurrency(e.config.Currency),
		settle.WithRetryPolicy(payment.DefaultRetryPolicy{
			MaxFailures: e.config.RetryMaxFailures,
			Lookback:    e.config.RetryLookback,
		}),
	)

	if e.config.RedisAddr != "" {
		opts = append(opts, settle.WithLocker(redislock.NewFromAddr(e.config.RedisAddr)))
	}

	return append(opts, e.engineOpts...)
}

func (e *Extension) buildHandler() http.Handler {
	if e.config.DisableRoutes {
		return nil
	}
	e.api = api.NewHandler(e.engine, api.WithCurrency(e.config.Currency))
	r := chi.NewRouter()
	r.Route(e.config.BasePath, e.api.Routes)
	return r
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("settle: configuration is required but not found in config files; " +
				"ensure 'extensions.settle' or 'settle' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("settle: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("gateway_timeout", e.config.GatewayTimeout),
		forge.F("retry_max_failures", e.config.RetryMaxFailures),
		forge.F("retry_lookback", e.config.RetryLookback),
		forge.F("invoice_due_days", e.config.InvoiceDueDays),
		forge.F("currency", e.config.Currency),
		forge.F("redis_lock", e.config.RedisAddr != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.settle", "settle"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("settle: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("settle: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.GatewayTimeout == 0 {
		cfg.GatewayTimeout = defaults.GatewayTimeout
	}
	if cfg.RetryMaxFailures == 0 {
		cfg.RetryMaxFailures = defaults.RetryMaxFailures
	}
	if cfg.RetryLookback == 0 {
		cfg.RetryLookback = defaults.RetryLookback
	}
	if cfg.InvoiceDueDays == 0 {
		cfg.InvoiceDueDays = defaults.InvoiceDueDays
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and bool
// flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.RedisAddr == "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}

	if yamlConfig.GatewayTimeout == 0 {
		yamlConfig.GatewayTimeout = programmaticConfig.GatewayTimeout
	}
	if yamlConfig.RetryMaxFailures == 0 {
		yamlConfig.RetryMaxFailures = programmaticConfig.RetryMaxFailures
	}
	if yamlConfig.RetryLookback == 0 {
		yamlConfig.RetryLookback = programmaticConfig.RetryLookback
	}
	if yamlConfig.InvoiceDueDays == 0 {
		yamlConfig.InvoiceDueDays = programmaticConfig.InvoiceDueDays
	}

	return mergeWithDefaults(yamlConfig)
}
