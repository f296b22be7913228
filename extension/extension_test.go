package extension

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{BasePath: "/billing", RetryMaxFailures: 5})
	def := DefaultConfig()

	if got.BasePath != "/billing" {
		t.Errorf("BasePath: got %q, want /billing", got.BasePath)
	}
	if got.RetryMaxFailures != 5 {
		t.Errorf("RetryMaxFailures: got %d, want 5", got.RetryMaxFailures)
	}
	if got.GatewayTimeout != def.GatewayTimeout {
		t.Errorf("GatewayTimeout: got %s, want %s", got.GatewayTimeout, def.GatewayTimeout)
	}
	if got.RetryLookback != def.RetryLookback {
		t.Errorf("RetryLookback: got %s, want %s", got.RetryLookback, def.RetryLookback)
	}
	if got.InvoiceDueDays != def.InvoiceDueDays || got.Currency != def.Currency {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name  string
		yaml  Config
		prog  Config
		check func(t *testing.T, c Config)
	}{
		{
			name: "yaml wins",
			yaml: Config{GatewayTimeout: 5 * time.Second, Currency: "eur"},
			prog: Config{GatewayTimeout: time.Minute, Currency: "gbp"},
			check: func(t *testing.T, c Config) {
				if c.GatewayTimeout != 5*time.Second || c.Currency != "eur" {
					t.Errorf("got %s %s", c.GatewayTimeout, c.Currency)
				}
			},
		},
		{
			name: "programmatic fills gaps",
			yaml: Config{},
			prog: Config{RedisAddr: "localhost:6379", InvoiceDueDays: 14},
			check: func(t *testing.T, c Config) {
				if c.RedisAddr != "localhost:6379" || c.InvoiceDueDays != 14 {
					t.Errorf("got %q %d", c.RedisAddr, c.InvoiceDueDays)
				}
			},
		},
		{
			name: "bool flags override",
			yaml: Config{},
			prog: Config{DisableRoutes: true, DisableMigrate: true},
			check: func(t *testing.T, c Config) {
				if !c.DisableRoutes || !c.DisableMigrate {
					t.Errorf("flags lost: %+v", c)
				}
			},
		},
		{
			name: "defaults last",
			check: func(t *testing.T, c Config) {
				if c.BasePath != DefaultConfig().BasePath {
					t.Errorf("BasePath: got %q", c.BasePath)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mergeConfigurations(tt.yaml, tt.prog))
		})
	}
}

func TestBuildEngineOpts(t *testing.T) {
	e := &Extension{config: DefaultConfig()}
	e.engineOpts = append(e.engineOpts, settle.WithCurrency("eur"))
	if got := len(e.buildEngineOpts()); got != 5 {
		t.Errorf("opts without redis: got %d, want 5", got)
	}

	e.config.RedisAddr = "localhost:6379"
	if got := len(e.buildEngineOpts()); got != 6 {
		t.Errorf("opts with redis: got %d, want 6", got)
	}
}

func TestBuildHandler(t *testing.T) {
	eng := settle.New(memory.New(), settle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	t.Run("mounted at base path", func(t *testing.T) {
		e := &Extension{config: DefaultConfig(), engine: eng}
		h := e.buildHandler()
		if h == nil || e.api == nil {
			t.Fatal("expected handler")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settle/orders", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET /settle/orders: got %d", rec.Code)
		}
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET /orders outside base path: got %d", rec.Code)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DisableRoutes = true
		e := &Extension{config: cfg, engine: eng}
		if e.buildHandler() != nil {
			t.Error("routes disabled but handler built")
		}
	})
}
