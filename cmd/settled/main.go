// Command settled runs the settle engine as a standalone HTTP service backed
// by the in-memory store and the simulated payment gateway.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/xraph/settle"
	"github.com/xraph/settle/api"
	audithook "github.com/xraph/settle/audit_hook"
	"github.com/xraph/settle/coupon"
	"github.com/xraph/settle/customer"
	"github.com/xraph/settle/gateway/fake"
	"github.com/xraph/settle/kafkahook"
	"github.com/xraph/settle/lock/redislock"
	"github.com/xraph/settle/observability"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/telemetry"
)

const serviceName = "settled"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := telemetry.NewLogger(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", serviceName), endpoint)
		if err != nil {
			logger.Error("failed to initialise tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("tracer shutdown error", "error", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []settle.Option{
		settle.WithLogger(logger),
		settle.WithGateway(fake.New()),
		settle.WithCustomerDirectory(customer.AllowAll),
		settle.WithPromoCodes(coupon.DefaultBook()),
		settle.WithTracer(otel.Tracer(serviceName)),
		settle.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		settle.WithPlugin(audithook.New(audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
			logger.Info("audit",
				"action", evt.Action,
				"resource", evt.Resource,
				"resource_id", evt.ResourceID,
				"outcome", evt.Outcome,
			)
			return nil
		}), audithook.WithLogger(logger))),
	}

	if addr := os.Getenv("SETTLE_REDIS_ADDR"); addr != "" {
		opts = append(opts, settle.WithLocker(redislock.NewFromAddr(addr, redislock.WithLogger(logger))))
		logger.Info("using redis order locks", "addr", addr)
	}
	if brokers := os.Getenv("SETTLE_KAFKA_BROKERS"); brokers != "" {
		topic := getEnv("SETTLE_KAFKA_TOPIC", "settle.events")
		opts = append(opts, settle.WithPlugin(kafkahook.New(strings.Split(brokers, ","), topic, kafkahook.WithLogger(logger))))
		logger.Info("publishing events to kafka", "brokers", brokers, "topic", topic)
	}

	eng := settle.New(memory.New(), opts...)
	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := eng.Store().Ping(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Route("/v1", api.NewHandler(eng, api.WithLogger(logger)).Routes)

	srv := &http.Server{
		Addr:              getEnv("SETTLE_HTTP_ADDR", ":8080"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("settle http running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error("engine shutdown error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
