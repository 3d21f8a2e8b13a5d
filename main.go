package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zhima-Mochi/shopfast/internal/application/alerting"
	"github.com/Zhima-Mochi/shopfast/internal/application/fulfillment"
	"github.com/Zhima-Mochi/shopfast/internal/config"
	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopfast/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/gateway"
	httptransport "github.com/Zhima-Mochi/shopfast/internal/infrastructure/http"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/id"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/shopfast/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/statuscache"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)
	if s, ok := baseLogger.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}

	registry := prometrics.New("shopfast", "")
	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		baseLogger,
		buildCounters(registry),
		buildHistograms(registry),
		buildGauges(registry),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, ledger, err := buildStores(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Error("storage_init_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}

	bus := outbox.NewBus(baseLogger)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	var publisher domoutbox.Publisher = bus
	if len(cfg.KafkaBrokers) > 0 {
		kafka := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ServiceName, baseLogger)
		defer func() { _ = kafka.Close() }()
		publisher = outbox.Fanout(bus, kafka)
	}

	worker := alerting.NewWorker(store, tel)
	worker.Register(bus)

	pay := gateway.NewSimulated(gateway.Config{
		FailureRate:     cfg.PaymentFailureRate,
		UnavailableRate: cfg.PaymentUnavailableRate,
	}, baseLogger)

	placeOrder := fulfillment.NewPlaceOrderUseCase(
		store, ledger, pay, id.NewUUIDGenerator(), publisher, cfg.SettleTimeout, tel,
	)
	refund := fulfillment.NewRefundOrderUseCase(
		store, ledger, pay, publisher, cfg.RestockOnRefund, tel,
	)
	orderQueries := fulfillment.NewOrderQueryService(
		ledger, statuscache.New(cfg.RedisAddr, baseLogger), tel,
	)
	inventoryQueries := alerting.NewInventoryQueryService(store, tel)

	handler := httptransport.NewHandler(
		placeOrder, refund, orderQueries, inventoryQueries,
		store, pay, promhttp.Handler(), tel,
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		baseLogger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error", observability.F("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

func buildStores(ctx context.Context, cfg *config.Config, log observability.Logger) (catalog.Store, domorder.Repository, error) {
	if cfg.PostgresDSN == "" {
		store := memory.NewCatalogRepository()
		if err := seedCatalog(ctx, store); err != nil {
			return nil, nil, err
		}
		log.Info("storage_ready", observability.F("backend", "memory"))
		return store, memory.NewOrderRepository(), nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return nil, nil, err
	}
	log.Info("storage_ready", observability.F("backend", "postgres"))
	return postgres.NewCatalogRepository(pool), postgres.NewOrderRepository(pool), nil
}

// seedCatalog loads a demo catalog so the in-memory mode is usable out of the
// box.
func seedCatalog(ctx context.Context, store *memory.CatalogRepository) error {
	seed := []struct {
		id        string
		name      string
		desc      string
		price     int64
		stock     int
		threshold int
	}{
		{"prod-laptop", "Laptop Pro 15", "15 inch developer laptop", 129999, 25, 10},
		{"prod-phone", "Phone X", "flagship smartphone", 89999, 40, 15},
		{"prod-headphones", "Noise Cancelling Headphones", "over-ear, wireless", 24999, 60, 20},
		{"prod-keyboard", "Mechanical Keyboard", "tenkeyless, hot-swappable", 12999, 12, 10},
		{"prod-webcam", "4K Webcam", "USB-C conference camera", 7999, 3, 8},
	}
	for _, s := range seed {
		p, err := catalog.NewProduct(s.id, s.name, s.price, s.stock, s.threshold)
		if err != nil {
			return err
		}
		p.Description = s.desc
		if err := store.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func buildCounters(reg prometrics.Registry) map[observability.MetricKey]observability.Counter {
	return map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: reg.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: reg.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MExternalRequests: reg.Counter(
			string(observability.MExternalRequests),
			"Total number of outbound calls to external peers.",
			"peer", "endpoint", "outcome",
		),
		observability.MOrders: reg.Counter(
			string(observability.MOrders),
			"Orders reaching a terminal status.",
			"status",
		),
		observability.MPaymentAmount: reg.Counter(
			string(observability.MPaymentAmount),
			"Total settled and refunded amounts in cents.",
			"kind",
		),
	}
}

func buildHistograms(reg prometrics.Registry) map[observability.MetricKey]observability.Histogram {
	return map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: reg.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: reg.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			prometheus.DefBuckets,
			"method", "route",
		),
		observability.MExternalRequestDuration: reg.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of outbound calls in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
	}
}

func buildGauges(reg prometrics.Registry) map[observability.MetricKey]observability.Gauge {
	return map[observability.MetricKey]observability.Gauge{
		observability.MStockLevel: reg.Gauge(
			string(observability.MStockLevel),
			"Current stock level per product.",
			"product_id",
		),
		observability.MLowStock: reg.Gauge(
			string(observability.MLowStock),
			"Number of products at or below their low stock threshold.",
		),
	}
}
