package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asperus/agenda/internal/api/router"
	"github.com/asperus/agenda/internal/app/bootstrap"
	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/changefeed"
	appconfig "github.com/asperus/agenda/internal/config"
	"github.com/asperus/agenda/internal/events"
	"github.com/asperus/agenda/internal/notify"
	"github.com/asperus/agenda/internal/observability/metrics"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agenda API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_store", cfg.UseMemoryStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, bookingMetrics := setupMetrics()

	// Persistence
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	seed, err := bootstrap.LoadStoreSeed(cfg.StoreSeedFile)
	if err != nil {
		logger.Error("failed to load store seed", "error", err)
		os.Exit(1)
	}
	storeRepo := bootstrap.BuildStoreRepository(pool, redisClient, cfg, logger)
	if err := bootstrap.SeedStores(ctx, storeRepo, seed, logger); err != nil {
		logger.Error("failed to seed stores", "error", err)
		os.Exit(1)
	}
	ledger, usesOutbox := bootstrap.BuildLedger(pool)
	broker := bootstrap.BuildBroker(redisClient, cfg, bookingMetrics, logger.Component("changefeed"))
	defer broker.Close()

	// Services
	slotService := availability.NewService(storeRepo, ledger, logger).WithMetrics(bookingMetrics)
	emailSender, provider, reason := bootstrap.BuildEmailSender(ctx, cfg, logger)
	logger.Info("confirmation email provider selected", "provider", provider, "reason", reason)
	bookingService := reservations.NewService(storeRepo, ledger, logger).
		WithMetrics(bookingMetrics).
		WithNotifier(notify.NewNotifier(emailSender, logger))

	if usesOutbox {
		outbox := events.NewOutboxStore(pool)
		deliverer := events.NewDeliverer(outbox, changefeed.NewOutboxRelay(broker), logger.Component("outbox")).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithInterval(cfg.OutboxPollInterval)
		go deliverer.Start(ctx)
		logger.Info("outbox deliverer started", "interval", cfg.OutboxPollInterval, "batch_size", cfg.OutboxBatchSize)
	} else {
		bookingService = bookingService.WithPublisher(broker)
	}

	// Health checks
	health := router.NewHealthHandler()
	if pool != nil {
		health = health.WithCheck("postgres", pool.Ping)
	}
	if redisClient != nil {
		health = health.WithCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:              logger,
		StoresHandler:       stores.NewHandler(storeRepo, logger),
		AvailabilityHandler: availability.NewHandler(slotService, logger),
		ReservationsHandler: reservations.NewHandler(bookingService, logger),
		FeedHandler:         changefeed.NewHandler(broker, logger.Component("feed")).WithPingInterval(cfg.FeedPingInterval),
		Health:              health,
		MetricsHandler:      metricsHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
		RequestTimeout:      15 * time.Second,
	}
	r := router.New(routerCfg)

	// Create HTTP server. No write timeout: /feed sockets are long lived and
	// the API routes carry their own request timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics builds a private registry with runtime collectors and the
// booking metrics, and the /metrics handler serving it.
func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(registry)
}
