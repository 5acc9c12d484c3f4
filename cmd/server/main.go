package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"fleet/internal/app"
	"fleet/internal/auth"
	"fleet/internal/config"
	"fleet/internal/dispatch"
	"fleet/internal/handler"
	"fleet/internal/logging"
	"fleet/internal/metrics"
	"fleet/internal/mq"
	internalRedis "fleet/internal/redis"
	"fleet/internal/repository/postgres"
	"fleet/internal/service"
)

func main() {
	config.LoadDotEnvUp(6)

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("fleet-ledger", cfg.Log.Env, cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Event publisher: RabbitMQ when enabled, log otherwise.
	var publisher mq.Publisher = mq.NewLogPublisher(logger)
	if cfg.RabbitMQ.Enabled {
		rabbit, err := mq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		publisher = rabbit
		logger.Info("connected to RabbitMQ", "exchange", cfg.RabbitMQ.Exchange)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Wire dependencies.
	server := wireServer(db, redisClient, publisher, nrApp, registry, logger, cfg)

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher mq.Publisher,
	nrApp *newrelic.Application,
	registry *prometheus.Registry,
	logger *slog.Logger,
	cfg *config.Config,
) *http.Server {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	settingsCache := internalRedis.NewSettingsCache(redisClient, cfg.Redis.SettingsCacheTTL)

	// Initialize repositories.
	driverRepo := postgres.NewDriverRepository(db)
	ledgerStore := postgres.NewLedgerStore(db, cfg.Ledger.MaxRetries)
	settingsRepo := postgres.NewSettingsRepository(db)

	// External collaborators.
	dispatchClient := dispatch.NewHTTPClient(cfg.Dispatch.BaseURL, cfg.Dispatch.APIKey, cfg.Dispatch.Timeout)
	tokens := auth.NewTokenManager(cfg.Security.JWTSecret)
	m := metrics.New(registry)

	// Initialize services.
	notificationService := service.NewNotificationService(publisher, logger)
	settingsService := service.NewSettingsService(settingsRepo, settingsCache, cfg.Ledger.DefaultBaseCommission, logger)
	settlementService := service.NewSettlementService(ledgerStore, settingsService, notificationService, m, logger)
	walletService := service.NewWalletService(ledgerStore, driverRepo, settingsService, notificationService, m, logger)
	orderService := service.NewOrderService(driverRepo, dispatchClient, logger)
	driverService := service.NewDriverService(driverRepo)
	applicationService := service.NewApplicationService(
		driverRepo, ledgerStore, dispatchClient, lockStore, notificationService, m, logger,
		service.ApplicationConfig{
			DefaultDebtLimit: cfg.Ledger.DefaultDebtLimit,
			ApprovalLockTTL:  cfg.Redis.ApprovalLockTTL,
		},
	)

	// Initialize handlers.
	webhookHandler := handler.NewWebhookHandler(settlementService, orderService)
	driverHandler := handler.NewDriverHandler(applicationService, walletService)
	adminHandler := handler.NewAdminHandler(driverService, applicationService, walletService, settingsService, orderService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		WebhookHandler:      webhookHandler,
		DriverHandler:       driverHandler,
		AdminHandler:        adminHandler,
		TokenVerifier:       tokens,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
		Gatherer:            registry,
		Logger:              logger,
		WebhookSecretHeader: cfg.Security.WebhookSecretHeader,
		WebhookSecret:       cfg.Security.WebhookSecret,
		IdentityHookSecret:  cfg.Security.IdentityHookSecret,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
