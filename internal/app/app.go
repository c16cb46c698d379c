package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/clubledger/internal/api"
	"github.com/ayo6706/clubledger/internal/config"
	"github.com/ayo6706/clubledger/internal/db"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/idempotency"
	"github.com/ayo6706/clubledger/internal/notify"
	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/ayo6706/clubledger/internal/registration"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/ayo6706/clubledger/internal/service"
	"github.com/ayo6706/clubledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cfg.DatabaseURL, false); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database migrations applied")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	// Redis is optional: without it batch registrations live in process
	// memory and idempotency reads go straight to Postgres.
	var cache redis.Cmdable
	var registrations registration.Store
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		cache = redisClient
		registrations = registration.NewRedisStore(redisClient, cfg.RegistrationTTL)
	} else {
		logger.Warn("REDIS_URL not set, using in-memory batch registrations")
		registrations = registration.NewMemoryStore(cfg.RegistrationTTL)
	}
	// A handler never legitimately holds a key past the write timeout.
	writeTimeout := 15*time.Second + cfg.GatewayTimeout
	idemStore := idempotency.NewStore(cache, store.Queries(), cfg.IdempotencyTTL).
		WithAbandonAfter(2 * writeTimeout)

	var gw gateway.Gateway
	if cfg.GatewayMock {
		logger.Warn("using mock payment gateway")
		gw = gateway.NewMockGateway()
	} else {
		gw = gateway.NewHTTPClient(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)
	}

	dispatcher := notify.NewDispatcher(notify.LogSender{}, cfg.NotifyWorkers, cfg.NotifyQueueDepth)
	dispatcher.Start(ctx)

	settings := service.Settings{
		Currency:            cfg.Currency,
		LowBalanceThreshold: cfg.LowBalanceThreshold,
		GatewayTimeout:      cfg.GatewayTimeout,
	}
	callbacks := service.NewCallbackRouter(service.Callbacks{
		Generic:        service.LogCallback("generic"),
		EventEntry:     service.LogCallback("events"),
		MemberTransfer: service.LogCallback("transfers"),
	})
	ledger := service.NewLedgerService(store)
	topups := service.NewAutoTopUpService(store, ledger, gw, dispatcher, settings)
	services := api.Services{
		Accounts:       service.NewAccountService(store),
		Ledger:         ledger,
		Settlements:    service.NewSettlementService(store, ledger, topups, gw, callbacks, registrations, settings),
		TopUps:         topups,
		Webhooks:       service.NewWebhookService(store, ledger, topups, callbacks, dispatcher, cfg.WebhookHMACKey, cfg.WebhookSkipSignature),
		PendingCharges: service.NewPendingChargeService(store),
	}

	reconciler := worker.NewReconciliationWorker(service.NewReconciliationService(store)).
		WithInterval(cfg.ReconciliationInterval)
	stopReconciler := reconciler.Run(ctx)
	staleCharges := worker.NewStaleChargeWorker(services.PendingCharges).
		WithPollInterval(cfg.StaleChargeInterval).
		WithMaxAge(cfg.StaleChargeAge)
	stopStale := staleCharges.Run(ctx)
	logger.Info("workers started",
		zap.Duration("reconciliation_interval", cfg.ReconciliationInterval),
		zap.Stringer("stale_charges", staleCharges))

	router := api.NewRouter(cfg, logger, pool, cache, idemStore, services)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping workers")
	stopReconciler()
	stopStale()
	topups.Wait()
	dispatcher.Stop()

	logger.Info("shutdown complete")
	return nil
}

// Migrate applies or rolls back schema migrations and exits.
func Migrate(rollback bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return db.Migrate(ctx, config.DatabaseURL(), rollback)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
