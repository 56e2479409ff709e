// cmd/api/main.go
package main

import (
	"context"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/configurator-backend/internal/config"
	"github.com/your-org/configurator-backend/internal/domain/cart"
	"github.com/your-org/configurator-backend/internal/domain/pricing"
	"github.com/your-org/configurator-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/configurator-backend/internal/infrastructure/database/redis"
	"github.com/your-org/configurator-backend/internal/interfaces/http"
	"github.com/your-org/configurator-backend/internal/pkg/auth"
	"github.com/your-org/configurator-backend/internal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg)
	appLogger.WithFields(logrus.Fields{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Infof("Starting %s", cfg.App.Name)

	deps := http.Dependencies{
		JWT:          auth.NewJWTManager(cfg),
		HealthChecks: map[string]http.HealthCheck{},
	}
	var closers []func() error

	// Connect to Redis
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = redis.NewConnection(cfg, appLogger)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to Redis")
		}
		closers = append(closers, redisClient.Close)
		deps.Redis = redisClient.GetClient()
		deps.HealthChecks["redis"] = redisClient.Health
	}

	// Snapshot storage
	var store cart.Store
	switch cfg.Storage.Driver {
	case config.StorageDriverRedis:
		store = redis.NewSnapshotStore(redisClient.GetClient(), cfg.Storage.KeyPrefix, cfg.Storage.SnapshotTTL)
	case config.StorageDriverPostgres:
		db, err := postgres.NewConnection(cfg, appLogger)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to database")
		}
		closers = append(closers, db.Close)
		deps.HealthChecks["database"] = db.Health

		migration := postgres.NewMigration(db.GetDB(), appLogger)
		if err := migration.RunAutoMigrations(); err != nil {
			appLogger.WithError(err).Fatal("Database migration failed")
		}
		if err := migration.CreateIndexes(); err != nil {
			appLogger.WithError(err).Warn("Index creation failed")
		}
		store = postgres.NewSnapshotStore(db.GetDB())
	default:
		store = cart.NewMemoryStore()
	}

	// Pricing
	pricingClient := pricing.NewClient(cfg, &nethttp.Client{}, appLogger)
	pricingService := pricing.NewService(cfg, pricingClient, appLogger, pricing.Options{})
	deps.Pricing = pricingService

	// Carts
	carts := cart.NewManager(cart.SettingsFromConfig(cfg), pricingService, store, appLogger)
	carts.Observe(cart.LogObserver{Logger: appLogger})
	if redisClient != nil {
		carts.Observe(redis.NewEventPublisher(redisClient.GetClient(), cfg.Cart.EventChannelPrefix))
	}
	deps.Carts = carts

	autoSaveCtx, stopAutoSave := context.WithCancel(context.Background())
	defer stopAutoSave()
	if cfg.Cart.AutoSave {
		go carts.RunAutoSave(autoSaveCtx, cfg.Cart.AutoSaveInterval)
	}

	server := http.NewServer(cfg, appLogger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			appLogger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down gracefully")

	// Give server 30 seconds to shutdown gracefully
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		appLogger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	stopAutoSave()
	carts.Close(ctx)

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			appLogger.WithError(err).Warn("Failed to close connection")
		}
	}

	appLogger.Info("Server shutdown completed")
}
