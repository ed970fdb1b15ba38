package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	"github.com/yuzvak/starnotary-service/internal/application/use_cases"
	"github.com/yuzvak/starnotary-service/internal/config"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/events"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/handlers"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/server"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/payment"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/persistence/memory"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/persistence/postgres"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/persistence/redis"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/scheduler"
	"github.com/yuzvak/starnotary-service/internal/pkg/clock"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

// eventStore is satisfied by both the in-process recorder and the Redis stream.
type eventStore interface {
	ports.EventPublisher
	ports.EventReader
}

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	flag.Parse()

	log := logger.NewLogger()

	cfg, configErr := config.LoadConfig(*configPath)
	if configErr != nil {
		log.Fatal("Failed to load configuration", "error", configErr)
	}

	log = logger.New(os.Stdout, logger.ParseLevel(cfg.Log.Level))
	log.Info("Starting Star Notary Service", "storage", cfg.Storage.Driver, "redis", cfg.Redis.Enabled)

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	healthChecks := make(map[string]handlers.Pinger)

	var (
		starRepo ports.StarRepository
		ledger   ports.AccountLedger
	)

	if cfg.UsesDatabase() {
		db, dbErr := postgres.NewConnection(cfg.Storage.Driver, cfg.Database)
		if dbErr != nil {
			log.Fatal("Failed to connect to database", "error", dbErr)
		}
		defer db.Close()

		if _, migrationErr := postgres.RunMigrations(rootCtx, db, cfg.Database.MigrationsPath, log); migrationErr != nil {
			log.Fatal("Failed to run migrations", "error", migrationErr)
		}

		if cfg.Metrics.Enabled {
			dbMetricsCollector := monitoring.NewDBMetricsCollector(db.GetDB())
			dbMetricsCollector.StartCollecting(rootCtx, cfg.Metrics.CollectInterval.Duration)
		}

		starRepo = postgres.NewStarRepository(db)
		ledger = postgres.NewPaymentLedger(db, log)
		healthChecks["database"] = db
	} else {
		starRepo = memory.NewStarRepository()
		ledger = payment.NewLedger(log)
	}

	var (
		cache     ports.Cache
		publisher eventStore
	)

	if cfg.Redis.Enabled {
		redisConn, err := redis.NewConnection(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisConn.Close()

		cache = redis.NewCache(redisConn, cfg.Registry.ExpectedStars, log)
		publisher = redis.NewEventPublisher(redisConn, cfg.Redis.Stream, log)
		healthChecks["redis"] = redisConn
	} else {
		cache = memory.NewCache(cfg.Registry.ExpectedStars)
		publisher = events.NewRecorder(cfg.Registry.EventHistory, log)
	}

	clk := clock.NewRealClock()

	registry := use_cases.NewRegistryUseCase(starRepo, cache, publisher, clk, log).
		WithLockTimeout(cfg.Registry.LockTimeout.Duration)
	marketplace := use_cases.NewMarketplaceUseCase(starRepo, cache, ledger, publisher, clk, log).
		WithLockTimeout(cfg.Registry.LockTimeout.Duration)

	indexScheduler := scheduler.NewIndexScheduler(registry, log, cfg.Registry.IndexRebuildInterval.Duration)
	go indexScheduler.Start(rootCtx)

	var metricsServer *monitoring.MetricsServer
	if cfg.Metrics.Enabled && cfg.Metrics.Address != "" {
		metricsServer = monitoring.NewMetricsServer(cfg.Metrics.Address)
		go func() {
			log.Info("Metrics server starting", "address", cfg.Metrics.Address)
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	httpServer := server.NewServer(cfg.Server, server.Dependencies{
		Registry:     registry,
		Marketplace:  marketplace,
		Ledger:       ledger,
		Events:       publisher,
		HealthChecks: healthChecks,
	}, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigChan

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()

		log.Info("Shutting down server...")
		indexScheduler.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				log.Error("Metrics server shutdown error", "error", err)
			}
		}

		stopRoot()
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server failed", "error", err)
	}

	<-done
	log.Info("Server stopped")
}
