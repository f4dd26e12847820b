// Package main is the entry point for the marks workflow worker.
//
// The worker is the event-driven half of the system: it connects the record
// store, the Redis marksheet cache and the event bus, subscribes the cache
// maintenance handler, and keeps published results fresh while the
// surrounding school application drives the entry and review surfaces
// through the library packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schoolhub/marksflow/config"
	"github.com/schoolhub/marksflow/internal/application/eventhandler"
	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
	"github.com/schoolhub/marksflow/internal/infrastructure/messaging"
	"github.com/schoolhub/marksflow/internal/infrastructure/persistence/postgres"
	"github.com/schoolhub/marksflow/internal/infrastructure/persistence/projections"
	"github.com/schoolhub/marksflow/internal/infrastructure/persistence/redis"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting marksflow worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Up(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Disabled {
		return fmt.Errorf("the worker maintains the marksheet cache; REDIS_DISABLED=true leaves it nothing to do")
	}

	log.Info("connecting to Redis...")
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer cache.Close()
	log.Info("Redis connection established")

	marksheetCache := redis.NewMarksheetCache(cache, cfg.Redis.MarksheetTTL)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...", "mode", cfg.EventBus.Mode)
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.AsyncMode = cfg.EventBus.AsyncMode
	busConfig.WorkerPoolSize = cfg.EventBus.WorkerPoolSize

	var bus shared.EventBus
	switch cfg.EventBus.Mode {
	case "redis":
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewBusClient(cache),
			ChannelName:    cfg.EventBus.ChannelName,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
	default:
		bus = messaging.NewInMemoryEventBus(busConfig)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	recordStore := postgres.NewRecordRepository(dbConn)
	scheme := assessment.ScoreScheme{
		InternalMax: cfg.Scoring.InternalMax,
		ExternalMax: cfg.Scoring.ExternalMax,
	}

	publishedHandler := eventhandler.NewOnMarksPublishedHandler(recordStore, marksheetCache, scheme, log)
	if err := bus.Subscribe(assessment.EventMarksPublished, publishedHandler.Handle); err != nil {
		return fmt.Errorf("failed to subscribe published handler: %w", err)
	}
	if err := bus.Subscribe(assessment.EventMarksRejected, publishedHandler.Handle); err != nil {
		return fmt.Errorf("failed to subscribe rejected handler: %w", err)
	}
	log.Info("marksheet cache maintenance handler registered")

	reviewBoard := projections.NewReviewBoardView()
	if err := bus.SubscribeAll(reviewBoard.ApplyEvent); err != nil {
		return fmt.Errorf("failed to subscribe review board projection: %w", err)
	}
	log.Info("review board projection registered")

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("marksflow worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger configures structured logging per the observability config.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
