package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/extraction-orchestrator/internal/app"
	"github.com/kursadbilgin/extraction-orchestrator/internal/config"
	"github.com/kursadbilgin/extraction-orchestrator/internal/handler"
	"github.com/kursadbilgin/extraction-orchestrator/internal/infra/postgresql"
	"github.com/kursadbilgin/extraction-orchestrator/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/extraction-orchestrator/internal/infra/redis"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"github.com/kursadbilgin/extraction-orchestrator/internal/repository"
	"github.com/kursadbilgin/extraction-orchestrator/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("extraction-orchestrator api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	opts := app.Options{Metrics: metrics}

	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	defer cancelStart()

	var sqlDB *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(startCtx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		defer sqlDB.Close()

		opts.Runs = repository.NewGormBatchRunRepo(db)
		logger.Info("batch history enabled")
	}

	var rdb goredis.UniversalClient
	if cfg.RedisURL != "" {
		client, err := infraredis.NewRedis(startCtx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer client.Close()

		store, err := infraredis.NewSessionStore(client, "")
		if err != nil {
			return err
		}
		rdb = client
		opts.Store = store
		logger.Info("shared session state enabled")
	}

	core, err := app.NewCore(cfg, logger, opts)
	if err != nil {
		return err
	}
	defer core.Close()
	core.Start(ctx)

	server := fiber.New(fiber.Config{
		AppName:               "extraction-orchestrator",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(handler.RequestContext())
	server.Use(metrics.HTTPMiddleware())
	server.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.Register(server, handler.Dependencies{
		Batches:   core.Orchestrator,
		Dataset:   core.Presenter,
		Guardian:  core.Guardian,
		Handshake: core.Handshake,
		Prompt:    core.Prompt,
		SQLDB:     sqlDB,
		Redis:     rdb,
	}); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()
	logger.Info("extraction-orchestrator api started",
		zap.Int("port", cfg.APIPort),
		zap.String("extractor", cfg.ExtractorBaseURL()),
	)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	return nil
}
