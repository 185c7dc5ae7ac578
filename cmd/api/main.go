package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"photovault/internal/cache"
	"photovault/internal/config"
	"photovault/internal/database"
	"photovault/internal/handlers"
	"photovault/internal/jobs"
	"photovault/internal/log"
	"photovault/internal/media/derive"
	"photovault/internal/metrics"
	"photovault/internal/queue"
	"photovault/internal/repository"
	"photovault/internal/server"
	"photovault/internal/service"
	"photovault/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)
	if cfg.Security.JWTAccessSecret == "" {
		logger.Fatal().Msg("security.jwtaccesssecret must be set")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.Migrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("schema migration failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	recorder, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	rawStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := rawStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}
	objectStore := storage.Instrument(rawStore, recorder)

	images := repository.NewImageRepository(dbPool)
	users := repository.NewUserRepository(dbPool)
	sessions := repository.NewSessionRepository(dbPool)
	invites := repository.NewInviteRepository(dbPool)

	publisher := queue.NewPublisher(redisClient, cfg.Queue.Stream)
	urls := service.NewURLIssuer(objectStore, cfg.Storage.SignedURLTTL, logger)
	generator := derive.NewGenerator(derive.PolicyFromConfig(cfg.Media), logger)

	handlerSet := handlers.NewHandlerSet(handlers.Dependencies{
		Config:   cfg,
		Log:      logger,
		DB:       dbPool,
		Cache:    redisClient,
		Auth:     service.NewAuthService(users, sessions, invites, cfg.Security, logger),
		Ingest:   service.NewIngestService(objectStore, images, generator, publisher, urls, recorder, cfg.Media, logger),
		Images:   service.NewImageService(images, objectStore, publisher, urls, logger),
		Invites:  service.NewInviteService(invites, logger),
		Users:    users,
		Sessions: sessions,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, prometheus.DefaultGatherer)

	scheduler := jobs.NewScheduler(publisher, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
