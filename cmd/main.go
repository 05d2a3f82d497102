package main

import (
	"context"
	"database/sql"
	"livesync/internal/app/registry"
	"livesync/internal/app/server"
	"livesync/internal/app/server/handlers"
	"livesync/internal/app/worker"
	"livesync/internal/config"
	"livesync/internal/core/services"
	"livesync/internal/platform/logger"
	"livesync/internal/platform/telemetry"
	"livesync/internal/plugins/postgres"
	redisPlugin "livesync/internal/plugins/redis"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg, os.Stdout)
	log.Info("starting application")
	if cfg.SecretToken == "" {
		log.Error("JWT_SECRET is required")
		return
	}

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	if err := postgres.Migrate(ctx, pdb); err != nil {
		log.Error("postgres migration failed", "err", err)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	rt := cfg.Realtime
	sessionRepo := postgres.NewSessionRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	txManager := postgres.NewTxManager(pdb)
	roomLog := redisPlugin.NewRedisMessageLog(rdb, log, rt.StreamMaxLen, rt.ReadBlock, rt.ResumeBackoff)
	presStore := redisPlugin.NewRedisPresenceStore(rdb)
	consumer := cfg.Service.Name + "-" + uuid.NewString()[:8]
	archiveQueue := redisPlugin.NewRedisArchiveQueue(rdb, log, consumer, rt.ReadBlock, rt.ResumeBackoff)

	// Core Services
	hub := registry.NewRegistry(log)
	sessSvc := services.NewSessionService(log, sessionRepo, txManager)
	publisher := services.NewPublisher(log, roomLog, rt.PublishTimeout, rt.MaxMessageBytes)
	tokenSvc := services.NewTokenService(cfg.SecretToken, 24*time.Hour)
	managerSvc := services.NewManagerService(log, sessSvc, publisher, msgRepo, presStore, hub, rt.HistoryLimit, cfg.Presence.SessionSyncInterval)

	// Workers
	archiver := worker.NewArchiveWorker(log, archiveQueue, msgRepo, cfg.Worker.ArchiveGroup)
	relay := worker.NewPresenceRelay(log, presStore, hub, rt.ResumeBackoff)
	hub.RunWorker(archiver.Run)
	hub.RunWorker(relay.Run)
	sweeper := worker.NewPresenceSweeper(log, presStore, sessSvc, cfg.Presence.SweepInterval)
	go func() {
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("presence sweeper stopped", "err", err)
		}
	}()

	// Server
	var authHandler *handlers.AuthHandler
	if cfg.Service.Env != "production" {
		authHandler = handlers.NewAuthHandler(tokenSvc)
	}
	srv := server.NewServer(cfg.Service.Addr, log, server.Deps{
		Auth: authHandler,
		WS: handlers.NewWSHandler(hub, managerSvc, roomLog, presStore, handlers.WSOptions{
			PresenceTTL:       cfg.Presence.TTL,
			HeartbeatInterval: cfg.Presence.HeartbeatInterval,
			ReadLimit:         int64(rt.MaxMessageBytes) * 2,
			AllowedOrigins:    cfg.Service.AllowedOrigins,
		}),
		Rooms: handlers.NewRoomHandler(managerSvc),
		Health: handlers.NewHealthHandler(2*time.Second, map[string]handlers.HealthCheck{
			"postgres": pdb.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Tokens:      tokenSvc,
		ServiceName: cfg.Service.Name,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "err", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
	hub.Shutdown()
	log.Info("stopped")
}
