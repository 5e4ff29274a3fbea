package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/api"
	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/config"
	"github.com/hackgods/carecoord/internal/dashboard"
	"github.com/hackgods/carecoord/internal/db"
	"github.com/hackgods/carecoord/internal/directory"
	"github.com/hackgods/carecoord/internal/linker"
	"github.com/hackgods/carecoord/internal/logging"
	redisclient "github.com/hackgods/carecoord/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "api-server")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.StorageTimeout)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool, logger); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		Timeout:  cfg.StorageTimeout,
	})
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	dir := directory.NewPgDirectory(pgPool)
	records := carerecord.NewService(carerecord.NewPgRepository(pgPool), logger.Named("carerecord"))

	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		dir,
		redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		cfg,
		logger.Named("appointment"),
	)
	appointments.SetLinker(linker.New(records, dir, logger.Named("linker")))
	appointments.SetNotifier(redisclient.NewStreamNotifier(rdb, cfg.NotifyStream))

	router := api.NewRouter(api.RouterConfig{
		Records:      records,
		Appointments: appointments,
		Dashboard:    dashboard.NewService(dir, appointments, records),
		Health:       api.NewHealthHandler(pgPool, rdb, cfg.Env, version),
		Logger:       logger.Named("http"),
		JWTSecret:    cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
