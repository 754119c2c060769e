package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hyeonsoft/orderpulse/internal/archive"
	"github.com/hyeonsoft/orderpulse/internal/board"
	"github.com/hyeonsoft/orderpulse/internal/config"
	"github.com/hyeonsoft/orderpulse/internal/database"
	"github.com/hyeonsoft/orderpulse/internal/httpserver"
	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("starting OrderPulse",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.Strings("shops", cfg.Shops.Names),
	)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics("orderpulse")

	// Try to connect to Redis (change notifications + alert fanout)
	rdb, err := database.NewRedisDB(appCtx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis not available, watchers fall back to polling", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// Try to connect to PostgreSQL; without it the ledger is in-memory
	var ldgr ledger.Ledger
	db, err := database.NewPostgresDB(appCtx, cfg.Database, logger)
	if err != nil {
		logger.Warn("PostgreSQL not available, using in-memory ledger", zap.Error(err))
		db = nil
		ldgr = ledger.NewMemory()
	} else {
		defer db.Close()
		opts := ledger.PostgresOptions{
			PollInterval: cfg.Ledger.PollInterval,
			DeleteBatch:  cfg.Ledger.DeleteBatch,
		}
		if rdb != nil {
			opts.Redis = rdb.Client
		}
		ldgr, err = ledger.NewPostgres(appCtx, db.Pool, opts, logger)
		if err != nil {
			logger.Fatal("ledger setup failed", zap.Error(err))
		}
	}

	// Optional ClickHouse order archive
	var arch board.Archiver
	if cfg.ClickHouse.Enabled {
		ch, err := database.NewClickHouseDB(appCtx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, order archive disabled", zap.Error(err))
		} else {
			defer ch.Close()
			arch, err = archive.NewClickHouse(appCtx, ch.Conn, logger, m)
			if err != nil {
				logger.Warn("archive setup failed, order archive disabled", zap.Error(err))
				arch = nil
			}
		}
	}

	alerter := newAlerter(rdb, logger, m)
	session := board.NewSession(ldgr, cfg.Shops.Names, alerter, arch, logger, m)
	if err := session.Start(appCtx); err != nil {
		logger.Fatal("session start failed", zap.Error(err))
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		Session: session,
		DB:      db,
		Redis:   rdb,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the alert stream is long-lived
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-appCtx.Done()
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newAlerter(rdb *database.RedisDB, logger *zap.Logger, m *metrics.Metrics) *board.Alerter {
	if rdb != nil {
		return board.NewAlerter(rdb.Client, logger, m)
	}
	return board.NewAlerter(nil, logger, m)
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config

	if cfg.IsDevelopment() || cfg.Log.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	switch cfg.Log.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return logger
}
