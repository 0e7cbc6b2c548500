package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"facturador/internal/commons"
	"facturador/internal/infrastructure/logger"
	"facturador/internal/infrastructure/metrics"
	"facturador/internal/infrastructure/mysql"
	"facturador/internal/invoice"
	"facturador/internal/product"
	"facturador/internal/server"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := commons.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

	if cfg.Database.Migrate {
		if err := mysql.Migrate(db); err != nil {
			zapLogger.Fatal("migrating database", zap.Error(err))
		}
		zapLogger.Info("database migrated")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	if cfg.Auth.JWTSecret == "" {
		zapLogger.Warn("JWT_SECRET not set, write routes are unauthenticated")
	}

	router := server.NewRouter(server.RouterDeps{
		Products:  product.NewModule(db, zapLogger),
		Invoices:  invoice.NewModule(db, cfg, appMetrics, zapLogger),
		Metrics:   appMetrics,
		Gatherer:  registry,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    zapLogger,
	})

	srv := server.New(cfg.Server, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
