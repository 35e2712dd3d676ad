// Package main is the entry point for the stockline API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"stockline/internal/config"
	v1 "stockline/internal/infrastructure/http/v1"
	"stockline/internal/infrastructure/metrics"
	"stockline/internal/infrastructure/storage/postgres"
	"stockline/internal/infrastructure/telemetry"
	"stockline/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDev(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting stockline server", "version", version, "env", cfg.App.Env)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, version)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
		MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	pool.LogStats(ctx)

	if cfg.DB.AutoMigrate {
		if err := postgres.MigrateUp(ctx, pool); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Info("migrations applied")
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.DB.StatementTimeout
	txOpts.LockTimeout = cfg.DB.LockTimeout
	txOpts.MaxRetries = cfg.DB.TxMaxRetries
	txm := postgres.NewTxManagerWithOptions(pool, txOpts)
	txm.SetRetryObserver(m)

	app, err := buildApp(ctx, cfg, txm, m)
	if err != nil {
		log.Fatalw("failed to wire services", "error", err)
	}
	defer app.Close()

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		Debug:        cfg.App.Debug,
		Version:      version,
		ServiceName:  cfg.Telemetry.ServiceName,
		Database:     pool,
		JWTValidator: app.jwt,
		Idempotency:  app.idempotency,
		Metrics:      m,
		Gatherer:     reg,
		Catalog:      app.catalog,
		Ledger:       app.ledger,
		Sales:        app.sales,
		Transfers:    app.transfers,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("server listening", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
