package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"sales-console/internal/client"
	"sales-console/internal/config"
	"sales-console/internal/middleware"
	"sales-console/internal/observability"
	"sales-console/internal/server"
	"sales-console/internal/services"
)

const version = "1.0.0"

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}

	slog.Info("application stopped gracefully")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"config", cfg,
	)

	tp, err := observability.NewTracerProvider(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	apiClient := client.New(cfg.API, nil,
		client.WithLogger(logger),
		client.WithMetrics(metrics),
	)
	registry := services.NewRegistry(apiClient, cfg.Console, logger, metrics)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, server.NewServer(registry, logger, version)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing open visits", "visits", registry.Stats().Total)
		registry.CloseAll()
		return nil
	})
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("flushing traces")
		return tp.Shutdown(ctx)
	})

	logger.Info("starting graceful server", "backend", cfg.API.BaseURL)
	return gracefulServer.ListenAndServe(ctx)
}

func newHandler(cfg *config.Config, logger *slog.Logger, h http.Handler) http.Handler {
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Tracing(cfg.Telemetry.ServiceName),
		middleware.Logger(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(h)
}
