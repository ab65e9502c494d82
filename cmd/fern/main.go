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

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := setupTracing(cfg)

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithContext(ctx).Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := app.echo.StartServer(app.server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// the liveness probe answers while dependencies are still coming up
	if err := app.startup.Start(ctx); err != nil {
		logger.WithContext(ctx).WithError(err).Error("Startup failed")
		shutdown(app, logger, shutdownTracing)
		return err
	}
	app.health.SetReady(true)
	logger.WithContext(ctx).Info("Service is ready")

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.WithError(err).Error("HTTP server failed")
		shutdown(app, logger, shutdownTracing)
		return err
	}

	shutdown(app, logger, shutdownTracing)
	return nil
}

func shutdown(app *App, logger ectologger.Logger, shutdownTracing func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	app.health.SetReady(false)

	if err := app.server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server")
	}
	if err := app.startup.Stop(ctx); err != nil {
		logger.WithError(err).Error("Failed to stop dependencies")
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.WithError(err).Error("Failed to shut down tracer provider")
	}

	logger.Info("Shutdown complete")
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level

	return zapCfg.Build(zap.Fields(zap.String("app", cfg.AppName), zap.String("version", cfg.Version)))
}

// setupTracing installs the process tracer. Spans are sampled in process only; their ids
// flow into logs, error responses and published events.
func setupTracing(cfg config.Config) func(context.Context) error {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	if !cfg.TracingEnabled {
		return func(context.Context) error { return nil }
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown
}
