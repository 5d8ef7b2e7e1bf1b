// Package cli holds the bootstrap steps shared by cmd/udhar and cmd/udhar-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"udhar/internal/amqp"
	"udhar/internal/backend"
	"udhar/internal/config"
	ulog "udhar/internal/log"
)

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(component string, level slog.Level) *ulog.Logger {
	logger := ulog.New(ulog.Config{Level: level, Component: component, Output: os.Stdout})
	ulog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it
// is invalid.
func LoadAndValidateConfig(logger *ulog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", ulog.FieldErrorType, ulog.ErrorTypeValidation, ulog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured repository or exits the process.
func InitBackend(ctx context.Context, logger *ulog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", ulog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(ulog.ComponentStorage).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", ulog.FieldError, err, "backend", bcfg.Type.String())
		os.Exit(1)
	}
	return res
}

// ConnectAMQP returns a connected client, or nil when AMQP_URL is unset.
// A configured broker that cannot be reached is fatal.
func ConnectAMQP(logger *ulog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", ulog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("AMQP client connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM or when
// stop is called. cleanup then runs with a context bounded by timeout, and
// done is closed once it returns.
func GracefulShutdown(logger *ulog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (ctx context.Context, stop context.CancelFunc, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			logger.Info("Context cancelled")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(finished)
	}()

	return ctx, cancel, finished
}
