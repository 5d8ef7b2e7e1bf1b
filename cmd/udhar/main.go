package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"udhar/internal/cli"
	apphttp "udhar/internal/http"
	ulog "udhar/internal/log"
	"udhar/internal/services"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(ulog.ComponentApp, slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(ulog.ComponentApp, cfg.SlogLevel())

	store := cli.InitBackend(context.Background(), logger, cfg)

	// nil interface, not a nil *amqp.Client, when events are off.
	var publisher services.Publisher
	amqpClient := cli.ConnectAMQP(logger.WithComponent(ulog.ComponentAMQP), cfg)
	if amqpClient != nil {
		publisher = amqpClient
	}

	ledger := services.NewLedgerService(store.Backend, publisher,
		services.WithLocation(cfg.Location()))

	srv := apphttp.NewServer(":"+cfg.Port, ledger, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StatementCacheTTL:  cfg.StatementCacheTTL,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	_, _, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", ulog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", ulog.FieldError, err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Error("Backend close error", ulog.FieldError, err)
		}
	})

	logger.Info("Starting udhar server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Location().String(),
		"events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", ulog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
