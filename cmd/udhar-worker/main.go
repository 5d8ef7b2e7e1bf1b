package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"udhar/internal/amqp"
	"udhar/internal/backend"
	"udhar/internal/cli"
	"udhar/internal/core"
	ulog "udhar/internal/log"
	"udhar/internal/services"
	gsheet "udhar/internal/sheets/google"
	"udhar/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(ulog.ComponentWorker, slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(ulog.ComponentWorker, cfg.SlogLevel())

	logger.Info("Starting udhar-worker")
	if cfg.DataBackend == backend.MemoryBackend.String() {
		logger.Warn("Worker is using the memory backend; it will not see transactions recorded by the server")
	}

	store := cli.InitBackend(context.Background(), logger, cfg)

	exportEnabled := cfg.SheetsEnabled() && cfg.AMQPURL != ""
	var amqpClient *amqp.Client
	if exportEnabled {
		amqpClient = cli.ConnectAMQP(logger.WithComponent(ulog.ComponentAMQP), cfg)
	}

	reconciler := services.NewReconciler(store.Backend, cfg.ReconcileConcurrency)
	rlog := logger.WithComponent(ulog.ComponentReconcile)
	processor := services.NewReconcileProcessor(reconciler, cfg.ReconcileInterval, func(m []core.BalanceMismatch) {
		if len(m) == 0 {
			rlog.Debug("Balances reconciled, no mismatches")
		}
	})

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Failed to stop reconcile processor", ulog.FieldError, err)
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

	if exportEnabled {
		if err := startExport(ctx, stop, logger, cfg.Location(), store.Backend, amqpClient, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
			Location:        cfg.Location(),
		}); err != nil {
			logger.Error("Failed to initialize Google Sheets client", ulog.FieldError, err)
			stop()
			<-done
			return
		}
	} else {
		logger.Info("Skipping ledger export - needs both GOOGLE_SPREADSHEET_ID and AMQP_URL")
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start reconcile processor", ulog.FieldError, err)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}

// startExport backfills the sheet and then follows transaction.recorded
// events until ctx is cancelled.
func startExport(ctx context.Context, stop context.CancelFunc, logger *ulog.Logger, loc *time.Location, source worker.Source, client *amqp.Client, opts gsheet.Options) error {
	sheets, err := gsheet.New(ctx, opts)
	if err != nil {
		return err
	}
	if err := sheets.EnsureHeader(ctx); err != nil {
		logger.Warn("Could not verify sheet header", ulog.FieldError, err)
	}

	exporter := worker.NewExportWorker(source, sheets, sheets)
	logger.Info("Performing startup backfill...", "timezone", loc.String())
	if err := exporter.Backfill(ctx); err != nil {
		logger.Error("Startup backfill failed", ulog.FieldError, err)
	}

	go func() {
		err := client.ConsumeTransactionRecorded(ctx, exporter.HandleTransactionRecorded)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", ulog.FieldError, err)
			stop()
		}
	}()
	return nil
}
