package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"udhar/internal/amqp"
	"udhar/internal/core"
	"udhar/internal/repo"
	"udhar/internal/sheets"
)

// Source is the read side of the ledger the worker exports from.
type Source interface {
	repo.ShopStore
	repo.CustomerStore
	repo.TransactionStore
}

// ExportWorker copies recorded transactions into an external ledger sheet.
type ExportWorker struct {
	source   Source
	exporter sheets.TransactionExporter
	index    sheets.ExportIndex
}

// NewExportWorker builds a worker. index may be nil, in which case every
// message is appended without a duplicate check.
func NewExportWorker(source Source, exporter sheets.TransactionExporter, index sheets.ExportIndex) *ExportWorker {
	return &ExportWorker{source: source, exporter: exporter, index: index}
}

// HandleTransactionRecorded processes a single transaction.recorded message.
// A transaction, shop or customer missing from the source is reported as
// amqp.ErrPermanent so the message is not redelivered.
func (w *ExportWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"transaction_id", msg.TransactionID,
		"shop_id", msg.ShopID)

	exported, err := w.export(ctx, msg.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping export message for unknown record",
			"transaction_id", msg.TransactionID, "error", err)
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	}
	if err != nil {
		return err
	}
	if !exported {
		slog.InfoContext(ctx, "Transaction already exported, skipping",
			"transaction_id", msg.TransactionID)
	}
	return nil
}

// Backfill exports every stored transaction the sheet does not hold yet.
// It recovers from messages lost while the worker was down.
func (w *ExportWorker) Backfill(ctx context.Context) error {
	txns, err := w.source.ListTransactions(ctx, repo.TransactionQuery{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if w.index == nil {
		slog.WarnContext(ctx, "No export index configured, skipping backfill")
		return nil
	}

	exported, skipped, failed := 0, 0, 0
	for _, tx := range txns {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := w.export(ctx, tx.ID)
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "Failed to export transaction during backfill",
				"transaction_id", tx.ID, "error", err)
			failed++
		case ok:
			exported++
		default:
			skipped++
		}
	}

	slog.InfoContext(ctx, "Backfill completed",
		"total", len(txns),
		"exported", exported,
		"skipped", skipped,
		"errors", failed)
	return nil
}

// export appends one transaction and reports whether a row was written.
func (w *ExportWorker) export(ctx context.Context, transactionID string) (bool, error) {
	if w.index != nil {
		done, err := w.index.HasTransaction(ctx, transactionID)
		if err != nil {
			return false, fmt.Errorf("check export index: %w", err)
		}
		if done {
			return false, nil
		}
	}

	tx, err := w.source.GetTransaction(ctx, transactionID)
	if err != nil {
		return false, fmt.Errorf("get transaction: %w", err)
	}
	shop, err := w.source.GetShop(ctx, tx.ShopID)
	if err != nil {
		return false, fmt.Errorf("get shop: %w", err)
	}
	customer, err := w.source.GetCustomer(ctx, tx.CustomerID)
	if err != nil {
		return false, fmt.Errorf("get customer: %w", err)
	}

	ref, err := w.exporter.AppendTransaction(ctx, sheets.NewLedgerRow(tx, shop, customer))
	if err != nil {
		return false, fmt.Errorf("append to sheet: %w", err)
	}

	slog.InfoContext(ctx, "Successfully exported transaction",
		"transaction_id", tx.ID,
		"sheets_ref", ref,
		"amount", tx.Amount.String(),
		"type", tx.Type)
	return true, nil
}
